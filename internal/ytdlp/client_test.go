package ytdlp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/gomashup/internal/config"
	"github.com/jo-hoe/gomashup/internal/media"
)

type fakeRunner struct {
	args []string
	run  func(args []string) (media.Result, error)
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (media.Result, error) {
	f.args = args
	return f.run(args)
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func newClient(r media.Runner) *Client {
	return &Client{Path: "yt-dlp", Opts: config.Default().Acquisition, Runner: r}
}

func TestSearch_ParsesEntries(t *testing.T) {
	r := &fakeRunner{run: func([]string) (media.Result, error) {
		return media.Result{Stdout: `{"entries":[
			{"id":"a1","title":"First","url":"https://www.youtube.com/watch?v=a1","duration":201},
			{"id":"","title":"broken","url":""},
			{"id":"b2","title":"Second"}
		]}`}, nil
	}}
	entries, err := newClient(r).Search(context.Background(), "Sharry Mann", 12)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "https://www.youtube.com/watch?v=a1", entries[0].Target())
	assert.Equal(t, "b2", entries[1].Target())
	assert.Equal(t, "ytsearch12:Sharry Mann", r.args[len(r.args)-1])
	assert.Contains(t, r.args, "--flat-playlist")
}

func TestSearch_Errors(t *testing.T) {
	_, err := newClient(&fakeRunner{}).Search(context.Background(), "  ", 3)
	assert.Error(t, err)

	failing := &fakeRunner{run: func([]string) (media.Result, error) {
		return media.Result{}, errors.New("network down")
	}}
	_, err = newClient(failing).Search(context.Background(), "q", 3)
	assert.ErrorContains(t, err, "network down")

	empty := &fakeRunner{run: func([]string) (media.Result, error) { return media.Result{}, nil }}
	_, err = newClient(empty).Search(context.Background(), "q", 3)
	assert.Error(t, err)
}

func TestFetch_UsesPrintedPath(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{run: func(args []string) (media.Result, error) {
		p := filepath.Join(dir, "004-Song.mp3")
		if err := os.WriteFile(p, []byte("mp3"), 0o644); err != nil {
			return media.Result{}, err
		}
		return media.Result{Stdout: p + "\n"}, nil
	}}
	got, err := newClient(r).Fetch(context.Background(), 4, Entry{ID: "x", URL: "u"}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "004-Song.mp3"), got)

	assert.Equal(t, filepath.Join(dir, "004-%(title).120s.%(ext)s"), argValue(r.args, "-o"))
	assert.Equal(t, "bestaudio/best", argValue(r.args, "-f"))
	assert.Equal(t, "mp3", argValue(r.args, "--audio-format"))
	assert.Equal(t, "192K", argValue(r.args, "--audio-quality"))
	assert.Equal(t, "3", argValue(r.args, "--retries"))
	assert.Equal(t, "3", argValue(r.args, "--fragment-retries"))
	assert.Contains(t, r.args, "--no-playlist")
	assert.Equal(t, "u", r.args[len(r.args)-1])
}

func TestFetch_FallsBackToPrefixGlob(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{run: func([]string) (media.Result, error) {
		_ = os.WriteFile(filepath.Join(dir, "002-Other.mp3.part"), nil, 0o644)
		return media.Result{}, os.WriteFile(filepath.Join(dir, "002-Other.mp3"), []byte("mp3"), 0o644)
	}}
	got, err := newClient(r).Fetch(context.Background(), 2, Entry{ID: "y"}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "002-Other.mp3"), got)
}

func TestFetch_NoFileProduced(t *testing.T) {
	r := &fakeRunner{run: func([]string) (media.Result, error) { return media.Result{}, nil }}
	_, err := newClient(r).Fetch(context.Background(), 1, Entry{ID: "z", Title: "Gone"}, t.TempDir())
	assert.ErrorContains(t, err, "Gone")
}
