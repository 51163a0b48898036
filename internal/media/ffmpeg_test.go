package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/gomashup/internal/config"
)

// fakeRunner records invocations and delegates to injected behavior.
type fakeRunner struct {
	calls [][]string
	run   func(name string, args ...string) (Result, error)
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) (Result, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.run == nil {
		return Result{}, nil
	}
	return f.run(name, args...)
}

func argValue(args []string, flag string) string {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == flag {
			return args[i+1]
		}
	}
	return ""
}

func newTestFFmpeg(r Runner) *FFmpeg {
	cfg := config.Default()
	return &FFmpeg{FFmpegPath: "ffmpeg-x", FFprobePath: "ffprobe-x", Audio: cfg.Audio, Runner: r}
}

func TestProbe_ParsesFormatDuration(t *testing.T) {
	r := &fakeRunner{run: func(name string, args ...string) (Result, error) {
		return Result{Stdout: `{"format":{"duration":"12.500000"}}`}, nil
	}}
	d, err := newTestFFmpeg(r).Probe(context.Background(), "/tmp/a.mp3")
	require.NoError(t, err)
	assert.Equal(t, 12500*time.Millisecond, d)
	require.Len(t, r.calls, 1)
	assert.Equal(t, "ffprobe-x", r.calls[0][0])
	assert.Equal(t, "/tmp/a.mp3", r.calls[0][len(r.calls[0])-1])
}

func TestParseProbeDuration_Rejects(t *testing.T) {
	for _, out := range []string{`not json`, `{"format":{}}`, `{"format":{"duration":"N/A"}}`, `{"format":{"duration":"0"}}`} {
		_, err := parseProbeDuration(out)
		assert.Error(t, err, out)
	}
}

func TestProbe_CommandFailureNamesFile(t *testing.T) {
	r := &fakeRunner{run: func(string, ...string) (Result, error) {
		return Result{ExitCode: 1}, &CommandError{Name: "ffprobe", ExitCode: 1, Stderr: "Invalid data", Err: errors.New("exit status 1")}
	}}
	_, err := newTestFFmpeg(r).Probe(context.Background(), "/x/broken.mp3")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.mp3")
	var ce *CommandError
	assert.True(t, errors.As(err, &ce))
}

func TestCut_PassesLimitAndPCMOutput(t *testing.T) {
	r := &fakeRunner{}
	err := newTestFFmpeg(r).Cut(context.Background(), "in.mp3", "out.wav", 21*time.Second)
	require.NoError(t, err)
	args := r.calls[0][1:]
	assert.Equal(t, "21", argValue(args, "-t"))
	assert.Equal(t, "pcm_s16le", argValue(args, "-c:a"))
	assert.Equal(t, "in.mp3", argValue(args, "-i"))
	assert.Equal(t, "out.wav", args[len(args)-1])
}

func TestConcat_WritesListAndEncodes(t *testing.T) {
	dir := t.TempDir()
	parts := []string{filepath.Join(dir, "seg_000.wav"), filepath.Join(dir, "it's.wav")}
	dst := filepath.Join(dir, "nested", "out", "mix.mp3")

	r := &fakeRunner{run: func(name string, args ...string) (Result, error) {
		return Result{}, os.WriteFile(args[len(args)-1], []byte("mp3"), 0o644)
	}}
	require.NoError(t, newTestFFmpeg(r).Concat(context.Background(), parts, dst))

	args := r.calls[0][1:]
	listPath := argValue(args, "-i")
	assert.Equal(t, filepath.Join(dir, "concat.txt"), listPath)
	assert.Equal(t, "libmp3lame", argValue(args, "-c:a"))
	assert.Equal(t, "192k", argValue(args, "-b:a"))

	list, err := os.ReadFile(listPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(list)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "file '"+parts[0]+"'", lines[0])
	assert.Contains(t, lines[1], `it'\''s.wav`)
}

func TestConcat_MissingOutputFails(t *testing.T) {
	dir := t.TempDir()
	r := &fakeRunner{}
	err := newTestFFmpeg(r).Concat(context.Background(), []string{filepath.Join(dir, "a.wav")}, filepath.Join(dir, "o.mp3"))
	assert.Error(t, err)
}

func TestConcat_EmptyInput(t *testing.T) {
	err := newTestFFmpeg(&fakeRunner{}).Concat(context.Background(), nil, "o.mp3")
	assert.Error(t, err)
}

func TestCheckTools(t *testing.T) {
	lookPath := func(name string) (string, error) {
		if name == "ffmpeg" {
			return "/usr/bin/ffmpeg", nil
		}
		return "", errors.New("not found")
	}
	require.NoError(t, CheckTools(lookPath, "ffmpeg"))

	err := CheckTools(lookPath, "ffmpeg", "yt-dlp", "ffprobe")
	var mt *MissingToolError
	require.True(t, errors.As(err, &mt))
	assert.Equal(t, "yt-dlp", mt.Tool)
}

func TestSnippet_KeepsTail(t *testing.T) {
	long := strings.Repeat("a", 1000) + "REASON"
	s := Snippet(long)
	assert.True(t, strings.HasSuffix(s, "REASON"))
	assert.LessOrEqual(t, len(s), stderrSnippetLimit+3)
	assert.Equal(t, "short", Snippet("  short \n"))
}
