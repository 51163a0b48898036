package delivery

import (
	"archive/zip"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jo-hoe/gomashup/internal/config"
)

func writeArtifact(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestFileDeliverer_MovesArtifact(t *testing.T) {
	ws := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "out")
	src := writeArtifact(t, ws, "work.mp3", "encoded")

	r, err := FileDeliverer{Dir: outDir}.Deliver(context.Background(), Artifact{Path: src, Name: "mix.mp3"})
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(outDir, "mix.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "encoded", string(got))
	assert.Equal(t, uint64(len("encoded")), r.Size)
	assert.True(t, filepath.IsAbs(r.Location))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err), "source should be moved")
}

func TestFileDeliverer_MissingSourceLeavesNoOutput(t *testing.T) {
	outDir := t.TempDir()
	_, err := FileDeliverer{Dir: outDir}.Deliver(context.Background(), Artifact{Path: filepath.Join(outDir, "nope"), Name: "mix.mp3"})
	require.Error(t, err)
	entries, _ := os.ReadDir(outDir)
	assert.Empty(t, entries)
}

func TestCopyInto(t *testing.T) {
	dir := t.TempDir()
	src := writeArtifact(t, dir, "a.mp3", "abc")
	dst := filepath.Join(dir, "b.mp3")
	require.NoError(t, copyInto(src, dst))
	b, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(b))
}

func TestArchive_SingleDeflateEntry(t *testing.T) {
	dir := t.TempDir()
	src := writeArtifact(t, dir, "Singer-mashup.mp3", "payload payload payload")
	dst := filepath.Join(dir, "Singer-mashup.zip")
	require.NoError(t, Archive(src, dst))

	zr, err := zip.OpenReader(dst)
	require.NoError(t, err)
	defer zr.Close()
	require.Len(t, zr.File, 1)
	f := zr.File[0]
	assert.Equal(t, "Singer-mashup.mp3", f.Name)
	assert.Equal(t, zip.Deflate, f.Method)
	rc, err := f.Open()
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "payload payload payload", string(b))
}

func TestArchive_MissingSource(t *testing.T) {
	dir := t.TempDir()
	err := Archive(filepath.Join(dir, "missing.mp3"), filepath.Join(dir, "x.zip"))
	require.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "x.zip"))
	assert.True(t, os.IsNotExist(statErr))
}

type fakeSender struct {
	msgs []Message
	zip  []string // entry names seen in the attachment
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg Message) error {
	f.msgs = append(f.msgs, msg)
	if zr, err := zip.OpenReader(msg.AttachmentPath); err == nil {
		for _, e := range zr.File {
			f.zip = append(f.zip, e.Name)
		}
		_ = zr.Close()
	}
	return f.err
}

func TestMailDeliverer_ZipsAndRendersTemplates(t *testing.T) {
	cfg := config.Default()
	sender := &fakeSender{}
	d, err := NewMailDeliverer(sender, cfg.Mail, cfg.Output.ArchiveExt)
	require.NoError(t, err)

	ws := t.TempDir()
	src := writeArtifact(t, ws, "Sharry Mann-mashup.mp3", "encoded")
	a := Artifact{
		JobID:          "job-1",
		Path:           src,
		Name:           "Sharry Mann-mashup.mp3",
		Query:          "Sharry Mann",
		Sources:        12,
		SegmentSeconds: 25,
		Duration:       5 * time.Minute,
		Email:          "user@example.com",
	}
	r, err := d.Deliver(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "mailto:user@example.com", r.Location)
	assert.NotZero(t, r.Size)

	require.Len(t, sender.msgs, 1)
	msg := sender.msgs[0]
	assert.Equal(t, "user@example.com", msg.To)
	assert.Equal(t, "Mashup Result", msg.Subject)
	assert.Contains(t, msg.Body, "Singer: Sharry Mann")
	assert.Contains(t, msg.Body, "Videos: 12")
	assert.Contains(t, msg.Body, "Duration: 25s")
	assert.Equal(t, "Sharry Mann-mashup.zip", msg.AttachmentName)
	assert.Equal(t, []string{"Sharry Mann-mashup.mp3"}, sender.zip)
}

func TestMailDeliverer_Errors(t *testing.T) {
	cfg := config.Default()
	sender := &fakeSender{err: errors.New("smtp down")}
	d, err := NewMailDeliverer(sender, cfg.Mail, "")
	require.NoError(t, err)

	ws := t.TempDir()
	src := writeArtifact(t, ws, "a.mp3", "x")

	_, err = d.Deliver(context.Background(), Artifact{Path: src, Name: "a.mp3"})
	assert.ErrorContains(t, err, "no recipient")

	_, err = d.Deliver(context.Background(), Artifact{Path: src, Name: "a.mp3", Email: "u@example.com"})
	assert.ErrorContains(t, err, "smtp down")
}

func TestNewMailDeliverer_BadTemplate(t *testing.T) {
	cfg := config.Default().Mail
	cfg.BodyTemplate = "{{ .Query "
	_, err := NewMailDeliverer(&fakeSender{}, cfg, ".zip")
	assert.Error(t, err)
}
