package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appcfg "github.com/jo-hoe/gomashup/internal/config"
	"github.com/jo-hoe/gomashup/internal/delivery"
	"github.com/jo-hoe/gomashup/internal/driver"
	"github.com/jo-hoe/gomashup/internal/jobs"
	"github.com/jo-hoe/gomashup/internal/mashup"
)

// stubRunner emits the usual progress events and delivers a tiny file.
type stubRunner struct {
	err   error
	calls int
}

func (s *stubRunner) Run(ctx context.Context, job jobs.Job, d delivery.Deliverer, progress mashup.ProgressFunc) (mashup.Result, error) {
	s.calls++
	if s.err != nil {
		return mashup.Result{}, s.err
	}
	progress(mashup.Event{Stage: jobs.StageAcquiring, Job: job})
	progress(mashup.Event{Stage: jobs.StageTransforming, Job: job, Count: job.Sources - 1})
	progress(mashup.Event{Stage: jobs.StageAssembling, Job: job})

	src := filepath.Join(os.TempDir(), job.ID+".mp3")
	if err := os.WriteFile(src, []byte("mp3"), 0o644); err != nil {
		return mashup.Result{}, err
	}
	r, err := d.Deliver(ctx, delivery.Artifact{Path: src, Name: job.OutputName})
	return mashup.Result{Job: job, Receipt: r}, err
}

func newTestApp(t *testing.T, r *stubRunner) (*app, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	return &app{
		stdout: &out,
		stderr: &bytes.Buffer{},
		outDir: t.TempDir(),
		newRunner: func(*slog.Logger, *appcfg.Config) driver.JobRunner {
			return r
		},
	}, &out
}

func TestRun_Success(t *testing.T) {
	r := &stubRunner{}
	a, out := newTestApp(t, r)

	code := a.run(context.Background(), []string{"Sharry Maan", "12", "25", "mix"})
	if code != 0 {
		t.Fatalf("exit code %d, output:\n%s", code, out.String())
	}
	want := []string{
		"[1/4] Downloading 12 videos for singer/query: Sharry Maan",
		"[2/4] Converting completed (downloaded 11 mp3 files).",
		"[3/4] Cutting first 25 seconds from each audio.",
		"[4/4] Merging and exporting to: mix.mp3",
		"Done.",
		"Output file: " + filepath.Join(a.outDir, "mix.mp3"),
	}
	for _, w := range want {
		if !strings.Contains(out.String(), w) {
			t.Fatalf("output missing %q:\n%s", w, out.String())
		}
	}
	if _, err := os.Stat(filepath.Join(a.outDir, "mix.mp3")); err != nil {
		t.Fatalf("output file missing: %v", err)
	}
}

func TestRun_WrongArgCount(t *testing.T) {
	r := &stubRunner{}
	a, out := newTestApp(t, r)
	if code := a.run(context.Background(), []string{"only", "three", "args"}); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.HasPrefix(out.String(), "Error: Incorrect number of parameters.\n") || !strings.Contains(out.String(), "Usage:") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if r.calls != 0 {
		t.Fatalf("runner must not run")
	}
}

func TestRun_ThresholdViolation(t *testing.T) {
	r := &stubRunner{}
	a, out := newTestApp(t, r)
	if code := a.run(context.Background(), []string{"x", "10", "25", "o.mp3"}); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), "Error: Number of videos must be an integer > 10.") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
	if r.calls != 0 {
		t.Fatalf("runner must not run")
	}
	entries, _ := os.ReadDir(a.outDir)
	if len(entries) != 0 {
		t.Fatalf("no output expected, found %d entries", len(entries))
	}
}

func TestRun_PipelineErrorAndCancel(t *testing.T) {
	r := &stubRunner{err: &mashup.Error{Kind: mashup.KindAcquisition, Message: `no usable sources found for "x"`}}
	a, out := newTestApp(t, r)
	if code := a.run(context.Background(), []string{"x", "11", "21", "o"}); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), `Error: no usable sources found for "x"`) {
		t.Fatalf("unexpected output:\n%s", out.String())
	}

	r = &stubRunner{err: context.Canceled}
	a, out = newTestApp(t, r)
	if code := a.run(context.Background(), []string{"x", "11", "21", "o"}); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), "Cancelled by user.") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}

func TestRun_InterruptedStageIsReportedAsCancel(t *testing.T) {
	r := &stubRunner{err: &mashup.Error{
		Kind:    mashup.KindTransform,
		Subject: "001-a.mp3",
		Message: "transform interrupted",
		Err:     context.Canceled,
	}}
	a, out := newTestApp(t, r)
	if code := a.run(context.Background(), []string{"x", "11", "21", "o"}); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(out.String(), "Cancelled by user.") || strings.Contains(out.String(), "Error:") {
		t.Fatalf("unexpected output:\n%s", out.String())
	}
}
