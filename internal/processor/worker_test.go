package processor

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jo-hoe/gomashup/internal/delivery"
	"github.com/jo-hoe/gomashup/internal/jobs"
	"github.com/jo-hoe/gomashup/internal/mashup"
)

type runnerMock struct {
	mu   sync.Mutex
	seen []jobs.Job
	d    delivery.Deliverer
	err  error
}

func (r *runnerMock) Run(ctx context.Context, job jobs.Job, d delivery.Deliverer, progress mashup.ProgressFunc) (mashup.Result, error) {
	r.mu.Lock()
	r.seen = append(r.seen, job)
	r.d = d
	r.mu.Unlock()
	progress(mashup.Event{Stage: jobs.StageAcquiring, Job: job})
	if r.err != nil {
		return mashup.Result{}, r.err
	}
	return mashup.Result{Job: job, Sources: job.Sources, Receipt: delivery.Receipt{Location: "mailto:" + job.Email}}, nil
}

type deliverMock struct{}

func (deliverMock) Deliver(context.Context, delivery.Artifact) (delivery.Receipt, error) {
	return delivery.Receipt{}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestWorker_Process_Success(t *testing.T) {
	r := &runnerMock{}
	d := deliverMock{}
	w := New(discardLogger(), r, d)

	job := jobs.Job{ID: "job-1", Query: "q", Sources: 12, SegmentSeconds: 25, Email: "u@example.com", CreatedAt: time.Now().UTC()}
	if err := w.Process(context.Background(), jobs.WorkItem{Job: job}); err != nil {
		t.Fatalf("Process error: %v", err)
	}
	if len(r.seen) != 1 || r.seen[0].ID != "job-1" {
		t.Fatalf("runner not called with job: %+v", r.seen)
	}
	if r.d != d {
		t.Fatalf("worker must pass its deliverer to the runner")
	}
}

func TestWorker_Process_FailureIsLoggedWithJobID(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	r := &runnerMock{err: &mashup.Error{Kind: mashup.KindAcquisition, Message: "no usable sources"}}
	w := New(log, r, deliverMock{})

	err := w.Process(context.Background(), jobs.WorkItem{Job: jobs.Job{ID: "job-2"}})
	if !errors.Is(err, mashup.ErrAcquisition) {
		t.Fatalf("expected acquisition error, got %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "job_id=job-2") || !strings.Contains(out, "kind=acquisition") {
		t.Fatalf("log line missing job context: %s", out)
	}
	if len(r.seen) != 1 {
		t.Fatalf("failed jobs must not be retried, runs=%d", len(r.seen))
	}
}
