package processor

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jo-hoe/gomashup/internal/delivery"
	"github.com/jo-hoe/gomashup/internal/jobs"
	"github.com/jo-hoe/gomashup/internal/mashup"
)

// JobRunner executes a validated job. *mashup.Runner implements it.
type JobRunner interface {
	Run(ctx context.Context, job jobs.Job, d delivery.Deliverer, progress mashup.ProgressFunc) (mashup.Result, error)
}

// Worker implements jobs.Processor for queued web submissions.
type Worker struct {
	Log       *slog.Logger
	Runner    JobRunner
	Deliverer delivery.Deliverer
}

// Ensure Worker implements jobs.Processor
var _ jobs.Processor = (*Worker)(nil)

func New(log *slog.Logger, r JobRunner, d delivery.Deliverer) *Worker {
	return &Worker{
		Log:       log,
		Runner:    r,
		Deliverer: d,
	}
}

// Process runs one job to completion. Failures are logged and returned to
// the queue; the submitter has already been answered and nothing is retried.
func (w *Worker) Process(ctx context.Context, item jobs.WorkItem) error {
	job := item.Job
	log := w.Log.With("job_id", job.ID)

	res, err := w.Runner.Run(ctx, job, w.Deliverer, func(e mashup.Event) {
		log.Debug("stage changed", "stage", e.Stage, "count", e.Count)
	})
	if err != nil {
		log.Error("mashup failed",
			"stage", string(jobs.StageFailed),
			"kind", mashup.KindOf(err),
			"query", job.Query,
			"err", err,
		)
		return fmt.Errorf("job %s: %w", job.ID, err)
	}

	log.Info("mashup sent",
		"stage", string(jobs.StageCompleted),
		"sources", res.Sources,
		"location", res.Receipt.Location,
	)
	return nil
}
