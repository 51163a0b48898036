// Package driver turns raw submissions into jobs, either running them in the
// foreground or handing them to the background queue.
package driver

import (
	"context"
	"errors"
	"time"

	"github.com/jo-hoe/gomashup/internal/delivery"
	"github.com/jo-hoe/gomashup/internal/jobs"
	"github.com/jo-hoe/gomashup/internal/mashup"
	"github.com/jo-hoe/gomashup/internal/metrics"
	"github.com/jo-hoe/gomashup/internal/util"
)

// Driver accepts a raw submission.
type Driver interface {
	Submit(ctx context.Context, in jobs.Input) (Receipt, error)
}

// Receipt describes the outcome of a submission.
type Receipt struct {
	JobID    string
	Accepted bool   // handed to the background queue
	Location string // written output, foreground runs only
	Result   mashup.Result
}

// JobRunner executes a validated job. *mashup.Runner implements it.
type JobRunner interface {
	Run(ctx context.Context, job jobs.Job, d delivery.Deliverer, progress mashup.ProgressFunc) (mashup.Result, error)
}

// Enqueuer accepts work without blocking. *jobs.Queue implements it.
type Enqueuer interface {
	Enqueue(item jobs.WorkItem) error
}

// ReasonQueueFull labels rejections caused by a full queue.
const ReasonQueueFull = "queue"

func newJob(in jobs.Input, rules jobs.Rules, m *metrics.Metrics) (jobs.Job, error) {
	job, err := jobs.Validate(in, rules)
	if err != nil {
		var ve *jobs.ValidationError
		if errors.As(err, &ve) {
			m.Rejected(ve.Field)
		}
		return jobs.Job{}, err
	}
	job.ID = util.NewID()
	job.CreatedAt = time.Now().UTC()
	return job, nil
}

// Sync runs the job in the caller's goroutine and writes the output into Dir.
type Sync struct {
	Rules    jobs.Rules
	Runner   JobRunner
	Dir      string
	Progress mashup.ProgressFunc
	Metrics  *metrics.Metrics
}

var _ Driver = (*Sync)(nil)

func (s *Sync) Submit(ctx context.Context, in jobs.Input) (Receipt, error) {
	job, err := newJob(in, s.Rules, s.Metrics)
	if err != nil {
		return Receipt{}, err
	}
	s.Metrics.Submitted()
	res, err := s.Runner.Run(ctx, job, delivery.FileDeliverer{Dir: s.Dir}, s.Progress)
	if err != nil {
		return Receipt{JobID: job.ID}, err
	}
	return Receipt{JobID: job.ID, Location: res.Receipt.Location, Result: res}, nil
}

// Async validates the submission and queues it for a background worker.
type Async struct {
	Rules   jobs.Rules
	Queue   Enqueuer
	Metrics *metrics.Metrics
}

var _ Driver = (*Async)(nil)

// Submit returns as soon as the job is queued. It returns jobs.ErrQueueFull
// when no worker slot is available.
func (a *Async) Submit(_ context.Context, in jobs.Input) (Receipt, error) {
	job, err := newJob(in, a.Rules, a.Metrics)
	if err != nil {
		return Receipt{}, err
	}
	if err := a.Queue.Enqueue(jobs.WorkItem{Job: job}); err != nil {
		if errors.Is(err, jobs.ErrQueueFull) {
			a.Metrics.Rejected(ReasonQueueFull)
		}
		return Receipt{JobID: job.ID}, err
	}
	a.Metrics.Submitted()
	return Receipt{JobID: job.ID, Accepted: true}, nil
}
