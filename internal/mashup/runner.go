package mashup

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/jo-hoe/gomashup/internal/config"
	"github.com/jo-hoe/gomashup/internal/delivery"
	"github.com/jo-hoe/gomashup/internal/jobs"
	"github.com/jo-hoe/gomashup/internal/media"
	"github.com/jo-hoe/gomashup/internal/metrics"
	"github.com/jo-hoe/gomashup/internal/storage"
	"github.com/jo-hoe/gomashup/internal/ytdlp"
)

// Event reports progress of a running job.
type Event struct {
	Stage jobs.Stage
	Job   jobs.Job
	Count int // sources acquired once Stage is StageTransforming
}

// ProgressFunc receives events as a job advances. It may be nil.
type ProgressFunc func(Event)

// Result summarizes a finished job.
type Result struct {
	Job     jobs.Job
	Output  Output
	Sources int
	Receipt delivery.Receipt
}

// Runner executes one job end to end inside its own scratch workspace.
type Runner struct {
	Log         *slog.Logger
	Tools       []string
	LookPath    media.LookPathFunc
	Workspaces  *storage.Workspaces
	Acquirer    *Acquirer
	Transformer *Transformer
	Assembler   *Assembler
	Metrics     *metrics.Metrics
}

// NewRunner wires the production collaborators from configuration.
func NewRunner(log *slog.Logger, cfg *config.Config, m *metrics.Metrics) *Runner {
	ff := media.NewFFmpeg(cfg.Tools, cfg.Audio)
	return &Runner{
		Log:        log,
		Tools:      []string{cfg.Tools.YTDLP, cfg.Tools.FFmpeg, cfg.Tools.FFprobe},
		Workspaces: storage.NewWorkspaces(cfg.Workspace.Dir, cfg.Workspace.Prefix),
		Acquirer: &Acquirer{
			Log:      log,
			Catalog:  ytdlp.New(cfg.Tools, cfg.Acquisition),
			Metrics:  m,
			Attempts: cfg.Acquisition.ItemAttempts,
			Backoff:  cfg.Acquisition.RetryBackoff,
		},
		Transformer: &Transformer{Log: log, Decoder: ff, Tolerate: cfg.Transform.TolerateDecodeFailures},
		Assembler:   &Assembler{Encoder: ff},
		Metrics:     m,
	}
}

// Run checks the external tools, acquires, truncates and assembles the
// sources, then hands the result to d. The workspace is removed on every
// path, after delivery has finished.
func (r *Runner) Run(ctx context.Context, job jobs.Job, d delivery.Deliverer, progress ProgressFunc) (res Result, err error) {
	log := r.Log.With("job_id", job.ID)
	defer func() {
		if err != nil {
			r.Metrics.Finished(metrics.OutcomeFailed)
			return
		}
		r.Metrics.Finished(metrics.OutcomeCompleted)
	}()
	if progress == nil {
		progress = func(Event) {}
	}

	if err := media.CheckTools(r.LookPath, r.Tools...); err != nil {
		var mt *media.MissingToolError
		if errors.As(err, &mt) {
			return Result{}, newError(KindMissingTool, mt.Tool, err, "%s is required", mt.Tool)
		}
		return Result{}, err
	}

	ws, err := r.Workspaces.Create()
	if err != nil {
		return Result{}, err
	}
	defer func() {
		usage, _ := ws.Usage()
		if rmErr := ws.Remove(); rmErr != nil {
			log.Warn("workspace cleanup failed", "dir", ws.Dir, "err", rmErr)
			return
		}
		log.Debug("workspace removed", "dir", ws.Dir, "usage", humanize.Bytes(usage))
	}()

	progress(Event{Stage: jobs.StageAcquiring, Job: job})
	start := time.Now()
	sources, err := r.Acquirer.Acquire(ctx, job.Query, job.Sources, ws.Downloads())
	r.Metrics.ObserveStage(string(jobs.StageAcquiring), time.Since(start))
	if err != nil {
		return Result{}, err
	}
	log.Info("sources acquired", "requested", job.Sources, "acquired", len(sources))

	progress(Event{Stage: jobs.StageTransforming, Job: job, Count: len(sources)})
	start = time.Now()
	segments, err := r.Transformer.Truncate(ctx, sources, job.SegmentSeconds, ws.Segments())
	r.Metrics.ObserveStage(string(jobs.StageTransforming), time.Since(start))
	if err != nil {
		return Result{}, err
	}

	progress(Event{Stage: jobs.StageAssembling, Job: job, Count: len(segments)})
	start = time.Now()
	out, err := r.Assembler.Assemble(ctx, segments, ws.Path(job.OutputName))
	r.Metrics.ObserveStage(string(jobs.StageAssembling), time.Since(start))
	if err != nil {
		return Result{}, err
	}

	progress(Event{Stage: jobs.StageDelivering, Job: job})
	start = time.Now()
	receipt, err := d.Deliver(ctx, delivery.Artifact{
		JobID:          job.ID,
		Path:           out.Path,
		Name:           job.OutputName,
		Query:          job.Query,
		Sources:        job.Sources,
		SegmentSeconds: job.SegmentSeconds,
		Duration:       out.Duration,
		Email:          job.Email,
	})
	r.Metrics.ObserveStage(string(jobs.StageDelivering), time.Since(start))
	if err != nil {
		if ierr := interrupted(ctx, KindDelivery, job.OutputName); ierr != nil {
			return Result{}, ierr
		}
		return Result{}, newError(KindDelivery, job.OutputName, err, "cannot deliver %s", job.OutputName)
	}

	log.Info("mashup delivered",
		"location", receipt.Location,
		"size", humanize.Bytes(receipt.Size),
		"duration", out.Duration,
		"parts", out.Parts,
	)
	progress(Event{Stage: jobs.StageCompleted, Job: job})
	return Result{Job: job, Output: out, Sources: len(sources), Receipt: receipt}, nil
}
