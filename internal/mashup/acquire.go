package mashup

import (
	"context"
	"log/slog"
	"time"

	"github.com/jo-hoe/gomashup/internal/metrics"
	"github.com/jo-hoe/gomashup/internal/ytdlp"
)

// Catalog searches for and downloads audio. *ytdlp.Client implements it.
type Catalog interface {
	Search(ctx context.Context, query string, limit int) ([]ytdlp.Entry, error)
	Fetch(ctx context.Context, index int, entry ytdlp.Entry, dir string) (string, error)
}

// Acquirer fetches source audio for a query into a workspace directory.
type Acquirer struct {
	Log     *slog.Logger
	Catalog Catalog
	Metrics *metrics.Metrics

	Attempts int           // per item, including the first try
	Backoff  time.Duration // multiplied by the attempt number

	sleep func(ctx context.Context, d time.Duration) error
}

// Acquire searches once and fetches each result in search order. Items that
// keep failing after all attempts are skipped. The result follows completion
// order and is never empty on success.
func (a *Acquirer) Acquire(ctx context.Context, query string, count int, dir string) ([]SourceAudio, error) {
	var entries []ytdlp.Entry
	err := a.retry(ctx, func() error {
		var err error
		entries, err = a.Catalog.Search(ctx, query, count)
		return err
	})
	if err != nil {
		if ierr := interrupted(ctx, KindAcquisition, query); ierr != nil {
			return nil, ierr
		}
		return nil, newError(KindAcquisition, query, err, "search for %q failed", query)
	}
	if len(entries) > count {
		entries = entries[:count]
	}

	out := make([]SourceAudio, 0, len(entries))
	for i, e := range entries {
		var path string
		err := a.retry(ctx, func() error {
			var err error
			path, err = a.Catalog.Fetch(ctx, i+1, e, dir)
			return err
		})
		if ierr := interrupted(ctx, KindAcquisition, query); ierr != nil {
			return nil, ierr
		}
		if err != nil {
			a.Metrics.Source(metrics.SourceFailed)
			a.Log.Warn("skipping source", "index", i+1, "title", e.Title, "err", err)
			continue
		}
		a.Metrics.Source(metrics.SourceFetched)
		out = append(out, SourceAudio{Index: i + 1, Title: e.Title, Path: path})
	}

	if len(out) == 0 {
		return nil, newError(KindAcquisition, query, nil, "no usable sources found for %q", query)
	}
	return out, nil
}

func (a *Acquirer) retry(ctx context.Context, fn func() error) error {
	attempts := a.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := a.sleep
	if sleep == nil {
		sleep = sleepCtx
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if lastErr = fn(); lastErr == nil {
			return nil
		}
		if ctx.Err() != nil || attempt == attempts {
			break
		}
		if err := sleep(ctx, time.Duration(attempt)*a.Backoff); err != nil {
			return err
		}
	}
	return lastErr
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
