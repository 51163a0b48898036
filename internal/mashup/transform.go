package mashup

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"
)

// Decoder probes and cuts audio files. *media.FFmpeg implements it.
type Decoder interface {
	Probe(ctx context.Context, path string) (time.Duration, error)
	Cut(ctx context.Context, src, dst string, max time.Duration) error
}

// Transformer reduces every source to its leading segment.
type Transformer struct {
	Log     *slog.Logger
	Decoder Decoder
	// Tolerate skips undecodable sources instead of failing the job, as long
	// as at least one segment remains.
	Tolerate bool
}

// Truncate keeps the first seconds of each source, or the whole source when
// it is shorter. Output order matches input order.
func (t *Transformer) Truncate(ctx context.Context, sources []SourceAudio, seconds int, dir string) ([]Segment, error) {
	limit := time.Duration(seconds) * time.Second
	out := make([]Segment, 0, len(sources))
	for i, src := range sources {
		if ierr := interrupted(ctx, KindTransform, ""); ierr != nil {
			return nil, ierr
		}
		seg, err := t.cut(ctx, src, limit, filepath.Join(dir, fmt.Sprintf("seg_%03d.wav", i+1)))
		if err != nil {
			if ierr := interrupted(ctx, KindTransform, filepath.Base(src.Path)); ierr != nil {
				return nil, ierr
			}
			if !t.Tolerate {
				return nil, err
			}
			t.Log.Warn("skipping undecodable source", "file", filepath.Base(src.Path), "err", err)
			continue
		}
		out = append(out, seg)
	}
	if len(out) == 0 {
		return nil, newError(KindTransform, "", nil, "no source could be decoded")
	}
	return out, nil
}

func (t *Transformer) cut(ctx context.Context, src SourceAudio, limit time.Duration, dst string) (Segment, error) {
	name := filepath.Base(src.Path)
	d, err := t.Decoder.Probe(ctx, src.Path)
	if err != nil {
		return Segment{}, newError(KindTransform, name, err, "cannot decode %s", name)
	}
	if d > limit {
		d = limit
	}
	if err := t.Decoder.Cut(ctx, src.Path, dst, d); err != nil {
		return Segment{}, newError(KindTransform, name, err, "cannot decode %s", name)
	}
	return Segment{Source: src, Path: dst, Duration: d}, nil
}
