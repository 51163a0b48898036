package mashup

import (
	"context"
	"time"
)

// Encoder concatenates decoded parts into the final file. *media.FFmpeg
// implements it.
type Encoder interface {
	Concat(ctx context.Context, parts []string, dst string) error
}

// Assembler joins segments end to end and exports the result.
type Assembler struct {
	Encoder Encoder
}

// Assemble concatenates segments in order into target. The output duration
// is the sum of the segment durations.
func (a *Assembler) Assemble(ctx context.Context, segments []Segment, target string) (Output, error) {
	if len(segments) == 0 {
		return Output{}, newError(KindAssembly, "", nil, "no segments to assemble")
	}
	parts := make([]string, len(segments))
	var total time.Duration
	for i, s := range segments {
		parts[i] = s.Path
		total += s.Duration
	}
	if err := a.Encoder.Concat(ctx, parts, target); err != nil {
		if ierr := interrupted(ctx, KindAssembly, target); ierr != nil {
			return Output{}, ierr
		}
		return Output{}, newError(KindExport, target, err, "cannot write %s", target)
	}
	return Output{Path: target, Duration: total, Parts: len(parts)}, nil
}
