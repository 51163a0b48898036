package delivery

import (
	"context"
	"time"
)

// Deliverer hands a finished mashup to its recipient.
type Deliverer interface {
	Deliver(ctx context.Context, a Artifact) (Receipt, error)
}

// Artifact describes the encoded mashup waiting in the job workspace.
type Artifact struct {
	JobID          string
	Path           string // file in the workspace
	Name           string // final file name
	Query          string
	Sources        int
	SegmentSeconds int
	Duration       time.Duration
	Email          string
}

// Receipt describes where the artifact landed.
type Receipt struct {
	Location string
	Size     uint64
}
