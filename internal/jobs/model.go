package jobs

import (
	"time"
)

// Stage represents the lifecycle stage of a mashup job.
type Stage string

const (
	StageQueued       Stage = "queued"
	StageAcquiring    Stage = "acquiring"
	StageTransforming Stage = "transforming"
	StageAssembling   Stage = "assembling"
	StageDelivering   Stage = "delivering"
	StageCompleted    Stage = "completed"
	StageFailed       Stage = "failed"
)

// Job describes a single validated mashup request. It is passed by value and
// never modified after Validate returns it.
type Job struct {
	ID             string    // UUIDv4, assigned by the driver
	Query          string    // search query (singer name), trimmed and non-empty
	Sources        int       // number of sources to acquire
	SegmentSeconds int       // leading seconds kept from each source
	OutputName     string    // sanitized file name including the audio extension
	Email          string    // delivery address, web submissions only
	CreatedAt      time.Time // creation time
}

// SegmentDuration returns the per-source cut length.
func (j Job) SegmentDuration() time.Duration {
	return time.Duration(j.SegmentSeconds) * time.Second
}
