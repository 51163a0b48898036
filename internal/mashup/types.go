package mashup

import "time"

// SourceAudio is one acquired item in the job workspace.
type SourceAudio struct {
	Index int
	Title string
	Path  string
}

// Segment is a decoded, truncated piece of a source.
type Segment struct {
	Source   SourceAudio
	Path     string
	Duration time.Duration
}

// Output is the encoded mashup.
type Output struct {
	Path     string
	Duration time.Duration
	Parts    int
}
