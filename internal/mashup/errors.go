package mashup

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies pipeline failures.
type Kind string

const (
	KindMissingTool Kind = "missing_tool"
	KindAcquisition Kind = "acquisition"
	KindTransform   Kind = "transform"
	KindAssembly    Kind = "assembly"
	KindExport      Kind = "export"
	KindDelivery    Kind = "delivery"
)

// Sentinels for errors.Is checks against an *Error of the matching kind.
var (
	ErrMissingTool = errors.New("required tool missing")
	ErrAcquisition = errors.New("acquisition failed")
	ErrTransform   = errors.New("transform failed")
	ErrAssembly    = errors.New("assembly failed")
	ErrExport      = errors.New("export failed")
	ErrDelivery    = errors.New("delivery failed")
)

var sentinels = map[Kind]error{
	KindMissingTool: ErrMissingTool,
	KindAcquisition: ErrAcquisition,
	KindTransform:   ErrTransform,
	KindAssembly:    ErrAssembly,
	KindExport:      ErrExport,
	KindDelivery:    ErrDelivery,
}

// Error is a stage-aware pipeline failure. Subject names the offending
// tool, file or query when there is one.
type Error struct {
	Kind    Kind
	Subject string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches the sentinel of the error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

func newError(kind Kind, subject string, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Subject: subject, Message: fmt.Sprintf(format, args...), Err: err}
}

// interrupted returns ctx's error as a failure of kind once ctx has ended,
// and nil otherwise.
func interrupted(ctx context.Context, kind Kind, subject string) error {
	if err := ctx.Err(); err != nil {
		return newError(kind, subject, err, "%s interrupted", kind)
	}
	return nil
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
