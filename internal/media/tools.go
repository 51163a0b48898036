package media

import (
	"fmt"
	"os/exec"
)

// MissingToolError reports an external executable that is not installed.
type MissingToolError struct {
	Tool string
}

func (e *MissingToolError) Error() string {
	return fmt.Sprintf("%s not found in PATH; install it and retry", e.Tool)
}

// LookPathFunc resolves an executable name to a path.
type LookPathFunc func(file string) (string, error)

// CheckTools returns a *MissingToolError for the first name that lookPath
// cannot resolve. A nil lookPath uses exec.LookPath.
func CheckTools(lookPath LookPathFunc, names ...string) error {
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	for _, n := range names {
		if _, err := lookPath(n); err != nil {
			return &MissingToolError{Tool: n}
		}
	}
	return nil
}
