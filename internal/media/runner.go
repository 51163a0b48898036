package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const stderrSnippetLimit = 512

// Result is the captured outcome of one external command.
type Result struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner abstracts process execution so tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (Result, error)
}

// ExecRunner executes commands via os/exec. On cancellation the whole
// process group is killed, so helpers spawned by the tool (yt-dlp starts
// ffmpeg) die with it. WaitDelay bounds how long Run waits for the output
// pipes after that.
type ExecRunner struct {
	WaitDelay time.Duration
}

// Run executes one command and captures stdout, stderr and the exit code.
// A non-zero exit is returned as *CommandError. When ctx ends first, the
// CommandError wraps ctx.Err().
func (r ExecRunner) Run(ctx context.Context, name string, args ...string) (Result, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = r.WaitDelay
	killProcessGroupOnCancel(cmd)

	err := cmd.Run()
	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		res.ExitCode = -1
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		return res, &CommandError{Name: name, Args: args, ExitCode: res.ExitCode, Stderr: Snippet(res.Stderr), Err: err}
	}
	return res, nil
}

// CommandError describes a failed external command.
type CommandError struct {
	Name     string
	Args     []string
	ExitCode int
	Stderr   string
	Err      error
}

func (e *CommandError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with %d: %v", e.Name, e.ExitCode, e.Err)
	}
	return fmt.Sprintf("%s exited with %d: %s", e.Name, e.ExitCode, e.Stderr)
}

func (e *CommandError) Unwrap() error { return e.Err }

// Snippet trims s and keeps at most the last few hundred bytes, where tools
// usually print the actual failure reason.
func Snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= stderrSnippetLimit {
		return s
	}
	return "..." + s[len(s)-stderrSnippetLimit:]
}
