//go:build !unix

package media

import "os/exec"

// Only the direct child is killed here; WaitDelay covers leftover helpers.
func killProcessGroupOnCancel(*exec.Cmd) {}
