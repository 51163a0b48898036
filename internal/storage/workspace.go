package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/jo-hoe/gomashup/internal/common"
)

// Workspaces creates per-job scratch directories below a base directory.
type Workspaces struct {
	baseDir string
	prefix  string
}

// NewWorkspaces returns a factory rooted at baseDir. An empty baseDir means
// the OS temp directory.
func NewWorkspaces(baseDir, prefix string) *Workspaces {
	if prefix == "" {
		prefix = common.WorkspacePrefix
	}
	return &Workspaces{baseDir: baseDir, prefix: prefix}
}

// Workspace is a uniquely named scratch directory owned by a single job.
type Workspace struct {
	Dir string
}

// Create makes a new workspace with its downloads and segments subdirectories.
// The caller must call Remove when the job finishes.
func (w *Workspaces) Create() (*Workspace, error) {
	if w.baseDir != "" {
		if err := os.MkdirAll(w.baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure workspace base dir: %w", err)
		}
	}
	dir, err := os.MkdirTemp(w.baseDir, w.prefix)
	if err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	ws := &Workspace{Dir: dir}
	for _, sub := range []string{ws.Downloads(), ws.Segments()} {
		if err := os.MkdirAll(sub, 0o755); err != nil {
			_ = os.RemoveAll(dir)
			return nil, fmt.Errorf("create workspace subdir: %w", err)
		}
	}
	return ws, nil
}

// Downloads is where acquired source audio lands.
func (ws *Workspace) Downloads() string {
	return filepath.Join(ws.Dir, common.DownloadsDirName)
}

// Segments is where decoded, truncated segments are written.
func (ws *Workspace) Segments() string {
	return filepath.Join(ws.Dir, common.SegmentsDirName)
}

// Path joins name onto the workspace root.
func (ws *Workspace) Path(name string) string {
	return filepath.Join(ws.Dir, name)
}

// Usage sums the size of all regular files in the workspace.
func (ws *Workspace) Usage() (uint64, error) {
	var total uint64
	err := filepath.WalkDir(ws.Dir, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			info, err := d.Info()
			if err != nil {
				return err
			}
			total += uint64(info.Size())
		}
		return nil
	})
	return total, err
}

// Remove deletes the workspace and everything in it. It is safe to call more
// than once.
func (ws *Workspace) Remove() error {
	if err := os.RemoveAll(ws.Dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", ws.Dir, err)
	}
	return nil
}
