package delivery

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileDeliverer moves the artifact into Dir.
type FileDeliverer struct {
	Dir string
}

// Deliver renames the artifact to Dir/Name, copying through a temp file in
// Dir when a rename is not possible. The destination only appears once it
// is complete.
func (d FileDeliverer) Deliver(ctx context.Context, a Artifact) (Receipt, error) {
	if err := ctx.Err(); err != nil {
		return Receipt{}, err
	}
	dst := filepath.Join(d.Dir, a.Name)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return Receipt{}, fmt.Errorf("ensure output dir: %w", err)
	}
	if err := os.Rename(a.Path, dst); err != nil {
		if err := copyInto(a.Path, dst); err != nil {
			return Receipt{}, err
		}
	}
	fi, err := os.Stat(dst)
	if err != nil {
		return Receipt{}, fmt.Errorf("stat output: %w", err)
	}
	abs, err := filepath.Abs(dst)
	if err != nil {
		abs = dst
	}
	return Receipt{Location: abs, Size: uint64(fi.Size())}, nil
}

func copyInto(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open artifact: %w", err)
	}
	defer in.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), ".gomashup-*")
	if err != nil {
		return fmt.Errorf("create temp output: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, in); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("copy artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp output: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod output: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}
