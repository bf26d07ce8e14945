package pipeline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// writeAtomic writes dst through a temp file in the same directory that is
// renamed into place once write succeeds, so readers never see a partial
// image. It returns the number of bytes written.
func writeAtomic(dst string, write func(w io.Writer) error) (int64, error) {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".image-convert-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once renamed

	if err := write(tmp); err != nil {
		tmp.Close()
		return 0, err
	}
	fi, err := tmp.Stat()
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to stat temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return 0, fmt.Errorf("failed to set permissions: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return 0, fmt.Errorf("failed to move output into place: %w", err)
	}
	return fi.Size(), nil
}

// upToDate reports whether dst exists and is at least as new as src.
func upToDate(src, dst string) bool {
	dfi, err := os.Stat(dst)
	if err != nil {
		return false
	}
	sfi, err := os.Stat(src)
	if err != nil {
		return false
	}
	return !dfi.ModTime().Before(sfi.ModTime())
}
