//go:build !windows

// Package output writes the compiler's assembly text to disk through
// the lowest-level syscalls available, so the CLI's nonzero-exit-on-
// any-error contract extends to a failed fsync, not just an in-memory
// emission failure.
package output

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// Write creates (or truncates) path, writes data to it, and fsyncs
// before closing, so a caller that sees a nil error knows the bytes
// reached stable storage.
func Write(path string, data []byte) error {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("output: open %s: %w", path, err)
	}

	defer unix.Close(fd)

	if _, err := unix.Write(fd, data); err != nil {
		return fmt.Errorf("output: write %s: %w", path, err)
	}

	if err := unix.Fsync(fd); err != nil {
		return fmt.Errorf("output: fsync %s: %w", path, err)
	}

	return nil
}
