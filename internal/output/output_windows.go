//go:build windows

package output

import "os"

// Write creates (or truncates) path and writes data to it. Windows has
// no Fsync-equivalent in this backend's syscall layer, so this falls
// back to the stdlib, matching how the teacher's own vfs package keeps
// a plain os.File-backed implementation beside its fsnotify one.
func Write(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
