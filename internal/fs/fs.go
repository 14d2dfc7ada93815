package fs

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
)

func CloseOrLog(c io.Closer, what string) {
	if err := c.Close(); err != nil {
		slog.Error("failed to close: "+what, "err", err)
	}
}

// EnsureDir creates dir (and any missing parents).
func EnsureDir(dir string) error {
	return os.MkdirAll(dir, 0o755)
}

// RenameOrMove renames src => dst.
//
// It prefers os.Rename (atomic within the same filesystem). If the operation
// fails due to a cross-device move (EXDEV), it falls back to copy+sync+remove,
// which works across different filesystems/mounts (e.g. a NAS output root).
func RenameOrMove(src, dst string) error {
	if err := os.Rename(src, dst); err != nil {
		if isCrossDeviceError(err) {
			if err2 := copyFileContentsSync(src, dst); err2 != nil {
				return fmt.Errorf("cross-device move: copy %s -> %s: %w", src, dst, err2)
			}
			if err2 := os.Remove(src); err2 != nil {
				return fmt.Errorf("cross-device move: remove %s: %w", src, err2)
			}
			return nil
		}
		return err
	}
	return nil
}

// MoveFileNoClobber moves src => dst, refusing to overwrite an existing dst.
func MoveFileNoClobber(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination already exists: %s", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat destination %s: %w", dst, err)
	}
	return RenameOrMove(src, dst)
}

// MoveDirNoClobber relocates the directory src to dst, refusing to overwrite
// an existing dst. On a cross-device failure it falls back to moving the
// directory's regular files one by one and removing src afterwards.
func MoveDirNoClobber(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination already exists: %s", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat destination %s: %w", dst, err)
	}

	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !isCrossDeviceError(err) {
		return err
	}

	entries, err := os.ReadDir(src)
	if err != nil {
		return fmt.Errorf("cross-device move: read %s: %w", src, err)
	}
	if err := EnsureDir(dst); err != nil {
		return fmt.Errorf("cross-device move: create %s: %w", dst, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			return fmt.Errorf("cross-device move: unexpected subdirectory %q in %s", entry.Name(), src)
		}
		from := filepath.Join(src, entry.Name())
		to := filepath.Join(dst, entry.Name())
		if err := copyFileContentsSync(from, to); err != nil {
			return fmt.Errorf("cross-device move: copy %s -> %s: %w", from, to, err)
		}
		if err := os.Remove(from); err != nil {
			return fmt.Errorf("cross-device move: remove %s: %w", from, err)
		}
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("cross-device move: remove %s: %w", src, err)
	}
	return nil
}

func copyFileContentsSync(src, dst string) error {
	st, err := os.Stat(src)
	if err != nil {
		return err
	}

	// Preserve basic permissions (best-effort; some mounts may not support it fully).
	mode := st.Mode() & os.ModePerm

	// Preserve mtime always; atime is best-effort (platform-specific).
	mtime := st.ModTime()
	atime := mtime
	if t, ok := getAtime(st); ok {
		atime = t
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer CloseOrLog(in, src)

	// Create dst with source perms; Chmod after create to avoid umask differences.
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}

	_, copyErr := io.Copy(out, in)
	syncErr := out.Sync()
	closeErr := out.Close()

	if copyErr != nil {
		_ = os.Remove(dst)
		return copyErr
	}
	if syncErr != nil {
		_ = os.Remove(dst)
		return syncErr
	}
	if closeErr != nil {
		_ = os.Remove(dst)
		return closeErr
	}

	if err := os.Chmod(dst, mode); err != nil {
		_ = os.Remove(dst)
		return err
	}

	// Some FS/mounts may not support setting times; best-effort.
	_ = os.Chtimes(dst, atime, mtime)

	return nil
}
