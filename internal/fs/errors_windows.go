//go:build windows

package fs

import (
	"errors"
	"os"
	"syscall"
)

const errNotSameDevice syscall.Errno = 17 // ERROR_NOT_SAME_DEVICE

func isCrossDeviceError(err error) bool {
	var linkErr *os.LinkError
	if !errors.As(err, &linkErr) {
		return false
	}
	if errors.Is(linkErr.Err, errNotSameDevice) {
		return true
	}
	return errors.Is(linkErr.Err, syscall.EXDEV)
}
