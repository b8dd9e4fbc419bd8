package storage

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

func openDirect(path string, flag int) (*os.File, error) {
	return os.OpenFile(path, flag|unix.O_DIRECT, 0o644)
}

// unsupported reports the errors filesystems without O_DIRECT support
// return, either at open time (tmpfs) or on the first transfer.
func unsupported(err error) bool {
	return errors.Is(err, unix.EINVAL) || errors.Is(err, unix.EOPNOTSUPP)
}
