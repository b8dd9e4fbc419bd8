package storage

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// errNoCache marks a failed F_NOCACHE request.
var errNoCache = errors.New("F_NOCACHE rejected")

func openDirect(path string, flag int) (*os.File, error) {
	f, err := os.OpenFile(path, flag, 0o644)
	if err != nil {
		return nil, err
	}

	if _, err := unix.FcntlInt(f.Fd(), unix.F_NOCACHE, 1); err != nil {
		f.Close()

		return nil, errors.Join(errNoCache, err)
	}

	return f, nil
}

func unsupported(err error) bool {
	return errors.Is(err, errNoCache) ||
		errors.Is(err, unix.ENOTSUP) ||
		errors.Is(err, unix.EINVAL)
}
