//go:build !linux && !darwin

package storage

import (
	"errors"
	"os"
	"runtime"
)

var errNoDirect = errors.New("uncached I/O is not implemented on " + runtime.GOOS)

func openDirect(string, int) (*os.File, error) {
	return nil, errNoDirect
}

func unsupported(err error) bool {
	return errors.Is(err, errNoDirect)
}
