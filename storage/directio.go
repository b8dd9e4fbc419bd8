package storage

import (
	"fmt"
	"os"
	"unsafe"

	"github.com/weiihann/machbench/harness"
)

// DefaultAlignment is the offset and length boundary used for direct I/O.
// It is a multiple of both 512-byte and 4 KiB sector sizes.
const DefaultAlignment = 4096

// OpenDirect opens path with the page cache bypassed. It returns an
// ErrCapability error when the platform or filesystem refuses uncached
// access; it never falls back to a cached handle.
func OpenDirect(path string, flag int) (*os.File, error) {
	f, err := openDirect(path, flag)
	if err != nil {
		return nil, classify("open", path, err)
	}

	return f, nil
}

// CheckDirect verifies once that path can be read with uncached access by
// issuing a single aligned read at offset zero.
func CheckDirect(path string, alignment int) error {
	f, err := OpenDirect(path, os.O_RDONLY)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := AlignedBlock(alignment, alignment)
	if _, err := f.ReadAt(buf, 0); err != nil {
		return classify("probe read", path, err)
	}

	return nil
}

// AlignedBlock returns a size-byte slice whose first byte sits on an
// alignment boundary in memory.
func AlignedBlock(size, alignment int) []byte {
	buf := make([]byte, size+alignment)

	return alignBuffer(buf, alignment)[:size]
}

func alignBuffer(buf []byte, alignment int) []byte {
	addr := uintptr(unsafe.Pointer(&buf[0]))
	rem := int(addr & uintptr(alignment-1))

	if rem == 0 {
		return buf
	}

	return buf[alignment-rem:]
}

// AlignDown rounds off down to the nearest multiple of alignment.
func AlignDown(off, alignment int64) int64 {
	return off - off%alignment
}

func classify(op, path string, err error) error {
	if unsupported(err) {
		return fmt.Errorf("%w: %s %s: %w", harness.ErrCapability, op, path, err)
	}

	return harness.IOError(op, path, err)
}
