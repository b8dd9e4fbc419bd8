package harness

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an invalid worker count or target directory.
	ErrConfiguration = errors.New("configuration error")

	// ErrCapability reports that the platform or filesystem cannot do
	// uncached direct I/O.
	ErrCapability = errors.New("direct I/O not supported")

	// ErrIO reports a read, write, create or delete failure during a run.
	ErrIO = errors.New("i/o error")

	// ErrInvariant reports a harness bug, such as a shared counter whose
	// final value does not match the number of increments issued.
	ErrInvariant = errors.New("invariant violation")
)

// CategoryError attaches the failing benchmark category to an error.
type CategoryError struct {
	Category string
	Err      error
}

func (e *CategoryError) Error() string {
	return fmt.Sprintf("%s benchmark: %v", e.Category, e.Err)
}

func (e *CategoryError) Unwrap() error {
	return e.Err
}

// IOError wraps err as an ErrIO for the given operation and path.
func IOError(op, path string, err error) error {
	return fmt.Errorf("%w: %s %s: %w", ErrIO, op, path, err)
}

// Kind returns the sentinel err belongs to, or nil if it matches none.
func Kind(err error) error {
	for _, kind := range []error{
		ErrConfiguration, ErrCapability, ErrInvariant, ErrIO,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}

	return nil
}
