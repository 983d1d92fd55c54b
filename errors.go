package ouro

import (
	"errors"
	"fmt"

	"github.com/ouroheap/ouro/internal/slab"
)

var (
	// ErrOutOfMemory is returned when an allocation cannot be admitted, either
	// because the object limit is reached or because the resource controller
	// refused the storage reservation. Allocation failures are fatal for the
	// requested object: nothing is registered.
	ErrOutOfMemory = errors.New("out of memory")

	// ErrClosed is returned when allocating from a closed heap.
	ErrClosed = errors.New("heap closed")

	// ErrCollecting is returned by Close when a collection pass is running,
	// which can only happen when Close is called from a finalize hook.
	ErrCollecting = errors.New("collection in progress")
)

// ErrObjectLimit indicates the configured live-object cap was hit.
//
// It unwraps to ErrOutOfMemory.
type ErrObjectLimit struct {
	Limit int
}

func (e *ErrObjectLimit) Error() string {
	return fmt.Sprintf("object limit reached: %d", e.Limit)
}

func (e *ErrObjectLimit) Unwrap() error { return ErrOutOfMemory }

func translateError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, slab.ErrSlotsExhausted) {
		return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
	}
	if errors.Is(err, slab.ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}

	// Anything else out of the slab is a refused storage reservation.
	return fmt.Errorf("%w: %w", ErrOutOfMemory, err)
}
