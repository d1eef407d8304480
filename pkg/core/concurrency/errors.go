package concurrency

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidConfiguration is returned when a pool is built with fewer than one worker
	// or an unknown drain policy
	ErrInvalidConfiguration = errors.New("invalid worker pool configuration")

	// ErrPoolStopped is returned by Submit once shutdown has begun
	ErrPoolStopped = errors.New("worker pool is stopped")

	// ErrNilWorkItem is returned when submitting a nil WorkItem
	ErrNilWorkItem = errors.New("work item cannot be nil")
)

// PanicError carries a panic recovered from a work item
type PanicError struct {
	Value interface{}
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work item panicked: %v", e.Value)
}

// Unwrap returns the panic value when it was itself an error
func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}
