package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyExists is returned by strict create when the name is live.
	ErrAlreadyExists = errors.New("queue: already exists")
	// ErrQueueMismatch is returned when an item from another queue is passed
	// to Invalidate or Delete.
	ErrQueueMismatch = errors.New("queue: item belongs to a different queue")
	// ErrEncoding wraps codec failures on enqueue and decode.
	ErrEncoding = errors.New("queue: encoding failed")
	// ErrNotFound is returned by lookups that require the name to be live.
	ErrNotFound = errors.New("queue: not found")
	// ErrClosed is returned by any operation on a closed queue.
	ErrClosed = errors.New("queue: closed")
	// ErrInvalidName is returned for names that cannot be used as a storage
	// location.
	ErrInvalidName = errors.New("queue: invalid name")
)

// StorageError reports a failure of the underlying table store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("queue: storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

func storageErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &StorageError{Op: op, Err: err}
}

func encodingErr(err error) error {
	return fmt.Errorf("%w: %w", ErrEncoding, err)
}
