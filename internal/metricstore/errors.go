package metricstore

import (
	"errors"
	"fmt"
)

var (
	// ErrStorageUnavailable is returned when the backing file cannot be opened
	// or a namespace could not be created within the upgrade budget.
	ErrStorageUnavailable = errors.New("metric storage unavailable")

	// ErrNamespaceMissing is returned by Put and GetAll for a video whose
	// namespace was never opened.
	ErrNamespaceMissing = errors.New("namespace does not exist")

	// ErrDuplicateID is returned when a record id is already stored in the namespace.
	ErrDuplicateID = errors.New("record id already exists")

	// ErrInvalidNamespace rejects names that cannot be used as a namespace.
	ErrInvalidNamespace = errors.New("invalid namespace name")

	// ErrMissingID rejects records without an id.
	ErrMissingID = errors.New("record id is empty")
)

// WriteError is returned by Put.
type WriteError struct {
	Namespace string
	Err       error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("write to namespace %q: %v", e.Namespace, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
