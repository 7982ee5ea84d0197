package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates the entity is in a state that forbids the operation.
	ErrConflict = errors.New("conflict")
)
