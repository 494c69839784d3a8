package store

import (
	"fmt"

	"nereus/pkg/api"
)

// NotFoundError returns a new ErrNotFound
func NotFoundError(what string) error {
	return ErrNotFound{what}
}

// ErrNotFound is the error returned when something requested could not be found.
// This error should not be retried.
type ErrNotFound struct {
	what string
}

func (err ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", err.what)
}

// ErrInvalidTransition is the error returned when a job status change is not allowed.
type ErrInvalidTransition struct {
	From api.Status
	To   api.Status
}

func (err ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid job status transition from %s to %s", err.From, err.To)
}
