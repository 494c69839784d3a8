package client

import "fmt"

// HTTPError is an HTTP Error
type HTTPError struct {
	Message interface{} `json:"message"`
}

func (err HTTPError) Error() string {
	return fmt.Sprintf("%v", err.Message)
}

// ErrNotFound is the error returned when something requested could not be found.
type ErrNotFound struct {
	what string
}

func (err ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found", err.what)
}

// ErrBadRequest is the error returned when there is something wrong with the request.
type ErrBadRequest struct {
	error
}

func (err ErrBadRequest) Error() string {
	return err.error.Error()
}

// ErrUnavailable is the error returned when the worker cannot be reached.
type ErrUnavailable struct {
	error
}

func (err ErrUnavailable) Error() string {
	return err.error.Error()
}

// Unwrap returns the transport error
func (err ErrUnavailable) Unwrap() error {
	return err.error
}

// ErrStatus is the error returned when the worker answers with an unexpected status code.
type ErrStatus struct {
	Code    int
	Message string
}

func (err ErrStatus) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", err.Code, err.Message)
}
