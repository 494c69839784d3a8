package api

import (
	"fmt"
	"net/http"

	"github.com/pkg/errors"
)

// ErrorKind classifies errors surfaced to callers
type ErrorKind string

const (
	KindValidation          ErrorKind = "validation"
	KindBadArchive          ErrorKind = "bad_archive"
	KindNoUsableInput       ErrorKind = "no_usable_input"
	KindUnauthorized        ErrorKind = "unauthorized"
	KindNotFound            ErrorKind = "not_found"
	KindEmptyResult         ErrorKind = "empty_result"
	KindUpstreamUnavailable ErrorKind = "upstream_unavailable"
	KindPackaging           ErrorKind = "packaging"
	KindExecution           ErrorKind = "execution"
)

var kindStatus = map[ErrorKind]int{
	KindValidation:          http.StatusBadRequest,
	KindBadArchive:          http.StatusBadRequest,
	KindNoUsableInput:       http.StatusBadRequest,
	KindUnauthorized:        http.StatusUnauthorized,
	KindNotFound:            http.StatusNotFound,
	KindEmptyResult:         http.StatusNotFound,
	KindUpstreamUnavailable: http.StatusServiceUnavailable,
	KindPackaging:           http.StatusInternalServerError,
	KindExecution:           http.StatusInternalServerError,
}

// Error is an error with a kind, its message is meant to be shown to callers.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

// NewError returns a new Error of the given kind
func NewError(kind ErrorKind, format string, args ...interface{}) error {
	return Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError returns a new Error of the given kind wrapping err
func WrapError(err error, kind ErrorKind, message string) error {
	return Error{Kind: kind, Message: message, Err: err}
}

func (err Error) Error() string {
	if err.Err != nil {
		return fmt.Sprintf("%s: %s", err.Message, err.Err)
	}
	return err.Message
}

// Unwrap returns the wrapped error
func (err Error) Unwrap() error {
	return err.Err
}

// HTTPStatus returns the http status code matching the error kind
func (err Error) HTTPStatus() int {
	if s, ok := kindStatus[err.Kind]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// KindOf returns the kind of err if it is or wraps an Error, empty string otherwise.
func KindOf(err error) ErrorKind {
	var e Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
