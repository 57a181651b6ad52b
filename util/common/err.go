// Package common holds the error taxonomy shared by services and controllers.
package common

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/taskboard/taskboard/logger"
)

// Error kinds. Services return a *CodedError wrapping one of these; the
// controller layer maps it onto the response envelope.
var (
	ErrValidation   = errors.New("validation error")
	ErrBadRequest   = errors.New("bad request")
	ErrConflict     = errors.New("conflict")
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrServer       = errors.New("server error")
)

var kindStatus = map[error]int{
	ErrValidation:   http.StatusBadRequest,
	ErrBadRequest:   http.StatusBadRequest,
	ErrConflict:     http.StatusConflict,
	ErrNotFound:     http.StatusNotFound,
	ErrUnauthorized: http.StatusUnauthorized,
	ErrForbidden:    http.StatusForbidden,
	ErrServer:       http.StatusInternalServerError,
}

// CodedError is a user-facing failure with the HTTP status it should surface as.
type CodedError struct {
	Kind   error
	Status int
	Msg    string
}

func (e *CodedError) Error() string {
	return e.Msg
}

func (e *CodedError) Unwrap() error {
	return e.Kind
}

// Fail builds a CodedError whose status is the default for kind.
func Fail(kind error, msg string) error {
	return &CodedError{Kind: kind, Status: StatusOf(kind), Msg: msg}
}

// FailWithStatus builds a CodedError of the given kind that surfaces as status.
func FailWithStatus(kind error, status int, msg string) error {
	return &CodedError{Kind: kind, Status: status, Msg: msg}
}

// StatusOf returns the HTTP status for an error, 500 when it carries no kind.
func StatusOf(err error) int {
	var ce *CodedError
	if errors.As(err, &ce) && ce.Status != 0 {
		return ce.Status
	}
	for kind, status := range kindStatus {
		if errors.Is(err, kind) {
			return status
		}
	}
	return http.StatusInternalServerError
}

// IsCoded reports whether err is safe to show to the client verbatim.
func IsCoded(err error) bool {
	var ce *CodedError
	return errors.As(err, &ce)
}

func NewErrorf(format string, a ...any) error {
	msg := fmt.Sprintf(format, a...)
	return errors.New(msg)
}

func NewError(a ...any) error {
	msg := fmt.Sprintln(a...)
	return errors.New(msg)
}

// Combine joins non-nil errors, returning nil when there are none.
func Combine(errs ...error) error {
	return errors.Join(errs...)
}

func Recover(msg string) any {
	panicErr := recover()
	if panicErr != nil {
		if msg != "" {
			logger.Error(msg, "panic:", panicErr)
		}
	}
	return panicErr
}
