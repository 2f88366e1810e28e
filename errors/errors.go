package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers that need to branch on failure
// class rather than message text.
type Kind string

const (
	KindPrecondition Kind = "precondition"
	KindTransport    Kind = "transport"
	KindProcessing   Kind = "processing"
	KindAuth         Kind = "auth"
	KindParse        Kind = "parse"
	KindConflict     Kind = "conflict"
	KindNotFound     Kind = "not_found"
	KindInternal     Kind = "internal"
)

type AppError struct {
	Kind    Kind   `json:"-"`
	Code    int    `json:"-"`
	Message string `json:"error"`
	Op      string `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of err, or KindInternal for untyped errors.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Precondition marks input rejected before any network activity: missing
// credential, unsupported file type, file over the size ceiling.
func Precondition(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindPrecondition,
		Code:    http.StatusBadRequest,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Transport marks a failure talking to the remote endpoint.
func Transport(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindTransport,
		Code:    http.StatusBadGateway,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Processing marks a staged asset that reached a failure state or exceeded
// the polling bound.
func Processing(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindProcessing,
		Code:    http.StatusBadGateway,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Auth marks a credential rejected by the remote endpoint. Callers should
// prompt for a new credential rather than retry transmission.
func Auth(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindAuth,
		Code:    http.StatusUnauthorized,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

// Parse marks an empty or malformed model response.
func Parse(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindParse,
		Code:    http.StatusBadGateway,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Conflict(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindConflict,
		Code:    http.StatusConflict,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func NotFound(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindNotFound,
		Code:    http.StatusNotFound,
		Message: message,
		Op:      op,
		Err:     err,
	}
}

func Internal(op string, err error, message string) *AppError {
	return &AppError{
		Kind:    KindInternal,
		Code:    http.StatusInternalServerError,
		Message: message,
		Op:      op,
		Err:     err,
	}
}
