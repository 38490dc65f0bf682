package webutil

import (
	"errors"
	"net/http"
)

const (
	msgBadRequest     = "Bad Request"
	msgNotFound       = "Resource not found"
	msgInternalServer = "Internal Server Error"
	msgUnauthorized   = "Unauthorized"
	msgForbidden      = "Forbidden"
	msgConflict       = "Conflict"
)

// HTTPError is an error with an HTTP status code and a user-facing
// message. The message is what goes on the wire; the cause stays in
// the logs.
type HTTPError struct {
	cause   error
	Code    int
	Message string
}

func (he HTTPError) Error() string {
	return he.Message
}

func (he HTTPError) Unwrap() error {
	return he.cause
}

func defaultMessageIfEmpty(msg, defaultVal string) string {
	if msg == "" {
		return defaultVal
	}
	return msg
}

func NewHTTPError(code int, message string) *HTTPError {
	return &HTTPError{
		cause:   errors.New(message),
		Code:    code,
		Message: message,
	}
}

// NewHTTPErrorWrap attaches an underlying cause to be logged alongside
// the user-facing message.
func NewHTTPErrorWrap(code int, message string, cause error) *HTTPError {
	return &HTTPError{
		cause:   cause,
		Code:    code,
		Message: message,
	}
}

func ErrBadRequest(message string) *HTTPError {
	return NewHTTPError(http.StatusBadRequest, defaultMessageIfEmpty(message, msgBadRequest))
}

func ErrNotFound(message string) *HTTPError {
	return NewHTTPError(http.StatusNotFound, defaultMessageIfEmpty(message, msgNotFound))
}

func ErrUnauthorized(message string) *HTTPError {
	return NewHTTPError(http.StatusUnauthorized, defaultMessageIfEmpty(message, msgUnauthorized))
}

func ErrForbidden(message string) *HTTPError {
	return NewHTTPError(http.StatusForbidden, defaultMessageIfEmpty(message, msgForbidden))
}

func ErrConflict(message string) *HTTPError {
	return NewHTTPError(http.StatusConflict, defaultMessageIfEmpty(message, msgConflict))
}

func ErrConflictWrap(message string, cause error) *HTTPError {
	return NewHTTPErrorWrap(http.StatusConflict, defaultMessageIfEmpty(message, msgConflict), cause)
}

func ErrNotFoundWrap(message string, cause error) *HTTPError {
	return NewHTTPErrorWrap(http.StatusNotFound, defaultMessageIfEmpty(message, msgNotFound), cause)
}

func ErrInternalServer(message string) *HTTPError {
	return NewHTTPError(http.StatusInternalServerError, defaultMessageIfEmpty(message, msgInternalServer))
}
