package webutil

import (
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
)

// AppHandler is a handler function that returns an error instead of
// writing failure responses itself.
type AppHandler func(w http.ResponseWriter, r *http.Request) error

// MakeHandler adapts an AppHandler to http.HandlerFunc. Returned errors
// are logged and mapped to a standardized JSON error response:
// *HTTPError keeps its code, sql.ErrNoRows becomes 404, and anything
// else is a generic 500 that leaks no internal detail.
func MakeHandler(handler AppHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := handler(w, r)
		if err == nil {
			return
		}

		var statusCode int
		var publicMessage string
		var httpErr *HTTPError

		switch {
		case errors.As(err, &httpErr):
			statusCode = httpErr.Code
			publicMessage = httpErr.Message
			logLevel := slog.LevelWarn
			if statusCode >= 500 {
				logLevel = slog.LevelError
			}
			attrs := []any{
				"code", httpErr.Code,
				"msg", httpErr.Message,
				"path", r.URL.Path,
				"method", r.Method,
			}
			if cause := errors.Unwrap(httpErr); cause != nil && cause.Error() != publicMessage {
				attrs = append(attrs, "cause", cause)
			}
			slog.Log(r.Context(), logLevel, "client error response", attrs...)

		case errors.Is(err, sql.ErrNoRows):
			statusCode = http.StatusNotFound
			publicMessage = msgNotFound
			slog.Info("resource not found", "path", r.URL.Path, "method", r.Method, "error", err)

		default:
			statusCode = http.StatusInternalServerError
			publicMessage = msgInternalServer
			slog.Error("unhandled internal error", "path", r.URL.Path, "method", r.Method, "error", err)
		}

		RespondWithError(w, statusCode, publicMessage)
	}
}
