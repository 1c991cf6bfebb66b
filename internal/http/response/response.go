// Package response writes JSON bodies for handlers that live outside huma:
// middleware rejections and the event stream. Error bodies use the same
// {"error": "..."} shape as the huma operations.
package response

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"

	domainerrors "github.com/Arax734/bookshare-app-sub001/internal/errors"
	"github.com/Arax734/bookshare-app-sub001/internal/store"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON writes data as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any, logger *slog.Logger) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil && logger != nil {
		logger.Error("Failed to encode JSON response", "error", err)
	}
}

// Error writes an error response with the given status code.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, ErrorBody{Error: message}, nil)
}

// Unauthorized writes a 401 Unauthorized response.
func Unauthorized(w http.ResponseWriter, message string) {
	Error(w, http.StatusUnauthorized, message)
}

// TooManyRequests writes a 429 response with a Retry-After hint in seconds.
func TooManyRequests(w http.ResponseWriter, message string, retryAfter time.Duration) {
	if retryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(int(retryAfter.Round(time.Second).Seconds())))
	}
	Error(w, http.StatusTooManyRequests, message)
}

// InternalError writes a 500 Internal Server Error response.
func InternalError(w http.ResponseWriter, message string) {
	Error(w, http.StatusInternalServerError, message)
}

// HandleError writes an appropriate HTTP response based on the error type.
// Domain and store errors keep their status; anything else becomes a
// logged 500.
func HandleError(w http.ResponseWriter, err error, logger *slog.Logger) {
	var domErr *domainerrors.Error
	if errors.As(err, &domErr) {
		status := domErr.HTTPStatus()
		if status >= http.StatusInternalServerError && logger != nil {
			logger.Error("Request failed", "error", err)
		}
		Error(w, status, domErr.Message)
		return
	}

	var storeErr *store.Error
	if errors.As(err, &storeErr) {
		if storeErr.HTTPCode() >= http.StatusInternalServerError && logger != nil {
			logger.Error("Storage failure", "error", err)
		}
		Error(w, storeErr.HTTPCode(), storeErr.Message)
		return
	}

	if logger != nil {
		logger.Error("Unhandled error", "error", err)
	}
	InternalError(w, "internal server error")
}
