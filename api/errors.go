package api

import (
	"errors"
	"net/http"

	"github.com/xraph/catcher"
)

// Machine-readable error codes returned in the "code" field of error bodies.
const (
	codeMalformedHandshake = "MalformedHandshake"
	codeInvalidPayload     = "InvalidPayload"
	codeInvalidRoute       = "InvalidRoute"
	codeInvalidPageSize    = "InvalidPageSize"
	codeInvalidToken       = "InvalidToken"
	codeEventNotFound      = "EventNotFound"
	codeRateLimited        = "RateLimited"
	codeStoreUnavailable   = "StoreUnavailable"
	codeInternal           = "Internal"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// mapError converts catcher sentinel errors to an HTTP status and error code.
func mapError(err error) (int, string) {
	switch {
	case errors.Is(err, catcher.ErrMalformedHandshake):
		return http.StatusBadRequest, codeMalformedHandshake
	case errors.Is(err, catcher.ErrInvalidPayload):
		return http.StatusBadRequest, codeInvalidPayload
	case errors.Is(err, catcher.ErrInvalidRoute):
		return http.StatusBadRequest, codeInvalidRoute
	case errors.Is(err, catcher.ErrInvalidPageSize):
		return http.StatusBadRequest, codeInvalidPageSize
	case errors.Is(err, catcher.ErrInvalidToken):
		return http.StatusBadRequest, codeInvalidToken
	case errors.Is(err, catcher.ErrEventNotFound):
		return http.StatusNotFound, codeEventNotFound
	case errors.Is(err, catcher.ErrRateLimited):
		return http.StatusTooManyRequests, codeRateLimited
	case errors.Is(err, catcher.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, codeStoreUnavailable
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// writeErr writes err as a structured error response. Server-side failures
// are logged and their detail withheld from the client.
func (h *Handler) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := mapError(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"code", code,
			"error", err,
			"request_id", RequestID(r.Context()),
		)
		msg = http.StatusText(status)
	}
	if status == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", "1")
	}
	writeError(w, status, code, msg)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Code: code})
}
