// Package api provides the public HTTP surface of Catcher: the ingest and
// handshake endpoint, the paginated collection read API, single-event lookup,
// live Server-Sent Events subscriptions and a health probe.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/xraph/catcher"
)

// HeaderRequestID carries the request id on requests and responses.
const HeaderRequestID = "X-Request-Id"

// Handler is the root HTTP handler for the Catcher API.
type Handler struct {
	catcher *catcher.Catcher
	logger  *slog.Logger
	mux     *http.ServeMux

	heartbeat time.Duration
}

// HandlerOption configures a Handler.
type HandlerOption func(*Handler)

// WithHeartbeat sets the interval between keep-alive comments on live
// subscriptions.
func WithHeartbeat(d time.Duration) HandlerOption {
	return func(h *Handler) {
		if d > 0 {
			h.heartbeat = d
		}
	}
}

// NewHandler creates a new API handler over c.
func NewHandler(c *catcher.Catcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		catcher:   c,
		logger:    c.Logger(),
		mux:       http.NewServeMux(),
		heartbeat: HeartbeatInterval,
	}
	for _, opt := range opts {
		opt(h)
	}

	h.registerRoutes()
	return h
}

func (h *Handler) registerRoutes() {
	// Ingest and handshake
	h.mux.HandleFunc("POST /events/{tenantId}/{target}", h.receive)

	// Reads
	h.mux.HandleFunc("GET /events/{tenantId}/{target}", h.listStream)
	h.mux.HandleFunc("GET /events/{tenantId}/{target}/subscribe", h.subscribe)
	h.mux.HandleFunc("GET /events/{tenantId}/{target}/{eventId}", h.getEvent)
	h.mux.HandleFunc("GET /collection/{collectionKey}", h.listCollection)

	h.mux.HandleFunc("GET /healthz", h.health)
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.withMiddleware(h.mux).ServeHTTP(w, r)
}

func (h *Handler) withMiddleware(next http.Handler) http.Handler {
	return h.requestID(h.panicRecovery(h.logging(next)))
}

type requestIDKey struct{}

// RequestID returns the request id assigned to ctx, if any.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey{}).(string)
	return v
}

func (h *Handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderRequestID)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), requestIDKey{}, reqID)))
	})
}

func (h *Handler) logging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rw, r)
		h.logger.InfoContext(r.Context(), "api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rw.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", RequestID(r.Context()),
		)
	})
}

func (h *Handler) panicRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				h.logger.ErrorContext(r.Context(), "panic recovered",
					"error", rec,
					"stack", string(debug.Stack()),
					"request_id", RequestID(r.Context()),
				)
				writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.catcher.Ping(r.Context()); err != nil {
		h.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Flush lets streaming handlers flush through the wrapper.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (rw *responseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// JSON helpers.

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best effort
}
