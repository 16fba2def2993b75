package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/inbound"
)

// receive handles every callback delivered to a stream: subscription
// handshakes are confirmed, anything else is relayed as an event.
func (h *Handler) receive(w http.ResponseWriter, r *http.Request) {
	tenantID, target := r.PathValue("tenantId"), r.PathValue("target")

	body, err := h.readBody(w, r)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	switch inbound.Classify(r.Header) {
	case inbound.KindHandshake:
		if _, err := h.catcher.Confirm(r.Context(), tenantID, target, body); err != nil {
			h.writeErr(w, r, err)
			return
		}
		w.WriteHeader(http.StatusOK)

	default:
		evt, err := h.catcher.Relay(r.Context(), catcher.RelayInput{
			TenantID:       tenantID,
			Target:         target,
			Payload:        body,
			ContentType:    r.Header.Get("Content-Type"),
			IdempotencyKey: inbound.IdempotencyKey(r.Header),
		})
		if err != nil {
			h.writeErr(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, evt)
	}
}

// readBody reads the whole request body, refusing bodies larger than the
// configured payload limit.
func (h *Handler) readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	defer r.Body.Close()

	limit := h.catcher.MaxPayloadBytes()
	src := r.Body
	if limit > 0 {
		src = http.MaxBytesReader(w, r.Body, limit)
	}
	body, err := io.ReadAll(src)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: body exceeds %d bytes", catcher.ErrInvalidPayload, tooLarge.Limit)
		}
		return nil, fmt.Errorf("%w: read body: %w", catcher.ErrInvalidPayload, err)
	}
	return body, nil
}

func (h *Handler) getEvent(w http.ResponseWriter, r *http.Request) {
	str := event.Stream{TenantID: r.PathValue("tenantId"), Target: r.PathValue("target")}

	evt, err := h.catcher.Get(r.Context(), str, r.PathValue("eventId"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, evt)
}
