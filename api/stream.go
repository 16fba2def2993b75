package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/xraph/catcher"
	"github.com/xraph/catcher/bus"
	"github.com/xraph/catcher/event"
	"github.com/xraph/catcher/id"
)

// HeartbeatInterval is the default interval between SSE heartbeat comments.
const HeartbeatInterval = 15 * time.Second

// replayBatch is how many stored events are read per replay round trip.
const replayBatch = 100

// subscribe streams a stream's events as Server-Sent Events. Stored events
// after the optional "after" event id are replayed first, then live events
// follow. Each event is written at most once per connection.
//
// Live events can arrive out of id order, and a slow connection can have
// events dropped by the bus. Whenever the subscription reports new drops
// the store is scanned again from the starting cursor and anything not yet
// written is sent.
//
// SSE format:
//
//	id: {eventId}
//	event: event
//	data: {json}
//
// A heartbeat comment ": ping\n\n" is sent on every heartbeat tick. The
// stream ends when the client disconnects or the Catcher shuts down.
func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	str := event.Stream{TenantID: r.PathValue("tenantId"), Target: r.PathValue("target")}

	after := r.URL.Query().Get("after")
	if after != "" {
		if _, err := id.ParseEventID(after); err != nil {
			h.writeErr(w, r, fmt.Errorf("%w: after: %w", catcher.ErrInvalidToken, err))
			return
		}
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, codeInternal, "streaming not supported")
		return
	}

	// Subscribe before replaying so nothing committed in between is missed.
	sub, err := h.catcher.Subscribe(str)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	defer sub.Close()

	if m := h.catcher.Metrics(); m != nil {
		m.Subscribers.Inc()
		defer func() {
			m.Subscribers.Dec()
			m.DroppedUpdates.Add(float64(sub.Dropped()))
		}()
	}

	// Streams outlive the server's write timeout.
	_ = http.NewResponseController(w).SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	s := &sseStream{
		h:       h,
		w:       w,
		flusher: flusher,
		str:     str,
		after:   after,
		sent:    make(map[string]struct{}),
	}
	ctx := r.Context()

	if err := s.replay(ctx); err != nil {
		s.logReplayErr(ctx, err)
		return
	}
	s.live(ctx, sub)
}

// sseStream is the per-connection state of one subscription.
type sseStream struct {
	h       *Handler
	w       http.ResponseWriter
	flusher http.Flusher
	str     event.Stream
	after   string

	// sent holds every event id written on this connection.
	sent map[string]struct{}
}

// replay writes every stored event after the starting cursor that has not
// been written yet.
func (s *sseStream) replay(ctx context.Context) error {
	cursor := s.after
	for {
		events, err := s.h.catcher.Since(ctx, s.str, cursor, replayBatch)
		if err != nil {
			return err
		}

		for _, evt := range events {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			cursor = evt.ID.String()
			if err := s.write(evt); err != nil {
				return err
			}
		}
		s.flusher.Flush()

		if len(events) < replayBatch {
			return nil
		}
	}
}

// live writes events from sub until the client goes away.
func (s *sseStream) live(ctx context.Context, sub bus.Subscription) {
	heartbeat := time.NewTicker(s.h.heartbeat)
	defer heartbeat.Stop()

	var dropped uint64
	for {
		if n := sub.Dropped(); n != dropped {
			dropped = n
			if err := s.replay(ctx); err != nil {
				s.logReplayErr(ctx, err)
				return
			}
		}

		select {
		case <-ctx.Done():
			return

		case evt, ok := <-sub.Events():
			if !ok {
				return
			}
			if err := s.write(evt); err != nil {
				return
			}
			s.flusher.Flush()

		case <-heartbeat.C:
			if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
				return
			}
			s.flusher.Flush()
		}
	}
}

// write sends evt unless it was already sent on this connection.
func (s *sseStream) write(evt *event.Event) error {
	key := evt.ID.String()
	if _, dup := s.sent[key]; dup {
		return nil
	}
	if err := writeSSEEvent(s.w, evt); err != nil {
		return err
	}
	s.sent[key] = struct{}{}
	return nil
}

func (s *sseStream) logReplayErr(ctx context.Context, err error) {
	if ctx.Err() != nil {
		return
	}
	s.h.logger.WarnContext(ctx, "subscription replay failed",
		"stream", s.str.Key(),
		"error", err,
	)
}

// writeSSEEvent writes a single event in SSE format.
func writeSSEEvent(w http.ResponseWriter, evt *event.Event) error {
	data, err := json.Marshal(evt)
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(w, "id: %s\nevent: event\ndata: %s\n\n", evt.ID, data)
	return err
}
