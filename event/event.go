package event

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/xraph/catcher/id"
)

// Event is the canonical record of one relayed callback.
//
// Payload is opaque: the relay never interprets it beyond optional schema
// validation, and consumers decide what it means.
type Event struct {
	// TenantID is the account that owns the stream.
	TenantID string

	// ID is the unique, creation-ordered TypeID of this event.
	ID id.ID

	// Target names the stream within the tenant's namespace.
	Target string

	// Payload is the raw request body.
	Payload []byte

	// ContentType is the Content-Type the payload arrived with.
	ContentType string

	// IdempotencyKey deduplicates redeliveries on the same stream.
	IdempotencyKey string

	// ReceivedAt is when the relay accepted the event.
	ReceivedAt time.Time
}

// Stream returns the (tenant, target) pair the event belongs to.
func (e *Event) Stream() Stream {
	return Stream{TenantID: e.TenantID, Target: e.Target}
}

// Payload encodings used on the wire.
const (
	EncodingText   = ""
	EncodingBase64 = "base64"
)

// wireEvent is the JSON shape of an Event. Payloads that are valid UTF-8 are
// written verbatim as a string; anything else is base64 and flagged.
type wireEvent struct {
	AccountID       string    `json:"accountId"`
	EventID         id.ID     `json:"eventId"`
	Target          string    `json:"target"`
	Payload         string    `json:"payload"`
	PayloadEncoding string    `json:"payloadEncoding,omitempty"`
	ContentType     string    `json:"contentType,omitempty"`
	IdempotencyKey  string    `json:"idempotencyKey,omitempty"`
	ReceivedAt      time.Time `json:"receivedAt"`
}

// MarshalJSON implements json.Marshaler.
func (e Event) MarshalJSON() ([]byte, error) {
	w := wireEvent{
		AccountID:      e.TenantID,
		EventID:        e.ID,
		Target:         e.Target,
		ContentType:    e.ContentType,
		IdempotencyKey: e.IdempotencyKey,
		ReceivedAt:     e.ReceivedAt,
	}
	if utf8.Valid(e.Payload) {
		w.Payload = string(e.Payload)
	} else {
		w.Payload = base64.StdEncoding.EncodeToString(e.Payload)
		w.PayloadEncoding = EncodingBase64
	}
	return json.Marshal(w)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Event) UnmarshalJSON(data []byte) error {
	var w wireEvent
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	payload := []byte(w.Payload)
	switch w.PayloadEncoding {
	case EncodingText:
	case EncodingBase64:
		decoded, err := base64.StdEncoding.DecodeString(w.Payload)
		if err != nil {
			return fmt.Errorf("event: decode payload: %w", err)
		}
		payload = decoded
	default:
		return fmt.Errorf("event: unknown payload encoding %q", w.PayloadEncoding)
	}

	*e = Event{
		TenantID:       w.AccountID,
		ID:             w.EventID,
		Target:         w.Target,
		Payload:        payload,
		ContentType:    w.ContentType,
		IdempotencyKey: w.IdempotencyKey,
		ReceivedAt:     w.ReceivedAt,
	}
	return nil
}

// Stream identifies one tenant's named event stream.
type Stream struct {
	TenantID string
	Target   string
}

// streamSeparator joins tenant and target in a collection key. It is not a
// valid name character, so keys split unambiguously.
const streamSeparator = ":"

var validName = regexp.MustCompile(`^[A-Za-z0-9_.-]{1,100}$`)

// Validate checks that both halves are safe to embed in storage keys.
func (s Stream) Validate() error {
	if !validName.MatchString(s.TenantID) {
		return fmt.Errorf("invalid tenant id %q", s.TenantID)
	}
	if !validName.MatchString(s.Target) {
		return fmt.Errorf("invalid target %q", s.Target)
	}
	return nil
}

// Key returns the collection key for the stream, "{tenant}:{target}".
func (s Stream) Key() string {
	return s.TenantID + streamSeparator + s.Target
}

func (s Stream) String() string { return s.Key() }

// ParseStream parses and validates a collection key produced by Stream.Key.
func ParseStream(key string) (Stream, error) {
	tenantID, target, ok := strings.Cut(key, streamSeparator)
	if !ok {
		return Stream{}, fmt.Errorf("collection key %q: missing %q", key, streamSeparator)
	}
	s := Stream{TenantID: tenantID, Target: target}
	if err := s.Validate(); err != nil {
		return Stream{}, fmt.Errorf("collection key %q: %w", key, err)
	}
	return s, nil
}

// ScanOpts bounds an ordered scan over one stream.
type ScanOpts struct {
	// After is the exclusive lower bound on event ID. Empty starts at the beginning.
	After string

	// Limit caps the number of events returned. Must be positive.
	Limit int
}
