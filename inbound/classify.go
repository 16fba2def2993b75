// Package inbound classifies callbacks arriving on the ingest endpoint and
// completes push-subscription handshakes.
//
// One URL serves two protocols: SNS-style subscription confirmations and
// arbitrary-payload ingestion. Classification looks only at headers; the
// body is never inspected to decide.
package inbound

import (
	"net/http"
	"strings"
)

// SNS message headers.
const (
	HeaderMessageType = "x-amz-sns-message-type"
	HeaderMessageID   = "x-amz-sns-message-id"

	// HeaderIdempotencyKey lets any producer dedupe its own redeliveries.
	HeaderIdempotencyKey = "Idempotency-Key"
)

// SNS message types.
const (
	MessageTypeSubscriptionConfirmation = "SubscriptionConfirmation"
	MessageTypeNotification             = "Notification"
	MessageTypeUnsubscribeConfirmation  = "UnsubscribeConfirmation"
)

// Kind is the protocol an inbound request speaks.
type Kind int

const (
	// KindIngest is an event to relay. Anything not recognised as a
	// handshake is ingested.
	KindIngest Kind = iota

	// KindHandshake is a subscription confirmation request.
	KindHandshake
)

func (k Kind) String() string {
	switch k {
	case KindHandshake:
		return "handshake"
	default:
		return "ingest"
	}
}

// Classify decides how a request is handled from its headers alone.
func Classify(h http.Header) Kind {
	if h.Get(HeaderMessageType) == MessageTypeSubscriptionConfirmation {
		return KindHandshake
	}
	return KindIngest
}

// IdempotencyKey returns the key used to dedupe a delivery. An explicit
// Idempotency-Key header wins; SNS notifications fall back to their message
// ID, which SNS keeps stable across redeliveries.
func IdempotencyKey(h http.Header) string {
	if key := strings.TrimSpace(h.Get(HeaderIdempotencyKey)); key != "" {
		return key
	}
	if h.Get(HeaderMessageType) == MessageTypeNotification {
		return strings.TrimSpace(h.Get(HeaderMessageID))
	}
	return ""
}
