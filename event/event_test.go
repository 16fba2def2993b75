package event

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/xraph/catcher/id"
)

func TestEventJSON_TextPayload(t *testing.T) {
	evt := Event{
		TenantID:   "T1",
		ID:         id.NewEventID(),
		Target:     "orders",
		Payload:    []byte(`{"sku":"A1"}`),
		ReceivedAt: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}

	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}

	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		t.Fatal(err)
	}
	if m["accountId"] != "T1" || m["target"] != "orders" || m["eventId"] != evt.ID.String() {
		t.Fatalf("unexpected wire shape: %s", raw)
	}
	if m["payload"] != `{"sku":"A1"}` {
		t.Fatalf("expected payload passed through as string, got %v", m["payload"])
	}
	if _, ok := m["payloadEncoding"]; ok {
		t.Fatal("text payloads should not carry an encoding")
	}

	var back Event
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back.Payload, evt.Payload) || back.ID.String() != evt.ID.String() {
		t.Fatalf("round trip mismatch: %+v", back)
	}
}

func TestEventJSON_BinaryPayload(t *testing.T) {
	evt := Event{
		TenantID: "T1",
		ID:       id.NewEventID(),
		Target:   "blobs",
		Payload:  []byte{0xff, 0xfe, 0x00, 0x01},
	}

	raw, err := json.Marshal(evt)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(raw), `"payloadEncoding":"base64"`) {
		t.Fatalf("expected base64 encoding flag: %s", raw)
	}

	var back Event
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(back.Payload, evt.Payload) {
		t.Fatalf("expected %v, got %v", evt.Payload, back.Payload)
	}
}

func TestEventJSON_UnknownEncoding(t *testing.T) {
	var evt Event
	err := json.Unmarshal([]byte(`{"payload":"x","payloadEncoding":"rot13"}`), &evt)
	if err == nil {
		t.Fatal("expected error for unknown encoding")
	}
}

func TestParseStream(t *testing.T) {
	tests := []struct {
		key     string
		want    Stream
		wantErr bool
	}{
		{key: "T1:orders", want: Stream{TenantID: "T1", Target: "orders"}},
		{key: "acme-co:billing.v2", want: Stream{TenantID: "acme-co", Target: "billing.v2"}},
		{key: "T1", wantErr: true},
		{key: ":orders", wantErr: true},
		{key: "T1:", wantErr: true},
		{key: "T1:orders:extra", wantErr: true},
		{key: "T 1:orders", wantErr: true},
		{key: "T1:" + strings.Repeat("x", 101), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, err := ParseStream(tt.key)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error, got %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Fatalf("expected %+v, got %+v", tt.want, got)
			}
			if got.Key() != tt.key {
				t.Fatalf("Key() = %q, want %q", got.Key(), tt.key)
			}
		})
	}
}
