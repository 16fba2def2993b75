package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// ErrMalformedHandshake is returned when a confirmation body is not JSON or
// carries no SubscribeURL.
var ErrMalformedHandshake = errors.New("catcher: malformed subscription handshake")

const maxResponseBody = 1024 // drained and discarded

// Confirmation is the part of a subscription confirmation body the relay
// acts on.
type Confirmation struct {
	SubscribeURL string `json:"SubscribeURL"`
	TopicArn     string `json:"TopicArn,omitempty"`
	MessageID    string `json:"MessageId,omitempty"`
}

// ParseConfirmation decodes a confirmation body and checks it carries a
// SubscribeURL. The URL itself is judged when the callback is attempted.
func ParseConfirmation(body []byte) (*Confirmation, error) {
	var c Confirmation
	if err := json.Unmarshal(body, &c); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedHandshake, err)
	}
	if c.SubscribeURL == "" {
		return nil, fmt.Errorf("%w: missing SubscribeURL", ErrMalformedHandshake)
	}
	return &c, nil
}

// Result captures the outcome of a confirmation callback.
type Result struct {
	StatusCode int
	Error      string
	LatencyMs  int
}

// OK reports whether the callback was answered with a 2xx status.
func (r Result) OK() bool {
	return r.Error == "" && r.StatusCode >= 200 && r.StatusCode < 300
}

// Confirmer completes subscription handshakes with one outbound GET.
type Confirmer struct {
	client *http.Client
	logger *slog.Logger
}

// NewConfirmer returns a Confirmer whose callbacks are bounded by timeout.
func NewConfirmer(timeout time.Duration, logger *slog.Logger) *Confirmer {
	return NewConfirmerWithClient(&http.Client{Timeout: timeout}, logger)
}

// NewConfirmerWithClient returns a Confirmer using client for callbacks.
func NewConfirmerWithClient(client *http.Client, logger *slog.Logger) *Confirmer {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Confirmer{client: client, logger: logger}
}

// Confirm parses body and calls its SubscribeURL exactly once. Only a
// malformed body is an error: whatever the callback does, the handshake is
// considered acknowledged once attempted, and the outcome is reported in
// the Result for logging and metrics.
//
// The callback is detached from ctx's cancellation so a disconnecting
// caller cannot abort it; it is bounded by the client timeout instead.
func (c *Confirmer) Confirm(ctx context.Context, body []byte) (Result, error) {
	conf, err := ParseConfirmation(body)
	if err != nil {
		return Result{}, err
	}

	res := c.call(context.WithoutCancel(ctx), conf.SubscribeURL)
	if res.OK() {
		c.logger.InfoContext(ctx, "subscription confirmed",
			"topic_arn", conf.TopicArn,
			"status", res.StatusCode,
			"latency_ms", res.LatencyMs,
		)
	} else {
		c.logger.WarnContext(ctx, "subscription confirmation failed",
			"topic_arn", conf.TopicArn,
			"status", res.StatusCode,
			"error", res.Error,
			"latency_ms", res.LatencyMs,
		)
	}
	return res, nil
}

func (c *Confirmer) call(ctx context.Context, target string) Result {
	u, err := url.Parse(target)
	if err != nil {
		return Result{Error: fmt.Sprintf("parse SubscribeURL: %v", err)}
	}
	// Only absolute http(s) URLs are ever dialed.
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return Result{Error: fmt.Sprintf("SubscribeURL %q is not an absolute http(s) URL", target)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, http.NoBody)
	if err != nil {
		return Result{Error: fmt.Sprintf("create request: %v", err)}
	}
	req.Header.Set("User-Agent", "Catcher/1.0")

	start := time.Now()
	resp, err := c.client.Do(req) //nolint:gosec // G107: the URL comes from the subscribing publisher.
	latency := int(time.Since(start).Milliseconds())
	if err != nil {
		return Result{Error: err.Error(), LatencyMs: latency}
	}
	defer resp.Body.Close()

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBody))

	res := Result{StatusCode: resp.StatusCode, LatencyMs: latency}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		res.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
	}
	return res
}
