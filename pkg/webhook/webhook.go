// Package webhook posts run reports to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/riceball-k/textfsm-parse-to-csv/pkg/report"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 10 * time.Second

// maxResponseBody caps how much of the endpoint's reply is kept.
const maxResponseBody = 1 << 20

// Trigger decides when a report is sent.
type Trigger string

const (
	// TriggerAlways sends after every completed run.
	TriggerAlways Trigger = "always"
	// TriggerOnFailures sends only when at least one pair failed.
	TriggerOnFailures Trigger = "on_failures"
	// TriggerNever disables the webhook.
	TriggerNever Trigger = "never"
)

// ParseTrigger validates a trigger name. Empty means TriggerOnFailures.
func ParseTrigger(s string) (Trigger, error) {
	switch Trigger(s) {
	case "", TriggerOnFailures:
		return TriggerOnFailures, nil
	case TriggerAlways, TriggerNever:
		return Trigger(s), nil
	default:
		return "", fmt.Errorf("invalid webhook trigger %q (must be always, on_failures or never)", s)
	}
}

// ShouldSend reports whether a report should be sent under trigger t.
// Aborted runs are never sent.
func (t Trigger) ShouldSend(r *report.Report) bool {
	if r.Summary.State == "aborted" {
		return false
	}
	switch t {
	case TriggerAlways:
		return true
	case TriggerOnFailures, "":
		return r.HasFailures()
	default:
		return false
	}
}

// Payload is the JSON body posted to the endpoint.
type Payload struct {
	Event  string         `json:"event"`
	SentAt time.Time      `json:"sent_at"`
	Report *report.Report `json:"report"`
}

// Client sends run reports to webhook endpoints.
type Client struct {
	httpClient *http.Client
}

// NewClient creates a new webhook client.
func NewClient() *Client {
	return &Client{
		httpClient: &http.Client{},
	}
}

// SendOptions configures a webhook request.
type SendOptions struct {
	URL     string
	Token   string        // Bearer token (optional)
	Timeout time.Duration // Request timeout (uses DefaultTimeout if zero)
}

// Response contains the result of a webhook request.
type Response struct {
	StatusCode int
	Body       string
	Duration   time.Duration
	Error      error
}

// Success returns true if the webhook was sent successfully (2xx status).
func (r *Response) Success() bool {
	return r.Error == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Send posts a run report to a webhook endpoint.
func (c *Client) Send(ctx context.Context, rep *report.Report, opts SendOptions) *Response {
	start := time.Now()
	resp := &Response{}
	done := func(err error) *Response {
		resp.Error = err
		resp.Duration = time.Since(start)
		return resp
	}

	event := "run.completed"
	if rep.HasFailures() {
		event = "run.completed_with_failures"
	}
	payload, err := json.Marshal(Payload{Event: event, SentAt: start.UTC(), Report: rep})
	if err != nil {
		return done(fmt.Errorf("marshaling report: %w", err))
	}

	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, opts.URL, bytes.NewReader(payload))
	if err != nil {
		return done(fmt.Errorf("creating request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "textfsm-parse-webhook")
	if opts.Token != "" {
		req.Header.Set("Authorization", "Bearer "+opts.Token)
	}

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return done(fmt.Errorf("request failed: %w", err))
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBody))
	if err != nil {
		return done(fmt.Errorf("reading response: %w", err))
	}

	resp.StatusCode = httpResp.StatusCode
	resp.Body = string(body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return done(fmt.Errorf("webhook returned status %d", resp.StatusCode))
	}

	return done(nil)
}
