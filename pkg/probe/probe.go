// Package probe performs the one HTTP GET per agent per cycle that anchors
// every other signal in the pipeline (spec §4.3).
package probe

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Timeout is the hard ceiling on a single probe (spec §4.3/§5).
const Timeout = 10 * time.Second

// Result is the outcome of one probe. Probe never returns an error to its
// caller: every failure mode collapses into Success=false.
type Result struct {
	Success        bool
	ResponseTimeMs int64
	Body           []byte
}

// Client issues probes with a shared http.Client and timeout.
type Client struct {
	httpClient *http.Client
}

// New creates a probe Client.
func New() *Client {
	return &Client{httpClient: &http.Client{Timeout: Timeout}}
}

// Probe issues one GET to endpoint. Success iff the response status is in
// [200, 300). On transport error, timeout, or non-2xx status: Success is
// false, Body is nil, and ResponseTimeMs is the elapsed wall time.
func (c *Client) Probe(ctx context.Context, endpoint string) Result {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Success: false, ResponseTimeMs: time.Since(start).Milliseconds()}
	}

	resp, err := c.httpClient.Do(req)
	elapsed := time.Since(start).Milliseconds()
	if err != nil {
		return Result{Success: false, ResponseTimeMs: elapsed}
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return Result{Success: false, ResponseTimeMs: elapsed}
	}

	body, err := io.ReadAll(resp.Body)
	elapsed = time.Since(start).Milliseconds()
	if err != nil {
		return Result{Success: true, ResponseTimeMs: elapsed}
	}

	return Result{Success: true, ResponseTimeMs: elapsed, Body: body}
}
