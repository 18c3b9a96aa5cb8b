package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// Client talks to a running fleet over HTTP: the supervisor's admin
// endpoint or any worker's probe surface, depending on the base URL it
// was built with.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the given base URL,
// e.g. http://127.0.0.1:9090 for the supervisor admin endpoint.
func New(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// WithTimeout overrides the per-request timeout
func (c *Client) WithTimeout(d time.Duration) *Client {
	c.http.Timeout = d
	return c
}

// Close releases idle connections
func (c *Client) Close() {
	c.http.CloseIdleConnections()
}

// ClusterStatus is the supervisor's admin healthz document
type ClusterStatus struct {
	Status       string `json:"status"`
	Workers      int64  `json:"workers"`
	ShuttingDown bool   `json:"shutting_down"`
}

// CheckStatus is one named health check as reported by a worker
type CheckStatus struct {
	Status        string    `json:"status"`
	Message       string    `json:"message,omitempty"`
	LastCheckTime time.Time `json:"last_check_time"`
}

// Probe is a worker probe response together with the HTTP status code
// it arrived with. Probe endpoints answer 503 with a decodable body
// when not ready, so a non-2xx code is data, not a transport error.
type Probe struct {
	Code      int                    `json:"-"`
	Status    string                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Uptime    string                 `json:"uptime,omitempty"`
	Checks    map[string]CheckStatus `json:"checks,omitempty"`
}

// OK reports whether the probe answered 2xx
func (p *Probe) OK() bool {
	return p.Code >= 200 && p.Code < 300
}

// Status fetches the supervisor's fleet summary
func (c *Client) Status(ctx context.Context) (*ClusterStatus, error) {
	var status ClusterStatus
	code, err := c.getJSON(ctx, "/healthz", &status)
	if err != nil {
		return nil, err
	}
	if code != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", code)
	}
	return &status, nil
}

// Live fetches the worker liveness probe
func (c *Client) Live(ctx context.Context) (*Probe, error) {
	return c.probe(ctx, "/health/live")
}

// Ready fetches the worker readiness probe with cached check details
func (c *Client) Ready(ctx context.Context) (*Probe, error) {
	return c.probe(ctx, "/health/ready")
}

// Health fetches the worker health aggregate, running checks fresh
func (c *Client) Health(ctx context.Context) (*Probe, error) {
	return c.probe(ctx, "/health")
}

// Metrics fetches the Prometheus exposition text
func (c *Client) Metrics(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/metrics", nil)
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read metrics: %w", err)
	}
	return string(body), nil
}

func (c *Client) probe(ctx context.Context, path string) (*Probe, error) {
	var p Probe
	code, err := c.getJSON(ctx, path, &p)
	if err != nil {
		return nil, err
	}
	p.Code = code
	return &p, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out interface{}) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to reach %s: %w", c.baseURL+path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
	}
	return resp.StatusCode, nil
}
