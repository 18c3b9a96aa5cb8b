package health

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/cuemby/shepherd/pkg/log"
)

// DependencyChecker probes an external dependency over HTTP or TCP.
// URLs with a tcp:// scheme get a plain connect probe; anything else
// is treated as an HTTP endpoint. An empty URL means no dependency is
// configured and the check always passes.
//
// Probes run through a circuit breaker so a dead dependency does not
// hold a connection-timeout's worth of latency on every probe. While
// the circuit is open the check fails fast with the last error.
type DependencyChecker struct {
	// URL is the dependency endpoint (e.g., "http://db:5432/ping" or
	// "tcp://cache:6379")
	URL string

	// Method is the HTTP method to use (default: GET)
	Method string

	// Timeout bounds a single probe (default: 2 seconds)
	Timeout time.Duration

	// Headers are additional HTTP headers to send
	Headers map[string]string

	// MinStatusCode and MaxStatusCode define the healthy range
	// (default: 200-399)
	MinStatusCode int
	MaxStatusCode int

	client  *http.Client
	breaker *gobreaker.CircuitBreaker[int]
}

// NewDependencyChecker creates a dependency checker for the given URL
func NewDependencyChecker(url string) *DependencyChecker {
	d := &DependencyChecker{
		URL:           url,
		Method:        http.MethodGet,
		Timeout:       2 * time.Second,
		Headers:       make(map[string]string),
		MinStatusCode: 200,
		MaxStatusCode: 399,
	}
	d.client = &http.Client{Timeout: d.Timeout}
	d.breaker = gobreaker.NewCircuitBreaker[int](gobreaker.Settings{
		Name:        "dependency",
		MaxRequests: 1,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithComponent("health").Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("dependency circuit state changed")
		},
	})
	return d
}

// WithMethod sets the HTTP method
func (d *DependencyChecker) WithMethod(method string) *DependencyChecker {
	d.Method = method
	return d
}

// WithHeader adds an HTTP header to probes
func (d *DependencyChecker) WithHeader(key, value string) *DependencyChecker {
	d.Headers[key] = value
	return d
}

// WithTimeout sets the probe timeout
func (d *DependencyChecker) WithTimeout(timeout time.Duration) *DependencyChecker {
	d.Timeout = timeout
	d.client.Timeout = timeout
	return d
}

// WithStatusRange sets the acceptable HTTP status code range
func (d *DependencyChecker) WithStatusRange(min, max int) *DependencyChecker {
	d.MinStatusCode = min
	d.MaxStatusCode = max
	return d
}

// Name implements the Checker interface
func (d *DependencyChecker) Name() string {
	return "dependency"
}

// Check implements the Checker interface
func (d *DependencyChecker) Check(ctx context.Context) Result {
	start := time.Now()

	if d.URL == "" {
		return Result{
			Healthy:   true,
			Message:   "no dependency configured",
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	status, err := d.breaker.Execute(func() (int, error) {
		return d.probe(ctx)
	})
	if err != nil {
		message := fmt.Sprintf("probe failed: %v", err)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			message = "circuit open, probes suspended"
		}
		return Result{
			Healthy:   false,
			Message:   message,
			CheckedAt: start,
			Duration:  time.Since(start),
		}
	}

	message := fmt.Sprintf("status %d from %s", status, d.URL)
	if d.isTCP() {
		message = fmt.Sprintf("TCP connection to %s successful", strings.TrimPrefix(d.URL, "tcp://"))
	}
	return Result{
		Healthy:   true,
		Message:   message,
		CheckedAt: start,
		Duration:  time.Since(start),
	}
}

func (d *DependencyChecker) isTCP() bool {
	return strings.HasPrefix(d.URL, "tcp://")
}

// probe performs one raw check attempt. The returned status code is
// zero for TCP probes.
func (d *DependencyChecker) probe(ctx context.Context) (int, error) {
	if d.isTCP() {
		dialer := &net.Dialer{Timeout: d.Timeout}
		conn, err := dialer.DialContext(ctx, "tcp", strings.TrimPrefix(d.URL, "tcp://"))
		if err != nil {
			return 0, fmt.Errorf("connection failed: %w", err)
		}
		conn.Close()
		return 0, nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, d.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, d.Method, d.URL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	for key, value := range d.Headers {
		req.Header.Set(key, value)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < d.MinStatusCode || resp.StatusCode > d.MaxStatusCode {
		return resp.StatusCode, fmt.Errorf("unexpected status code: %d (expected %d-%d)",
			resp.StatusCode, d.MinStatusCode, d.MaxStatusCode)
	}
	return resp.StatusCode, nil
}
