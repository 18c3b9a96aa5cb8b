package framework

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/shepherd/pkg/client"
)

// Client wraps the shepherd clients with test-friendly methods. Admin
// talks to the supervisor's endpoint, Worker to the shared service
// port the workers bind with SO_REUSEPORT.
type Client struct {
	Admin  *client.Client
	Worker *client.Client
}

// NewClient creates a new test client wrapper for the given base URLs
func NewClient(adminURL, workerURL string) *Client {
	return &Client{
		Admin:  client.New(adminURL).WithTimeout(2 * time.Second),
		Worker: client.New(workerURL).WithTimeout(2 * time.Second),
	}
}

// LiveWorkers returns the number of workers the supervisor reports live
func (c *Client) LiveWorkers(ctx context.Context) (int64, error) {
	status, err := c.Admin.Status(ctx)
	if err != nil {
		return 0, err
	}
	return status.Workers, nil
}

// ShuttingDown reports whether the supervisor has entered shutdown
func (c *Client) ShuttingDown(ctx context.Context) (bool, error) {
	status, err := c.Admin.Status(ctx)
	if err != nil {
		return false, err
	}
	return status.ShuttingDown, nil
}

// WorkerReady returns true if a worker answers the readiness probe
func (c *Client) WorkerReady(ctx context.Context) bool {
	probe, err := c.Worker.Ready(ctx)
	return err == nil && probe.OK()
}

// WorkerLive returns true if a worker answers the liveness probe
func (c *Client) WorkerLive(ctx context.Context) bool {
	probe, err := c.Worker.Live(ctx)
	return err == nil && probe.OK()
}

// WorkerServing issues a real API request against the worker port and
// reports whether it succeeded. Probes can lie during a rotation; this
// cannot.
func (c *Client) WorkerServing(ctx context.Context) bool {
	_, err := c.Worker.ListUsers(ctx)
	return err == nil
}

// MetricValue scrapes the supervisor metrics endpoint and returns the
// summed value of all series matching the metric name
func (c *Client) MetricValue(ctx context.Context, name string) (float64, error) {
	body, err := c.Admin.Metrics(ctx)
	if err != nil {
		return 0, err
	}

	var total float64
	found := false
	for _, line := range strings.Split(body, "\n") {
		if !strings.HasPrefix(line, name) {
			continue
		}
		// "name{labels} value" or "name value"; the prefix alone would
		// also match longer metric names
		if rest := line[len(name):]; rest == "" || (rest[0] != '{' && rest[0] != ' ') {
			continue
		}
		idx := strings.LastIndexByte(line, ' ')
		if idx < 0 {
			continue
		}
		var v float64
		if _, err := fmt.Sscanf(line[idx+1:], "%g", &v); err != nil {
			continue
		}
		total += v
		found = true
	}

	if !found {
		return 0, fmt.Errorf("metric %s not found", name)
	}
	return total, nil
}

// Close releases idle connections held by both clients
func (c *Client) Close() {
	c.Admin.Close()
	c.Worker.Close()
}
