/*
Package client provides a Go client for the HTTP surface of a running
fleet: the supervisor's admin endpoint and the workers' probe endpoints.

It exists for the CLI's status command and for end-to-end tests, which
both need typed access to the same documents an external load balancer
or monitoring system would consume.

# Architecture

One Client wraps one base URL. Point it at the supervisor admin
address for fleet state, or at the shared worker address for probes:

	┌─────────────── CLI / tests ───────────────┐
	│                                            │
	│  admin  := client.New("http://...:9090")  │
	│  worker := client.New("http://...:8080")  │
	│                                            │
	└──────────┬───────────────────┬────────────┘
	           │                   │
	           ▼                   ▼
	   GET /healthz         GET /health/live
	   GET /metrics         GET /health/ready
	                        GET /health
	                        GET /metrics
	                        /api/v1/users CRUD

# Usage

	admin := client.New("http://127.0.0.1:9090")
	defer admin.Close()

	status, err := admin.Status(ctx)
	if err != nil {
	    return err
	}
	fmt.Printf("%d workers live\n", status.Workers)

# Probe semantics

Probe endpoints answer 503 with a full JSON body while a worker is not
ready or unhealthy. The client surfaces that as data: Ready and Health
return a Probe carrying the HTTP status code and the decoded check
details, and only transport or decoding failures are errors.

	probe, err := worker.Ready(ctx)
	if err != nil {
	    return err // unreachable, not "not ready"
	}
	if !probe.OK() {
	    fmt.Printf("draining or unhealthy: %s\n", probe.Status)
	}

The user CRUD methods behave conventionally instead: any 4xx/5xx
answer becomes a Go error carrying the server's message.

# Thread Safety

The client holds no mutable state beyond the underlying http.Client,
which is safe for concurrent use.

# See Also

  - pkg/api for the worker-side handlers these documents come from
  - pkg/supervisor for the admin endpoint
  - cmd/shepherd for CLI usage
*/
package client
