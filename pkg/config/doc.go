/*
Package config loads and validates Shepherd's runtime configuration.

Configuration is resolved once at process start from three layers, the
later layers overriding the earlier: built-in defaults, an optional
YAML file named by SHEPHERD_CONFIG, and SHEPHERD_* environment
variables. There is no hot reload; changing supervision parameters
requires a restart (the rolling-restart signal makes that cheap).

Workers inherit the supervisor's environment, so one set of variables
configures the whole process tree.

# Keys

	key                         env                                  default
	workers                     SHEPHERD_WORKERS                     0 (one per CPU)
	listen                      SHEPHERD_LISTEN                      :8080
	admin_listen                SHEPHERD_ADMIN_LISTEN                :9090
	heartbeat_interval          SHEPHERD_HEARTBEAT_INTERVAL          10s
	heartbeat_timeout_multiple  SHEPHERD_HEARTBEAT_TIMEOUT_MULTIPLE  6
	drain_delay                 SHEPHERD_DRAIN_DELAY                 5s
	shutdown_timeout            SHEPHERD_SHUTDOWN_TIMEOUT            30s
	restart_window              SHEPHERD_RESTART_WINDOW              60s
	max_restarts                SHEPHERD_MAX_RESTARTS                5
	memory_max_pct              SHEPHERD_MEMORY_MAX_PCT              90
	sched_lag_max               SHEPHERD_SCHED_LAG_MAX               150ms
	dependency_url              SHEPHERD_DEPENDENCY_URL              (unset)
	dependency_timeout          SHEPHERD_DEPENDENCY_TIMEOUT          2s
	rate_limit                  SHEPHERD_RATE_LIMIT                  300
	cors_origins                SHEPHERD_CORS_ORIGINS                *
	log_level                   SHEPHERD_LOG_LEVEL                   info
	log_format                  SHEPHERD_LOG_FORMAT                  json
	log_file                    SHEPHERD_LOG_FILE                    (stdout)

Durations accept Go syntax ("200ms", "1m30s"). List values are
comma-separated in the environment.

# Usage

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	watchdog := cfg.HeartbeatTimeout() // interval * multiple
	budget := cfg.DrainBudget()        // drain_delay + shutdown_timeout

YAML file (optional):

	# /etc/shepherd/shepherd.yaml
	workers: 4
	listen: ":8080"
	drain_delay: 5s
	dependency_url: "http://postgres-sidecar:9187/healthz"

# Validation

Fields are validated with go-playground/validator after the layers
merge: bounds on counts and percentages, Go-duration positivity, URL
shape for dependency_url, and closed sets for log_level/log_format. An
invalid configuration is a startup failure (exit 1), never a partial
start.
*/
package config
