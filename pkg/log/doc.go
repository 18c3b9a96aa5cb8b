/*
Package log provides structured logging for Shepherd using zerolog.

The log package wraps the zerolog library to provide JSON-structured logging
with component-specific loggers, configurable log levels, optional rotating
file output, and helper functions for common logging patterns. All logs
include timestamps and support filtering by severity level. Both the
supervisor process and every worker process initialize this package first,
so every lifecycle transition is observable in one stream.

# Architecture

Shepherd's logging system provides structured JSON logging with minimal
overhead:

	┌──────────────────── LOGGING SYSTEM ──────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐           │
	│  │            Global Logger                    │           │
	│  │  - Zerolog instance                         │           │
	│  │  - Initialized via log.Init()               │           │
	│  │  - Thread-safe for concurrent use           │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Configuration                     │           │
	│  │  - Level: debug/info/warn/error             │           │
	│  │  - Format: JSON or console (human)          │           │
	│  │  - Output: stdout, custom writer            │           │
	│  │  - File: rotating file via lumberjack       │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │         Context Loggers                     │           │
	│  │  - WithComponent("supervisor")              │           │
	│  │  - WithSlot(3)                              │           │
	│  │  - WithRequestID("a1b2c3d4")                │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │            Log Output                       │           │
	│  │                                              │           │
	│  │  JSON Format:                               │           │
	│  │  {                                           │           │
	│  │    "level": "info",                         │           │
	│  │    "component": "supervisor",               │           │
	│  │    "slot": 3,                               │           │
	│  │    "time": "2026-08-13T10:30:00Z",         │           │
	│  │    "message": "worker started"              │           │
	│  │  }                                           │           │
	│  │                                              │           │
	│  │  Console Format:                            │           │
	│  │  10:30AM INF worker started component=supervisor slot=3 │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

# Core Components

Global Logger:
  - Package-level zerolog.Logger instance
  - Initialized once via log.Init() in each process
  - Accessible from all Shepherd packages
  - Thread-safe concurrent writes

Log Levels:
  - Debug: Detailed debugging information
  - Info: General informational messages
  - Warn: Warning messages (duplicate signals, ignored triggers)
  - Error: Error messages (operation failed)
  - Fatal: Critical errors (process exits)

Configuration:
  - Level: Filter messages below threshold
  - JSONOutput: JSON vs human-readable console
  - Output: io.Writer for log destination
  - File: rotating log file (100MB per file, 3 backups, 28 days)

Context Loggers:
  - WithComponent: Add component name to all logs
  - WithSlot: Add the worker slot number
  - WithRequestID: Add the per-request correlation ID

# Usage

Initializing the Logger:

	import "github.com/cuemby/shepherd/pkg/log"

	// JSON output (production)
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		Output:     os.Stdout,
	})

	// Console output (development)
	log.Init(log.Config{
		Level:      log.DebugLevel,
		JSONOutput: false,
		Output:     os.Stdout,
	})

	// Rotating file output
	log.Init(log.Config{
		Level:      log.InfoLevel,
		JSONOutput: true,
		File:       "/var/log/shepherd/shepherd.log",
	})

Simple Logging:

	log.Info("supervisor started")
	log.Warn("duplicate shutdown signal ignored")
	log.Error("worker spawn failed")
	log.Fatal("cannot bind listen address") // Exits process

Structured Logging:

	log.Logger.Info().
		Int("slot", 2).
		Int("pid", 4711).
		Msg("worker started")

	log.Logger.Error().
		Err(err).
		Int("slot", 2).
		Msg("worker exited")

Component Loggers:

	supLog := log.WithComponent("supervisor")
	supLog.Info().Msg("control loop running")

	workerLog := log.WithSlot(3)
	workerLog.Info().Str("addr", ":8080").Msg("listening")

# Integration Points

This package integrates with:

  - pkg/supervisor: Logs spawn/exit/restart decisions and signals
  - pkg/worker: Logs startup, heartbeats (debug), and drain progress
  - pkg/drain: Logs drain state transitions and forced closes
  - pkg/health: Logs readiness transitions and failing checks
  - pkg/api: Logs every HTTP request with its request ID
  - cmd/shepherd: Initializes the logger from configuration

# Log Output Examples

JSON Format (Production):

	{"level":"info","component":"supervisor","time":"2026-08-13T10:30:00Z","message":"starting workers","count":4}
	{"level":"info","component":"worker","slot":1,"time":"2026-08-13T10:30:01Z","message":"listening","addr":":8080"}
	{"level":"warn","component":"supervisor","time":"2026-08-13T10:31:02Z","message":"shutdown already in progress, ignoring signal"}

Console Format (Development):

	10:30:00 INF starting workers component=supervisor count=4
	10:30:01 INF listening addr=:8080 component=worker slot=1
	10:31:02 WRN shutdown already in progress, ignoring signal component=supervisor

# Design Patterns

Global Logger Pattern:
  - Single package-level Logger instance per process
  - Initialized once at process start (supervisor and each worker)
  - Accessible from all packages without passing
  - Simplifies logging in deeply nested calls

Context Logger Pattern:
  - Create child loggers with context fields
  - Pass context loggers to functions
  - Automatically includes context in all logs
  - Avoids repetitive field specification

Error Logging Pattern:
  - Always use .Err(err) for error objects
  - Enables error tracking and alerting
  - Consistent error format across codebase

# Best Practices

Do:
  - Use Info level for production
  - Use structured fields for queryable data
  - Create component-specific loggers
  - Include context (slot, request ID)

Don't:
  - Log request bodies or user data
  - Use Debug level in production
  - Log in hot paths (per-connection events log at debug)
  - Concatenate strings (use .Str, .Int)

# See Also

  - Zerolog documentation: https://github.com/rs/zerolog
  - Lumberjack rotation: https://github.com/natefinch/lumberjack
  - 12-Factor App Logs: https://12factor.net/logs
*/
package log
