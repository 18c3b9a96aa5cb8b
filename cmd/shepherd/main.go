package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/cuemby/shepherd/pkg/client"
	"github.com/cuemby/shepherd/pkg/config"
	"github.com/cuemby/shepherd/pkg/ipc"
	"github.com/cuemby/shepherd/pkg/log"
	"github.com/cuemby/shepherd/pkg/supervisor"
	"github.com/cuemby/shepherd/pkg/worker"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "shepherd",
	Short: "Shepherd - graceful lifecycle supervisor for HTTP worker fleets",
	Long: `Shepherd forks N HTTP workers onto one shared port and keeps them
alive: heartbeat watchdog, rate-limited crash respawns, zero-downtime
rolling restarts, and connection-draining graceful shutdown.

A single binary plays both roles: the supervisor re-executes itself
for each worker slot.

Signals understood by a running supervisor:
  SIGTERM, SIGINT   drain and stop the whole fleet
  SIGUSR2           rolling restart, one worker at a time`,
	Version: Version,
}

func init() {
	// Set version template
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Shepherd version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	// Add subcommands
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(configCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the supervisor and its worker fleet",
	Long: `Start the supervisor, which forks the configured number of worker
processes and supervises them until shutdown.

Configuration comes from SHEPHERD_* environment variables, optionally
layered over a YAML file named by SHEPHERD_CONFIG. The same invocation
runs inside every worker: the supervisor marks forked children via an
internal environment variable and they dispatch into the worker
runtime instead.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		log.Init(log.Config{
			Level:      log.Level(cfg.LogLevel),
			JSONOutput: cfg.LogFormat == "json",
			File:       cfg.LogFile,
		})

		if slot, ok := ipc.WorkerSlot(); ok {
			os.Exit(worker.New(cfg, slot, Version).Run())
		}
		os.Exit(supervisor.New(cfg).Run())
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show fleet and worker health",
	RunE: func(cmd *cobra.Command, args []string) error {
		adminAddr, _ := cmd.Flags().GetString("admin-addr")
		workerAddr, _ := cmd.Flags().GetString("addr")

		admin := client.New("http://" + adminAddr)
		defer admin.Close()

		status, err := admin.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to reach supervisor: %w", err)
		}

		state := color.GreenString(status.Status)
		if status.ShuttingDown {
			state = color.YellowString("%s (shutting down)", status.Status)
		}
		fmt.Printf("Supervisor: %s\n", state)
		fmt.Printf("  Live workers: %d\n", status.Workers)
		fmt.Println()

		probes := client.New("http://" + workerAddr)
		defer probes.Close()

		ready, err := probes.Ready(cmd.Context())
		if err != nil {
			fmt.Printf("Worker probe: %s (%v)\n", color.RedString("unreachable"), err)
			return nil
		}

		workerState := color.GreenString(ready.Status)
		if !ready.OK() {
			workerState = color.YellowString(ready.Status)
		}
		fmt.Printf("Worker: %s\n", workerState)
		for name, check := range ready.Checks {
			marker := color.GreenString("✓")
			if check.Status != "healthy" {
				marker = color.RedString("✗")
			}
			if check.Message != "" {
				fmt.Printf("  %s %s: %s\n", marker, name, check.Message)
			} else {
				fmt.Printf("  %s %s\n", marker, name)
			}
		}
		return nil
	},
}

func init() {
	statusCmd.Flags().String("admin-addr", "127.0.0.1:9090", "Supervisor admin address")
	statusCmd.Flags().String("addr", "127.0.0.1:8080", "Worker listen address")
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the resolved configuration as YAML",
	Long: `Resolve configuration from defaults, the optional SHEPHERD_CONFIG
file, and SHEPHERD_* environment variables, then print the result.
The output is valid input for a config file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		out, err := yaml.Marshal(configDocument(cfg))
		if err != nil {
			return fmt.Errorf("failed to render configuration: %w", err)
		}

		fmt.Print(string(out))
		return nil
	},
}

// configDocument renders the configuration with file-syntax keys and
// human-readable durations, so the output round-trips as a config file.
func configDocument(cfg *config.Config) map[string]interface{} {
	return map[string]interface{}{
		"workers":                    cfg.Workers,
		"listen":                     cfg.Listen,
		"admin_listen":               cfg.AdminListen,
		"heartbeat_interval":         cfg.HeartbeatInterval.String(),
		"heartbeat_timeout_multiple": cfg.HeartbeatTimeoutMultiple,
		"drain_delay":                cfg.DrainDelay.String(),
		"shutdown_timeout":           cfg.ShutdownTimeout.String(),
		"restart_window":             cfg.RestartWindow.String(),
		"max_restarts":               cfg.MaxRestarts,
		"memory_max_pct":             cfg.MemoryMaxPct,
		"sched_lag_max":              cfg.SchedLagMax.String(),
		"dependency_url":             cfg.DependencyURL,
		"dependency_timeout":         cfg.DependencyTimeout.String(),
		"rate_limit":                 cfg.RateLimit,
		"cors_origins":               cfg.CORSOrigins,
		"log_level":                  cfg.LogLevel,
		"log_format":                 cfg.LogFormat,
		"log_file":                   cfg.LogFile,
	}
}
