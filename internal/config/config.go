// Package config parses the supervisor's CLI flags and builds the
// structured logger every binary in this repository uses.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/pflag"
)

const (
	defaultPort       = 8101
	defaultSleepUS    = 200
	defaultDBPath     = "wrenchd.db"
	defaultLogLevel   = "info"
	defaultSessionBin = "wrenchd-session"

	minPort = 1024
	maxPort = 49151

	minSleepUS = 0
	maxSleepUS = 1_000_000
)

// Config holds the supervisor's runtime configuration, parsed from CLI
// flags rather than environment variables, since this binary is typically
// launched directly rather than from a container entrypoint.
type Config struct {
	Port              int
	SleepUS           int
	SimulationLogging bool
	DaemonLogging     bool
	DBPath            string
	LogLevel          slog.Level
	SessionBin        string
}

// Parse parses args (typically os.Args[1:]) into a Config, applying the
// same bounds this API documents for --port and --sleep-us.
func Parse(args []string) (Config, error) {
	fs := pflag.NewFlagSet("wrenchd", pflag.ContinueOnError)

	port := fs.Int("port", defaultPort, "TCP port the supervisor listens on")
	sleepUS := fs.Int("sleep-us", defaultSleepUS, "real-time microseconds a session's controller yields per idle main-loop pass")
	simLogging := fs.Bool("simulation-logging", false, "stored in Config.SimulationLogging; no component reads it, so it does not change logging")
	daemonLogging := fs.Bool("daemon-logging", false, "stored in Config.DaemonLogging; no component reads it, so it does not change logging")
	dbPath := fs.String("db-path", defaultDBPath, "path to the session-launch audit database")
	logLevel := fs.String("log-level", defaultLogLevel, "log level: debug, info, warn, error")
	sessionBin := fs.String("session-bin", defaultSessionBin, "path to the session-process binary")

	if err := fs.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	if *port < minPort || *port > maxPort {
		return Config{}, fmt.Errorf("--port must be in [%d, %d], got %d", minPort, maxPort, *port)
	}
	if *sleepUS < minSleepUS || *sleepUS > maxSleepUS {
		return Config{}, fmt.Errorf("--sleep-us must be in [%d, %d], got %d", minSleepUS, maxSleepUS, *sleepUS)
	}

	return Config{
		Port:              *port,
		SleepUS:           *sleepUS,
		SimulationLogging: *simLogging,
		DaemonLogging:     *daemonLogging,
		DBPath:            *dbPath,
		LogLevel:          parseLogLevel(*logLevel),
		SessionBin:        *sessionBin,
	}, nil
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the given level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}
