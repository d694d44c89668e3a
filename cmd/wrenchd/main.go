// Command wrenchd is the supervisor daemon: it exposes startSimulation over
// HTTP, spawns a wrenchd-session process per call, and keeps an audit trail
// of every launch in SQLite.
package main

import (
	"fmt"
	"os"

	"github.com/wrenchsim/daemon/internal/config"
	"github.com/wrenchsim/daemon/internal/supervisor"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Parse(os.Args[1:])
	if err != nil {
		return err
	}

	logger := config.NewLogger(os.Stdout, cfg.LogLevel)

	store, err := supervisor.NewAuditStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("open audit store: %w", err)
	}
	defer store.Close()

	spawner := supervisor.NewSpawner(cfg.SessionBin, cfg.SleepUS, logger, store, nil)

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := supervisor.NewServer(addr, spawner, store, logger)

	return srv.Run()
}
