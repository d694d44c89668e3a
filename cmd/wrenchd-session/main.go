// Command wrenchd-session is the per-client session process: it reads an
// InitRequest from stdin, loads the platform it describes, and then serves
// the simulation control API on the listener the supervisor pre-bound and
// handed down as fd 4. Exactly one InitReport is written to fd 3 before this
// process does anything else externally visible.
package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/wrenchsim/daemon/internal/config"
	"github.com/wrenchsim/daemon/internal/controller"
	"github.com/wrenchsim/daemon/internal/engine"
	"github.com/wrenchsim/daemon/internal/ipc"
	"github.com/wrenchsim/daemon/internal/session"
)

// reportFD and listenerFD are the supervisor's contract for a spawned
// session process: fd 3 is the init-report pipe write end, fd 4 is the
// pre-bound listener.
const (
	reportFD   = 3
	listenerFD = 4
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

	reportPipe := os.NewFile(reportFD, "report-pipe")
	if reportPipe == nil {
		return fmt.Errorf("fd %d (report pipe) not inherited", reportFD)
	}
	defer reportPipe.Close()

	sim, ctrlHost, err := loadSimulation()
	if err != nil {
		reportFailure(reportPipe, err)
		return err
	}

	listenerFile := os.NewFile(listenerFD, "listener")
	if listenerFile == nil {
		err = fmt.Errorf("fd %d (listener) not inherited", listenerFD)
		reportFailure(reportPipe, err)
		return err
	}
	ln, err := net.FileListener(listenerFile)
	if err != nil {
		err = fmt.Errorf("reconstruct listener: %w", err)
		reportFailure(reportPipe, err)
		return err
	}

	ctrl := controller.New(sim, logger, cfg.SleepUS)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ctrl.Run(ctx)

	if err := ipc.WriteMessage(reportPipe, ipc.InitReport{Success: true}); err != nil {
		return fmt.Errorf("write init report: %w", err)
	}

	logger.Info("session ready", "controller_hostname", ctrlHost, "addr", ln.Addr().String())

	srv := session.NewServer(ctrl, logger, func() {
		ctrl.StopSimulation()
		cancel()
	})

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		ctrl.StopSimulation()
		cancel()
	}()

	return srv.Serve(ln)
}

// loadSimulation reads the InitRequest from stdin and builds a Simulation
// bound to the platform it describes.
func loadSimulation() (*engine.Simulation, string, error) {
	var req ipc.InitRequest
	if err := ipc.ReadMessage(os.Stdin, &req); err != nil {
		return nil, "", fmt.Errorf("read init request: %w", err)
	}

	platform, err := engine.LoadPlatform([]byte(req.PlatformXML))
	if err != nil {
		return nil, "", fmt.Errorf("load platform: %w", err)
	}
	if !platform.HostExists(req.ControllerHostname) {
		return nil, "", fmt.Errorf("controller host %q does not exist", req.ControllerHostname)
	}

	return engine.NewSimulation(platform), req.ControllerHostname, nil
}

func reportFailure(w *os.File, err error) {
	_ = ipc.WriteMessage(w, ipc.InitReport{Success: false, FailureCause: err.Error()})
}
