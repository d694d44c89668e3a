package supervisor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net"
	"os"
	"os/exec"
	"strconv"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/wrenchsim/daemon/internal/ipc"
	"github.com/wrenchsim/daemon/internal/model"
)

// closeAll closes every non-nil closer and aggregates whatever errors it
// hits, so a failed cleanup during an already-failing spawn isn't silently
// dropped.
func closeAll(closers ...io.Closer) error {
	var result error
	for _, c := range closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}

const (
	portRangeMin    = 10000
	portRangeMax    = 20000
	maxPortAttempts = 200
)

// allocatePort binds a free TCP port in [portRangeMin, portRangeMax) and
// returns the open listener. The listener is handed to the session process
// via cmd.ExtraFiles instead of being closed and trusted to stay free,
// which removes the bind-probe-then-hope race the original port allocator
// had to tolerate.
func allocatePort() (*net.TCPListener, error) {
	for attempt := 0; attempt < maxPortAttempts; attempt++ {
		port := portRangeMin + rand.Intn(portRangeMax-portRangeMin)
		ln, err := net.ListenTCP("tcp", &net.TCPAddr{Port: port})
		if err != nil {
			continue
		}
		return ln, nil
	}
	return nil, fmt.Errorf("no available port in [%d, %d) after %d attempts", portRangeMin, portRangeMax, maxPortAttempts)
}

// spawnResult is what the supervisor learns synchronously from spawning a
// session: either a bound port and the session's id, or a failure cause.
type spawnResult struct {
	record *model.SessionRecord
	err    error
}

// Spawner launches session processes and reaps them without ever blocking
// the HTTP request path on a child's exit.
type Spawner struct {
	sessionBin string
	sleepUS    int
	logger     *slog.Logger
	store      *AuditStore
	onExit     func(id string)
}

// NewSpawner creates a Spawner that launches sessionBin for every
// startSimulation call.
func NewSpawner(sessionBin string, sleepUS int, logger *slog.Logger, store *AuditStore, onExit func(id string)) *Spawner {
	return &Spawner{sessionBin: sessionBin, sleepUS: sleepUS, logger: logger, store: store, onExit: onExit}
}

// Spawn allocates a port, starts a session process bound to it, and blocks
// only until that process reports success or failure over the init pipe —
// never until it exits. A dedicated goroutine reaps the process afterward.
func (sp *Spawner) Spawn(ctx context.Context, platformXML, controllerHostname string) spawnResult {
	ln, err := allocatePort()
	if err != nil {
		return spawnResult{err: err}
	}

	listenerFile, err := ln.File()
	if err != nil {
		if cerr := closeAll(ln); cerr != nil {
			sp.logger.Warn("cleanup after dup listener fd failure", "error", cerr)
		}
		return spawnResult{err: fmt.Errorf("dup listener fd: %w", err)}
	}

	reportR, reportW, err := os.Pipe()
	if err != nil {
		if cerr := closeAll(ln, listenerFile); cerr != nil {
			sp.logger.Warn("cleanup after init pipe failure", "error", cerr)
		}
		return spawnResult{err: fmt.Errorf("create init pipe: %w", err)}
	}

	stdinR, stdinW, err := os.Pipe()
	if err != nil {
		if cerr := closeAll(ln, listenerFile, reportR, reportW); cerr != nil {
			sp.logger.Warn("cleanup after stdin pipe failure", "error", cerr)
		}
		return spawnResult{err: fmt.Errorf("create stdin pipe: %w", err)}
	}

	cmd := exec.Command(sp.sessionBin, "--sleep-us", strconv.Itoa(sp.sleepUS))
	cmd.Stdin = stdinR
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	// fd 3 is the init-report pipe write end, fd 4 is the pre-bound listener.
	cmd.ExtraFiles = []*os.File{reportW, listenerFile}

	port := ln.Addr().(*net.TCPAddr).Port

	if err := cmd.Start(); err != nil {
		if cerr := closeAll(ln, listenerFile, reportR, reportW, stdinR, stdinW); cerr != nil {
			sp.logger.Warn("cleanup after session process start failure", "error", cerr)
		}
		return spawnResult{err: fmt.Errorf("start session process: %w", err)}
	}

	// The supervisor's own references to the handed-off fds are no longer
	// needed; the child holds the live copies now.
	listenerFile.Close()
	reportW.Close()
	stdinR.Close()
	ln.Close()

	if err := ipc.WriteMessage(stdinW, ipc.InitRequest{
		PlatformXML:        platformXML,
		ControllerHostname: controllerHostname,
	}); err != nil {
		stdinW.Close()
		reportR.Close()
		_ = cmd.Process.Kill()
		return spawnResult{err: fmt.Errorf("write init request: %w", err)}
	}
	stdinW.Close()

	var report ipc.InitReport
	reportErr := ipc.ReadMessage(reportR, &report)
	reportR.Close()

	id := model.NewID()
	digest := sha256.Sum256([]byte(platformXML))
	rec := &model.SessionRecord{
		ID:             id,
		Port:           port,
		PID:            cmd.Process.Pid,
		PlatformDigest: hex.EncodeToString(digest[:]),
		ControllerHost: controllerHostname,
		StartedAt:      time.Now().UTC(),
	}

	if reportErr != nil {
		// EOF (or any read failure) without a report is an unreported crash.
		if recErr := sp.store.RecordLaunch(ctx, rec); recErr != nil {
			sp.logger.Error("record launch", "session_id", id, "error", recErr)
		}
		sessionsActive.Inc()
		go sp.reap(rec, cmd, false)
		return spawnResult{err: fmt.Errorf("session process did not report init status: %w", reportErr)}
	}

	if err := sp.store.RecordLaunch(ctx, rec); err != nil {
		sp.logger.Error("record launch", "session_id", id, "error", err)
	}
	sessionsActive.Inc()
	go sp.reap(rec, cmd, !report.Success)

	if !report.Success {
		return spawnResult{err: fmt.Errorf("%s", report.FailureCause)}
	}

	return spawnResult{record: rec}
}

// reap owns the one Wait() call for a spawned session process. It never
// runs on the request-handling goroutine, so a hung or long-lived session
// can never block startSimulation; this is the Go-idiomatic substitute for
// the double-fork trick the original daemon used to dodge zombie reaping.
// initFailed distinguishes a deliberate non-zero exit after a reported init
// failure from a genuine crash with no report at all.
func (sp *Spawner) reap(rec *model.SessionRecord, cmd *exec.Cmd, initFailed bool) {
	err := cmd.Wait()
	finishedAt := time.Now().UTC()

	exitStatus := model.ExitClean
	failureCause := ""
	switch {
	case err != nil && initFailed:
		exitStatus = model.ExitFailed
		failureCause = err.Error()
	case err != nil:
		exitStatus = model.ExitCrashed
		failureCause = err.Error()
	}

	if recErr := sp.store.RecordExit(context.Background(), rec.ID, finishedAt, exitStatus, failureCause); recErr != nil {
		sp.logger.Error("record exit", "session_id", rec.ID, "error", recErr)
	}
	sp.logger.Info("session process exited", "session_id", rec.ID, "pid", rec.PID, "exit_status", exitStatus)
	recordSessionExit(exitStatus)

	if sp.onExit != nil {
		sp.onExit(rec.ID)
	}
}
