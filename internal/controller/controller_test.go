package controller

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/wrenchsim/daemon/internal/engine"
)

const testPlatform = `<platform>
  <host id="ControllerHost" cores="4" flop_rate="1e9"/>
  <host id="ComputeHost" cores="2" flop_rate="1e9"/>
</platform>`

func newTestController(t *testing.T) *Controller {
	t.Helper()
	p, err := engine.LoadPlatform([]byte(testPlatform))
	if err != nil {
		t.Fatalf("LoadPlatform() error = %v", err)
	}
	sim := engine.NewSimulation(p)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c := New(sim, logger, 0)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go c.Run(ctx)

	return c
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition never became true")
}

func TestAddServiceUnknownType(t *testing.T) {
	c := newTestController(t)
	_, err := c.AddService("quantum", "ComputeHost")
	if err == nil {
		t.Fatal("AddService() error = nil, want error for unknown service type")
	}
}

func TestAddServiceUnknownHost(t *testing.T) {
	c := newTestController(t)
	_, err := c.AddService("compute_baremetal", "NoSuchHost")
	if err == nil {
		t.Fatal("AddService() error = nil, want error for unknown head host")
	}
}

func TestHappyPathJobCompletion(t *testing.T) {
	c := newTestController(t)

	svcName, err := c.AddService("compute_baremetal", "ComputeHost")
	if err != nil {
		t.Fatalf("AddService() error = %v", err)
	}

	jobName, err := c.CreateStandardJob("t", 1e9, 1, 1)
	if err != nil {
		t.Fatalf("CreateStandardJob() error = %v", err)
	}

	if err := c.SubmitStandardJob(jobName, svcName); err != nil {
		t.Fatalf("SubmitStandardJob() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	ev, err := c.WaitForNextSimulationEvent(ctx)
	if err != nil {
		t.Fatalf("WaitForNextSimulationEvent() error = %v", err)
	}
	if ev.JobName != jobName {
		t.Fatalf("event job name = %q, want %q", ev.JobName, jobName)
	}
	if ev.EventType != "job_completion" {
		t.Fatalf("event type = %q, want job_completion", ev.EventType)
	}
}

func TestSubmitStandardJobRejectsDoubleSubmission(t *testing.T) {
	c := newTestController(t)
	svcName, _ := c.AddService("compute_baremetal", "ComputeHost")
	jobName, _ := c.CreateStandardJob("t", 1e9, 1, 1)

	if err := c.SubmitStandardJob(jobName, svcName); err != nil {
		t.Fatalf("first SubmitStandardJob() error = %v", err)
	}
	if err := c.SubmitStandardJob(jobName, svcName); err == nil {
		t.Fatal("second SubmitStandardJob() error = nil, want error for re-submission")
	}
}

func TestSubmitStandardJobUnknownEntities(t *testing.T) {
	c := newTestController(t)
	svcName, _ := c.AddService("compute_baremetal", "ComputeHost")
	jobName, _ := c.CreateStandardJob("t", 1e9, 1, 1)

	if err := c.SubmitStandardJob("no-such-job", svcName); err == nil {
		t.Fatal("SubmitStandardJob() error = nil, want error for unknown job")
	}
	if err := c.SubmitStandardJob(jobName, "no-such-service"); err == nil {
		t.Fatal("SubmitStandardJob() error = nil, want error for unknown service")
	}
}

func TestAdvanceTimeMonotonic(t *testing.T) {
	c := newTestController(t)

	start := c.GetSimulationTime()
	c.AdvanceTime(10)
	waitUntil(t, func() bool { return c.GetSimulationTime() >= start+10 })

	if events := c.GetSimulationEvents(); len(events) != 0 {
		t.Fatalf("GetSimulationEvents() = %v, want none (no jobs submitted)", events)
	}
}

func TestStandardJobGetNumTasks(t *testing.T) {
	c := newTestController(t)
	jobName, _ := c.CreateStandardJob("t", 1e9, 1, 2)

	n, err := c.StandardJobGetNumTasks(jobName)
	if err != nil {
		t.Fatalf("StandardJobGetNumTasks() error = %v", err)
	}
	if n != 1 {
		t.Fatalf("StandardJobGetNumTasks() = %d, want 1", n)
	}

	if _, err := c.StandardJobGetNumTasks("no-such-job"); err == nil {
		t.Fatal("StandardJobGetNumTasks() error = nil, want error for unknown job")
	}
}

func TestWaitForNextSimulationEventRespectsCancellation(t *testing.T) {
	c := newTestController(t)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.WaitForNextSimulationEvent(ctx)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err == nil {
			t.Fatal("WaitForNextSimulationEvent() error = nil, want context error")
		}
	case <-time.After(time.Second):
		t.Fatal("WaitForNextSimulationEvent did not observe cancellation")
	}
}

func TestGetAllHostnames(t *testing.T) {
	c := newTestController(t)
	got := c.GetAllHostnames()
	if len(got) != 2 {
		t.Fatalf("GetAllHostnames() = %v, want 2 hosts", got)
	}
}
