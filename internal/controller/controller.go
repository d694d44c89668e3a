// Package controller implements the simulation controller: the single
// goroutine that owns the discrete-event engine and is the only party
// allowed to mutate it. Every other goroutine communicates with it through
// thread-safe command queues.
package controller

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wrenchsim/daemon/internal/engine"
	"github.com/wrenchsim/daemon/internal/model"
	"github.com/wrenchsim/daemon/internal/queue"
)

// requestMode tags the controller's pending time request, replacing the
// original design's overloaded sentinel (a negative horizon meaning "block
// for next event") with an explicit variant.
type requestMode int

const (
	modeAdvance requestMode = iota
	modeWaitNext
)

type timeRequest struct {
	mode    requestMode
	horizon float64
}

// pendingServiceStart is the payload carried on the service-creation queue.
type pendingServiceStart struct {
	name     string
	typeName string
	headHost string
	result   chan error
}

// pendingJobSubmission is the payload carried on the submission queue.
type pendingJobSubmission struct {
	jobName     string
	serviceName string
}

// Controller runs the simulation main loop and exposes the operations the
// session's HTTP handlers call.
type Controller struct {
	sim          *engine.Simulation
	serviceTypes *serviceTypeRegistry
	logger       *slog.Logger
	sleepUS      int

	serviceQueue    *queue.Queue[pendingServiceStart]
	submissionQueue *queue.Queue[pendingJobSubmission]
	eventQueue      *queue.Queue[model.Event]

	mu         sync.Mutex
	services   map[string]model.ComputeService
	jobs       map[string]model.StandardJob
	timeReq    timeRequest
	keepGoing  bool
}

// New creates a Controller bound to sim. sleepUS is the real-time yield
// interval (microseconds) the main loop sleeps once per pass when idle.
func New(sim *engine.Simulation, logger *slog.Logger, sleepUS int) *Controller {
	return &Controller{
		sim:             sim,
		serviceTypes:    defaultServiceTypeRegistry(),
		logger:          logger,
		sleepUS:         sleepUS,
		serviceQueue:    queue.New[pendingServiceStart](),
		submissionQueue: queue.New[pendingJobSubmission](),
		eventQueue:      queue.New[model.Event](),
		services:        make(map[string]model.ComputeService),
		jobs:            make(map[string]model.StandardJob),
		keepGoing:       true,
	}
}

// Run executes the main loop until StopSimulation is called or ctx is
// cancelled. It must run on its own goroutine and must be the only caller
// of any engine mutator.
func (c *Controller) Run(ctx context.Context) {
	for {
		c.mu.Lock()
		keepGoing := c.keepGoing
		c.mu.Unlock()
		if !keepGoing || ctx.Err() != nil {
			return
		}

		c.startPendingServices()
		c.submitPendingJobs()
		c.advanceOrWait()

		realTimeYield(c.sleepUS)
	}
}

// startPendingServices drains the service-creation queue, starting each
// service on the simulator goroutine and registering it under its
// pre-assigned name.
func (c *Controller) startPendingServices() {
	for {
		req, ok := c.serviceQueue.TryPop()
		if !ok {
			return
		}

		factory, err := c.serviceTypes.Resolve(req.typeName)
		if err != nil {
			req.result <- err
			continue
		}

		svc, err := factory(c.sim, req.name, req.headHost)
		if err != nil {
			req.result <- err
			continue
		}

		c.mu.Lock()
		c.services[svc.Name] = svc
		c.mu.Unlock()
		req.result <- nil
	}
}

// submitPendingJobs drains the submission queue, scheduling each job
// against its target service. Engine-side rejection produces an immediate
// job_failure event rather than silently dropping the submission.
func (c *Controller) submitPendingJobs() {
	for {
		sub, ok := c.submissionQueue.TryPop()
		if !ok {
			return
		}

		c.mu.Lock()
		job, jobOK := c.jobs[sub.jobName]
		svc, svcOK := c.services[sub.serviceName]
		c.mu.Unlock()

		if !jobOK || !svcOK {
			c.logger.Error("submitted job references unknown entity",
				"job_name", sub.jobName, "service_name", sub.serviceName)
			continue
		}

		completion := c.sim.Schedule(job, svc)
		c.sim.Enqueue(completion)
	}
}

// advanceOrWait implements the main loop's time-progression step: either
// advance to the next due completion (wait-next mode; nothing happens on a
// pass where no completion is pending) and then hold the clock there, or
// sleep toward the pending horizon, draining any events that fall due along
// the way.
func (c *Controller) advanceOrWait() {
	c.mu.Lock()
	req := c.timeReq
	c.mu.Unlock()

	if req.mode == modeWaitNext {
		due, ok := c.sim.NextCompletionDue()
		if !ok {
			return
		}
		events := c.sim.AdvanceAndCollect(due)
		// The wait is satisfied: reset the horizon to the current time so
		// later passes do not keep running the clock forward on their own.
		c.mu.Lock()
		if c.timeReq.mode == modeWaitNext {
			c.timeReq = timeRequest{mode: modeAdvance, horizon: c.sim.Now()}
		}
		c.mu.Unlock()
		for _, ev := range events {
			c.recordTerminal(ev)
			c.eventQueue.Push(ev)
		}
		return
	}

	now := c.sim.Now()
	delta := req.horizon - now
	if delta <= 0 {
		return
	}
	for _, ev := range c.sim.AdvanceAndCollect(req.horizon) {
		c.recordTerminal(ev)
		c.eventQueue.Push(ev)
	}
}

// recordTerminal updates the job registry with the terminal outcome of ev.
func (c *Controller) recordTerminal(ev model.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[ev.JobName]
	if !ok {
		return
	}
	job.EndDate = ev.EndDate
	if ev.EventType == model.EventJobFailure {
		job.Status = model.JobStatusFailed
		job.FailureCause = ev.FailureCause
	} else {
		job.Status = model.JobStatusCompleted
	}
	c.jobs[ev.JobName] = job
}

// GetSimulationTime returns the current simulated clock reading. Safe from
// any goroutine.
func (c *Controller) GetSimulationTime() float64 {
	return c.sim.Now()
}

// AdvanceTime sets the pending time request so the main loop advances the
// simulated clock by at least seconds on a later pass. Non-blocking.
func (c *Controller) AdvanceTime(seconds float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.timeReq = timeRequest{mode: modeAdvance, horizon: c.sim.Now() + seconds}
}

// GetAllHostnames returns the platform's host names. Safe from any
// goroutine.
func (c *Controller) GetAllHostnames() []string {
	return c.sim.Hostnames()
}

// AddService enqueues a service start request and blocks only long enough
// for the next main-loop pass to process it, returning the service's
// pre-assigned name or the error the engine raised while starting it.
func (c *Controller) AddService(serviceType, headHost string) (string, error) {
	if serviceType == "" {
		return "", fmt.Errorf("service_type is required")
	}
	if headHost == "" {
		return "", fmt.Errorf("head_host is required")
	}
	if _, err := c.serviceTypes.Resolve(serviceType); err != nil {
		return "", err
	}

	name := model.NewID()
	result := make(chan error, 1)
	c.serviceQueue.Push(pendingServiceStart{
		name:     name,
		typeName: serviceType,
		headHost: headHost,
		result:   result,
	})

	if err := <-result; err != nil {
		return "", err
	}
	return name, nil
}

// CreateStandardJob constructs a single-task standard job and registers it.
// Construction does not require the controller goroutine.
func (c *Controller) CreateStandardJob(taskName string, taskFlops float64, minCores, maxCores int) (string, error) {
	name := model.NewID()
	job, err := c.sim.CreateStandardJob(name, []model.Task{
		{Name: taskName, Flops: taskFlops, MinCores: minCores, MaxCores: maxCores},
	})
	if err != nil {
		return "", err
	}
	job.SubmitDate = -1 // not yet submitted

	c.mu.Lock()
	c.jobs[name] = job
	c.mu.Unlock()

	return name, nil
}

// SubmitStandardJob enqueues jobName for scheduling against serviceName. It
// fails immediately (without enqueuing) if either name is unknown or the
// job has already been submitted.
func (c *Controller) SubmitStandardJob(jobName, serviceName string) error {
	c.mu.Lock()
	job, jobOK := c.jobs[jobName]
	_, svcOK := c.services[serviceName]
	if jobOK && !model.ValidJobTransition(job.Status, model.JobStatusSubmitted) {
		c.mu.Unlock()
		return fmt.Errorf("job %q has already been submitted", jobName)
	}
	c.mu.Unlock()

	if !jobOK {
		return fmt.Errorf("unknown job %q", jobName)
	}
	if !svcOK {
		return fmt.Errorf("unknown compute service %q", serviceName)
	}

	c.mu.Lock()
	job.Status = model.JobStatusSubmitted
	job.ComputeService = serviceName
	job.SubmitDate = c.sim.Now()
	c.jobs[jobName] = job
	c.mu.Unlock()

	c.submissionQueue.Push(pendingJobSubmission{jobName: jobName, serviceName: serviceName})
	return nil
}

// GetSimulationEvents drains and returns every event currently available,
// without blocking.
func (c *Controller) GetSimulationEvents() []model.Event {
	var events []model.Event
	for {
		ev, ok := c.eventQueue.TryPop()
		if !ok {
			break
		}
		events = append(events, ev)
	}
	return events
}

// WaitForNextSimulationEvent sets the pending time request to wait-next and
// blocks until the controller produces an event or ctx is cancelled.
func (c *Controller) WaitForNextSimulationEvent(ctx context.Context) (model.Event, error) {
	c.mu.Lock()
	c.timeReq = timeRequest{mode: modeWaitNext}
	c.mu.Unlock()

	return c.eventQueue.WaitAndPop(ctx)
}

// StandardJobGetNumTasks returns the number of tasks jobName was
// constructed with.
func (c *Controller) StandardJobGetNumTasks(jobName string) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	job, ok := c.jobs[jobName]
	if !ok {
		return 0, fmt.Errorf("unknown job %q", jobName)
	}
	return len(job.Tasks), nil
}

// StopSimulation requests that the main loop exit on its next pass.
func (c *Controller) StopSimulation() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keepGoing = false
}

// realTimeYield sleeps sleepUS microseconds of real time between main-loop
// passes. It bounds CPU use when idle and never touches simulated time.
func realTimeYield(sleepUS int) {
	if sleepUS <= 0 {
		return
	}
	time.Sleep(time.Duration(sleepUS) * time.Microsecond)
}
