package engine

import (
	"container/heap"

	"github.com/wrenchsim/daemon/internal/model"
)

// Simulation holds the engine state for one session: the immutable
// platform, the simulated clock, and the set of completions scheduled but
// not yet observed. Hostnames, HostExists, Now, CreateStandardJob and
// StartComputeService are safe from any goroutine; every other method is
// controller-goroutine-only.
type Simulation struct {
	platform  *Platform
	clock     Clock
	scheduled completionHeap
}

// NewSimulation creates a Simulation bound to the given platform. The
// platform is not copied; callers must not mutate it after this call.
func NewSimulation(platform *Platform) *Simulation {
	return &Simulation{platform: platform}
}

// Hostnames returns the platform's host names. Safe from any goroutine.
func (s *Simulation) Hostnames() []string {
	return s.platform.Hostnames()
}

// HostExists reports whether name exists on the platform. Safe from any
// goroutine.
func (s *Simulation) HostExists(name string) bool {
	return s.platform.HostExists(name)
}

// Now returns the current simulated time. Safe from any goroutine.
func (s *Simulation) Now() float64 {
	return s.clock.Now()
}

// Enqueue records a scheduled completion (success or failure) to be
// observed once the simulated clock reaches its completion date.
func (s *Simulation) Enqueue(c scheduledCompletion) {
	heap.Push(&s.scheduled, c)
}

// NextCompletionDue peeks the earliest pending completion's date without
// removing it. The second return value is false if nothing is pending.
func (s *Simulation) NextCompletionDue() (float64, bool) {
	if s.scheduled.Len() == 0 {
		return 0, false
	}
	return s.scheduled[0].CompletionDate, true
}

// AdvanceAndCollect moves the simulated clock forward to target (never
// backward) and returns, in completion order, every event whose scheduled
// date falls at or before target.
func (s *Simulation) AdvanceAndCollect(target float64) []model.Event {
	var events []model.Event
	for s.scheduled.Len() > 0 && s.scheduled[0].CompletionDate <= target {
		next := heap.Pop(&s.scheduled).(scheduledCompletion)
		s.clock.Sleep(next.CompletionDate - s.clock.Now())
		events = append(events, toEvent(next))
	}
	if target > s.clock.Now() {
		s.clock.Sleep(target - s.clock.Now())
	}
	return events
}

func toEvent(c scheduledCompletion) model.Event {
	if c.Failed {
		return model.Event{
			EventDate:          c.CompletionDate,
			EventType:          model.EventJobFailure,
			ComputeServiceName: c.ComputeServiceName,
			JobName:            c.Job.Name,
			SubmitDate:         c.Job.SubmitDate,
			EndDate:            c.CompletionDate,
			FailureCause:       c.FailureCause,
		}
	}
	return model.Event{
		EventDate:          c.CompletionDate,
		EventType:          model.EventJobCompletion,
		ComputeServiceName: c.ComputeServiceName,
		JobName:            c.Job.Name,
		SubmitDate:         c.Job.SubmitDate,
		EndDate:            c.CompletionDate,
	}
}

// completionHeap orders scheduledCompletion values by CompletionDate so the
// earliest-due completion is always observed first.
type completionHeap []scheduledCompletion

func (h completionHeap) Len() int           { return len(h) }
func (h completionHeap) Less(i, j int) bool { return h[i].CompletionDate < h[j].CompletionDate }
func (h completionHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *completionHeap) Push(x interface{}) { *h = append(*h, x.(scheduledCompletion)) }
func (h *completionHeap) Pop() interface{} {
	old := *h
	n := len(old)
	v := old[n-1]
	*h = old[:n-1]
	return v
}
