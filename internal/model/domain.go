package model

import "time"

// Job lifecycle status constants.
const (
	JobStatusConstructed = "constructed"
	JobStatusSubmitted   = "submitted"
	JobStatusCompleted   = "completed"
	JobStatusFailed      = "failed"
)

// Service type constants. Only ComputeBaremetal is registered today; new
// types are added via the controller's service-type registry, not by
// growing this list.
const (
	ComputeBaremetal = "compute_baremetal"
)

// Event kind constants.
const (
	EventJobCompletion = "job_completion"
	EventJobFailure    = "job_failure"
)

// validJobTransitions mirrors the transition-table approach used elsewhere
// in this codebase for other finite-state domain objects.
var validJobTransitions = map[string]map[string]bool{
	JobStatusConstructed: {
		JobStatusSubmitted: true,
	},
	JobStatusSubmitted: {
		JobStatusCompleted: true,
		JobStatusFailed:    true,
	},
}

// ValidJobTransition reports whether a job may move from one status to another.
func ValidJobTransition(from, to string) bool {
	targets, ok := validJobTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// Host is one entry of the static platform description loaded at session launch.
type Host struct {
	Name     string  `json:"name"`
	Cores    int     `json:"cores"`
	FlopRate float64 `json:"flop_rate"`
}

// ComputeService is a simulated cluster-like service registered by a client.
type ComputeService struct {
	Name     string  `json:"name"`
	Type     string  `json:"service_type"`
	HeadHost string  `json:"head_host"`
	Cores    int     `json:"-"`
	FlopRate float64 `json:"-"`
}

// Task is a primitive of work within a StandardJob. Immutable after creation.
type Task struct {
	Name     string  `json:"name"`
	Flops    float64 `json:"flops"`
	MinCores int     `json:"min_num_cores"`
	MaxCores int     `json:"max_num_cores"`
	MemoryMB int     `json:"memory_mb"`
}

// StandardJob is a unit of simulated work submitted to a ComputeService.
type StandardJob struct {
	Name           string
	Tasks          []Task
	Status         string
	ComputeService string
	SubmitDate     float64
	EndDate        float64
	FailureCause   string
}

// Event is the observable output of the simulator, delivered exactly once
// to the client that is watching for it.
type Event struct {
	EventDate          float64 `json:"event_date"`
	EventType          string  `json:"event_type"`
	ComputeServiceName string  `json:"compute_service_name"`
	JobName            string  `json:"job_name"`
	SubmitDate         float64 `json:"submit_date"`
	EndDate            float64 `json:"end_date"`
	FailureCause       string  `json:"failure_cause,omitempty"`
}

// SessionRecord is the supervisor's launch-bookkeeping entry for one spawned
// session process. It is pure operational metadata: it never stores a job,
// service, or event, and terminating a session never resurrects it.
type SessionRecord struct {
	ID             string     `json:"id"`
	Port           int        `json:"port"`
	PID            int        `json:"pid"`
	PlatformDigest string     `json:"platform_digest"`
	ControllerHost string     `json:"controller_hostname"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	ExitStatus     string     `json:"exit_status,omitempty"`
	FailureCause   string     `json:"failure_cause,omitempty"`
}

// Session exit classes, used for the supervisor's terminal-exit-class metric.
const (
	ExitClean   = "clean"
	ExitFailed  = "failed"
	ExitCrashed = "crashed"
)
