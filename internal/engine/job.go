package engine

import (
	"fmt"

	"github.com/wrenchsim/daemon/internal/model"
)

// CreateStandardJob builds a StandardJob from the given tasks. Creation is
// thread-safe and does not require the controller goroutine; only
// submission and scheduling do.
func (s *Simulation) CreateStandardJob(name string, tasks []model.Task) (model.StandardJob, error) {
	if len(tasks) == 0 {
		return model.StandardJob{}, fmt.Errorf("standard job %q has no tasks", name)
	}
	for _, t := range tasks {
		if t.MinCores <= 0 || t.MaxCores < t.MinCores {
			return model.StandardJob{}, fmt.Errorf("task %q has invalid core bounds [%d,%d]", t.Name, t.MinCores, t.MaxCores)
		}
	}
	return model.StandardJob{
		Name:   name,
		Tasks:  tasks,
		Status: model.JobStatusConstructed,
	}, nil
}

// pendingSubmission pairs a job name with the compute service it was
// submitted to. Nothing uses it: the controller's submission queue carries
// its own pendingJobSubmission type.
type pendingSubmission struct {
	JobName            string
	ComputeServiceName string
}

// scheduledCompletion is produced when a submitted job is scheduled onto a
// service. It carries everything needed to synthesize the job's terminal
// event once the simulated clock reaches CompletionDate.
type scheduledCompletion struct {
	Job                model.StandardJob
	ComputeServiceName string
	CompletionDate     float64
	Failed             bool
	FailureCause       string
}

// Schedule computes the deterministic completion (or rejection) of job on
// svc as of the simulation's current time. It does not mutate simulation
// state; the caller is responsible for recording the result.
func (s *Simulation) Schedule(job model.StandardJob, svc model.ComputeService) scheduledCompletion {
	now := s.clock.Now()

	var totalFlops float64
	maxMinCores := 0
	for _, t := range job.Tasks {
		totalFlops += t.Flops
		if t.MinCores > maxMinCores {
			maxMinCores = t.MinCores
		}
	}

	if maxMinCores > svc.Cores {
		return scheduledCompletion{
			Job:                job,
			ComputeServiceName: svc.Name,
			CompletionDate:     now,
			Failed:             true,
			FailureCause: fmt.Sprintf(
				"compute service %q has %d cores, which is fewer than the %d cores task requires",
				svc.Name, svc.Cores, maxMinCores,
			),
		}
	}

	coresUsed := maxMinCores
	if coresUsed <= 0 {
		coresUsed = 1
	}
	runtime := totalFlops / (svc.FlopRate * float64(coresUsed))

	return scheduledCompletion{
		Job:                job,
		ComputeServiceName: svc.Name,
		CompletionDate:     now + runtime,
	}
}
