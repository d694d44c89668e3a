package session

import (
	"context"
	"encoding/json"
	"net/http"
)

const maxBodySize = 1 << 20 // 1 MB

// envelope is the response shape every /api/ endpoint uses: a success
// flag plus, on failure, a human-readable cause. Successful responses embed
// their payload fields alongside WrenchAPIRequestSuccess via struct
// composition in each handler's response type.
type envelope struct {
	WrenchAPIRequestSuccess bool   `json:"wrench_api_request_success"`
	FailureCause            string `json:"failure_cause,omitempty"`
}

func (s *Server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("encode response", "error", err)
	}
}

// writeFailure writes the envelope's failure shape with HTTP 200, matching
// this API's convention of reporting validation and runtime failures
// in-band rather than via HTTP status.
func (s *Server) writeFailure(w http.ResponseWriter, cause string) {
	s.writeJSON(w, envelope{WrenchAPIRequestSuccess: false, FailureCause: cause})
}

func (s *Server) writeSuccess(w http.ResponseWriter, v any) {
	s.writeJSON(w, v)
}

// decodeBody decodes a JSON request body, writing an HTTP 400 (no envelope)
// on malformed JSON — the one class of error this API reports via status
// code, since there is no parsed body to build an envelope from.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return false
	}
	return true
}

func (s *Server) handleAlive(w http.ResponseWriter, r *http.Request) {
	s.writeSuccess(w, struct {
		envelope
		Alive bool `json:"alive"`
	}{
		envelope: envelope{WrenchAPIRequestSuccess: true},
		Alive:    true,
	})
}

func (s *Server) handleTerminateSimulation(w http.ResponseWriter, r *http.Request) {
	s.controller.StopSimulation()
	s.writeSuccess(w, envelope{WrenchAPIRequestSuccess: true})

	go func() {
		if s.shutdown != nil {
			s.shutdown()
		}
		if s.onTerminate != nil {
			s.onTerminate()
		}
	}()
}

func (s *Server) handleGetTime(w http.ResponseWriter, r *http.Request) {
	s.writeSuccess(w, struct {
		envelope
		Time float64 `json:"time"`
	}{
		envelope: envelope{WrenchAPIRequestSuccess: true},
		Time:     s.controller.GetSimulationTime(),
	})
}

func (s *Server) handleGetAllHostnames(w http.ResponseWriter, r *http.Request) {
	s.writeSuccess(w, struct {
		envelope
		Hostnames []string `json:"hostnames"`
	}{
		envelope:  envelope{WrenchAPIRequestSuccess: true},
		Hostnames: s.controller.GetAllHostnames(),
	})
}

type advanceTimeRequest struct {
	Increment float64 `json:"increment"`
}

func (s *Server) handleAdvanceTime(w http.ResponseWriter, r *http.Request) {
	var req advanceTimeRequest
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Increment < 0 {
		s.writeFailure(w, "increment must be non-negative")
		return
	}

	s.controller.AdvanceTime(req.Increment)
	s.writeSuccess(w, envelope{WrenchAPIRequestSuccess: true})
}

type addServiceRequest struct {
	ServiceType string `json:"service_type"`
	HeadHost    string `json:"head_host"`
}

func (s *Server) handleAddService(w http.ResponseWriter, r *http.Request) {
	var req addServiceRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name, err := s.controller.AddService(req.ServiceType, req.HeadHost)
	if err != nil {
		s.writeFailure(w, err.Error())
		return
	}

	s.writeSuccess(w, struct {
		envelope
		ServiceName string `json:"service_name"`
	}{
		envelope:    envelope{WrenchAPIRequestSuccess: true},
		ServiceName: name,
	})
}

type createStandardJobRequest struct {
	TaskName    string  `json:"task_name"`
	TaskFlops   float64 `json:"task_flops"`
	MinNumCores int     `json:"min_num_cores"`
	MaxNumCores int     `json:"max_num_cores"`
}

func (s *Server) handleCreateStandardJob(w http.ResponseWriter, r *http.Request) {
	var req createStandardJobRequest
	if !decodeBody(w, r, &req) {
		return
	}

	name, err := s.controller.CreateStandardJob(req.TaskName, req.TaskFlops, req.MinNumCores, req.MaxNumCores)
	if err != nil {
		s.writeFailure(w, err.Error())
		return
	}

	s.writeSuccess(w, struct {
		envelope
		JobName string `json:"job_name"`
	}{
		envelope: envelope{WrenchAPIRequestSuccess: true},
		JobName:  name,
	})
}

type submitStandardJobRequest struct {
	JobName            string `json:"job_name"`
	ComputeServiceName string `json:"compute_service_name"`
}

func (s *Server) handleSubmitStandardJob(w http.ResponseWriter, r *http.Request) {
	var req submitStandardJobRequest
	if !decodeBody(w, r, &req) {
		return
	}

	if err := s.controller.SubmitStandardJob(req.JobName, req.ComputeServiceName); err != nil {
		s.writeFailure(w, err.Error())
		return
	}

	s.writeSuccess(w, envelope{WrenchAPIRequestSuccess: true})
}

func (s *Server) handleGetSimulationEvents(w http.ResponseWriter, r *http.Request) {
	raw := s.controller.GetSimulationEvents()
	for _, ev := range raw {
		recordEventDelivered(ev.EventType)
	}
	events := toEventJSONs(raw)

	s.writeSuccess(w, struct {
		envelope
		Events []eventJSON `json:"events"`
	}{
		envelope: envelope{WrenchAPIRequestSuccess: true},
		Events:   events,
	})
}

func (s *Server) handleWaitForNextSimulationEvent(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	ev, err := s.controller.WaitForNextSimulationEvent(ctx)
	if err != nil {
		s.writeFailure(w, "no event observed: "+err.Error())
		return
	}
	recordEventDelivered(ev.EventType)

	s.writeSuccess(w, struct {
		envelope
		Event eventJSON `json:"event"`
	}{
		envelope: envelope{WrenchAPIRequestSuccess: true},
		Event:    toEventJSON(ev),
	})
}

type standardJobGetNumTasksRequest struct {
	JobName string `json:"job_name"`
}

func (s *Server) handleStandardJobGetNumTasks(w http.ResponseWriter, r *http.Request) {
	var req standardJobGetNumTasksRequest
	if !decodeBody(w, r, &req) {
		return
	}

	n, err := s.controller.StandardJobGetNumTasks(req.JobName)
	if err != nil {
		s.writeFailure(w, err.Error())
		return
	}

	s.writeSuccess(w, struct {
		envelope
		NumTasks int `json:"num_tasks"`
	}{
		envelope: envelope{WrenchAPIRequestSuccess: true},
		NumTasks: n,
	})
}
