package session

import "github.com/wrenchsim/daemon/internal/model"

// eventJSON is the wire shape of an event record (§6 of this API).
type eventJSON struct {
	EventDate          float64 `json:"event_date"`
	EventType          string  `json:"event_type"`
	ComputeServiceName string  `json:"compute_service_name"`
	JobName            string  `json:"job_name"`
	SubmitDate         float64 `json:"submit_date"`
	EndDate            float64 `json:"end_date"`
	FailureCause       string  `json:"failure_cause,omitempty"`
}

func toEventJSON(ev model.Event) eventJSON {
	return eventJSON{
		EventDate:          ev.EventDate,
		EventType:          ev.EventType,
		ComputeServiceName: ev.ComputeServiceName,
		JobName:            ev.JobName,
		SubmitDate:         ev.SubmitDate,
		EndDate:            ev.EndDate,
		FailureCause:       ev.FailureCause,
	}
}

func toEventJSONs(events []model.Event) []eventJSON {
	out := make([]eventJSON, len(events))
	for i, ev := range events {
		out[i] = toEventJSON(ev)
	}
	return out
}
