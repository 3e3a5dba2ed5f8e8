package progress

import "encoding/json"

// Status of a single progress event.
type Status string

const (
	StatusDownloading Status = "downloading"
	StatusProcessing  Status = "processing"
	StatusFinished    Status = "finished"
	StatusError       Status = "error"
	StatusHeartbeat   Status = "heartbeat"
)

// Event is one update pushed through a job's progress queue.
type Event struct {
	Status     Status
	Progress   float64
	Speed      float64
	ETA        float64
	Downloaded int64
	Total      int64
	Message    string
}

// Terminal reports whether the event ends a progress stream.
func (e Event) Terminal() bool {
	return e.Status == StatusFinished || e.Status == StatusError
}

// MarshalJSON emits only the fields that belong to each status.
// Heartbeats carry nothing but the status; a downloading event with an
// unknown total keeps the zeroed progress/speed/eta fields but drops the
// byte counters.
func (e Event) MarshalJSON() ([]byte, error) {
	switch e.Status {
	case StatusDownloading:
		if e.Total > 0 {
			return json.Marshal(struct {
				Status     Status  `json:"status"`
				Progress   float64 `json:"progress"`
				Speed      float64 `json:"speed"`
				ETA        float64 `json:"eta"`
				Downloaded int64   `json:"downloaded"`
				Total      int64   `json:"total"`
			}{e.Status, e.Progress, e.Speed, e.ETA, e.Downloaded, e.Total})
		}
		return json.Marshal(struct {
			Status   Status  `json:"status"`
			Progress float64 `json:"progress"`
			Speed    float64 `json:"speed"`
			ETA      float64 `json:"eta"`
		}{Status: e.Status})
	case StatusProcessing, StatusFinished:
		return json.Marshal(struct {
			Status   Status  `json:"status"`
			Progress float64 `json:"progress"`
		}{e.Status, e.Progress})
	case StatusError:
		return json.Marshal(struct {
			Status  Status `json:"status"`
			Message string `json:"message"`
		}{e.Status, e.Message})
	default:
		return json.Marshal(struct {
			Status Status `json:"status"`
		}{e.Status})
	}
}

// Downloading builds a transfer progress event. An unknown or zero total
// yields the zero-progress placeholder instead of an error.
func Downloading(downloaded, total int64, speed, eta float64) Event {
	if total <= 0 {
		return Event{Status: StatusDownloading}
	}
	ev := Event{
		Status:     StatusDownloading,
		Downloaded: downloaded,
		Total:      total,
		Speed:      speed,
		ETA:        eta,
		Progress:   float64(downloaded) / float64(total) * 100,
	}
	if ev.Progress > 100 {
		ev.Progress = 100
	}
	return ev
}

// Processing marks the transfer done and the merge/mux step running.
// This is not a terminal event.
func Processing() Event {
	return Event{Status: StatusProcessing, Progress: 100}
}

// Finished is the single terminal success event of a job.
func Finished() Event {
	return Event{Status: StatusFinished, Progress: 100}
}

// Failed is the terminal failure event of a job.
func Failed(message string) Event {
	return Event{Status: StatusError, Message: message}
}

// Heartbeat keeps an idle stream connection alive.
func Heartbeat() Event {
	return Event{Status: StatusHeartbeat}
}
