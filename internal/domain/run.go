package domain

import (
	"time"
)

// RunStatus is the lifecycle state of a journaled task run.
type RunStatus string

const (
	// RunRunning marks a run whose agent call has not returned yet.
	RunRunning RunStatus = "running"
	// RunSucceeded marks a run whose result was relayed.
	RunSucceeded RunStatus = "succeeded"
	// RunFailed marks a run that ended with an error notice.
	RunFailed RunStatus = "failed"
)

// TaskRun is the journal record of one dispatcher execution.
type TaskRun struct {
	ID         string     `json:"id"`
	Prompt     string     `json:"prompt"`
	ChatID     int64      `json:"chat_id"`
	Scheduled  bool       `json:"scheduled"`
	JobName    string     `json:"job_name,omitempty"`
	Status     RunStatus  `json:"status"`
	Error      string     `json:"error,omitempty"`
	MediaCount int        `json:"media_count"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Duration returns how long the run took, or zero while it is running.
func (r *TaskRun) Duration() time.Duration {
	if r.FinishedAt == nil {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
