// Package events fans task lifecycle events out to live subscribers.
package events

import (
	"time"
)

// Type names a lifecycle event.
type Type string

const (
	// TaskStarted is published before the agent is called.
	TaskStarted Type = "task.started"
	// TaskCompleted is published after the result was relayed.
	TaskCompleted Type = "task.completed"
	// TaskFailed is published after the error notice was sent.
	TaskFailed Type = "task.failed"
	// MediaFailed is published when a file could not be delivered at all.
	MediaFailed Type = "media.failed"
	// ScheduleSkipped is published when a firing is dropped at the overlap cap.
	ScheduleSkipped Type = "schedule.skipped"
)

// Event is one entry of the live stream.
type Event struct {
	Type      Type      `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	ChatID    int64     `json:"chat_id,omitempty"`
	Scheduled bool      `json:"scheduled"`
	JobName   string    `json:"job_name,omitempty"`
	Prompt    string    `json:"prompt,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	At        time.Time `json:"at"`
}
