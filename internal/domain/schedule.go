package domain

import (
	"time"
)

// DefaultMaxConcurrentFirings caps overlapping firings of one job.
const DefaultMaxConcurrentFirings = 2

// ScheduledJob is a named recurring prompt owned by the schedule registry.
type ScheduledJob struct {
	Name          string
	Interval      time.Duration
	Prompt        string
	ChatID        int64
	MaxConcurrent int
	CreatedAt     time.Time
}

// JobInfo is a read-only snapshot of a registered job.
type JobInfo struct {
	Name      string        `json:"name"`
	Interval  time.Duration `json:"-"`
	Seconds   int64         `json:"interval_seconds"`
	Prompt    string        `json:"prompt"`
	ChatID    int64         `json:"chat_id"`
	CreatedAt time.Time     `json:"created_at"`
	Firings   int64         `json:"firings"`
	Skipped   int64         `json:"skipped"`
}
