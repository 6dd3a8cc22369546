// Package domain contains core domain types shared by the bot components.
package domain

// Attachment is a file sent to the remote agent alongside a prompt.
type Attachment struct {
	Filename string
	Data     []byte
}

// MediaFile is a file produced by the remote agent and relayed to the chat.
type MediaFile struct {
	Name string
	Data []byte
}

// Task is one unit of work handed to the dispatcher. It has no identity
// beyond its lifetime.
type Task struct {
	Prompt      string
	ChatID      int64
	Scheduled   bool
	JobName     string // set for scheduled firings
	Attachments []Attachment
}

// Kind returns a short label used in logs and events.
func (t Task) Kind() string {
	if t.Scheduled {
		return "scheduled"
	}
	return "interactive"
}
