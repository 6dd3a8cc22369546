// Package agent implements the client for the remote task-execution agent.
package agent

import (
	"errors"
	"fmt"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
)

// ErrUnreachable is returned when the agent could not be reached at all.
// Transport details are logged, never shown to the user.
var ErrUnreachable = errors.New("could not connect to the agent service")

// NoTextResponse replaces a missing response field.
const NoTextResponse = "No textual response received from the agent."

// MediaScheme is the internal prefix the agent puts on file references.
const MediaScheme = "img://"

// ContextFieldNames lists the response fields that may carry the
// continuation identifier, in precedence order. The agent's actual field
// name is not pinned down, so every known variant is accepted.
var ContextFieldNames = []string{"context_id", "id", "session_id", "chat_id"}

// Result is the parsed outcome of one agent call.
type Result struct {
	Text      string
	Media     []domain.MediaFile
	ContextID string // empty when the response carried none, or for scheduled calls
}

// StatusError reports a non-200 answer from the agent.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("agent returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("agent returned status %d: %s", e.StatusCode, e.Body)
}

// messageRequest is the body of POST /api_message.
type messageRequest struct {
	Message       string              `json:"message"`
	LifetimeHours int                 `json:"lifetime_hours"`
	Attachments   []attachmentPayload `json:"attachments,omitempty"`
	ContextID     string              `json:"context_id,omitempty"`
}

type attachmentPayload struct {
	Filename string `json:"filename"`
	Base64   string `json:"base64"`
}

// filesRequest is the body of POST /api_files_get.
type filesRequest struct {
	Paths []string `json:"paths"`
}
