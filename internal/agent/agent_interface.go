package agent

import (
	"context"

	"github.com/yanivcohen1/agent-zero-telegram-bot/internal/domain"
)

// Invoker performs one call to the remote agent.
// This interface is implemented by the HTTP client.
type Invoker interface {
	// Invoke sends a prompt and returns the cleaned response text and any
	// media files the response referenced.
	Invoke(ctx context.Context, prompt string, scheduled bool, attachments []domain.Attachment) (*Result, error)
}

// ContextStore is the conversation context the client threads through
// interactive calls.
type ContextStore interface {
	Current() string
	Set(contextID string)
}

// Ensure Client implements Invoker.
var _ Invoker = (*Client)(nil)
