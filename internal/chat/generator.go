// Package chat runs a chat turn: CRM lookup, instruction building, streamed
// generation and detached persistence of the turn.
package chat

import (
	"context"

	"dibs-assistant/internal/models"
)

// GenerateRequest is the input to a text generator.
type GenerateRequest struct {
	System   string
	Messages []models.ChatMessage
}

// Generator streams a completion. onToken is called once per text delta in
// order; an error from onToken aborts the stream and is returned as is. The
// returned string is the full generated text.
type Generator interface {
	Stream(ctx context.Context, req GenerateRequest, onToken func(string) error) (string, error)
}
