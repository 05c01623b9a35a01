// Package prompt turns stored exchanges and a new user message into the
// ordered message list sent to a completion endpoint.
package prompt

import (
	"context"

	"github.com/stupiduntilnot/personabot/internal/store"
)

// Assembler combines system prompt, history, and user message into a final message list.
type Assembler interface {
	Assemble(system string, history []store.Exchange, userMsg string) []Message
}

// HistoryReader is the part of store.Store the accessor depends on.
type HistoryReader interface {
	Recent(ctx context.Context, userID string, limit int) ([]store.Exchange, error)
}
