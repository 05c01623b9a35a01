package prompt

import (
	"context"

	"github.com/stupiduntilnot/personabot/internal/store"
)

// HistoryAccessor reads bounded history for prompting and for display.
// The two depths are tuned independently.
type HistoryAccessor struct {
	Reader       HistoryReader
	PromptDepth  int
	DisplayDepth int
}

// ForPrompt returns the newest PromptDepth exchanges, oldest first.
func (h *HistoryAccessor) ForPrompt(ctx context.Context, userID string) ([]store.Exchange, error) {
	return h.Reader.Recent(ctx, userID, h.PromptDepth)
}

// ForDisplay returns the newest DisplayDepth exchanges, oldest first.
func (h *HistoryAccessor) ForDisplay(ctx context.Context, userID string) ([]store.Exchange, error) {
	return h.Reader.Recent(ctx, userID, h.DisplayDepth)
}
