package chat

import (
	"context"

	"github.com/stupiduntilnot/personabot/internal/store"
)

// Recorder writes a finished turn back to the store. Fallback replies are
// recorded exactly like model replies.
type Recorder struct {
	Store store.Store
}

func (r *Recorder) Record(ctx context.Context, userID, message, reply string) error {
	_, err := r.Store.Append(ctx, userID, message, reply)
	return err
}
