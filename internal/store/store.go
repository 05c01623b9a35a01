// Package store persists conversation exchanges keyed by user identity.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrStorage marks every failure raised by a backend. Callers treat it as a
	// storage fault and must not record an exchange after it.
	ErrStorage = errors.New("storage fault")
	// ErrInvalidLimit is returned by Recent when limit is not positive.
	ErrInvalidLimit = errors.New("limit must be a positive integer")
)

// Exchange is one recorded conversational turn. It is never mutated after insert.
type Exchange struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Response  string    `json:"response"`
	CreatedAt time.Time `json:"created_at"`
}

// Store is an append-only exchange log queried by recency.
//
// Recent selects the limit newest exchanges and returns them oldest first.
// Clear deletes every exchange of a user and reports how many were removed;
// clearing an empty history is not an error.
type Store interface {
	Append(ctx context.Context, userID, message, response string) (Exchange, error)
	Recent(ctx context.Context, userID string, limit int) ([]Exchange, error)
	Clear(ctx context.Context, userID string) (int64, error)
	Close() error
}

func reverse(items []Exchange) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}
