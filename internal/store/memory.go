package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process store for local runs and tests. Slice order is
// insertion order.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string][]Exchange
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string][]Exchange)}
}

func (s *MemoryStore) Append(_ context.Context, userID, message, response string) (Exchange, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ex := Exchange{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	s.records[userID] = append(s.records[userID], ex)
	return ex, nil
}

func (s *MemoryStore) Recent(_ context.Context, userID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[userID]
	if limit > len(arr) {
		limit = len(arr)
	}
	out := make([]Exchange, 0, limit)
	out = append(out, arr[len(arr)-limit:]...)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.records[userID]))
	delete(s.records, userID)
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
