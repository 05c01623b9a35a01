package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SQLiteStore keeps exchanges in the conversations table created by db.InitSchema.
type SQLiteStore struct {
	DB *sql.DB

	owned bool
}

func (s *SQLiteStore) Append(ctx context.Context, userID, message, response string) (Exchange, error) {
	ex := Exchange{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.DB.ExecContext(ctx,
		"INSERT INTO conversations (id, user_id, message, response, created_at) VALUES (?, ?, ?, ?, ?)",
		ex.ID, ex.UserID, ex.Message, ex.Response, ex.CreatedAt.UnixNano(),
	)
	if err != nil {
		return Exchange{}, fmt.Errorf("%w: insert exchange: %w", ErrStorage, err)
	}
	return ex, nil
}

func (s *SQLiteStore) Recent(ctx context.Context, userID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, user_id, message, response, created_at FROM conversations
		 WHERE user_id = ? ORDER BY created_at DESC, seq DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent exchanges: %w", ErrStorage, err)
	}
	defer rows.Close()

	items := make([]Exchange, 0, limit)
	for rows.Next() {
		var ex Exchange
		var createdAt int64
		if err := rows.Scan(&ex.ID, &ex.UserID, &ex.Message, &ex.Response, &createdAt); err != nil {
			return nil, fmt.Errorf("%w: scan exchange: %w", ErrStorage, err)
		}
		ex.CreatedAt = time.Unix(0, createdAt).UTC()
		items = append(items, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate exchanges: %w", ErrStorage, err)
	}

	reverse(items)
	return items, nil
}

func (s *SQLiteStore) Clear(ctx context.Context, userID string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, "DELETE FROM conversations WHERE user_id = ?", userID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete exchanges: %w", ErrStorage, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

// Close closes the database only when the store opened it itself.
func (s *SQLiteStore) Close() error {
	if !s.owned {
		return nil
	}
	return s.DB.Close()
}
