package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps exchanges in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required for the postgres store")
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := initPostgresSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &PostgresStore{pool: pool}, nil
}

func initPostgresSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS conversations (
			seq BIGSERIAL PRIMARY KEY,
			id TEXT NOT NULL UNIQUE,
			user_id TEXT NOT NULL,
			message TEXT NOT NULL,
			response TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_user_created ON conversations (user_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("init schema failed on %q: %w", stmt, err)
		}
	}
	return nil
}

func (s *PostgresStore) Append(ctx context.Context, userID, message, response string) (Exchange, error) {
	ex := Exchange{
		ID:        uuid.NewString(),
		UserID:    userID,
		Message:   message,
		Response:  response,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO conversations (id, user_id, message, response, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		ex.ID, ex.UserID, ex.Message, ex.Response, ex.CreatedAt,
	)
	if err != nil {
		return Exchange{}, fmt.Errorf("%w: insert exchange: %w", ErrStorage, err)
	}
	return ex, nil
}

func (s *PostgresStore) Recent(ctx context.Context, userID string, limit int) ([]Exchange, error) {
	if limit <= 0 {
		return nil, ErrInvalidLimit
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, user_id, message, response, created_at
		 FROM conversations WHERE user_id=$1 ORDER BY created_at DESC, seq DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("%w: query recent exchanges: %w", ErrStorage, err)
	}
	defer rows.Close()

	items := make([]Exchange, 0, limit)
	for rows.Next() {
		var ex Exchange
		if err := rows.Scan(&ex.ID, &ex.UserID, &ex.Message, &ex.Response, &ex.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: scan exchange: %w", ErrStorage, err)
		}
		ex.CreatedAt = ex.CreatedAt.UTC()
		items = append(items, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate exchanges: %w", ErrStorage, err)
	}

	reverse(items)
	return items, nil
}

func (s *PostgresStore) Clear(ctx context.Context, userID string) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM conversations WHERE user_id=$1`, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: delete exchanges: %w", ErrStorage, err)
	}
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// PingContext reports whether the pool can reach the server.
func (s *PostgresStore) PingContext(ctx context.Context) error {
	return s.pool.Ping(ctx)
}
