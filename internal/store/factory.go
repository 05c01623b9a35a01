package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/stupiduntilnot/personabot/internal/db"
)

// Options selects and configures a backend.
type Options struct {
	Driver      string // sqlite, postgres or memory
	SQLitePath  string
	DatabaseURL string
}

// Open creates the backend named by opts.Driver. An empty driver means sqlite.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch strings.ToLower(strings.TrimSpace(opts.Driver)) {
	case "", "sqlite":
		database, err := db.OpenDB(opts.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := db.InitSchema(database); err != nil {
			database.Close()
			return nil, fmt.Errorf("init sqlite schema: %w", err)
		}
		return &SQLiteStore{DB: database, owned: true}, nil
	case "postgres":
		return NewPostgresStore(ctx, opts.DatabaseURL)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported store driver: %s", opts.Driver)
	}
}
