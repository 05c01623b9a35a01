// Command chatlog prints or clears the exchanges stored for a user and
// renders the bot's audit event tree.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/stupiduntilnot/personabot/internal/store"
)

type options struct {
	driver      string
	dbPath      string
	databaseURL string
	user        string
	limit       int
	jsonOut     bool
	clear       bool

	events    bool
	eventID   int64
	maxDepth  int
	noPayload bool
}

func main() {
	if err := run(context.Background(), os.Args[1:], os.Stdout); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			os.Exit(2)
		}
		log.Fatalf("[chatlog] %v", err)
	}
}

func run(ctx context.Context, args []string, out io.Writer) error {
	opts, err := parseFlags(args)
	if err != nil {
		return err
	}
	if opts.events {
		return runEvents(opts, out)
	}
	if opts.user == "" {
		return fmt.Errorf("-user is required")
	}

	st, err := store.Open(ctx, store.Options{
		Driver:      opts.driver,
		SQLitePath:  opts.dbPath,
		DatabaseURL: opts.databaseURL,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if opts.clear {
		n, err := st.Clear(ctx, opts.user)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "cleared %d exchanges for user %s\n", n, opts.user)
		return nil
	}

	items, err := st.Recent(ctx, opts.user, opts.limit)
	if err != nil {
		return err
	}
	if opts.jsonOut {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(items)
	}
	printExchanges(out, items)
	return nil
}

func parseFlags(args []string) (options, error) {
	var opts options
	fs := flag.NewFlagSet("chatlog", flag.ContinueOnError)
	fs.StringVar(&opts.driver, "driver", envOrDefault("STORE_DRIVER", "sqlite"), "store driver: sqlite or postgres")
	fs.StringVar(&opts.dbPath, "db", envOrDefault("BOT_DB_PATH", "./chat_history.db"), "SQLite database path")
	fs.StringVar(&opts.databaseURL, "database-url", os.Getenv("DATABASE_URL"), "PostgreSQL connection string")
	fs.StringVar(&opts.user, "user", "", "user id whose exchanges to show")
	fs.IntVar(&opts.limit, "n", 20, "number of most recent exchanges")
	fs.BoolVar(&opts.jsonOut, "json", false, "output JSON format")
	fs.BoolVar(&opts.clear, "clear", false, "delete every exchange of -user")
	fs.BoolVar(&opts.events, "events", false, "show the audit event tree instead of exchanges")
	fs.Int64Var(&opts.eventID, "id", 0, "with -events, show subtree of a specific event ID")
	fs.IntVar(&opts.maxDepth, "L", 0, "with -events, limit display depth (0 = unlimited)")
	fs.BoolVar(&opts.noPayload, "no-payload", false, "with -events, hide payload details")
	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.limit <= 0 {
		return options{}, fmt.Errorf("-n must be positive, got %d", opts.limit)
	}
	return opts, nil
}

func printExchanges(out io.Writer, items []store.Exchange) {
	if len(items) == 0 {
		fmt.Fprintln(out, "(no exchanges)")
		return
	}
	for _, ex := range items {
		fmt.Fprintf(out, "%s  %s\n", ex.CreatedAt.Local().Format(time.DateTime), ex.ID)
		fmt.Fprintf(out, "  > %s\n", ex.Message)
		fmt.Fprintf(out, "  < %s\n", ex.Response)
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
