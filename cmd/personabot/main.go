package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stupiduntilnot/personabot/internal/bot"
	"github.com/stupiduntilnot/personabot/internal/chat"
	cmdpkg "github.com/stupiduntilnot/personabot/internal/commander"
	"github.com/stupiduntilnot/personabot/internal/config"
	"github.com/stupiduntilnot/personabot/internal/control"
	"github.com/stupiduntilnot/personabot/internal/db"
	"github.com/stupiduntilnot/personabot/internal/dummy"
	"github.com/stupiduntilnot/personabot/internal/httpapi"
	modelpkg "github.com/stupiduntilnot/personabot/internal/model"
	"github.com/stupiduntilnot/personabot/internal/observability"
	"github.com/stupiduntilnot/personabot/internal/openai"
	"github.com/stupiduntilnot/personabot/internal/persona"
	"github.com/stupiduntilnot/personabot/internal/store"
	"github.com/stupiduntilnot/personabot/internal/telegram"
)

func main() {
	cfg, err := config.LoadBotConfig()
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The SQLite state database always holds events and the poll offset;
	// exchanges live there too unless another store driver is selected.
	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("[bot] %v", err)
	}
	defer database.Close()
	if err := db.InitSchema(database); err != nil {
		log.Fatalf("[bot] failed to init schema: %v", err)
	}

	st, err := newStore(ctx, &cfg, database)
	if err != nil {
		log.Fatalf("[bot] failed to open store: %v", err)
	}
	defer st.Close()

	processEventID, err := db.LogEvent(database, nil, db.EventProcessStarted, map[string]any{
		"role":      "bot",
		"pid":       os.Getpid(),
		"persona":   cfg.CharacterName,
		"provider":  cfg.ModelProvider,
		"commander": cfg.Commander,
		"store":     cfg.StoreDriver,
	})
	if err != nil {
		log.Printf("[bot] failed to log process.started: %v", err)
	}

	commander, err := newCommander(&cfg)
	if err != nil {
		log.Fatalf("[bot] failed to init commander: %v", err)
	}
	provider, err := newModelProvider(&cfg)
	if err != nil {
		log.Fatalf("[bot] failed to init model provider: %v", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)
	commands := commandsFromConfig(&cfg)
	service := chat.NewService(chat.Options{
		Store:            st,
		Provider:         provider,
		Persona:          persona.Default(cfg.CharacterName, cfg.CharacterPrompt),
		Commands:         commands,
		PromptDepth:      cfg.PromptHistoryDepth,
		DisplayDepth:     cfg.DisplayHistoryDepth,
		PreviewChars:     cfg.PreviewChars,
		SerializePerUser: cfg.SerializePerUser,
		Metrics:          metrics,
	})

	offset, err := db.DeriveOffset(database)
	if err != nil {
		log.Fatalf("[bot] failed to derive offset: %v", err)
	}

	dispatcher := bot.New(bot.Options{
		Commander:     commander,
		Conversation:  service,
		Commands:      commands,
		StateDB:       database,
		ParentEventID: &processEventID,
		Metrics:       metrics,
		Circuit:       control.NewCircuitBreaker(5, 30*time.Second),
		Offset:        offset,
		PollTimeout:   cfg.PollTimeout,
		Idle:          time.Duration(cfg.SleepSeconds) * time.Second,
	})

	log.Printf(
		"[bot] running persona=%s api_base=%s model=%s provider=%s commander=%s store=%s offset=%d",
		cfg.CharacterName,
		cfg.APIBaseURL,
		cfg.APIModel,
		cfg.ModelProvider,
		cfg.Commander,
		cfg.StoreDriver,
		offset,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return dispatcher.Run(gctx)
	})
	if cfg.MetricsAddr != "" {
		srv := &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           httpapi.New(metrics, readinessPinger(st, database), buildInfo(&cfg)).Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			log.Printf("[bot] metrics listening addr=%s", cfg.MetricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	if err := g.Wait(); err != nil {
		log.Fatalf("[bot] exited with error: %v", err)
	}
	log.Printf("[bot] stopped")
}

func commandsFromConfig(cfg *config.BotConfig) chat.Commands {
	return chat.Commands{
		Prefix:  cfg.CommandPrefix,
		Chat:    cfg.ChatCommand,
		Clear:   cfg.ClearCommand,
		History: cfg.HistoryCommand,
		Topic:   cfg.TopicCommand,
		Mood:    cfg.MoodCommand,
		Info:    cfg.InfoCommand,
	}
}

// newStore shares the state database for the sqlite driver so a single
// connection pool serves both.
func newStore(ctx context.Context, cfg *config.BotConfig, database *sql.DB) (store.Store, error) {
	if cfg.StoreDriver == "" || cfg.StoreDriver == "sqlite" {
		return &store.SQLiteStore{DB: database}, nil
	}
	return store.Open(ctx, store.Options{
		Driver:      cfg.StoreDriver,
		SQLitePath:  cfg.DBPath,
		DatabaseURL: cfg.DatabaseURL,
	})
}

func newCommander(cfg *config.BotConfig) (cmdpkg.Commander, error) {
	switch cfg.Commander {
	case "telegram":
		return telegram.NewClient(cfg.TelegramAPIBase, time.Duration(cfg.PollTimeout+20)*time.Second), nil
	case "dummy":
		return dummy.NewCommander(cfg.DummyCommanderScript)
	default:
		return nil, fmt.Errorf("unsupported commander: %s", cfg.Commander)
	}
}

func newModelProvider(cfg *config.BotConfig) (modelpkg.Provider, error) {
	switch cfg.ModelProvider {
	case "openai":
		return openai.NewClient(openai.Options{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.APIBaseURL,
			Model:       cfg.APIModel,
			MaxTokens:   cfg.MaxTokens,
			Temperature: cfg.Temperature,
			Timeout:     cfg.RequestTimeout,
		}), nil
	case "dummy":
		return dummy.NewProvider(cfg.APIModel, cfg.DummyProviderScript)
	default:
		return nil, fmt.Errorf("unsupported model provider: %s", cfg.ModelProvider)
	}
}

// readinessPinger checks the exchange store when it can be pinged and falls
// back to the state database.
func readinessPinger(st store.Store, database *sql.DB) httpapi.Pinger {
	if p, ok := st.(httpapi.Pinger); ok {
		return p
	}
	return database
}

func buildInfo(cfg *config.BotConfig) map[string]any {
	return map[string]any{
		"persona":   cfg.CharacterName,
		"model":     cfg.APIModel,
		"provider":  cfg.ModelProvider,
		"commander": cfg.Commander,
		"store":     cfg.StoreDriver,
	}
}
