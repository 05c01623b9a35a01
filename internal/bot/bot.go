// Package bot polls the front end for updates and routes prefixed commands
// to the chat service.
package bot

import (
	"context"
	"database/sql"
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/stupiduntilnot/personabot/internal/chat"
	cmdpkg "github.com/stupiduntilnot/personabot/internal/commander"
	"github.com/stupiduntilnot/personabot/internal/control"
	"github.com/stupiduntilnot/personabot/internal/db"
	"github.com/stupiduntilnot/personabot/internal/observability"
)

// typingInterval refreshes the typing indicator before Telegram drops it.
const typingInterval = 4 * time.Second

// Conversation is the command surface the dispatcher drives.
type Conversation interface {
	Chat(ctx context.Context, userID, text string) (chat.Reply, error)
	Topic(ctx context.Context, userID string) (chat.Reply, error)
	Mood(ctx context.Context, userID string) (chat.Reply, error)
	Clear(ctx context.Context, userID string) (string, int64, error)
	History(ctx context.Context, userID string) (string, error)
	Info() string
	ChatUsage() string
	StorageFailure() string
}

// Options configures a Dispatcher. StateDB, ParentEventID, Metrics and
// Circuit are optional.
type Options struct {
	Commander     cmdpkg.Commander
	Conversation  Conversation
	Commands      chat.Commands
	StateDB       *sql.DB
	ParentEventID *int64
	Metrics       *observability.Metrics
	Circuit       *control.CircuitBreaker
	Offset        int64
	PollTimeout   int
	Idle          time.Duration
}

// Dispatcher runs one goroutine per inbound update.
type Dispatcher struct {
	commander cmdpkg.Commander
	conv      Conversation
	commands  chat.Commands
	stateDB   *sql.DB
	parentID  *int64
	metrics   *observability.Metrics
	circuit   *control.CircuitBreaker

	offset      int64
	pollTimeout int
	idle        time.Duration

	wg sync.WaitGroup
}

func New(opts Options) *Dispatcher {
	circuit := opts.Circuit
	if circuit == nil {
		circuit = control.NewCircuitBreaker(5, 30*time.Second)
	}
	return &Dispatcher{
		commander:   opts.Commander,
		conv:        opts.Conversation,
		commands:    opts.Commands,
		stateDB:     opts.StateDB,
		parentID:    opts.ParentEventID,
		metrics:     opts.Metrics,
		circuit:     circuit,
		offset:      opts.Offset,
		pollTimeout: opts.PollTimeout,
		idle:        opts.Idle,
	}
}

// Run polls until ctx is done, then waits for in-flight commands. Commands
// already started run to completion on a context detached from ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.wg.Wait()
	handlerCtx := context.WithoutCancel(ctx)
	failures := 0

	for ctx.Err() == nil {
		if !d.circuit.Allow(time.Now()) {
			_ = control.Sleep(ctx, d.idle)
			continue
		}

		updates, err := d.commander.GetUpdates(ctx, d.offset, d.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			failures++
			d.pollFailed(err, failures)
			_ = control.Sleep(ctx, max(d.idle, time.Duration(control.BackoffSeconds(failures))*time.Second))
			continue
		}
		failures = 0
		if d.circuit.RecordSuccess() {
			log.Printf("[bot] poll recovered")
			d.logEvent(db.EventCircuitClosed, map[string]any{"recovered": true})
		}

		for _, u := range updates {
			d.offset = u.UpdateID + 1
			if !d.accept(u) {
				continue
			}
			d.wg.Add(1)
			go func(u cmdpkg.Update) {
				defer d.wg.Done()
				d.Handle(handlerCtx, u)
			}(u)
		}
		if len(updates) == 0 {
			_ = control.Sleep(ctx, d.idle)
		}
	}
	log.Printf("[bot] stopping; waiting for in-flight commands")
	return nil
}

// Offset is the next update id the dispatcher will ask for.
func (d *Dispatcher) Offset() int64 {
	return d.offset
}

func (d *Dispatcher) pollFailed(err error, failures int) {
	class := control.ClassifyError(err)
	log.Printf("[bot] getUpdates error class=%s consecutive=%d: %v", class, failures, err)
	if d.metrics != nil {
		d.metrics.PollErrors.Inc()
	}
	d.logEvent(db.EventPollFailed, map[string]any{
		"error_class": class,
		"error":       truncate(err.Error(), 1000),
	})
	if d.circuit.RecordFailure(class, time.Now()) {
		log.Printf("[bot] circuit opened class=%s cooldown=%s", class, d.circuit.Cooldown)
		d.logEvent(db.EventCircuitOpened, map[string]any{
			"error_class":      class,
			"threshold":        d.circuit.Threshold,
			"cooldown_seconds": int(d.circuit.Cooldown.Seconds()),
		})
	}
}

// accept filters out updates that carry no sender text and, with a state
// database, updates already handled before a restart.
func (d *Dispatcher) accept(u cmdpkg.Update) bool {
	m := u.Message
	if m == nil || m.Text == nil || m.From == nil || m.From.IsBot {
		return false
	}
	if d.stateDB == nil {
		return true
	}
	fresh, err := db.MarkUpdateSeen(d.stateDB, u.UpdateID, m.Chat.ID, userID(m.From))
	if err != nil {
		log.Printf("[bot] mark update_id=%d seen failed, dispatching anyway: %v", u.UpdateID, err)
		return true
	}
	if !fresh {
		log.Printf("[bot] skip duplicate update_id=%d", u.UpdateID)
	}
	return fresh
}

func (d *Dispatcher) logEvent(eventType string, payload map[string]any) {
	if d.stateDB == nil {
		return
	}
	if _, err := db.LogEvent(d.stateDB, d.parentID, eventType, payload); err != nil {
		log.Printf("[bot] failed to log %s: %v", eventType, err)
	}
}

func userID(u *cmdpkg.User) string {
	return strconv.FormatInt(u.ID, 10)
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
