package bot

import (
	"context"
	"log"
	"time"

	"github.com/stupiduntilnot/personabot/internal/chat"
	cmdpkg "github.com/stupiduntilnot/personabot/internal/commander"
	"github.com/stupiduntilnot/personabot/internal/db"
)

// result labels for the commands counter
const (
	resultOK    = "ok"
	resultUsage = "usage"
	resultError = "error"
)

// Handle runs one update to completion. Unknown commands and text without
// the prefix are ignored.
func (d *Dispatcher) Handle(ctx context.Context, u cmdpkg.Update) {
	m := u.Message
	if m == nil || m.Text == nil || m.From == nil {
		return
	}
	name, args, ok := Parse(d.commands.Prefix, *m.Text)
	if !ok || !d.known(name) {
		return
	}

	uid := userID(m.From)
	chatID := m.Chat.ID
	start := time.Now()
	if d.metrics != nil {
		d.metrics.InFlight.Inc()
		defer d.metrics.InFlight.Dec()
	}
	log.Printf("[bot] command=%s user_id=%s chat_id=%d text=%s", name, uid, chatID, truncate(args, 200))
	d.logEvent(db.EventCommandStarted, map[string]any{
		"update_id": u.UpdateID,
		"user_id":   uid,
		"chat_id":   chatID,
		"command":   name,
	})

	text, result, op, err := d.run(ctx, name, args, uid, chatID)
	if err != nil {
		log.Printf("[bot] command=%s user_id=%s storage fault op=%s: %v", name, uid, op, err)
		if d.metrics != nil {
			d.metrics.StorageErrors.WithLabelValues(op).Inc()
		}
		d.logEvent(db.EventCommandFailed, map[string]any{
			"update_id": u.UpdateID,
			"command":   name,
			"op":        op,
			"error":     truncate(err.Error(), 1000),
		})
		text, result = d.conv.StorageFailure(), resultError
	} else {
		d.logEvent(db.EventCommandCompleted, map[string]any{
			"update_id":  u.UpdateID,
			"command":    name,
			"result":     result,
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}
	if d.metrics != nil {
		d.metrics.Commands.WithLabelValues(name, result).Inc()
	}

	if err := d.commander.SendMessage(ctx, chatID, text); err != nil {
		log.Printf("[bot] send reply chat_id=%d failed: %v", chatID, err)
	}
}

func (d *Dispatcher) known(name string) bool {
	c := d.commands
	switch name {
	case c.Chat, c.Clear, c.History, c.Topic, c.Mood, c.Info:
		return true
	}
	return false
}

// run executes a known command. op names the storage operation that failed
// when err is non-nil.
func (d *Dispatcher) run(ctx context.Context, name, args, uid string, chatID int64) (text, result, op string, err error) {
	c := d.commands
	switch name {
	case c.Chat:
		if args == "" {
			return d.conv.ChatUsage(), resultUsage, "", nil
		}
		stop := d.keepTyping(ctx, chatID)
		reply, err := d.conv.Chat(ctx, uid, args)
		stop()
		if err != nil {
			return "", "", "chat", err
		}
		d.completionEvent(name, uid, reply)
		d.logEvent(db.EventExchangeRecorded, map[string]any{"user_id": uid})
		return reply.Text, string(reply.Outcome), "", nil
	case c.Topic, c.Mood:
		respond := d.conv.Topic
		if name == c.Mood {
			respond = d.conv.Mood
		}
		stop := d.keepTyping(ctx, chatID)
		reply, err := respond(ctx, uid)
		stop()
		if err != nil {
			return "", "", name, err
		}
		d.completionEvent(name, uid, reply)
		return reply.Text, string(reply.Outcome), "", nil
	case c.Clear:
		text, n, err := d.conv.Clear(ctx, uid)
		if err != nil {
			return "", "", "clear", err
		}
		d.logEvent(db.EventHistoryCleared, map[string]any{"user_id": uid, "deleted": n})
		return text, resultOK, "", nil
	case c.History:
		text, err := d.conv.History(ctx, uid)
		if err != nil {
			return "", "", "history", err
		}
		return text, resultOK, "", nil
	default:
		return d.conv.Info(), resultOK, "", nil
	}
}

func (d *Dispatcher) completionEvent(command, uid string, reply chat.Reply) {
	eventType := db.EventCompletionDone
	if reply.Outcome != chat.OutcomeOK {
		eventType = db.EventCompletionFell
	}
	d.logEvent(eventType, map[string]any{
		"command": command,
		"user_id": uid,
		"outcome": string(reply.Outcome),
	})
}

// keepTyping shows the typing indicator until the returned stop is called.
func (d *Dispatcher) keepTyping(ctx context.Context, chatID int64) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(typingInterval)
		defer ticker.Stop()
		for {
			if err := d.commander.SendTyping(ctx, chatID); err != nil && ctx.Err() == nil {
				log.Printf("[bot] typing chat_id=%d failed: %v", chatID, err)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}
