package dummy

import (
	"context"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	cmdpkg "github.com/stupiduntilnot/personabot/internal/commander"
	modelpkg "github.com/stupiduntilnot/personabot/internal/model"
	"github.com/stupiduntilnot/personabot/internal/openai"
	"github.com/stupiduntilnot/personabot/internal/prompt"
)

type action struct {
	kind string
	arg  string
}

var actionKinds = []string{"err", "sleep", "msg", "msgb64", "as", "status"}

func parseScript(script string) ([]action, error) {
	if strings.TrimSpace(script) == "" {
		return []action{{kind: "ok"}}, nil
	}
	parts := strings.Split(script, ",")
	actions := make([]action, 0, len(parts))
	for _, p := range parts {
		token := strings.TrimSpace(p)
		if token == "" {
			continue
		}
		if token == "ok" {
			actions = append(actions, action{kind: "ok"})
			continue
		}
		a, ok := parseAction(token)
		if !ok {
			return nil, fmt.Errorf("invalid dummy action: %s", token)
		}
		actions = append(actions, a)
	}
	if len(actions) == 0 {
		actions = append(actions, action{kind: "ok"})
	}
	return actions, nil
}

func parseAction(token string) (action, bool) {
	for _, kind := range actionKinds {
		if strings.HasPrefix(token, kind+":") {
			return action{kind: kind, arg: strings.TrimPrefix(token, kind+":")}, true
		}
	}
	return action{}, false
}

type scriptRunner struct {
	actions []action
	index   int
}

func newRunner(script string) (*scriptRunner, error) {
	actions, err := parseScript(script)
	if err != nil {
		return nil, err
	}
	return &scriptRunner{actions: actions}, nil
}

// next returns the next action; the last one repeats forever.
func (r *scriptRunner) next() action {
	if len(r.actions) == 0 {
		return action{kind: "ok"}
	}
	if r.index >= len(r.actions) {
		return r.actions[len(r.actions)-1]
	}
	a := r.actions[r.index]
	r.index++
	return a
}

func sleepCtx(ctx context.Context, arg string) error {
	ms, _ := strconv.Atoi(arg)
	if ms <= 0 {
		return nil
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sent is a message delivered through the dummy commander.
type Sent struct {
	ChatID int64
	Text   string
}

// Commander replays a poll script. Each "msg:" yields one update from user 1
// in chat 1; "as:<user>:<text>" sends from another user in a chat of the same id.
// After the script is exhausted it keeps returning no updates.
type Commander struct {
	mu       sync.Mutex
	poll     *scriptRunner
	updateID int64
	sent     []Sent
	typing   int
}

func NewCommander(pollScript string) (*Commander, error) {
	poll, err := newRunner(pollScript)
	if err != nil {
		return nil, err
	}
	poll.actions = append(poll.actions, action{kind: "ok"})
	return &Commander{poll: poll}, nil
}

func (c *Commander) GetUpdates(ctx context.Context, offset int64, timeout int) ([]cmdpkg.Update, error) {
	c.mu.Lock()
	a := c.poll.next()
	c.mu.Unlock()

	switch a.kind {
	case "err":
		return nil, fmt.Errorf("dummy commander error class=%s", emptyAs(a.arg, "command_source_api"))
	case "sleep":
		return nil, sleepCtx(ctx, a.arg)
	case "msg":
		return c.update(1, a.arg), nil
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return nil, fmt.Errorf("dummy commander msgb64 decode failed: %w", err)
		}
		return c.update(1, string(raw)), nil
	case "as":
		user, text, ok := strings.Cut(a.arg, ":")
		id, err := strconv.ParseInt(user, 10, 64)
		if !ok || err != nil {
			return nil, fmt.Errorf("dummy commander invalid as action: %s", a.arg)
		}
		return c.update(id, text), nil
	default:
		return nil, nil
	}
}

func (c *Commander) update(userID int64, text string) []cmdpkg.Update {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updateID++
	msg := text
	return []cmdpkg.Update{
		{
			UpdateID: c.updateID,
			Message: &cmdpkg.Message{
				Chat: cmdpkg.Chat{ID: userID},
				From: &cmdpkg.User{ID: userID},
				Text: &msg,
				Date: time.Now().Unix(),
			},
		},
	}
}

func (c *Commander) SendMessage(_ context.Context, chatID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, Sent{ChatID: chatID, Text: text})
	return nil
}

func (c *Commander) SendTyping(context.Context, int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.typing++
	return nil
}

// Sent returns a copy of every delivered message.
func (c *Commander) Sent() []Sent {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Sent(nil), c.sent...)
}

// TypingCount returns how many typing indicators were sent.
func (c *Commander) TypingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.typing
}

// Provider replays a completion script:
//
//	ok          reply "dummy-ok"
//	msg:<text>  reply text
//	err:<class> transport failure
//	status:<n>  HTTP status failure
//	sleep:<ms>  wait, then reply; honours ctx cancellation
type Provider struct {
	mu       sync.Mutex
	model    string
	script   *scriptRunner
	requests [][]prompt.Message
}

func NewProvider(model, script string) (*Provider, error) {
	runner, err := newRunner(script)
	if err != nil {
		return nil, err
	}
	return &Provider{model: model, script: runner}, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, messages []prompt.Message) (modelpkg.CompletionResponse, error) {
	p.mu.Lock()
	a := p.script.next()
	p.requests = append(p.requests, append([]prompt.Message(nil), messages...))
	p.mu.Unlock()

	switch a.kind {
	case "ok":
		return completion("dummy-ok"), nil
	case "err":
		return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider error class=%s", emptyAs(a.arg, "provider_api"))
	case "status":
		code, err := strconv.Atoi(a.arg)
		if err != nil {
			return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider invalid status: %s", a.arg)
		}
		return modelpkg.CompletionResponse{}, &openai.StatusError{StatusCode: code, Body: "dummy"}
	case "sleep":
		if err := sleepCtx(ctx, a.arg); err != nil {
			return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider request failed: %w", err)
		}
		return completion("dummy-after-sleep"), nil
	case "msg":
		return completion(a.arg), nil
	case "msgb64":
		raw, err := base64.StdEncoding.DecodeString(a.arg)
		if err != nil {
			return modelpkg.CompletionResponse{}, fmt.Errorf("dummy provider msgb64 decode failed: %w", err)
		}
		return completion(string(raw)), nil
	default:
		return completion("dummy-ok"), nil
	}
}

// Requests returns every message list the provider received.
func (p *Provider) Requests() [][]prompt.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]prompt.Message(nil), p.requests...)
}

func completion(content string) modelpkg.CompletionResponse {
	return modelpkg.CompletionResponse{Content: content, InputTokens: 1, OutputTokens: 1}
}

func emptyAs(v string, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}
