// Package chat implements the conversation pipeline: read bounded history,
// assemble the prompt, call the model, record the exchange.
package chat

import (
	"context"
	"fmt"
	"strings"

	modelpkg "github.com/stupiduntilnot/personabot/internal/model"
	"github.com/stupiduntilnot/personabot/internal/observability"
	"github.com/stupiduntilnot/personabot/internal/persona"
	"github.com/stupiduntilnot/personabot/internal/prompt"
	"github.com/stupiduntilnot/personabot/internal/store"
)

// Commands names the user-facing commands.
type Commands struct {
	Prefix  string
	Chat    string
	Clear   string
	History string
	Topic   string
	Mood    string
	Info    string
}

// Invocation returns what the user types for a command name.
func (c Commands) Invocation(name string) string {
	return c.Prefix + name
}

// Options configures a Service.
type Options struct {
	Store            store.Store
	Provider         modelpkg.Provider
	Persona          persona.Persona
	Commands         Commands
	PromptDepth      int
	DisplayDepth     int
	PreviewChars     int
	SerializePerUser bool
	Metrics          *observability.Metrics
}

// Reply is the text sent back for a model-backed command.
type Reply struct {
	Text    string
	Outcome Outcome
}

// Service is the application context shared by every command handler.
// Errors it returns are storage faults.
type Service struct {
	persona      persona.Persona
	system       string
	commands     Commands
	previewChars int

	history   *prompt.HistoryAccessor
	assembler prompt.Assembler
	completer *Completer
	recorder  *Recorder
	store     store.Store
	locks     *userLocks
}

func NewService(opts Options) *Service {
	s := &Service{
		persona:      opts.Persona,
		system:       opts.Persona.SystemInstruction(),
		commands:     opts.Commands,
		previewChars: opts.PreviewChars,
		history: &prompt.HistoryAccessor{
			Reader:       opts.Store,
			PromptDepth:  opts.PromptDepth,
			DisplayDepth: opts.DisplayDepth,
		},
		assembler: &prompt.StandardAssembler{},
		completer: &Completer{
			Provider:         opts.Provider,
			ServiceFallback:  opts.Persona.ServiceFallback,
			InternalFallback: opts.Persona.InternalFallback,
			Metrics:          opts.Metrics,
		},
		recorder: &Recorder{Store: opts.Store},
		store:    opts.Store,
	}
	if opts.SerializePerUser {
		s.locks = newUserLocks()
	}
	return s
}

func (s *Service) lock(userID string) func() {
	if s.locks == nil {
		return func() {}
	}
	return s.locks.Lock(userID)
}

// Chat answers text with the user's history as context and records the turn.
func (s *Service) Chat(ctx context.Context, userID, text string) (Reply, error) {
	unlock := s.lock(userID)
	defer unlock()

	reply, err := s.respond(ctx, userID, text)
	if err != nil {
		return Reply{}, err
	}
	if err := s.recorder.Record(ctx, userID, text, reply.Text); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// Topic asks the persona for a conversation topic. The turn is not recorded.
func (s *Service) Topic(ctx context.Context, userID string) (Reply, error) {
	return s.respond(ctx, userID, s.persona.TopicPrompt)
}

// Mood asks the persona to describe its current state. The turn is not recorded.
func (s *Service) Mood(ctx context.Context, userID string) (Reply, error) {
	return s.respond(ctx, userID, s.persona.MoodPrompt)
}

func (s *Service) respond(ctx context.Context, userID, text string) (Reply, error) {
	history, err := s.history.ForPrompt(ctx, userID)
	if err != nil {
		return Reply{}, fmt.Errorf("read history: %w", err)
	}
	messages := s.assembler.Assemble(s.system, history, text)
	replyText, outcome := s.completer.Reply(ctx, messages)
	return Reply{Text: replyText, Outcome: outcome}, nil
}

// Clear deletes the user's history. The confirmation does not depend on
// whether anything was deleted.
func (s *Service) Clear(ctx context.Context, userID string) (string, int64, error) {
	unlock := s.lock(userID)
	defer unlock()

	n, err := s.store.Clear(ctx, userID)
	if err != nil {
		return "", 0, err
	}
	return s.persona.ClearConfirm, n, nil
}

// History renders the newest exchanges for display.
func (s *Service) History(ctx context.Context, userID string) (string, error) {
	items, err := s.history.ForDisplay(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("read history: %w", err)
	}
	if len(items) == 0 {
		return s.persona.NoHistoryText(s.commands.Invocation(s.commands.Chat)), nil
	}

	var b strings.Builder
	b.WriteString(s.persona.HistoryHeader)
	b.WriteString("\n\n")
	for i, ex := range items {
		fmt.Fprintf(&b, "%d. %s%s\n", i+1, s.persona.YouSaid, Preview(ex.Message, s.previewChars))
		fmt.Fprintf(&b, "%s%s\n\n", s.persona.ISaid, Preview(ex.Response, s.previewChars))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Info lists every command with its configured invocation.
func (s *Service) Info() string {
	h := s.persona.Help
	c := s.commands
	var b strings.Builder
	b.WriteString(h.Intro)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "`%s <消息>` - %s\n", c.Invocation(c.Chat), h.Chat)
	fmt.Fprintf(&b, "`%s` - %s\n", c.Invocation(c.History), h.History)
	fmt.Fprintf(&b, "`%s` - %s\n", c.Invocation(c.Clear), h.Clear)
	fmt.Fprintf(&b, "`%s` - %s\n", c.Invocation(c.Topic), h.Topic)
	fmt.Fprintf(&b, "`%s` - %s\n", c.Invocation(c.Mood), h.Mood)
	fmt.Fprintf(&b, "`%s` - %s\n", c.Invocation(c.Info), h.Info)
	if h.Outro != "" {
		b.WriteString("\n")
		fmt.Fprintf(&b, h.Outro, c.Invocation(c.History), c.Invocation(c.Clear))
	}
	return strings.TrimRight(b.String(), "\n")
}

// ChatUsage is sent when the chat command arrives without text.
func (s *Service) ChatUsage() string {
	return s.persona.ChatUsageText(s.commands.Invocation(s.commands.Chat))
}

// StorageFailure is the generic reply for a failed command.
func (s *Service) StorageFailure() string {
	return s.persona.StorageFailure
}

// Preview cuts s to maxChars runes and marks the cut with "...".
func Preview(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars]) + "..."
}
