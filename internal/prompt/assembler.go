package prompt

import "github.com/stupiduntilnot/personabot/internal/store"

// StandardAssembler combines system prompt, history, and user message
// into a single ordered message list.
type StandardAssembler struct{}

// Assemble builds the final message list: system, then a user/assistant pair
// per exchange in the given order, then the new user message. Repeated text is
// kept as is.
func (a *StandardAssembler) Assemble(system string, history []store.Exchange, userMsg string) []Message {
	messages := make([]Message, 0, 2*len(history)+2)
	messages = append(messages, Message{Role: RoleSystem, Content: system})
	for _, ex := range history {
		messages = append(messages,
			Message{Role: RoleUser, Content: ex.Message},
			Message{Role: RoleAssistant, Content: ex.Response},
		)
	}
	messages = append(messages, Message{Role: RoleUser, Content: userMsg})
	return messages
}
