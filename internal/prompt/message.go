package prompt

// Roles used in assembled prompts.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is a model-agnostic chat message used across the prompt pipeline.
type Message struct {
	Role    string
	Content string
}
