package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// BotConfig holds configuration for the bot process.
type BotConfig struct {
	CommandPrefix  string
	ChatCommand    string
	ClearCommand   string
	HistoryCommand string
	TopicCommand   string
	MoodCommand    string
	InfoCommand    string

	PromptHistoryDepth  int
	DisplayHistoryDepth int
	PreviewChars        int
	SerializePerUser    bool

	RequestTimeout time.Duration
	MaxTokens      int
	Temperature    float64

	CharacterName   string
	CharacterPrompt string
	APIModel        string
	APIBaseURL      string
	APIKey          string

	Commander            string
	ModelProvider        string
	TelegramAPIBase      string
	PollTimeout          int
	SleepSeconds         int
	DummyProviderScript  string
	DummyCommanderScript string

	StoreDriver string
	DBPath      string
	DatabaseURL string

	MetricsAddr      string
	MetricsNamespace string
}

// ChatInvocation is what a user types to start chatting, e.g. "!c".
func (c BotConfig) ChatInvocation() string {
	return c.CommandPrefix + c.ChatCommand
}

// LoadBotConfig reads bot configuration from environment variables.
func LoadBotConfig() (BotConfig, error) {
	modelProvider := envOrDefault("BOT_MODEL_PROVIDER", "openai")
	commander := envOrDefault("BOT_COMMANDER", "telegram")

	telegramToken := os.Getenv("TELEGRAM_BOT_TOKEN")
	if commander == "telegram" && telegramToken == "" {
		return BotConfig{}, fmt.Errorf("TELEGRAM_BOT_TOKEN is required in environment when BOT_COMMANDER=telegram")
	}
	apiKey := os.Getenv("API_KEY")
	apiBase := strings.TrimRight(os.Getenv("API_BASE_URL"), "/")
	if modelProvider == "openai" {
		if apiKey == "" {
			return BotConfig{}, fmt.Errorf("API_KEY is required in environment when BOT_MODEL_PROVIDER=openai")
		}
		if apiBase == "" {
			return BotConfig{}, fmt.Errorf("API_BASE_URL is required in environment when BOT_MODEL_PROVIDER=openai")
		}
		if !strings.HasPrefix(apiBase, "http://") && !strings.HasPrefix(apiBase, "https://") {
			return BotConfig{}, fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", apiBase)
		}
	}

	characterPrompt := os.Getenv("CHARACTER_PROMPT")
	if path := os.Getenv("CHARACTER_PROMPT_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return BotConfig{}, fmt.Errorf("CHARACTER_PROMPT_FILE unreadable: %w", err)
		}
		characterPrompt = string(data)
	}

	cfg := BotConfig{
		CommandPrefix:        envOrDefault("BOT_COMMAND_PREFIX", "!"),
		ChatCommand:          envOrDefault("BOT_CHAT_COMMAND", "c"),
		ClearCommand:         envOrDefault("BOT_CLEAR_COMMAND", "clear"),
		HistoryCommand:       envOrDefault("BOT_HISTORY_COMMAND", "history"),
		TopicCommand:         envOrDefault("BOT_TOPIC_COMMAND", "topic"),
		MoodCommand:          envOrDefault("BOT_MOOD_COMMAND", "mood"),
		InfoCommand:          envOrDefault("BOT_INFO_COMMAND", "info"),
		PromptHistoryDepth:   envIntOrDefault("CHAT_HISTORY_LIMIT", 15),
		DisplayHistoryDepth:  envIntOrDefault("HISTORY_LIMIT_DISPLAY", 10),
		PreviewChars:         envIntOrDefault("HISTORY_MESSAGE_PREVIEW", 80),
		SerializePerUser:     envBoolOrDefault("SERIALIZE_PER_USER", false),
		RequestTimeout:       time.Duration(envIntOrDefault("AI_REQUEST_TIMEOUT_SECONDS", 120)) * time.Second,
		MaxTokens:            envIntOrDefault("AI_MAX_TOKENS", 3000),
		Temperature:          envFloatOrDefault("AI_TEMPERATURE", 1.0),
		CharacterName:        envOrDefault("CHARACTER_NAME", "游霄"),
		CharacterPrompt:      characterPrompt,
		APIModel:             envOrDefault("API_MODEL", "gpt-4o-mini"),
		APIBaseURL:           apiBase,
		APIKey:               apiKey,
		Commander:            commander,
		ModelProvider:        modelProvider,
		TelegramAPIBase:      fmt.Sprintf("https://api.telegram.org/bot%s", telegramToken),
		PollTimeout:          envIntOrDefault("TG_TIMEOUT", 30),
		SleepSeconds:         envIntOrDefault("TG_SLEEP_SECONDS", 1),
		DummyProviderScript:  envOrDefault("BOT_DUMMY_PROVIDER_SCRIPT", "ok"),
		DummyCommanderScript: envOrDefault("BOT_DUMMY_COMMANDER_SCRIPT", "ok"),
		StoreDriver:          envOrDefault("STORE_DRIVER", "sqlite"),
		DBPath:               envOrDefault("BOT_DB_PATH", "./chat_history.db"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MetricsAddr:          os.Getenv("METRICS_ADDR"),
		MetricsNamespace:     envOrDefault("METRICS_NAMESPACE", "personabot"),
	}
	if err := cfg.validate(); err != nil {
		return BotConfig{}, err
	}
	return cfg, nil
}

func (c BotConfig) validate() error {
	positive := []struct {
		key string
		val int
	}{
		{"CHAT_HISTORY_LIMIT", c.PromptHistoryDepth},
		{"HISTORY_LIMIT_DISPLAY", c.DisplayHistoryDepth},
		{"HISTORY_MESSAGE_PREVIEW", c.PreviewChars},
		{"AI_MAX_TOKENS", c.MaxTokens},
	}
	for _, p := range positive {
		if p.val <= 0 {
			return fmt.Errorf("%s must be positive, got %d", p.key, p.val)
		}
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("AI_REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("AI_TEMPERATURE must be within [0, 2], got %v", c.Temperature)
	}
	if strings.TrimSpace(c.CommandPrefix) == "" {
		return fmt.Errorf("BOT_COMMAND_PREFIX must not be blank")
	}
	if c.StoreDriver == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required in environment when STORE_DRIVER=postgres")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOrDefault(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatOrDefault(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolOrDefault(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v == "1" || strings.EqualFold(v, "true")
}
