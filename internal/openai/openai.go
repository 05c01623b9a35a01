package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	modelpkg "github.com/stupiduntilnot/personabot/internal/model"
	"github.com/stupiduntilnot/personabot/internal/prompt"
)

// ErrMalformedResponse is returned when a 200 response does not carry
// choices[0].message.content.
var ErrMalformedResponse = errors.New("malformed completion response")

// StatusError is returned for any non-200 response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("openai non-success status=%d body=%s", e.StatusCode, e.Body)
}

// Options configures a Client. BaseURL is the API root without the
// /chat/completions suffix.
type Options struct {
	APIKey      string
	BaseURL     string
	Model       string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

// Client is a minimal OpenAI-compatible chat completions client.
type Client struct {
	apiKey      string
	url         string
	model       string
	maxTokens   int
	temperature float64
	timeout     time.Duration
	http        *resty.Client
}

// NewClient creates a client. Requests never retry.
func NewClient(opts Options) *Client {
	return &Client{
		apiKey:      opts.APIKey,
		url:         strings.TrimRight(opts.BaseURL, "/") + "/chat/completions",
		model:       opts.Model,
		maxTokens:   opts.MaxTokens,
		temperature: opts.Temperature,
		timeout:     opts.Timeout,
		http:        resty.New().SetTimeout(opts.Timeout).SetRetryCount(0),
	}
}

// Message represents a chat message on the wire.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	MaxTokens   int       `json:"max_tokens"`
	Temperature float64   `json:"temperature"`
}

type chatResponse struct {
	Choices []chatChoice `json:"choices"`
	Usage   *usage       `json:"usage"`
}

type chatChoice struct {
	Message *struct {
		Content *string `json:"content"`
	} `json:"message"`
}

type usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// ChatCompletion sends one chat completion request.
func (c *Client) ChatCompletion(ctx context.Context, messages []prompt.Message) (modelpkg.CompletionResponse, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	wire := make([]Message, 0, len(messages))
	for _, m := range messages {
		wire = append(wire, Message{Role: m.Role, Content: m.Content})
	}
	reqBody := chatRequest{
		Model:       c.model,
		Messages:    wire,
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+c.apiKey).
		SetBody(reqBody).
		Post(c.url)
	if err != nil {
		return modelpkg.CompletionResponse{}, fmt.Errorf("openai request failed: %w", err)
	}

	body := resp.Body()
	if resp.StatusCode() != http.StatusOK {
		return modelpkg.CompletionResponse{}, &StatusError{
			StatusCode: resp.StatusCode(),
			Body:       truncate(string(body), 400),
		}
	}

	return parseResponse(body)
}

func parseResponse(body []byte) (modelpkg.CompletionResponse, error) {
	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return modelpkg.CompletionResponse{}, fmt.Errorf("%w: %v body=%s", ErrMalformedResponse, err, truncate(string(body), 400))
	}
	if len(parsed.Choices) == 0 {
		return modelpkg.CompletionResponse{}, fmt.Errorf("%w: no choices", ErrMalformedResponse)
	}
	first := parsed.Choices[0]
	if first.Message == nil || first.Message.Content == nil {
		return modelpkg.CompletionResponse{}, fmt.Errorf("%w: choices[0].message.content missing", ErrMalformedResponse)
	}

	result := modelpkg.CompletionResponse{Content: *first.Message.Content}
	if parsed.Usage != nil {
		result.InputTokens = parsed.Usage.PromptTokens
		result.OutputTokens = parsed.Usage.CompletionTokens
	}
	return result, nil
}

// IsTimeout reports whether err came from the request deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
