package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stupiduntilnot/personabot/internal/prompt"
)

func testClient(url string, timeout time.Duration) *Client {
	return NewClient(Options{
		APIKey:      "test-key",
		BaseURL:     url,
		Model:       "test-model",
		MaxTokens:   3000,
		Temperature: 1.0,
		Timeout:     timeout,
	})
}

var hi = []prompt.Message{{Role: prompt.RoleUser, Content: "hi"}}

func TestChatCompletion_WithUsage(t *testing.T) {
	var gotReq chatRequest
	var gotAuth, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&gotReq)
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": "Hello!"}},
			},
			"usage": map[string]any{
				"prompt_tokens":     42,
				"completion_tokens": 7,
			},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	client := testClient(server.URL+"/v1/", 5*time.Second)
	result, err := client.ChatCompletion(context.Background(), hi)
	if err != nil {
		t.Fatal(err)
	}

	if result.Content != "Hello!" {
		t.Errorf("expected content 'Hello!', got %q", result.Content)
	}
	if result.InputTokens != 42 || result.OutputTokens != 7 {
		t.Errorf("unexpected usage: %+v", result)
	}
	if gotPath != "/v1/chat/completions" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotReq.Model != "test-model" || gotReq.MaxTokens != 3000 || gotReq.Temperature != 1.0 {
		t.Errorf("unexpected request params: %+v", gotReq)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" || gotReq.Messages[0].Content != "hi" {
		t.Errorf("unexpected request messages: %+v", gotReq.Messages)
	}
}

func TestChatCompletion_NoUsage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[{"message":{"content":"World"}}]}`))
	}))
	defer server.Close()

	result, err := testClient(server.URL, 5*time.Second).ChatCompletion(context.Background(), hi)
	if err != nil {
		t.Fatal(err)
	}
	if result.Content != "World" {
		t.Errorf("expected 'World', got %q", result.Content)
	}
	if result.InputTokens != 0 || result.OutputTokens != 0 {
		t.Errorf("expected zero usage, got %+v", result)
	}
}

func TestChatCompletion_ShapeMismatch(t *testing.T) {
	cases := map[string]string{
		"empty choices":   `{"choices":[]}`,
		"missing choices": `{"id":"x"}`,
		"missing message": `{"choices":[{}]}`,
		"missing content": `{"choices":[{"message":{"role":"assistant"}}]}`,
		"not json":        `<html>oops</html>`,
		"wrong type":      `{"choices":[{"message":{"content":42}}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(body))
			}))
			defer server.Close()

			_, err := testClient(server.URL, 5*time.Second).ChatCompletion(context.Background(), hi)
			if !errors.Is(err, ErrMalformedResponse) {
				t.Fatalf("expected ErrMalformedResponse, got %v", err)
			}
		})
	}
}

func TestChatCompletion_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"boom"}`))
	}))
	defer server.Close()

	_, err := testClient(server.URL, 5*time.Second).ChatCompletion(context.Background(), hi)
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected StatusError, got %v", err)
	}
	if statusErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("unexpected status %d", statusErr.StatusCode)
	}
	if statusErr.Body != `{"error":"boom"}` {
		t.Errorf("unexpected body %q", statusErr.Body)
	}
}

func TestChatCompletion_NoRetry(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	testClient(server.URL, 5*time.Second).ChatCompletion(context.Background(), hi)
	if calls != 1 {
		t.Fatalf("expected exactly one attempt, got %d", calls)
	}
}

func TestChatCompletion_Timeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	start := time.Now()
	_, err := testClient(server.URL, 50*time.Millisecond).ChatCompletion(context.Background(), hi)
	if err == nil {
		t.Fatal("expected timeout error")
	}
	if !IsTimeout(err) {
		t.Errorf("expected timeout classification, got %v", err)
	}
	if time.Since(start) > 2*time.Second {
		t.Errorf("timeout not enforced, took %s", time.Since(start))
	}
}

func TestChatCompletion_ConnectionRefused(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := testClient(url, time.Second).ChatCompletion(context.Background(), hi)
	if err == nil {
		t.Fatal("expected transport error")
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		t.Fatalf("transport fault must not be a StatusError: %v", err)
	}
}
