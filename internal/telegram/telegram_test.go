package telegram

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestGetUpdates_ParsesSenderAndChat(t *testing.T) {
	var gotOffset string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/getUpdates" {
			http.NotFound(w, r)
			return
		}
		gotOffset = r.URL.Query().Get("offset")
		_, _ = io.WriteString(w, `{"ok":true,"result":[
			{"update_id":11,"message":{"chat":{"id":-100},"from":{"id":42,"is_bot":false,"username":"kai"},"text":"!c hi","date":1700000000}},
			{"update_id":12,"edited_message":{"chat":{"id":-100},"text":"edit"}}
		]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	updates, err := c.GetUpdates(context.Background(), 7, 0)
	if err != nil {
		t.Fatalf("GetUpdates failed: %v", err)
	}
	if gotOffset != "7" {
		t.Fatalf("expected offset 7, got %q", gotOffset)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	msg := updates[0].Message
	if msg == nil || msg.Text == nil || *msg.Text != "!c hi" {
		t.Fatalf("unexpected message: %#v", msg)
	}
	if msg.Chat.ID != -100 || msg.From == nil || msg.From.ID != 42 {
		t.Fatalf("unexpected chat/sender: %#v", msg)
	}
	if updates[1].Message != nil || updates[1].UpdateID != 12 {
		t.Fatalf("expected message-less update 12, got %#v", updates[1])
	}
}

func TestGetUpdates_NotOKIsError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"ok":false,"description":"Unauthorized"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	_, err := c.GetUpdates(context.Background(), 0, 0)
	if err == nil || !strings.Contains(err.Error(), "Unauthorized") {
		t.Fatalf("expected Unauthorized error, got %v", err)
	}
}

func TestSendMessage_TruncatesAndEncodes(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendMessage" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true,"result":{}}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 2*time.Second)
	long := strings.Repeat("字", maxMessageChars+50)
	if err := c.SendMessage(context.Background(), 123, long); err != nil {
		t.Fatalf("SendMessage failed: %v", err)
	}
	if got["chat_id"] != float64(123) {
		t.Fatalf("unexpected chat_id: %v", got["chat_id"])
	}
	text, _ := got["text"].(string)
	if len([]rune(text)) != maxMessageChars {
		t.Fatalf("expected %d runes, got %d", maxMessageChars, len([]rune(text)))
	}
}

func TestSendTyping(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sendChatAction" {
			http.NotFound(w, r)
			return
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"ok":true,"result":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", 2*time.Second)
	if err := c.SendTyping(context.Background(), 5); err != nil {
		t.Fatalf("SendTyping failed: %v", err)
	}
	if got["action"] != "typing" || got["chat_id"] != float64(5) {
		t.Fatalf("unexpected payload: %v", got)
	}
}

func TestGetUpdates_ContextCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	c := NewClient(srv.URL, 5*time.Second)
	if _, err := c.GetUpdates(ctx, 0, 30); err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
