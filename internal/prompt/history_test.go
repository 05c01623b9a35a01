package prompt

import (
	"context"
	"fmt"
	"testing"

	"github.com/stupiduntilnot/personabot/internal/store"
)

func TestHistoryAccessor_IndependentDepths(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	for i := 1; i <= 20; i++ {
		if _, err := s.Append(ctx, "u", fmt.Sprintf("m%d", i), fmt.Sprintf("r%d", i)); err != nil {
			t.Fatal(err)
		}
	}
	h := &HistoryAccessor{Reader: s, PromptDepth: 15, DisplayDepth: 10}

	forPrompt, err := h.ForPrompt(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(forPrompt) != 15 || forPrompt[0].Message != "m6" || forPrompt[14].Message != "m20" {
		t.Fatalf("unexpected prompt history: len=%d first=%q", len(forPrompt), forPrompt[0].Message)
	}

	forDisplay, err := h.ForDisplay(ctx, "u")
	if err != nil {
		t.Fatal(err)
	}
	if len(forDisplay) != 10 || forDisplay[0].Message != "m11" {
		t.Fatalf("unexpected display history: len=%d first=%q", len(forDisplay), forDisplay[0].Message)
	}
}

func TestHistoryAccessor_Empty(t *testing.T) {
	h := &HistoryAccessor{Reader: store.NewMemoryStore(), PromptDepth: 15, DisplayDepth: 10}
	got, err := h.ForPrompt(context.Background(), "nobody")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %d", len(got))
	}
}
