package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/stupiduntilnot/personabot/internal/observability"
	"github.com/stupiduntilnot/personabot/internal/openai"
)

func TestCompleter_Outcomes(t *testing.T) {
	tests := []struct {
		name    string
		p       *fakeProvider
		want    string
		outcome Outcome
	}{
		{"ok", &fakeProvider{reply: "yo"}, "yo", OutcomeOK},
		{"empty content is returned as is", &fakeProvider{reply: ""}, "", OutcomeOK},
		{"status", &fakeProvider{err: &openai.StatusError{StatusCode: 429, Body: "slow down"}}, "svc", OutcomeServiceFallback},
		{"malformed", &fakeProvider{err: openai.ErrMalformedResponse}, "internal", OutcomeInternalFallback},
		{"transport", &fakeProvider{err: errors.New("connection refused")}, "internal", OutcomeInternalFallback},
		{"timeout", &fakeProvider{err: context.DeadlineExceeded}, "internal", OutcomeInternalFallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Completer{Provider: tt.p, ServiceFallback: "svc", InternalFallback: "internal"}
			got, outcome := c.Reply(context.Background(), nil)
			if got != tt.want || outcome != tt.outcome {
				t.Fatalf("expected %q/%s, got %q/%s", tt.want, tt.outcome, got, outcome)
			}
			if len(tt.p.requests) != 1 {
				t.Fatalf("expected exactly one provider call, got %d", len(tt.p.requests))
			}
		})
	}
}

func TestCompleter_ObservesMetrics(t *testing.T) {
	m := observability.NewMetrics("test")
	c := &Completer{Provider: &fakeProvider{err: &openai.StatusError{StatusCode: 500}}, ServiceFallback: "svc", Metrics: m}
	c.Reply(context.Background(), nil)
	if got := testutil.ToFloat64(m.Completions.WithLabelValues(string(OutcomeServiceFallback))); got != 1 {
		t.Fatalf("expected 1 service fallback, got %v", got)
	}
}
