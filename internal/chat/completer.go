package chat

import (
	"context"
	"errors"
	"log"
	"time"

	modelpkg "github.com/stupiduntilnot/personabot/internal/model"
	"github.com/stupiduntilnot/personabot/internal/observability"
	"github.com/stupiduntilnot/personabot/internal/openai"
	"github.com/stupiduntilnot/personabot/internal/prompt"
)

// Outcome classifies how a reply was produced.
type Outcome string

const (
	OutcomeOK               Outcome = "ok"
	OutcomeServiceFallback  Outcome = "service_fallback"
	OutcomeInternalFallback Outcome = "internal_fallback"
)

// Completer turns every provider result into a reply string. A non-200
// answer yields ServiceFallback, any other failure yields InternalFallback.
// It performs exactly one provider call.
type Completer struct {
	Provider         modelpkg.Provider
	ServiceFallback  string
	InternalFallback string
	Metrics          *observability.Metrics
}

func (c *Completer) Reply(ctx context.Context, messages []prompt.Message) (string, Outcome) {
	start := time.Now()
	resp, err := c.Provider.ChatCompletion(ctx, messages)
	elapsed := time.Since(start)

	reply, outcome := resp.Content, OutcomeOK
	if err != nil {
		var statusErr *openai.StatusError
		if errors.As(err, &statusErr) {
			log.Printf("[chat] completion status=%d body=%s", statusErr.StatusCode, statusErr.Body)
			reply, outcome = c.ServiceFallback, OutcomeServiceFallback
		} else {
			log.Printf("[chat] completion failed timeout=%t elapsed_ms=%d: %v", openai.IsTimeout(err), elapsed.Milliseconds(), err)
			reply, outcome = c.InternalFallback, OutcomeInternalFallback
		}
	}
	if c.Metrics != nil {
		c.Metrics.ObserveCompletion(string(outcome), elapsed)
	}
	return reply, outcome
}
