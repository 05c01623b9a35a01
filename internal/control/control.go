// Package control holds the poll loop's failure handling: error
// classification, backoff and the circuit breaker.
package control

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Error classes used by the breaker and in poll.failed events.
const (
	ClassCommandSource = "command_source_api"
	ClassNetwork       = "network"
	ClassCanceled      = "canceled"
	ClassUnknown       = "unknown"
)

// ClassifyError maps a poll error to an error class.
func ClassifyError(err error) string {
	if err == nil {
		return ClassUnknown
	}
	if errors.Is(err, context.Canceled) {
		return ClassCanceled
	}
	msg := err.Error()
	switch {
	case containsAny(msg, "telegram ", "commander"):
		if containsAny(msg, "request failed", "timeout", "connection refused") {
			return ClassNetwork
		}
		return ClassCommandSource
	case containsAny(msg, "dial tcp", "connection refused", "i/o timeout"):
		return ClassNetwork
	default:
		return ClassUnknown
	}
}

// BackoffSeconds computes exponential backoff for the n-th consecutive
// failure, capped at 30 seconds.
func BackoffSeconds(attempt int) int {
	if attempt <= 0 {
		return 0
	}
	if attempt > 6 {
		return 30
	}
	seconds := 1 << (attempt - 1)
	if seconds > 30 {
		return 30
	}
	return seconds
}

// Sleep waits for d or until ctx is done, whichever comes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func containsAny(s string, parts ...string) bool {
	for _, p := range parts {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
