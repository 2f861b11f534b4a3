// Package gateway calls conversational completion APIs on behalf of the relay.
//
// A Gateway never returns an error. Every call ends in a Result, which is
// either a Success carrying reply text or a Failure describing why the
// upstream could not produce one. Callers switch over the two cases.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// FallbackText is the reply used when the upstream answered successfully but
// the answer carried no text.
const FallbackText = "Sorry, I couldn't process that."

const (
	DefaultModel     = "claude-3-haiku-20240307"
	DefaultMaxTokens = 1024
	DefaultTimeout   = 60 * time.Second
)

// ErrMissingAPIKey is the cause of every Failure from a gateway configured
// without credentials.
var ErrMissingAPIKey = errors.New("completion API key is not configured")

// Gateway sends a conversation upstream and returns the reply.
type Gateway interface {
	// Complete sends turns, oldest first, with persona as the system-level
	// directive when it is non-empty.
	Complete(ctx context.Context, turns []llm.Turn, persona string) Result

	// Name identifies the upstream in logs and metrics.
	Name() string
}

// Result is the outcome of Complete: either Success or Failure.
type Result interface {
	isResult()
}

// Success carries the reply text.
type Success struct {
	Text string
}

// Failure reports an upstream that could not be reached or answered with an
// error. StatusCode is the upstream HTTP status, or 0 when none was received.
type Failure struct {
	StatusCode int
	Cause      error
}

func (Success) isResult() {}
func (Failure) isResult() {}

// HasStatus reports whether the upstream answered with an HTTP status.
func (f Failure) HasStatus() bool {
	return f.StatusCode != 0
}

// Error implements error so a Failure can be logged directly.
func (f Failure) Error() string {
	switch {
	case f.HasStatus() && f.Cause != nil:
		return fmt.Sprintf("upstream returned %d: %v", f.StatusCode, f.Cause)
	case f.HasStatus():
		return fmt.Sprintf("upstream returned %d", f.StatusCode)
	case f.Cause != nil:
		return f.Cause.Error()
	default:
		return "upstream failure"
	}
}

func (f Failure) Unwrap() error {
	return f.Cause
}

// textOrFallback returns text, or FallbackText when there is none.
func textOrFallback(text string) string {
	if text == "" {
		return FallbackText
	}
	return text
}
