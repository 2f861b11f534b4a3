// Package history keeps short-lived, bounded conversation histories keyed by
// conversation identifier.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// DefaultMaxHistory is the number of turns kept per conversation when no
// bound is configured.
const DefaultMaxHistory = 10

// Store defines the interface for keeping per-conversation turn sequences.
// Every Store bounds each conversation to a fixed number of turns and drops
// the oldest turns first when an append would exceed the bound.
type Store interface {
	// Get returns a copy of the conversation's turns, oldest first.
	// Unknown conversations yield an empty sequence.
	Get(ctx context.Context, conversationID string) ([]llm.Turn, error)

	// Append adds turn to the end of the conversation, evicts the oldest
	// turns past the bound, and returns a copy of the resulting sequence.
	// Append is atomic per conversation: concurrent appends to the same
	// conversation are never lost.
	Append(ctx context.Context, conversationID string, turn llm.Turn) ([]llm.Turn, error)

	// Conversations returns the number of conversations currently held.
	Conversations(ctx context.Context) (int, error)

	// EvictIdle removes every conversation whose last append happened before
	// the given instant and returns how many were removed.
	EvictIdle(ctx context.Context, before time.Time) (int, error)

	// Close releases any resources held by the store.
	Close() error
}

// ErrClosed is returned by stores used after Close.
var ErrClosed = errors.New("history store closed")

// bound returns the last max turns of turns.
func bound(turns []llm.Turn, max int) []llm.Turn {
	if len(turns) <= max {
		return turns
	}
	return turns[len(turns)-max:]
}
