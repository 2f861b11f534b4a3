package history

import (
	"context"
	"fmt"
	"strings"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// TurnBuilder turns raw inbound text into the USER turn of a conversation
// and yields the sequence to send upstream.
type TurnBuilder struct {
	store Store
}

// NewTurnBuilder creates a TurnBuilder appending to store.
func NewTurnBuilder(store Store) *TurnBuilder {
	return &TurnBuilder{store: store}
}

// Normalize lowercases and trims inbound message text.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Build appends the normalized text as a USER turn and returns the resulting
// conversation, oldest turn first. Empty text is a valid, empty turn.
func (b *TurnBuilder) Build(ctx context.Context, conversationID, text string) ([]llm.Turn, error) {
	turns, err := b.store.Append(ctx, conversationID, llm.UserTurn(Normalize(text)))
	if err != nil {
		return nil, fmt.Errorf("appending user turn: %w", err)
	}
	return turns, nil
}
