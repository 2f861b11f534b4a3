package history

import (
	"context"
	"sync"
	"time"

	"github.com/papercomputeco/chatrelay/pkg/llm"
)

// MemoryStore is a process-local Store. Each conversation has its own lock,
// so traffic for one conversation never waits on another.
type MemoryStore struct {
	max int
	now func() time.Time

	mu     sync.RWMutex
	convos map[string]*conversation
	closed bool
}

type conversation struct {
	mu       sync.Mutex
	turns    []llm.Turn
	lastSeen time.Time
	evicted  bool
}

// NewMemoryStore creates a MemoryStore keeping at most maxHistory turns per
// conversation. Non-positive values fall back to DefaultMaxHistory.
func NewMemoryStore(maxHistory int) *MemoryStore {
	if maxHistory <= 0 {
		maxHistory = DefaultMaxHistory
	}
	return &MemoryStore{
		max:    maxHistory,
		now:    time.Now,
		convos: make(map[string]*conversation),
	}
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, conversationID string) ([]llm.Turn, error) {
	s.mu.RLock()
	c := s.convos[conversationID]
	s.mu.RUnlock()

	if c == nil {
		return []llm.Turn{}, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	return snapshot(c.turns), nil
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, conversationID string, turn llm.Turn) ([]llm.Turn, error) {
	for {
		c, err := s.conversation(conversationID)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		if c.evicted {
			// Lost a race with EvictIdle; the next lookup creates a fresh entry.
			c.mu.Unlock()
			continue
		}
		c.turns = bound(append(c.turns, turn), s.max)
		c.lastSeen = s.now()
		out := snapshot(c.turns)
		c.mu.Unlock()
		return out, nil
	}
}

// Conversations implements Store.
func (s *MemoryStore) Conversations(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.convos), nil
}

// EvictIdle implements Store.
func (s *MemoryStore) EvictIdle(_ context.Context, before time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, c := range s.convos {
		c.mu.Lock()
		if c.lastSeen.Before(before) {
			c.evicted = true
			delete(s.convos, id)
			removed++
		}
		c.mu.Unlock()
	}
	return removed, nil
}

// Close implements Store. The held histories are dropped.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.convos = make(map[string]*conversation)
	return nil
}

// conversation returns the entry for id, creating it on first use.
func (s *MemoryStore) conversation(id string) (*conversation, error) {
	s.mu.RLock()
	c, ok := s.convos[id]
	closed := s.closed
	s.mu.RUnlock()
	if closed {
		return nil, ErrClosed
	}
	if ok {
		return c, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	if c, ok = s.convos[id]; !ok {
		c = &conversation{}
		s.convos[id] = c
	}
	return c, nil
}

func snapshot(turns []llm.Turn) []llm.Turn {
	out := make([]llm.Turn, len(turns))
	copy(out, turns)
	return out
}
