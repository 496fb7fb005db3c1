package notify

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryDelayStore is an in-memory DelayStore useful for tests and local runs.
type MemoryDelayStore struct {
	mu      sync.Mutex
	entries map[string]delayEntry
}

type delayEntry struct {
	dueAt time.Time
	env   Envelope
}

func NewMemoryDelayStore() *MemoryDelayStore {
	return &MemoryDelayStore{entries: make(map[string]delayEntry)}
}

func (s *MemoryDelayStore) Put(ctx context.Context, key string, dueAt time.Time, env Envelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[key] = delayEntry{dueAt: dueAt.UTC(), env: env}
	return nil
}

func (s *MemoryDelayStore) PullDue(ctx context.Context, now time.Time) ([]Envelope, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []delayEntry
	for key, e := range s.entries {
		if !e.dueAt.After(now) {
			due = append(due, e)
			delete(s.entries, key)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].dueAt.Before(due[j].dueAt) })

	out := make([]Envelope, 0, len(due))
	for _, e := range due {
		out = append(out, e.env)
	}
	return out, nil
}

func (s *MemoryDelayStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Len reports how many envelopes are still pending.
func (s *MemoryDelayStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}
