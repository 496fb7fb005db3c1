package realtime

import (
	"context"
	"sync"
	"time"
)

// Message is the transient broadcast unit for chat traffic. Durable storage
// belongs to an external repository; the core only needs a best-effort save
// hook so chat history survives the connection.
type Message struct {
	ID             string    `json:"id"`
	FromUserID     string    `json:"fromUserId"`
	ToUserID       string    `json:"toUserId"`
	Body           string    `json:"body"`
	Kind           string    `json:"kind,omitempty"`
	ConversationID string    `json:"conversationId,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
	Read           bool      `json:"read"`
}

// MessageStore is the persistence collaborator for chat messages.
// Saving is best-effort from the router's point of view: a store failure is
// logged and the live broadcast still happens.
type MessageStore interface {
	Save(ctx context.Context, m Message) error
}

// MemoryMessageStore is an in-memory store useful for tests and local runs.
type MemoryMessageStore struct {
	mu       sync.Mutex
	messages []Message
}

func NewMemoryMessageStore() *MemoryMessageStore { return &MemoryMessageStore{} }

func (s *MemoryMessageStore) Save(ctx context.Context, m Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, m)
	return nil
}

func (s *MemoryMessageStore) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
