// Package chatmemory holds ChatMemory implementations: in-process, Redis,
// MongoDB and SQLite.
package chatmemory

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"context"
	"sync"
	"time"
)

type conversation struct {
	mu    sync.Mutex
	turns []models.ConversationTurn
}

// MemoryStore keeps every conversation in process memory. Appends to different
// conversations do not contend with each other.
type MemoryStore struct {
	mu            sync.Mutex
	conversations map[string]*conversation
	now           func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string]*conversation),
		now:           time.Now,
	}
}

func (s *MemoryStore) get(id string) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.conversations[id]
	if !ok {
		c = &conversation{}
		s.conversations[id] = c
	}
	return c
}

func (s *MemoryStore) Append(ctx context.Context, conversationID string, role models.SpeakerRole, text string) (models.ConversationTurn, error) {
	if err := ctx.Err(); err != nil {
		return models.ConversationTurn{}, err
	}
	c := s.get(conversationID)
	c.mu.Lock()
	defer c.mu.Unlock()

	turn := models.ConversationTurn{
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		Sequence:       int64(len(c.turns)) + 1,
		CreatedAt:      s.now().UTC(),
	}
	c.turns = append(c.turns, turn)
	return turn, nil
}

func (s *MemoryStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	s.mu.Lock()
	c, ok := s.conversations[conversationID]
	s.mu.Unlock()
	if !ok {
		return nil, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	start := len(c.turns) - limit
	if start < 0 {
		start = 0
	}
	return append([]models.ConversationTurn(nil), c.turns[start:]...), nil
}

// compile-time check to ensure MemoryStore implements the ChatMemory interface
var _ interfaces.ChatMemory = (*MemoryStore)(nil)
