package interfaces

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"context"
)

// Source fetches the raw bytes of a catalog export from a location (URL, path, object key).
type Source interface {
	Fetch(ctx context.Context, location string) ([]byte, error)
}

// RowLoader turns raw catalog bytes into rows of fields, header row included.
type RowLoader interface {
	Load(ctx context.Context, data []byte) ([][]string, error)
}

// VectorStore is the interface for storing and querying document vectors.
// Implementations must be safe for concurrent use; Upsert replaces documents by ID atomically.
type VectorStore interface {
	Upsert(ctx context.Context, docs []schema.Document) error
	// Search returns at most topK results with score >= threshold, ordered by score
	// descending and then by ID ascending. threshold <= 0 accepts every document.
	Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]schema.SearchResult, error)
	// DeleteExcept removes every document whose ID is not in keep and reports how many were removed.
	DeleteExcept(ctx context.Context, keep []string) (int, error)
	Count(ctx context.Context) (int, error)
}

// ChatMemory is an append-only, per-conversation log of turns.
type ChatMemory interface {
	// Append stores a turn with the next sequence number of the conversation.
	Append(ctx context.Context, conversationID string, role models.SpeakerRole, text string) (models.ConversationTurn, error)
	// RecentTurns returns up to limit most recent turns, oldest first.
	RecentTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error)
}

// RefreshLog persists the outcome of catalog refreshes.
type RefreshLog interface {
	Record(ctx context.Context, run *models.RefreshRun) error
	Recent(ctx context.Context, limit int) ([]models.RefreshRun, error)
}

// EventPublisher emits a summary of every answered query.
type EventPublisher interface {
	PublishQuery(ctx context.Context, event *models.QueryEvent) error
}
