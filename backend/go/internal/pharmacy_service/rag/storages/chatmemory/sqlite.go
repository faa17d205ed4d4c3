package chatmemory

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"context"
	"database/sql"
	"fmt"
	"time"
)

const sqliteSchema = `CREATE TABLE IF NOT EXISTS conversation_turns (
	conversation_id TEXT NOT NULL,
	sequence INTEGER NOT NULL,
	role TEXT NOT NULL,
	text TEXT NOT NULL,
	created_at TEXT NOT NULL,
	PRIMARY KEY (conversation_id, sequence)
)`

// SQLiteStore persists turns in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the turns table if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("create conversation_turns: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Append(ctx context.Context, conversationID string, role models.SpeakerRole, text string) (models.ConversationTurn, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return models.ConversationTurn{}, err
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sequence), 0) + 1 FROM conversation_turns WHERE conversation_id = ?`,
		conversationID).Scan(&seq)
	if err != nil {
		return models.ConversationTurn{}, fmt.Errorf("next sequence: %w", err)
	}

	turn := models.ConversationTurn{
		ConversationID: conversationID,
		Role:           role,
		Text:           text,
		Sequence:       seq,
		CreatedAt:      time.Now().UTC(),
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO conversation_turns (conversation_id, sequence, role, text, created_at) VALUES (?, ?, ?, ?, ?)`,
		turn.ConversationID, turn.Sequence, string(turn.Role), turn.Text, turn.CreatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return models.ConversationTurn{}, fmt.Errorf("insert turn: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return models.ConversationTurn{}, err
	}
	return turn, nil
}

func (s *SQLiteStore) RecentTurns(ctx context.Context, conversationID string, limit int) ([]models.ConversationTurn, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT sequence, role, text, created_at FROM conversation_turns
		WHERE conversation_id = ? ORDER BY sequence DESC LIMIT ?`,
		conversationID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []models.ConversationTurn
	for rows.Next() {
		var (
			turn      = models.ConversationTurn{ConversationID: conversationID}
			role      string
			createdAt string
		)
		if err := rows.Scan(&turn.Sequence, &role, &turn.Text, &createdAt); err != nil {
			return nil, err
		}
		turn.Role = models.SpeakerRole(role)
		turn.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	reverse(turns)
	return turns, nil
}

// compile-time check to ensure SQLiteStore implements the ChatMemory interface
var _ interfaces.ChatMemory = (*SQLiteStore)(nil)
