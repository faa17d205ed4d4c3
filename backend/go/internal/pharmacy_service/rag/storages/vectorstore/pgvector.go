package vectorstore

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// PgVectorStore stores documents in a PostgreSQL table with a pgvector column.
type PgVectorStore struct {
	log   *logger.Logger
	pool  *pgxpool.Pool
	table string
}

// NewPgVectorStore creates the table and HNSW index if needed.
func NewPgVectorStore(ctx context.Context, pool *pgxpool.Pool, table string, dim int, log *logger.Logger) (*PgVectorStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("postgres pool is not initialized")
	}
	ident := pgx.Identifier{table}.Sanitize()
	ddl := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			attributes JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d) NOT NULL
		)`, ident, dim),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw (embedding vector_cosine_ops)`,
			pgx.Identifier{table + "_embedding_idx"}.Sanitize(), ident),
	}
	for _, stmt := range ddl {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("failed to prepare table %s: %w", table, err)
		}
	}
	return &PgVectorStore{log: log, pool: pool, table: ident}, nil
}

// Upsert writes all documents in one transaction.
func (s *PgVectorStore) Upsert(ctx context.Context, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s (id, text, attributes, embedding) VALUES ($1, $2, $3::jsonb, $4)
		ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, attributes = EXCLUDED.attributes, embedding = EXCLUDED.embedding`, s.table)

	batch := &pgx.Batch{}
	for _, doc := range docs {
		attrs, err := json.Marshal(doc.Attributes)
		if err != nil {
			return fmt.Errorf("marshal attributes of %s: %w", doc.ID, err)
		}
		batch.Queue(query, doc.ID, doc.Text, string(attrs), pgvector.NewVector(doc.Embedding))
	}

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		return tx.SendBatch(ctx, batch).Close()
	})
	if err != nil {
		s.log.WithError(models.ErrorInfo{Message: err.Error()}).Error(fmt.Sprintf("Failed to upsert %d documents into pgvector", len(docs)))
		return fmt.Errorf("failed to upsert documents: %w", err)
	}
	return nil
}

// Search orders by cosine distance and then by ID, so ties resolve deterministically.
func (s *PgVectorStore) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]schema.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT id, text, attributes, 1 - (embedding <=> $1) AS score FROM %s
		WHERE $3::float8 <= 0 OR 1 - (embedding <=> $1) >= $3::float8
		ORDER BY embedding <=> $1, id
		LIMIT $2`, s.table)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(embedding), topK, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents: %w", err)
	}
	defer rows.Close()

	var results []schema.SearchResult
	for rows.Next() {
		var (
			doc   schema.Document
			attrs []byte
			score float64
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &attrs, &score); err != nil {
			return nil, fmt.Errorf("failed to scan search row: %w", err)
		}
		if len(attrs) > 0 {
			if err := json.Unmarshal(attrs, &doc.Attributes); err != nil {
				return nil, fmt.Errorf("decode attributes of %s: %w", doc.ID, err)
			}
		}
		results = append(results, schema.SearchResult{Document: doc, Score: score})
	}
	return results, rows.Err()
}

func (s *PgVectorStore) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := s.pool.Exec(ctx, fmt.Sprintf(`DELETE FROM %s WHERE NOT (id = ANY($1))`, s.table), keep)
	if err != nil {
		return 0, fmt.Errorf("failed to delete stale documents: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PgVectorStore) Count(ctx context.Context) (int, error) {
	var n int64
	if err := s.pool.QueryRow(ctx, fmt.Sprintf(`SELECT count(*) FROM %s`, s.table)).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return int(n), nil
}

// compile-time check to ensure PgVectorStore implements the VectorStore interface
var _ interfaces.VectorStore = (*PgVectorStore)(nil)
