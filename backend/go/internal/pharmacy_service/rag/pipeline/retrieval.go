package pipeline

import (
	"PharmaChat/backend/go/internal/embedding"
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// IndexOptions tunes embedding fan-out and the similarity cut-off.
type IndexOptions struct {
	BatchSize   int
	Concurrency int
	// Threshold is the minimum similarity a result needs; <= 0 accepts all.
	Threshold float64
}

// RetrievalIndex embeds documents and queries and delegates storage to a VectorStore.
type RetrievalIndex struct {
	embedder embedding.Embedding
	store    interfaces.VectorStore
	opts     IndexOptions
	log      *logger.Logger
}

// NewRetrievalIndex creates a new RetrievalIndex.
func NewRetrievalIndex(embedder embedding.Embedding, store interfaces.VectorStore, opts IndexOptions, log *logger.Logger) *RetrievalIndex {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	return &RetrievalIndex{embedder: embedder, store: store, opts: opts, log: log}
}

// Upsert embeds docs in concurrent batches and writes them to the store in one call,
// so a document is either fully replaced or untouched.
func (r *RetrievalIndex) Upsert(ctx context.Context, docs []schema.Document) error {
	if len(docs) == 0 {
		return nil
	}
	embedded := make([]schema.Document, len(docs))
	copy(embedded, docs)

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.opts.Concurrency)
	for start := 0; start < len(embedded); start += r.opts.BatchSize {
		end := start + r.opts.BatchSize
		if end > len(embedded) {
			end = len(embedded)
		}
		batch := embedded[start:end]
		eg.Go(func() error {
			texts := make([]string, len(batch))
			for i, d := range batch {
				texts[i] = d.Text
			}
			vectors, err := r.embedder.EmbedBatch(gCtx, texts)
			if err != nil {
				return err
			}
			if len(vectors) != len(batch) {
				return fmt.Errorf("embedder returned %d vectors for %d texts", len(vectors), len(batch))
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		r.log.WithError(models.ErrorInfo{Message: err.Error()}).Error("Failed to embed catalog documents")
		return fmt.Errorf("%w: embed documents: %v", ErrIndexUnavailable, err)
	}

	if err := r.store.Upsert(ctx, embedded); err != nil {
		return fmt.Errorf("%w: upsert documents: %v", ErrIndexUnavailable, err)
	}
	r.log.Info(fmt.Sprintf("Upserted %d documents into the retrieval index", len(embedded)))
	return nil
}

// Search returns at most topK documents most similar to query.
func (r *RetrievalIndex) Search(ctx context.Context, query string, topK int) ([]schema.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	vector, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: embed query: %v", ErrIndexUnavailable, err)
	}
	results, err := r.store.Search(ctx, vector, topK, r.opts.Threshold)
	if err != nil {
		return nil, fmt.Errorf("%w: search: %v", ErrIndexUnavailable, err)
	}
	return results, nil
}

// Prune removes every document whose ID is not in keep.
func (r *RetrievalIndex) Prune(ctx context.Context, keep []string) (int, error) {
	n, err := r.store.DeleteExcept(ctx, keep)
	if err != nil {
		return 0, fmt.Errorf("%w: prune: %v", ErrIndexUnavailable, err)
	}
	return n, nil
}

// Count returns the number of indexed documents.
func (r *RetrievalIndex) Count(ctx context.Context) (int, error) {
	n, err := r.store.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%w: count: %v", ErrIndexUnavailable, err)
	}
	return n, nil
}
