package vectorstore

import (
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"context"
	"math"
	"sort"
	"sync"
)

// MemoryStore keeps documents in a map and scans them with cosine similarity.
// Readers never observe a partially applied Upsert batch.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]schema.Document
}

// NewMemoryStore creates an empty in-process store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]schema.Document)}
}

func (s *MemoryStore) Upsert(ctx context.Context, docs []schema.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	batch := make([]schema.Document, len(docs))
	for i, d := range docs {
		batch[i] = cloneDocument(d)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, d := range batch {
		s.docs[d.ID] = d
	}
	return nil
}

func (s *MemoryStore) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]schema.SearchResult, error) {
	if topK <= 0 {
		return nil, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	results := make([]schema.SearchResult, 0, len(s.docs))
	for _, d := range s.docs {
		score := Cosine(embedding, d.Embedding)
		if threshold > 0 && score < threshold {
			continue
		}
		results = append(results, schema.SearchResult{Document: d, Score: score})
	}
	s.mu.RUnlock()

	SortResults(results)
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Document = cloneDocument(results[i].Document)
		results[i].Document.Embedding = nil
	}
	return results, nil
}

func (s *MemoryStore) DeleteExcept(ctx context.Context, keep []string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	keepSet := make(map[string]struct{}, len(keep))
	for _, id := range keep {
		keepSet[id] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	removed := 0
	for id := range s.docs {
		if _, ok := keepSet[id]; !ok {
			delete(s.docs, id)
			removed++
		}
	}
	return removed, nil
}

func (s *MemoryStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs), nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a zero
// vector or the dimensions differ.
func Cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// SortResults orders by score descending, then by document ID ascending.
func SortResults(results []schema.SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
}

func cloneDocument(d schema.Document) schema.Document {
	out := d
	if d.Attributes != nil {
		out.Attributes = make(map[string]string, len(d.Attributes))
		for k, v := range d.Attributes {
			out.Attributes[k] = v
		}
	}
	if d.Embedding != nil {
		out.Embedding = append([]float32(nil), d.Embedding...)
	}
	return out
}

// compile-time check to ensure MemoryStore implements the VectorStore interface
var _ interfaces.VectorStore = (*MemoryStore)(nil)
