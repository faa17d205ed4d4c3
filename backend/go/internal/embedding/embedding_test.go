package embedding

import (
	"PharmaChat/backend/go/internal/config"
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
)

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func TestHashingModelIsDeterministicAndNormalized(t *testing.T) {
	m := NewHashingModel(64)
	a, _ := m.Embed(context.Background(), "Paracetamol 500mg fever")
	b, _ := m.Embed(context.Background(), "Paracetamol 500mg fever")
	if len(a) != 64 {
		t.Fatalf("expected 64 dims, got %d", len(a))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatal("expected identical vectors for identical text")
		}
	}
	if n := cosine(a, a); math.Abs(n-1) > 1e-5 {
		t.Errorf("expected unit norm, cosine(a,a)=%f", n)
	}
}

func TestHashingModelPrefersLexicalOverlap(t *testing.T) {
	m := NewHashingModel(256)
	ctx := context.Background()
	query, _ := m.Embed(ctx, "paracetamol price")
	vecs, _ := m.EmbedBatch(ctx, []string{
		"Medicine Name: Paracetamol\nPrice: 10",
		"Medicine Name: Cetirizine\nUsage: allergy",
	})
	if cosine(query, vecs[0]) <= cosine(query, vecs[1]) {
		t.Errorf("expected paracetamol document to score higher")
	}
}

type countingModel struct {
	calls int
}

func (c *countingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return []float32{1, 0}, nil
}

func (c *countingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestCachedModelReusesVectors(t *testing.T) {
	inner := &countingModel{}
	m, err := NewCachedModel(inner, 8)
	if err != nil {
		t.Fatalf("NewCachedModel() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := m.Embed(context.Background(), "dolo"); err != nil {
			t.Fatal(err)
		}
	}
	if inner.calls != 1 {
		t.Errorf("expected 1 upstream call, got %d", inner.calls)
	}
	if s := m.Stats(); s.Hits != 2 || s.Misses != 1 {
		t.Errorf("unexpected stats %+v", s)
	}
}

func TestOllamaModelBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/embed" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req struct {
			Input []string `json:"input"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		embs := make([][]float32, len(req.Input))
		for i := range embs {
			embs[i] = []float32{float32(i), 1}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{"model": "nomic-embed-text", "embeddings": embs})
	}))
	defer srv.Close()

	m, err := NewOllamaModel("nomic-embed-text", srv.URL)
	if err != nil {
		t.Fatalf("NewOllamaModel() error = %v", err)
	}
	vecs, err := m.EmbedBatch(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("EmbedBatch() error = %v", err)
	}
	if len(vecs) != 2 || vecs[1][0] != 1 {
		t.Errorf("unexpected vectors %v", vecs)
	}
}

func TestNewEmdModelDefaultsToHashing(t *testing.T) {
	m, err := NewEmdModel(context.Background(), config.EmbeddingConfig{Dim: 32})
	if err != nil {
		t.Fatalf("NewEmdModel() error = %v", err)
	}
	if _, ok := m.(*HashingModel); !ok {
		t.Errorf("expected *HashingModel, got %T", m)
	}
	if _, err := NewEmdModel(context.Background(), config.EmbeddingConfig{Provider: "word2vec"}); err == nil {
		t.Error("expected error for unknown provider")
	}
}
