package pipeline

import (
	"PharmaChat/backend/go/internal/embedding"
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/chat"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/cleaner"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/loaders"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/normalizer"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/storages/chatmemory"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/storages/vectorstore"
	"PharmaChat/backend/go/internal/testutil"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

const (
	header  = "itemId,name,genericName,location,stock,price,expiry,usage"
	rowM1   = "M1,Paracetamol,Paracetamol,A1,50,10,2026-01-01,fever"
	rowM2   = "M2,Dolo 650,Paracetamol,B2,20,30,2027-05-01,fever and body pain"
	rowM3   = "M3,Cetirizine,Cetirizine,C3,5,15,2025-12-31,allergy"
	noData  = "Maaf kijiye, mere paas is dawa ya query se juda data uplabdh nahi hai."
	srvFail = "Server error. Please try again."
)

type stubSource struct {
	data []byte
	err  error
}

func (s *stubSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	return s.data, s.err
}

type failingStore struct{ vectorstore.MemoryStore }

func (failingStore) Search(ctx context.Context, embedding []float32, topK int, threshold float64) ([]schema.SearchResult, error) {
	return nil, errors.New("store down")
}

func csv(lines ...string) []byte {
	return []byte(strings.Join(lines, "\n") + "\n")
}

func newIndex() *RetrievalIndex {
	return NewRetrievalIndex(embedding.NewHashingModel(256), vectorstore.NewMemoryStore(), IndexOptions{BatchSize: 2, Concurrency: 2}, logger.Discard())
}

type fixture struct {
	index  *RetrievalIndex
	memory *chatmemory.MemoryStore
	model  *testutil.ScriptedLLM
	qa     *AnswerSynthesizer
	rw     *QueryRewriter
}

func newFixture(t *testing.T, model *testutil.ScriptedLLM, rows ...string) *fixture {
	t.Helper()
	f := &fixture{index: newIndex(), memory: chatmemory.NewMemoryStore(), model: model}
	if len(rows) > 0 {
		docs, _ := BuildDocuments(normalizerRows(append([]string{header}, rows...)))
		if err := f.index.Upsert(context.Background(), docs); err != nil {
			t.Fatal(err)
		}
	}
	client := chat.NewClient(model, chat.HistoryAdvisor(f.memory, logger.Discard()))
	c := cleaner.New(cleaner.DefaultMarkers())
	f.qa = NewAnswerSynthesizer(f.index, client, f.memory, c, QAOptions{
		TopK:         15,
		HistoryDepth: 10,
		Messages:     Messages{NoData: noData, ServerError: srvFail},
	}, logger.Discard())
	f.rw = NewQueryRewriter(client, c, 10, logger.Discard())
	return f
}

func normalizerRows(lines []string) [][]string {
	rows := make([][]string, len(lines))
	for i, l := range lines {
		rows[i] = normalizer.SplitLine(l)
	}
	return rows
}

func TestBuildDocuments(t *testing.T) {
	rows := normalizerRows([]string{
		header,
		rowM1,
		"M9,broken,row",
		"",
		rowM2,
		"M1,Paracetamol 500,Paracetamol,A9,10,12,2026-06-01,fever",
		",NoID,x,x,1,1,2026-01-01,x",
	})
	docs, report := BuildDocuments(rows)
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if docs[0].ID != "M1" || !strings.Contains(docs[0].Text, "Location: A9") {
		t.Errorf("duplicate id must keep the last row, got %q", docs[0].Text)
	}
	if report.Rows != 5 || report.Skipped != 2 || report.Duplicates != 1 {
		t.Errorf("unexpected report %+v", report)
	}
}

func TestBuildDocumentsHeaderOnly(t *testing.T) {
	docs, _ := BuildDocuments(normalizerRows([]string{header}))
	if len(docs) != 0 {
		t.Errorf("header-only sheet must produce nothing, got %d", len(docs))
	}
}

func TestIngestionRunAndPrune(t *testing.T) {
	ctx := context.Background()
	index := newIndex()
	src := &stubSource{data: csv(header, rowM1, rowM2, rowM3)}
	p := NewIngestionPipeline(src, index, true, logger.Discard())

	report, err := p.Run(ctx, "sheet")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Indexed != 3 {
		t.Errorf("expected 3 indexed, got %+v", report)
	}

	src.data = csv(header, rowM1)
	report, err = p.Run(ctx, "sheet")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Pruned != 2 {
		t.Errorf("expected 2 pruned, got %+v", report)
	}
	if n, _ := index.Count(ctx); n != 1 {
		t.Errorf("expected 1 document left, got %d", n)
	}
}

func TestIngestionFailuresLeaveIndexUntouched(t *testing.T) {
	ctx := context.Background()
	index := newIndex()
	src := &stubSource{data: csv(header, rowM1)}
	p := NewIngestionPipeline(src, index, true, logger.Discard())
	if _, err := p.Run(ctx, "sheet"); err != nil {
		t.Fatal(err)
	}

	src.data = csv(header, "bad,row")
	if _, err := p.Run(ctx, "sheet"); !errors.Is(err, ErrEmptyCatalog) {
		t.Errorf("expected ErrEmptyCatalog, got %v", err)
	}

	src.err = fmt.Errorf("%w: 404", loaders.ErrSourceUnavailable)
	if _, err := p.Run(ctx, "sheet"); !errors.Is(err, loaders.ErrSourceUnavailable) {
		t.Errorf("expected ErrSourceUnavailable, got %v", err)
	}

	if n, _ := index.Count(ctx); n != 1 {
		t.Errorf("failed runs must not change the index, got %d documents", n)
	}
}

func TestRetrievalIndexRanksClosestFirst(t *testing.T) {
	ctx := context.Background()
	index := newIndex()
	docs, _ := BuildDocuments(normalizerRows([]string{header, rowM1, rowM2, rowM3}))
	if err := index.Upsert(ctx, docs); err != nil {
		t.Fatal(err)
	}

	res, err := index.Search(ctx, "Dolo 650", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(res) != 2 {
		t.Fatalf("expected 2 results, got %d", len(res))
	}
	if res[0].Document.ID != "M2" {
		t.Errorf("expected M2 first, got %s", res[0].Document.ID)
	}
	if res, _ := index.Search(ctx, "Dolo", 0); len(res) != 0 {
		t.Errorf("topK 0 must return nothing, got %d", len(res))
	}
}

func TestRetrievalIndexWrapsStoreErrors(t *testing.T) {
	index := NewRetrievalIndex(embedding.NewHashingModel(64), &failingStore{}, IndexOptions{}, logger.Discard())
	if _, err := index.Search(context.Background(), "x", 3); !errors.Is(err, ErrIndexUnavailable) {
		t.Errorf("expected ErrIndexUnavailable, got %v", err)
	}
}

func TestRewriteUsesCleanedModelOutput(t *testing.T) {
	f := newFixture(t, testutil.NewScriptedLLM("  Dolo 650 Price?\n"))
	res := f.rw.Rewrite(context.Background(), "Price?", "c1")
	if res.Query != "Dolo 650 Price?" || res.Original != "Price?" || res.Degraded() {
		t.Errorf("unexpected result %+v", res)
	}
	if !strings.Contains(f.model.LastPrompt(), `Current Query: "Price?"`) {
		t.Errorf("prompt must carry the literal query, got %q", f.model.LastPrompt())
	}
	if turns, _ := f.memory.RecentTurns(context.Background(), "c1", 10); len(turns) != 0 {
		t.Errorf("rewrite must not be stored, got %d turns", len(turns))
	}
}

func TestRewriteFallsBackOnFailure(t *testing.T) {
	model := &testutil.ScriptedLLM{Replies: []testutil.Reply{{Err: errors.New("timeout")}, {Text: "   "}}}
	f := newFixture(t, model)

	res := f.rw.Rewrite(context.Background(), "Dolo  kaha hai ", "c1")
	if res.Query != "Dolo  kaha hai " || !res.Degraded() {
		t.Errorf("failure must return the exact original query, got %+v", res)
	}
	res = f.rw.Rewrite(context.Background(), "Dolo", "c1")
	if res.Query != "Dolo" || res.Degraded() {
		t.Errorf("blank output must fall back without error, got %+v", res)
	}
}

func TestAnswerNoDataSkipsModel(t *testing.T) {
	f := newFixture(t, testutil.NewScriptedLLM("unused"))
	res := f.qa.Answer(context.Background(), "Dolo?", "Dolo?", "c1")
	if res.Answer != noData || res.Outcome != models.OutcomeNoData {
		t.Errorf("unexpected result %+v", res)
	}
	if f.model.Calls() != 0 {
		t.Errorf("model must not be called, got %d calls", f.model.Calls())
	}
}

func TestAnswerModelFailure(t *testing.T) {
	f := newFixture(t, &testutil.ScriptedLLM{Replies: []testutil.Reply{{Err: errors.New("boom")}}}, rowM1)
	res := f.qa.Answer(context.Background(), "Paracetamol?", "Paracetamol?", "c1")
	if res.Answer != srvFail || res.Outcome != models.OutcomeModelError || !errors.Is(res.Err, chat.ErrModelFailure) {
		t.Errorf("unexpected result %+v", res)
	}
	if turns, _ := f.memory.RecentTurns(context.Background(), "c1", 10); len(turns) != 0 {
		t.Errorf("failed answers must not be stored, got %d turns", len(turns))
	}
}

func TestAnswerEmptyAfterCleaning(t *testing.T) {
	f := newFixture(t, testutil.NewScriptedLLM("Thinking Process: nothing useful. Final Answer:   "), rowM1)
	res := f.qa.Answer(context.Background(), "Paracetamol?", "Paracetamol?", "c1")
	if res.Answer != srvFail || res.Outcome != models.OutcomeModelError || !errors.Is(res.Err, chat.ErrModelFailure) {
		t.Errorf("unexpected result %+v", res)
	}
	if turns, _ := f.memory.RecentTurns(context.Background(), "c1", 10); len(turns) != 0 {
		t.Errorf("empty answers must not be stored, got %d turns", len(turns))
	}
}

func TestAnswerIndexFailure(t *testing.T) {
	f := newFixture(t, testutil.NewScriptedLLM("unused"))
	f.qa.index = NewRetrievalIndex(embedding.NewHashingModel(64), &failingStore{}, IndexOptions{}, logger.Discard())
	res := f.qa.Answer(context.Background(), "x", "x", "c1")
	if res.Answer != srvFail || res.Outcome != models.OutcomeIndexError {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestAnswerEndToEnd(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, testutil.NewScriptedLLM(
		"Thinking Process: record M1 matches. Final Answer: Paracetamol rack A1 me hai, price 10.",
		"Paracetamol price?",
		"Price 10 hai.",
	), rowM1, rowM3)

	res := f.qa.Answer(ctx, "paracetamol kaha hai", "paracetamol kaha hai", "c1")
	if res.Answer != "Paracetamol rack A1 me hai, price 10." || res.Outcome != models.OutcomeAnswered {
		t.Fatalf("unexpected result %+v", res)
	}
	prompt := f.model.LastPrompt()
	if !strings.Contains(prompt, "Location: A1") || !strings.Contains(prompt, "\n---\n") {
		t.Errorf("prompt must contain the joined context, got %q", prompt)
	}
	if !strings.Contains(prompt, "Customer question: paracetamol kaha hai") {
		t.Errorf("prompt must contain the original query, got %q", prompt)
	}

	turns, _ := f.memory.RecentTurns(ctx, "c1", 10)
	if len(turns) != 2 || turns[0].Text != "paracetamol kaha hai" || turns[1].Text != res.Answer {
		t.Fatalf("unexpected memory %+v", turns)
	}

	// follow-up: rewrite sees history, answer prompt keeps the user's wording
	rw := f.rw.Rewrite(ctx, "price?", "c1")
	if rw.Query != "Paracetamol price?" {
		t.Fatalf("unexpected rewrite %+v", rw)
	}
	if got := len(f.model.Request(1).Content); got != 3 {
		t.Errorf("rewrite request should carry 2 history turns plus prompt, got %d", got)
	}
	res = f.qa.Answer(ctx, rw.Original, rw.Query, "c1")
	if res.Answer != "Price 10 hai." {
		t.Errorf("unexpected answer %q", res.Answer)
	}
	if !strings.Contains(f.model.LastPrompt(), "Customer question: price?") {
		t.Errorf("answer prompt must use the original query")
	}
	turns, _ = f.memory.RecentTurns(ctx, "c1", 10)
	if len(turns) != 4 || turns[2].Text != "price?" {
		t.Errorf("unexpected memory %+v", turns)
	}
}

func TestRenderPrompt(t *testing.T) {
	got := RenderPrompt("C={context} Q={query} C2={context}", "ctx", "q")
	if got != "C=ctx Q=q C2=ctx" {
		t.Errorf("RenderPrompt() = %q", got)
	}
}
