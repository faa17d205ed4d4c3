package api

import (
	"PharmaChat/backend/go/internal/embedding"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/chat"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/cleaner"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/dal"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/pipeline"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/storages/chatmemory"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/storages/vectorstore"
	"PharmaChat/backend/go/internal/pharmacy_service/service"
	"PharmaChat/backend/go/internal/testutil"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

const catalog = "itemId,name,genericName,location,stock,price,expiry,usage\nM1,Paracetamol,Paracetamol,A1,50,10,2026-01-01,fever\n"

type stubSource struct{ data []byte }

func (s *stubSource) Fetch(ctx context.Context, location string) ([]byte, error) {
	return s.data, nil
}

func newTestRouter(t *testing.T, model *testutil.ScriptedLLM) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.Discard()

	index := pipeline.NewRetrievalIndex(embedding.NewHashingModel(128), vectorstore.NewMemoryStore(), pipeline.IndexOptions{}, log)
	ingestion := service.NewIngestionService(
		pipeline.NewIngestionPipeline(&stubSource{data: []byte(catalog)}, index, true, log),
		dal.NewMemoryRefreshLog(10), "sheet", log,
	)
	memory := chatmemory.NewMemoryStore()
	client := chat.NewClient(model, chat.HistoryAdvisor(memory, log))
	c := cleaner.New(cleaner.DefaultMarkers())
	search := service.NewPharmacyService(
		pipeline.NewQueryRewriter(client, c, 10, log),
		pipeline.NewAnswerSynthesizer(index, client, memory, c, pipeline.QAOptions{
			TopK:         15,
			HistoryDepth: 10,
			Messages:     pipeline.Messages{NoData: "no data", ServerError: "Server error. Please try again."},
		}, log),
		nil, time.Second, log,
	)
	return NewRouter(NewAPI(search, ingestion, index, log), log, RouterOptions{})
}

func serve(r *gin.Engine, method, target string) (*httptest.ResponseRecorder, map[string]interface{}) {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, target, nil))
	body := map[string]interface{}{}
	json.Unmarshal(w.Body.Bytes(), &body)
	return w, body
}

func TestRefreshThenSearch(t *testing.T) {
	r := newTestRouter(t, testutil.NewScriptedLLM("Paracetamol kaha hai", "Final Answer: Rack A1"))

	w, body := serve(r, http.MethodPost, "/api/pharmacy/refresh")
	if w.Code != http.StatusOK || body["status"] != "Success: Live Data Refreshed! (1 items)" {
		t.Fatalf("refresh: %d %v", w.Code, body)
	}

	w, body = serve(r, http.MethodGet, "/api/pharmacy/search?query=paracetamol%20kaha%20hai")
	if w.Code != http.StatusOK {
		t.Fatalf("search: %d %v", w.Code, body)
	}
	if body["answer"] != "Rack A1" {
		t.Errorf("unexpected answer %v", body["answer"])
	}
	if id, _ := body["chatId"].(string); !regexp.MustCompile(`^user-[0-9a-f]{8}$`).MatchString(id) {
		t.Errorf("unexpected chatId %q", id)
	}

	w, body = serve(r, http.MethodGet, "/api/pharmacy/healthz")
	if w.Code != http.StatusOK || body["documents"] != float64(1) {
		t.Errorf("healthz: %d %v", w.Code, body)
	}

	w, body = serve(r, http.MethodGet, "/api/pharmacy/refresh/history?limit=5")
	runs, _ := body["runs"].([]interface{})
	if w.Code != http.StatusOK || len(runs) != 1 {
		t.Errorf("history: %d %v", w.Code, body)
	}
}

func TestSearchKeepsGivenChatID(t *testing.T) {
	r := newTestRouter(t, testutil.NewScriptedLLM("q", "a"))
	serve(r, http.MethodPost, "/api/pharmacy/refresh")

	_, body := serve(r, http.MethodGet, "/api/pharmacy/search?query=dolo&chatId=abc")
	if body["chatId"] != "abc" {
		t.Errorf("expected chatId abc, got %v", body["chatId"])
	}
}

func TestSearchRequiresQuery(t *testing.T) {
	r := newTestRouter(t, testutil.NewScriptedLLM())
	for _, target := range []string{"/api/pharmacy/search", "/api/pharmacy/search?query=%20%20"} {
		if w, _ := serve(r, http.MethodGet, target); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestHistoryRejectsBadLimit(t *testing.T) {
	r := newTestRouter(t, testutil.NewScriptedLLM())
	if w, _ := serve(r, http.MethodGet, "/api/pharmacy/refresh/history?limit=abc"); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestHealthReportsFailedChecks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	a := NewAPI(nil, nil, countStub{n: 3}, logger.Discard())
	a.AddHealthCheck("redis", func(ctx context.Context) error { return nil })
	r := gin.New()
	RegisterRoutes(r, a, RouterOptions{})

	w, body := serve(r, http.MethodGet, "/api/pharmacy/healthz")
	if w.Code != http.StatusOK || body["status"] != "ok" {
		t.Fatalf("healthy: %d %v", w.Code, body)
	}

	a.AddHealthCheck("mysql", func(ctx context.Context) error { return errors.New("connection refused") })
	w, body = serve(r, http.MethodGet, "/api/pharmacy/healthz")
	if w.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", w.Code)
	}
	checks, _ := body["checks"].(map[string]interface{})
	if checks["mysql"] != "connection refused" || body["documents"] != float64(3) {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := checks["redis"]; ok {
		t.Errorf("healthy check reported as failed: %v", checks)
	}
}

type countStub struct{ n int }

func (c countStub) Count(ctx context.Context) (int, error) { return c.n, nil }
