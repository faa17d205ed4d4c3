package analytics

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/segmentio/kafka-go"
)

var base = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func event(query string, outcome models.QueryOutcome, at time.Time) models.QueryEvent {
	return models.QueryEvent{ConversationID: "user-1", Query: query, Outcome: outcome, Timestamp: at}
}

func TestMemoryEventStoreUnanswered(t *testing.T) {
	s := NewMemoryEventStore()
	ctx := context.Background()
	for _, e := range []models.QueryEvent{
		event("Insulin hai?", models.OutcomeNoData, base),
		event("insulin   HAI?", models.OutcomeNoData, base.Add(time.Hour)),
		event("cetirizine", models.OutcomeNoData, base),
		event("dolo", models.OutcomeAnswered, base),
		event("old question", models.OutcomeNoData, base.AddDate(0, 0, -30)),
	} {
		e := e
		if err := s.Save(ctx, &e); err != nil {
			t.Fatal(err)
		}
	}

	got, err := s.Unanswered(ctx, base.AddDate(0, 0, -7), 10)
	if err != nil {
		t.Fatalf("Unanswered() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 groups, got %+v", got)
	}
	if got[0].Query != "insulin hai?" || got[0].Count != 2 || !got[0].LastSeen.Equal(base.Add(time.Hour)) {
		t.Errorf("unexpected first group %+v", got[0])
	}
	if got[1].Query != "cetirizine" || got[1].Count != 1 {
		t.Errorf("unexpected second group %+v", got[1])
	}

	got, _ = s.Unanswered(ctx, base.AddDate(0, 0, -7), 1)
	if len(got) != 1 {
		t.Errorf("limit not applied: %+v", got)
	}
}

type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	cancel    context.CancelFunc
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.msgs) == 0 {
		r.cancel()
		return kafka.Message{}, context.Canceled
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(ctx context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error { return nil }

type flakyStore struct {
	*MemoryEventStore
	failures int
}

func (s *flakyStore) Save(ctx context.Context, e *models.QueryEvent) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("mongo down")
	}
	return s.MemoryEventStore.Save(ctx, e)
}

func TestKafkaConsumerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good, _ := json.Marshal(event("insulin", models.OutcomeNoData, base))
	reader := &fakeReader{
		msgs: []kafka.Message{
			{Offset: 1, Value: good},
			{Offset: 2, Value: []byte("not json")},
			{Offset: 3, Value: good},
		},
		cancel: cancel,
	}
	store := &flakyStore{MemoryEventStore: NewMemoryEventStore(), failures: 1}
	c := NewKafkaConsumer(reader, store, logger.Discard())
	c.backoff = time.Millisecond

	if err := c.Run(ctx); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(store.events) != 2 {
		t.Errorf("expected 2 saved events, got %d", len(store.events))
	}
	if len(reader.committed) != 3 {
		t.Errorf("expected all 3 offsets committed, got %v", reader.committed)
	}
}

func TestUnansweredHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	store := NewMemoryEventStore()
	e := event("insulin", models.OutcomeNoData, base)
	store.Save(context.Background(), &e)

	api := NewAPI(store, logger.Discard())
	api.now = func() time.Time { return base.Add(time.Hour) }
	router := gin.New()
	RegisterRoutes(router, api)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pharmacy/analytics/unanswered?limit=5", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d %s", w.Code, w.Body.String())
	}
	var body struct {
		Queries []QueryCount `json:"queries"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if len(body.Queries) != 1 || body.Queries[0].Query != "insulin" {
		t.Errorf("unexpected queries %+v", body.Queries)
	}

	for _, q := range []string{"limit=0", "limit=abc", "days=-1"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/pharmacy/analytics/unanswered?"+q, nil))
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status = %d", q, w.Code)
		}
	}
}
