package service

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/pipeline"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrEmptyQuery is returned when the search query is blank.
var ErrEmptyQuery = errors.New("query must not be empty")

// NewConversationID generates a session id of the form user-xxxxxxxx.
func NewConversationID() string {
	return "user-" + uuid.New().String()[:8]
}

// SearchResponse is what callers of Search get back.
type SearchResponse struct {
	Answer         string              `json:"answer"`
	ConversationID string              `json:"chatId"`
	Outcome        models.QueryOutcome `json:"-"`
}

// PharmacyService answers catalog questions within a conversation.
type PharmacyService struct {
	rewriter    *pipeline.QueryRewriter
	synthesizer *pipeline.AnswerSynthesizer
	publisher   interfaces.EventPublisher
	timeout     time.Duration
	log         *logger.Logger
}

// NewPharmacyService creates a PharmacyService. publisher may be nil.
func NewPharmacyService(rewriter *pipeline.QueryRewriter, synthesizer *pipeline.AnswerSynthesizer, publisher interfaces.EventPublisher, timeout time.Duration, log *logger.Logger) *PharmacyService {
	return &PharmacyService{
		rewriter:    rewriter,
		synthesizer: synthesizer,
		publisher:   publisher,
		timeout:     timeout,
		log:         log,
	}
}

// Search rewrites the query with the conversation history, retrieves matching
// catalog entries and returns the model's answer. A blank conversationID gets a
// freshly generated one. Model and index failures are reported through the
// answer text, never as an error.
func (s *PharmacyService) Search(ctx context.Context, query, conversationID string) (SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return SearchResponse{}, ErrEmptyQuery
	}
	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		conversationID = NewConversationID()
		s.log.Info(fmt.Sprintf("No ChatID provided. Generated new session ID: %s", conversationID))
	}
	s.log.Info(fmt.Sprintf("Processing Search | Query: [%s] | ChatID: [%s]", query, conversationID))

	start := time.Now()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	rewrite := s.rewriter.Rewrite(ctx, query, conversationID)
	result := s.synthesizer.Answer(ctx, query, rewrite.Query, conversationID)

	s.publish(ctx, &models.QueryEvent{
		ConversationID: conversationID,
		Query:          query,
		RewrittenQuery: rewrite.Query,
		RewriteFailed:  rewrite.Degraded(),
		Retrieved:      len(result.Sources),
		Answer:         result.Answer,
		Outcome:        result.Outcome,
		LatencyMillis:  time.Since(start).Milliseconds(),
		Timestamp:      time.Now().UTC(),
	})

	return SearchResponse{Answer: result.Answer, ConversationID: conversationID, Outcome: result.Outcome}, nil
}

func (s *PharmacyService) publish(ctx context.Context, event *models.QueryEvent) {
	if s.publisher == nil {
		return
	}
	// the request context may already be close to its deadline
	pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	if err := s.publisher.PublishQuery(pubCtx, event); err != nil {
		s.log.WithError(models.ErrorInfo{Message: err.Error(), Type: "publish"}).Warn("Failed to publish query event")
	}
}
