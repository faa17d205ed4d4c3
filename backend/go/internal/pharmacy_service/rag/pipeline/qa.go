package pipeline

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/chat"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/cleaner"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/schema"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"fmt"
	"os"
	"strings"
)

// DefaultPromptTemplate is used when no template file is configured.
const DefaultPromptTemplate = `You are a pharmacy counter assistant. Answer ONLY from the inventory records below.
If the records do not contain the answer, say that the information is not available.
Mention the rack location, stock, price and expiry date when they are relevant.
Reply in the same language as the customer (Hindi, Hinglish or English).
Write your reasoning after "Thinking Process:" and the reply after "Final Answer:".

Inventory records:
{context}

Customer question: {query}
`

const contextSeparator = "\n---\n"

// LoadPromptTemplate reads the template at path, or returns DefaultPromptTemplate when path is empty.
func LoadPromptTemplate(path string) (string, error) {
	if path == "" {
		return DefaultPromptTemplate, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read prompt template: %w", err)
	}
	return string(data), nil
}

// RenderPrompt substitutes {context} and {query} in template.
func RenderPrompt(template, contextText, query string) string {
	return strings.NewReplacer("{context}", contextText, "{query}", query).Replace(template)
}

// Messages are the fixed user-facing fallback replies.
type Messages struct {
	NoData      string
	ServerError string
}

// AnswerResult is the reply plus how it was reached.
type AnswerResult struct {
	Answer  string
	Sources []schema.SearchResult
	Outcome models.QueryOutcome
	Err     error
}

// QAOptions configures the AnswerSynthesizer.
type QAOptions struct {
	TopK         int
	HistoryDepth int
	Template     string
	Messages     Messages
}

// AnswerSynthesizer retrieves context for a query and asks the model for a grounded answer.
type AnswerSynthesizer struct {
	index   *RetrievalIndex
	client  *chat.Client
	memory  interfaces.ChatMemory
	cleaner *cleaner.Cleaner
	opts    QAOptions
	log     *logger.Logger
}

// NewAnswerSynthesizer creates a new AnswerSynthesizer.
func NewAnswerSynthesizer(index *RetrievalIndex, client *chat.Client, memory interfaces.ChatMemory, c *cleaner.Cleaner, opts QAOptions, log *logger.Logger) *AnswerSynthesizer {
	if opts.Template == "" {
		opts.Template = DefaultPromptTemplate
	}
	return &AnswerSynthesizer{index: index, client: client, memory: memory, cleaner: c, opts: opts, log: log}
}

// Answer searches with rewrittenQuery but shows the model the originalQuery.
// Only a successful, non-empty answer is appended to the conversation, together with the original query.
func (a *AnswerSynthesizer) Answer(ctx context.Context, originalQuery, rewrittenQuery, conversationID string) AnswerResult {
	log := a.log.WithPayload(map[string]interface{}{
		"query":           originalQuery,
		"search_query":    rewrittenQuery,
		"conversation_id": conversationID,
	})

	results, err := a.index.Search(ctx, rewrittenQuery, a.opts.TopK)
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "index"}).Error("Retrieval failed")
		return AnswerResult{Answer: a.opts.Messages.ServerError, Outcome: models.OutcomeIndexError, Err: err}
	}
	if len(results) == 0 {
		log.Info("No catalog documents matched the query")
		return AnswerResult{Answer: a.opts.Messages.NoData, Outcome: models.OutcomeNoData}
	}

	prompt := RenderPrompt(a.opts.Template, strings.Join(schema.Texts(results), contextSeparator), originalQuery)
	resp, err := a.client.Call(ctx, chat.Request{
		ConversationID: conversationID,
		HistoryDepth:   a.opts.HistoryDepth,
		Prompt:         prompt,
	})
	if err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "model"}).Error("AI Error")
		return AnswerResult{Answer: a.opts.Messages.ServerError, Sources: results, Outcome: models.OutcomeModelError, Err: err}
	}

	answer := a.cleaner.Clean(resp.Text)
	if strings.TrimSpace(answer) == "" {
		err := fmt.Errorf("%w: empty answer after cleaning", chat.ErrModelFailure)
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "model"}).Error("AI Error")
		return AnswerResult{Answer: a.opts.Messages.ServerError, Sources: results, Outcome: models.OutcomeModelError, Err: err}
	}
	a.remember(ctx, conversationID, originalQuery, answer, log)
	return AnswerResult{Answer: answer, Sources: results, Outcome: models.OutcomeAnswered}
}

func (a *AnswerSynthesizer) remember(ctx context.Context, conversationID, query, answer string, log *logger.Logger) {
	if conversationID == "" {
		return
	}
	if _, err := a.memory.Append(ctx, conversationID, models.SpeakerUser, query); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "memory"}).Warn("Failed to store user turn")
		return
	}
	if _, err := a.memory.Append(ctx, conversationID, models.SpeakerAssistant, answer); err != nil {
		log.WithError(models.ErrorInfo{Message: err.Error(), Type: "memory"}).Warn("Failed to store assistant turn")
	}
}
