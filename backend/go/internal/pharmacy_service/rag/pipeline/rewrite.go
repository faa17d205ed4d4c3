package pipeline

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/chat"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/cleaner"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
)

const rewritePrompt = `Rewriter Task:
User query ko complete karo based on history.
Example: History="Price?", Last="Dolo" -> Output="Dolo Price?"
Agar query clear hai toh same return karo.
Current Query: "%s"
Output ONLY the rewritten query.
`

// RewriteResult carries the query used for retrieval. Err is set when the
// model failed and Query fell back to Original.
type RewriteResult struct {
	Query    string
	Original string
	Err      error
}

// Degraded reports whether the rewrite fell back to the original query.
func (r RewriteResult) Degraded() bool {
	return r.Err != nil
}

// QueryRewriter turns follow-up questions into standalone queries using the conversation history.
type QueryRewriter struct {
	client       *chat.Client
	cleaner      *cleaner.Cleaner
	historyDepth int
	log          *logger.Logger
}

// NewQueryRewriter creates a new QueryRewriter.
func NewQueryRewriter(client *chat.Client, c *cleaner.Cleaner, historyDepth int, log *logger.Logger) *QueryRewriter {
	return &QueryRewriter{client: client, cleaner: c, historyDepth: historyDepth, log: log}
}

// Rewrite never fails: on any model error the original query is returned unchanged.
// The rewrite exchange is not stored in conversation memory.
func (q *QueryRewriter) Rewrite(ctx context.Context, query, conversationID string) RewriteResult {
	result := RewriteResult{Query: query, Original: query}

	resp, err := q.client.Call(ctx, chat.Request{
		ConversationID: conversationID,
		HistoryDepth:   q.historyDepth,
		Prompt:         fmt.Sprintf(rewritePrompt, query),
	})
	if err != nil {
		q.log.WithError(models.ErrorInfo{Message: err.Error(), Type: "rewrite"}).
			WithPayload(map[string]interface{}{"query": query, "conversation_id": conversationID}).
			Warn("Query rewrite failed, using the original query")
		result.Err = err
		return result
	}

	if rewritten := strings.TrimSpace(q.cleaner.Clean(resp.Text)); rewritten != "" {
		result.Query = rewritten
	}
	return result
}
