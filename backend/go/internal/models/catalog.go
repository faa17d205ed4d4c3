package models

import "time"

// CatalogEntry 是药品目录中的一行记录，所有字段均为去除首尾空白后的原始文本。
type CatalogEntry struct {
	ItemID        string `json:"itemId"`
	Name          string `json:"name"`
	GenericName   string `json:"genericName"`
	Location      string `json:"location"`
	StockQuantity string `json:"stockQuantity"`
	Price         string `json:"price"`
	ExpiryDate    string `json:"expiryDate"`
	UsageText     string `json:"usageText"`
}

// ConversationTurn 是会话中的一条消息。同一会话内按 Sequence 严格递增排序。
type ConversationTurn struct {
	ConversationID string      `json:"conversationId" bson:"conversation_id"`
	Role           SpeakerRole `json:"role" bson:"role"`
	Text           string      `json:"text" bson:"text"`
	Sequence       int64       `json:"sequence" bson:"sequence"`
	CreatedAt      time.Time   `json:"createdAt" bson:"created_at"`
}

// QueryOutcome 描述一次检索问答的最终走向。
type QueryOutcome string

const (
	OutcomeAnswered   QueryOutcome = "answered"
	OutcomeNoData     QueryOutcome = "no_data"
	OutcomeIndexError QueryOutcome = "index_error"
	OutcomeModelError QueryOutcome = "model_error"
)

// QueryEvent 在每次搜索结束后发布到 Kafka。
type QueryEvent struct {
	ConversationID string       `json:"conversationId" bson:"conversation_id"`
	Query          string       `json:"query" bson:"query"`
	RewrittenQuery string       `json:"rewrittenQuery" bson:"rewritten_query"`
	RewriteFailed  bool         `json:"rewriteFailed" bson:"rewrite_failed"`
	Retrieved      int          `json:"retrieved" bson:"retrieved"`
	Answer         string       `json:"answer" bson:"answer"`
	Outcome        QueryOutcome `json:"outcome" bson:"outcome"`
	LatencyMillis  int64        `json:"latencyMillis" bson:"latency_millis"`
	Timestamp      time.Time    `json:"timestamp" bson:"timestamp"`
}
