package chat

import (
	"PharmaChat/backend/go/internal/models"
	"PharmaChat/backend/go/internal/pharmacy_service/rag/interfaces"
	"PharmaChat/backend/go/pkg/circuitbreaker"
	"PharmaChat/backend/go/pkg/logger"
	"context"
	"fmt"
	"strings"
	"time"
)

// HistoryAdvisor 在请求前注入最近的会话历史（只读，不写回）。
// 读取失败时记录日志并在没有历史的情况下继续。
func HistoryAdvisor(memory interfaces.ChatMemory, log *logger.Logger) Advisor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		if req.ConversationID == "" || req.HistoryDepth <= 0 {
			return next(ctx, req)
		}
		turns, err := memory.RecentTurns(ctx, req.ConversationID, req.HistoryDepth)
		if err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error()}).
				WithPayload(map[string]interface{}{"conversation_id": req.ConversationID}).
				Warn("failed to load conversation history, continuing without it")
			return next(ctx, req)
		}
		history := make([]models.Content, 0, len(turns)+len(req.History))
		for _, t := range turns {
			// 空内容的轮次会被部分模型接口拒绝
			if strings.TrimSpace(t.Text) == "" {
				continue
			}
			history = append(history, models.NewTextContent(t.Role, t.Text))
		}
		req.History = append(history, req.History...)
		return next(ctx, req)
	}
}

// TimeoutAdvisor bounds the rest of the chain. d <= 0 disables it.
func TimeoutAdvisor(d time.Duration) Advisor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		if d <= 0 {
			return next(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return next(ctx, req)
	}
}

// CircuitBreakerAdvisor 将后续调用包装在熔断器中；熔断打开时直接返回 circuitbreaker.ErrCircuitOpen。
func CircuitBreakerAdvisor(breaker circuitbreaker.CircuitBreaker) Advisor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		resp, err := breaker.Execute(func() (interface{}, error) {
			return next(ctx, req)
		})
		if err != nil {
			return nil, err
		}
		return resp.(*Response), nil
	}
}

// LoggingAdvisor logs latency and failures of each call.
func LoggingAdvisor(log *logger.Logger) Advisor {
	return func(ctx context.Context, req *Request, next Handler) (*Response, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		payload := map[string]interface{}{
			"conversation_id": req.ConversationID,
			"history_turns":   len(req.History),
			"latency_ms":      time.Since(start).Milliseconds(),
		}
		if err != nil {
			log.WithError(models.ErrorInfo{Message: err.Error(), Type: "model"}).
				WithPayload(payload).
				Error("model call failed")
			return nil, err
		}
		log.WithPayload(payload).Debug(fmt.Sprintf("model call succeeded, %d chars", len(resp.Text)))
		return resp, nil
	}
}
