package llm

import (
	"PharmaChat/backend/go/internal/config"
	"PharmaChat/backend/go/internal/models"
	"context"
	"fmt"
	"strings"
)

// LLM 定义了所有大型语言模型客户端必须实现的通用接口。
// req.Content 中除最后一条外均视为历史，最后一条为本轮输入。
type LLM interface {
	GenerateContent(ctx context.Context, req *models.GenerateContentRequest) (*models.GenerateContentResponse, error)
}

// NewClient 是一个工厂函数，根据提供的配置创建并返回一个实现了 LLM 接口的客户端。
func NewClient(ctx context.Context, cfg config.LLMConfig) (LLM, error) {
	switch cfg.Provider {
	case "gemini":
		if cfg.Gemini.Model == "" {
			return nil, fmt.Errorf("no model configured for gemini provider")
		}
		return NewGemini(ctx, cfg.Gemini.Model, cfg.Gemini.APIKey)
	case "openai":
		if cfg.OpenAI.Model == "" {
			return nil, fmt.Errorf("no model configured for openai provider")
		}
		return NewOpenAI(cfg.OpenAI.Model, cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)
	case "ollama":
		model := cfg.Ollama.Model
		if model == "" {
			model = "llama3.1"
		}
		return NewOllama(model, cfg.Ollama.BaseURL)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}

// joinText 拼接一条消息中的所有文本部分。
func joinText(c models.Content) string {
	if len(c.Parts) == 1 && c.Parts[0] != nil {
		return c.Parts[0].Text
	}
	var sb strings.Builder
	for _, p := range c.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
