package embedding

import (
	"PharmaChat/backend/go/internal/config"
	"context"
	"fmt"
)

// NewEmdModel 根据配置创建 Embedding 模型实例。
// cfg.CacheSize > 0 时返回带 LRU 缓存的包装。
func NewEmdModel(ctx context.Context, cfg config.EmbeddingConfig) (Embedding, error) {
	var (
		model Embedding
		err   error
	)
	switch ModelType(cfg.Provider) {
	case Google:
		model, err = NewGoogleModel(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)
	case OpenAI:
		model, err = NewOpenAIModel(cfg.OpenAI.APIKey, cfg.OpenAI.Model, cfg.OpenAI.BaseURL)
	case Ollama:
		model, err = NewOllamaModel(cfg.Ollama.Model, cfg.Ollama.BaseURL)
	case Hashing, "":
		model = NewHashingModel(cfg.Dim)
	default:
		return nil, fmt.Errorf("unsupported provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.CacheSize > 0 {
		return NewCachedModel(model, cfg.CacheSize)
	}
	return model, nil
}
