package embedding

import (
	"PharmaChat/backend/go/pkg/util"
	"context"
)

// CachedModel 用 LRU 缓存包装另一个 Embedding，避免重复查询反复调用远程模型。
// 只缓存单条 Embed 的结果，批量索引走 EmbedBatch 直通。
type CachedModel struct {
	next  Embedding
	cache *util.LRUCache[string, []float32]
}

// NewCachedModel 创建容量为 size 的缓存包装。
func NewCachedModel(next Embedding, size int) (*CachedModel, error) {
	cache, err := util.NewWithConfig[string, []float32](util.CacheConfig{Capacity: size})
	if err != nil {
		return nil, err
	}
	return &CachedModel{next: next, cache: cache}, nil
}

// Embed 优先返回缓存中的向量。
func (m *CachedModel) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := m.cache.Get(text); ok {
		return v, nil
	}
	v, err := m.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	m.cache.Put(text, v, 1)
	return v, nil
}

// EmbedBatch 直接委托给底层模型。
func (m *CachedModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return m.next.EmbedBatch(ctx, texts)
}

// Stats 返回缓存统计。
func (m *CachedModel) Stats() util.CacheStats {
	return m.cache.Stats()
}
