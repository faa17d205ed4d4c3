package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// HashingModel 是一个本地的特征哈希 embedding：词元和相邻词对被哈希进固定维度并做 L2 归一化。
// 不需要网络，适合离线开发和测试；语义能力只限于字面重叠。
type HashingModel struct {
	dim int
}

// NewHashingModel 创建一个 dim 维的哈希 embedding，dim<=0 时使用 256。
func NewHashingModel(dim int) *HashingModel {
	if dim <= 0 {
		dim = 256
	}
	return &HashingModel{dim: dim}
}

// Dim 返回向量维度。
func (m *HashingModel) Dim() int { return m.dim }

// Embed 为单个文本生成嵌入向量。
func (m *HashingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.vector(text), nil
}

// EmbedBatch 为一批文本生成嵌入向量。
func (m *HashingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = m.vector(t)
	}
	return out, nil
}

func (m *HashingModel) vector(text string) []float32 {
	vec := make([]float32, m.dim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for i, tok := range tokens {
		vec[m.bucket(tok)] += 1
		if i > 0 {
			vec[m.bucket(tokens[i-1]+" "+tok)] += 0.5
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func (m *HashingModel) bucket(s string) int {
	h := fnv.New32a()
	h.Write([]byte(s))
	return int(h.Sum32() % uint32(m.dim))
}
