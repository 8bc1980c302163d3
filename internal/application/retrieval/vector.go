package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/cloudwego/eino/components/embedding"

	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/domain/repository"
	"med-kg-qa-api/pkg/logger"
)

// VectorRetriever 向量相似度检索器
// 向量检索是可选增强层：embedder 或向量库不可用时降级为空结果而非报错
type VectorRetriever struct {
	embedder embedding.Embedder
	chunks   repository.ChunkRepository
}

// NewVectorRetriever 创建向量检索器
func NewVectorRetriever(embedder embedding.Embedder, chunks repository.ChunkRepository) *VectorRetriever {
	return &VectorRetriever{embedder: embedder, chunks: chunks}
}

// Enabled 判断向量检索是否可用
func (v *VectorRetriever) Enabled() bool {
	return v != nil && v.embedder != nil && v.chunks != nil
}

// Search 检索与问句最相似的 topK 个分块，按分数降序，同分保持写入顺序
func (v *VectorRetriever) Search(ctx context.Context, query string, topK int) *entity.RetrievalResult {
	empty := &entity.RetrievalResult{Source: entity.SourceVector, Confidence: 0}
	if !v.Enabled() {
		return empty
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return empty
	}
	if topK <= 0 {
		topK = 5
	}

	vec, err := v.embedQuery(ctx, query)
	if err != nil {
		logger.Warn(ctx, "embedding failed, degrading to empty vector result", "error", err.Error())
		return empty
	}

	chunks, err := v.chunks.SearchChunks(ctx, vec, topK)
	if err != nil {
		logger.Warn(ctx, "vector search failed, degrading to empty result", "error", err.Error())
		return empty
	}

	// 稳定排序：同分保持原有顺序
	sort.SliceStable(chunks, func(i, j int) bool {
		return chunks[i].Score > chunks[j].Score
	})

	result := &entity.RetrievalResult{Source: entity.SourceVector, Confidence: 0.8}
	for _, c := range chunks {
		result.Items = append(result.Items, entity.RetrievalItem{
			Label:   c.Title,
			Payload: c.Content,
			Score:   c.Score,
		})
	}
	if len(result.Items) == 0 {
		result.Confidence = 0
	}
	return result
}

func (v *VectorRetriever) embedQuery(ctx context.Context, query string) ([]float32, error) {
	v64, err := v.embedder.EmbedStrings(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(v64) == 0 {
		return nil, ErrVectorDisabled
	}
	vec := make([]float32, 0, len(v64[0]))
	for _, x := range v64[0] {
		vec = append(vec, float32(x))
	}
	return vec, nil
}
