package repository

import (
	"context"

	"med-kg-qa-api/internal/domain/entity"
)

// ChunkRepository 文档分块向量库接口
type ChunkRepository interface {
	// SearchChunks 按向量相似度检索 topK 个分块
	SearchChunks(ctx context.Context, vector []float32, topK int) ([]entity.Chunk, error)

	// InsertChunks 批量写入分块及其向量
	InsertChunks(ctx context.Context, chunks []entity.Chunk, vectors [][]float32) error

	// Ping 健康检查
	Ping(ctx context.Context) error
}
