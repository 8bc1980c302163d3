package milvus

import (
	"context"
	"fmt"
	"time"

	milvusentity "github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/domain/repository"
	"med-kg-qa-api/pkg/metrics"
)

// ChunkRepository 基于 Milvus 的文献片段仓储
type ChunkRepository struct {
	client    *Client
	dimension int
}

// NewChunkRepository 创建文献片段仓储
func NewChunkRepository(client *Client, dimension int) repository.ChunkRepository {
	return &ChunkRepository{client: client, dimension: dimension}
}

// SearchChunks 向量近邻检索文献片段
func (r *ChunkRepository) SearchChunks(ctx context.Context, vector []float32, topK int) ([]entity.Chunk, error) {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return nil, fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.SearchChunks",
		trace.WithAttributes(attribute.Int("top_k", topK)))
	defer span.End()

	collection := r.client.Collection()
	start := time.Now()

	sp, err := milvusentity.NewIndexHNSWSearchParam(128)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to create search param: %w", err)
	}

	results, err := r.client.milvus.Search(ctx,
		collection,
		nil,
		"",
		[]string{"id", "doc_id", "title", "content"},
		[]milvusentity.Vector{milvusentity.FloatVector(vector)},
		"vector",
		milvusentity.COSINE,
		topK,
		sp,
	)
	metrics.MilvusSearchDuration.WithLabelValues(collection).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.MilvusSearchTotal.WithLabelValues(collection, "error").Inc()
		span.RecordError(err)
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	metrics.MilvusSearchTotal.WithLabelValues(collection, "success").Inc()

	var chunks []entity.Chunk
	for _, result := range results {
		for i := 0; i < result.ResultCount; i++ {
			chunk := entity.Chunk{
				Score: result.Scores[i],
			}
			if col, ok := result.Fields.GetColumn("id").(*milvusentity.ColumnVarChar); ok {
				chunk.ID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("doc_id").(*milvusentity.ColumnVarChar); ok {
				chunk.DocID = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("title").(*milvusentity.ColumnVarChar); ok {
				chunk.Title = col.Data()[i]
			}
			if col, ok := result.Fields.GetColumn("content").(*milvusentity.ColumnVarChar); ok {
				chunk.Content = col.Data()[i]
			}
			chunks = append(chunks, chunk)
		}
	}

	span.SetAttributes(attribute.Int("result_count", len(chunks)))
	return chunks, nil
}

// InsertChunks 批量写入文献片段及其向量
func (r *ChunkRepository) InsertChunks(ctx context.Context, chunks []entity.Chunk, vectors [][]float32) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk count %d does not match vector count %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}

	ctx, span := tracer.Start(ctx, "milvus.InsertChunks",
		trace.WithAttributes(attribute.Int("count", len(chunks))))
	defer span.End()

	ids := make([]string, len(chunks))
	docIDs := make([]string, len(chunks))
	titles := make([]string, len(chunks))
	contents := make([]string, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
		docIDs[i] = chunk.DocID
		titles[i] = chunk.Title
		contents[i] = chunk.Content
	}

	_, err := r.client.milvus.Insert(ctx, r.client.Collection(), "",
		milvusentity.NewColumnVarChar("id", ids),
		milvusentity.NewColumnFloatVector("vector", r.dimension, vectors),
		milvusentity.NewColumnVarChar("doc_id", docIDs),
		milvusentity.NewColumnVarChar("title", titles),
		milvusentity.NewColumnVarChar("content", contents),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert chunks: %w", err)
	}
	return nil
}

// Ping 健康检查
func (r *ChunkRepository) Ping(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

// EnsureCollection 确保集合与索引可用，不存在则创建
// 不做 drop/rebuild 等破坏性操作
func (r *ChunkRepository) EnsureCollection(ctx context.Context) error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	ctx, span := tracer.Start(ctx, "milvus.EnsureCollection",
		trace.WithAttributes(attribute.String("collection", r.client.Collection())))
	defer span.End()

	exists, err := r.client.milvus.HasCollection(ctx, r.client.Collection())
	if err != nil {
		span.RecordError(err)
		return err
	}
	if !exists {
		schema := ChunksSchema(r.client.Collection(), r.dimension)
		if err := r.client.milvus.CreateCollection(ctx, schema, milvusentity.DefaultShardNumber); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create collection: %w", err)
		}

		idx, err := milvusentity.NewIndexHNSW(
			milvusentity.COSINE,
			r.client.config.HNSWM,
			r.client.config.HNSWEfConstruction,
		)
		if err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to build index config: %w", err)
		}
		if err := r.client.milvus.CreateIndex(ctx, r.client.Collection(), "vector", idx, false); err != nil {
			span.RecordError(err)
			return fmt.Errorf("failed to create index: %w", err)
		}
	}

	return r.client.LoadCollection(ctx)
}
