package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/domain/entity"
)

// fakeEmbedder 返回固定向量的 embedder 桩
type fakeEmbedder struct {
	err   error
	calls int
}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1, 0.2, 0.3}
	}
	return out, nil
}

// fakeChunkRepo 向量库桩
type fakeChunkRepo struct {
	chunks []entity.Chunk
	err    error
}

func (f *fakeChunkRepo) SearchChunks(ctx context.Context, vector []float32, topK int) ([]entity.Chunk, error) {
	if f.err != nil {
		return nil, f.err
	}
	if topK < len(f.chunks) {
		return f.chunks[:topK], nil
	}
	return f.chunks, nil
}

func (f *fakeChunkRepo) InsertChunks(ctx context.Context, chunks []entity.Chunk, vectors [][]float32) error {
	return f.err
}

func (f *fakeChunkRepo) Ping(ctx context.Context) error { return f.err }

func TestVectorRetriever_SearchOrdersByScoreDescending(t *testing.T) {
	repo := &fakeChunkRepo{
		chunks: []entity.Chunk{
			{ID: "c1", Title: "慢性胃炎", Content: "胃黏膜慢性炎症……", Score: 0.76},
			{ID: "c2", Title: "急性胃炎", Content: "胃黏膜急性炎症……", Score: 0.81},
		},
	}
	v := NewVectorRetriever(&fakeEmbedder{}, repo)

	result := v.Search(context.Background(), "胃炎的相关资料", 5)

	assert.Equal(t, entity.SourceVector, result.Source)
	require.Len(t, result.Items, 2)
	assert.Equal(t, float32(0.81), result.Items[0].Score)
	assert.Equal(t, float32(0.76), result.Items[1].Score)
	assert.Greater(t, result.Confidence, 0.0)
	assert.Less(t, result.Confidence, 1.0)
}

func TestVectorRetriever_EmbedderFailureDegradesToEmpty(t *testing.T) {
	v := NewVectorRetriever(&fakeEmbedder{err: errors.New("timeout")}, &fakeChunkRepo{})

	result := v.Search(context.Background(), "高血压", 5)

	assert.True(t, result.Empty())
	assert.Equal(t, 0.0, result.Confidence)
}

func TestVectorRetriever_StoreFailureDegradesToEmpty(t *testing.T) {
	v := NewVectorRetriever(&fakeEmbedder{}, &fakeChunkRepo{err: errors.New("milvus down")})

	result := v.Search(context.Background(), "高血压", 5)

	assert.True(t, result.Empty())
	assert.Equal(t, 0.0, result.Confidence)
}

func TestVectorRetriever_Disabled(t *testing.T) {
	v := NewVectorRetriever(nil, nil)

	assert.False(t, v.Enabled())
	result := v.Search(context.Background(), "高血压", 5)
	assert.True(t, result.Empty())
}
