package retrieval

import "errors"

var (
	// ErrRetrievalUnavailable 表示图数据库不可达，调用方据此选择降级路径。
	ErrRetrievalUnavailable = errors.New("graph retrieval is unavailable")

	// ErrVectorDisabled 表示向量检索能力未配置（Milvus 或 Embedder 不可用）。
	ErrVectorDisabled = errors.New("vector retrieval is disabled")
)
