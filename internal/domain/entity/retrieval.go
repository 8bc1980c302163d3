package entity

// RetrievalSource 检索结果来源
type RetrievalSource string

const (
	SourceGraph  RetrievalSource = "graph"
	SourceVector RetrievalSource = "vector"
	SourceHybrid RetrievalSource = "hybrid"
)

// RetrievalItem 单条检索结果
type RetrievalItem struct {
	Label   string  `json:"label"`
	Payload string  `json:"payload"`
	Score   float32 `json:"score,omitempty"`
}

// RetrievalResult 检索结果
// Confidence 为 1.0 表示精确的结构化命中，小于 1.0 表示混合排序结果
type RetrievalResult struct {
	Source     RetrievalSource `json:"source"`
	Items      []RetrievalItem `json:"items"`
	Confidence float64         `json:"confidence"`
}

// Empty 判断结果是否为空
func (r *RetrievalResult) Empty() bool {
	return r == nil || len(r.Items) == 0
}

// Chunk 向量库中的文档分块
type Chunk struct {
	ID      string  `json:"id"`
	DocID   string  `json:"doc_id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float32 `json:"score,omitempty"`
}

// AnswerPath 回答路径
type AnswerPath string

const (
	AnswerPathRule     AnswerPath = "rule"
	AnswerPathRAG      AnswerPath = "rag"
	AnswerPathAgent    AnswerPath = "agent"
	AnswerPathFallback AnswerPath = "fallback"
)

// Answer 最终回答
// Confidence 为 1.0 表示来自图谱的精确结构化回答
type Answer struct {
	Text       string          `json:"text"`
	Path       AnswerPath      `json:"path"`
	Intent     Intent          `json:"intent"`
	Confidence float64         `json:"confidence"`
	Entities   []EntityMention `json:"entities,omitempty"`
	Sources    []RetrievalItem `json:"sources,omitempty"`
}
