package dto

import (
	"med-kg-qa-api/internal/domain/entity"
)

// QueryRequest 单轮问答请求
type QueryRequest struct {
	Question string `json:"question" binding:"required,max=512"`
	TopK     int    `json:"top_k,omitempty" binding:"omitempty,min=1,max=20"`
}

// AgentRequest 多轮智能体问答请求
// SessionID 为空时由服务端生成并在响应中返回
type AgentRequest struct {
	SessionID string `json:"session_id" binding:"omitempty,max=64"`
	Question  string `json:"question" binding:"required,max=512"`
}

// SourceItem 回答引用的检索来源
type SourceItem struct {
	Label   string  `json:"label"`
	Payload string  `json:"payload"`
	Score   float32 `json:"score,omitempty"`
}

// EntityItem 问句中识别出的实体
type EntityItem struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// AnswerResponse 问答响应
type AnswerResponse struct {
	Question   string       `json:"question,omitempty"`
	Answer     string       `json:"answer"`
	Path       string       `json:"path"`
	Intent     string       `json:"intent,omitempty"`
	Confidence float64      `json:"confidence"`
	SessionID  string       `json:"session_id,omitempty"`
	Entities   []EntityItem `json:"entities,omitempty"`
	Sources    []SourceItem `json:"sources,omitempty"`
}

// NewAnswerResponse 由领域回答构建响应
func NewAnswerResponse(answer *entity.Answer) *AnswerResponse {
	resp := &AnswerResponse{
		Answer:     answer.Text,
		Path:       string(answer.Path),
		Intent:     string(answer.Intent),
		Confidence: answer.Confidence,
	}
	for _, m := range answer.Entities {
		resp.Entities = append(resp.Entities, EntityItem{
			Name: m.Name,
			Type: string(m.Type),
		})
	}
	for _, s := range answer.Sources {
		resp.Sources = append(resp.Sources, SourceItem{
			Label:   s.Label,
			Payload: s.Payload,
			Score:   s.Score,
		})
	}
	return resp
}

// RefreshRequest 实体索引刷新请求
type RefreshRequest struct {
	// Sync 为 true 时同步重建并返回统计；默认发布事件由全部实例异步重建
	Sync bool `json:"sync,omitempty"`
}

// IndexStatsResponse 实体索引统计
type IndexStatsResponse struct {
	Size        int            `json:"size"`
	MaxNameLen  int            `json:"max_name_len"`
	BuiltAt     string         `json:"built_at"`
	CountByType map[string]int `json:"count_by_type,omitempty"`
}
