// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"encoding/json"
	"time"

	"med-kg-qa-api/internal/application/qa"
	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/infrastructure/persistence/redis"
	"med-kg-qa-api/internal/interfaces/http/dto"
	"med-kg-qa-api/pkg/logger"

	"github.com/gin-gonic/gin"
)

// QAHandler 单轮问答处理器
type QAHandler struct {
	orchestrator *qa.Orchestrator
	cache        *redis.Cache
	cacheTTL     time.Duration
}

// NewQAHandler 创建单轮问答处理器
func NewQAHandler(orchestrator *qa.Orchestrator, cache *redis.Cache, cacheTTL time.Duration) *QAHandler {
	if cacheTTL <= 0 {
		cacheTTL = 10 * time.Minute
	}
	return &QAHandler{
		orchestrator: orchestrator,
		cache:        cache,
		cacheTTL:     cacheTTL,
	}
}

// Query 单轮问答
// @Summary 单轮问答
// @Description 基于医疗知识图谱回答问题，图谱未命中时走混合检索生成
// @Tags QA
// @Accept json
// @Produce json
// @Param body body dto.QueryRequest true "问题"
// @Success 200 {object} dto.Response[dto.AnswerResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/qa/query [post]
func (h *QAHandler) Query(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.QueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if h.cache == nil {
		resp, err := h.answer(ctx, req.Question)
		if err != nil {
			logger.Error(ctx, "failed to answer question", err)
			dto.AppError(c, err)
			return
		}
		dto.Success(c, resp)
		return
	}

	// singleflight 合并同一问题的并发未命中，只回答一次
	data, err := h.cache.GetOrLoadSafe(ctx, redis.BuildAnswerCacheKey(req.Question),
		func() (interface{}, time.Duration, error) {
			resp, err := h.answer(ctx, req.Question)
			if err != nil {
				return nil, 0, err
			}
			// 规则路径的答案由图谱结构决定，可安全缓存；生成路径不缓存
			if resp.Path == string(entity.AnswerPathRule) {
				return resp, h.cacheTTL, nil
			}
			return resp, 0, nil
		})
	if err != nil {
		logger.Error(ctx, "failed to answer question", err)
		dto.AppError(c, err)
		return
	}

	var resp dto.AnswerResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		logger.Error(ctx, "failed to decode answer", err)
		dto.InternalError(c, "failed to decode answer")
		return
	}
	dto.Success(c, resp)
}

func (h *QAHandler) answer(ctx context.Context, question string) (*dto.AnswerResponse, error) {
	answer, err := h.orchestrator.AnswerQuestion(ctx, question)
	if err != nil {
		return nil, err
	}
	resp := dto.NewAnswerResponse(answer)
	resp.Question = question
	return resp, nil
}
