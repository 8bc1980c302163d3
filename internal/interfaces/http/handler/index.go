package handler

import (
	"time"

	"med-kg-qa-api/internal/application/nlu"
	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/infrastructure/messaging"
	"med-kg-qa-api/internal/interfaces/http/dto"
	"med-kg-qa-api/pkg/logger"
	"med-kg-qa-api/pkg/metrics"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// IndexHandler 实体索引管理处理器
type IndexHandler struct {
	index    *nlu.EntityIndex
	labels   []entity.EntityType
	producer *messaging.Producer
}

// NewIndexHandler 创建实体索引管理处理器
func NewIndexHandler(index *nlu.EntityIndex, labels []entity.EntityType, producer *messaging.Producer) *IndexHandler {
	return &IndexHandler{
		index:    index,
		labels:   labels,
		producer: producer,
	}
}

// Refresh 刷新实体索引
// 默认发布图谱构建事件，由全部实例的消费者各自重建索引；
// sync 模式在本实例同步重建并返回统计
// @Summary 刷新实体索引
// @Description 从图谱重建实体名索引
// @Tags Index
// @Accept json
// @Produce json
// @Param body body dto.RefreshRequest false "刷新选项"
// @Success 200 {object} dto.Response[dto.IndexStatsResponse]
// @Success 202 {object} dto.Response[gin.H]
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/index/refresh [post]
func (h *IndexHandler) Refresh(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}

	if !req.Sync && h.producer != nil {
		msgID, err := h.producer.PublishKGBuildCompleted(ctx, &messaging.KGBuildCompletedMessage{
			BuildID:     uuid.New().String(),
			TriggeredBy: "api",
		})
		if err != nil {
			logger.Error(ctx, "failed to publish refresh event", err)
			dto.AppError(c, err)
			return
		}
		dto.Accepted(c, gin.H{"message_id": msgID})
		return
	}

	if err := h.index.Refresh(ctx); err != nil {
		metrics.EntityIndexRefreshTotal.WithLabelValues("manual", "error").Inc()
		logger.Error(ctx, "entity index refresh failed", err)
		dto.AppError(c, err)
		return
	}
	metrics.EntityIndexRefreshTotal.WithLabelValues("manual", "success").Inc()
	dto.Success(c, h.stats())
}

// Stats 实体索引统计
// @Summary 实体索引统计
// @Description 返回当前索引快照的规模与构建时间
// @Tags Index
// @Produce json
// @Success 200 {object} dto.Response[dto.IndexStatsResponse]
// @Router /v1/index/stats [get]
func (h *IndexHandler) Stats(c *gin.Context) {
	dto.Success(c, h.stats())
}

func (h *IndexHandler) stats() *dto.IndexStatsResponse {
	resp := &dto.IndexStatsResponse{
		Size:       h.index.Size(),
		MaxNameLen: h.index.MaxNameRunes(),
	}
	if builtAt := h.index.BuiltAt(); !builtAt.IsZero() {
		resp.BuiltAt = builtAt.Format(time.RFC3339)
	}
	if len(h.labels) > 0 {
		resp.CountByType = make(map[string]int, len(h.labels))
		for _, label := range h.labels {
			resp.CountByType[string(label)] = len(h.index.NamesByType(label))
		}
	}
	return resp
}
