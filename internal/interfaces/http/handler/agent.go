package handler

import (
	"io"

	"med-kg-qa-api/internal/application/agent"
	"med-kg-qa-api/internal/interfaces/http/dto"
	"med-kg-qa-api/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// AgentHandler 多轮智能体问答处理器
type AgentHandler struct {
	loop *agent.Loop
}

// NewAgentHandler 创建多轮智能体问答处理器
func NewAgentHandler(loop *agent.Loop) *AgentHandler {
	return &AgentHandler{loop: loop}
}

// Ask 多轮问答
// @Summary 多轮问答
// @Description 在会话中回答问题，智能体自主决定检索工具的调用
// @Tags QA
// @Accept json
// @Produce json
// @Param body body dto.AgentRequest true "会话与问题"
// @Success 200 {object} dto.Response[dto.AnswerResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Failure 503 {object} dto.ErrorResponse
// @Router /v1/qa/agent [post]
func (h *AgentHandler) Ask(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	answer, err := h.loop.Run(ctx, req.SessionID, req.Question)
	if err != nil {
		logger.Error(ctx, "agent run failed", err, "session_id", req.SessionID)
		dto.AppError(c, err)
		return
	}
	resp := dto.NewAnswerResponse(answer)
	resp.SessionID = req.SessionID
	dto.Success(c, resp)
}

// AskStream 多轮问答（SSE 流式）
// @Summary 多轮问答（流式）
// @Description 通过 SSE 流式返回智能体回答
// @Tags QA
// @Accept json
// @Produce text/event-stream
// @Param body body dto.AgentRequest true "会话与问题"
// @Success 200 "SSE stream"
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/qa/agent/stream [post]
func (h *AgentHandler) AskStream(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.AgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.New().String()
	}

	events, err := h.loop.RunStream(ctx, req.SessionID, req.Question)
	if err != nil {
		// 会话锁冲突等错误发生在流开始之前，仍走普通 JSON 响应
		logger.Error(ctx, "agent stream start failed", err, "session_id", req.SessionID)
		dto.AppError(c, err)
		return
	}

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Header("X-Accel-Buffering", "no")

	index := 0
	c.Stream(func(w io.Writer) bool {
		ev, ok := <-events
		if !ok {
			return false
		}
		if ev.Err != nil {
			c.SSEvent("error", gin.H{
				"message": ev.Err.Error(),
			})
			return false
		}
		if ev.Done {
			final := dto.NewAnswerResponse(ev.Answer)
			final.SessionID = req.SessionID
			c.SSEvent("done", final)
			return false
		}
		c.SSEvent("content", gin.H{
			"chunk": ev.Delta,
			"index": index,
		})
		index++
		return true
	})
}
