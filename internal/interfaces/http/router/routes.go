// Package router 提供 HTTP 路由配置
package router

import (
	"med-kg-qa-api/internal/interfaces/http/handler"

	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由
func RegisterV1Routes(
	v1 *gin.RouterGroup,
	qaHandler *handler.QAHandler,
	agentHandler *handler.AgentHandler,
	indexHandler *handler.IndexHandler,
) {
	// 问答
	qa := v1.Group("/qa")
	{
		qa.POST("/query", qaHandler.Query)
		qa.POST("/agent", agentHandler.Ask)
		qa.POST("/agent/stream", agentHandler.AskStream) // SSE
	}

	// 实体索引管理
	index := v1.Group("/index")
	{
		index.POST("/refresh", indexHandler.Refresh)
		index.GET("/stats", indexHandler.Stats)
	}
}
