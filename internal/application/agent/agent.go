// Package agent 实现工具增强的多轮问答循环
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	"med-kg-qa-api/internal/application/nlu"
	appretrieval "med-kg-qa-api/internal/application/retrieval"
	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/domain/repository"
	"med-kg-qa-api/pkg/errors"
	"med-kg-qa-api/pkg/logger"
	"med-kg-qa-api/pkg/metrics"
	"med-kg-qa-api/pkg/tracer"
)

// DefaultMaxTurns 默认的模型决策轮数上限，防止模型无限请求工具
const DefaultMaxTurns = 4

// systemPrompt 约定角色、边界与引用要求
const systemPrompt = `你是一名医学知识图谱与文献检索助手，负责基于「知识图谱」和「文档知识库」回答用户问题。

规则：
1. 回答必须基于你通过工具检索到的图谱实体、关系与文献片段；明确区分「来自图谱」与「来自文献」的信息。
2. 若检索无结果或工具返回「未找到」「暂时不可用」，应明确告知用户，不要编造内容。
3. 可引用具体实体名、关系或文献出处；涉及诊疗建议时请提示「仅供参考，请遵医嘱」。
4. 对指代、追问（如「它」「这个病」「上面说的」）结合对话上文理解后，选用合适的工具检索再回答。
5. 请使用「正常中文段落」回答，保留合适的换行，不要输出 Markdown 语法。
6. 不要在答案中描述你的思考或检索过程，只输出面向医生/患者的最终医学结论和解释。`

// wrapUpPrompt 轮数耗尽时强制模型收尾
const wrapUpPrompt = "请基于以上已经检索到的信息直接给出最终回答，不要再调用任何工具。"

// Config 智能体配置
type Config struct {
	MaxTurns           int
	HistoryMaxMessages int
	SessionTTL         time.Duration
	TurnLockTTL        time.Duration
	TopK               int
}

// StreamEvent 流式回答事件
type StreamEvent struct {
	Delta  string         `json:"delta,omitempty"`
	Done   bool           `json:"done"`
	Answer *entity.Answer `json:"answer,omitempty"`
	Err    error          `json:"-"`
}

// Loop 决策与工具执行交替的有界循环
// 状态机：AgentDecision ⇄ ToolExecution → Done，用普通循环实现
type Loop struct {
	chatModel model.BaseChatModel
	sessions  repository.SessionStore
	tools     []einotool.BaseTool
	cfg       Config

	toolsNodeOnce sync.Once
	toolsNode     *compose.ToolsNode
	toolsNodeErr  error
}

// NewLoop 创建智能体循环
func NewLoop(chatModel model.BaseChatModel, index *nlu.EntityIndex,
	graph *appretrieval.GraphRetriever, vector *appretrieval.VectorRetriever,
	sessions repository.SessionStore, cfg Config) *Loop {
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = DefaultMaxTurns
	}
	if cfg.HistoryMaxMessages <= 0 {
		cfg.HistoryMaxMessages = 10
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.TurnLockTTL <= 0 {
		cfg.TurnLockTTL = 2 * time.Minute
	}
	return &Loop{
		chatModel: chatModel,
		sessions:  sessions,
		cfg:       cfg,
		tools: []einotool.BaseTool{
			newGraphQueryTool(graph),
			newEntitySearchTool(index),
			newDocSearchTool(vector, cfg.TopK),
		},
	}
}

// getToolsNode 懒加载 Eino 标准工具执行节点
func (l *Loop) getToolsNode() (*compose.ToolsNode, error) {
	l.toolsNodeOnce.Do(func() {
		l.toolsNode, l.toolsNodeErr = compose.NewToolNode(context.Background(), &compose.ToolsNodeConfig{
			Tools: nil,

			// 顺序执行工具调用，避免并发依赖问题
			ExecuteSequentially: true,

			// 模型幻觉出未注册的工具时返回 JSON 错误，让模型下一轮自行修正
			UnknownToolsHandler: func(_ context.Context, name, _ string) (string, error) {
				b, _ := json.Marshal(map[string]any{
					"error": fmt.Sprintf("unknown tool: %s", strings.TrimSpace(name)),
				})
				return string(b), nil
			},
		})
	})
	return l.toolsNode, l.toolsNodeErr
}

// Run 处理会话中的一轮用户提问
// 同一会话的并发轮次被拒绝（SessionConflict），不同会话完全独立
func (l *Loop) Run(ctx context.Context, sessionID, question string) (*entity.Answer, error) {
	ctx, span := tracer.Start(ctx, "agent.Run")
	defer span.End()
	ctx = logger.WithContext(ctx, logger.SessionIDKey, sessionID)

	release, session, err := l.beginTurn(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	defer release()

	msgs := l.buildMessages(session, question)
	text, sources, turns, err := l.decide(ctx, msgs, nil)
	if err != nil {
		return nil, err
	}
	metrics.AgentTurnsPerRun.Observe(float64(turns))

	l.commitTurn(ctx, session, question, text)

	return &entity.Answer{
		Text:    text,
		Path:    entity.AnswerPathAgent,
		Sources: sources,
	}, nil
}

// RunStream 流式版本：最终回答的增量内容通过事件通道推送
// 工具执行阶段不产生增量事件，结束事件携带完整来源列表
func (l *Loop) RunStream(ctx context.Context, sessionID, question string) (<-chan StreamEvent, error) {
	ctx, span := tracer.Start(ctx, "agent.RunStream")
	ctx = logger.WithContext(ctx, logger.SessionIDKey, sessionID)

	release, session, err := l.beginTurn(ctx, sessionID)
	if err != nil {
		span.End()
		return nil, err
	}

	events := make(chan StreamEvent, 16)
	go func() {
		defer close(events)
		defer span.End()
		defer release()

		msgs := l.buildMessages(session, question)
		text, sources, turns, err := l.decide(ctx, msgs, func(delta string) {
			select {
			case events <- StreamEvent{Delta: delta}:
			case <-ctx.Done():
			}
		})
		if err != nil {
			// 客户端可能已断开：终态事件也不能无限阻塞，否则锁要等 TTL 才释放
			select {
			case events <- StreamEvent{Done: true, Err: err}:
			case <-ctx.Done():
			}
			return
		}
		metrics.AgentTurnsPerRun.Observe(float64(turns))

		l.commitTurn(ctx, session, question, text)

		select {
		case events <- StreamEvent{
			Done: true,
			Answer: &entity.Answer{
				Text:    text,
				Path:    entity.AnswerPathAgent,
				Sources: sources,
			},
		}:
		case <-ctx.Done():
		}
	}()
	return events, nil
}

// beginTurn 获取轮次锁并加载会话
func (l *Loop) beginTurn(ctx context.Context, sessionID string) (func(), *entity.ChatSession, error) {
	acquired, err := l.sessions.AcquireTurnLock(ctx, sessionID, l.cfg.TurnLockTTL)
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.CodeCacheError, "failed to acquire turn lock")
	}
	if !acquired {
		return nil, nil, errors.ErrSessionConflict
	}
	metrics.ActiveSessions.Inc()
	release := func() {
		metrics.ActiveSessions.Dec()
		if err := l.sessions.ReleaseTurnLock(context.WithoutCancel(ctx), sessionID); err != nil {
			logger.Warn(ctx, "failed to release turn lock", "error", err.Error())
		}
	}

	session, err := l.sessions.Load(ctx, sessionID)
	if err != nil {
		release()
		return nil, nil, errors.Wrap(err, errors.CodeCacheError, "failed to load session")
	}
	if session == nil {
		session = entity.NewChatSession(sessionID)
	}
	return release, session, nil
}

// buildMessages 组装系统提示、历史窗口与当前问题
func (l *Loop) buildMessages(session *entity.ChatSession, question string) []*schema.Message {
	msgs := make([]*schema.Message, 0, len(session.Messages)+2)
	msgs = append(msgs, schema.SystemMessage(systemPrompt))
	for _, m := range session.Messages {
		switch m.Role {
		case entity.RoleUser:
			msgs = append(msgs, schema.UserMessage(m.Content))
		case entity.RoleAssistant:
			msgs = append(msgs, schema.AssistantMessage(m.Content, nil))
		}
	}
	msgs = append(msgs, schema.UserMessage(question))
	return msgs
}

// decide 执行决策⇄工具循环直到模型产出无工具调用的回答或触及轮数上限
// onDelta 非 nil 时转发最终回答的增量内容
func (l *Loop) decide(ctx context.Context, msgs []*schema.Message, onDelta func(string)) (string, []entity.RetrievalItem, int, error) {
	toolsNode, err := l.getToolsNode()
	if err != nil {
		return "", nil, 0, errors.Wrap(err, errors.CodeInternalError, "tools node init failed")
	}

	toolInfos := make([]*schema.ToolInfo, 0, len(l.tools))
	for _, t := range l.tools {
		info, err := t.Info(ctx)
		if err != nil {
			return "", nil, 0, errors.Wrap(err, errors.CodeInternalError, "tool info failed")
		}
		toolInfos = append(toolInfos, info)
	}

	chatModel := l.chatModel
	if tcm, ok := l.chatModel.(model.ToolCallingChatModel); ok {
		if withTools, err := tcm.WithTools(toolInfos); err == nil && withTools != nil {
			chatModel = withTools
		}
	}

	var sources []entity.RetrievalItem
	turns := 0
	for turns < l.cfg.MaxTurns {
		outMsg, err := l.generateOnce(ctx, chatModel, msgs, onDelta)
		if err != nil {
			return "", nil, turns, errors.Wrap(err, errors.CodeLLMCallFailed, "agent decision failed")
		}
		turns++
		msgs = append(msgs, outMsg)

		if len(outMsg.ToolCalls) == 0 {
			// Done：模型给出最终回答
			return outMsg.Content, sources, turns, nil
		}

		toolMsgs, err := toolsNode.Invoke(ctx, outMsg, compose.WithToolList(l.tools...))
		if err != nil {
			// 单个工具失败折叠为错误消息，让模型自行应对
			logger.Warn(ctx, "tool execution failed", "error", err.Error())
			errBody, _ := json.Marshal(map[string]any{"error": "tool execution failed"})
			for _, tc := range outMsg.ToolCalls {
				msgs = append(msgs, schema.ToolMessage(string(errBody), tc.ID))
			}
			continue
		}
		msgs = append(msgs, toolMsgs...)
		for i, tm := range toolMsgs {
			label := ""
			if i < len(outMsg.ToolCalls) {
				label = outMsg.ToolCalls[i].Function.Name
			}
			sources = append(sources, entity.RetrievalItem{Label: label, Payload: tm.Content})
		}
	}

	// 触及轮数上限：去掉工具绑定强制收尾，保证返回尽力而为的回答
	msgs = append(msgs, schema.UserMessage(wrapUpPrompt))
	outMsg, err := l.generateOnce(ctx, l.chatModel, msgs, onDelta)
	if err != nil || strings.TrimSpace(outMsg.Content) == "" {
		if err != nil {
			logger.Warn(ctx, "wrap-up generation failed", "error", err.Error())
		}
		return "抱歉，检索轮次已达上限，未能给出完整回答。建议换一种问法再试。", sources, turns, nil
	}
	return outMsg.Content, sources, turns + 1, nil
}

// generateOnce 单次模型调用
// onDelta 非 nil 时走流式接口并转发内容增量，聚合完整消息后返回
func (l *Loop) generateOnce(ctx context.Context, chatModel model.BaseChatModel,
	msgs []*schema.Message, onDelta func(string)) (*schema.Message, error) {
	if onDelta == nil {
		return chatModel.Generate(ctx, msgs)
	}

	reader, err := chatModel.Stream(ctx, msgs)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	var chunks []*schema.Message
	for {
		chunk, err := reader.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, chunk)
		// 工具调用响应通常没有正文增量
		if chunk.Content != "" && len(chunk.ToolCalls) == 0 {
			onDelta(chunk.Content)
		}
	}
	return schema.ConcatMessages(chunks)
}

// commitTurn 把本轮问答写回会话并截断历史窗口
func (l *Loop) commitTurn(ctx context.Context, session *entity.ChatSession, question, answer string) {
	session.Append(entity.RoleUser, question, l.cfg.HistoryMaxMessages)
	session.Append(entity.RoleAssistant, answer, l.cfg.HistoryMaxMessages)
	if err := l.sessions.Save(ctx, session, l.cfg.SessionTTL); err != nil {
		logger.Warn(ctx, "failed to save session", "error", err.Error())
	}
}
