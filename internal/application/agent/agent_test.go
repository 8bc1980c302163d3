package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cloudwego/eino/components/embedding"
	"github.com/cloudwego/eino/components/model"
	einotool "github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"med-kg-qa-api/internal/application/nlu"
	appretrieval "med-kg-qa-api/internal/application/retrieval"
	"med-kg-qa-api/internal/domain/entity"
	apperrors "med-kg-qa-api/pkg/errors"
)

// fakeGraphStore 图数据库桩
type fakeGraphStore struct {
	namesByLabel map[entity.EntityType][]string
	neighbors    map[string][]entity.GraphNeighbor
}

func (f *fakeGraphStore) ListEntityNames(ctx context.Context, label entity.EntityType) ([]string, error) {
	return f.namesByLabel[label], nil
}

func (f *fakeGraphStore) Neighbors(ctx context.Context, name string, sourceLabel entity.EntityType, relation string, targetLabel entity.EntityType) ([]entity.GraphNeighbor, error) {
	return f.neighbors[name+"/"+relation], nil
}

func (f *fakeGraphStore) ReverseNeighbors(ctx context.Context, name string, targetLabel entity.EntityType, relation string, sourceLabel entity.EntityType) ([]entity.GraphNeighbor, error) {
	return nil, nil
}

func (f *fakeGraphStore) MultiHopNeighbors(ctx context.Context, name string, label entity.EntityType, maxHops, limit int) ([]entity.GraphNeighbor, error) {
	return nil, nil
}

func (f *fakeGraphStore) EntityDescription(ctx context.Context, name string, label entity.EntityType) (string, error) {
	return "", nil
}

func (f *fakeGraphStore) Ping(ctx context.Context) error { return nil }

// fakeEmbedder embedder 桩
type fakeEmbedder struct{}

func (f *fakeEmbedder) EmbedStrings(ctx context.Context, texts []string, opts ...embedding.Option) ([][]float64, error) {
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = []float64{0.1}
	}
	return out, nil
}

// fakeChunkRepo 向量库桩
type fakeChunkRepo struct{ chunks []entity.Chunk }

func (f *fakeChunkRepo) SearchChunks(ctx context.Context, vector []float32, topK int) ([]entity.Chunk, error) {
	return f.chunks, nil
}

func (f *fakeChunkRepo) InsertChunks(ctx context.Context, chunks []entity.Chunk, vectors [][]float32) error {
	return nil
}

func (f *fakeChunkRepo) Ping(ctx context.Context) error { return nil }

// memSessionStore 内存会话存储
type memSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*entity.ChatSession
	locks    map[string]bool
}

func newMemSessionStore() *memSessionStore {
	return &memSessionStore{
		sessions: map[string]*entity.ChatSession{},
		locks:    map[string]bool{},
	}
}

func (s *memSessionStore) Load(ctx context.Context, sessionID string) (*entity.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessions[sessionID], nil
}

func (s *memSessionStore) Save(ctx context.Context, session *entity.ChatSession, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	return nil
}

func (s *memSessionStore) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

func (s *memSessionStore) AcquireTurnLock(ctx context.Context, sessionID string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[sessionID] {
		return false, nil
	}
	s.locks[sessionID] = true
	return true, nil
}

func (s *memSessionStore) ReleaseTurnLock(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, sessionID)
	return nil
}

// scriptedChatModel 按脚本依次返回响应的 LLM 桩
type scriptedChatModel struct {
	mu        sync.Mutex
	responses []*schema.Message
	calls     int
}

func (m *scriptedChatModel) next() *schema.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var resp *schema.Message
	if m.calls < len(m.responses) {
		resp = m.responses[m.calls]
	} else {
		resp = m.responses[len(m.responses)-1]
	}
	m.calls++
	return resp
}

func (m *scriptedChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return m.next(), nil
}

func (m *scriptedChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	msg := m.next()
	sr, sw := schema.Pipe[*schema.Message](1)
	sw.Send(msg, nil)
	sw.Close()
	return sr, nil
}

// chunkedChatModel 把回答拆为大量增量块的 LLM 桩
type chunkedChatModel struct{ chunks []string }

func (m *chunkedChatModel) Generate(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	return schema.AssistantMessage(strings.Join(m.chunks, ""), nil), nil
}

func (m *chunkedChatModel) Stream(ctx context.Context, in []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	sr, sw := schema.Pipe[*schema.Message](len(m.chunks))
	for _, c := range m.chunks {
		sw.Send(schema.AssistantMessage(c, nil), nil)
	}
	sw.Close()
	return sr, nil
}

// brokenTool 执行必然失败的工具桩
type brokenTool struct{}

func (b *brokenTool) Info(_ context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: "broken_tool",
		Desc: "always fails",
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {Type: schema.String, Desc: "query", Required: true},
		}),
	}, nil
}

func (b *brokenTool) InvokableRun(_ context.Context, _ string, _ ...einotool.Option) (string, error) {
	return "", errors.New("backend exploded")
}

func toolCallMessage(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{
		{
			ID: id,
			Function: schema.FunctionCall{
				Name:      name,
				Arguments: args,
			},
		},
	})
}

func newTestLoop(t *testing.T, llm model.BaseChatModel, store *memSessionStore, maxTurns int) *Loop {
	t.Helper()
	graphStore := &fakeGraphStore{
		namesByLabel: map[entity.EntityType][]string{
			entity.EntityTypeDisease: {"高血压"},
		},
		neighbors: map[string][]entity.GraphNeighbor{
			"高血压/" + appretrieval.RelHasSymptom: {{Name: "头晕"}, {Name: "头痛"}},
		},
	}
	idx := nlu.NewEntityIndex(graphStore, []entity.EntityType{entity.EntityTypeDisease})
	require.NoError(t, idx.Refresh(context.Background()))

	graph := appretrieval.NewGraphRetriever(graphStore, 1)
	vector := appretrieval.NewVectorRetriever(&fakeEmbedder{}, &fakeChunkRepo{})
	return NewLoop(llm, idx, graph, vector, store, Config{
		MaxTurns:           maxTurns,
		HistoryMaxMessages: 10,
		SessionTTL:         time.Hour,
		TurnLockTTL:        time.Minute,
	})
}

func TestLoop_ToolCallThenFinalAnswer(t *testing.T) {
	llm := &scriptedChatModel{
		responses: []*schema.Message{
			toolCallMessage("call-1", "graph_query", `{"entity":"高血压","question_type":"symptom"}`),
			schema.AssistantMessage("根据知识图谱，高血压常见症状为头晕与头痛。仅供参考，请遵医嘱。", nil),
		},
	}
	store := newMemSessionStore()
	loop := newTestLoop(t, llm, store, 4)

	answer, err := loop.Run(context.Background(), "s1", "高血压有什么症状？")

	require.NoError(t, err)
	assert.Equal(t, entity.AnswerPathAgent, answer.Path)
	assert.Contains(t, answer.Text, "头晕")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "graph_query", answer.Sources[0].Label)
	assert.Contains(t, answer.Sources[0].Payload, "头晕")
	assert.Equal(t, 2, llm.calls)

	// 会话写回：一问一答
	session, err := store.Load(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, session)
	require.Len(t, session.Messages, 2)
	assert.Equal(t, entity.RoleUser, session.Messages[0].Role)
	assert.Equal(t, entity.RoleAssistant, session.Messages[1].Role)
}

func TestLoop_TurnCapForcesTermination(t *testing.T) {
	// 模型永远请求工具：必须在轮数上限处强制收尾
	llm := &scriptedChatModel{
		responses: []*schema.Message{
			toolCallMessage("call-x", "graph_query", `{"entity":"高血压","question_type":"symptom"}`),
		},
	}
	store := newMemSessionStore()
	loop := newTestLoop(t, llm, store, 3)

	answer, err := loop.Run(context.Background(), "s2", "高血压有什么症状？")

	require.NoError(t, err)
	assert.NotEmpty(t, answer.Text)
	// 3 轮决策 + 1 次收尾调用
	assert.Equal(t, 4, llm.calls)
}

func TestLoop_UnknownToolFoldedIntoTranscript(t *testing.T) {
	// 模型幻觉出未注册的工具：错误作为工具消息折回，循环继续到最终回答
	llm := &scriptedChatModel{
		responses: []*schema.Message{
			toolCallMessage("call-1", "web_search", `{"query":"高血压"}`),
			schema.AssistantMessage("目前没有找到相关的检索结果。仅供参考，请遵医嘱。", nil),
		},
	}
	store := newMemSessionStore()
	loop := newTestLoop(t, llm, store, 4)

	answer, err := loop.Run(context.Background(), "s7", "高血压有什么症状？")

	require.NoError(t, err)
	assert.Equal(t, entity.AnswerPathAgent, answer.Path)
	assert.Equal(t, 2, llm.calls)
	// 错误工具消息被记入来源，带回工具名与错误内容
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "web_search", answer.Sources[0].Label)
	assert.Contains(t, answer.Sources[0].Payload, "unknown tool")
}

func TestLoop_ToolFailureContinuesToFinalAnswer(t *testing.T) {
	llm := &scriptedChatModel{
		responses: []*schema.Message{
			toolCallMessage("call-1", "broken_tool", `{"query":"高血压"}`),
			schema.AssistantMessage("检索暂时不可用，建议稍后再试。仅供参考，请遵医嘱。", nil),
		},
	}
	store := newMemSessionStore()
	loop := newTestLoop(t, llm, store, 4)
	loop.tools = append(loop.tools, &brokenTool{})

	answer, err := loop.Run(context.Background(), "s8", "高血压有什么症状？")

	// 工具执行失败折叠为错误消息，回合不中断
	require.NoError(t, err)
	assert.Equal(t, entity.AnswerPathAgent, answer.Path)
	assert.Contains(t, answer.Text, "稍后再试")
	assert.Equal(t, 2, llm.calls)

	// 失败的轮次仍然写回会话
	session, err := store.Load(context.Background(), "s8")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Len(t, session.Messages, 2)
}

func TestLoop_SessionConflictRejected(t *testing.T) {
	llm := &scriptedChatModel{
		responses: []*schema.Message{schema.AssistantMessage("好的。", nil)},
	}
	store := newMemSessionStore()
	loop := newTestLoop(t, llm, store, 4)

	// 模拟同一会话已有在途轮次
	acquired, err := store.AcquireTurnLock(context.Background(), "s3", time.Minute)
	require.NoError(t, err)
	require.True(t, acquired)

	_, err = loop.Run(context.Background(), "s3", "你好")

	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeSessionConflict, appErr.Code)

	// 释放后可以继续
	require.NoError(t, store.ReleaseTurnLock(context.Background(), "s3"))
	_, err = loop.Run(context.Background(), "s3", "你好")
	assert.NoError(t, err)
}

func TestLoop_HistoryWindowTruncated(t *testing.T) {
	llm := &scriptedChatModel{
		responses: []*schema.Message{schema.AssistantMessage("收到。", nil)},
	}
	store := newMemSessionStore()
	loop := newTestLoop(t, llm, store, 4)

	for i := 0; i < 8; i++ {
		_, err := loop.Run(context.Background(), "s4", "继续")
		require.NoError(t, err)
	}

	session, err := store.Load(context.Background(), "s4")
	require.NoError(t, err)
	// 窗口上限 10 条：8 轮共 16 条消息被截断到最近 10 条
	assert.Len(t, session.Messages, 10)
}

func TestLoop_RunStreamEmitsDeltasAndFinal(t *testing.T) {
	llm := &scriptedChatModel{
		responses: []*schema.Message{
			schema.AssistantMessage("高血压需要长期管理，仅供参考，请遵医嘱。", nil),
		},
	}
	store := newMemSessionStore()
	loop := newTestLoop(t, llm, store, 4)

	events, err := loop.RunStream(context.Background(), "s5", "高血压怎么办")
	require.NoError(t, err)

	var deltas string
	var final *entity.Answer
	for ev := range events {
		require.NoError(t, ev.Err)
		if ev.Done {
			final = ev.Answer
			break
		}
		deltas += ev.Delta
	}

	require.NotNil(t, final)
	assert.Equal(t, entity.AnswerPathAgent, final.Path)
	assert.Equal(t, final.Text, deltas)
}

func TestLoop_RunStreamClientGoneReleasesLock(t *testing.T) {
	// 增量块远超事件通道缓冲，模拟消费方中途消失
	chunks := make([]string, 40)
	for i := range chunks {
		chunks[i] = "答"
	}
	llm := &chunkedChatModel{chunks: chunks}
	store := newMemSessionStore()
	loop := newTestLoop(t, llm, store, 4)

	ctx, cancel := context.WithCancel(context.Background())
	_, err := loop.RunStream(ctx, "s9", "高血压怎么办")
	require.NoError(t, err)

	// 客户端断开，事件不再被读取
	cancel()

	// 回合必须自行结束并释放轮次锁，而不是等锁 TTL 过期
	assert.Eventually(t, func() bool {
		store.mu.Lock()
		defer store.mu.Unlock()
		return !store.locks["s9"]
	}, 2*time.Second, 10*time.Millisecond)
}
