//go:build wireinject
// +build wireinject

// Package wire 提供依赖注入配置
package wire

import (
	"context"

	einoembedding "github.com/cloudwego/eino/components/embedding"
	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/google/wire"

	"med-kg-qa-api/internal/application/agent"
	"med-kg-qa-api/internal/application/nlu"
	"med-kg-qa-api/internal/application/qa"
	"med-kg-qa-api/internal/application/retrieval"
	"med-kg-qa-api/internal/config"
	"med-kg-qa-api/internal/domain/entity"
	"med-kg-qa-api/internal/domain/repository"
	infraembedding "med-kg-qa-api/internal/infrastructure/embedding"
	"med-kg-qa-api/internal/infrastructure/llm"
	"med-kg-qa-api/internal/infrastructure/messaging"
	"med-kg-qa-api/internal/infrastructure/persistence/milvus"
	"med-kg-qa-api/internal/infrastructure/persistence/neo4j"
	"med-kg-qa-api/internal/infrastructure/persistence/redis"
	"med-kg-qa-api/internal/interfaces/http/handler"
	"med-kg-qa-api/internal/interfaces/http/middleware"
	"med-kg-qa-api/internal/interfaces/http/router"
	"med-kg-qa-api/pkg/logger"
)

// App 应用依赖容器
type App struct {
	Router      *router.Router
	RedisClient *redis.Client
	Cache       *redis.Cache
	Producer    *messaging.Producer
	Index       *nlu.EntityIndex
}

// InitializeApp 初始化整个应用
func InitializeApp(ctx context.Context, cfg *config.Config) (*App, func(), error) {
	wire.Build(
		Neo4jSet,
		RedisSet,
		MessagingSet,
		MilvusAppSet,
		EmbeddingSet,
		NLUSet,
		RetrievalSet,
		LLMSet,
		QASet,
		HandlerSet,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}

// Neo4jSet 图数据库提供者集合
var Neo4jSet = wire.NewSet(
	ProvideNeo4jClient,
	neo4j.NewGraphStore,
)

// RedisSet Redis 提供者集合
var RedisSet = wire.NewSet(
	ProvideRedisClient,
	redis.NewCache,
	redis.NewRateLimiter,
	redis.NewSessionStore,
	wire.Bind(new(middleware.RateLimiter), new(*redis.RateLimiter)),
)

// MessagingSet 消息队列提供者集合
var MessagingSet = wire.NewSet(
	ProvideMessagingProducer,
)

// MilvusAppSet 可选 Milvus（不可达时禁用向量检索，不阻塞启动）
var MilvusAppSet = wire.NewSet(
	ProvideMilvusClientOptional,
	ProvideChunkRepositoryOptional,
)

// EmbeddingSet 可选 Embedder（未配置时禁用向量检索）
var EmbeddingSet = wire.NewSet(
	ProvideEmbedderOptional,
)

// NLUSet 问句理解提供者集合
var NLUSet = wire.NewSet(
	ProvideEntityLabels,
	nlu.NewEntityIndex,
	nlu.NewEntityExtractor,
	nlu.NewIntentClassifier,
	nlu.NewQueryParser,
)

// RetrievalSet 检索提供者集合
var RetrievalSet = wire.NewSet(
	ProvideGraphRetriever,
	retrieval.NewVectorRetriever,
)

// LLMSet 大模型提供者集合
var LLMSet = wire.NewSet(
	llm.NewEinoFactory,
	ProvideChatModel,
)

// QASet 问答编排与智能体提供者集合
var QASet = wire.NewSet(
	ProvideOrchestrator,
	ProvideAgentLoop,
)

// HandlerSet 处理器与路由器提供者集合
var HandlerSet = wire.NewSet(
	handler.NewHealthHandler,
	ProvideQAHandler,
	handler.NewAgentHandler,
	handler.NewIndexHandler,
	wire.Struct(new(router.Handlers), "*"),
	router.New,
)

// ProvideNeo4jClient 提供 Neo4j 客户端
func ProvideNeo4jClient(cfg *config.Config) (*neo4j.Client, func(), error) {
	client, err := neo4j.NewClient(&cfg.Database.Neo4j)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close(context.Background())
	}
	return client, cleanup, nil
}

// ProvideRedisClient 提供 Redis 客户端
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	client, err := redis.NewClient(&cfg.Cache.Redis)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

// ProvideMessagingProducer 提供消息生产者
func ProvideMessagingProducer(redisClient *redis.Client, cfg *config.Config) *messaging.Producer {
	maxLen := cfg.Messaging.RedisStream.MaxLen
	if maxLen <= 0 {
		maxLen = 10000
	}
	return messaging.NewProducer(redisClient.Redis(), int64(maxLen))
}

func ProvideMilvusClientOptional(ctx context.Context, cfg *config.Config) (*milvus.Client, func(), error) {
	client, err := milvus.NewClient(ctx, &cfg.Vector.Milvus)
	if err != nil {
		logger.Warn(ctx, "milvus not available, vector retrieval disabled", "error", err.Error())
		return nil, func() {}, nil
	}
	cleanup := func() {
		_ = client.Close()
	}
	return client, cleanup, nil
}

func ProvideChunkRepositoryOptional(client *milvus.Client, cfg *config.Config) repository.ChunkRepository {
	if client == nil {
		return nil
	}
	return milvus.NewChunkRepository(client, cfg.Embedding.Dimension)
}

func ProvideEmbedderOptional(ctx context.Context, cfg *config.Config) (einoembedding.Embedder, error) {
	embedder, err := infraembedding.NewEinoEmbedder(ctx, &cfg.Embedding)
	if err != nil {
		logger.Warn(ctx, "embedding not available, vector retrieval disabled", "error", err.Error())
		return nil, nil
	}
	return embedder, nil
}

// ProvideEntityLabels 提供索引覆盖的实体类型
func ProvideEntityLabels(cfg *config.Config) []entity.EntityType {
	labels := entity.ParseEntityTypes(cfg.NLU.EntityLabels)
	if len(labels) == 0 {
		labels = entity.AllEntityTypes()
	}
	return labels
}

// ProvideGraphRetriever 提供图谱检索器
func ProvideGraphRetriever(cfg *config.Config, store repository.GraphStore) *retrieval.GraphRetriever {
	return retrieval.NewGraphRetriever(store, cfg.QA.MaxHops)
}

// ProvideChatModel 提供默认对话模型
func ProvideChatModel(ctx context.Context, factory *llm.EinoFactory) (einomodel.BaseChatModel, error) {
	return factory.Default(ctx)
}

// ProvideOrchestrator 提供问答编排器
func ProvideOrchestrator(cfg *config.Config, parser *nlu.QueryParser, graph *retrieval.GraphRetriever,
	vector *retrieval.VectorRetriever, chatModel einomodel.BaseChatModel) *qa.Orchestrator {
	return qa.NewOrchestrator(parser, graph, vector, chatModel, qa.Config{
		TopK:            cfg.QA.TopK,
		MaxContextChars: cfg.QA.MaxContextChars,
	})
}

// ProvideAgentLoop 提供智能体循环
func ProvideAgentLoop(cfg *config.Config, chatModel einomodel.BaseChatModel, index *nlu.EntityIndex,
	graph *retrieval.GraphRetriever, vector *retrieval.VectorRetriever,
	sessions repository.SessionStore) *agent.Loop {
	return agent.NewLoop(chatModel, index, graph, vector, sessions, agent.Config{
		MaxTurns:           cfg.Agent.MaxTurns,
		HistoryMaxMessages: cfg.Agent.HistoryMaxMessages,
		SessionTTL:         cfg.Agent.SessionTTL,
		TurnLockTTL:        cfg.Agent.TurnLockTTL,
		TopK:               cfg.QA.TopK,
	})
}

// ProvideQAHandler 提供单轮问答处理器
func ProvideQAHandler(orchestrator *qa.Orchestrator, cache *redis.Cache, cfg *config.Config) *handler.QAHandler {
	return handler.NewQAHandler(orchestrator, cache, cfg.QA.AnswerCacheTTL)
}
