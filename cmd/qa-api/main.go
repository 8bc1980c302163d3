// Package main 医疗知识图谱问答服务入口
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"med-kg-qa-api/internal/config"
	"med-kg-qa-api/internal/infrastructure/messaging"
	einoobs "med-kg-qa-api/internal/observability/eino"
	"med-kg-qa-api/internal/wire"
	"med-kg-qa-api/pkg/logger"
	"med-kg-qa-api/pkg/metrics"
	"med-kg-qa-api/pkg/tracer"

	"github.com/joho/godotenv"
)

// Version 版本信息，构建时注入
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件（如果存在）
	_ = godotenv.Load()

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 初始化日志
	logger.Init(
		cfg.Observability.Logging.Level,
		cfg.Observability.Logging.Format,
	)

	ctx := context.Background()
	log := logger.FromContext(ctx)
	log.Info("starting qa-api",
		"version", Version,
		"build_time", BuildTime,
		"env", cfg.App.Env,
	)

	// 初始化追踪
	shutdown, err := tracer.Init(ctx, tracer.Config{
		ServiceName: cfg.App.Name,
		Endpoint:    cfg.Observability.Tracing.Endpoint,
		SampleRate:  cfg.Observability.Tracing.SampleRate,
		Enabled:     cfg.Observability.Tracing.Enabled,
	})
	if err != nil {
		log.Error("failed to init tracer", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdown(ctx); err != nil {
			log.Error("failed to shutdown tracer", "error", err)
		}
	}()

	// 初始化 Eino 全局 callbacks（指标/追踪）
	einoobs.Init(cfg.LLM.DefaultProvider)

	// 初始化应用（使用 Wire 注入）
	app, cleanupApp, err := wire.InitializeApp(ctx, cfg)
	if err != nil {
		logger.Fatal(ctx, "failed to initialize app", err)
	}
	defer cleanupApp()

	// 启动前构建实体索引，失败只告警，由定时刷新重试
	if err := app.Index.Refresh(ctx); err != nil {
		metrics.EntityIndexRefreshTotal.WithLabelValues("startup", "error").Inc()
		log.Warn("initial entity index build failed", "error", err)
	} else {
		metrics.EntityIndexRefreshTotal.WithLabelValues("startup", "success").Inc()
		log.Info("entity index built", "size", app.Index.Size())
	}

	// 后台定时刷新
	refreshCtx, cancelRefresh := context.WithCancel(ctx)
	defer cancelRefresh()
	app.Index.StartRefresher(refreshCtx, cfg.NLU.RefreshInterval)

	// 图谱构建事件消费者：刷新索引并失效答案缓存
	consumer := newKGEventConsumer(cfg, app)
	if err := consumer.Start(refreshCtx); err != nil {
		log.Warn("kg event consumer not started", "error", err)
	} else {
		defer consumer.Stop()
	}

	// 创建 HTTP 服务器
	addr := fmt.Sprintf("%s:%d", cfg.Server.HTTP.Host, cfg.Server.HTTP.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      app.Router.Engine(),
		ReadTimeout:  cfg.Server.HTTP.ReadTimeout,
		WriteTimeout: cfg.Server.HTTP.WriteTimeout,
		IdleTimeout:  cfg.Server.HTTP.IdleTimeout,
	}

	// 启动服务器
	go func() {
		log.Info("http server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", "error", err)
			os.Exit(1)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	// 优雅关闭
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}

	log.Info("server exited")
}

// newKGEventConsumer 订阅图谱构建事件，收到后重建索引并失效答案缓存
func newKGEventConsumer(cfg *config.Config, app *wire.App) *messaging.Consumer {
	consumer := messaging.NewConsumer(app.RedisClient.Redis(), messaging.ConsumerConfig{
		Stream:        messaging.StreamKGEvents,
		Group:         messaging.ConsumerGroupIndexRefresher,
		ConsumerName:  hostnameConsumerName(),
		BlockTimeout:  cfg.Messaging.RedisStream.BlockTimeout,
		ClaimInterval: cfg.Messaging.RedisStream.ClaimInterval,
		RetryLimit:    cfg.Messaging.RedisStream.RetryLimit,
		Backoff: messaging.BackoffConfig{
			Initial:    cfg.Messaging.RedisStream.RetryBackoff.Initial,
			Max:        cfg.Messaging.RedisStream.RetryBackoff.Max,
			Multiplier: cfg.Messaging.RedisStream.RetryBackoff.Multiplier,
		},
	})

	consumer.RegisterHandler(messaging.MsgTypeKGBuildCompleted, func(ctx context.Context, msg *messaging.Message) error {
		var payload messaging.KGBuildCompletedMessage
		if err := msg.UnmarshalPayload(&payload); err != nil {
			return err
		}

		logger.Info(ctx, "kg build completed, refreshing entity index",
			"build_id", payload.BuildID, "entity_count", payload.EntityCount)

		if err := app.Index.Refresh(ctx); err != nil {
			metrics.EntityIndexRefreshTotal.WithLabelValues("event", "error").Inc()
			return err
		}
		metrics.EntityIndexRefreshTotal.WithLabelValues("event", "success").Inc()

		// 图谱变了，缓存的规则路径答案随之过期
		if err := app.Cache.InvalidateAnswers(ctx); err != nil {
			logger.Warn(ctx, "failed to invalidate answer cache", "error", err)
		}
		return nil
	})

	consumer.RegisterHandler(messaging.MsgTypeChunksUpserted, handleChunksUpserted)

	return consumer
}

// handleChunksUpserted 记录外部摄取管道写入的文献片段量
func handleChunksUpserted(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.ChunksUpsertedMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		return err
	}
	if payload.ChunkCount > 0 {
		metrics.ChunksUpsertedTotal.Add(float64(payload.ChunkCount))
	}
	logger.Info(ctx, "document chunks upserted",
		"doc_id", payload.DocID, "chunk_count", payload.ChunkCount)
	return nil
}

func hostnameConsumerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "qa-api"
	}
	return fmt.Sprintf("%s-%d", host, os.Getpid())
}
