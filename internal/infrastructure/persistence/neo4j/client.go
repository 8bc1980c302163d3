// Package neo4j 提供医学知识图谱的 Neo4j 访问层实现
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.opentelemetry.io/otel"

	"med-kg-qa-api/internal/config"
)

var tracer = otel.Tracer("neo4j")

// Client Neo4j 客户端
type Client struct {
	driver neo4j.DriverWithContext
	config *config.Neo4jConfig
}

// NewClient 创建 Neo4j 客户端并验证连通性
func NewClient(cfg *config.Neo4jConfig) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.User, cfg.Password, ""),
		func(c *neo4j.Config) {
			c.MaxConnectionPoolSize = cfg.MaxConnectionPoolSize
			c.ConnectionAcquisitionTimeout = cfg.ConnectionTimeout
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	// 验证连接
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(context.Background())
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}

	return &Client{
		driver: driver,
		config: cfg,
	}, nil
}

// Driver 获取底层驱动实例
func (c *Client) Driver() neo4j.DriverWithContext {
	return c.driver
}

// Database 返回目标数据库名
func (c *Client) Database() string {
	return c.config.Database
}

// QueryTimeout 返回单条查询的超时时间
func (c *Client) QueryTimeout() time.Duration {
	return c.config.QueryTimeout
}

// Ping 检查图数据库连接
func (c *Client) Ping(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "neo4j.Ping")
	defer span.End()

	return c.driver.VerifyConnectivity(ctx)
}

// Close 关闭图数据库连接
func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}
