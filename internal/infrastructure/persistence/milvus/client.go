// Package milvus 章节片段的向量存储，每个项目一个分区
package milvus

import (
	"context"
	"fmt"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-plan-api/internal/config"
)

var tracer = otel.Tracer("milvus")

// Client 持有 SDK 连接与集合命名、索引参数
type Client struct {
	milvus client.Client
	config *config.MilvusConfig
}

// NewClient 连接 Milvus；配置了用户名密码时启用认证
func NewClient(ctx context.Context, cfg *config.MilvusConfig) (*Client, error) {
	sdkCfg := client.Config{Address: fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)}
	if cfg.User != "" && cfg.Password != "" {
		sdkCfg.Username = cfg.User
		sdkCfg.Password = cfg.Password
	}
	c, err := client.NewClient(ctx, sdkCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	return &Client{milvus: c, config: cfg}, nil
}

func (c *Client) Close() error {
	return c.milvus.Close()
}

// HealthCheck 就绪探测：查询片段集合是否存在，不要求集合已创建
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "milvus.HealthCheck")
	defer span.End()

	if _, err := c.milvus.HasCollection(ctx, c.CollectionName(CollectionStorySegments)); err != nil {
		span.RecordError(err)
		return fmt.Errorf("milvus health check failed: %w", err)
	}
	return nil
}

// CollectionName 加上配置的集合前缀
func (c *Client) CollectionName(name string) string {
	if c.config.CollectionPrefix == "" {
		return name
	}
	return c.config.CollectionPrefix + "_" + name
}

func (c *Client) HasCollection(ctx context.Context, name string) (bool, error) {
	ctx, span := tracer.Start(ctx, "milvus.HasCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	return c.milvus.HasCollection(ctx, c.CollectionName(name))
}

// LoadCollection 加载集合；async 为 false，返回时集合已可查询
func (c *Client) LoadCollection(ctx context.Context, name string) error {
	ctx, span := tracer.Start(ctx, "milvus.LoadCollection",
		trace.WithAttributes(attribute.String("collection", name)))
	defer span.End()

	if err := c.milvus.LoadCollection(ctx, c.CollectionName(name), false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to load collection %s: %w", name, err)
	}
	return nil
}
