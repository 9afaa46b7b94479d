// Package embedding 提供检索索引使用的 Embedder
package embedding

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino-ext/components/embedding/openai"
	"github.com/cloudwego/eino/components/embedding"

	"z-novel-plan-api/internal/config"
)

// NewEinoEmbedder 创建 OpenAI 兼容协议的 Embedder；未配置 endpoint 时返回 nil，索引能力随之关闭
func NewEinoEmbedder(ctx context.Context, cfg *config.EmbeddingConfig) (embedding.Embedder, error) {
	if cfg == nil || strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, nil
	}

	embedder, err := openai.NewEmbedder(ctx, &openai.EmbeddingConfig{
		APIKey:  cfg.APIKey,
		BaseURL: strings.TrimRight(cfg.Endpoint, "/"),
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino embedder: %w", err)
	}
	return embedder, nil
}
