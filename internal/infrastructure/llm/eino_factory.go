// Package llm 提供 Eino ChatModel 工厂
package llm

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"

	"z-novel-plan-api/internal/config"
	"z-novel-plan-api/internal/workflow/port"
)

var _ port.ChatModelFactory = (*EinoFactory)(nil)

// EinoFactory 按 provider 名称惰性创建并缓存 ChatModel
type EinoFactory struct {
	config *config.LLMConfig
	models map[string]model.BaseChatModel
	mu     sync.RWMutex
}

// NewEinoFactory 创建 Eino LLM 工厂
func NewEinoFactory(cfg *config.Config) *EinoFactory {
	return &EinoFactory{
		config: &cfg.LLM,
		models: make(map[string]model.BaseChatModel),
	}
}

// Get 获取指定 provider 的 ChatModel，name 为空时使用默认 provider
func (f *EinoFactory) Get(ctx context.Context, name string) (model.BaseChatModel, error) {
	if name == "" {
		name = f.config.DefaultProvider
	}

	f.mu.RLock()
	m, ok := f.models[name]
	f.mu.RUnlock()
	if ok {
		return m, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok = f.models[name]; ok {
		return m, nil
	}

	providerCfg, ok := f.config.Providers[name]
	if !ok {
		return nil, fmt.Errorf("provider %s not found in LLM config (available: %v)", name, f.Providers())
	}

	maxTokens := providerCfg.MaxTokens
	temperature := float32(providerCfg.Temperature)
	chatModel, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		APIKey:      providerCfg.APIKey,
		BaseURL:     providerCfg.BaseURL,
		Model:       providerCfg.Model,
		MaxTokens:   &maxTokens,
		Temperature: &temperature,
		Timeout:     providerCfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create eino chat model for %s: %w", name, err)
	}

	f.models[name] = chatModel
	return chatModel, nil
}

// Providers 返回已配置的 provider 名称（有序）
func (f *EinoFactory) Providers() []string {
	names := make([]string, 0, len(f.config.Providers))
	for name := range f.config.Providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
