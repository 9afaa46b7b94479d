// Package service 跨层共享的调用上下文
package service

import (
	"context"
	"strings"
)

type llmCallKey struct{}

// LLMCall 一次模型调用的归属，供回调打点与日志使用
type LLMCall struct {
	Workflow string
	Provider string
}

const unknown = "unknown"

// WithLLMCall 记录调用所属工作流与 provider；空值沿用外层已记录的值
func WithLLMCall(ctx context.Context, workflow, provider string) context.Context {
	call := LLMCallFrom(ctx)
	if w := strings.TrimSpace(workflow); w != "" {
		call.Workflow = w
	}
	if p := strings.TrimSpace(provider); p != "" {
		call.Provider = p
	}
	return context.WithValue(ctx, llmCallKey{}, call)
}

// LLMCallFrom 取出调用归属，未记录的字段为 "unknown"
func LLMCallFrom(ctx context.Context) LLMCall {
	call, _ := ctx.Value(llmCallKey{}).(LLMCall)
	if call.Workflow == "" {
		call.Workflow = unknown
	}
	if call.Provider == "" {
		call.Provider = unknown
	}
	return call
}
