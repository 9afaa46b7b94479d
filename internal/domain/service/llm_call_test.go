package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLLMCall(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, LLMCall{Workflow: "unknown", Provider: "unknown"}, LLMCallFrom(ctx))

	ctx = WithLLMCall(ctx, "chapter_content", " ")
	assert.Equal(t, LLMCall{Workflow: "chapter_content", Provider: "unknown"}, LLMCallFrom(ctx))

	// 内层只补充 provider，工作流沿用外层
	ctx = WithLLMCall(ctx, "", "openai")
	assert.Equal(t, LLMCall{Workflow: "chapter_content", Provider: "openai"}, LLMCallFrom(ctx))
}
