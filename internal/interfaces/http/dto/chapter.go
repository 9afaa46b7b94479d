package dto

import (
	"z-novel-plan-api/internal/application/content"
	"z-novel-plan-api/internal/domain/entity"
)

// GenerateContentRequest 生成章节正文
type GenerateContentRequest struct {
	Prompt       string `json:"prompt,omitempty" binding:"max=4000"`
	VersionCount int    `json:"version_count,omitempty"`
	Provider     string `json:"provider,omitempty" binding:"max=32"`
	Model        string `json:"model,omitempty" binding:"max=64"`
	// Async 为空时使用服务端默认
	Async *bool `json:"async,omitempty"`
}

// ToRequest 转换为生成请求
func (r *GenerateContentRequest) ToRequest() content.GenerateRequest {
	return content.GenerateRequest{
		Prompt:       r.Prompt,
		VersionCount: r.VersionCount,
		Provider:     r.Provider,
		Model:        r.Model,
	}
}

// SelectVersionRequest 选定版本
type SelectVersionRequest struct {
	VersionID string `json:"version_id" binding:"required"`
}

// EvaluateChapterRequest 章节评审；decision 为空时由模型评审
type EvaluateChapterRequest struct {
	VersionID string  `json:"version_id,omitempty"`
	Decision  string  `json:"decision,omitempty" binding:"omitempty,oneof=accept revise reject"`
	Feedback  string  `json:"feedback,omitempty"`
	Score     float64 `json:"score"`
	Provider  string  `json:"provider,omitempty" binding:"max=32"`
	Model     string  `json:"model,omitempty" binding:"max=64"`
}

// ToRequest 转换为评审请求
func (r *EvaluateChapterRequest) ToRequest() content.EvaluateRequest {
	return content.EvaluateRequest{
		VersionID: r.VersionID,
		Decision:  entity.EvaluationDecision(r.Decision),
		Feedback:  r.Feedback,
		Score:     r.Score,
		Provider:  r.Provider,
		Model:     r.Model,
	}
}
