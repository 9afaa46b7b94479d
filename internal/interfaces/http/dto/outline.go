package dto

import (
	"z-novel-plan-api/internal/application/blueprint"
	"z-novel-plan-api/internal/application/outline"
	"z-novel-plan-api/internal/domain/entity"
)

// GenerationOptions 生成类请求的公共参数
type GenerationOptions struct {
	Prompt   string `json:"prompt,omitempty" binding:"max=4000"`
	Provider string `json:"provider,omitempty" binding:"max=32"`
	Model    string `json:"model,omitempty" binding:"max=64"`
}

func (o GenerationOptions) toOptions() outline.GenerateOptions {
	return outline.GenerateOptions{Prompt: o.Prompt, Provider: o.Provider, Model: o.Model}
}

// UpsertBlueprintRequest 创建或更新蓝图
type UpsertBlueprintRequest struct {
	Title           *string         `json:"title,omitempty" binding:"omitempty,max=255"`
	Synopsis        *string         `json:"synopsis,omitempty"`
	Style           *string         `json:"style,omitempty" binding:"omitempty,max=255"`
	Characters      entity.FlexJSON `json:"characters,omitempty"`
	WorldSetting    entity.FlexJSON `json:"world_setting,omitempty"`
	TotalChapters   *int            `json:"total_chapters,omitempty"`
	ChaptersPerPart *int            `json:"chapters_per_part,omitempty"`
}

// ToInput 转换为蓝图更新参数
func (r *UpsertBlueprintRequest) ToInput() blueprint.UpsertInput {
	return blueprint.UpsertInput{
		Title:           r.Title,
		Synopsis:        r.Synopsis,
		Style:           r.Style,
		Characters:      r.Characters,
		WorldSetting:    r.WorldSetting,
		TotalChapters:   r.TotalChapters,
		ChaptersPerPart: r.ChaptersPerPart,
	}
}

// PlanPartsRequest 首次规划分卷
type PlanPartsRequest struct {
	TotalChapters   int  `json:"total_chapters"`
	ChaptersPerPart int  `json:"chapters_per_part"`
	Generate        bool `json:"generate"`
	GenerationOptions
}

// ToRequest 转换为规划请求
func (r *PlanPartsRequest) ToRequest() outline.PlanRequest {
	return outline.PlanRequest{
		TotalChapters:   r.TotalChapters,
		ChaptersPerPart: r.ChaptersPerPart,
		Generate:        r.Generate,
		Options:         r.toOptions(),
	}
}

// ContinuePlanRequest 继续规划剩余章节
type ContinuePlanRequest struct {
	Generate bool `json:"generate"`
	GenerationOptions
}

// ToRequest 转换为续规划请求
func (r *ContinuePlanRequest) ToRequest() outline.ContinueRequest {
	return outline.ContinueRequest{Generate: r.Generate, Options: r.toOptions()}
}

// RegenerateRequest 重新生成单卷或单章大纲
type RegenerateRequest struct {
	// CascadeDelete 目标之后已有内容时必须显式确认
	CascadeDelete bool `json:"cascade_delete"`
	GenerationOptions
}

// ToRequest 转换为重新生成请求
func (r *RegenerateRequest) ToRequest() outline.RegenerateRequest {
	return outline.RegenerateRequest{Cascade: r.CascadeDelete, Options: r.toOptions()}
}

// RegenerateAllRequest 清空后重新规划全部分卷
type RegenerateAllRequest struct {
	Generate bool `json:"generate"`
	GenerationOptions
}

// ToRequest 转换为全量重新规划请求
func (r *RegenerateAllRequest) ToRequest() outline.RegenerateAllRequest {
	return outline.RegenerateAllRequest{Generate: r.Generate, Options: r.toOptions()}
}

// PartChaptersRequest 为指定分卷生成章节大纲
type PartChaptersRequest struct {
	Regenerate bool `json:"regenerate"`
	GenerationOptions
}

// Options 生成参数
func (r *PartChaptersRequest) Options() outline.GenerateOptions {
	return r.toOptions()
}

// ChapterOutlineRangeRequest 按区间生成章节大纲
type ChapterOutlineRangeRequest struct {
	Start      int  `json:"start" binding:"required"`
	End        int  `json:"end" binding:"required"`
	Regenerate bool `json:"regenerate"`
	GenerationOptions
}

// ToRequest 转换为区间请求
func (r *ChapterOutlineRangeRequest) ToRequest() outline.RangeRequest {
	return outline.RangeRequest{
		Start:      r.Start,
		End:        r.End,
		Regenerate: r.Regenerate,
		Options:    r.toOptions(),
	}
}

// UpdateChapterOutlineRequest 手动编辑章节大纲
type UpdateChapterOutlineRequest struct {
	Title   *string `json:"title,omitempty" binding:"omitempty,max=255"`
	Summary *string `json:"summary,omitempty"`
}

// ToRequest 转换为编辑请求
func (r *UpdateChapterOutlineRequest) ToRequest() outline.UpdateRequest {
	return outline.UpdateRequest{Title: r.Title, Summary: r.Summary}
}

// ChapterOutlineListResponse 章节大纲列表
type ChapterOutlineListResponse struct {
	Outlines []*entity.ChapterOutline `json:"outlines"`
	Total    int                      `json:"total"`
}
