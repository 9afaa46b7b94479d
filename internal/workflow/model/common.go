package model

import "time"

type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Temperature      float64
	GeneratedAt      time.Time
	Duration         time.Duration
}

// PlanContext 项目级规划上下文（来自蓝图）
type PlanContext struct {
	ProjectTitle  string
	Synopsis      string
	Style         string
	Characters    string
	WorldSetting  string
	TotalChapters int
}

// PartBrief 分卷摘要
type PartBrief struct {
	PartNumber   int
	StartChapter int
	EndChapter   int
	Title        string
	Summary      string
	EndingHook   string
}

// ChapterBrief 章节摘要
type ChapterBrief struct {
	ChapterNumber int    `json:"chapter_number"`
	Title         string `json:"title"`
	Summary       string `json:"summary"`
}

// CallOptions 单次调用的模型参数
type CallOptions struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int
}
