package entity

import (
	"time"
)

// GenerationMetadata 生成元数据
type GenerationMetadata struct {
	Model            string  `json:"model,omitempty"`
	Provider         string  `json:"provider,omitempty"`
	PromptTokens     int     `json:"prompt_tokens,omitempty"`
	CompletionTokens int     `json:"completion_tokens,omitempty"`
	Temperature      float64 `json:"temperature,omitempty"`
	DurationMs       int64   `json:"duration_ms,omitempty"`
	Prompt           string  `json:"prompt,omitempty"`
}

// ChapterVersion 章节正文版本（只追加，不覆盖）
type ChapterVersion struct {
	ID           string              `json:"id" gorm:"type:uuid;primaryKey"`
	ChapterID    string              `json:"chapter_id" gorm:"type:uuid;index;not null"`
	VersionLabel string              `json:"version_label" gorm:"type:varchar(64)"`
	Provider     string              `json:"provider,omitempty" gorm:"type:varchar(64)"`
	Content      string              `json:"content" gorm:"type:text"`
	Metadata     *GenerationMetadata `json:"metadata,omitempty" gorm:"type:jsonb;serializer:json"`
	CreatedAt    time.Time           `json:"created_at" gorm:"autoCreateTime"`
}

// TableName 指定表名
func (ChapterVersion) TableName() string {
	return "chapter_versions"
}

// NewChapterVersion 创建章节版本
func NewChapterVersion(chapterID, label, provider, content string, meta *GenerationMetadata) *ChapterVersion {
	return &ChapterVersion{
		ChapterID:    chapterID,
		VersionLabel: label,
		Provider:     provider,
		Content:      content,
		Metadata:     meta,
		CreatedAt:    time.Now(),
	}
}

// WordCount 版本字数
func (v *ChapterVersion) WordCount() int {
	return CountWords(v.Content)
}
