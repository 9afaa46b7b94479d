package entity

import (
	"time"
	"unicode"
	"unicode/utf8"
)

// ChapterStatus 章节正文生成状态
type ChapterStatus string

const (
	ChapterStatusNotGenerated ChapterStatus = "not_generated"
	ChapterStatusGenerating   ChapterStatus = "generating"
	ChapterStatusSuccessful   ChapterStatus = "successful"
	ChapterStatusFailed       ChapterStatus = "failed"
)

// Chapter 章节（正文生成状态载体）
type Chapter struct {
	ID                string        `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID         string        `json:"project_id" gorm:"type:varchar(64);not null;uniqueIndex:uk_chapters_project_chapter,priority:1"`
	ChapterNumber     int           `json:"chapter_number" gorm:"not null;uniqueIndex:uk_chapters_project_chapter,priority:2"`
	Status            ChapterStatus `json:"status" gorm:"type:varchar(32);default:'not_generated'"`
	WordCount         int           `json:"word_count" gorm:"default:0"`
	SelectedVersionID *string       `json:"selected_version_id,omitempty" gorm:"type:uuid"`
	LastError         string        `json:"last_error,omitempty" gorm:"type:text"`
	CreatedAt         time.Time     `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt         time.Time     `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Chapter) TableName() string {
	return "chapters"
}

// NewChapter 创建新章节
func NewChapter(projectID string, chapterNumber int) *Chapter {
	now := time.Now()
	return &Chapter{
		ProjectID:     projectID,
		ChapterNumber: chapterNumber,
		Status:        ChapterStatusNotGenerated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// StartGeneration 进入生成中状态
func (c *Chapter) StartGeneration() {
	c.Status = ChapterStatusGenerating
	c.LastError = ""
	c.UpdatedAt = time.Now()
}

// MarkSuccessful 生成成功
func (c *Chapter) MarkSuccessful() {
	c.Status = ChapterStatusSuccessful
	c.LastError = ""
	c.UpdatedAt = time.Now()
}

// MarkFailed 生成失败，已有版本保持不变
func (c *Chapter) MarkFailed(reason string) {
	c.Status = ChapterStatusFailed
	c.LastError = reason
	c.UpdatedAt = time.Now()
}

// HasSelection 是否已选定当前版本
func (c *Chapter) HasSelection() bool {
	return c.SelectedVersionID != nil && *c.SelectedVersionID != ""
}

// Select 选定版本并按版本正文刷新字数
func (c *Chapter) Select(v *ChapterVersion) {
	id := v.ID
	c.SelectedVersionID = &id
	c.WordCount = CountWords(v.Content)
	c.UpdatedAt = time.Now()
}

// ClearSelection 清空选定版本
func (c *Chapter) ClearSelection() {
	c.SelectedVersionID = nil
	c.WordCount = 0
	c.UpdatedAt = time.Now()
}

// CountWords 统计字数（不计空白字符）
func CountWords(content string) int {
	if content == "" {
		return 0
	}
	n := utf8.RuneCountInString(content)
	for _, r := range content {
		if unicode.IsSpace(r) {
			n--
		}
	}
	return n
}
