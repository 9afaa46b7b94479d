package entity

import (
	"time"
)

// ChapterOutline 章节大纲
// 同一项目下 chapter_number 始终为 1..K 的连续前缀
type ChapterOutline struct {
	ID            string    `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID     string    `json:"project_id" gorm:"type:varchar(64);not null;uniqueIndex:uk_chapter_outlines_project_chapter,priority:1"`
	ChapterNumber int       `json:"chapter_number" gorm:"not null;uniqueIndex:uk_chapter_outlines_project_chapter,priority:2"`
	PartNumber    int       `json:"part_number,omitempty" gorm:"default:0"`
	Title         string    `json:"title" gorm:"type:varchar(255)"`
	Summary       string    `json:"summary" gorm:"type:text"`
	CreatedAt     time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (ChapterOutline) TableName() string {
	return "chapter_outlines"
}

// NewChapterOutline 创建章节大纲
func NewChapterOutline(projectID string, chapterNumber int, title, summary string) *ChapterOutline {
	now := time.Now()
	return &ChapterOutline{
		ProjectID:     projectID,
		ChapterNumber: chapterNumber,
		Title:         title,
		Summary:       summary,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
