package entity

import (
	"time"
)

// PartStatus 分卷大纲生成状态
type PartStatus string

const (
	PartStatusPending    PartStatus = "pending"
	PartStatusGenerating PartStatus = "generating"
	PartStatusCompleted  PartStatus = "completed"
	PartStatusFailed     PartStatus = "failed"
)

// PartOutline 分卷大纲
// 同一项目下按 part_number 排序后，章节区间从 1 开始连续且互不重叠
type PartOutline struct {
	ID               string     `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID        string     `json:"project_id" gorm:"type:varchar(64);not null;uniqueIndex:uk_part_outlines_project_part,priority:1"`
	PartNumber       int        `json:"part_number" gorm:"not null;uniqueIndex:uk_part_outlines_project_part,priority:2"`
	StartChapter     int        `json:"start_chapter" gorm:"not null"`
	EndChapter       int        `json:"end_chapter" gorm:"not null"`
	Title            string     `json:"title,omitempty" gorm:"type:varchar(255)"`
	Summary          string     `json:"summary,omitempty" gorm:"type:text"`
	Theme            string     `json:"theme,omitempty" gorm:"type:varchar(255)"`
	KeyEvents        FlexJSON   `json:"key_events,omitempty" gorm:"type:jsonb"`
	CharacterArcs    FlexJSON   `json:"character_arcs,omitempty" gorm:"type:jsonb"`
	Conflicts        FlexJSON   `json:"conflicts,omitempty" gorm:"type:jsonb"`
	EndingHook       string     `json:"ending_hook,omitempty" gorm:"type:text"`
	GenerationStatus PartStatus `json:"generation_status" gorm:"type:varchar(32);default:'pending'"`
	Progress         int        `json:"progress" gorm:"default:0"`
	CreatedAt        time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt        time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (PartOutline) TableName() string {
	return "part_outlines"
}

// NewPartOutline 创建分卷大纲
func NewPartOutline(projectID string, partNumber, start, end int) *PartOutline {
	now := time.Now()
	return &PartOutline{
		ProjectID:        projectID,
		PartNumber:       partNumber,
		StartChapter:     start,
		EndChapter:       end,
		GenerationStatus: PartStatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

// ChapterCount 分卷包含的章节数
func (p *PartOutline) ChapterCount() int {
	return p.EndChapter - p.StartChapter + 1
}

// Contains 判断章节号是否落在本卷区间内
func (p *PartOutline) Contains(chapterNumber int) bool {
	return chapterNumber >= p.StartChapter && chapterNumber <= p.EndChapter
}

// Narrative 分卷叙事字段
type Narrative struct {
	Title         string
	Summary       string
	Theme         string
	KeyEvents     FlexJSON
	CharacterArcs FlexJSON
	Conflicts     FlexJSON
	EndingHook    string
}

// ApplyNarrative 写入叙事字段，不改变章节区间
func (p *PartOutline) ApplyNarrative(n Narrative) {
	p.Title = n.Title
	p.Summary = n.Summary
	p.Theme = n.Theme
	p.KeyEvents = n.KeyEvents
	p.CharacterArcs = n.CharacterArcs
	p.Conflicts = n.Conflicts
	p.EndingHook = n.EndingHook
	p.UpdatedAt = time.Now()
}

// ResetProgress 重置为待生成章节大纲
func (p *PartOutline) ResetProgress() {
	p.GenerationStatus = PartStatusPending
	p.Progress = 0
	p.UpdatedAt = time.Now()
}

// RefreshProgress 根据区间内已存在的章节大纲数量刷新进度
func (p *PartOutline) RefreshProgress(outlined int) {
	size := p.ChapterCount()
	if size <= 0 {
		p.Progress = 0
		return
	}
	if outlined < 0 {
		outlined = 0
	}
	if outlined > size {
		outlined = size
	}
	p.Progress = outlined * 100 / size
	switch {
	case outlined == size:
		p.GenerationStatus = PartStatusCompleted
	case p.GenerationStatus == PartStatusCompleted:
		p.GenerationStatus = PartStatusPending
	}
	p.UpdatedAt = time.Now()
}
