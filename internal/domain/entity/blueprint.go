package entity

import (
	"time"
)

// Blueprint 项目蓝图（规划元数据）
type Blueprint struct {
	ProjectID       string    `json:"project_id" gorm:"type:varchar(64);primaryKey"`
	Title           string    `json:"title" gorm:"type:varchar(255)"`
	Synopsis        string    `json:"synopsis,omitempty" gorm:"type:text"`
	Style           string    `json:"style,omitempty" gorm:"type:varchar(255)"`
	Characters      FlexJSON  `json:"characters,omitempty" gorm:"type:jsonb"`
	WorldSetting    FlexJSON  `json:"world_setting,omitempty" gorm:"type:jsonb"`
	TotalChapters   int       `json:"total_chapters" gorm:"default:0"`
	ChaptersPerPart int       `json:"chapters_per_part" gorm:"default:0"`
	CreatedAt       time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt       time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// TableName 指定表名
func (Blueprint) TableName() string {
	return "blueprints"
}

// NewBlueprint 创建蓝图
func NewBlueprint(projectID, title string) *Blueprint {
	now := time.Now()
	return &Blueprint{
		ProjectID: projectID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// PartSize 返回分卷大小，蓝图未设置时使用 fallback
func (b *Blueprint) PartSize(fallback int) int {
	if b != nil && b.ChaptersPerPart > 0 {
		return b.ChaptersPerPart
	}
	return fallback
}
