package entity

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 主键在写入前由应用侧生成

func ensureID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

// BeforeCreate GORM 钩子
func (p *PartOutline) BeforeCreate(*gorm.DB) error { ensureID(&p.ID); return nil }

// BeforeCreate GORM 钩子
func (o *ChapterOutline) BeforeCreate(*gorm.DB) error { ensureID(&o.ID); return nil }

// BeforeCreate GORM 钩子
func (c *Chapter) BeforeCreate(*gorm.DB) error { ensureID(&c.ID); return nil }

// BeforeCreate GORM 钩子
func (v *ChapterVersion) BeforeCreate(*gorm.DB) error { ensureID(&v.ID); return nil }

// BeforeCreate GORM 钩子
func (e *ChapterEvaluation) BeforeCreate(*gorm.DB) error { ensureID(&e.ID); return nil }

// BeforeCreate GORM 钩子
func (j *GenerationJob) BeforeCreate(*gorm.DB) error { ensureID(&j.ID); return nil }
