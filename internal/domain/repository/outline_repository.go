// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-plan-api/internal/domain/entity"
)

// PartOutlineRepository 分卷大纲仓储接口
// 删除方法仅供级联删除引擎调用
type PartOutlineRepository interface {
	// CreateBatch 批量创建分卷
	CreateBatch(ctx context.Context, parts []*entity.PartOutline) error

	// Update 更新分卷
	Update(ctx context.Context, part *entity.PartOutline) error

	// GetByNumber 根据卷号获取分卷，不存在时返回 nil, nil
	GetByNumber(ctx context.Context, projectID string, partNumber int) (*entity.PartOutline, error)

	// List 获取项目全部分卷（按卷号升序）
	List(ctx context.Context, projectID string) ([]*entity.PartOutline, error)

	// ListCovering 获取章节区间与 [fromChapter, +∞) 相交的分卷
	ListCovering(ctx context.Context, projectID string, fromChapter int) ([]*entity.PartOutline, error)

	// MaxNumber 获取最大卷号，无分卷时返回 0
	MaxNumber(ctx context.Context, projectID string) (int, error)

	// DeleteFromNumber 删除卷号 >= fromNumber 的分卷
	DeleteFromNumber(ctx context.Context, projectID string, fromNumber int) (int64, error)
}

// ChapterOutlineRepository 章节大纲仓储接口
type ChapterOutlineRepository interface {
	// Save 按 (project, chapter_number) 创建或覆盖
	Save(ctx context.Context, outline *entity.ChapterOutline) error

	// GetByNumber 根据章节号获取大纲，不存在时返回 nil, nil
	GetByNumber(ctx context.Context, projectID string, chapterNumber int) (*entity.ChapterOutline, error)

	// List 获取项目全部章节大纲（按章节号升序）
	List(ctx context.Context, projectID string) ([]*entity.ChapterOutline, error)

	// ListRange 获取 [start, end] 内的章节大纲
	ListRange(ctx context.Context, projectID string, start, end int) ([]*entity.ChapterOutline, error)

	// MaxNumber 获取最大章节号，无大纲时返回 0
	MaxNumber(ctx context.Context, projectID string) (int, error)

	// CountRange 统计 [start, end] 内的章节大纲数量
	CountRange(ctx context.Context, projectID string, start, end int) (int64, error)

	// DeleteFromNumber 删除章节号 >= fromNumber 的大纲
	DeleteFromNumber(ctx context.Context, projectID string, fromNumber int) (int64, error)
}
