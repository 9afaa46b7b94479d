// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-plan-api/internal/domain/entity"
)

// ChapterStats 项目章节正文统计
type ChapterStats struct {
	Total       int64 `json:"total"`
	WithContent int64 `json:"with_content"`
	Successful  int64 `json:"successful"`
	Failed      int64 `json:"failed"`
	Generating  int64 `json:"generating"`
	TotalWords  int64 `json:"total_words"`
}

// ChapterRepository 章节仓储接口
type ChapterRepository interface {
	// Create 创建章节
	Create(ctx context.Context, chapter *entity.Chapter) error

	// Update 更新章节状态字段，章节已被删除时返回 ErrNotFound
	Update(ctx context.Context, chapter *entity.Chapter) error

	// GetByID 根据 ID 获取章节
	GetByID(ctx context.Context, id string) (*entity.Chapter, error)

	// GetByIDForUpdate 在事务内锁定并读取章节
	GetByIDForUpdate(ctx context.Context, id string) (*entity.Chapter, error)

	// GetByNumber 根据章节号获取章节，不存在时返回 nil, nil
	GetByNumber(ctx context.Context, projectID string, chapterNumber int) (*entity.Chapter, error)

	// ListFromNumber 获取章节号 >= fromNumber 的章节（事务内加行锁）
	ListFromNumber(ctx context.Context, projectID string, fromNumber int) ([]*entity.Chapter, error)

	// DeleteByIDs 批量删除章节
	DeleteByIDs(ctx context.Context, ids []string) (int64, error)

	// Stats 统计项目章节正文情况
	Stats(ctx context.Context, projectID string) (*ChapterStats, error)
}

// ChapterVersionRepository 章节版本仓储接口
type ChapterVersionRepository interface {
	// Create 追加版本
	Create(ctx context.Context, version *entity.ChapterVersion) error

	// GetByID 根据 ID 获取版本
	GetByID(ctx context.Context, id string) (*entity.ChapterVersion, error)

	// ListByChapter 获取章节全部版本（按创建时间升序）
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.ChapterVersion, error)

	// CountByChapterIDs 统计给定章节下的版本总数
	CountByChapterIDs(ctx context.Context, chapterIDs []string) (int64, error)

	// ChapterIDsWithVersions 返回给定章节中至少有一个版本的章节 ID
	ChapterIDsWithVersions(ctx context.Context, chapterIDs []string) ([]string, error)

	// Delete 删除单个版本
	Delete(ctx context.Context, id string) error

	// DeleteByChapterIDs 批量删除章节下的版本
	DeleteByChapterIDs(ctx context.Context, chapterIDs []string) (int64, error)
}

// ChapterEvaluationRepository 章节评审仓储接口
type ChapterEvaluationRepository interface {
	// Create 创建评审
	Create(ctx context.Context, evaluation *entity.ChapterEvaluation) error

	// ListByChapter 获取章节评审（按创建时间升序）
	ListByChapter(ctx context.Context, chapterID string) ([]*entity.ChapterEvaluation, error)

	// CountByChapterIDs 统计给定章节下的评审总数
	CountByChapterIDs(ctx context.Context, chapterIDs []string) (int64, error)

	// DeleteByVersionID 删除指向某版本的评审
	DeleteByVersionID(ctx context.Context, versionID string) (int64, error)

	// DeleteByChapterIDs 批量删除章节下的评审
	DeleteByChapterIDs(ctx context.Context, chapterIDs []string) (int64, error)
}
