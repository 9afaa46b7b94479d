// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
)

// ChapterRepository 章节仓储实现
type ChapterRepository struct {
	client *Client
}

// NewChapterRepository 创建章节仓储
func NewChapterRepository(client *Client) *ChapterRepository {
	return &ChapterRepository{client: client}
}

// Create 创建章节
func (r *ChapterRepository) Create(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(chapter).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter: %w", err)
	}
	return nil
}

// Update 更新章节状态字段；行已不存在时返回 repository.ErrNotFound，不会重新插入
func (r *ChapterRepository) Update(ctx context.Context, chapter *entity.Chapter) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.Chapter{}).
		Where("id = ?", chapter.ID).
		Updates(map[string]any{
			"status":              chapter.Status,
			"word_count":          chapter.WordCount,
			"selected_version_id": chapter.SelectedVersionID,
			"last_error":          chapter.LastError,
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update chapter: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("chapter %s: %w", chapter.ID, repository.ErrNotFound)
	}
	return nil
}

// GetByID 根据 ID 获取章节
func (r *ChapterRepository) GetByID(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// GetByIDForUpdate 在事务内锁定并读取章节，不存在时返回 nil, nil
func (r *ChapterRepository) GetByIDForUpdate(ctx context.Context, id string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByIDForUpdate")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"})
	var chapter entity.Chapter
	if err := db.First(&chapter, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter for update: %w", err)
	}
	return &chapter, nil
}

// GetByNumber 根据章节号获取章节
func (r *ChapterRepository) GetByNumber(ctx context.Context, projectID string, chapterNumber int) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.GetByNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var chapter entity.Chapter
	if err := db.First(&chapter, "project_id = ? AND chapter_number = ?", projectID, chapterNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter: %w", err)
	}
	return &chapter, nil
}

// ListFromNumber 获取章节号 >= fromNumber 的章节，事务内同时锁定这些行
func (r *ChapterRepository) ListFromNumber(ctx context.Context, projectID string, fromNumber int) ([]*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.ListFromNumber")
	defer span.End()

	db := getDB(ctx, r.client.db).Clauses(clause.Locking{Strength: "UPDATE"})
	var chapters []*entity.Chapter
	err := db.Where("project_id = ? AND chapter_number >= ?", projectID, fromNumber).
		Order("chapter_number ASC").
		Find(&chapters).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapters: %w", err)
	}
	return chapters, nil
}

// DeleteByIDs 批量删除章节
func (r *ChapterRepository) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.DeleteByIDs")
	defer span.End()

	if len(ids) == 0 {
		return 0, nil
	}
	db := getDB(ctx, r.client.db)
	result := db.Where("id IN ?", ids).Delete(&entity.Chapter{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete chapters: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// Stats 统计项目章节正文情况
func (r *ChapterRepository) Stats(ctx context.Context, projectID string) (*repository.ChapterStats, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterRepository.Stats")
	defer span.End()

	db := getDB(ctx, r.client.db)

	var rows []struct {
		Status entity.ChapterStatus
		Count  int64
		Words  int64
	}
	err := db.Model(&entity.Chapter{}).
		Select("status, COUNT(*) AS count, COALESCE(SUM(word_count), 0) AS words").
		Where("project_id = ?", projectID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to aggregate chapters: %w", err)
	}

	stats := &repository.ChapterStats{}
	for _, row := range rows {
		stats.Total += row.Count
		stats.TotalWords += row.Words
		switch row.Status {
		case entity.ChapterStatusSuccessful:
			stats.Successful = row.Count
		case entity.ChapterStatusFailed:
			stats.Failed = row.Count
		case entity.ChapterStatusGenerating:
			stats.Generating = row.Count
		}
	}

	err = db.Model(&entity.ChapterVersion{}).
		Joins("JOIN chapters ON chapters.id = chapter_versions.chapter_id").
		Where("chapters.project_id = ?", projectID).
		Distinct("chapter_versions.chapter_id").
		Count(&stats.WithContent).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to count chapters with content: %w", err)
	}
	return stats, nil
}

// ChapterVersionRepository 章节版本仓储实现
type ChapterVersionRepository struct {
	client *Client
}

// NewChapterVersionRepository 创建章节版本仓储
func NewChapterVersionRepository(client *Client) *ChapterVersionRepository {
	return &ChapterVersionRepository{client: client}
}

// Create 追加版本
func (r *ChapterVersionRepository) Create(ctx context.Context, version *entity.ChapterVersion) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterVersionRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(version).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter version: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取版本
func (r *ChapterVersionRepository) GetByID(ctx context.Context, id string) (*entity.ChapterVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterVersionRepository.GetByID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var version entity.ChapterVersion
	if err := db.First(&version, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter version: %w", err)
	}
	return &version, nil
}

// ListByChapter 获取章节全部版本
func (r *ChapterVersionRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.ChapterVersion, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterVersionRepository.ListByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var versions []*entity.ChapterVersion
	if err := db.Where("chapter_id = ?", chapterID).Order("created_at ASC, version_label ASC").Find(&versions).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapter versions: %w", err)
	}
	return versions, nil
}

// CountByChapterIDs 统计给定章节下的版本总数
func (r *ChapterVersionRepository) CountByChapterIDs(ctx context.Context, chapterIDs []string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterVersionRepository.CountByChapterIDs")
	defer span.End()

	if len(chapterIDs) == 0 {
		return 0, nil
	}
	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.ChapterVersion{}).Where("chapter_id IN ?", chapterIDs).Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count chapter versions: %w", err)
	}
	return count, nil
}

// ChapterIDsWithVersions 返回至少有一个版本的章节 ID
func (r *ChapterVersionRepository) ChapterIDsWithVersions(ctx context.Context, chapterIDs []string) ([]string, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterVersionRepository.ChapterIDsWithVersions")
	defer span.End()

	if len(chapterIDs) == 0 {
		return nil, nil
	}
	db := getDB(ctx, r.client.db)
	var ids []string
	err := db.Model(&entity.ChapterVersion{}).
		Where("chapter_id IN ?", chapterIDs).
		Distinct().
		Pluck("chapter_id", &ids).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to query chapters with versions: %w", err)
	}
	return ids, nil
}

// Delete 删除单个版本
func (r *ChapterVersionRepository) Delete(ctx context.Context, id string) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterVersionRepository.Delete")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Delete(&entity.ChapterVersion{}, "id = ?", id).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete chapter version: %w", err)
	}
	return nil
}

// DeleteByChapterIDs 批量删除章节下的版本
func (r *ChapterVersionRepository) DeleteByChapterIDs(ctx context.Context, chapterIDs []string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterVersionRepository.DeleteByChapterIDs")
	defer span.End()

	if len(chapterIDs) == 0 {
		return 0, nil
	}
	db := getDB(ctx, r.client.db)
	result := db.Where("chapter_id IN ?", chapterIDs).Delete(&entity.ChapterVersion{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete chapter versions: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ChapterEvaluationRepository 章节评审仓储实现
type ChapterEvaluationRepository struct {
	client *Client
}

// NewChapterEvaluationRepository 创建章节评审仓储
func NewChapterEvaluationRepository(client *Client) *ChapterEvaluationRepository {
	return &ChapterEvaluationRepository{client: client}
}

// Create 创建评审
func (r *ChapterEvaluationRepository) Create(ctx context.Context, evaluation *entity.ChapterEvaluation) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterEvaluationRepository.Create")
	defer span.End()

	db := getDB(ctx, r.client.db)
	if err := db.Create(evaluation).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create chapter evaluation: %w", err)
	}
	return nil
}

// ListByChapter 获取章节评审
func (r *ChapterEvaluationRepository) ListByChapter(ctx context.Context, chapterID string) ([]*entity.ChapterEvaluation, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterEvaluationRepository.ListByChapter")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var evaluations []*entity.ChapterEvaluation
	if err := db.Where("chapter_id = ?", chapterID).Order("created_at ASC").Find(&evaluations).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapter evaluations: %w", err)
	}
	return evaluations, nil
}

// CountByChapterIDs 统计给定章节下的评审总数
func (r *ChapterEvaluationRepository) CountByChapterIDs(ctx context.Context, chapterIDs []string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterEvaluationRepository.CountByChapterIDs")
	defer span.End()

	if len(chapterIDs) == 0 {
		return 0, nil
	}
	db := getDB(ctx, r.client.db)
	var count int64
	if err := db.Model(&entity.ChapterEvaluation{}).Where("chapter_id IN ?", chapterIDs).Count(&count).Error; err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count chapter evaluations: %w", err)
	}
	return count, nil
}

// DeleteByVersionID 删除指向某版本的评审
func (r *ChapterEvaluationRepository) DeleteByVersionID(ctx context.Context, versionID string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterEvaluationRepository.DeleteByVersionID")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Where("version_id = ?", versionID).Delete(&entity.ChapterEvaluation{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete chapter evaluations: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// DeleteByChapterIDs 批量删除章节下的评审
func (r *ChapterEvaluationRepository) DeleteByChapterIDs(ctx context.Context, chapterIDs []string) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterEvaluationRepository.DeleteByChapterIDs")
	defer span.End()

	if len(chapterIDs) == 0 {
		return 0, nil
	}
	db := getDB(ctx, r.client.db)
	result := db.Where("chapter_id IN ?", chapterIDs).Delete(&entity.ChapterEvaluation{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete chapter evaluations: %w", result.Error)
	}
	return result.RowsAffected, nil
}
