// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
)

// PartOutlineRepository 分卷大纲仓储实现
type PartOutlineRepository struct {
	client *Client
}

// NewPartOutlineRepository 创建分卷大纲仓储
func NewPartOutlineRepository(client *Client) *PartOutlineRepository {
	return &PartOutlineRepository{client: client}
}

// CreateBatch 批量创建分卷
func (r *PartOutlineRepository) CreateBatch(ctx context.Context, parts []*entity.PartOutline) error {
	ctx, span := tracer.Start(ctx, "postgres.PartOutlineRepository.CreateBatch")
	defer span.End()

	if len(parts) == 0 {
		return nil
	}
	db := getDB(ctx, r.client.db)
	if err := db.Create(&parts).Error; err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create part outlines: %w", err)
	}
	return nil
}

// Update 更新分卷叙事与进度，区间不可变
// 分卷已被删除或区间已变化时返回 repository.ErrNotFound
func (r *PartOutlineRepository) Update(ctx context.Context, part *entity.PartOutline) error {
	ctx, span := tracer.Start(ctx, "postgres.PartOutlineRepository.Update")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Model(&entity.PartOutline{}).
		Where("id = ? AND start_chapter = ? AND end_chapter = ?", part.ID, part.StartChapter, part.EndChapter).
		Updates(map[string]any{
			"title":             part.Title,
			"summary":           part.Summary,
			"theme":             part.Theme,
			"key_events":        part.KeyEvents,
			"character_arcs":    part.CharacterArcs,
			"conflicts":         part.Conflicts,
			"ending_hook":       part.EndingHook,
			"generation_status": part.GenerationStatus,
			"progress":          part.Progress,
		})
	if result.Error != nil {
		span.RecordError(result.Error)
		return fmt.Errorf("failed to update part outline: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("part outline %d: %w", part.PartNumber, repository.ErrNotFound)
	}
	return nil
}

// GetByNumber 根据卷号获取分卷
func (r *PartOutlineRepository) GetByNumber(ctx context.Context, projectID string, partNumber int) (*entity.PartOutline, error) {
	ctx, span := tracer.Start(ctx, "postgres.PartOutlineRepository.GetByNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var part entity.PartOutline
	if err := db.First(&part, "project_id = ? AND part_number = ?", projectID, partNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get part outline: %w", err)
	}
	return &part, nil
}

// List 获取项目全部分卷
func (r *PartOutlineRepository) List(ctx context.Context, projectID string) ([]*entity.PartOutline, error) {
	ctx, span := tracer.Start(ctx, "postgres.PartOutlineRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var parts []*entity.PartOutline
	if err := db.Where("project_id = ?", projectID).Order("part_number ASC").Find(&parts).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list part outlines: %w", err)
	}
	return parts, nil
}

// ListCovering 获取区间终点 >= fromChapter 的分卷
func (r *PartOutlineRepository) ListCovering(ctx context.Context, projectID string, fromChapter int) ([]*entity.PartOutline, error) {
	ctx, span := tracer.Start(ctx, "postgres.PartOutlineRepository.ListCovering")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var parts []*entity.PartOutline
	err := db.Where("project_id = ? AND end_chapter >= ?", projectID, fromChapter).
		Order("part_number ASC").
		Find(&parts).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list covering part outlines: %w", err)
	}
	return parts, nil
}

// MaxNumber 获取最大卷号
func (r *PartOutlineRepository) MaxNumber(ctx context.Context, projectID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.PartOutlineRepository.MaxNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var maxNumber int
	err := db.Model(&entity.PartOutline{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(part_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get max part number: %w", err)
	}
	return maxNumber, nil
}

// DeleteFromNumber 删除卷号 >= fromNumber 的分卷
func (r *PartOutlineRepository) DeleteFromNumber(ctx context.Context, projectID string, fromNumber int) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.PartOutlineRepository.DeleteFromNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Where("project_id = ? AND part_number >= ?", projectID, fromNumber).Delete(&entity.PartOutline{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete part outlines: %w", result.Error)
	}
	return result.RowsAffected, nil
}

// ChapterOutlineRepository 章节大纲仓储实现
type ChapterOutlineRepository struct {
	client *Client
}

// NewChapterOutlineRepository 创建章节大纲仓储
func NewChapterOutlineRepository(client *Client) *ChapterOutlineRepository {
	return &ChapterOutlineRepository{client: client}
}

// Save 按章节号创建或覆盖大纲
func (r *ChapterOutlineRepository) Save(ctx context.Context, outline *entity.ChapterOutline) error {
	ctx, span := tracer.Start(ctx, "postgres.ChapterOutlineRepository.Save")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var existing entity.ChapterOutline
	err := db.Select("id", "created_at").
		First(&existing, "project_id = ? AND chapter_number = ?", outline.ProjectID, outline.ChapterNumber).Error
	switch {
	case err == nil:
		outline.ID = existing.ID
		outline.CreatedAt = existing.CreatedAt
		err = db.Save(outline).Error
	case errors.Is(err, gorm.ErrRecordNotFound):
		err = db.Create(outline).Error
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save chapter outline: %w", err)
	}
	return nil
}

// GetByNumber 根据章节号获取大纲
func (r *ChapterOutlineRepository) GetByNumber(ctx context.Context, projectID string, chapterNumber int) (*entity.ChapterOutline, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterOutlineRepository.GetByNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var outline entity.ChapterOutline
	if err := db.First(&outline, "project_id = ? AND chapter_number = ?", projectID, chapterNumber).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get chapter outline: %w", err)
	}
	return &outline, nil
}

// List 获取项目全部章节大纲
func (r *ChapterOutlineRepository) List(ctx context.Context, projectID string) ([]*entity.ChapterOutline, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterOutlineRepository.List")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var outlines []*entity.ChapterOutline
	if err := db.Where("project_id = ?", projectID).Order("chapter_number ASC").Find(&outlines).Error; err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapter outlines: %w", err)
	}
	return outlines, nil
}

// ListRange 获取 [start, end] 内的章节大纲
func (r *ChapterOutlineRepository) ListRange(ctx context.Context, projectID string, start, end int) ([]*entity.ChapterOutline, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterOutlineRepository.ListRange")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var outlines []*entity.ChapterOutline
	err := db.Where("project_id = ? AND chapter_number BETWEEN ? AND ?", projectID, start, end).
		Order("chapter_number ASC").
		Find(&outlines).Error
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list chapter outlines in range: %w", err)
	}
	return outlines, nil
}

// MaxNumber 获取最大章节号
func (r *ChapterOutlineRepository) MaxNumber(ctx context.Context, projectID string) (int, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterOutlineRepository.MaxNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var maxNumber int
	err := db.Model(&entity.ChapterOutline{}).
		Where("project_id = ?", projectID).
		Select("COALESCE(MAX(chapter_number), 0)").
		Scan(&maxNumber).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to get max chapter number: %w", err)
	}
	return maxNumber, nil
}

// CountRange 统计 [start, end] 内的章节大纲数量
func (r *ChapterOutlineRepository) CountRange(ctx context.Context, projectID string, start, end int) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterOutlineRepository.CountRange")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var count int64
	err := db.Model(&entity.ChapterOutline{}).
		Where("project_id = ? AND chapter_number BETWEEN ? AND ?", projectID, start, end).
		Count(&count).Error
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("failed to count chapter outlines: %w", err)
	}
	return count, nil
}

// DeleteFromNumber 删除章节号 >= fromNumber 的大纲
func (r *ChapterOutlineRepository) DeleteFromNumber(ctx context.Context, projectID string, fromNumber int) (int64, error) {
	ctx, span := tracer.Start(ctx, "postgres.ChapterOutlineRepository.DeleteFromNumber")
	defer span.End()

	db := getDB(ctx, r.client.db)
	result := db.Where("project_id = ? AND chapter_number >= ?", projectID, fromNumber).Delete(&entity.ChapterOutline{})
	if result.Error != nil {
		span.RecordError(result.Error)
		return 0, fmt.Errorf("failed to delete chapter outlines: %w", result.Error)
	}
	return result.RowsAffected, nil
}
