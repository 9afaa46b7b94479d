// Package postgres 提供 PostgreSQL Repository 实现
package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-novel-plan-api/internal/domain/entity"
)

// BlueprintRepository 项目蓝图仓储实现
type BlueprintRepository struct {
	client *Client
}

// NewBlueprintRepository 创建蓝图仓储
func NewBlueprintRepository(client *Client) *BlueprintRepository {
	return &BlueprintRepository{client: client}
}

// Get 获取项目蓝图
func (r *BlueprintRepository) Get(ctx context.Context, projectID string) (*entity.Blueprint, error) {
	ctx, span := tracer.Start(ctx, "postgres.BlueprintRepository.Get")
	defer span.End()

	db := getDB(ctx, r.client.db)
	var bp entity.Blueprint
	if err := db.First(&bp, "project_id = ?", projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get blueprint: %w", err)
	}
	return &bp, nil
}

// Upsert 创建或更新蓝图
func (r *BlueprintRepository) Upsert(ctx context.Context, blueprint *entity.Blueprint) error {
	ctx, span := tracer.Start(ctx, "postgres.BlueprintRepository.Upsert")
	defer span.End()

	db := getDB(ctx, r.client.db)
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "project_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "synopsis", "style", "characters", "world_setting",
			"total_chapters", "chapters_per_part", "updated_at",
		}),
	}).Create(blueprint).Error
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to upsert blueprint: %w", err)
	}
	return nil
}
