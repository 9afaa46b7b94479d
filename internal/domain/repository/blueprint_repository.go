// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-plan-api/internal/domain/entity"
)

// BlueprintRepository 项目蓝图仓储接口
type BlueprintRepository interface {
	// Get 获取项目蓝图，不存在时返回 nil, nil
	Get(ctx context.Context, projectID string) (*entity.Blueprint, error)

	// Upsert 创建或更新蓝图
	Upsert(ctx context.Context, blueprint *entity.Blueprint) error
}
