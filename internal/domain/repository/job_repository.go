// Package repository 定义数据访问层接口
package repository

import (
	"context"

	"z-novel-plan-api/internal/domain/entity"
)

// JobRepository 生成任务仓储接口
type JobRepository interface {
	// Create 创建任务
	Create(ctx context.Context, job *entity.GenerationJob) error

	// GetByID 根据 ID 获取任务
	GetByID(ctx context.Context, id string) (*entity.GenerationJob, error)

	// Update 更新任务
	Update(ctx context.Context, job *entity.GenerationJob) error

	// ListByProject 获取项目任务列表
	ListByProject(ctx context.Context, projectID string, pagination Pagination) (*PagedResult[*entity.GenerationJob], error)
}
