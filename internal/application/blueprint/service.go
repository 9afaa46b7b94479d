// Package blueprint 管理项目蓝图（总章节数、每卷章节数、梗概、人物等规划元数据）
package blueprint

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"go.opentelemetry.io/otel"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
	wfmodel "z-novel-plan-api/internal/workflow/model"
	apperrors "z-novel-plan-api/pkg/errors"
	"z-novel-plan-api/pkg/logger"
)

var tracer = otel.Tracer("application.blueprint")

// Cache 读穿缓存
type Cache interface {
	GetOrLoad(ctx context.Context, key string, ttl time.Duration, loader func() (any, error)) ([]byte, error)
	Delete(ctx context.Context, keys ...string) error
}

// Service 蓝图读写
type Service struct {
	repo  repository.BlueprintRepository
	cache Cache
	ttl   time.Duration
}

// NewService 创建蓝图服务；cache 为 nil 时直接读库
func NewService(repo repository.BlueprintRepository, cache Cache, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &Service{repo: repo, cache: cache, ttl: ttl}
}

// CacheKey 蓝图缓存键
func CacheKey(projectID string) string {
	return "blueprint:" + projectID
}

// Find 获取蓝图，不存在时返回 nil, nil
func (s *Service) Find(ctx context.Context, projectID string) (*entity.Blueprint, error) {
	ctx, span := tracer.Start(ctx, "blueprint.Find")
	defer span.End()

	// 事务内直接读库，避免读到提交前被删的缓存
	if s.cache == nil || ctx.Value(repository.TxKey{}) != nil {
		return s.repo.Get(ctx, projectID)
	}

	raw, err := s.cache.GetOrLoad(ctx, CacheKey(projectID), s.ttl, func() (any, error) {
		bp, err := s.repo.Get(ctx, projectID)
		if err != nil || bp == nil {
			return nil, err
		}
		return bp, nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}

	var bp entity.Blueprint
	if err := json.Unmarshal(raw, &bp); err != nil {
		logger.Warn(ctx, "corrupted blueprint cache entry, reloading", "error", err.Error())
		s.invalidate(ctx, projectID)
		return s.repo.Get(ctx, projectID)
	}
	return &bp, nil
}

// Get 获取蓝图，不存在时返回 NotFound
func (s *Service) Get(ctx context.Context, projectID string) (*entity.Blueprint, error) {
	bp, err := s.Find(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load blueprint")
	}
	if bp == nil {
		return nil, apperrors.NotFound(apperrors.CodeProjectNotFound, "project %s has no blueprint", projectID)
	}
	return bp, nil
}

// UpsertInput 蓝图更新字段，nil 表示保持不变
type UpsertInput struct {
	Title           *string
	Synopsis        *string
	Style           *string
	Characters      entity.FlexJSON
	WorldSetting    entity.FlexJSON
	TotalChapters   *int
	ChaptersPerPart *int
}

// Upsert 创建或部分更新蓝图
func (s *Service) Upsert(ctx context.Context, projectID string, in UpsertInput) (*entity.Blueprint, error) {
	if strings.TrimSpace(projectID) == "" {
		return nil, apperrors.New(apperrors.CodeInvalidParam, "project_id is required")
	}
	if in.TotalChapters != nil && *in.TotalChapters < 0 {
		return nil, apperrors.InvalidRange("total_chapters must be >= 0, got %d", *in.TotalChapters)
	}
	if in.ChaptersPerPart != nil && *in.ChaptersPerPart < 0 {
		return nil, apperrors.InvalidRange("chapters_per_part must be >= 0, got %d", *in.ChaptersPerPart)
	}

	bp, err := s.repo.Get(ctx, projectID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load blueprint")
	}
	if bp == nil {
		bp = entity.NewBlueprint(projectID, "")
	}

	if in.Title != nil {
		bp.Title = strings.TrimSpace(*in.Title)
	}
	if in.Synopsis != nil {
		bp.Synopsis = *in.Synopsis
	}
	if in.Style != nil {
		bp.Style = *in.Style
	}
	if in.Characters != nil {
		bp.Characters = in.Characters
	}
	if in.WorldSetting != nil {
		bp.WorldSetting = in.WorldSetting
	}
	if in.TotalChapters != nil {
		bp.TotalChapters = *in.TotalChapters
	}
	if in.ChaptersPerPart != nil {
		bp.ChaptersPerPart = *in.ChaptersPerPart
	}

	if err := s.Save(ctx, bp); err != nil {
		return nil, err
	}
	return bp, nil
}

// Save 持久化蓝图并使缓存失效
func (s *Service) Save(ctx context.Context, bp *entity.Blueprint) error {
	bp.UpdatedAt = time.Now()
	if err := s.repo.Upsert(ctx, bp); err != nil {
		return apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to save blueprint")
	}
	s.invalidate(ctx, bp.ProjectID)
	return nil
}

func (s *Service) invalidate(ctx context.Context, projectID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, CacheKey(projectID)); err != nil {
		logger.Warn(ctx, "failed to invalidate blueprint cache", "error", err.Error())
	}
}

// PlanContext 将蓝图转换为生成后端使用的规划上下文
func PlanContext(bp *entity.Blueprint) wfmodel.PlanContext {
	if bp == nil {
		return wfmodel.PlanContext{}
	}
	return wfmodel.PlanContext{
		ProjectTitle:  bp.Title,
		Synopsis:      bp.Synopsis,
		Style:         bp.Style,
		Characters:    flexText(bp.Characters),
		WorldSetting:  flexText(bp.WorldSetting),
		TotalChapters: bp.TotalChapters,
	}
}

func flexText(f entity.FlexJSON) string {
	if f.IsEmpty() {
		return ""
	}
	return string(f)
}
