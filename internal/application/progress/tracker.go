// Package progress 汇总分卷与章节的完成进度
package progress

import (
	"context"
	"time"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
	apperrors "z-novel-plan-api/pkg/errors"
	"z-novel-plan-api/pkg/tracer"
)

// BlueprintFinder 蓝图读取
type BlueprintFinder interface {
	Find(ctx context.Context, projectID string) (*entity.Blueprint, error)
}

// PartProgress 单卷进度
type PartProgress struct {
	PartNumber   int               `json:"part_number"`
	StartChapter int               `json:"start_chapter"`
	EndChapter   int               `json:"end_chapter"`
	Title        string            `json:"title,omitempty"`
	Status       entity.PartStatus `json:"generation_status"`
	Progress     int               `json:"progress"`
}

// Snapshot 项目进度快照
type Snapshot struct {
	ProjectID       string                   `json:"project_id"`
	TotalParts      int                      `json:"total_parts"`
	CompletedParts  int                      `json:"completed_parts"`
	PartPercent     float64                  `json:"part_percent"`
	CoveredChapters int                      `json:"covered_chapters"`
	TotalChapters   int                      `json:"total_chapters"`
	CanContinue     bool                     `json:"can_continue"`
	ChapterOutlines int                      `json:"chapter_outlines"`
	Chapters        *repository.ChapterStats `json:"chapters"`
	Parts           []PartProgress           `json:"parts"`
	GeneratedAt     time.Time                `json:"generated_at"`
}

// Tracker 只读进度聚合
type Tracker struct {
	blueprints BlueprintFinder
	parts      repository.PartOutlineRepository
	outlines   repository.ChapterOutlineRepository
	chapters   repository.ChapterRepository
}

// NewTracker 创建进度聚合器
func NewTracker(
	blueprints BlueprintFinder,
	parts repository.PartOutlineRepository,
	outlines repository.ChapterOutlineRepository,
	chapters repository.ChapterRepository,
) *Tracker {
	return &Tracker{
		blueprints: blueprints,
		parts:      parts,
		outlines:   outlines,
		chapters:   chapters,
	}
}

// Snapshot 计算当前进度
func (t *Tracker) Snapshot(ctx context.Context, projectID string) (*Snapshot, error) {
	ctx, span := tracer.Start(ctx, "progress.Tracker.Snapshot")
	defer span.End()

	bp, err := t.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, tracer.Fail(span, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load blueprint"))
	}
	parts, err := t.parts.List(ctx, projectID)
	if err != nil {
		return nil, tracer.Fail(span, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to list part outlines"))
	}
	outlined, err := t.outlines.MaxNumber(ctx, projectID)
	if err != nil {
		return nil, tracer.Fail(span, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to count chapter outlines"))
	}
	stats, err := t.chapters.Stats(ctx, projectID)
	if err != nil {
		return nil, tracer.Fail(span, apperrors.Wrap(err, apperrors.CodeDatabaseError, "failed to load chapter stats"))
	}

	snap := &Snapshot{
		ProjectID:       projectID,
		TotalParts:      len(parts),
		ChapterOutlines: outlined,
		Chapters:        stats,
		Parts:           make([]PartProgress, 0, len(parts)),
		GeneratedAt:     time.Now().UTC(),
	}
	if bp != nil {
		snap.TotalChapters = bp.TotalChapters
	}
	for _, p := range parts {
		if p.GenerationStatus == entity.PartStatusCompleted {
			snap.CompletedParts++
		}
		snap.CoveredChapters = max(snap.CoveredChapters, p.EndChapter)
		snap.Parts = append(snap.Parts, PartProgress{
			PartNumber:   p.PartNumber,
			StartChapter: p.StartChapter,
			EndChapter:   p.EndChapter,
			Title:        p.Title,
			Status:       p.GenerationStatus,
			Progress:     p.Progress,
		})
	}
	snap.PartPercent = Percent(snap.CompletedParts, snap.TotalParts)
	snap.CanContinue = len(parts) > 0 && snap.CoveredChapters < snap.TotalChapters
	return snap, nil
}

// Percent 保留一位小数的百分比，total 为 0 时返回 0
func Percent(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(done*1000/total) / 10
}
