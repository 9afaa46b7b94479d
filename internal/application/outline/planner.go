package outline

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"

	"z-novel-plan-api/internal/application/blueprint"
	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
	"z-novel-plan-api/internal/domain/service"
	wfmodel "z-novel-plan-api/internal/workflow/model"
	workflowport "z-novel-plan-api/internal/workflow/port"
	apperrors "z-novel-plan-api/pkg/errors"
	"z-novel-plan-api/pkg/logger"
	"z-novel-plan-api/pkg/tracer"
)

// PlannerConfig 分卷规划参数
type PlannerConfig struct {
	DefaultChaptersPerPart int
	MaxTotalChapters       int
}

// PartPlanner 分卷大纲规划
type PartPlanner struct {
	txMgr      repository.Transactor
	blueprints BlueprintStore
	parts      repository.PartOutlineRepository
	outlines   repository.ChapterOutlineRepository
	cascade    *CascadeEngine
	generator  workflowport.Generator
	cfg        PlannerConfig
}

// NewPartPlanner 创建分卷规划器
func NewPartPlanner(
	txMgr repository.Transactor,
	blueprints BlueprintStore,
	parts repository.PartOutlineRepository,
	outlines repository.ChapterOutlineRepository,
	cascade *CascadeEngine,
	generator workflowport.Generator,
	cfg PlannerConfig,
) *PartPlanner {
	if cfg.DefaultChaptersPerPart <= 0 {
		cfg.DefaultChaptersPerPart = 25
	}
	return &PartPlanner{
		txMgr:      txMgr,
		blueprints: blueprints,
		parts:      parts,
		outlines:   outlines,
		cascade:    cascade,
		generator:  generator,
		cfg:        cfg,
	}
}

// Range 闭区间章节范围
type Range struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Partition 将 [from, total] 切分为每段 size 章的连续区间，最后一段可以更短
func Partition(from, total, size int) []Range {
	if from < 1 || size <= 0 || from > total {
		return nil
	}
	ranges := make([]Range, 0, (total-from)/size+1)
	for start := from; start <= total; start += size {
		ranges = append(ranges, Range{Start: start, End: min(start+size-1, total)})
	}
	return ranges
}

// PlanRequest 分卷规划请求，零值字段取蓝图或配置默认值
type PlanRequest struct {
	TotalChapters   int
	ChaptersPerPart int
	// Generate 规划后逐卷生成叙事字段
	Generate bool
	Options  GenerateOptions
}

// PlanResult 规划结果
type PlanResult struct {
	Parts           []*entity.PartOutline `json:"parts"`
	TotalChapters   int                   `json:"total_chapters"`
	ChaptersPerPart int                   `json:"chapters_per_part"`
	AlreadyComplete bool                  `json:"already_complete,omitempty"`
	Cascade         *CascadeSummary       `json:"cascade_deleted,omitempty"`
	Message         string                `json:"message"`
}

// Plan 首次规划分卷
func (p *PartPlanner) Plan(ctx context.Context, projectID string, req PlanRequest) (*PlanResult, error) {
	ctx, span := tracer.Start(ctx, "outline.PartPlanner.Plan")
	defer span.End()

	if req.TotalChapters < 0 || req.ChaptersPerPart < 0 {
		return nil, apperrors.InvalidRange("total_chapters and chapters_per_part must be positive")
	}

	bp, err := p.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	total := req.TotalChapters
	if total == 0 && bp != nil {
		total = bp.TotalChapters
	}
	size := req.ChaptersPerPart
	if size == 0 {
		size = bp.PartSize(p.cfg.DefaultChaptersPerPart)
	}
	if err := p.validateTotals(total, size); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("total_chapters", total), attribute.Int("chapters_per_part", size))

	var created []*entity.PartOutline
	err = p.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		existing, err := p.parts.MaxNumber(txCtx, projectID)
		if err != nil {
			return dbErr(err, "failed to count part outlines")
		}
		if existing > 0 {
			return apperrors.Newf(apperrors.CodeConflict,
				"项目已存在 %d 卷大纲，请使用继续规划或全部重新生成", existing)
		}

		if bp == nil {
			bp = entity.NewBlueprint(projectID, "")
		}
		bp.TotalChapters = total
		bp.ChaptersPerPart = size
		if err := p.blueprints.Save(txCtx, bp); err != nil {
			return err
		}

		created = newParts(projectID, 1, Partition(1, total, size))
		return dbErr(p.parts.CreateBatch(txCtx, created), "failed to create part outlines")
	})
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	logger.Info(ctx, "part outlines planned",
		"project_id", projectID,
		"parts", len(created),
		"total_chapters", total,
	)

	result := &PlanResult{
		Parts:           created,
		TotalChapters:   total,
		ChaptersPerPart: size,
		Message:         fmt.Sprintf("已规划 %d 卷，共 %d 章", len(created), total),
	}
	if req.Generate {
		if err := p.generateAll(ctx, bp, created, req.Options); err != nil {
			return nil, tracer.Fail(span, err)
		}
	}
	return result, nil
}

// ContinueRequest 继续规划请求
type ContinueRequest struct {
	Generate bool
	Options  GenerateOptions
}

// ContinuePlan 从现有最大章节号之后追加分卷，直到覆盖蓝图总章节数
func (p *PartPlanner) ContinuePlan(ctx context.Context, projectID string, req ContinueRequest) (*PlanResult, error) {
	ctx, span := tracer.Start(ctx, "outline.PartPlanner.ContinuePlan")
	defer span.End()

	bp, err := p.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	if bp == nil || bp.TotalChapters <= 0 {
		return nil, apperrors.InvalidRange("project %s has no total_chapters configured", projectID)
	}
	size := bp.PartSize(p.cfg.DefaultChaptersPerPart)

	var created []*entity.PartOutline
	covered := 0
	err = p.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		parts, err := p.parts.List(txCtx, projectID)
		if err != nil {
			return dbErr(err, "failed to list part outlines")
		}
		nextPart := 1
		if n := len(parts); n > 0 {
			covered = parts[n-1].EndChapter
			nextPart = parts[n-1].PartNumber + 1
		}
		if covered >= bp.TotalChapters {
			return nil
		}
		created = newParts(projectID, nextPart, Partition(covered+1, bp.TotalChapters, size))
		return dbErr(p.parts.CreateBatch(txCtx, created), "failed to create part outlines")
	})
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	result := &PlanResult{
		Parts:           created,
		TotalChapters:   bp.TotalChapters,
		ChaptersPerPart: size,
	}
	if len(created) == 0 {
		result.AlreadyComplete = true
		result.Message = fmt.Sprintf("分卷已覆盖全部 %d 章，无需继续规划", bp.TotalChapters)
		return result, nil
	}

	result.Message = fmt.Sprintf("已追加第%d-%d卷（第%d-%d章）",
		created[0].PartNumber, created[len(created)-1].PartNumber,
		created[0].StartChapter, created[len(created)-1].EndChapter)
	logger.Info(ctx, "part outlines continued",
		"project_id", projectID,
		"added_parts", len(created),
		"from_chapter", covered+1,
	)

	if req.Generate {
		if err := p.generateAll(ctx, bp, created, req.Options); err != nil {
			return nil, tracer.Fail(span, err)
		}
	}
	return result, nil
}

// RegenerateRequest 重新生成分卷请求
type RegenerateRequest struct {
	// Cascade 确认级联删除后续分卷
	Cascade bool
	Options GenerateOptions
}

// RegenerateResult 重新生成结果
type RegenerateResult struct {
	Part    *entity.PartOutline `json:"part,omitempty"`
	Cascade *CascadeSummary     `json:"cascade_deleted,omitempty"`
	Message string              `json:"message"`
}

// Regenerate 重新生成指定分卷的叙事字段
// 非最新分卷必须确认级联删除；分卷自身的章节区间总是被清空，等待重新生成章节大纲
func (p *PartPlanner) Regenerate(ctx context.Context, projectID string, partNumber int, req RegenerateRequest) (*RegenerateResult, error) {
	ctx, span := tracer.Start(ctx, "outline.PartPlanner.Regenerate")
	defer span.End()
	span.SetAttributes(attribute.Int("part_number", partNumber), attribute.Bool("cascade", req.Cascade))

	part, err := p.parts.GetByNumber(ctx, projectID, partNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load part outline")
	}
	if part == nil {
		return nil, apperrors.NotFound(apperrors.CodePartNotFound, "第%d卷大纲不存在", partNumber)
	}
	maxPart, err := p.parts.MaxNumber(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to count part outlines")
	}

	plan, err := p.cascade.Plan(ctx, projectID, PartRegeneration(partNumber))
	if err != nil {
		return nil, err
	}
	if partNumber < maxPart && !req.Cascade {
		return nil, apperrors.SerialOrderViolation(
			"第%d卷不是最新分卷（最新为第%d卷），需确认级联删除：%s", partNumber, maxPart, plan.Describe()).
			WithMeta("required", "cascade_delete=true").
			WithMeta("cascade_preview", plan)
	}

	summary, err := p.cascade.Execute(ctx, plan, func(txCtx context.Context) error {
		part.GenerationStatus = entity.PartStatusGenerating
		part.Progress = 0
		return dbErr(p.parts.Update(txCtx, part), "failed to update part outline")
	})
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	bp, err := p.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	if err := p.generateNarrative(ctx, bp, part, req.Options); err != nil {
		return nil, tracer.Fail(span, err)
	}

	msg := fmt.Sprintf("第%d卷大纲已重新生成", partNumber)
	if summary.Total() > 0 {
		msg += "；" + summaryText(summary)
	}
	return &RegenerateResult{Part: part, Cascade: summary, Message: msg}, nil
}

// GenerateNarrative 为已存在的分卷生成叙事字段
func (p *PartPlanner) GenerateNarrative(ctx context.Context, projectID string, partNumber int, opts GenerateOptions) (*entity.PartOutline, error) {
	part, err := p.parts.GetByNumber(ctx, projectID, partNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load part outline")
	}
	if part == nil {
		return nil, apperrors.NotFound(apperrors.CodePartNotFound, "第%d卷大纲不存在", partNumber)
	}
	bp, err := p.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	if err := p.generateNarrative(ctx, bp, part, opts); err != nil {
		return nil, err
	}
	return part, nil
}

// DeleteResult 删除结果
type DeleteResult struct {
	Cascade   *CascadeSummary `json:"cascade_deleted"`
	Remaining int             `json:"remaining"`
	Message   string          `json:"message"`
	// Advisory 非致命提示（如被删除章节已有正文）
	Advisory string `json:"advisory,omitempty"`
}

// DeleteLatest 删除最后 count 卷及其章节，至少保留一卷
func (p *PartPlanner) DeleteLatest(ctx context.Context, projectID string, count int) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "outline.PartPlanner.DeleteLatest")
	defer span.End()

	if count <= 0 {
		return nil, apperrors.InvalidRange("count must be positive, got %d", count)
	}
	parts, err := p.parts.List(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to list part outlines")
	}
	if count >= len(parts) {
		return nil, apperrors.Newf(apperrors.CodeMinimumParts,
			"共 %d 卷，删除 %d 卷后将不剩任何分卷，至少需要保留一卷", len(parts), count)
	}

	pivot := parts[len(parts)-count].PartNumber
	plan, err := p.cascade.Plan(ctx, projectID, PartsFrom(pivot))
	if err != nil {
		return nil, err
	}
	summary, err := p.cascade.Execute(ctx, plan)
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	result := &DeleteResult{
		Cascade:   summary,
		Remaining: len(parts) - count,
		Message:   fmt.Sprintf("已删除最后 %d 卷；%s", count, summaryText(summary)),
	}
	if len(plan.ChaptersWithContent) > 0 {
		result.Advisory = fmt.Sprintf("第%s章的已生成正文已一并删除", formatNumbers(plan.ChaptersWithContent))
	}
	return result, nil
}

// RegenerateAllRequest 全部重新规划请求
type RegenerateAllRequest struct {
	Generate bool
	Options  GenerateOptions
}

// RegenerateAll 删除全部分卷与章节数据后按蓝图重新切分，删除与重建在同一事务内完成
func (p *PartPlanner) RegenerateAll(ctx context.Context, projectID string, req RegenerateAllRequest) (*PlanResult, error) {
	ctx, span := tracer.Start(ctx, "outline.PartPlanner.RegenerateAll")
	defer span.End()

	bp, err := p.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	if bp == nil || bp.TotalChapters <= 0 {
		return nil, apperrors.InvalidRange("project %s has no total_chapters configured", projectID)
	}
	size := bp.PartSize(p.cfg.DefaultChaptersPerPart)
	if err := p.validateTotals(bp.TotalChapters, size); err != nil {
		return nil, err
	}

	plan, err := p.cascade.Plan(ctx, projectID, Everything())
	if err != nil {
		return nil, err
	}
	var created []*entity.PartOutline
	summary, err := p.cascade.Execute(ctx, plan, func(txCtx context.Context) error {
		created = newParts(projectID, 1, Partition(1, bp.TotalChapters, size))
		return dbErr(p.parts.CreateBatch(txCtx, created), "failed to create part outlines")
	})
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	result := &PlanResult{
		Parts:           created,
		TotalChapters:   bp.TotalChapters,
		ChaptersPerPart: size,
		Cascade:         summary,
		Message:         fmt.Sprintf("已重新规划 %d 卷；%s", len(created), summaryText(summary)),
	}
	if req.Generate {
		if err := p.generateAll(ctx, bp, created, req.Options); err != nil {
			return nil, tracer.Fail(span, err)
		}
	}
	return result, nil
}

// PartList 分卷列表
type PartList struct {
	Parts          []*entity.PartOutline `json:"parts"`
	TotalParts     int                   `json:"total_parts"`
	CompletedParts int                   `json:"completed_parts"`
}

// List 获取项目分卷
func (p *PartPlanner) List(ctx context.Context, projectID string) (*PartList, error) {
	parts, err := p.parts.List(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to list part outlines")
	}
	out := &PartList{Parts: parts, TotalParts: len(parts)}
	for _, part := range parts {
		if part.GenerationStatus == entity.PartStatusCompleted {
			out.CompletedParts++
		}
	}
	return out, nil
}

func (p *PartPlanner) validateTotals(total, size int) error {
	if total <= 0 {
		return apperrors.InvalidRange("total_chapters must be positive, got %d", total)
	}
	if size <= 0 {
		return apperrors.InvalidRange("chapters_per_part must be positive, got %d", size)
	}
	if p.cfg.MaxTotalChapters > 0 && total > p.cfg.MaxTotalChapters {
		return apperrors.InvalidRange("total_chapters %d exceeds limit %d", total, p.cfg.MaxTotalChapters)
	}
	return nil
}

func (p *PartPlanner) generateAll(ctx context.Context, bp *entity.Blueprint, parts []*entity.PartOutline, opts GenerateOptions) error {
	for _, part := range parts {
		if err := p.generateNarrative(ctx, bp, part, opts); err != nil {
			return err
		}
	}
	return nil
}

// generateNarrative 调用生成后端填充分卷叙事字段；失败时分卷标记为 failed，章节区间保持不变
func (p *PartPlanner) generateNarrative(ctx context.Context, bp *entity.Blueprint, part *entity.PartOutline, opts GenerateOptions) error {
	ctx = logger.WithContext(ctx, logger.ProjectIDKey, part.ProjectID)

	part.GenerationStatus = entity.PartStatusGenerating
	if err := p.parts.Update(ctx, part); err != nil {
		return dbErr(err, "failed to update part outline")
	}

	all, err := p.parts.List(ctx, part.ProjectID)
	if err != nil {
		return dbErr(err, "failed to list part outlines")
	}
	var previous []wfmodel.PartBrief
	for _, other := range all {
		if other.PartNumber < part.PartNumber {
			previous = append(previous, partBrief(other))
		}
	}

	in := &wfmodel.PartOutlineInput{
		Plan:          blueprint.PlanContext(bp),
		Part:          partBrief(part),
		PreviousParts: previous,
		Prompt:        opts.Prompt,
		Options:       opts.callOptions(),
	}
	genCtx := service.WithLLMCall(ctx, "part_outline", opts.Provider)
	out, genErr := p.generator.GeneratePartOutline(genCtx, in)
	if genErr != nil {
		logger.Error(ctx, "part narrative generation failed", genErr, "part_number", part.PartNumber)
		part.GenerationStatus = entity.PartStatusFailed
		if err := p.parts.Update(ctx, part); err != nil {
			logger.Warn(ctx, "failed to mark part failed", "error", err.Error())
		}
		return apperrors.GenerationFailed(genErr, fmt.Sprintf("第%d卷大纲生成失败", part.PartNumber))
	}

	part.ApplyNarrative(entity.Narrative{
		Title:         out.Title,
		Summary:       out.Summary,
		Theme:         out.Theme,
		KeyEvents:     rawFlex(out.KeyEvents),
		CharacterArcs: rawFlex(out.CharacterArcs),
		Conflicts:     rawFlex(out.Conflicts),
		EndingHook:    out.EndingHook,
	})
	// 生成期间分卷可能已被删除或重新划分，写回前在事务内确认
	return p.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := p.parts.GetByNumber(txCtx, part.ProjectID, part.PartNumber)
		if err != nil {
			return dbErr(err, "failed to load part outline")
		}
		if current == nil || current.ID != part.ID ||
			current.StartChapter != part.StartChapter || current.EndChapter != part.EndChapter {
			logger.Warn(ctx, "part outline changed during generation, discarding narrative", "part_number", part.PartNumber)
			return apperrors.NotFound(apperrors.CodePartNotFound, "第%d卷大纲在生成期间已被删除或调整", part.PartNumber)
		}
		part.GenerationStatus = entity.PartStatusPending
		return dbErr(refreshPartProgress(txCtx, p.outlines, p.parts, part), "failed to update part outline")
	})
}

func newParts(projectID string, firstNumber int, ranges []Range) []*entity.PartOutline {
	parts := make([]*entity.PartOutline, 0, len(ranges))
	for i, r := range ranges {
		parts = append(parts, entity.NewPartOutline(projectID, firstNumber+i, r.Start, r.End))
	}
	return parts
}

// summaryText 级联删除数量说明
func summaryText(s *CascadeSummary) string {
	if s == nil || s.Total() == 0 {
		return "未删除其他内容"
	}
	return fmt.Sprintf("级联删除 %d 卷大纲、%d 个章节大纲、%d 个章节（%d 个版本，%d 条评审）",
		s.Parts, s.ChapterOutlines, s.Chapters, s.Versions, s.Evaluations)
}

// dbErr 将仓储错误包装为数据库错误，已是 AppError 的原样返回
func dbErr(err error, message string) error {
	if err == nil {
		return nil
	}
	if apperrors.IsAppError(err) {
		return err
	}
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.Wrap(err, apperrors.CodeNotFound, message)
	}
	return apperrors.Wrap(err, apperrors.CodeDatabaseError, message)
}
