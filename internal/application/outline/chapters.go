package outline

import (
	"context"
	"fmt"
	"strings"

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

// 生成章节大纲时携带的前文大纲数量
const recentOutlineWindow = 5

// ChapterOutlineGenerator 章节大纲生成
type ChapterOutlineGenerator struct {
	txMgr      repository.Transactor
	blueprints BlueprintStore
	parts      repository.PartOutlineRepository
	outlines   repository.ChapterOutlineRepository
	cascade    *CascadeEngine
	generator  workflowport.Generator
	batchSize  int
}

// NewChapterOutlineGenerator 创建章节大纲生成器
func NewChapterOutlineGenerator(
	txMgr repository.Transactor,
	blueprints BlueprintStore,
	parts repository.PartOutlineRepository,
	outlines repository.ChapterOutlineRepository,
	cascade *CascadeEngine,
	generator workflowport.Generator,
	batchSize int,
) *ChapterOutlineGenerator {
	if batchSize <= 0 {
		batchSize = 10
	}
	return &ChapterOutlineGenerator{
		txMgr:      txMgr,
		blueprints: blueprints,
		parts:      parts,
		outlines:   outlines,
		cascade:    cascade,
		generator:  generator,
		batchSize:  batchSize,
	}
}

// RangeRequest 区间生成请求
type RangeRequest struct {
	Start int
	End   int
	// Regenerate 覆盖区间内已有大纲；否则只补齐缺失部分
	Regenerate bool
	Options    GenerateOptions
}

// RangeResult 区间生成结果
type RangeResult struct {
	Outlines  []*entity.ChapterOutline `json:"outlines"`
	Generated int                      `json:"generated"`
	Skipped   int                      `json:"skipped"`
	Message   string                   `json:"message"`
}

// GenerateRange 生成 [start, end] 的章节大纲
// 按批次自低向高生成并逐批落库，中途失败时已写入的前缀保持有效
func (g *ChapterOutlineGenerator) GenerateRange(ctx context.Context, projectID string, req RangeRequest) (*RangeResult, error) {
	ctx, span := tracer.Start(ctx, "outline.ChapterOutlineGenerator.GenerateRange")
	defer span.End()
	span.SetAttributes(attribute.Int("start", req.Start), attribute.Int("end", req.End))

	if req.Start < 1 || req.End < req.Start {
		return nil, apperrors.InvalidRange("invalid chapter range %d-%d", req.Start, req.End)
	}
	bp, err := g.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	if bp != nil && bp.TotalChapters > 0 && req.End > bp.TotalChapters {
		return nil, apperrors.InvalidRange("第%d章超出总章节数 %d", req.End, bp.TotalChapters)
	}
	maxOutline, err := g.outlines.MaxNumber(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outlines")
	}
	if req.Start > maxOutline+1 {
		return nil, apperrors.InvalidRange("第%d章之前的章节大纲尚未生成（当前已有 %d 章），不能跳跃生成", req.Start, maxOutline)
	}

	from := req.Start
	if !req.Regenerate {
		from = max(req.Start, maxOutline+1)
	}
	result := &RangeResult{Skipped: from - req.Start}
	if from > req.End {
		result.Message = fmt.Sprintf("第%d-%d章大纲均已存在", req.Start, req.End)
		return result, nil
	}

	parts, err := g.parts.List(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to list part outlines")
	}
	touched := partsInRange(parts, from, req.End)
	for _, part := range touched {
		part.GenerationStatus = entity.PartStatusGenerating
		if err := g.parts.Update(ctx, part); err != nil {
			return nil, dbErr(err, "failed to update part outline")
		}
	}

	var genErr error
	for cur := from; cur <= req.End; {
		part := partFor(parts, cur)
		end := min(cur+g.batchSize-1, req.End)
		if part != nil {
			end = min(end, part.EndChapter)
		}
		saved, err := g.generateBatch(ctx, projectID, bp, part, cur, end, req.Options)
		if err != nil {
			genErr = err
			if part != nil {
				part.GenerationStatus = entity.PartStatusFailed
			}
			break
		}
		result.Outlines = append(result.Outlines, saved...)
		cur = end + 1
	}
	result.Generated = len(result.Outlines)

	for _, part := range touched {
		if part.GenerationStatus == entity.PartStatusGenerating {
			part.GenerationStatus = entity.PartStatusPending
		}
		if err := refreshPartProgress(ctx, g.outlines, g.parts, part); err != nil {
			logger.Warn(ctx, "failed to refresh part progress", "part_number", part.PartNumber, "error", err.Error())
		}
	}

	if genErr != nil {
		return nil, tracer.Fail(span, genErr)
	}
	result.Message = fmt.Sprintf("已生成第%d-%d章大纲（%d 章）", from, req.End, result.Generated)
	logger.Info(ctx, "chapter outlines generated",
		"project_id", projectID,
		"from", from,
		"to", req.End,
		"regenerate", req.Regenerate,
	)
	return result, nil
}

// GenerateForPart 生成某一卷区间的章节大纲，要求此前章节的大纲已完整
func (g *ChapterOutlineGenerator) GenerateForPart(ctx context.Context, projectID string, partNumber int, regenerate bool, opts GenerateOptions) (*RangeResult, error) {
	part, err := g.parts.GetByNumber(ctx, projectID, partNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load part outline")
	}
	if part == nil {
		return nil, apperrors.NotFound(apperrors.CodePartNotFound, "第%d卷大纲不存在", partNumber)
	}
	maxOutline, err := g.outlines.MaxNumber(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outlines")
	}
	if maxOutline < part.StartChapter-1 {
		return nil, apperrors.InvalidRange("请先完成第%d章之前的章节大纲（当前已有 %d 章）", part.StartChapter, maxOutline)
	}
	return g.GenerateRange(ctx, projectID, RangeRequest{
		Start:      part.StartChapter,
		End:        part.EndChapter,
		Regenerate: regenerate,
		Options:    opts,
	})
}

// ChapterRegenerateResult 单章大纲重新生成结果
type ChapterRegenerateResult struct {
	Outline *entity.ChapterOutline `json:"outline"`
	Cascade *CascadeSummary        `json:"cascade_deleted,omitempty"`
	Message string                 `json:"message"`
}

// Regenerate 重新生成单章大纲
// 非最新章节需确认级联删除其后全部章节；本章已生成的正文保留
func (g *ChapterOutlineGenerator) Regenerate(ctx context.Context, projectID string, chapterNumber int, req RegenerateRequest) (*ChapterRegenerateResult, error) {
	ctx, span := tracer.Start(ctx, "outline.ChapterOutlineGenerator.Regenerate")
	defer span.End()
	span.SetAttributes(attribute.Int("chapter_number", chapterNumber), attribute.Bool("cascade", req.Cascade))

	current, err := g.outlines.GetByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outline")
	}
	if current == nil {
		return nil, apperrors.NotFound(apperrors.CodeChapterOutlineAbsent, "第%d章大纲不存在", chapterNumber)
	}
	maxOutline, err := g.outlines.MaxNumber(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outlines")
	}

	plan, err := g.cascade.Plan(ctx, projectID, ChaptersAfter(chapterNumber))
	if err != nil {
		return nil, err
	}
	if chapterNumber < maxOutline && !req.Cascade {
		return nil, apperrors.SerialOrderViolation(
			"第%d章不是最新章节（最新为第%d章），需确认级联删除：%s", chapterNumber, maxOutline, plan.Describe()).
			WithMeta("required", "cascade_delete=true").
			WithMeta("cascade_preview", plan)
	}

	var summary *CascadeSummary
	if !plan.Empty() {
		if summary, err = g.cascade.Execute(ctx, plan); err != nil {
			return nil, tracer.Fail(span, err)
		}
	}

	bp, err := g.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	parts, err := g.parts.List(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to list part outlines")
	}
	part := partFor(parts, chapterNumber)
	saved, err := g.generateBatch(ctx, projectID, bp, part, chapterNumber, chapterNumber, req.Options)
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	msg := fmt.Sprintf("第%d章大纲已重新生成", chapterNumber)
	if summary != nil {
		msg += "；" + summaryText(summary)
	}
	return &ChapterRegenerateResult{Outline: saved[0], Cascade: summary, Message: msg}, nil
}

// UpdateRequest 手动编辑章节大纲，nil 表示保持不变
type UpdateRequest struct {
	Title   *string
	Summary *string
}

// Update 手动编辑章节大纲，不影响后续章节
func (g *ChapterOutlineGenerator) Update(ctx context.Context, projectID string, chapterNumber int, req UpdateRequest) (*entity.ChapterOutline, error) {
	current, err := g.outlines.GetByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outline")
	}
	if current == nil {
		return nil, apperrors.NotFound(apperrors.CodeChapterOutlineAbsent, "第%d章大纲不存在", chapterNumber)
	}
	if req.Title != nil {
		current.Title = strings.TrimSpace(*req.Title)
	}
	if req.Summary != nil {
		current.Summary = *req.Summary
	}
	if err := g.outlines.Save(ctx, current); err != nil {
		return nil, dbErr(err, "failed to save chapter outline")
	}
	return current, nil
}

// DeleteLatest 删除最后 count 个章节大纲，已生成的正文一并删除并给出提示
func (g *ChapterOutlineGenerator) DeleteLatest(ctx context.Context, projectID string, count int) (*DeleteResult, error) {
	ctx, span := tracer.Start(ctx, "outline.ChapterOutlineGenerator.DeleteLatest")
	defer span.End()

	if count <= 0 {
		return nil, apperrors.InvalidRange("count must be positive, got %d", count)
	}
	maxOutline, err := g.outlines.MaxNumber(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outlines")
	}
	if count > maxOutline {
		return nil, apperrors.InvalidRange("仅有 %d 个章节大纲，无法删除 %d 个", maxOutline, count)
	}

	plan, err := g.cascade.Plan(ctx, projectID, ChaptersFrom(maxOutline-count+1))
	if err != nil {
		return nil, err
	}
	summary, err := g.cascade.Execute(ctx, plan)
	if err != nil {
		return nil, tracer.Fail(span, err)
	}

	result := &DeleteResult{
		Cascade:   summary,
		Remaining: maxOutline - count,
		Message:   fmt.Sprintf("已删除第%d-%d章大纲", maxOutline-count+1, maxOutline),
	}
	if len(plan.ChaptersWithContent) > 0 {
		result.Advisory = fmt.Sprintf("第%s章已生成的正文（%d 个版本）已一并删除",
			formatNumbers(plan.ChaptersWithContent), summary.Versions)
	}
	return result, nil
}

// List 获取全部章节大纲
func (g *ChapterOutlineGenerator) List(ctx context.Context, projectID string) ([]*entity.ChapterOutline, error) {
	outlines, err := g.outlines.List(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to list chapter outlines")
	}
	return outlines, nil
}

// generateBatch 生成 [start, end] 并在单个事务内写入
func (g *ChapterOutlineGenerator) generateBatch(ctx context.Context, projectID string, bp *entity.Blueprint, part *entity.PartOutline, start, end int, opts GenerateOptions) ([]*entity.ChapterOutline, error) {
	prev, err := g.outlines.ListRange(ctx, projectID, max(1, start-recentOutlineWindow), start-1)
	if err != nil {
		return nil, dbErr(err, "failed to load previous outlines")
	}
	previous := make([]wfmodel.ChapterBrief, 0, len(prev))
	for _, o := range prev {
		previous = append(previous, chapterBrief(o))
	}

	in := &wfmodel.ChapterOutlineInput{
		Plan:             blueprint.PlanContext(bp),
		StartChapter:     start,
		EndChapter:       end,
		PreviousOutlines: previous,
		Prompt:           opts.Prompt,
		Options:          opts.callOptions(),
	}
	if part != nil {
		brief := partBrief(part)
		in.Part = &brief
	}

	genCtx := service.WithLLMCall(ctx, "chapter_outline", opts.Provider)
	out, err := g.generator.GenerateChapterOutlines(genCtx, in)
	if err != nil {
		logger.Error(ctx, "chapter outline generation failed", err, "start", start, "end", end)
		return nil, apperrors.GenerationFailed(err, fmt.Sprintf("第%d-%d章大纲生成失败", start, end))
	}
	if len(out.Chapters) != end-start+1 {
		err := fmt.Errorf("expected %d outlines, got %d", end-start+1, len(out.Chapters))
		return nil, apperrors.GenerationFailed(err, fmt.Sprintf("第%d-%d章大纲生成失败", start, end))
	}

	saved := make([]*entity.ChapterOutline, 0, len(out.Chapters))
	err = g.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		// 生成期间前缀可能已被删除，写入前重新确认不会留下空洞
		maxOutline, err := g.outlines.MaxNumber(txCtx, projectID)
		if err != nil {
			return dbErr(err, "failed to load chapter outlines")
		}
		if maxOutline < start-1 {
			logger.Warn(ctx, "chapter outlines deleted during generation, discarding batch", "start", start, "end", end, "max_outline", maxOutline)
			return apperrors.InvalidRange("第%d章之前的章节大纲在生成期间已被删除（当前已有 %d 章），本批结果已丢弃", start, maxOutline)
		}
		if part != nil {
			current, err := g.parts.GetByNumber(txCtx, projectID, part.PartNumber)
			if err != nil {
				return dbErr(err, "failed to load part outline")
			}
			if current == nil || current.ID != part.ID {
				return apperrors.NotFound(apperrors.CodePartNotFound, "第%d卷大纲在生成期间已被删除", part.PartNumber)
			}
		}
		for i, brief := range out.Chapters {
			o := entity.NewChapterOutline(projectID, start+i, strings.TrimSpace(brief.Title), strings.TrimSpace(brief.Summary))
			if part != nil {
				o.PartNumber = part.PartNumber
			}
			if err := g.outlines.Save(txCtx, o); err != nil {
				return dbErr(err, "failed to save chapter outline")
			}
			saved = append(saved, o)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return saved, nil
}

// partFor 返回包含该章节的分卷，未规划分卷时返回 nil
func partFor(parts []*entity.PartOutline, chapterNumber int) *entity.PartOutline {
	for _, p := range parts {
		if p.Contains(chapterNumber) {
			return p
		}
	}
	return nil
}

func partsInRange(parts []*entity.PartOutline, start, end int) []*entity.PartOutline {
	var out []*entity.PartOutline
	for _, p := range parts {
		if p.EndChapter >= start && p.StartChapter <= end {
			out = append(out, p)
		}
	}
	return out
}
