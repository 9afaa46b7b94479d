// Package outline 负责分卷大纲、章节大纲的规划与生成，以及跨层级的级联删除
package outline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-plan-api/internal/application/retrieval"
	"z-novel-plan-api/internal/domain/repository"
	apperrors "z-novel-plan-api/pkg/errors"
	"z-novel-plan-api/pkg/logger"
	"z-novel-plan-api/pkg/metrics"
	"z-novel-plan-api/pkg/tracer"
)

// Scope 级联删除的基准层级
type Scope string

const (
	ScopePart    Scope = "part"
	ScopeChapter Scope = "chapter"
)

// Pivot 级联删除基准点
type Pivot struct {
	Scope Scope `json:"scope"`
	Index int   `json:"index"`
	// Inclusive 基准单元自身也被删除
	Inclusive bool `json:"inclusive"`
	// ClearPivotChapters 分卷基准保留，但清空其章节区间（重新生成分卷时使用）
	ClearPivotChapters bool `json:"clear_pivot_chapters,omitempty"`
}

// PartsAfter 删除卷号 > n 的分卷及其章节
func PartsAfter(n int) Pivot { return Pivot{Scope: ScopePart, Index: n} }

// PartsFrom 删除卷号 >= n 的分卷及其章节
func PartsFrom(n int) Pivot { return Pivot{Scope: ScopePart, Index: n, Inclusive: true} }

// PartRegeneration 删除卷号 > n 的分卷，并清空第 n 卷的章节
func PartRegeneration(n int) Pivot {
	return Pivot{Scope: ScopePart, Index: n, ClearPivotChapters: true}
}

// ChaptersAfter 删除章节号 > n 的章节大纲与正文
func ChaptersAfter(n int) Pivot { return Pivot{Scope: ScopeChapter, Index: n} }

// ChaptersFrom 删除章节号 >= n 的章节大纲与正文
func ChaptersFrom(n int) Pivot { return Pivot{Scope: ScopeChapter, Index: n, Inclusive: true} }

// Everything 删除项目全部分卷与章节
func Everything() Pivot { return PartsFrom(1) }

// CascadeSummary 各类实体的删除数量
type CascadeSummary struct {
	Parts           int64 `json:"parts"`
	ChapterOutlines int64 `json:"chapter_outlines"`
	Chapters        int64 `json:"chapters"`
	Versions        int64 `json:"versions"`
	Evaluations     int64 `json:"evaluations"`
}

// Total 删除总数
func (s CascadeSummary) Total() int64 {
	return s.Parts + s.ChapterOutlines + s.Chapters + s.Versions + s.Evaluations
}

// DeletionPlan 执行前计算出的受影响范围
type DeletionPlan struct {
	ProjectID string `json:"project_id"`
	Pivot     Pivot  `json:"pivot"`
	// FromPart 待删除的最小卷号，0 表示不删除分卷
	FromPart    int   `json:"from_part,omitempty"`
	PartNumbers []int `json:"part_numbers,omitempty"`
	// FromChapter 待删除的最小章节号，0 表示不删除章节
	FromChapter         int            `json:"from_chapter,omitempty"`
	ChapterOutlineRange [2]int         `json:"chapter_outline_range"`
	ChapterIDs          []string       `json:"-"`
	ChaptersWithContent []int          `json:"chapters_with_content,omitempty"`
	Expected            CascadeSummary `json:"expected"`
}

// Empty 是否无任何数据需要删除
func (p *DeletionPlan) Empty() bool {
	return p.Expected.Total() == 0
}

// Describe 面向用户的删除说明
func (p *DeletionPlan) Describe() string {
	if p.Empty() {
		return "无需删除任何内容"
	}
	var parts []string
	if len(p.PartNumbers) > 0 {
		parts = append(parts, fmt.Sprintf("第%s卷大纲（%d 卷）", formatNumbers(p.PartNumbers), len(p.PartNumbers)))
	}
	if p.Expected.ChapterOutlines > 0 {
		parts = append(parts, fmt.Sprintf("第%d-%d章的章节大纲（%d 章）",
			p.ChapterOutlineRange[0], p.ChapterOutlineRange[1], p.Expected.ChapterOutlines))
	}
	if len(p.ChaptersWithContent) > 0 {
		parts = append(parts, fmt.Sprintf("第%s章的正文（%d 个版本、%d 条评审）",
			formatNumbers(p.ChaptersWithContent), p.Expected.Versions, p.Expected.Evaluations))
	}
	return "将删除" + strings.Join(parts, "，")
}

// CascadeEngine 唯一负责跨层级删除的组件：分卷、章节大纲、章节、版本、评审
type CascadeEngine struct {
	txMgr       repository.Transactor
	parts       repository.PartOutlineRepository
	outlines    repository.ChapterOutlineRepository
	chapters    repository.ChapterRepository
	versions    repository.ChapterVersionRepository
	evaluations repository.ChapterEvaluationRepository
	purger      retrieval.PurgeRequester
}

// NewCascadeEngine 创建级联删除引擎
func NewCascadeEngine(
	txMgr repository.Transactor,
	parts repository.PartOutlineRepository,
	outlines repository.ChapterOutlineRepository,
	chapters repository.ChapterRepository,
	versions repository.ChapterVersionRepository,
	evaluations repository.ChapterEvaluationRepository,
	purger retrieval.PurgeRequester,
) *CascadeEngine {
	if purger == nil {
		purger = retrieval.NopRequester{}
	}
	return &CascadeEngine{
		txMgr:       txMgr,
		parts:       parts,
		outlines:    outlines,
		chapters:    chapters,
		versions:    versions,
		evaluations: evaluations,
		purger:      purger,
	}
}

// Plan 计算受影响范围，不修改任何数据
func (e *CascadeEngine) Plan(ctx context.Context, projectID string, pivot Pivot) (*DeletionPlan, error) {
	ctx, span := tracer.Start(ctx, "outline.CascadeEngine.Plan",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.String("pivot.scope", string(pivot.Scope)),
			attribute.Int("pivot.index", pivot.Index),
		))
	defer span.End()

	plan := &DeletionPlan{ProjectID: projectID, Pivot: pivot}

	switch pivot.Scope {
	case ScopeChapter:
		plan.FromChapter = pivot.Index + 1
		if pivot.Inclusive {
			plan.FromChapter = pivot.Index
		}
		plan.FromChapter = max(plan.FromChapter, 1)
	case ScopePart:
		if err := e.planParts(ctx, plan); err != nil {
			return nil, tracer.Fail(span, err)
		}
	default:
		return nil, apperrors.Newf(apperrors.CodeInvalidParam, "unknown cascade scope %q", pivot.Scope)
	}

	if plan.FromChapter > 0 {
		if err := e.planChapters(ctx, plan); err != nil {
			return nil, tracer.Fail(span, err)
		}
	}
	return plan, nil
}

func (e *CascadeEngine) planParts(ctx context.Context, plan *DeletionPlan) error {
	pivot := plan.Pivot
	fromPart := pivot.Index + 1
	if pivot.Inclusive {
		fromPart = pivot.Index
	}
	fromPart = max(fromPart, 1)

	parts, err := e.parts.List(ctx, plan.ProjectID)
	if err != nil {
		return err
	}

	fromChapter := 0
	for _, p := range parts {
		switch {
		case p.PartNumber >= fromPart:
			plan.PartNumbers = append(plan.PartNumbers, p.PartNumber)
			if fromChapter == 0 || p.StartChapter < fromChapter {
				fromChapter = p.StartChapter
			}
		case pivot.ClearPivotChapters && p.PartNumber == pivot.Index:
			if fromChapter == 0 || p.StartChapter < fromChapter {
				fromChapter = p.StartChapter
			}
		}
	}
	if len(plan.PartNumbers) > 0 {
		plan.FromPart = fromPart
	}
	// 从第 1 卷起删除即清空整部作品，包括未归属任何分卷的章节
	if fromPart == 1 {
		fromChapter = 1
	}
	plan.FromChapter = fromChapter
	plan.Expected.Parts = int64(len(plan.PartNumbers))
	return nil
}

func (e *CascadeEngine) planChapters(ctx context.Context, plan *DeletionPlan) error {
	maxOutline, err := e.outlines.MaxNumber(ctx, plan.ProjectID)
	if err != nil {
		return err
	}
	if maxOutline >= plan.FromChapter {
		plan.ChapterOutlineRange = [2]int{plan.FromChapter, maxOutline}
		count, err := e.outlines.CountRange(ctx, plan.ProjectID, plan.FromChapter, maxOutline)
		if err != nil {
			return err
		}
		plan.Expected.ChapterOutlines = count
	}

	chapters, err := e.chapters.ListFromNumber(ctx, plan.ProjectID, plan.FromChapter)
	if err != nil {
		return err
	}
	if len(chapters) == 0 {
		return nil
	}

	numberByID := make(map[string]int, len(chapters))
	for _, ch := range chapters {
		plan.ChapterIDs = append(plan.ChapterIDs, ch.ID)
		numberByID[ch.ID] = ch.ChapterNumber
	}
	plan.Expected.Chapters = int64(len(chapters))

	withVersions, err := e.versions.ChapterIDsWithVersions(ctx, plan.ChapterIDs)
	if err != nil {
		return err
	}
	for _, id := range withVersions {
		plan.ChaptersWithContent = append(plan.ChaptersWithContent, numberByID[id])
	}
	sort.Ints(plan.ChaptersWithContent)

	if plan.Expected.Versions, err = e.versions.CountByChapterIDs(ctx, plan.ChapterIDs); err != nil {
		return err
	}
	if plan.Expected.Evaluations, err = e.evaluations.CountByChapterIDs(ctx, plan.ChapterIDs); err != nil {
		return err
	}
	return nil
}

// Execute 在单个事务内按依赖顺序删除（评审 → 版本 → 章节 → 章节大纲 → 分卷），
// 随后执行 then 中的后续步骤。任一步失败整体回滚并返回 CascadeTransaction 错误；
// 提交后再发出检索索引清理请求，清理失败只记录告警。
func (e *CascadeEngine) Execute(ctx context.Context, plan *DeletionPlan, then ...func(ctx context.Context) error) (*CascadeSummary, error) {
	ctx, span := tracer.Start(ctx, "outline.CascadeEngine.Execute",
		trace.WithAttributes(
			attribute.String("project_id", plan.ProjectID),
			attribute.Int("from_part", plan.FromPart),
			attribute.Int("from_chapter", plan.FromChapter),
		))
	defer span.End()

	scope := string(plan.Pivot.Scope)
	var summary CascadeSummary
	var chapterIDs []string

	err := e.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		summary = CascadeSummary{}
		var err error
		if chapterIDs, err = e.deleteRange(txCtx, plan, &summary); err != nil {
			return err
		}
		for _, step := range then {
			if err := step(txCtx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		metrics.CascadeTotal.WithLabelValues(scope, "rolled_back").Inc()
		logger.Error(ctx, "cascade deletion rolled back", err,
			"pivot_scope", scope,
			"pivot_index", plan.Pivot.Index,
		)
		// 后续步骤返回的业务错误原样透出，其余视为级联事务失败
		if apperrors.IsAppError(err) && !apperrors.IsCode(err, apperrors.CodeDatabaseError) {
			return nil, tracer.Fail(span, err)
		}
		return nil, tracer.Fail(span, apperrors.CascadeFailed(err))
	}

	metrics.CascadeTotal.WithLabelValues(scope, "committed").Inc()
	metrics.CascadeDeleted.WithLabelValues("part").Add(float64(summary.Parts))
	metrics.CascadeDeleted.WithLabelValues("chapter_outline").Add(float64(summary.ChapterOutlines))
	metrics.CascadeDeleted.WithLabelValues("chapter").Add(float64(summary.Chapters))
	metrics.CascadeDeleted.WithLabelValues("version").Add(float64(summary.Versions))
	metrics.CascadeDeleted.WithLabelValues("evaluation").Add(float64(summary.Evaluations))

	logger.Info(ctx, "cascade deletion committed",
		"pivot_scope", scope,
		"pivot_index", plan.Pivot.Index,
		"parts", summary.Parts,
		"chapter_outlines", summary.ChapterOutlines,
		"chapters", summary.Chapters,
		"versions", summary.Versions,
		"evaluations", summary.Evaluations,
	)

	if len(chapterIDs) > 0 {
		req := retrieval.PurgeRequest{
			ProjectID:   plan.ProjectID,
			FromChapter: plan.FromChapter,
			ChapterIDs:  chapterIDs,
			Reason:      fmt.Sprintf("cascade:%s:%d", scope, plan.Pivot.Index),
		}
		if err := e.purger.RequestPurge(ctx, req); err != nil {
			logger.Warn(ctx, "retrieval purge request failed", "error", err.Error(), "from_chapter", plan.FromChapter)
		}
	}
	return &summary, nil
}

// deleteRange 事务内按最新数据重新确定章节集合后删除，返回被删除的章节 ID
func (e *CascadeEngine) deleteRange(ctx context.Context, plan *DeletionPlan, summary *CascadeSummary) ([]string, error) {
	var chapterIDs []string
	if plan.FromChapter > 0 {
		chapters, err := e.chapters.ListFromNumber(ctx, plan.ProjectID, plan.FromChapter)
		if err != nil {
			return nil, err
		}
		for _, ch := range chapters {
			chapterIDs = append(chapterIDs, ch.ID)
		}

		if summary.Evaluations, err = e.evaluations.DeleteByChapterIDs(ctx, chapterIDs); err != nil {
			return nil, err
		}
		if summary.Versions, err = e.versions.DeleteByChapterIDs(ctx, chapterIDs); err != nil {
			return nil, err
		}
		if summary.Chapters, err = e.chapters.DeleteByIDs(ctx, chapterIDs); err != nil {
			return nil, err
		}
		if summary.ChapterOutlines, err = e.outlines.DeleteFromNumber(ctx, plan.ProjectID, plan.FromChapter); err != nil {
			return nil, err
		}
	}

	if plan.FromPart > 0 {
		n, err := e.parts.DeleteFromNumber(ctx, plan.ProjectID, plan.FromPart)
		if err != nil {
			return nil, err
		}
		summary.Parts = n
	}

	if plan.FromChapter > 0 {
		if err := e.refreshSurvivingParts(ctx, plan.ProjectID, plan.FromChapter); err != nil {
			return nil, err
		}
	}
	return chapterIDs, nil
}

// refreshSurvivingParts 重新计算与被删章节区间相交的剩余分卷的进度
func (e *CascadeEngine) refreshSurvivingParts(ctx context.Context, projectID string, fromChapter int) error {
	parts, err := e.parts.ListCovering(ctx, projectID, fromChapter)
	if err != nil {
		return err
	}
	for _, p := range parts {
		if err := refreshPartProgress(ctx, e.outlines, e.parts, p); err != nil {
			return err
		}
	}
	return nil
}

// formatNumbers 将有序编号压缩为区间描述，如 [4 5 7] → "4-5、7"
func formatNumbers(nums []int) string {
	if len(nums) == 0 {
		return ""
	}
	sorted := append([]int(nil), nums...)
	sort.Ints(sorted)

	var out []string
	start, prev := sorted[0], sorted[0]
	flush := func() {
		if start == prev {
			out = append(out, fmt.Sprintf("%d", start))
		} else {
			out = append(out, fmt.Sprintf("%d-%d", start, prev))
		}
	}
	for _, n := range sorted[1:] {
		if n == prev+1 {
			prev = n
			continue
		}
		flush()
		start, prev = n, n
	}
	flush()
	return strings.Join(out, "、")
}
