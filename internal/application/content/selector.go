package content

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"z-novel-plan-api/internal/application/blueprint"
	"z-novel-plan-api/internal/application/retrieval"
	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
	"z-novel-plan-api/internal/domain/service"
	wfmodel "z-novel-plan-api/internal/workflow/model"
	workflowport "z-novel-plan-api/internal/workflow/port"
	apperrors "z-novel-plan-api/pkg/errors"
	"z-novel-plan-api/pkg/logger"
	"z-novel-plan-api/pkg/tracer"
)

// Selector 版本选定、版本删除、评审与章节查询
type Selector struct {
	txMgr       repository.Transactor
	blueprints  BlueprintFinder
	outlines    repository.ChapterOutlineRepository
	chapters    repository.ChapterRepository
	versions    repository.ChapterVersionRepository
	evaluations repository.ChapterEvaluationRepository
	generator   workflowport.Generator
	indexer     retrieval.IndexRequester
	purger      retrieval.PurgeRequester
}

// NewSelector 创建版本选定服务
func NewSelector(
	txMgr repository.Transactor,
	blueprints BlueprintFinder,
	outlines repository.ChapterOutlineRepository,
	chapters repository.ChapterRepository,
	versions repository.ChapterVersionRepository,
	evaluations repository.ChapterEvaluationRepository,
	generator workflowport.Generator,
	indexer retrieval.IndexRequester,
	purger retrieval.PurgeRequester,
) *Selector {
	if indexer == nil {
		indexer = retrieval.NopRequester{}
	}
	if purger == nil {
		purger = retrieval.NopRequester{}
	}
	return &Selector{
		txMgr:       txMgr,
		blueprints:  blueprints,
		outlines:    outlines,
		chapters:    chapters,
		versions:    versions,
		evaluations: evaluations,
		generator:   generator,
		indexer:     indexer,
		purger:      purger,
	}
}

// Select 选定章节当前版本并按版本正文刷新字数；重复选定同一版本结果不变
func (s *Selector) Select(ctx context.Context, projectID string, chapterNumber int, versionID string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "content.Selector.Select")
	defer span.End()

	chapter, err := s.requireChapter(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, err
	}
	v, err := s.requireVersion(ctx, chapter, versionID)
	if err != nil {
		return nil, err
	}

	var unchanged bool
	err = s.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.chapters.GetByIDForUpdate(txCtx, chapter.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperrors.NotFound(apperrors.CodeChapterNotFound, "第%d章已被删除", chapterNumber)
		}
		chapter = current
		unchanged = chapter.HasSelection() && *chapter.SelectedVersionID == v.ID
		chapter.Select(v)
		if chapter.Status == entity.ChapterStatusNotGenerated {
			chapter.MarkSuccessful()
		}
		return s.chapters.Update(txCtx, chapter)
	})
	if err != nil {
		return nil, tracer.Fail(span, dbErr(err, "failed to update chapter"))
	}

	if !unchanged {
		outline, err := s.outlines.GetByNumber(ctx, projectID, chapterNumber)
		if err != nil {
			logger.Warn(ctx, "failed to load outline for indexing", "error", err.Error())
		}
		requestIndex(ctx, s.indexer, chapter, outline, v)
	}
	return chapter, nil
}

// DeleteVersion 删除版本及其评审；删除的是选定版本时清空选定，无剩余版本时回到 not_generated
func (s *Selector) DeleteVersion(ctx context.Context, projectID string, chapterNumber int, versionID string) (*entity.Chapter, error) {
	ctx, span := tracer.Start(ctx, "content.Selector.DeleteVersion")
	defer span.End()

	chapter, err := s.requireChapter(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, err
	}
	if _, err := s.requireVersion(ctx, chapter, versionID); err != nil {
		return nil, err
	}

	var wasSelected bool
	err = s.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := s.chapters.GetByIDForUpdate(txCtx, chapter.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return apperrors.NotFound(apperrors.CodeChapterNotFound, "第%d章已被删除", chapterNumber)
		}
		chapter = current
		wasSelected = chapter.HasSelection() && *chapter.SelectedVersionID == versionID

		if _, err := s.evaluations.DeleteByVersionID(txCtx, versionID); err != nil {
			return err
		}
		if err := s.versions.Delete(txCtx, versionID); err != nil {
			return err
		}
		if wasSelected {
			chapter.ClearSelection()
		}
		remaining, err := s.versions.ListByChapter(txCtx, chapter.ID)
		if err != nil {
			return err
		}
		if len(remaining) == 0 {
			chapter.Status = entity.ChapterStatusNotGenerated
		}
		return s.chapters.Update(txCtx, chapter)
	})
	if err != nil {
		return nil, tracer.Fail(span, dbErr(err, "failed to delete chapter version"))
	}

	if wasSelected {
		req := retrieval.PurgeRequest{
			ProjectID:  projectID,
			ChapterIDs: []string{chapter.ID},
			VersionID:  versionID,
			Reason:     "selected_version_deleted",
		}
		if err := s.purger.RequestPurge(ctx, req); err != nil {
			logger.Warn(ctx, "retrieval purge request failed", "chapter_number", chapterNumber, "error", err.Error())
		}
	}
	return chapter, nil
}

// EvaluateRequest 评审请求；Decision 为空时由生成后端评审
type EvaluateRequest struct {
	VersionID string
	Decision  entity.EvaluationDecision
	Feedback  string
	Score     float64
	Provider  string
	Model     string
}

// Evaluate 记录章节评审
func (s *Selector) Evaluate(ctx context.Context, projectID string, chapterNumber int, req EvaluateRequest) (*entity.ChapterEvaluation, error) {
	ctx, span := tracer.Start(ctx, "content.Selector.Evaluate")
	defer span.End()

	chapter, err := s.requireChapter(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, err
	}
	versionID := strings.TrimSpace(req.VersionID)
	if versionID == "" && chapter.HasSelection() {
		versionID = *chapter.SelectedVersionID
	}

	var version *entity.ChapterVersion
	if versionID != "" {
		if version, err = s.requireVersion(ctx, chapter, versionID); err != nil {
			return nil, err
		}
	}

	decision, feedback, score := req.Decision, req.Feedback, req.Score
	source := "manual"
	if decision == "" {
		if version == nil {
			return nil, apperrors.New(apperrors.CodeInvalidParam, "章节尚无可评审的版本")
		}
		out, err := s.evaluateWithBackend(ctx, projectID, chapterNumber, version, req)
		if err != nil {
			return nil, tracer.Fail(span, err)
		}
		decision, feedback, score = entity.EvaluationDecision(out.Decision), out.Feedback, out.Score
		source = "llm"
	}

	var vid *string
	if version != nil {
		vid = &version.ID
	}
	evaluation, err := entity.NewChapterEvaluation(chapter.ID, vid, decision, feedback, score)
	if err != nil {
		if source == "llm" {
			return nil, apperrors.GenerationFailed(err, "评审结果无效")
		}
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidParam, err.Error())
	}
	evaluation.Source = source
	if err := s.evaluations.Create(ctx, evaluation); err != nil {
		return nil, dbErr(err, "failed to save evaluation")
	}
	return evaluation, nil
}

func (s *Selector) evaluateWithBackend(ctx context.Context, projectID string, chapterNumber int, version *entity.ChapterVersion, req EvaluateRequest) (*wfmodel.ChapterEvaluationOutput, error) {
	bp, err := s.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	outline, err := s.outlines.GetByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outline")
	}
	in := &wfmodel.ChapterEvaluationInput{
		Plan:    blueprint.PlanContext(bp),
		Content: version.Content,
		Options: wfmodel.CallOptions{Provider: req.Provider, Model: req.Model},
	}
	if outline != nil {
		in.Outline = brief(outline)
	}
	out, err := s.generator.EvaluateChapter(service.WithLLMCall(ctx, "chapter_evaluation", req.Provider), in)
	if err != nil {
		return nil, apperrors.GenerationFailed(err, fmt.Sprintf("第%d章评审失败", chapterNumber))
	}
	return out, nil
}

// ChapterDetail 章节详情
type ChapterDetail struct {
	Chapter     *entity.Chapter             `json:"chapter"`
	Outline     *entity.ChapterOutline      `json:"outline,omitempty"`
	Versions    []*entity.ChapterVersion    `json:"versions"`
	Evaluations []*entity.ChapterEvaluation `json:"evaluations"`
}

// Get 获取章节、全部版本与评审
func (s *Selector) Get(ctx context.Context, projectID string, chapterNumber int) (*ChapterDetail, error) {
	chapter, err := s.requireChapter(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, err
	}
	outline, err := s.outlines.GetByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outline")
	}
	versions, err := s.versions.ListByChapter(ctx, chapter.ID)
	if err != nil {
		return nil, dbErr(err, "failed to list chapter versions")
	}
	evaluations, err := s.evaluations.ListByChapter(ctx, chapter.ID)
	if err != nil {
		return nil, dbErr(err, "failed to list evaluations")
	}
	return &ChapterDetail{Chapter: chapter, Outline: outline, Versions: versions, Evaluations: evaluations}, nil
}

func (s *Selector) requireChapter(ctx context.Context, projectID string, chapterNumber int) (*entity.Chapter, error) {
	chapter, err := s.chapters.GetByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter")
	}
	if chapter == nil {
		return nil, apperrors.NotFound(apperrors.CodeChapterNotFound, "第%d章尚未生成正文", chapterNumber)
	}
	return chapter, nil
}

// requireVersion 版本必须属于该章节
func (s *Selector) requireVersion(ctx context.Context, chapter *entity.Chapter, versionID string) (*entity.ChapterVersion, error) {
	if _, err := uuid.Parse(versionID); err != nil {
		return nil, apperrors.NotFound(apperrors.CodeVersionNotFound, "版本 %s 不存在", versionID)
	}
	v, err := s.versions.GetByID(ctx, versionID)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter version")
	}
	if v == nil || v.ChapterID != chapter.ID {
		return nil, apperrors.NotFound(apperrors.CodeVersionNotFound, "版本 %s 不属于第%d章", versionID, chapter.ChapterNumber)
	}
	return v, nil
}
