// Package content 驱动章节正文生成、版本选定与评审
package content

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"

	"z-novel-plan-api/internal/application/blueprint"
	"z-novel-plan-api/internal/application/retrieval"
	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
	"z-novel-plan-api/internal/domain/service"
	wfmodel "z-novel-plan-api/internal/workflow/model"
	workflowport "z-novel-plan-api/internal/workflow/port"
	apperrors "z-novel-plan-api/pkg/errors"
	"z-novel-plan-api/pkg/logger"
	"z-novel-plan-api/pkg/metrics"
	"z-novel-plan-api/pkg/tracer"
)

const (
	recentOutlineWindow = 3
	previousTailRunes   = 600
)

// BlueprintFinder 蓝图读取
type BlueprintFinder interface {
	Find(ctx context.Context, projectID string) (*entity.Blueprint, error)
}

// Config 正文生成参数
type Config struct {
	DefaultVersionCount int
	MaxVersionCount     int
	TargetWordCount     int
}

// Pipeline 章节正文生成流水线
// 状态机：not_generated → generating → successful | failed；版本只追加
type Pipeline struct {
	txMgr      repository.Transactor
	blueprints BlueprintFinder
	outlines   repository.ChapterOutlineRepository
	chapters   repository.ChapterRepository
	versions   repository.ChapterVersionRepository
	generator  workflowport.Generator
	indexer    retrieval.IndexRequester
	cfg        Config
}

// NewPipeline 创建正文生成流水线
func NewPipeline(
	txMgr repository.Transactor,
	blueprints BlueprintFinder,
	outlines repository.ChapterOutlineRepository,
	chapters repository.ChapterRepository,
	versions repository.ChapterVersionRepository,
	generator workflowport.Generator,
	indexer retrieval.IndexRequester,
	cfg Config,
) *Pipeline {
	if cfg.DefaultVersionCount <= 0 {
		cfg.DefaultVersionCount = 1
	}
	if cfg.MaxVersionCount < cfg.DefaultVersionCount {
		cfg.MaxVersionCount = max(cfg.DefaultVersionCount, 3)
	}
	if indexer == nil {
		indexer = retrieval.NopRequester{}
	}
	return &Pipeline{
		txMgr:      txMgr,
		blueprints: blueprints,
		outlines:   outlines,
		chapters:   chapters,
		versions:   versions,
		generator:  generator,
		indexer:    indexer,
		cfg:        cfg,
	}
}

// GenerateRequest 正文生成请求
type GenerateRequest struct {
	Prompt       string `json:"prompt,omitempty"`
	VersionCount int    `json:"version_count,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
}

// GenerateResult 生成结果
type GenerateResult struct {
	Chapter  *entity.Chapter          `json:"chapter"`
	Versions []*entity.ChapterVersion `json:"versions"`
}

// Generate 同步生成章节正文，追加 N 个新版本
func (p *Pipeline) Generate(ctx context.Context, projectID string, chapterNumber int, req GenerateRequest) (*GenerateResult, error) {
	ctx, span := tracer.Start(ctx, "content.Pipeline.Generate")
	defer span.End()
	span.SetAttributes(attribute.Int("chapter_number", chapterNumber))
	ctx = logger.WithContext(ctx, logger.ProjectIDKey, projectID)

	count, err := p.versionCount(req.VersionCount)
	if err != nil {
		return nil, err
	}
	outline, err := p.requireOutline(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, err
	}
	chapter, err := p.getOrCreateChapter(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, err
	}

	chapter.StartGeneration()
	if err := p.chapters.Update(ctx, chapter); err != nil {
		return nil, dbErr(err, "failed to update chapter")
	}

	return p.run(ctx, chapter, outline, req, count)
}

// run 在章节已处于 generating 时调用生成后端；失败时保留已有版本
func (p *Pipeline) run(ctx context.Context, chapter *entity.Chapter, outline *entity.ChapterOutline, req GenerateRequest, count int) (*GenerateResult, error) {
	in, err := p.buildInput(ctx, chapter.ProjectID, outline, req)
	if err != nil {
		p.fail(ctx, chapter, err)
		return nil, err
	}
	existing, err := p.versions.ListByChapter(ctx, chapter.ID)
	if err != nil {
		p.fail(ctx, chapter, err)
		return nil, dbErr(err, "failed to list chapter versions")
	}

	genCtx := service.WithLLMCall(ctx, "chapter_content", req.Provider)
	created := make([]*entity.ChapterVersion, 0, count)
	for i := 0; i < count; i++ {
		out, genErr := p.generator.GenerateChapterContent(genCtx, in)
		if genErr != nil {
			p.fail(ctx, chapter, genErr)
			return nil, apperrors.GenerationFailed(genErr, fmt.Sprintf("第%d章正文生成失败", chapter.ChapterNumber)).
				WithMeta("versions_created", len(created))
		}

		label := fmt.Sprintf("v%d", len(existing)+len(created)+1)
		v := entity.NewChapterVersion(chapter.ID, label, out.Meta.Provider, out.Content, versionMeta(out.Meta, req.Prompt))
		err := p.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
			if _, err := p.lockLive(txCtx, chapter); err != nil {
				return err
			}
			return dbErr(p.versions.Create(txCtx, v), "failed to save chapter version")
		})
		if err != nil {
			p.fail(ctx, chapter, err)
			return nil, err
		}
		created = append(created, v)
		metrics.ChapterWordCount.Observe(float64(v.WordCount()))
	}

	// 选定判断基于最新状态，生成期间用户可能已手动选定
	var selected bool
	err = p.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := p.lockLive(txCtx, chapter)
		if err != nil {
			return err
		}
		selected = !current.HasSelection()
		if selected {
			current.Select(created[0])
		}
		current.MarkSuccessful()
		if err := p.chapters.Update(txCtx, current); err != nil {
			return dbErr(err, "failed to update chapter")
		}
		chapter = current
		return nil
	})
	if err != nil {
		p.fail(ctx, chapter, err)
		return nil, err
	}

	logger.Info(ctx, "chapter content generated",
		"chapter_number", chapter.ChapterNumber,
		"new_versions", len(created),
		"total_versions", len(existing)+len(created),
		"auto_selected", selected,
	)
	if selected {
		requestIndex(ctx, p.indexer, chapter, outline, created[0])
	}
	return &GenerateResult{Chapter: chapter, Versions: created}, nil
}

// fail 在最新的章节行上记录失败；章节已被删除时不做任何写入
func (p *Pipeline) fail(ctx context.Context, chapter *entity.Chapter, cause error) {
	logger.Error(ctx, "chapter content generation failed", cause, "chapter_number", chapter.ChapterNumber)
	err := p.txMgr.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := p.chapters.GetByIDForUpdate(txCtx, chapter.ID)
		if err != nil || current == nil {
			return err
		}
		current.MarkFailed(cause.Error())
		return p.chapters.Update(txCtx, current)
	})
	if err != nil {
		logger.Warn(ctx, "failed to mark chapter failed", "error", err.Error())
	}
}

// lockLive 锁定章节行并确认章节与其大纲仍然存在
// 生成期间发生级联删除时返回 NotFound，调用方放弃写入
func (p *Pipeline) lockLive(ctx context.Context, chapter *entity.Chapter) (*entity.Chapter, error) {
	current, err := p.chapters.GetByIDForUpdate(ctx, chapter.ID)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter")
	}
	if current == nil {
		return nil, apperrors.NotFound(apperrors.CodeChapterNotFound, "第%d章在生成期间已被删除", chapter.ChapterNumber)
	}
	outline, err := p.outlines.GetByNumber(ctx, chapter.ProjectID, chapter.ChapterNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outline")
	}
	if outline == nil {
		return nil, apperrors.NotFound(apperrors.CodeChapterOutlineAbsent, "第%d章大纲在生成期间已被删除", chapter.ChapterNumber)
	}
	return current, nil
}

func (p *Pipeline) buildInput(ctx context.Context, projectID string, outline *entity.ChapterOutline, req GenerateRequest) (*wfmodel.ChapterContentInput, error) {
	bp, err := p.blueprints.Find(ctx, projectID)
	if err != nil {
		return nil, dbErr(err, "failed to load blueprint")
	}
	n := outline.ChapterNumber
	recent, err := p.outlines.ListRange(ctx, projectID, max(1, n-recentOutlineWindow), n-1)
	if err != nil {
		return nil, dbErr(err, "failed to load previous outlines")
	}
	tail, err := p.previousTail(ctx, projectID, n)
	if err != nil {
		return nil, err
	}

	in := &wfmodel.ChapterContentInput{
		Plan:            blueprint.PlanContext(bp),
		Outline:         brief(outline),
		PreviousTail:    tail,
		Prompt:          req.Prompt,
		TargetWordCount: p.cfg.TargetWordCount,
		Options: wfmodel.CallOptions{
			Provider: strings.TrimSpace(req.Provider),
			Model:    strings.TrimSpace(req.Model),
		},
	}
	for _, o := range recent {
		in.RecentOutlines = append(in.RecentOutlines, brief(o))
	}
	return in, nil
}

// previousTail 取上一章选定版本的结尾，用于衔接
func (p *Pipeline) previousTail(ctx context.Context, projectID string, chapterNumber int) (string, error) {
	if chapterNumber <= 1 {
		return "", nil
	}
	prev, err := p.chapters.GetByNumber(ctx, projectID, chapterNumber-1)
	if err != nil {
		return "", dbErr(err, "failed to load previous chapter")
	}
	if prev == nil || !prev.HasSelection() {
		return "", nil
	}
	v, err := p.versions.GetByID(ctx, *prev.SelectedVersionID)
	if err != nil {
		return "", dbErr(err, "failed to load previous chapter version")
	}
	if v == nil {
		return "", nil
	}
	return tailRunes(v.Content, previousTailRunes), nil
}

func (p *Pipeline) versionCount(n int) (int, error) {
	if n == 0 {
		return p.cfg.DefaultVersionCount, nil
	}
	if n < 0 || n > p.cfg.MaxVersionCount {
		return 0, apperrors.InvalidRange("version_count must be within 1-%d, got %d", p.cfg.MaxVersionCount, n)
	}
	return n, nil
}

func (p *Pipeline) requireOutline(ctx context.Context, projectID string, chapterNumber int) (*entity.ChapterOutline, error) {
	if chapterNumber < 1 {
		return nil, apperrors.InvalidRange("chapter_number must be positive, got %d", chapterNumber)
	}
	outline, err := p.outlines.GetByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter outline")
	}
	if outline == nil {
		return nil, apperrors.NotFound(apperrors.CodeChapterOutlineAbsent, "第%d章大纲不存在，请先生成章节大纲", chapterNumber)
	}
	return outline, nil
}

func (p *Pipeline) getOrCreateChapter(ctx context.Context, projectID string, chapterNumber int) (*entity.Chapter, error) {
	chapter, err := p.chapters.GetByNumber(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, dbErr(err, "failed to load chapter")
	}
	if chapter != nil {
		return chapter, nil
	}
	chapter = entity.NewChapter(projectID, chapterNumber)
	if err := p.chapters.Create(ctx, chapter); err != nil {
		return nil, dbErr(err, "failed to create chapter")
	}
	return chapter, nil
}

func versionMeta(meta wfmodel.LLMUsageMeta, prompt string) *entity.GenerationMetadata {
	return &entity.GenerationMetadata{
		Model:            meta.Model,
		Provider:         meta.Provider,
		PromptTokens:     meta.PromptTokens,
		CompletionTokens: meta.CompletionTokens,
		Temperature:      meta.Temperature,
		DurationMs:       meta.Duration.Milliseconds(),
		Prompt:           prompt,
	}
}

func brief(o *entity.ChapterOutline) wfmodel.ChapterBrief {
	return wfmodel.ChapterBrief{ChapterNumber: o.ChapterNumber, Title: o.Title, Summary: o.Summary}
}

func tailRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[len(r)-n:])
}

// requestIndex 选定版本写入检索索引，失败只记录告警
func requestIndex(ctx context.Context, indexer retrieval.IndexRequester, chapter *entity.Chapter, outline *entity.ChapterOutline, v *entity.ChapterVersion) {
	req := retrieval.IndexRequest{
		ProjectID:     chapter.ProjectID,
		ChapterID:     chapter.ID,
		ChapterNumber: chapter.ChapterNumber,
		VersionID:     v.ID,
		VersionLabel:  v.VersionLabel,
		Content:       v.Content,
	}
	if outline != nil {
		req.ChapterTitle = outline.Title
	}
	reqCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := indexer.RequestIndex(reqCtx, req); err != nil {
		logger.Warn(ctx, "retrieval index request failed", "chapter_number", chapter.ChapterNumber, "error", err.Error())
	}
}

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
