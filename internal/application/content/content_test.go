package content

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"z-novel-plan-api/internal/application/retrieval"
	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
	"z-novel-plan-api/internal/infrastructure/messaging"
	"z-novel-plan-api/internal/infrastructure/persistence/postgres"
	wfmodel "z-novel-plan-api/internal/workflow/model"
	apperrors "z-novel-plan-api/pkg/errors"
)

const pid = "proj-1"

type fakeGenerator struct {
	calls       int
	contentErr  error
	lastContent *wfmodel.ChapterContentInput
	evalOut     *wfmodel.ChapterEvaluationOutput
	// during 在生成调用期间执行，模拟并发的级联删除
	during func()
}

func (f *fakeGenerator) GeneratePartOutline(context.Context, *wfmodel.PartOutlineInput) (*wfmodel.PartOutlineOutput, error) {
	return nil, errors.New("unused")
}

func (f *fakeGenerator) GenerateChapterOutlines(context.Context, *wfmodel.ChapterOutlineInput) (*wfmodel.ChapterOutlineOutput, error) {
	return nil, errors.New("unused")
}

func (f *fakeGenerator) GenerateChapterContent(_ context.Context, in *wfmodel.ChapterContentInput) (*wfmodel.ChapterContentOutput, error) {
	f.lastContent = in
	if f.during != nil {
		f.during()
	}
	if f.contentErr != nil {
		return nil, f.contentErr
	}
	f.calls++
	return &wfmodel.ChapterContentOutput{
		Content: fmt.Sprintf("第%d章第%d稿正文", in.Outline.ChapterNumber, f.calls),
		Meta:    wfmodel.LLMUsageMeta{Provider: "fake", Model: "fake-1"},
	}, nil
}

func (f *fakeGenerator) EvaluateChapter(context.Context, *wfmodel.ChapterEvaluationInput) (*wfmodel.ChapterEvaluationOutput, error) {
	if f.evalOut != nil {
		return f.evalOut, nil
	}
	return &wfmodel.ChapterEvaluationOutput{Decision: "accept", Feedback: "节奏紧凑", Score: 88}, nil
}

type recorder struct {
	index []retrieval.IndexRequest
	purge []retrieval.PurgeRequest
}

func (r *recorder) RequestIndex(_ context.Context, req retrieval.IndexRequest) error {
	r.index = append(r.index, req)
	return nil
}

func (r *recorder) RequestPurge(_ context.Context, req retrieval.PurgeRequest) error {
	r.purge = append(r.purge, req)
	return nil
}

type fakePublisher struct {
	messages []*messaging.ContentJobMessage
	err      error
}

func (f *fakePublisher) PublishContentJob(_ context.Context, job *messaging.ContentJobMessage) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.messages = append(f.messages, job)
	return "1-0", nil
}

type nilBlueprints struct{}

func (nilBlueprints) Find(context.Context, string) (*entity.Blueprint, error) { return nil, nil }

type env struct {
	ctx         context.Context
	outlines    *postgres.ChapterOutlineRepository
	chapters    *postgres.ChapterRepository
	versions    *postgres.ChapterVersionRepository
	evaluations *postgres.ChapterEvaluationRepository
	jobs        *postgres.JobRepository
	gen         *fakeGenerator
	rec         *recorder
	pub         *fakePublisher
	pipeline    *Pipeline
	selector    *Selector
	runner      *JobRunner
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: gormlogger.Discard})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	client := postgres.NewClientFromDB(db)
	require.NoError(t, client.AutoMigrate(context.Background()))

	e := &env{
		ctx:         context.Background(),
		outlines:    postgres.NewChapterOutlineRepository(client),
		chapters:    postgres.NewChapterRepository(client),
		versions:    postgres.NewChapterVersionRepository(client),
		evaluations: postgres.NewChapterEvaluationRepository(client),
		jobs:        postgres.NewJobRepository(client),
		gen:         &fakeGenerator{},
		rec:         &recorder{},
		pub:         &fakePublisher{},
	}
	e.pipeline = NewPipeline(postgres.NewTxManager(client), nilBlueprints{}, e.outlines, e.chapters, e.versions, e.gen, e.rec,
		Config{DefaultVersionCount: 1, MaxVersionCount: 3, TargetWordCount: 3000})
	e.selector = NewSelector(postgres.NewTxManager(client), nilBlueprints{}, e.outlines, e.chapters,
		e.versions, e.evaluations, e.gen, e.rec, e.rec)
	e.runner = NewJobRunner(e.pipeline, e.jobs, e.pub)

	for n := 1; n <= 3; n++ {
		require.NoError(t, e.outlines.Save(e.ctx, entity.NewChapterOutline(pid, n, fmt.Sprintf("第%d章", n), "概要")))
	}
	return e
}

func (e *env) versionsOf(t *testing.T, chapterID string) []*entity.ChapterVersion {
	t.Helper()
	list, err := e.versions.ListByChapter(e.ctx, chapterID)
	require.NoError(t, err)
	return list
}

func TestPipeline_RequiresOutline(t *testing.T) {
	e := newEnv(t)
	_, err := e.pipeline.Generate(e.ctx, pid, 9, GenerateRequest{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeChapterOutlineAbsent))

	_, err = e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{VersionCount: 9})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidRange))
}

func TestPipeline_AppendOnlyVersions(t *testing.T) {
	e := newEnv(t)

	res, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{VersionCount: 2})
	require.NoError(t, err)
	require.Len(t, res.Versions, 2)
	ch := res.Chapter
	assert.Equal(t, entity.ChapterStatusSuccessful, ch.Status)
	require.True(t, ch.HasSelection())
	first := res.Versions[0]
	assert.Equal(t, first.ID, *ch.SelectedVersionID)
	assert.Equal(t, entity.CountWords(first.Content), ch.WordCount)
	assert.Equal(t, "fake-1", first.Metadata.Model)
	require.Len(t, e.rec.index, 1)
	assert.Equal(t, first.ID, e.rec.index[0].VersionID)
	assert.Equal(t, "第1章", e.rec.index[0].ChapterTitle)

	res, err = e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{})
	require.NoError(t, err)
	require.Len(t, res.Versions, 1)
	assert.Equal(t, "v3", res.Versions[0].VersionLabel)
	assert.Equal(t, first.ID, *res.Chapter.SelectedVersionID, "existing selection is kept")
	assert.Len(t, e.rec.index, 1)

	all := e.versionsOf(t, ch.ID)
	require.Len(t, all, 3)
	assert.Equal(t, first.Content, all[0].Content)
}

func TestPipeline_FailureKeepsVersions(t *testing.T) {
	e := newEnv(t)
	res, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{})
	require.NoError(t, err)

	e.gen.contentErr = errors.New("provider timeout")
	_, err = e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))

	ch, err := e.chapters.GetByNumber(e.ctx, pid, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.ChapterStatusFailed, ch.Status)
	assert.Contains(t, ch.LastError, "provider timeout")
	assert.Equal(t, res.Versions[0].ID, *ch.SelectedVersionID)
	assert.Len(t, e.versionsOf(t, ch.ID), 1)
}

func TestPipeline_PreviousTail(t *testing.T) {
	e := newEnv(t)
	first, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{})
	require.NoError(t, err)

	_, err = e.pipeline.Generate(e.ctx, pid, 2, GenerateRequest{Prompt: "加快节奏"})
	require.NoError(t, err)
	in := e.gen.lastContent
	assert.Equal(t, first.Versions[0].Content, in.PreviousTail)
	assert.Equal(t, "加快节奏", in.Prompt)
	require.Len(t, in.RecentOutlines, 1)
	assert.Equal(t, 1, in.RecentOutlines[0].ChapterNumber)
}

// deleteChapter 按级联顺序删除章节及其大纲：评审 → 版本 → 章节 → 大纲
func (e *env) deleteChapter(t *testing.T, chapterNumber int) {
	t.Helper()
	ch, err := e.chapters.GetByNumber(e.ctx, pid, chapterNumber)
	require.NoError(t, err)
	if ch != nil {
		ids := []string{ch.ID}
		_, err = e.evaluations.DeleteByChapterIDs(e.ctx, ids)
		require.NoError(t, err)
		_, err = e.versions.DeleteByChapterIDs(e.ctx, ids)
		require.NoError(t, err)
		_, err = e.chapters.DeleteByIDs(e.ctx, ids)
		require.NoError(t, err)
	}
	_, err = e.outlines.DeleteFromNumber(e.ctx, pid, chapterNumber)
	require.NoError(t, err)
}

func TestPipeline_ChapterDeletedDuringGeneration(t *testing.T) {
	e := newEnv(t)
	first, err := e.pipeline.Generate(e.ctx, pid, 3, GenerateRequest{})
	require.NoError(t, err)
	chapterID := first.Chapter.ID
	indexed := len(e.rec.index)

	e.gen.during = func() { e.deleteChapter(t, 3) }
	_, err = e.pipeline.Generate(e.ctx, pid, 3, GenerateRequest{})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeChapterNotFound))

	ch, err := e.chapters.GetByNumber(e.ctx, pid, 3)
	require.NoError(t, err)
	assert.Nil(t, ch, "deleted chapter must not be written back")
	stored, err := e.chapters.GetByID(e.ctx, chapterID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Empty(t, e.versionsOf(t, chapterID))
	assert.Len(t, e.rec.index, indexed)

	// 章节行仍在但大纲已删除时同样放弃写入
	e.gen.during = nil
	second, err := e.pipeline.Generate(e.ctx, pid, 2, GenerateRequest{})
	require.NoError(t, err)
	e.gen.during = func() {
		_, err := e.outlines.DeleteFromNumber(e.ctx, pid, 2)
		require.NoError(t, err)
	}
	_, err = e.pipeline.Generate(e.ctx, pid, 2, GenerateRequest{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeChapterOutlineAbsent))
	assert.Len(t, e.versionsOf(t, second.Chapter.ID), 1)
}

func TestJobRunner_ChapterDeletedDuringRun(t *testing.T) {
	e := newEnv(t)
	job, err := e.runner.Submit(e.ctx, pid, 3, GenerateRequest{})
	require.NoError(t, err)
	ch, err := e.chapters.GetByNumber(e.ctx, pid, 3)
	require.NoError(t, err)

	e.gen.during = func() { e.deleteChapter(t, 3) }
	require.NoError(t, e.runner.Run(e.ctx, job.ID))

	failed, err := e.runner.Get(e.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, failed.Status)
	stored, err := e.chapters.GetByID(e.ctx, ch.ID)
	require.NoError(t, err)
	assert.Nil(t, stored)
	assert.Empty(t, e.versionsOf(t, ch.ID))
}

func TestSelector_SelectAfterConcurrentSelection(t *testing.T) {
	e := newEnv(t)
	res, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{VersionCount: 2})
	require.NoError(t, err)
	second := res.Versions[1]

	// 生成期间用户已选定其他版本，新版本不得覆盖该选定
	e.gen.during = func() {
		_, err := e.selector.Select(e.ctx, pid, 1, second.ID)
		require.NoError(t, err)
	}
	_, err = e.selector.DeleteVersion(e.ctx, pid, 1, res.Versions[0].ID)
	require.NoError(t, err)
	more, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{})
	require.NoError(t, err)
	require.NotNil(t, more.Chapter.SelectedVersionID)
	assert.Equal(t, second.ID, *more.Chapter.SelectedVersionID)
}

func TestTailRunes(t *testing.T) {
	assert.Equal(t, "短", tailRunes("短", 3))
	assert.Equal(t, "丙丁", tailRunes("甲乙丙丁", 2))
}

func TestSelector_SelectIdempotent(t *testing.T) {
	e := newEnv(t)
	res, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{VersionCount: 2})
	require.NoError(t, err)
	second := res.Versions[1]

	ch1, err := e.selector.Select(e.ctx, pid, 1, second.ID)
	require.NoError(t, err)
	ch2, err := e.selector.Select(e.ctx, pid, 1, second.ID)
	require.NoError(t, err)
	assert.Equal(t, *ch1.SelectedVersionID, *ch2.SelectedVersionID)
	assert.Equal(t, ch1.WordCount, ch2.WordCount)
	assert.Equal(t, entity.CountWords(second.Content), ch2.WordCount)
	assert.Len(t, e.rec.index, 2)

	other, err := e.pipeline.Generate(e.ctx, pid, 2, GenerateRequest{})
	require.NoError(t, err)
	_, err = e.selector.Select(e.ctx, pid, 1, other.Versions[0].ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVersionNotFound))

	_, err = e.selector.Select(e.ctx, pid, 3, second.ID)
	assert.True(t, apperrors.IsCode(err, apperrors.CodeChapterNotFound))
}

func TestSelector_DeleteVersion(t *testing.T) {
	e := newEnv(t)
	res, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{VersionCount: 2})
	require.NoError(t, err)
	v1, v2 := res.Versions[0], res.Versions[1]
	_, err = e.selector.Evaluate(e.ctx, pid, 1, EvaluateRequest{VersionID: v1.ID, Decision: entity.DecisionRevise, Score: 60})
	require.NoError(t, err)

	ch, err := e.selector.DeleteVersion(e.ctx, pid, 1, v1.ID)
	require.NoError(t, err)
	assert.False(t, ch.HasSelection())
	assert.Zero(t, ch.WordCount)
	assert.Equal(t, entity.ChapterStatusSuccessful, ch.Status)
	require.Len(t, e.rec.purge, 1)
	assert.Equal(t, []string{ch.ID}, e.rec.purge[0].ChapterIDs)
	assert.Equal(t, v1.ID, e.rec.purge[0].VersionID)

	evals, err := e.evaluations.ListByChapter(e.ctx, ch.ID)
	require.NoError(t, err)
	assert.Empty(t, evals)

	ch, err = e.selector.DeleteVersion(e.ctx, pid, 1, v2.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ChapterStatusNotGenerated, ch.Status)
	assert.Len(t, e.rec.purge, 1)

	stored, err := e.chapters.GetByNumber(e.ctx, pid, 1)
	require.NoError(t, err)
	assert.Nil(t, stored.SelectedVersionID)
	assert.Equal(t, entity.ChapterStatusNotGenerated, stored.Status)
}

func TestSelector_MalformedVersionID(t *testing.T) {
	e := newEnv(t)
	_, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{})
	require.NoError(t, err)

	_, err = e.selector.Select(e.ctx, pid, 1, "not-a-uuid")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVersionNotFound))
	_, err = e.selector.DeleteVersion(e.ctx, pid, 1, "not-a-uuid")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVersionNotFound))
	_, err = e.selector.Evaluate(e.ctx, pid, 1, EvaluateRequest{VersionID: "not-a-uuid", Decision: entity.DecisionAccept})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeVersionNotFound))

	_, err = e.runner.Get(e.ctx, "x")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeJobNotFound))
}

func TestSelector_Evaluate(t *testing.T) {
	e := newEnv(t)
	res, err := e.pipeline.Generate(e.ctx, pid, 1, GenerateRequest{})
	require.NoError(t, err)

	manual, err := e.selector.Evaluate(e.ctx, pid, 1, EvaluateRequest{Decision: entity.DecisionReject, Feedback: "跑题", Score: 20})
	require.NoError(t, err)
	assert.Equal(t, "manual", manual.Source)
	require.NotNil(t, manual.VersionID)
	assert.Equal(t, res.Versions[0].ID, *manual.VersionID)

	_, err = e.selector.Evaluate(e.ctx, pid, 1, EvaluateRequest{Decision: "maybe"})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeInvalidParam))

	llm, err := e.selector.Evaluate(e.ctx, pid, 1, EvaluateRequest{})
	require.NoError(t, err)
	assert.Equal(t, "llm", llm.Source)
	assert.Equal(t, entity.DecisionAccept, llm.Decision)
	assert.Equal(t, 88.0, llm.Score)

	e.gen.evalOut = &wfmodel.ChapterEvaluationOutput{Decision: "perfect", Score: 99}
	_, err = e.selector.Evaluate(e.ctx, pid, 1, EvaluateRequest{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeGenerationFailed))

	detail, err := e.selector.Get(e.ctx, pid, 1)
	require.NoError(t, err)
	assert.Len(t, detail.Versions, 1)
	assert.Len(t, detail.Evaluations, 2)
	assert.Equal(t, "第1章", detail.Outline.Title)
}

func TestJobRunner_SubmitAndRun(t *testing.T) {
	e := newEnv(t)

	job, err := e.runner.Submit(e.ctx, pid, 2, GenerateRequest{VersionCount: 2, Prompt: "夜戏"})
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusPending, job.Status)
	require.Len(t, e.pub.messages, 1)
	assert.Equal(t, job.ID, e.pub.messages[0].JobID)
	assert.Equal(t, 2, e.pub.messages[0].VersionCount)

	ch, err := e.chapters.GetByNumber(e.ctx, pid, 2)
	require.NoError(t, err)
	assert.Equal(t, entity.ChapterStatusGenerating, ch.Status)

	require.NoError(t, e.runner.Run(e.ctx, job.ID))
	done, err := e.runner.Get(e.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusCompleted, done.Status)
	assert.Equal(t, 100, done.Progress)
	assert.Contains(t, string(done.OutputResult), "version_ids")
	assert.Len(t, e.versionsOf(t, ch.ID), 2)
	assert.Equal(t, "夜戏", e.gen.lastContent.Prompt)

	calls := e.gen.calls
	require.NoError(t, e.runner.Run(e.ctx, job.ID))
	assert.Equal(t, calls, e.gen.calls, "finished job is not rerun")

	_, err = e.runner.Get(e.ctx, "00000000-0000-0000-0000-000000000000")
	assert.True(t, apperrors.IsCode(err, apperrors.CodeJobNotFound))
}

func TestJobRunner_List(t *testing.T) {
	e := newEnv(t)
	for n := 1; n <= 3; n++ {
		_, err := e.runner.Submit(e.ctx, pid, n, GenerateRequest{})
		require.NoError(t, err)
	}

	page, err := e.runner.List(e.ctx, pid, repository.NewPagination(2, 2))
	require.NoError(t, err)
	assert.Equal(t, int64(3), page.Total)
	assert.Equal(t, 2, page.TotalPages)
	assert.Len(t, page.Items, 1)

	empty, err := e.runner.List(e.ctx, "p2", repository.NewPagination(1, 0))
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 20, empty.PageSize)
}

func TestJobRunner_Failures(t *testing.T) {
	e := newEnv(t)

	e.pub.err = errors.New("redis down")
	_, err := e.runner.Submit(e.ctx, pid, 1, GenerateRequest{})
	assert.True(t, apperrors.IsCode(err, apperrors.CodeServiceUnavailable))
	ch, err := e.chapters.GetByNumber(e.ctx, pid, 1)
	require.NoError(t, err)
	assert.Equal(t, entity.ChapterStatusFailed, ch.Status)

	e.pub.err = nil
	job, err := e.runner.Submit(e.ctx, pid, 1, GenerateRequest{})
	require.NoError(t, err)
	e.gen.contentErr = errors.New("quota exceeded")
	require.NoError(t, e.runner.Run(e.ctx, job.ID))

	failed, err := e.runner.Get(e.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, failed.Status)
	assert.Contains(t, failed.ErrorMessage, "quota exceeded")
}

func TestJobRunner_Abandon(t *testing.T) {
	e := newEnv(t)

	job, err := e.runner.Submit(e.ctx, pid, 3, GenerateRequest{})
	require.NoError(t, err)
	require.NoError(t, e.runner.Abandon(e.ctx, job.ID, "retries exhausted"))

	failed, err := e.runner.Get(e.ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.JobStatusFailed, failed.Status)
	ch, err := e.chapters.GetByNumber(e.ctx, pid, 3)
	require.NoError(t, err)
	assert.Equal(t, entity.ChapterStatusFailed, ch.Status)

	assert.NoError(t, e.runner.Abandon(e.ctx, job.ID, "again"), "finished job is left as is")
	assert.NoError(t, e.runner.Abandon(e.ctx, "00000000-0000-0000-0000-000000000000", "missing"))
}
