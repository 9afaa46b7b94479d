package content

import (
	"context"

	"github.com/google/uuid"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
	"z-novel-plan-api/internal/infrastructure/messaging"
	apperrors "z-novel-plan-api/pkg/errors"
	"z-novel-plan-api/pkg/logger"
	"z-novel-plan-api/pkg/tracer"
)

// JobPublisher 异步任务投递
type JobPublisher interface {
	PublishContentJob(ctx context.Context, job *messaging.ContentJobMessage) (string, error)
}

// JobRunner 异步正文生成：创建任务并投递到消息队列，由 job-worker 执行
type JobRunner struct {
	pipeline  *Pipeline
	jobs      repository.JobRepository
	publisher JobPublisher
}

// NewJobRunner 创建异步任务执行器
func NewJobRunner(pipeline *Pipeline, jobs repository.JobRepository, publisher JobPublisher) *JobRunner {
	return &JobRunner{pipeline: pipeline, jobs: jobs, publisher: publisher}
}

// Submit 创建任务，章节置为 generating 后投递
func (r *JobRunner) Submit(ctx context.Context, projectID string, chapterNumber int, req GenerateRequest) (*entity.GenerationJob, error) {
	ctx, span := tracer.Start(ctx, "content.JobRunner.Submit")
	defer span.End()

	count, err := r.pipeline.versionCount(req.VersionCount)
	if err != nil {
		return nil, err
	}
	req.VersionCount = count
	if _, err := r.pipeline.requireOutline(ctx, projectID, chapterNumber); err != nil {
		return nil, err
	}

	input, err := entity.NewFlexJSON(req)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInvalidParam, "invalid generation request")
	}
	job := entity.NewGenerationJob(projectID, chapterNumber, entity.JobTypeChapterContent, input)
	if err := r.jobs.Create(ctx, job); err != nil {
		return nil, dbErr(err, "failed to create job")
	}

	chapter, err := r.pipeline.getOrCreateChapter(ctx, projectID, chapterNumber)
	if err != nil {
		return nil, err
	}
	chapter.StartGeneration()
	if err := r.pipeline.chapters.Update(ctx, chapter); err != nil {
		return nil, dbErr(err, "failed to update chapter")
	}

	msg := &messaging.ContentJobMessage{
		JobID:         job.ID,
		ProjectID:     projectID,
		ChapterNumber: chapterNumber,
		Prompt:        req.Prompt,
		VersionCount:  count,
	}
	if _, err := r.publisher.PublishContentJob(ctx, msg); err != nil {
		job.Fail("enqueue failed: " + err.Error())
		if uerr := r.jobs.Update(ctx, job); uerr != nil {
			logger.Warn(ctx, "failed to mark job failed", "job_id", job.ID, "error", uerr.Error())
		}
		chapter.MarkFailed("enqueue failed")
		if uerr := r.pipeline.chapters.Update(ctx, chapter); uerr != nil {
			logger.Warn(ctx, "failed to mark chapter failed", "error", uerr.Error())
		}
		return nil, tracer.Fail(span, apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "failed to enqueue generation job"))
	}

	logger.Info(ctx, "chapter content job submitted",
		"job_id", job.ID,
		"project_id", projectID,
		"chapter_number", chapterNumber,
	)
	return job, nil
}

// Run 执行任务；生成失败记录在任务与章节状态中，不返回错误，避免消息被重复投递
func (r *JobRunner) Run(ctx context.Context, jobID string) error {
	ctx, span := tracer.Start(ctx, "content.JobRunner.Run")
	defer span.End()
	ctx = logger.WithContext(ctx, logger.JobIDKey, jobID)

	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return tracer.Fail(span, err)
	}
	if job == nil {
		logger.Warn(ctx, "generation job not found, skipping")
		return nil
	}
	if job.IsFinished() {
		return nil
	}

	var req GenerateRequest
	if err := job.InputParams.Decode(&req); err != nil {
		job.Fail("invalid job input: " + err.Error())
		return r.jobs.Update(ctx, job)
	}

	job.Start()
	if err := r.jobs.Update(ctx, job); err != nil {
		return tracer.Fail(span, err)
	}

	outline, err := r.pipeline.requireOutline(ctx, job.ProjectID, job.ChapterNumber)
	if err != nil {
		job.Fail(err.Error())
		return r.jobs.Update(ctx, job)
	}
	chapter, err := r.pipeline.getOrCreateChapter(ctx, job.ProjectID, job.ChapterNumber)
	if err != nil {
		return tracer.Fail(span, err)
	}
	if chapter.Status != entity.ChapterStatusGenerating {
		chapter.StartGeneration()
		if err := r.pipeline.chapters.Update(ctx, chapter); err != nil {
			return tracer.Fail(span, err)
		}
	}

	count := req.VersionCount
	if count <= 0 {
		count = r.pipeline.cfg.DefaultVersionCount
	}
	result, genErr := r.pipeline.run(ctx, chapter, outline, req, count)
	if genErr != nil {
		job.Fail(genErr.Error())
		return r.jobs.Update(ctx, job)
	}

	ids := make([]string, 0, len(result.Versions))
	for _, v := range result.Versions {
		ids = append(ids, v.ID)
	}
	out, err := entity.NewFlexJSON(jobOutput{
		ChapterID:  result.Chapter.ID,
		VersionIDs: ids,
		WordCount:  result.Chapter.WordCount,
	})
	if err != nil {
		logger.Error(ctx, "failed to encode job output", err)
		job.Fail("invalid job output: " + err.Error())
		return r.jobs.Update(ctx, job)
	}
	job.Complete(out)
	return r.jobs.Update(ctx, job)
}

// jobOutput 任务完成时写入 output_result 的内容
type jobOutput struct {
	ChapterID  string   `json:"chapter_id"`
	VersionIDs []string `json:"version_ids"`
	WordCount  int      `json:"word_count"`
}

// Abandon 消息重试耗尽后把未结束的任务置为失败，仍在生成中的章节同步置为失败
func (r *JobRunner) Abandon(ctx context.Context, jobID, reason string) error {
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil || job.IsFinished() {
		return nil
	}
	job.Fail(reason)
	if err := r.jobs.Update(ctx, job); err != nil {
		return err
	}

	chapter, err := r.pipeline.chapters.GetByNumber(ctx, job.ProjectID, job.ChapterNumber)
	if err != nil {
		return err
	}
	if chapter == nil || chapter.Status != entity.ChapterStatusGenerating {
		return nil
	}
	chapter.MarkFailed(reason)
	return r.pipeline.chapters.Update(ctx, chapter)
}

// Get 查询任务；非法 ID 与不存在的任务同样返回 NotFound
func (r *JobRunner) Get(ctx context.Context, jobID string) (*entity.GenerationJob, error) {
	if _, err := uuid.Parse(jobID); err != nil {
		return nil, apperrors.NotFound(apperrors.CodeJobNotFound, "job %s not found", jobID)
	}
	job, err := r.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, dbErr(err, "failed to load job")
	}
	if job == nil {
		return nil, apperrors.NotFound(apperrors.CodeJobNotFound, "job %s not found", jobID)
	}
	return job, nil
}

// List 按创建时间倒序分页查询项目任务
func (r *JobRunner) List(ctx context.Context, projectID string, pagination repository.Pagination) (*repository.PagedResult[*entity.GenerationJob], error) {
	page, err := r.jobs.ListByProject(ctx, projectID, pagination)
	if err != nil {
		return nil, dbErr(err, "failed to list jobs")
	}
	return page, nil
}
