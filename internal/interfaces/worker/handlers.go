// Package worker 注册 job-worker 消费的消息处理器
package worker

import (
	"context"
	"errors"
	"fmt"

	"z-novel-plan-api/internal/application/retrieval"
	"z-novel-plan-api/internal/domain/repository"
	"z-novel-plan-api/internal/infrastructure/messaging"
	"z-novel-plan-api/pkg/logger"
)

// JobExecutor 执行异步正文任务
type JobExecutor interface {
	Run(ctx context.Context, jobID string) error
	Abandon(ctx context.Context, jobID, reason string) error
}

// Purger 执行检索索引清理
type Purger interface {
	Purge(ctx context.Context, req retrieval.PurgeRequest) error
}

// Indexer 执行检索索引写入
type Indexer interface {
	IndexVersion(ctx context.Context, req retrieval.IndexRequest) error
}

// Handlers 消息处理器集合
type Handlers struct {
	jobs     JobExecutor
	purger   Purger
	indexer  Indexer
	chapters repository.ChapterRepository
	versions repository.ChapterVersionRepository
	outlines repository.ChapterOutlineRepository
}

// NewHandlers 创建消息处理器
func NewHandlers(
	jobs JobExecutor,
	purger Purger,
	indexer Indexer,
	chapters repository.ChapterRepository,
	versions repository.ChapterVersionRepository,
	outlines repository.ChapterOutlineRepository,
) *Handlers {
	return &Handlers{
		jobs:     jobs,
		purger:   purger,
		indexer:  indexer,
		chapters: chapters,
		versions: versions,
		outlines: outlines,
	}
}

// RegisterContent 注册正文生成流的处理器
func (h *Handlers) RegisterContent(c *messaging.Consumer) {
	c.RegisterHandler(messaging.TypeChapterContent, h.HandleContentJob)
	c.OnDeadLetter(messaging.TypeChapterContent, h.AbandonContentJob)
}

// RegisterRetrieval 注册检索索引流的处理器
func (h *Handlers) RegisterRetrieval(purge, index *messaging.Consumer) {
	purge.RegisterHandler(messaging.TypeRetrievalPurge, h.HandlePurge)
	index.RegisterHandler(messaging.TypeRetrievalIndex, h.HandleIndex)
}

// HandleContentJob 执行正文生成任务
func (h *Handlers) HandleContentJob(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.ContentJobMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		logger.Warn(ctx, "malformed content job payload, dropping", "error", err.Error())
		return nil
	}
	if payload.JobID == "" {
		logger.Warn(ctx, "content job without job_id, dropping")
		return nil
	}
	return h.jobs.Run(ctx, payload.JobID)
}

// AbandonContentJob 正文任务消息进入死信队列后把任务与章节置为失败
func (h *Handlers) AbandonContentJob(ctx context.Context, msg *messaging.Message, cause error) {
	var payload messaging.ContentJobMessage
	if err := msg.UnmarshalPayload(&payload); err != nil || payload.JobID == "" {
		return
	}
	reason := "worker retries exhausted: " + cause.Error()
	if err := h.jobs.Abandon(ctx, payload.JobID, reason); err != nil {
		logger.Error(ctx, "failed to abandon content job", err, "job_id", payload.JobID)
	}
}

// HandlePurge 执行级联删除后的索引清理；未启用向量索引时直接确认
func (h *Handlers) HandlePurge(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.PurgeMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		logger.Warn(ctx, "malformed purge payload, dropping", "error", err.Error())
		return nil
	}
	err := h.purger.Purge(ctx, retrieval.PurgeRequest{
		ProjectID:   payload.ProjectID,
		FromChapter: payload.FromChapter,
		ChapterIDs:  payload.ChapterIDs,
		VersionID:   payload.VersionID,
		Reason:      payload.Reason,
	})
	if errors.Is(err, retrieval.ErrVectorDisabled) {
		logger.Debug(ctx, "vector retrieval disabled, purge skipped")
		return nil
	}
	return err
}

// HandleIndex 回查版本正文后写入索引；版本已删除或不再是选定版本时跳过
func (h *Handlers) HandleIndex(ctx context.Context, msg *messaging.Message) error {
	var payload messaging.IndexMessage
	if err := msg.UnmarshalPayload(&payload); err != nil {
		logger.Warn(ctx, "malformed index payload, dropping", "error", err.Error())
		return nil
	}

	chapter, err := h.chapters.GetByID(ctx, payload.ChapterID)
	if err != nil {
		return fmt.Errorf("load chapter: %w", err)
	}
	if chapter == nil || !chapter.HasSelection() || *chapter.SelectedVersionID != payload.VersionID {
		logger.Info(ctx, "stale index request skipped",
			"chapter_id", payload.ChapterID,
			"version_id", payload.VersionID,
		)
		return nil
	}
	version, err := h.versions.GetByID(ctx, payload.VersionID)
	if err != nil {
		return fmt.Errorf("load chapter version: %w", err)
	}
	if version == nil {
		return nil
	}

	req := retrieval.IndexRequest{
		ProjectID:     chapter.ProjectID,
		ChapterID:     chapter.ID,
		ChapterNumber: chapter.ChapterNumber,
		VersionID:     version.ID,
		VersionLabel:  version.VersionLabel,
		Content:       version.Content,
	}
	outline, err := h.outlines.GetByNumber(ctx, chapter.ProjectID, chapter.ChapterNumber)
	if err != nil {
		return fmt.Errorf("load chapter outline: %w", err)
	}
	if outline != nil {
		req.ChapterTitle = outline.Title
	}

	err = h.indexer.IndexVersion(ctx, req)
	if errors.Is(err, retrieval.ErrVectorDisabled) {
		logger.Debug(ctx, "vector retrieval disabled, index skipped")
		return nil
	}
	return err
}
