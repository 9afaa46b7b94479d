package retrieval

import (
	"context"
	"fmt"
	"strings"

	"z-novel-plan-api/pkg/logger"
	"z-novel-plan-api/pkg/metrics"
)

// Purger 执行索引清理：按章节 ID 或版本 ID 删除片段。
// 不按章节号范围删除，章节号在级联后会被新章节复用。
type Purger struct {
	vector VectorRepository
}

func NewPurger(vectorRepo VectorRepository) *Purger {
	return &Purger{vector: vectorRepo}
}

func (p *Purger) Purge(ctx context.Context, req PurgeRequest) error {
	if strings.TrimSpace(req.ProjectID) == "" {
		return fmt.Errorf("project_id is required")
	}
	if p == nil || p.vector == nil {
		metrics.RetrievalPurgeTotal.WithLabelValues("disabled").Inc()
		return ErrVectorDisabled
	}

	if req.VersionID != "" {
		if err := p.vector.DeleteSegmentsByVersion(ctx, req.ProjectID, req.VersionID); err != nil {
			metrics.RetrievalPurgeTotal.WithLabelValues("error").Inc()
			return err
		}
	} else {
		for _, id := range req.ChapterIDs {
			if err := p.vector.DeleteSegmentsByChapter(ctx, req.ProjectID, id); err != nil {
				metrics.RetrievalPurgeTotal.WithLabelValues("error").Inc()
				return err
			}
		}
	}

	metrics.RetrievalPurgeTotal.WithLabelValues("success").Inc()
	logger.Info(ctx, "retrieval segments purged",
		"from_chapter", req.FromChapter,
		"chapters", len(req.ChapterIDs),
		"version_id", req.VersionID,
		"reason", req.Reason,
	)
	return nil
}

// DirectRequester 进程内直接执行清理与索引，供未启用消息队列的部署使用
type DirectRequester struct {
	purger  *Purger
	indexer *Indexer
}

func NewDirectRequester(purger *Purger, indexer *Indexer) *DirectRequester {
	return &DirectRequester{purger: purger, indexer: indexer}
}

func (d *DirectRequester) RequestPurge(ctx context.Context, req PurgeRequest) error {
	return d.purger.Purge(ctx, req)
}

func (d *DirectRequester) RequestIndex(ctx context.Context, req IndexRequest) error {
	return d.indexer.IndexVersion(ctx, req)
}
