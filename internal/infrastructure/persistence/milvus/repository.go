// Package milvus 提供 Milvus 向量数据库访问层实现
package milvus

import (
	"context"
	"fmt"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-plan-api/pkg/metrics"
)

// Repository 章节片段向量仓储
type Repository struct {
	client *Client
}

// NewRepository 创建向量仓储
func NewRepository(client *Client) *Repository {
	return &Repository{client: client}
}

func (r *Repository) ready() error {
	if r == nil || r.client == nil || r.client.milvus == nil {
		return fmt.Errorf("milvus client not configured")
	}
	return nil
}

func observe(op string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.MilvusOpTotal.WithLabelValues(CollectionStorySegments, op, status).Inc()
}

// CreateCollection 创建集合
func (r *Repository) CreateCollection(ctx context.Context, schema *entity.Schema) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateCollection",
		trace.WithAttributes(attribute.String("collection", schema.CollectionName)))
	defer span.End()

	schema.CollectionName = r.client.CollectionName(schema.CollectionName)
	if err := r.client.milvus.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

// CreateIndex 创建 HNSW 索引
func (r *Repository) CreateIndex(ctx context.Context, collection string) error {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.CreateIndex",
		trace.WithAttributes(attribute.String("collection", collection)))
	defer span.End()

	metric := entity.COSINE
	if m := strings.ToUpper(r.client.config.MetricType); m != "" {
		metric = entity.MetricType(m)
	}
	idx, err := entity.NewIndexHNSW(
		metric,
		r.client.config.HNSWM,
		r.client.config.HNSWEfConstruction,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}

	if err := r.client.milvus.CreateIndex(ctx, r.client.CollectionName(collection), "vector", idx, false); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

// EnsureStorySegmentsCollection 确保 story_segments 集合与索引可用（不存在则创建）。
// 不会做 drop/rebuild 等破坏性操作。
func (r *Repository) EnsureStorySegmentsCollection(ctx context.Context) error {
	if err := r.ready(); err != nil {
		return err
	}

	exists, err := r.client.HasCollection(ctx, CollectionStorySegments)
	if err != nil {
		return err
	}
	if !exists {
		if err := r.CreateCollection(ctx, StorySegmentsSchema()); err != nil {
			return err
		}
		// 索引创建失败时集合仍可写入，留给运维补建
		_ = r.CreateIndex(ctx, CollectionStorySegments)
	}
	return r.client.LoadCollection(ctx, CollectionStorySegments)
}

// partition 返回项目分区；create 为 false 且分区不存在时返回空串
func (r *Repository) partition(ctx context.Context, projectID string, create bool) (string, error) {
	collName := r.client.CollectionName(CollectionStorySegments)
	name := PartitionName(projectID)

	has, err := r.client.milvus.HasPartition(ctx, collName, name)
	if err != nil {
		return "", fmt.Errorf("failed to check partition: %w", err)
	}
	if has {
		return name, nil
	}
	if !create {
		return "", nil
	}
	if err := r.client.milvus.CreatePartition(ctx, collName, name); err != nil {
		return "", fmt.Errorf("failed to create partition: %w", err)
	}
	return name, nil
}

// InsertSegments 插入章节片段
func (r *Repository) InsertSegments(ctx context.Context, projectID string, segments []*StorySegment) (err error) {
	if err := r.ready(); err != nil {
		return err
	}
	if len(segments) == 0 {
		return nil
	}
	ctx, span := tracer.Start(ctx, "milvus.InsertSegments",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.Int("count", len(segments)),
		))
	defer span.End()
	defer func() { observe("insert", err) }()

	partitionName, err := r.partition(ctx, projectID, true)
	if err != nil {
		span.RecordError(err)
		return err
	}

	n := len(segments)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	projectIDs := make([]string, n)
	chapterIDs := make([]string, n)
	chapterNumbers := make([]int64, n)
	versionIDs := make([]string, n)
	textContents := make([]string, n)
	for i, seg := range segments {
		ids[i] = seg.ID
		vectors[i] = seg.Vector
		projectIDs[i] = seg.ProjectID
		chapterIDs[i] = seg.ChapterID
		chapterNumbers[i] = seg.ChapterNumber
		versionIDs[i] = seg.VersionID
		textContents[i] = seg.TextContent
	}

	_, err = r.client.milvus.Insert(ctx, r.client.CollectionName(CollectionStorySegments), partitionName,
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnFloatVector("vector", VectorDimension, vectors),
		entity.NewColumnVarChar("project_id", projectIDs),
		entity.NewColumnVarChar("chapter_id", chapterIDs),
		entity.NewColumnInt64("chapter_number", chapterNumbers),
		entity.NewColumnVarChar("version_id", versionIDs),
		entity.NewColumnVarChar("text_content", textContents),
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to insert segments: %w", err)
	}
	return nil
}

// DeleteByExpr 在项目分区内按表达式删除；分区不存在视为无数据
func (r *Repository) DeleteByExpr(ctx context.Context, projectID, expr string) (err error) {
	if err := r.ready(); err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "milvus.DeleteByExpr",
		trace.WithAttributes(
			attribute.String("project_id", projectID),
			attribute.String("expr", expr),
		))
	defer span.End()
	defer func() { observe("delete", err) }()

	partitionName, err := r.partition(ctx, projectID, false)
	if err != nil {
		span.RecordError(err)
		return err
	}
	if partitionName == "" {
		return nil
	}

	if err = r.client.milvus.Delete(ctx, r.client.CollectionName(CollectionStorySegments), partitionName, expr); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to delete segments: %w", err)
	}
	return nil
}

// DeleteSegmentsByChapter 删除章节的所有片段
func (r *Repository) DeleteSegmentsByChapter(ctx context.Context, projectID, chapterID string) error {
	return r.DeleteByExpr(ctx, projectID, fmt.Sprintf(`chapter_id == "%s"`, chapterID))
}

// DeleteSegmentsByVersion 删除某个版本的片段
func (r *Repository) DeleteSegmentsByVersion(ctx context.Context, projectID, versionID string) error {
	return r.DeleteByExpr(ctx, projectID, fmt.Sprintf(`version_id == "%s"`, versionID))
}
