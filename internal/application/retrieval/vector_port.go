package retrieval

import (
	"context"
	"errors"
)

// ErrVectorDisabled 未启用检索索引，或 Milvus、Embedder 不可用
var ErrVectorDisabled = errors.New("vector retrieval is disabled")

// VectorRepository 片段向量存储，按项目隔离
type VectorRepository interface {
	EnsureStorySegmentsCollection(ctx context.Context) error
	DeleteSegmentsByChapter(ctx context.Context, projectID, chapterID string) error
	// DeleteSegmentsByVersion 只删除某个版本写入的片段
	DeleteSegmentsByVersion(ctx context.Context, projectID, versionID string) error
	InsertSegments(ctx context.Context, projectID string, segments []*VectorStorySegment) error
}

// VectorStorySegment 一个切片及其向量；TextContent 带有章节元数据前缀
type VectorStorySegment struct {
	ID            string
	ProjectID     string
	ChapterID     string
	ChapterNumber int64
	VersionID     string
	TextContent   string
	Vector        []float32
}
