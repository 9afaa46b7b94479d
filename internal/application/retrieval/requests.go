package retrieval

import "context"

// PurgeRequest 删除提交后发出的索引清理请求
// 清理只按删除时确定的章节（或版本）ID 进行，与之后写入的新章节互不影响
type PurgeRequest struct {
	ProjectID string
	// FromChapter 级联起点，仅用于日志
	FromChapter int
	ChapterIDs  []string
	// VersionID 非空时只清理该版本的片段
	VersionID string
	Reason    string
}

// IndexRequest 选定版本写入索引的请求
type IndexRequest struct {
	ProjectID     string
	ChapterID     string
	ChapterNumber int
	ChapterTitle  string
	VersionID     string
	VersionLabel  string
	Content       string
}

// PurgeRequester 清理请求的投递方（消息队列或直接执行）
type PurgeRequester interface {
	RequestPurge(ctx context.Context, req PurgeRequest) error
}

// IndexRequester 索引写入请求的投递方
type IndexRequester interface {
	RequestIndex(ctx context.Context, req IndexRequest) error
}

// Requester 同时投递清理与索引请求
type Requester interface {
	PurgeRequester
	IndexRequester
}

// NopRequester 未启用检索索引时使用
type NopRequester struct{}

func (NopRequester) RequestPurge(context.Context, PurgeRequest) error { return nil }
func (NopRequester) RequestIndex(context.Context, IndexRequest) error { return nil }
