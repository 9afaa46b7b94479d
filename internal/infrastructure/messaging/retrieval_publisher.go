package messaging

import (
	"context"

	"z-novel-plan-api/internal/application/retrieval"
)

// RetrievalPublisher 将检索索引的清理与写入请求投递到 Redis Streams，由 job-worker 异步执行
type RetrievalPublisher struct {
	producer *Producer
}

func NewRetrievalPublisher(producer *Producer) *RetrievalPublisher {
	return &RetrievalPublisher{producer: producer}
}

var (
	_ retrieval.PurgeRequester = (*RetrievalPublisher)(nil)
	_ retrieval.IndexRequester = (*RetrievalPublisher)(nil)
)

// RequestPurge 投递清理请求
func (p *RetrievalPublisher) RequestPurge(ctx context.Context, req retrieval.PurgeRequest) error {
	_, err := p.producer.PublishPurge(ctx, &PurgeMessage{
		ProjectID:   req.ProjectID,
		FromChapter: req.FromChapter,
		ChapterIDs:  req.ChapterIDs,
		VersionID:   req.VersionID,
		Reason:      req.Reason,
	})
	return err
}

// RequestIndex 投递索引写入请求；正文不随消息传递，消费端按版本 ID 回查
func (p *RetrievalPublisher) RequestIndex(ctx context.Context, req retrieval.IndexRequest) error {
	_, err := p.producer.PublishIndex(ctx, &IndexMessage{
		ProjectID:     req.ProjectID,
		ChapterID:     req.ChapterID,
		ChapterNumber: req.ChapterNumber,
		VersionID:     req.VersionID,
	})
	return err
}
