// Package messaging 提供基于 Redis Streams 的消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-plan-api/pkg/logger"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 100000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	// 透传请求上下文，便于消费端日志关联
	if reqID, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.SetMetadata("request_id", reqID)
	}
	if sc := span.SpanContext(); sc.IsValid() {
		msg.SetMetadata("trace_id", sc.TraceID().String())
	}

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// PublishContentJob 发布章节正文生成任务
func (p *Producer) PublishContentJob(ctx context.Context, job *ContentJobMessage) (string, error) {
	msg, err := NewMessage(job.JobID, TypeChapterContent, job.ProjectID, job)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("chapter_number", fmt.Sprintf("%d", job.ChapterNumber))
	return p.Publish(ctx, StreamContentGen, msg)
}

// PublishPurge 发布检索索引清理请求
func (p *Producer) PublishPurge(ctx context.Context, purge *PurgeMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypeRetrievalPurge, purge.ProjectID, purge)
	if err != nil {
		return "", err
	}
	msg.SetMetadata("chapters", fmt.Sprintf("%d", len(purge.ChapterIDs)))
	return p.Publish(ctx, StreamRetrievalPurge, msg)
}

// PublishIndex 发布检索索引写入请求
func (p *Producer) PublishIndex(ctx context.Context, index *IndexMessage) (string, error) {
	msg, err := NewMessage(uuid.NewString(), TypeRetrievalIndex, index.ProjectID, index)
	if err != nil {
		return "", err
	}
	return p.Publish(ctx, StreamRetrievalIndex, msg)
}
