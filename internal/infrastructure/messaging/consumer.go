// Package messaging 提供基于 Redis Streams 的消息队列实现
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-plan-api/pkg/logger"
	"z-novel-plan-api/pkg/metrics"
)

// MessageHandler 消息处理函数
type MessageHandler func(ctx context.Context, msg *Message) error

// DeadLetterHandler 消息转入死信队列后的回调，用于把业务状态收敛到失败
type DeadLetterHandler func(ctx context.Context, msg *Message, cause error)

var errRetriesExhausted = errors.New("message exceeded max retries")

const (
	readBatch    = 10
	pendingBatch = 20
)

// ConsumerConfig 消费者配置
type ConsumerConfig struct {
	Stream         Stream
	Group          ConsumerGroup
	ConsumerName   string
	BlockTimeout   time.Duration
	ClaimInterval  time.Duration
	HandlerTimeout time.Duration
	RetryLimit     int
	Backoff        BackoffConfig
}

func (cfg ConsumerConfig) withDefaults() ConsumerConfig {
	if cfg.BlockTimeout <= 0 {
		cfg.BlockTimeout = 5 * time.Second
	}
	if cfg.ClaimInterval <= 0 {
		cfg.ClaimInterval = 30 * time.Second
	}
	if cfg.RetryLimit <= 0 {
		cfg.RetryLimit = 3
	}
	if cfg.Backoff.Initial <= 0 {
		cfg.Backoff = DefaultBackoffConfig()
	}
	return cfg
}

// Consumer 单个流上的消费者组成员
//
// 处理失败的消息留在 PEL 中按退避重投，超过重试上限后写入 dlq 流并确认。
// 超过 reclaimIdle 未确认的其他成员消息会被接管。
type Consumer struct {
	client      *redis.Client
	cfg         ConsumerConfig
	reclaimIdle time.Duration

	mu          sync.RWMutex
	handlers    map[string]MessageHandler
	deadLetters map[string]DeadLetterHandler
	running     bool
	stopCh      chan struct{}
	done        chan struct{}
}

// NewConsumer 创建消息消费者
func NewConsumer(client *redis.Client, cfg ConsumerConfig) *Consumer {
	cfg = cfg.withDefaults()
	return &Consumer{
		client:      client,
		cfg:         cfg,
		reclaimIdle: max(5*time.Minute, cfg.Backoff.Max*2, cfg.HandlerTimeout*2),
		handlers:    make(map[string]MessageHandler),
		deadLetters: make(map[string]DeadLetterHandler),
	}
}

// RegisterHandler 注册消息处理器
func (c *Consumer) RegisterHandler(msgType string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[msgType] = handler
}

// OnDeadLetter 注册死信回调
func (c *Consumer) OnDeadLetter(msgType string, handler DeadLetterHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deadLetters[msgType] = handler
}

// Start 创建消费者组并启动拉取循环
func (c *Consumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return fmt.Errorf("consumer already running")
	}

	err := c.client.XGroupCreateMkStream(ctx, c.stream(), c.group(), "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("failed to create consumer group: %w", err)
	}

	c.running = true
	c.stopCh = make(chan struct{})
	c.done = make(chan struct{})
	go c.run(ctx, c.stopCh, c.done)
	return nil
}

// Stop 停止拉取，等待正在处理的消息结束
func (c *Consumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	close(c.stopCh)
	done := c.done
	c.mu.Unlock()
	<-done
}

func (c *Consumer) stream() string { return string(c.cfg.Stream) }
func (c *Consumer) group() string  { return string(c.cfg.Group) }

func (c *Consumer) run(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	log := logger.FromContext(ctx).With(
		"stream", c.cfg.Stream,
		"group", c.cfg.Group,
		"consumer", c.cfg.ConsumerName,
	)
	log.Info("consumer started")

	lastReclaim := time.Now().Add(-c.cfg.ClaimInterval)
	for {
		select {
		case <-ctx.Done():
			log.Info("consumer stopped due to context cancellation")
			return
		case <-stopCh:
			log.Info("consumer stopped")
			return
		default:
		}

		c.retryDue(ctx)
		if time.Since(lastReclaim) >= c.cfg.ClaimInterval {
			c.reclaimStale(ctx)
			lastReclaim = time.Now()
		}
		c.poll(ctx)
	}
}

// poll 阻塞读取新消息并逐条处理
func (c *Consumer) poll(ctx context.Context) {
	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.group(),
		Consumer: c.cfg.ConsumerName,
		Streams:  []string{c.stream(), ">"},
		Count:    readBatch,
		Block:    c.cfg.BlockTimeout,
	}).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) || ctx.Err() != nil {
			return
		}
		logger.Error(ctx, "failed to read from stream", err, "stream", c.cfg.Stream)
		time.Sleep(time.Second)
		return
	}
	for _, s := range streams {
		for _, xmsg := range s.Messages {
			c.process(ctx, xmsg)
		}
	}
}

// decode 解析流消息；格式错误的消息直接确认丢弃
func (c *Consumer) decode(ctx context.Context, xmsg redis.XMessage) (*Message, bool) {
	raw, ok := xmsg.Values["data"].(string)
	if !ok {
		logger.Warn(ctx, "invalid message format", "message_id", xmsg.ID)
		c.ack(ctx, xmsg.ID)
		return nil, false
	}
	var msg Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		logger.Error(ctx, "failed to unmarshal message", err, "message_id", xmsg.ID)
		c.ack(ctx, xmsg.ID)
		return nil, false
	}
	return &msg, true
}

// messageContext 把消息携带的项目与请求标识带入日志上下文
func messageContext(ctx context.Context, msg *Message) context.Context {
	if msg.ProjectID != "" {
		ctx = logger.WithContext(ctx, logger.ProjectIDKey, msg.ProjectID)
	}
	if reqID := msg.GetMetadata("request_id"); reqID != "" {
		ctx = logger.WithContext(ctx, logger.RequestIDKey, reqID)
	}
	if traceID := msg.GetMetadata("trace_id"); traceID != "" {
		ctx = logger.WithContext(ctx, logger.TraceIDKey, traceID)
	}
	return ctx
}

func (c *Consumer) process(ctx context.Context, xmsg redis.XMessage) {
	ctx, span := tracer.Start(ctx, "consumer.process",
		trace.WithAttributes(
			attribute.String("stream", c.stream()),
			attribute.String("stream.message_id", xmsg.ID),
		))
	defer span.End()

	msg, ok := c.decode(ctx, xmsg)
	if !ok {
		c.count("malformed")
		return
	}
	ctx = messageContext(ctx, msg)
	span.SetAttributes(
		attribute.String("message.id", msg.ID),
		attribute.String("message.type", msg.Type),
		attribute.String("project_id", msg.ProjectID),
	)

	c.mu.RLock()
	handler, exists := c.handlers[msg.Type]
	c.mu.RUnlock()
	if !exists {
		logger.Warn(ctx, "no handler for message type", "type", msg.Type)
		c.ack(ctx, xmsg.ID)
		c.count("unhandled")
		return
	}

	if err := c.invoke(ctx, handler, msg); err != nil {
		span.RecordError(err)
		logger.Error(ctx, "handler failed", err, "message_id", msg.ID, "type", msg.Type)
		c.count("error")
		c.settleFailure(ctx, xmsg.ID, msg, err)
		return
	}
	c.ack(ctx, xmsg.ID)
	c.count("success")
}

func (c *Consumer) invoke(ctx context.Context, handler MessageHandler, msg *Message) error {
	if c.cfg.HandlerTimeout <= 0 {
		return handler(ctx, msg)
	}
	hctx, cancel := context.WithTimeout(ctx, c.cfg.HandlerTimeout)
	defer cancel()
	return handler(hctx, msg)
}

// settleFailure 未超过重试上限的消息保留在 PEL 中，由 retryDue 按退避重投
func (c *Consumer) settleFailure(ctx context.Context, streamID string, msg *Message, err error) {
	retries := c.deliveries(ctx, streamID)
	if retries < c.cfg.RetryLimit {
		logger.Info(ctx, "message left pending for retry",
			"message_id", msg.ID,
			"retry_count", retries,
		)
		return
	}
	logger.Warn(ctx, "message moved to DLQ after max retries",
		"message_id", msg.ID,
		"retry_count", retries,
	)
	c.deadLetter(ctx, streamID, msg, err)
}

func (c *Consumer) deliveries(ctx context.Context, streamID string) int {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: c.stream(),
		Group:  c.group(),
		Start:  streamID,
		End:    streamID,
		Count:  1,
	}).Result()
	if err != nil || len(pending) == 0 {
		return 0
	}
	return int(pending[0].RetryCount)
}

// deadLetter 写入 dlq 流、触发回调并确认原消息
func (c *Consumer) deadLetter(ctx context.Context, streamID string, msg *Message, cause error) {
	data, _ := json.Marshal(map[string]any{
		"original_stream": c.stream(),
		"data":            msg,
		"error":           cause.Error(),
		"failed_at":       time.Now().Unix(),
	})
	err := c.client.XAdd(ctx, &redis.XAddArgs{
		Stream: c.cfg.Stream.DLQStream(),
		Values: map[string]any{"data": string(data)},
	}).Err()
	if err != nil {
		logger.Error(ctx, "failed to write DLQ", err, "message_id", msg.ID)
	}
	c.count("dlq")

	c.mu.RLock()
	onDead := c.deadLetters[msg.Type]
	c.mu.RUnlock()
	if onDead != nil {
		onDead(ctx, msg, cause)
	}
	c.ack(ctx, streamID)
}

func (c *Consumer) ack(ctx context.Context, streamID string) {
	if err := c.client.XAck(ctx, c.stream(), c.group(), streamID).Err(); err != nil {
		logger.Error(ctx, "failed to ack message", err, "message_id", streamID)
	}
}

func (c *Consumer) count(result string) {
	metrics.RedisStreamProcessed.WithLabelValues(c.stream(), result).Inc()
}

// claim 认领 pending 消息；已超过重试上限的不再执行，直接转入死信
func (c *Consumer) claim(ctx context.Context, p redis.XPendingExt, minIdle time.Duration) {
	claimed, err := c.client.XClaim(ctx, &redis.XClaimArgs{
		Stream:   c.stream(),
		Group:    c.group(),
		Consumer: c.cfg.ConsumerName,
		MinIdle:  minIdle,
		Messages: []string{p.ID},
	}).Result()
	if err != nil {
		logger.Error(ctx, "failed to claim pending message", err, "message_id", p.ID)
		return
	}

	exhausted := int(p.RetryCount) >= c.cfg.RetryLimit
	for _, xmsg := range claimed {
		if !exhausted {
			c.process(ctx, xmsg)
			continue
		}
		if msg, ok := c.decode(ctx, xmsg); ok {
			c.deadLetter(messageContext(ctx, msg), xmsg.ID, msg, errRetriesExhausted)
		}
	}
}

func (c *Consumer) pending(ctx context.Context, owner string) []redis.XPendingExt {
	pending, err := c.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream:   c.stream(),
		Group:    c.group(),
		Start:    "-",
		End:      "+",
		Count:    pendingBatch,
		Consumer: owner,
	}).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			logger.Error(ctx, "failed to query pending messages", err, "stream", c.cfg.Stream)
		}
		return nil
	}
	return pending
}

// retryDue 重投本成员名下退避已到期的消息
func (c *Consumer) retryDue(ctx context.Context) {
	for _, p := range c.pending(ctx, c.cfg.ConsumerName) {
		if int(p.RetryCount) >= c.cfg.RetryLimit {
			c.claim(ctx, p, 0)
			continue
		}
		wait := c.cfg.Backoff.CalculateBackoff(int(p.RetryCount))
		if p.Idle < wait {
			continue
		}
		c.claim(ctx, p, wait)
	}
}

// reclaimStale 接管其他成员长时间未确认的消息
func (c *Consumer) reclaimStale(ctx context.Context) {
	for _, p := range c.pending(ctx, "") {
		if p.Consumer == c.cfg.ConsumerName || p.Idle < c.reclaimIdle {
			continue
		}
		c.claim(ctx, p, c.reclaimIdle)
	}
}

// MonitorDLQ 定期检查死信队列长度，超过阈值时告警
func (c *Consumer) MonitorDLQ(ctx context.Context, alertThreshold int64) {
	c.mu.RLock()
	stopCh := c.stopCh
	c.mu.RUnlock()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	dlq := c.cfg.Stream.DLQStream()
	for {
		select {
		case <-ctx.Done():
			return
		case <-stopCh:
			return
		case <-ticker.C:
			n, err := c.client.XLen(ctx, dlq).Result()
			if err != nil {
				continue
			}
			if n > alertThreshold {
				logger.Warn(ctx, "DLQ has pending messages", "stream", dlq, "count", n)
			}
		}
	}
}
