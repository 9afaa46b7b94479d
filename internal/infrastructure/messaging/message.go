// Package messaging 提供基于 Redis Streams 的消息队列实现
package messaging

import (
	"encoding/json"
	"time"
)

// Message 消息结构
type Message struct {
	ID        string            `json:"id"`
	Type      string            `json:"type"`
	ProjectID string            `json:"project_id"`
	Payload   json.RawMessage   `json:"payload"`
	Metadata  map[string]string `json:"metadata"`
	CreatedAt time.Time         `json:"created_at"`
}

// NewMessage 创建新消息
func NewMessage(id, msgType, projectID string, payload any) (*Message, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Message{
		ID:        id,
		Type:      msgType,
		ProjectID: projectID,
		Payload:   payloadBytes,
		Metadata:  make(map[string]string),
		CreatedAt: time.Now(),
	}, nil
}

// SetMetadata 设置元数据
func (m *Message) SetMetadata(key, value string) {
	if value == "" {
		return
	}
	if m.Metadata == nil {
		m.Metadata = make(map[string]string)
	}
	m.Metadata[key] = value
}

// GetMetadata 获取元数据
func (m *Message) GetMetadata(key string) string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata[key]
}

// UnmarshalPayload 解析消息载荷
func (m *Message) UnmarshalPayload(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Stream 流定义
type Stream string

const (
	StreamContentGen     Stream = "stream:content:gen"
	StreamRetrievalPurge Stream = "stream:retrieval:purge"
	StreamRetrievalIndex Stream = "stream:retrieval:index"
)

// DLQStream 获取对应的死信队列流名称
func (s Stream) DLQStream() string {
	return "dlq:" + string(s)
}

// ConsumerGroup 消费者组定义
type ConsumerGroup string

const (
	ConsumerGroupContentWorker   ConsumerGroup = "cg-content-worker"
	ConsumerGroupRetrievalWorker ConsumerGroup = "cg-retrieval-worker"
)

// WithPrefix 按部署前缀区分共享同一 Redis 的环境
func (g ConsumerGroup) WithPrefix(prefix string) ConsumerGroup {
	if prefix == "" {
		return g
	}
	return ConsumerGroup(prefix + ":" + string(g))
}

// 消息类型
const (
	TypeChapterContent = "chapter_content"
	TypeRetrievalPurge = "retrieval_purge"
	TypeRetrievalIndex = "retrieval_index"
)

// ContentJobMessage 章节正文异步生成任务
type ContentJobMessage struct {
	JobID         string `json:"job_id"`
	ProjectID     string `json:"project_id"`
	ChapterNumber int    `json:"chapter_number"`
	Prompt        string `json:"prompt,omitempty"`
	VersionCount  int    `json:"version_count"`
}

// PurgeMessage 检索索引清理请求（级联删除或删除选定版本后发出）
type PurgeMessage struct {
	ProjectID   string   `json:"project_id"`
	FromChapter int      `json:"from_chapter,omitempty"`
	ChapterIDs  []string `json:"chapter_ids,omitempty"`
	VersionID   string   `json:"version_id,omitempty"`
	Reason      string   `json:"reason,omitempty"`
}

// IndexMessage 选定版本写入检索索引请求
type IndexMessage struct {
	ProjectID     string `json:"project_id"`
	ChapterID     string `json:"chapter_id"`
	ChapterNumber int    `json:"chapter_number"`
	VersionID     string `json:"version_id"`
}

// BackoffConfig 退避配置
type BackoffConfig struct {
	Initial    time.Duration
	Max        time.Duration
	Multiplier float64
}

// DefaultBackoffConfig 默认退避配置
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:    time.Second,
		Max:        time.Minute,
		Multiplier: 2,
	}
}

// CalculateBackoff 计算退避时间
func (c BackoffConfig) CalculateBackoff(retryCount int) time.Duration {
	backoff := c.Initial
	for i := 0; i < retryCount; i++ {
		backoff = time.Duration(float64(backoff) * c.Multiplier)
		if backoff > c.Max {
			backoff = c.Max
			break
		}
	}
	return backoff
}
