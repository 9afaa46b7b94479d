package entity

import (
	"time"
)

// JobType 任务类型
type JobType string

const (
	JobTypeChapterContent JobType = "chapter_content"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// GenerationJob 异步生成任务
type GenerationJob struct {
	ID            string     `json:"id" gorm:"type:uuid;primaryKey"`
	ProjectID     string     `json:"project_id" gorm:"type:varchar(64);index;not null"`
	ChapterNumber int        `json:"chapter_number" gorm:"not null"`
	JobType       JobType    `json:"job_type" gorm:"type:varchar(32);not null"`
	Status        JobStatus  `json:"status" gorm:"type:varchar(32);default:'pending'"`
	InputParams   FlexJSON   `json:"input_params,omitempty" gorm:"type:jsonb"`
	OutputResult  FlexJSON   `json:"output_result,omitempty" gorm:"type:jsonb"`
	ErrorMessage  string     `json:"error_message,omitempty" gorm:"type:text"`
	DurationMs    int        `json:"duration_ms,omitempty"`
	RetryCount    int        `json:"retry_count" gorm:"default:0"`
	Progress      int        `json:"progress" gorm:"default:0"` // 任务进度 (0-100)
	CreatedAt     time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
	StartedAt     *time.Time `json:"started_at,omitempty"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// TableName 指定表名
func (GenerationJob) TableName() string {
	return "generation_jobs"
}

// NewGenerationJob 创建新任务
func NewGenerationJob(projectID string, chapterNumber int, jobType JobType, input FlexJSON) *GenerationJob {
	return &GenerationJob{
		ProjectID:     projectID,
		ChapterNumber: chapterNumber,
		JobType:       jobType,
		Status:        JobStatusPending,
		InputParams:   input,
		CreatedAt:     time.Now(),
	}
}

// Start 开始执行任务
func (j *GenerationJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.StartedAt = &now
}

// Complete 完成任务
func (j *GenerationJob) Complete(result FlexJSON) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.OutputResult = result
	j.Progress = 100
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Fail 任务失败
func (j *GenerationJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// Retry 重试任务
func (j *GenerationJob) Retry() {
	j.RetryCount++
	j.Status = JobStatusPending
	j.StartedAt = nil
	j.CompletedAt = nil
	j.ErrorMessage = ""
}

// CanRetry 检查是否可以重试
func (j *GenerationJob) CanRetry(maxRetries int) bool {
	return j.RetryCount < maxRetries && j.Status == JobStatusFailed
}

// IsFinished 是否已结束
func (j *GenerationJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
