package dto

import (
	"time"

	"z-novel-plan-api/internal/domain/entity"
	"z-novel-plan-api/internal/domain/repository"
)

// JobResponse 任务响应
type JobResponse struct {
	ID            string          `json:"id"`
	ProjectID     string          `json:"project_id"`
	ChapterNumber int             `json:"chapter_number"`
	JobType       string          `json:"job_type"`
	Status        string          `json:"status"`
	Result        entity.FlexJSON `json:"result,omitempty"`
	ErrorMsg      string          `json:"error_msg,omitempty"`
	Progress      int             `json:"progress"`
	DurationMs    int             `json:"duration_ms,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	StartedAt     *time.Time      `json:"started_at,omitempty"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// ToJobResponse 转换为任务响应
func ToJobResponse(job *entity.GenerationJob) *JobResponse {
	if job == nil {
		return nil
	}
	return &JobResponse{
		ID:            job.ID,
		ProjectID:     job.ProjectID,
		ChapterNumber: job.ChapterNumber,
		JobType:       string(job.JobType),
		Status:        string(job.Status),
		Result:        job.OutputResult,
		ErrorMsg:      job.ErrorMessage,
		Progress:      job.Progress,
		DurationMs:    job.DurationMs,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
	}
}

// ToJobPage 转换任务分页结果
func ToJobPage(page *repository.PagedResult[*entity.GenerationJob]) ([]*JobResponse, *PageMeta) {
	items := make([]*JobResponse, 0, len(page.Items))
	for _, job := range page.Items {
		items = append(items, ToJobResponse(job))
	}
	return items, &PageMeta{
		Page:       page.Page,
		PageSize:   page.PageSize,
		Total:      page.Total,
		TotalPages: page.TotalPages,
	}
}
