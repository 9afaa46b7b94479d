package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-plan-api/internal/application/content"
	"z-novel-plan-api/internal/interfaces/http/dto"
	"z-novel-plan-api/pkg/errors"
)

// JobHandler 任务处理器
type JobHandler struct {
	jobs *content.JobRunner
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobs *content.JobRunner) *JobHandler {
	return &JobHandler{jobs: jobs}
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Description 获取异步正文生成任务的状态与结果
// @Tags Jobs
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}

// ListJobs 分页获取项目任务
// @Summary 获取项目任务列表
// @Description 按创建时间倒序返回项目的异步生成任务
// @Tags Jobs
// @Produce json
// @Param pid path string true "项目 ID"
// @Param page query int false "页码，默认 1"
// @Param page_size query int false "每页条数，默认 20，最大 100"
// @Success 200 {object} dto.Response[[]dto.JobResponse]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/jobs [get]
func (h *JobHandler) ListJobs(c *gin.Context) {
	pagination, err := dto.BindPagination(c)
	if err != nil {
		writeError(c, errors.Wrap(err, errors.CodeInvalidParam, err.Error()))
		return
	}
	page, err := h.jobs.List(c.Request.Context(), dto.BindProjectID(c), pagination)
	if err != nil {
		writeError(c, err)
		return
	}
	items, meta := dto.ToJobPage(page)
	dto.SuccessWithPage(c, items, meta)
}
