package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-plan-api/internal/application/content"
	"z-novel-plan-api/internal/interfaces/http/dto"
	"z-novel-plan-api/pkg/errors"
)

// ChapterHandler 章节正文处理器
type ChapterHandler struct {
	pipeline *content.Pipeline
	jobs     *content.JobRunner
	selector *content.Selector
	// asyncDefault 请求未指定 async 时的默认模式
	asyncDefault bool
}

// NewChapterHandler 创建章节正文处理器；jobs 为 nil 时只支持同步生成
func NewChapterHandler(pipeline *content.Pipeline, jobs *content.JobRunner, selector *content.Selector, asyncDefault bool) *ChapterHandler {
	return &ChapterHandler{
		pipeline:     pipeline,
		jobs:         jobs,
		selector:     selector,
		asyncDefault: asyncDefault && jobs != nil,
	}
}

// GetChapter 获取章节详情
// @Summary 获取章节正文详情
// @Description 包含章节状态、全部版本与评审
// @Tags Chapters
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "章节号"
// @Success 200 {object} dto.Response[content.ChapterDetail]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters/{n} [get]
func (h *ChapterHandler) GetChapter(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	detail, err := h.selector.Get(c.Request.Context(), dto.BindProjectID(c), n)
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, detail)
}

// GenerateVersions 生成章节正文版本
// @Summary 生成章节正文
// @Description 追加新版本；async=true 时返回 202 与任务 ID
// @Tags Chapters
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "章节号"
// @Param body body dto.GenerateContentRequest false "生成参数"
// @Success 200 {object} dto.Response[content.GenerateResult]
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters/{n}/versions [post]
func (h *ChapterHandler) GenerateVersions(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	var req dto.GenerateContentRequest
	if !bindBody(c, &req) {
		return
	}

	async := h.asyncDefault
	if req.Async != nil {
		async = *req.Async
	}
	ctx := c.Request.Context()
	projectID := dto.BindProjectID(c)

	if async {
		if h.jobs == nil {
			writeError(c, errors.New(errors.CodeServiceUnavailable, "async generation is not enabled"))
			return
		}
		job, err := h.jobs.Submit(ctx, projectID, n, req.ToRequest())
		if err != nil {
			writeError(c, err)
			return
		}
		dto.Accepted(c, dto.ToJobResponse(job))
		return
	}

	result, err := h.pipeline.Generate(ctx, projectID, n, req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}

// SelectVersion 选定当前版本
// @Summary 选定章节版本
// @Tags Chapters
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "章节号"
// @Param body body dto.SelectVersionRequest true "版本"
// @Success 200 {object} dto.Response[entity.Chapter]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters/{n}/select-version [post]
func (h *ChapterHandler) SelectVersion(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	var req dto.SelectVersionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(err, errors.CodeInvalidParam, "version_id is required"))
		return
	}
	chapter, err := h.selector.Select(c.Request.Context(), dto.BindProjectID(c), n, req.VersionID)
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, chapter)
}

// DeleteVersion 删除章节版本
// @Summary 删除章节版本
// @Tags Chapters
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "章节号"
// @Param vid path string true "版本 ID"
// @Success 200 {object} dto.Response[entity.Chapter]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters/{n}/versions/{vid} [delete]
func (h *ChapterHandler) DeleteVersion(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	chapter, err := h.selector.DeleteVersion(c.Request.Context(), dto.BindProjectID(c), n, dto.BindVersionID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, chapter)
}

// EvaluateChapter 记录章节评审
// @Summary 评审章节
// @Description decision 为空时由模型评审当前选定版本
// @Tags Chapters
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "章节号"
// @Param body body dto.EvaluateChapterRequest false "评审"
// @Success 201 {object} dto.Response[entity.ChapterEvaluation]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapters/{n}/evaluations [post]
func (h *ChapterHandler) EvaluateChapter(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	var req dto.EvaluateChapterRequest
	if !bindBody(c, &req) {
		return
	}
	evaluation, err := h.selector.Evaluate(c.Request.Context(), dto.BindProjectID(c), n, req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Created(c, evaluation)
}
