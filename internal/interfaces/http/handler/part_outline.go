package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-plan-api/internal/application/outline"
	"z-novel-plan-api/internal/interfaces/http/dto"
	"z-novel-plan-api/pkg/errors"
)

// PartOutlineHandler 分卷大纲处理器
type PartOutlineHandler struct {
	planner  *outline.PartPlanner
	chapters *outline.ChapterOutlineGenerator
}

// NewPartOutlineHandler 创建分卷大纲处理器
func NewPartOutlineHandler(planner *outline.PartPlanner, chapters *outline.ChapterOutlineGenerator) *PartOutlineHandler {
	return &PartOutlineHandler{planner: planner, chapters: chapters}
}

// ListParts 获取分卷列表
// @Summary 获取分卷大纲列表
// @Tags PartOutlines
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[outline.PartList]
// @Router /v1/projects/{pid}/part-outlines [get]
func (h *PartOutlineHandler) ListParts(c *gin.Context) {
	list, err := h.planner.List(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, list)
}

// PlanParts 首次规划分卷
// @Summary 规划分卷
// @Description 按总章节数与每卷章节数切分；已有分卷时返回 409
// @Tags PartOutlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.PlanPartsRequest false "规划参数"
// @Success 201 {object} dto.Response[outline.PlanResult]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/part-outlines [post]
func (h *PartOutlineHandler) PlanParts(c *gin.Context) {
	var req dto.PlanPartsRequest
	if !bindBody(c, &req) {
		return
	}
	result, err := h.planner.Plan(c.Request.Context(), dto.BindProjectID(c), req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Created(c, result)
}

// ContinuePlan 继续规划剩余章节
// @Summary 继续规划分卷
// @Tags PartOutlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.ContinuePlanRequest false "续规划参数"
// @Success 200 {object} dto.Response[outline.PlanResult]
// @Router /v1/projects/{pid}/part-outlines/continue [post]
func (h *PartOutlineHandler) ContinuePlan(c *gin.Context) {
	var req dto.ContinuePlanRequest
	if !bindBody(c, &req) {
		return
	}
	result, err := h.planner.ContinuePlan(c.Request.Context(), dto.BindProjectID(c), req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}

// RegeneratePart 重新生成单卷大纲
// @Summary 重新生成分卷大纲
// @Description 非最新分卷需 cascade_delete=true，否则返回 409 与删除预览
// @Tags PartOutlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "卷号"
// @Param body body dto.RegenerateRequest false "重新生成参数"
// @Success 200 {object} dto.Response[outline.RegenerateResult]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/part-outlines/{n}/regenerate [post]
func (h *PartOutlineHandler) RegeneratePart(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	var req dto.RegenerateRequest
	if !bindBody(c, &req) {
		return
	}
	result, err := h.planner.Regenerate(c.Request.Context(), dto.BindProjectID(c), n, req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}

// DeleteLatestParts 删除最新的若干卷
// @Summary 删除最新分卷
// @Tags PartOutlines
// @Produce json
// @Param pid path string true "项目 ID"
// @Param count query int false "删除卷数" default(1)
// @Success 200 {object} dto.Response[outline.DeleteResult]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/part-outlines/latest [delete]
func (h *PartOutlineHandler) DeleteLatestParts(c *gin.Context) {
	count, err := dto.BindCount(c)
	if err != nil {
		writeError(c, errors.Wrap(err, errors.CodeInvalidParam, err.Error()))
		return
	}
	result, err := h.planner.DeleteLatest(c.Request.Context(), dto.BindProjectID(c), count)
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}

// RegenerateAll 清空全部大纲与正文后重新规划
// @Summary 全量重新规划
// @Tags PartOutlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.RegenerateAllRequest false "规划参数"
// @Success 200 {object} dto.Response[outline.PlanResult]
// @Router /v1/projects/{pid}/part-outlines/regenerate-all [post]
func (h *PartOutlineHandler) RegenerateAll(c *gin.Context) {
	var req dto.RegenerateAllRequest
	if !bindBody(c, &req) {
		return
	}
	result, err := h.planner.RegenerateAll(c.Request.Context(), dto.BindProjectID(c), req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}

// GeneratePartChapters 为指定分卷生成章节大纲
// @Summary 生成分卷内章节大纲
// @Tags PartOutlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "卷号"
// @Param body body dto.PartChaptersRequest false "生成参数"
// @Success 200 {object} dto.Response[outline.RangeResult]
// @Router /v1/projects/{pid}/part-outlines/{n}/chapters [post]
func (h *PartOutlineHandler) GeneratePartChapters(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	var req dto.PartChaptersRequest
	if !bindBody(c, &req) {
		return
	}
	result, err := h.chapters.GenerateForPart(c.Request.Context(), dto.BindProjectID(c), n, req.Regenerate, req.Options())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}
