package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-plan-api/internal/application/outline"
	"z-novel-plan-api/internal/interfaces/http/dto"
	"z-novel-plan-api/pkg/errors"
)

// ChapterOutlineHandler 章节大纲处理器
type ChapterOutlineHandler struct {
	gen *outline.ChapterOutlineGenerator
}

// NewChapterOutlineHandler 创建章节大纲处理器
func NewChapterOutlineHandler(gen *outline.ChapterOutlineGenerator) *ChapterOutlineHandler {
	return &ChapterOutlineHandler{gen: gen}
}

// ListOutlines 获取章节大纲列表
// @Summary 获取章节大纲列表
// @Tags ChapterOutlines
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[dto.ChapterOutlineListResponse]
// @Router /v1/projects/{pid}/chapter-outlines [get]
func (h *ChapterOutlineHandler) ListOutlines(c *gin.Context) {
	outlines, err := h.gen.List(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, &dto.ChapterOutlineListResponse{Outlines: outlines, Total: len(outlines)})
}

// GenerateOutlines 按区间生成章节大纲
// @Summary 生成章节大纲
// @Description 起始章节不得越过已有大纲末尾；regenerate=false 时跳过已有章节
// @Tags ChapterOutlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.ChapterOutlineRangeRequest true "区间"
// @Success 200 {object} dto.Response[outline.RangeResult]
// @Failure 400 {object} dto.ErrorResponse
// @Failure 502 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapter-outlines [post]
func (h *ChapterOutlineHandler) GenerateOutlines(c *gin.Context) {
	var req dto.ChapterOutlineRangeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, errors.Wrap(err, errors.CodeInvalidRange, "start and end are required"))
		return
	}
	result, err := h.gen.GenerateRange(c.Request.Context(), dto.BindProjectID(c), req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}

// RegenerateOutline 重新生成单章大纲
// @Summary 重新生成章节大纲
// @Description 非最新章节需 cascade_delete=true，否则返回 409 与删除预览
// @Tags ChapterOutlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "章节号"
// @Param body body dto.RegenerateRequest false "重新生成参数"
// @Success 200 {object} dto.Response[outline.ChapterRegenerateResult]
// @Failure 409 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapter-outlines/{n}/regenerate [post]
func (h *ChapterOutlineHandler) RegenerateOutline(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	var req dto.RegenerateRequest
	if !bindBody(c, &req) {
		return
	}
	result, err := h.gen.Regenerate(c.Request.Context(), dto.BindProjectID(c), n, req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}

// UpdateOutline 手动编辑章节大纲
// @Summary 编辑章节大纲
// @Tags ChapterOutlines
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param n path int true "章节号"
// @Param body body dto.UpdateChapterOutlineRequest true "编辑字段"
// @Success 200 {object} dto.Response[entity.ChapterOutline]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapter-outlines/{n} [patch]
func (h *ChapterOutlineHandler) UpdateOutline(c *gin.Context) {
	n, ok := bindNumber(c, "n")
	if !ok {
		return
	}
	var req dto.UpdateChapterOutlineRequest
	if !bindBody(c, &req) {
		return
	}
	updated, err := h.gen.Update(c.Request.Context(), dto.BindProjectID(c), n, req.ToRequest())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, updated)
}

// DeleteLatestOutlines 删除最新的若干章大纲
// @Summary 删除最新章节大纲
// @Description 同时删除这些章节的正文、版本与评审
// @Tags ChapterOutlines
// @Produce json
// @Param pid path string true "项目 ID"
// @Param count query int false "删除章数" default(1)
// @Success 200 {object} dto.Response[outline.DeleteResult]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/chapter-outlines/latest [delete]
func (h *ChapterOutlineHandler) DeleteLatestOutlines(c *gin.Context) {
	count, err := dto.BindCount(c)
	if err != nil {
		writeError(c, errors.Wrap(err, errors.CodeInvalidParam, err.Error()))
		return
	}
	result, err := h.gen.DeleteLatest(c.Request.Context(), dto.BindProjectID(c), count)
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, result)
}
