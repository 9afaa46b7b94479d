package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-plan-api/internal/application/blueprint"
	"z-novel-plan-api/internal/interfaces/http/dto"
)

// BlueprintHandler 项目蓝图处理器
type BlueprintHandler struct {
	svc *blueprint.Service
}

// NewBlueprintHandler 创建蓝图处理器
func NewBlueprintHandler(svc *blueprint.Service) *BlueprintHandler {
	return &BlueprintHandler{svc: svc}
}

// GetBlueprint 获取蓝图
// @Summary 获取项目蓝图
// @Tags Blueprint
// @Produce json
// @Param pid path string true "项目 ID"
// @Success 200 {object} dto.Response[entity.Blueprint]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/blueprint [get]
func (h *BlueprintHandler) GetBlueprint(c *gin.Context) {
	bp, err := h.svc.Get(c.Request.Context(), dto.BindProjectID(c))
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, bp)
}

// UpsertBlueprint 创建或更新蓝图
// @Summary 创建或更新项目蓝图
// @Tags Blueprint
// @Accept json
// @Produce json
// @Param pid path string true "项目 ID"
// @Param body body dto.UpsertBlueprintRequest true "蓝图字段"
// @Success 200 {object} dto.Response[entity.Blueprint]
// @Failure 400 {object} dto.ErrorResponse
// @Router /v1/projects/{pid}/blueprint [put]
func (h *BlueprintHandler) UpsertBlueprint(c *gin.Context) {
	var req dto.UpsertBlueprintRequest
	if !bindBody(c, &req) {
		return
	}
	bp, err := h.svc.Upsert(c.Request.Context(), dto.BindProjectID(c), req.ToInput())
	if err != nil {
		writeError(c, err)
		return
	}
	dto.Success(c, bp)
}
