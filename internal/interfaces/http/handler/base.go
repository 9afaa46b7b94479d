// Package handler 提供 HTTP 请求处理器
package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"z-novel-plan-api/internal/interfaces/http/dto"
	"z-novel-plan-api/pkg/errors"
	"z-novel-plan-api/pkg/logger"
)

// writeError 将应用错误映射为统一错误响应；非 AppError 一律按 500 处理且不暴露内部信息
func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()
	if !errors.IsAppError(err) {
		logger.Error(ctx, "unhandled error", err, "path", c.FullPath())
		dto.InternalError(c, "internal server error")
		return
	}

	appErr := errors.AsAppError(err)
	status := appErr.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	message := appErr.Message
	if status >= http.StatusInternalServerError && status != http.StatusBadGateway && status != http.StatusServiceUnavailable {
		logger.Error(ctx, "request failed", err, "path", c.FullPath(), "error_code", string(appErr.Code))
	} else {
		logger.Warn(ctx, "request rejected", "path", c.FullPath(), "error_code", string(appErr.Code), "error", err.Error())
	}

	dto.ErrorWithDetail(c, status, message, &dto.ErrorDetail{
		ErrorCode: string(appErr.Code),
		Details:   appErr.Detail,
		Meta:      appErr.Meta,
	})
}

// bindNumber 绑定路径中的序号参数，失败时直接写入 400
func bindNumber(c *gin.Context, name string) (int, bool) {
	n, err := dto.BindNumber(c, name)
	if err != nil {
		writeError(c, errors.Wrap(err, errors.CodeInvalidParam, err.Error()))
		return 0, false
	}
	return n, true
}

// bindBody 绑定可选请求体，失败时直接写入 400
func bindBody(c *gin.Context, obj any) bool {
	if err := dto.BindOptionalJSON(c, obj); err != nil {
		writeError(c, errors.Wrap(err, errors.CodeInvalidParam, "invalid request body: "+err.Error()))
		return false
	}
	return true
}
