// Package middleware 提供 HTTP 中间件
package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"z-novel-plan-api/pkg/logger"
)

const maxProjectIDLen = 64

// ProjectScope 校验路径中的项目 ID，并写入日志上下文与当前 span
func ProjectScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID := strings.TrimSpace(c.Param("pid"))
		if projectID == "" || len(projectID) > maxProjectIDLen {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
				"code":     http.StatusBadRequest,
				"message":  "invalid project id",
				"trace_id": c.GetString("trace_id"),
			})
			return
		}

		c.Set("project_id", projectID)
		ctx := logger.WithContext(c.Request.Context(), logger.ProjectIDKey, projectID)
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("project_id", projectID))
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

// GetProjectID 从 Gin Context 中获取项目 ID
func GetProjectID(c *gin.Context) string {
	return c.GetString("project_id")
}
