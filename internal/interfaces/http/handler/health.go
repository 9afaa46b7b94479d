// Package handler 提供 HTTP 请求处理器
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// HealthChecker 依赖的健康探测
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type dependency struct {
	name     string
	checker  HealthChecker
	required bool
}

// HealthHandler 健康检查处理器
type HealthHandler struct {
	version string
	deps    []dependency
}

// NewHealthHandler 创建健康检查处理器
func NewHealthHandler(version string) *HealthHandler {
	return &HealthHandler{version: version}
}

// Require 注册必需依赖；探测失败时服务未就绪
func (h *HealthHandler) Require(name string, checker HealthChecker) *HealthHandler {
	h.deps = append(h.deps, dependency{name: name, checker: checker, required: true})
	return h
}

// Optional 注册可选依赖；探测失败只标记 degraded
func (h *HealthHandler) Optional(name string, checker HealthChecker) *HealthHandler {
	h.deps = append(h.deps, dependency{name: name, checker: checker})
	return h
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
}

type readinessCheck struct {
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
	LatencyMs int64  `json:"latency_ms,omitempty"`
}

type readinessResponse struct {
	Status string                     `json:"status"`
	Checks map[string]*readinessCheck `json:"checks,omitempty"`
}

// Health 健康检查接口
// @Summary 健康检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok", Version: h.version})
}

// Ready 就绪检查接口
// @Summary 就绪检查
// @Description 探测数据库、缓存与向量库；可选依赖失败不影响就绪
// @Tags System
// @Produce json
// @Success 200 {object} readinessResponse
// @Failure 503 {object} readinessResponse
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	ready := true
	checks := make(map[string]*readinessCheck, len(h.deps))
	for _, dep := range h.deps {
		check := &readinessCheck{Status: "ok"}
		checks[dep.name] = check
		if dep.checker == nil {
			if dep.required {
				check.Status = "missing"
				ready = false
			} else {
				check.Status = "disabled"
			}
			continue
		}
		start := time.Now()
		err := dep.checker.HealthCheck(ctx)
		check.LatencyMs = time.Since(start).Milliseconds()
		if err == nil {
			continue
		}
		check.Error = err.Error()
		if dep.required {
			check.Status = "error"
			ready = false
		} else {
			check.Status = "degraded"
		}
	}

	resp := readinessResponse{Status: "ok", Checks: checks}
	if !ready {
		resp.Status = "not_ready"
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Live 存活检查接口
// @Summary 存活检查
// @Tags System
// @Produce json
// @Success 200 {object} HealthResponse
// @Router /live [get]
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "ok"})
}
