// Package middleware 提供 HTTP 中间件
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"z-novel-plan-api/pkg/metrics"
)

// Metrics Prometheus 指标采集中间件，路径标签使用路由模板避免基数膨胀
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		if reqSize := c.Request.ContentLength; reqSize > 0 {
			metrics.HTTPRequestSize.WithLabelValues(method, path).Observe(float64(reqSize))
		}

		c.Next()

		// WebSocket 连接的时长不代表请求耗时
		if c.IsWebsocket() {
			return
		}
		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if respSize := c.Writer.Size(); respSize > 0 {
			metrics.HTTPResponseSize.WithLabelValues(method, path).Observe(float64(respSize))
		}
	}
}
