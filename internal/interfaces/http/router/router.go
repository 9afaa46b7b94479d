// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"z-novel-plan-api/internal/config"
	"z-novel-plan-api/internal/interfaces/http/handler"
	"z-novel-plan-api/internal/interfaces/http/middleware"
)

// Handlers 路由依赖的处理器集合
type Handlers struct {
	Health         *handler.HealthHandler
	Blueprint      *handler.BlueprintHandler
	PartOutline    *handler.PartOutlineHandler
	ChapterOutline *handler.ChapterOutlineHandler
	Chapter        *handler.ChapterHandler
	Job            *handler.JobHandler
	Progress       *handler.ProgressHandler
}

// Router HTTP 路由器
type Router struct {
	engine   *gin.Engine
	cfg      *config.Config
	handlers *Handlers
	limiter  middleware.RateLimiter
}

// New 创建路由器；limiter 为 nil 时不对生成接口限流
func New(cfg *config.Config, handlers *Handlers, limiter middleware.RateLimiter) *Router {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := &Router{
		engine:   gin.New(),
		cfg:      cfg,
		handlers: handlers,
		limiter:  limiter,
	}
	r.setupMiddleware()
	r.setupRoutes()
	return r
}

// Engine 返回 Gin Engine
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

func (r *Router) setupMiddleware() {
	r.engine.Use(middleware.Recovery())
	r.engine.Use(middleware.RequestID())
	r.engine.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: r.cfg.Security.CORS.AllowedOrigins,
		AllowedMethods: r.cfg.Security.CORS.AllowedMethods,
		AllowedHeaders: r.cfg.Security.CORS.AllowedHeaders,
	}))

	if r.cfg.Observability.Tracing.Enabled {
		r.engine.Use(middleware.Trace(r.cfg.App.Name, "/health", "/live", "/ready", r.cfg.Observability.Metrics.Path))
		r.engine.Use(middleware.TraceContext())
	}

	if r.cfg.Observability.Metrics.Enabled {
		r.engine.Use(middleware.Metrics())
	}
}

func (r *Router) setupRoutes() {
	health := r.handlers.Health
	if health == nil {
		health = handler.NewHealthHandler(r.cfg.App.Version)
	}
	r.engine.GET("/health", health.Health)
	r.engine.GET("/ready", health.Ready)
	r.engine.GET("/live", health.Live)

	if r.cfg.Observability.Metrics.Enabled && r.cfg.Observability.Metrics.Path != "" {
		r.engine.GET(r.cfg.Observability.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	rl := r.cfg.Security.RateLimit
	generate := middleware.RateLimit(middleware.RateLimitConfig{
		Enabled:           rl.Enabled,
		RequestsPerWindow: rl.RequestsPerWindow,
		Window:            rl.Window,
		KeyPrefix:         rl.KeyPrefix,
	}, r.limiter)

	RegisterV1Routes(r.engine.Group("/v1"), r.handlers, generate)
}
