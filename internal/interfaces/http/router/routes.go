// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"

	"z-novel-plan-api/internal/interfaces/http/middleware"
)

// RegisterV1Routes 注册 v1 版本路由；generate 作用于触发 LLM 调用的接口
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers, generate gin.HandlerFunc) {
	project := v1.Group("/projects/:pid", middleware.ProjectScope())
	{
		// 蓝图
		project.GET("/blueprint", h.Blueprint.GetBlueprint)
		project.PUT("/blueprint", h.Blueprint.UpsertBlueprint)

		// 分卷大纲
		parts := project.Group("/part-outlines")
		{
			parts.GET("", h.PartOutline.ListParts)
			parts.POST("", generate, h.PartOutline.PlanParts)
			parts.POST("/continue", generate, h.PartOutline.ContinuePlan)
			parts.POST("/regenerate-all", generate, h.PartOutline.RegenerateAll)
			parts.DELETE("/latest", h.PartOutline.DeleteLatestParts)
			parts.POST("/:n/regenerate", generate, h.PartOutline.RegeneratePart)
			parts.POST("/:n/chapters", generate, h.PartOutline.GeneratePartChapters)
		}

		// 章节大纲
		outlines := project.Group("/chapter-outlines")
		{
			outlines.GET("", h.ChapterOutline.ListOutlines)
			outlines.POST("", generate, h.ChapterOutline.GenerateOutlines)
			outlines.DELETE("/latest", h.ChapterOutline.DeleteLatestOutlines)
			outlines.POST("/:n/regenerate", generate, h.ChapterOutline.RegenerateOutline)
			outlines.PATCH("/:n", h.ChapterOutline.UpdateOutline)
		}

		// 章节正文与版本
		chapters := project.Group("/chapters/:n")
		{
			chapters.GET("", h.Chapter.GetChapter)
			chapters.POST("/versions", generate, h.Chapter.GenerateVersions)
			chapters.DELETE("/versions/:vid", h.Chapter.DeleteVersion)
			chapters.POST("/select-version", h.Chapter.SelectVersion)
			chapters.POST("/evaluations", generate, h.Chapter.EvaluateChapter)
		}

		// 异步任务
		project.GET("/jobs", h.Job.ListJobs)

		// 进度
		project.GET("/progress", h.Progress.GetProgress)
		project.GET("/progress/ws", h.Progress.WatchProgress)
	}

	jobs := v1.Group("/jobs")
	{
		jobs.GET("/:jid", h.Job.GetJob)
	}
}
