// Package router 管理路由配置，将处理器绑定到 gin 路由组.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/papervault/pkg/internal/handle"
)

// PaperHandlers 由应用层注入的论文处理器，实现见 pkg/internal/handle.
type PaperHandlers interface {
	Upload() gin.HandlerFunc
	List() gin.HandlerFunc
	Search() gin.HandlerFunc
	Get() gin.HandlerFunc
	Delete() gin.HandlerFunc
}

// RegisterPaperRoutes 绑定论文路由（假定 g 为 /api/v1）:
//
//	GET    /papers          -> List
//	GET    /papers/search   -> Search
//	POST   /papers/upload   -> Upload
//	GET    /papers/:id      -> Get
//	DELETE /papers/:id      -> Delete
func RegisterPaperRoutes(g *gin.RouterGroup, h PaperHandlers) {
	papers := g.Group("/papers")
	{
		papers.GET("", h.List())
		papers.GET("/search", h.Search())
		papers.POST("/upload", h.Upload())
		papers.GET("/:id", h.Get())
		papers.DELETE("/:id", h.Delete())
	}
}

// RegisterHealthCheckRoute 注册 db、s3、mq 三个健康检查路由.
func RegisterHealthCheckRoute(g *gin.RouterGroup) {
	health := g.Group("/health")
	{
		health.GET("/db", handle.HealthDB)
		health.GET("/s3", handle.HealthS3)
		health.GET("/mq", handle.HealthMQ)
	}
}

// RegisterSchedulerRoutes 注册定时任务的查看与手动触发路由.
func RegisterSchedulerRoutes(g *gin.RouterGroup) {
	jobs := g.Group("/scheduler/jobs")
	{
		jobs.GET("", handle.SchedulerJobs)
		jobs.POST("/:name/run", handle.SchedulerRunJob)
	}
}
