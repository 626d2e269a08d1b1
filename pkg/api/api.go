// Package api 汇总 HTTP 接口，所有业务路由挂载在 /api/v1 之下.
package api

import (
	"github.com/gin-gonic/gin"

	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/router"
)

// BasePath 业务接口的路径前缀.
const BasePath = "/api/v1"

// RegisterRoutes 注册论文、健康检查、调度与文档路由.
func RegisterRoutes(e *gin.Engine, papers router.PaperHandlers, cfg configs.ServerConfig) *gin.Engine {
	v1 := e.Group(BasePath)

	router.RegisterPaperRoutes(v1, papers)
	router.RegisterHealthCheckRoute(v1)
	router.RegisterSchedulerRoutes(v1)
	router.RegisterSwaggerRoute(e, cfg)

	return e
}
