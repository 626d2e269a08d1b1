package router

import (
	"net"
	"strconv"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/yeisme/papervault/docs"
	"github.com/yeisme/papervault/pkg/configs"
)

// RegisterSwaggerRoute 仅在调试模式下暴露 /swagger 文档.
// 监听通配地址时不写入 Host，由浏览器使用当前地址.
func RegisterSwaggerRoute(r *gin.Engine, cfg configs.ServerConfig) {
	if !cfg.Debug {
		return
	}

	docs.SwaggerInfo.Version = configs.AppVersion
	if ip := net.ParseIP(cfg.Host); ip != nil && !ip.IsUnspecified() {
		docs.SwaggerInfo.Host = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	}

	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.DocExpansion("none")))
}
