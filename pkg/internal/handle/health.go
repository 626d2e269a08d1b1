package handle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	ctxPkg "github.com/yeisme/papervault/pkg/context"
)

const timeout = 2 * time.Second

// HealthResponse 健康检查响应.
type HealthResponse struct {
	Component string `json:"component"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

func probe(c *gin.Context, component string, check func(ctx context.Context) error) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
	defer cancel()

	if err := check(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, HealthResponse{Component: component, Status: "unhealthy", Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, HealthResponse{Component: component, Status: "ok"})
}

func unavailable(what string) func(context.Context) error {
	return func(context.Context) error { return errors.New(what + " not initialized") }
}

// HealthDB 数据库健康检查.
//
//	@Summary	数据库健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/api/v1/health/db [get]
func HealthDB(c *gin.Context) {
	dbc := ctxPkg.GetDBClient(c.Request.Context())
	if dbc == nil || dbc.DB == nil {
		probe(c, "db", unavailable("db client"))
		return
	}

	probe(c, "db", dbc.HealthCheck)
}

// HealthS3 对象存储健康检查.
//
//	@Summary	对象存储健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/api/v1/health/s3 [get]
func HealthS3(c *gin.Context) {
	store := ctxPkg.GetBlobStore(c.Request.Context())
	if store == nil {
		probe(c, "s3", unavailable("object store"))
		return
	}

	probe(c, "s3", store.HealthCheck)
}

// HealthMQ 消息队列健康检查. 事件关闭时不建立连接，返回 disabled.
//
//	@Summary	消息队列健康检查
//	@Tags		健康检查
//	@Produce	json
//	@Success	200	{object}	HealthResponse
//	@Failure	503	{object}	HealthResponse
//	@Router		/api/v1/health/mq [get]
func HealthMQ(c *gin.Context) {
	mgr := ctxPkg.GetManager(c.Request.Context())
	if mgr == nil {
		probe(c, "mq", unavailable("storage manager"))
		return
	}

	if mgr.MQ == nil {
		c.JSON(http.StatusOK, HealthResponse{Component: "mq", Status: "disabled"})
		return
	}

	probe(c, "mq", mgr.MQ.HealthCheck)
}
