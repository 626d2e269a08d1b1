// Package app 提供应用程序的初始化和配置功能.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/yeisme/papervault/pkg/api"
	"github.com/yeisme/papervault/pkg/cache"
	"github.com/yeisme/papervault/pkg/configs"
	"github.com/yeisme/papervault/pkg/internal/handle"
	"github.com/yeisme/papervault/pkg/internal/jobs"
	"github.com/yeisme/papervault/pkg/internal/repository"
	"github.com/yeisme/papervault/pkg/internal/service"
	"github.com/yeisme/papervault/pkg/internal/storage"
	"github.com/yeisme/papervault/pkg/log"
	"github.com/yeisme/papervault/pkg/metrics"
	"github.com/yeisme/papervault/pkg/middleware"
	"github.com/yeisme/papervault/pkg/queue"
	"github.com/yeisme/papervault/pkg/rule"
	"github.com/yeisme/papervault/pkg/scheduler"
	"github.com/yeisme/papervault/pkg/tracing"
)

// App 持有 HTTP 引擎及其依赖的全部资源.
type App struct {
	Engine *gin.Engine

	config    *configs.AppConfig
	manager   *storage.Manager
	scheduler *scheduler.Scheduler
	papers    *service.PaperService
	cancel    context.CancelFunc
}

// Setup 加载配置并初始化日志、追踪与监控.
func Setup(configPath string, debug bool) (*configs.AppConfig, error) {
	if err := configs.InitConfig(configPath); err != nil {
		return nil, fmt.Errorf("init config: %w", err)
	}

	cfg := configs.GetConfig()
	if debug {
		cfg.Server.Debug = true
	}

	if err := rule.ValidateStruct(cfg.Server); err != nil {
		return nil, fmt.Errorf("invalid server config: %w", err)
	}

	if err := rule.ValidateStruct(cfg.Paper); err != nil {
		return nil, fmt.Errorf("invalid paper config: %w", err)
	}

	log.Configure(cfg.Log, cfg.Server.Debug, nil)

	if err := tracing.InitTracer(cfg.Tracing); err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	return cfg, nil
}

// NewPaperService 基于已初始化的存储资源组装论文服务.
func NewPaperService(mgr *storage.Manager, cfg *configs.AppConfig) *service.PaperService {
	var pub queue.Publisher
	if mgr.MQ != nil {
		pub = mgr.MQ
	}

	var c *cache.Cache
	if mgr.KV != nil {
		c = cache.New(mgr.KV, cfg.KV.Prefix)
	}

	return service.NewPaperService(service.Deps{
		Repo:   repository.NewGormRepository(mgr.DB.DB),
		Blob:   mgr.Blob,
		Cache:  c,
		Events: queue.NewEmitter(pub, cfg.Events),
		Config: cfg.Paper,
	})
}

// NewApp 初始化存储、服务、调度器与路由.
func NewApp(ctx context.Context, cfg *configs.AppConfig) (*App, error) {
	if !cfg.Server.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, cancel := context.WithCancel(ctx)

	manager, err := storage.New(ctx, cfg)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("init storage: %w", err)
	}

	papers := NewPaperService(manager, cfg)

	sched, err := scheduler.NewScheduler()
	if err != nil {
		cancel()
		_ = manager.Close()

		return nil, fmt.Errorf("init scheduler: %w", err)
	}

	if err := jobs.RegisterCronJobs(ctx, sched, papers, cfg.Paper); err != nil {
		cancel()
		_ = sched.Stop()
		_ = manager.Close()

		return nil, fmt.Errorf("register jobs: %w", err)
	}

	a := &App{
		config:    cfg,
		manager:   manager,
		scheduler: sched,
		papers:    papers,
		cancel:    cancel,
	}
	a.Engine = a.newEngine()

	return a, nil
}

func (a *App) newEngine() *gin.Engine {
	cfg := a.config
	engine := gin.New()

	l := log.Logger()
	gin.DefaultWriter = log.NewGinWriter(l, zerolog.InfoLevel)
	gin.DefaultErrorWriter = log.NewGinWriter(l, zerolog.ErrorLevel)

	engine.Use(
		gin.Recovery(),
		middleware.RequestIDMiddleware(),
		middleware.GinLoggerMiddleware(),
		middleware.TracingMiddleware(),
		middleware.PrometheusMiddleware(),
		middleware.CORSMiddleware(cfg.Server),
	)

	if cfg.Server.Gzip {
		engine.Use(gzip.Gzip(gzip.DefaultCompression))
	}

	engine.Use(
		middleware.RateLimitMiddleware(cfg.RateLimit),
		middleware.CircuitBreakerMiddleware(cfg.CircuitBreaker),
		middleware.StorageMiddleware(a.manager),
		middleware.SchedulerMiddleware(a.scheduler),
	)

	api.RegisterRoutes(engine, handle.NewPaperHandlers(a.papers), cfg.Server)

	metrics.Mount(engine, cfg.Metrics)

	return engine
}

// Run 启动调度器与 HTTP 服务，收到 SIGINT 或 SIGTERM 后优雅退出.
func (a *App) Run() error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", a.config.Server.Host, a.config.Server.Port),
		Handler:      a.Engine,
		ReadTimeout:  a.config.Server.GetTimeoutDuration(),
		WriteTimeout: a.config.Server.GetTimeoutDuration(),
	}

	a.scheduler.Start()

	errCh := make(chan error, 1)

	go func() {
		log.Logger().Info().Str("addr", srv.Addr).Msg("http server listening")

		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}

		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var serveErr error

	select {
	case serveErr = <-errCh:
	case sig := <-quit:
		log.Logger().Info().Str("signal", sig.String()).Msg("shutting down")
	}

	wait := a.config.Server.ShutdownTimeout
	if wait <= 0 {
		wait = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), wait)
	defer cancel()

	shutdownErr := srv.Shutdown(ctx)

	return errors.Join(serveErr, shutdownErr, a.Close(ctx))
}

// Close 停止调度器并释放存储与追踪资源.
func (a *App) Close(ctx context.Context) error {
	a.cancel()

	return errors.Join(
		a.scheduler.Stop(),
		a.manager.Close(),
		tracing.ShutdownTracer(ctx),
	)
}
