// Package metrics 提供监控指标功能.
// 支持Prometheus标准，收集 HTTP、论文入库与检索、孤儿对象清理等指标.
//
// Example:
//
//	if err := metrics.InitMetrics(cfg.Metrics); err != nil {
//		return err
//	}
//
//	metrics.PaperIngestTotal.WithLabelValues("ok").Inc()
//	metrics.RequestDuration.WithLabelValues("GET", "/api/v1/papers").Observe(0.1)
package metrics

import (
	"errors"
	"net/http"
	_ "net/http/pprof" // 自动注册pprof端点
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yeisme/papervault/pkg/configs"
)

// 全局指标变量.
var (
	// RequestCounter HTTP请求计数器.
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	// RequestDuration HTTP请求持续时间.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// ActiveConnections 活跃连接数.
	ActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	// PaperIngestTotal 入库结果计数，outcome 为 ok 或错误类别.
	PaperIngestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papervault_paper_ingest_total",
			Help: "Paper ingestion attempts by outcome",
		},
		[]string{"outcome"},
	)

	// PaperIngestBytes 成功入库的 PDF 字节数.
	PaperIngestBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "papervault_paper_ingest_bytes_total",
			Help: "Bytes of successfully ingested PDF files",
		},
	)

	// PaperSearchTotal 检索次数，cache 为 hit 或 miss.
	PaperSearchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "papervault_paper_search_total",
			Help: "Paper searches by cache result",
		},
		[]string{"cache"},
	)

	// OrphansRemovedTotal 清理任务删除的孤儿对象数.
	OrphansRemovedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "papervault_orphans_removed_total",
			Help: "Unreferenced objects removed by the reconciler",
		},
	)

	// registry Prometheus注册表.
	registry = prometheus.NewRegistry()
	initOnce sync.Once
)

// InitMetrics 注册全部指标，重复调用无效. Labels 作为常量标签附加到应用指标上.
func InitMetrics(config configs.MetricsConfig) error {
	if !config.Enabled {
		return nil
	}

	var err error

	initOnce.Do(func() {
		// 默认注册表自带运行时与进程采集器，关闭时从中移除
		if !config.RuntimeMetrics {
			prometheus.Unregister(collectors.NewGoCollector())
			prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		}

		var reg prometheus.Registerer = registry
		if len(config.Labels) > 0 {
			reg = prometheus.WrapRegistererWith(prometheus.Labels(config.Labels), registry)
		}

		for _, c := range []prometheus.Collector{
			RequestCounter, RequestDuration, ActiveConnections,
			PaperIngestTotal, PaperIngestBytes, PaperSearchTotal, OrphansRemovedTotal,
		} {
			if rerr := reg.Register(c); rerr != nil {
				err = errors.Join(err, rerr)
			}
		}
	})

	return err
}

// Handler 汇总应用注册表与默认注册表(GORM、MQ 指标)的 HTTP 处理器.
func Handler() http.Handler {
	return promhttp.HandlerFor(prometheus.Gatherers{registry, prometheus.DefaultGatherer}, promhttp.HandlerOpts{})
}

// Mount 在 engine 上挂载指标端点，开启 Pprof 时一并挂载 /debug/pprof.
func Mount(engine *gin.Engine, config configs.MetricsConfig) {
	if !config.Enabled {
		return
	}

	path := config.Path
	if path == "" {
		path = "/metrics"
	}

	engine.GET(path, gin.WrapH(Handler()))

	if config.Pprof {
		engine.GET("/debug/pprof/*any", gin.WrapH(http.DefaultServeMux))
	}
}
