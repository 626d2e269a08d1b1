package middleware

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/yeisme/papervault/pkg/configs"
)

const (
	limiterIdleTTL      = 10 * time.Minute
	limiterSweepEvery   = time.Minute
	rateLimitedResponse = "Too many requests, please try again later"
)

type limiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter 按键维护令牌桶，闲置超过 limiterIdleTTL 的键会被回收.
type keyedLimiter struct {
	mu      sync.Mutex
	entries map[string]*limiterEntry
	rps     rate.Limit
	burst   int
}

func newKeyedLimiter(rps float64, burst int) *keyedLimiter {
	k := &keyedLimiter{entries: make(map[string]*limiterEntry), rps: rate.Limit(rps), burst: burst}
	go k.sweep()

	return k
}

func (k *keyedLimiter) Allow(key string) bool {
	now := time.Now()

	k.mu.Lock()
	e, ok := k.entries[key]
	if !ok {
		e = &limiterEntry{limiter: rate.NewLimiter(k.rps, k.burst)}
		k.entries[key] = e
	}

	e.lastSeen = now
	k.mu.Unlock()

	return e.limiter.AllowN(now, 1)
}

func (k *keyedLimiter) sweep() {
	ticker := time.NewTicker(limiterSweepEvery)
	defer ticker.Stop()

	for now := range ticker.C {
		k.mu.Lock()
		for key, e := range k.entries {
			if now.Sub(e.lastSeen) > limiterIdleTTL {
				delete(k.entries, key)
			}
		}
		k.mu.Unlock()
	}
}

// RateLimitMiddleware 返回一个基于配置的限流中间件.
// Key 取值：global、ip、header:<Header-Name>（缺失时退回客户端 IP）.
func RateLimitMiddleware(cfg configs.RateLimitConfig) gin.HandlerFunc {
	if !cfg.Enabled || cfg.RPS <= 0 {
		return func(c *gin.Context) { c.Next() }
	}

	reject := func(c *gin.Context) {
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": rateLimitedResponse, "code": "RATE_LIMITED"})
	}

	exempt := func(c *gin.Context) bool {
		for _, p := range cfg.Exempt {
			if p != "" && strings.HasPrefix(c.Request.URL.Path, p) {
				return true
			}
		}

		return false
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Key))
	if mode == "global" || mode == "" {
		limiter := rate.NewLimiter(rate.Limit(cfg.RPS), cfg.Burst)

		return func(c *gin.Context) {
			if !exempt(c) && !limiter.Allow() {
				reject(c)
				return
			}

			c.Next()
		}
	}

	limiters := newKeyedLimiter(cfg.RPS, cfg.Burst)
	header, byHeader := strings.CutPrefix(mode, "header:")

	return func(c *gin.Context) {
		if exempt(c) {
			c.Next()
			return
		}

		key := ""
		if byHeader {
			key = c.GetHeader(header)
		}

		if key == "" {
			key = clientIP(c)
		}

		if !limiters.Allow(key) {
			reject(c)
			return
		}

		c.Next()
	}
}

func clientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}

	if host, _, err := net.SplitHostPort(c.Request.RemoteAddr); err == nil {
		return host
	}

	if c.Request.RemoteAddr != "" {
		return c.Request.RemoteAddr
	}

	return "unknown"
}
