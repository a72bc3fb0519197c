package security

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"questionnaire_backend/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// OriginAllowList 可热更新的 CORS 白名单
type OriginAllowList struct {
	mu      sync.RWMutex
	origins map[string]bool
}

func NewOriginAllowList(origins []string) *OriginAllowList {
	l := &OriginAllowList{}
	l.Set(origins)
	return l
}

func (l *OriginAllowList) Set(origins []string) {
	set := make(map[string]bool, len(origins))
	for _, o := range origins {
		set[o] = true
	}
	l.mu.Lock()
	l.origins = set
	l.mu.Unlock()
}

func (l *OriginAllowList) Allowed(origin string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.origins[origin]
}

// CORS 中间件 仅允许白名单中的Origin
func CORS(allow *OriginAllowList) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")

		if origin != "" && allow.Allowed(origin) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
			c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
			c.Writer.Header().Add("Vary", "Origin")
		}

		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-Request-ID, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET")
		c.Writer.Header().Set("Access-Control-Expose-Headers", "X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Secure 中间件
func Secure() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 防止MIME嗅探
		c.Header("X-Content-Type-Options", "nosniff")
		// 防止点击劫持
		c.Header("X-Frame-Options", "DENY")
		c.Header("X-XSS-Protection", "1; mode=block")
		if c.Request.TLS != nil {
			c.Header("Strict-Transport-Security", "max-age=31536000; includeSubDomains; preload")
		}

		c.Next()
	}
}

// visitor 包装限流器和最后活跃时间，用于定期清理
type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// visitorStore 按IP保存限流器，超过 expiry 未活跃的条目会被清理
type visitorStore struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	expiry   time.Duration
}

func newVisitorStore(window time.Duration) *visitorStore {
	expiry := window * 3
	if expiry < time.Minute {
		expiry = time.Minute
	}
	return &visitorStore{visitors: make(map[string]*visitor), expiry: expiry}
}

func (s *visitorStore) get(key string, newLimiter func() *rate.Limiter, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, exists := s.visitors[key]
	if !exists {
		v = &visitor{limiter: newLimiter()}
		s.visitors[key] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (s *visitorStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ip, v := range s.visitors {
		if now.Sub(v.lastSeen) > s.expiry {
			delete(s.visitors, ip)
		}
	}
}

func (s *visitorStore) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.visitors)
}

// run 定期清理，ctx 取消后返回
func (s *visitorStore) run(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			s.sweep(now)
		}
	}
}

// RateLimiter 按IP限流，超限返回 429 并带 retry_after。
// 清理协程随 ctx 结束。
func RateLimiter(ctx context.Context, maxRequests int, window time.Duration) gin.HandlerFunc {
	if maxRequests <= 0 {
		maxRequests = 1
	}
	store := newVisitorStore(window)
	go store.run(ctx, time.Minute)

	interval := window / time.Duration(maxRequests)
	r := rate.Every(interval)
	retryAfter := int(math.Ceil(interval.Seconds()))
	if retryAfter < 1 {
		retryAfter = 1
	}
	newLimiter := func() *rate.Limiter { return rate.NewLimiter(r, maxRequests) }

	return func(c *gin.Context) {
		limiter := store.get(c.ClientIP(), newLimiter, time.Now())

		if !limiter.Allow() {
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			util.FailRetry(c, http.StatusTooManyRequests, util.CodeBusiness, "too many requests", retryAfter)
			c.Abort()
			return
		}

		c.Next()
	}
}
