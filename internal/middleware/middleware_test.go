package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"factory-ops/internal/redis"
	"factory-ops/internal/services"
	"factory-ops/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeLimiter struct {
	allowed int
	err     error
	calls   []string
}

func (f *fakeLimiter) Allow(_ context.Context, scope, subject string, limit int, window time.Duration) (*redis.RateLimitResult, error) {
	f.calls = append(f.calls, scope+":"+subject)
	if f.err != nil {
		return nil, f.err
	}
	used := len(f.calls)
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	return &redis.RateLimitResult{Allowed: used <= f.allowed, Remaining: remaining, ResetIn: window, Limit: limit}, nil
}

func asUser(userID uuid.UUID) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request = c.Request.WithContext(services.WithUserContext(c.Request.Context(), userID))
		c.Next()
	}
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	r.POST("/write", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func post(r http.Handler) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/write", nil))
	return rec
}

func TestUserRateLimit(t *testing.T) {
	limiter := &fakeLimiter{allowed: 2}
	userID := uuid.New()
	r := newRouter(asUser(userID), UserRateLimit(limiter, "notifications", 2, time.Minute, nil))

	for i := 0; i < 2; i++ {
		if rec := post(r); rec.Code != http.StatusNoContent {
			t.Fatalf("request %d = %d", i, rec.Code)
		}
	}
	rec := post(r)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request = %d, want 429", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "2" || rec.Header().Get("X-RateLimit-Remaining") != "0" || rec.Header().Get("X-RateLimit-Reset") != "60" {
		t.Fatalf("headers = %v", rec.Header())
	}
	if limiter.calls[0] != "notifications:"+userID.String() {
		t.Fatalf("limiter key = %s", limiter.calls[0])
	}
}

func TestUserRateLimitFailsOpen(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	limiter := &fakeLimiter{err: errors.New("redis: connection refused")}
	r := newRouter(asUser(uuid.New()), UserRateLimit(limiter, "attachments", 1, time.Minute, logger.NewFromZap(zap.New(core))))

	if rec := post(r); rec.Code != http.StatusNoContent {
		t.Fatalf("request = %d, limiter errors must not block", rec.Code)
	}
	if logs.FilterMessage("rate limiter unavailable").Len() != 1 {
		t.Fatalf("logs = %v", logs.All())
	}
}

func TestUserRateLimitSkipsAnonymousAndNilLimiter(t *testing.T) {
	limiter := &fakeLimiter{}
	if rec := post(newRouter(UserRateLimit(limiter, "x", 1, time.Minute, nil))); rec.Code != http.StatusNoContent {
		t.Fatalf("anonymous = %d", rec.Code)
	}
	if len(limiter.calls) != 0 {
		t.Fatal("anonymous requests are not counted")
	}
	if rec := post(newRouter(asUser(uuid.New()), UserRateLimit(nil, "x", 1, time.Minute, nil))); rec.Code != http.StatusNoContent {
		t.Fatalf("nil limiter = %d", rec.Code)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/", func(c *gin.Context) {
		seen, _ = c.Request.Context().Value(logger.RequestIdKey).(string)
		c.Status(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := rec.Header().Get("X-Request-Id")
	if len(generated) != 32 || seen != generated {
		t.Fatalf("generated = %q, context = %q", generated, seen)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-Id", "upstream-42")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-Id") != "upstream-42" || seen != "upstream-42" {
		t.Fatalf("propagated = %q, context = %q", rec.Header().Get("X-Request-Id"), seen)
	}
}

func TestErrorHandlerRendersUnwrittenErrors(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(logger.NewFromZap(zap.New(core))))
	r.GET("/", func(c *gin.Context) {
		_ = c.Error(errors.New("pq: relation does not exist"))
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	if body := rec.Body.String(); body == "" || strings.Contains(body, "relation") {
		t.Fatalf("body leaks or is empty: %s", body)
	}
	if logs.FilterMessage("request error").Len() != 1 {
		t.Fatalf("logs = %v", logs.All())
	}
}
