package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/paiban/residency/internal/metrics"
	"github.com/paiban/residency/internal/middleware"
)

// VersionInfo 构建信息
type VersionInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// RouterConfig 路由配置
type RouterConfig struct {
	Schedule     *ScheduleHandler
	Limiter      *middleware.RateLimiter // 为 nil 时求解接口不限流
	Version      VersionInfo
	MetricsPath  string // 为空时不暴露指标
	MaxBodyBytes int64
}

// NewRouter 创建路由
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logging)
	r.Use(middleware.Recovery)
	r.Use(middleware.SecurityHeaders)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		respondJSON(w, http.StatusOK, cfg.Version)
	})
	if cfg.MetricsPath != "" {
		r.Method(http.MethodGet, cfg.MetricsPath, metrics.Handler())
	}

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.MaxBodyBytes > 0 {
			r.Use(limitBody(cfg.MaxBodyBytes))
		}

		r.Get("/constraints", ConstraintLibrary)

		r.Route("/schedule", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				if cfg.Limiter != nil {
					r.Use(middleware.RateLimit(cfg.Limiter))
				}
				r.Post("/solve", cfg.Schedule.Solve)
				r.Post("/batch", cfg.Schedule.Batch)
			})
			r.Post("/validate", cfg.Schedule.Validate)
			r.Post("/swap/evaluate", cfg.Schedule.EvaluateSwap)
			r.Post("/swap/recommend", cfg.Schedule.RecommendSwap)

			r.Get("/runs", cfg.Schedule.ListRuns)
			r.Route("/runs/{id}", func(r chi.Router) {
				r.Get("/", cfg.Schedule.GetRun)
				r.Delete("/", cfg.Schedule.DeleteRun)
			})
		})
	})

	return r
}

// limitBody 限制请求体大小
func limitBody(n int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, n)
			next.ServeHTTP(w, r)
		})
	}
}
