// Package httpapi assembles the bedplanner HTTP surface.
package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"bedplanner/internal/beds"
	"bedplanner/internal/metrics"
	"bedplanner/internal/patients"
	"bedplanner/internal/stays"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Options carries the services and cross-cutting dependencies of the router.
type Options struct {
	Patients patients.Service
	Beds     beds.Service
	Stays    stays.Service
	Metrics  *metrics.Metrics
	Logger   *zap.Logger
	// RateLimitPerMinute caps mutating requests across all clients. Zero
	// disables the limit.
	RateLimitPerMinute int
}

func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(instrument(opts.Metrics, opts.Logger))
	if opts.RateLimitPerMinute > 0 {
		r.Use(limitWrites(newLimiter(opts.RateLimitPerMinute)))
	}

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	patients.NewHandler(opts.Patients).Routes(r)
	beds.NewHandler(opts.Beds).Routes(r)
	stays.NewHandler(opts.Stays).Routes(r)
	return r
}

func newLimiter(perMinute int) *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
}

// limitWrites rejects mutating requests with 429 once the limiter is drained.
// Reads are never limited.
func limitWrites(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
			default:
				if !limiter.Allow() {
					w.Header().Set("Retry-After", "1")
					http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

// instrument records request latency by route pattern and logs each request.
func instrument(m *metrics.Metrics, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			elapsed := time.Since(start)
			m.HTTPLatency.WithLabelValues(route, r.Method, strconv.Itoa(ww.Status())).Observe(elapsed.Seconds())
			logger.Debug("request served",
				zap.String("method", r.Method),
				zap.String("route", route),
				zap.Int("status", ww.Status()),
				zap.Duration("elapsed", elapsed),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	}
}
