package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"plant-doctor/api/internal/logger"
	"plant-doctor/api/internal/metrics"
)

// RequestID returns the id assigned by Middleware, or "".
func RequestID(ctx context.Context) string { return logger.RequestID(ctx) }

// HealthFunc reports whether a dependency is usable.
type HealthFunc func(ctx context.Context) error

// Mount adds /healthz and /metrics to mux.
func Mount(mux *http.ServeMux, healthzBody string, health HealthFunc) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
			defer cancel()
			if err := health(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				_, _ = w.Write([]byte("not ok\n" + err.Error()))
				return
			}
		}
		_, _ = w.Write([]byte(healthzBody))
	})
	mux.Handle("GET /metrics", promhttp.Handler())
}

type statusWriter struct {
	http.ResponseWriter
	code  int
	wrote bool
}

func (s *statusWriter) WriteHeader(code int) {
	if !s.wrote {
		s.code = code
		s.wrote = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusWriter) Write(b []byte) (int, error) {
	if !s.wrote {
		s.wrote = true
	}
	return s.ResponseWriter.Write(b)
}

// Middleware assigns an X-Request-Id, recovers panics, counts requests per route and logs
// one line per request.
func Middleware(next http.Handler, log *zap.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)
		r = r.WithContext(logger.WithRequestID(r.Context(), id))
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}

		defer func() {
			if p := recover(); p != nil {
				log.Error("panic in handler", zap.Any("panic", p), zap.String("request_id", id), zap.Stack("stack"))
				if !sw.wrote {
					http.Error(sw, "internal error", http.StatusInternalServerError)
				} else {
					sw.code = http.StatusInternalServerError
				}
			}
			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			metrics.HTTPRequests.WithLabelValues(route, strconv.Itoa(sw.code)).Inc()
			log.Info("http request",
				zap.String("request_id", id),
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.String("route", route),
				zap.Int("status", sw.code),
				zap.Duration("duration", time.Since(start)),
			)
		}()
		next.ServeHTTP(sw, r)
	})
}

// New wraps h in Middleware and sets conservative server timeouts. WriteTimeout stays 0 because
// model calls are bounded per request.
func New(addr string, h http.Handler, log *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           Middleware(h, log),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
}

// Run serves until ctx is done, then shuts down gracefully.
func Run(ctx context.Context, srv *http.Server, log *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
