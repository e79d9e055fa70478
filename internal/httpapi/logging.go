package httpapi

import (
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

var (
	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "waitlist",
		Name:      "http_requests_total",
		Help:      "HTTP requests by path, method, and status code.",
	}, []string{"path", "method", "status"})
	requestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "waitlist",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	})
)

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// LoggingMiddleware logs every request and feeds the prometheus counters.
// Requests without an X-Request-ID get one minted so the id appears in
// both the log line and the error envelope.
func LoggingMiddleware(logger *zap.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestIDFromRequest(r) == "" {
			r.Header.Set("X-Request-ID", uuid.NewString())
		}
		start := time.Now()
		writer := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(writer, r)
		duration := time.Since(start)

		requestsTotal.WithLabelValues(r.URL.Path, r.Method, strconv.Itoa(writer.status)).Inc()
		requestDuration.Observe(duration.Seconds())

		logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", writer.status),
			zap.Int64("duration_ms", duration.Milliseconds()),
			zap.String("actor", actorFromRequest(r)),
			zap.String("request_id", requestIDFromRequest(r)))
	})
}
