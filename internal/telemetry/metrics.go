package telemetry

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/victornm/quizjudge/internal/domain"
)

// Metrics collects judge and HTTP metrics. It satisfies sandbox.Observer and
// evaluation.Observer.
type Metrics struct {
	processes       *prometheus.CounterVec
	processDuration *prometheus.HistogramVec
	evaluations     *prometheus.CounterVec
	evalDuration    *prometheus.HistogramVec
	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	buckets := []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10}

	return &Metrics{
		processes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizjudge",
			Name:      "sandbox_processes_total",
			Help:      "Child processes run by the sandbox, by program and outcome.",
		}, []string{"program", "outcome"}),
		processDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quizjudge",
			Name:      "sandbox_process_duration_seconds",
			Help:      "Wall time of sandboxed child processes.",
			Buckets:   buckets,
		}, []string{"program"}),
		evaluations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizjudge",
			Name:      "evaluations_total",
			Help:      "Evaluated submissions, by judge kind and verdict.",
		}, []string{"kind", "status"}),
		evalDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quizjudge",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent evaluating a submission.",
			Buckets:   buckets,
		}, []string{"kind"}),
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "quizjudge",
			Name:      "http_requests_total",
			Help:      "HTTP requests, by method, route and status.",
		}, []string{"method", "route", "status"}),
		requestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "quizjudge",
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   buckets,
		}, []string{"method", "route"}),
	}
}

func (m *Metrics) ObserveProcess(name, outcome string, d time.Duration) {
	m.processes.WithLabelValues(name, outcome).Inc()
	m.processDuration.WithLabelValues(name).Observe(d.Seconds())
}

func (m *Metrics) ObserveEvaluation(kind domain.JudgeKind, status domain.VerdictStatus, d time.Duration) {
	m.evaluations.WithLabelValues(string(kind), string(status)).Inc()
	m.evalDuration.WithLabelValues(string(kind)).Observe(d.Seconds())
}

// HTTPMiddleware records every request under its route template.
func (m *Metrics) HTTPMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.requestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
