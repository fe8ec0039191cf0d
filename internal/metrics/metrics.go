package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	ResultApplied  = "applied"
	ResultRejected = "rejected"
)

var JobTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jobtracker_job_transitions_total",
	Help: "Status transition attempts by source status, target status and result",
}, []string{"from", "to", "result"})

var JobsCreated = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jobtracker_jobs_created_total",
	Help: "Jobs created, by initial status",
}, []string{"status"})

var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "jobtracker_http_requests_total",
	Help: "HTTP requests by route, method and status code",
}, []string{"route", "method", "code"})

var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "jobtracker_http_request_duration_seconds",
	Help:    "HTTP request latency by route and method",
	Buckets: prometheus.DefBuckets,
}, []string{"route", "method"})

// Middleware records request counts and latency keyed by the matched route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequests.WithLabelValues(route, c.Request.Method, strconv.Itoa(c.Writer.Status())).Inc()
		HTTPDuration.WithLabelValues(route, c.Request.Method).Observe(time.Since(start).Seconds())
	}
}
