package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_http_requests_total",
		Help: "HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	httpDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contract_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	rateLimited = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_rate_limit_rejections_total",
		Help: "Requests rejected by the rate limiter.",
	}, []string{"route"})

	rateLimitStoreErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contract_rate_limit_store_errors_total",
		Help: "Counter store failures seen by the rate limiter.",
	})

	upstreamCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "contract_upstream_calls_total",
		Help: "Calls to external services by outcome.",
	}, []string{"service", "outcome"})

	upstreamDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "contract_upstream_call_duration_seconds",
		Help:    "External service call latency.",
		Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"service"})

	auditFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "contract_audit_append_failures_total",
		Help: "Audit entries that could not be persisted.",
	})
)

func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func RateLimited(route string) {
	rateLimited.WithLabelValues(route).Inc()
}

func RateLimitStoreError() {
	rateLimitStoreErrors.Inc()
}

// ObserveUpstream records one external call; err decides the outcome label.
func ObserveUpstream(service string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	upstreamCalls.WithLabelValues(service, outcome).Inc()
	upstreamDuration.WithLabelValues(service).Observe(time.Since(start).Seconds())
}

func AuditFailure() {
	auditFailures.Inc()
}
