package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohort_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cohort_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	loginAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohort_login_attempts_total",
		Help: "Count of login attempts by result",
	}, []string{"result"})

	registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohort_registrations_total",
		Help: "Count of account registrations by result",
	}, []string{"result"})

	authzDenials = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cohort_authorization_denials_total",
		Help: "Count of requests denied by the authorization policy",
	})

	orphanedGroups = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "cohort_orphaned_groups",
		Help: "Number of groups with no remaining members",
	})

	groupCacheOps = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cohort_group_cache_operations_total",
		Help: "Count of group list cache operations by result",
	}, []string{"result"})
)

// ObserveHTTPRequest records an HTTP request metric
func ObserveHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// ObserveLogin increments the login counter with a result label.
func ObserveLogin(result string) {
	loginAttempts.WithLabelValues(result).Inc()
}

// ObserveRegistration increments the registration counter with a result label.
func ObserveRegistration(result string) {
	registrations.WithLabelValues(result).Inc()
}

// ObserveDenial counts a request rejected by the authorization policy.
func ObserveDenial() {
	authzDenials.Inc()
}

// SetOrphanedGroups sets the orphaned group gauge.
func SetOrphanedGroups(count int64) {
	if count < 0 {
		count = 0
	}
	orphanedGroups.Set(float64(count))
}

// ObserveGroupCache counts a cache hit, miss, or error for group listings.
func ObserveGroupCache(result string) {
	groupCacheOps.WithLabelValues(result).Inc()
}
