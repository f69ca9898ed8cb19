// Package metrics holds the Prometheus collectors of the service and the
// registry served on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sociapi",
		Name:      "http_requests_total",
		Help:      "Tracks the number of HTTP requests.",
	}, []string{"method", "route", "code"})

	requestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "sociapi",
		Name:      "http_request_duration_seconds",
		Help:      "Tracks the latencies for HTTP requests.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	followOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sociapi",
		Name:      "follow_operations_total",
		Help:      "Follow graph operations by outcome.",
	}, []string{"op", "outcome"})

	cacheResults = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sociapi",
		Name:      "profile_cache_total",
		Help:      "Profile cache lookups by result.",
	}, []string{"result"})

	bulkAccepted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sociapi",
		Name:      "bulk_accept_total",
		Help:      "Follow requests processed by implicit bulk accepts.",
	}, []string{"result"})

	registry = newRegistry()
)

func newRegistry() *prometheus.Registry {
	r := prometheus.NewRegistry()
	r.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		requestsTotal,
		requestDuration,
		followOps,
		cacheResults,
		bulkAccepted,
	)
	return r
}

// Registry returns the registry holding every collector of the service.
func Registry() *prometheus.Registry {
	return registry
}

// ObserveRequest records one served HTTP request.
func ObserveRequest(method, route string, code int, d time.Duration) {
	requestsTotal.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	requestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// FollowOp records a follow graph operation. Outcome is "ok" or an error code.
func FollowOp(op, outcome string) {
	followOps.WithLabelValues(op, outcome).Inc()
}

// Cache lookup results.
const (
	CacheHit   = "hit"
	CacheMiss  = "miss"
	CacheError = "error"
)

func CacheResult(result string) {
	cacheResults.WithLabelValues(result).Inc()
}

// BulkAccept records the outcome of one implicit bulk accept.
func BulkAccept(accepted, failed int) {
	bulkAccepted.WithLabelValues("accepted").Add(float64(accepted))
	bulkAccepted.WithLabelValues("failed").Add(float64(failed))
}
