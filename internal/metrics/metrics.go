// Package metrics exposes the Prometheus collectors of the attestation layer.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "attestation_layer"

var (
	// Registry holds the application-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "inflight_requests",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		},
		[]string{"method", "path", "status"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~5s
		},
		[]string{"method", "path"},
	)

	rpcCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_calls_total",
			Help:      "Total number of chain JSON-RPC calls.",
		},
		[]string{"method", "outcome"},
	)

	rpcDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chain",
			Name:      "rpc_duration_seconds",
			Help:      "Duration of chain JSON-RPC calls.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		},
		[]string{"method"},
	)

	scanPages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "upstream_pages_total",
			Help:      "Upstream pages walked by the scanners.",
		},
		[]string{"scanner", "kind"},
	)

	candidateFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scanner",
			Name:      "candidate_fetch_failures_total",
			Help:      "Candidate object fetches dropped from a page.",
		},
		[]string{"kind"},
	)

	classifierMatches = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "type_matches_total",
			Help:      "Type match outcomes by tier.",
		},
		[]string{"kind", "tier"},
	)

	resolverStrategies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "resolver",
			Name:      "resolutions_total",
			Help:      "Created-object resolutions by strategy.",
		},
		[]string{"kind", "strategy"},
	)

	retryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "retry",
			Name:      "attempts_total",
			Help:      "History scan attempts made by the retry wrapper.",
		},
		[]string{"outcome"},
	)

	mirrorSyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "sync_runs_total",
			Help:      "Mirror backfill runs.",
		},
		[]string{"success"},
	)

	mirrorUpserts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mirror",
			Name:      "upserts_total",
			Help:      "Records written to the mirror.",
		},
		[]string{"kind"},
	)
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		rpcCalls,
		rpcDuration,
		scanPages,
		candidateFailures,
		classifierMatches,
		resolverStrategies,
		retryAttempts,
		mirrorSyncs,
		mirrorUpserts,
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
		prometheus.NewGoCollector(),
	)
}

// Handler returns an HTTP handler exposing the registered Prometheus metrics.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

// IncrementInFlight marks the start of an HTTP request.
func IncrementInFlight() { httpInFlight.Inc() }

// DecrementInFlight marks the end of an HTTP request.
func DecrementInFlight() { httpInFlight.Dec() }

// RecordHTTPRequest records one served HTTP request.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	method = strings.ToUpper(method)
	httpRequests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordRPCCall records one chain JSON-RPC round trip.
func RecordRPCCall(method string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	rpcCalls.WithLabelValues(method, outcome).Inc()
	rpcDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordScanPage counts an upstream page walked by a scanner ("history" or "owner").
func RecordScanPage(scanner, kind string) {
	scanPages.WithLabelValues(scanner, kind).Inc()
}

// RecordCandidateFailure counts a candidate dropped from a history page.
func RecordCandidateFailure(kind string) {
	candidateFailures.WithLabelValues(kind).Inc()
}

// RecordTypeMatch counts a classifier type-match outcome.
func RecordTypeMatch(kind, tier string) {
	classifierMatches.WithLabelValues(kind, tier).Inc()
}

// RecordResolution counts the strategy that resolved a created object.
func RecordResolution(kind, strategy string) {
	resolverStrategies.WithLabelValues(kind, strategy).Inc()
}

// RecordRetryAttempt counts one attempt of the retry wrapper.
func RecordRetryAttempt(outcome string) {
	retryAttempts.WithLabelValues(outcome).Inc()
}

// RecordMirrorSync counts one mirror backfill run.
func RecordMirrorSync(success bool) {
	mirrorSyncs.WithLabelValues(strconv.FormatBool(success)).Inc()
}

// RecordMirrorUpsert counts records written to the mirror.
func RecordMirrorUpsert(kind string, n int) {
	if n <= 0 {
		return
	}
	mirrorUpserts.WithLabelValues(kind).Add(float64(n))
}

// CanonicalPath collapses object ids out of request paths so label cardinality stays bounded.
func CanonicalPath(raw string) string {
	trimmed := strings.Trim(raw, "/")
	if trimmed == "" {
		return "/"
	}
	parts := strings.Split(trimmed, "/")
	if len(parts) >= 3 && parts[0] == "v1" && parts[1] == "objects" {
		return "/v1/objects/:id"
	}
	return "/" + trimmed
}
