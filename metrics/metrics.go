package metrics

import (
	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
)

/* ========================================================================
 * Prometheus metrics
 * ======================================================================== */

const namespace = "compia"

var (
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AccessResolutionsTotal counts access middleware outcomes:
	// authorized, anonymous, rejected, store_error.
	AccessResolutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "resolutions_total",
			Help:      "Access middleware outcomes",
		},
		[]string{"outcome"},
	)

	UsersProvisionedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "access",
			Name:      "users_provisioned_total",
			Help:      "Users created from verified external identities",
		},
	)

	TenantContextBuildSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "context_build_seconds",
			Help:      "Time spent deriving a tenant context",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	HierarchyFaultsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tenant",
			Name:      "hierarchy_faults_total",
			Help:      "Cycles or repeated nodes found while walking the organization tree",
		},
	)

	// AuthzDecisionsTotal labels: gate (route gate name), outcome (allowed, denied).
	AuthzDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "decisions_total",
			Help:      "Authorization decisions",
		},
		[]string{"gate", "outcome"},
	)

	TenantInjectionBlockedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "authz",
			Name:      "tenant_injection_blocked_total",
			Help:      "Requests naming an organization outside the caller's scope",
		},
	)

	// AuditRecordsTotal labels: sink, outcome (written, failed).
	AuditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "records_total",
			Help:      "Audit records handed to sinks",
		},
		[]string{"sink", "outcome"},
	)

	AuditDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "dropped_total",
			Help:      "Audit records dropped because the queue was full or closed",
		},
	)

	AuditQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "queue_depth",
			Help:      "Audit records waiting for a worker",
		},
	)
)

// RegisterMetricsEndpoint serves the default registry on GET /metrics
// behind the given guards.
func RegisterMetricsEndpoint(app *fiber.App, guards ...fiber.Handler) {
	handler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
	for _, guard := range guards {
		app.Use("/metrics", guard)
	}
	app.Get("/metrics", func(c fiber.Ctx) error {
		handler(c.RequestCtx())
		return nil
	})
}
