package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/errors"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus"
)

type HTTPMiddlewareConfig struct {
	// RequestTotal and RequestDuration use labels method, path, status.
	RequestTotal    *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Skipper defaults to skipping probe and scrape endpoints.
	Skipper func(fiber.Ctx) bool
}

// HTTPMetricsMiddleware labels requests by route pattern, so
// /api/v1/inspections/:id is one series regardless of the id. Requests
// that matched no route share the "unmatched" path label.
func HTTPMetricsMiddleware(cfg *HTTPMiddlewareConfig) fiber.Handler {
	config := HTTPMiddlewareConfig{}
	if cfg != nil {
		config = *cfg
	}
	if config.RequestTotal == nil {
		config.RequestTotal = HTTPRequestTotal
	}
	if config.RequestDuration == nil {
		config.RequestDuration = HTTPRequestDuration
	}
	if config.Skipper == nil {
		config.Skipper = skipOperational
	}

	return func(c fiber.Ctx) error {
		if config.Skipper(c) {
			return c.Next()
		}

		start := time.Now()
		err := c.Next()

		// The error handler has not run yet, so the response status is
		// still the default when err is set.
		status := c.Response().StatusCode()
		if err != nil {
			status = errors.StatusOf(err)
		}
		labels := []string{c.Method(), routePath(c), strconv.Itoa(status)}
		config.RequestTotal.WithLabelValues(labels...).Inc()
		config.RequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}

func routePath(c fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" && route.Path != "/" && !strings.HasSuffix(route.Path, "*") {
		return route.Path
	}
	return "unmatched"
}

func skipOperational(c fiber.Ctx) bool {
	switch c.Path() {
	case "/metrics", "/healthz", "/readyz":
		return true
	}
	return false
}
