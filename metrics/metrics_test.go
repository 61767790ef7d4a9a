package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegisterMetricsEndpoint(t *testing.T) {
	AuthzDecisionsTotal.WithLabelValues("role", "denied").Inc()

	app := fiber.New()
	RegisterMetricsEndpoint(app)

	req := httptest.NewRequest("GET", "/metrics", nil)
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("unexpected status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(body), "compia_authz_decisions_total") {
		t.Fatalf("expected metrics output to include compia_authz_decisions_total")
	}
}

func TestHTTPMetricsMiddlewareUsesRoutePath(t *testing.T) {
	app := fiber.New()
	app.Use(HTTPMetricsMiddleware(nil))
	app.Get("/api/v1/inspections/:id", func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	before := testutil.ToFloat64(HTTPRequestTotal.WithLabelValues("GET", "/api/v1/inspections/:id", "204"))
	req := httptest.NewRequest("GET", "/api/v1/inspections/42", nil)
	resp, err := app.Test(req, fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = resp.Body.Close()

	after := testutil.ToFloat64(HTTPRequestTotal.WithLabelValues("GET", "/api/v1/inspections/:id", "204"))
	if after-before != 1 {
		t.Fatalf("expected one request recorded under route path, got %v", after-before)
	}
}

func TestRegisterMetricsEndpointGuard(t *testing.T) {
	app := fiber.New()
	RegisterMetricsEndpoint(app, func(c fiber.Ctx) error {
		if c.Get("X-API-Key") != "k" {
			return fiber.ErrUnauthorized
		}
		return c.Next()
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/metrics", nil), fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected guard to reject, got %d", resp.StatusCode)
	}
}

func TestHTTPMetricsMiddlewareUsesErrorStatus(t *testing.T) {
	app := fiber.New()
	app.Use(HTTPMetricsMiddleware(nil))
	app.Get("/limited", func(c fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTooManyRequests, "slow down")
	})

	series := HTTPRequestTotal.WithLabelValues("GET", "/limited", "429")
	before := testutil.ToFloat64(series)
	resp, err := app.Test(httptest.NewRequest("GET", "/limited", nil), fiber.TestConfig{Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	_ = resp.Body.Close()
	if got := testutil.ToFloat64(series) - before; got != 1 {
		t.Fatalf("expected request recorded with status 429, got %v", got)
	}
}
