package http

import (
	"context"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/metrics"
	"github.com/tiagossm/Compia20251207-sub001/shutdown"

	"github.com/gofiber/fiber/v3"
	recoverer "github.com/gofiber/fiber/v3/middleware/recover"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Config struct {
	Port               int           `yaml:"port" mapstructure:"port"`
	Host               string        `yaml:"host" mapstructure:"host"`
	AppName            string        `yaml:"app_name" mapstructure:"app_name"`
	ReadTimeout        time.Duration `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout       time.Duration `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	HealthCheckTimeout time.Duration `yaml:"health_check_timeout" mapstructure:"health_check_timeout"`

	// ProxyHeader names the header carrying the client address when the
	// service runs behind the gateway, e.g. X-Forwarded-For. Only
	// TrustedProxies may set it.
	ProxyHeader    string   `yaml:"proxy_header" mapstructure:"proxy_header"`
	TrustedProxies []string `yaml:"trusted_proxies" mapstructure:"trusted_proxies"`

	// EnableRecover defaults to true.
	EnableRecover *bool `yaml:"enable_recover" mapstructure:"enable_recover"`

	Listen ListenOptions `yaml:"listen" mapstructure:"listen"`
}

// ListenOptions are the serializable parts of fiber.ListenConfig.
type ListenOptions struct {
	DisableStartupMessage bool   `yaml:"disable_startup_message" mapstructure:"disable_startup_message"`
	EnablePrintRoutes     bool   `yaml:"enable_print_routes" mapstructure:"enable_print_routes"`
	ListenerNetwork       string `yaml:"listener_network" mapstructure:"listener_network"` // tcp, tcp4, tcp6
	CertFile              string `yaml:"cert_file" mapstructure:"cert_file"`
	CertKeyFile           string `yaml:"cert_key_file" mapstructure:"cert_key_file"`
	// CertClientFile is the CA bundle for client certificates.
	CertClientFile  string        `yaml:"cert_client_file" mapstructure:"cert_client_file"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
	TLSMinVersion   uint16        `yaml:"tls_min_version" mapstructure:"tls_min_version"`
}

// ReadinessCheck is one dependency probed by /readyz. Provide it in the
// "readiness" fx group.
type ReadinessCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type ServerParams struct {
	fx.In
	Lc       fx.Lifecycle
	Config   Config
	Logger   *logger.Logger
	Shutdown *shutdown.Manager

	ErrorHandler fiber.ErrorHandler `optional:"true"`
	Checks       []ReadinessCheck   `group:"readiness"`
	// MetricsGuards run before /metrics.
	MetricsGuards []fiber.Handler `group:"metrics_guards"`
}

// NewHTTPServer builds the app with recovery, probes and /metrics, and
// binds it to the fx lifecycle. Routes are added by the caller.
func NewHTTPServer(p ServerParams) *fiber.App {
	app := fiber.New(appConfig(p.Config, p.ErrorHandler))

	if p.Config.EnableRecover == nil || *p.Config.EnableRecover {
		app.Use(recoverer.New(recoverer.Config{
			EnableStackTrace: true,
			StackTraceHandler: func(c fiber.Ctx, e any) {
				p.Logger.WithContext(c.Context()).Error("panic recovered",
					zap.Any("error", e),
					zap.String("path", c.Path()),
					zap.String("method", c.Method()),
					zap.Stack("stack"),
				)
			},
		}))
	}

	timeout := p.Config.HealthCheckTimeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	registerHealthEndpoints(app, p.Checks, timeout, p.Logger)
	metrics.RegisterMetricsEndpoint(app, p.MetricsGuards...)

	addr := net.JoinHostPort(p.Config.Host, strconv.Itoa(p.Config.Port))
	listenConfig := buildListenConfig(p.Config.Listen)

	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := bind(addr, p.Config.Listen)
			if err != nil {
				return fmt.Errorf("failed to bind %s: %w", addr, err)
			}
			p.Logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
			go func() {
				if err := app.Listener(ln, listenConfig); err != nil {
					p.Logger.Error("http server stopped with error", zap.Error(err))
				}
			}()
			return nil
		},
	})
	p.Shutdown.Register("http-server", shutdown.PriorityServer, func(ctx context.Context) error {
		p.Logger.Info("stopping http server")
		return app.ShutdownWithContext(ctx)
	})

	return app
}

func appConfig(cfg Config, errorHandler fiber.ErrorHandler) fiber.Config {
	appName := cfg.AppName
	if appName == "" {
		appName = "compia"
	}
	c := fiber.Config{
		AppName:      appName,
		ReadTimeout:  orDefault(cfg.ReadTimeout, 30*time.Second),
		WriteTimeout: orDefault(cfg.WriteTimeout, 30*time.Second),
		IdleTimeout:  orDefault(cfg.IdleTimeout, 120*time.Second),
		ErrorHandler: errorHandler,
	}
	if cfg.ProxyHeader != "" {
		c.ProxyHeader = cfg.ProxyHeader
		c.TrustProxy = true
		c.TrustProxyConfig = fiber.TrustProxyConfig{Proxies: cfg.TrustedProxies}
	}
	return c
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}

func buildListenConfig(opts ListenOptions) fiber.ListenConfig {
	config := fiber.ListenConfig{
		DisableStartupMessage: opts.DisableStartupMessage,
		EnablePrintRoutes:     opts.EnablePrintRoutes,
		CertFile:              opts.CertFile,
		CertKeyFile:           opts.CertKeyFile,
		CertClientFile:        opts.CertClientFile,
		ListenerNetwork:       opts.ListenerNetwork,
	}
	if config.ListenerNetwork == "" {
		config.ListenerNetwork = "tcp4"
	}
	if opts.ShutdownTimeout > 0 {
		config.ShutdownTimeout = opts.ShutdownTimeout
	}
	if opts.TLSMinVersion > 0 {
		config.TLSMinVersion = opts.TLSMinVersion
	}
	return config
}

// /healthz answers while the process is up. /readyz probes every
// registered dependency and answers 503 if any fails; failure text stays
// in the log.
func registerHealthEndpoints(app *fiber.App, checks []ReadinessCheck, timeout time.Duration, log *logger.Logger) {
	host, _ := os.Hostname()

	app.Get("/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "host": host})
	})

	app.Get("/readyz", func(c fiber.Ctx) error {
		results := make(map[string]string, len(checks))
		healthy := true
		for _, check := range checks {
			ctx, cancel := context.WithTimeout(c.Context(), timeout)
			err := check.Check(ctx)
			cancel()
			if err != nil {
				healthy = false
				results[check.Name] = "unavailable"
				log.Warn("readiness check failed", zap.String("check", check.Name), zap.Error(err))
				continue
			}
			results[check.Name] = "ok"
		}

		if !healthy {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "unhealthy", "checks": results})
		}
		return c.JSON(fiber.Map{"status": "ok", "checks": results})
	})
}
