package main

import (
	"context"
	"fmt"

	"github.com/tiagossm/Compia20251207-sub001/api"
	"github.com/tiagossm/Compia20251207-sub001/audit"
	"github.com/tiagossm/Compia20251207-sub001/cache"
	"github.com/tiagossm/Compia20251207-sub001/cache/redis"
	"github.com/tiagossm/Compia20251207-sub001/database/mysql"
	"github.com/tiagossm/Compia20251207-sub001/database/postgres"
	"github.com/tiagossm/Compia20251207-sub001/database/sqlite"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/inspection"
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/metrics"
	"github.com/tiagossm/Compia20251207-sub001/middleware"
	"github.com/tiagossm/Compia20251207-sub001/mq"
	_ "github.com/tiagossm/Compia20251207-sub001/mq/kafka"
	"github.com/tiagossm/Compia20251207-sub001/organization"
	"github.com/tiagossm/Compia20251207-sub001/session"
	"github.com/tiagossm/Compia20251207-sub001/shutdown"
	"github.com/tiagossm/Compia20251207-sub001/tenant"
	httptransport "github.com/tiagossm/Compia20251207-sub001/transport/http"
	"github.com/tiagossm/Compia20251207-sub001/utils/id-generator/snowflake"
	"github.com/tiagossm/Compia20251207-sub001/validator"

	"github.com/gofiber/fiber/v3"
	"github.com/ulule/limiter/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type ServeCmd struct{}

func (ServeCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.ConfigDir)
	if err != nil {
		return err
	}
	fx.New(serverOptions(cfg, g.Version)).Run()
	return nil
}

type MigrateCmd struct{}

func (MigrateCmd) Run(g *Globals) error {
	cfg, err := loadConfig(g.ConfigDir)
	if err != nil {
		return err
	}
	app := fx.New(
		baseOptions(cfg),
		fx.Invoke(func(db *gorm.DB, log *logger.Logger) error {
			return migrate(db, log)
		}),
	)
	if err := app.Start(context.Background()); err != nil {
		return err
	}
	return app.Stop(context.Background())
}

// models lists every table the service owns.
var models = []any{
	&identity.User{},
	&organization.Organization{},
	&organization.Assignment{},
	&audit.Record{},
	&inspection.Inspection{},
}

func migrate(db *gorm.DB, log *logger.Logger) error {
	if err := db.AutoMigrate(models...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("schema migrated", zap.Int("tables", len(models)))
	return nil
}

// baseOptions provides config, logging and the database.
func baseOptions(cfg *Config) fx.Option {
	return fx.Options(
		fx.Supply(cfg),
		fx.Provide(provideSections, logger.NewLogger, provideDB),
		fx.WithLogger(func(log *logger.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: log.Named("fx")}
		}),
	)
}

func serverOptions(cfg *Config, version string) fx.Option {
	return fx.Options(
		baseOptions(cfg),
		shutdown.Module,
		cache.Module,
		mq.Module,
		audit.Module,
		fx.Provide(
			provideIDGenerator,
			organization.NewWalker,
			func(db *gorm.DB, ids *snowflake.Generator, log *logger.Logger) *organization.AssignmentService {
				return organization.NewAssignmentService(db, ids, log)
			},
			func(db *gorm.DB, log *logger.Logger) *identity.Resolver { return identity.NewResolver(db, log) },
			func(w *organization.Walker, a *organization.AssignmentService, c tenant.BuilderConfig, log *logger.Logger) *tenant.Builder {
				return tenant.NewBuilder(w, a, c, log)
			},
			func(client *redis.Client, c session.Config) *session.Store { return session.NewStore(client, c) },
			func(c middleware.GatewayConfig, client *redis.Client) *middleware.GatewayVerifier {
				return middleware.NewGatewayVerifier(c, middleware.NewRedisNonceStore(client))
			},
			provideInspections,
			validator.New,
			middleware.NewErrorHandler,
			provideRateLimiter,
			func(r *identity.Resolver) middleware.IdentityResolver { return r },
			func(r *identity.Resolver) api.UserResolver { return r },
			func(b *tenant.Builder) middleware.ContextBuilder { return b },
			func(s *session.Store) middleware.SessionLookup { return s },
			func(s *session.Store) api.SessionRevoker { return s },
			func(a *organization.AssignmentService) api.AssignmentManager { return a },
			middleware.NewAccess,
			api.New,
			httptransport.NewHTTPServer,
			fx.Annotate(dbReadiness, fx.ResultTags(`group:"readiness"`)),
			fx.Annotate(redisReadiness, fx.ResultTags(`group:"readiness"`)),
			fx.Annotate(opsGuard, fx.ResultTags(`group:"metrics_guards"`)),
		),
		fx.Invoke(func(db *gorm.DB, c DatabaseConfig, log *logger.Logger) error {
			if !c.AutoMigrate {
				return nil
			}
			return migrate(db, log)
		}),
		fx.Invoke(registerRoutes),
		fx.Invoke(func(log *logger.Logger) {
			log.Info("compia-server starting", zap.String("version", version))
		}),
		// last, so the manager stops before fx closes pools and clients
		fx.Invoke(shutdown.Attach),
	)
}

type routeParams struct {
	fx.In
	App      *fiber.App
	Access   *middleware.Access
	Limiter  *limiter.Limiter
	Limits   middleware.RateLimitConfig
	Handler  *api.Handler
	Shutdown *shutdown.Manager
}

// registerRoutes installs the request pipeline: metrics, caller
// resolution, rate limiting, then the API.
func registerRoutes(p routeParams) {
	p.App.Use(metrics.HTTPMetricsMiddleware(nil))
	p.App.Use(p.Access.Handler())
	if p.Limits.Enabled {
		p.App.Use(middleware.RateLimitMiddleware(p.Limiter))
	}
	p.Handler.Register(p.App)

	p.Shutdown.Register("activity-refresh", shutdown.PriorityDrain, func(context.Context) error {
		p.Access.Wait()
		return nil
	})
}

type dbParams struct {
	fx.In
	Lc     fx.Lifecycle
	Config DatabaseConfig
	Logger *logger.Logger
}

func provideDB(p dbParams) (*gorm.DB, error) {
	var (
		db  *gorm.DB
		err error
	)
	switch p.Config.Driver {
	case "mysql":
		// closes itself on stop
		return mysql.NewDB(mysql.Params{Lc: p.Lc, Config: p.Config.MySQL, Logger: p.Logger})
	case "sqlite":
		db, err = sqlite.NewDB(p.Config.SQLite, p.Logger)
	default:
		db, err = postgres.NewDB(p.Config.Postgres, p.Logger)
	}
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	p.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			p.Logger.Info("closing database pool")
			return sqlDB.Close()
		},
	})
	return db, nil
}

func provideIDGenerator() (*snowflake.Generator, error) {
	return snowflake.NewGeneratorFromEnv()
}

func provideInspections(db *gorm.DB) (inspection.Repository, error) {
	return inspection.NewRepository(db)
}

func provideRateLimiter(c middleware.RateLimitConfig, client *redis.Client) (*limiter.Limiter, error) {
	return middleware.NewRateLimiter(c, client)
}

func dbReadiness(db *gorm.DB) httptransport.ReadinessCheck {
	return httptransport.ReadinessCheck{
		Name: "database",
		Check: func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
	}
}

func redisReadiness(client *redis.Client) httptransport.ReadinessCheck {
	return httptransport.ReadinessCheck{Name: "redis", Check: client.Ping}
}

// opsGuard protects /metrics; disabled key auth passes every request.
func opsGuard(c middleware.OpsKeyConfig, log *logger.Logger) fiber.Handler {
	return middleware.NewOpsKeyAuth(c, log).Authenticate()
}
