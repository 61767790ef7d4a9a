package main

import (
	"fmt"

	"github.com/tiagossm/Compia20251207-sub001/audit"
	"github.com/tiagossm/Compia20251207-sub001/cache/redis"
	"github.com/tiagossm/Compia20251207-sub001/conf"
	"github.com/tiagossm/Compia20251207-sub001/database/mysql"
	"github.com/tiagossm/Compia20251207-sub001/database/postgres"
	"github.com/tiagossm/Compia20251207-sub001/database/sqlite"
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/middleware"
	"github.com/tiagossm/Compia20251207-sub001/mq"
	"github.com/tiagossm/Compia20251207-sub001/session"
	"github.com/tiagossm/Compia20251207-sub001/shutdown"
	"github.com/tiagossm/Compia20251207-sub001/tenant"
	httptransport "github.com/tiagossm/Compia20251207-sub001/transport/http"

	"go.uber.org/fx"
)

const envPrefix = "COMPIA"

type DatabaseConfig struct {
	// Driver is postgres, mysql or sqlite.
	Driver   string          `yaml:"driver" mapstructure:"driver"`
	Postgres postgres.Config `yaml:"postgres" mapstructure:"postgres"`
	MySQL    mysql.Config    `yaml:"mysql" mapstructure:"mysql"`
	SQLite   sqlite.Config   `yaml:"sqlite" mapstructure:"sqlite"`
	// AutoMigrate runs the schema migration on every start.
	AutoMigrate bool `yaml:"auto_migrate" mapstructure:"auto_migrate"`
}

type Config struct {
	Logger    logger.Config              `yaml:"logger" mapstructure:"logger"`
	HTTP      httptransport.Config       `yaml:"http" mapstructure:"http"`
	Database  DatabaseConfig             `yaml:"database" mapstructure:"database"`
	Redis     redis.Config               `yaml:"redis" mapstructure:"redis"`
	Session   session.Config             `yaml:"session" mapstructure:"session"`
	Access    middleware.AccessConfig    `yaml:"access" mapstructure:"access"`
	Gateway   middleware.GatewayConfig   `yaml:"gateway" mapstructure:"gateway"`
	RateLimit middleware.RateLimitConfig `yaml:"rate_limit" mapstructure:"rate_limit"`
	Ops       middleware.OpsKeyConfig    `yaml:"ops" mapstructure:"ops"`
	Tenant    tenant.BuilderConfig       `yaml:"tenant" mapstructure:"tenant"`
	Audit     audit.Config               `yaml:"audit" mapstructure:"audit"`
	MQ        mq.Config                  `yaml:"mq" mapstructure:"mq"`
	Shutdown  shutdown.Config            `yaml:"shutdown" mapstructure:"shutdown"`
}

var defaults = map[string]any{
	"http.port":          8080,
	"database.driver":    "postgres",
	"redis.host":         "127.0.0.1",
	"redis.port":         6379,
	"rate_limit.enabled": true,
	"mq.type":            mq.TypeNone,
	"shutdown.timeout":   "30s",
}

func loadConfig(dir string) (*Config, error) {
	var cfg Config
	loader := conf.NewLoader(dir, "config", "yaml", conf.WithEnvPrefix(envPrefix), conf.WithDefaults(defaults))
	if err := loader.Load(&cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := logger.ValidateConfig(cfg.Logger); err != nil {
		return nil, err
	}
	switch cfg.Database.Driver {
	case "postgres", "mysql", "sqlite":
	default:
		return nil, fmt.Errorf("database: unknown driver %q", cfg.Database.Driver)
	}
	if cfg.Gateway.Enabled && cfg.Gateway.Secret == "" && len(cfg.Gateway.Secrets) == 0 {
		return nil, fmt.Errorf("gateway: enabled without a secret")
	}
	return &cfg, nil
}

type configOut struct {
	fx.Out

	Logger    logger.Config
	HTTP      httptransport.Config
	Database  DatabaseConfig
	Redis     redis.Config
	Session   session.Config
	Access    middleware.AccessConfig
	Gateway   middleware.GatewayConfig
	RateLimit middleware.RateLimitConfig
	Ops       middleware.OpsKeyConfig
	Tenant    tenant.BuilderConfig
	Audit     audit.Config
	MQ        *mq.Config
	Shutdown  *shutdown.Config
}

// provideSections hands each component its own section.
func provideSections(cfg *Config) configOut {
	mqCfg, shutdownCfg := cfg.MQ, cfg.Shutdown
	return configOut{
		Logger:    cfg.Logger,
		HTTP:      cfg.HTTP,
		Database:  cfg.Database,
		Redis:     cfg.Redis,
		Session:   cfg.Session,
		Access:    cfg.Access,
		Gateway:   cfg.Gateway,
		RateLimit: cfg.RateLimit,
		Ops:       cfg.Ops,
		Tenant:    cfg.Tenant,
		Audit:     cfg.Audit,
		MQ:        &mqCfg,
		Shutdown:  &shutdownCfg,
	}
}
