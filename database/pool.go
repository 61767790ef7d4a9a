package database

import (
	"database/sql"
	"time"
)

// PoolConfig is embedded by every driver config. Zero fields take the
// defaults below.
type PoolConfig struct {
	MaxIdleConns    int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns" mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" mapstructure:"conn_max_idle_time"`
}

var defaultPool = PoolConfig{
	MaxIdleConns:    10,
	MaxOpenConns:    25,
	ConnMaxLifetime: time.Hour,
	ConnMaxIdleTime: 20 * time.Minute,
}

func orDefault[T int | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// withDefaults never returns more idle than open connections.
func (p PoolConfig) withDefaults() PoolConfig {
	out := PoolConfig{
		MaxIdleConns:    orDefault(p.MaxIdleConns, defaultPool.MaxIdleConns),
		MaxOpenConns:    orDefault(p.MaxOpenConns, defaultPool.MaxOpenConns),
		ConnMaxLifetime: orDefault(p.ConnMaxLifetime, defaultPool.ConnMaxLifetime),
		ConnMaxIdleTime: orDefault(p.ConnMaxIdleTime, defaultPool.ConnMaxIdleTime),
	}
	out.MaxIdleConns = min(out.MaxIdleConns, out.MaxOpenConns)
	return out
}

func ApplyPool(sqlDB *sql.DB, cfg PoolConfig) {
	p := cfg.withDefaults()
	sqlDB.SetMaxOpenConns(p.MaxOpenConns)
	sqlDB.SetMaxIdleConns(p.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(p.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(p.ConnMaxIdleTime)
}
