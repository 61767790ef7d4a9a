package mysql

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/database"
	"github.com/tiagossm/Compia20251207-sub001/logger"

	mysqldrv "github.com/go-sql-driver/mysql"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type Config struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	Charset  string `yaml:"charset" mapstructure:"charset"` // default utf8mb4
	Loc      string `yaml:"loc" mapstructure:"loc"`         // default UTC

	database.PoolConfig `yaml:",inline" mapstructure:",squash"`
}

// FormatDSN builds the driver DSN. parseTime is always on: the store
// scans timestamps into time.Time.
func (c Config) FormatDSN() (string, error) {
	charset := c.Charset
	if charset == "" {
		charset = "utf8mb4"
	}
	locName := c.Loc
	if locName == "" {
		locName = "UTC"
	}
	loc, err := time.LoadLocation(locName)
	if err != nil {
		return "", err
	}

	dc := mysqldrv.NewConfig()
	dc.User = c.User
	dc.Passwd = c.Password
	dc.Net = "tcp"
	dc.Addr = net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
	dc.DBName = c.DBName
	dc.ParseTime = true
	dc.Loc = loc
	dc.Params = map[string]string{"charset": charset}
	return dc.FormatDSN(), nil
}

type Params struct {
	fx.In
	Lc     fx.Lifecycle
	Config Config
	Logger *logger.Logger
}

// NewDB opens the pool and closes it when the lifecycle stops.
func NewDB(p Params) (*gorm.DB, error) {
	cfg, log := p.Config, p.Logger
	dsn, err := cfg.FormatDSN()
	if err != nil {
		return nil, err
	}
	log.Info("connecting to mysql", zap.String("host", cfg.Host), zap.String("dbname", cfg.DBName))

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger:         database.NewZapGormLogger(log.Logger),
		TranslateError: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	database.ApplyPool(sqlDB, cfg.PoolConfig)

	p.Lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return sqlDB.Close()
		},
	})
	return db, nil
}
