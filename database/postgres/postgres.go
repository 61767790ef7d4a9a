package postgres

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/database"
	"github.com/tiagossm/Compia20251207-sub001/logger"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Config struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     int    `yaml:"port" mapstructure:"port"`
	User     string `yaml:"user" mapstructure:"user"`
	Password string `yaml:"password" mapstructure:"password"`
	DBName   string `yaml:"dbname" mapstructure:"dbname"`
	SSLMode  string `yaml:"sslmode" mapstructure:"sslmode"`
	Schema   string `yaml:"schema" mapstructure:"schema"`
	// DSN, when set, wins over the discrete fields.
	DSN string `yaml:"dsn" mapstructure:"dsn"`

	database.PoolConfig `yaml:",inline" mapstructure:",squash"`
}

func (c Config) dsn() string {
	if c.DSN != "" {
		return c.DSN
	}
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, sslMode)
	if c.Schema != "" {
		dsn = fmt.Sprintf("%s search_path=%s", dsn, c.Schema)
	}
	return dsn
}

func NewDB(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	dsn := cfg.dsn()
	log.Info("connecting to postgres", zap.String("dsn", sanitizeDSN(dsn)))

	db, err := gorm.Open(postgres.New(postgres.Config{DSN: dsn}), &gorm.Config{
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

	return db, nil
}

var kvPasswordPattern = regexp.MustCompile(`(password=)(\S+)`)

// sanitizeDSN masks the password in URL or key=value DSNs. Unparseable
// URLs are returned unchanged.
func sanitizeDSN(dsn string) string {
	if !strings.Contains(dsn, "://") {
		return kvPasswordPattern.ReplaceAllString(dsn, "${1}***")
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return dsn
	}
	if u.User != nil {
		if _, ok := u.User.Password(); ok {
			u.User = url.UserPassword(u.User.Username(), "***")
		}
	}
	return u.String()
}
