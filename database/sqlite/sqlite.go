package sqlite

import (
	"fmt"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/database"
	"github.com/tiagossm/Compia20251207-sub001/logger"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// Config selects a SQLite file for local development. Path ":memory:"
// opens a named in-memory database shared by the pool.
type Config struct {
	Path string `yaml:"path" mapstructure:"path"`
}

func NewDB(cfg Config, log *logger.Logger) (*gorm.DB, error) {
	path := cfg.Path
	if path == "" {
		path = "compia.db"
	}
	if path == ":memory:" {
		return NewMemoryDB("compia", log)
	}
	log.Info("opening sqlite database", zap.String("path", path))
	return open(path+"?_busy_timeout=5000&_foreign_keys=on", log)
}

// NewMemoryDB opens an in-memory database visible to every connection of
// the returned pool. Distinct names give isolated databases.
func NewMemoryDB(name string, log *logger.Logger) (*gorm.DB, error) {
	return open(fmt.Sprintf("file:%s?mode=memory&cache=shared&_busy_timeout=5000", name), log)
}

func open(dsn string, log *logger.Logger) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: database.NewZapGormLogger(log.Logger),
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
	// SQLite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}
