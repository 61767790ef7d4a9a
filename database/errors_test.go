package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	mysqldrv "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type uniqueRow struct {
	ID   string `gorm:"primaryKey"`
	Meta JSONB
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: NewZapGormLogger(zap.NewNop())})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&uniqueRow{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	if err := db.Create(&uniqueRow{ID: "a", Meta: JSONB{"k": "v"}}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = db.Create(&uniqueRow{ID: "a"}).Error
	if !IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}

	var got uniqueRow
	if err := db.First(&got, "id = ?", "a").Error; err != nil {
		t.Fatalf("read back: %v", err)
	}
	if got.Meta["k"] != "v" {
		t.Fatalf("unexpected meta: %v", got.Meta)
	}
}

func TestIsUniqueViolationDrivers(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"postgres unique": {fmt.Errorf("insert: %w", &pgconn.PgError{Code: pgerrcode.UniqueViolation}), true},
		"postgres fk":     {&pgconn.PgError{Code: pgerrcode.ForeignKeyViolation}, false},
		"mysql duplicate": {&mysqldrv.MySQLError{Number: 1062}, true},
		"gorm translated": {gorm.ErrDuplicatedKey, true},
		"plain":           {errors.New("boom"), false},
		"nil":             {nil, false},
	}
	for name, tc := range cases {
		if got := IsUniqueViolation(tc.err); got != tc.want {
			t.Fatalf("%s: got %v want %v", name, got, tc.want)
		}
	}
}

func TestIsTransient(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"bad conn":           {driver.ErrBadConn, true},
		"pg admin shutdown":  {&pgconn.PgError{Code: pgerrcode.AdminShutdown}, true},
		"pg connection fail": {&pgconn.PgError{Code: pgerrcode.ConnectionFailure}, true},
		"pg syntax":          {&pgconn.PgError{Code: pgerrcode.SyntaxError}, false},
		"mysql deadlock":     {&mysqldrv.MySQLError{Number: 1213}, true},
		"canceled":           {context.Canceled, false},
		"not found":          {gorm.ErrRecordNotFound, false},
	}
	for name, tc := range cases {
		if got := IsTransient(tc.err); got != tc.want {
			t.Fatalf("%s: got %v want %v", name, got, tc.want)
		}
	}
}
