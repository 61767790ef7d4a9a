//go:build integration

package mysql

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/database"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/logger"

	mysqldriver "github.com/go-sql-driver/mysql"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"
	"go.uber.org/fx/fxtest"
	"gorm.io/gorm"
)

func startMySQL(t *testing.T) *gorm.DB {
	t.Helper()
	testcontainers.SkipIfProviderIsNotHealthy(t)
	ctx := context.Background()

	container, err := tcmysql.Run(ctx, "mysql:8.0",
		tcmysql.WithDatabase("compia"),
		tcmysql.WithUsername("compia"),
		tcmysql.WithPassword("compia"),
	)
	if err != nil {
		t.Fatalf("start mysql: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	dsn, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("connection string: %v", err)
	}
	parsed, err := mysqldriver.ParseDSN(dsn)
	if err != nil {
		t.Fatalf("parse dsn: %v", err)
	}
	host, rawPort, err := net.SplitHostPort(parsed.Addr)
	if err != nil {
		t.Fatalf("split addr: %v", err)
	}
	port, _ := strconv.Atoi(rawPort)

	lc := fxtest.NewLifecycle(t)
	db, err := NewDB(Params{
		Lc: lc,
		Config: Config{
			Host:       host,
			Port:       port,
			User:       parsed.User,
			Password:   parsed.Passwd,
			DBName:     parsed.DBName,
			PoolConfig: database.PoolConfig{MaxOpenConns: 16, ConnMaxLifetime: time.Minute},
		},
		Logger: logger.NewNop(),
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(lc.RequireStop)
	return db
}

func TestConcurrentProvisioningOnMySQL(t *testing.T) {
	if testing.Short() {
		t.Skip("integration")
	}
	db := startMySQL(t)
	if err := db.AutoMigrate(&identity.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	resolver := identity.NewResolver(db, logger.NewNop())
	ext := identity.ExternalIdentity{ID: "ext-42", Email: "a@b.com"}

	var (
		wg      sync.WaitGroup
		created atomic.Int32
	)
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			u, isNew, err := resolver.ResolveOrProvision(context.Background(), ext)
			if err != nil {
				t.Errorf("provision: %v", err)
				return
			}
			if u.ID != ext.ID {
				t.Errorf("resolved %q", u.ID)
			}
			if isNew {
				created.Add(1)
			}
		}()
	}
	wg.Wait()

	var n int64
	db.Model(&identity.User{}).Where("id = ?", ext.ID).Count(&n)
	if n != 1 || created.Load() != 1 {
		t.Fatalf("expected one row created once, have %d rows and %d creations", n, created.Load())
	}

	dup := identity.User{ID: ext.ID, Role: identity.DefaultRole, IsActive: true, ApprovalStatus: identity.ApprovalPending}
	if err := db.Create(&dup).Error; !database.IsUniqueViolation(err) {
		t.Fatalf("expected unique violation, got %v", err)
	}
}
