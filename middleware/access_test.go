package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/cache/redis"
	"github.com/tiagossm/Compia20251207-sub001/database/sqlite"
	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/organization"
	"github.com/tiagossm/Compia20251207-sub001/session"
	"github.com/tiagossm/Compia20251207-sub001/tenant"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const testSecret = "gateway-secret"

type harness struct {
	db       *gorm.DB
	sessions *session.Store
	access   *Access
	app      *fiber.App
}

type whoami struct {
	UserID        string  `json:"user_id"`
	Role          string  `json:"role"`
	Organizations []int64 `json:"organizations"`
	Unrestricted  bool    `json:"unrestricted"`
}

func ptr(v int64) *int64 { return &v }

func newHarness(t *testing.T, builder ContextBuilder) *harness {
	t.Helper()
	log := logger.NewNop()

	db, err := sqlite.NewMemoryDB(uuid.NewString(), log)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&identity.User{}, &organization.Organization{}, &organization.Assignment{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("start miniredis: %v", err)
	}
	t.Cleanup(server.Close)
	rdb := goredis.NewClient(&goredis.Options{Addr: server.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	client := redis.Wrap(rdb, log)
	sessions := session.NewStore(client, session.Config{})

	if builder == nil {
		builder = tenant.NewBuilder(organization.NewWalker(db), organization.NewAssignmentService(db, nil, log), tenant.BuilderConfig{}, log)
	}
	access := NewAccess(AccessParams{
		Resolver: identity.NewResolver(db, log, identity.WithRetryDelay(time.Millisecond)),
		Builder:  builder,
		Sessions: sessions,
		Gateway: NewGatewayVerifier(GatewayConfig{
			Enabled:        true,
			Secret:         testSecret,
			AllowedIssuers: []string{"gateway"},
		}, NewRedisNonceStore(client)),
		Logger: log,
	})
	t.Cleanup(access.Wait)

	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(log)})
	app.Use(access.Handler())
	app.Get("/whoami", Protected(func(c fiber.Ctx, p *Principal) error {
		return c.JSON(whoami{
			UserID:        p.User.ID,
			Role:          p.Tenant.Role().String(),
			Organizations: p.Tenant.OrganizationIDs(),
			Unrestricted:  p.Tenant.IsSystemAdmin(),
		})
	}))
	app.Get("/admin", RequireRoles("org_admin"), func(c fiber.Ctx) error {
		return c.SendString("ok")
	})

	return &harness{
		db:       db,
		sessions: sessions,
		access:   access,
		app:      app,
	}
}

func (h *harness) addUser(t *testing.T, u identity.User) {
	t.Helper()
	if u.ApprovalStatus == "" {
		u.ApprovalStatus = identity.ApprovalApproved
	}
	if err := h.db.Create(&u).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
}

func (h *harness) login(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	sess, err := h.sessions.Create(context.Background(), userID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}
	return &http.Cookie{Name: session.DefaultCookieName, Value: sess.ID}
}

func (h *harness) gatewayHeaders(t *testing.T, user GatewayUser) http.Header {
	t.Helper()
	signed, err := SignGateway(testSecret, "gateway", time.Now(), user)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	hdr := http.Header{}
	signed.Write(hdr.Set)
	return hdr
}

// do is safe to call from any goroutine.
func (h *harness) do(path string, cookie *http.Cookie, hdr http.Header) (int, whoami, error) {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	for k, v := range hdr {
		req.Header[k] = v
	}
	resp, err := h.app.Test(req, fiber.TestConfig{Timeout: 5 * time.Second})
	if err != nil {
		return 0, whoami{}, err
	}
	defer resp.Body.Close()

	var got whoami
	if resp.StatusCode == http.StatusOK && path == "/whoami" {
		if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
			return resp.StatusCode, got, err
		}
	}
	return resp.StatusCode, got, nil
}

func (h *harness) get(t *testing.T, path string, cookie *http.Cookie, hdr http.Header) (int, whoami) {
	t.Helper()
	status, got, err := h.do(path, cookie, hdr)
	if err != nil {
		t.Fatalf("GET %s: %v", path, err)
	}
	return status, got
}

func TestAnonymousRequestIsRejectedByProtected(t *testing.T) {
	h := newHarness(t, nil)
	if status, _ := h.get(t, "/whoami", nil, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", status)
	}
	garbage := &http.Cookie{Name: session.DefaultCookieName, Value: "forged"}
	if status, _ := h.get(t, "/whoami", garbage, nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown session, got %d", status)
	}
}

func TestSessionResolvesScopedPrincipal(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, identity.User{ID: "insp-5", Role: "Technician", OrganizationID: ptr(5), IsActive: true})

	status, got := h.get(t, "/whoami", h.login(t, "insp-5"), nil)
	if status != http.StatusOK {
		t.Fatalf("expected 200, got %d", status)
	}
	if got.UserID != "insp-5" || got.Role != "inspector" || len(got.Organizations) != 1 || got.Organizations[0] != 5 {
		t.Fatalf("unexpected principal: %+v", got)
	}
}

func TestInactiveUserIsUnauthenticated(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, identity.User{ID: "gone", Role: "manager", OrganizationID: ptr(5), IsActive: false})

	if status, _ := h.get(t, "/whoami", h.login(t, "gone"), nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 for inactive user, got %d", status)
	}
}

func TestSelfHealProvisionsOnce(t *testing.T) {
	h := newHarness(t, nil)
	ext := GatewayUser{UserID: "ext-42", Email: "a@b.com", Name: "Ana"}

	status, got := h.get(t, "/whoami", nil, h.gatewayHeaders(t, ext))
	if status != http.StatusOK || got.UserID != "ext-42" {
		t.Fatalf("first request: %d %+v", status, got)
	}
	if got.Role != string(identity.DefaultRole) || len(got.Organizations) != 0 {
		t.Fatalf("provisioned user must be least privileged and unassigned: %+v", got)
	}

	var u identity.User
	if err := h.db.Where("id = ?", "ext-42").Take(&u).Error; err != nil {
		t.Fatalf("read provisioned user: %v", err)
	}
	if u.Email != "a@b.com" || u.ApprovalStatus != identity.ApprovalPending || !u.IsActive || u.Role != identity.DefaultRole {
		t.Fatalf("unexpected provisioned row: %+v", u)
	}

	status, again := h.get(t, "/whoami", nil, h.gatewayHeaders(t, ext))
	if status != http.StatusOK || again.UserID != got.UserID {
		t.Fatalf("second request: %d %+v", status, again)
	}
	var n int64
	h.db.Model(&identity.User{}).Where("id = ?", "ext-42").Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly one row, have %d", n)
	}
}

func TestConcurrentSelfHeal(t *testing.T) {
	h := newHarness(t, nil)
	ext := GatewayUser{UserID: "ext-race", Email: "race@b.com"}
	headers := []http.Header{h.gatewayHeaders(t, ext), h.gatewayHeaders(t, ext)}

	var wg sync.WaitGroup
	results := make([]whoami, len(headers))
	statuses := make([]int, len(headers))
	errs := make([]error, len(headers))
	for i := range headers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			statuses[i], results[i], errs[i] = h.do("/whoami", nil, headers[i])
		}(i)
	}
	wg.Wait()

	for i, status := range statuses {
		if errs[i] != nil || status != http.StatusOK {
			t.Fatalf("request %d failed: %d %v", i, status, errs[i])
		}
	}
	if results[0].UserID != results[1].UserID || results[0].Role != results[1].Role {
		t.Fatalf("callers saw different principals: %+v vs %+v", results[0], results[1])
	}
	var n int64
	h.db.Model(&identity.User{}).Where("id = ?", "ext-race").Count(&n)
	if n != 1 {
		t.Fatalf("expected exactly one row, have %d", n)
	}
}

func TestReplayedGatewayHeadersAreRejected(t *testing.T) {
	h := newHarness(t, nil)
	hdr := h.gatewayHeaders(t, GatewayUser{UserID: "ext-7"})

	if status, _ := h.get(t, "/whoami", nil, hdr); status != http.StatusOK {
		t.Fatalf("first use: %d", status)
	}
	if status, _ := h.get(t, "/whoami", nil, hdr); status != http.StatusUnauthorized {
		t.Fatalf("replay must be unauthenticated, got %d", status)
	}
}

type brokenBuilder struct{}

func (brokenBuilder) Build(context.Context, *identity.User) (tenant.Context, error) {
	return tenant.Context{}, errors.ErrStoreUnavailable
}

func TestStoreFailureFailsClosed(t *testing.T) {
	h := newHarness(t, brokenBuilder{})
	h.addUser(t, identity.User{ID: "root", Role: "system_admin", IsActive: true})

	if status, _ := h.get(t, "/whoami", h.login(t, "root"), nil); status != http.StatusUnauthorized {
		t.Fatalf("store failure must not authenticate, got %d", status)
	}
	if status, _ := h.get(t, "/admin", h.login(t, "root"), nil); status != http.StatusForbidden {
		t.Fatalf("store failure must not pass a role gate, got %d", status)
	}
}

func TestRequireRoles(t *testing.T) {
	h := newHarness(t, nil)
	h.addUser(t, identity.User{ID: "boss", Role: "company_admin", ManagedOrganizationID: ptr(10), IsActive: true})
	h.addUser(t, identity.User{ID: "insp", Role: "inspector", OrganizationID: ptr(10), IsActive: true})
	h.addUser(t, identity.User{ID: "root", Role: "SysAdmin", IsActive: true})

	cases := map[string]int{"boss": http.StatusOK, "insp": http.StatusForbidden, "root": http.StatusOK}
	for user, want := range cases {
		if status, _ := h.get(t, "/admin", h.login(t, user), nil); status != want {
			t.Fatalf("%s: expected %d, got %d", user, want, status)
		}
	}
	if status, _ := h.get(t, "/admin", nil, nil); status != http.StatusForbidden {
		t.Fatalf("anonymous caller: expected 403, got %d", status)
	}
}

func TestActivityRefresh(t *testing.T) {
	h := newHarness(t, nil)
	stale := time.Now().Add(-time.Hour)
	h.addUser(t, identity.User{ID: "idle", Role: "manager", OrganizationID: ptr(3), IsActive: true, LastActiveAt: &stale})

	if status, _ := h.get(t, "/whoami", h.login(t, "idle"), nil); status != http.StatusOK {
		t.Fatalf("unexpected status %d", status)
	}
	h.access.Wait()

	var u identity.User
	if err := h.db.Where("id = ?", "idle").Take(&u).Error; err != nil {
		t.Fatalf("reload: %v", err)
	}
	if u.LastActiveAt == nil || time.Since(*u.LastActiveAt) > time.Minute {
		t.Fatalf("last_active_at not refreshed: %v", u.LastActiveAt)
	}
}
