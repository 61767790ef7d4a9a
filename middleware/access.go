package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/errors"
	"github.com/tiagossm/Compia20251207-sub001/identity"
	"github.com/tiagossm/Compia20251207-sub001/logger"
	"github.com/tiagossm/Compia20251207-sub001/metrics"
	"github.com/tiagossm/Compia20251207-sub001/session"
	"github.com/tiagossm/Compia20251207-sub001/tenant"

	"github.com/gofiber/fiber/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

/* ========================================================================
 * Access middleware
 * ========================================================================
 * Establishes who the caller is and which organizations they reach:
 *
 *   evidence -> resolve (or provision) -> build tenant context -> Locals
 *
 * Evidence is a verified gateway header set, or else the session cookie.
 * Missing or invalid evidence and store failures leave the request
 * anonymous; handlers that need a caller reject it. Nothing here ever
 * grants access on failure.
 * ======================================================================== */

const principalLocalKey = "compia_principal"

const (
	defaultActivityRefresh = 5 * time.Minute
	defaultRefreshTimeout  = 3 * time.Second
)

// Principal is the authenticated caller of a request.
type Principal struct {
	User   *identity.User
	Tenant tenant.Context
}

// IdentityResolver is implemented by *identity.Resolver.
type IdentityResolver interface {
	Resolve(ctx context.Context, id string) (*identity.User, error)
	ResolveOrProvision(ctx context.Context, ext identity.ExternalIdentity) (*identity.User, bool, error)
	TouchLastActive(ctx context.Context, id string, now time.Time, threshold time.Duration) (bool, error)
}

// ContextBuilder is implemented by *tenant.Builder.
type ContextBuilder interface {
	Build(ctx context.Context, user *identity.User) (tenant.Context, error)
}

// SessionLookup is implemented by *session.Store.
type SessionLookup interface {
	Lookup(ctx context.Context, id string) (*session.Session, error)
	CookieName() string
}

type AccessConfig struct {
	// ActivityRefresh is the staleness after which last_active_at is
	// rewritten.
	ActivityRefresh time.Duration `yaml:"activity_refresh" mapstructure:"activity_refresh"`
	RefreshTimeout  time.Duration `yaml:"refresh_timeout" mapstructure:"refresh_timeout"`
}

type AccessParams struct {
	fx.In
	Config   AccessConfig
	Resolver IdentityResolver
	Builder  ContextBuilder
	Sessions SessionLookup    `optional:"true"`
	Gateway  *GatewayVerifier `optional:"true"`
	Logger   *logger.Logger
}

type Access struct {
	cfg      AccessConfig
	resolver IdentityResolver
	builder  ContextBuilder
	sessions SessionLookup
	gateway  *GatewayVerifier
	log      *logger.Logger
	now      func() time.Time

	refreshes sync.WaitGroup
}

func NewAccess(p AccessParams) *Access {
	cfg := p.Config
	if cfg.ActivityRefresh <= 0 {
		cfg.ActivityRefresh = defaultActivityRefresh
	}
	if cfg.RefreshTimeout <= 0 {
		cfg.RefreshTimeout = defaultRefreshTimeout
	}
	return &Access{
		cfg:      cfg,
		resolver: p.Resolver,
		builder:  p.Builder,
		sessions: p.Sessions,
		gateway:  p.Gateway,
		log:      p.Logger,
		now:      time.Now,
	}
}

// Handler never rejects a request by itself.
func (a *Access) Handler() fiber.Handler {
	return func(c fiber.Ctx) error {
		p, outcome := a.authenticate(c)
		metrics.AccessResolutionsTotal.WithLabelValues(outcome).Inc()
		if p != nil {
			c.Locals(principalLocalKey, p)
			c.SetContext(logger.ContextWithFields(c.Context(), zap.String("user_id", p.User.ID)))
			a.refreshActivity(p.User)
		}
		return c.Next()
	}
}

func (a *Access) authenticate(c fiber.Ctx) (*Principal, string) {
	ctx := c.Context()
	log := a.log.WithContext(ctx)

	var (
		user *identity.User
		err  error
	)
	switch gw, ok, gwErr := a.gatewayIdentity(c); {
	case gwErr != nil:
		log.Warn("gateway identity rejected", zap.Error(gwErr), zap.String("path", c.Path()), zap.String("ip", c.IP()))
		return nil, "rejected"
	case ok:
		var created bool
		user, created, err = a.resolver.ResolveOrProvision(ctx, gw.External())
		if created {
			metrics.UsersProvisionedTotal.Inc()
		}
	default:
		userID, found, sessErr := a.sessionUser(c)
		if sessErr != nil {
			if errors.Is(sessErr, session.ErrSessionNotFound) {
				return nil, "rejected"
			}
			log.Error("session lookup failed", zap.Error(sessErr))
			return nil, "store_error"
		}
		if !found {
			return nil, "anonymous"
		}
		user, err = a.resolver.Resolve(ctx, userID)
	}

	if err != nil {
		if errors.Is(err, identity.ErrUserNotFound) {
			return nil, "rejected"
		}
		log.Error("identity resolution failed", zap.Error(err))
		return nil, "store_error"
	}

	tc, err := a.builder.Build(ctx, user)
	if err != nil {
		log.Error("tenant context build failed", zap.String("user_id", user.ID), zap.Error(err))
		return nil, "store_error"
	}
	return &Principal{User: user, Tenant: tc}, "authorized"
}

// gatewayIdentity reports ok=false without error when the request has no
// gateway headers or verification is disabled.
func (a *Access) gatewayIdentity(c fiber.Ctx) (GatewayUser, bool, error) {
	if !a.gateway.Enabled() {
		return GatewayUser{}, false, nil
	}
	headers, err := ReadGatewayHeaders(func(key string) string { return c.Get(key) })
	if err != nil {
		if errors.Is(err, ErrGatewayHeadersAbsent) {
			return GatewayUser{}, false, nil
		}
		return GatewayUser{}, false, err
	}
	user, err := a.gateway.Verify(c.Context(), headers)
	if err != nil {
		return GatewayUser{}, false, err
	}
	return user, true, nil
}

func (a *Access) sessionUser(c fiber.Ctx) (string, bool, error) {
	if a.sessions == nil {
		return "", false, nil
	}
	id := c.Cookies(a.sessions.CookieName())
	if id == "" {
		return "", false, nil
	}
	sess, err := a.sessions.Lookup(c.Context(), id)
	if err != nil {
		return "", false, err
	}
	return sess.UserID, true, nil
}

// refreshActivity runs detached from the request; its failures are only
// logged.
func (a *Access) refreshActivity(user *identity.User) {
	now := a.now()
	if !user.ActivityStale(now, a.cfg.ActivityRefresh) {
		return
	}
	a.refreshes.Add(1)
	go func() {
		defer a.refreshes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.RefreshTimeout)
		defer cancel()
		if _, err := a.resolver.TouchLastActive(ctx, user.ID, now, a.cfg.ActivityRefresh); err != nil {
			a.log.Debug("last-active refresh failed", zap.String("user_id", user.ID), zap.Error(err))
		}
	}()
}

// Wait blocks until in-flight activity refreshes finish.
func (a *Access) Wait() {
	a.refreshes.Wait()
}

// PrincipalFromContext returns the caller attached by Access.
func PrincipalFromContext(c fiber.Ctx) (*Principal, bool) {
	p, ok := c.Locals(principalLocalKey).(*Principal)
	return p, ok && p != nil
}

// Protected adapts a handler that needs a caller. Requests without one
// fail with AuthenticationRequired before h runs.
func Protected(h func(c fiber.Ctx, p *Principal) error) fiber.Handler {
	return func(c fiber.Ctx) error {
		p, ok := PrincipalFromContext(c)
		if !ok {
			return errors.ErrAuthenticationRequired
		}
		return h(c, p)
	}
}
