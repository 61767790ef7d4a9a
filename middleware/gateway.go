package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/tiagossm/Compia20251207-sub001/identity"
)

/* ========================================================================
 * Gateway identity
 * ========================================================================
 * The login gateway authenticates people and forwards who they are in six
 * signed headers:
 *
 *   X-Compia-Auth-V      scheme version, "1"
 *   X-Compia-Auth-Iss    issuer
 *   X-Compia-Auth-Ts     issued-at, unix seconds
 *   X-Compia-Auth-Nonce  random, single use
 *   X-Compia-Auth-User   base64url(JSON GatewayUser)
 *   X-Compia-Auth-Sign   hex HMAC-SHA256 over "v|iss|ts|nonce|user"
 *
 * A verified set is an externally verified identity and may provision a
 * local user. Roles and organizations never travel in it.
 * ======================================================================== */

const gatewaySchemeV1 = "1"

const (
	headerGatewayVersion   = "X-Compia-Auth-V"
	headerGatewayIssuer    = "X-Compia-Auth-Iss"
	headerGatewayIssuedAt  = "X-Compia-Auth-Ts"
	headerGatewayNonce     = "X-Compia-Auth-Nonce"
	headerGatewayUser      = "X-Compia-Auth-User"
	headerGatewaySignature = "X-Compia-Auth-Sign"
)

var (
	ErrGatewayHeadersAbsent = errors.New("gateway: no identity headers")
	ErrGatewayMalformed     = errors.New("gateway: malformed identity headers")
	ErrGatewayVersion       = errors.New("gateway: unsupported scheme version")
	ErrGatewayIssuer        = errors.New("gateway: issuer not allowed")
	ErrGatewayNoSecret      = errors.New("gateway: no secret for issuer")
	ErrGatewaySignature     = errors.New("gateway: signature mismatch")
	ErrGatewayExpired       = errors.New("gateway: headers expired")
	ErrGatewayFromFuture    = errors.New("gateway: issued in the future")
	ErrGatewayNoUser        = errors.New("gateway: no user asserted")
	ErrGatewayReplayed      = errors.New("gateway: nonce already used")
)

// GatewayUser is the identity asserted by the gateway.
type GatewayUser struct {
	UserID string `json:"user_id"`
	Email  string `json:"email,omitempty"`
	Name   string `json:"name,omitempty"`
}

func (u GatewayUser) External() identity.ExternalIdentity {
	return identity.ExternalIdentity{ID: u.UserID, Email: u.Email, Name: u.Name}
}

// GatewayHeaders is one signed header set. User holds the encoded payload
// exactly as signed.
type GatewayHeaders struct {
	Version   string
	Issuer    string
	IssuedAt  int64
	Nonce     string
	User      string
	Signature string
}

// ReadGatewayHeaders returns ErrGatewayHeadersAbsent when none of the
// headers is present.
func ReadGatewayHeaders(get func(key string) string) (GatewayHeaders, error) {
	h := GatewayHeaders{
		Version:   strings.TrimSpace(get(headerGatewayVersion)),
		Issuer:    strings.TrimSpace(get(headerGatewayIssuer)),
		Nonce:     strings.TrimSpace(get(headerGatewayNonce)),
		User:      strings.TrimSpace(get(headerGatewayUser)),
		Signature: strings.TrimSpace(get(headerGatewaySignature)),
	}
	ts := strings.TrimSpace(get(headerGatewayIssuedAt))
	if h == (GatewayHeaders{}) && ts == "" {
		return h, ErrGatewayHeadersAbsent
	}
	if h.Version == "" || h.Issuer == "" || h.Signature == "" || h.Nonce == "" {
		return h, ErrGatewayMalformed
	}
	var err error
	if h.IssuedAt, err = strconv.ParseInt(ts, 10, 64); err != nil || h.IssuedAt <= 0 {
		return h, ErrGatewayMalformed
	}
	return h, nil
}

// Write emits the headers through set, e.g. http.Header.Set.
func (h GatewayHeaders) Write(set func(key, value string)) {
	set(headerGatewayVersion, h.Version)
	set(headerGatewayIssuer, h.Issuer)
	set(headerGatewayIssuedAt, strconv.FormatInt(h.IssuedAt, 10))
	set(headerGatewayNonce, h.Nonce)
	set(headerGatewayUser, h.User)
	set(headerGatewaySignature, h.Signature)
}

func (h GatewayHeaders) mac(secret string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(strings.Join([]string{
		h.Version, h.Issuer, strconv.FormatInt(h.IssuedAt, 10), h.Nonce, h.User,
	}, "|")))
	return hex.EncodeToString(m.Sum(nil))
}

// SignGateway builds a header set the way the gateway does. The service
// itself only verifies; this exists for tests and tooling.
func SignGateway(secret, issuer string, at time.Time, u GatewayUser) (GatewayHeaders, error) {
	if secret == "" {
		return GatewayHeaders{}, ErrGatewayNoSecret
	}
	payload, err := json.Marshal(u)
	if err != nil {
		return GatewayHeaders{}, err
	}
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return GatewayHeaders{}, err
	}
	h := GatewayHeaders{
		Version:  gatewaySchemeV1,
		Issuer:   issuer,
		IssuedAt: at.Unix(),
		Nonce:    hex.EncodeToString(nonce),
		User:     base64.RawURLEncoding.EncodeToString(payload),
	}
	h.Signature = h.mac(secret)
	return h, nil
}

// NonceStore reports false from Remember when key was seen within ttl.
type NonceStore interface {
	Remember(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

type GatewayConfig struct {
	Enabled bool   `yaml:"enabled" mapstructure:"enabled"`
	Secret  string `yaml:"secret" mapstructure:"secret"`
	// Secrets overrides Secret per issuer.
	Secrets        map[string]string `yaml:"secrets" mapstructure:"secrets"`
	AllowedIssuers []string          `yaml:"allowed_issuers" mapstructure:"allowed_issuers"`
	MaxAge         time.Duration     `yaml:"max_age" mapstructure:"max_age"`
	ClockSkew      time.Duration     `yaml:"clock_skew" mapstructure:"clock_skew"`
}

// GatewayVerifier checks header sets. A nil or disabled verifier is
// reported by Enabled and must not be asked to Verify.
type GatewayVerifier struct {
	cfg    GatewayConfig
	nonces NonceStore
	now    func() time.Time
}

// NewGatewayVerifier accepts a nil NonceStore, in which case a captured
// header set stays usable until it expires.
func NewGatewayVerifier(cfg GatewayConfig, nonces NonceStore) *GatewayVerifier {
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	if cfg.ClockSkew <= 0 {
		cfg.ClockSkew = 30 * time.Second
	}
	return &GatewayVerifier{cfg: cfg, nonces: nonces, now: time.Now}
}

func (v *GatewayVerifier) Enabled() bool {
	return v != nil && v.cfg.Enabled
}

// Verify consumes the nonce only after every other check passed.
func (v *GatewayVerifier) Verify(ctx context.Context, h GatewayHeaders) (GatewayUser, error) {
	if h.Version != gatewaySchemeV1 {
		return GatewayUser{}, ErrGatewayVersion
	}
	if len(v.cfg.AllowedIssuers) > 0 && !slices.Contains(v.cfg.AllowedIssuers, h.Issuer) {
		return GatewayUser{}, ErrGatewayIssuer
	}
	secret, ok := v.cfg.Secrets[h.Issuer]
	if !ok {
		secret = v.cfg.Secret
	}
	if secret == "" {
		return GatewayUser{}, ErrGatewayNoSecret
	}
	if !hmac.Equal([]byte(h.mac(secret)), []byte(h.Signature)) {
		return GatewayUser{}, ErrGatewaySignature
	}

	issued, now := time.Unix(h.IssuedAt, 0), v.now()
	switch {
	case now.Sub(issued) > v.cfg.MaxAge:
		return GatewayUser{}, ErrGatewayExpired
	case issued.After(now.Add(v.cfg.ClockSkew)):
		return GatewayUser{}, ErrGatewayFromFuture
	}

	var u GatewayUser
	raw, err := base64.RawURLEncoding.DecodeString(h.User)
	if err != nil || json.Unmarshal(raw, &u) != nil {
		return GatewayUser{}, ErrGatewayMalformed
	}
	if strings.TrimSpace(u.UserID) == "" {
		return GatewayUser{}, ErrGatewayNoUser
	}

	if v.nonces != nil {
		fresh, err := v.nonces.Remember(ctx, h.Issuer+":"+h.Nonce, v.cfg.MaxAge+v.cfg.ClockSkew)
		if err != nil {
			return GatewayUser{}, err
		}
		if !fresh {
			return GatewayUser{}, ErrGatewayReplayed
		}
	}
	return u, nil
}
