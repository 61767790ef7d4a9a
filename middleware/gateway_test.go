package middleware

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"testing"
	"time"
)

var issuedAt = time.Unix(1700000000, 0)

type memoryNonces map[string]bool

func (m memoryNonces) Remember(_ context.Context, key string, _ time.Duration) (bool, error) {
	if m[key] {
		return false, nil
	}
	m[key] = true
	return true, nil
}

func verifierAt(cfg GatewayConfig, nonces NonceStore, now time.Time) *GatewayVerifier {
	v := NewGatewayVerifier(cfg, nonces)
	v.now = func() time.Time { return now }
	return v
}

func signed(t *testing.T, secret, issuer string, u GatewayUser) GatewayHeaders {
	t.Helper()
	h, err := SignGateway(secret, issuer, issuedAt, u)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return h
}

func TestGatewayHeadersRoundTrip(t *testing.T) {
	h := signed(t, "secret", "gateway", GatewayUser{UserID: "ext-42", Email: "a@b.com"})
	hdr := http.Header{}
	h.Write(hdr.Set)

	read, err := ReadGatewayHeaders(hdr.Get)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if read != h {
		t.Fatalf("headers changed in transit: %+v vs %+v", read, h)
	}

	u, err := verifierAt(GatewayConfig{Enabled: true, Secret: "secret"}, nil, issuedAt.Add(10*time.Second)).
		Verify(context.Background(), read)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ext := u.External(); ext.ID != "ext-42" || ext.Email != "a@b.com" {
		t.Fatalf("unexpected identity: %+v", ext)
	}
}

func TestReadGatewayHeaders(t *testing.T) {
	if _, err := ReadGatewayHeaders(http.Header{}.Get); !errors.Is(err, ErrGatewayHeadersAbsent) {
		t.Fatalf("expected absent, got %v", err)
	}
	hdr := http.Header{}
	signed(t, "secret", "gateway", GatewayUser{UserID: "u1"}).Write(hdr.Set)
	hdr.Set(headerGatewayIssuedAt, "yesterday")
	if _, err := ReadGatewayHeaders(hdr.Get); !errors.Is(err, ErrGatewayMalformed) {
		t.Fatalf("expected malformed, got %v", err)
	}
	hdr.Del(headerGatewayIssuedAt)
	hdr.Del(headerGatewayNonce)
	if _, err := ReadGatewayHeaders(hdr.Get); !errors.Is(err, ErrGatewayMalformed) {
		t.Fatalf("partial headers must be malformed, got %v", err)
	}
}

func TestGatewayVerifierRejections(t *testing.T) {
	base := GatewayConfig{Enabled: true, Secret: "secret", AllowedIssuers: []string{"gateway"}, MaxAge: 10 * time.Second}
	good := signed(t, "secret", "gateway", GatewayUser{UserID: "u1"})
	forged := base64.RawURLEncoding.EncodeToString([]byte(`{"user_id":"root"}`))

	cases := []struct {
		name   string
		cfg    func(*GatewayConfig)
		hdr    func(*GatewayHeaders)
		offset time.Duration
		want   error
	}{
		{name: "wrong secret", cfg: func(c *GatewayConfig) { c.Secret = "wrong" }, want: ErrGatewaySignature},
		{name: "tampered user", hdr: func(h *GatewayHeaders) { h.User = forged }, want: ErrGatewaySignature},
		{name: "version", hdr: func(h *GatewayHeaders) { h.Version = "2" }, want: ErrGatewayVersion},
		{name: "issuer", cfg: func(c *GatewayConfig) { c.AllowedIssuers = []string{"partner"} }, want: ErrGatewayIssuer},
		{name: "no secret", cfg: func(c *GatewayConfig) { c.Secret = "" }, want: ErrGatewayNoSecret},
		{name: "expired", offset: 11 * time.Second, want: ErrGatewayExpired},
		{name: "future", offset: -time.Minute, want: ErrGatewayFromFuture},
	}
	for _, tc := range cases {
		cfg, h := base, good
		if tc.cfg != nil {
			tc.cfg(&cfg)
		}
		if tc.hdr != nil {
			tc.hdr(&h)
		}
		_, err := verifierAt(cfg, nil, issuedAt.Add(tc.offset)).Verify(context.Background(), h)
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, err)
		}
	}
}

func TestGatewayVerifierRequiresUser(t *testing.T) {
	h := signed(t, "secret", "gateway", GatewayUser{})
	_, err := verifierAt(GatewayConfig{Secret: "secret"}, nil, issuedAt).Verify(context.Background(), h)
	if !errors.Is(err, ErrGatewayNoUser) {
		t.Fatalf("expected missing user, got %v", err)
	}
}

func TestGatewayNonceIsSingleUse(t *testing.T) {
	nonces := memoryNonces{}
	v := verifierAt(GatewayConfig{Secret: "secret"}, nonces, issuedAt)
	h := signed(t, "secret", "gateway", GatewayUser{UserID: "u1"})

	bad := h
	bad.Signature = "00"
	if _, err := v.Verify(context.Background(), bad); !errors.Is(err, ErrGatewaySignature) {
		t.Fatalf("forged: %v", err)
	}
	if _, err := v.Verify(context.Background(), h); err != nil {
		t.Fatalf("a forged attempt must not consume the nonce: %v", err)
	}
	if _, err := v.Verify(context.Background(), h); !errors.Is(err, ErrGatewayReplayed) {
		t.Fatalf("expected replay rejection, got %v", err)
	}
}

func TestGatewaySecretPerIssuer(t *testing.T) {
	h := signed(t, "partner-secret", "partner", GatewayUser{UserID: "u1"})
	cfg := GatewayConfig{Secret: "default", Secrets: map[string]string{"partner": "partner-secret"}}
	if _, err := verifierAt(cfg, nil, issuedAt).Verify(context.Background(), h); err != nil {
		t.Fatalf("per-issuer secret: %v", err)
	}
}
