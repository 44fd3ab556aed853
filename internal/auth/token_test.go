package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
)

var testJWTConfig = config.JWTConfig{
	Secret:          "test-secret",
	Algorithm:       "HS256",
	AccessLifespan:  config.Lifespan{Minutes: 30},
	RefreshLifespan: config.Lifespan{Days: 7},
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestAuthority(t *testing.T, cfg config.JWTConfig) (*Authority, *fakeClock) {
	t.Helper()
	a, err := NewAuthority(cfg)
	if err != nil {
		t.Fatalf("NewAuthority() error = %v", err)
	}
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	a.now = clock.Now
	return a, clock
}

func TestAuthority_IssueAndDecode(t *testing.T) {
	a, clock := newTestAuthority(t, testJWTConfig)

	pair, err := a.Issue("gate")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if pair.TokenType != "bearer" {
		t.Errorf("expected bearer token type, got %s", pair.TokenType)
	}
	if want := clock.t.Add(7 * 24 * time.Hour); !pair.RefreshExpiresAt.Equal(want) {
		t.Errorf("RefreshExpiresAt = %v, want %v", pair.RefreshExpiresAt, want)
	}

	access, err := a.Decode(pair.AccessToken, constants.AccessTokenType)
	if err != nil {
		t.Fatalf("Decode(access) error = %v", err)
	}
	if access.Login != "gate" || access.Type() != constants.AccessTokenType {
		t.Errorf("unexpected access claims: %+v", access)
	}
	if got := access.ExpiresAt.Sub(access.IssuedAt.Time); got != 30*time.Minute {
		t.Errorf("access lifespan = %v, want 30m", got)
	}

	refresh, err := a.Decode(pair.RefreshToken, constants.RefreshTokenType)
	if err != nil {
		t.Fatalf("Decode(refresh) error = %v", err)
	}
	if refresh.Login != "gate" {
		t.Errorf("expected login gate, got %s", refresh.Login)
	}
}

func TestAuthority_UniqueTokens(t *testing.T) {
	a, _ := newTestAuthority(t, testJWTConfig)

	first, err := a.Issue("gate")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	second, err := a.Issue("gate")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}
	if first.RefreshToken == second.RefreshToken {
		t.Error("expected distinct refresh tokens issued at the same instant")
	}
}

func TestAuthority_TypeMismatch(t *testing.T) {
	a, _ := newTestAuthority(t, testJWTConfig)
	pair, err := a.Issue("gate")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	if _, err := a.Decode(pair.AccessToken, constants.RefreshTokenType); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Errorf("access as refresh: expected ErrTokenTypeMismatch, got %v", err)
	}
	if _, err := a.Decode(pair.RefreshToken, constants.AccessTokenType); !errors.Is(err, ErrTokenTypeMismatch) {
		t.Errorf("refresh as access: expected ErrTokenTypeMismatch, got %v", err)
	}
}

func TestAuthority_Expired(t *testing.T) {
	a, clock := newTestAuthority(t, testJWTConfig)
	pair, err := a.Issue("gate")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	clock.Advance(31 * time.Minute)

	if _, err := a.Decode(pair.AccessToken, constants.AccessTokenType); !errors.Is(err, ErrTokenExpired) {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
	if _, err := a.Decode(pair.RefreshToken, constants.RefreshTokenType); err != nil {
		t.Errorf("refresh token should still be valid, got %v", err)
	}
}

func TestAuthority_Malformed(t *testing.T) {
	a, _ := newTestAuthority(t, testJWTConfig)
	pair, err := a.Issue("gate")
	if err != nil {
		t.Fatalf("Issue() error = %v", err)
	}

	other, _ := newTestAuthority(t, config.JWTConfig{
		Secret: "other-secret", Algorithm: "HS256",
		AccessLifespan: testJWTConfig.AccessLifespan, RefreshLifespan: testJWTConfig.RefreshLifespan,
	})
	foreign, _ := other.Issue("gate")

	hs512, _ := newTestAuthority(t, config.JWTConfig{
		Secret: "test-secret", Algorithm: "HS512",
		AccessLifespan: testJWTConfig.AccessLifespan, RefreshLifespan: testJWTConfig.RefreshLifespan,
	})
	wrongAlg, _ := hs512.Issue("gate")

	noLogin, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": constants.AccessTokenType,
		"exp": time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC).Unix(),
	}).SignedString([]byte("test-secret"))

	noExp, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   constants.AccessTokenType,
		"login": "gate",
	}).SignedString([]byte("test-secret"))

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-jwt"},
		{"empty", ""},
		{"tampered", swapPayload(pair.AccessToken, pair.RefreshToken)},
		{"foreign secret", foreign.AccessToken},
		{"wrong algorithm", wrongAlg.AccessToken},
		{"missing login", noLogin},
		{"missing exp", noExp},
		{"none algorithm", strings.Join([]string{"eyJhbGciOiJub25lIiwidHlwIjoiSldUIn0", "e30", ""}, ".")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := a.Decode(tt.token, constants.AccessTokenType)
			if !errors.Is(err, ErrTokenMalformed) {
				t.Errorf("expected ErrTokenMalformed, got %v", err)
			}
		})
	}
}

func TestNewAuthority_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *config.JWTConfig)
	}{
		{"no secret", func(c *config.JWTConfig) { c.Secret = "" }},
		{"asymmetric algorithm", func(c *config.JWTConfig) { c.Algorithm = "RS256" }},
		{"zero access lifespan", func(c *config.JWTConfig) { c.AccessLifespan = config.Lifespan{} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testJWTConfig
			tt.mutate(&cfg)
			if _, err := NewAuthority(cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

// swapPayload keeps the header and signature of a and the claims of b.
func swapPayload(a, b string) string {
	ap := strings.Split(a, ".")
	bp := strings.Split(b, ".")
	return ap[0] + "." + bp[1] + "." + ap[2]
}
