package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
)

// Claims are the JWT claims of both token types. The subject carries the token type.
type Claims struct {
	Login string `json:"login"`
	jwt.RegisteredClaims
}

// Type returns the token type discriminator.
func (c *Claims) Type() string {
	return c.Subject
}

// TokenPair is what a client receives after sign-in or refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`

	// RefreshExpiresAt is the expiry stored with the refresh token record.
	RefreshExpiresAt time.Time `json:"-"`
}

// Authority signs and validates access and refresh tokens.
type Authority struct {
	secret          []byte
	method          jwt.SigningMethod
	accessLifespan  time.Duration
	refreshLifespan time.Duration
	now             func() time.Time
}

// NewAuthority creates a token authority from the JWT configuration.
func NewAuthority(cfg config.JWTConfig) (*Authority, error) {
	if cfg.Secret == "" {
		return nil, errors.New("JWT secret is required")
	}

	var method jwt.SigningMethod
	switch cfg.Algorithm {
	case "HS256", "":
		method = jwt.SigningMethodHS256
	case "HS384":
		method = jwt.SigningMethodHS384
	case "HS512":
		method = jwt.SigningMethodHS512
	default:
		return nil, fmt.Errorf("unsupported JWT algorithm %q", cfg.Algorithm)
	}

	a := &Authority{
		secret:          []byte(cfg.Secret),
		method:          method,
		accessLifespan:  cfg.AccessLifespan.Duration(),
		refreshLifespan: cfg.RefreshLifespan.Duration(),
		now:             time.Now,
	}
	if a.accessLifespan <= 0 || a.refreshLifespan <= 0 {
		return nil, errors.New("token lifespans must be positive")
	}
	return a, nil
}

func (a *Authority) sign(login, tokenType string, now time.Time, lifespan time.Duration) (string, time.Time, error) {
	expiresAt := now.Add(lifespan)
	claims := Claims{
		Login: login,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   tokenType,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			// Unique per token so two pairs issued in the same second never collide.
			ID: uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(a.method, claims).SignedString(a.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign %s: %w", tokenType, err)
	}
	return signed, expiresAt, nil
}

// Issue creates a new access/refresh token pair for login.
func (a *Authority) Issue(login string) (*TokenPair, error) {
	now := a.now()

	access, _, err := a.sign(login, constants.AccessTokenType, now, a.accessLifespan)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := a.sign(login, constants.RefreshTokenType, now, a.refreshLifespan)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenType:        constants.TokenTypeBearer,
		RefreshExpiresAt: refreshExp.Truncate(time.Second),
	}, nil
}

// Decode verifies signature and expiry of a token, then checks that it is of expectedType.
func (a *Authority) Decode(tokenString, expectedType string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{a.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %w", ErrTokenMalformed, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrTokenMalformed
	}
	if claims.Login == "" || claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing claims", ErrTokenMalformed)
	}
	if claims.Subject != expectedType {
		return nil, fmt.Errorf("%w: expected %s, got %s", ErrTokenTypeMismatch, expectedType, claims.Subject)
	}
	return claims, nil
}
