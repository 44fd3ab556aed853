package auth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/database"
)

// Store is the storage needed by the authentication service.
type Store interface {
	database.ClientStore
	database.RefreshTokenStore
	Clear(ctx context.Context) error
}

// Service implements client sign-in, refresh token rotation and sign-out.
type Service struct {
	store     Store
	hasher    *Hasher
	authority *Authority
}

func NewService(store Store, hasher *Hasher, authority *Authority) *Service {
	return &Service{store: store, hasher: hasher, authority: authority}
}

// Authority returns the token authority used to validate access tokens.
func (s *Service) Authority() *Authority {
	return s.authority
}

// SignIn checks the client credentials and issues a new token pair.
// Only the refresh token is persisted.
func (s *Service) SignIn(ctx context.Context, login, password string) (*TokenPair, error) {
	client, err := s.store.GetClient(ctx, login)
	if errors.Is(err, database.ErrNotFound) {
		log.Printf("auth: sign-in rejected, unknown login %q", login)
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	if !s.hasher.Verify(login, password, client.PasswordHash) {
		log.Printf("auth: sign-in rejected, wrong password for %q", login)
		return nil, ErrInvalidCredentials
	}

	pair, err := s.authority.Issue(login)
	if err != nil {
		return nil, err
	}

	record := database.RefreshToken{Token: pair.RefreshToken, Login: login, ExpiresAt: pair.RefreshExpiresAt}
	if err := s.store.SaveRefreshToken(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to save refresh token: %w", err)
	}
	return pair, nil
}

// Rotate exchanges a stored refresh token for a new pair. The presented token
// is deleted and the new one stored atomically, so each refresh token works once.
func (s *Service) Rotate(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.authority.Decode(refreshToken, constants.RefreshTokenType)
	if err != nil {
		return nil, err
	}

	stored, err := s.store.HasRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to look up refresh token: %w", err)
	}
	if !stored {
		log.Printf("auth: SECURITY refresh token replay rejected for %q (jti %s)", claims.Login, claims.ID)
		return nil, ErrRefreshTokenNotFound
	}

	if _, err := s.store.GetClient(ctx, claims.Login); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrIdentityNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}

	pair, err := s.authority.Issue(claims.Login)
	if err != nil {
		return nil, err
	}

	next := database.RefreshToken{Token: pair.RefreshToken, Login: claims.Login, ExpiresAt: pair.RefreshExpiresAt}
	// A concurrent rotation of the same token can win between the lookup and here.
	if err := s.store.RotateRefreshToken(ctx, refreshToken, next); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			log.Printf("auth: SECURITY refresh token replay rejected for %q (jti %s)", claims.Login, claims.ID)
			return nil, ErrRefreshTokenNotFound
		}
		return nil, fmt.Errorf("failed to rotate refresh token: %w", err)
	}
	return pair, nil
}

// SignOut revokes a refresh token. Revoking an unknown token succeeds.
func (s *Service) SignOut(ctx context.Context, refreshToken string) error {
	claims, err := s.authority.Decode(refreshToken, constants.RefreshTokenType)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return err
	}

	if err := s.store.DeleteRefreshToken(ctx, refreshToken); err != nil {
		return fmt.Errorf("failed to delete refresh token: %w", err)
	}
	if claims != nil {
		log.Printf("auth: %q signed out", claims.Login)
	}
	return nil
}

// Provision stores every configured client with its hashed password.
// With clear set, all stored data is dropped first.
func (s *Service) Provision(ctx context.Context, clients []config.Client, clear bool) error {
	if clear {
		if err := s.store.Clear(ctx); err != nil {
			return fmt.Errorf("failed to clear storage: %w", err)
		}
		log.Println("auth: storage cleared")
	}

	for _, c := range clients {
		client := database.Client{Login: c.Login, PasswordHash: s.hasher.Hash(c.Login, c.Password)}
		if err := s.store.UpsertClient(ctx, client); err != nil {
			return fmt.Errorf("failed to provision client %q: %w", c.Login, err)
		}
	}
	log.Printf("auth: provisioned %d clients", len(clients))
	return nil
}
