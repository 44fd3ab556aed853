package database

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/kozaktomas/face-auth/internal/config"
)

// Opener opens a storage backend from configuration.
type Opener func(ctx context.Context, cfg *config.DatabaseConfig) (Store, error)

var (
	backends   = make(map[string]Opener)
	backendsMu sync.RWMutex
)

// RegisterBackend registers a storage backend under the given driver name.
// This is called by the backend packages to avoid import cycles.
func RegisterBackend(name string, open Opener) {
	backendsMu.Lock()
	defer backendsMu.Unlock()
	backends[name] = open
}

// Backends returns the sorted names of all registered backends.
func Backends() []string {
	backendsMu.RLock()
	defer backendsMu.RUnlock()
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open opens the backend selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (Store, error) {
	if cfg == nil || cfg.URL == "" {
		return nil, errors.New("database backend not initialized: DATABASE_URL is required")
	}
	backendsMu.RLock()
	open, ok := backends[cfg.Driver]
	backendsMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown DATABASE_DRIVER %q (available: %v)", cfg.Driver, Backends())
	}
	store, err := open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("opening %s backend: %w", cfg.Driver, err)
	}
	return store, nil
}

// WithTokenBackend returns a Store that keeps refresh tokens in tokens
// and everything else in store. Clear and Close apply to both.
func WithTokenBackend(store Store, tokens TokenBackend) Store {
	return &splitStore{Store: store, tokens: tokens}
}

type splitStore struct {
	Store
	tokens TokenBackend
}

func (s *splitStore) SaveRefreshToken(ctx context.Context, token RefreshToken) error {
	return s.tokens.SaveRefreshToken(ctx, token)
}

func (s *splitStore) HasRefreshToken(ctx context.Context, token string) (bool, error) {
	return s.tokens.HasRefreshToken(ctx, token)
}

func (s *splitStore) RotateRefreshToken(ctx context.Context, old string, next RefreshToken) error {
	return s.tokens.RotateRefreshToken(ctx, old, next)
}

func (s *splitStore) DeleteRefreshToken(ctx context.Context, token string) error {
	return s.tokens.DeleteRefreshToken(ctx, token)
}

func (s *splitStore) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	return s.tokens.DeleteExpiredRefreshTokens(ctx, now)
}

func (s *splitStore) Clear(ctx context.Context) error {
	if err := s.Store.Clear(ctx); err != nil {
		return err
	}
	return s.tokens.Clear(ctx)
}

func (s *splitStore) Close() error {
	return errors.Join(s.tokens.Close(), s.Store.Close())
}
