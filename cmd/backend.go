package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-auth/internal/auth"
	"github.com/kozaktomas/face-auth/internal/biometrics"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	_ "github.com/kozaktomas/face-auth/internal/database/mariadb"  // registers the mariadb backend
	_ "github.com/kozaktomas/face-auth/internal/database/postgres" // registers the postgres backend
	"github.com/kozaktomas/face-auth/internal/database/redisdb"
	"github.com/kozaktomas/face-auth/internal/facematch"
	"github.com/kozaktomas/face-auth/internal/fingerprint"
)

// loadConfig loads and validates the environment configuration.
func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// openStore opens the configured database backend. When REDIS_URL is set,
// refresh tokens are kept in Redis instead.
func openStore(ctx context.Context, cfg *config.Config) (database.Store, error) {
	fmt.Printf("Connecting to %s database...\n", cfg.Database.Driver)
	store, err := database.Open(ctx, &cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Redis.URL == "" {
		return store, nil
	}

	fmt.Println("Using Redis for refresh tokens")
	tokens, err := redisdb.Open(ctx, cfg.Redis.URL)
	if err != nil {
		store.Close()
		return nil, err
	}
	return database.WithTokenBackend(store, tokens), nil
}

// newAuthService builds the authentication service over store.
func newAuthService(cfg *config.Config, store database.Store) (*auth.Service, error) {
	hasher, err := auth.NewHasher(cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("password hasher: %w", err)
	}
	authority, err := auth.NewAuthority(cfg.JWT)
	if err != nil {
		return nil, fmt.Errorf("token authority: %w", err)
	}
	return auth.NewService(store, hasher, authority), nil
}

// newBiometricsService builds the enrollment and recognition service over store.
func newBiometricsService(cfg *config.Config, store database.Store) (*biometrics.Service, error) {
	matcher, err := facematch.NewMatcher(store, cfg.Match)
	if err != nil {
		return nil, fmt.Errorf("matcher: %w", err)
	}
	detector := fingerprint.NewEmbeddingClient(cfg.Embedding.URL)
	extractor := fingerprint.NewExtractor(detector, cfg.Embedding.Dim, cfg.Embedding.Timeout)
	return biometrics.NewService(store, extractor, matcher, cfg.Embedding.Quality), nil
}
