package database_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/kozaktomas/face-auth/internal/database/mock"
)

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := database.Open(context.Background(), &config.DatabaseConfig{Driver: "oracle", URL: "x"})
	if err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestOpen_MissingURL(t *testing.T) {
	_, err := database.Open(context.Background(), &config.DatabaseConfig{Driver: "postgres"})
	if err == nil {
		t.Fatal("expected error for missing URL")
	}
}

func TestOpen_RegisteredBackend(t *testing.T) {
	store := mock.NewMockStore()
	database.RegisterBackend("test-memory", func(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
		return store, nil
	})

	got, err := database.Open(context.Background(), &config.DatabaseConfig{Driver: "test-memory", URL: "mem://"})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if got != store {
		t.Error("expected the registered store to be returned")
	}
}

func TestWithTokenBackend(t *testing.T) {
	ctx := context.Background()
	primary := mock.NewMockStore()
	tokens := mock.NewMockStore()
	store := database.WithTokenBackend(primary, tokens)

	exp := time.Now().Add(time.Hour)
	if err := store.SaveRefreshToken(ctx, database.RefreshToken{Token: "t", Login: "l", ExpiresAt: exp}); err != nil {
		t.Fatalf("SaveRefreshToken() error = %v", err)
	}
	if tokens.TokenCount() != 1 || primary.TokenCount() != 0 {
		t.Errorf("expected token in token backend only, got tokens=%d primary=%d", tokens.TokenCount(), primary.TokenCount())
	}

	err := store.RotateRefreshToken(ctx, "missing", database.RefreshToken{Token: "n", ExpiresAt: exp})
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if !primary.IsClosed() || !tokens.IsClosed() {
		t.Error("expected both stores to be closed")
	}
}
