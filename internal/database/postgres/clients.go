package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-auth/internal/database"
)

// UpsertClient creates a client or replaces its password hash
func (s *Store) UpsertClient(ctx context.Context, client database.Client) error {
	query := `
		INSERT INTO clients (login, password_hash)
		VALUES ($1, $2)
		ON CONFLICT (login) DO UPDATE SET
			password_hash = EXCLUDED.password_hash
	`
	if _, err := s.pool.Exec(ctx, query, client.Login, client.PasswordHash); err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by login
func (s *Store) GetClient(ctx context.Context, login string) (*database.Client, error) {
	var c database.Client
	err := s.pool.QueryRow(ctx,
		"SELECT login, password_hash, created_at FROM clients WHERE login = $1", login,
	).Scan(&c.Login, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}
