package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
)

// SaveRefreshToken stores a refresh token
func (s *Store) SaveRefreshToken(ctx context.Context, token database.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, login, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token) DO UPDATE SET
			login = EXCLUDED.login,
			expires_at = EXCLUDED.expires_at
	`
	if _, err := s.pool.Exec(ctx, query, token.Token, token.Login, token.ExpiresAt); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// HasRefreshToken checks whether the exact token string is stored
func (s *Store) HasRefreshToken(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE token = $1)", token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check refresh token: %w", err)
	}
	return exists, nil
}

// RotateRefreshToken deletes old and stores next in one transaction
func (s *Store) RotateRefreshToken(ctx context.Context, old string, next database.RefreshToken) error {
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token = $1", old)
	if err != nil {
		return rollback(tx, fmt.Errorf("delete refresh token: %w", err))
	}
	count, err := result.RowsAffected()
	if err != nil {
		return rollback(tx, fmt.Errorf("getting rows affected: %w", err))
	}
	if count == 0 {
		return rollback(tx, database.ErrNotFound)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO refresh_tokens (token, login, expires_at) VALUES ($1, $2, $3)",
		next.Token, next.Login, next.ExpiresAt)
	if err != nil {
		return rollback(tx, fmt.Errorf("insert refresh token: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteRefreshToken removes a refresh token
func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM refresh_tokens WHERE token = $1", token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes all expired tokens and returns the count deleted
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.pool.Exec(ctx, "DELETE FROM refresh_tokens WHERE expires_at <= $1", now)
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}
