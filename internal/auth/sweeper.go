package auth

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
)

// Sweeper removes expired refresh tokens from storage.
type Sweeper struct {
	store database.RefreshTokenStore
	now   func() time.Time
}

func NewSweeper(store database.RefreshTokenStore) *Sweeper {
	return &Sweeper{store: store, now: time.Now}
}

// Sweep deletes every refresh token whose expiry is at or before now and
// returns how many were removed.
func (s *Sweeper) Sweep(ctx context.Context) (int64, error) {
	n, err := s.store.DeleteExpiredRefreshTokens(ctx, s.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep refresh tokens: %w", err)
	}
	return n, nil
}

// Run sweeps once per interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx)
			if err != nil {
				log.Printf("sweeper: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweeper: removed %d expired refresh tokens", n)
			}
		}
	}
}
