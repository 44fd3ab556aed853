// Package redisdb keeps refresh tokens in Redis instead of the SQL backend.
package redisdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "faceauth"

// rotateScript removes the old token and adds the new one atomically.
// KEYS[1] expiry zset, KEYS[2] login hash
// ARGV: old token, new token, new expiry (unix ms), login
const rotateScript = `
local removed = redis.call("ZREM", KEYS[1], ARGV[1])
if removed == 0 then
  return 0
end
redis.call("HDEL", KEYS[2], ARGV[1])
redis.call("ZADD", KEYS[1], ARGV[3], ARGV[2])
redis.call("HSET", KEYS[2], ARGV[2], ARGV[4])
return 1
`

var rotateLua = redis.NewScript(rotateScript)

// sweepScript removes up to ARGV[2] tokens scored at or below ARGV[1] and
// returns how many it removed.
const sweepScript = `
local expired = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1], "LIMIT", 0, ARGV[2])
if #expired == 0 then
  return 0
end
redis.call("ZREM", KEYS[1], unpack(expired))
redis.call("HDEL", KEYS[2], unpack(expired))
return #expired
`

// sweepBatchSize bounds the tokens unpacked into a single ZREM/HDEL call.
const sweepBatchSize = 500

var sweepLua = redis.NewScript(sweepScript)

// Store is a Redis-backed refresh token store. Tokens live in a sorted set
// scored by expiry, the owning login in a companion hash.
type Store struct {
	redis  redis.UniversalClient
	prefix string
}

var _ database.TokenBackend = (*Store)(nil)

// NewStore creates a token store on an existing Redis client.
func NewStore(client redis.UniversalClient, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{redis: client, prefix: prefix}
}

// Open connects to the Redis server at url (redis://...) and verifies the connection.
func Open(ctx context.Context, url string) (*Store, error) {
	if url == "" {
		return nil, errors.New("redis URL is required")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}
	return NewStore(client, DefaultPrefix), nil
}

func (s *Store) expiryKey() string {
	return s.prefix + ":refresh_tokens"
}

func (s *Store) loginKey() string {
	return s.prefix + ":refresh_token_logins"
}

func score(t time.Time) float64 {
	return float64(t.UnixMilli())
}

// SaveRefreshToken stores a refresh token
func (s *Store) SaveRefreshToken(ctx context.Context, token database.RefreshToken) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZAdd(ctx, s.expiryKey(), redis.Z{Score: score(token.ExpiresAt), Member: token.Token})
		pipe.HSet(ctx, s.loginKey(), token.Token, token.Login)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// HasRefreshToken checks whether the exact token string is stored
func (s *Store) HasRefreshToken(ctx context.Context, token string) (bool, error) {
	err := s.redis.ZScore(ctx, s.expiryKey(), token).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check refresh token: %w", err)
	}
	return true, nil
}

// RotateRefreshToken deletes old and stores next in one Lua script
func (s *Store) RotateRefreshToken(ctx context.Context, old string, next database.RefreshToken) error {
	res, err := rotateLua.Run(ctx, s.redis,
		[]string{s.expiryKey(), s.loginKey()},
		old, next.Token, strconv.FormatInt(next.ExpiresAt.UnixMilli(), 10), next.Login,
	).Int()
	if err != nil {
		return fmt.Errorf("rotate refresh token: %w", err)
	}
	if res == 0 {
		return database.ErrNotFound
	}
	return nil
}

// DeleteRefreshToken removes a refresh token
func (s *Store) DeleteRefreshToken(ctx context.Context, token string) error {
	_, err := s.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.ZRem(ctx, s.expiryKey(), token)
		pipe.HDel(ctx, s.loginKey(), token)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes all tokens expiring at or before now.
// Tokens are removed in batches, each batch in one script call.
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	cutoff := strconv.FormatInt(now.UnixMilli(), 10)
	var total int64
	for {
		n, err := sweepLua.Run(ctx, s.redis,
			[]string{s.expiryKey(), s.loginKey()},
			cutoff, sweepBatchSize,
		).Int64()
		if err != nil {
			return total, fmt.Errorf("delete expired refresh tokens: %w", err)
		}
		total += n
		if n < sweepBatchSize {
			return total, nil
		}
		if err := ctx.Err(); err != nil {
			return total, err
		}
	}
}

// Clear removes every stored token
func (s *Store) Clear(ctx context.Context) error {
	if err := s.redis.Del(ctx, s.expiryKey(), s.loginKey()).Err(); err != nil {
		return fmt.Errorf("clear refresh tokens: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (s *Store) Close() error {
	if err := s.redis.Close(); err != nil {
		return fmt.Errorf("closing redis connection: %w", err)
	}
	return nil
}
