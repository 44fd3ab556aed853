package auth

import (
	"crypto/sha1" //nolint:gosec // selectable for compatibility with existing hashes
	"crypto/sha256"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"

	"github.com/kozaktomas/face-auth/internal/config"
	"golang.org/x/crypto/pbkdf2"
)

// Hasher derives password hashes with PBKDF2-HMAC salted by global salt and login.
type Hasher struct {
	newHash    func() hash.Hash
	size       int
	globalSalt string
	iterations int
}

// NewHasher creates a hasher from the password configuration.
func NewHasher(cfg config.PasswordConfig) (*Hasher, error) {
	if cfg.GlobalSalt == "" {
		return nil, errors.New("global salt is required")
	}
	if cfg.Iterations <= 0 {
		return nil, fmt.Errorf("iterations must be positive, got %d", cfg.Iterations)
	}

	h := &Hasher{globalSalt: cfg.GlobalSalt, iterations: cfg.Iterations}
	switch cfg.HashFunction {
	case "sha1":
		h.newHash, h.size = sha1.New, sha1.Size
	case "sha256", "":
		h.newHash, h.size = sha256.New, sha256.Size
	case "sha512":
		h.newHash, h.size = sha512.New, sha512.Size
	default:
		return nil, fmt.Errorf("unsupported hash function %q", cfg.HashFunction)
	}
	return h, nil
}

// Hash returns the hex encoded PBKDF2 digest of secret for login.
// The output is twice the digest size long.
func (h *Hasher) Hash(login, secret string) string {
	salt := []byte(h.globalSalt + login)
	key := pbkdf2.Key([]byte(secret), salt, h.iterations, h.size, h.newHash)
	return hex.EncodeToString(key)
}

// Verify recomputes the hash and compares it with stored in constant time.
func (h *Hasher) Verify(login, secret, stored string) bool {
	computed := h.Hash(login, secret)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(stored)) == 1
}
