package auth

import (
	"testing"

	"github.com/kozaktomas/face-auth/internal/config"
)

func newTestHasher(t *testing.T, fn string) *Hasher {
	t.Helper()
	h, err := NewHasher(config.PasswordConfig{HashFunction: fn, GlobalSalt: "global", Iterations: 10})
	if err != nil {
		t.Fatalf("NewHasher() error = %v", err)
	}
	return h
}

// Global salt "sa" plus login "lt" gives the RFC 6070 salt "salt".
func TestHasher_KnownVectors(t *testing.T) {
	tests := []struct {
		fn       string
		expected string
	}{
		{"sha1", "0c60c80f961f0e71f3a9b524af6012062fe037a6"},
		{"sha256", "120fb6cffcf8b32c43e7225256c4f837a86548c92ccc35480805987cb70be17b"},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			h, err := NewHasher(config.PasswordConfig{HashFunction: tt.fn, GlobalSalt: "sa", Iterations: 1})
			if err != nil {
				t.Fatalf("NewHasher() error = %v", err)
			}
			if got := h.Hash("lt", "password"); got != tt.expected {
				t.Errorf("Hash() = %s, want %s", got, tt.expected)
			}
		})
	}
}

func TestHasher_Length(t *testing.T) {
	tests := []struct {
		fn     string
		length int
	}{
		{"sha1", 40},
		{"sha256", 64},
		{"sha512", 128},
	}

	for _, tt := range tests {
		t.Run(tt.fn, func(t *testing.T) {
			if got := len(newTestHasher(t, tt.fn).Hash("gate", "pw")); got != tt.length {
				t.Errorf("expected %d hex chars, got %d", tt.length, got)
			}
		})
	}
}

func TestHasher_PerLoginSalt(t *testing.T) {
	h := newTestHasher(t, "sha256")
	if h.Hash("alice", "same") == h.Hash("bob", "same") {
		t.Error("expected different hashes for different logins with the same password")
	}
	if h.Hash("alice", "same") != h.Hash("alice", "same") {
		t.Error("expected hashing to be deterministic")
	}
}

func TestHasher_Verify(t *testing.T) {
	h := newTestHasher(t, "sha512")
	stored := h.Hash("gate", "correct")

	tests := []struct {
		name   string
		login  string
		secret string
		want   bool
	}{
		{"correct", "gate", "correct", true},
		{"wrong password", "gate", "incorrect", false},
		{"other login", "door", "correct", false},
		{"empty password", "gate", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := h.Verify(tt.login, tt.secret, stored); got != tt.want {
				t.Errorf("Verify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewHasher_Invalid(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.PasswordConfig
	}{
		{"unknown function", config.PasswordConfig{HashFunction: "md5", GlobalSalt: "s", Iterations: 1}},
		{"no salt", config.PasswordConfig{HashFunction: "sha256", Iterations: 1}},
		{"no iterations", config.PasswordConfig{HashFunction: "sha256", GlobalSalt: "s"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewHasher(tt.cfg); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}
