package database

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ClientStore provides access to provisioned API clients
type ClientStore interface {
	// UpsertClient creates the client or replaces its password hash
	UpsertClient(ctx context.Context, client Client) error
	// GetClient retrieves a client by login, returns ErrNotFound if missing
	GetClient(ctx context.Context, login string) (*Client, error)
}

// EmployeeStore provides access to employee records
type EmployeeStore interface {
	// CreateEmployee stores a new employee, generating its ID when unset
	CreateEmployee(ctx context.Context, employee *Employee) error
	// GetEmployee retrieves an employee by ID, returns ErrNotFound if missing
	GetEmployee(ctx context.Context, id uuid.UUID) (*Employee, error)
	// ListEmployees returns all employees ordered by name
	ListEmployees(ctx context.Context) ([]Employee, error)
	// ReplaceEmployee overwrites every mutable field of an existing employee
	ReplaceEmployee(ctx context.Context, employee *Employee) error
	// DeleteEmployee removes the employee together with its biometric record
	DeleteEmployee(ctx context.Context, id uuid.UUID) error
}

// BiometricStore provides access to enrolled face embeddings
type BiometricStore interface {
	// GetBiometric retrieves the biometric record of an employee, returns ErrNotFound if missing
	GetBiometric(ctx context.Context, employeeID uuid.UUID) (*Biometric, error)
	// Biometrics iterates every biometric record in insertion order.
	// The sequence can be ranged over repeatedly; each range runs a fresh scan.
	Biometrics(ctx context.Context) iter.Seq2[Biometric, error]
	// AppendEncodings adds encodings to the record, creating it on first use.
	// Returns ErrNotFound if the employee does not exist.
	AppendEncodings(ctx context.Context, employeeID uuid.UUID, encodings [][]float32) error
	// ReplaceEncodings swaps the whole encoding list of the record and moves
	// the record to the end of the iteration order.
	// Returns ErrNotFound if the employee does not exist.
	ReplaceEncodings(ctx context.Context, employeeID uuid.UUID, encodings [][]float32) error
	// DeleteBiometric removes the biometric record, a missing record is not an error
	DeleteBiometric(ctx context.Context, employeeID uuid.UUID) error
}

// RefreshTokenStore persists issued refresh tokens
type RefreshTokenStore interface {
	// SaveRefreshToken stores a newly issued refresh token
	SaveRefreshToken(ctx context.Context, token RefreshToken) error
	// HasRefreshToken checks whether the exact token string is stored
	HasRefreshToken(ctx context.Context, token string) (bool, error)
	// RotateRefreshToken atomically deletes old and stores next.
	// Returns ErrNotFound, and stores nothing, if old is not stored.
	RotateRefreshToken(ctx context.Context, old string, next RefreshToken) error
	// DeleteRefreshToken removes a token, a missing token is not an error
	DeleteRefreshToken(ctx context.Context, token string) error
	// DeleteExpiredRefreshTokens removes tokens with an expiry at or before now
	// and returns the count deleted
	DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error)
}

// TokenBackend is a standalone refresh token store that can replace the one of a Store.
type TokenBackend interface {
	RefreshTokenStore
	Clear(ctx context.Context) error
	Close() error
}

// Store is the complete storage backend used by the services.
type Store interface {
	ClientStore
	EmployeeStore
	BiometricStore
	RefreshTokenStore

	// Clear removes all stored data
	Clear(ctx context.Context) error
	// Close releases the underlying connections
	Close() error
}
