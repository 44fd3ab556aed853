package database

import (
	"time"

	"github.com/google/uuid"
)

// Client is an API client allowed to sign in (a door terminal, an HR tool...).
type Client struct {
	Login        string
	PasswordHash string
	CreatedAt    time.Time
}

// Employee is a person that can be recognised by the biometric matcher.
type Employee struct {
	ID          uuid.UUID `json:"_id"`
	FirstName   string    `json:"first_name"`
	SecondName  string    `json:"second_name"`
	DateOfBirth string    `json:"date_of_birth,omitempty"` // YYYY-MM-DD
	Phone       string    `json:"phone,omitempty"`
	Email       string    `json:"email,omitempty"`
	HomeAddress string    `json:"home_address,omitempty"`
	Position    string    `json:"position,omitempty"`
	OtherInfo   string    `json:"other_info,omitempty"`
}

// FullName returns the display name of the employee.
func (e *Employee) FullName() string {
	if e.SecondName == "" {
		return e.FirstName
	}
	return e.FirstName + " " + e.SecondName
}

// Biometric holds the enrolled face embeddings of one employee.
type Biometric struct {
	EmployeeID uuid.UUID
	Seq        int64       // Storage insertion order, used as the catalog order; renewed on replace
	Encodings  [][]float32 // Ordered as enrolled
	UpdatedAt  time.Time
}

// RefreshToken is a persisted refresh token. The access token is never stored.
type RefreshToken struct {
	Token     string
	Login     string
	ExpiresAt time.Time
}

// Expired reports whether the token is past its expiry at the given instant.
func (t RefreshToken) Expired(now time.Time) bool {
	return !t.ExpiresAt.After(now)
}
