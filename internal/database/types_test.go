package database

import (
	"testing"
	"time"
)

func TestEmployee_FullName(t *testing.T) {
	tests := []struct {
		employee Employee
		want     string
	}{
		{Employee{FirstName: "Jan", SecondName: "Novák"}, "Jan Novák"},
		{Employee{FirstName: "Jan"}, "Jan"},
	}
	for _, tc := range tests {
		if got := tc.employee.FullName(); got != tc.want {
			t.Errorf("FullName() = %q, want %q", got, tc.want)
		}
	}
}

func TestRefreshToken_Expired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name string
		exp  time.Time
		want bool
	}{
		{"past", now.Add(-time.Second), true},
		{"exactly now", now, true},
		{"future", now.Add(time.Second), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := (RefreshToken{ExpiresAt: tc.exp}).Expired(now); got != tc.want {
				t.Errorf("Expired() = %v, want %v", got, tc.want)
			}
		})
	}
}
