// Package mock provides an in-memory implementation of the database interfaces for testing.
package mock

import (
	"context"
	"iter"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/database"
)

// MockStore is an in-memory implementation of database.Store
type MockStore struct {
	mu         sync.RWMutex
	clients    map[string]database.Client
	employees  map[uuid.UUID]database.Employee
	biometrics map[uuid.UUID]*database.Biometric
	tokens     map[string]database.RefreshToken
	seq        int64
	closed     bool

	// Error injection
	GetClientError      error
	UpsertClientError   error
	GetEmployeeError    error
	ListEmployeesError  error
	CreateEmployeeError error
	BiometricsError     error
	SaveEncodingsError  error
	SaveTokenError      error
	HasTokenError       error
	RotateTokenError    error
	DeleteExpiredError  error
}

// NewMockStore creates a new empty mock store
func NewMockStore() *MockStore {
	return &MockStore{
		clients:    make(map[string]database.Client),
		employees:  make(map[uuid.UUID]database.Employee),
		biometrics: make(map[uuid.UUID]*database.Biometric),
		tokens:     make(map[string]database.RefreshToken),
	}
}

var _ database.Store = (*MockStore)(nil)

// UpsertClient creates or replaces a client
func (m *MockStore) UpsertClient(ctx context.Context, client database.Client) error {
	if m.UpsertClientError != nil {
		return m.UpsertClientError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if client.CreatedAt.IsZero() {
		client.CreatedAt = time.Now()
	}
	m.clients[client.Login] = client
	return nil
}

// GetClient retrieves a client by login
func (m *MockStore) GetClient(ctx context.Context, login string) (*database.Client, error) {
	if m.GetClientError != nil {
		return nil, m.GetClientError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[login]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &c, nil
}

// CreateEmployee stores a new employee
func (m *MockStore) CreateEmployee(ctx context.Context, employee *database.Employee) error {
	if m.CreateEmployeeError != nil {
		return m.CreateEmployeeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if employee.ID == uuid.Nil {
		employee.ID = uuid.New()
	}
	m.employees[employee.ID] = *employee
	return nil
}

// GetEmployee retrieves an employee by ID
func (m *MockStore) GetEmployee(ctx context.Context, id uuid.UUID) (*database.Employee, error) {
	if m.GetEmployeeError != nil {
		return nil, m.GetEmployeeError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.employees[id]
	if !ok {
		return nil, database.ErrNotFound
	}
	return &e, nil
}

// ListEmployees returns all employees ordered by name
func (m *MockStore) ListEmployees(ctx context.Context) ([]database.Employee, error) {
	if m.ListEmployeesError != nil {
		return nil, m.ListEmployeesError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]database.Employee, 0, len(m.employees))
	for _, e := range m.employees {
		result = append(result, e)
	}
	slices.SortFunc(result, func(a, b database.Employee) int {
		if c := strings.Compare(a.SecondName, b.SecondName); c != 0 {
			return c
		}
		if c := strings.Compare(a.FirstName, b.FirstName); c != 0 {
			return c
		}
		return strings.Compare(a.ID.String(), b.ID.String())
	})
	return result, nil
}

// ReplaceEmployee overwrites an existing employee
func (m *MockStore) ReplaceEmployee(ctx context.Context, employee *database.Employee) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[employee.ID]; !ok {
		return database.ErrNotFound
	}
	m.employees[employee.ID] = *employee
	return nil
}

// DeleteEmployee removes an employee and its biometric record
func (m *MockStore) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[id]; !ok {
		return database.ErrNotFound
	}
	delete(m.employees, id)
	delete(m.biometrics, id)
	return nil
}

// GetBiometric retrieves the biometric record of an employee
func (m *MockStore) GetBiometric(ctx context.Context, employeeID uuid.UUID) (*database.Biometric, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.biometrics[employeeID]
	if !ok {
		return nil, database.ErrNotFound
	}
	c := cloneBiometric(b)
	return &c, nil
}

// Biometrics iterates all biometric records ordered by insertion sequence
func (m *MockStore) Biometrics(ctx context.Context) iter.Seq2[database.Biometric, error] {
	return func(yield func(database.Biometric, error) bool) {
		if m.BiometricsError != nil {
			yield(database.Biometric{}, m.BiometricsError)
			return
		}
		m.mu.RLock()
		records := make([]database.Biometric, 0, len(m.biometrics))
		for _, b := range m.biometrics {
			records = append(records, cloneBiometric(b))
		}
		m.mu.RUnlock()

		slices.SortFunc(records, func(a, b database.Biometric) int {
			switch {
			case a.Seq < b.Seq:
				return -1
			case a.Seq > b.Seq:
				return 1
			}
			return 0
		})
		for _, rec := range records {
			if err := ctx.Err(); err != nil {
				yield(database.Biometric{}, err)
				return
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

// AppendEncodings adds encodings to an employee's record
func (m *MockStore) AppendEncodings(ctx context.Context, employeeID uuid.UUID, encodings [][]float32) error {
	return m.saveEncodings(employeeID, encodings, false)
}

// ReplaceEncodings replaces the encodings of an employee's record
func (m *MockStore) ReplaceEncodings(ctx context.Context, employeeID uuid.UUID, encodings [][]float32) error {
	return m.saveEncodings(employeeID, encodings, true)
}

func (m *MockStore) saveEncodings(employeeID uuid.UUID, encodings [][]float32, replace bool) error {
	if m.SaveEncodingsError != nil {
		return m.SaveEncodingsError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.employees[employeeID]; !ok {
		return database.ErrNotFound
	}
	b, ok := m.biometrics[employeeID]
	if !ok || replace {
		m.seq++
		b = &database.Biometric{EmployeeID: employeeID, Seq: m.seq}
		m.biometrics[employeeID] = b
	}
	for _, enc := range encodings {
		b.Encodings = append(b.Encodings, slices.Clone(enc))
	}
	b.UpdatedAt = time.Now()
	return nil
}

// DeleteBiometric removes an employee's biometric record
func (m *MockStore) DeleteBiometric(ctx context.Context, employeeID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.biometrics, employeeID)
	return nil
}

// SaveRefreshToken stores a refresh token
func (m *MockStore) SaveRefreshToken(ctx context.Context, token database.RefreshToken) error {
	if m.SaveTokenError != nil {
		return m.SaveTokenError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[token.Token] = token
	return nil
}

// HasRefreshToken checks whether a refresh token is stored
func (m *MockStore) HasRefreshToken(ctx context.Context, token string) (bool, error) {
	if m.HasTokenError != nil {
		return false, m.HasTokenError
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.tokens[token]
	return ok, nil
}

// RotateRefreshToken replaces old with next under a single lock
func (m *MockStore) RotateRefreshToken(ctx context.Context, old string, next database.RefreshToken) error {
	if m.RotateTokenError != nil {
		return m.RotateTokenError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[old]; !ok {
		return database.ErrNotFound
	}
	delete(m.tokens, old)
	m.tokens[next.Token] = next
	return nil
}

// DeleteRefreshToken removes a refresh token
func (m *MockStore) DeleteRefreshToken(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, token)
	return nil
}

// DeleteExpiredRefreshTokens removes tokens expired at or before now
func (m *MockStore) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	if m.DeleteExpiredError != nil {
		return 0, m.DeleteExpiredError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for key, t := range m.tokens {
		if t.Expired(now) {
			delete(m.tokens, key)
			count++
		}
	}
	return count, nil
}

// TokenCount returns the number of stored refresh tokens
func (m *MockStore) TokenCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.tokens)
}

// Clear removes all data
func (m *MockStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients = make(map[string]database.Client)
	m.employees = make(map[uuid.UUID]database.Employee)
	m.biometrics = make(map[uuid.UUID]*database.Biometric)
	m.tokens = make(map[string]database.RefreshToken)
	return nil
}

// Close marks the store as closed
func (m *MockStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// IsClosed reports whether Close was called
func (m *MockStore) IsClosed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}

func cloneBiometric(b *database.Biometric) database.Biometric {
	c := *b
	c.Encodings = make([][]float32, len(b.Encodings))
	for i, enc := range b.Encodings {
		c.Encodings[i] = slices.Clone(enc)
	}
	return c
}
