package mariadb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/database"
)

// UpsertClient creates a client or replaces its password hash
func (s *Store) UpsertClient(ctx context.Context, client database.Client) error {
	query := `
		INSERT INTO clients (login, password_hash) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE password_hash = VALUES(password_hash)
	`
	if _, err := s.pool.db.ExecContext(ctx, query, client.Login, client.PasswordHash); err != nil {
		return fmt.Errorf("upsert client: %w", err)
	}
	return nil
}

// GetClient retrieves a client by login
func (s *Store) GetClient(ctx context.Context, login string) (*database.Client, error) {
	var c database.Client
	err := s.pool.db.QueryRowContext(ctx,
		"SELECT login, password_hash, created_at FROM clients WHERE login = ?", login,
	).Scan(&c.Login, &c.PasswordHash, &c.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get client: %w", err)
	}
	return &c, nil
}

const employeeColumns = `id, first_name, second_name, date_of_birth, phone, email, home_address, position, other_info`

func scanEmployee(scanner interface{ Scan(...any) error }) (database.Employee, error) {
	var e database.Employee
	var dob sql.NullTime
	err := scanner.Scan(&e.ID, &e.FirstName, &e.SecondName, &dob,
		&e.Phone, &e.Email, &e.HomeAddress, &e.Position, &e.OtherInfo)
	if err != nil {
		return e, fmt.Errorf("scan employee: %w", err)
	}
	if dob.Valid {
		e.DateOfBirth = dob.Time.Format("2006-01-02")
	}
	return e, nil
}

func employeeArgs(e *database.Employee) []any {
	return []any{
		e.FirstName,
		e.SecondName,
		sql.NullString{String: e.DateOfBirth, Valid: e.DateOfBirth != ""},
		e.Phone,
		e.Email,
		e.HomeAddress,
		e.Position,
		e.OtherInfo,
	}
}

// CreateEmployee stores a new employee, generating its ID when unset
func (s *Store) CreateEmployee(ctx context.Context, employee *database.Employee) error {
	if employee.ID == uuid.Nil {
		employee.ID = uuid.New()
	}
	args := append([]any{employee.ID}, employeeArgs(employee)...)
	query := "INSERT INTO employees (" + employeeColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)"
	if _, err := s.pool.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID
func (s *Store) GetEmployee(ctx context.Context, id uuid.UUID) (*database.Employee, error) {
	row := s.pool.db.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = ?", id)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get employee: %w", err)
	}
	return &e, nil
}

// ListEmployees returns all employees ordered by name
func (s *Store) ListEmployees(ctx context.Context) ([]database.Employee, error) {
	rows, err := s.pool.db.QueryContext(ctx,
		"SELECT "+employeeColumns+" FROM employees ORDER BY second_name, first_name, id")
	if err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	defer rows.Close()

	var employees []database.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate employees: %w", err)
	}
	return employees, nil
}

// employeeExists checks for the employee row. MySQL RowsAffected returns 0
// when an UPDATE leaves the data unchanged, so it cannot signal a missing row.
func employeeExists(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}, id uuid.UUID, lock bool) (bool, error) {
	query := "SELECT 1 FROM employees WHERE id = ?"
	if lock {
		query += " FOR UPDATE"
	}
	var one int
	err := q.QueryRowContext(ctx, query, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check employee: %w", err)
	}
	return true, nil
}

// ReplaceEmployee overwrites every mutable field of an existing employee
func (s *Store) ReplaceEmployee(ctx context.Context, employee *database.Employee) error {
	exists, err := employeeExists(ctx, s.pool.db, employee.ID, false)
	if err != nil {
		return err
	}
	if !exists {
		return database.ErrNotFound
	}
	query := `
		UPDATE employees SET
			first_name = ?, second_name = ?, date_of_birth = ?, phone = ?,
			email = ?, home_address = ?, position = ?, other_info = ?
		WHERE id = ?
	`
	args := append(employeeArgs(employee), employee.ID)
	if _, err := s.pool.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("replace employee: %w", err)
	}
	return nil
}

// DeleteEmployee removes the employee; the biometric record goes with it via ON DELETE CASCADE
func (s *Store) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.db.ExecContext(ctx, "DELETE FROM employees WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if count == 0 {
		return database.ErrNotFound
	}
	return nil
}

func decodeEncodings(data string) ([][]float32, error) {
	var encodings [][]float32
	if err := json.Unmarshal([]byte(data), &encodings); err != nil {
		return nil, fmt.Errorf("unmarshal encodings: %w", err)
	}
	return encodings, nil
}

// GetBiometric retrieves the biometric record of an employee
func (s *Store) GetBiometric(ctx context.Context, employeeID uuid.UUID) (*database.Biometric, error) {
	b := database.Biometric{EmployeeID: employeeID}
	var data string
	err := s.pool.db.QueryRowContext(ctx,
		"SELECT seq, encodings_json, updated_at FROM biometrics WHERE employee_id = ?", employeeID,
	).Scan(&b.Seq, &data, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get biometric: %w", err)
	}
	if b.Encodings, err = decodeEncodings(data); err != nil {
		return nil, err
	}
	return &b, nil
}

// Biometrics streams every biometric record in enrollment order
func (s *Store) Biometrics(ctx context.Context) iter.Seq2[database.Biometric, error] {
	return func(yield func(database.Biometric, error) bool) {
		rows, err := s.pool.db.QueryContext(ctx,
			"SELECT employee_id, seq, encodings_json, updated_at FROM biometrics ORDER BY seq")
		if err != nil {
			yield(database.Biometric{}, fmt.Errorf("scan biometrics: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var b database.Biometric
			var data string
			if err := rows.Scan(&b.EmployeeID, &b.Seq, &data, &b.UpdatedAt); err != nil {
				yield(database.Biometric{}, fmt.Errorf("scan biometric row: %w", err))
				return
			}
			if b.Encodings, err = decodeEncodings(data); err != nil {
				yield(database.Biometric{}, err)
				return
			}
			if !yield(b, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(database.Biometric{}, fmt.Errorf("iterate biometrics: %w", err))
		}
	}
}

// AppendEncodings adds encodings to the record, creating it on first use
func (s *Store) AppendEncodings(ctx context.Context, employeeID uuid.UUID, encodings [][]float32) error {
	return s.saveEncodings(ctx, employeeID, encodings, false)
}

// ReplaceEncodings swaps the whole encoding list of the record
func (s *Store) ReplaceEncodings(ctx context.Context, employeeID uuid.UUID, encodings [][]float32) error {
	return s.saveEncodings(ctx, employeeID, encodings, true)
}

func (s *Store) saveEncodings(ctx context.Context, employeeID uuid.UUID, encodings [][]float32, replace bool) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	exists, err := employeeExists(ctx, tx, employeeID, true)
	if err != nil {
		return rollback(tx, err)
	}
	if !exists {
		return rollback(tx, database.ErrNotFound)
	}

	var current string
	err = tx.QueryRowContext(ctx,
		"SELECT encodings_json FROM biometrics WHERE employee_id = ? FOR UPDATE", employeeID,
	).Scan(&current)
	found := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return rollback(tx, fmt.Errorf("load encodings: %w", err))
	}

	merged := encodings
	if found && !replace {
		existing, err := decodeEncodings(current)
		if err != nil {
			return rollback(tx, err)
		}
		merged = append(existing, encodings...)
	}
	data, err := json.Marshal(merged)
	if err != nil {
		return rollback(tx, fmt.Errorf("marshal encodings: %w", err))
	}

	// A replaced record is re-inserted so it gets a fresh seq.
	if found && replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM biometrics WHERE employee_id = ?", employeeID); err != nil {
			return rollback(tx, fmt.Errorf("delete biometric: %w", err))
		}
		found = false
	}

	now := time.Now().UTC()
	if found {
		_, err = tx.ExecContext(ctx,
			"UPDATE biometrics SET encodings_json = ?, updated_at = ? WHERE employee_id = ?", data, now, employeeID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO biometrics (employee_id, encodings_json, updated_at) VALUES (?, ?, ?)", employeeID, data, now)
	}
	if err != nil {
		return rollback(tx, fmt.Errorf("save encodings: %w", err))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteBiometric removes the biometric record
func (s *Store) DeleteBiometric(ctx context.Context, employeeID uuid.UUID) error {
	if _, err := s.pool.db.ExecContext(ctx, "DELETE FROM biometrics WHERE employee_id = ?", employeeID); err != nil {
		return fmt.Errorf("delete biometric: %w", err)
	}
	return nil
}

// SaveRefreshToken stores a refresh token
func (s *Store) SaveRefreshToken(ctx context.Context, token database.RefreshToken) error {
	query := `
		INSERT INTO refresh_tokens (token, login, expires_at) VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE login = VALUES(login), expires_at = VALUES(expires_at)
	`
	if _, err := s.pool.db.ExecContext(ctx, query, token.Token, token.Login, token.ExpiresAt.UTC()); err != nil {
		return fmt.Errorf("save refresh token: %w", err)
	}
	return nil
}

// HasRefreshToken checks whether the exact token string is stored
func (s *Store) HasRefreshToken(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := s.pool.db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM refresh_tokens WHERE token = ?)", token,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check refresh token: %w", err)
	}
	return exists, nil
}

// RotateRefreshToken deletes old and stores next in one transaction
func (s *Store) RotateRefreshToken(ctx context.Context, old string, next database.RefreshToken) error {
	tx, err := s.pool.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	result, err := tx.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token = ?", old)
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
		"INSERT INTO refresh_tokens (token, login, expires_at) VALUES (?, ?, ?)",
		next.Token, next.Login, next.ExpiresAt.UTC())
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
	if _, err := s.pool.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE token = ?", token); err != nil {
		return fmt.Errorf("delete refresh token: %w", err)
	}
	return nil
}

// DeleteExpiredRefreshTokens removes all expired tokens and returns the count deleted
func (s *Store) DeleteExpiredRefreshTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := s.pool.db.ExecContext(ctx, "DELETE FROM refresh_tokens WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete expired refresh tokens: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("getting rows affected: %w", err)
	}
	return count, nil
}
