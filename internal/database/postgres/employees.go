package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/database"
)

const employeeColumns = `id, first_name, second_name, date_of_birth, phone, email, home_address, position, other_info`

// dateOfBirth converts the optional YYYY-MM-DD string into a nullable DATE parameter.
func dateOfBirth(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func scanEmployee(scanner interface{ Scan(...any) error }) (database.Employee, error) {
	var e database.Employee
	var dob sql.NullTime
	err := scanner.Scan(
		&e.ID,
		&e.FirstName,
		&e.SecondName,
		&dob,
		&e.Phone,
		&e.Email,
		&e.HomeAddress,
		&e.Position,
		&e.OtherInfo,
	)
	if err != nil {
		return e, fmt.Errorf("scan employee: %w", err)
	}
	if dob.Valid {
		e.DateOfBirth = dob.Time.Format("2006-01-02")
	}
	return e, nil
}

// CreateEmployee stores a new employee, generating its ID when unset
func (s *Store) CreateEmployee(ctx context.Context, employee *database.Employee) error {
	if employee.ID == uuid.Nil {
		employee.ID = uuid.New()
	}
	query := `
		INSERT INTO employees (` + employeeColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.pool.Exec(ctx, query,
		employee.ID,
		employee.FirstName,
		employee.SecondName,
		dateOfBirth(employee.DateOfBirth),
		employee.Phone,
		employee.Email,
		employee.HomeAddress,
		employee.Position,
		employee.OtherInfo,
	)
	if err != nil {
		return fmt.Errorf("create employee: %w", err)
	}
	return nil
}

// GetEmployee retrieves an employee by ID
func (s *Store) GetEmployee(ctx context.Context, id uuid.UUID) (*database.Employee, error) {
	row := s.pool.QueryRow(ctx, "SELECT "+employeeColumns+" FROM employees WHERE id = $1", id)
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
	rows, err := s.pool.Query(ctx,
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

// ReplaceEmployee overwrites every mutable field of an existing employee
func (s *Store) ReplaceEmployee(ctx context.Context, employee *database.Employee) error {
	query := `
		UPDATE employees SET
			first_name = $2,
			second_name = $3,
			date_of_birth = $4,
			phone = $5,
			email = $6,
			home_address = $7,
			position = $8,
			other_info = $9
		WHERE id = $1
	`
	result, err := s.pool.Exec(ctx, query,
		employee.ID,
		employee.FirstName,
		employee.SecondName,
		dateOfBirth(employee.DateOfBirth),
		employee.Phone,
		employee.Email,
		employee.HomeAddress,
		employee.Position,
		employee.OtherInfo,
	)
	if err != nil {
		return fmt.Errorf("replace employee: %w", err)
	}
	return requireAffected(result)
}

// DeleteEmployee removes the employee; the biometric record goes with it via ON DELETE CASCADE
func (s *Store) DeleteEmployee(ctx context.Context, id uuid.UUID) error {
	result, err := s.pool.Exec(ctx, "DELETE FROM employees WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete employee: %w", err)
	}
	return requireAffected(result)
}

// requireAffected maps a statement that touched no rows to database.ErrNotFound.
func requireAffected(result sql.Result) error {
	count, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if count == 0 {
		return database.ErrNotFound
	}
	return nil
}
