package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/face-auth/internal/database"
	"github.com/pgvector/pgvector-go"
)

// GetBiometric retrieves the biometric record of an employee
func (s *Store) GetBiometric(ctx context.Context, employeeID uuid.UUID) (*database.Biometric, error) {
	b := database.Biometric{EmployeeID: employeeID}
	err := s.pool.QueryRow(ctx,
		"SELECT seq, updated_at FROM biometrics WHERE employee_id = $1", employeeID,
	).Scan(&b.Seq, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get biometric: %w", err)
	}

	rows, err := s.pool.Query(ctx,
		"SELECT embedding FROM biometric_encodings WHERE employee_id = $1 ORDER BY position", employeeID)
	if err != nil {
		return nil, fmt.Errorf("get encodings: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var vec pgvector.Vector
		if err := rows.Scan(&vec); err != nil {
			return nil, fmt.Errorf("scan encoding: %w", err)
		}
		b.Encodings = append(b.Encodings, vec.Slice())
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate encodings: %w", err)
	}
	return &b, nil
}

// Biometrics streams every biometric record in enrollment order.
// Rows of one record are consecutive, so a record is complete once the employee changes.
func (s *Store) Biometrics(ctx context.Context) iter.Seq2[database.Biometric, error] {
	return func(yield func(database.Biometric, error) bool) {
		rows, err := s.pool.Query(ctx, `
			SELECT b.employee_id, b.seq, b.updated_at, e.embedding
			FROM biometrics b
			JOIN biometric_encodings e ON e.employee_id = b.employee_id
			ORDER BY b.seq, e.position
		`)
		if err != nil {
			yield(database.Biometric{}, fmt.Errorf("scan biometrics: %w", err))
			return
		}
		defer rows.Close()

		var cur *database.Biometric
		for rows.Next() {
			var (
				id      uuid.UUID
				seq     int64
				updated time.Time
				vec     pgvector.Vector
			)
			if err := rows.Scan(&id, &seq, &updated, &vec); err != nil {
				yield(database.Biometric{}, fmt.Errorf("scan biometric row: %w", err))
				return
			}
			if cur != nil && cur.EmployeeID != id {
				if !yield(*cur, nil) {
					return
				}
				cur = nil
			}
			if cur == nil {
				cur = &database.Biometric{EmployeeID: id, Seq: seq, UpdatedAt: updated}
			}
			cur.Encodings = append(cur.Encodings, vec.Slice())
		}
		if err := rows.Err(); err != nil {
			yield(database.Biometric{}, fmt.Errorf("iterate biometrics: %w", err))
			return
		}
		if cur != nil {
			yield(*cur, nil)
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
	tx, err := s.pool.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	// Lock the employee row so a concurrent delete cannot orphan the record.
	var exists int
	err = tx.QueryRowContext(ctx, "SELECT 1 FROM employees WHERE id = $1 FOR UPDATE", employeeID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return rollback(tx, database.ErrNotFound)
	}
	if err != nil {
		return rollback(tx, fmt.Errorf("lock employee: %w", err))
	}

	// Replacing drops the record (encodings cascade) so the new row gets a fresh seq.
	if replace {
		if _, err := tx.ExecContext(ctx, "DELETE FROM biometrics WHERE employee_id = $1", employeeID); err != nil {
			return rollback(tx, fmt.Errorf("delete biometric: %w", err))
		}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO biometrics (employee_id, updated_at)
		VALUES ($1, NOW())
		ON CONFLICT (employee_id) DO UPDATE SET updated_at = NOW()
	`, employeeID)
	if err != nil {
		return rollback(tx, fmt.Errorf("upsert biometric: %w", err))
	}

	var next int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(position) + 1, 0) FROM biometric_encodings WHERE employee_id = $1", employeeID,
	).Scan(&next)
	if err != nil {
		return rollback(tx, fmt.Errorf("next encoding position: %w", err))
	}

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO biometric_encodings (employee_id, position, embedding) VALUES ($1, $2, $3)")
	if err != nil {
		return rollback(tx, fmt.Errorf("prepare statement: %w", err))
	}
	defer stmt.Close()

	for i, enc := range encodings {
		if _, err := stmt.ExecContext(ctx, employeeID, next+i, pgvector.NewVector(enc)); err != nil {
			return rollback(tx, fmt.Errorf("insert encoding %d: %w", i, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// DeleteBiometric removes the biometric record and its encodings
func (s *Store) DeleteBiometric(ctx context.Context, employeeID uuid.UUID) error {
	if _, err := s.pool.Exec(ctx, "DELETE FROM biometrics WHERE employee_id = $1", employeeID); err != nil {
		return fmt.Errorf("delete biometric: %w", err)
	}
	return nil
}
