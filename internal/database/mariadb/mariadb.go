package mariadb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/database"
)

// DriverName is the DATABASE_DRIVER value selecting this backend.
const DriverName = "mariadb"

func init() {
	database.RegisterBackend(DriverName, Open)
}

// Pool manages a MariaDB connection pool.
type Pool struct {
	db *sql.DB
}

// normalizeDSN forces the driver options the store relies on.
func normalizeDSN(dsn string) (string, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse MariaDB DSN: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	return cfg.FormatDSN(), nil
}

// NewPool creates a new MariaDB connection pool.
func NewPool(cfg *config.DatabaseConfig) (*Pool, error) {
	if cfg.URL == "" {
		return nil, errors.New("MariaDB DSN is required")
	}

	dsn, err := normalizeDSN(cfg.URL)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MariaDB: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping MariaDB: %w", err)
	}

	return &Pool{db: db}, nil
}

// Close closes the connection pool.
func (p *Pool) Close() error {
	if p.db != nil {
		if err := p.db.Close(); err != nil {
			return fmt.Errorf("closing database connection: %w", err)
		}
	}
	return nil
}

// schema is applied statement by statement; the driver rejects multi-statement strings.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS clients (
		login         VARCHAR(255) PRIMARY KEY,
		password_hash VARCHAR(255) NOT NULL,
		created_at    DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS employees (
		id            CHAR(36) PRIMARY KEY,
		first_name    VARCHAR(255) NOT NULL,
		second_name   VARCHAR(255) NOT NULL,
		date_of_birth DATE NULL,
		phone         VARCHAR(255) NOT NULL DEFAULT '',
		email         VARCHAR(255) NOT NULL DEFAULT '',
		home_address  TEXT NOT NULL,
		position      VARCHAR(255) NOT NULL DEFAULT '',
		other_info    TEXT NOT NULL,
		INDEX idx_employees_name (second_name, first_name)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS biometrics (
		seq            BIGINT AUTO_INCREMENT PRIMARY KEY,
		employee_id    CHAR(36) NOT NULL UNIQUE,
		encodings_json LONGTEXT NOT NULL,
		updated_at     DATETIME(6) NOT NULL DEFAULT CURRENT_TIMESTAMP(6),
		CONSTRAINT fk_biometrics_employee FOREIGN KEY (employee_id)
			REFERENCES employees (id) ON DELETE CASCADE
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
	`CREATE TABLE IF NOT EXISTS refresh_tokens (
		token      VARCHAR(512) PRIMARY KEY,
		login      VARCHAR(255) NOT NULL,
		expires_at DATETIME(6) NOT NULL,
		INDEX idx_refresh_tokens_expires_at (expires_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the tables if they do not exist yet.
func (p *Pool) Migrate(ctx context.Context) error {
	for i, stmt := range schema {
		if _, err := p.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}

// Open connects to MariaDB, creates the schema and returns the store.
func Open(ctx context.Context, cfg *config.DatabaseConfig) (database.Store, error) {
	pool, err := NewPool(cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Migrate(ctx); err != nil {
		_ = pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return NewStore(pool), nil
}

// Store implements database.Store on MariaDB. Encodings are kept as a JSON list of lists.
type Store struct {
	pool *Pool
}

// NewStore creates a store on top of a pool with an existing schema.
func NewStore(pool *Pool) *Store {
	return &Store{pool: pool}
}

var _ database.Store = (*Store)(nil)

// Clear removes all stored data. TRUNCATE is not allowed on referenced tables.
func (s *Store) Clear(ctx context.Context) error {
	for _, table := range []string{"refresh_tokens", "biometrics", "employees", "clients"} {
		if _, err := s.pool.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	return nil
}

// Close closes the underlying pool.
func (s *Store) Close() error {
	return s.pool.Close()
}

func rollback(tx *sql.Tx, err error) error {
	if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
		return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
	}
	return err
}
