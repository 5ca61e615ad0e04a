package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS terminal_sales (
	order_id       TEXT PRIMARY KEY,
	terminal_id    TEXT NOT NULL,
	total          NUMERIC(12, 2) NOT NULL,
	amount_paid    NUMERIC(12, 2) NOT NULL,
	change_amount  NUMERIC(12, 2) NOT NULL,
	payment_method TEXT NOT NULL,
	receipt_html   TEXT NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_terminal_sales_created_at ON terminal_sales (terminal_id, created_at);`

// Store is the terminal's sales journal
type Store struct {
	db         *sqlx.DB
	terminalID string
}

// NewStore connects to the journal database and makes sure its table exists
func NewStore(databaseURL, terminalID string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := prepare(db, schema); err != nil {
		return nil, err
	}

	return &Store{db: db, terminalID: terminalID}, nil
}

// prepare configures the pool and applies ddl. db is closed when it fails.
func prepare(db *sqlx.DB, ddl string) error {
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(ddl); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the connection, used by the readiness probe
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
