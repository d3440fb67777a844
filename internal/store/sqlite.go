package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	_ "github.com/mattn/go-sqlite3"
)

// Schema version tracking:
// 1 - app_state single-row table
const currentSchemaVersion = 1

// SQLiteStore keeps the state blob in a single row of a local SQLite file.
// Uses WAL mode so snapshot CLI reads do not block the running service.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path and applies migrations
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// applyPragmas sets required SQLite configuration
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

// runMigrations applies incremental schema migrations based on user_version
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		_, err := db.Exec(`
			CREATE TABLE IF NOT EXISTS app_state (
				id         INTEGER PRIMARY KEY,
				data       TEXT NOT NULL,
				updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
			)
		`)
		if err != nil {
			return fmt.Errorf("migrate to v1: %w", err)
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// Load reads the state row; no row is an empty state
func (s *SQLiteStore) Load(ctx context.Context) (*models.State, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM app_state WHERE id = ?`, stateRowID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewState(), nil
		}
		return nil, fmt.Errorf("select state: %w", err)
	}
	return decodeState([]byte(data))
}

// Save upserts the state row
func (s *SQLiteStore) Save(ctx context.Context, state *models.State) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO app_state (id, data, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ', 'now'))
		ON CONFLICT (id) DO UPDATE
		SET data = excluded.data, updated_at = excluded.updated_at
	`, stateRowID, string(data))
	if err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
