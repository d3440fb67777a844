package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XavierBriggs/fortuna/services/livescore/pkg/models"
	_ "github.com/lib/pq"
)

const postgresSchema = `
	CREATE TABLE IF NOT EXISTS app_state (
		id         SMALLINT PRIMARY KEY,
		data       JSONB NOT NULL,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// stateRowID is the primary key of the single state row
const stateRowID = 1

// PostgresStore keeps the state blob in a single JSONB row
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgres connects to dsn and creates the state table if needed
func OpenPostgres(dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create app_state table: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Load reads the state row; no row is an empty state
func (s *PostgresStore) Load(ctx context.Context) (*models.State, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT data FROM app_state WHERE id = $1`, stateRowID).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NewState(), nil
		}
		return nil, fmt.Errorf("select state: %w", err)
	}
	return decodeState(data)
}

// Save upserts the state row
func (s *PostgresStore) Save(ctx context.Context, state *models.State) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO app_state (id, data, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE
		SET data = EXCLUDED.data, updated_at = EXCLUDED.updated_at
	`
	if _, err := s.db.ExecContext(ctx, query, stateRowID, string(data)); err != nil {
		return fmt.Errorf("upsert state: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
