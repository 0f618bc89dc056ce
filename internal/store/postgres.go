package store

import (
	"context"
	"database/sql"
	"time"

	"finreview/pkg/errors"

	"github.com/jmoiron/sqlx"
)

// PostgresStore keeps records in the records table as JSONB.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore creates a new PostgresStore.
func NewPostgresStore(db *sqlx.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Get retrieves a record by key.
func (s *PostgresStore) Get(ctx context.Context, collection, key string) (*Record, error) {
	var rec Record
	query := `SELECT key, data, version FROM records WHERE collection = $1 AND key = $2`
	err := s.db.GetContext(ctx, &rec, query, collection, key)
	if err == sql.ErrNoRows {
		return nil, notFound(collection, key)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get record")
	}
	return &rec, nil
}

// Put inserts a new record or updates an existing one at the supplied version.
func (s *PostgresStore) Put(ctx context.Context, collection string, rec Record) (int64, error) {
	if err := validate(rec); err != nil {
		return 0, err
	}
	now := time.Now().UTC()

	if rec.Version == 0 {
		query := `
			INSERT INTO records (collection, key, data, version, created_at, updated_at)
			VALUES ($1, $2, $3, 1, $4, $4)
			ON CONFLICT (collection, key) DO NOTHING
		`
		result, err := s.db.ExecContext(ctx, query, collection, rec.Key, []byte(rec.Data), now)
		if err != nil {
			return 0, errors.Wrap(err, "failed to create record")
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return 0, errors.Wrap(err, "failed to create record")
		}
		if rows == 0 {
			return 0, alreadyExists(collection, rec.Key)
		}
		return 1, nil
	}

	query := `
		UPDATE records
		SET data = $1, version = version + 1, updated_at = $2
		WHERE collection = $3 AND key = $4 AND version = $5
	`
	result, err := s.db.ExecContext(ctx, query, []byte(rec.Data), now, collection, rec.Key, rec.Version)
	if err != nil {
		return 0, errors.Wrap(err, "failed to update record")
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, errors.Wrap(err, "failed to update record")
	}
	if rows == 0 {
		if _, err := s.Get(ctx, collection, rec.Key); err != nil {
			return 0, err
		}
		return 0, stale(collection, rec.Key, rec.Version)
	}
	return rec.Version + 1, nil
}

// Query returns the records whose top-level JSON field equals value.
func (s *PostgresStore) Query(ctx context.Context, collection, field, value string) ([]Record, error) {
	var recs []Record
	query := `
		SELECT key, data, version
		FROM records
		WHERE collection = $1 AND data->>$2 = $3
		ORDER BY key
	`
	if err := s.db.SelectContext(ctx, &recs, query, collection, field, value); err != nil {
		return nil, errors.Wrap(err, "failed to query records")
	}
	return recs, nil
}
