package audit

import (
	"context"
	"database/sql"

	"finreview/pkg/domain"
	"finreview/pkg/errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

// PostgresTrail persists audit entries in the audit_entries table.
type PostgresTrail struct {
	db *sqlx.DB
}

// NewPostgresTrail creates a new PostgresTrail.
func NewPostgresTrail(db *sqlx.DB) *PostgresTrail {
	return &PostgresTrail{db: db}
}

// Append inserts a new audit entry.
func (r *PostgresTrail) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			id, actor_id, actor_role, action, target_id,
			success, error_reason, metadata, created_at
		) VALUES (
			:id, :actor_id, :actor_role, :action, :target_id,
			:success, :error_reason, :metadata, :created_at
		)
	`

	_, err := r.db.NamedExecContext(ctx, query, entry)
	if err != nil {
		return errors.Wrap(err, "failed to create audit entry")
	}

	return nil
}

// ForTarget returns the audit entries of one target, newest first.
func (r *PostgresTrail) ForTarget(ctx context.Context, targetID string, limit int) ([]*domain.AuditEntry, error) {
	var entries []*domain.AuditEntry
	query := `
		SELECT
			id, actor_id, actor_role, action, target_id,
			success, error_reason, metadata, created_at
		FROM audit_entries
		WHERE target_id = $1
		ORDER BY created_at DESC, seq DESC
	`
	args := []interface{}{targetID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to find audit entries")
	}
	return entries, nil
}

// LastActor returns who last successfully performed one of actions on targetID.
func (r *PostgresTrail) LastActor(ctx context.Context, targetID string, actions []string) (string, error) {
	var actorID string
	query := `
		SELECT actor_id
		FROM audit_entries
		WHERE target_id = $1 AND success AND action = ANY($2)
		ORDER BY created_at DESC, seq DESC
		LIMIT 1
	`
	err := r.db.GetContext(ctx, &actorID, query, targetID, pq.Array(actions))
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to find last actor")
	}
	return actorID, nil
}
