package audit

import (
	"context"
	"testing"
	"time"

	"finreview/pkg/domain"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockTrail(t *testing.T) (*PostgresTrail, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresTrail(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresTrail_Append(t *testing.T) {
	trail, mock := newMockTrail(t)

	mock.ExpectExec("INSERT INTO audit_entries").
		WithArgs("e-1", "adm-a", "approver", domain.ActionApprove, "app-1", false, "same_actor", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := trail.Append(context.Background(), &domain.AuditEntry{
		ID: "e-1", ActorID: "adm-a", ActorRole: "approver", Action: domain.ActionApprove,
		TargetID: "app-1", Success: false, ErrorReason: "same_actor", Timestamp: time.Now(),
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTrail_ForTarget(t *testing.T) {
	trail, mock := newMockTrail(t)
	at := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{
		"id", "actor_id", "actor_role", "action", "target_id", "success", "error_reason", "metadata", "created_at",
	}).AddRow("e-2", "adm-r", "reviewer", domain.ActionStartReview, "app-1", true, "", []byte(`{"from":"pending"}`), at)

	mock.ExpectQuery("FROM audit_entries").WithArgs("app-1", 5).WillReturnRows(rows)

	entries, err := trail.ForTarget(context.Background(), "app-1", 5)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "adm-r", entries[0].ActorID)
	assert.Equal(t, "pending", entries[0].Metadata["from"])
	assert.Equal(t, at, entries[0].Timestamp)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresTrail_LastActor(t *testing.T) {
	trail, mock := newMockTrail(t)

	mock.ExpectQuery("SELECT actor_id").
		WithArgs("app-1", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"actor_id"}).AddRow("adm-r"))

	actor, err := trail.LastActor(context.Background(), "app-1", domain.ReviewActions)
	require.NoError(t, err)
	assert.Equal(t, "adm-r", actor)

	mock.ExpectQuery("SELECT actor_id").
		WithArgs("app-9", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"actor_id"}))

	actor, err = trail.LastActor(context.Background(), "app-9", domain.ReviewActions)
	require.NoError(t, err)
	assert.Empty(t, actor)
	assert.NoError(t, mock.ExpectationsWereMet())
}
