package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"

	errs "finreview/pkg/errors"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "postgres")), mock
}

func TestPostgresStore_Get(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT key, data, version FROM records").
		WithArgs(CollectionApplications, "biz-1_1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "data", "version"}).AddRow("biz-1_1", []byte(`{"status":"review"}`), 4))

	rec, err := s.Get(context.Background(), CollectionApplications, "biz-1_1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), rec.Version)
	assert.JSONEq(t, `{"status":"review"}`, string(rec.Data))

	mock.ExpectQuery("SELECT key, data, version FROM records").
		WithArgs(CollectionApplications, "missing").
		WillReturnError(sql.ErrNoRows)

	_, err = s.Get(context.Background(), CollectionApplications, "missing")
	assert.ErrorIs(t, err, errs.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create(t *testing.T) {
	s, mock := newMockStore(t)
	data := json.RawMessage(`{"status":"pending"}`)

	mock.ExpectExec("INSERT INTO records").
		WithArgs(CollectionApplications, "biz-1_1", []byte(data), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	v, err := s.Put(context.Background(), CollectionApplications, Record{Key: "biz-1_1", Data: data})
	require.NoError(t, err)
	assert.Equal(t, int64(1), v)

	mock.ExpectExec("INSERT INTO records").
		WillReturnResult(sqlmock.NewResult(0, 0))

	_, err = s.Put(context.Background(), CollectionApplications, Record{Key: "biz-1_1", Data: data})
	assert.ErrorIs(t, err, errs.ErrAlreadyExists)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateWithVersion(t *testing.T) {
	s, mock := newMockStore(t)
	data := json.RawMessage(`{"status":"approved"}`)

	mock.ExpectExec("UPDATE records").
		WithArgs([]byte(data), sqlmock.AnyArg(), CollectionApplications, "biz-1_1", 2).
		WillReturnResult(sqlmock.NewResult(0, 1))

	v, err := s.Put(context.Background(), CollectionApplications, Record{Key: "biz-1_1", Data: data, Version: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), v)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_StaleVersion(t *testing.T) {
	s, mock := newMockStore(t)
	data := json.RawMessage(`{"status":"approved"}`)

	mock.ExpectExec("UPDATE records").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT key, data, version FROM records").
		WithArgs(CollectionApplications, "biz-1_1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "data", "version"}).AddRow("biz-1_1", []byte(`{"status":"review"}`), 3))

	_, err := s.Put(context.Background(), CollectionApplications, Record{Key: "biz-1_1", Data: data, Version: 2})
	assert.ErrorIs(t, err, errs.ErrStaleVersion)
	assert.Equal(t, errs.ReasonVersionOutdated, errs.ReasonOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Query(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("FROM records").
		WithArgs(CollectionDocuments, "ownerId", "biz-1").
		WillReturnRows(sqlmock.NewRows([]string{"key", "data", "version"}).
			AddRow("d1", []byte(`{"ownerId":"biz-1"}`), 1).
			AddRow("d2", []byte(`{"ownerId":"biz-1"}`), 2))

	recs, err := s.Query(context.Background(), CollectionDocuments, "ownerId", "biz-1")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "d2", recs[1].Key)
	assert.NoError(t, mock.ExpectationsWereMet())
}
