package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpr-plan-engine/internal/domain"
)

func setupMockPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	store, err := NewPostgresStore(db)
	require.NoError(t, err)
	return store, mock
}

func TestNewPostgresStore_NilDB(t *testing.T) {
	_, err := NewPostgresStore(nil)
	assert.Error(t, err)
}

func TestPostgresStore_Get(t *testing.T) {
	store, mock := setupMockPostgresStore(t)

	rows := sqlmock.NewRows([]string{"value"}).AddRow([]byte(`{"coverageTier":"basic"}`))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store WHERE key = $1")).
		WithArgs("s1:formData").
		WillReturnRows(rows)

	got, err := store.Get(context.Background(), "s1:formData")
	require.NoError(t, err)
	assert.JSONEq(t, `{"coverageTier":"basic"}`, string(got))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetMiss(t *testing.T) {
	store, mock := setupMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetFailure(t *testing.T) {
	store, mock := setupMockPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT value FROM kv_store")).
		WithArgs("k").
		WillReturnError(errors.New("connection reset"))

	_, err := store.Get(context.Background(), "k")
	require.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestPostgresStore_Set(t *testing.T) {
	store, mock := setupMockPostgresStore(t)

	value := json.RawMessage(`{"insuranceReason":"2"}`)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO kv_store (key, value, updated_at)")).
		WithArgs("s1:formData", string(value), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Set(context.Background(), "s1:formData", value))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete(t *testing.T) {
	store, mock := setupMockPostgresStore(t)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM kv_store WHERE key = $1")).
		WithArgs("k").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, store.Delete(context.Background(), "k"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
