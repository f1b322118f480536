package store

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

func TestPostgresStore_Get_Absent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM entities`).
		WithArgs("lead", "missing").
		WillReturnError(pgx.ErrNoRows)

	raw, err := s.Get(context.Background(), "lead", "missing")
	require.NoError(t, err)
	assert.Nil(t, raw)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Get_Found(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT value FROM entities`).
		WithArgs("lead", "l-1").
		WillReturnRows(pgxmock.NewRows([]string{"value"}).AddRow([]byte(`{"id":"l-1"}`)))

	raw, err := s.Get(context.Background(), "lead", "l-1")
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"l-1"}`, string(raw))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Patch_Absent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE entities SET value = value \|\|`).
		WithArgs("lead", "missing", []byte(`{"status":"confirmed"}`)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.Patch(context.Background(), "lead", "missing", json.RawMessage(`{"status":"confirmed"}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAbsent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_PatchIfAbsent(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`UPDATE entities SET value = value \|\|`).
		WithArgs("lead", "l-1", []byte(`{"comparison_id":"c-1"}`), "comparison_id").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	applied, err := s.PatchIfAbsent(context.Background(), "lead", "l-1", "comparison_id", json.RawMessage(`{"comparison_id":"c-1"}`))
	require.NoError(t, err)
	assert.True(t, applied)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Create_AppendsIndex(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`INSERT INTO entities`).
		WithArgs("lead", "l-1", []byte(`{"id":"l-1"}`)).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`INSERT INTO entity_index`).
		WithArgs("lead", "l-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := s.Create(context.Background(), "lead", "l-1", json.RawMessage(`{"id":"l-1"}`))
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Delete_SweepsIndex(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`DELETE FROM entities`).
		WithArgs("lead", "l-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec(`DELETE FROM entity_index`).
		WithArgs("lead", "l-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	err := s.Delete(context.Background(), "lead", "l-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListKeys_Paginates(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT key, position FROM entity_index`).
		WithArgs("lead", int64(0), 2).
		WillReturnRows(pgxmock.NewRows([]string{"key", "position"}).
			AddRow("a", int64(1)).
			AddRow("b", int64(2)))

	keys, next, err := s.ListKeys(context.Background(), "lead", "", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, keys)
	assert.Equal(t, "2", next)
	assert.NoError(t, mock.ExpectationsWereMet())
}
