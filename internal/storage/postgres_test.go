package storage

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HVN-Network/permission_layer/ledger"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(sqlx.NewDb(db, "sqlmock")), mock
}

func TestApplyExecutesAllMigrations(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	for range migrations {
		mock.ExpectExec(".*").WillReturnResult(sqlmock.NewResult(0, 0))
	}

	require.NoError(t, Apply(context.Background(), db))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEventsInsertsInOneTx(t *testing.T) {
	store, mock := newMockStore(t)
	events := sampleEvents(t, 3)
	for i := range events {
		events[i].ID = uuid.New()
		events[i].TxID = uuid.New()
	}

	mock.ExpectBegin()
	for range events {
		mock.ExpectExec("INSERT INTO events").
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, store.SaveEvents(context.Background(), events))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveEventsRollsBackOnFailure(t *testing.T) {
	store, mock := newMockStore(t)
	events := sampleEvents(t, 1)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO events").WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := store.SaveEvents(context.Background(), events)
	assert.ErrorIs(t, err, assert.AnError)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEventsDecodesRows(t *testing.T) {
	store, mock := newMockStore(t)

	attrs, err := json.Marshal([]ledger.Attr{ledger.UintAttr("n", 1)})
	require.NoError(t, err)

	rows := sqlmock.NewRows([]string{"id", "tx_id", "seq", "contract", "name", "attrs", "event_time"}).
		AddRow(uuid.New().String(), uuid.New().String(), 7, contractA.Hex(), "FeePaid", attrs, 1700000000)
	mock.ExpectQuery("SELECT id, tx_id, seq, contract, name, attrs, event_time FROM events").
		WillReturnRows(rows)

	got, err := store.Events(context.Background(), EventFilter{Name: "FeePaid"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, uint64(7), got[0].Seq)
	assert.Equal(t, contractA, got[0].Contract)

	v, ok := got[0].Attr("n")
	require.True(t, ok)
	assert.Equal(t, "1", v)
}

func TestLatestSeq(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(42))

	seq, err := store.LatestSeq(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), seq)
}
