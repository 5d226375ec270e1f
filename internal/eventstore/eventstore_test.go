package eventstore

import (
	"context"
	"encoding/json"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupMockStore(t *testing.T) (*EventStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewEventStore(sqlx.NewDb(db, "postgres")), mock
}

var versionQuery = regexp.QuoteMeta(`SELECT COALESCE(MAX(version), 0)`)

func admitted(t *testing.T) Event {
	data, err := json.Marshal(map[string]string{"bed_id": "BED-1"})
	require.NoError(t, err)
	return Event{EventType: "StayAdmitted", EventData: data}
}

func TestAppendEvents_Success(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs("stay", "S-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO events`).
		WithArgs("S-1", "stay", "StayAdmitted", sqlmock.AnyArg(), sqlmock.AnyArg(), 1, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(7)))
	mock.ExpectCommit()

	err := store.AppendEvents(context.Background(), "S-1", "stay", 0, []Event{admitted(t)})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEvents_VersionMismatch(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs("stay", "S-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(2))
	mock.ExpectRollback()

	err := store.AppendEvents(context.Background(), "S-1", "stay", 1, []Event{admitted(t)})

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadEvents_BadMetadataIsAnError(t *testing.T) {
	store, mock := setupMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "aggregate_type", "event_type", "event_data", "metadata", "version", "created_at"}).
		AddRow(int64(1), "S-1", "stay", "StayAdmitted", []byte(`{}`), []byte(`not json`), 1, time.Now().UTC())
	mock.ExpectQuery(`FROM events`).WithArgs("stay", "S-1", 0).WillReturnRows(rows)

	_, err := store.LoadEvents(context.Background(), "S-1", "stay", 0, 0)

	assert.ErrorContains(t, err, "decode metadata of event 1")
}

func TestAppendEvents_UnencodableMetadata(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs("stay", "S-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectRollback()

	event := admitted(t)
	event.Metadata = map[string]interface{}{"bad": make(chan int)}
	err := store.AppendEvents(context.Background(), "S-1", "stay", 0, []Event{event})

	assert.ErrorContains(t, err, "marshal metadata of event 0")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEvents_UniqueViolationIsConflict(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs("stay", "S-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(0))
	mock.ExpectQuery(`INSERT INTO events`).WillReturnError(&pq.Error{Code: "23505"})
	mock.ExpectRollback()

	err := store.AppendEvents(context.Background(), "S-1", "stay", 0, []Event{admitted(t)})

	assert.ErrorIs(t, err, ErrConcurrencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppendEvents_JoinsOuterTransaction(t *testing.T) {
	store, mock := setupMockStore(t)

	mock.ExpectBegin()
	mock.ExpectQuery(versionQuery).WithArgs("stay", "S-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(1))
	mock.ExpectQuery(`INSERT INTO events`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(8)))
	mock.ExpectCommit()

	tx, err := store.db.Beginx()
	require.NoError(t, err)
	require.NoError(t, store.WithTx(tx).AppendEvents(context.Background(), "S-1", "stay", 1, []Event{admitted(t)}))
	require.NoError(t, tx.Commit())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadEvents_WithUpperBound(t *testing.T) {
	store, mock := setupMockStore(t)
	now := time.Now().UTC()

	rows := sqlmock.NewRows([]string{"id", "aggregate_id", "aggregate_type", "event_type", "event_data", "metadata", "version", "created_at"}).
		AddRow(int64(1), "S-1", "stay", "StayAdmitted", []byte(`{"bed_id":"BED-1"}`), []byte(`{"actor":"ward-a"}`), 1, now).
		AddRow(int64(2), "S-1", "stay", "StayDischarged", []byte(`{}`), nil, 2, now)
	mock.ExpectQuery(`WHERE aggregate_type = \$1 AND aggregate_id = \$2\s+AND version >= \$3\s+AND version <= \$4`).
		WithArgs("stay", "S-1", 1, 2).WillReturnRows(rows)

	events, err := store.LoadEvents(context.Background(), "S-1", "stay", 1, 2)

	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "StayAdmitted", events[0].EventType)
	assert.Equal(t, "ward-a", events[0].Metadata["actor"])
	assert.JSONEq(t, `{"bed_id":"BED-1"}`, string(events[0].EventData))
	assert.Equal(t, 2, events[1].Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCurrentVersion(t *testing.T) {
	store, mock := setupMockStore(t)
	mock.ExpectQuery(versionQuery).WithArgs("stay", "S-1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(3))

	version, err := store.GetCurrentVersion(context.Background(), "S-1", "stay")

	require.NoError(t, err)
	assert.Equal(t, 3, version)
}

func TestMemory_VersionCheck(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, "S-1", "stay", 0, []Event{{EventType: "StayAdmitted"}}))
	assert.ErrorIs(t, store.AppendEvents(ctx, "S-1", "stay", 0, []Event{{EventType: "StayAdmitted"}}), ErrConcurrencyConflict)
	require.NoError(t, store.AppendEvents(ctx, "S-1", "stay", 1, []Event{{EventType: "StayDischarged"}}))
	assert.ErrorIs(t, store.AppendEvents(ctx, "S-1", "stay", -1, nil), ErrInvalidVersion)

	events, err := store.LoadEvents(ctx, "S-1", "stay", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, 1, events[0].Version)
	assert.Equal(t, "StayDischarged", events[1].EventType)

	events, err = store.LoadEvents(ctx, "S-1", "stay", 2, 0)
	require.NoError(t, err)
	assert.Len(t, events, 1)
}

func TestMemory_CurrentVersion(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	v, err := store.GetCurrentVersion(ctx, "BED-1", "bed")
	require.NoError(t, err)
	assert.Zero(t, v)

	require.NoError(t, store.AppendEvents(ctx, "BED-1", "bed", 0, []Event{{EventType: "BedRegistered"}, {EventType: "BedStatusChanged"}}))
	v, err = store.GetCurrentVersion(ctx, "BED-1", "bed")
	require.NoError(t, err)
	assert.Equal(t, 2, v)
}

func TestMemory_JournalsAreScopedByType(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()

	require.NoError(t, store.AppendEvents(ctx, "X1", "bed", 0, []Event{{EventType: "BedRegistered"}}))
	require.NoError(t, store.AppendEvents(ctx, "X1", "stay", 0, []Event{{EventType: "StayAdmitted"}}))

	v, err := store.GetCurrentVersion(ctx, "X1", "stay")
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	events, err := store.LoadEvents(ctx, "X1", "stay", 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "StayAdmitted", events[0].EventType)
}
