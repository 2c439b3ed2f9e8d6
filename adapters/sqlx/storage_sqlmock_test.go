package sqlx_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	libsqlx "github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	storage "scorekit/adapters/sqlx"
	"scorekit/core"
)

func newMockStore(t *testing.T) (*storage.Store, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	xdb := storage.NewWithDB(libsqlx.NewDb(db, "postgres"), storage.DriverPostgres)
	cleanup := func() {
		_ = db.Close()
	}
	return xdb, mock, cleanup
}

func eventPayload(t *testing.T, ev core.SuccessEvent) string {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return string(b)
}

func TestSQLMock_Append(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	ev := core.SuccessEvent{
		ID:        "ev-1",
		UserID:    "u1",
		EventType: core.EventQuizCompleted,
		Category:  core.CategoryLearning,
		Points:    50,
		Timestamp: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC),
	}

	mock.ExpectExec(`INSERT INTO score_events`).
		WithArgs(ev.ID, ev.UserID, ev.EventType, ev.Timestamp, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Append(context.Background(), ev))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_UserEvents(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	first := core.SuccessEvent{ID: "ev-1", UserID: "u1", EventType: core.EventQuizCompleted, Points: 50}
	second := core.SuccessEvent{ID: "ev-2", UserID: "u1", EventType: core.EventLessonCompleted, Points: 40}

	mock.ExpectQuery(`SELECT payload FROM score_events WHERE user_id`).
		WithArgs(core.UserID("u1")).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}).
			AddRow(eventPayload(t, first)).
			AddRow(eventPayload(t, second)))

	events, err := store.UserEvents(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, events, 2)
	require.Equal(t, "ev-1", events[0].ID)
	require.Equal(t, int64(40), events[1].Points)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_GetMissingMetrics(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT payload FROM user_metrics`).
		WithArgs(core.UserID("u1")).
		WillReturnRows(sqlmock.NewRows([]string{"payload"}))

	_, ok, err := store.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_PutUpsert(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	m := core.NewUserMetrics("u1")
	m.TotalPoints = 120
	m.Updated = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(`INSERT INTO user_metrics`).
		WithArgs(m.UserID, sqlmock.AnyArg(), m.Updated).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, store.Put(context.Background(), m))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLMock_Users(t *testing.T) {
	store, mock, cleanup := newMockStore(t)
	defer cleanup()

	mock.ExpectQuery(`SELECT user_id FROM score_events UNION`).
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}).AddRow("u1").AddRow("u2"))

	users, err := store.Users(context.Background())
	require.NoError(t, err)
	require.Equal(t, []core.UserID{"u1", "u2"}, users)
	require.NoError(t, mock.ExpectationsWereMet())
}
