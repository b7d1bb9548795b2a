package repository

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/input"
	"github.com/qrave1/StudyRoom/internal/domain/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)

	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})

	return sqlx.NewDb(db, "pgx"), mock
}

func testMessage() *models.Message {
	return &models.Message{
		ID:        uuid.New(),
		RoomID:    uuid.New(),
		AuthorID:  uuid.New(),
		Content:   "hello",
		ClientID:  "c-1",
		CreatedAt: time.Now(),
		Profile:   models.Profile{Username: "alice"},
	}
}

func TestMessageRepo_Append(t *testing.T) {
	t.Run("insert deliver commit", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMessageRepo(db, time.Second)
		msg := testMessage()

		mock.ExpectBegin()
		mock.ExpectExec(`pg_advisory_xact_lock`).
			WithArgs(msg.RoomID.String()).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+messages.*RETURNING\s+seq`).
			WithArgs(msg.ID, msg.RoomID, msg.AuthorID, "alice", "", "hello", "c-1", sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(7))
		mock.ExpectCommit()

		var delivered int64

		err := repo.Append(context.Background(), msg, func(m *models.Message) error {
			delivered = m.Seq
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, int64(7), msg.Seq)
		assert.Equal(t, int64(7), delivered)
	})

	t.Run("deliver failure rolls back", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMessageRepo(db, time.Second)
		msg := testMessage()

		mock.ExpectBegin()
		mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+messages`).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(1))
		mock.ExpectRollback()

		boom := errors.New("bus down")

		err := repo.Append(context.Background(), msg, func(*models.Message) error { return boom })
		require.ErrorIs(t, err, boom)
	})

	t.Run("insert failure never delivers", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMessageRepo(db, time.Second)

		mock.ExpectBegin()
		mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+messages`).WillReturnError(driver.ErrBadConn)
		mock.ExpectRollback()

		called := false

		err := repo.Append(context.Background(), testMessage(), func(*models.Message) error {
			called = true
			return nil
		})
		require.ErrorIs(t, err, domain.ErrStoreUnavailable)
		assert.False(t, called)
	})

	t.Run("commit failure", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMessageRepo(db, time.Second)

		mock.ExpectBegin()
		mock.ExpectExec(`pg_advisory_xact_lock`).WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectQuery(`(?s)^INSERT\s+INTO\s+messages`).
			WillReturnRows(sqlmock.NewRows([]string{"seq"}).AddRow(3))
		mock.ExpectCommit().WillReturnError(errors.New("commit lost"))

		err := repo.Append(context.Background(), testMessage(), func(*models.Message) error { return nil })
		require.Error(t, err)
		assert.Contains(t, err.Error(), "commit message")
	})
}

func TestMessageRepo_History(t *testing.T) {
	columns := []string{"seq", "id", "room_id", "author_id", "username", "avatar_url", "content", "client_id", "created_at"}
	roomID := uuid.New()
	now := time.Now()

	rows := func() *sqlmock.Rows {
		return sqlmock.NewRows(columns).
			AddRow(4, uuid.NewString(), roomID.String(), uuid.NewString(), "alice", "", "four", "", now).
			AddRow(5, uuid.NewString(), roomID.String(), uuid.NewString(), "bob", "", "five", "", now)
	}

	t.Run("last n", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMessageRepo(db, time.Second)

		mock.ExpectQuery(`(?s)ORDER\s+BY\s+seq\s+DESC\s+LIMIT\s+\$2\s*\)\s*last\s+ORDER\s+BY\s+seq`).
			WithArgs(roomID, 2).
			WillReturnRows(rows())

		msgs, err := repo.History(context.Background(), roomID, 2)
		require.NoError(t, err)
		require.Len(t, msgs, 2)
		assert.Equal(t, int64(4), msgs[0].Seq)
		assert.Equal(t, "five", msgs[1].Content)
		assert.Equal(t, "bob", msgs[1].Username)
	})

	t.Run("full", func(t *testing.T) {
		db, mock := newMock(t)
		repo := NewMessageRepo(db, time.Second)

		mock.ExpectQuery(`^SELECT .* FROM messages WHERE room_id = \$1 ORDER BY seq$`).
			WithArgs(roomID).
			WillReturnRows(rows())

		msgs, err := repo.History(context.Background(), roomID, 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 2)
	})
}

func TestJoinRequestRepo_CreateDuplicatePending(t *testing.T) {
	db, mock := newMock(t)
	repo := NewJoinRequestRepo(db, time.Second)

	mock.ExpectExec(`(?s)^INSERT\s+INTO\s+join_requests`).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "join_requests_one_pending"})

	req := &models.JoinRequest{
		ID:          uuid.New(),
		RoomID:      uuid.New(),
		RequesterID: uuid.New(),
		Status:      models.JoinRequestPending,
		CreatedAt:   time.Now(),
	}

	err := repo.Create(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrAlreadyPending)
}

func TestRoomRepo_GetByIDNotFound(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRoomRepo(db, time.Second)

	id := uuid.New()

	mock.ExpectQuery(`^SELECT .* FROM rooms WHERE id = \$1$`).
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := repo.GetByID(context.Background(), id)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRoomRepo_ListBuildsFilter(t *testing.T) {
	db, mock := newMock(t)
	repo := NewRoomRepo(db, time.Second)

	mock.ExpectQuery(`(?s)WHERE \(name ILIKE \$1 OR subject ILIKE \$1\) AND difficulty = \$2 ORDER BY created_at DESC LIMIT \$3 OFFSET \$4`).
		WithArgs(`%50\%%`, "hard", 10, 20).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}))

	rooms, err := repo.List(context.Background(), input.ListRoomsFilter{
		Query:      " 50% ",
		Difficulty: "hard",
		Limit:      10,
		Offset:     20,
	})
	require.NoError(t, err)
	assert.Empty(t, rooms)
}

func TestSessionRepo_OpenClosesStale(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db, time.Second)

	stale := uuid.New()
	s := &models.Session{ID: uuid.New(), RoomID: uuid.New(), UserID: uuid.New(), StartedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectQuery(`(?s)^UPDATE\s+sessions.*WHERE user_id = \$1 AND ended_at IS NULL\s+RETURNING id`).
		WithArgs(s.UserID, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(stale.String()))
	mock.ExpectExec(`^INSERT INTO sessions`).
		WithArgs(s.ID, s.RoomID, s.UserID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	closed, err := repo.Open(context.Background(), s)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{stale}, closed)
}

func TestSessionRepo_CloseOnce(t *testing.T) {
	db, mock := newMock(t)
	repo := NewSessionRepo(db, time.Second)

	id := uuid.New()
	note := "done"

	mock.ExpectExec(`(?s)^UPDATE\s+sessions.*WHERE id = \$1 AND ended_at IS NULL`).
		WithArgs(id, int64(60), sqlmock.AnyArg(), note).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)^UPDATE\s+sessions.*WHERE id = \$1 AND ended_at IS NULL`).
		WithArgs(id, int64(60), sqlmock.AnyArg(), note).
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := repo.Close(context.Background(), id, 60, time.Now(), &note)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Close(context.Background(), id, 60, time.Now(), &note)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: domain.ErrStoreUnavailable},
		{name: "bad conn", err: driver.ErrBadConn, want: domain.ErrStoreUnavailable},
		{name: "unique", err: &pgconn.PgError{Code: "23505"}, want: errUniqueViolation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError("op", tt.err), tt.want)
		})
	}

	assert.NoError(t, mapError("op", nil))

	other := errors.New("syntax")
	err := mapError("op", other)
	assert.ErrorIs(t, err, other)
	assert.NotErrorIs(t, err, domain.ErrStoreUnavailable)
}
