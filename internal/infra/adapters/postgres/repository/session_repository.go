package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/models"
)

type SessionRepository interface {
	// Open закрывает все открытые сессии пользователя и открывает новую.
	// Возвращает идентификаторы закрытых сессий.
	Open(ctx context.Context, s *models.Session) ([]uuid.UUID, error)
	// Flush сохраняет накопленное время открытой сессии.
	// false означает, что сессия уже закрыта.
	Flush(ctx context.Context, id uuid.UUID, accumulated int64, at time.Time) (bool, error)
	// Close закрывает сессию ровно один раз. false - сессия уже была закрыта.
	Close(ctx context.Context, id uuid.UUID, accumulated int64, endedAt time.Time, note *string) (bool, error)
	// DailyTotals суммирует активное время по пользователям комнаты для сессий,
	// начатых в [from, to)
	DailyTotals(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]models.LeaderboardRow, error)
}

type sessionRepo struct {
	base
}

func NewSessionRepo(db *sqlx.DB, timeout time.Duration) SessionRepository {
	return &sessionRepo{base{db: db, timeout: timeout}}
}

func (r *sessionRepo) Open(ctx context.Context, s *models.Session) (closed []uuid.UUID, err error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, mapError("begin session tx", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("rollback session tx", slog.Any(constant.Error, rbErr), slog.Any(constant.UserID, s.UserID))
			}
		}
	}()

	err = tx.SelectContext(
		ctx,
		&closed,
		`UPDATE sessions
		SET ended_at = $2,
			accumulated_seconds = LEAST(accumulated_seconds, GREATEST(FLOOR(EXTRACT(EPOCH FROM $2::timestamptz - started_at)), 0)::BIGINT)
		WHERE user_id = $1 AND ended_at IS NULL
		RETURNING id`,
		s.UserID,
		s.StartedAt,
	)
	if err != nil {
		return nil, mapError("close open sessions", err)
	}

	_, err = tx.ExecContext(
		ctx,
		`INSERT INTO sessions (id, room_id, user_id, started_at, accumulated_seconds) VALUES ($1, $2, $3, $4, 0)`,
		s.ID,
		s.RoomID,
		s.UserID,
		s.StartedAt,
	)
	if err != nil {
		err = mapError("insert session", err)
		if errors.Is(err, errUniqueViolation) {
			// параллельный Open того же пользователя на другом инстансе
			err = fmt.Errorf("%w: concurrent session open", domain.ErrStoreUnavailable)
		}

		return nil, err
	}

	if err = tx.Commit(); err != nil {
		return nil, mapError("commit session tx", err)
	}

	return closed, nil
}

func (r *sessionRepo) Flush(ctx context.Context, id uuid.UUID, accumulated int64, at time.Time) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(
		ctx,
		`UPDATE sessions
		SET accumulated_seconds = LEAST($2, GREATEST(FLOOR(EXTRACT(EPOCH FROM $3::timestamptz - started_at)), 0)::BIGINT)
		WHERE id = $1 AND ended_at IS NULL`,
		id,
		accumulated,
		at,
	)
	if err != nil {
		return false, mapError("flush session", err)
	}

	aff, err := res.RowsAffected()
	if err != nil {
		return false, mapError("flush session", err)
	}

	return aff > 0, nil
}

func (r *sessionRepo) Close(ctx context.Context, id uuid.UUID, accumulated int64, endedAt time.Time, note *string) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(
		ctx,
		`UPDATE sessions
		SET ended_at = $3,
			note = $4,
			accumulated_seconds = LEAST($2, GREATEST(FLOOR(EXTRACT(EPOCH FROM $3::timestamptz - started_at)), 0)::BIGINT)
		WHERE id = $1 AND ended_at IS NULL`,
		id,
		accumulated,
		endedAt,
		note,
	)
	if err != nil {
		return false, mapError("close session", err)
	}

	aff, err := res.RowsAffected()
	if err != nil {
		return false, mapError("close session", err)
	}

	return aff > 0, nil
}

func (r *sessionRepo) DailyTotals(ctx context.Context, roomID uuid.UUID, from, to time.Time) ([]models.LeaderboardRow, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var rows []models.LeaderboardRow

	err := r.db.SelectContext(
		ctx,
		&rows,
		`SELECT s.user_id,
			SUM(s.accumulated_seconds)::BIGINT AS total_seconds,
			MIN(s.started_at) AS first_started_at,
			COALESCE(m.username, '') AS username,
			COALESCE(m.avatar_url, '') AS avatar_url
		FROM sessions s
		LEFT JOIN room_members m ON m.room_id = s.room_id AND m.user_id = s.user_id
		WHERE s.room_id = $1 AND s.started_at >= $2 AND s.started_at < $3
		GROUP BY s.user_id, m.username, m.avatar_url`,
		roomID,
		from,
		to,
	)
	if err != nil {
		return nil, mapError("aggregate daily totals", err)
	}

	return rows, nil
}
