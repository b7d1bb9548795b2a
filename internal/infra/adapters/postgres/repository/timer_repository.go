package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/StudyRoom/internal/domain/models"
)

type TimerRepository interface {
	// Get возвращает domain.ErrNotFound, если у комнаты еще нет состояния
	Get(ctx context.Context, roomID uuid.UUID) (*models.TimerState, error)
	Save(ctx context.Context, state *models.TimerState) error
}

type timerRepo struct {
	base
}

func NewTimerRepo(db *sqlx.DB, timeout time.Duration) TimerRepository {
	return &timerRepo{base{db: db, timeout: timeout}}
}

func (r *timerRepo) Get(ctx context.Context, roomID uuid.UUID) (*models.TimerState, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var state models.TimerState

	err := r.db.GetContext(
		ctx,
		&state,
		`SELECT room_id, phase, cycle_index, long_break, ends_at, focus_seconds, short_break_seconds,
			long_break_seconds, long_break_every, updated_by, updated_at
		FROM timer_states WHERE room_id = $1`,
		roomID,
	)
	if err != nil {
		return nil, mapError("get timer state", err)
	}

	return &state, nil
}

func (r *timerRepo) Save(ctx context.Context, state *models.TimerState) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO timer_states (room_id, phase, cycle_index, long_break, ends_at, focus_seconds,
			short_break_seconds, long_break_seconds, long_break_every, updated_by, updated_at)
		VALUES (:room_id, :phase, :cycle_index, :long_break, :ends_at, :focus_seconds,
			:short_break_seconds, :long_break_seconds, :long_break_every, :updated_by, :updated_at)
		ON CONFLICT (room_id) DO UPDATE SET
			phase = EXCLUDED.phase,
			cycle_index = EXCLUDED.cycle_index,
			long_break = EXCLUDED.long_break,
			ends_at = EXCLUDED.ends_at,
			focus_seconds = EXCLUDED.focus_seconds,
			short_break_seconds = EXCLUDED.short_break_seconds,
			long_break_seconds = EXCLUDED.long_break_seconds,
			long_break_every = EXCLUDED.long_break_every,
			updated_by = EXCLUDED.updated_by,
			updated_at = EXCLUDED.updated_at`,
		state,
	)

	return mapError("save timer state", err)
}
