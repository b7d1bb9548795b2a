package repository

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/StudyRoom/internal/domain/input"
	"github.com/qrave1/StudyRoom/internal/domain/models"
)

type RoomRepository interface {
	Create(ctx context.Context, room *models.Room) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error)
	List(ctx context.Context, filter input.ListRoomsFilter) ([]*models.Room, error)
	Update(ctx context.Context, room *models.Room) error
}

type roomRepo struct {
	base
}

func NewRoomRepo(db *sqlx.DB, timeout time.Duration) RoomRepository {
	return &roomRepo{base{db: db, timeout: timeout}}
}

const roomColumns = "id, host_id, name, subject, difficulty, approval_required, requires_key, key_hash, created_at, updated_at"

func (r *roomRepo) Create(ctx context.Context, room *models.Room) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.NamedExecContext(
		ctx,
		`INSERT INTO rooms (`+roomColumns+`)
		VALUES (:id, :host_id, :name, :subject, :difficulty, :approval_required, :requires_key, :key_hash, :created_at, :updated_at)`,
		room,
	)

	return mapError("insert room", err)
}

func (r *roomRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var room models.Room

	err := r.db.GetContext(ctx, &room, "SELECT "+roomColumns+" FROM rooms WHERE id = $1", id)
	if err != nil {
		return nil, mapError("get room", err)
	}

	return &room, nil
}

func (r *roomRepo) List(ctx context.Context, filter input.ListRoomsFilter) ([]*models.Room, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var (
		where []string
		args  []any
	)

	if q := strings.TrimSpace(filter.Query); q != "" {
		args = append(args, "%"+escapeLike(q)+"%")
		where = append(where, "(name ILIKE $1 OR subject ILIKE $1)")
	}

	if filter.Difficulty != "" {
		args = append(args, filter.Difficulty)
		where = append(where, "difficulty = $"+itoa(len(args)))
	}

	query := "SELECT " + roomColumns + " FROM rooms"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}

	args = append(args, filter.Limit, filter.Offset)
	query += " ORDER BY created_at DESC LIMIT $" + itoa(len(args)-1) + " OFFSET $" + itoa(len(args))

	var rooms []*models.Room

	if err := r.db.SelectContext(ctx, &rooms, query, args...); err != nil {
		return nil, mapError("list rooms", err)
	}

	return rooms, nil
}

func (r *roomRepo) Update(ctx context.Context, room *models.Room) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.NamedExecContext(
		ctx,
		`UPDATE rooms SET name = :name, subject = :subject, difficulty = :difficulty,
			approval_required = :approval_required, requires_key = :requires_key,
			key_hash = :key_hash, updated_at = :updated_at
		WHERE id = :id`,
		room,
	)
	if err != nil {
		return mapError("update room", err)
	}

	return requireAffected("update room", res)
}
