package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/models"
)

type JoinRequestRepository interface {
	// Create падает с domain.ErrAlreadyPending, если у пары уже есть pending заявка
	Create(ctx context.Context, req *models.JoinRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error)
	// Latest - последняя заявка пользователя в комнату или domain.ErrNotFound
	Latest(ctx context.Context, roomID, requesterID uuid.UUID) (*models.JoinRequest, error)
	ListPending(ctx context.Context, roomID uuid.UUID) ([]models.JoinRequest, error)
	UpdateStatus(ctx context.Context, req *models.JoinRequest) error
}

type joinRequestRepo struct {
	base
}

func NewJoinRequestRepo(db *sqlx.DB, timeout time.Duration) JoinRequestRepository {
	return &joinRequestRepo{base{db: db, timeout: timeout}}
}

const joinRequestColumns = "id, room_id, requester_id, username, avatar_url, status, created_at, decided_at"

func (r *joinRequestRepo) Create(ctx context.Context, req *models.JoinRequest) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO join_requests (`+joinRequestColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		req.ID,
		req.RoomID,
		req.RequesterID,
		req.Username,
		req.AvatarURL,
		req.Status,
		req.CreatedAt,
		req.DecidedAt,
	)

	err = mapError("insert join request", err)
	if errors.Is(err, errUniqueViolation) {
		return fmt.Errorf("insert join request: %w", domain.ErrAlreadyPending)
	}

	return err
}

func (r *joinRequestRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.JoinRequest, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var req models.JoinRequest

	err := r.db.GetContext(ctx, &req, "SELECT "+joinRequestColumns+" FROM join_requests WHERE id = $1", id)
	if err != nil {
		return nil, mapError("get join request", err)
	}

	return &req, nil
}

func (r *joinRequestRepo) Latest(ctx context.Context, roomID, requesterID uuid.UUID) (*models.JoinRequest, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var req models.JoinRequest

	err := r.db.GetContext(
		ctx,
		&req,
		"SELECT "+joinRequestColumns+" FROM join_requests WHERE room_id = $1 AND requester_id = $2 ORDER BY created_at DESC LIMIT 1",
		roomID,
		requesterID,
	)
	if err != nil {
		return nil, mapError("get latest join request", err)
	}

	return &req, nil
}

func (r *joinRequestRepo) ListPending(ctx context.Context, roomID uuid.UUID) ([]models.JoinRequest, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var reqs []models.JoinRequest

	err := r.db.SelectContext(
		ctx,
		&reqs,
		"SELECT "+joinRequestColumns+" FROM join_requests WHERE room_id = $1 AND status = 'pending' ORDER BY created_at",
		roomID,
	)
	if err != nil {
		return nil, mapError("list pending join requests", err)
	}

	return reqs, nil
}

func (r *joinRequestRepo) UpdateStatus(ctx context.Context, req *models.JoinRequest) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	res, err := r.db.ExecContext(
		ctx,
		"UPDATE join_requests SET status = $1, decided_at = $2 WHERE id = $3",
		req.Status,
		req.DecidedAt,
		req.ID,
	)
	if err != nil {
		return mapError("update join request", err)
	}

	return requireAffected("update join request", res)
}
