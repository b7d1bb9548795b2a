package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/qrave1/StudyRoom/internal/domain/models"
)

type MembershipRepository interface {
	// Upsert добавляет пользователя в комнату или обновляет снимок профиля
	Upsert(ctx context.Context, m *models.Membership) error
	// Remove нужен только для отката непрошедшего решения по заявке
	Remove(ctx context.Context, roomID, userID uuid.UUID) error
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Membership, error)
}

type membershipRepo struct {
	base
}

func NewMembershipRepo(db *sqlx.DB, timeout time.Duration) MembershipRepository {
	return &membershipRepo{base{db: db, timeout: timeout}}
}

func (r *membershipRepo) Upsert(ctx context.Context, m *models.Membership) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO room_members (room_id, user_id, username, avatar_url, joined_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (room_id, user_id) DO UPDATE SET username = EXCLUDED.username, avatar_url = EXCLUDED.avatar_url`,
		m.RoomID,
		m.UserID,
		m.Username,
		m.AvatarURL,
		m.JoinedAt,
	)

	return mapError("upsert membership", err)
}

func (r *membershipRepo) Remove(ctx context.Context, roomID, userID uuid.UUID) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	_, err := r.db.ExecContext(ctx, "DELETE FROM room_members WHERE room_id = $1 AND user_id = $2", roomID, userID)

	return mapError("remove membership", err)
}

func (r *membershipRepo) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var exists bool

	err := r.db.GetContext(
		ctx,
		&exists,
		"SELECT EXISTS (SELECT 1 FROM room_members WHERE room_id = $1 AND user_id = $2)",
		roomID,
		userID,
	)
	if err != nil {
		return false, mapError("check membership", err)
	}

	return exists, nil
}

func (r *membershipRepo) ListByRoom(ctx context.Context, roomID uuid.UUID) ([]models.Membership, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var members []models.Membership

	err := r.db.SelectContext(
		ctx,
		&members,
		"SELECT room_id, user_id, username, avatar_url, joined_at FROM room_members WHERE room_id = $1 ORDER BY joined_at",
		roomID,
	)
	if err != nil {
		return nil, mapError("list memberships", err)
	}

	return members, nil
}
