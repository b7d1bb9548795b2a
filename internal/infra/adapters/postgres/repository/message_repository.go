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
	"github.com/qrave1/StudyRoom/internal/domain/models"
)

// DeliverFunc вызывается внутри транзакции после вставки сообщения.
// Ошибка откатывает вставку.
type DeliverFunc func(msg *models.Message) error

type MessageRepository interface {
	// Append сохраняет сообщение и доставляет его до коммита, так что сообщение
	// либо сохранено и разослано, либо нет ни того ни другого
	Append(ctx context.Context, msg *models.Message, deliver DeliverFunc) error
	// History - сообщения комнаты в порядке seq; limit > 0 отдает последние limit штук
	History(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error)
}

type messageRepo struct {
	base
}

func NewMessageRepo(db *sqlx.DB, timeout time.Duration) MessageRepository {
	return &messageRepo{base{db: db, timeout: timeout}}
}

func (r *messageRepo) Append(ctx context.Context, msg *models.Message, deliver DeliverFunc) error {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return mapError("begin message tx", err)
	}

	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.Warn("rollback message tx", slog.Any(constant.Error, rbErr), slog.Any(constant.RoomID, msg.RoomID))
			}
		}
	}()

	// порядок seq внутри комнаты совпадает с порядком рассылки и между инстансами
	if _, err = tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtextextended($1, 0))", msg.RoomID.String()); err != nil {
		return mapError("lock room messages", err)
	}

	err = tx.QueryRowxContext(
		ctx,
		`INSERT INTO messages (id, room_id, author_id, username, avatar_url, content, client_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq`,
		msg.ID,
		msg.RoomID,
		msg.AuthorID,
		msg.Username,
		msg.AvatarURL,
		msg.Content,
		msg.ClientID,
		msg.CreatedAt,
	).Scan(&msg.Seq)
	if err != nil {
		return mapError("insert message", err)
	}

	if err = deliver(msg); err != nil {
		return fmt.Errorf("deliver message: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return mapError("commit message", err)
	}

	return nil
}

func (r *messageRepo) History(ctx context.Context, roomID uuid.UUID, limit int) ([]models.Message, error) {
	ctx, cancel := r.ctx(ctx)
	defer cancel()

	var (
		messages []models.Message
		err      error
	)

	const columns = "seq, id, room_id, author_id, username, avatar_url, content, client_id, created_at"

	if limit > 0 {
		err = r.db.SelectContext(
			ctx,
			&messages,
			`SELECT `+columns+` FROM (
				SELECT `+columns+` FROM messages WHERE room_id = $1 ORDER BY seq DESC LIMIT $2
			) last ORDER BY seq`,
			roomID,
			limit,
		)
	} else {
		err = r.db.SelectContext(
			ctx,
			&messages,
			"SELECT "+columns+" FROM messages WHERE room_id = $1 ORDER BY seq",
			roomID,
		)
	}

	if err != nil {
		return nil, mapError("select message history", err)
	}

	return messages, nil
}
