package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/input"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres/repository"
)

type MessageUsecase interface {
	// PostMessage сохраняет и рассылает сообщение. При ошибке сообщение
	// не сохранено и не доставлено, клиент должен убрать оптимистичное эхо.
	PostMessage(ctx context.Context, in *input.PostMessageInput) (*models.Message, error)
	History(ctx context.Context, roomID, userID uuid.UUID, limit int) ([]models.Message, error)
	Typing(ctx context.Context, roomID uuid.UUID, user models.User, isTyping bool) error
}

type messageUsecase struct {
	clock      clockwork.Clock
	serializer *Serializer
	publisher  events.Publisher

	maxLength int
	typingTTL time.Duration

	messageRepo    repository.MessageRepository
	membershipRepo repository.MembershipRepository
}

func NewMessageUsecase(
	clock clockwork.Clock,
	serializer *Serializer,
	publisher events.Publisher,
	maxLength int,
	typingTTL time.Duration,
	messageRepo repository.MessageRepository,
	membershipRepo repository.MembershipRepository,
) MessageUsecase {
	return &messageUsecase{
		clock:          clock,
		serializer:     serializer,
		publisher:      publisher,
		maxLength:      maxLength,
		typingTTL:      typingTTL,
		messageRepo:    messageRepo,
		membershipRepo: membershipRepo,
	}
}

func (uc *messageUsecase) PostMessage(ctx context.Context, in *input.PostMessageInput) (*models.Message, error) {
	content := strings.TrimSpace(in.Content)
	if content == "" || utf8.RuneCountInString(content) > uc.maxLength {
		return nil, domain.ErrInvalidContent
	}

	member, err := uc.membershipRepo.IsMember(ctx, in.RoomID, in.AuthorID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}

	if !member {
		return nil, domain.ErrNotMember
	}

	msg := &models.Message{
		ID:       uuid.New(),
		RoomID:   in.RoomID,
		AuthorID: in.AuthorID,
		Content:  content,
		ClientID: in.ClientID,
		Profile:  models.Profile{Username: in.Username, AvatarURL: in.AvatarURL},
	}

	// порядок в очереди чата = порядок вставки = порядок рассылки
	err = uc.serializer.Do(ctx, chatLane(in.RoomID), func(ctx context.Context) error {
		msg.CreatedAt = uc.clock.Now()
		delivered := false

		err := uc.messageRepo.Append(ctx, msg, func(m *models.Message) error {
			if err := uc.publisher.Publish(ctx, m.RoomID, events.New(events.ChatMessage, m.RoomID, m, m.CreatedAt)); err != nil {
				if !errors.Is(err, domain.ErrTransportUnavailable) {
					err = fmt.Errorf("%w: %v", domain.ErrTransportUnavailable, err)
				}

				return err
			}

			delivered = true

			return nil
		})

		if err != nil && delivered {
			// коммит не прошел после рассылки: просим клиентов убрать сообщение
			uc.retract(ctx, msg)
		}

		return err
	})
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	return msg, nil
}

func (uc *messageUsecase) retract(ctx context.Context, msg *models.Message) {
	payload := events.ChatRetractedPayload{MessageID: msg.ID, ClientID: msg.ClientID}
	env := events.New(events.ChatRetracted, msg.RoomID, payload, uc.clock.Now())

	if err := uc.publisher.Publish(ctx, msg.RoomID, env); err != nil {
		slog.Error("publish message retraction", slog.Any(constant.Error, err), slog.Any(constant.RoomID, msg.RoomID))
	}
}

func (uc *messageUsecase) History(ctx context.Context, roomID, userID uuid.UUID, limit int) ([]models.Message, error) {
	member, err := uc.membershipRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("check membership: %w", err)
	}

	if !member {
		return nil, domain.ErrNotMember
	}

	messages, err := uc.messageRepo.History(ctx, roomID, max(limit, 0))
	if err != nil {
		return nil, fmt.Errorf("get message history: %w", err)
	}

	return messages, nil
}

// Typing - эфемерное событие, потеря допустима
func (uc *messageUsecase) Typing(ctx context.Context, roomID uuid.UUID, user models.User, isTyping bool) error {
	payload := events.TypingPayload{
		UserID:      user.ID,
		Username:    user.Username,
		IsTyping:    isTyping,
		ExpiresInMs: uc.typingTTL.Milliseconds(),
	}

	if err := uc.publisher.PublishEphemeral(ctx, roomID, events.New(events.Typing, roomID, payload, uc.clock.Now())); err != nil {
		return fmt.Errorf("publish typing: %w", err)
	}

	return nil
}
