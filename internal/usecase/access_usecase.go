package usecase

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres/repository"
)

// AccessUsecase - заявки на вход и проверка ключа комнаты
type AccessUsecase interface {
	// RequestJoin создает заявку в комнату с одобрением.
	// Хост, участники и комнаты без одобрения получают accepted без записи в БД.
	RequestJoin(ctx context.Context, roomID uuid.UUID, user models.User) (*models.JoinRequest, error)
	// DecideJoinRequest - решение хоста; повтор после терминального статуса ничего не меняет
	DecideJoinRequest(ctx context.Context, roomID, requestID, hostID uuid.UUID, accept bool) (*models.JoinRequest, error)
	ListPendingRequests(ctx context.Context, roomID, hostID uuid.UUID) ([]models.JoinRequest, error)
	MyLatestRequest(ctx context.Context, roomID, userID uuid.UUID) (*models.JoinRequest, error)

	VerifyKey(ctx context.Context, roomID uuid.UUID, key string) error
	// Admit пропускает пользователя в комнату и делает участником
	Admit(ctx context.Context, roomID uuid.UUID, user models.User, key string) (*models.Room, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
}

type accessUsecase struct {
	clock      clockwork.Clock
	serializer *Serializer
	publisher  events.Publisher
	bcryptCost int

	dummyOnce sync.Once
	dummyHash []byte

	roomRepo        repository.RoomRepository
	membershipRepo  repository.MembershipRepository
	joinRequestRepo repository.JoinRequestRepository
}

func NewAccessUsecase(
	clock clockwork.Clock,
	serializer *Serializer,
	publisher events.Publisher,
	bcryptCost int,
	roomRepo repository.RoomRepository,
	membershipRepo repository.MembershipRepository,
	joinRequestRepo repository.JoinRequestRepository,
) AccessUsecase {
	return &accessUsecase{
		clock:           clock,
		serializer:      serializer,
		publisher:       publisher,
		bcryptCost:      bcryptCost,
		roomRepo:        roomRepo,
		membershipRepo:  membershipRepo,
		joinRequestRepo: joinRequestRepo,
	}
}

func (uc *accessUsecase) RequestJoin(ctx context.Context, roomID uuid.UUID, user models.User) (*models.JoinRequest, error) {
	var result *models.JoinRequest

	err := uc.serializer.Do(ctx, roomLane(roomID), func(ctx context.Context) error {
		room, err := uc.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return fmt.Errorf("get room: %w", err)
		}

		if room.IsHost(user.ID) || !room.ApprovalRequired {
			result = uc.implicitAccept(roomID, user)
			return nil
		}

		latest, err := uc.joinRequestRepo.Latest(ctx, roomID, user.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			latest = nil
		case err != nil:
			return fmt.Errorf("get latest join request: %w", err)
		case latest.Status == models.JoinRequestAccepted:
			// повторная заявка после одобрения возвращает сохраненную запись
			result = latest
			return nil
		}

		member, err := uc.membershipRepo.IsMember(ctx, roomID, user.ID)
		if err != nil {
			return fmt.Errorf("check membership: %w", err)
		}

		if member {
			result = uc.implicitAccept(roomID, user)
			return nil
		}

		if latest != nil && latest.Status == models.JoinRequestPending {
			return domain.ErrAlreadyPending
		}

		req := models.NewJoinRequest(roomID, user, uc.clock.Now())

		if err = uc.joinRequestRepo.Create(ctx, req); err != nil {
			return fmt.Errorf("create join request: %w", err)
		}

		// хост увидит заявку в списке даже без уведомления
		env := events.New(events.JoinRequestCreated, roomID, req, req.CreatedAt)
		if err = uc.publisher.Publish(ctx, roomID, env); err != nil {
			slog.Warn("notify host about join request", slog.Any(constant.Error, err), slog.Any(constant.RoomID, roomID))
		}

		result = req

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

func (uc *accessUsecase) DecideJoinRequest(ctx context.Context, roomID, requestID, hostID uuid.UUID, accept bool) (*models.JoinRequest, error) {
	var result *models.JoinRequest

	err := uc.serializer.Do(ctx, roomLane(roomID), func(ctx context.Context) error {
		room, err := uc.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return fmt.Errorf("get room: %w", err)
		}

		if !room.IsHost(hostID) {
			return domain.ErrForbidden
		}

		req, err := uc.joinRequestRepo.GetByID(ctx, requestID)
		if err != nil {
			return fmt.Errorf("get join request: %w", err)
		}

		if req.RoomID != roomID {
			return fmt.Errorf("join request: %w", domain.ErrNotFound)
		}

		if req.IsTerminal() {
			result = req
			return nil
		}

		now := uc.clock.Now()
		req.DecidedAt = &now
		req.Status = models.JoinRequestDenied
		if accept {
			req.Status = models.JoinRequestAccepted
		}

		if err = uc.joinRequestRepo.UpdateStatus(ctx, req); err != nil {
			return fmt.Errorf("update join request: %w", err)
		}

		if accept {
			err = uc.membershipRepo.Upsert(ctx, &models.Membership{
				RoomID:   roomID,
				UserID:   req.RequesterID,
				JoinedAt: now,
				Profile:  req.Profile,
			})
			if err != nil {
				uc.restorePending(ctx, req, false)
				return fmt.Errorf("add member: %w", err)
			}
		}

		env := events.New(events.JoinRequestUpdated, roomID, req, now)
		if err = uc.publisher.Publish(ctx, roomID, env); err != nil {
			uc.restorePending(ctx, req, accept)
			return fmt.Errorf("%w: publish join decision: %v", domain.ErrTransportUnavailable, err)
		}

		result = req

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}

// restorePending откатывает решение, если его не удалось довести до конца
func (uc *accessUsecase) restorePending(ctx context.Context, req *models.JoinRequest, removeMember bool) {
	if removeMember {
		if err := uc.membershipRepo.Remove(ctx, req.RoomID, req.RequesterID); err != nil {
			slog.Error("remove member after failed decision", slog.Any(constant.Error, err), slog.Any(constant.RoomID, req.RoomID))
		}
	}

	req.Status = models.JoinRequestPending
	req.DecidedAt = nil

	if err := uc.joinRequestRepo.UpdateStatus(ctx, req); err != nil {
		slog.Error("restore pending join request", slog.Any(constant.Error, err), slog.Any(constant.RoomID, req.RoomID))
	}
}

func (uc *accessUsecase) ListPendingRequests(ctx context.Context, roomID, hostID uuid.UUID) ([]models.JoinRequest, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	if !room.IsHost(hostID) {
		return nil, domain.ErrForbidden
	}

	reqs, err := uc.joinRequestRepo.ListPending(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("list pending join requests: %w", err)
	}

	return reqs, nil
}

func (uc *accessUsecase) MyLatestRequest(ctx context.Context, roomID, userID uuid.UUID) (*models.JoinRequest, error) {
	req, err := uc.joinRequestRepo.Latest(ctx, roomID, userID)
	if err != nil {
		return nil, fmt.Errorf("get latest join request: %w", err)
	}

	return req, nil
}

// VerifyKey сравнивает ключ с дайджестом. Для неизвестной комнаты сравнение
// идет с фиктивным дайджестом, чтобы ответ не отличался ни по ошибке, ни по времени.
func (uc *accessUsecase) VerifyKey(ctx context.Context, roomID uuid.UUID, key string) error {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("get room: %w", err)
	}

	if room != nil && !room.RequiresKey {
		return nil
	}

	return uc.compareKey(room, key)
}

func (uc *accessUsecase) compareKey(room *models.Room, key string) error {
	hash := uc.dummy()
	if room != nil && len(room.KeyHash) > 0 {
		hash = room.KeyHash
	}

	err := bcrypt.CompareHashAndPassword(hash, []byte(key))
	if err != nil || room == nil || len(room.KeyHash) == 0 {
		return domain.ErrInvalidKey
	}

	return nil
}

func (uc *accessUsecase) dummy() []byte {
	uc.dummyOnce.Do(func() {
		secret := make([]byte, 32)
		_, _ = rand.Read(secret)

		hash, err := bcrypt.GenerateFromPassword(secret, uc.bcryptCost)
		if err != nil {
			slog.Error("generate dummy key hash", slog.Any(constant.Error, err))
		}

		uc.dummyHash = hash
	})

	return uc.dummyHash
}

func (uc *accessUsecase) Admit(ctx context.Context, roomID uuid.UUID, user models.User, key string) (*models.Room, error) {
	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if errors.Is(err, domain.ErrNotFound) && key != "" {
		// с ключом отвечаем как на неверный ключ, не раскрывая существование комнаты
		return nil, uc.compareKey(nil, key)
	}

	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	if !room.IsHost(user.ID) {
		member, err := uc.membershipRepo.IsMember(ctx, roomID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("check membership: %w", err)
		}

		if !member {
			if room.RequiresKey {
				if err = uc.compareKey(room, key); err != nil {
					return nil, err
				}
			}

			if room.ApprovalRequired {
				return nil, domain.ErrApprovalRequired
			}
		}
	}

	// upsert обновляет снимок профиля для истории и лидерборда
	err = uc.membershipRepo.Upsert(ctx, &models.Membership{
		RoomID:   roomID,
		UserID:   user.ID,
		JoinedAt: uc.clock.Now(),
		Profile:  user.Profile,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert membership: %w", err)
	}

	return room, nil
}

func (uc *accessUsecase) IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error) {
	member, err := uc.membershipRepo.IsMember(ctx, roomID, userID)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}

	return member, nil
}

func (uc *accessUsecase) implicitAccept(roomID uuid.UUID, user models.User) *models.JoinRequest {
	return &models.JoinRequest{
		RoomID:      roomID,
		RequesterID: user.ID,
		Status:      models.JoinRequestAccepted,
		CreatedAt:   uc.clock.Now(),
		Profile:     user.Profile,
	}
}
