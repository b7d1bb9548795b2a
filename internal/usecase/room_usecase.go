package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"golang.org/x/crypto/bcrypt"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/input"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres/repository"
)

const (
	maxRoomNameLength    = 100
	maxRoomSubjectLength = 100
	minRoomKeyLength     = 4
	maxRoomKeyBytes      = 72
	defaultListLimit     = 50
	maxListLimit         = 100
)

type RoomUsecase interface {
	CreateRoom(ctx context.Context, in *input.CreateRoomInput) (*models.Room, error)
	GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error)
	ListRooms(ctx context.Context, filter input.ListRoomsFilter) ([]*models.Room, error)

	// Только хост
	UpdateRoomPolicy(ctx context.Context, in *input.UpdateRoomPolicyInput) (*models.Room, error)
	UpdateRoomDetails(ctx context.Context, in *input.UpdateRoomDetailsInput) (*models.Room, error)
}

type roomUsecase struct {
	clock      clockwork.Clock
	serializer *Serializer
	publisher  events.Publisher
	bcryptCost int

	roomRepo       repository.RoomRepository
	membershipRepo repository.MembershipRepository
	timerRepo      repository.TimerRepository
}

func NewRoomUsecase(
	clock clockwork.Clock,
	serializer *Serializer,
	publisher events.Publisher,
	bcryptCost int,
	roomRepo repository.RoomRepository,
	membershipRepo repository.MembershipRepository,
	timerRepo repository.TimerRepository,
) RoomUsecase {
	return &roomUsecase{
		clock:          clock,
		serializer:     serializer,
		publisher:      publisher,
		bcryptCost:     bcryptCost,
		roomRepo:       roomRepo,
		membershipRepo: membershipRepo,
		timerRepo:      timerRepo,
	}
}

// CreateRoom создает комнату, хост сразу становится участником
func (uc *roomUsecase) CreateRoom(ctx context.Context, in *input.CreateRoomInput) (*models.Room, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Subject = strings.TrimSpace(in.Subject)

	if err := validateRoomDetails(in.Name, in.Subject, in.Difficulty); err != nil {
		return nil, err
	}

	now := uc.clock.Now()
	room := models.NewRoom(in, now)

	if in.RequiresKey {
		hash, err := uc.hashKey(in.Key)
		if err != nil {
			return nil, err
		}

		room.KeyHash = hash
	}

	if err := uc.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("create room: %w", err)
	}

	// хост проходит гейт без проверок; без записи участника пропадет профиль в лидерборде
	err := uc.membershipRepo.Upsert(ctx, &models.Membership{
		RoomID:   room.ID,
		UserID:   room.HostID,
		JoinedAt: now,
		Profile:  models.Profile{Username: in.HostName, AvatarURL: in.HostAvatarURL},
	})
	if err != nil {
		slog.Warn("add host membership", slog.Any(constant.Error, err), slog.Any(constant.RoomID, room.ID))
	}

	if err = uc.timerRepo.Save(ctx, models.NewTimerState(room.ID, room.HostID, now)); err != nil {
		slog.Warn("init timer state", slog.Any(constant.Error, err), slog.Any(constant.RoomID, room.ID))
	}

	uc.notifyDirectory(ctx, events.RoomCreated, room)

	return room, nil
}

func (uc *roomUsecase) GetRoom(ctx context.Context, id uuid.UUID) (*models.Room, error) {
	room, err := uc.roomRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	return room, nil
}

func (uc *roomUsecase) ListRooms(ctx context.Context, filter input.ListRoomsFilter) ([]*models.Room, error) {
	if filter.Difficulty != "" && !models.Difficulty(filter.Difficulty).Valid() {
		return nil, fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidInput, filter.Difficulty)
	}

	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}

	filter.Limit = min(filter.Limit, maxListLimit)
	filter.Offset = max(filter.Offset, 0)

	rooms, err := uc.roomRepo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	return rooms, nil
}

func (uc *roomUsecase) UpdateRoomPolicy(ctx context.Context, in *input.UpdateRoomPolicyInput) (*models.Room, error) {
	return uc.updateRoom(ctx, in.RoomID, in.CallerID, func(room *models.Room) error {
		if in.ApprovalRequired != nil {
			room.ApprovalRequired = *in.ApprovalRequired
		}

		requiresKey := room.RequiresKey
		if in.RequiresKey != nil {
			requiresKey = *in.RequiresKey
		}

		switch {
		case !requiresKey:
			room.RequiresKey = false
			room.KeyHash = nil
		case in.Key != "":
			hash, err := uc.hashKey(in.Key)
			if err != nil {
				return err
			}

			room.RequiresKey = true
			room.KeyHash = hash
		case len(room.KeyHash) == 0:
			return fmt.Errorf("%w: key is required", domain.ErrInvalidInput)
		default:
			room.RequiresKey = true
		}

		return nil
	})
}

func (uc *roomUsecase) UpdateRoomDetails(ctx context.Context, in *input.UpdateRoomDetailsInput) (*models.Room, error) {
	return uc.updateRoom(ctx, in.RoomID, in.CallerID, func(room *models.Room) error {
		if in.Name != nil {
			room.Name = strings.TrimSpace(*in.Name)
		}

		if in.Subject != nil {
			room.Subject = strings.TrimSpace(*in.Subject)
		}

		if in.Difficulty != nil {
			room.Difficulty = models.Difficulty(*in.Difficulty)
		}

		return validateRoomDetails(room.Name, room.Subject, string(room.Difficulty))
	})
}

// updateRoom применяет изменение хоста в очереди комнаты: сохранить, разослать,
// при ошибке рассылки вернуть прежнее состояние
func (uc *roomUsecase) updateRoom(ctx context.Context, roomID, callerID uuid.UUID, mutate func(room *models.Room) error) (*models.Room, error) {
	var updated *models.Room

	err := uc.serializer.Do(ctx, roomLane(roomID), func(ctx context.Context) error {
		room, err := uc.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return fmt.Errorf("get room: %w", err)
		}

		if !room.IsHost(callerID) {
			return domain.ErrForbidden
		}

		prev := *room

		if err = mutate(room); err != nil {
			return err
		}

		room.UpdatedAt = uc.clock.Now()

		if err = uc.roomRepo.Update(ctx, room); err != nil {
			return fmt.Errorf("update room: %w", err)
		}

		env := events.New(events.RoomUpdated, room.ID, room, room.UpdatedAt)

		if err = uc.publisher.Publish(ctx, room.ID, env); err != nil {
			if rbErr := uc.roomRepo.Update(ctx, &prev); rbErr != nil {
				slog.Error("restore room after failed broadcast", slog.Any(constant.Error, rbErr), slog.Any(constant.RoomID, room.ID))
			}

			return fmt.Errorf("%w: publish room update: %v", domain.ErrTransportUnavailable, err)
		}

		uc.notifyDirectory(ctx, events.RoomUpdated, room)

		updated = room

		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

// notifyDirectory - уведомления каталога не критичны, ошибка только логируется
func (uc *roomUsecase) notifyDirectory(ctx context.Context, eventType string, room *models.Room) {
	env := events.New(eventType, events.DirectoryRoomID, room, uc.clock.Now())

	if err := uc.publisher.Publish(ctx, events.DirectoryRoomID, env); err != nil {
		slog.Warn(
			"notify room directory",
			slog.Any(constant.Error, err),
			slog.Any(constant.RoomID, room.ID),
			slog.String(constant.EventType, eventType),
		)
	}
}

func (uc *roomUsecase) hashKey(key string) ([]byte, error) {
	if utf8.RuneCountInString(key) < minRoomKeyLength {
		return nil, fmt.Errorf("%w: key must be at least %d characters", domain.ErrInvalidInput, minRoomKeyLength)
	}

	if len(key) > maxRoomKeyBytes {
		return nil, fmt.Errorf("%w: key must be at most %d bytes", domain.ErrInvalidInput, maxRoomKeyBytes)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(key), uc.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash room key: %w", err)
	}

	return hash, nil
}

func validateRoomDetails(name, subject, difficulty string) error {
	if n := utf8.RuneCountInString(name); n == 0 || n > maxRoomNameLength {
		return fmt.Errorf("%w: name must be 1..%d characters", domain.ErrInvalidInput, maxRoomNameLength)
	}

	if utf8.RuneCountInString(subject) > maxRoomSubjectLength {
		return fmt.Errorf("%w: subject must be at most %d characters", domain.ErrInvalidInput, maxRoomSubjectLength)
	}

	if !models.Difficulty(difficulty).Valid() {
		return fmt.Errorf("%w: unknown difficulty %q", domain.ErrInvalidInput, difficulty)
	}

	return nil
}
