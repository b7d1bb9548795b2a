package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/application/metric"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres/repository"
)

// TimerUsecase - общий таймер комнаты, менять может только хост
type TimerUsecase interface {
	Get(ctx context.Context, roomID uuid.UUID) (*models.TimerState, error)
	Transition(ctx context.Context, roomID, callerID uuid.UUID, action models.TimerAction) (*models.TimerState, error)
	UpdateConfig(ctx context.Context, roomID, callerID uuid.UUID, cfg models.TimerConfig) (*models.TimerState, error)
}

type timerUsecase struct {
	clock      clockwork.Clock
	serializer *Serializer
	publisher  events.Publisher

	roomRepo  repository.RoomRepository
	timerRepo repository.TimerRepository
}

func NewTimerUsecase(
	clock clockwork.Clock,
	serializer *Serializer,
	publisher events.Publisher,
	roomRepo repository.RoomRepository,
	timerRepo repository.TimerRepository,
) TimerUsecase {
	return &timerUsecase{
		clock:      clock,
		serializer: serializer,
		publisher:  publisher,
		roomRepo:   roomRepo,
		timerRepo:  timerRepo,
	}
}

func (uc *timerUsecase) Get(ctx context.Context, roomID uuid.UUID) (*models.TimerState, error) {
	state, err := uc.timerRepo.Get(ctx, roomID)
	if err == nil {
		return state, nil
	}

	if !errors.Is(err, domain.ErrNotFound) {
		return nil, fmt.Errorf("get timer state: %w", err)
	}

	room, err := uc.roomRepo.GetByID(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("get room: %w", err)
	}

	return models.NewTimerState(room.ID, room.HostID, room.CreatedAt), nil
}

func (uc *timerUsecase) Transition(ctx context.Context, roomID, callerID uuid.UUID, action models.TimerAction) (*models.TimerState, error) {
	if !action.Valid() {
		return nil, fmt.Errorf("%w: unknown timer action %q", domain.ErrInvalidInput, action)
	}

	state, err := uc.mutate(ctx, roomID, callerID, func(s *models.TimerState) error {
		return s.Apply(action, callerID, uc.clock.Now())
	})
	if err != nil {
		return nil, err
	}

	metric.RecordTimerTransition(string(action))

	return state, nil
}

func (uc *timerUsecase) UpdateConfig(ctx context.Context, roomID, callerID uuid.UUID, cfg models.TimerConfig) (*models.TimerState, error) {
	return uc.mutate(ctx, roomID, callerID, func(s *models.TimerState) error {
		if err := s.Reconfigure(cfg, callerID, uc.clock.Now()); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
		}

		return nil
	})
}

// mutate - переход либо сохранен и разослан, либо отклонен целиком
func (uc *timerUsecase) mutate(ctx context.Context, roomID, callerID uuid.UUID, fn func(s *models.TimerState) error) (*models.TimerState, error) {
	var result *models.TimerState

	err := uc.serializer.Do(ctx, roomLane(roomID), func(ctx context.Context) error {
		room, err := uc.roomRepo.GetByID(ctx, roomID)
		if err != nil {
			return fmt.Errorf("get room: %w", err)
		}

		if !room.IsHost(callerID) {
			return domain.ErrForbidden
		}

		state, err := uc.Get(ctx, roomID)
		if err != nil {
			return err
		}

		prev := state.Clone()

		if err = fn(state); err != nil {
			return err
		}

		if err = uc.timerRepo.Save(ctx, state); err != nil {
			return fmt.Errorf("save timer state: %w", err)
		}

		if err = uc.publisher.Publish(ctx, roomID, events.New(events.TimerState, roomID, state, state.UpdatedAt)); err != nil {
			if rbErr := uc.timerRepo.Save(ctx, prev); rbErr != nil {
				slog.Error("restore timer state", slog.Any(constant.Error, rbErr), slog.Any(constant.RoomID, roomID))
			}

			return fmt.Errorf("%w: publish timer state: %v", domain.ErrTransportUnavailable, err)
		}

		result = state

		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
