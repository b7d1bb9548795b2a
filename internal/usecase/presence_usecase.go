package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/domain/runtime"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/memory"
)

// EvictFunc вызывается для соединения, пропустившего heartbeat дольше допустимого
type EvictFunc func(ctx context.Context, entry runtime.PresenceEntry)

type PresenceUsecase interface {
	// Connect регистрирует соединение: новичку sync со всем составом, остальным join
	Connect(ctx context.Context, roomID, connID uuid.UUID, user models.User) error
	Heartbeat(ctx context.Context, connID uuid.UUID)
	Activity(ctx context.Context, connID uuid.UUID)
	SetHidden(ctx context.Context, connID uuid.UUID, hidden bool)
	// Disconnect идемпотентен: leave рассылается один раз
	Disconnect(ctx context.Context, connID uuid.UUID) bool
	Snapshot(ctx context.Context, roomID uuid.UUID) []runtime.PresenceView

	// RunSweeper выгоняет молчащие соединения и рассылает смену idle
	RunSweeper(ctx context.Context, onEvict EvictFunc)
}

type presenceUsecase struct {
	clock     clockwork.Clock
	publisher events.Publisher

	heartbeatInterval time.Duration
	grace             time.Duration
	idleAfter         time.Duration

	presenceRepo memory.PresenceRepository
}

func NewPresenceUsecase(
	clock clockwork.Clock,
	publisher events.Publisher,
	heartbeatInterval time.Duration,
	grace time.Duration,
	idleAfter time.Duration,
	presenceRepo memory.PresenceRepository,
) PresenceUsecase {
	return &presenceUsecase{
		clock:             clock,
		publisher:         publisher,
		heartbeatInterval: heartbeatInterval,
		grace:             grace,
		idleAfter:         idleAfter,
		presenceRepo:      presenceRepo,
	}
}

func (uc *presenceUsecase) Connect(ctx context.Context, roomID, connID uuid.UUID, user models.User) error {
	now := uc.clock.Now()
	entry := runtime.NewPresenceEntry(connID, roomID, user, now)

	uc.presenceRepo.Add(ctx, *entry)

	snapshot := events.PresenceSyncPayload{Entries: uc.Snapshot(ctx, roomID)}

	if err := uc.publisher.SendTo(ctx, connID, events.New(events.PresenceSync, roomID, snapshot, now)); err != nil {
		uc.presenceRepo.Remove(ctx, connID)
		return err
	}

	join := events.New(events.PresenceJoin, roomID, entry.View(now, uc.idleAfter), now)
	if err := uc.publisher.PublishExcept(ctx, roomID, connID, join); err != nil {
		slog.Warn("publish presence join", slog.Any(constant.Error, err), slog.Any(constant.RoomID, roomID))
	}

	return nil
}

func (uc *presenceUsecase) Heartbeat(ctx context.Context, connID uuid.UUID) {
	now := uc.clock.Now()

	uc.update(ctx, connID, func(e *runtime.PresenceEntry) {
		e.LastHeartbeatAt = now
	})
}

func (uc *presenceUsecase) Activity(ctx context.Context, connID uuid.UUID) {
	now := uc.clock.Now()

	uc.update(ctx, connID, func(e *runtime.PresenceEntry) {
		e.LastHeartbeatAt = now
		e.LastActiveAt = now
	})
}

func (uc *presenceUsecase) SetHidden(ctx context.Context, connID uuid.UUID, hidden bool) {
	now := uc.clock.Now()

	uc.update(ctx, connID, func(e *runtime.PresenceEntry) {
		e.LastHeartbeatAt = now

		switch {
		case hidden && e.HiddenSince == nil:
			e.HiddenSince = &now
		case !hidden:
			e.HiddenSince = nil
			e.LastActiveAt = now
		}
	})
}

// update меняет запись и рассылает presence_update, если сменилось idle
func (uc *presenceUsecase) update(ctx context.Context, connID uuid.UUID, fn func(e *runtime.PresenceEntry)) {
	now := uc.clock.Now()
	flipped := false

	entry, ok := uc.presenceRepo.Update(ctx, connID, func(e *runtime.PresenceEntry) {
		fn(e)

		if idle := e.Idle(now, uc.idleAfter); idle != e.ReportedIdle {
			e.ReportedIdle = idle
			flipped = true
		}
	})

	if ok && flipped {
		uc.publishUpdate(ctx, entry, now)
	}
}

func (uc *presenceUsecase) publishUpdate(ctx context.Context, entry runtime.PresenceEntry, now time.Time) {
	env := events.New(events.PresenceUpdate, entry.RoomID, entry.View(now, uc.idleAfter), now)

	if err := uc.publisher.Publish(ctx, entry.RoomID, env); err != nil {
		slog.Warn("publish presence update", slog.Any(constant.Error, err), slog.Any(constant.RoomID, entry.RoomID))
	}
}

func (uc *presenceUsecase) Disconnect(ctx context.Context, connID uuid.UUID) bool {
	entry, ok := uc.presenceRepo.Remove(ctx, connID)
	if !ok {
		return false
	}

	payload := events.PresenceLeavePayload{ConnectionID: entry.ConnectionID, UserID: entry.UserID}
	env := events.New(events.PresenceLeave, entry.RoomID, payload, uc.clock.Now())

	if err := uc.publisher.Publish(ctx, entry.RoomID, env); err != nil {
		slog.Warn("publish presence leave", slog.Any(constant.Error, err), slog.Any(constant.RoomID, entry.RoomID))
	}

	return true
}

func (uc *presenceUsecase) Snapshot(ctx context.Context, roomID uuid.UUID) []runtime.PresenceView {
	now := uc.clock.Now()
	entries := uc.presenceRepo.ListRoom(ctx, roomID)

	views := make([]runtime.PresenceView, 0, len(entries))
	for _, e := range entries {
		views = append(views, e.View(now, uc.idleAfter))
	}

	return views
}

func (uc *presenceUsecase) RunSweeper(ctx context.Context, onEvict EvictFunc) {
	ticker := uc.clock.NewTicker(uc.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			uc.sweep(ctx, onEvict)
		}
	}
}

func (uc *presenceUsecase) sweep(ctx context.Context, onEvict EvictFunc) {
	now := uc.clock.Now()

	for _, e := range uc.presenceRepo.All(ctx) {
		if e.Stale(now, uc.grace) {
			slog.Info(
				"evict stale connection",
				slog.Any(constant.ConnectionID, e.ConnectionID),
				slog.Any(constant.UserID, e.UserID),
				slog.Any(constant.RoomID, e.RoomID),
			)

			if onEvict != nil {
				onEvict(ctx, e)
			}

			// хук мог уже убрать запись; повторный Disconnect ничего не делает
			uc.Disconnect(ctx, e.ConnectionID)

			continue
		}

		// idle наступает просто со временем, без событий от клиента
		uc.update(ctx, e.ConnectionID, func(*runtime.PresenceEntry) {})
	}
}
