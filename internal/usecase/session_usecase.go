package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/application/metric"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/domain/runtime"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres/repository"
)

type SessionUsecase interface {
	// Start закрывает все открытые сессии пользователя и открывает новую
	Start(ctx context.Context, roomID, userID uuid.UUID) (*SessionTracker, error)
}

type sessionUsecase struct {
	clock      clockwork.Clock
	serializer *Serializer

	tickInterval  time.Duration
	flushInterval time.Duration
	idleAfter     time.Duration

	sessionRepo repository.SessionRepository

	// trackers - открытые на этом инстансе сессии
	trackers map[uuid.UUID]*SessionTracker
	mu       sync.Mutex
}

func NewSessionUsecase(
	clock clockwork.Clock,
	serializer *Serializer,
	tickInterval time.Duration,
	flushInterval time.Duration,
	idleAfter time.Duration,
	sessionRepo repository.SessionRepository,
) SessionUsecase {
	return &sessionUsecase{
		clock:         clock,
		serializer:    serializer,
		tickInterval:  tickInterval,
		flushInterval: flushInterval,
		idleAfter:     idleAfter,
		sessionRepo:   sessionRepo,
		trackers:      make(map[uuid.UUID]*SessionTracker),
	}
}

func (uc *sessionUsecase) Start(ctx context.Context, roomID, userID uuid.UUID) (*SessionTracker, error) {
	var tracker *SessionTracker

	err := uc.serializer.Do(ctx, userLane(userID), func(ctx context.Context) error {
		session := models.NewSession(roomID, userID, uc.clock.Now())

		closed, err := uc.sessionRepo.Open(ctx, session)
		if err != nil {
			return fmt.Errorf("open session: %w", err)
		}

		for _, id := range closed {
			uc.supersede(id)
		}

		tracker = &SessionTracker{
			session:       *session,
			activity:      runtime.NewActivityClock(session.StartedAt, uc.idleAfter),
			clock:         uc.clock,
			repo:          uc.sessionRepo,
			tickInterval:  uc.tickInterval,
			flushInterval: uc.flushInterval,
			stop:          make(chan struct{}),
			onFinish:      uc.forget,
		}

		uc.mu.Lock()
		uc.trackers[session.ID] = tracker
		uc.mu.Unlock()

		metric.IncrementOpenSessions()

		return nil
	})
	if err != nil {
		return nil, err
	}

	return tracker, nil
}

// supersede останавливает трекер сессии, которую БД уже закрыла
func (uc *sessionUsecase) supersede(id uuid.UUID) {
	uc.mu.Lock()
	tracker, ok := uc.trackers[id]
	uc.mu.Unlock()

	if ok {
		tracker.finish()
	}
}

func (uc *sessionUsecase) forget(id uuid.UUID) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	if _, ok := uc.trackers[id]; ok {
		delete(uc.trackers, id)
		metric.DecrementOpenSessions()
	}
}

// SessionTracker ведет учет активного времени одной сессии
type SessionTracker struct {
	session  models.Session
	activity *runtime.ActivityClock
	clock    clockwork.Clock
	repo     repository.SessionRepository

	tickInterval  time.Duration
	flushInterval time.Duration

	finishOnce sync.Once
	stop       chan struct{}
	onFinish   func(id uuid.UUID)
}

func (t *SessionTracker) ID() uuid.UUID {
	return t.session.ID
}

func (t *SessionTracker) StartedAt() time.Time {
	return t.session.StartedAt
}

func (t *SessionTracker) Accumulated() int64 {
	return t.activity.Accumulated()
}

// RecordInput отмечает ввод пользователя серверным временем
func (t *SessionTracker) RecordInput() {
	t.activity.RecordInput(t.clock.Now())
}

func (t *SessionTracker) SetHidden(hidden bool) {
	t.activity.SetHidden(hidden, t.clock.Now())
}

// Run считает тики и периодически сохраняет накопленное. Завершается по ctx или Close.
func (t *SessionTracker) Run(ctx context.Context) {
	tick := t.clock.NewTicker(t.tickInterval)
	defer tick.Stop()

	flush := t.clock.NewTicker(t.flushInterval)
	defer flush.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		case <-tick.Chan():
			t.activity.Tick(t.clock.Now())
		case <-flush.Chan():
			if err := t.Flush(ctx); err != nil {
				// следующий интервал попробует снова
				slog.Warn("flush session", slog.Any(constant.Error, err), slog.Any(constant.SessionID, t.session.ID))
			}
		}
	}
}

func (t *SessionTracker) Flush(ctx context.Context) error {
	now := t.clock.Now()

	open, err := t.repo.Flush(ctx, t.session.ID, t.seconds(now), now)
	if err != nil {
		return err
	}

	if !open {
		t.finish()
	}

	return nil
}

// Close закрывает сессию ровно один раз; повторные вызовы возвращают false
func (t *SessionTracker) Close(ctx context.Context, note string) (bool, error) {
	first := false
	t.finishOnce.Do(func() { first = true })

	if !first {
		return false, nil
	}

	t.release()

	var notePtr *string
	if note != "" {
		notePtr = &note
	}

	now := t.clock.Now()

	closed, err := t.repo.Close(ctx, t.session.ID, t.seconds(now), now, notePtr)
	if err != nil {
		// открытую запись закроет следующий Open этого пользователя
		return false, fmt.Errorf("close session: %w", err)
	}

	return closed, nil
}

// seconds - накопленное время, не больше длительности сессии на момент at
func (t *SessionTracker) seconds(at time.Time) int64 {
	return models.ClampSeconds(t.activity.Accumulated(), t.session.StartedAt, at)
}

func (t *SessionTracker) finish() {
	t.finishOnce.Do(t.release)
}

func (t *SessionTracker) release() {
	close(t.stop)

	if t.onFinish != nil {
		t.onFinish(t.session.ID)
	}
}
