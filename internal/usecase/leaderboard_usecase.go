package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/memory"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres/repository"
)

const (
	defaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
)

type LeaderboardUsecase interface {
	// DailyTop - топ n участников комнаты за текущие сутки.
	// Если БД недоступна, отдается последний удачный результат со Stale.
	DailyTop(ctx context.Context, roomID uuid.UUID, n int) (*models.Leaderboard, error)
}

type leaderboardUsecase struct {
	clock    clockwork.Clock
	location *time.Location

	sessionRepo repository.SessionRepository
	cache       memory.LeaderboardCache
}

func NewLeaderboardUsecase(
	clock clockwork.Clock,
	location *time.Location,
	sessionRepo repository.SessionRepository,
	cache memory.LeaderboardCache,
) LeaderboardUsecase {
	return &leaderboardUsecase{
		clock:       clock,
		location:    location,
		sessionRepo: sessionRepo,
		cache:       cache,
	}
}

func (uc *leaderboardUsecase) DailyTop(ctx context.Context, roomID uuid.UUID, n int) (*models.Leaderboard, error) {
	if n <= 0 {
		n = defaultLeaderboardSize
	}

	n = min(n, maxLeaderboardSize)

	now := uc.clock.Now()
	from, to := models.DayWindow(now, uc.location)
	day := from.Format(time.DateOnly)

	rows, err := uc.sessionRepo.DailyTotals(ctx, roomID, from, to)
	if err != nil {
		if errors.Is(err, domain.ErrStoreUnavailable) {
			if cached := uc.cached(ctx, roomID, day); cached != nil {
				cached.Stale = true
				cached.Rows = models.RankLeaderboard(cached.Rows, n)

				return cached, nil
			}
		}

		return nil, fmt.Errorf("aggregate daily totals: %w", err)
	}

	full := &models.Leaderboard{
		RoomID:      roomID,
		Day:         day,
		Rows:        models.RankLeaderboard(rows, -1),
		GeneratedAt: now,
	}

	if err = uc.cache.Set(ctx, full); err != nil {
		slog.Warn("cache leaderboard", slog.Any(constant.Error, err), slog.Any(constant.RoomID, roomID))
	}

	top := *full
	top.Rows = append(make([]models.LeaderboardRow, 0, n), full.Rows[:min(n, len(full.Rows))]...)

	return &top, nil
}

func (uc *leaderboardUsecase) cached(ctx context.Context, roomID uuid.UUID, day string) *models.Leaderboard {
	lb, ok, err := uc.cache.Get(ctx, roomID, day)
	if err != nil {
		slog.Warn("read cached leaderboard", slog.Any(constant.Error, err), slog.Any(constant.RoomID, roomID))
		return nil
	}

	if !ok {
		return nil
	}

	return lb
}
