package memory

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain/models"
)

// LeaderboardCache хранит последний удачно посчитанный лидерборд комнаты за день
type LeaderboardCache interface {
	Get(ctx context.Context, roomID uuid.UUID, day string) (*models.Leaderboard, bool, error)
	Set(ctx context.Context, lb *models.Leaderboard) error
}

type leaderboardKey struct {
	roomID uuid.UUID
	day    string
}

type leaderboardCache struct {
	items map[leaderboardKey]models.Leaderboard
	mu    sync.RWMutex
}

func NewLeaderboardCache() LeaderboardCache {
	return &leaderboardCache{items: make(map[leaderboardKey]models.Leaderboard)}
}

func (c *leaderboardCache) Get(ctx context.Context, roomID uuid.UUID, day string) (*models.Leaderboard, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	lb, ok := c.items[leaderboardKey{roomID: roomID, day: day}]
	if !ok {
		return nil, false, nil
	}

	lb.Rows = append([]models.LeaderboardRow(nil), lb.Rows...)

	return &lb, true, nil
}

func (c *leaderboardCache) Set(ctx context.Context, lb *models.Leaderboard) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	// старые дни больше не нужны
	for k := range c.items {
		if k.roomID == lb.RoomID && k.day != lb.Day {
			delete(c.items, k)
		}
	}

	item := *lb
	item.Rows = append([]models.LeaderboardRow(nil), lb.Rows...)
	c.items[leaderboardKey{roomID: lb.RoomID, day: lb.Day}] = item

	return nil
}
