package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain/models"
)

// два дня: вчерашний лидерборд живет до конца следующих суток в любом поясе
const leaderboardTTL = 48 * time.Hour

type LeaderboardCache struct {
	client    redis.Cmdable
	keyPrefix string
}

func NewLeaderboardCache(client redis.Cmdable, keyPrefix string) *LeaderboardCache {
	return &LeaderboardCache{client: client, keyPrefix: keyPrefix}
}

func (c *LeaderboardCache) key(roomID uuid.UUID, day string) string {
	return fmt.Sprintf("%sleaderboard:%s:%s", c.keyPrefix, roomID, day)
}

func (c *LeaderboardCache) Get(ctx context.Context, roomID uuid.UUID, day string) (*models.Leaderboard, bool, error) {
	data, err := c.client.Get(ctx, c.key(roomID, day)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("get leaderboard from redis: %w", err)
	}

	var lb models.Leaderboard
	if err = json.Unmarshal(data, &lb); err != nil {
		return nil, false, fmt.Errorf("unmarshal cached leaderboard: %w", err)
	}

	return &lb, true, nil
}

func (c *LeaderboardCache) Set(ctx context.Context, lb *models.Leaderboard) error {
	data, err := json.Marshal(lb)
	if err != nil {
		return fmt.Errorf("marshal leaderboard: %w", err)
	}

	if err = c.client.Set(ctx, c.key(lb.RoomID, lb.Day), data, leaderboardTTL).Err(); err != nil {
		return fmt.Errorf("set leaderboard in redis: %w", err)
	}

	return nil
}
