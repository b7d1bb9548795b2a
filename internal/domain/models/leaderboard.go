package models

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

type LeaderboardRow struct {
	Rank           int       `json:"rank" db:"-"`
	UserID         uuid.UUID `json:"user_id" db:"user_id"`
	TotalSeconds   int64     `json:"total_seconds" db:"total_seconds"`
	FirstStartedAt time.Time `json:"first_started_at" db:"first_started_at"`
	Profile
}

type Leaderboard struct {
	RoomID      uuid.UUID        `json:"room_id"`
	Day         string           `json:"day"`
	Rows        []LeaderboardRow `json:"rows"`
	GeneratedAt time.Time        `json:"generated_at"`
	// Stale - хранилище недоступно, отдан последний удачный результат
	Stale bool `json:"stale"`
}

// RankLeaderboard сортирует по сумме секунд, при равенстве раньше начавший выше
func RankLeaderboard(rows []LeaderboardRow, n int) []LeaderboardRow {
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].TotalSeconds != rows[j].TotalSeconds {
			return rows[i].TotalSeconds > rows[j].TotalSeconds
		}

		return rows[i].FirstStartedAt.Before(rows[j].FirstStartedAt)
	})

	if n >= 0 && len(rows) > n {
		rows = rows[:n]
	}

	for i := range rows {
		rows[i].Rank = i + 1
	}

	return rows
}

// DayWindow - границы календарного дня, в который попадает now, в поясе loc
func DayWindow(now time.Time, loc *time.Location) (from, to time.Time) {
	local := now.In(loc)
	from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	to = from.AddDate(0, 0, 1)

	return from, to
}
