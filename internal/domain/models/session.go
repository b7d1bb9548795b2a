package models

import (
	"time"

	"github.com/google/uuid"
)

type Session struct {
	ID                 uuid.UUID  `json:"id" db:"id"`
	RoomID             uuid.UUID  `json:"room_id" db:"room_id"`
	UserID             uuid.UUID  `json:"user_id" db:"user_id"`
	StartedAt          time.Time  `json:"started_at" db:"started_at"`
	EndedAt            *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	AccumulatedSeconds int64      `json:"accumulated_seconds" db:"accumulated_seconds"`
	Note               *string    `json:"note,omitempty" db:"note"`
}

func NewSession(roomID, userID uuid.UUID, now time.Time) *Session {
	return &Session{
		ID:        uuid.New(),
		RoomID:    roomID,
		UserID:    userID,
		StartedAt: now,
	}
}

// ClampSeconds ограничивает активное время длительностью сессии по часам
func ClampSeconds(accumulated int64, startedAt, at time.Time) int64 {
	wall := int64(at.Sub(startedAt) / time.Second)
	if wall < 0 {
		wall = 0
	}

	if accumulated > wall {
		return wall
	}

	if accumulated < 0 {
		return 0
	}

	return accumulated
}
