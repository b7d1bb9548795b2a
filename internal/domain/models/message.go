package models

import (
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID       uuid.UUID `json:"id" db:"id"`
	Seq      int64     `json:"seq" db:"seq"`
	RoomID   uuid.UUID `json:"room_id" db:"room_id"`
	AuthorID uuid.UUID `json:"author_id" db:"author_id"`
	Content  string    `json:"content" db:"content"`
	// ClientID - идентификатор оптимистичного эха, возвращается автору как есть
	ClientID  string    `json:"client_id,omitempty" db:"client_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	Profile
}
