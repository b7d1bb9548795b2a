package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Envelope - исходящее событие комнаты
type Envelope struct {
	EventID   uuid.UUID `json:"event_id"`
	Type      string    `json:"type"`
	RoomID    uuid.UUID `json:"room_id"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload,omitempty"`
}

func New(eventType string, roomID uuid.UUID, payload any, now time.Time) Envelope {
	return Envelope{
		EventID:   uuid.New(),
		Type:      eventType,
		RoomID:    roomID,
		Timestamp: now,
		Payload:   payload,
	}
}

// DirectoryRoomID - группа подписчиков каталога комнат
var DirectoryRoomID = uuid.Nil

// Publisher - транспорт fan-out событий комнат.
//
// Publish гарантирует порядок доставки каждому подписчику группы.
// PublishEphemeral - best effort, без гарантий и без вытеснения медленных подписчиков.
type Publisher interface {
	Publish(ctx context.Context, roomID uuid.UUID, env Envelope) error
	PublishExcept(ctx context.Context, roomID, exceptConnID uuid.UUID, env Envelope) error
	PublishEphemeral(ctx context.Context, roomID uuid.UUID, env Envelope) error
	SendTo(ctx context.Context, connID uuid.UUID, env Envelope) error
}
