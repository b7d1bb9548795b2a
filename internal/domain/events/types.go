package events

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/domain/runtime"
)

// Message - входящее событие от клиента
type Message struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
	// CorrelationID возвращается в ошибке, чтобы клиент откатил оптимистичное эхо
	CorrelationID string `json:"correlation_id,omitempty"`
}

// Входящие типы
const (
	InHeartbeat  = "heartbeat"
	InActivity   = "activity"
	InVisibility = "visibility"
	InChat       = "chat"
	InTyping     = "typing"
	InTimer      = "timer"
	InLeave      = "leave"
	InPing       = "ping"
)

// Исходящие типы
const (
	RoomCreated = "room_created"
	RoomUpdated = "room_updated"

	JoinRequestCreated = "join_request_created"
	JoinRequestUpdated = "join_request_updated"

	PresenceSync   = "presence_sync"
	PresenceJoin   = "presence_join"
	PresenceLeave  = "presence_leave"
	PresenceUpdate = "presence_update"

	ChatMessage   = "chat_message"
	ChatRetracted = "chat_retracted"
	ChatHistory   = "chat_history"
	Typing        = "typing"

	TimerState = "timer_state"

	Error = "error"
	Pong  = "pong"
)

type VisibilityEvent struct {
	Hidden bool `json:"hidden"`
}

type ChatEvent struct {
	Content  string `json:"content"`
	ClientID string `json:"client_id"`
}

type TypingEvent struct {
	IsTyping bool `json:"is_typing"`
}

type TimerEvent struct {
	Action models.TimerAction `json:"action"`
}

type LeaveEvent struct {
	Note string `json:"note"`
}

// Исходящие payload

type PresenceSyncPayload struct {
	Entries []runtime.PresenceView `json:"entries"`
}

type PresenceLeavePayload struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	UserID       uuid.UUID `json:"user_id"`
}

type ChatRetractedPayload struct {
	MessageID uuid.UUID `json:"message_id"`
	ClientID  string    `json:"client_id,omitempty"`
}

type TypingPayload struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsTyping bool      `json:"is_typing"`
	// ExpiresInMs - подсказка клиенту, когда погасить индикатор без повторного события
	ExpiresInMs int64 `json:"expires_in_ms"`
}

type ErrorPayload struct {
	Code          string `json:"code"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}
