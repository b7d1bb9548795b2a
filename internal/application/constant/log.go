package constant

// Ключи атрибутов для slog
const (
	Error        = "error"
	UserID       = "user_id"
	UserName     = "username"
	RoomID       = "room_id"
	ConnectionID = "connection_id"
	SessionID    = "session_id"
	RequestID    = "request_id"
	EventType    = "event_type"
	Subject      = "subject"
)
