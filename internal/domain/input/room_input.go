package input

import "github.com/google/uuid"

type CreateRoomInput struct {
	HostID           uuid.UUID
	HostName         string
	HostAvatarURL    string
	Name             string
	Subject          string
	Difficulty       string
	ApprovalRequired bool
	RequiresKey      bool
	Key              string
}

// UpdateRoomPolicyInput - nil поля не меняются
type UpdateRoomPolicyInput struct {
	RoomID           uuid.UUID
	CallerID         uuid.UUID
	ApprovalRequired *bool
	RequiresKey      *bool
	// Key - новый ключ; пустая строка оставляет текущий
	Key string
}

type UpdateRoomDetailsInput struct {
	RoomID     uuid.UUID
	CallerID   uuid.UUID
	Name       *string
	Subject    *string
	Difficulty *string
}

type ListRoomsFilter struct {
	Query      string
	Difficulty string
	Limit      int
	Offset     int
}
