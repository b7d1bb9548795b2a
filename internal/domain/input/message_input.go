package input

import "github.com/google/uuid"

type PostMessageInput struct {
	RoomID    uuid.UUID
	AuthorID  uuid.UUID
	Username  string
	AvatarURL string
	Content   string
	ClientID  string
}
