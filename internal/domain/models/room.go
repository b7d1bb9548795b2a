package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain/input"
)

type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return true
	}

	return false
}

type Room struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	HostID           uuid.UUID  `json:"host_id" db:"host_id"`
	Name             string     `json:"name" db:"name"`
	Subject          string     `json:"subject" db:"subject"`
	Difficulty       Difficulty `json:"difficulty" db:"difficulty"`
	ApprovalRequired bool       `json:"approval_required" db:"approval_required"`
	RequiresKey      bool       `json:"requires_key" db:"requires_key"`
	// KeyHash - bcrypt-дайджест ключа комнаты, наружу не отдается
	KeyHash   []byte    `json:"-" db:"key_hash"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

func NewRoom(in *input.CreateRoomInput, now time.Time) *Room {
	return &Room{
		ID:               uuid.New(),
		HostID:           in.HostID,
		Name:             in.Name,
		Subject:          in.Subject,
		Difficulty:       Difficulty(in.Difficulty),
		ApprovalRequired: in.ApprovalRequired,
		RequiresKey:      in.RequiresKey,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func (r *Room) IsHost(userID uuid.UUID) bool {
	return r.HostID == userID
}

// Profile - отображаемый профиль пользователя, приходит вместе с идентичностью
type Profile struct {
	Username  string `json:"username" db:"username"`
	AvatarURL string `json:"avatar_url,omitempty" db:"avatar_url"`
}

// User - аутентифицированный вызывающий
type User struct {
	ID uuid.UUID `json:"id"`
	Profile
}

type Membership struct {
	RoomID   uuid.UUID `json:"room_id" db:"room_id"`
	UserID   uuid.UUID `json:"user_id" db:"user_id"`
	JoinedAt time.Time `json:"joined_at" db:"joined_at"`
	Profile
}
