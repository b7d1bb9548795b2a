package models

import (
	"time"

	"github.com/google/uuid"
)

type JoinRequestStatus string

const (
	JoinRequestPending  JoinRequestStatus = "pending"
	JoinRequestAccepted JoinRequestStatus = "accepted"
	JoinRequestDenied   JoinRequestStatus = "denied"
)

type JoinRequest struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	RoomID      uuid.UUID         `json:"room_id" db:"room_id"`
	RequesterID uuid.UUID         `json:"requester_id" db:"requester_id"`
	Status      JoinRequestStatus `json:"status" db:"status"`
	CreatedAt   time.Time         `json:"created_at" db:"created_at"`
	DecidedAt   *time.Time        `json:"decided_at,omitempty" db:"decided_at"`
	Profile
}

func NewJoinRequest(roomID uuid.UUID, requester User, now time.Time) *JoinRequest {
	return &JoinRequest{
		ID:          uuid.New(),
		RoomID:      roomID,
		RequesterID: requester.ID,
		Status:      JoinRequestPending,
		CreatedAt:   now,
		Profile:     requester.Profile,
	}
}

// IsTerminal - accepted и denied больше не меняются
func (r *JoinRequest) IsTerminal() bool {
	return r.Status == JoinRequestAccepted || r.Status == JoinRequestDenied
}
