package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/domain/runtime"
)

type CreateRoomRequest struct {
	Name             string `json:"name" validate:"required,max=100"`
	Subject          string `json:"subject" validate:"max=100"`
	Difficulty       string `json:"difficulty" validate:"required,oneof=easy medium hard"`
	ApprovalRequired bool   `json:"approval_required"`
	RequiresKey      bool   `json:"requires_key"`
	Key              string `json:"key" validate:"required_if=RequiresKey true,max=72"`
}

type UpdateRoomPolicyRequest struct {
	ApprovalRequired *bool  `json:"approval_required"`
	RequiresKey      *bool  `json:"requires_key"`
	Key              string `json:"key" validate:"max=72"`
}

type UpdateRoomDetailsRequest struct {
	Name       *string `json:"name" validate:"omitempty,max=100"`
	Subject    *string `json:"subject" validate:"omitempty,max=100"`
	Difficulty *string `json:"difficulty" validate:"omitempty,oneof=easy medium hard"`
}

type ListRoomsQuery struct {
	Query      string `query:"q" validate:"max=100"`
	Difficulty string `query:"difficulty" validate:"omitempty,oneof=easy medium hard"`
	Limit      int    `query:"limit" validate:"gte=0,lte=100"`
	Offset     int    `query:"offset" validate:"gte=0"`
}

type RoomResponse struct {
	ID               uuid.UUID              `json:"id"`
	HostID           uuid.UUID              `json:"host_id"`
	Name             string                 `json:"name"`
	Subject          string                 `json:"subject"`
	Difficulty       models.Difficulty      `json:"difficulty"`
	ApprovalRequired bool                   `json:"approval_required"`
	RequiresKey      bool                   `json:"requires_key"`
	CreatedAt        time.Time              `json:"created_at"`
	UpdatedAt        time.Time              `json:"updated_at"`
	Online           []runtime.PresenceView `json:"online"`
}

func NewRoomResponseFromModel(room *models.Room, online []runtime.PresenceView) RoomResponse {
	if online == nil {
		online = []runtime.PresenceView{}
	}

	return RoomResponse{
		ID:               room.ID,
		HostID:           room.HostID,
		Name:             room.Name,
		Subject:          room.Subject,
		Difficulty:       room.Difficulty,
		ApprovalRequired: room.ApprovalRequired,
		RequiresKey:      room.RequiresKey,
		CreatedAt:        room.CreatedAt,
		UpdatedAt:        room.UpdatedAt,
		Online:           online,
	}
}

type ListRoomsResponse struct {
	Rooms []RoomResponse `json:"rooms"`
}
