package runtime

import (
	"time"

	"github.com/google/uuid"

	"github.com/qrave1/StudyRoom/internal/domain/models"
)

// PresenceEntry - живое соединение пользователя с комнатой. Только в памяти.
type PresenceEntry struct {
	ConnectionID    uuid.UUID
	RoomID          uuid.UUID
	UserID          uuid.UUID
	Profile         models.Profile
	JoinedAt        time.Time
	LastHeartbeatAt time.Time
	LastActiveAt    time.Time
	// HiddenSince - когда клиент сообщил о скрытой вкладке; nil если видима
	HiddenSince *time.Time
	// ReportedIdle - последнее разосланное состояние idle
	ReportedIdle bool
}

func NewPresenceEntry(connID, roomID uuid.UUID, user models.User, now time.Time) *PresenceEntry {
	return &PresenceEntry{
		ConnectionID:    connID,
		RoomID:          roomID,
		UserID:          user.ID,
		Profile:         user.Profile,
		JoinedAt:        now,
		LastHeartbeatAt: now,
		LastActiveAt:    now,
	}
}

// Idle - давно не было ввода или вкладка скрыта дольше idleAfter
func (e *PresenceEntry) Idle(now time.Time, idleAfter time.Duration) bool {
	if now.Sub(e.LastActiveAt) > idleAfter {
		return true
	}

	return e.HiddenSince != nil && now.Sub(*e.HiddenSince) > idleAfter
}

func (e *PresenceEntry) Stale(now time.Time, grace time.Duration) bool {
	return now.Sub(e.LastHeartbeatAt) > grace
}

func (e *PresenceEntry) View(now time.Time, idleAfter time.Duration) PresenceView {
	return PresenceView{
		ConnectionID: e.ConnectionID,
		UserID:       e.UserID,
		Profile:      e.Profile,
		JoinedAt:     e.JoinedAt,
		LastActiveAt: e.LastActiveAt,
		Idle:         e.Idle(now, idleAfter),
	}
}

// PresenceView - то, что видят другие участники комнаты
type PresenceView struct {
	ConnectionID uuid.UUID `json:"connection_id"`
	UserID       uuid.UUID `json:"user_id"`
	JoinedAt     time.Time `json:"joined_at"`
	LastActiveAt time.Time `json:"last_active_at"`
	Idle         bool      `json:"idle"`
	models.Profile
}
