package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/runtime"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/StudyRoom/internal/usecase"
)

type PresenceHandler struct {
	accessUsecase      usecase.AccessUsecase
	presenceUsecase    usecase.PresenceUsecase
	leaderboardUsecase usecase.LeaderboardUsecase
}

func NewPresenceHandler(
	accessUsecase usecase.AccessUsecase,
	presenceUsecase usecase.PresenceUsecase,
	leaderboardUsecase usecase.LeaderboardUsecase,
) *PresenceHandler {
	return &PresenceHandler{
		accessUsecase:      accessUsecase,
		presenceUsecase:    presenceUsecase,
		leaderboardUsecase: leaderboardUsecase,
	}
}

// SnapshotHandler - состав комнаты виден только ее участникам
func (h *PresenceHandler) SnapshotHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()

	member, err := h.accessUsecase.IsMember(ctx, roomID, user.ID)
	if err != nil {
		return respondError(c, err)
	}

	if !member {
		return respondError(c, domain.ErrNotMember)
	}

	snapshot := h.presenceUsecase.Snapshot(ctx, roomID)
	if snapshot == nil {
		snapshot = []runtime.PresenceView{}
	}

	return c.JSON(http.StatusOK, map[string]any{"room_id": roomID, "members": snapshot})
}

func (h *PresenceHandler) LeaderboardHandler(c echo.Context) error {
	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var query dto.LeaderboardQuery
	if err = bindAndValidate(c, &query); err != nil {
		return respondError(c, err)
	}

	board, err := h.leaderboardUsecase.DailyTop(c.Request().Context(), roomID, query.Limit)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, board)
}
