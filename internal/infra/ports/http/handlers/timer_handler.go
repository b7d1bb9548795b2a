package handlers

import (
	"net/http"

	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/StudyRoom/internal/usecase"
)

type TimerHandler struct {
	clock        clockwork.Clock
	timerUsecase usecase.TimerUsecase
}

func NewTimerHandler(clock clockwork.Clock, timerUsecase usecase.TimerUsecase) *TimerHandler {
	return &TimerHandler{
		clock:        clock,
		timerUsecase: timerUsecase,
	}
}

func (h *TimerHandler) GetTimerHandler(c echo.Context) error {
	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	state, err := h.timerUsecase.Get(c.Request().Context(), roomID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewTimerResponse(state, h.clock.Now()))
}

func (h *TimerHandler) StartFocusHandler(c echo.Context) error {
	return h.transition(c, models.TimerActionStartFocus)
}

func (h *TimerHandler) StartBreakHandler(c echo.Context) error {
	return h.transition(c, models.TimerActionStartBreak)
}

func (h *TimerHandler) StopHandler(c echo.Context) error {
	return h.transition(c, models.TimerActionStop)
}

func (h *TimerHandler) transition(c echo.Context, action models.TimerAction) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	state, err := h.timerUsecase.Transition(c.Request().Context(), roomID, user.ID, action)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewTimerResponse(state, h.clock.Now()))
}

func (h *TimerHandler) UpdateConfigHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.TimerConfigRequest
	if err = bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	state, err := h.timerUsecase.UpdateConfig(c.Request().Context(), roomID, user.ID, req.ToModel())
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewTimerResponse(state, h.clock.Now()))
}
