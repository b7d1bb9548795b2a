package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/StudyRoom/internal/usecase"
)

type AccessHandler struct {
	accessUsecase usecase.AccessUsecase
}

func NewAccessHandler(accessUsecase usecase.AccessUsecase) *AccessHandler {
	return &AccessHandler{accessUsecase: accessUsecase}
}

func (h *AccessHandler) RequestJoinHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	req, err := h.accessUsecase.RequestJoin(c.Request().Context(), roomID, user)
	if err != nil {
		return respondError(c, err)
	}

	status := http.StatusOK
	if req.Status == models.JoinRequestPending {
		status = http.StatusAccepted
	}

	return c.JSON(status, req)
}

func (h *AccessHandler) MyRequestHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	req, err := h.accessUsecase.MyLatestRequest(c.Request().Context(), roomID, user.ID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, req)
}

func (h *AccessHandler) ListPendingHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	requests, err := h.accessUsecase.ListPendingRequests(c.Request().Context(), roomID, user.ID)
	if err != nil {
		return respondError(c, err)
	}

	if requests == nil {
		requests = []models.JoinRequest{}
	}

	return c.JSON(http.StatusOK, map[string]any{"requests": requests})
}

func (h *AccessHandler) DecideHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	requestID, err := paramUUID(c, "requestId")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.DecideJoinRequest
	if err = bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	decided, err := h.accessUsecase.DecideJoinRequest(c.Request().Context(), roomID, requestID, user.ID, *req.Accept)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, decided)
}

func (h *AccessHandler) VerifyKeyHandler(c echo.Context) error {
	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.VerifyKeyRequest
	if err = bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	if err = h.accessUsecase.VerifyKey(c.Request().Context(), roomID, req.Key); err != nil {
		return respondError(c, err)
	}

	return c.NoContent(http.StatusNoContent)
}
