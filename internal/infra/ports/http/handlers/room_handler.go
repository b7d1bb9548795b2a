package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/StudyRoom/internal/domain/input"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/StudyRoom/internal/usecase"
)

type RoomHandler struct {
	roomUsecase     usecase.RoomUsecase
	presenceUsecase usecase.PresenceUsecase
}

func NewRoomHandler(roomUsecase usecase.RoomUsecase, presenceUsecase usecase.PresenceUsecase) *RoomHandler {
	return &RoomHandler{
		roomUsecase:     roomUsecase,
		presenceUsecase: presenceUsecase,
	}
}

func (h *RoomHandler) CreateRoomHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	var req dto.CreateRoomRequest
	if err := bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	room, err := h.roomUsecase.CreateRoom(c.Request().Context(), &input.CreateRoomInput{
		HostID:           user.ID,
		HostName:         user.Username,
		HostAvatarURL:    user.AvatarURL,
		Name:             req.Name,
		Subject:          req.Subject,
		Difficulty:       req.Difficulty,
		ApprovalRequired: req.ApprovalRequired,
		RequiresKey:      req.RequiresKey,
		Key:              req.Key,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, dto.NewRoomResponseFromModel(room, nil))
}

func (h *RoomHandler) GetRoomHandler(c echo.Context) error {
	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()

	room, err := h.roomUsecase.GetRoom(ctx, roomID)
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewRoomResponseFromModel(room, h.presenceUsecase.Snapshot(ctx, room.ID)))
}

func (h *RoomHandler) ListRoomsHandler(c echo.Context) error {
	var query dto.ListRoomsQuery
	if err := bindAndValidate(c, &query); err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()

	rooms, err := h.roomUsecase.ListRooms(ctx, input.ListRoomsFilter{
		Query:      query.Query,
		Difficulty: query.Difficulty,
		Limit:      query.Limit,
		Offset:     query.Offset,
	})
	if err != nil {
		return respondError(c, err)
	}

	resp := dto.ListRoomsResponse{Rooms: make([]dto.RoomResponse, 0, len(rooms))}

	for _, room := range rooms {
		resp.Rooms = append(resp.Rooms, dto.NewRoomResponseFromModel(room, h.presenceUsecase.Snapshot(ctx, room.ID)))
	}

	return c.JSON(http.StatusOK, resp)
}

func (h *RoomHandler) UpdatePolicyHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.UpdateRoomPolicyRequest
	if err = bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	room, err := h.roomUsecase.UpdateRoomPolicy(c.Request().Context(), &input.UpdateRoomPolicyInput{
		RoomID:           roomID,
		CallerID:         user.ID,
		ApprovalRequired: req.ApprovalRequired,
		RequiresKey:      req.RequiresKey,
		Key:              req.Key,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewRoomResponseFromModel(room, nil))
}

func (h *RoomHandler) UpdateDetailsHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.UpdateRoomDetailsRequest
	if err = bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	room, err := h.roomUsecase.UpdateRoomDetails(c.Request().Context(), &input.UpdateRoomDetailsInput{
		RoomID:     roomID,
		CallerID:   user.ID,
		Name:       req.Name,
		Subject:    req.Subject,
		Difficulty: req.Difficulty,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusOK, dto.NewRoomResponseFromModel(room, nil))
}
