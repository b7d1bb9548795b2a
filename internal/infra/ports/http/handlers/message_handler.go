package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/qrave1/StudyRoom/internal/domain/input"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/dto"
	"github.com/qrave1/StudyRoom/internal/usecase"
)

type MessageHandler struct {
	messageUsecase usecase.MessageUsecase
}

func NewMessageHandler(messageUsecase usecase.MessageUsecase) *MessageHandler {
	return &MessageHandler{messageUsecase: messageUsecase}
}

func (h *MessageHandler) HistoryHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var query dto.HistoryQuery
	if err = bindAndValidate(c, &query); err != nil {
		return respondError(c, err)
	}

	messages, err := h.messageUsecase.History(c.Request().Context(), roomID, user.ID, query.Limit)
	if err != nil {
		return respondError(c, err)
	}

	if messages == nil {
		messages = []models.Message{}
	}

	return c.JSON(http.StatusOK, dto.HistoryResponse{Messages: messages})
}

func (h *MessageHandler) PostMessageHandler(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	var req dto.PostMessageRequest
	if err = bindAndValidate(c, &req); err != nil {
		return respondError(c, err)
	}

	msg, err := h.messageUsecase.PostMessage(c.Request().Context(), &input.PostMessageInput{
		RoomID:    roomID,
		AuthorID:  user.ID,
		Username:  user.Username,
		AvatarURL: user.AvatarURL,
		Content:   req.Content,
		ClientID:  req.ClientID,
	})
	if err != nil {
		return respondError(c, err)
	}

	return c.JSON(http.StatusCreated, msg)
}
