package dto

import "github.com/qrave1/StudyRoom/internal/domain/models"

type PostMessageRequest struct {
	Content  string `json:"content" validate:"required"`
	ClientID string `json:"client_id" validate:"max=64"`
}

type HistoryQuery struct {
	Limit int `query:"limit" validate:"gte=0,lte=1000"`
}

type HistoryResponse struct {
	Messages []models.Message `json:"messages"`
}
