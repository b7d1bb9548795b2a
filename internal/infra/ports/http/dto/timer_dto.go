package dto

import (
	"time"

	"github.com/qrave1/StudyRoom/internal/domain/models"
)

type TimerConfigRequest struct {
	FocusSeconds      int `json:"focus_seconds" validate:"required,gt=0"`
	ShortBreakSeconds int `json:"short_break_seconds" validate:"required,gt=0"`
	LongBreakSeconds  int `json:"long_break_seconds" validate:"required,gt=0"`
	LongBreakEvery    int `json:"long_break_every" validate:"required,gte=1"`
}

func (r TimerConfigRequest) ToModel() models.TimerConfig {
	return models.TimerConfig{
		FocusSeconds:      r.FocusSeconds,
		ShortBreakSeconds: r.ShortBreakSeconds,
		LongBreakSeconds:  r.LongBreakSeconds,
		LongBreakEvery:    r.LongBreakEvery,
	}
}

// TimerResponse дополняет состояние остатком на момент ответа
type TimerResponse struct {
	*models.TimerState
	RemainingSeconds int64 `json:"remaining_seconds"`
}

func NewTimerResponse(state *models.TimerState, now time.Time) TimerResponse {
	return TimerResponse{
		TimerState:       state,
		RemainingSeconds: int64(state.Remaining(now) / time.Second),
	}
}

type LeaderboardQuery struct {
	Limit int `query:"n" validate:"gte=0,lte=100"`
}
