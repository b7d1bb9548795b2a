package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

type TimerPhase string

const (
	TimerIdle  TimerPhase = "idle"
	TimerFocus TimerPhase = "focus"
	TimerBreak TimerPhase = "break"
)

type TimerAction string

const (
	TimerActionStartFocus TimerAction = "start_focus"
	TimerActionStartBreak TimerAction = "start_break"
	TimerActionStop       TimerAction = "stop"
)

func (a TimerAction) Valid() bool {
	switch a {
	case TimerActionStartFocus, TimerActionStartBreak, TimerActionStop:
		return true
	}

	return false
}

type TimerConfig struct {
	FocusSeconds      int `json:"focus_seconds" db:"focus_seconds"`
	ShortBreakSeconds int `json:"short_break_seconds" db:"short_break_seconds"`
	LongBreakSeconds  int `json:"long_break_seconds" db:"long_break_seconds"`
	LongBreakEvery    int `json:"long_break_every" db:"long_break_every"`
}

func DefaultTimerConfig() TimerConfig {
	return TimerConfig{
		FocusSeconds:      1500,
		ShortBreakSeconds: 300,
		LongBreakSeconds:  900,
		LongBreakEvery:    4,
	}
}

func (c TimerConfig) Validate() error {
	if c.FocusSeconds <= 0 || c.ShortBreakSeconds <= 0 || c.LongBreakSeconds <= 0 {
		return fmt.Errorf("durations must be positive")
	}

	if c.LongBreakEvery < 1 {
		return fmt.Errorf("long break every must be at least 1")
	}

	return nil
}

// TimerState - общий таймер комнаты. Клиенты считают остаток сами по EndsAt.
type TimerState struct {
	RoomID     uuid.UUID  `json:"room_id" db:"room_id"`
	Phase      TimerPhase `json:"phase" db:"phase"`
	CycleIndex int        `json:"cycle_index" db:"cycle_index"`
	LongBreak  bool       `json:"long_break" db:"long_break"`
	EndsAt     *time.Time `json:"ends_at" db:"ends_at"`
	UpdatedBy  uuid.UUID  `json:"updated_by" db:"updated_by"`
	UpdatedAt  time.Time  `json:"updated_at" db:"updated_at"`
	TimerConfig
}

func NewTimerState(roomID, hostID uuid.UUID, now time.Time) *TimerState {
	return &TimerState{
		RoomID:      roomID,
		Phase:       TimerIdle,
		UpdatedBy:   hostID,
		UpdatedAt:   now,
		TimerConfig: DefaultTimerConfig(),
	}
}

func (s *TimerState) StartFocus(by uuid.UUID, now time.Time) {
	s.CycleIndex = (s.CycleIndex % max(s.LongBreakEvery, 1)) + 1
	s.Phase = TimerFocus
	s.LongBreak = false
	s.setEndsAt(now, s.FocusSeconds)
	s.touch(by, now)
}

// StartBreak не двигает цикл: длинный перерыв только после последнего фокуса цикла
func (s *TimerState) StartBreak(by uuid.UUID, now time.Time) {
	s.Phase = TimerBreak
	s.LongBreak = s.CycleIndex == s.LongBreakEvery

	if s.LongBreak {
		s.setEndsAt(now, s.LongBreakSeconds)
	} else {
		s.setEndsAt(now, s.ShortBreakSeconds)
	}

	s.touch(by, now)
}

func (s *TimerState) Stop(by uuid.UUID, now time.Time) {
	s.Phase = TimerIdle
	s.CycleIndex = 0
	s.LongBreak = false
	s.EndsAt = nil
	s.touch(by, now)
}

func (s *TimerState) Apply(action TimerAction, by uuid.UUID, now time.Time) error {
	switch action {
	case TimerActionStartFocus:
		s.StartFocus(by, now)
	case TimerActionStartBreak:
		s.StartBreak(by, now)
	case TimerActionStop:
		s.Stop(by, now)
	default:
		return fmt.Errorf("unknown timer action %q", action)
	}

	return nil
}

// Reconfigure меняет длительности; текущая фаза досчитывается со старым EndsAt
func (s *TimerState) Reconfigure(cfg TimerConfig, by uuid.UUID, now time.Time) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	s.TimerConfig = cfg
	if s.CycleIndex > cfg.LongBreakEvery {
		s.CycleIndex = cfg.LongBreakEvery
	}

	s.touch(by, now)

	return nil
}

// Remaining - сколько осталось до конца фазы; ноль для idle и истекших фаз
func (s *TimerState) Remaining(now time.Time) time.Duration {
	if s.EndsAt == nil {
		return 0
	}

	if d := s.EndsAt.Sub(now); d > 0 {
		return d
	}

	return 0
}

func (s *TimerState) Clone() *TimerState {
	c := *s
	if s.EndsAt != nil {
		endsAt := *s.EndsAt
		c.EndsAt = &endsAt
	}

	return &c
}

func (s *TimerState) setEndsAt(now time.Time, seconds int) {
	endsAt := now.Add(time.Duration(seconds) * time.Second)
	s.EndsAt = &endsAt
}

func (s *TimerState) touch(by uuid.UUID, now time.Time) {
	s.UpdatedBy = by
	s.UpdatedAt = now
}
