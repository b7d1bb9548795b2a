package runtime

import (
	"sync"
	"time"

	"github.com/qrave1/StudyRoom/internal/domain/models"
)

// ActivityClock считает активные секунды сессии по тикам.
//
// Тик засчитывается, только если с последнего ввода прошло не больше idleAfter
// и вкладка не скрыта дольше idleAfter. До первого ввода или отчета о видимости
// сессия считается простаивающей. Накопленное никогда не превышает
// длительность сессии по часам.
type ActivityClock struct {
	mu sync.Mutex

	startedAt   time.Time
	lastInput   time.Time
	hiddenSince *time.Time
	idleAfter   time.Duration
	accumulated int64
}

func NewActivityClock(startedAt time.Time, idleAfter time.Duration) *ActivityClock {
	return &ActivityClock{
		startedAt: startedAt,
		idleAfter: idleAfter,
	}
}

func (c *ActivityClock) RecordInput(at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if at.After(c.lastInput) {
		c.lastInput = at
	}
}

func (c *ActivityClock) SetHidden(hidden bool, at time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case hidden && c.hiddenSince == nil:
		c.hiddenSince = &at
	case !hidden:
		c.hiddenSince = nil
		// возврат на вкладку считается вводом
		if at.After(c.lastInput) {
			c.lastInput = at
		}
	}
}

func (c *ActivityClock) Active(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.active(now)
}

// Tick засчитывает секунду, если сессия активна. Возвращает true, если засчитал.
func (c *ActivityClock) Tick(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active(now) {
		return false
	}

	next := models.ClampSeconds(c.accumulated+1, c.startedAt, now)
	if next == c.accumulated {
		return false
	}

	c.accumulated = next

	return true
}

func (c *ActivityClock) Accumulated() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.accumulated
}

func (c *ActivityClock) active(now time.Time) bool {
	if c.lastInput.IsZero() || now.Sub(c.lastInput) > c.idleAfter {
		return false
	}

	return c.hiddenSince == nil || now.Sub(*c.hiddenSince) <= c.idleAfter
}
