package usecase

import (
	"context"
	"fmt"
	"sync"
)

// Serializer выполняет операции с одинаковым ключом строго по одной в порядке
// прихода. Разные ключи друг друга не блокируют.
type Serializer struct {
	mu    sync.Mutex
	lanes map[string]*lane
}

type lane struct {
	// sem - очередь на выполнение; ожидающие отправители обслуживаются FIFO
	sem  chan struct{}
	refs int
}

func NewSerializer() *Serializer {
	return &Serializer{lanes: make(map[string]*lane)}
}

// Do ждет своей очереди в ключе и выполняет fn. Если ctx отменен до начала
// выполнения, fn не вызывается.
func (s *Serializer) Do(ctx context.Context, key string, fn func(ctx context.Context) error) error {
	l := s.acquire(key)
	defer s.release(key, l)

	select {
	case l.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	defer func() { <-l.sem }()

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn(ctx)
}

func (s *Serializer) acquire(key string) *lane {
	s.mu.Lock()
	defer s.mu.Unlock()

	l, ok := s.lanes[key]
	if !ok {
		l = &lane{sem: make(chan struct{}, 1)}
		s.lanes[key] = l
	}

	l.refs++

	return l
}

func (s *Serializer) release(key string, l *lane) {
	s.mu.Lock()
	defer s.mu.Unlock()

	l.refs--
	if l.refs == 0 {
		delete(s.lanes, key)
	}
}

func roomLane(roomID fmt.Stringer) string {
	return "room:" + roomID.String()
}

func chatLane(roomID fmt.Stringer) string {
	return "chat:" + roomID.String()
}

func userLane(userID fmt.Stringer) string {
	return "user:" + userID.String()
}
