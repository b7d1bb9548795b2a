package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/domain/input"
	"github.com/qrave1/StudyRoom/internal/domain/models"
	"github.com/qrave1/StudyRoom/internal/domain/runtime"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/memory"
)

// ErrConnectionClosed - клиент вышел сам, сокет нужно закрыть
var ErrConnectionClosed = errors.New("connection closed")

// RoomConnection - контекст одного соединения с комнатой.
// Передается во все операции явно, глобальной "текущей комнаты" нет.
type RoomConnection struct {
	ID     uuid.UUID
	RoomID uuid.UUID
	User   models.User
	Room   *models.Room

	Subscription *memory.Subscription

	tracker   *SessionTracker
	cancel    context.CancelFunc
	leaveOnce sync.Once
}

type ConnectionUsecase interface {
	// Open проводит пользователя через гейт комнаты
	Open(ctx context.Context, roomID uuid.UUID, user models.User, key string) (*models.Room, error)
	// Attach подписывает соединение на комнату, регистрирует присутствие,
	// открывает сессию и отправляет таймер и историю
	Attach(ctx context.Context, room *models.Room, user models.User) (*RoomConnection, error)
	Handle(ctx context.Context, rc *RoomConnection, msg *events.Message) error
	// Leave освобождает все ресурсы соединения ровно один раз
	Leave(ctx context.Context, rc *RoomConnection, note string)
	// Evict - хук свипера присутствия
	Evict(ctx context.Context, entry runtime.PresenceEntry)

	// WatchDirectory подписывает соединение на изменения каталога комнат
	WatchDirectory(userID uuid.UUID) *memory.Subscription
	StopWatching(sub *memory.Subscription)
}

type connectionUsecase struct {
	clock     clockwork.Clock
	hub       *memory.Hub
	publisher events.Publisher

	historyLimit int

	accessUsecase   AccessUsecase
	presenceUsecase PresenceUsecase
	messageUsecase  MessageUsecase
	timerUsecase    TimerUsecase
	sessionUsecase  SessionUsecase

	conns map[uuid.UUID]*RoomConnection
	mu    sync.RWMutex
}

func NewConnectionUsecase(
	clock clockwork.Clock,
	hub *memory.Hub,
	publisher events.Publisher,
	historyLimit int,
	accessUsecase AccessUsecase,
	presenceUsecase PresenceUsecase,
	messageUsecase MessageUsecase,
	timerUsecase TimerUsecase,
	sessionUsecase SessionUsecase,
) ConnectionUsecase {
	return &connectionUsecase{
		clock:           clock,
		hub:             hub,
		publisher:       publisher,
		historyLimit:    historyLimit,
		accessUsecase:   accessUsecase,
		presenceUsecase: presenceUsecase,
		messageUsecase:  messageUsecase,
		timerUsecase:    timerUsecase,
		sessionUsecase:  sessionUsecase,
		conns:           make(map[uuid.UUID]*RoomConnection),
	}
}

func (uc *connectionUsecase) Open(ctx context.Context, roomID uuid.UUID, user models.User, key string) (*models.Room, error) {
	return uc.accessUsecase.Admit(ctx, roomID, user, key)
}

func (uc *connectionUsecase) Attach(ctx context.Context, room *models.Room, user models.User) (*RoomConnection, error) {
	rc := &RoomConnection{
		ID:     uuid.New(),
		RoomID: room.ID,
		User:   user,
		Room:   room,
	}

	// подписка раньше sync, чтобы не потерять события между снимком и дельтами
	rc.Subscription = uc.hub.Subscribe(room.ID, rc.ID, user.ID)

	uc.mu.Lock()
	uc.conns[rc.ID] = rc
	uc.mu.Unlock()

	if err := uc.attach(ctx, rc); err != nil {
		uc.Leave(ctx, rc, "")
		return nil, err
	}

	slog.Info(
		"user joined room",
		slog.Any(constant.UserID, user.ID),
		slog.Any(constant.RoomID, room.ID),
		slog.Any(constant.ConnectionID, rc.ID),
	)

	return rc, nil
}

func (uc *connectionUsecase) attach(ctx context.Context, rc *RoomConnection) error {
	if err := uc.presenceUsecase.Connect(ctx, rc.RoomID, rc.ID, rc.User); err != nil {
		return fmt.Errorf("connect presence: %w", err)
	}

	tracker, err := uc.sessionUsecase.Start(ctx, rc.RoomID, rc.User.ID)
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	rc.tracker = tracker

	// тикам нужен контекст соединения, а не запроса
	trackerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rc.cancel = cancel

	go tracker.Run(trackerCtx)

	state, err := uc.timerUsecase.Get(ctx, rc.RoomID)
	if err != nil {
		return fmt.Errorf("get timer state: %w", err)
	}

	if err = uc.send(ctx, rc, events.TimerState, state); err != nil {
		return err
	}

	history, err := uc.messageUsecase.History(ctx, rc.RoomID, rc.User.ID, uc.historyLimit)
	if err != nil {
		return fmt.Errorf("get message history: %w", err)
	}

	return uc.send(ctx, rc, events.ChatHistory, history)
}

func (uc *connectionUsecase) Handle(ctx context.Context, rc *RoomConnection, msg *events.Message) error {
	// любое сообщение подтверждает, что соединение живо
	uc.presenceUsecase.Heartbeat(ctx, rc.ID)

	err := uc.dispatch(ctx, rc, msg)
	if err == nil || errors.Is(err, ErrConnectionClosed) {
		return err
	}

	uc.sendError(ctx, rc, err, msg.CorrelationID)

	return err
}

func (uc *connectionUsecase) dispatch(ctx context.Context, rc *RoomConnection, msg *events.Message) error {
	switch msg.Type {
	case events.InHeartbeat:
		return nil

	case events.InActivity:
		uc.touch(ctx, rc)

	case events.InVisibility:
		var ev events.VisibilityEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}

		uc.presenceUsecase.SetHidden(ctx, rc.ID, ev.Hidden)
		rc.tracker.SetHidden(ev.Hidden)

	case events.InChat:
		var ev events.ChatEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}

		if msg.CorrelationID == "" {
			msg.CorrelationID = ev.ClientID
		}

		uc.touch(ctx, rc)

		_, err := uc.messageUsecase.PostMessage(ctx, &input.PostMessageInput{
			RoomID:    rc.RoomID,
			AuthorID:  rc.User.ID,
			Username:  rc.User.Username,
			AvatarURL: rc.User.AvatarURL,
			Content:   ev.Content,
			ClientID:  ev.ClientID,
		})
		if err != nil {
			return fmt.Errorf("post message: %w", err)
		}

	case events.InTyping:
		var ev events.TypingEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}

		uc.touch(ctx, rc)

		return uc.messageUsecase.Typing(ctx, rc.RoomID, rc.User, ev.IsTyping)

	case events.InTimer:
		var ev events.TimerEvent
		if err := decode(msg, &ev); err != nil {
			return err
		}

		uc.touch(ctx, rc)

		if _, err := uc.timerUsecase.Transition(ctx, rc.RoomID, rc.User.ID, ev.Action); err != nil {
			return fmt.Errorf("timer transition: %w", err)
		}

	case events.InLeave:
		var ev events.LeaveEvent
		if len(msg.Data) > 0 {
			if err := decode(msg, &ev); err != nil {
				return err
			}
		}

		uc.Leave(ctx, rc, ev.Note)

		return ErrConnectionClosed

	case events.InPing:
		return uc.send(ctx, rc, events.Pong, nil)

	default:
		return fmt.Errorf("%w: unknown message type %q", domain.ErrInvalidInput, msg.Type)
	}

	return nil
}

func (uc *connectionUsecase) touch(ctx context.Context, rc *RoomConnection) {
	uc.presenceUsecase.Activity(ctx, rc.ID)
	rc.tracker.RecordInput()
}

func (uc *connectionUsecase) Leave(ctx context.Context, rc *RoomConnection, note string) {
	rc.leaveOnce.Do(func() {
		// очистка должна пройти даже при отмененном запросе
		ctx := context.WithoutCancel(ctx)

		if rc.cancel != nil {
			rc.cancel()
		}

		if rc.tracker != nil {
			if _, err := rc.tracker.Close(ctx, note); err != nil {
				slog.Error(
					"close session on leave",
					slog.Any(constant.Error, err),
					slog.Any(constant.UserID, rc.User.ID),
					slog.Any(constant.RoomID, rc.RoomID),
				)
			}
		}

		uc.presenceUsecase.Disconnect(ctx, rc.ID)
		uc.hub.Unsubscribe(rc.ID)

		uc.mu.Lock()
		delete(uc.conns, rc.ID)
		uc.mu.Unlock()

		slog.Info(
			"user left room",
			slog.Any(constant.UserID, rc.User.ID),
			slog.Any(constant.RoomID, rc.RoomID),
			slog.Any(constant.ConnectionID, rc.ID),
		)
	})
}

func (uc *connectionUsecase) Evict(ctx context.Context, entry runtime.PresenceEntry) {
	uc.mu.RLock()
	rc, ok := uc.conns[entry.ConnectionID]
	uc.mu.RUnlock()

	if ok {
		// закрытый Done подписки завершит обработчик сокета
		uc.Leave(ctx, rc, "")
	}
}

func (uc *connectionUsecase) WatchDirectory(userID uuid.UUID) *memory.Subscription {
	return uc.hub.Subscribe(events.DirectoryRoomID, uuid.New(), userID)
}

func (uc *connectionUsecase) StopWatching(sub *memory.Subscription) {
	uc.hub.Unsubscribe(sub.ConnectionID)
}

func (uc *connectionUsecase) send(ctx context.Context, rc *RoomConnection, eventType string, payload any) error {
	if err := uc.publisher.SendTo(ctx, rc.ID, events.New(eventType, rc.RoomID, payload, uc.clock.Now())); err != nil {
		return fmt.Errorf("send %s: %w", eventType, err)
	}

	return nil
}

func (uc *connectionUsecase) sendError(ctx context.Context, rc *RoomConnection, err error, correlationID string) {
	payload := events.ErrorPayload{
		Code:          domain.Code(err),
		Message:       domain.PublicMessage(err),
		CorrelationID: correlationID,
	}

	if sendErr := uc.send(ctx, rc, events.Error, payload); sendErr != nil {
		slog.Warn("send error event", slog.Any(constant.Error, sendErr), slog.Any(constant.ConnectionID, rc.ID))
	}
}

func decode(msg *events.Message, v any) error {
	if err := json.Unmarshal(msg.Data, v); err != nil {
		return fmt.Errorf("%w: decode %s event: %v", domain.ErrInvalidInput, msg.Type, err)
	}

	return nil
}
