package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/qrave1/StudyRoom/internal/application/config"
	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/memory"
	"github.com/qrave1/StudyRoom/internal/usecase"
)

const (
	readTimeout  = 60 * time.Second
	writeTimeout = 10 * time.Second
	pingPeriod   = 30 * time.Second
)

type WebSocketHandler struct {
	upgrader *websocket.Upgrader

	connectionUsecase usecase.ConnectionUsecase
}

func NewWebSocketHandler(cfg *config.Config, connectionUsecase usecase.ConnectionUsecase) *WebSocketHandler {
	return &WebSocketHandler{
		upgrader: &websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				if cfg.Debug {
					return true
				}

				return r.Header.Get("Origin") == cfg.Domain
			},
		},
		connectionUsecase: connectionUsecase,
	}
}

// HandleRoom - соединение с комнатой. Гейт проходится до апгрейда,
// чтобы отказ пришел обычным HTTP-ответом.
func (h *WebSocketHandler) HandleRoom(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	roomID, err := paramUUID(c, "id")
	if err != nil {
		return respondError(c, err)
	}

	ctx := c.Request().Context()

	room, err := h.connectionUsecase.Open(ctx, roomID, user, c.QueryParam("key"))
	if err != nil {
		return respondError(c, err)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return nil
	}
	defer ws.Close()

	rc, err := h.connectionUsecase.Attach(ctx, room, user)
	if err != nil {
		slog.Error(
			"attach room connection",
			slog.Any(constant.Error, err),
			slog.Any(constant.UserID, user.ID),
			slog.Any(constant.RoomID, roomID),
		)

		closeWith(ws, websocket.CloseInternalServerErr, "attach failed")

		return nil
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		pump(ws, rc.Subscription)
	}()

	h.readLoop(ws, rc.ID, rc.User.ID, func(msg *events.Message) bool {
		err := h.connectionUsecase.Handle(ctx, rc, msg)
		if errors.Is(err, usecase.ErrConnectionClosed) {
			return false
		}

		if err != nil {
			slog.Debug(
				"handle room message",
				slog.Any(constant.Error, err),
				slog.String(constant.EventType, msg.Type),
				slog.Any(constant.ConnectionID, rc.ID),
			)
		}

		return true
	})

	// Leave закрывает подписку, писатель отправляет close frame и выходит
	h.connectionUsecase.Leave(ctx, rc, "")
	<-writerDone

	return nil
}

// HandleDirectory - поток изменений каталога комнат
func (h *WebSocketHandler) HandleDirectory(c echo.Context) error {
	user, ok := currentUser(c)
	if !ok {
		return unauthorized(c)
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		slog.Error(
			"WebSocket upgrade error",
			slog.Any(constant.Error, err),
		)
		return nil
	}
	defer ws.Close()

	sub := h.connectionUsecase.WatchDirectory(user.ID)

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		pump(ws, sub)
	}()

	// входящие сообщения каталогу не нужны, читаем только ради close и pong
	h.readLoop(ws, sub.ConnectionID, user.ID, func(*events.Message) bool { return true })

	h.connectionUsecase.StopWatching(sub)
	<-writerDone

	return nil
}

func (h *WebSocketHandler) readLoop(ws *websocket.Conn, connID, userID uuid.UUID, handle func(*events.Message) bool) {
	if err := ws.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
		return
	}
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(readTimeout))
	})

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			handleWebsocketError(userID, err)
			return
		}

		msg := new(events.Message)

		if err = json.Unmarshal(data, msg); err != nil {
			slog.Warn(
				"unmarshal websocket message",
				slog.Any(constant.Error, err),
				slog.Any(constant.ConnectionID, connID),
			)

			continue
		}

		if !handle(msg) {
			return
		}
	}
}

// pump - единственный писатель в сокет: очередь подписки и пинги
func pump(ws *websocket.Conn, sub *memory.Subscription) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-sub.Send():
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
				slog.Debug("websocket write", slog.Any(constant.Error, err))
				_ = ws.Close()
				return
			}

		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeTimeout))

			if err := ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Error("ping failed", slog.Any(constant.Error, err))
				_ = ws.Close()
				return
			}

		case <-sub.Done():
			// отписан или вытеснен: закрываем сокет, читатель завершится сам
			closeWith(ws, websocket.CloseGoingAway, "")
			_ = ws.Close()
			return
		}
	}
}

func closeWith(ws *websocket.Conn, code int, text string) {
	_ = ws.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(code, text),
		time.Now().Add(writeTimeout),
	)
}

func handleWebsocketError(userID uuid.UUID, err error) {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		switch closeErr.Code {
		case websocket.CloseNormalClosure, websocket.CloseGoingAway:
			slog.Info("user disconnected from websocket", slog.Any(constant.UserID, userID))
		default:
			slog.Error(
				"websocket close error",
				slog.Int("code", closeErr.Code),
				slog.Any(constant.UserID, userID),
			)
		}
	} else {
		slog.Warn(
			"websocket read",
			slog.Any(constant.Error, err),
			slog.Any(constant.UserID, userID),
		)
	}
}

