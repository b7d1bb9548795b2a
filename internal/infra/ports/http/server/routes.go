package server

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"

	"github.com/qrave1/StudyRoom/internal/application/config"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/handlers"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/middleware"
)

type Handlers struct {
	Room     *handlers.RoomHandler
	Access   *handlers.AccessHandler
	Message  *handlers.MessageHandler
	Timer    *handlers.TimerHandler
	Presence *handlers.PresenceHandler
	WS       *handlers.WebSocketHandler
}

func New(cfg *config.Config, h Handlers) *echo.Echo {
	e := echo.New()

	e.HideBanner = true
	e.Validator = middleware.NewValidator()

	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	if cfg.Debug {
		e.Use(echomw.CORS())
	} else {
		e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
			AllowOrigins:     []string{cfg.Domain},
			AllowCredentials: true,
		}))
	}

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		v1.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			v1.GET("/rooms", h.Room.ListRoomsHandler)
			v1.POST("/rooms", h.Room.CreateRoomHandler)
			v1.GET("/rooms/watch", h.WS.HandleDirectory)

			room := v1.Group("/rooms/:id")
			{
				room.GET("", h.Room.GetRoomHandler)
				room.PATCH("", h.Room.UpdateDetailsHandler)
				room.PUT("/policy", h.Room.UpdatePolicyHandler)

				room.POST("/verify-key", h.Access.VerifyKeyHandler)
				room.POST("/join-requests", h.Access.RequestJoinHandler)
				room.GET("/join-requests", h.Access.ListPendingHandler)
				room.GET("/join-requests/me", h.Access.MyRequestHandler)
				room.POST("/join-requests/:requestId/decision", h.Access.DecideHandler)

				room.GET("/messages", h.Message.HistoryHandler)
				room.POST("/messages", h.Message.PostMessageHandler)

				room.GET("/timer", h.Timer.GetTimerHandler)
				room.POST("/timer/start-focus", h.Timer.StartFocusHandler)
				room.POST("/timer/start-break", h.Timer.StartBreakHandler)
				room.POST("/timer/stop", h.Timer.StopHandler)
				room.PUT("/timer/config", h.Timer.UpdateConfigHandler)

				room.GET("/presence", h.Presence.SnapshotHandler)
				room.GET("/leaderboard", h.Presence.LeaderboardHandler)

				room.GET("/ws", h.WS.HandleRoom)
			}
		}
	}

	return e
}
