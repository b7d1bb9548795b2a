package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/qrave1/StudyRoom/internal/application/config"
	"github.com/qrave1/StudyRoom/internal/application/constant"
	"github.com/qrave1/StudyRoom/internal/application/metric"
	"github.com/qrave1/StudyRoom/internal/domain/events"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/memory"
	natsbus "github.com/qrave1/StudyRoom/internal/infra/adapters/nats"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres"
	"github.com/qrave1/StudyRoom/internal/infra/adapters/postgres/repository"
	rediscache "github.com/qrave1/StudyRoom/internal/infra/adapters/redis"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/handlers"
	"github.com/qrave1/StudyRoom/internal/infra/ports/http/server"
	"github.com/qrave1/StudyRoom/internal/usecase"
)

func runApp() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.New()
	if err != nil {
		slog.Error("parse config", slog.Any(constant.Error, err))
		os.Exit(1)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}

	slog.SetDefault(
		slog.New(
			slog.NewJSONHandler(
				os.Stdout,
				&slog.HandlerOptions{Level: level},
			),
		),
	)

	slog.Info("Running app", slog.Bool("debug", cfg.Debug), slog.String("transport", cfg.Transport.Driver))

	dbConn, err := postgres.NewPostgres(ctx, cfg.Postgres.DSN())
	if err != nil {
		slog.Error("connect to postgres", slog.Any(constant.Error, err))
		os.Exit(1)
	}
	defer dbConn.Close()

	readiness := map[string]metric.ReadinessCheck{
		"postgres": dbConn.PingContext,
	}

	// Транспорт: локальный Hub или NATS поверх него
	hub := memory.NewHub(cfg.Room.SendBuffer)

	var publisher events.Publisher = hub

	if cfg.Transport.Driver == config.TransportNATS {
		nc, err := natsbus.Connect(cfg.Transport.NATSURL)
		if err != nil {
			slog.Error("connect to nats", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer nc.Drain()

		bus := natsbus.NewBus(nc, hub, cfg.Transport.SubjectPrefix)
		publisher = bus

		go func() {
			if err := bus.Run(ctx); err != nil {
				slog.Error("nats relay stopped", slog.Any(constant.Error, err))
				cancel()
			}
		}()

		readiness["nats"] = func(ctx context.Context) error {
			return nc.FlushWithContext(ctx)
		}
	}

	// Кеш лидерборда: Redis, если задан, иначе память процесса
	leaderboardCache := memory.NewLeaderboardCache()

	if cfg.Redis.URL != "" {
		redisClient, err := rediscache.NewClient(ctx, cfg.Redis.URL)
		if err != nil {
			slog.Error("connect to redis", slog.Any(constant.Error, err))
			os.Exit(1)
		}
		defer redisClient.Close()

		leaderboardCache = rediscache.NewLeaderboardCache(redisClient, cfg.Redis.KeyPrefix)

		readiness["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}

	clock := clockwork.NewRealClock()
	serializer := usecase.NewSerializer()

	roomRepo := repository.NewRoomRepo(dbConn, cfg.Store.Timeout)
	membershipRepo := repository.NewMembershipRepo(dbConn, cfg.Store.Timeout)
	joinRequestRepo := repository.NewJoinRequestRepo(dbConn, cfg.Store.Timeout)
	messageRepo := repository.NewMessageRepo(dbConn, cfg.Store.Timeout)
	timerRepo := repository.NewTimerRepo(dbConn, cfg.Store.Timeout)
	sessionRepo := repository.NewSessionRepo(dbConn, cfg.Store.Timeout)
	presenceRepo := memory.NewPresenceRepository()

	roomUsecase := usecase.NewRoomUsecase(clock, serializer, publisher, cfg.Room.KeyBcryptCost, roomRepo, membershipRepo, timerRepo)
	accessUsecase := usecase.NewAccessUsecase(clock, serializer, publisher, cfg.Room.KeyBcryptCost, roomRepo, membershipRepo, joinRequestRepo)
	presenceUsecase := usecase.NewPresenceUsecase(
		clock,
		publisher,
		cfg.Room.HeartbeatInterval,
		cfg.Room.HeartbeatGrace(),
		cfg.Room.IdleAfter,
		presenceRepo,
	)
	messageUsecase := usecase.NewMessageUsecase(
		clock,
		serializer,
		publisher,
		cfg.Room.MaxMessageLength,
		cfg.Room.TypingTTL,
		messageRepo,
		membershipRepo,
	)
	timerUsecase := usecase.NewTimerUsecase(clock, serializer, publisher, roomRepo, timerRepo)
	sessionUsecase := usecase.NewSessionUsecase(
		clock,
		serializer,
		cfg.Room.TickInterval,
		cfg.Room.HeartbeatInterval,
		cfg.Room.IdleAfter,
		sessionRepo,
	)
	leaderboardUsecase := usecase.NewLeaderboardUsecase(clock, cfg.Room.Location(), sessionRepo, leaderboardCache)
	connectionUsecase := usecase.NewConnectionUsecase(
		clock,
		hub,
		publisher,
		cfg.Room.HistoryLimit,
		accessUsecase,
		presenceUsecase,
		messageUsecase,
		timerUsecase,
		sessionUsecase,
	)

	go presenceUsecase.RunSweeper(ctx, connectionUsecase.Evict)

	echoSrv := server.New(cfg, server.Handlers{
		Room:     handlers.NewRoomHandler(roomUsecase, presenceUsecase),
		Access:   handlers.NewAccessHandler(accessUsecase),
		Message:  handlers.NewMessageHandler(messageUsecase),
		Timer:    handlers.NewTimerHandler(clock, timerUsecase),
		Presence: handlers.NewPresenceHandler(accessUsecase, presenceUsecase, leaderboardUsecase),
		WS:       handlers.NewWebSocketHandler(cfg, connectionUsecase),
	})

	metricsSrv := metric.NewServer(readiness)

	echoSrvCh := make(chan error, 1)
	metricsSrvCh := make(chan error, 1)

	// Запускаем HTTP сервер
	go func() {
		echoSrvCh <- echoSrv.Start(":" + cfg.Port)
	}()

	// Запускаем сервер метрик
	go func() {
		metricsSrvCh <- metricsSrv.Start(":" + cfg.MetricPort)
	}()

	// Ожидаем сигнал завершения или ошибку сервера
	select {
	case <-ctx.Done():
		slog.Info("Shutting down servers due to context cancel")
	case err := <-echoSrvCh:
		slog.Error(
			"HTTP server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	case err := <-metricsSrvCh:
		slog.Error(
			"Metrics server failed",
			slog.Any(constant.Error, err),
		)
		os.Exit(1)
	}

	// Graceful shutdown
	timeoutCtx, timeoutCancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer timeoutCancel()

	if err := echoSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown HTTP server", slog.Any(constant.Error, err))
	}

	if err := metricsSrv.Shutdown(timeoutCtx); err != nil {
		slog.Error("Failed to gracefully shutdown metric server", slog.Any(constant.Error, err))
	}
}
