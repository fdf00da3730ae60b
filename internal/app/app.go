package app

import (
	"context"
	"errors"
	"fmt"

	"tush00nka/schoolconnect_chat/internal/config"
	"tush00nka/schoolconnect_chat/internal/handler"
	"tush00nka/schoolconnect_chat/internal/pkg/auth"
	"tush00nka/schoolconnect_chat/internal/pkg/logger"
	"tush00nka/schoolconnect_chat/internal/repository"
	"tush00nka/schoolconnect_chat/internal/service"
	"tush00nka/schoolconnect_chat/internal/ws"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

type App struct {
	cfg    *config.Config
	db     *gorm.DB
	redis  *redis.Client
	hub    *ws.Hub
	server *Server
}

// New собирает зависимости: БД, кеш, сервисы, хаб, роутер
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	db, err := openDB(cfg)
	if err != nil {
		return nil, err
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, db: db}

	if cfg.RedisAddr != "" {
		rdb, err := repository.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			a.closeDB()
			return nil, err
		}
		a.redis = rdb
	} else {
		log.Info().Msg("REDIS_ADDR is not set, history cache disabled")
	}

	roomRepo := repository.NewRoomRepository(db)
	directoryRepo := repository.NewDirectoryRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	cache := repository.NewHistoryCache(a.redis, cfg.HistoryCacheSize)

	roomService := service.NewRoomService(roomRepo, directoryRepo)
	a.hub = ws.NewHub(roomService)
	messageService := service.NewMessageService(messageRepo, cache, a.hub)

	gateway := ws.NewGateway(a.hub, messageService, ws.GatewayOptions{
		SendBuffer:     cfg.WSSendBuffer,
		HistoryReplay:  cfg.WSHistoryReplay,
		AllowedOrigins: cfg.AllowedOrigins,
		Development:    cfg.IsDevelopment(),
	})

	a.server = NewServer(Routes{
		Rooms:     handler.NewRoomHandler(roomService, messageService),
		Realtime:  handler.NewWSHandler(gateway),
		Stats:     a.hub,
		Tokens:    auth.NewManager(cfg.JWTKey),
		Directory: roomService,
	}, cfg.AllowedOrigins)

	return a, nil
}

func openDB(cfg *config.Config) (*gorm.DB, error) {
	level := logger.GormLevel(cfg.IsDevelopment())
	switch cfg.DBDriver {
	case "sqlite":
		return repository.NewSQLiteDB(cfg.SQLitePath, level)
	default:
		return repository.NewDB(cfg.DSN(), level)
	}
}

// Stop останавливает сервер, затем соединения, кеш и БД
func (a *App) Stop(ctx context.Context) error {
	var errs []error

	if err := a.server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http server: %w", err))
	}

	a.hub.Shutdown()

	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis: %w", err))
		}
	}

	if err := a.closeDB(); err != nil {
		errs = append(errs, fmt.Errorf("database: %w", err))
	}

	return errors.Join(errs...)
}

func (a *App) closeDB() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Run запускает сервис и ждет сигнала остановки. Возвращает код выхода.
func Run(cfg *config.Config) int {
	logger.Setup(cfg.LogLevel, cfg.IsDevelopment())

	ctx := context.Background()
	a, err := New(ctx, cfg)
	if err != nil {
		log.Error().Err(err).Msg("failed to start")
		return 1
	}

	serverErr := a.server.Start(cfg.ServerPort)

	wait := gfshutdown.GracefulShutdown(
		ctx,
		cfg.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"schoolconnect-chat": func(ctx context.Context) error {
				log.Info().Msg("graceful shutdown initiated")
				return a.Stop(ctx)
			},
		},
	)

	select {
	case err, ok := <-serverErr:
		if ok && err != nil {
			log.Error().Err(err).Msg("server failed")
			stopAfterFailure(ctx, a.Stop)
			return 1
		}
		return <-wait
	case code := <-wait:
		log.Info().Int("exit_code", code).Msg("application exited")
		return code
	}
}

// stopAfterFailure останавливает приложение после падения сервера, ошибка только логируется
func stopAfterFailure(ctx context.Context, stop func(context.Context) error) {
	if err := stop(ctx); err != nil {
		log.Error().Err(err).Msg("shutdown after server failure failed")
	}
}
