package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-duel/internal/config"
	"github.com/rocketscienceinc/tictactoe-duel/internal/repository"
	"github.com/rocketscienceinc/tictactoe-duel/internal/repository/storage"
	"github.com/rocketscienceinc/tictactoe-duel/internal/service"
	"github.com/rocketscienceinc/tictactoe-duel/internal/session"
	"github.com/rocketscienceinc/tictactoe-duel/transport/rest"
	"github.com/rocketscienceinc/tictactoe-duel/transport/websocket"
)

var ErrAddrNotFound = errors.New("redis address string is empty")

// backend - the repositories and session registry picked by the config.
type backend struct {
	playerRepo repository.PlayerRepository
	gameRepo   repository.GameRepository
	sessions   session.Registry

	closers []io.Closer
}

func (that *backend) Close(log *slog.Logger) {
	for i := len(that.closers) - 1; i >= 0; i-- {
		if err := that.closers[i].Close(); err != nil {
			log.Error("could not close storage", "error", err)
		}
	}
}

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	b, err := newBackend(ctx, log, conf)
	if err != nil {
		return err
	}
	defer b.Close(log)

	gamePlayService := service.NewGamePlayService(logger, b.gameRepo, b.playerRepo, b.sessions)
	playerService := service.NewPlayerService(logger, b.playerRepo, b.gameRepo, b.sessions)
	sessionService := service.NewSessionService(b.sessions, b.playerRepo, b.gameRepo)

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		httpServer := rest.New(logger, gamePlayService, playerService)
		if httpErr := httpServer.Start(ctx, conf.HTTPPort); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.SocketPort)
		wsServer := websocket.New(logger, gamePlayService, playerService, sessionService)
		if wsErr := wsServer.Start(ctx, conf.SocketPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	select {
	case err = <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case err = <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}

func newBackend(ctx context.Context, log *slog.Logger, conf *config.Config) (*backend, error) {
	b := &backend{}

	var redisClient *redis.Client
	if conf.NeedsRedis() {
		if conf.Redis.Host == "" {
			return nil, ErrAddrNotFound
		}

		client, err := storage.NewRedisStorage(ctx, conf.Redis.GetRedisAddr(), conf.Redis.Password, conf.Redis.DB)
		if err != nil {
			return nil, fmt.Errorf("could not connect to redis storage: %w", err)
		}

		redisClient = client
		b.closers = append(b.closers, client)
	}

	switch conf.Storage {
	case config.StorageSQLite:
		sqliteStorage, err := storage.NewSQLiteStorage(conf.SQLiteStoragePath)
		if err != nil {
			b.Close(log)
			return nil, fmt.Errorf("could not open sqlite storage: %w", err)
		}
		b.closers = append(b.closers, sqliteStorage)

		if err = sqliteStorage.Init(ctx); err != nil {
			b.Close(log)
			return nil, fmt.Errorf("could not init sqlite storage: %w", err)
		}

		b.playerRepo = repository.NewSQLPlayerRepository(sqliteStorage.Connection)
		b.gameRepo = repository.NewSQLGameRepository(sqliteStorage.Connection)
	default:
		b.playerRepo = repository.NewPlayerRepository(redisClient)
		b.gameRepo = repository.NewGameRepository(redisClient)
	}

	switch conf.SessionStore {
	case config.SessionStoreRedis:
		b.sessions = session.NewRedisRegistry(redisClient)
	default:
		b.sessions = session.NewMemoryRegistry()
	}

	log.Info("storage ready", "storage", conf.Storage, "session_store", conf.SessionStore)

	return b, nil
}
