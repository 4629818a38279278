package rest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
)

const shutdownTimeout = 5 * time.Second

type gameReader interface {
	ListGames(ctx context.Context) ([]*entity.Game, error)
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
	WinRecords(ctx context.Context) ([]entity.WinRecord, error)
}

type playerReader interface {
	GetPlayer(ctx context.Context, id string) (*entity.Player, error)
	ListPlayers(ctx context.Context) ([]*entity.Player, error)
}

// Server is the read-only HTTP API. Everything that changes state goes through the websocket gateway.
type Server struct {
	logger *slog.Logger
	router *mux.Router

	games   gameReader
	players playerReader
}

func New(logger *slog.Logger, games gameReader, players playerReader) *Server {
	server := &Server{
		logger:  logger.With("component", "rest"),
		router:  mux.NewRouter(),
		games:   games,
		players: players,
	}

	server.setupRoutes()

	return server
}

func (that *Server) setupRoutes() {
	that.router.HandleFunc("/ping", that.PingHandler).Methods(http.MethodGet)

	api := that.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/players", that.handleListPlayers).Methods(http.MethodGet)
	api.HandleFunc("/players/{id}", that.handleGetPlayer).Methods(http.MethodGet)
	api.HandleFunc("/games", that.handleListGames).Methods(http.MethodGet)
	api.HandleFunc("/games/{id}", that.handleGetGame).Methods(http.MethodGet)
	api.HandleFunc("/records", that.handleWinRecords).Methods(http.MethodGet)
}

// ServeHTTP implements http.Handler
func (that *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	that.router.ServeHTTP(w, r)
}

// Start - starts the HTTP server, it returns once ctx is done and the server has shut down.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      that,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down http server", "error", err)
		}
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}
