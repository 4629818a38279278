package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime/debug"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/pkg"
	"github.com/rocketscienceinc/tictactoe-duel/internal/service"
)

const shutdownTimeout = 5 * time.Second

type gamePlay interface {
	CreateGame(ctx context.Context, playerID, sessionToken string) (*entity.Game, error)
	JoinGame(ctx context.Context, sessionToken, gameID string) (*service.JoinResult, error)
	MakeMove(ctx context.Context, playerID, gameID string, position int) (*service.MoveResult, error)
	RestartGame(ctx context.Context, gameID string) (*entity.Game, error)
	GameState(ctx context.Context, sessionToken, gameID string) (*entity.GameState, error)
	WinRecords(ctx context.Context) ([]entity.WinRecord, error)
	ListGames(ctx context.Context) ([]*entity.Game, error)
}

type players interface {
	CreatePlayer(ctx context.Context, name string) (*entity.Player, string, error)
	GetPlayer(ctx context.Context, id string) (*entity.Player, error)
	ListPlayers(ctx context.Context) ([]*entity.Player, error)
}

type sessions interface {
	Validate(ctx context.Context, token string) (*service.SessionInfo, error)
	End(ctx context.Context, token string) error
}

type handlerFunc func(ctx context.Context, connID string, msg *Message)

type Server struct {
	logger *slog.Logger
	hub    *Hub

	gamePlay gamePlay
	players  players
	sessions sessions

	upgrader websocket.Upgrader
	handlers map[string]handlerFunc

	// exit ends the process after a handler panics.
	exit func(code int)
}

func New(logger *slog.Logger, gamePlay gamePlay, players players, sessions sessions) *Server {
	server := &Server{
		logger:   logger.With("component", "websocket"),
		hub:      NewHub(logger),
		gamePlay: gamePlay,
		players:  players,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// the browser client is served from another origin
			CheckOrigin: func(*http.Request) bool { return true },
		},
		exit: os.Exit,
	}

	server.handlers = map[string]handlerFunc{
		eventCreatePlayer:     server.handleCreatePlayer,
		eventCreateGame:       server.handleCreateGame,
		eventJoinGame:         server.handleJoinGame,
		eventMakeMove:         server.handleMakeMove,
		eventRestartGame:      server.handleRestartGame,
		eventRequestGameState: server.handleRequestGameState,
		eventValidateSession:  server.handleValidateSession,
		eventWinningRecords:   server.handleWinningRecords,
		eventEndSession:       server.handleEndSession,
		eventGetAllPlayers:    server.handleGetAllPlayers,
		eventGetPlayer:        server.handleGetPlayer,
		eventGetAllGames:      server.handleGetAllGames,
	}

	return server
}

// Handler - the router serving the websocket upgrade on /ws.
func (that *Server) Handler() http.Handler {
	router := mux.NewRouter()
	router.HandleFunc("/ws", that.ServeWS).Methods(http.MethodGet)

	return router
}

// Start - starts WebSocket server, it returns once ctx is done and the server has shut down.
func (that *Server) Start(ctx context.Context, port string) error {
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           that.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Error("failed to shut down websocket server", "error", err)
		}
		that.hub.CloseAll()
	}()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// ServeWS - upgrades the request and serves the connection until it closes.
func (that *Server) ServeWS(writer http.ResponseWriter, req *http.Request) {
	conn, err := that.upgrader.Upgrade(writer, req, nil)
	if err != nil {
		that.logger.Error("failed to upgrade connection", "method", "ServeWS", "error", err)
		return
	}

	c := newClient(pkg.GenerateConnectionID(), conn)
	that.hub.register(c)

	log := that.logger.With("method", "ServeWS", "conn_id", c.id)
	log.Info("WebSocket connection established")

	go c.writePump()

	that.readPump(req.Context(), c)

	that.hub.unregister(c.id)
	log.Info("WebSocket connection closed")
}

// readPump - reads and dispatches messages one at a time until the peer goes away.
func (that *Server) readPump(ctx context.Context, c *client) {
	log := that.logger.With("method", "readPump", "conn_id", c.id)

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("unexpected close", "error", err)
			}
			return
		}

		that.dispatch(ctx, c.id, data)
	}
}

func (that *Server) dispatch(ctx context.Context, connID string, data []byte) {
	log := that.logger.With("method", "dispatch", "conn_id", connID)

	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Debug("failed to unmarshal message", "error", err)
		that.reply(connID, &msg, eventError, errorResponse{Type: typeError, Kind: apperror.KindValidation.String(), Message: "malformed message"})
		return
	}

	handler, ok := that.handlers[msg.Event]
	if !ok {
		log.Debug("unknown event", "event", msg.Event)
		that.reply(connID, &msg, eventError, errorResponse{Type: typeError, Kind: apperror.KindValidation.String(), Message: "unknown event: " + msg.Event})
		return
	}

	defer that.fatalOnPanic(log, msg.Event)

	handler(ctx, connID, &msg)
}

// fatalOnPanic - a panicking handler is an unexpected fault: it is logged, every connection is closed
// and the process exits.
func (that *Server) fatalOnPanic(log *slog.Logger, event string) {
	r := recover()
	if r == nil {
		return
	}

	log.Error("handler panicked, terminating", "event", event, "panic", r, "stack", string(debug.Stack()))
	that.hub.CloseAll()
	that.exit(1)
}

// reply - sends payload to the connection that sent msg, echoing its id.
func (that *Server) reply(connID string, msg *Message, event string, payload any) {
	if err := that.hub.Send(connID, outbound{Event: event, ID: msg.ID, Payload: payload}); err != nil {
		that.logger.Debug("failed to reply", "conn_id", connID, "event", event, "error", err)
	}
}

// replyError - errors only ever go back to the connection that caused them.
func (that *Server) replyError(connID string, msg *Message, event string, err error) {
	log := that.logger.With("method", msg.Event, "conn_id", connID)

	if apperror.KindOf(err) == apperror.KindUnknown {
		log.Error("request failed", "error", err)
	} else {
		log.Debug("request rejected", "error", err)
	}

	that.reply(connID, msg, event, newErrorResponse(err))
}

func (that *Server) publish(gameID, event string, payload any) {
	if err := that.hub.Publish(gameID, outbound{Event: event, Payload: payload}); err != nil {
		that.logger.Error("failed to publish", "game_id", gameID, "event", event, "error", err)
	}
}

func (that *Server) broadcast(event string, payload any, except ...string) {
	if err := that.hub.Broadcast(outbound{Event: event, Payload: payload}, except...); err != nil {
		that.logger.Error("failed to broadcast", "event", event, "error", err)
	}
}
