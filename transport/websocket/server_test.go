package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/repository"
	"github.com/rocketscienceinc/tictactoe-duel/internal/service"
	"github.com/rocketscienceinc/tictactoe-duel/internal/session"
	"github.com/rocketscienceinc/tictactoe-duel/testing/suite"
)

const readTimeout = 5 * time.Second

type received struct {
	Event   string         `json:"event"`
	ID      string         `json:"id"`
	Payload map[string]any `json:"payload"`
}

type testConn struct {
	t    *testing.T
	conn *websocket.Conn
}

func newTestServer(t *testing.T) string {
	t.Helper()

	_, url := startTestServer(t)

	return url
}

func startTestServer(t *testing.T) (*Server, string) {
	t.Helper()

	_, db := suite.NewSQLite(t)
	logger := suite.NewLogger()

	gameRepo := repository.NewSQLGameRepository(db.Connection)
	playerRepo := repository.NewSQLPlayerRepository(db.Connection)
	registry := session.NewMemoryRegistry()

	server := New(
		logger,
		service.NewGamePlayService(logger, gameRepo, playerRepo, registry),
		service.NewPlayerService(logger, playerRepo, gameRepo, registry),
		service.NewSessionService(registry, playerRepo, gameRepo),
	)

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)

	return server, "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *testConn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = conn.Close()
	})

	return &testConn{t: t, conn: conn}
}

func (that *testConn) send(event, id string, payload any) {
	that.t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(that.t, err)

	require.NoError(that.t, that.conn.WriteJSON(Message{Event: event, ID: id, Payload: raw}))
}

func (that *testConn) sendRaw(data string) {
	that.t.Helper()

	require.NoError(that.t, that.conn.WriteMessage(websocket.TextMessage, []byte(data)))
}

// expect - reads until a message for event arrives, skipping anything else.
func (that *testConn) expect(event string) received {
	that.t.Helper()

	require.NoError(that.t, that.conn.SetReadDeadline(time.Now().Add(readTimeout)))

	for {
		var msg received
		require.NoError(that.t, that.conn.ReadJSON(&msg), "waiting for %s", event)

		if msg.Event == event {
			return msg
		}
	}
}

func (that *testConn) createPlayer(name string) (string, string) {
	that.t.Helper()

	that.send(eventCreatePlayer, "", map[string]any{"name": name})
	resp := that.expect(eventPlayerResponse)
	require.Equal(that.t, typePlayerCreated, resp.Payload["type"], resp.Payload["message"])

	player := resp.Payload["player"].(map[string]any)

	return player["playerId"].(string), resp.Payload["sessionToken"].(string)
}

func TestServer_FirstMove(t *testing.T) {
	url := newTestServer(t)
	alice, bob := dial(t, url), dial(t, url)

	// Given: Alice and Bob are registered
	aliceID, aliceToken := alice.createPlayer("Alice")
	bobID, bobToken := bob.createPlayer("Bob")

	// When: Alice creates a game
	alice.send(eventCreateGame, "c1", map[string]any{"playerId": aliceID, "sessionToken": aliceToken})

	// Then: Alice gets it and Bob sees it advertised
	created := alice.expect(eventGameResponse)
	assert.Equal(t, typeGameCreated, created.Payload["type"])
	assert.Equal(t, "c1", created.ID)
	game := created.Payload["game"].(map[string]any)
	gameID := game["gameId"].(string)
	assert.Equal(t, aliceID, game["currentTurn"])
	assert.Nil(t, game["playerTwoId"])

	advertised := bob.expect(eventGameResponse)
	assert.Equal(t, typeNewGameAvailable, advertised.Payload["type"])
	assert.Empty(t, advertised.ID)

	// When: Bob joins
	bob.send(eventJoinGame, "", map[string]any{"sessionToken": bobToken, "gameId": gameID})

	// Then: both are told
	for _, c := range []*testConn{alice, bob} {
		joined := c.expect(eventGameJoinedResponse)
		assert.Equal(t, typeGameJoined, joined.Payload["type"])
		assert.Equal(t, map[string]any{"playerId": bobID, "name": "Bob"}, joined.Payload["playerTwo"])
	}

	// When: Alice plays the first cell
	alice.send(eventMakeMove, "", map[string]any{"playerId": aliceID, "gameId": gameID, "position": 0})

	// Then: both see X in cell 0 and Bob to move
	for _, c := range []*testConn{alice, bob} {
		moved := c.expect(eventGameMoveResponse)
		assert.Equal(t, typeMoveMade, moved.Payload["type"])
		assert.Equal(t, []any{"X", nil, nil, nil, nil, nil, nil, nil, nil}, moved.Payload["board"])
		assert.Equal(t, bobID, moved.Payload["currentTurn"])
	}
}

func TestServer_GameOverAndRestart(t *testing.T) {
	url := newTestServer(t)
	alice, bob := dial(t, url), dial(t, url)

	aliceID, aliceToken := alice.createPlayer("Alice")
	bobID, bobToken := bob.createPlayer("Bob")

	alice.send(eventCreateGame, "", map[string]any{"playerId": aliceID, "sessionToken": aliceToken})
	gameID := alice.expect(eventGameResponse).Payload["game"].(map[string]any)["gameId"].(string)

	bob.send(eventJoinGame, "", map[string]any{"sessionToken": bobToken, "gameId": gameID})
	alice.expect(eventGameJoinedResponse)
	bob.expect(eventGameJoinedResponse)

	// When: Alice completes the first column
	moves := []struct {
		conn     *testConn
		playerID string
		position int
	}{
		{alice, aliceID, 0}, {bob, bobID, 1}, {alice, aliceID, 3}, {bob, bobID, 4},
	}
	for _, m := range moves {
		m.conn.send(eventMakeMove, "", map[string]any{"playerId": m.playerID, "gameId": gameID, "position": m.position})
		alice.expect(eventGameMoveResponse)
		bob.expect(eventGameMoveResponse)
	}
	alice.send(eventMakeMove, "", map[string]any{"playerId": aliceID, "gameId": gameID, "position": 6})

	// Then: both get gameOver naming Alice
	for _, c := range []*testConn{alice, bob} {
		over := c.expect(eventGameOver)
		assert.Equal(t, typeGameOver, over.Payload["type"])
		assert.Equal(t, "finished", over.Payload["status"])
		assert.Equal(t, "Alice", over.Payload["winner"])
		assert.Equal(t, "Alice wins!", over.Payload["message"])
	}

	// When: Bob asks for a rematch
	bob.send(eventRestartGame, "", map[string]any{"gameId": gameID})

	// Then: both get the new game id
	var newGameID string
	for _, c := range []*testConn{alice, bob} {
		restarted := c.expect(eventGameRestartedResponse)
		assert.Equal(t, typeGameRestarted, restarted.Payload["type"])
		newGameID = restarted.Payload["newGameId"].(string)
		assert.NotEqual(t, gameID, newGameID)
	}

	// And: the win is on the board for everyone
	bob.send(eventWinningRecords, "", map[string]any{})
	for _, c := range []*testConn{alice, bob} {
		records := c.expect(eventWinningRecordsResponse)
		assert.Equal(t, []any{map[string]any{"playerName": "Alice", "wins": float64(1)}}, records.Payload["records"])
	}

	// And: the new game is played on the same channel
	alice.send(eventMakeMove, "", map[string]any{"playerId": aliceID, "gameId": newGameID, "position": 4})
	moved := bob.expect(eventGameMoveResponse)
	assert.Equal(t, newGameID, moved.Payload["gameId"])
}

func TestServer_Errors(t *testing.T) {
	url := newTestServer(t)

	t.Run("Errors go only to the sender", func(t *testing.T) {
		alice, bob := dial(t, url), dial(t, url)
		aliceID, aliceToken := alice.createPlayer("Alice")
		_, bobToken := bob.createPlayer("Bob")

		alice.send(eventCreateGame, "", map[string]any{"playerId": aliceID, "sessionToken": aliceToken})
		gameID := alice.expect(eventGameResponse).Payload["game"].(map[string]any)["gameId"].(string)
		bob.send(eventJoinGame, "", map[string]any{"sessionToken": bobToken, "gameId": gameID})
		alice.expect(eventGameJoinedResponse)
		bob.expect(eventGameJoinedResponse)

		// When: Bob plays out of turn
		bob.send(eventMakeMove, "m1", map[string]any{"playerId": "whoever", "gameId": gameID, "position": 4})

		// Then: Bob gets the error with his request id
		resp := bob.expect(eventGameMoveResponse)
		assert.Equal(t, "m1", resp.ID)
		assert.Equal(t, typeError, resp.Payload["type"])
		assert.Equal(t, "conflict", resp.Payload["kind"])

		// And: Alice's next message is her own move, not Bob's error
		alice.send(eventMakeMove, "", map[string]any{"playerId": aliceID, "gameId": gameID, "position": 0})
		moved := alice.expect(eventGameMoveResponse)
		assert.Equal(t, typeMoveMade, moved.Payload["type"])
	})

	t.Run("Name taken", func(t *testing.T) {
		c := dial(t, url)
		c.createPlayer("Carol")

		c.send(eventCreatePlayer, "", map[string]any{"name": "Carol"})
		resp := c.expect(eventPlayerResponse)

		assert.Equal(t, typeError, resp.Payload["type"])
		assert.Equal(t, "name is already taken", resp.Payload["message"])
	})

	t.Run("Missing fields", func(t *testing.T) {
		c := dial(t, url)

		c.send(eventJoinGame, "", map[string]any{})
		resp := c.expect(eventGameJoinedResponse)

		assert.Equal(t, "validation", resp.Payload["kind"])
		assert.Contains(t, resp.Payload["message"], "sessionToken")
	})

	t.Run("Position must be a number", func(t *testing.T) {
		c := dial(t, url)

		c.send(eventMakeMove, "", map[string]any{"playerId": "p", "gameId": "g", "position": "4"})
		resp := c.expect(eventGameMoveResponse)

		assert.Equal(t, "validation", resp.Payload["kind"])
	})

	t.Run("Unknown event", func(t *testing.T) {
		c := dial(t, url)

		c.send("dance", "", map[string]any{})
		resp := c.expect(eventError)

		assert.Equal(t, typeError, resp.Payload["type"])
	})

	t.Run("Malformed frame", func(t *testing.T) {
		c := dial(t, url)

		c.sendRaw("{not json")
		resp := c.expect(eventError)

		assert.Equal(t, "malformed message", resp.Payload["message"])
	})
}

func TestServer_Sessions(t *testing.T) {
	url := newTestServer(t)

	t.Run("Reconnect resumes the game", func(t *testing.T) {
		alice, bob := dial(t, url), dial(t, url)
		aliceID, aliceToken := alice.createPlayer("Alice")
		bobID, bobToken := bob.createPlayer("Bob")

		alice.send(eventCreateGame, "", map[string]any{"playerId": aliceID, "sessionToken": aliceToken})
		gameID := alice.expect(eventGameResponse).Payload["game"].(map[string]any)["gameId"].(string)
		bob.send(eventJoinGame, "", map[string]any{"sessionToken": bobToken, "gameId": gameID})
		bob.expect(eventGameJoinedResponse)

		alice.send(eventMakeMove, "", map[string]any{"playerId": aliceID, "gameId": gameID, "position": 4})
		alice.expect(eventGameMoveResponse)
		bob.expect(eventGameMoveResponse)

		// When: Bob drops and comes back on a new connection
		require.NoError(t, bob.conn.Close())
		bob = dial(t, url)
		bob.send(eventValidateSession, "v1", map[string]any{"sessionToken": bobToken})

		// Then: he is told where he was
		resp := bob.expect(eventValidateSessionResponse)
		assert.Equal(t, "v1", resp.ID)
		assert.Equal(t, true, resp.Payload["valid"])
		assert.Equal(t, bobID, resp.Payload["playerId"])
		assert.Equal(t, gameID, resp.Payload["gameId"])
		assert.Equal(t, false, resp.Payload["isPlayerOne"])
		assert.Equal(t, true, resp.Payload["gameStarted"])

		// And: the full state is available
		bob.send(eventRequestGameState, "", map[string]any{"sessionToken": bobToken, "gameId": gameID})
		state := bob.expect(eventGameStateResponse)
		assert.Equal(t, typeGameState, state.Payload["type"])
		assert.Equal(t, bobID, state.Payload["currentTurn"])

		// And: moves reach him on the new connection
		bob.send(eventMakeMove, "", map[string]any{"playerId": bobID, "gameId": gameID, "position": 0})
		assert.Equal(t, typeMoveMade, bob.expect(eventGameMoveResponse).Payload["type"])
		assert.Equal(t, typeMoveMade, alice.expect(eventGameMoveResponse).Payload["type"])
	})

	t.Run("Ended session is invalid", func(t *testing.T) {
		c := dial(t, url)
		_, token := c.createPlayer("Dana")

		c.send(eventEndSession, "", map[string]any{"sessionToken": token})
		c.send(eventValidateSession, "v2", map[string]any{"sessionToken": token})

		resp := c.expect(eventValidateSessionResponse)
		assert.Equal(t, "v2", resp.ID)
		assert.Equal(t, false, resp.Payload["valid"])
	})
}

func TestServer_Listings(t *testing.T) {
	url := newTestServer(t)
	c := dial(t, url)
	playerID, token := c.createPlayer("Erin")

	c.send(eventCreateGame, "", map[string]any{"playerId": playerID, "sessionToken": token})
	c.expect(eventGameResponse)

	c.send(eventGetAllPlayers, "", nil)
	players := c.expect(eventPlayerResponse)
	assert.Equal(t, typeAllPlayers, players.Payload["type"])
	assert.Len(t, players.Payload["players"], 1)

	c.send(eventGetPlayer, "", map[string]any{"playerId": playerID})
	single := c.expect(eventPlayerResponse)
	assert.Equal(t, typeSinglePlayer, single.Payload["type"])
	assert.Equal(t, "Erin", single.Payload["player"].(map[string]any)["name"])

	c.send(eventGetAllGames, "", nil)
	games := c.expect(eventGameResponse)
	assert.Equal(t, typeAllGames, games.Payload["type"])
	assert.Len(t, games.Payload["games"], 1)
}

type panickingPlayers struct{}

func (panickingPlayers) CreatePlayer(context.Context, string) (*entity.Player, string, error) {
	panic("player store corrupted")
}

func (panickingPlayers) GetPlayer(context.Context, string) (*entity.Player, error) {
	return nil, nil
}

func (panickingPlayers) ListPlayers(context.Context) ([]*entity.Player, error) {
	return nil, nil
}

func TestServer_HandlerPanicIsFatal(t *testing.T) {
	// Given: a server whose player service panics
	server := New(suite.NewLogger(), nil, panickingPlayers{}, nil)
	exitCodes := make(chan int, 1)
	server.exit = func(code int) {
		exitCodes <- code
	}

	httpServer := httptest.NewServer(server.Handler())
	t.Cleanup(httpServer.Close)
	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + "/ws"

	alice, bob := dial(t, url), dial(t, url)
	require.Eventually(t, func() bool {
		return server.hub.size() == 2
	}, readTimeout, 10*time.Millisecond)

	// When: a request reaches the panicking handler
	alice.send(eventCreatePlayer, "", map[string]any{"name": "Alice"})

	// Then: the process is told to exit with a failure code
	select {
	case code := <-exitCodes:
		assert.Equal(t, 1, code)
	case <-time.After(readTimeout):
		t.Fatal("exit was not called")
	}

	// Then: every connection is closed and unregistered
	for _, c := range []*testConn{alice, bob} {
		require.NoError(t, c.conn.SetReadDeadline(time.Now().Add(readTimeout)))
		_, _, err := c.conn.ReadMessage()
		require.Error(t, err)

		var netErr interface{ Timeout() bool }
		if errors.As(err, &netErr) {
			assert.False(t, netErr.Timeout(), "connection was left open")
		}
	}

	assert.Eventually(t, func() bool {
		return server.hub.size() == 0
	}, readTimeout, 10*time.Millisecond)
}

func TestServer_CreateGameBinding(t *testing.T) {
	server, url := startTestServer(t)
	alice, mallory := dial(t, url), dial(t, url)

	// Given: Alice is registered and bound to her connection
	aliceID, aliceToken := alice.createPlayer("Alice")
	_, malloryToken := mallory.createPlayer("Mallory")
	aliceConn, ok := server.hub.ConnForPlayer(aliceID)
	require.True(t, ok)

	t.Run("Foreign player id does not move the binding", func(t *testing.T) {
		// When: another connection creates a game in Alice's name, without and with its own token
		mallory.send(eventCreateGame, "", map[string]any{"playerId": aliceID})
		mallory.expect(eventGameResponse)
		mallory.send(eventCreateGame, "", map[string]any{"playerId": aliceID, "sessionToken": malloryToken})
		mallory.expect(eventGameResponse)

		// Then: Alice stays bound to her own connection
		conn, ok := server.hub.ConnForPlayer(aliceID)
		require.True(t, ok)
		assert.Equal(t, aliceConn, conn)
	})

	t.Run("Session owner binds the connection", func(t *testing.T) {
		// Given: Alice returns on a fresh connection
		again := dial(t, url)
		require.Eventually(t, func() bool {
			return server.hub.size() == 3
		}, readTimeout, 10*time.Millisecond)

		// When: she creates a game there with her own token
		again.send(eventCreateGame, "", map[string]any{"playerId": aliceID, "sessionToken": aliceToken})
		created := again.expect(eventGameResponse)
		require.Equal(t, typeGameCreated, created.Payload["type"])

		// Then: the binding follows her
		conn, ok := server.hub.ConnForPlayer(aliceID)
		require.True(t, ok)
		assert.NotEqual(t, aliceConn, conn)
	})
}
