package websocket

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/transport/wire"
)

func (that *Server) handleCreatePlayer(ctx context.Context, connID string, msg *Message) {
	var req createPlayerRequest
	if err := decodePayload(msg, &req); err != nil {
		that.replyError(connID, msg, eventPlayerResponse, err)
		return
	}

	player, token, err := that.players.CreatePlayer(ctx, req.Name)
	if err != nil {
		that.replyError(connID, msg, eventPlayerResponse, err)
		return
	}

	that.hub.BindPlayer(player.ID, connID)

	that.reply(connID, msg, eventPlayerResponse, playerResponse{
		Type:         typePlayerCreated,
		Player:       player,
		SessionToken: token,
	})
}

func (that *Server) handleCreateGame(ctx context.Context, connID string, msg *Message) {
	var req createGameRequest
	if err := decodePayload(msg, &req); err != nil {
		that.replyError(connID, msg, eventGameResponse, err)
		return
	}

	game, err := that.gamePlay.CreateGame(ctx, req.PlayerID, req.SessionToken)
	if err != nil {
		that.replyError(connID, msg, eventGameResponse, err)
		return
	}

	// only the session owner may bind this connection to the player
	if info, err := that.sessions.Validate(ctx, req.SessionToken); err == nil && info.PlayerID == req.PlayerID {
		that.hub.BindPlayer(req.PlayerID, connID)
	}
	that.hub.Subscribe(connID, game.ID)

	view := wire.NewGame(game)
	that.reply(connID, msg, eventGameResponse, gameResponse{Type: typeGameCreated, Game: view})
	that.broadcast(eventGameResponse, gameResponse{Type: typeNewGameAvailable, Game: view}, connID)
}

func (that *Server) handleJoinGame(ctx context.Context, connID string, msg *Message) {
	var req joinGameRequest
	if err := decodePayload(msg, &req); err != nil {
		that.replyError(connID, msg, eventGameJoinedResponse, err)
		return
	}

	result, err := that.gamePlay.JoinGame(ctx, req.SessionToken, req.GameID)
	if err != nil {
		that.replyError(connID, msg, eventGameJoinedResponse, err)
		return
	}

	that.hub.BindPlayer(result.PlayerTwo.ID, connID)
	that.hub.Subscribe(connID, result.Game.ID)

	that.publish(result.Game.ID, eventGameJoinedResponse, gameJoinedResponse{
		Type:      typeGameJoined,
		Game:      wire.NewGame(result.Game),
		PlayerTwo: result.PlayerTwo,
	})
}

func (that *Server) handleMakeMove(ctx context.Context, connID string, msg *Message) {
	var req makeMoveRequest
	if err := decodePayload(msg, &req); err != nil {
		that.replyError(connID, msg, eventGameMoveResponse, err)
		return
	}

	result, err := that.gamePlay.MakeMove(ctx, req.PlayerID, req.GameID, *req.Position)
	if err != nil {
		that.replyError(connID, msg, eventGameMoveResponse, err)
		return
	}

	game := result.Game
	that.hub.Subscribe(connID, game.ID)

	if result.IsGameOver() {
		that.publish(game.ID, eventGameOver, gameOverResponse{
			Type:    typeGameOver,
			GameID:  game.ID,
			Status:  game.Status,
			Board:   wire.NewBoard(game.Board),
			Winner:  wire.Optional(result.WinnerName),
			Message: result.Message,
		})
		return
	}

	that.publish(game.ID, eventGameMoveResponse, gameMoveResponse{
		Type:        typeMoveMade,
		GameID:      game.ID,
		Board:       wire.NewBoard(game.Board),
		CurrentTurn: game.CurrentTurn,
	})
}

// handleRestartGame - both participants are told about the new game on whatever connection they are bound to.
func (that *Server) handleRestartGame(ctx context.Context, connID string, msg *Message) {
	var req restartGameRequest
	if err := decodePayload(msg, &req); err != nil {
		that.replyError(connID, msg, eventGameRestartedResponse, err)
		return
	}

	game, err := that.gamePlay.RestartGame(ctx, req.GameID)
	if err != nil {
		that.replyError(connID, msg, eventGameRestartedResponse, err)
		return
	}

	resp := outbound{
		Event:   eventGameRestartedResponse,
		Payload: gameRestartedResponse{Type: typeGameRestarted, OldGameID: req.GameID, NewGameID: game.ID},
	}

	notified := make(map[string]struct{}, 2)
	for _, playerID := range []string{game.PlayerOneID, game.PlayerTwoID} {
		if playerID == "" {
			continue
		}

		participantConn, ok := that.hub.ConnForPlayer(playerID)
		if !ok {
			continue
		}
		if _, done := notified[participantConn]; done {
			continue
		}
		notified[participantConn] = struct{}{}

		that.hub.Unsubscribe(participantConn, req.GameID)
		that.hub.Subscribe(participantConn, game.ID)

		if err = that.hub.Send(participantConn, resp); err != nil {
			that.logger.Debug("participant not reachable", "method", "handleRestartGame", "player_id", playerID, "error", err)
		}
	}

	// the requester might not be bound to a participant, it still gets its answer
	if _, done := notified[connID]; !done {
		that.reply(connID, msg, resp.Event, resp.Payload)
	}
}

func (that *Server) handleRequestGameState(ctx context.Context, connID string, msg *Message) {
	var req gameStateRequest
	if err := decodePayload(msg, &req); err != nil {
		that.replyError(connID, msg, eventGameStateResponse, err)
		return
	}

	state, err := that.gamePlay.GameState(ctx, req.SessionToken, req.GameID)
	if err != nil {
		that.replyError(connID, msg, eventGameStateResponse, err)
		return
	}

	that.hub.Subscribe(connID, state.GameID)

	that.reply(connID, msg, eventGameStateResponse, gameStateResponse{
		Type:        typeGameState,
		GameID:      state.GameID,
		Board:       wire.NewBoard(state.Board),
		Status:      state.Status,
		PlayerOne:   state.PlayerOne,
		PlayerTwo:   state.PlayerTwo,
		CurrentTurn: wire.Optional(state.CurrentTurn),
		Winner:      wire.Optional(state.Winner),
	})
}

// handleValidateSession - re-binds a returning client to its player and game.
func (that *Server) handleValidateSession(ctx context.Context, connID string, msg *Message) {
	var req sessionRequest
	if err := decodePayload(msg, &req); err != nil {
		that.reply(connID, msg, eventValidateSessionResponse, validateSessionResponse{Valid: false})
		return
	}

	info, err := that.sessions.Validate(ctx, req.SessionToken)
	if err != nil {
		if apperror.KindOf(err) == apperror.KindUnknown {
			that.logger.Error("failed to validate session", "method", "handleValidateSession", "error", err)
		}
		that.reply(connID, msg, eventValidateSessionResponse, validateSessionResponse{Valid: false})
		return
	}

	that.hub.BindPlayer(info.PlayerID, connID)

	resp := validateSessionResponse{
		Valid:      true,
		PlayerID:   info.PlayerID,
		PlayerName: info.PlayerName,
	}

	if info.GameID != "" {
		that.hub.Subscribe(connID, info.GameID)

		resp.GameID = info.GameID
		resp.Board = wire.NewBoard(info.Board)
		resp.IsPlayerOne = &info.IsPlayerOne
		resp.GameStarted = &info.GameStarted
	}

	that.reply(connID, msg, eventValidateSessionResponse, resp)
}

func (that *Server) handleWinningRecords(ctx context.Context, connID string, msg *Message) {
	records, err := that.gamePlay.WinRecords(ctx)
	if err != nil {
		that.replyError(connID, msg, eventWinningRecordsResponse, err)
		return
	}

	that.broadcast(eventWinningRecordsResponse, winningRecordsResponse{Type: typeWinRecords, Records: records})
}

func (that *Server) handleEndSession(ctx context.Context, connID string, msg *Message) {
	log := that.logger.With("method", "handleEndSession", "conn_id", connID)

	var req sessionRequest
	if err := decodePayload(msg, &req); err != nil {
		log.Debug("ignoring endSession", "error", err)
		return
	}

	if err := that.sessions.End(ctx, req.SessionToken); err != nil {
		log.Error("failed to end session", "error", err)
	}
}

func (that *Server) handleGetAllPlayers(ctx context.Context, connID string, msg *Message) {
	players, err := that.players.ListPlayers(ctx)
	if err != nil {
		that.replyError(connID, msg, eventPlayerResponse, err)
		return
	}

	that.reply(connID, msg, eventPlayerResponse, playerListResponse{Type: typeAllPlayers, Players: players})
}

func (that *Server) handleGetPlayer(ctx context.Context, connID string, msg *Message) {
	var req getPlayerRequest
	if err := decodePayload(msg, &req); err != nil {
		that.replyError(connID, msg, eventPlayerResponse, err)
		return
	}

	player, err := that.players.GetPlayer(ctx, req.PlayerID)
	if err != nil {
		that.replyError(connID, msg, eventPlayerResponse, err)
		return
	}

	that.reply(connID, msg, eventPlayerResponse, playerResponse{Type: typeSinglePlayer, Player: player})
}

func (that *Server) handleGetAllGames(ctx context.Context, connID string, msg *Message) {
	games, err := that.gamePlay.ListGames(ctx)
	if err != nil {
		that.replyError(connID, msg, eventGameResponse, err)
		return
	}

	that.reply(connID, msg, eventGameResponse, gameListResponse{Type: typeAllGames, Games: wire.NewGames(games)})
}
