package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/pkg"
)

const drawMessage = "It's a draw!"

type GamePlayService interface {
	CreateGame(ctx context.Context, playerID, sessionToken string) (*entity.Game, error)
	JoinGame(ctx context.Context, sessionToken, gameID string) (*JoinResult, error)
	MakeMove(ctx context.Context, playerID, gameID string, position int) (*MoveResult, error)
	RestartGame(ctx context.Context, gameID string) (*entity.Game, error)

	GameState(ctx context.Context, sessionToken, gameID string) (*entity.GameState, error)
	WinRecords(ctx context.Context) ([]entity.WinRecord, error)
	ListGames(ctx context.Context) ([]*entity.Game, error)
	GetGame(ctx context.Context, gameID string) (*entity.Game, error)
}

type JoinResult struct {
	Game      *entity.Game
	PlayerTwo *entity.PlayerSummary
}

type MoveResult struct {
	Game    *entity.Game
	Outcome entity.Outcome

	// WinnerName and Message are only set once the game is over.
	WinnerName string
	Message    string
}

func (that *MoveResult) IsGameOver() bool {
	return that.Outcome.Result != entity.Ongoing
}

type gamePlayService struct {
	logger *slog.Logger

	gameRepo   gameRepo
	playerRepo playerRepo
	sessions   sessionRegistry

	locks *keyedMutex
}

func NewGamePlayService(logger *slog.Logger, gameRepo gameRepo, playerRepo playerRepo, sessions sessionRegistry) GamePlayService {
	return &gamePlayService{
		logger:     logger.With("component", "gameplay"),
		gameRepo:   gameRepo,
		playerRepo: playerRepo,
		sessions:   sessions,
		locks:      newKeyedMutex(),
	}
}

// CreateGame - opens a game owned by playerID. The creator moves first as soon as an opponent joins.
func (that *gamePlayService) CreateGame(ctx context.Context, playerID, sessionToken string) (*entity.Game, error) {
	if playerID == "" {
		return nil, apperror.ErrMissingField.With("playerId")
	}

	if _, err := that.playerRepo.GetByID(ctx, playerID); err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	game, err := that.gameRepo.Create(ctx, playerID)
	if err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	that.attachIfOwned(ctx, sessionToken, playerID, game.ID)

	return game, nil
}

// attachIfOwned - binds gameID to the session when the token belongs to playerID. Failures are logged, not returned.
func (that *gamePlayService) attachIfOwned(ctx context.Context, sessionToken, playerID, gameID string) {
	if sessionToken == "" {
		return
	}

	log := that.logger.With("method", "attachIfOwned", "game_id", gameID)

	session, err := that.sessions.Get(ctx, sessionToken)
	if err != nil {
		log.Debug("session not attached", "error", err)
		return
	}

	if session.PlayerID != playerID {
		log.Warn("session belongs to another player", "player_id", playerID)
		return
	}

	if err = that.sessions.AttachGame(ctx, sessionToken, gameID); err != nil {
		log.Error("failed to attach game to session", "error", err)
	}
}

func (that *gamePlayService) JoinGame(ctx context.Context, sessionToken, gameID string) (*JoinResult, error) {
	session, err := that.sessions.Get(ctx, sessionToken)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	unlock := that.locks.Lock(gameID)
	defer unlock()

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	if err = game.Seat(session.PlayerID); err != nil {
		return nil, err
	}

	playerTwo, err := that.playerRepo.GetByID(ctx, session.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	if err = that.gameRepo.Save(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	// the seat is stored, so the join stands even when the session can't follow it
	if err = that.sessions.AttachGame(ctx, sessionToken, game.ID); err != nil {
		that.logger.With("method", "JoinGame").Error("failed to attach game to session",
			"game_id", game.ID, "error", err)
	}

	return &JoinResult{Game: game, PlayerTwo: playerTwo.Summary()}, nil
}

func (that *gamePlayService) MakeMove(ctx context.Context, playerID, gameID string, position int) (*MoveResult, error) {
	unlock := that.locks.Lock(gameID)
	defer unlock()

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	outcome, err := game.Play(playerID, position)
	if err != nil {
		return nil, err
	}

	result := &MoveResult{Game: game, Outcome: outcome}

	switch outcome.Result {
	case entity.Win:
		result.WinnerName = that.winnerName(ctx, game.Winner)
		result.Message = result.WinnerName + " wins!"
	case entity.Draw:
		result.Message = drawMessage
	}

	if err = that.gameRepo.Save(ctx, game); err != nil {
		return nil, fmt.Errorf("failed to update game: %w", err)
	}

	return result, nil
}

// winnerName - the winner's display name, or the id when the player can't be read.
func (that *gamePlayService) winnerName(ctx context.Context, winnerID string) string {
	winner, err := that.playerRepo.GetByID(ctx, winnerID)
	if err != nil {
		that.logger.With("method", "winnerName").Error("failed to get winner",
			"player_id", winnerID, "error", err)
		return winnerID
	}

	return winner.Name
}

// RestartGame - starts a rematch between the players of gameID. The finished game stays as it was
// and every session that pointed at it follows the new one.
func (that *gamePlayService) RestartGame(ctx context.Context, gameID string) (*entity.Game, error) {
	unlock := that.locks.Lock(gameID)
	defer unlock()

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	next := game.Rematch(pkg.GenerateID())
	if err = that.gameRepo.Insert(ctx, next); err != nil {
		return nil, fmt.Errorf("failed to create game: %w", err)
	}

	// the rematch is stored, participants still reach it through their player binding
	if err = that.sessions.RepointGame(ctx, game.ID, next.ID); err != nil {
		that.logger.With("method", "RestartGame").Error("failed to repoint sessions",
			"old_game_id", game.ID, "new_game_id", next.ID, "error", err)
	}

	return next, nil
}

func (that *gamePlayService) GameState(ctx context.Context, sessionToken, gameID string) (*entity.GameState, error) {
	if !that.sessions.IsValid(ctx, sessionToken) {
		return nil, apperror.ErrInvalidSession
	}

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	playerOne, err := that.playerRepo.GetByID(ctx, game.PlayerOneID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player one: %w", err)
	}

	state := &entity.GameState{
		GameID:      game.ID,
		Board:       game.Board,
		Status:      game.Status,
		PlayerOne:   playerOne.Summary(),
		CurrentTurn: game.CurrentTurn,
		Winner:      game.Winner,
	}

	if game.HasOpponent() {
		playerTwo, err := that.playerRepo.GetByID(ctx, game.PlayerTwoID)
		if err != nil {
			return nil, fmt.Errorf("failed to get player two: %w", err)
		}

		state.PlayerTwo = playerTwo.Summary()
	}

	return state, nil
}

// WinRecords - wins per player over all finished games, most wins first, ties by name.
func (that *gamePlayService) WinRecords(ctx context.Context) ([]entity.WinRecord, error) {
	wins, err := countWins(ctx, that.gameRepo)
	if err != nil {
		return nil, err
	}

	players, err := that.playerRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	records := make([]entity.WinRecord, 0, len(wins))
	for _, player := range players {
		if count := wins[player.ID]; count > 0 {
			records = append(records, entity.WinRecord{PlayerName: player.Name, Wins: count})
		}
	}

	sort.Slice(records, func(i, j int) bool {
		if records[i].Wins != records[j].Wins {
			return records[i].Wins > records[j].Wins
		}
		return records[i].PlayerName < records[j].PlayerName
	})

	return records, nil
}

func (that *gamePlayService) ListGames(ctx context.Context) ([]*entity.Game, error) {
	games, err := that.gameRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list games: %w", err)
	}

	return games, nil
}

func (that *gamePlayService) GetGame(ctx context.Context, gameID string) (*entity.Game, error) {
	if gameID == "" {
		return nil, apperror.ErrMissingField.With("gameId")
	}

	game, err := that.gameRepo.GetByID(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	return game, nil
}

// countWins - number of won games per winner id.
func countWins(ctx context.Context, games gameRepo) (map[string]int, error) {
	finished, err := games.ListFinishedWithWinner(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list finished games: %w", err)
	}

	wins := make(map[string]int)
	for _, game := range finished {
		wins[game.Winner]++
	}

	return wins, nil
}
