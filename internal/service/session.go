package service

import (
	"context"
	"fmt"

	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
)

type SessionService interface {
	Validate(ctx context.Context, token string) (*SessionInfo, error)
	End(ctx context.Context, token string) error
}

// SessionInfo is what a returning client needs to pick up where it left off.
// The game fields are zero when the session has no game.
type SessionInfo struct {
	PlayerID    string
	PlayerName  string
	GameID      string
	Board       entity.Board
	IsPlayerOne bool
	GameStarted bool
}

type sessionService struct {
	sessions   sessionRegistry
	playerRepo playerRepo
	gameRepo   gameRepo
}

func NewSessionService(sessions sessionRegistry, playerRepo playerRepo, gameRepo gameRepo) SessionService {
	return &sessionService{
		sessions:   sessions,
		playerRepo: playerRepo,
		gameRepo:   gameRepo,
	}
}

func (that *sessionService) Validate(ctx context.Context, token string) (*SessionInfo, error) {
	session, err := that.sessions.Get(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	player, err := that.playerRepo.GetByID(ctx, session.PlayerID)
	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	info := &SessionInfo{
		PlayerID:   player.ID,
		PlayerName: player.Name,
	}

	if session.GameID == "" {
		return info, nil
	}

	game, err := that.gameRepo.GetByID(ctx, session.GameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	info.GameID = game.ID
	info.Board = game.Board
	info.IsPlayerOne = game.PlayerOneID == player.ID
	info.GameStarted = game.HasOpponent()

	return info, nil
}

func (that *sessionService) End(ctx context.Context, token string) error {
	if err := that.sessions.Remove(ctx, token); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	return nil
}
