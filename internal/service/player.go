package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
)

type PlayerService interface {
	CreatePlayer(ctx context.Context, name string) (*entity.Player, string, error)
	GetPlayer(ctx context.Context, id string) (*entity.Player, error)
	ListPlayers(ctx context.Context) ([]*entity.Player, error)
}

type playerService struct {
	logger *slog.Logger

	playerRepo playerRepo
	gameRepo   gameRepo
	sessions   sessionRegistry
}

func NewPlayerService(logger *slog.Logger, playerRepo playerRepo, gameRepo gameRepo, sessions sessionRegistry) PlayerService {
	return &playerService{
		logger:     logger.With("component", "player"),
		playerRepo: playerRepo,
		gameRepo:   gameRepo,
		sessions:   sessions,
	}
}

// CreatePlayer - registers name and opens a session for it.
func (that *playerService) CreatePlayer(ctx context.Context, name string) (*entity.Player, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, "", apperror.ErrMissingField.With("name")
	}

	player, err := that.playerRepo.Create(ctx, name)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create player: %w", err)
	}

	token, err := that.sessions.Create(ctx, player.ID)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create session: %w", err)
	}

	that.logger.Info("player registered", "method", "CreatePlayer", "player_id", player.ID)

	return player, token, nil
}

func (that *playerService) GetPlayer(ctx context.Context, id string) (*entity.Player, error) {
	if id == "" {
		return nil, apperror.ErrMissingField.With("playerId")
	}

	player, err := that.playerRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get player by id: %w", err)
	}

	wins, err := countWins(ctx, that.gameRepo)
	if err != nil {
		return nil, err
	}

	player.Wins = wins[player.ID]

	return player, nil
}

func (that *playerService) ListPlayers(ctx context.Context) ([]*entity.Player, error) {
	players, err := that.playerRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}

	wins, err := countWins(ctx, that.gameRepo)
	if err != nil {
		return nil, err
	}

	for _, player := range players {
		player.Wins = wins[player.ID]
	}

	return players, nil
}
