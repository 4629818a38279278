package session

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
)

// Registry - maps opaque session tokens to a player and, once they play, a game.
type Registry interface {
	Create(ctx context.Context, playerID string) (string, error)
	AttachGame(ctx context.Context, token, gameID string) error
	IsValid(ctx context.Context, token string) bool
	Get(ctx context.Context, token string) (*entity.Session, error)
	Remove(ctx context.Context, token string) error
	RepointGame(ctx context.Context, oldGameID, newGameID string) error
}
