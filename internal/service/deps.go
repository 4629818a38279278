package service

import (
	"context"

	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
)

type gameRepo interface {
	Create(ctx context.Context, playerOneID string) (*entity.Game, error)
	Insert(ctx context.Context, game *entity.Game) error
	Save(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	List(ctx context.Context) ([]*entity.Game, error)
	ListFinishedWithWinner(ctx context.Context) ([]*entity.Game, error)
}

type playerRepo interface {
	Create(ctx context.Context, name string) (*entity.Player, error)
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	List(ctx context.Context) ([]*entity.Player, error)
}

type sessionRegistry interface {
	Create(ctx context.Context, playerID string) (string, error)
	AttachGame(ctx context.Context, token, gameID string) error
	IsValid(ctx context.Context, token string) bool
	Get(ctx context.Context, token string) (*entity.Session, error)
	Remove(ctx context.Context, token string) error
	RepointGame(ctx context.Context, oldGameID, newGameID string) error
}
