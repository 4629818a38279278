// Package wire holds the JSON shapes shared by the websocket gateway and the REST API.
package wire

import (
	"time"

	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
)

// Board is nine cells in row-major order, each null, "X" or "O".
type Board []*string

func NewBoard(board entity.Board) Board {
	cells := make(Board, entity.BoardSize)
	for i, mark := range board {
		if mark == entity.MarkEmpty {
			continue
		}

		value := mark.String()
		cells[i] = &value
	}

	return cells
}

type Game struct {
	GameID      string    `json:"gameId"`
	PlayerOneID string    `json:"playerOneId"`
	PlayerTwoID *string   `json:"playerTwoId"`
	Status      string    `json:"status"`
	Board       Board     `json:"board"`
	CurrentTurn *string   `json:"currentTurn"`
	Winner      *string   `json:"winner"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func NewGame(game *entity.Game) *Game {
	if game == nil {
		return nil
	}

	return &Game{
		GameID:      game.ID,
		PlayerOneID: game.PlayerOneID,
		PlayerTwoID: Optional(game.PlayerTwoID),
		Status:      game.Status,
		Board:       NewBoard(game.Board),
		CurrentTurn: Optional(game.CurrentTurn),
		Winner:      Optional(game.Winner),
		CreatedAt:   game.CreatedAt,
		UpdatedAt:   game.UpdatedAt,
	}
}

func NewGames(games []*entity.Game) []*Game {
	views := make([]*Game, 0, len(games))
	for _, game := range games {
		views = append(views, NewGame(game))
	}

	return views
}

// Optional - empty strings go out as null.
func Optional(value string) *string {
	if value == "" {
		return nil
	}

	return &value
}
