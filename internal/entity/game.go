package entity

import (
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
)

const (
	StatusPending    = "pending"
	StatusInProgress = "in_progress"
	StatusFinished   = "finished"
)

type Game struct {
	ID          string
	PlayerOneID string
	PlayerTwoID string
	Status      string
	Board       Board
	CurrentTurn string
	Winner      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewGame - a playable game owned by playerOneID, waiting only for an opponent.
func NewGame(id, playerOneID string) *Game {
	now := time.Now().UTC()

	return &Game{
		ID:          id,
		PlayerOneID: playerOneID,
		Status:      StatusInProgress,
		CurrentTurn: playerOneID,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Rematch - a fresh game between the same two players, player one to move.
func (that *Game) Rematch(id string) *Game {
	game := NewGame(id, that.PlayerOneID)
	game.PlayerTwoID = that.PlayerTwoID

	return game
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusFinished
}

func (that *Game) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that *Game) HasOpponent() bool {
	return that.PlayerTwoID != ""
}

func (that *Game) IsParticipant(playerID string) bool {
	return playerID != "" && (playerID == that.PlayerOneID || playerID == that.PlayerTwoID)
}

// MarkFor - X for player one, O for anyone else.
func (that *Game) MarkFor(playerID string) Mark {
	if playerID == that.PlayerOneID {
		return MarkX
	}

	return MarkO
}

// OtherPlayer - the opponent of playerID, empty if there is none yet.
func (that *Game) OtherPlayer(playerID string) string {
	if playerID == that.PlayerOneID {
		return that.PlayerTwoID
	}

	return that.PlayerOneID
}

// Participants - ids of the players seated in the game.
func (that *Game) Participants() []string {
	if that.PlayerTwoID == "" {
		return []string{that.PlayerOneID}
	}

	return []string{that.PlayerOneID, that.PlayerTwoID}
}

// ConfirmInProgress - nil when moves can be accepted.
func (that *Game) ConfirmInProgress() error {
	switch that.Status {
	case StatusInProgress:
		// moves need both marks assigned, otherwise CurrentTurn could never pass to player two
		if !that.HasOpponent() {
			return apperror.ErrAwaitingOpponent
		}
		return nil
	case StatusFinished, StatusPending:
		return apperror.ErrGameNotInProgress
	default:
		return fmt.Errorf("%w: unknown status %s", apperror.ErrGameNotInProgress, that.Status)
	}
}

// Seat - places playerID as player two.
func (that *Game) Seat(playerID string) error {
	switch {
	case that.IsFinished():
		return apperror.ErrGameFinished
	case that.HasOpponent():
		return apperror.ErrGameFull
	case playerID == that.PlayerOneID:
		return apperror.ErrCannotJoinOwnGame
	}

	that.PlayerTwoID = playerID
	that.Status = StatusInProgress
	if that.CurrentTurn == "" {
		that.CurrentTurn = that.PlayerOneID
	}
	that.UpdatedAt = time.Now().UTC()

	return nil
}

// Play - validates and applies a move by playerID, then settles the game state.
// On error the game is left untouched.
func (that *Game) Play(playerID string, position int) (Outcome, error) {
	if err := that.ConfirmInProgress(); err != nil {
		return Outcome{}, err
	}

	if playerID != that.CurrentTurn {
		return Outcome{}, apperror.ErrNotYourTurn
	}

	board, err := ApplyMove(that.Board, that.MarkFor(playerID), position)
	if err != nil {
		return Outcome{}, err
	}

	that.Board = board
	that.UpdatedAt = time.Now().UTC()

	outcome := Evaluate(board)
	switch outcome.Result {
	case Win:
		that.Status = StatusFinished
		that.Winner = playerID
		that.CurrentTurn = ""
	case Draw:
		that.Status = StatusFinished
		that.Winner = ""
		that.CurrentTurn = ""
	default:
		that.CurrentTurn = that.OtherPlayer(playerID)
	}

	return outcome, nil
}
