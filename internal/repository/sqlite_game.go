package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/pkg"
)

const gameColumns = `id, player_one_id, player_two_id, status, board, current_turn, winner, created_at, updated_at`

type sqlGame struct {
	conn *sql.DB
}

func NewSQLGameRepository(conn *sql.DB) GameRepository {
	return &sqlGame{
		conn: conn,
	}
}

func (that *sqlGame) Create(ctx context.Context, playerOneID string) (*entity.Game, error) {
	game := entity.NewGame(pkg.GenerateID(), playerOneID)

	if err := that.Insert(ctx, game); err != nil {
		return nil, err
	}

	return game, nil
}

func (that *sqlGame) Insert(ctx context.Context, game *entity.Game) error {
	query := `INSERT INTO games (` + gameColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := that.conn.ExecContext(ctx, query,
		game.ID,
		game.PlayerOneID,
		nullable(game.PlayerTwoID),
		game.Status,
		game.Board.Encode(),
		game.CurrentTurn,
		game.Winner,
		game.CreatedAt,
		game.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("can't save game: %w", err)
	}

	return nil
}

func (that *sqlGame) Save(ctx context.Context, game *entity.Game) error {
	query := `UPDATE games
		SET player_two_id = ?, status = ?, board = ?, current_turn = ?, winner = ?, updated_at = ?
		WHERE id = ?`

	result, err := that.conn.ExecContext(ctx, query,
		nullable(game.PlayerTwoID),
		game.Status,
		game.Board.Encode(),
		game.CurrentTurn,
		game.Winner,
		game.UpdatedAt,
		game.ID,
	)
	if err != nil {
		return fmt.Errorf("can't update game: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("can't update game: %w", err)
	}

	if affected == 0 {
		return apperror.ErrGameNotFound
	}

	return nil
}

func (that *sqlGame) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games WHERE id = ?`

	game, err := scanGame(that.conn.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrGameNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find game: %w", err)
	}

	return game, nil
}

func (that *sqlGame) List(ctx context.Context) ([]*entity.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games ORDER BY created_at, rowid`

	return that.query(ctx, query)
}

func (that *sqlGame) ListFinishedWithWinner(ctx context.Context) ([]*entity.Game, error) {
	query := `SELECT ` + gameColumns + ` FROM games
		WHERE status = ? AND winner <> ''
		ORDER BY updated_at, rowid`

	return that.query(ctx, query, entity.StatusFinished)
}

func (that *sqlGame) query(ctx context.Context, query string, args ...any) ([]*entity.Game, error) {
	rows, err := that.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("can't list games: %w", err)
	}
	defer rows.Close()

	games := make([]*entity.Game, 0)
	for rows.Next() {
		game, err := scanGame(rows)
		if err != nil {
			return nil, fmt.Errorf("can't scan game: %w", err)
		}
		games = append(games, game)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't list games: %w", err)
	}

	return games, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanGame(row rowScanner) (*entity.Game, error) {
	var (
		game        entity.Game
		playerTwoID sql.NullString
		board       string
		createdAt   time.Time
		updatedAt   time.Time
	)

	err := row.Scan(
		&game.ID,
		&game.PlayerOneID,
		&playerTwoID,
		&game.Status,
		&board,
		&game.CurrentTurn,
		&game.Winner,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	game.Board, err = entity.DecodeBoard(board)
	if err != nil {
		return nil, err
	}

	game.PlayerTwoID = playerTwoID.String
	game.CreatedAt = createdAt.UTC()
	game.UpdatedAt = updatedAt.UTC()

	return &game, nil
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
