package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/pkg"
)

type sqlPlayer struct {
	conn *sql.DB
}

func NewSQLPlayerRepository(conn *sql.DB) PlayerRepository {
	return &sqlPlayer{
		conn: conn,
	}
}

// Create - the UNIQUE constraint on name decides which of two racing registrations wins.
func (that *sqlPlayer) Create(ctx context.Context, name string) (*entity.Player, error) {
	query := `INSERT INTO players (id, name) VALUES (?, ?)`

	player := &entity.Player{ID: pkg.GenerateID(), Name: name}

	_, err := that.conn.ExecContext(ctx, query, player.ID, player.Name)
	if isUniqueViolation(err) {
		return nil, apperror.ErrNameTaken
	}
	if err != nil {
		return nil, fmt.Errorf("can't save player: %w", err)
	}

	return player, nil
}

func (that *sqlPlayer) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	query := `SELECT id, name FROM players WHERE id = ?`

	return that.findOne(ctx, query, id)
}

func (that *sqlPlayer) GetByName(ctx context.Context, name string) (*entity.Player, error) {
	query := `SELECT id, name FROM players WHERE name = ?`

	return that.findOne(ctx, query, name)
}

func (that *sqlPlayer) List(ctx context.Context) ([]*entity.Player, error) {
	query := `SELECT id, name FROM players ORDER BY created_at, rowid`

	rows, err := that.conn.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("can't list players: %w", err)
	}
	defer rows.Close()

	players := make([]*entity.Player, 0)
	for rows.Next() {
		var player entity.Player
		if err = rows.Scan(&player.ID, &player.Name); err != nil {
			return nil, fmt.Errorf("can't scan player: %w", err)
		}
		players = append(players, &player)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("can't list players: %w", err)
	}

	return players, nil
}

func (that *sqlPlayer) findOne(ctx context.Context, query string, arg string) (*entity.Player, error) {
	var player entity.Player

	err := that.conn.QueryRowContext(ctx, query, arg).Scan(&player.ID, &player.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apperror.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("can't find player: %w", err)
	}

	return &player, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}

	return false
}
