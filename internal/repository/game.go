package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/pkg"
)

const (
	gameKeyPrefix = "game:"
	gamesIndexKey = "games"
	gamesWonKey   = "games:won"
)

type GameRepository interface {
	Create(ctx context.Context, playerOneID string) (*entity.Game, error)
	Insert(ctx context.Context, game *entity.Game) error
	Save(ctx context.Context, game *entity.Game) error
	GetByID(ctx context.Context, id string) (*entity.Game, error)
	List(ctx context.Context) ([]*entity.Game, error)
	ListFinishedWithWinner(ctx context.Context) ([]*entity.Game, error)
}

// gameRecord is the stored form of a game.
type gameRecord struct {
	ID          string    `json:"id"`
	PlayerOneID string    `json:"player_one_id"`
	PlayerTwoID string    `json:"player_two_id,omitempty"`
	Status      string    `json:"status"`
	Board       string    `json:"board"`
	CurrentTurn string    `json:"current_turn,omitempty"`
	Winner      string    `json:"winner,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toGameRecord(game *entity.Game) gameRecord {
	return gameRecord{
		ID:          game.ID,
		PlayerOneID: game.PlayerOneID,
		PlayerTwoID: game.PlayerTwoID,
		Status:      game.Status,
		Board:       game.Board.Encode(),
		CurrentTurn: game.CurrentTurn,
		Winner:      game.Winner,
		CreatedAt:   game.CreatedAt,
		UpdatedAt:   game.UpdatedAt,
	}
}

func (that gameRecord) toEntity() (*entity.Game, error) {
	board, err := entity.DecodeBoard(that.Board)
	if err != nil {
		return nil, fmt.Errorf("failed to decode board of game %s: %w", that.ID, err)
	}

	return &entity.Game{
		ID:          that.ID,
		PlayerOneID: that.PlayerOneID,
		PlayerTwoID: that.PlayerTwoID,
		Status:      that.Status,
		Board:       board,
		CurrentTurn: that.CurrentTurn,
		Winner:      that.Winner,
		CreatedAt:   that.CreatedAt,
		UpdatedAt:   that.UpdatedAt,
	}, nil
}

type dbGame struct {
	client *redis.Client
}

func NewGameRepository(client *redis.Client) GameRepository {
	return &dbGame{
		client: client,
	}
}

func (that *dbGame) Create(ctx context.Context, playerOneID string) (*entity.Game, error) {
	game := entity.NewGame(pkg.GenerateID(), playerOneID)

	if err := that.Insert(ctx, game); err != nil {
		return nil, err
	}

	return game, nil
}

func (that *dbGame) Insert(ctx context.Context, game *entity.Game) error {
	gameJSON, err := json.Marshal(toGameRecord(game))
	if err != nil {
		return fmt.Errorf("could not marshal game: %w", err)
	}

	gameKey := gameKeyPrefix + game.ID
	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, gameKey, gameJSON, 0)
		pipe.ZAddNX(ctx, gamesIndexKey, redis.Z{Score: float64(game.CreatedAt.UnixNano()), Member: game.ID})
		if game.IsFinished() && game.Winner != "" {
			pipe.ZAdd(ctx, gamesWonKey, redis.Z{Score: float64(game.UpdatedAt.UnixNano()), Member: game.ID})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to set game: %w", err)
	}

	return nil
}

func (that *dbGame) Save(ctx context.Context, game *entity.Game) error {
	return that.Insert(ctx, game)
}

func (that *dbGame) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	gameKey := gameKeyPrefix + id

	response, err := that.client.Get(ctx, gameKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrGameNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get game by id: %w", err)
	}

	var record gameRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game: %w", err)
	}

	return record.toEntity()
}

func (that *dbGame) List(ctx context.Context) ([]*entity.Game, error) {
	return that.listIndexed(ctx, gamesIndexKey)
}

func (that *dbGame) ListFinishedWithWinner(ctx context.Context) ([]*entity.Game, error) {
	return that.listIndexed(ctx, gamesWonKey)
}

// listIndexed - loads every game whose id is a member of the sorted set indexKey, in score order.
func (that *dbGame) listIndexed(ctx context.Context, indexKey string) ([]*entity.Game, error) {
	ids, err := that.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s index: %w", indexKey, err)
	}

	if len(ids) == 0 {
		return []*entity.Game{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = gameKeyPrefix + id
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get games: %w", err)
	}

	games := make([]*entity.Game, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var record gameRecord
		if err = json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal game: %w", err)
		}

		game, err := record.toEntity()
		if err != nil {
			return nil, err
		}

		games = append(games, game)
	}

	return games, nil
}
