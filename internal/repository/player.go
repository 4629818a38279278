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
	playerKeyPrefix     = "player:"
	playerNameKeyPrefix = "player:name:"
	playersIndexKey     = "players"
)

type PlayerRepository interface {
	Create(ctx context.Context, name string) (*entity.Player, error)
	GetByID(ctx context.Context, id string) (*entity.Player, error)
	GetByName(ctx context.Context, name string) (*entity.Player, error)
	List(ctx context.Context) ([]*entity.Player, error)
}

type playerRecord struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

type dbPlayer struct {
	client *redis.Client
}

func NewPlayerRepository(client *redis.Client) PlayerRepository {
	return &dbPlayer{
		client: client,
	}
}

// Create - stores a new player. The name key is claimed with SETNX first so two
// concurrent registrations of one name can't both succeed.
func (that *dbPlayer) Create(ctx context.Context, name string) (*entity.Player, error) {
	record := playerRecord{
		ID:        pkg.GenerateID(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	claimed, err := that.client.SetNX(ctx, playerNameKeyPrefix+name, record.ID, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to claim player name: %w", err)
	}

	if !claimed {
		return nil, apperror.ErrNameTaken
	}

	playerJSON, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal player: %w", err)
	}

	_, err = that.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, playerKeyPrefix+record.ID, playerJSON, 0)
		pipe.ZAdd(ctx, playersIndexKey, redis.Z{Score: float64(record.CreatedAt.UnixNano()), Member: record.ID})
		return nil
	})
	if err != nil {
		// release the name so the player can retry
		that.client.Del(ctx, playerNameKeyPrefix+name)
		return nil, fmt.Errorf("failed to set player: %w", err)
	}

	return &entity.Player{ID: record.ID, Name: record.Name}, nil
}

func (that *dbPlayer) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	playerKey := playerKeyPrefix + id

	response, err := that.client.Get(ctx, playerKey).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by ID: %w", err)
	}

	var record playerRecord
	if err = json.Unmarshal([]byte(response), &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal player: %w", err)
	}

	return &entity.Player{ID: record.ID, Name: record.Name}, nil
}

func (that *dbPlayer) GetByName(ctx context.Context, name string) (*entity.Player, error) {
	id, err := that.client.Get(ctx, playerNameKeyPrefix+name).Result()

	if errors.Is(err, redis.Nil) {
		return nil, apperror.ErrPlayerNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get player by name: %w", err)
	}

	return that.GetByID(ctx, id)
}

func (that *dbPlayer) List(ctx context.Context) ([]*entity.Player, error) {
	ids, err := that.client.ZRange(ctx, playersIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read players index: %w", err)
	}

	if len(ids) == 0 {
		return []*entity.Player{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = playerKeyPrefix + id
	}

	values, err := that.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to get players: %w", err)
	}

	players := make([]*entity.Player, 0, len(values))
	for _, value := range values {
		raw, ok := value.(string)
		if !ok {
			continue
		}

		var record playerRecord
		if err = json.Unmarshal([]byte(raw), &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal player: %w", err)
		}

		players = append(players, &entity.Player{ID: record.ID, Name: record.Name})
	}

	return players, nil
}
