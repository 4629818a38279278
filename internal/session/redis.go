package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/pkg"
)

const (
	sessionKeyPrefix      = "session:"
	gameSessionsKeyPrefix = "sessions:game:"

	fieldPlayerID = "player_id"
	fieldGameID   = "game_id"

	maxTxRetries = 5
)

// RedisRegistry stores each session as a hash and keeps a set of tokens per game,
// so a restart can repoint sessions without scanning.
type RedisRegistry struct {
	client *redis.Client
}

func NewRedisRegistry(client *redis.Client) *RedisRegistry {
	return &RedisRegistry{
		client: client,
	}
}

func (that *RedisRegistry) Create(ctx context.Context, playerID string) (string, error) {
	token, err := pkg.GenerateSessionToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}

	if err = that.client.HSet(ctx, sessionKeyPrefix+token, fieldPlayerID, playerID, fieldGameID, "").Err(); err != nil {
		return "", fmt.Errorf("failed to set session: %w", err)
	}

	return token, nil
}

// AttachGame - only a live session is updated, a concurrent Remove makes the write abort.
func (that *RedisRegistry) AttachGame(ctx context.Context, token, gameID string) error {
	key := sessionKeyPrefix + token

	err := that.watched(ctx, func(tx *redis.Tx) error {
		previous, err := tx.HGet(ctx, key, fieldGameID).Result()
		if errors.Is(err, redis.Nil) {
			return apperror.ErrInvalidSession
		}
		if err != nil {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if previous != "" {
				pipe.SRem(ctx, gameSessionsKeyPrefix+previous, token)
			}
			pipe.HSet(ctx, key, fieldGameID, gameID)
			pipe.SAdd(ctx, gameSessionsKeyPrefix+gameID, token)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, apperror.ErrInvalidSession) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to attach game to session: %w", err)
	}

	return nil
}

func (that *RedisRegistry) IsValid(ctx context.Context, token string) bool {
	if token == "" {
		return false
	}

	exists, err := that.client.Exists(ctx, sessionKeyPrefix+token).Result()
	return err == nil && exists == 1
}

func (that *RedisRegistry) Get(ctx context.Context, token string) (*entity.Session, error) {
	if token == "" {
		return nil, apperror.ErrInvalidSession
	}

	values, err := that.client.HGetAll(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) || (err == nil && len(values) == 0) {
		return nil, apperror.ErrInvalidSession
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}

	return &entity.Session{
		Token:    token,
		PlayerID: values[fieldPlayerID],
		GameID:   values[fieldGameID],
	}, nil
}

func (that *RedisRegistry) Remove(ctx context.Context, token string) error {
	key := sessionKeyPrefix + token

	err := that.watched(ctx, func(tx *redis.Tx) error {
		gameID, err := tx.HGet(ctx, key, fieldGameID).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if gameID != "" {
				pipe.SRem(ctx, gameSessionsKeyPrefix+gameID, token)
			}
			pipe.Del(ctx, key)
			return nil
		})
		return err
	}, key)
	if err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	return nil
}

// RepointGame - moves every live session of oldGameID to newGameID. Tokens whose session is gone are dropped.
func (that *RedisRegistry) RepointGame(ctx context.Context, oldGameID, newGameID string) error {
	oldKey := gameSessionsKeyPrefix + oldGameID

	tokens, err := that.client.SMembers(ctx, oldKey).Result()
	if err != nil {
		return fmt.Errorf("failed to read game sessions: %w", err)
	}

	if len(tokens) == 0 {
		return nil
	}

	keys := make([]string, 0, len(tokens)+1)
	keys = append(keys, oldKey)
	for _, token := range tokens {
		keys = append(keys, sessionKeyPrefix+token)
	}

	err = that.watched(ctx, func(tx *redis.Tx) error {
		live := make([]string, 0, len(tokens))
		for _, token := range tokens {
			exists, err := tx.Exists(ctx, sessionKeyPrefix+token).Result()
			if err != nil {
				return err
			}
			if exists == 1 {
				live = append(live, token)
			}
		}

		_, err := tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			for _, token := range live {
				pipe.HSet(ctx, sessionKeyPrefix+token, fieldGameID, newGameID)
				pipe.SAdd(ctx, gameSessionsKeyPrefix+newGameID, token)
			}
			pipe.Del(ctx, oldKey)
			return nil
		})
		return err
	}, keys...)
	if err != nil {
		return fmt.Errorf("failed to repoint sessions: %w", err)
	}

	return nil
}

// watched - runs fn as an optimistic transaction over keys, retrying while other clients keep touching them.
func (that *RedisRegistry) watched(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	for range maxTxRetries {
		err := that.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}

	return redis.TxFailedErr
}
