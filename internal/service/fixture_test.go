package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/internal/repository"
	"github.com/rocketscienceinc/tictactoe-duel/internal/session"
	"github.com/rocketscienceinc/tictactoe-duel/testing/suite"
)

type fixture struct {
	ctx context.Context

	registry *session.MemoryRegistry
	gameplay GamePlayService
	players  PlayerService
	sessions SessionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	ctx, db := suite.NewSQLite(t)
	logger := suite.NewLogger()

	gameRepo := repository.NewSQLGameRepository(db.Connection)
	playerRepo := repository.NewSQLPlayerRepository(db.Connection)
	registry := session.NewMemoryRegistry()

	return &fixture{
		ctx:      ctx,
		registry: registry,
		gameplay: NewGamePlayService(logger, gameRepo, playerRepo, registry),
		players:  NewPlayerService(logger, playerRepo, gameRepo, registry),
		sessions: NewSessionService(registry, playerRepo, gameRepo),
	}
}

type registered struct {
	player *entity.Player
	token  string
}

func (that *fixture) register(t *testing.T, name string) registered {
	t.Helper()

	player, token, err := that.players.CreatePlayer(that.ctx, name)
	require.NoError(t, err)

	return registered{player: player, token: token}
}

// startGame - alice creates a game and bob joins it.
func (that *fixture) startGame(t *testing.T, alice, bob registered) *entity.Game {
	t.Helper()

	game, err := that.gameplay.CreateGame(that.ctx, alice.player.ID, alice.token)
	require.NoError(t, err)

	joined, err := that.gameplay.JoinGame(that.ctx, bob.token, game.ID)
	require.NoError(t, err)

	return joined.Game
}

// play - alternates moves starting with player one, returning the last result.
func (that *fixture) play(t *testing.T, game *entity.Game, positions ...int) *MoveResult {
	t.Helper()

	var result *MoveResult
	for i, position := range positions {
		player := game.PlayerOneID
		if i%2 == 1 {
			player = game.PlayerTwoID
		}

		var err error
		result, err = that.gameplay.MakeMove(that.ctx, player, game.ID, position)
		require.NoError(t, err)
	}

	return result
}

type mockGameRepo struct {
	mock.Mock
}

func (that *mockGameRepo) Create(ctx context.Context, playerOneID string) (*entity.Game, error) {
	args := that.Called(ctx, playerOneID)
	game, _ := args.Get(0).(*entity.Game)
	return game, args.Error(1)
}

func (that *mockGameRepo) Insert(ctx context.Context, game *entity.Game) error {
	return that.Called(ctx, game).Error(0)
}

func (that *mockGameRepo) Save(ctx context.Context, game *entity.Game) error {
	return that.Called(ctx, game).Error(0)
}

func (that *mockGameRepo) GetByID(ctx context.Context, id string) (*entity.Game, error) {
	args := that.Called(ctx, id)
	game, _ := args.Get(0).(*entity.Game)
	return game, args.Error(1)
}

func (that *mockGameRepo) List(ctx context.Context) ([]*entity.Game, error) {
	args := that.Called(ctx)
	games, _ := args.Get(0).([]*entity.Game)
	return games, args.Error(1)
}

func (that *mockGameRepo) ListFinishedWithWinner(ctx context.Context) ([]*entity.Game, error) {
	args := that.Called(ctx)
	games, _ := args.Get(0).([]*entity.Game)
	return games, args.Error(1)
}

type mockPlayerRepo struct {
	mock.Mock
}

func (that *mockPlayerRepo) Create(ctx context.Context, name string) (*entity.Player, error) {
	args := that.Called(ctx, name)
	player, _ := args.Get(0).(*entity.Player)
	return player, args.Error(1)
}

func (that *mockPlayerRepo) GetByID(ctx context.Context, id string) (*entity.Player, error) {
	args := that.Called(ctx, id)
	player, _ := args.Get(0).(*entity.Player)
	return player, args.Error(1)
}

func (that *mockPlayerRepo) List(ctx context.Context) ([]*entity.Player, error) {
	args := that.Called(ctx)
	players, _ := args.Get(0).([]*entity.Player)
	return players, args.Error(1)
}

// failingRegistry - a memory registry whose game bookkeeping always fails.
type failingRegistry struct {
	*session.MemoryRegistry
}

func (that *failingRegistry) AttachGame(_ context.Context, _, _ string) error {
	return errStorageDown
}

func (that *failingRegistry) RepointGame(_ context.Context, _, _ string) error {
	return errStorageDown
}
