package websocket

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/internal/entity"
	"github.com/rocketscienceinc/tictactoe-duel/transport/wire"
)

// Inbound events.
const (
	eventCreatePlayer     = "createPlayer"
	eventCreateGame       = "createGame"
	eventJoinGame         = "joinGame"
	eventMakeMove         = "makeMove"
	eventRestartGame      = "restartGame"
	eventRequestGameState = "requestGameState"
	eventValidateSession  = "validateSession"
	eventWinningRecords   = "winningRecords"
	eventEndSession       = "endSession"
	eventGetAllPlayers    = "getAllPlayers"
	eventGetPlayer        = "getPlayer"
	eventGetAllGames      = "getAllGames"
)

// Outbound events.
const (
	eventPlayerResponse          = "playerResponse"
	eventGameResponse            = "gameResponse"
	eventGameJoinedResponse      = "gameJoinedResponse"
	eventGameMoveResponse        = "gameMoveResponse"
	eventGameOver                = "gameOver"
	eventGameRestartedResponse   = "gameRestartedResponse"
	eventGameStateResponse       = "gameStateResponse"
	eventValidateSessionResponse = "validateSessionResponse"
	eventWinningRecordsResponse  = "winningRecordsResponse"
	eventError                   = "error"
)

// Response types carried in the payload's "type" field.
const (
	typeError            = "error"
	typePlayerCreated    = "playerCreated"
	typeAllPlayers       = "allPlayers"
	typeSinglePlayer     = "singlePlayer"
	typeGameCreated      = "gameCreated"
	typeNewGameAvailable = "newGameAvailable"
	typeAllGames         = "allGames"
	typeGameJoined       = "gameJoined"
	typeMoveMade         = "moveMade"
	typeGameOver         = "gameOver"
	typeGameRestarted    = "gameRestarted"
	typeGameState        = "gameState"
	typeWinRecords       = "winRecords"
)

// Message is the envelope of every frame in both directions.
type Message struct {
	Event   string          `json:"event"`
	ID      string          `json:"id,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type outbound struct {
	Event   string `json:"event"`
	ID      string `json:"id,omitempty"`
	Payload any    `json:"payload"`
}

// request is implemented by every inbound payload.
type request interface {
	Validate() error
}

// decodePayload - unmarshals msg's payload into req and validates it.
func decodePayload(msg *Message, req request) error {
	if len(msg.Payload) > 0 && string(msg.Payload) != "null" {
		if err := json.Unmarshal(msg.Payload, req); err != nil {
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &typeErr) && typeErr.Field != "" {
				return apperror.ErrInvalidPayload.With(typeErr.Field + " has the wrong type")
			}
			return apperror.ErrInvalidPayload
		}
	}

	return req.Validate()
}

func requireFields(fields ...[2]string) error {
	var missing []string
	for _, field := range fields {
		if strings.TrimSpace(field[1]) == "" {
			missing = append(missing, field[0])
		}
	}

	if len(missing) > 0 {
		return apperror.ErrMissingField.With(strings.Join(missing, ", "))
	}

	return nil
}

type createPlayerRequest struct {
	Name string `json:"name"`
}

func (that *createPlayerRequest) Validate() error {
	return requireFields([2]string{"name", that.Name})
}

type createGameRequest struct {
	PlayerID     string `json:"playerId"`
	SessionToken string `json:"sessionToken"`
}

func (that *createGameRequest) Validate() error {
	return requireFields([2]string{"playerId", that.PlayerID})
}

type joinGameRequest struct {
	SessionToken string `json:"sessionToken"`
	GameID       string `json:"gameId"`
}

func (that *joinGameRequest) Validate() error {
	return requireFields([2]string{"sessionToken", that.SessionToken}, [2]string{"gameId", that.GameID})
}

type makeMoveRequest struct {
	PlayerID string `json:"playerId"`
	GameID   string `json:"gameId"`
	Position *int   `json:"position"`
}

func (that *makeMoveRequest) Validate() error {
	if err := requireFields([2]string{"playerId", that.PlayerID}, [2]string{"gameId", that.GameID}); err != nil {
		return err
	}

	if that.Position == nil {
		return apperror.ErrMissingField.With("position")
	}

	return nil
}

type restartGameRequest struct {
	GameID string `json:"gameId"`
}

func (that *restartGameRequest) Validate() error {
	return requireFields([2]string{"gameId", that.GameID})
}

type gameStateRequest struct {
	GameID       string `json:"gameId"`
	SessionToken string `json:"sessionToken"`
}

func (that *gameStateRequest) Validate() error {
	return requireFields([2]string{"gameId", that.GameID}, [2]string{"sessionToken", that.SessionToken})
}

type sessionRequest struct {
	SessionToken string `json:"sessionToken"`
}

func (that *sessionRequest) Validate() error {
	return requireFields([2]string{"sessionToken", that.SessionToken})
}

type getPlayerRequest struct {
	PlayerID string `json:"playerId"`
}

func (that *getPlayerRequest) Validate() error {
	return requireFields([2]string{"playerId", that.PlayerID})
}

type errorResponse struct {
	Type    string `json:"type"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func newErrorResponse(err error) errorResponse {
	return errorResponse{
		Type:    typeError,
		Kind:    apperror.KindOf(err).String(),
		Message: apperror.Message(err),
	}
}

type playerResponse struct {
	Type         string         `json:"type"`
	Player       *entity.Player `json:"player"`
	SessionToken string         `json:"sessionToken,omitempty"`
}

type playerListResponse struct {
	Type    string           `json:"type"`
	Players []*entity.Player `json:"players"`
}

type gameResponse struct {
	Type string     `json:"type"`
	Game *wire.Game `json:"game"`
}

type gameListResponse struct {
	Type  string       `json:"type"`
	Games []*wire.Game `json:"games"`
}

type gameJoinedResponse struct {
	Type      string                `json:"type"`
	Game      *wire.Game            `json:"game"`
	PlayerTwo *entity.PlayerSummary `json:"playerTwo"`
}

type gameMoveResponse struct {
	Type        string     `json:"type"`
	GameID      string     `json:"gameId"`
	Board       wire.Board `json:"board"`
	CurrentTurn string     `json:"currentTurn"`
}

type gameOverResponse struct {
	Type    string     `json:"type"`
	GameID  string     `json:"gameId"`
	Status  string     `json:"status"`
	Board   wire.Board `json:"board"`
	Winner  *string    `json:"winner,omitempty"`
	Message string     `json:"message"`
}

type gameRestartedResponse struct {
	Type      string `json:"type"`
	OldGameID string `json:"oldGameId"`
	NewGameID string `json:"newGameId"`
}

type gameStateResponse struct {
	Type        string                `json:"type"`
	GameID      string                `json:"gameId"`
	Board       wire.Board            `json:"board"`
	Status      string                `json:"status"`
	PlayerOne   *entity.PlayerSummary `json:"playerOne"`
	PlayerTwo   *entity.PlayerSummary `json:"playerTwo"`
	CurrentTurn *string               `json:"currentTurn"`
	Winner      *string               `json:"winner"`
}

type validateSessionResponse struct {
	Valid       bool       `json:"valid"`
	PlayerID    string     `json:"playerId,omitempty"`
	PlayerName  string     `json:"playerName,omitempty"`
	GameID      string     `json:"gameId,omitempty"`
	Board       wire.Board `json:"board,omitempty"`
	IsPlayerOne *bool      `json:"isPlayerOne,omitempty"`
	GameStarted *bool      `json:"gameStarted,omitempty"`
}

type winningRecordsResponse struct {
	Type    string             `json:"type"`
	Records []entity.WinRecord `json:"records"`
}
