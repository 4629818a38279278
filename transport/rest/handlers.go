package rest

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rocketscienceinc/tictactoe-duel/internal/apperror"
	"github.com/rocketscienceinc/tictactoe-duel/transport/wire"
)

func (that *Server) PingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		that.logger.Error("failed to write pong", "error", err)
	}
}

func (that *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players, err := that.players.ListPlayers(r.Context())
	if err != nil {
		that.respondError(w, "handleListPlayers", err)
		return
	}

	that.respondJSON(w, http.StatusOK, players)
}

func (that *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	player, err := that.players.GetPlayer(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		that.respondError(w, "handleGetPlayer", err)
		return
	}

	that.respondJSON(w, http.StatusOK, player)
}

func (that *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games, err := that.games.ListGames(r.Context())
	if err != nil {
		that.respondError(w, "handleListGames", err)
		return
	}

	that.respondJSON(w, http.StatusOK, wire.NewGames(games))
}

func (that *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	game, err := that.games.GetGame(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		that.respondError(w, "handleGetGame", err)
		return
	}

	that.respondJSON(w, http.StatusOK, wire.NewGame(game))
}

func (that *Server) handleWinRecords(w http.ResponseWriter, r *http.Request) {
	records, err := that.games.WinRecords(r.Context())
	if err != nil {
		that.respondError(w, "handleWinRecords", err)
		return
	}

	that.respondJSON(w, http.StatusOK, records)
}

func (that *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		that.logger.Error("failed to encode response", "error", err)
	}
}

type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func (that *Server) respondError(w http.ResponseWriter, method string, err error) {
	kind := apperror.KindOf(err)
	if kind == apperror.KindUnknown {
		that.logger.Error("request failed", "method", method, "error", err)
	}

	that.respondJSON(w, statusFor(kind), errorBody{Error: apperror.Message(err), Kind: kind.String()})
}

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindConflict, apperror.KindState:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
