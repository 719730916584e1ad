package web_server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/lefinal/arena-server/arena"
	"github.com/lefinal/arena-server/errors"
	"github.com/lefinal/arena-server/logging"
	"github.com/lefinal/arena-server/messages"
	"github.com/lefinal/arena-server/stores"
	"github.com/lefinal/arena-server/ws"
)

// MatchService is the surface the match API relays to.
type MatchService interface {
	// CreateMatch creates a match for the two paired users and returns its id.
	CreateMatch(ctx context.Context, users [2]messages.UserID, modeConfig arena.ModeConfig) (messages.MatchID, error)
	// Snapshot retrieves the current full state of the match.
	Snapshot(ctx context.Context, matchID messages.MatchID) (messages.MessageFullState, error)
	// MatchRecord retrieves the persisted match record. Unlike Snapshot this also
	// serves matches that already left the arena.
	MatchRecord(ctx context.Context, matchID messages.MatchID) (stores.Match, error)
}

// PopulateRoutes populates the WebServer with the routes.
func (server *WebServer) PopulateRoutes(hub *ws.Hub, wsCtx context.Context, matches MatchService) {
	// Websocket stuff.
	server.router.HandleFunc("/ws", ws.HandleWS(hub, wsCtx))
	// API stuff.
	apiRouter := server.router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/health", handleHealth()).Methods(http.MethodGet)
	apiRouter.HandleFunc("/matches", handleCreateMatch(matches)).Methods(http.MethodPost)
	apiRouter.HandleFunc("/matches/{matchID}", handleMatchState(matches)).Methods(http.MethodGet)
	apiRouter.HandleFunc("/matches/{matchID}/record", handleMatchRecord(matches)).Methods(http.MethodGet)
}

// createMatchRequest is the request body for creating a match.
type createMatchRequest struct {
	// GameMode selects the mode strategy for the match.
	GameMode messages.GameMode `json:"game_mode"`
	// Users are the two paired players.
	Users [2]messages.UserID `json:"users"`
	// TimeLimitSec is the time limit for coding-battle matches.
	TimeLimitSec int `json:"time_limit_sec,omitempty"`
	// TestCases are the opaque test case references for coding-battle matches.
	TestCases []string `json:"test_cases,omitempty"`
	// AnswerKey holds the correct option id per question for rapid-fire matches.
	AnswerKey []string `json:"answer_key,omitempty"`
}

// createMatchResponse is the response body for a created match.
type createMatchResponse struct {
	// MatchID is the id of the created match.
	MatchID messages.MatchID `json:"match_id"`
}

func handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

func handleCreateMatch(matches MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var request createMatchRequest
		err := json.NewDecoder(r.Body).Decode(&request)
		if err != nil {
			respondError(w, errors.NewJSONError(err, "decode create-match request", true))
			return
		}
		matchID, err := matches.CreateMatch(r.Context(), request.Users, arena.ModeConfig{
			GameMode:  request.GameMode,
			TimeLimit: time.Duration(request.TimeLimitSec) * time.Second,
			TestCases: request.TestCases,
			AnswerKey: request.AnswerKey,
		})
		if err != nil {
			respondError(w, errors.Wrap(err, "create match", nil))
			return
		}
		respondJSON(w, http.StatusCreated, createMatchResponse{MatchID: matchID})
	}
}

func handleMatchState(matches MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := messages.MatchID(mux.Vars(r)["matchID"])
		snapshot, err := matches.Snapshot(r.Context(), matchID)
		if err != nil {
			respondError(w, errors.Wrap(err, "snapshot match", errors.Details{"match": matchID}))
			return
		}
		respondJSON(w, http.StatusOK, snapshot)
	}
}

// matchRecordResponse is the response body for a persisted match record.
type matchRecordResponse struct {
	// MatchID is the id of the match.
	MatchID messages.MatchID `json:"match_id"`
	// GameMode is the mode the match uses.
	GameMode messages.GameMode `json:"game_mode"`
	// Users are the two paired players.
	Users [2]messages.UserID `json:"users"`
	// State is the last persisted match state.
	State messages.MatchState `json:"state"`
	// Created is when the match was created.
	Created time.Time `json:"created"`
}

func handleMatchRecord(matches MatchService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		matchID := messages.MatchID(mux.Vars(r)["matchID"])
		record, err := matches.MatchRecord(r.Context(), matchID)
		if err != nil {
			respondError(w, errors.Wrap(err, "match record", errors.Details{"match": matchID}))
			return
		}
		respondJSON(w, http.StatusOK, matchRecordResponse{
			MatchID:  record.ID,
			GameMode: record.GameMode,
			Users:    [2]messages.UserID{record.UserA, record.UserB},
			State:    record.State,
			Created:  record.Created,
		})
	}
}

// respondJSON writes the given payload as JSON with the given status code.
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	err := json.NewEncoder(w).Encode(payload)
	if err != nil {
		errors.Log(logging.WebServerLogger, errors.NewJSONError(err, "encode response payload", false))
	}
}

// respondError logs the error and writes it as JSON with the matching status
// code. Internal details are redacted the same way as for websocket clients.
func respondError(w http.ResponseWriter, e error) {
	errors.Log(logging.WebServerLogger, e)
	respondJSON(w, statusFromError(e), messages.MessageErrorFromError(e))
}

// statusFromError maps the error code to an HTTP status code.
func statusFromError(e error) int {
	castedErr, _ := errors.Cast(e)
	switch castedErr.Code {
	case errors.ErrNotFound:
		return http.StatusNotFound
	case errors.ErrBadRequest, errors.ErrProtocolViolation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
