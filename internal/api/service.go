// Package api provides the HTTP handlers for executing and undoing roster
// transactions and for the read-only projections the league pages consume.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/draftleague/league-engine/internal/engine"
	"github.com/draftleague/league-engine/internal/model"
)

// Service exposes the transaction engine over HTTP.
type Service struct {
	engine *engine.Engine
	wsHub  *WSHub // optional hub for live transaction broadcasts
}

// NewService creates a new API service.
// Pass nil for hub if WebSocket broadcasting is not needed.
func NewService(eng *engine.Engine, hub *WSHub) *Service {
	return &Service{engine: eng, wsHub: hub}
}

// Routes mounts the API handlers on r.
func (s *Service) Routes(r chi.Router) {
	r.Post("/transactions", s.ExecuteAction)
	r.Get("/transactions", s.ListTransactions)
	r.Delete("/transactions/{transactionID}", s.UndoTransaction)
	r.Get("/teams/{teamID}/transaction-counts", s.GetTransactionCounts)
	r.Get("/seasons/{seasonID}/free-agents", s.ListFreeAgents)
	r.Get("/roster/{rosterID}/trade-lock", s.GetTradeLock)
	if s.wsHub != nil {
		r.Get("/ws", s.wsHub.HandleWS)
	}
}

// --- Request/Response types ---

// envelope carries the action tag of a POST /transactions body. The other
// fields of the body belong to the tagged action.
type envelope struct {
	Action engine.ActionKind `json:"action"`
}

// TradeLockResponse is the JSON body returned from GET /roster/{id}/trade-lock.
type TradeLockResponse struct {
	RosterID string `json:"roster_id"`
	Week     int    `json:"week"`
	Locked   bool   `json:"locked"`
}

// ErrorBody is the JSON error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries the engine error kind and message.
type ErrorDetail struct {
	Kind    engine.Kind `json:"kind"`
	Message string      `json:"message"`
}

// decodeAction parses an action envelope into its typed action.
// counts_against_limit defaults to true when the body omits it.
func decodeAction(body []byte) (engine.Action, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, err
	}

	var (
		a   engine.Action
		err error
	)
	switch env.Action {
	case engine.ActionFAPickup:
		v := engine.FAPickup{CountsAgainstLimit: true}
		err = json.Unmarshal(body, &v)
		a = v
	case engine.ActionFADrop:
		v := engine.FADrop{CountsAgainstLimit: true}
		err = json.Unmarshal(body, &v)
		a = v
	case engine.ActionFASwap:
		v := engine.FASwap{CountsAgainstLimit: true}
		err = json.Unmarshal(body, &v)
		a = v
	case engine.ActionP2PTrade:
		v := engine.P2PTrade{CountsAgainstLimit: true}
		err = json.Unmarshal(body, &v)
		a = v
	case engine.ActionTeraSwap:
		v := engine.TeraSwap{CountsAgainstLimit: true}
		err = json.Unmarshal(body, &v)
		a = v
	case engine.ActionUndo:
		var v engine.Undo
		err = json.Unmarshal(body, &v)
		a = v
	case "":
		return nil, errors.New("action is required")
	default:
		return nil, fmt.Errorf("unknown action %q", env.Action)
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// --- HTTP Handlers ---

// ExecuteAction handles POST /api/v1/transactions
// Dispatches one action envelope to the engine.
func (s *Service) ExecuteAction(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeValidation(w, "invalid request body")
		return
	}
	action, err := decodeAction(body)
	if err != nil {
		writeValidation(w, err.Error())
		return
	}

	tx, err := s.engine.Execute(r.Context(), action)
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusCreated
	if action.Kind() == engine.ActionUndo {
		status = http.StatusOK
		s.broadcast("transaction_undone", tx)
	} else {
		s.broadcast("transaction_executed", tx)
	}
	writeJSON(w, status, tx)
}

// UndoTransaction handles DELETE /api/v1/transactions/{transactionID}
func (s *Service) UndoTransaction(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "transactionID")

	tx, err := s.engine.Execute(r.Context(), engine.Undo{TransactionID: id})
	if err != nil {
		writeError(w, err)
		return
	}
	s.broadcast("transaction_undone", tx)
	writeJSON(w, http.StatusOK, tx)
}

// ListTransactions handles GET /api/v1/transactions
// Filters by ?season=, ?team= (primary or partner) and ?type=.
func (s *Service) ListTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.TransactionFilter{
		SeasonID:      q.Get("season"),
		SeasonCoachID: q.Get("team"),
		Type:          model.TransactionType(q.Get("type")),
	}

	txs, err := s.engine.ListTransactions(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// GetTransactionCounts handles GET /api/v1/teams/{teamID}/transaction-counts
func (s *Service) GetTransactionCounts(w http.ResponseWriter, r *http.Request) {
	counts, err := s.engine.TransactionCounts(r.Context(), chi.URLParam(r, "teamID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// ListFreeAgents handles GET /api/v1/seasons/{seasonID}/free-agents
func (s *Service) ListFreeAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := s.engine.ListFreeAgents(r.Context(), chi.URLParam(r, "seasonID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, agents)
}

// GetTradeLock handles GET /api/v1/roster/{rosterID}/trade-lock?week=N
func (s *Service) GetTradeLock(w http.ResponseWriter, r *http.Request) {
	rosterID := chi.URLParam(r, "rosterID")
	week, err := strconv.Atoi(r.URL.Query().Get("week"))
	if err != nil {
		writeValidation(w, "week must be an integer")
		return
	}

	locked, err := s.engine.IsTradeLocked(r.Context(), rosterID, week)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, TradeLockResponse{RosterID: rosterID, Week: week, Locked: locked})
}

func (s *Service) broadcast(kind string, tx *model.Transaction) {
	if s.wsHub == nil {
		return
	}
	s.wsHub.Broadcast(WSMessage{
		Type:          kind,
		TransactionID: tx.ID,
		SeasonID:      tx.SeasonID,
		TxType:        tx.Type,
		SeasonCoachID: tx.SeasonCoachID,
		PartnerID:     tx.TradingPartnerSeasonCoachID,
		Week:          tx.Week,
		PokemonIn:     tx.PokemonIn,
		PokemonOut:    tx.PokemonOut,
		BudgetChange:  tx.BudgetChange,
	})
}

// statusFor maps an engine error kind to its HTTP status.
func statusFor(kind engine.Kind) int {
	switch kind {
	case engine.KindValidation:
		return http.StatusBadRequest
	case engine.KindPrecondition, engine.KindConsistency:
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}

// writeError writes the structured error body for err.
func writeError(w http.ResponseWriter, err error) {
	kind := engine.KindOf(err)
	msg := err.Error()
	if kind == engine.KindStore {
		msg = "storage failure"
	}
	writeJSON(w, statusFor(kind), ErrorBody{Error: ErrorDetail{Kind: kind, Message: msg}})
}

func writeValidation(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorBody{Error: ErrorDetail{Kind: engine.KindValidation, Message: message}})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
