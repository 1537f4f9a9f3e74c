package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/skeesen8/blackjack/internal/auth"
	"github.com/skeesen8/blackjack/internal/engine"
	"github.com/skeesen8/blackjack/internal/history"
	"github.com/skeesen8/blackjack/internal/lobby"
	"github.com/skeesen8/blackjack/internal/registry"
	"github.com/skeesen8/blackjack/pkg/types"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 100
	commandTimeout      = 5 * time.Second
	maxBodyBytes        = 16 << 10
)

type createTableRequest struct {
	Name          string `json:"name"`
	MinBet        int    `json:"min_bet"`
	MaxBet        int    `json:"max_bet"`
	MaxPlayers    int    `json:"max_players"`
	StartingChips int    `json:"starting_chips"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// rulesFor applies the non-zero fields of req over base.
func rulesFor(base engine.Rules, req createTableRequest) (engine.Rules, error) {
	rules := base
	if req.MinBet < 0 || req.MaxBet < 0 || req.MaxPlayers < 0 || req.StartingChips < 0 {
		return rules, errors.New("table limits must not be negative")
	}
	if req.MinBet > 0 {
		rules.MinBet = req.MinBet
	}
	if req.MaxBet > 0 {
		rules.MaxBet = req.MaxBet
	}
	if req.MaxPlayers > 0 {
		rules.MaxPlayers = req.MaxPlayers
	}
	if req.StartingChips > 0 {
		rules.StartingChips = req.StartingChips
	}
	if rules.MaxBet < rules.MinBet {
		return rules, errors.New("max_bet must be at least min_bet")
	}
	return rules, nil
}

func CreateTable(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createTableRequest
		if err := decodeBody(w, r, &req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		rules, err := rulesFor(d.Rules, req)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		lb, err := d.Hub.Create(r.Context(), req.Name, rules)
		if err != nil {
			http.Error(w, "failed to create table", http.StatusServiceUnavailable)
			return
		}
		d.Log.Info("table created", zap.String("table_id", lb.ID()), zap.String("name", req.Name))

		writeJSON(w, http.StatusCreated, map[string]any{
			"success": true,
			"table":   lb.Summary(),
			"message": "Table created successfully",
		})
	}
}

func ListTables(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		var phase engine.Phase
		if s := q.Get("state"); s != "" {
			p, ok := engine.ParsePhase(s)
			if !ok {
				http.Error(w, "unknown state "+strconv.Quote(s), http.StatusBadRequest)
				return
			}
			phase = p
		}
		availableOnly := false
		if s := q.Get("available_only"); s != "" {
			b, err := strconv.ParseBool(s)
			if err != nil {
				http.Error(w, "available_only must be a boolean", http.StatusBadRequest)
				return
			}
			availableOnly = b
		}

		all, err := d.Hub.List(r.Context())
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}
		tables := make([]types.TableSummary, 0, len(all))
		for _, lb := range all {
			s := lb.Summary()
			if phase != "" && s.State != string(phase) {
				continue
			}
			if availableOnly && s.IsFull {
				continue
			}
			tables = append(tables, s)
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"tables":  tables,
			"count":   len(tables),
			"filters": map[string]any{"state": string(phase), "available_only": availableOnly},
		})
	}
}

// TableStats counts tables by state.
func TableStats(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := d.Hub.List(r.Context())
		if err != nil {
			http.Error(w, "server shutting down", http.StatusServiceUnavailable)
			return
		}

		states := map[string]int{}
		for _, p := range []engine.Phase{engine.PhaseWaiting, engine.PhasePlaying, engine.PhaseDealerTurn, engine.PhaseFinished} {
			states[string(p)] = 0
		}
		var available, full, players int
		for _, lb := range all {
			s := lb.Summary()
			states[s.State]++
			players += s.PlayerCount
			if s.IsFull {
				full++
			} else {
				available++
			}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"stats": map[string]any{
				"total_tables":     len(all),
				"available_tables": available,
				"full_tables":      full,
				"active_games":     states[string(engine.PhasePlaying)] + states[string(engine.PhaseDealerTurn)],
				"waiting_tables":   states[string(engine.PhaseWaiting)],
				"total_players":    players,
				"states":           states,
			},
		})
	}
}

// lookup resolves {tableID} or writes the error response.
func lookup(d Deps, w http.ResponseWriter, r *http.Request) (*lobby.Lobby, bool) {
	lb, err := d.Hub.Get(r.Context(), chi.URLParam(r, "tableID"))
	if err != nil {
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return nil, false
	}
	if lb == nil {
		http.Error(w, "table not found", http.StatusNotFound)
		return nil, false
	}
	return lb, true
}

func tableView(ctx context.Context, lb *lobby.Lobby) (lobby.View, error) {
	reply := make(chan lobby.View, 1)
	if !lb.Send(ctx, lobby.GetState{Reply: reply}) {
		return lobby.View{}, errors.New("table closed")
	}
	select {
	case v := <-reply:
		return v, nil
	case <-lb.Done():
		return lobby.View{}, errors.New("table closed")
	case <-ctx.Done():
		return lobby.View{}, ctx.Err()
	}
}

func GetTable(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		lb, ok := lookup(d, w, r)
		if !ok {
			return
		}
		v, err := tableView(r.Context(), lb)
		if err != nil {
			http.Error(w, "table not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":     true,
			"table":       v.Table,
			"connections": v.NumConns,
		})
	}
}

func TableHistory(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if d.History == nil {
			http.Error(w, history.ErrUnsupported.Error(), http.StatusNotImplemented)
			return
		}
		limit := defaultHistoryLimit
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 {
				http.Error(w, "limit must be a positive integer", http.StatusBadRequest)
				return
			}
			limit = min(n, maxHistoryLimit)
		}

		rounds, err := d.History.Recent(r.Context(), chi.URLParam(r, "tableID"), limit)
		if errors.Is(err, history.ErrUnsupported) {
			http.Error(w, err.Error(), http.StatusNotImplemented)
			return
		}
		if err != nil {
			d.Log.Error("read history", zap.Error(err))
			http.Error(w, "failed to read history", http.StatusInternalServerError)
			return
		}
		if rounds == nil {
			rounds = []history.Round{}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success": true,
			"rounds":  rounds,
			"count":   len(rounds),
		})
	}
}

// Command runs one inbound envelope against a table on behalf of the token's
// player and returns the private reply. Commands that only broadcast are
// answered with the resulting table state.
func Command(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, ok := auth.FromContext(r.Context())
		if !ok {
			http.Error(w, auth.ErrMissingToken.Error(), http.StatusUnauthorized)
			return
		}

		var msg types.ClientMessage
		if err := decodeBody(w, r, &msg); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if msg.Type == types.MsgChatMessage {
			http.Error(w, "chat is only available over websocket", http.StatusBadRequest)
			return
		}
		msg.PlayerID = claims.PlayerID
		if msg.PlayerName == "" {
			msg.PlayerName = claims.Name
		}

		lb, ok := lookup(d, w, r)
		if !ok {
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), commandTimeout)
		defer cancel()

		capture := registry.NewCapture("rest-" + uuid.NewString())
		done := make(chan struct{})
		if !lb.Send(ctx, lobby.Inbound{From: capture, Msg: msg, Done: done}) {
			http.Error(w, "table closed", http.StatusServiceUnavailable)
			return
		}
		select {
		case <-done:
		case <-lb.Done():
			http.Error(w, "table closed", http.StatusServiceUnavailable)
			return
		case <-ctx.Done():
			http.Error(w, "command timed out", http.StatusGatewayTimeout)
			return
		}
		capture.Close()

		replies := capture.Messages()
		if len(replies) == 0 {
			v, err := tableView(ctx, lb)
			if err != nil {
				http.Error(w, "table closed", http.StatusServiceUnavailable)
				return
			}
			writeJSON(w, http.StatusOK, types.ServerMessage{
				Type:       types.MsgTableState,
				Success:    true,
				TableState: &v.Table,
				Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
			})
			return
		}

		var reply types.ServerMessage
		if err := json.Unmarshal(replies[0], &reply); err != nil {
			http.Error(w, "bad reply", http.StatusInternalServerError)
			return
		}
		status := http.StatusOK
		if reply.Type == types.MsgError {
			status = statusFor(engine.Code(reply.Code))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write(replies[0])
	}
}

func statusFor(code engine.Code) int {
	switch code {
	case engine.CodeNotFound:
		return http.StatusNotFound
	case engine.CodeTableFull, engine.CodeInvalidState:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func Healthz(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := d.Hub.List(r.Context())
		if err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "shutting_down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"status":        "ok",
			"active_tables": len(all),
		})
	}
}
