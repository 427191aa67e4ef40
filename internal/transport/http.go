package transport

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kodzimk/head2head/internal/obslog"
)

type createBattleRequest struct {
	Sport string `json:"sport"`
	Level string `json:"level"`
}

type createBattleResponse struct {
	BattleID string `json:"battle_id"`
	Sport    string `json:"sport"`
	Level    string `json:"level"`
}

// RegisterHTTP mounts the plain HTTP routes next to the websocket one.
func (h *Handler) RegisterHTTP(mux *http.ServeMux) {
	mux.HandleFunc("POST /battles", h.createBattle)
	mux.HandleFunc("GET /healthz", h.health)
}

// createBattle mints the battle id the two participants will connect with.
// The duel state itself is created lazily by the first websocket join.
func (h *Handler) createBattle(w http.ResponseWriter, r *http.Request) {
	var req createBattleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	resp := createBattleResponse{
		BattleID: uuid.NewString(),
		Sport:    strings.TrimSpace(req.Sport),
		Level:    strings.TrimSpace(req.Level),
	}
	obslog.L().Info("battle_created",
		zap.String("battle_id", resp.BattleID),
		zap.String("sport", resp.Sport),
		zap.String("level", resp.Level),
	)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":       "ok",
		"live_battles": h.engine.LiveBattles(),
	})
}
