package msgcat

import (
	"go.uber.org/zap"

	"github.com/kodzimk/head2head/internal/obslog"
)

// BattleNotices renders the human-readable lines attached to battle events.
// Render failures fall back to an empty string; the events stay usable
// without the text.
type BattleNotices struct {
	cat *Catalog
}

func NewBattleNotices(cat *Catalog) *BattleNotices {
	return &BattleNotices{cat: cat}
}

func (n *BattleNotices) WaitingForOpponent(opponent string) string {
	key := "battle.waiting_for_opponent"
	data := map[string]string{"Opponent": opponent}
	if opponent == "" {
		key = "battle.waiting_for_opponent_unknown"
	}
	return n.render(key, data)
}

func (n *BattleNotices) BattleFinished(result, winner string) string {
	if result == "draw" {
		return n.render("battle.finished_draw", nil)
	}
	return n.render("battle.finished_win", map[string]string{"Winner": winner})
}

func (n *BattleNotices) render(key string, data any) string {
	if n == nil || n.cat == nil {
		return ""
	}
	out, err := n.cat.Render(key, data)
	if err != nil {
		obslog.L().Warn("notice_render_failed", zap.String("key", key), zap.Error(err))
		return ""
	}
	return out
}
