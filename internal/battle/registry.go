package battle

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/kodzimk/head2head/internal/obslog"
)

// SessionHandle identifies one live connection bound to a battle participant.
type SessionHandle struct {
	ID       uint64
	BattleID string
	Username string
}

type session struct {
	handle SessionHandle
	sender Sender
}

// Registry tracks live connections per battle and routes outbound events.
// Sends are best-effort: a failed send removes the connection and never
// propagates to the caller.
type Registry struct {
	mu       sync.RWMutex
	byBattle map[string]map[string]*session
	seq      uint64
}

func NewRegistry() *Registry {
	return &Registry{byBattle: make(map[string]map[string]*session)}
}

// Bind stores the connection keyed by battle and participant. A participant
// reconnecting replaces their previous connection.
func (r *Registry) Bind(battleID, username string, s Sender) *SessionHandle {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byBattle[battleID]
	if m == nil {
		m = make(map[string]*session, 2)
		r.byBattle[battleID] = m
	}
	h := SessionHandle{
		ID:       atomic.AddUint64(&r.seq, 1),
		BattleID: battleID,
		Username: username,
	}
	m[username] = &session{handle: h, sender: s}
	return &h
}

// Unbind removes the mapping for the handle. It reports whether this was the
// last live connection for the battle; the caller owns the follow-up cleanup.
func (r *Registry) Unbind(h *SessionHandle) (last bool) {
	if h == nil {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.byBattle[h.BattleID]
	if m == nil {
		return false
	}
	cur, ok := m[h.Username]
	if !ok || cur.handle.ID != h.ID {
		// superseded by a reconnect; nothing to remove
		return false
	}
	delete(m, h.Username)
	if len(m) == 0 {
		delete(r.byBattle, h.BattleID)
		return true
	}
	return false
}

// SendTo delivers to the participant's current connection if live, else no-op.
func (r *Registry) SendTo(battleID, username string, v any) {
	r.mu.RLock()
	var target *session
	if m := r.byBattle[battleID]; m != nil {
		target = m[username]
	}
	r.mu.RUnlock()
	if target == nil {
		return
	}
	if err := target.sender.Send(v); err != nil {
		obslog.L().Warn("registry_send_failed",
			zap.String("battle_id", battleID),
			zap.String("username", username),
			zap.Error(err),
		)
		r.drop(&target.handle)
	}
}

// Broadcast sends to every connection attached to the battle.
func (r *Registry) Broadcast(battleID string, v any) {
	r.mu.RLock()
	targets := make([]*session, 0, 2)
	for _, s := range r.byBattle[battleID] {
		targets = append(targets, s)
	}
	r.mu.RUnlock()
	for _, s := range targets {
		if err := s.sender.Send(v); err != nil {
			obslog.L().Warn("registry_broadcast_send_failed",
				zap.String("battle_id", battleID),
				zap.String("username", s.handle.Username),
				zap.Error(err),
			)
			r.drop(&s.handle)
		}
	}
}

// HasLive reports whether any connection is attached to the battle.
func (r *Registry) HasLive(battleID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byBattle[battleID]) > 0
}

// Connected returns the usernames currently attached to the battle.
func (r *Registry) Connected(battleID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.byBattle[battleID]))
	for u := range r.byBattle[battleID] {
		out = append(out, u)
	}
	return out
}

// Release drops every connection entry for the battle.
func (r *Registry) Release(battleID string) {
	r.mu.Lock()
	delete(r.byBattle, battleID)
	r.mu.Unlock()
}

func (r *Registry) drop(h *SessionHandle) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if m := r.byBattle[h.BattleID]; m != nil {
		if cur, ok := m[h.Username]; ok && cur.handle.ID == h.ID {
			delete(m, h.Username)
			if len(m) == 0 {
				delete(r.byBattle, h.BattleID)
			}
		}
	}
}
