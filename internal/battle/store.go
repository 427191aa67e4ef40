package battle

import (
	"sort"
	"sync"
	"time"
)

// duel is the battle-scoped aggregate: every piece of mutable duel state is
// created and evicted as one unit, so the "all maps present or all absent"
// invariant holds per battle id.
type duel struct {
	battle       *Battle
	questions    []Question
	scores       map[string]int
	progress     map[string]*Progress
	status       Status
	startedAt    time.Time
	lastActivity time.Time
	checkCount   int
}

func newDuel(b *Battle, now time.Time) *duel {
	return &duel{
		battle:       b,
		scores:       make(map[string]int, 2),
		progress:     make(map[string]*Progress, 2),
		status:       StatusCreated,
		startedAt:    now,
		lastActivity: now,
	}
}

// addParticipant binds the username to one of the two battle slots and
// initializes score 0 / index -1 state. Rejoining an existing slot is a no-op.
func (d *duel) addParticipant(username string) error {
	if username == "" {
		return ErrInvalidArgs
	}
	switch {
	case d.battle.FirstOpponent == username || d.battle.SecondOpponent == username:
		// reconnect
	case d.battle.FirstOpponent == "":
		d.battle.FirstOpponent = username
	case d.battle.SecondOpponent == "":
		d.battle.SecondOpponent = username
	default:
		return ErrBattleFull
	}
	if _, ok := d.scores[username]; !ok {
		d.scores[username] = 0
	}
	if _, ok := d.progress[username]; !ok {
		d.progress[username] = &Progress{Index: -1}
	}
	return nil
}

// participantPair resolves both identifiers from the battle record, falling
// back to the score-map keys when the record is incomplete or already gone.
func (d *duel) participantPair() (string, string) {
	if d.battle != nil && d.battle.FirstOpponent != "" && d.battle.SecondOpponent != "" {
		return d.battle.FirstOpponent, d.battle.SecondOpponent
	}
	keys := make([]string, 0, len(d.scores))
	for u := range d.scores {
		keys = append(keys, u)
	}
	sort.Strings(keys)
	switch len(keys) {
	case 0:
		return "", ""
	case 1:
		return keys[0], ""
	default:
		return keys[0], keys[1]
	}
}

func (d *duel) opponentOf(username string) string {
	a, b := d.participantPair()
	if a == username {
		return b
	}
	if b == username {
		return a
	}
	return ""
}

func (d *duel) matched() bool {
	return d.battle != nil && d.battle.FirstOpponent != "" && d.battle.SecondOpponent != ""
}

func (d *duel) scoresCopy() map[string]int {
	out := make(map[string]int, len(d.scores))
	for u, s := range d.scores {
		out[u] = s
	}
	return out
}

func (d *duel) touch(now time.Time) { d.lastActivity = now }

// readyToComplete is the completion detector: both-finished, hard time cap,
// or stale wait on a silent opponent. The check counter is diagnostic only
// and never blocks a positive condition.
func (d *duel) readyToComplete(now time.Time, timeCap, staleWait time.Duration) bool {
	d.checkCount++
	if len(d.questions) == 0 || len(d.scores) == 0 {
		return false
	}
	a, b := d.participantPair()
	if a == "" || b == "" {
		return false
	}
	pa, pb := d.progress[a], d.progress[b]
	if pa == nil || pb == nil {
		return false
	}
	total := len(d.questions)

	bothFinished := pa.Finished && pb.Finished &&
		pa.AnswerCount() >= total && pb.AnswerCount() >= total
	if bothFinished {
		return true
	}

	timeExpired := now.Sub(d.startedAt) > timeCap &&
		pa.AnswerCount() >= 1 && pb.AnswerCount() >= 1
	if timeExpired {
		return true
	}

	if pa.Finished != pb.Finished {
		finished := pa
		if pb.Finished {
			finished = pb
		}
		if now.Sub(finished.FinishedAt) > staleWait {
			return true
		}
	}
	return false
}

// Store owns every live duel aggregate, keyed by battle id. Mutations run as
// short steps under one lock; handlers never hold it across sends or
// collaborator calls.
type Store struct {
	mu    sync.Mutex
	duels map[string]*duel
}

func NewStore() *Store {
	return &Store{duels: make(map[string]*duel)}
}

// Len reports the number of live battles.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.duels)
}

// IDs returns a snapshot of live battle ids, for the sweeper.
func (s *Store) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.duels))
	for id := range s.duels {
		out = append(out, id)
	}
	return out
}
