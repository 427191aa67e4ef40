package battle

import "sync"

// completionGuard makes the finalization pipeline idempotent across its
// independent trigger sites (pacing re-check, sweep tick, disconnect). The
// "triggered" set is permanent for a battle id's lifetime; "inflight" only
// brackets a finalize run so near-simultaneous triggers cannot re-enter
// before the permanent marker lands. "processed" is finalize's own internal
// once-marker.
type completionGuard struct {
	mu        sync.Mutex
	triggered map[string]struct{}
	inflight  map[string]struct{}
	processed map[string]struct{}
}

func newCompletionGuard() *completionGuard {
	return &completionGuard{
		triggered: make(map[string]struct{}),
		inflight:  make(map[string]struct{}),
		processed: make(map[string]struct{}),
	}
}

// acquire atomically inserts the id into both guard sets. It returns false,
// changing nothing, when the id is already triggered or in flight.
func (g *completionGuard) acquire(battleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.triggered[battleID]; ok {
		return false
	}
	if _, ok := g.inflight[battleID]; ok {
		return false
	}
	g.triggered[battleID] = struct{}{}
	g.inflight[battleID] = struct{}{}
	return true
}

// abandon undoes a speculative acquire whose re-validation failed.
func (g *completionGuard) abandon(battleID string) {
	g.mu.Lock()
	delete(g.triggered, battleID)
	delete(g.inflight, battleID)
	g.mu.Unlock()
}

// releaseInflight clears the transient marker; the permanent one stays.
func (g *completionGuard) releaseInflight(battleID string) {
	g.mu.Lock()
	delete(g.inflight, battleID)
	g.mu.Unlock()
}

// revokeTriggered removes the permanent marker so a failed finalize can be
// retried by a later trigger. The processed marker goes with it: leaving it
// behind would turn the retry into a silent no-op and wedge the battle id.
func (g *completionGuard) revokeTriggered(battleID string) {
	g.mu.Lock()
	delete(g.triggered, battleID)
	delete(g.processed, battleID)
	g.mu.Unlock()
}

func (g *completionGuard) isTriggered(battleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.triggered[battleID]
	return ok
}

// markProcessed records that finalize ran for the id; it reports whether this
// caller was first.
func (g *completionGuard) markProcessed(battleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.processed[battleID]; ok {
		return false
	}
	g.processed[battleID] = struct{}{}
	return true
}
