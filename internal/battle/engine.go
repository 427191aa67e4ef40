package battle

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kodzimk/head2head/internal/obslog"
	"github.com/kodzimk/head2head/pkg/battledto"
)

// Config carries the engine's timing knobs.
type Config struct {
	PacingDelay   time.Duration
	RecheckDelay  time.Duration
	StaleWaitCap  time.Duration
	BattleTimeCap time.Duration
	MinBattleAge  time.Duration
	InactivityCap time.Duration
}

func (c Config) withDefaults() Config {
	if c.PacingDelay <= 0 {
		c.PacingDelay = 3 * time.Second
	}
	if c.RecheckDelay <= 0 {
		c.RecheckDelay = 5 * time.Second
	}
	if c.StaleWaitCap <= 0 {
		c.StaleWaitCap = 30 * time.Second
	}
	if c.BattleTimeCap <= 0 {
		c.BattleTimeCap = 15 * time.Minute
	}
	if c.MinBattleAge <= 0 {
		c.MinBattleAge = time.Minute
	}
	if c.InactivityCap <= 0 {
		c.InactivityCap = 5 * time.Minute
	}
	return c
}

// Notices renders optional human-readable lines attached to outbound events.
type Notices interface {
	WaitingForOpponent(opponent string) string
	BattleFinished(result, winner string) string
}

// Forfeit outcome uses a fixed default score rather than whatever was on the
// board when the connection dropped.
const (
	forfeitWinnerScore = 1
	forfeitLoserScore  = 0
)

// Engine runs every live duel: pacing, scoring, completion detection and the
// once-only finalization pipeline.
type Engine struct {
	cfg       Config
	store     *Store
	registry  *Registry
	questions *QuestionCache
	accounts  AccountStore
	outcomes  OutcomeStore
	guard     *completionGuard
	notices   Notices

	// serializes global ranking recomputation across concurrent finalizes
	rankMu sync.Mutex
}

func NewEngine(cfg Config, registry *Registry, questions *QuestionCache, accounts AccountStore, outcomes OutcomeStore) *Engine {
	return &Engine{
		cfg:       cfg.withDefaults(),
		store:     NewStore(),
		registry:  registry,
		questions: questions,
		accounts:  accounts,
		outcomes:  outcomes,
		guard:     newCompletionGuard(),
	}
}

// SetNotices attaches a notice renderer; without one the events carry no
// message text.
func (e *Engine) SetNotices(n Notices) { e.notices = n }

// LiveBattles reports the number of battles currently held in memory.
func (e *Engine) LiveBattles() int { return e.store.Len() }

// Join binds a connection for username to the battle. The first connection
// creates the duel aggregate and blocks on loading the question set; the
// participant then receives quiz_ready carrying the first question.
func (e *Engine) Join(ctx context.Context, b *Battle, username string, sender Sender) (*SessionHandle, error) {
	if b == nil || strings.TrimSpace(b.ID) == "" || strings.TrimSpace(username) == "" {
		return nil, ErrInvalidArgs
	}
	username = strings.TrimSpace(username)
	if e.guard.isTriggered(b.ID) {
		return nil, ErrBattleNotFound
	}

	now := time.Now()
	e.store.mu.Lock()
	d := e.store.duels[b.ID]
	if d == nil {
		rec := *b
		if rec.CreatedAt.IsZero() {
			rec.CreatedAt = now
		}
		d = newDuel(&rec, now)
		e.store.duels[b.ID] = d
	}
	if err := d.addParticipant(username); err != nil {
		e.store.mu.Unlock()
		return nil, err
	}
	d.touch(now)
	sport, level := d.battle.Sport, d.battle.Level
	e.store.mu.Unlock()

	handle := e.registry.Bind(b.ID, username, sender)

	qs, err := e.questions.GetOrLoad(ctx, b.ID, sport, level)
	if err != nil {
		obslog.L().Error("battle_questions_unavailable",
			zap.String("battle_id", b.ID),
			zap.String("username", username),
			zap.Error(err),
		)
		e.registry.SendTo(b.ID, username, battledto.NewError("questions unavailable"))
		return handle, nil
	}

	e.store.mu.Lock()
	d = e.store.duels[b.ID]
	if d == nil {
		e.store.mu.Unlock()
		return handle, nil
	}
	if d.questions == nil {
		d.questions = qs
	}
	if d.status == StatusCreated && d.matched() && len(d.questions) > 0 {
		d.status = StatusActive
	}
	ready := battledto.QuizReady{
		Type:          battledto.TypeQuizReady,
		BattleID:      b.ID,
		QuestionCount: len(d.questions),
		Scores:        d.scoresCopy(),
	}
	if len(d.questions) > 0 {
		ready.Question = questionView(&d.questions[0], 0)
	}
	e.store.mu.Unlock()

	e.registry.SendTo(b.ID, username, ready)
	obslog.L().Info("battle_join",
		zap.String("battle_id", b.ID),
		zap.String("username", username),
		zap.Int("questions", ready.QuestionCount),
	)
	return handle, nil
}

// SubmitAnswer records and scores one answer. Out-of-range indexes and
// duplicate submissions are ignored; an unresolvable correct answer scores
// as incorrect but still records and advances the participant.
func (e *Engine) SubmitAnswer(battleID, username string, questionIndex int, answer string) {
	now := time.Now()
	e.store.mu.Lock()
	d := e.store.duels[battleID]
	if d == nil {
		e.store.mu.Unlock()
		e.registry.SendTo(battleID, username, battledto.NewError("battle not found"))
		return
	}
	if d.status == StatusFinalized {
		// finalize already snapshotted the scores; late answers change nothing
		e.store.mu.Unlock()
		return
	}
	d.touch(now)
	p := d.progress[username]
	if p == nil {
		e.store.mu.Unlock()
		e.registry.SendTo(battleID, username, battledto.NewError("not a participant of this battle"))
		return
	}
	if questionIndex < 0 || questionIndex >= len(d.questions) {
		e.store.mu.Unlock()
		obslog.L().Debug("answer_index_out_of_range",
			zap.String("battle_id", battleID),
			zap.String("username", username),
			zap.Int("question_index", questionIndex),
		)
		return
	}
	for len(p.Answers) <= questionIndex {
		p.Answers = append(p.Answers, nil)
	}
	if p.Answers[questionIndex] != nil {
		// at-most-once scoring per question position
		e.store.mu.Unlock()
		return
	}

	q := &d.questions[questionIndex]
	correctLabel := ResolveCorrectLabel(q)
	submitted := matchOption(q, answer)
	correct := correctLabel != "" && submitted != "" && strings.EqualFold(submitted, correctLabel)

	p.Answers[questionIndex] = &SubmittedAnswer{
		Label:       strings.TrimSpace(answer),
		Correct:     correct,
		SubmittedAt: now,
	}
	if correct {
		d.scores[username]++
	}
	if questionIndex > p.Index {
		p.Index = questionIndex
	}
	scores := d.scoresCopy()
	opponent := d.opponentOf(username)
	e.store.mu.Unlock()

	e.registry.SendTo(battleID, username, battledto.AnswerSubmitted{
		Type:          battledto.TypeAnswerSubmitted,
		BattleID:      battleID,
		QuestionIndex: questionIndex,
		Correct:       correct,
		Scores:        scores,
	})
	if opponent != "" {
		e.registry.SendTo(battleID, opponent, battledto.OpponentAnswered{
			Type:          battledto.TypeOpponentAnswered,
			BattleID:      battleID,
			Opponent:      username,
			QuestionIndex: questionIndex,
			Scores:        scores,
		})
	}
	obslog.L().Info("answer_submitted",
		zap.String("battle_id", battleID),
		zap.String("username", username),
		zap.Int("question_index", questionIndex),
		zap.Bool("correct", correct),
	)

	next := questionIndex + 1
	time.AfterFunc(e.cfg.PacingDelay, func() { e.deliverNext(battleID, username, next) })
}

// Ping refreshes the battle's last-activity timestamp.
func (e *Engine) Ping(battleID string) {
	e.store.mu.Lock()
	if d := e.store.duels[battleID]; d != nil {
		d.touch(time.Now())
	}
	e.store.mu.Unlock()
}

// deliverNext is the delayed pacing callback for one participant. Each
// participant's schedule is independent of the opponent's.
func (e *Engine) deliverNext(battleID, username string, next int) {
	if !e.registry.HasLive(battleID) {
		return
	}
	now := time.Now()
	e.store.mu.Lock()
	d := e.store.duels[battleID]
	if d == nil || d.status == StatusFinalized {
		e.store.mu.Unlock()
		return
	}
	p := d.progress[username]
	if p == nil {
		e.store.mu.Unlock()
		return
	}
	if next >= len(d.questions) {
		if !p.Finished {
			p.Finished = true
			p.FinishedAt = now
			if last := len(d.questions) - 1; last >= 0 && p.Index < last {
				p.Index = last
			}
			obslog.L().Info("participant_finished",
				zap.String("battle_id", battleID),
				zap.String("username", username),
			)
		}
		opponent := d.opponentOf(username)
		e.store.mu.Unlock()

		e.TriggerCompletion(battleID)
		if !e.guard.isTriggered(battleID) {
			msg := ""
			if e.notices != nil {
				msg = e.notices.WaitingForOpponent(opponent)
			}
			e.registry.SendTo(battleID, username, battledto.WaitingForOpponent{
				Type:     battledto.TypeWaitingForOpponent,
				BattleID: battleID,
				Opponent: opponent,
				Message:  msg,
			})
			// guard against the battle never being re-evaluated
			time.AfterFunc(e.cfg.RecheckDelay, func() { e.TriggerCompletion(battleID) })
		}
		return
	}

	q := d.questions[next]
	scores := d.scoresCopy()
	e.store.mu.Unlock()

	e.registry.SendTo(battleID, username, battledto.NextQuestion{
		Type:     battledto.TypeNextQuestion,
		BattleID: battleID,
		Question: questionView(&q, next),
		Scores:   scores,
	})
}

// HandleDisconnect unbinds the session. A disconnect from a matched battle
// is an immediate forfeit; losing the last connection of a battle that never
// matched releases all of its memory instead.
func (e *Engine) HandleDisconnect(h *SessionHandle) {
	if h == nil {
		return
	}
	last := e.registry.Unbind(h)

	e.store.mu.Lock()
	d := e.store.duels[h.BattleID]
	if d == nil {
		e.store.mu.Unlock()
		return
	}
	matched := d.matched()
	opponent := d.opponentOf(h.Username)
	e.store.mu.Unlock()

	if matched && !e.guard.isTriggered(h.BattleID) {
		obslog.L().Info("battle_forfeit",
			zap.String("battle_id", h.BattleID),
			zap.String("forfeiter", h.Username),
			zap.String("winner", opponent),
		)
		e.forceCompletion(h.BattleID, &forcedResult{winner: opponent, loser: h.Username, reason: "forfeit"})
		return
	}
	if last {
		e.releaseBattle(h.BattleID)
		obslog.L().Info("battle_abandoned_released", zap.String("battle_id", h.BattleID))
	}
}

// TriggerCompletion runs the guarded completion path. Any number of
// concurrent callers for the same battle id collapse to at most one
// finalize for the battle's lifetime.
func (e *Engine) TriggerCompletion(battleID string) {
	if !e.guard.acquire(battleID) {
		return
	}
	// re-validate: a caller may race ahead of state that only later becomes
	// ready
	if !e.isReady(battleID) {
		e.guard.abandon(battleID)
		return
	}
	e.runFinalize(battleID, nil)
}

type forcedResult struct {
	winner string
	loser  string
	reason string
}

// forceCompletion finalizes without consulting the detector (forfeit and
// inactivity paths). It still obeys the once-only guard.
func (e *Engine) forceCompletion(battleID string, f *forcedResult) {
	if !e.guard.acquire(battleID) {
		return
	}
	e.runFinalize(battleID, f)
}

func (e *Engine) isReady(battleID string) bool {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	d := e.store.duels[battleID]
	if d == nil {
		return false
	}
	return d.readyToComplete(time.Now(), e.cfg.BattleTimeCap, e.cfg.StaleWaitCap)
}

func (e *Engine) runFinalize(battleID string, f *forcedResult) {
	if err := e.finalize(battleID, f); err != nil {
		obslog.L().Error("battle_finalize_failed", zap.String("battle_id", battleID), zap.Error(err))
		e.guard.revokeTriggered(battleID)
	}
	e.guard.releaseInflight(battleID)
}

// finalize is the completion pipeline: persist the outcome, update both
// participants' stats, recompute the global rankings, broadcast the result
// and evict all in-memory state. Sub-steps are isolated; a failing one logs
// and the rest still run.
func (e *Engine) finalize(battleID string, f *forcedResult) error {
	if !e.guard.markProcessed(battleID) {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	e.store.mu.Lock()
	d := e.store.duels[battleID]
	if d == nil {
		e.store.mu.Unlock()
		return ErrBattleNotFound
	}
	d.status = StatusFinalized
	first, second := d.participantPair()
	scores := d.scoresCopy()
	var sport, level string
	if d.battle != nil {
		sport, level = d.battle.Sport, d.battle.Level
	}
	checks := d.checkCount
	e.store.mu.Unlock()

	if f != nil && f.winner != "" {
		scores = map[string]int{f.winner: forfeitWinnerScore, f.loser: forfeitLoserScore}
	}

	oc := &Outcome{
		BattleID:    battleID,
		Sport:       sport,
		Level:       level,
		First:       first,
		Second:      second,
		FirstScore:  scores[first],
		SecondScore: scores[second],
	}
	switch {
	case oc.FirstScore > oc.SecondScore:
		oc.Result, oc.Winner, oc.Loser = "win", first, second
	case oc.SecondScore > oc.FirstScore:
		oc.Result, oc.Winner, oc.Loser = "win", second, first
	default:
		oc.Result = "draw"
	}

	if err := e.outcomes.SaveBattle(ctx, oc); err != nil {
		obslog.L().Error("battle_outcome_persist_failed", zap.String("battle_id", battleID), zap.Error(err))
	}

	snapshots := make([]battledto.StatsSnapshot, 0, 2)
	for _, username := range []string{first, second} {
		if username == "" {
			continue
		}
		snap, err := e.applyStats(ctx, username, battleID, oc)
		if err != nil {
			obslog.L().Error("stats_update_failed",
				zap.String("battle_id", battleID),
				zap.String("username", username),
				zap.Error(err),
			)
			continue
		}
		snapshots = append(snapshots, snap)
	}

	ranks := e.recomputeRankings(ctx)
	for i := range snapshots {
		if r, ok := ranks[snapshots[i].Username]; ok {
			snapshots[i].Rank = r
		}
	}

	msg := ""
	if e.notices != nil {
		msg = e.notices.BattleFinished(oc.Result, oc.Winner)
	}
	e.registry.Broadcast(battleID, battledto.BattleFinished{
		Type:     battledto.TypeBattleFinished,
		BattleID: battleID,
		Result:   oc.Result,
		Winner:   oc.Winner,
		Loser:    oc.Loser,
		Scores:   scores,
		Stats:    snapshots,
		Message:  msg,
	})

	e.releaseBattle(battleID)
	obslog.L().Info("battle_finalized",
		zap.String("battle_id", battleID),
		zap.String("result", oc.Result),
		zap.String("winner", oc.Winner),
		zap.String("reason", reasonOf(f)),
		zap.Int("completion_checks", checks),
	)
	return nil
}

// applyStats recomputes one participant's cumulative record. A draw does not
// extend a streak.
func (e *Engine) applyStats(ctx context.Context, username, battleID string, oc *Outcome) (battledto.StatsSnapshot, error) {
	stats, err := e.accounts.GetUser(ctx, username)
	if err != nil {
		return battledto.StatsSnapshot{}, err
	}
	if stats == nil {
		stats = &PlayerStats{Username: username}
	}
	stats.TotalBattles++
	if oc.Result == "win" && oc.Winner == username {
		stats.Wins++
		stats.Streak++
	} else {
		stats.Streak = 0
	}
	stats.WinRate = 0
	if stats.TotalBattles > 0 {
		stats.WinRate = stats.Wins * 100 / stats.TotalBattles
	}
	if !containsString(stats.BattleIDs, battleID) {
		stats.BattleIDs = append(stats.BattleIDs, battleID)
	}
	if err := e.accounts.UpdateUserStats(ctx, stats); err != nil {
		return battledto.StatsSnapshot{}, err
	}
	return battledto.StatsSnapshot{
		Username:     username,
		TotalBattles: stats.TotalBattles,
		Wins:         stats.Wins,
		Streak:       stats.Streak,
		WinRate:      stats.WinRate,
	}, nil
}

// recomputeRankings rebuilds the full ladder from scratch. Serialized so two
// finalizes never interleave their rank writes.
func (e *Engine) recomputeRankings(ctx context.Context) map[string]int {
	e.rankMu.Lock()
	defer e.rankMu.Unlock()
	stats, err := e.accounts.ListStats(ctx)
	if err != nil {
		obslog.L().Error("ranking_list_failed", zap.Error(err))
		return nil
	}
	ranks := ComputeRanks(stats)
	if err := e.accounts.UpdateRanks(ctx, ranks); err != nil {
		obslog.L().Error("ranking_update_failed", zap.Error(err))
	}
	return ranks
}

// releaseBattle deletes every in-memory trace of the battle. The permanent
// "triggered" marker is intentionally retained.
func (e *Engine) releaseBattle(battleID string) {
	e.store.mu.Lock()
	delete(e.store.duels, battleID)
	e.store.mu.Unlock()
	e.registry.Release(battleID)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	e.questions.Evict(ctx, battleID)
	cancel()
}

// SweepCompletions asks the detector about every live battle old enough and
// triggers completion where ready.
func (e *Engine) SweepCompletions() {
	now := time.Now()
	for _, id := range e.store.IDs() {
		if e.guard.isTriggered(id) {
			continue
		}
		e.store.mu.Lock()
		d := e.store.duels[id]
		young := d == nil || now.Sub(d.startedAt) < e.cfg.MinBattleAge
		e.store.mu.Unlock()
		if young {
			continue
		}
		e.TriggerCompletion(id)
	}
}

// SweepInactive force-finalizes battles whose connections have been silent
// past the inactivity cap, bypassing the detector, to bound memory growth
// from abandoned battles.
func (e *Engine) SweepInactive() {
	now := time.Now()
	for _, id := range e.store.IDs() {
		if e.guard.isTriggered(id) {
			continue
		}
		e.store.mu.Lock()
		d := e.store.duels[id]
		stale := d != nil && now.Sub(d.lastActivity) > e.cfg.InactivityCap
		matched := d != nil && d.matched()
		e.store.mu.Unlock()
		if !stale {
			continue
		}
		if !matched {
			// never matched: nothing to score, just reclaim the memory
			obslog.L().Info("battle_unmatched_released", zap.String("battle_id", id))
			e.releaseBattle(id)
			continue
		}
		obslog.L().Warn("battle_inactive_force_complete", zap.String("battle_id", id))
		e.forceCompletion(id, &forcedResult{reason: "inactivity"})
	}
}

func questionView(q *Question, idx int) *battledto.QuestionView {
	opts := make([]battledto.OptionView, 0, len(q.Options))
	for _, o := range q.Options {
		opts = append(opts, battledto.OptionView{Label: o.Label, Text: o.Text})
	}
	return &battledto.QuestionView{Index: idx, Text: q.Text, Options: opts}
}

func reasonOf(f *forcedResult) string {
	if f == nil {
		return "detector"
	}
	return f.reason
}

func containsString(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
