package battle

import (
	"testing"
	"time"
)

func detectorDuel(t *testing.T, n int) *duel {
	t.Helper()
	now := time.Now()
	d := newDuel(&Battle{ID: "b1", FirstOpponent: "alice", SecondOpponent: "bob"}, now)
	d.questions = testQuestions(n)
	if err := d.addParticipant("alice"); err != nil {
		t.Fatalf("addParticipant: %v", err)
	}
	if err := d.addParticipant("bob"); err != nil {
		t.Fatalf("addParticipant: %v", err)
	}
	return d
}

func finishAll(d *duel, username string, at time.Time) {
	p := d.progress[username]
	p.Answers = p.Answers[:0]
	for range d.questions {
		p.Answers = append(p.Answers, &SubmittedAnswer{Label: "A", SubmittedAt: at})
	}
	p.Index = len(d.questions) - 1
	p.Finished = true
	p.FinishedAt = at
}

func TestDetectorBothFinished(t *testing.T) {
	d := detectorDuel(t, 3)
	now := time.Now()

	if d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("fresh battle reported ready")
	}
	finishAll(d, "alice", now)
	if d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("one-sided battle reported ready before stale wait")
	}
	finishAll(d, "bob", now)
	if !d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("both-finished battle not ready")
	}
	if d.checkCount != 3 {
		t.Fatalf("check counter %d, want 3", d.checkCount)
	}
}

func TestDetectorFinishedFlagAloneIsNotEnough(t *testing.T) {
	d := detectorDuel(t, 3)
	now := time.Now()
	finishAll(d, "alice", now)
	finishAll(d, "bob", now)
	// finished flag set but an answer is missing: not both-finished
	d.progress["bob"].Answers[1] = nil
	if d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("ready despite missing recorded answer")
	}
}

func TestDetectorTimeExpired(t *testing.T) {
	d := detectorDuel(t, 5)
	now := time.Now()
	d.startedAt = now.Add(-16 * time.Minute)

	if d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("expired battle with zero answers reported ready")
	}
	d.progress["alice"].Answers = []*SubmittedAnswer{{Label: "A", SubmittedAt: now}}
	if d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("expired battle ready with only one participant answered")
	}
	d.progress["bob"].Answers = []*SubmittedAnswer{{Label: "B", SubmittedAt: now}}
	if !d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("expired battle with both answered not ready")
	}
}

func TestDetectorStaleWait(t *testing.T) {
	d := detectorDuel(t, 3)
	now := time.Now()
	finishAll(d, "alice", now.Add(-29*time.Second))

	if d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("stale wait fired before the cap")
	}
	d.progress["alice"].FinishedAt = now.Add(-31 * time.Second)
	if !d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("stale wait did not fire past the cap")
	}
}

func TestDetectorNoQuestions(t *testing.T) {
	d := detectorDuel(t, 0)
	now := time.Now()
	d.startedAt = now.Add(-time.Hour)
	if d.readyToComplete(now, 15*time.Minute, 30*time.Second) {
		t.Fatalf("battle without questions reported ready")
	}
}

func TestAddParticipantSlots(t *testing.T) {
	d := newDuel(&Battle{ID: "b1"}, time.Now())
	if err := d.addParticipant("alice"); err != nil {
		t.Fatalf("first: %v", err)
	}
	if d.matched() {
		t.Fatalf("matched with one participant")
	}
	// rejoin before match is a no-op, not a second slot
	if err := d.addParticipant("alice"); err != nil {
		t.Fatalf("rejoin: %v", err)
	}
	if d.battle.SecondOpponent != "" {
		t.Fatalf("rejoin consumed the second slot")
	}
	if err := d.addParticipant("bob"); err != nil {
		t.Fatalf("second: %v", err)
	}
	if !d.matched() {
		t.Fatalf("not matched with two participants")
	}
	if err := d.addParticipant("carol"); err != ErrBattleFull {
		t.Fatalf("third participant: %v, want ErrBattleFull", err)
	}
	if p := d.progress["alice"]; p == nil || p.Index != -1 {
		t.Fatalf("initial progress wrong: %+v", p)
	}
}

func TestOpponentOf(t *testing.T) {
	d := detectorDuel(t, 1)
	if got := d.opponentOf("alice"); got != "bob" {
		t.Fatalf("opponentOf(alice) = %q", got)
	}
	if got := d.opponentOf("bob"); got != "alice" {
		t.Fatalf("opponentOf(bob) = %q", got)
	}
	if got := d.opponentOf("carol"); got != "" {
		t.Fatalf("opponentOf(stranger) = %q", got)
	}
}
