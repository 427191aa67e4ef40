package battle

import (
	"context"
	"errors"
	"time"
)

var (
	ErrInvalidArgs    = errors.New("invalid arguments")
	ErrBattleNotFound = errors.New("battle not found")
	ErrBattleFull     = errors.New("battle already has two participants")
)

// Status represents the in-memory battle lifecycle.
type Status string

const (
	StatusCreated   Status = "CREATED"
	StatusActive    Status = "ACTIVE"
	StatusFinalized Status = "FINALIZED"
)

// Battle is the matchmaking record handed to the duel engine. SecondOpponent
// stays empty until a second participant is matched.
type Battle struct {
	ID             string    `json:"id"`
	Sport          string    `json:"sport"`
	Level          string    `json:"level"`
	FirstOpponent  string    `json:"first_opponent"`
	SecondOpponent string    `json:"second_opponent,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Option is one labeled answer choice of a question.
type Option struct {
	Label   string `json:"label"`
	Text    string `json:"text"`
	Correct bool   `json:"correct,omitempty"`
}

// Question is an upstream-produced quiz record. The correct option may arrive
// under any of several field names depending on generator version; see
// ResolveCorrectLabel.
type Question struct {
	Text    string   `json:"text"`
	Options []Option `json:"options"`

	CorrectAnswer string `json:"correct_answer,omitempty"`
	CorrectOption string `json:"correct_option,omitempty"`
	Answer        string `json:"answer,omitempty"`
}

// SubmittedAnswer is one recorded answer at a question position.
type SubmittedAnswer struct {
	Label       string    `json:"label"`
	Correct     bool      `json:"correct"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// Progress tracks one participant's path through the question list.
// Index is -1 before the first answer and monotonically non-decreasing after.
type Progress struct {
	Index      int                `json:"index"`
	Answers    []*SubmittedAnswer `json:"answers"`
	Finished   bool               `json:"finished"`
	FinishedAt time.Time          `json:"finished_at,omitempty"`
}

// AnswerCount returns the number of recorded (non-nil) answers.
func (p *Progress) AnswerCount() int {
	n := 0
	for _, a := range p.Answers {
		if a != nil {
			n++
		}
	}
	return n
}

// PlayerStats is a participant's cumulative record across battles.
type PlayerStats struct {
	Username     string   `json:"username"`
	TotalBattles int      `json:"total_battles"`
	Wins         int      `json:"wins"`
	Streak       int      `json:"streak"`
	WinRate      int      `json:"win_rate"`
	Rank         int      `json:"rank"`
	BattleIDs    []string `json:"battle_ids,omitempty"`
}

// Outcome is the durable result of a finalized battle.
type Outcome struct {
	BattleID    string
	Sport       string
	Level       string
	First       string
	Second      string
	FirstScore  int
	SecondScore int
	Result      string // "win" or "draw"
	Winner      string
	Loser       string
}

// AccountStore is the external account/stats collaborator. Writes must
// tolerate being repeated with the same resulting values.
type AccountStore interface {
	GetUser(ctx context.Context, username string) (*PlayerStats, error)
	UpdateUserStats(ctx context.Context, stats *PlayerStats) error
	ListStats(ctx context.Context) ([]PlayerStats, error)
	UpdateRanks(ctx context.Context, ranks map[string]int) error
}

// OutcomeStore persists finalized battle outcomes.
type OutcomeStore interface {
	SaveBattle(ctx context.Context, o *Outcome) error
}

// Generator produces the ordered question list for a battle. It may be slow
// or return fewer questions than requested.
type Generator interface {
	Generate(ctx context.Context, sport, level string, count int) ([]Question, error)
}

// Sender delivers one outbound event to a connected participant.
type Sender interface {
	Send(v any) error
}
