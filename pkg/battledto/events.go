package battledto

// Message type tags carried in the "type" field of every battle event.
const (
	TypeSubmitAnswer = "submit_answer"
	TypePing         = "ping"

	TypeQuizReady          = "quiz_ready"
	TypeNextQuestion       = "next_question"
	TypeAnswerSubmitted    = "answer_submitted"
	TypeOpponentAnswered   = "opponent_answered"
	TypeWaitingForOpponent = "waiting_for_opponent"
	TypeBattleFinished     = "battle_finished"
	TypeError              = "error"
)

// Inbound is the envelope read off a participant connection.
type Inbound struct {
	Type          string `json:"type"`
	Username      string `json:"username"`
	Answer        string `json:"answer,omitempty"`
	QuestionIndex int    `json:"question_index"`
}

type OptionView struct {
	Label string `json:"label"`
	Text  string `json:"text"`
}

// QuestionView is the participant-facing shape of a question. The correct
// option is never included.
type QuestionView struct {
	Index   int          `json:"index"`
	Text    string       `json:"text"`
	Options []OptionView `json:"options"`
}

type QuizReady struct {
	Type          string         `json:"type"`
	BattleID      string         `json:"battle_id"`
	QuestionCount int            `json:"question_count"`
	Question      *QuestionView  `json:"question,omitempty"`
	Scores        map[string]int `json:"scores"`
}

type NextQuestion struct {
	Type     string         `json:"type"`
	BattleID string         `json:"battle_id"`
	Question *QuestionView  `json:"question"`
	Scores   map[string]int `json:"scores"`
}

type AnswerSubmitted struct {
	Type          string         `json:"type"`
	BattleID      string         `json:"battle_id"`
	QuestionIndex int            `json:"question_index"`
	Correct       bool           `json:"correct"`
	Scores        map[string]int `json:"scores"`
}

// OpponentAnswered is the lighter notice sent to the other side: scores and
// position only, no question content.
type OpponentAnswered struct {
	Type          string         `json:"type"`
	BattleID      string         `json:"battle_id"`
	Opponent      string         `json:"opponent"`
	QuestionIndex int            `json:"question_index"`
	Scores        map[string]int `json:"scores"`
}

type WaitingForOpponent struct {
	Type     string `json:"type"`
	BattleID string `json:"battle_id"`
	Opponent string `json:"opponent"`
	Message  string `json:"message,omitempty"`
}

// StatsSnapshot mirrors a participant's cumulative record after finalize.
type StatsSnapshot struct {
	Username     string `json:"username"`
	TotalBattles int    `json:"total_battles"`
	Wins         int    `json:"wins"`
	Streak       int    `json:"streak"`
	WinRate      int    `json:"win_rate"`
	Rank         int    `json:"rank,omitempty"`
}

type BattleFinished struct {
	Type     string          `json:"type"`
	BattleID string          `json:"battle_id"`
	Result   string          `json:"result"` // "win" or "draw"
	Winner   string          `json:"winner,omitempty"`
	Loser    string          `json:"loser,omitempty"`
	Scores   map[string]int  `json:"scores"`
	Stats    []StatsSnapshot `json:"stats,omitempty"`
	Message  string          `json:"message,omitempty"`
}

type ErrorEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) ErrorEvent {
	return ErrorEvent{Type: TypeError, Message: msg}
}
