package battle

import (
	"context"
	"time"

	"github.com/Ameer8055/PIQUI-sub000/internal/protocol"
	"github.com/Ameer8055/PIQUI-sub000/internal/scoring"
)

// Player is one connected participant. It exists only for the lifetime
// of the connection; the outbox is where this player's ws writer
// receives pushed events.
type Player struct {
	ConnID      string
	UserID      string
	DisplayName string
	Outbox      chan protocol.Envelope
}

// Question is immutable once assigned to a battle.
type Question struct {
	ID           uint
	Text         string
	Options      []string
	CorrectIndex int
	TimeLimit    time.Duration
}

// AnswerRecord is the audit trail for one (player, question) pair.
// At most one exists per pair; SelectedIndex is -1 when the player
// never answered.
type AnswerRecord struct {
	UserID        string
	QuestionIndex int
	SelectedIndex int
	SubmittedAt   time.Time
	LatencyMs     int64
	IsCorrect     bool
	Points        int
}

// PlayerScore is one side of a finished battle.
type PlayerScore struct {
	UserID      string
	DisplayName string
	Score       int
}

// Summary is created exactly once, when a battle reaches its terminal
// state, and handed to the Recorder.
type Summary struct {
	BattleID     string
	Subject      string
	WinnerUserID string // empty on tie
	IsTie        bool
	Forfeit      bool
	Duration     time.Duration
	Players      []PlayerScore
}

// Recorder persists finished battles. Implemented by the store; tests
// substitute fakes.
type Recorder interface {
	RecordBattleResult(ctx context.Context, s Summary) error
}

// QuestionSource hands out a fixed-order question set for a subject.
type QuestionSource interface {
	SelectQuestions(ctx context.Context, subject string, n int) ([]Question, error)
}

// Config carries the tunable constants of a battle. Tests shrink the
// durations; production uses DefaultConfig.
type Config struct {
	QuestionCount int
	Countdown     time.Duration
	ResultPause   time.Duration
	BasePoints    int
}

func DefaultConfig() Config {
	return Config{
		QuestionCount: 10,
		Countdown:     3 * time.Second,
		ResultPause:   1500 * time.Millisecond,
		BasePoints:    scoring.BasePoints,
	}
}
