package client

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ameer8055/PIQUI-sub000/internal/protocol"
)

func TestReduce_FullBattleSequence(t *testing.T) {
	s := Initial()
	require.Equal(t, PhaseIdle, s.Phase)

	s = Reduce(s, protocol.Pack(protocol.MsgQueued, protocol.QueuePayload{Position: 1, Size: 1}))
	require.Equal(t, PhaseQueued, s.Phase)
	assert.Equal(t, 1, s.Queue.Position)

	s = Reduce(s, protocol.Pack(protocol.MsgMatched, protocol.MatchedPayload{
		BattleID:      "b1",
		Subject:       "mathematics",
		Opponent:      protocol.OpponentInfo{UserID: "uy", DisplayName: "Yara"},
		QuestionCount: 10,
		StartsInSec:   3,
	}))
	require.Equal(t, PhaseCountdown, s.Phase)
	assert.Equal(t, "uy", s.Countdown.Opponent.UserID)
	assert.Equal(t, 3, s.Countdown.Seconds)

	s = Reduce(s, protocol.Pack(protocol.MsgStarted, nil))
	require.Equal(t, PhaseActive, s.Phase)
	assert.Nil(t, s.Active.Question)

	s = Reduce(s, protocol.Pack(protocol.MsgQuestion, protocol.QuestionPayload{
		Sequence: 0, Text: "2+2?", Options: []string{"3", "4"}, TimeLimitSec: 15,
	}))
	require.Equal(t, PhaseActive, s.Phase)
	require.NotNil(t, s.Active.Question)
	assert.False(t, s.Active.Locked)

	s = s.Lock(1)
	assert.True(t, s.Active.Locked)
	assert.Equal(t, 1, s.Active.SelectedIndex)

	s = Reduce(s, protocol.Pack(protocol.MsgPlayerAnswered, protocol.PlayerAnsweredPayload{UserID: "uy", Score: 0}))
	require.Equal(t, PhaseActive, s.Phase)

	s = Reduce(s, protocol.Pack(protocol.MsgQuestionResult, protocol.QuestionResultPayload{
		CorrectAnswerIndex: 1,
		Players: []protocol.PlayerResult{
			{UserID: "ux", IsCorrect: true, Score: 97},
			{UserID: "uy", IsCorrect: false, Score: 0},
		},
	}))
	require.Equal(t, PhaseResult, s.Phase)
	assert.False(t, s.Active.Locked, "result releases the soft lock")
	assert.Equal(t, 97, s.Active.Scores["ux"])

	s = Reduce(s, protocol.Pack(protocol.MsgQuestion, protocol.QuestionPayload{Sequence: 1, Text: "3*3?", Options: []string{"6", "9"}, TimeLimitSec: 15}))
	require.Equal(t, PhaseActive, s.Phase)
	assert.Equal(t, 1, s.Active.Question.Sequence)
	assert.Equal(t, 97, s.Active.Scores["ux"], "scores survive across questions")

	s = Reduce(s, protocol.Pack(protocol.MsgFinished, protocol.FinishedPayload{
		BattleID: "b1", WinnerUserID: "ux", YourScore: 197, OpponentScore: 40,
	}))
	require.Equal(t, PhaseFinished, s.Phase)
	assert.Equal(t, "ux", s.Finished.WinnerUserID)
}

func TestReduce_QueueUpdateAndLeft(t *testing.T) {
	s := Reduce(Initial(), protocol.Pack(protocol.MsgQueued, protocol.QueuePayload{Position: 2, Size: 2}))
	s = Reduce(s, protocol.Pack(protocol.MsgQueueUpdate, protocol.QueuePayload{Position: 1, Size: 1}))
	assert.Equal(t, 1, s.Queue.Position)

	s = Reduce(s, protocol.Pack(protocol.MsgQueueLeft, nil))
	assert.Equal(t, PhaseIdle, s.Phase)
}

// The server is the only authority: with no further events the
// projector must hold its phase forever, so any event it does not
// expect leaves the state untouched.
func TestReduce_NoSelfAdvancement(t *testing.T) {
	s := Reduce(Initial(), protocol.Pack(protocol.MsgQueued, protocol.QueuePayload{Position: 1, Size: 1}))

	// A stray result in the queued phase changes the phase only
	// because the server said so; queue_update in active changes
	// nothing.
	s2 := Reduce(s, protocol.Envelope{Type: "bogus_event"})
	assert.Equal(t, s, s2)

	active := Reduce(s, protocol.Pack(protocol.MsgStarted, nil))
	got := Reduce(active, protocol.Pack(protocol.MsgQueueUpdate, protocol.QueuePayload{Position: 9}))
	assert.Equal(t, active, got)
}

// A TooLate rejection of an optimistically locked answer keeps the lock
// in place; only the next question_result releases it. Errors never
// move the phase.
func TestReduce_TooLateKeepsSoftLock(t *testing.T) {
	s := Reduce(Initial(), protocol.Pack(protocol.MsgStarted, nil))
	s = Reduce(s, protocol.Pack(protocol.MsgQuestion, protocol.QuestionPayload{Sequence: 0, Options: []string{"a", "b"}}))
	s = s.Lock(0)

	s = Reduce(s, protocol.Pack(protocol.MsgError, protocol.ErrorPayload{Code: protocol.CodeTooLate, Message: "late"}))
	assert.Equal(t, PhaseActive, s.Phase)
	assert.True(t, s.Active.Locked)
	require.NotNil(t, s.LastError)
	assert.Equal(t, protocol.CodeTooLate, s.LastError.Code)

	s = Reduce(s, protocol.Pack(protocol.MsgQuestionResult, protocol.QuestionResultPayload{CorrectAnswerIndex: 1}))
	assert.False(t, s.Active.Locked)
}

func TestLock_OnlyInActivePhase(t *testing.T) {
	s := Initial().Lock(2)
	assert.False(t, s.Active.Locked)
	assert.Equal(t, PhaseIdle, s.Phase)
}
