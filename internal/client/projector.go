// Package client is the player's half of the battle protocol: a pure
// reducer that projects server events onto a presentation state, and a
// thin websocket client that feeds it.
//
// The projector holds no authority. If the server goes quiet the state
// stays where it is; no local timer ever advances a phase. A visual
// countdown can tick down on screen, but it is presentation only.
package client

import "github.com/Ameer8055/PIQUI-sub000/internal/protocol"

type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseQueued    Phase = "queued"
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhaseResult    Phase = "result"
	PhaseFinished  Phase = "finished"
)

type QueueView struct {
	Position int
	Size     int
}

type CountdownView struct {
	BattleID      string
	Subject       string
	Seconds       int
	Opponent      protocol.OpponentInfo
	QuestionCount int
}

type ActiveView struct {
	Question      *protocol.QuestionPayload // nil between started and the first question
	Scores        map[string]int
	Locked        bool
	SelectedIndex int
}

// State is the tagged union the UI renders from. Phase says which view
// is current; the other views keep their last values for transitions
// that want them (e.g. opponent identity on the finished screen).
type State struct {
	Phase     Phase
	Queue     QueueView
	Countdown CountdownView
	Active    ActiveView
	Result    protocol.QuestionResultPayload
	Finished  protocol.FinishedPayload
	LastError *protocol.ErrorPayload
}

func Initial() State {
	return State{Phase: PhaseIdle}
}

// Lock is the optimistic soft lock applied locally when the player
// submits an answer; the server's question_result remains the only
// authority on correctness.
func (s State) Lock(selectedIndex int) State {
	if s.Phase != PhaseActive {
		return s
	}
	s.Active.Locked = true
	s.Active.SelectedIndex = selectedIndex
	return s
}

// Reduce maps one inbound event to exactly one transition. Events that
// make no sense in the current phase leave the state unchanged.
func Reduce(s State, env protocol.Envelope) State {
	switch env.Type {
	case protocol.MsgQueued:
		var p protocol.QueuePayload
		if env.Decode(&p) != nil {
			return s
		}
		return State{Phase: PhaseQueued, Queue: QueueView{Position: p.Position, Size: p.Size}}

	case protocol.MsgQueueUpdate:
		if s.Phase != PhaseQueued {
			return s
		}
		var p protocol.QueuePayload
		if env.Decode(&p) != nil {
			return s
		}
		s.Queue = QueueView{Position: p.Position, Size: p.Size}
		return s

	case protocol.MsgQueueLeft:
		return Initial()

	case protocol.MsgMatched:
		var p protocol.MatchedPayload
		if env.Decode(&p) != nil {
			return s
		}
		s.Phase = PhaseCountdown
		s.Countdown = CountdownView{
			BattleID:      p.BattleID,
			Subject:       p.Subject,
			Seconds:       p.StartsInSec,
			Opponent:      p.Opponent,
			QuestionCount: p.QuestionCount,
		}
		return s

	case protocol.MsgStarted:
		s.Phase = PhaseActive
		s.Active = ActiveView{Scores: map[string]int{}, SelectedIndex: -1}
		return s

	case protocol.MsgQuestion:
		var p protocol.QuestionPayload
		if env.Decode(&p) != nil {
			return s
		}
		scores := s.Active.Scores
		if scores == nil {
			scores = map[string]int{}
		}
		s.Phase = PhaseActive
		s.Active = ActiveView{Question: &p, Scores: scores, SelectedIndex: -1}
		return s

	case protocol.MsgPlayerAnswered:
		if s.Phase != PhaseActive {
			return s
		}
		var p protocol.PlayerAnsweredPayload
		if env.Decode(&p) != nil {
			return s
		}
		s.Active.Scores[p.UserID] = p.Score
		return s

	case protocol.MsgQuestionResult:
		var p protocol.QuestionResultPayload
		if env.Decode(&p) != nil {
			return s
		}
		s.Phase = PhaseResult
		s.Result = p
		s.Active.Locked = false
		for _, pr := range p.Players {
			if s.Active.Scores == nil {
				s.Active.Scores = map[string]int{}
			}
			s.Active.Scores[pr.UserID] = pr.Score
		}
		return s

	case protocol.MsgFinished:
		var p protocol.FinishedPayload
		if env.Decode(&p) != nil {
			return s
		}
		s.Phase = PhaseFinished
		s.Finished = p
		return s

	case protocol.MsgError:
		// Errors are non-fatal and never move the phase. In particular
		// a TooLate on a soft-locked answer leaves the lock in place;
		// the next question_result releases it.
		var p protocol.ErrorPayload
		if env.Decode(&p) != nil {
			return s
		}
		s.LastError = &p
		return s

	default:
		return s
	}
}
