package hub

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/Ameer8055/PIQUI-sub000/internal/battle"
	"github.com/Ameer8055/PIQUI-sub000/internal/protocol"
)

type staticQuestions struct {
	qs    []battle.Question
	delay time.Duration
}

func (s staticQuestions) SelectQuestions(_ context.Context, _ string, n int) ([]battle.Question, error) {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	if n > len(s.qs) {
		n = len(s.qs)
	}
	return s.qs[:n], nil
}

type nopRecorder struct{}

func (nopRecorder) RecordBattleResult(context.Context, battle.Summary) error { return nil }

func testHub(t *testing.T, qs []battle.Question) *Hub {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := battle.Config{
		QuestionCount: len(qs),
		Countdown:     10 * time.Millisecond,
		ResultPause:   10 * time.Millisecond,
		BasePoints:    100,
	}
	return NewHub(ctx, cfg, staticQuestions{qs: qs}, nopRecorder{}, zap.NewNop())
}

func hubPlayer(userID string) battle.Player {
	return battle.Player{
		ConnID:      "conn-" + userID,
		UserID:      userID,
		DisplayName: userID,
		Outbox:      make(chan protocol.Envelope, 32),
	}
}

func lookup(h *Hub, connID string) *battle.Battle {
	reply := make(chan *battle.Battle, 1)
	h.Inbox() <- GetByConn{ConnID: connID, Reply: reply}
	return <-reply
}

func waitMatched(t *testing.T, p battle.Player) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case env := <-p.Outbox:
			if env.Type == protocol.MsgMatched {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for matched")
		}
	}
}

func TestHub_PairRegistersBattleForBothConns(t *testing.T) {
	h := testHub(t, []battle.Question{{
		ID: 1, Text: "q", Options: []string{"a", "b"}, CorrectIndex: 0, TimeLimit: 10 * time.Second,
	}})
	x, y := hubPlayer("ux"), hubPlayer("uy")

	h.Pair("history", x, y)
	waitMatched(t, x)
	waitMatched(t, y)

	bx := lookup(h, x.ConnID)
	by := lookup(h, y.ConnID)
	if bx == nil || by == nil || bx != by {
		t.Fatalf("both connections must resolve to the same battle")
	}
}

func TestHub_EntryRemovedAfterBattleEnds(t *testing.T) {
	h := testHub(t, []battle.Question{{
		ID: 1, Text: "q", Options: []string{"a", "b"}, CorrectIndex: 0, TimeLimit: 30 * time.Millisecond,
	}})
	x, y := hubPlayer("ux"), hubPlayer("uy")

	h.Pair("history", x, y)
	waitMatched(t, x)

	// One question, nobody answers: deadline, result, finished, release.
	deadline := time.Now().Add(2 * time.Second)
	for lookup(h, x.ConnID) != nil {
		if time.Now().After(deadline) {
			t.Fatalf("battle entry never released")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// A player who drops between being dequeued and the battle being
// created must still forfeit: the survivor gets matched followed by an
// immediate forfeit win instead of a ghost battle.
func TestHub_DisconnectDuringQuestionFetchForfeits(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	cfg := battle.Config{
		QuestionCount: 1,
		Countdown:     10 * time.Millisecond,
		ResultPause:   10 * time.Millisecond,
		BasePoints:    100,
	}
	qs := []battle.Question{{
		ID: 1, Text: "q", Options: []string{"a", "b"}, CorrectIndex: 0, TimeLimit: 10 * time.Second,
	}}
	h := NewHub(ctx, cfg, staticQuestions{qs: qs, delay: 100 * time.Millisecond}, nopRecorder{}, zap.NewNop())
	x, y := hubPlayer("ux"), hubPlayer("uy")

	h.Pair("history", x, y)

	// y vanishes while the question fetch is still in flight.
	reply := make(chan bool, 1)
	h.Inbox() <- PlayerGone{ConnID: y.ConnID, Reply: reply}
	if !<-reply {
		t.Fatalf("pending pair should account for the dropped connection")
	}

	waitMatched(t, x)
	deadline := time.After(time.Second)
	for {
		select {
		case env := <-x.Outbox:
			if env.Type != protocol.MsgFinished {
				continue
			}
			var fin protocol.FinishedPayload
			if err := env.Decode(&fin); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if !fin.Forfeit || fin.WinnerUserID != "ux" {
				t.Fatalf("want immediate forfeit win for ux, got %+v", fin)
			}
			return
		case <-deadline:
			t.Fatalf("survivor never received the forfeit win")
		}
	}
}

func TestHub_PlayerGoneUnknownConnRepliesFalse(t *testing.T) {
	h := testHub(t, nil)
	reply := make(chan bool, 1)
	h.Inbox() <- PlayerGone{ConnID: "nope", Reply: reply}
	if <-reply {
		t.Fatalf("unknown connection must not be treated as in a battle")
	}
}

func TestHub_UnknownConnResolvesNil(t *testing.T) {
	h := testHub(t, nil)
	if bt := lookup(h, "nope"); bt != nil {
		t.Fatalf("expected nil battle for unknown conn")
	}
}
