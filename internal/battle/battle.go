// Package battle owns one matched pair's session from countdown to the
// persisted result. All state lives on a single goroutine; connections,
// timers and tests talk to it through the inbox.
package battle

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ameer8055/PIQUI-sub000/internal/protocol"
	"github.com/Ameer8055/PIQUI-sub000/internal/scoring"
)

type Phase string

const (
	PhaseMatched   Phase = "matched"
	PhaseCountdown Phase = "countdown"
	PhaseActive    Phase = "active"
	PhaseFinished  Phase = "finished"
	PhaseAborted   Phase = "aborted"
)

type Msg interface{ isBattleMsg() }

// Answer is a player's pick for the current question.
type Answer struct {
	ConnID string
	Index  int
}

// Leave covers both an explicit leave and a dropped connection.
type Leave struct{ ConnID string }

type Shutdown struct{}

// GetState reflects internal state without data races; test-only.
type GetState struct {
	Reply chan View
}

func (Answer) isBattleMsg()     {}
func (Leave) isBattleMsg()      {}
func (Shutdown) isBattleMsg()   {}
func (GetState) isBattleMsg()   {}
func (timerFired) isBattleMsg() {}

type timerKind int

const (
	timerCountdown timerKind = iota
	timerDeadline
	timerPause
)

// timerFired re-enters the loop so timer callbacks never touch state
// directly. Stale generations are dropped.
type timerFired struct {
	gen  int
	kind timerKind
}

type View struct {
	Phase         Phase
	QuestionIndex int
	Scores        map[string]int
	AnswerCount   int
	Records       []AnswerRecord
}

type Battle struct {
	ID      string
	Subject string

	cfg       Config
	players   [2]Player
	questions []Question
	recorder  Recorder
	onDone    func(battleID string)
	log       *zap.Logger

	inbox  chan Msg
	ctx    context.Context
	cancel context.CancelFunc

	phase          Phase
	idx            int
	scores         map[string]int
	answers        map[string]*AnswerRecord // current question, keyed by user
	history        []AnswerRecord
	questionSentAt time.Time
	resultSent     bool
	timerGen       int
	timer          *time.Timer
	createdAt      time.Time
}

// New creates a battle and starts its loop. The question list is fixed
// here and identical for both players. onDone fires once, after the
// terminal event has been delivered, so the owner can drop its registry
// entry.
func New(parent context.Context, cfg Config, subject string, a, b Player, questions []Question, rec Recorder, log *zap.Logger, onDone func(battleID string)) *Battle {
	ctx, cancel := context.WithCancel(parent)
	bt := &Battle{
		ID:        uuid.NewString(),
		Subject:   subject,
		cfg:       cfg,
		players:   [2]Player{a, b},
		questions: questions,
		recorder:  rec,
		onDone:    onDone,
		inbox:     make(chan Msg, 64),
		ctx:       ctx,
		cancel:    cancel,
		phase:     PhaseMatched,
		scores:    map[string]int{a.UserID: 0, b.UserID: 0},
		createdAt: time.Now(),
	}
	bt.log = log.With(zap.String("battle_id", bt.ID), zap.String("subject", subject))
	go bt.loop()
	return bt
}

func (b *Battle) Inbox() chan<- Msg { return b.inbox }

func (b *Battle) Players() [2]Player { return b.players }

func (b *Battle) loop() {
	b.sendMatched()
	b.phase = PhaseCountdown
	b.arm(b.cfg.Countdown, timerCountdown)

	for {
		select {
		case <-b.ctx.Done():
			b.stopTimer()
			return

		case m := <-b.inbox:
			switch msg := m.(type) {
			case timerFired:
				if msg.gen != b.timerGen {
					break // stale fire from a cancelled timer
				}
				b.onTimer(msg.kind)

			case Answer:
				b.onAnswer(msg)

			case Leave:
				b.onLeave(msg.ConnID)

			case GetState:
				msg.Reply <- View{
					Phase:         b.phase,
					QuestionIndex: b.idx,
					Scores:        copyScores(b.scores),
					AnswerCount:   len(b.answers),
					Records:       append([]AnswerRecord(nil), b.history...),
				}

			case Shutdown:
				b.stopTimer()
				b.cancel()
				return
			}
		}
	}
}

func (b *Battle) onTimer(kind timerKind) {
	switch kind {
	case timerCountdown:
		b.phase = PhaseActive
		b.broadcast(protocol.Pack(protocol.MsgStarted, nil))
		b.sendQuestion()

	case timerDeadline:
		b.closeQuestion()

	case timerPause:
		b.idx++
		b.sendQuestion()
	}
}

func (b *Battle) sendQuestion() {
	q := b.questions[b.idx]
	b.answers = make(map[string]*AnswerRecord, 2)
	b.resultSent = false
	b.questionSentAt = time.Now()
	b.broadcast(protocol.Pack(protocol.MsgQuestion, protocol.QuestionPayload{
		Sequence:     b.idx,
		Text:         q.Text,
		Options:      q.Options,
		TimeLimitSec: int(q.TimeLimit / time.Second),
	}))
	b.arm(q.TimeLimit, timerDeadline)
}

func (b *Battle) onAnswer(msg Answer) {
	p, ok := b.playerByConn(msg.ConnID)
	if !ok {
		return
	}
	if b.phase != PhaseActive {
		b.log.Debug("answer outside active phase ignored", zap.String("user_id", p.UserID))
		return
	}
	if b.resultSent {
		b.sendTo(p, protocol.Pack(protocol.MsgError, protocol.ErrorPayload{
			Code:    protocol.CodeTooLate,
			Message: "answer arrived after the result was broadcast",
		}))
		return
	}
	if _, dup := b.answers[p.UserID]; dup {
		return // idempotent duplicate, not an error
	}

	q := b.questions[b.idx]
	now := time.Now()
	latency := now.Sub(b.questionSentAt)
	remaining := q.TimeLimit - latency
	if remaining < 0 {
		remaining = 0
	}
	correct := msg.Index >= 0 && msg.Index < len(q.Options) && msg.Index == q.CorrectIndex
	rec := &AnswerRecord{
		UserID:        p.UserID,
		QuestionIndex: b.idx,
		SelectedIndex: msg.Index,
		SubmittedAt:   now,
		LatencyMs:     latency.Milliseconds(),
		IsCorrect:     correct,
		Points:        scoring.Points(correct, remaining.Milliseconds(), q.TimeLimit.Milliseconds(), b.cfg.BasePoints),
	}
	b.answers[p.UserID] = rec

	// Progress ping: the score shown is from before this question, so
	// nothing about correctness leaks before the result.
	b.broadcast(protocol.Pack(protocol.MsgPlayerAnswered, protocol.PlayerAnsweredPayload{
		UserID: p.UserID,
		Score:  b.scores[p.UserID],
	}))

	if len(b.answers) == len(b.players) {
		b.closeQuestion()
	}
}

// closeQuestion settles the current question: players who never
// answered score 0, cumulative totals advance, and the result goes to
// both sides before any later question can be sent.
func (b *Battle) closeQuestion() {
	b.timerGen++ // a pending deadline must not fire after settlement
	q := b.questions[b.idx]

	results := make([]protocol.PlayerResult, 0, len(b.players))
	for _, p := range b.players {
		rec := b.answers[p.UserID]
		if rec == nil {
			rec = &AnswerRecord{UserID: p.UserID, QuestionIndex: b.idx, SelectedIndex: -1}
		}
		b.scores[p.UserID] += rec.Points
		b.history = append(b.history, *rec)
		results = append(results, protocol.PlayerResult{
			UserID:    p.UserID,
			IsCorrect: rec.IsCorrect,
			Score:     b.scores[p.UserID],
		})
	}
	b.resultSent = true
	b.broadcast(protocol.Pack(protocol.MsgQuestionResult, protocol.QuestionResultPayload{
		CorrectAnswerIndex: q.CorrectIndex,
		Players:            results,
	}))

	if b.idx == len(b.questions)-1 {
		b.finish()
		return
	}
	b.arm(b.cfg.ResultPause, timerPause)
}

func (b *Battle) onLeave(connID string) {
	switch b.phase {
	case PhaseMatched, PhaseCountdown, PhaseActive:
		b.abort(connID)
	default:
		// Terminal already; nothing left to forfeit.
	}
}

func (b *Battle) finish() {
	b.phase = PhaseFinished
	b.stopTimer()

	a, c := b.players[0], b.players[1]
	winner := ""
	isTie := b.scores[a.UserID] == b.scores[c.UserID]
	if !isTie {
		winner = a.UserID
		if b.scores[c.UserID] > b.scores[a.UserID] {
			winner = c.UserID
		}
	}
	sum := b.summary(winner, isTie, false)

	for i, p := range b.players {
		b.sendTo(p, b.finishedEvent(sum, p, b.players[1-i]))
	}
	b.log.Info("battle finished",
		zap.String("winner", winner),
		zap.Bool("tie", isTie),
		zap.Int("score_a", b.scores[a.UserID]),
		zap.Int("score_b", b.scores[c.UserID]))
	b.teardown(sum)
}

// abort forfeits the battle to whichever player did not leave. The
// remaining player gets a terminal finished event immediately; no
// question deadline is waited out.
func (b *Battle) abort(leaverConnID string) {
	b.phase = PhaseAborted
	b.stopTimer()

	remaining := b.players[0]
	leaver := b.players[1]
	if b.players[1].ConnID != leaverConnID {
		remaining, leaver = b.players[1], b.players[0]
	}
	sum := b.summary(remaining.UserID, false, true)

	b.sendTo(remaining, b.finishedEvent(sum, remaining, leaver))
	b.log.Info("battle aborted by forfeit",
		zap.String("leaver", leaver.UserID),
		zap.String("winner", remaining.UserID))
	b.teardown(sum)
}

func (b *Battle) summary(winner string, isTie, forfeit bool) Summary {
	players := make([]PlayerScore, 0, len(b.players))
	for _, p := range b.players {
		players = append(players, PlayerScore{UserID: p.UserID, DisplayName: p.DisplayName, Score: b.scores[p.UserID]})
	}
	return Summary{
		BattleID:     b.ID,
		Subject:      b.Subject,
		WinnerUserID: winner,
		IsTie:        isTie,
		Forfeit:      forfeit,
		Duration:     time.Since(b.createdAt),
		Players:      players,
	}
}

func (b *Battle) finishedEvent(sum Summary, me, opponent Player) protocol.Envelope {
	return protocol.Pack(protocol.MsgFinished, protocol.FinishedPayload{
		BattleID:      b.ID,
		WinnerUserID:  sum.WinnerUserID,
		IsTie:         sum.IsTie,
		Forfeit:       sum.Forfeit,
		YourScore:     b.scores[me.UserID],
		OpponentScore: b.scores[opponent.UserID],
		DurationSec:   int(sum.Duration / time.Second),
		Opponent:      protocol.OpponentInfo{UserID: opponent.UserID, DisplayName: opponent.DisplayName},
	})
}

// teardown persists the summary off-loop and releases the battle. The
// terminal event has already been delivered, so a persistence failure
// can only cost the history row, never the client's finished screen.
func (b *Battle) teardown(sum Summary) {
	rec, log := b.recorder, b.log
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rec.RecordBattleResult(ctx, sum); err != nil {
			log.Warn("recording battle result failed, retrying once", zap.Error(err))
			if err := rec.RecordBattleResult(ctx, sum); err != nil {
				log.Error("battle result lost", zap.Error(err))
			}
		}
	}()
	if b.onDone != nil {
		b.onDone(b.ID)
	}
	b.cancel()
}

func (b *Battle) sendMatched() {
	for i, p := range b.players {
		opp := b.players[1-i]
		b.sendTo(p, protocol.Pack(protocol.MsgMatched, protocol.MatchedPayload{
			BattleID:      b.ID,
			Subject:       b.Subject,
			Opponent:      protocol.OpponentInfo{UserID: opp.UserID, DisplayName: opp.DisplayName},
			QuestionCount: len(b.questions),
			StartsInSec:   int(b.cfg.Countdown / time.Second),
		}))
	}
}

// arm replaces any pending timer. Only the latest generation is honored
// when the callback posts back into the inbox.
func (b *Battle) arm(d time.Duration, kind timerKind) {
	b.stopTimer()
	b.timerGen++
	gen := b.timerGen
	b.timer = time.AfterFunc(d, func() {
		select {
		case b.inbox <- timerFired{gen: gen, kind: kind}:
		case <-b.ctx.Done():
		}
	})
}

func (b *Battle) stopTimer() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}

func (b *Battle) playerByConn(connID string) (Player, bool) {
	for _, p := range b.players {
		if p.ConnID == connID {
			return p, true
		}
	}
	return Player{}, false
}

func (b *Battle) broadcast(env protocol.Envelope) {
	for _, p := range b.players {
		b.sendTo(p, env)
	}
}

// sendTo never blocks the loop. A full outbox means the writer is
// wedged while the socket stays open, and a client that misses even
// one event can no longer trust its view of the current question, so
// the player is treated as gone and the battle forfeits through the
// normal Leave path.
func (b *Battle) sendTo(p Player, env protocol.Envelope) {
	select {
	case p.Outbox <- env:
	default:
		b.log.Warn("outbox full, treating player as gone",
			zap.String("user_id", p.UserID),
			zap.String("type", string(env.Type)))
		select {
		case b.inbox <- Leave{ConnID: p.ConnID}:
		default:
		}
	}
}

func copyScores(in map[string]int) map[string]int {
	out := make(map[string]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
