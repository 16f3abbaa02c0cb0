// Package hub is the registry of live battles. It creates a battle
// when the queue hands over a pair, routes per-connection messages to
// the owning battle, and drops the entry once the battle releases
// itself.
package hub

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Ameer8055/PIQUI-sub000/internal/battle"
	"github.com/Ameer8055/PIQUI-sub000/internal/protocol"
)

type HubMsg interface{ isHubMsg() }

// StartBattle is posted by the queue's pair step.
type StartBattle struct {
	Subject string
	A, B    battle.Player
}

// GetByConn resolves the battle a connection is playing in; Reply gets
// nil when there is none.
type GetByConn struct {
	ConnID string
	Reply  chan *battle.Battle
}

// PlayerGone reports a connection that left or vanished. It reaches
// the owning battle when one exists, and is remembered when the pair
// is still waiting on its question fetch, so a player who drops in
// that window still forfeits. Reply (optional) receives whether the
// connection was known to any battle or pending pair.
type PlayerGone struct {
	ConnID string
	Reply  chan bool
}

type RemoveBattle struct{ ID string }

type ShutdownHub struct{}

// fetchDone re-enters the loop after the question fetch finished off-loop.
type fetchDone struct {
	subject string
	a, b    battle.Player
	qs      []battle.Question
	err     error
}

func (StartBattle) isHubMsg()  {}
func (GetByConn) isHubMsg()    {}
func (PlayerGone) isHubMsg()   {}
func (RemoveBattle) isHubMsg() {}
func (ShutdownHub) isHubMsg()  {}
func (fetchDone) isHubMsg()    {}

// pendingPair is a paired couple whose battle does not exist yet; gone
// collects connections that dropped before the fetch came back.
type pendingPair struct {
	gone map[string]bool
}

type Hub struct {
	inbox     chan HubMsg
	byID      map[string]*battle.Battle
	byConn    map[string]*battle.Battle
	pending   map[string]*pendingPair // connID -> shared pair entry
	cfg       battle.Config
	questions battle.QuestionSource
	recorder  battle.Recorder
	log       *zap.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

func NewHub(parent context.Context, cfg battle.Config, qs battle.QuestionSource, rec battle.Recorder, log *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(parent)
	h := &Hub{
		inbox:     make(chan HubMsg, 64),
		byID:      make(map[string]*battle.Battle),
		byConn:    make(map[string]*battle.Battle),
		pending:   make(map[string]*pendingPair),
		cfg:       cfg,
		questions: qs,
		recorder:  rec,
		log:       log.Named("hub"),
		ctx:       ctx,
		cancel:    cancel,
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Pair satisfies queue.PairFunc.
func (h *Hub) Pair(subject string, a, b battle.Player) {
	h.inbox <- StartBattle{Subject: subject, A: a, B: b}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case StartBattle:
				// Both connections are accountable from the moment
				// they are dequeued, not from when the battle exists;
				// a drop during the fetch must still forfeit.
				pp := &pendingPair{gone: make(map[string]bool)}
				h.pending[msg.A.ConnID] = pp
				h.pending[msg.B.ConnID] = pp
				// The question fetch hits the database; keep it off
				// the routing loop.
				go h.fetchQuestions(msg)

			case fetchDone:
				h.onFetchDone(msg)

			case GetByConn:
				msg.Reply <- h.byConn[msg.ConnID] // may be nil

			case PlayerGone:
				found := false
				if bt := h.byConn[msg.ConnID]; bt != nil {
					bt.Inbox() <- battle.Leave{ConnID: msg.ConnID}
					found = true
				} else if pp := h.pending[msg.ConnID]; pp != nil {
					pp.gone[msg.ConnID] = true
					found = true
				}
				if msg.Reply != nil {
					msg.Reply <- found
				}

			case RemoveBattle:
				if bt := h.byID[msg.ID]; bt != nil {
					for _, p := range bt.Players() {
						delete(h.byConn, p.ConnID)
					}
					delete(h.byID, msg.ID)
				}

			case ShutdownHub:
				for _, bt := range h.byID {
					bt.Inbox() <- battle.Shutdown{}
				}
				clear(h.byID)
				clear(h.byConn)
				clear(h.pending)
				h.cancel()
				return
			}
		}
	}
}

func (h *Hub) onFetchDone(msg fetchDone) {
	pp := h.pending[msg.a.ConnID]
	delete(h.pending, msg.a.ConnID)
	delete(h.pending, msg.b.ConnID)

	if msg.err != nil || len(msg.qs) == 0 {
		h.log.Error("question selection failed, dropping pair",
			zap.String("subject", msg.subject), zap.Error(msg.err))
		env := protocol.Pack(protocol.MsgError, protocol.ErrorPayload{
			Code:    protocol.CodeInternal,
			Message: "could not start battle",
		})
		for _, p := range []battle.Player{msg.a, msg.b} {
			select {
			case p.Outbox <- env:
			default:
			}
		}
		return
	}

	if pp != nil && pp.gone[msg.a.ConnID] && pp.gone[msg.b.ConnID] {
		h.log.Info("both players gone before battle start, dropping pair",
			zap.String("subject", msg.subject))
		return
	}

	bt := battle.New(h.ctx, h.cfg, msg.subject, msg.a, msg.b, msg.qs, h.recorder, h.log, func(id string) {
		select {
		case h.inbox <- RemoveBattle{ID: id}:
		case <-h.ctx.Done():
		}
	})
	h.byID[bt.ID] = bt
	for _, p := range bt.Players() {
		h.byConn[p.ConnID] = bt
	}

	// Anyone who dropped while the fetch was in flight forfeits now;
	// the survivor gets matched followed by an immediate forfeit win.
	if pp != nil {
		for connID := range pp.gone {
			bt.Inbox() <- battle.Leave{ConnID: connID}
		}
	}
}

func (h *Hub) fetchQuestions(msg StartBattle) {
	ctx, cancel := context.WithTimeout(h.ctx, 5*time.Second)
	defer cancel()

	qs, err := h.questions.SelectQuestions(ctx, msg.Subject, h.cfg.QuestionCount)
	select {
	case h.inbox <- fetchDone{subject: msg.Subject, a: msg.A, b: msg.B, qs: qs, err: err}:
	case <-h.ctx.Done():
	}
}
