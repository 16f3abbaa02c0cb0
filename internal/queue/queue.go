// Package queue pairs waiting players per subject. A single goroutine
// owns every queue, so "append, then pair the two oldest" is one
// uninterruptible step and a player can never land in two battles.
package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/Ameer8055/PIQUI-sub000/internal/battle"
	"github.com/Ameer8055/PIQUI-sub000/internal/protocol"
)

var (
	ErrAlreadyQueued   = errors.New("player already queued")
	ErrNotInQueue      = errors.New("player not in any queue")
	ErrSubjectRequired = errors.New("subject is required")
)

type Msg interface{ isQueueMsg() }

// Join asks to enter a subject's queue.
type Join struct {
	Player  battle.Player
	Subject string
}

// Leave is an explicit leave_queue; the player gets queue_left back,
// or NotInQueue if nothing was found.
type Leave struct{ Player battle.Player }

// Disconnect removes silently; the player is gone.
type Disconnect struct{ ConnID string }

type Shutdown struct{}

// GetState is test-only introspection.
type GetState struct {
	Reply chan View
}

func (Join) isQueueMsg()       {}
func (Leave) isQueueMsg()      {}
func (Disconnect) isQueueMsg() {}
func (Shutdown) isQueueMsg()   {}
func (GetState) isQueueMsg()   {}

type View struct {
	Sizes map[string]int // subject -> waiting count
}

type entry struct {
	player   battle.Player
	subject  string
	enqueued time.Time
}

// PairFunc receives both players the instant they are dequeued; the
// hub uses it to spin up the battle.
type PairFunc func(subject string, a, b battle.Player)

type Manager struct {
	inbox  chan Msg
	queues map[string][]entry
	pair   PairFunc
	pairAt int
	log    *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc
}

func NewManager(parent context.Context, pair PairFunc, log *zap.Logger) *Manager {
	return newManager(parent, pair, log, 2)
}

// newManager exists so tests can raise the pair threshold and keep
// multiple players waiting in one subject.
func newManager(parent context.Context, pair PairFunc, log *zap.Logger, pairAt int) *Manager {
	ctx, cancel := context.WithCancel(parent)
	m := &Manager{
		inbox:  make(chan Msg, 64),
		queues: make(map[string][]entry),
		pair:   pair,
		pairAt: pairAt,
		log:    log.Named("queue"),
		ctx:    ctx,
		cancel: cancel,
	}
	go m.loop()
	return m
}

func (m *Manager) Inbox() chan<- Msg { return m.inbox }

func (m *Manager) loop() {
	for {
		select {
		case <-m.ctx.Done():
			return

		case msg := <-m.inbox:
			switch v := msg.(type) {
			case Join:
				m.onJoin(v)
			case Leave:
				if !m.remove(v.Player.ConnID, false) {
					sendErr(v.Player, protocol.CodeNotInQueue, ErrNotInQueue.Error())
				}
			case Disconnect:
				m.remove(v.ConnID, true)
			case GetState:
				sizes := make(map[string]int, len(m.queues))
				for s, q := range m.queues {
					sizes[s] = len(q)
				}
				v.Reply <- View{Sizes: sizes}
			case Shutdown:
				m.cancel()
				return
			}
		}
	}
}

func (m *Manager) onJoin(j Join) {
	if j.Subject == "" {
		sendErr(j.Player, protocol.CodeSubjectRequired, ErrSubjectRequired.Error())
		return
	}
	if m.find(j.Player.UserID) != nil {
		sendErr(j.Player, protocol.CodeAlreadyQueued, ErrAlreadyQueued.Error())
		return
	}

	q := append(m.queues[j.Subject], entry{player: j.Player, subject: j.Subject, enqueued: time.Now()})
	m.queues[j.Subject] = q
	m.log.Info("player queued",
		zap.String("user_id", j.Player.UserID),
		zap.String("subject", j.Subject),
		zap.Int("size", len(q)))

	send(j.Player, protocol.Pack(protocol.MsgQueued, protocol.QueuePayload{Position: len(q), Size: len(q)}))

	// Pairing happens on this goroutine, in the same step as the
	// enqueue, so neither player can be dequeued twice.
	if len(q) >= m.pairAt {
		a, b := q[0], q[1]
		m.queues[j.Subject] = q[2:]
		m.notifyPositions(j.Subject)
		m.log.Info("players paired",
			zap.String("subject", j.Subject),
			zap.String("user_a", a.player.UserID),
			zap.String("user_b", b.player.UserID))
		m.pair(j.Subject, a.player, b.player)
	}
}

// remove drops connID's entry wherever it is and reflows positions for
// the players left behind. Reports whether an entry was found.
func (m *Manager) remove(connID string, silent bool) bool {
	for subject, q := range m.queues {
		for i, e := range q {
			if e.player.ConnID != connID {
				continue
			}
			m.queues[subject] = append(q[:i:i], q[i+1:]...)
			if !silent {
				send(e.player, protocol.Pack(protocol.MsgQueueLeft, nil))
			}
			m.notifyPositions(subject)
			m.log.Info("player left queue",
				zap.String("user_id", e.player.UserID),
				zap.String("subject", subject),
				zap.Bool("disconnect", silent))
			return true
		}
	}
	return false
}

func (m *Manager) notifyPositions(subject string) {
	q := m.queues[subject]
	for i, e := range q {
		send(e.player, protocol.Pack(protocol.MsgQueueUpdate, protocol.QueuePayload{Position: i + 1, Size: len(q)}))
	}
}

func (m *Manager) find(userID string) *entry {
	for _, q := range m.queues {
		for i := range q {
			if q[i].player.UserID == userID {
				return &q[i]
			}
		}
	}
	return nil
}

func send(p battle.Player, env protocol.Envelope) {
	select {
	case p.Outbox <- env:
	default:
	}
}

func sendErr(p battle.Player, code, msg string) {
	send(p, protocol.Pack(protocol.MsgError, protocol.ErrorPayload{Code: code, Message: msg}))
}
