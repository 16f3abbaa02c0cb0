// Package ws is the transport edge: one websocket per player, JSON
// envelopes both ways. It owns no game state; inbound messages are
// forwarded to the queue or the owning battle, outbound events drain
// from the connection's outbox channel.
package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Ameer8055/PIQUI-sub000/internal/auth"
	"github.com/Ameer8055/PIQUI-sub000/internal/battle"
	"github.com/Ameer8055/PIQUI-sub000/internal/hub"
	"github.com/Ameer8055/PIQUI-sub000/internal/protocol"
	"github.com/Ameer8055/PIQUI-sub000/internal/queue"
)

const (
	writeTimeout  = 3 * time.Second
	outboxBuffer  = 32
	maxMessageLen = 4096
)

type Deps struct {
	Hub   *hub.Hub
	Queue *queue.Manager
	Auth  *auth.Service
	Log   *zap.Logger
}

func Handler(d Deps) http.HandlerFunc {
	log := d.Log.Named("ws")
	return func(w http.ResponseWriter, r *http.Request) {
		ident, err := d.Auth.Authenticate(r.Context(), r.URL.Query().Get("token"))
		if err != nil {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{})
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")
		conn.SetReadLimit(maxMessageLen)

		player := battle.Player{
			ConnID:      uuid.NewString(),
			UserID:      ident.UserID,
			DisplayName: ident.DisplayName,
			Outbox:      make(chan protocol.Envelope, outboxBuffer),
		}
		clog := log.With(zap.String("user_id", player.UserID), zap.String("conn_id", player.ConnID))
		clog.Info("player connected")

		// A vanished connection behaves exactly like leaving: silent
		// queue removal, forfeit if mid-battle. The hub also covers
		// the window where the pair exists but the battle does not
		// yet, so a drop there still forfeits.
		defer func() {
			d.Queue.Inbox() <- queue.Disconnect{ConnID: player.ConnID}
			d.Hub.Inbox() <- hub.PlayerGone{ConnID: player.ConnID}
			clog.Info("player disconnected")
		}()

		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go writePump(writeCtx, conn, player.Outbox)

		for {
			_, data, err := conn.Read(r.Context())
			if err != nil {
				return
			}

			var env protocol.Envelope
			if err := json.Unmarshal(data, &env); err != nil {
				sendError(player, protocol.CodeBadMessage, "malformed message")
				continue
			}
			dispatch(d, player, env, clog)
		}
	}
}

func dispatch(d Deps, player battle.Player, env protocol.Envelope, log *zap.Logger) {
	switch env.Type {
	case protocol.MsgJoinQueue:
		var p protocol.JoinQueuePayload
		if err := env.Decode(&p); err != nil {
			sendError(player, protocol.CodeBadMessage, "malformed join_queue payload")
			return
		}
		d.Queue.Inbox() <- queue.Join{Player: player, Subject: p.Subject}

	case protocol.MsgLeaveQueue:
		d.Queue.Inbox() <- queue.Leave{Player: player}

	case protocol.MsgAnswer:
		var p protocol.AnswerPayload
		if err := env.Decode(&p); err != nil {
			sendError(player, protocol.CodeBadMessage, "malformed answer payload")
			return
		}
		bt := lookupBattle(d.Hub, player.ConnID)
		if bt == nil {
			sendError(player, protocol.CodeBattleNotFound, "no active battle for this connection")
			return
		}
		bt.Inbox() <- battle.Answer{ConnID: player.ConnID, Index: p.AnswerIndex}

	case protocol.MsgLeave:
		reply := make(chan bool, 1)
		d.Hub.Inbox() <- hub.PlayerGone{ConnID: player.ConnID, Reply: reply}
		if !<-reply {
			sendError(player, protocol.CodeBattleNotFound, "no active battle for this connection")
		}

	default:
		log.Debug("unknown message type", zap.String("type", string(env.Type)))
		sendError(player, protocol.CodeBadMessage, "unknown message type")
	}
}

func lookupBattle(h *hub.Hub, connID string) *battle.Battle {
	reply := make(chan *battle.Battle, 1)
	h.Inbox() <- hub.GetByConn{ConnID: connID, Reply: reply}
	return <-reply
}

func writePump(ctx context.Context, conn *websocket.Conn, outbox <-chan protocol.Envelope) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-outbox:
			payload, err := json.Marshal(env)
			if err != nil {
				continue
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			_ = conn.Write(wctx, websocket.MessageText, payload)
			cancel()
		}
	}
}

func sendError(p battle.Player, code, msg string) {
	select {
	case p.Outbox <- protocol.Pack(protocol.MsgError, protocol.ErrorPayload{Code: code, Message: msg}):
	default:
	}
}
