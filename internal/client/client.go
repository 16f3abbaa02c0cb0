package client

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"

	"github.com/Ameer8055/PIQUI-sub000/internal/protocol"
)

// Client is the network side of the player: it keeps the projector
// state current from the read pump and exposes the four outbound
// commands. UIs subscribe to Updates and render whatever State says.
type Client struct {
	conn *websocket.Conn

	mu       sync.Mutex
	state    State
	updates  chan State
	upClosed bool
	done     chan struct{}
	once     sync.Once
}

// Dial connects and starts the read pump. url must include the auth
// token, e.g. wss://host/ws?token=...
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, err
	}
	c := &Client{
		conn:    conn,
		state:   Initial(),
		updates: make(chan State, 16),
		done:    make(chan struct{}),
	}
	go c.readPump()
	return c, nil
}

// State returns the latest projected state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Updates delivers a snapshot after every transition. The channel is
// closed when the connection drops.
func (c *Client) Updates() <-chan State { return c.updates }

func (c *Client) JoinQueue(ctx context.Context, subject string) error {
	return c.send(ctx, protocol.Pack(protocol.MsgJoinQueue, protocol.JoinQueuePayload{Subject: subject}))
}

func (c *Client) LeaveQueue(ctx context.Context) error {
	return c.send(ctx, protocol.Pack(protocol.MsgLeaveQueue, nil))
}

// Answer submits the pick and soft-locks the local view immediately so
// the UI can grey out the options without waiting for the server.
func (c *Client) Answer(ctx context.Context, index int) error {
	c.mu.Lock()
	c.state = c.state.Lock(index)
	st := c.state
	c.mu.Unlock()
	c.publish(st)
	return c.send(ctx, protocol.Pack(protocol.MsgAnswer, protocol.AnswerPayload{AnswerIndex: index}))
}

func (c *Client) Leave(ctx context.Context) error {
	return c.send(ctx, protocol.Pack(protocol.MsgLeave, nil))
}

func (c *Client) Close() {
	c.once.Do(func() {
		close(c.done)
		_ = c.conn.Close(websocket.StatusNormalClosure, "bye")
	})
}

func (c *Client) send(ctx context.Context, env protocol.Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return c.conn.Write(ctx, websocket.MessageText, data)
}

func (c *Client) readPump() {
	defer func() {
		c.mu.Lock()
		c.upClosed = true
		close(c.updates)
		c.mu.Unlock()
	}()
	ctx := context.Background()
	for {
		select {
		case <-c.done:
			return
		default:
		}
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var env protocol.Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			continue
		}
		c.mu.Lock()
		c.state = Reduce(c.state, env)
		st := c.state
		c.mu.Unlock()
		c.publish(st)
	}
}

func (c *Client) publish(st State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.upClosed {
		return
	}
	select {
	case c.updates <- st:
	default:
		// UI is behind; it will catch up from the next snapshot.
	}
}
