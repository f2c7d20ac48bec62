package wsreact

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	ws "github.com/coder/websocket"

	"github.com/getmockd/decoy/internal/id"
)

// Connection wraps one accepted WebSocket connection. Reads happen on
// the engine's reader goroutine; sends may come from reaction goroutines
// and are serialized against Close.
type Connection struct {
	id          string
	conn        *ws.Conn
	connectedAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	sendMu sync.RWMutex // coordinates Send with Close
	closed atomic.Bool
}

func newConnection(wsConn *ws.Conn) *Connection {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connection{
		id:          id.Short(),
		conn:        wsConn,
		connectedAt: time.Now(),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// ID returns the unique connection ID.
func (c *Connection) ID() string {
	return c.id
}

// Context returns the connection's lifetime context.
func (c *Connection) Context() context.Context {
	return c.ctx
}

// IsClosed reports whether the connection has been closed.
func (c *Connection) IsClosed() bool {
	return c.closed.Load()
}

// Send writes one frame to the client.
func (c *Connection) Send(msgType MessageType, data []byte) error {
	c.sendMu.RLock()
	defer c.sendMu.RUnlock()

	if c.closed.Load() {
		return ErrConnectionClosed
	}

	wsType := ws.MessageText
	if msgType == MessageBinary {
		wsType = ws.MessageBinary
	}
	return c.conn.Write(c.ctx, wsType, data)
}

// Read blocks until the next frame arrives. Close cancels the context
// and unblocks it.
func (c *Connection) Read() (MessageType, []byte, error) {
	if c.closed.Load() {
		return 0, nil, ErrConnectionClosed
	}

	wsType, data, err := c.conn.Read(c.ctx)
	if err != nil {
		return 0, nil, err
	}

	msgType := MessageText
	if wsType == ws.MessageBinary {
		msgType = MessageBinary
	}
	return msgType, data, nil
}

// Close closes the connection with the given status code and reason.
func (c *Connection) Close(code ws.StatusCode, reason string) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if c.closed.Swap(true) {
		return ErrConnectionClosed
	}
	c.cancel()
	return c.conn.Close(code, reason)
}

// CloseNormal closes the connection with normal closure.
func (c *Connection) CloseNormal() error {
	return c.Close(ws.StatusNormalClosure, "")
}
