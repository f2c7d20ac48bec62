package wsreact

import (
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	ws "github.com/coder/websocket"

	"github.com/getmockd/decoy/pkg/logging"
)

const defaultMaxMessageSize = 1 << 20 // 1 MiB

// Engine owns the WebSocket expectations and their live connections.
// Upgrades are routed by path; each connection gets a reader goroutine,
// and reactions are sent from their own goroutines so a slow client
// never stalls the reader.
type Engine struct {
	mu           sync.RWMutex
	expectations []*Expectation
	conns        map[string]*Connection

	wg     sync.WaitGroup
	log    *slog.Logger
	notify func()
}

// NewEngine creates an engine. notify is invoked after every counter
// change so blocked verifiers re-check; nil means no notification.
func NewEngine(log *slog.Logger, notify func()) *Engine {
	if log == nil {
		log = logging.Nop()
	}
	if notify == nil {
		notify = func() {}
	}
	return &Engine{
		conns:  make(map[string]*Connection),
		log:    log,
		notify: notify,
	}
}

// Register appends a WebSocket expectation. Registration order is the
// upgrade-routing precedence order.
func (e *Engine) Register(exp *Expectation) {
	e.mu.Lock()
	e.expectations = append(e.expectations, exp)
	e.mu.Unlock()
}

// EndpointFor returns the first expectation whose path matches, in
// registration order, or nil.
func (e *Engine) EndpointFor(path string) *Expectation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, exp := range e.expectations {
		if exp.MatchesPath(path) {
			return exp
		}
	}
	return nil
}

// HasExpectations reports whether any WebSocket expectations are
// registered.
func (e *Engine) HasExpectations() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.expectations) > 0
}

// Satisfied reports whether every registered expectation's connect and
// reaction constraints hold.
func (e *Engine) Satisfied() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, exp := range e.expectations {
		if !exp.Satisfied() {
			return false
		}
	}
	return true
}

// IsWebSocketRequest reports whether the request asks for a WebSocket
// upgrade.
func IsWebSocketRequest(r *http.Request) bool {
	if !strings.Contains(strings.ToLower(r.Header.Get("Connection")), "upgrade") {
		return false
	}
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

// HandleUpgrade accepts the WebSocket connection for the first
// expectation matching the request path. The upgrade counts as a call on
// the expectation. Returns ErrNoEndpoint without touching the response
// when no expectation matches.
func (e *Engine) HandleUpgrade(w http.ResponseWriter, r *http.Request) error {
	exp := e.EndpointFor(r.URL.Path)
	if exp == nil {
		return ErrNoEndpoint
	}

	wsConn, err := ws.Accept(w, r, &ws.AcceptOptions{
		InsecureSkipVerify: true, // test double accepts any origin
		CompressionMode:    ws.CompressionDisabled,
	})
	if err != nil {
		return err
	}
	wsConn.SetReadLimit(defaultMaxMessageSize)

	conn := newConnection(wsConn)

	exp.connects.Add(1)
	e.notify()

	e.mu.Lock()
	e.conns[conn.ID()] = conn
	e.mu.Unlock()

	e.log.Debug("websocket connected",
		"connection", conn.ID(), "path", r.URL.Path, "expectation", exp.ID())

	e.wg.Add(1)
	go e.serve(conn, exp)
	return nil
}

// serve is the per-connection reader loop.
func (e *Engine) serve(conn *Connection, exp *Expectation) {
	defer e.wg.Done()
	defer func() {
		e.mu.Lock()
		delete(e.conns, conn.ID())
		e.mu.Unlock()
		_ = conn.CloseNormal()
		e.log.Debug("websocket disconnected", "connection", conn.ID())
	}()

	for {
		msgType, data, err := conn.Read()
		if err != nil {
			return
		}

		rule := exp.match(msgType, data)
		if rule == nil {
			exp.unmatched.Add(1)
			e.log.Debug("websocket message unmatched",
				"connection", conn.ID(), "type", msgType.String(), "bytes", len(data))
			continue
		}

		// The reaction is sent off the reader goroutine so the next
		// inbound frame is never blocked behind a slow or delayed send.
		e.wg.Add(1)
		go e.react(conn, rule)
	}
}

// react sends one rule's reaction and records the fire. The counter
// increments after the send so verification awaits delivery, not just
// the match.
func (e *Engine) react(conn *Connection, rule *ReactionRule) {
	defer e.wg.Done()

	if rule.react.Delay > 0 {
		select {
		case <-conn.Context().Done():
			return
		case <-time.After(rule.react.Delay):
		}
	}

	if len(rule.react.Payload) > 0 {
		if err := conn.Send(rule.react.frameType(), rule.react.Payload); err != nil {
			e.log.Debug("websocket reaction send failed",
				"connection", conn.ID(), "error", err)
			return
		}
	}

	rule.fires.Add(1)
	e.notify()
}

// Clear closes every live connection and discards all expectations,
// counters included.
func (e *Engine) Clear() {
	e.mu.Lock()
	conns := make([]*Connection, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	e.expectations = nil
	e.mu.Unlock()

	for _, c := range conns {
		_ = c.Close(ws.StatusGoingAway, "expectations cleared")
	}
	e.notify()
}

// Shutdown closes every live connection and waits for reader and
// reaction goroutines to drain.
func (e *Engine) Shutdown() {
	e.mu.RLock()
	conns := make([]*Connection, 0, len(e.conns))
	for _, c := range e.conns {
		conns = append(conns, c)
	}
	e.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close(ws.StatusGoingAway, "server stopping")
	}
	e.wg.Wait()
}
