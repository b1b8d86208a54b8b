package gamelink

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/VedalAI/swarm-control-sub000/internal/clock"
)

var (
	// ErrNotReady is returned when no handshaked game transport is
	// attached. There is no hidden retry or durable outbound queue; the
	// caller surfaces this as a retryable failure.
	ErrNotReady = errors.New("game connection not ready")
	// ErrConnectionLost is returned when the transport drops while a send
	// or await is in progress.
	ErrConnectionLost = errors.New("game connection lost")
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateHandshaked   State = "handshaked"
)

// Outbound messages queue on a bounded channel drained by a single sender
// goroutine. When the queue is full, enqueue blocks on the caller context
// rather than dropping.
const sendQueueSize = 16

// Transport is one physical duplex channel to the game process.
type Transport interface {
	ReadMessage() ([]byte, error)
	WriteMessage(payload []byte) error
	Close() error
}

// Connection owns the single duplex channel to the game process: handshake,
// keepalive, and GUID-based correlation of redeem requests with their
// results. Attaching a new transport forcibly closes the previous one.
// Pending result handlers live on the Connection, not the transport, so
// they stay addressable across reconnects until a late result arrives.
type Connection struct {
	log             *logrus.Entry
	clock           clock.Clock
	protocolVersion string

	mu  sync.Mutex
	cur *session

	pendingMu sync.Mutex
	pending   map[string]func(ResultMessage)
}

func New(protocolVersion string, clk clock.Clock, log *logrus.Logger) *Connection {
	return &Connection{
		log:             log.WithField("component", "gamelink"),
		clock:           clk,
		protocolVersion: protocolVersion,
		pending:         make(map[string]func(ResultMessage)),
	}
}

func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil {
		return StateDisconnected
	}
	if c.cur.handshaked {
		return StateHandshaked
	}
	return StateConnected
}

// Attach takes ownership of a freshly accepted transport. Any previously
// attached transport is closed and the handshake state resets.
func (c *Connection) Attach(t Transport) {
	s := &session{
		conn:      c,
		transport: t,
		send:      make(chan Envelope, sendQueueSize),
		closing:   make(chan struct{}),
	}
	s.log = c.log.WithField("session", uuid.NewString()[:8])

	c.mu.Lock()
	old := c.cur
	c.cur = s
	c.mu.Unlock()
	if old != nil {
		old.log.Info("replaced by new game transport")
		old.close()
	}

	go s.sender()
	go s.listen()
	s.log.Info("game transport attached")
}

// Send queues an outbound message. Only accepted while handshaked.
func (c *Connection) Send(ctx context.Context, mt MessageType, guid string, data any) error {
	s, ok := c.ready()
	if !ok {
		return ErrNotReady
	}
	env, err := newEnvelope(mt, guid, c.clock.Now(), data)
	if err != nil {
		return err
	}
	select {
	case s.send <- env:
		return nil
	case <-s.closing:
		return ErrConnectionLost
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Redeem sends a redeem message under the given GUID and awaits the
// correlated result. The caller bounds the wait through ctx; on timeout or
// transport loss the pending handler is removed and the caller decides
// whether to re-register a late-result watcher.
func (c *Connection) Redeem(ctx context.Context, guid string, msg RedeemMessage) (ResultMessage, error) {
	s, ok := c.ready()
	if !ok {
		return ResultMessage{}, ErrNotReady
	}

	resultCh := make(chan ResultMessage, 1)
	c.WatchResult(guid, func(res ResultMessage) { resultCh <- res })

	env, err := newEnvelope(MessageTypeRedeem, guid, c.clock.Now(), msg)
	if err != nil {
		c.forget(guid)
		return ResultMessage{}, err
	}
	select {
	case s.send <- env:
	case <-s.closing:
		c.forget(guid)
		return ResultMessage{}, ErrConnectionLost
	case <-ctx.Done():
		c.forget(guid)
		return ResultMessage{}, ctx.Err()
	}

	select {
	case res := <-resultCh:
		return res, nil
	case <-s.closing:
		return c.giveUp(guid, resultCh, ErrConnectionLost)
	case <-ctx.Done():
		return c.giveUp(guid, resultCh, ctx.Err())
	}
}

// WatchResult registers a single-use handler for a result GUID. Used by
// Redeem and, after a delivery failure, by the orchestrator to catch a late
// result from a recovered connection.
func (c *Connection) WatchResult(guid string, fn func(ResultMessage)) {
	c.pendingMu.Lock()
	c.pending[guid] = fn
	c.pendingMu.Unlock()
}

func (c *Connection) forget(guid string) {
	c.pendingMu.Lock()
	delete(c.pending, guid)
	c.pendingMu.Unlock()
}

// giveUp removes the pending handler but still honors a result that raced
// in while we were giving up.
func (c *Connection) giveUp(guid string, resultCh chan ResultMessage, reason error) (ResultMessage, error) {
	c.forget(guid)
	select {
	case res := <-resultCh:
		return res, nil
	default:
		return ResultMessage{}, reason
	}
}

func (c *Connection) popHandler(guid string) func(ResultMessage) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	fn := c.pending[guid]
	if fn != nil {
		delete(c.pending, guid)
	}
	return fn
}

func (c *Connection) ready() (*session, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == nil || !c.cur.handshaked {
		return nil, false
	}
	return c.cur, true
}

// dispatch routes one inbound message by its type tag. It runs on the
// session's listen goroutine, so inbound handling is serialized per
// transport. Malformed payloads are logged and dropped without affecting
// connection state.
func (c *Connection) dispatch(s *session, payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		s.log.WithError(err).Warn("malformed inbound message dropped")
		return
	}

	switch env.MessageType {
	case MessageTypeHello:
		var hello HelloMessage
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &hello); err != nil {
				s.log.WithError(err).Warn("malformed hello dropped")
				return
			}
		}
		allowed := hello.Version == c.protocolVersion
		c.mu.Lock()
		if c.cur == s {
			s.handshaked = allowed
		}
		c.mu.Unlock()
		s.log.WithFields(logrus.Fields{
			"gameVersion": hello.Version,
			"allowed":     allowed,
		}).Info("hello received")
		s.enqueue(MessageTypeHelloBack, env.GUID, HelloBackMessage{Allowed: allowed})

	case MessageTypePing:
		// Answered at any time, including before handshake.
		s.enqueue(MessageTypePong, env.GUID, nil)

	case MessageTypeResult:
		var res ResultMessage
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &res); err != nil {
				s.log.WithError(err).Warn("malformed result dropped")
				return
			}
		}
		fn := c.popHandler(env.GUID)
		if fn == nil {
			s.log.WithField("guid", env.GUID).Info("result already handled, ignoring")
			return
		}
		fn(res)

	case MessageTypeStatus:
		s.log.WithField("guid", env.GUID).Debug("game status update")

	default:
		s.log.WithField("type", string(env.MessageType)).Warn("unknown inbound message type dropped")
	}
}

type session struct {
	conn      *Connection
	transport Transport
	log       *logrus.Entry

	send    chan Envelope
	closing chan struct{}

	closeOnce sync.Once
	// handshaked is guarded by conn.mu.
	handshaked bool
}

func (s *session) close() {
	s.closeOnce.Do(func() {
		close(s.closing)
		_ = s.transport.Close()

		s.conn.mu.Lock()
		if s.conn.cur == s {
			s.conn.cur = nil
		}
		s.conn.mu.Unlock()
		s.log.Info("game transport closed")
	})
}

// sender is the single writer for this transport.
func (s *session) sender() {
	defer s.close()
	for {
		select {
		case env := <-s.send:
			payload, err := json.Marshal(env)
			if err != nil {
				s.log.WithError(err).Error("encode outbound message")
				continue
			}
			if err := s.transport.WriteMessage(payload); err != nil {
				s.log.WithError(err).Error("send failed, closing transport")
				return
			}
		case <-s.closing:
			return
		}
	}
}

func (s *session) listen() {
	defer s.close()
	for {
		payload, err := s.transport.ReadMessage()
		if err != nil {
			select {
			case <-s.closing:
			default:
				s.log.WithError(err).Info("game transport read ended")
			}
			return
		}
		s.conn.dispatch(s, payload)
	}
}

// enqueue queues protocol replies (helloback, pong). These bypass the
// handshake gate: the handshake reply itself must be sendable.
func (s *session) enqueue(mt MessageType, guid string, data any) {
	if guid == "" {
		guid = uuid.NewString()
	}
	env, err := newEnvelope(mt, guid, s.conn.clock.Now(), data)
	if err != nil {
		s.log.WithError(err).Error("encode protocol reply")
		return
	}
	select {
	case s.send <- env:
	case <-s.closing:
	}
}
