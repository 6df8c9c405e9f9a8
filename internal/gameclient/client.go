// Package gameclient owns the WebSocket session: dialing, reconnection with
// backoff, routing inbound frames into the state store, and turning local
// intent into outbound protocol messages. State only ever changes through
// server-confirmed snapshots and deltas; the client never mutates the store
// optimistically.
package gameclient

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/mvonline/hokmv2/internal/gamestate"
	"github.com/mvonline/hokmv2/internal/protocol"
	"github.com/phuslu/log"
)

// Config carries the connection policy. Zero fields take the defaults noted
// per field.
type Config struct {
	// URL of the websocket endpoint, e.g. ws://127.0.0.1:8080/ws.
	URL string
	// HandshakeTimeout bounds one dial attempt; an overrun feeds the
	// backoff policy like a hard error. Default 10s.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds one Send. Default 3s.
	WriteTimeout time.Duration
	// BackoffBase and BackoffCap shape the reconnect delay. Defaults
	// 500ms and 10s.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// MaxReconnectAttempts stops retrying after this many consecutive
	// failures; 0 retries until Disconnect.
	MaxReconnectAttempts int
}

func (c *Config) withDefaults() {
	if c.HandshakeTimeout <= 0 {
		c.HandshakeTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 3 * time.Second
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffCap <= 0 {
		c.BackoffCap = 10 * time.Second
	}
}

type Client struct {
	cfg    Config
	logger *log.Logger
	store  *gamestate.Store

	events chan Event

	mu     sync.Mutex
	state  ConnState
	conn   *websocket.Conn
	cancel context.CancelFunc
	token  string

	sendMu sync.Mutex // websocket allows one concurrent writer
}

func New(cfg Config, store *gamestate.Store, logger *log.Logger) *Client {
	cfg.withDefaults()
	// nil logger (tests) => default, but silenced
	if logger == nil {
		tmp := log.DefaultLogger
		logger = &tmp
		logger.Writer = &log.IOWriter{Writer: io.Discard}
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		store:  store,
		events: make(chan Event, 64),
	}
}

// Events is the stream of connection lifecycle events, server errors and
// rejected updates. The channel is buffered and never blocks the inbound
// path; if the consumer falls this far behind, events are dropped.
func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) State() ConnState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Connect starts the session loop. Idempotent: a no-op unless currently
// Disconnected. Dial failures do not surface here; they feed the backoff
// policy and the event stream.
func (c *Client) Connect(ctx context.Context) {
	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.state = StateConnecting
	c.mu.Unlock()

	go c.run(runCtx)
}

// Disconnect ends the session deterministically: any pending reconnect
// timer is unblocked, the socket closes, and the state becomes
// Disconnected. It is the only cancellation primitive.
func (c *Client) Disconnect() {
	c.mu.Lock()
	cancel := c.cancel
	conn := c.conn
	c.cancel = nil
	c.conn = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "bye")
	}
}

// Send encodes and writes one message. Accepted only while Connected;
// otherwise the message is dropped and ErrNotConnected returned. Queuing is
// deliberately absent.
func (c *Client) Send(msg protocol.Message) error {
	c.mu.Lock()
	if c.state != StateConnected || c.conn == nil {
		c.mu.Unlock()
		return ErrNotConnected
	}
	conn := c.conn
	c.mu.Unlock()

	data, err := protocol.Encode(msg)
	if err != nil {
		return fmt.Errorf("could not encode message: %w", err)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	ctx, cancel := context.WithTimeout(context.Background(), c.cfg.WriteTimeout)
	defer cancel()
	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("could not write message: %w", err)
	}
	return nil
}

func (c *Client) run(ctx context.Context) {
	attempt := 0
	for {
		conn, err := c.dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.shutdown()
				return
			}
			attempt++
			if c.cfg.MaxReconnectAttempts > 0 && attempt > c.cfg.MaxReconnectAttempts {
				c.logger.Error().Msgf("giving up after %d reconnect attempts", attempt-1)
				c.emit(Event{Kind: EventGaveUp, Attempt: attempt - 1})
				c.shutdown()
				return
			}
			delay := backoffDelay(c.cfg.BackoffBase, c.cfg.BackoffCap, attempt)
			c.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Dur("delay", delay).
				Msg("dial failed, backing off")
			c.setState(StateReconnecting)
			c.emit(Event{Kind: EventReconnecting, Attempt: attempt, Err: err})
			select {
			case <-ctx.Done():
				c.shutdown()
				return
			case <-time.After(delay):
			}
			continue
		}

		attempt = 0
		c.attach(conn)
		c.logger.Info().Str("url", c.cfg.URL).Msg("connected")
		c.emit(Event{Kind: EventConnected})

		err = c.readLoop(ctx, conn)

		c.detach(conn)
		// any frame after this point belongs to a new connection; the
		// store must not trust deltas until a fresh snapshot arrives
		c.store.MarkOutOfSync()

		if ctx.Err() != nil {
			c.shutdown()
			return
		}
		c.logger.Warn().Err(err).Msg("connection lost")
		c.setState(StateReconnecting)
		c.emit(Event{Kind: EventConnectionLost, Err: err})
		attempt = 1
		delay := backoffDelay(c.cfg.BackoffBase, c.cfg.BackoffCap, attempt)
		select {
		case <-ctx.Done():
			c.shutdown()
			return
		case <-time.After(delay):
		}
	}
}

func (c *Client) dial(ctx context.Context) (*websocket.Conn, error) {
	dialURL := c.cfg.URL
	if token := c.sessionToken(); token != "" {
		u, err := url.Parse(dialURL)
		if err != nil {
			return nil, fmt.Errorf("could not parse url: %w", err)
		}
		q := u.Query()
		q.Set("token", token)
		u.RawQuery = q.Encode()
		dialURL = u.String()
	}

	hsCtx, cancel := context.WithTimeout(ctx, c.cfg.HandshakeTimeout)
	defer cancel()
	conn, _, err := websocket.Dial(hsCtx, dialURL, nil)
	if err != nil {
		return nil, fmt.Errorf("could not dial %s: %w", c.cfg.URL, err)
	}
	return conn, nil
}

func (c *Client) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}

		msg, err := protocol.Decode(data)
		if err != nil {
			// malformed frames are dropped, the connection stays up
			c.logger.Warn().Err(err).Msg("dropping undecodable frame")
			continue
		}

		switch m := msg.(type) {
		case protocol.Snapshot:
			if m.SessionToken != "" {
				c.setSessionToken(m.SessionToken)
			}
			if err := c.store.ApplySnapshot(m.State); err != nil {
				c.emit(Event{Kind: EventSyncError, Err: err})
			}
		case protocol.Delta:
			if err := c.store.ApplyDelta(m); err != nil {
				c.emit(Event{Kind: EventSyncError, Err: err})
			}
		case protocol.ServerError:
			c.logger.Warn().
				Str("reason", m.Reason).
				Str("relatedAction", m.RelatedAction).
				Msg("server error")
			c.emit(Event{Kind: EventServerError, Reason: m.Reason, RelatedAction: m.RelatedAction})
		default:
			// a client->server kind coming from the server is
			// protocol drift, observable but not fatal
			c.logger.Warn().Msgf("dropping unexpected %T from server", m)
		}
	}
}

func (c *Client) attach(conn *websocket.Conn) {
	c.mu.Lock()
	c.conn = conn
	c.state = StateConnected
	c.mu.Unlock()
}

func (c *Client) detach(conn *websocket.Conn) {
	c.mu.Lock()
	if c.conn == conn {
		c.conn = nil
	}
	c.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "bye")
}

func (c *Client) shutdown() {
	c.setState(StateDisconnected)
	c.emit(Event{Kind: EventDisconnected})
}

func (c *Client) setState(st ConnState) {
	c.mu.Lock()
	c.state = st
	c.mu.Unlock()
}

func (c *Client) sessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Client) setSessionToken(token string) {
	c.mu.Lock()
	c.token = token
	c.mu.Unlock()
}

func (c *Client) emit(ev Event) {
	select {
	case c.events <- ev:
	default:
		c.logger.Warn().Int("kind", int(ev.Kind)).Msg("event buffer full, dropping")
	}
}
