package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// connState is the transport lifecycle. Not exposed; the facade derives
// IsConnected / ConnectionError from controller callbacks.
type connState int

const (
	stateIdle connState = iota
	stateConnecting
	stateOpen
	stateClosing
	stateClosed
)

func (s connState) String() string {
	switch s {
	case stateIdle:
		return "idle"
	case stateConnecting:
		return "connecting"
	case stateOpen:
		return "open"
	case stateClosing:
		return "closing"
	default:
		return "closed"
	}
}

// ConnOptions configures a Conn. Zero durations fall back to defaults.
type ConnOptions struct {
	URL         string
	MaxRetries  int
	BackoffBase time.Duration
	DialTimeout time.Duration
}

const (
	defaultMaxRetries  = 3
	defaultBackoffBase = time.Second
	defaultDialTimeout = 15 * time.Second
)

// Conn owns exactly one live websocket against the playback service and
// recovers from abnormal drops with bounded exponential backoff. Each dial
// bumps a generation counter; read loops, timers and close handling from a
// superseded generation are ignored, so a slow old socket can never feed
// events into a newer session.
type Conn struct {
	opts     ConnOptions
	onEvent  func(Event)
	onStatus func(connected bool, errMsg string)
	log      zerolog.Logger

	mu             sync.Mutex
	state          connState
	ws             *websocket.Conn
	gen            int
	attempts       int
	lastErr        string
	heartbeatStop  chan struct{}
	reconnectTimer *time.Timer

	writeMu sync.Mutex
}

// NewConn wires a controller. onEvent receives every parsed inbound event in
// arrival order; onStatus fires on connectivity changes. Either may be nil.
func NewConn(opts ConnOptions, onEvent func(Event), onStatus func(bool, string), log zerolog.Logger) *Conn {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = defaultMaxRetries
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = defaultBackoffBase
	}
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = defaultDialTimeout
	}
	return &Conn{
		opts:     opts,
		onEvent:  onEvent,
		onStatus: onStatus,
		state:    stateIdle,
		log:      log.With().Str("component", "conn").Logger(),
	}
}

// Start begins connecting. No-op while already connecting or open; after an
// exhausted retry budget or a Stop it begins a fresh attempt cycle.
func (c *Conn) Start() {
	c.mu.Lock()
	if c.state == stateConnecting || c.state == stateOpen {
		c.mu.Unlock()
		c.log.Debug().Stringer("state", c.state).Msg("start ignored, already running")
		return
	}
	c.attempts = 0
	c.lastErr = ""
	c.state = stateConnecting
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	go c.dial(gen)
}

// Stop tears the connection down for good: cancels the heartbeat and any
// pending reconnect, detaches in-flight dials and read loops via the
// generation counter, and closes the socket cleanly. Idempotent.
func (c *Conn) Stop() {
	c.mu.Lock()
	c.stopHeartbeatLocked()
	if c.reconnectTimer != nil {
		c.reconnectTimer.Stop()
		c.reconnectTimer = nil
	}
	c.gen++
	ws := c.ws
	c.ws = nil
	already := c.state == stateClosed
	c.state = stateClosed
	c.lastErr = ""
	c.mu.Unlock()

	if ws != nil {
		deadline := time.Now().Add(time.Second)
		c.writeMu.Lock()
		_ = ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "session stopped"), deadline)
		c.writeMu.Unlock()
		_ = ws.Close()
	}
	if !already {
		c.log.Debug().Msg("connection stopped")
		c.emitStatus(false, "")
	}
}

// Send serializes one outbound message. Returns false (and sends nothing)
// unless the connection is open.
func (c *Conn) Send(msgType string, data any) bool {
	c.mu.Lock()
	ws := c.ws
	open := c.state == stateOpen && ws != nil
	c.mu.Unlock()
	if !open {
		c.log.Debug().Str("type", msgType).Msg("send dropped, not connected")
		return false
	}

	env := Envelope{Type: msgType}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			c.log.Warn().Err(err).Str("type", msgType).Msg("marshal outbound message")
			return false
		}
		env.Data = raw
	}

	c.writeMu.Lock()
	err := ws.WriteJSON(env)
	c.writeMu.Unlock()
	if err != nil {
		c.log.Warn().Err(err).Str("type", msgType).Msg("write failed")
		return false
	}
	return true
}

// IsOpen reports whether the transport is currently open.
func (c *Conn) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == stateOpen
}

// LastError returns the terminal connection error, if any.
func (c *Conn) LastError() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Conn) dial(gen int) {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.DialTimeout}
	c.log.Debug().Str("url", c.opts.URL).Int("gen", gen).Msg("dialing")

	ws, resp, err := dialer.Dial(c.opts.URL, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	c.mu.Lock()
	if gen != c.gen || c.state != stateConnecting {
		c.mu.Unlock()
		if ws != nil {
			_ = ws.Close() // superseded while dialing
		}
		return
	}
	if err != nil {
		c.mu.Unlock()
		c.transportClosed(gen, false, fmt.Sprintf("dial: %v", err))
		return
	}
	c.ws = ws
	c.state = stateOpen
	c.attempts = 0
	c.lastErr = ""
	c.mu.Unlock()

	c.log.Info().Msg("connected")
	c.emitStatus(true, "")
	c.Send(msgHello, nil)

	go c.readLoop(gen, ws)
}

func (c *Conn) readLoop(gen int, ws *websocket.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			clean := websocket.IsCloseError(err, websocket.CloseNormalClosure)
			c.transportClosed(gen, clean, err.Error())
			return
		}

		c.mu.Lock()
		stale := gen != c.gen
		c.mu.Unlock()
		if stale {
			return
		}

		ev, perr := ParseEvent(raw)
		if perr != nil {
			c.log.Warn().Err(perr).Msg("dropping inbound frame")
			continue
		}

		if hello, ok := ev.(HelloEvent); ok {
			c.startHeartbeat(gen, hello.HeartbeatInterval)
		}
		if c.onEvent != nil {
			c.onEvent(ev)
		}
	}
}

// transportClosed handles any close or error on the given generation's
// transport: clean shutdowns finish, abnormal ones reconnect until the retry
// budget runs out.
func (c *Conn) transportClosed(gen int, clean bool, reason string) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	c.ws = nil

	if clean || c.state == stateClosing || c.state == stateClosed {
		c.state = stateClosed
		c.mu.Unlock()
		c.log.Info().Str("reason", reason).Msg("connection closed")
		c.emitStatus(false, "")
		return
	}

	if c.attempts < c.opts.MaxRetries {
		delay := c.opts.BackoffBase << c.attempts
		c.attempts++
		attempt := c.attempts
		c.state = stateConnecting
		c.gen++
		next := c.gen
		c.reconnectTimer = time.AfterFunc(delay, func() {
			c.mu.Lock()
			ok := next == c.gen && c.state == stateConnecting
			c.reconnectTimer = nil
			c.mu.Unlock()
			if ok {
				c.dial(next)
			}
		})
		c.mu.Unlock()
		c.log.Warn().
			Str("reason", reason).
			Int("attempt", attempt).
			Int("max", c.opts.MaxRetries).
			Dur("delay", delay).
			Msg("abnormal close, reconnecting")
		c.emitStatus(false, "")
		return
	}

	c.state = stateClosed
	c.lastErr = fmt.Sprintf("connection lost after %d attempts: %s", c.opts.MaxRetries, reason)
	msg := c.lastErr
	c.mu.Unlock()
	c.log.Error().Str("reason", reason).Msg("retry budget exhausted")
	c.emitStatus(false, msg)
}

// startHeartbeat begins pinging at the service-provided cadence. Any prior
// heartbeat is stopped first so reconnects never stack ping loops.
func (c *Conn) startHeartbeat(gen int, intervalMs int64) {
	if intervalMs <= 0 {
		return
	}
	c.mu.Lock()
	if gen != c.gen || c.state != stateOpen {
		c.mu.Unlock()
		return
	}
	c.stopHeartbeatLocked()
	stop := make(chan struct{})
	c.heartbeatStop = stop
	c.mu.Unlock()

	interval := time.Duration(intervalMs) * time.Millisecond
	c.log.Debug().Dur("interval", interval).Msg("heartbeat started")

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				c.Send(msgPing, nil)
			}
		}
	}()
}

func (c *Conn) stopHeartbeatLocked() {
	if c.heartbeatStop != nil {
		close(c.heartbeatStop)
		c.heartbeatStop = nil
	}
}

func (c *Conn) emitStatus(connected bool, errMsg string) {
	if c.onStatus != nil {
		c.onStatus(connected, errMsg)
	}
}
