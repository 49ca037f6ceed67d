package livesession

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// State is the lifecycle state of one connection.
type State int

const (
	StateClosed State = iota
	StateConnecting
	StateConnected
)

var stateNames = [...]string{
	StateClosed:     "closed",
	StateConnecting: "connecting",
	StateConnected:  "connected",
}

func (s State) String() string {
	if int(s) >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", s)
}

// connection owns one socket for its whole life. It goes
// Closed -> Connecting -> Connected -> Closed exactly once; reconnecting
// means building a new connection.
type connection struct {
	id     string
	url    string
	token  string
	header http.Header
	dial   dialFunc
	opts   options

	onError ErrorHandler

	mu       sync.Mutex // protects everything below and all socket writes
	conn     socket
	state    State
	opened   bool
	closed   bool // torn down by its owner
	queue    *outboundQueue
	registry *subscriptionRegistry
	timer    *time.Timer

	connectedFn  func()
	disconnectFn func(error)
}

func newConnection(url, token string, opts options, onError ErrorHandler) *connection {
	dialer := opts.dialer
	if dialer == nil {
		dialer = newDialer()
	}
	return &connection{
		id:       generateID(),
		url:      url,
		token:    token,
		header:   opts.header,
		dial:     websocketDial(dialer),
		opts:     opts,
		onError:  onError,
		queue:    newOutboundQueue(),
		registry: newSubscriptionRegistry(),
	}
}

// onConnected registers a callback for the Connecting -> Connected transition.
func (c *connection) onConnected(fn func()) {
	c.mu.Lock()
	c.connectedFn = fn
	c.mu.Unlock()
}

// onDisconnect registers a callback for a transport-initiated close. It is
// not called when the owner closes the connection.
func (c *connection) onDisconnect(fn func(error)) {
	c.mu.Lock()
	c.disconnectFn = fn
	c.mu.Unlock()
}

// open dials the broker and writes CONNECT. It returns once CONNECT is on the
// wire; CONNECTED is handled asynchronously by the reader goroutine.
func (c *connection) open(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.opened {
		c.mu.Unlock()
		return ErrAlreadyOpen
	}
	c.opened = true
	c.mu.Unlock()

	conn, err := c.dial(ctx, c.url, c.header)
	if err != nil {
		return &ConnectionError{URL: c.url, Reason: err.Error()}
	}

	c.mu.Lock()
	if c.closed {
		// Torn down while dialing.
		c.mu.Unlock()
		conn.Close()
		return ErrSessionClosed
	}
	c.conn = conn
	c.state = StateConnecting
	if err := c.writeLocked(connectFrame(c.token).Encode()); err != nil {
		c.conn = nil
		c.state = StateClosed
		c.mu.Unlock()
		conn.Close()
		return &ConnectionError{URL: c.url, Reason: fmt.Sprintf("send CONNECT: %v", err)}
	}
	if d := c.opts.handshakeTimeout; d > 0 {
		c.timer = time.AfterFunc(d, c.handshakeExpired)
	}
	c.mu.Unlock()

	go c.readLoop(conn)
	return nil
}

// close tears the connection down. A connected socket receives DISCONNECT
// before it is closed. Queued sends are discarded. Repeated calls are no-ops.
func (c *connection) close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.stopTimerLocked()

	conn := c.conn
	var writeErr error
	if conn != nil && c.state == StateConnected {
		writeErr = c.writeLocked(disconnectFrame().Encode())
	}
	c.conn = nil
	c.state = StateClosed
	c.queue.drop()
	c.mu.Unlock()

	if conn == nil {
		return nil
	}
	closeErr := closeSocket(conn)
	if writeErr != nil {
		return fmt.Errorf("send DISCONNECT: %w", writeErr)
	}
	return closeErr
}

func (c *connection) connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateConnected
}

func (c *connection) currentState() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *connection) destinations() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.registry.destinations()
}

func (c *connection) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.queue.len()
}

func (c *connection) alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed && c.conn != nil
}

// send writes a SEND frame when connected and queues it otherwise. A frame
// whose destination would corrupt the header block is rejected. A failed
// write is reported to the ErrorHandler; the reader goroutine observes the
// broken socket and closes the connection.
func (c *connection) send(destination string, body []byte) error {
	f := sendFrame(destination, body)
	if err := f.Validate(); err != nil {
		return err
	}
	data := f.Encode()

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrSessionClosed
	}
	if c.state != StateConnected {
		c.queue.enqueue(data)
		c.mu.Unlock()
		return nil
	}
	err := c.writeLocked(data)
	c.mu.Unlock()

	if err != nil {
		c.report(SDKError{Kind: ErrTransportWrite, Command: CmdSend, Destination: destination, Cause: err})
	}
	return nil
}

// subscribe registers fn for destination and reports any failure to the
// ErrorHandler.
func (c *connection) subscribe(destination string, fn Callback) Unsubscribe {
	unsub, err := c.register(destination, fn)
	if err != nil {
		c.reportSubscribe(destination, err)
	}
	return unsub
}

// register adds fn for destination. The first subscriber of a destination
// triggers SUBSCRIBE, immediately when connected or on the CONNECTED
// transition otherwise. An invalid destination is not registered. The
// returned error is not reported, so callers holding their own locks can
// report it after releasing them.
func (c *connection) register(destination string, fn Callback) (Unsubscribe, error) {
	if err := subscribeFrame("", destination).Validate(); err != nil {
		return func() {}, err
	}

	c.mu.Lock()
	sub, entry, needsSubscribe := c.registry.add(destination, fn)
	var err error
	if needsSubscribe && c.state == StateConnected && !c.closed {
		sub.id = nextSubscriptionID()
		err = c.writeLocked(subscribeFrame(sub.id, destination).Encode())
	}
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { c.unsubscribe(destination, entry) })
	}, err
}

func (c *connection) reportSubscribe(destination string, err error) {
	kind := ErrTransportWrite
	if errors.Is(err, ErrInvalidHeader) {
		kind = ErrFrameRejected
	}
	c.report(SDKError{Kind: kind, Command: CmdSubscribe, Destination: destination, Cause: err})
}

func (c *connection) unsubscribe(destination string, entry *subscriber) {
	c.mu.Lock()
	sub, removed, empty := c.registry.remove(destination, entry)
	if !removed || !empty || !c.opts.unsubscribeOnIdle {
		c.mu.Unlock()
		return
	}
	c.registry.forget(destination)
	var err error
	if sub.id != "" && c.state == StateConnected && !c.closed {
		err = c.writeLocked(unsubscribeFrame(sub.id).Encode())
	}
	c.mu.Unlock()

	if err != nil {
		c.report(SDKError{Kind: ErrTransportWrite, Command: CmdUnsubscribe, Destination: destination, Cause: err})
	}
}

func (c *connection) readLoop(conn socket) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.fail(conn, err)
			return
		}
		for _, raw := range SplitFrames(data) {
			if !c.alive() {
				return
			}
			c.handleFrame(raw)
		}
	}
}

func (c *connection) handleFrame(raw []byte) {
	f, err := Decode(raw)
	if err != nil {
		c.report(SDKError{Kind: ErrDecodeFailure, Cause: err, Raw: raw})
		return
	}

	switch f.Command {
	case CmdConnected:
		c.handshakeComplete()
	case CmdMessage:
		c.handleMessage(f)
	case CmdError:
		reason, _ := f.Header(HeaderMessage)
		if reason == "" {
			reason = "server error"
		}
		c.report(SDKError{Kind: ErrServerError, Command: CmdError, Cause: errors.New(reason), Raw: f.Body})
	default:
		if f.Known() {
			c.report(SDKError{Kind: ErrProtocol, Command: f.Command, Cause: errors.New("unexpected client frame from server")})
		}
		// Frames from protocol extensions are ignored.
	}
}

// handshakeComplete moves Connecting -> Connected, flushes queued sends in
// order, then subscribes every destination registered so far.
func (c *connection) handshakeComplete() {
	c.mu.Lock()
	if c.closed || c.state != StateConnecting {
		state := c.state
		c.mu.Unlock()
		c.report(SDKError{Kind: ErrProtocol, Command: CmdConnected, Cause: fmt.Errorf("CONNECTED while %s", state)})
		return
	}
	c.stopTimerLocked()
	c.state = StateConnected

	err := c.queue.flush(c.writeLocked)
	if err == nil {
		for _, sub := range c.registry.unsent() {
			sub.id = nextSubscriptionID()
			if err = c.writeLocked(subscribeFrame(sub.id, sub.destination).Encode()); err != nil {
				break
			}
		}
	}
	connectedFn := c.connectedFn
	c.mu.Unlock()

	if err != nil {
		c.report(SDKError{Kind: ErrTransportWrite, Command: CmdConnected, Cause: err})
	}
	if connectedFn != nil {
		connectedFn()
	}
}

func (c *connection) handleMessage(f Frame) {
	destination, ok := f.Header(HeaderDestination)
	if !ok || destination == "" {
		c.report(SDKError{Kind: ErrProtocol, Command: CmdMessage, Cause: errors.New("MESSAGE without destination header"), Raw: f.Body})
		return
	}

	c.mu.Lock()
	state := c.state
	callbacks := c.registry.callbacks(destination)
	c.mu.Unlock()

	if state != StateConnected {
		c.report(SDKError{Kind: ErrProtocol, Command: CmdMessage, Destination: destination, Cause: fmt.Errorf("MESSAGE while %s", state)})
		return
	}
	if len(callbacks) == 0 {
		return
	}

	msg, err := parsePayload(destination, f.Headers, f.Body)
	if err != nil {
		c.report(SDKError{Kind: ErrPayloadInvalid, Command: CmdMessage, Destination: destination, Cause: err, Raw: f.Body})
		return
	}

	for _, fn := range callbacks {
		if !c.alive() {
			return
		}
		c.invoke(fn, msg)
	}
}

func (c *connection) invoke(fn Callback, msg *Message) {
	defer func() {
		if r := recover(); r != nil {
			c.report(SDKError{
				Kind:        ErrCallbackPanic,
				Command:     CmdMessage,
				Destination: msg.Destination,
				Cause:       fmt.Errorf("callback panic: %v", r),
			})
		}
	}()
	fn(msg)
}

func (c *connection) handshakeExpired() {
	c.mu.Lock()
	conn := c.conn
	pending := !c.closed && c.state == StateConnecting
	c.mu.Unlock()
	if pending {
		c.fail(conn, ErrHandshakeTimeout)
	}
}

// fail moves the connection to Closed after a transport failure. Queued
// sends stay queued; they are dropped once the owner closes the connection.
// A handshake timeout that lost the race against CONNECTED is ignored.
func (c *connection) fail(conn socket, cause error) {
	c.mu.Lock()
	if c.closed || c.conn == nil || c.conn != conn {
		c.mu.Unlock()
		return
	}
	if errors.Is(cause, ErrHandshakeTimeout) && c.state != StateConnecting {
		c.mu.Unlock()
		return
	}
	c.stopTimerLocked()
	c.conn = nil
	c.state = StateClosed
	disconnectFn := c.disconnectFn
	c.mu.Unlock()

	conn.Close()
	c.report(SDKError{Kind: ErrTransport, Cause: &ConnectionError{URL: c.url, Reason: cause.Error()}})
	if disconnectFn != nil {
		disconnectFn(cause)
	}
}

func (c *connection) stopTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *connection) writeLocked(data []byte) error {
	if c.conn == nil {
		return &ConnectionError{URL: c.url, Reason: "socket is not open"}
	}
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

func (c *connection) report(e SDKError) {
	e.ConnectionID = c.id
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	if c.onError != nil {
		c.onError(e)
	}
}
