package livesession

import (
	"context"
	"errors"
	"sync"
)

// Session binds one live session key and credential to a single
// connection. It is the surface the UI layer consumes: Connected, Subscribe
// and Send. Subscribe and Send may be called at any time after NewSession;
// before the handshake completes they are deferred, never rejected.
type Session struct {
	opts    options
	onError ErrorHandler

	mu     sync.Mutex
	cfg    Config
	conn   *connection
	subs   []*sessionSub
	closed bool
	gen    uint64 // bumped whenever conn is replaced
	done   chan struct{}
	retry  *backoff

	connectFn    func()
	disconnectFn func(error)
}

// sessionSub is a subscription as the UI sees it. It outlives a single
// connection only when reconnects are enabled.
type sessionSub struct {
	destination string
	fn          Callback
	release     Unsubscribe // removes fn from the current connection
}

// NewSession creates a session for the configured key and credential.
// The onError handler receives every error the client contains instead of
// surfacing (decode, payload, protocol and transport failures). The session
// does not touch the network until Connect is called.
func NewSession(cfg Config, onError ErrorHandler, opts ...Option) (*Session, error) {
	resolved, err := resolveConfig(cfg)
	if err != nil {
		return nil, err
	}
	if onError == nil {
		return nil, errors.New("ErrorHandler must not be nil")
	}

	o := sessionDefaults()
	for _, opt := range opts {
		opt(&o)
	}

	s := &Session{
		opts:    o,
		onError: onError,
		cfg:     resolved,
		done:    make(chan struct{}),
		retry:   newBackoff(o.reconnectInitial, o.reconnectMax),
	}
	s.conn = s.newConnectionLocked()
	return s, nil
}

// Connect opens the connection and sends CONNECT. It returns once CONNECT
// has been written; Connected reports true after the broker answers.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	conn := s.conn
	s.mu.Unlock()

	return conn.open(ctx)
}

// Connected reports whether the current connection has completed the handshake.
func (s *Session) Connected() bool {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn.connected()
}

// State returns the lifecycle state of the current connection.
func (s *Session) State() State {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn.currentState()
}

// Key returns the session key the session is bound to.
func (s *Session) Key() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.SessionKey
}

// Destinations returns the destinations with at least one subscriber on
// the current connection.
func (s *Session) Destinations() []string {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn.destinations()
}

// Pending returns how many sends are queued waiting for the handshake.
func (s *Session) Pending() int {
	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()
	return conn.pending()
}

// Subscribe registers fn for MESSAGE frames on destination. Callbacks run
// in registration order. The returned function removes exactly this
// registration and is safe to call more than once. A destination that
// cannot be written as a header is reported as ErrFrameRejected and never
// registered.
func (s *Session) Subscribe(destination string, fn Callback) Unsubscribe {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return func() {}
	}
	conn := s.conn
	release, err := conn.register(destination, fn)
	if errors.Is(err, ErrInvalidHeader) {
		s.mu.Unlock()
		conn.reportSubscribe(destination, err)
		return func() {}
	}
	sub := &sessionSub{destination: destination, fn: fn, release: release}
	s.subs = append(s.subs, sub)
	s.mu.Unlock()

	// Reported outside s.mu; the ErrorHandler may call back into the session.
	if err != nil {
		conn.reportSubscribe(destination, err)
	}

	var once sync.Once
	return func() {
		once.Do(func() { s.unsubscribe(sub) })
	}
}

func (s *Session) unsubscribe(sub *sessionSub) {
	s.mu.Lock()
	for i, existing := range s.subs {
		if existing == sub {
			s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
			break
		}
	}
	release := sub.release
	s.mu.Unlock()

	release()
}

// Send serializes payload as JSON and sends it to destination, writing it
// immediately when connected and queueing it until the handshake otherwise.
// It returns an error for an unserializable payload, a destination that
// cannot be written as a header (ErrInvalidHeader) and a closed session.
func (s *Session) Send(destination string, payload any) error {
	body, err := marshalPayload(payload)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	conn := s.conn
	s.mu.Unlock()

	return conn.send(destination, body)
}

// Rebind moves the session to a new key or credential. The current
// connection is closed gracefully, together with its subscriptions and
// queued sends, and a fresh connection is opened. Rebinding to the same key
// and credential is a no-op.
func (s *Session) Rebind(ctx context.Context, key, token string) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if key == s.cfg.SessionKey && token == s.cfg.Token {
		s.mu.Unlock()
		return nil
	}
	cfg := s.cfg
	cfg.SessionKey = key
	cfg.Token = token
	if err := validateConfig(cfg); err != nil {
		s.mu.Unlock()
		return err
	}

	old := s.conn
	s.cfg = cfg
	s.subs = nil
	s.retry.reset()
	s.conn = s.newConnectionLocked()
	conn := s.conn
	s.mu.Unlock()

	// The old connection must be gone before the new one dials.
	old.close()
	return conn.open(ctx)
}

// Close gracefully shuts down the session. It is safe to call more than once.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	close(s.done)
	conn := s.conn
	s.subs = nil
	s.mu.Unlock()

	return conn.close()
}

// OnConnect registers a callback invoked each time a connection completes
// its handshake.
func (s *Session) OnConnect(fn func()) {
	s.mu.Lock()
	s.connectFn = fn
	s.mu.Unlock()
}

// OnDisconnect registers a callback invoked when the current connection
// drops without being closed by the session.
func (s *Session) OnDisconnect(fn func(error)) {
	s.mu.Lock()
	s.disconnectFn = fn
	s.mu.Unlock()
}

// newConnectionLocked builds the next connection and wires its signals to
// the session. Signals from a connection that is no longer current are
// ignored. s.mu must be held.
func (s *Session) newConnectionLocked() *connection {
	s.gen++
	gen := s.gen
	conn := newConnection(s.cfg.URL, s.cfg.Token, s.opts, s.onError)
	conn.onConnected(func() { s.handleConnected(gen) })
	conn.onDisconnect(func(err error) { s.handleDisconnect(gen, err) })
	return conn
}

func (s *Session) handleConnected(gen uint64) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.retry.reset()
	fn := s.connectFn
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

func (s *Session) handleDisconnect(gen uint64, err error) {
	s.mu.Lock()
	if s.closed || gen != s.gen {
		s.mu.Unlock()
		return
	}
	fn := s.disconnectFn
	reconnect := s.opts.reconnect
	s.mu.Unlock()

	if fn != nil {
		fn(err)
	}
	if reconnect {
		go s.reconnect(gen)
	}
}
