package livesession

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Option configures a Session.
type Option func(*options)

type options struct {
	handshakeTimeout  time.Duration
	unsubscribeOnIdle bool

	reconnect        bool
	reconnectInitial time.Duration
	reconnectMax     time.Duration

	dialer *websocket.Dialer
	header http.Header
}

func sessionDefaults() options {
	return options{
		reconnectInitial: time.Second,
		reconnectMax:     30 * time.Second,
	}
}

// WithHandshakeTimeout closes a connection that has not received CONNECTED
// within d of sending CONNECT. Zero waits indefinitely.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.handshakeTimeout = d
	}
}

// WithUnsubscribeOnIdle sends UNSUBSCRIBE when the last callback for a
// destination is removed. Without it the broker-side subscription stays
// open until the connection ends.
func WithUnsubscribeOnIdle() Option {
	return func(o *options) {
		o.unsubscribeOnIdle = true
	}
}

// WithReconnect replaces a dropped connection after an exponential backoff
// between initial and max, re-subscribing every live subscription. Sends
// queued on the dropped connection are discarded.
func WithReconnect(initial, max time.Duration) Option {
	return func(o *options) {
		o.reconnect = true
		if initial > 0 {
			o.reconnectInitial = initial
		}
		if max > 0 {
			o.reconnectMax = max
		}
	}
}

// WithDialer sets the websocket dialer used to open connections.
func WithDialer(d *websocket.Dialer) Option {
	return func(o *options) {
		o.dialer = d
	}
}

// WithHeader adds HTTP headers to the websocket upgrade request.
func WithHeader(h http.Header) Option {
	return func(o *options) {
		o.header = h.Clone()
	}
}
