package livesession

import (
	"context"
	"time"
)

// backoff implements exponential backoff with a maximum delay.
type backoff struct {
	initial time.Duration
	max     time.Duration
	current time.Duration
}

func newBackoff(initial, max time.Duration) *backoff {
	if max < initial {
		max = initial
	}
	return &backoff{
		initial: initial,
		max:     max,
		current: initial,
	}
}

func (b *backoff) next() time.Duration {
	d := min(b.current, b.max)
	b.current = min(b.current*2, b.max)
	return d
}

func (b *backoff) reset() {
	b.current = b.initial
}

// reconnect replaces the dropped connection of generation gen. It keeps
// dialing with backoff until a dial succeeds, the session is closed, or the
// connection has been replaced by Rebind. The new connection starts with an
// empty registry; every subscription the session still holds is registered
// on it again before it dials, so SUBSCRIBE goes out on its CONNECTED.
func (s *Session) reconnect(gen uint64) {
	for {
		s.mu.Lock()
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		delay := s.retry.next()
		s.mu.Unlock()

		select {
		case <-s.done:
			return
		case <-time.After(delay):
		}

		s.mu.Lock()
		if s.closed || gen != s.gen {
			s.mu.Unlock()
			return
		}
		old := s.conn
		conn := s.newConnectionLocked()
		gen = s.gen
		for _, sub := range s.subs {
			// Not yet dialed, so nothing is written and nothing can fail.
			sub.release, _ = conn.register(sub.destination, sub.fn)
		}
		s.conn = conn
		s.mu.Unlock()

		old.close()

		ctx, cancel := context.WithTimeout(context.Background(), defaultHandshakeTimeout)
		err := conn.open(ctx)
		cancel()
		if err == nil {
			return
		}
		conn.report(SDKError{Kind: ErrTransport, Cause: err})
	}
}
