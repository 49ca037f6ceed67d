package livesession

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// socket is the part of *websocket.Conn a connection uses. The gorilla
// connection supports one concurrent reader and one concurrent writer; the
// reader is the connection's readLoop and writers hold the connection mutex.
type socket interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	Close() error
}

// dialFunc opens the transport to url.
type dialFunc func(ctx context.Context, url string, header http.Header) (socket, error)

const (
	defaultHandshakeTimeout = 10 * time.Second
	closeWriteTimeout       = time.Second
)

func newDialer() *websocket.Dialer {
	return &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: defaultHandshakeTimeout,
		Subprotocols:     []string{"v12.stomp"},
	}
}

func websocketDial(d *websocket.Dialer) dialFunc {
	return func(ctx context.Context, url string, header http.Header) (socket, error) {
		conn, _, err := d.DialContext(ctx, url, header)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

// closeSocket sends a normal-closure control frame and closes conn.
func closeSocket(conn socket) error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	return conn.Close()
}
