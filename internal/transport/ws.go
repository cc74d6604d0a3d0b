package transport

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// WSConn adapts a gorilla websocket connection to the Conn boundary. Writes
// are serialized because the underlying connection allows one writer at a
// time.
type WSConn struct {
	conn    *websocket.Conn
	logger  zerolog.Logger
	writeMu sync.Mutex

	closeOnce sync.Once
	closeErr  error
}

// NewWSConn wraps an already-established websocket connection, typically the
// host side of an upgraded attach request.
func NewWSConn(conn *websocket.Conn, logger zerolog.Logger) *WSConn {
	return &WSConn{conn: conn, logger: logger}
}

// DialWS connects to the host frame's attach endpoint, announcing the given
// origin so the host's origin policy can vet it.
func DialWS(ctx context.Context, url, origin string, logger zerolog.Logger) (*WSConn, error) {
	header := http.Header{}
	if origin != "" {
		header.Set("Origin", origin)
	}
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, err
	}
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	logger.Debug().Str("url", url).Str("origin", origin).Msg("websocket attached")
	return &WSConn{conn: conn, logger: logger}, nil
}

// Upgrader builds a websocket upgrader gated by the injected origin policy.
func Upgrader(policy OriginPolicy) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			if policy == nil {
				return false
			}
			return policy.Allow(r.Header.Get("Origin"))
		},
	}
}

func (c *WSConn) Send(ctx context.Context, raw []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.conn.SetWriteDeadline(deadline)
	}
	err := c.conn.WriteMessage(websocket.TextMessage, raw)
	if err != nil && websocket.IsUnexpectedCloseError(err) {
		return ErrConnClosed
	}
	return err
}

// ReadLoop pumps inbound messages into sink until the connection or the
// context ends. A context cancellation or a normal peer close returns nil.
func (c *WSConn) ReadLoop(ctx context.Context, sink Sink) error {
	if sink == nil {
		return ErrNilSink
	}
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.Close()
		case <-done:
		}
	}()

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrConnClosed) ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		sink(raw)
	}
}

func (c *WSConn) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}
