package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	errSlowConsumer = errors.New("ws: outbox full")
	errConnClosed   = errors.New("ws: connection closed")
)

// conn is a registry.Conn backed by a websocket. Sends are queued on a
// bounded outbox that a single writer goroutine drains.
type conn struct {
	id      string
	ws      *websocket.Conn
	out     chan []byte
	timeout time.Duration
	log     *zap.Logger

	once       sync.Once
	closed     chan struct{}
	code       websocket.StatusCode
	reason     string
	writerDone chan struct{}
}

func newConn(c *websocket.Conn, outbox int, timeout time.Duration, log *zap.Logger) *conn {
	id := uuid.NewString()
	return &conn{
		id:         id,
		ws:         c,
		out:        make(chan []byte, outbox),
		timeout:    timeout,
		log:        log.With(zap.String("conn_id", id)),
		closed:     make(chan struct{}),
		writerDone: make(chan struct{}),
	}
}

func (c *conn) ID() string { return c.id }

// Send queues msg without blocking. A full outbox fails the send so the
// registry evicts the connection.
func (c *conn) Send(msg []byte) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.out <- msg:
		return nil
	default:
		return errSlowConsumer
	}
}

// Close is what the registry calls on eviction.
func (c *conn) Close() {
	c.shutdown(websocket.StatusPolicyViolation, "connection evicted")
}

// shutdown tells the writer to flush what is queued and close the socket
// with code. Only the first call counts.
func (c *conn) shutdown(code websocket.StatusCode, reason string) {
	c.once.Do(func() {
		c.code = code
		c.reason = reason
		close(c.closed)
	})
}

func (c *conn) writeLoop(ctx context.Context) {
	defer close(c.writerDone)
	for {
		select {
		case msg := <-c.out:
			if err := c.write(ctx, msg); err != nil {
				c.log.Debug("write failed", zap.Error(err))
				_ = c.ws.CloseNow()
				return
			}

		case <-c.closed:
			for n := len(c.out); n > 0; n-- {
				if err := c.write(ctx, <-c.out); err != nil {
					break
				}
			}
			_ = c.ws.Close(c.code, c.reason)
			return
		}
	}
}

func (c *conn) write(ctx context.Context, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	return c.ws.Write(ctx, websocket.MessageText, msg)
}
