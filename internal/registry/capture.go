package registry

import (
	"errors"
	"sync"
)

var ErrClosed = errors.New("registry: connection closed")

// Capture is an in-memory Conn that keeps what it is sent. The REST command
// endpoint uses one per request to collect the private reply.
type Capture struct {
	id string

	mu     sync.Mutex
	msgs   [][]byte
	closed bool
}

func NewCapture(id string) *Capture {
	return &Capture{id: id}
}

func (c *Capture) ID() string { return c.id }

func (c *Capture) Send(msg []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *Capture) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

func (c *Capture) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// Messages returns a copy of everything sent so far.
func (c *Capture) Messages() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.msgs))
	copy(out, c.msgs)
	return out
}
