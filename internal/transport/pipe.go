package transport

import (
	"context"
	"sync"
)

// PipeConn is one end of an in-memory duplex pipe. It backs tests and the
// host double; delivery happens synchronously on the sender's goroutine.
type PipeConn struct {
	mu     sync.Mutex
	peer   *PipeConn
	sink   Sink
	queue  [][]byte
	closed bool
}

// Pipe returns two linked in-memory conns. Messages sent on one end are
// delivered to the sink bound on the other, in send order; messages sent
// before a sink is bound are queued and flushed on Bind.
func Pipe() (*PipeConn, *PipeConn) {
	a := &PipeConn{}
	b := &PipeConn{}
	a.peer = b
	b.peer = a
	return a, b
}

// Bind installs the inbound sink for this end and flushes anything queued.
func (c *PipeConn) Bind(sink Sink) {
	c.mu.Lock()
	queued := c.queue
	c.queue = nil
	c.sink = sink
	c.mu.Unlock()
	if sink == nil {
		return
	}
	for _, raw := range queued {
		sink(raw)
	}
}

func (c *PipeConn) Send(ctx context.Context, raw []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	closed := c.closed
	peer := c.peer
	c.mu.Unlock()
	if closed || peer == nil {
		return ErrConnClosed
	}
	buf := make([]byte, len(raw))
	copy(buf, raw)
	return peer.deliver(buf)
}

func (c *PipeConn) deliver(raw []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrConnClosed
	}
	sink := c.sink
	if sink == nil {
		c.queue = append(c.queue, raw)
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()
	sink(raw)
	return nil
}

func (c *PipeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.sink = nil
	c.queue = nil
	return nil
}
