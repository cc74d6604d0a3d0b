// Package channel owns the correlated message channel to the host frame.
//
// Ownership boundary:
// - correlation-id assignment and the pending-call map
// - the single inbound dispatch point
// - the open gate that blocks normal traffic until the handshake completes
package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/softframe/embedctl/internal/observability"
	"github.com/softframe/embedctl/internal/protocol"
	"github.com/softframe/embedctl/internal/transport"
)

// EventDispatcher receives inbound messages that do not correlate to any
// pending call.
type EventDispatcher interface {
	Dispatch(name string, args []json.RawMessage) bool
}

type callResult struct {
	results []json.RawMessage
	err     error
}

// pendingCall is owned exclusively by the channel and removed from the map
// exactly once: on matching response, on deadline expiry, or on Close.
type pendingCall struct {
	id       uint64
	funcName string
	issuedAt time.Time
	done     chan callResult
}

type Channel struct {
	conn   transport.Conn
	events EventDispatcher
	logger zerolog.Logger
	open   atomic.Bool

	mu       sync.Mutex
	nextID   uint64
	pending  map[uint64]*pendingCall
	closed   bool
	closeErr error
}

func New(conn transport.Conn, events EventDispatcher, logger zerolog.Logger) *Channel {
	return &Channel{
		conn:    conn,
		events:  events,
		logger:  logger,
		pending: make(map[uint64]*pendingCall),
	}
}

// MarkOpen lifts the handshake gate. Until then only Exchange may send.
func (c *Channel) MarkOpen() {
	c.open.Store(true)
}

func (c *Channel) Open() bool {
	return c.open.Load()
}

// Call sends a correlated request and blocks until the matching response
// arrives, the context expires, or the channel closes. The result slots after
// the host's error slot are returned as-is for the caller to decode.
func (c *Channel) Call(ctx context.Context, name string, args ...json.RawMessage) ([]json.RawMessage, error) {
	if !c.open.Load() {
		return nil, fmt.Errorf("%w: call %q", protocol.ErrNotReady, name)
	}
	return c.Exchange(ctx, name, args...)
}

// Exchange is Call without the open gate. The handshake's initialization
// call is the only traffic that legitimately precedes MarkOpen; keeping it a
// separate entry point makes that carve-out a compile-time distinction.
func (c *Channel) Exchange(ctx context.Context, name string, args ...json.RawMessage) ([]json.RawMessage, error) {
	pc, err := c.track(name)
	if err != nil {
		return nil, err
	}
	observability.RecordCallIssued(name)

	raw, err := protocol.NewCall(pc.id, name, args).Encode()
	if err != nil {
		c.evict(pc.id)
		return nil, err
	}
	if err := c.conn.Send(ctx, raw); err != nil {
		c.evict(pc.id)
		observability.RecordCallResolved(name, observability.OutcomeSendFailed, time.Since(pc.issuedAt))
		return nil, err
	}

	select {
	case res := <-pc.done:
		return res.results, res.err
	case <-ctx.Done():
		if !c.evict(pc.id) {
			// The response raced the deadline and already resolved the call.
			res := <-pc.done
			return res.results, res.err
		}
		observability.RecordCallResolved(name, observability.OutcomeTimeout, time.Since(pc.issuedAt))
		return nil, fmt.Errorf("%w: %q: %v", protocol.ErrCallTimeout, name, ctx.Err())
	}
}

// Post sends a fire-and-forget message. No response is expected and none is
// awaited.
func (c *Channel) Post(ctx context.Context, name string, args ...json.RawMessage) error {
	if !c.open.Load() {
		return fmt.Errorf("%w: post %q", protocol.ErrNotReady, name)
	}
	raw, err := protocol.NewPost(name, args).Encode()
	if err != nil {
		return err
	}
	return c.conn.Send(ctx, raw)
}

// DispatchIncoming is the single inbound entry point; the transport adapter
// invokes it for every raw message. It never panics and a bad payload never
// affects other pending calls.
func (c *Channel) DispatchIncoming(raw []byte) {
	env, err := protocol.Parse(raw)
	if err != nil {
		observability.RecordEnvelopeDropped(observability.DropMalformed)
		c.logger.Debug().Err(err).Msg("dropping malformed envelope")
		return
	}

	if env.HasID() {
		if pc, ok := c.take(*env.ID); ok {
			c.resolve(pc, env.Args)
			return
		}
		// Unknown or already-resolved id: a late, duplicate, or stale-frame
		// response. Dropped without protest unless it doubles as an event.
		if env.IsResponse || env.Func == "" {
			observability.RecordEnvelopeDropped(observability.DropUnknownID)
			c.logger.Debug().Uint64("id", *env.ID).Msg("dropping response for unknown id")
			return
		}
	}

	handled := false
	if c.events != nil {
		handled = c.events.Dispatch(env.Func, env.Args)
	}
	observability.RecordEventDispatched(handled)
	if !handled {
		c.logger.Debug().Str("event", env.Func).Msg("event had no registered handler")
	}
}

// Close fails every pending call and refuses all further traffic.
func (c *Channel) Close(cause error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.closeErr = cause
	drained := c.pending
	c.pending = make(map[uint64]*pendingCall)
	c.mu.Unlock()

	for _, pc := range drained {
		err := protocol.ErrChannelClosed
		if cause != nil {
			err = fmt.Errorf("%w: %v", protocol.ErrChannelClosed, cause)
		}
		pc.done <- callResult{err: err}
		observability.RecordCallResolved(pc.funcName, observability.OutcomeClosed, time.Since(pc.issuedAt))
	}
	c.open.Store(false)
}

// PendingCalls reports how many calls are outstanding.
func (c *Channel) PendingCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func (c *Channel) track(name string) (*pendingCall, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		if c.closeErr != nil {
			return nil, fmt.Errorf("%w: %v", protocol.ErrChannelClosed, c.closeErr)
		}
		return nil, protocol.ErrChannelClosed
	}
	pc := &pendingCall{
		id:       c.nextID,
		funcName: name,
		issuedAt: time.Now(),
		done:     make(chan callResult, 1),
	}
	c.nextID++
	c.pending[pc.id] = pc
	return pc, nil
}

func (c *Channel) take(id uint64) (*pendingCall, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pc, ok := c.pending[id]
	if ok {
		delete(c.pending, id)
	}
	return pc, ok
}

func (c *Channel) evict(id uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.pending[id]; !ok {
		return false
	}
	delete(c.pending, id)
	return true
}

func (c *Channel) resolve(pc *pendingCall, args []json.RawMessage) {
	remoteErr, results := protocol.SplitResponseArgs(args)
	outcome := observability.OutcomeOK
	res := callResult{results: results}
	if remoteErr != nil {
		outcome = observability.OutcomeRemoteError
		res = callResult{err: remoteErr}
	}
	pc.done <- res
	observability.RecordCallResolved(pc.funcName, outcome, time.Since(pc.issuedAt))
}
