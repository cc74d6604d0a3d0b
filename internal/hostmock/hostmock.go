// Package hostmock is a scriptable host frame. It answers the embedded
// frame's wire traffic the way a controlling frame would: the initialize call
// gets the configured capability matrix, other calls get whatever responder
// is scripted, and posts are recorded without reply.
//
// hostctl serves it over a websocket; tests drive it over an in-memory pipe.
package hostmock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"

	"github.com/softframe/embedctl/internal/capability"
	"github.com/softframe/embedctl/internal/protocol"
	"github.com/softframe/embedctl/internal/transport"
)

// Responder scripts the reply for one call name. Returning a non-nil remote
// error fills the response's error slot. A nil Responder registered for a
// name means "never answer" (for deadline tests).
type Responder func(env protocol.Envelope) (results []any, remoteErr *protocol.RemoteError)

type Host struct {
	conn   transport.Conn
	logger zerolog.Logger

	mu         sync.Mutex
	matrix     capability.Matrix
	hostCtx    map[string]string
	responders map[string]Responder
	silenced   map[string]bool
	received   []protocol.Envelope
}

func New(conn transport.Conn, matrix capability.Matrix, hostCtx map[string]string, logger zerolog.Logger) *Host {
	return &Host{
		conn:       conn,
		logger:     logger,
		matrix:     matrix,
		hostCtx:    hostCtx,
		responders: make(map[string]Responder),
		silenced:   make(map[string]bool),
	}
}

// Respond scripts the reply for calls to name, replacing the default.
func (h *Host) Respond(name string, r Responder) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if r == nil {
		h.silenced[name] = true
		delete(h.responders, name)
		return
	}
	delete(h.silenced, name)
	h.responders[name] = r
}

// Dispatch is the host-side inbound entry point; bind it as the transport
// sink for the host end of the connection.
func (h *Host) Dispatch(raw []byte) {
	env, err := protocol.Parse(raw)
	if err != nil {
		h.logger.Debug().Err(err).Msg("host dropping malformed envelope")
		return
	}

	h.mu.Lock()
	h.received = append(h.received, env)
	responder, scripted := h.responders[env.Func]
	silenced := h.silenced[env.Func]
	h.mu.Unlock()

	if !env.HasID() {
		h.logger.Debug().Str("func", env.Func).Msg("host recorded post")
		return
	}
	if silenced {
		h.logger.Debug().Str("func", env.Func).Msg("host withholding response")
		return
	}

	var results []any
	var remoteErr *protocol.RemoteError
	switch {
	case scripted:
		results, remoteErr = responder(env)
	case env.Func == "initialize":
		results, remoteErr = h.answerInitialize()
	default:
		remoteErr = &protocol.RemoteError{Code: 404, Message: "unknown func: " + env.Func}
	}

	if err := h.respond(*env.ID, remoteErr, results); err != nil {
		h.logger.Warn().Err(err).Str("func", env.Func).Msg("host response send failed")
	}
}

// EmitEvent sends an uncorrelated named event to the embedded frame.
func (h *Host) EmitEvent(name string, args ...any) error {
	rawArgs, err := protocol.MarshalArgs(args...)
	if err != nil {
		return err
	}
	raw, err := protocol.NewEvent(name, rawArgs).Encode()
	if err != nil {
		return err
	}
	return h.conn.Send(context.Background(), raw)
}

// Received returns the recorded inbound envelopes for name; an empty name
// matches everything.
func (h *Host) Received(name string) []protocol.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]protocol.Envelope, 0, len(h.received))
	for _, env := range h.received {
		if name == "" || env.Func == name {
			out = append(out, env)
		}
	}
	return out
}

func (h *Host) answerInitialize() ([]any, *protocol.RemoteError) {
	h.mu.Lock()
	defer h.mu.Unlock()
	results := []any{h.matrix}
	if len(h.hostCtx) > 0 {
		results = append(results, h.hostCtx)
	}
	return results, nil
}

func (h *Host) respond(id uint64, remoteErr *protocol.RemoteError, results []any) error {
	rawResults := make([]json.RawMessage, 0, len(results))
	for _, r := range results {
		raw, err := json.Marshal(r)
		if err != nil {
			return err
		}
		rawResults = append(rawResults, raw)
	}
	env, err := protocol.NewResponse(id, remoteErr, rawResults)
	if err != nil {
		return err
	}
	raw, err := env.Encode()
	if err != nil {
		return err
	}
	return h.conn.Send(context.Background(), raw)
}
