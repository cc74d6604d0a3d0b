package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Envelope is one complete wire message in either direction.
//
// Outbound call:        {id, func, args}
// Outbound post/event:  {func, args}
// Response:             {id, args: [error-or-null, result...], isResponse}
//
// The receiver classifies a message by whether its id matches a pending call;
// IsResponse is carried on the wire but treated only as a hint.
type Envelope struct {
	ID         *uint64           `json:"id,omitempty"`
	Func       string            `json:"func,omitempty"`
	Args       []json.RawMessage `json:"args"`
	IsResponse bool              `json:"isResponse,omitempty"`
}

// NewCall builds a correlated outbound call envelope.
func NewCall(id uint64, name string, args []json.RawMessage) Envelope {
	return Envelope{ID: &id, Func: name, Args: normalizeArgs(args)}
}

// NewPost builds a fire-and-forget outbound envelope.
func NewPost(name string, args []json.RawMessage) Envelope {
	return Envelope{Func: name, Args: normalizeArgs(args)}
}

// NewEvent builds an uncorrelated host-to-frame event envelope.
func NewEvent(name string, args []json.RawMessage) Envelope {
	return Envelope{Func: name, Args: normalizeArgs(args)}
}

// NewResponse builds a response envelope for a received call. The remote
// error, or JSON null when remoteErr is nil, occupies the first args slot.
func NewResponse(id uint64, remoteErr *RemoteError, results []json.RawMessage) (Envelope, error) {
	args := make([]json.RawMessage, 0, len(results)+1)
	if remoteErr == nil {
		args = append(args, json.RawMessage("null"))
	} else {
		raw, err := json.Marshal(remoteErr)
		if err != nil {
			return Envelope{}, err
		}
		args = append(args, raw)
	}
	args = append(args, results...)
	return Envelope{ID: &id, Args: args, IsResponse: true}, nil
}

func (e Envelope) Validate() error {
	if e.ID == nil && strings.TrimSpace(e.Func) == "" {
		return fmt.Errorf("%w: missing id and func", ErrMalformedEnvelope)
	}
	if e.IsResponse && e.ID == nil {
		return fmt.Errorf("%w: response missing id", ErrMalformedEnvelope)
	}
	return nil
}

// HasID reports whether the envelope carries a correlation identifier.
func (e Envelope) HasID() bool {
	return e.ID != nil
}

func (e Envelope) Encode() ([]byte, error) {
	if err := e.Validate(); err != nil {
		return nil, err
	}
	out := e
	out.Args = normalizeArgs(out.Args)
	return json.Marshal(out)
}

// Parse decodes and validates one raw wire message. Any shape failure is
// reported as ErrMalformedEnvelope so the dispatch loop can drop it without
// distinguishing causes.
func Parse(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("%w: %v", ErrMalformedEnvelope, err)
	}
	if err := env.Validate(); err != nil {
		return Envelope{}, err
	}
	env.Args = normalizeArgs(env.Args)
	return env, nil
}

// MarshalArgs serializes each value into one wire argument slot.
func MarshalArgs(values ...any) ([]json.RawMessage, error) {
	args := make([]json.RawMessage, 0, len(values))
	for i, v := range values {
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("protocol: marshal arg %d: %w", i, err)
		}
		args = append(args, raw)
	}
	return args, nil
}

func normalizeArgs(args []json.RawMessage) []json.RawMessage {
	if args == nil {
		return []json.RawMessage{}
	}
	return args
}

func isJSONNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) || bytes.Equal(trimmed, []byte("false"))
}
