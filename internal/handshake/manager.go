// Package handshake drives the initialization sequence against the host
// frame: announce readiness, receive the capability matrix, then unlock the
// channel for normal traffic.
package handshake

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/softframe/embedctl/internal/capability"
	"github.com/softframe/embedctl/internal/channel"
	"github.com/softframe/embedctl/internal/protocol"
)

// Lifecycle call names. These are fixed by the wire contract.
const (
	FuncInitialize      = "initialize"
	FuncNotifyAppLoaded = "notifyAppLoaded"
	FuncNotifySuccess   = "notifySuccess"
	FuncNotifyFailure   = "notifyFailure"
)

var (
	ErrAlreadyInitialized = errors.New("handshake: already initialized")
	ErrHandshakeFailed    = errors.New("handshake: initialization failed")
	ErrInvalidMetadata    = errors.New("handshake: invalid metadata")
)

// State is the handshake lifecycle. Transitions are one-directional;
// StateFailed is terminal.
type State int

const (
	StateUninitialized State = iota
	StateInitializing
	StateReady
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateInitializing:
		return "initializing"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Metadata is the app-declared identity sent with the initialization call.
type Metadata struct {
	AppID      string   `json:"appId"`
	AppName    string   `json:"appName,omitempty"`
	Version    string   `json:"version,omitempty"`
	InstanceID string   `json:"instanceId"`
	Expects    []string `json:"expects,omitempty"`
}

func (m Metadata) Validate() error {
	if strings.TrimSpace(m.AppID) == "" {
		return fmt.Errorf("%w: missing appId", ErrInvalidMetadata)
	}
	return nil
}

// Manager owns the handshake state machine for one channel.
type Manager struct {
	channel *channel.Channel
	caps    *capability.Registry
	meta    Metadata
	logger  zerolog.Logger

	mu      sync.Mutex
	state   State
	hostCtx map[string]json.RawMessage
}

func New(ch *channel.Channel, caps *capability.Registry, meta Metadata, logger zerolog.Logger) (*Manager, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(meta.InstanceID) == "" {
		meta.InstanceID = uuid.NewString()
	}
	return &Manager{
		channel: ch,
		caps:    caps,
		meta:    meta,
		logger:  logger,
	}, nil
}

func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Metadata returns the identity announced to the host, including the
// generated instance id.
func (m *Manager) Metadata() Metadata {
	return m.meta
}

// Initialize runs the handshake exchange. On success the capability registry
// is populated, the host context recorded, and the channel opened for normal
// traffic. Any malformed response is terminal: the state moves to Failed and
// the channel stays gated.
func (m *Manager) Initialize(ctx context.Context) error {
	m.mu.Lock()
	if m.state != StateUninitialized {
		state := m.state
		m.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrAlreadyInitialized, state)
	}
	m.state = StateInitializing
	m.mu.Unlock()

	args, err := protocol.MarshalArgs(m.meta)
	if err != nil {
		return m.fail(err)
	}
	results, err := m.channel.Exchange(ctx, FuncInitialize, args...)
	if err != nil {
		return m.fail(err)
	}
	if len(results) == 0 {
		return m.fail(fmt.Errorf("response carried no capability matrix"))
	}

	var matrix capability.Matrix
	if err := json.Unmarshal(results[0], &matrix); err != nil {
		return m.fail(fmt.Errorf("decode capability matrix: %v", err))
	}
	if err := m.caps.Populate(matrix); err != nil {
		return m.fail(err)
	}

	hostCtx := map[string]json.RawMessage{}
	if len(results) > 1 {
		if err := json.Unmarshal(results[1], &hostCtx); err != nil {
			return m.fail(fmt.Errorf("decode host context: %v", err))
		}
	}

	m.mu.Lock()
	m.state = StateReady
	m.hostCtx = hostCtx
	m.mu.Unlock()
	m.channel.MarkOpen()
	m.logger.Info().
		Str("app_id", m.meta.AppID).
		Str("instance_id", m.meta.InstanceID).
		Int("areas", len(matrix)).
		Msg("handshake ready")
	return nil
}

// NotifyAppLoaded posts the one-way loaded signal. Ready-gated.
func (m *Manager) NotifyAppLoaded(ctx context.Context) error {
	return m.post(ctx, FuncNotifyAppLoaded)
}

// NotifySuccess posts the one-way success signal. Ready-gated.
func (m *Manager) NotifySuccess(ctx context.Context) error {
	return m.post(ctx, FuncNotifySuccess)
}

// NotifyFailure posts the one-way failure signal with a reason. Ready-gated.
func (m *Manager) NotifyFailure(ctx context.Context, reason string) error {
	if m.State() != StateReady {
		return fmt.Errorf("%w: %s before handshake completion", protocol.ErrNotReady, FuncNotifyFailure)
	}
	args, err := protocol.MarshalArgs(reason)
	if err != nil {
		return err
	}
	return m.channel.Post(ctx, FuncNotifyFailure, args...)
}

// HostContext returns the opaque host-provided context (theme, locale and
// whatever else the host sent). Empty before Ready.
func (m *Manager) HostContext() map[string]json.RawMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]json.RawMessage, len(m.hostCtx))
	for k, v := range m.hostCtx {
		out[k] = v
	}
	return out
}

func (m *Manager) post(ctx context.Context, name string) error {
	if m.State() != StateReady {
		return fmt.Errorf("%w: %s before handshake completion", protocol.ErrNotReady, name)
	}
	return m.channel.Post(ctx, name)
}

func (m *Manager) fail(cause error) error {
	m.mu.Lock()
	m.state = StateFailed
	m.mu.Unlock()
	err := fmt.Errorf("%w: %w", ErrHandshakeFailed, cause)
	m.logger.Error().Err(err).Str("app_id", m.meta.AppID).Msg("handshake failed")
	return err
}
