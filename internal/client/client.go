// Package client is the composition root for one embedded frame: it owns the
// transport, channel, registries, and handshake manager, and is passed
// explicitly to every collaborator. No ambient singletons.
package client

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"

	"github.com/softframe/embedctl/internal/capability"
	"github.com/softframe/embedctl/internal/channel"
	"github.com/softframe/embedctl/internal/config"
	"github.com/softframe/embedctl/internal/handler"
	"github.com/softframe/embedctl/internal/handshake"
	"github.com/softframe/embedctl/internal/transport"
)

var ErrConnRequired = errors.New("client: transport conn required")

type Client struct {
	cfg      config.App
	timeouts config.Timeouts
	conn     transport.Conn
	channel  *channel.Channel
	handlers *handler.Registry
	caps     *capability.Registry
	hs       *handshake.Manager
	logger   zerolog.Logger
}

func New(cfg config.App, conn transport.Conn, logger zerolog.Logger) (*Client, error) {
	if conn == nil {
		return nil, ErrConnRequired
	}
	if err := config.ValidateApp(cfg); err != nil {
		return nil, err
	}
	timeouts, err := cfg.Timeouts()
	if err != nil {
		return nil, err
	}

	handlers := handler.NewRegistry(logger)
	caps := capability.NewRegistry()
	ch := channel.New(conn, handlers, logger)
	hs, err := handshake.New(ch, caps, handshake.Metadata{
		AppID:   cfg.AppID,
		AppName: cfg.AppName,
		Version: cfg.Version,
		Expects: cfg.Expects,
	}, logger)
	if err != nil {
		return nil, err
	}

	return &Client{
		cfg:      cfg,
		timeouts: timeouts,
		conn:     conn,
		channel:  ch,
		handlers: handlers,
		caps:     caps,
		hs:       hs,
		logger:   logger,
	}, nil
}

// Start runs the handshake unless the configuration defers it to an explicit
// Initialize call.
func (c *Client) Start(ctx context.Context) error {
	if c.cfg.DeferredInit {
		c.logger.Debug().Str("app_id", c.cfg.AppID).Msg("initialization deferred")
		return nil
	}
	return c.Initialize(ctx)
}

// Initialize runs the handshake with the configured deadline applied on top
// of ctx.
func (c *Client) Initialize(ctx context.Context) error {
	initCtx, cancel := context.WithTimeout(ctx, c.timeouts.Initialize)
	defer cancel()
	return c.hs.Initialize(initCtx)
}

// DispatchIncoming is the inbound sink; bind it to the transport adapter.
func (c *Client) DispatchIncoming(raw []byte) {
	c.channel.DispatchIncoming(raw)
}

// RegisterHandler installs cb for the named event, replacing any previous
// registration for that name.
func (c *Client) RegisterHandler(name string, cb handler.Callback) {
	c.handlers.Register(name, cb)
}

func (c *Client) RemoveHandler(name string) {
	c.handlers.Remove(name)
}

// Call issues a correlated request; the configured call deadline applies when
// ctx carries none.
func (c *Client) Call(ctx context.Context, name string, args ...json.RawMessage) ([]json.RawMessage, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeouts.Call)
		defer cancel()
	}
	return c.channel.Call(ctx, name, args...)
}

func (c *Client) Post(ctx context.Context, name string, args ...json.RawMessage) error {
	return c.channel.Post(ctx, name, args...)
}

func (c *Client) Supports(area string) bool {
	return c.caps.Supports(area)
}

func (c *Client) CapabilitiesOf(area string) (capability.Flags, bool) {
	return c.caps.CapabilitiesOf(area)
}

func (c *Client) State() handshake.State {
	return c.hs.State()
}

func (c *Client) HostContext() map[string]json.RawMessage {
	return c.hs.HostContext()
}

func (c *Client) NotifyAppLoaded(ctx context.Context) error {
	return c.hs.NotifyAppLoaded(ctx)
}

func (c *Client) NotifySuccess(ctx context.Context) error {
	return c.hs.NotifySuccess(ctx)
}

func (c *Client) NotifyFailure(ctx context.Context, reason string) error {
	return c.hs.NotifyFailure(ctx, reason)
}

// Close tears the frame down: pending calls fail and the transport closes.
func (c *Client) Close() error {
	c.channel.Close(nil)
	return c.conn.Close()
}
