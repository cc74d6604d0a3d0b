// Package transport owns the injected message boundary between the embedded
// frame and its host.
//
// The core never blocks on a Conn beyond Send and never assumes synchronous
// delivery; inbound messages arrive through whatever Sink the adapter drives.
package transport

import (
	"context"
	"errors"
)

var (
	ErrConnClosed = errors.New("transport: conn closed")
	ErrNilSink    = errors.New("transport: nil sink")
)

// Sink receives one raw inbound message. Adapters invoke it on their own
// delivery goroutine; implementations must not retain the slice.
type Sink func(raw []byte)

// Conn is one duplex message boundary to the peer frame.
type Conn interface {
	Send(ctx context.Context, raw []byte) error
	Close() error
}
