package protocol

import "errors"

var (
	ErrMalformedEnvelope = errors.New("protocol: malformed envelope")
	ErrCallTimeout       = errors.New("protocol: call timed out")
	ErrNotReady          = errors.New("protocol: channel not ready")
	ErrHandlerFault      = errors.New("protocol: handler fault")
	ErrChannelClosed     = errors.New("protocol: channel closed")
)
