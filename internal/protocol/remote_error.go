package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// RemoteError is the structured error the host places in a response's first
// args slot when the call failed on the host side.
type RemoteError struct {
	Code    int    `json:"errorCode,omitempty"`
	Message string `json:"message,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("protocol: remote error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("protocol: remote error: %s", e.Message)
}

// SplitResponseArgs separates a response's error slot from its result slots.
// The first slot is error-or-null; everything after it belongs to the caller.
// Hosts are loose about the error slot's shape, so a bare string is accepted
// as a message and null/false/absent all mean success.
func SplitResponseArgs(args []json.RawMessage) (*RemoteError, []json.RawMessage) {
	if len(args) == 0 {
		return nil, nil
	}
	slot := args[0]
	results := args[1:]
	if isJSONNull(slot) {
		return nil, results
	}
	if bytes.HasPrefix(bytes.TrimSpace(slot), []byte("{")) {
		var remote RemoteError
		if err := json.Unmarshal(slot, &remote); err == nil {
			return &remote, results
		}
	}
	var msg string
	if err := json.Unmarshal(slot, &msg); err == nil {
		return &RemoteError{Message: msg}, results
	}
	return &RemoteError{Message: string(slot)}, results
}
