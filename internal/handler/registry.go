// Package handler owns the named-event handler registry.
//
// Event names are a flat, open-ended namespace shared by every feature
// module; each name holds at most one callback and re-registration replaces
// the previous one. Nothing is buffered: an event with no handler is simply
// unobserved.
package handler

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/softframe/embedctl/internal/protocol"
)

// Callback handles one dispatched event. A returned error (or a panic) is
// contained at the dispatch boundary and never propagates to the caller.
type Callback func(args []json.RawMessage) error

type Registry struct {
	mu      sync.RWMutex
	entries map[string]Callback
	logger  zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		entries: make(map[string]Callback),
		logger:  logger,
	}
}

// Register installs cb for name, replacing any existing entry. Registering a
// nil callback or an empty name is a no-op.
func (r *Registry) Register(name string, cb Callback) {
	key := strings.TrimSpace(name)
	if key == "" || cb == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = cb
}

// Remove drops the entry for name. Removing an unknown name is a no-op.
func (r *Registry) Remove(name string) {
	key := strings.TrimSpace(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
}

// Dispatch invokes the handler registered for name, if any, and reports
// whether one was registered. A faulting handler is logged and isolated; the
// registry stays intact either way.
func (r *Registry) Dispatch(name string, args []json.RawMessage) bool {
	key := strings.TrimSpace(name)
	r.mu.RLock()
	cb, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if err := invoke(cb, args); err != nil {
		r.logger.Warn().
			Str("event", key).
			Err(fmt.Errorf("%w: %v", protocol.ErrHandlerFault, err)).
			Msg("handler fault contained")
	}
	return true
}

// Names returns the registered event names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.entries))
	for name := range r.entries {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func invoke(cb Callback, args []json.RawMessage) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return cb(args)
}
