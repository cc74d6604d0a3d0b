// Package search is the typed facade over the search feature area. It does
// no protocol work of its own: handlers go through the core registration
// surface and the one outbound call is gated on the host-reported capability.
package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/softframe/embedctl/internal/capability"
	"github.com/softframe/embedctl/internal/handler"
)

// Area is the capability-area name the host reports for search support.
const Area = "search"

// Event names in the shared flat namespace.
const (
	EventQueryChange  = "searchQueryChange"
	EventQueryClosed  = "searchQueryClosed"
	EventQueryExecute = "searchQueryExecute"
)

const funcCloseSearch = "search.closeSearch"

// Query is one host-relayed search box state. The wire shape carries no
// sequence number; handlers observe queries in delivery order and the latest
// one wins.
type Query struct {
	SearchTerm string `json:"searchTerm"`
}

// QueryHandler observes one search query event.
type QueryHandler func(Query)

// Handlers bundles the per-event callbacks; nil entries are skipped.
type Handlers struct {
	OnChange  QueryHandler
	OnClosed  QueryHandler
	OnExecute QueryHandler
}

// Core is the slice of the client this facade consumes.
type Core interface {
	RegisterHandler(name string, cb handler.Callback)
	RemoveHandler(name string)
	Call(ctx context.Context, name string, args ...json.RawMessage) ([]json.RawMessage, error)
	Supports(area string) bool
}

// RegisterHandlers subscribes the non-nil callbacks to the search events,
// replacing any previous subscriptions for those names.
func RegisterHandlers(c Core, h Handlers) {
	if h.OnChange != nil {
		c.RegisterHandler(EventQueryChange, adapt(h.OnChange))
	}
	if h.OnClosed != nil {
		c.RegisterHandler(EventQueryClosed, adapt(h.OnClosed))
	}
	if h.OnExecute != nil {
		c.RegisterHandler(EventQueryExecute, adapt(h.OnExecute))
	}
}

// UnregisterHandlers drops all search event subscriptions.
func UnregisterHandlers(c Core) {
	c.RemoveHandler(EventQueryChange)
	c.RemoveHandler(EventQueryClosed)
	c.RemoveHandler(EventQueryExecute)
}

// CloseSearch asks the host to dismiss its search experience. Callers on a
// host that never declared search support get ErrUnsupported without any
// traffic being sent.
func CloseSearch(ctx context.Context, c Core) error {
	if !c.Supports(Area) {
		return fmt.Errorf("%w: %s", capability.ErrUnsupported, Area)
	}
	_, err := c.Call(ctx, funcCloseSearch)
	return err
}

func adapt(h QueryHandler) handler.Callback {
	return func(args []json.RawMessage) error {
		var q Query
		if len(args) > 0 {
			if err := json.Unmarshal(args[0], &q); err != nil {
				return fmt.Errorf("search: decode query: %w", err)
			}
		}
		h(q)
		return nil
	}
}
