package transport

import "strings"

// OriginPolicy decides whether a peer origin may attach. It is injected
// wherever a transport accepts or dials a connection; the core makes no
// origin decisions of its own.
type OriginPolicy interface {
	Allow(origin string) bool
}

// OriginFunc adapts a function into an OriginPolicy.
type OriginFunc func(origin string) bool

func (f OriginFunc) Allow(origin string) bool {
	return f(origin)
}

// StaticOrigins allows an exact allowlist of origins. An empty list allows
// nothing; the single entry "*" allows everything.
type StaticOrigins struct {
	Origins []string
}

func (s StaticOrigins) Allow(origin string) bool {
	normalized := normalizeOrigin(origin)
	if normalized == "" {
		return false
	}
	for _, allowed := range s.Origins {
		if allowed == "*" {
			return true
		}
		if normalizeOrigin(allowed) == normalized {
			return true
		}
	}
	return false
}

func normalizeOrigin(origin string) string {
	return strings.TrimSuffix(strings.ToLower(strings.TrimSpace(origin)), "/")
}
