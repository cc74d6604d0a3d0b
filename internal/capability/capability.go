// Package capability holds the host-reported feature-support matrix.
//
// The matrix is written exactly once, at handshake completion. Every lookup
// before that reports "not supported" so callers gate conservatively instead
// of failing.
package capability

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrAlreadyPopulated = errors.New("capability: matrix already populated")
	ErrInvalidMatrix    = errors.New("capability: invalid matrix")
	ErrUnsupported      = errors.New("capability: area not supported")
)

// Flags is the feature-flag set for one capability area. A host reports an
// area either as a bare boolean or as a nested object of feature booleans;
// both decode here, and a nested object implies the area itself is supported.
type Flags struct {
	Supported bool
	Features  map[string]bool
}

func (f Flags) MarshalJSON() ([]byte, error) {
	if f.Features == nil {
		return json.Marshal(f.Supported)
	}
	return json.Marshal(f.Features)
}

func (f *Flags) UnmarshalJSON(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMatrix, err)
	}
	flags, err := flagsFromAny(v)
	if err != nil {
		return err
	}
	*f = flags
	return nil
}

// Feature reports one named flag inside the area.
func (f Flags) Feature(name string) bool {
	return f.Supported && f.Features[name]
}

// Matrix maps capability-area names to their host-reported flags. Absence of
// an area means "not supported", never an error.
type Matrix map[string]Flags

// MatrixFromAny converts a decoded generic mapping (for example from a TOML
// host config) into a Matrix.
func MatrixFromAny(raw map[string]any) (Matrix, error) {
	m := make(Matrix, len(raw))
	for area, v := range raw {
		flags, err := flagsFromAny(v)
		if err != nil {
			return nil, fmt.Errorf("%w: area %q", ErrInvalidMatrix, area)
		}
		m[area] = flags
	}
	return m, nil
}

func flagsFromAny(v any) (Flags, error) {
	switch val := v.(type) {
	case bool:
		return Flags{Supported: val}, nil
	case map[string]any:
		features := make(map[string]bool, len(val))
		for name, fv := range val {
			b, ok := fv.(bool)
			if !ok {
				return Flags{}, fmt.Errorf("%w: feature %q is not a boolean", ErrInvalidMatrix, name)
			}
			features[name] = b
		}
		return Flags{Supported: true, Features: features}, nil
	default:
		return Flags{}, fmt.Errorf("%w: unexpected flag shape %T", ErrInvalidMatrix, v)
	}
}
