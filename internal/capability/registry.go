package capability

import "sync"

// Registry is the read-mostly lookup surface over the populated matrix.
type Registry struct {
	mu        sync.RWMutex
	matrix    Matrix
	populated bool
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Populate installs the host-reported matrix. The matrix is write-once per
// registry lifetime; a second call is rejected and leaves the first intact.
func (r *Registry) Populate(m Matrix) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.populated {
		return ErrAlreadyPopulated
	}
	copied := make(Matrix, len(m))
	for area, flags := range m {
		copied[area] = flags
	}
	r.matrix = copied
	r.populated = true
	return nil
}

func (r *Registry) Populated() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.populated
}

// Supports reports whether the host declared the area supported. It returns
// false before the matrix arrives and for any area the host did not mention.
func (r *Registry) Supports(area string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.populated {
		return false
	}
	return r.matrix[area].Supported
}

// CapabilitiesOf returns the area's flags and whether the host reported the
// area at all.
func (r *Registry) CapabilitiesOf(area string) (Flags, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if !r.populated {
		return Flags{}, false
	}
	flags, ok := r.matrix[area]
	return flags, ok
}
