package failure

import (
	"sync"
	"sync/atomic"
)

// Registry remembers every failure id reported during a run so that
// diagnostics are captured once per underlying failure, no matter how many
// listeners report it. A single Registry is created at startup and shared by
// every story; entries are never evicted.
type Registry struct {
	seen sync.Map
	n    atomic.Int64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// IsNewFailure records id and reports whether this is the first time it has
// been seen. Safe for concurrent use; exactly one caller observes true for a
// given id.
func (r *Registry) IsNewFailure(id ID) bool {
	if _, loaded := r.seen.LoadOrStore(id.String(), struct{}{}); loaded {
		return false
	}
	r.n.Add(1)
	return true
}

// Len returns the number of distinct failures recorded so far.
func (r *Registry) Len() int {
	return int(r.n.Load())
}
