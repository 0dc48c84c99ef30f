package shell

import (
	"sort"
	"sync"
	"sync/atomic"
)

// Registry maps session IDs to live sessions. Different sessions are
// accessed concurrently without contention; per-session serialization is
// the session's own lock.
type Registry struct {
	sessions sync.Map // map[string]*Session
	count    atomic.Int64
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{}
}

// Add registers a session. IDs are random, so an existing entry is never
// overwritten; Add reports false if one somehow is present.
func (r *Registry) Add(s *Session) bool {
	if _, loaded := r.sessions.LoadOrStore(s.ID, s); loaded {
		return false
	}
	r.count.Add(1)
	return true
}

// Get looks up a session
func (r *Registry) Get(id string) (*Session, bool) {
	v, ok := r.sessions.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

// Remove unregisters a session and returns it
func (r *Registry) Remove(id string) (*Session, bool) {
	v, ok := r.sessions.LoadAndDelete(id)
	if !ok {
		return nil, false
	}
	r.count.Add(-1)
	return v.(*Session), true
}

// Len returns the number of registered sessions
func (r *Registry) Len() int {
	return int(r.count.Load())
}

// Snapshot returns all sessions ordered by connect time
func (r *Registry) Snapshot() []*Session {
	var out []*Session
	r.sessions.Range(func(_, v any) bool {
		out = append(out, v.(*Session))
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		return out[i].ConnectedAt.Before(out[j].ConnectedAt)
	})
	return out
}
