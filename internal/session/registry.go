package session

import (
	"sync"
)

// Registry is the set of currently connected sessions. A session is a member
// exactly while its connection is open from the server's point of view.
type Registry struct {
	mu       sync.RWMutex
	members  map[*Session]struct{}
	maxConns int
}

// NewRegistry creates an empty registry. maxConns <= 0 means unlimited.
func NewRegistry(maxConns int) *Registry {
	return &Registry{
		members:  make(map[*Session]struct{}),
		maxConns: maxConns,
	}
}

func (r *Registry) Add(s *Session) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[s]; ok {
		return ErrDuplicateSession
	}
	if r.maxConns > 0 && len(r.members) >= r.maxConns {
		return ErrTooManyConnections
	}
	r.members[s] = struct{}{}
	return nil
}

// Remove deletes s and reports whether it was a member. Removing an absent
// session is not an error.
func (r *Registry) Remove(s *Session) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.members[s]; !ok {
		return false
	}
	delete(r.members, s)
	return true
}

// Members returns a copy of the current membership. Callers may iterate it
// while other goroutines add or remove sessions.
func (r *Registry) Members() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Session, 0, len(r.members))
	for s := range r.members {
		result = append(result, s)
	}
	return result
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

// CloseAll closes every member's transport. Membership is left to the
// connection handlers, which unregister as their read loops end.
func (r *Registry) CloseAll() {
	for _, s := range r.Members() {
		s.Close()
	}
}
