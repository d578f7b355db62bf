package easel

import (
	"sync"

	"github.com/google/uuid"
)

// SessionRegistry maps opaque session tokens (UUID strings shared with
// collaborators or stored alongside documents) to the compact int64
// session ids events carry. Ids are allocated densely starting at 1 so
// serialized event lines stay short.
//
// The registry is safe for concurrent use; everything else in this
// package is not.
type SessionRegistry struct {
	mu     sync.RWMutex
	bySid  map[int64]string
	sids   map[string]int64
	nextID int64
}

// NewSessionRegistry returns an empty registry.
func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		bySid:  make(map[int64]string),
		sids:   make(map[string]int64),
		nextID: 1,
	}
}

// NewSession mints a fresh session token and returns it with its sid.
func (r *SessionRegistry) NewSession() (token string, sid int64) {
	return r.register(uuid.NewString())
}

// Sid returns the sid for the token, allocating one on first sight.
func (r *SessionRegistry) Sid(token string) int64 {
	r.mu.RLock()
	sid, ok := r.sids[token]
	r.mu.RUnlock()
	if ok {
		return sid
	}
	_, sid = r.register(token)
	return sid
}

// Token returns the token registered for sid, "" if unknown.
func (r *SessionRegistry) Token(sid int64) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bySid[sid]
}

// Len returns the number of registered sessions.
func (r *SessionRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sids)
}

func (r *SessionRegistry) register(token string) (string, int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if sid, ok := r.sids[token]; ok {
		return token, sid
	}
	sid := r.nextID
	r.nextID++
	r.sids[token] = sid
	r.bySid[sid] = token
	return token, sid
}
