package runtime

import (
	"sync"

	"github.com/simobotlist/gateway/transport"
)

// Registry is the set of currently-attached sessions and their
// authentication state. It is the single piece of shared mutable state in
// the gateway; a coarse RWMutex over the table is sufficient since
// per-entry fields carry their own lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]*Entry
}

func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]*Entry)}
}

// Admit tracks a new session as an unauthenticated, connected entry and
// returns its transport-assigned id.
func (r *Registry) Admit(session transport.Session) string {
	entry := &Entry{
		id:        session.ID(),
		session:   session,
		connected: true,
	}

	r.mu.Lock()
	r.entries[entry.id] = entry
	r.mu.Unlock()

	return entry.id
}

// Find returns the entry for id, or nil when the id is unknown.
func (r *Registry) Find(id string) *Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.entries[id]
}

// MarkDisconnected flips connected off for the matching entry. The entry
// stays tracked and keeps its authentication state; unknown ids are a
// no-op.
func (r *Registry) MarkDisconnected(id string) {
	if entry := r.Find(id); entry != nil {
		entry.markDisconnected()
	}
}

// Remove drops the entry from the table. The gateway never calls this on
// disconnect itself, since a disconnected entry stays findable; external
// cleanup can invoke it once nothing references the entry, which keeps
// the table bounded under connection churn.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	delete(r.entries, id)
	r.mu.Unlock()
}

// All returns a snapshot of the tracked entries. Entries admitted or
// removed after the snapshot is taken are not reflected; iterating the
// snapshot is always safe.
func (r *Registry) All() []*Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries := make([]*Entry, 0, len(r.entries))
	for _, entry := range r.entries {
		entries = append(entries, entry)
	}
	return entries
}

// Len reports the number of tracked entries, connected or not.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Connected reports the number of entries whose transport is still live.
func (r *Registry) Connected() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, entry := range r.entries {
		if entry.Connected() {
			n++
		}
	}
	return n
}
