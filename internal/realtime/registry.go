package realtime

import (
	"sync"

	"github.com/google/uuid"
)

// Connection is one authenticated live connection.
type Connection struct {
	ID     string
	UserID string
	Role   string

	handle Handle
}

// Registry maps user identities to their live connections. It is owned by the
// realtime Service instance (never a process-wide singleton) so independent
// instances can exist side by side in tests.
//
// Invariants:
// - A user may hold many simultaneous connections (multiple devices); IsOnline
//   is true while at least one exists.
// - Registration implicitly joins Private(userID) and RoleBroadcast(role).
// - Unregister is idempotent and safe to race with in-flight events for the
//   same connection; last writer wins on removal.
type Registry struct {
	mu     sync.RWMutex
	conns  map[string]*Connection
	byUser map[string]map[string]struct{}

	rooms *Rooms
}

// NewRegistry builds a registry and binds itself as the rooms' handle
// resolver. Registry and Rooms are separate components sharing one lifetime.
func NewRegistry(rooms *Rooms) *Registry {
	r := &Registry{
		conns:  make(map[string]*Connection),
		byUser: make(map[string]map[string]struct{}),
		rooms:  rooms,
	}
	if rooms != nil {
		rooms.resolver = r
	}
	return r
}

// Register records a live connection and joins its implicit rooms. Returns
// the new connection id.
func (r *Registry) Register(userID, role string, h Handle) string {
	connID := uuid.NewString()

	r.mu.Lock()
	r.conns[connID] = &Connection{ID: connID, UserID: userID, Role: role, handle: h}
	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(map[string]struct{})
	}
	r.byUser[userID][connID] = struct{}{}
	r.mu.Unlock()

	// Room joins take the rooms lock; never nest it under the registry lock.
	if r.rooms != nil {
		r.rooms.Join(connID, PrivateRoom(userID))
		r.rooms.Join(connID, RoleRoom(role))
	}
	return connID
}

// Unregister removes a connection and all its room memberships. Calling it
// twice, or for an unknown id, is a no-op.
func (r *Registry) Unregister(connID string) {
	r.mu.Lock()
	c, ok := r.conns[connID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.conns, connID)
	if set, ok := r.byUser[c.UserID]; ok {
		delete(set, connID)
		if len(set) == 0 {
			delete(r.byUser, c.UserID)
		}
	}
	r.mu.Unlock()

	if r.rooms != nil {
		r.rooms.LeaveAll(connID)
	}
}

// IsOnline reports whether the user holds at least one live connection.
func (r *Registry) IsOnline(userID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]) > 0
}

// Resolve returns the live handles for a user, nil when offline.
func (r *Registry) Resolve(userID string) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]Handle, 0, len(set))
	for connID := range set {
		if c, ok := r.conns[connID]; ok {
			out = append(out, c.handle)
		}
	}
	return out
}

// Get returns the connection record for a connection id.
func (r *Registry) Get(connID string) (Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return Connection{}, false
	}
	return *c, true
}

func (r *Registry) handleOf(connID string) (Handle, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.conns[connID]
	if !ok {
		return nil, false
	}
	return c.handle, true
}

func (r *Registry) connIDsOf(userID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	set, ok := r.byUser[userID]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}
