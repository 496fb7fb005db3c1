package realtime

import (
	"log/slog"
	"sync"
)

// RoomKind discriminates the typed room variants. The ad hoc wire strings
// ("user_{id}", "{role}s") existing clients expect are produced only by
// RoomID.Wire, so the naming convention lives in exactly one place.
type RoomKind int

const (
	// RoomPrivate is a user's own room; every connection of that user is a
	// member for as long as it is registered.
	RoomPrivate RoomKind = iota
	// RoomRole groups all connections sharing a marketplace role.
	RoomRole
	// RoomConversation groups the participants of one conversation.
	RoomConversation
)

// RoomID identifies a named broadcast set.
type RoomID struct {
	Kind RoomKind
	Key  string
}

func PrivateRoom(userID string) RoomID { return RoomID{Kind: RoomPrivate, Key: userID} }

func RoleRoom(role string) RoomID { return RoomID{Kind: RoomRole, Key: role} }

func ConversationRoom(conversationID string) RoomID {
	return RoomID{Kind: RoomConversation, Key: conversationID}
}

// Wire maps a RoomID to the wire string existing clients join by.
func (id RoomID) Wire() string {
	switch id.Kind {
	case RoomPrivate:
		return "user_" + id.Key
	case RoomRole:
		return id.Key + "s"
	case RoomConversation:
		return "conversation_" + id.Key
	default:
		return id.Key
	}
}

// handleResolver is the slice of the Registry the room manager needs: mapping
// connection ids and user ids back to live handles.
type handleResolver interface {
	handleOf(connID string) (Handle, bool)
	connIDsOf(userID string) []string
}

// Rooms tracks room membership for live connections.
//
// Invariants:
// - Rooms are created implicitly on first join and garbage-collected when the
//   last member leaves.
// - Membership maps are shared mutable state accessed by many connection
//   workers; all access goes through the RWMutex.
// - Fan-out never holds the lock: members are snapshotted first, then emitted
//   to, so one slow or failing handle cannot stall membership changes.
type Rooms struct {
	mu      sync.RWMutex
	members map[RoomID]map[string]struct{}
	joined  map[string]map[RoomID]struct{}

	resolver handleResolver
	log      *slog.Logger
}

func NewRooms(log *slog.Logger) *Rooms {
	if log == nil {
		log = slog.Default()
	}
	return &Rooms{
		members: make(map[RoomID]map[string]struct{}),
		joined:  make(map[string]map[RoomID]struct{}),
		log:     log,
	}
}

func (r *Rooms) Join(connID string, room RoomID) {
	if connID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[room]; !ok {
		r.members[room] = make(map[string]struct{})
	}
	r.members[room][connID] = struct{}{}

	if _, ok := r.joined[connID]; !ok {
		r.joined[connID] = make(map[RoomID]struct{})
	}
	r.joined[connID][room] = struct{}{}
}

func (r *Rooms) Leave(connID string, room RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(connID, room)
}

// LeaveAll removes a connection from every room it had joined. Called on
// unregister; idempotent.
func (r *Rooms) LeaveAll(connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for room := range r.joined[connID] {
		r.leaveLocked(connID, room)
	}
}

func (r *Rooms) leaveLocked(connID string, room RoomID) {
	if set, ok := r.members[room]; ok {
		delete(set, connID)
		// No empty sets left behind; rooms exist only while populated.
		if len(set) == 0 {
			delete(r.members, room)
		}
	}
	if set, ok := r.joined[connID]; ok {
		delete(set, room)
		if len(set) == 0 {
			delete(r.joined, connID)
		}
	}
}

// MembersOf returns a snapshot of the room's member connection ids.
func (r *Rooms) MembersOf(room RoomID) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.members[room]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	return out
}

// RoomsOf returns a snapshot of the rooms a connection has joined.
func (r *Rooms) RoomsOf(connID string) []RoomID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.joined[connID]
	if !ok {
		return nil
	}
	out := make([]RoomID, 0, len(set))
	for room := range set {
		out = append(out, room)
	}
	return out
}

// Broadcast fans an event out to every current member of a room and returns
// how many handles accepted it. A failing member never aborts delivery to the
// others.
func (r *Rooms) Broadcast(room RoomID, event string, payload any) int {
	return r.BroadcastExcept(room, "", event, payload)
}

// BroadcastExcept is Broadcast minus one connection (typically the sender).
func (r *Rooms) BroadcastExcept(room RoomID, exceptConnID, event string, payload any) int {
	members := r.MembersOf(room)
	if len(members) == 0 || r.resolver == nil {
		return 0
	}

	delivered := 0
	for _, connID := range members {
		if connID == exceptConnID {
			continue
		}
		h, ok := r.resolver.handleOf(connID)
		if !ok {
			// Raced with an unregister; skip.
			continue
		}
		if err := h.Emit(event, payload); err != nil {
			r.log.Warn("broadcast emit failed", "room", room.Wire(), "conn_id", connID, "event", event, "err", err)
			continue
		}
		delivered++
	}
	return delivered
}

// Unicast resolves a user via the registry and sends the event to each of
// their live connections. It returns false, without error, when the user is
// offline or nothing could be emitted; the caller decides fallback.
func (r *Rooms) Unicast(userID, event string, payload any) bool {
	if r.resolver == nil {
		return false
	}
	connIDs := r.resolver.connIDsOf(userID)
	if len(connIDs) == 0 {
		return false
	}

	delivered := 0
	for _, connID := range connIDs {
		h, ok := r.resolver.handleOf(connID)
		if !ok {
			continue
		}
		if err := h.Emit(event, payload); err != nil {
			r.log.Warn("unicast emit failed", "user_id", userID, "conn_id", connID, "event", event, "err", err)
			continue
		}
		delivered++
	}
	return delivered > 0
}
