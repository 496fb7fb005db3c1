package realtime

import "testing"

func TestRoomWireFormats(t *testing.T) {
	cases := []struct {
		room RoomID
		want string
	}{
		{PrivateRoom("u-42"), "user_u-42"},
		{RoleRoom("provider"), "providers"},
		{RoleRoom("customer"), "customers"},
		{ConversationRoom("c-7"), "conversation_c-7"},
	}
	for _, tc := range cases {
		if got := tc.room.Wire(); got != tc.want {
			t.Errorf("Wire() = %q, want %q", got, tc.want)
		}
	}
}

func TestBroadcastReachesMembersOnly(t *testing.T) {
	reg, rooms := newTestRegistry()

	h1, h2, h3 := &fakeHandle{}, &fakeHandle{}, &fakeHandle{}
	c1 := reg.Register("user-1", "customer", h1)
	c2 := reg.Register("user-2", "customer", h2)
	reg.Register("user-3", "customer", h3)

	room := ConversationRoom("c-1")
	rooms.Join(c1, room)
	rooms.Join(c2, room)

	if got := rooms.Broadcast(room, "ping", map[string]any{"n": 1}); got != 2 {
		t.Fatalf("delivered = %d, want 2", got)
	}
	if len(h3.received()) != 0 {
		t.Fatal("non-member received a room broadcast")
	}
}

func TestBroadcastExceptSkipsSender(t *testing.T) {
	reg, rooms := newTestRegistry()

	h1, h2 := &fakeHandle{}, &fakeHandle{}
	c1 := reg.Register("user-1", "customer", h1)
	c2 := reg.Register("user-2", "customer", h2)

	room := ConversationRoom("c-1")
	rooms.Join(c1, room)
	rooms.Join(c2, room)

	if got := rooms.BroadcastExcept(room, c1, "typing", nil); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
	if len(h1.received()) != 0 {
		t.Fatal("sender received its own broadcast")
	}
	if len(h2.received()) != 1 {
		t.Fatalf("peer received %d events, want 1", len(h2.received()))
	}
}

func TestUnicastOfflineUser(t *testing.T) {
	reg, rooms := newTestRegistry()

	if rooms.Unicast("ghost", "ping", nil) {
		t.Fatal("unicast to an offline user should report false")
	}

	h := &fakeHandle{}
	reg.Register("user-1", "customer", h)
	if !rooms.Unicast("user-1", "ping", map[string]any{"n": 1}) {
		t.Fatal("unicast to an online user should report true")
	}
	if len(h.received()) != 1 {
		t.Fatalf("got %d events, want 1", len(h.received()))
	}
}

func TestLeaveAllCleansEmptyRooms(t *testing.T) {
	reg, rooms := newTestRegistry()

	c1 := reg.Register("user-1", "customer", &fakeHandle{})
	room := ConversationRoom("c-1")
	rooms.Join(c1, room)

	reg.Unregister(c1)

	if got := rooms.MembersOf(room); len(got) != 0 {
		t.Fatalf("room still has members: %v", got)
	}
	if got := rooms.RoomsOf(c1); len(got) != 0 {
		t.Fatalf("connection still in rooms: %v", got)
	}
}

func TestBroadcastSkipsFailedHandles(t *testing.T) {
	reg, rooms := newTestRegistry()

	good, bad := &fakeHandle{}, &fakeHandle{failed: true}
	c1 := reg.Register("user-1", "customer", good)
	c2 := reg.Register("user-2", "customer", bad)

	room := ConversationRoom("c-1")
	rooms.Join(c1, room)
	rooms.Join(c2, room)

	// A failing handle must not count as delivered nor block the others.
	if got := rooms.Broadcast(room, "ping", nil); got != 1 {
		t.Fatalf("delivered = %d, want 1", got)
	}
}
