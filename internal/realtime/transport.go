package realtime

// Handle is one live bidirectional channel to a client, owned by the transport
// adapter (see internal/realtime/ws). The core never blocks on a handle: Emit
// must queue or fail fast, never wait on the peer.
//
// Rules:
// - No transport SDK calls outside transport adapters.
// - The wire framing (upgrade handshake, ping/pong) is the adapter's business;
//   the core only knows event names and payloads.
type Handle interface {
	// Emit queues an outbound event for this connection.
	Emit(event string, payload any) error

	// Close tears the connection down. Safe to call more than once.
	Close() error
}
