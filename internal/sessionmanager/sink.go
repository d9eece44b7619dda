// Package sessionmanager implements the seat registry described in spec
// §4.3: playerId <-> (nickname, sink, ready flag, reconnect token,
// connected flag). It never imports the transport package directly — seats
// are addressed through the MessageSink abstraction, generalized from the
// teacher's Hub (internal/websocket/hub.go), which keyed the same registry
// off connection identity instead of seat identity.
package sessionmanager

// MessageSink is the minimal write-side surface a transport connection must
// offer the session manager. Implementations must not block indefinitely;
// the reference gameserver connection backs this with a buffered channel
// send, dropping the frame rather than stalling the session thread.
type MessageSink interface {
	// Send delivers a single already-encoded wire frame. Implementations
	// should treat this as best-effort: a slow or dead client must never be
	// allowed to block the caller.
	Send(frame []byte)
}
