// Package relay implements the server side of the session fabric: the
// client registry, session table, per-connection endpoint, and the
// admission sequence gating new sessions.
package relay

import (
	"sync"

	"github.com/google/uuid"

	"github.com/relaydesk/fabric/internal/logging"
)

var log = logging.L("relay")

// Frame is a single outbound unit: either a text envelope or a binary
// (video/file-chunk) payload, preserving the distinction end to end so
// verbatim forwarding never reinterprets one as the other. Droppable marks
// frames that may be discarded under backpressure (VideoFrame only); every
// other frame — control, input, and file chunks, which are non-regenerable
// — must use the blocking path instead.
type Frame struct {
	Binary    bool
	Droppable bool
	Data      []byte
}

// ClientRegistration is what the registry keeps for one connected client.
type ClientRegistration struct {
	DeviceID string
	Platform string
	Outgoing chan Frame
}

// SessionRecord pairs two clients under a session id.
type SessionRecord struct {
	SessionID string
	ClientA   string
	ClientB   string
}

func (r SessionRecord) other(deviceID string) (string, bool) {
	switch deviceID {
	case r.ClientA:
		return r.ClientB, true
	case r.ClientB:
		return r.ClientA, true
	default:
		return "", false
	}
}

// Registry holds the two shared mutable tables described by the session
// fabric: clients and sessions. All mutating operations run under an
// exclusive lock so a cross-table mutation (unregister also dropping
// sessions) is never observed half-applied.
type Registry struct {
	mu       sync.RWMutex
	clients  map[string]*ClientRegistration
	sessions map[string]*SessionRecord
	bySrc    map[string]string // device_id -> session_id, for O(1) peer_of
}

func NewRegistry() *Registry {
	return &Registry{
		clients:  make(map[string]*ClientRegistration),
		sessions: make(map[string]*SessionRecord),
		bySrc:    make(map[string]string),
	}
}

// RegisterClient inserts a registration, displacing and closing out any
// prior entry for the same device_id.
func (r *Registry) RegisterClient(deviceID, platform string, outgoing chan Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if prev, ok := r.clients[deviceID]; ok {
		close(prev.Outgoing)
	}
	r.clients[deviceID] = &ClientRegistration{DeviceID: deviceID, Platform: platform, Outgoing: outgoing}
}

// UnregisterClient removes the client and every session it participates in.
// It returns the id of the session that was torn down, if deviceID was in
// one, so the caller can audit-log the session's end.
func (r *Registry) UnregisterClient(deviceID string) (endedSession string, ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, deviceID)

	if sessionID, has := r.bySrc[deviceID]; has {
		if rec, has := r.sessions[sessionID]; has {
			delete(r.bySrc, rec.ClientA)
			delete(r.bySrc, rec.ClientB)
			delete(r.sessions, sessionID)
			return sessionID, true
		}
	}
	return "", false
}

// CreateSession allocates a fresh session id and inserts the record.
func (r *Registry) CreateSession(a, b string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sessionID := uuid.NewString()
	rec := &SessionRecord{SessionID: sessionID, ClientA: a, ClientB: b}
	r.sessions[sessionID] = rec
	r.bySrc[a] = sessionID
	r.bySrc[b] = sessionID
	return sessionID
}

// PeerOf returns the other participant of deviceID's active session, if any.
func (r *Registry) PeerOf(deviceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sessionID, ok := r.bySrc[deviceID]
	if !ok {
		return "", false
	}
	rec, ok := r.sessions[sessionID]
	if !ok {
		return "", false
	}
	return rec.other(deviceID)
}

// SessionOf returns the session id deviceID currently participates in, if any.
func (r *Registry) SessionOf(deviceID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, ok := r.bySrc[deviceID]
	return sessionID, ok
}

// InSession reports whether deviceID currently participates in a session.
func (r *Registry) InSession(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.bySrc[deviceID]
	return ok
}

// Relay enqueues frame into to's outgoing queue. A missing target is
// logged and dropped; the sender is never notified of the failure.
func (r *Registry) Relay(from, to string, frame Frame) {
	r.mu.RLock()
	target, ok := r.clients[to]
	r.mu.RUnlock()

	if !ok {
		log.Warn("relay target missing", "from", from, "to", to)
		return
	}

	select {
	case target.Outgoing <- frame:
	default:
		if frame.Droppable {
			// Video frames tolerate loss; a blocked send means the peer's
			// writer is behind, so the new frame is dropped and the frames
			// already queued are kept.
			log.Debug("relay target backlogged, dropping video frame", "to", to)
			return
		}
		log.Warn("relay target backlogged on non-droppable frame", "to", to, "binary", frame.Binary)
		target.Outgoing <- frame
	}
}

// Exists reports whether device_id is currently registered.
func (r *Registry) Exists(deviceID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.clients[deviceID]
	return ok
}

// ActiveConnections reports the number of currently registered clients.
func (r *Registry) ActiveConnections() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
