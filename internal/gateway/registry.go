package gateway

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog/log"

	"dice-parlor/internal/wire"
)

// Registry tracks live sockets per session. It is the server's Broadcaster
// and the bot director's presence source. Only humans hold sockets; bots
// exist purely server-side.
type Registry struct {
	mu        sync.Mutex
	bySession map[string]map[*Conn]struct{}
}

func NewRegistry() *Registry {
	return &Registry{bySession: map[string]map[*Conn]struct{}{}}
}

func (r *Registry) add(c *Conn) {
	r.mu.Lock()
	set, ok := r.bySession[c.sessionID]
	if !ok {
		set = map[*Conn]struct{}{}
		r.bySession[c.sessionID] = set
	}
	set[c] = struct{}{}
	r.mu.Unlock()
}

func (r *Registry) remove(c *Conn) {
	r.mu.Lock()
	if set, ok := r.bySession[c.sessionID]; ok {
		delete(set, c)
		if len(set) == 0 {
			delete(r.bySession, c.sessionID)
		}
	}
	r.mu.Unlock()
}

// Broadcast fans payload out to every socket in the session.
func (r *Registry) Broadcast(sessionID string, payload any) {
	r.BroadcastExcept(sessionID, nil, payload)
}

// BroadcastExcept fans payload out to the session, skipping one sender.
func (r *Registry) BroadcastExcept(sessionID string, except *Conn, payload any) {
	frame, err := encodeText(payload)
	if err != nil {
		log.Error().Err(err).Str("session_id", sessionID).Msg("broadcast_encode_failed")
		return
	}
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.bySession[sessionID]))
	for c := range r.bySession[sessionID] {
		if c != except {
			conns = append(conns, c)
		}
	}
	r.mu.Unlock()
	for _, c := range conns {
		c.enqueue(frame)
	}
}

// Unicast sends payload to one socket.
func (r *Registry) Unicast(c *Conn, payload any) {
	frame, err := encodeText(payload)
	if err != nil {
		log.Error().Err(err).Str("conn_id", c.id).Msg("unicast_encode_failed")
		return
	}
	c.enqueue(frame)
}

// CloseSession closes every socket in the session with one code and reason.
func (r *Registry) CloseSession(sessionID string, code uint16, reason string) {
	r.mu.Lock()
	conns := make([]*Conn, 0, len(r.bySession[sessionID]))
	for c := range r.bySession[sessionID] {
		conns = append(conns, c)
	}
	delete(r.bySession, sessionID)
	r.mu.Unlock()
	for _, c := range conns {
		c.close(code, reason)
	}
}

// HumansConnected counts live sockets in the session.
func (r *Registry) HumansConnected(sessionID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.bySession[sessionID])
}

// ConnectedHumanIDs lists the distinct player ids holding a socket.
func (r *Registry) ConnectedHumanIDs(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	seen := map[string]bool{}
	ids := []string{}
	for c := range r.bySession[sessionID] {
		if !seen[c.playerID] {
			seen[c.playerID] = true
			ids = append(ids, c.playerID)
		}
	}
	return ids
}

func encodeText(payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return wire.Encode(wire.OpText, body), nil
}
