package gateway

import (
	"bufio"
	"errors"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"dice-parlor/internal/session"
	"dice-parlor/internal/store"
	"dice-parlor/internal/turns"
	"dice-parlor/internal/wire"
)

// Handler upgrades sockets by hand: it validates the request, hijacks the
// underlying TCP connection, writes the 101 response itself and then speaks
// raw frames. Rejections happen over plain HTTP before the upgrade; after it,
// failures use close frames.
type Handler struct {
	sessions *session.Store
	turns    *turns.Service
	registry *Registry

	// reconcile re-arms the bot director after membership-visible events.
	// Set by the server during wiring; nil is allowed in tests.
	reconcile func(sessionID string)
}

func NewHandler(sessions *session.Store, turnSvc *turns.Service, registry *Registry) *Handler {
	return &Handler{sessions: sessions, turns: turnSvc, registry: registry}
}

func (h *Handler) SetReconciler(fn func(sessionID string)) {
	h.reconcile = fn
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sessionID := q.Get("session")
	playerID := q.Get("playerId")
	token := q.Get("token")
	if sessionID == "" || playerID == "" || token == "" {
		http.Error(w, "session, playerId and token are required", http.StatusBadRequest)
		return
	}

	rec, err := h.sessions.VerifyAccess(token)
	if err != nil {
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}
	if rec.PlayerID != playerID || rec.SessionID != sessionID {
		http.Error(w, "token not valid for this player and session", http.StatusForbidden)
		return
	}

	seated := false
	err = h.sessions.View(sessionID, func(s *session.Session) error {
		_, seated = s.Participants[playerID]
		return nil
	})
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
		http.Error(w, "session is gone", http.StatusGone)
		return
	}
	if err != nil {
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !seated {
		http.Error(w, "player is not seated in this session", http.StatusForbidden)
		return
	}

	key, err := wire.CheckUpgrade(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	hj, ok := w.(http.Hijacker)
	if !ok {
		http.Error(w, "upgrade unsupported", http.StatusInternalServerError)
		return
	}
	netConn, brw, err := hj.Hijack()
	if err != nil {
		log.Error().Err(err).Msg("hijack_failed")
		return
	}
	if _, err := netConn.Write(wire.UpgradeResponse(key)); err != nil {
		netConn.Close()
		return
	}

	conn := newConn("conn_"+store.NewID(), sessionID, playerID, netConn)
	// The socket dies with its access token; the client is expected to
	// refresh and reconnect.
	conn.expiry = time.AfterFunc(time.Until(rec.ExpiresAt), func() {
		conn.close(CloseUnauthorized, "token expired")
	})
	h.registry.add(conn)
	go conn.writeLoop()

	log.Info().Str("conn_id", conn.id).Str("session_id", sessionID).Str("player_id", playerID).Msg("socket_opened")

	if sync, err := h.turns.SyncFor(sessionID); err == nil {
		h.registry.Unicast(conn, sync)
	}
	if h.reconcile != nil {
		h.reconcile(sessionID)
	}

	h.readLoop(conn, brw.Reader)

	h.registry.remove(conn)
	conn.close(CloseNormal, "bye")
	log.Info().Str("conn_id", conn.id).Str("player_id", playerID).Msg("socket_closed")
}

// readLoop pulls bytes off the socket and decodes frames from a growing
// buffer. Protocol violations close the socket; application-level problems
// only produce error messages.
func (h *Handler) readLoop(c *Conn, br *bufio.Reader) {
	buf := make([]byte, 0, 4096)
	chunk := make([]byte, 4096)
	for {
		_ = c.netConn.SetReadDeadline(time.Now().Add(readTimeout))
		n, err := br.Read(chunk)
		if err != nil {
			return
		}
		buf = append(buf, chunk[:n]...)

		for {
			frame, consumed, err := wire.Decode(buf, wire.MaxMessageBytes)
			if err != nil {
				c.close(CloseBadRequest, err.Error())
				return
			}
			if frame == nil {
				break
			}
			buf = buf[consumed:]
			if !frame.Masked {
				c.close(CloseBadRequest, wire.ErrUnmaskedFrame.Error())
				return
			}
			switch frame.Opcode {
			case wire.OpPing:
				_ = h.sessions.Heartbeat(c.sessionID, c.playerID)
				c.enqueue(wire.Encode(wire.OpPong, frame.Payload))
			case wire.OpPong:
				_ = h.sessions.Heartbeat(c.sessionID, c.playerID)
			case wire.OpClose:
				code, _ := wire.ParseClose(frame.Payload)
				if code == 0 {
					code = CloseNormal
				}
				c.close(code, "")
				return
			case wire.OpText:
				if done := h.dispatch(c, frame.Payload); done {
					return
				}
			}
		}
	}
}
