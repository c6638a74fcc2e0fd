package gateway

import (
	"net"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dice-parlor/internal/wire"
)

const (
	sendQueueDepth = 16
	writeTimeout   = 10 * time.Second
	readTimeout    = 10 * time.Minute
)

// Close codes sent to clients. 4xxx codes mirror the HTTP status the same
// failure would produce before the upgrade.
const (
	CloseNormal       uint16 = 1000
	CloseBadRequest   uint16 = 4400
	CloseUnauthorized uint16 = 4401
	CloseForbidden    uint16 = 4403
	CloseSessionGone  uint16 = 4408
	CloseInternal     uint16 = 1011
)

// Conn is one upgraded socket bound to a seated human player. Writes go
// through the send queue so the write loop is the only goroutine touching the
// socket's write side.
type Conn struct {
	id        string
	sessionID string
	playerID  string

	netConn net.Conn
	send    chan []byte
	done    chan struct{}

	closeOnce sync.Once
	expiry    *time.Timer
}

func newConn(id, sessionID, playerID string, netConn net.Conn) *Conn {
	return &Conn{
		id:        id,
		sessionID: sessionID,
		playerID:  playerID,
		netConn:   netConn,
		send:      make(chan []byte, sendQueueDepth),
		done:      make(chan struct{}),
	}
}

// enqueue queues an encoded frame. A client that cannot drain its queue is
// dropped instead of stalling the broadcaster.
func (c *Conn) enqueue(frame []byte) {
	select {
	case <-c.done:
		return
	default:
	}
	select {
	case c.send <- frame:
	default:
		log.Warn().Str("conn_id", c.id).Str("player_id", c.playerID).Msg("slow_consumer_dropped")
		c.close(CloseInternal, "send queue overflow")
	}
}

// close queues a close frame and stops the write loop. Safe to call from any
// goroutine, any number of times.
func (c *Conn) close(code uint16, reason string) {
	c.closeOnce.Do(func() {
		if c.expiry != nil {
			c.expiry.Stop()
		}
		select {
		case c.send <- wire.EncodeClose(code, reason):
		default:
		}
		close(c.done)
	})
}

// writeLoop drains the send queue onto the socket. On shutdown it flushes
// whatever is queued, including the pending close frame, then closes the
// socket, which also unblocks the read loop.
func (c *Conn) writeLoop() {
	defer c.netConn.Close()
	for {
		select {
		case frame := <-c.send:
			_ = c.netConn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if _, err := c.netConn.Write(frame); err != nil {
				return
			}
		case <-c.done:
			for {
				select {
				case frame := <-c.send:
					_ = c.netConn.SetWriteDeadline(time.Now().Add(time.Second))
					if _, err := c.netConn.Write(frame); err != nil {
						return
					}
				default:
					return
				}
			}
		}
	}
}
