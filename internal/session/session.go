package session

import (
	"crypto/rand"
	"math/big"
	"sort"
	"time"

	"dice-parlor/internal/game"
)

type Participant struct {
	PlayerID        string    `json:"playerId"`
	DisplayName     string    `json:"displayName"`
	JoinedAt        time.Time `json:"joinedAt"`
	LastHeartbeatAt time.Time `json:"lastHeartbeatAt"`
	IsBot           bool      `json:"isBot"`

	seat int
}

// Session is one multiplayer room instance with a bounded lifetime. It is
// owned by the Store and only ever touched under the store lock.
type Session struct {
	ID           string                  `json:"sessionId"`
	RoomCode     string                  `json:"roomCode"`
	CreatedAt    time.Time               `json:"createdAt"`
	ExpiresAt    time.Time               `json:"expiresAt"`
	Participants map[string]*Participant `json:"participants"`
	Turn         *game.TurnState         `json:"turnState"`

	nextSeat int
}

// SeatedIDs returns participant ids in seating order (join order), which
// keeps turn-order reconciliation deterministic.
func (s *Session) SeatedIDs() []string {
	seats := make([]*Participant, 0, len(s.Participants))
	for _, p := range s.Participants {
		seats = append(seats, p)
	}
	sort.Slice(seats, func(i, j int) bool { return seats[i].seat < seats[j].seat })
	ids := make([]string, len(seats))
	for i, p := range seats {
		ids[i] = p.PlayerID
	}
	return ids
}

func (s *Session) HumanCount() int {
	n := 0
	for _, p := range s.Participants {
		if !p.IsBot {
			n++
		}
	}
	return n
}

func (s *Session) HasBots() bool {
	for _, p := range s.Participants {
		if p.IsBot {
			return true
		}
	}
	return false
}

// BotIDs returns the bot participant ids in seating order.
func (s *Session) BotIDs() []string {
	ids := []string{}
	for _, id := range s.SeatedIDs() {
		if s.Participants[id].IsBot {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *Session) seat(p *Participant) {
	p.seat = s.nextSeat
	s.nextSeat++
	s.Participants[p.PlayerID] = p
}

const roomCodeCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// NewRoomCode returns a 6-character join code.
func NewRoomCode() (string, error) {
	code := make([]byte, 6)
	for i := range code {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(roomCodeCharset))))
		if err != nil {
			return "", err
		}
		code[i] = roomCodeCharset[n.Int64()]
	}
	return string(code), nil
}
