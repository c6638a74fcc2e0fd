package session

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dice-parlor/internal/game"
	"dice-parlor/internal/store"
)

var ErrSessionNotFound = errors.New("session_not_found")
var ErrSessionExpired = errors.New("session_expired")
var ErrNotSeated = errors.New("player_not_seated")
var ErrAlreadySeated = errors.New("player_already_seated")

const MaxBotsPerSession = 3

var botNames = []string{"Pips", "Tumbler", "Boxcar"}

type Config struct {
	SessionTTL     time.Duration
	AccessTTL      time.Duration
	RefreshTTL     time.Duration
	BotsPerSession int
}

func DefaultConfig() Config {
	return Config{
		SessionTTL:     2 * time.Hour,
		AccessTTL:      15 * time.Minute,
		RefreshTTL:     7 * 24 * time.Hour,
		BotsPerSession: 2,
	}
}

// Store owns every live session and token record. All mutation happens under
// one lock; handlers never hold it across I/O.
type Store struct {
	cfg Config

	mu       sync.Mutex
	sessions map[string]*Session
	access   map[string]TokenRecord
	refresh  map[string]TokenRecord

	// onEvict runs after a session is removed, outside the store lock, so
	// the gateway can close its sockets.
	onEvict func(sessionID string, reason string)

	now func() time.Time
}

func NewStore(cfg Config) *Store {
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = DefaultConfig().SessionTTL
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = DefaultConfig().AccessTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultConfig().RefreshTTL
	}
	if cfg.BotsPerSession < 0 {
		cfg.BotsPerSession = 0
	}
	if cfg.BotsPerSession > MaxBotsPerSession {
		cfg.BotsPerSession = MaxBotsPerSession
	}
	return &Store{
		cfg:      cfg,
		sessions: map[string]*Session{},
		access:   map[string]TokenRecord{},
		refresh:  map[string]TokenRecord{},
		now:      time.Now,
	}
}

func (st *Store) SetEvictHook(fn func(sessionID, reason string)) {
	st.mu.Lock()
	st.onEvict = fn
	st.mu.Unlock()
}

// Create opens a session hosted by one human and seeds bot participants up
// to the configured count.
func (st *Store) Create(hostID, hostName string) (*Session, error) {
	code, err := NewRoomCode()
	if err != nil {
		return nil, err
	}
	now := st.now()
	s := &Session{
		ID:           "sess_" + store.NewID(),
		RoomCode:     code,
		CreatedAt:    now,
		ExpiresAt:    now.Add(st.cfg.SessionTTL),
		Participants: map[string]*Participant{},
	}
	s.seat(&Participant{PlayerID: hostID, DisplayName: hostName, JoinedAt: now, LastHeartbeatAt: now})
	for i := 0; i < st.cfg.BotsPerSession; i++ {
		s.seat(&Participant{
			PlayerID:        "bot_" + store.NewID(),
			DisplayName:     botNames[i%len(botNames)],
			JoinedAt:        now,
			LastHeartbeatAt: now,
			IsBot:           true,
		})
	}
	s.Turn = game.NewTurnState(s.SeatedIDs(), now)

	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	log.Info().Str("session_id", s.ID).Str("room_code", code).Int("bots", st.cfg.BotsPerSession).Msg("session_created")
	return s, nil
}

// Join seats a new human participant and reconciles turn order.
func (st *Store) Join(sessionID, playerID, displayName string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, err := st.liveLocked(sessionID)
	if err != nil {
		return err
	}
	if _, ok := s.Participants[playerID]; ok {
		return ErrAlreadySeated
	}
	now := st.now()
	s.seat(&Participant{PlayerID: playerID, DisplayName: displayName, JoinedAt: now, LastHeartbeatAt: now})
	s.Turn.Reconcile(s.SeatedIDs(), now)
	return nil
}

type LeaveResult struct {
	Destroyed     bool
	ActiveChanged bool
	NewActive     string
}

// Leave removes a participant. The session is destroyed when its last human
// leaves; otherwise turn order is reconciled and the caller learns whether a
// new active player resulted.
func (st *Store) Leave(sessionID, playerID string) (LeaveResult, error) {
	st.mu.Lock()
	s, err := st.liveLocked(sessionID)
	if err != nil {
		st.mu.Unlock()
		return LeaveResult{}, err
	}
	p, ok := s.Participants[playerID]
	if !ok {
		st.mu.Unlock()
		return LeaveResult{}, ErrNotSeated
	}
	delete(s.Participants, playerID)

	if !p.IsBot && s.HumanCount() == 0 {
		st.destroyLocked(s)
		evict := st.onEvict
		st.mu.Unlock()
		if evict != nil {
			evict(sessionID, "room_empty")
		}
		return LeaveResult{Destroyed: true}, nil
	}

	changed := s.Turn.Reconcile(s.SeatedIDs(), st.now())
	res := LeaveResult{ActiveChanged: changed, NewActive: s.Turn.ActivePlayerID}
	st.mu.Unlock()
	return res, nil
}

// Heartbeat records liveness for a seated participant.
func (st *Store) Heartbeat(sessionID, playerID string) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, err := st.liveLocked(sessionID)
	if err != nil {
		return err
	}
	p, ok := s.Participants[playerID]
	if !ok {
		return ErrNotSeated
	}
	p.LastHeartbeatAt = st.now()
	return nil
}

// View runs fn with the session under the store lock. fn must not block or
// re-enter the store.
func (st *Store) View(sessionID string, fn func(*Session) error) error {
	st.mu.Lock()
	defer st.mu.Unlock()
	s, err := st.liveLocked(sessionID)
	if err != nil {
		return err
	}
	return fn(s)
}

// Update is View; the split names document intent at call sites.
func (st *Store) Update(sessionID string, fn func(*Session) error) error {
	return st.View(sessionID, fn)
}

// liveLocked resolves a session, lazily evicting it when expired.
func (st *Store) liveLocked(sessionID string) (*Session, error) {
	s, ok := st.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if st.now().After(s.ExpiresAt) {
		st.destroyLocked(s)
		evict := st.onEvict
		if evict != nil {
			// Run the hook without the lock once the caller unwinds.
			go evict(s.ID, "session_expired")
		}
		return nil, ErrSessionExpired
	}
	return s, nil
}

func (st *Store) destroyLocked(s *Session) {
	delete(st.sessions, s.ID)
	for key, rec := range st.access {
		if rec.SessionID == s.ID {
			delete(st.access, key)
		}
	}
	for key, rec := range st.refresh {
		if rec.SessionID == s.ID {
			delete(st.refresh, key)
		}
	}
	log.Info().Str("session_id", s.ID).Msg("session_destroyed")
}

// SessionIDs snapshots the ids of all live sessions.
func (st *Store) SessionIDs() []string {
	st.mu.Lock()
	defer st.mu.Unlock()
	ids := make([]string, 0, len(st.sessions))
	for id := range st.sessions {
		ids = append(ids, id)
	}
	return ids
}
