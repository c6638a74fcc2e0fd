package bots

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"dice-parlor/internal/game"
	"dice-parlor/internal/session"
	"dice-parlor/internal/turns"
)

// Presence reports which humans currently hold a live socket in a session.
// The gateway registry satisfies it.
type Presence interface {
	HumansConnected(sessionID string) int
	ConnectedHumanIDs(sessionID string) []string
}

// TurnAdvancer is the slice of the turn service the director drives.
type TurnAdvancer interface {
	ActiveBot(sessionID string) (string, bool)
	AdvanceBotTurn(sessionID, botID string, dice []game.Die) error
}

type Config struct {
	AmbientMin time.Duration
	AmbientMax time.Duration
	AdvanceMin time.Duration
	AdvanceMax time.Duration
}

func DefaultConfig() Config {
	return Config{
		AmbientMin: 20 * time.Second,
		AmbientMax: 45 * time.Second,
		AdvanceMin: 2 * time.Second,
		AdvanceMax: 6 * time.Second,
	}
}

// Director runs one supervisor goroutine per session that has bot
// participants. The ambient loop injects chatter; the advance loop plays a
// bot's turn when the bot holds it and at least one human is watching. A bot
// holding the turn in an empty room waits for a human to come back.
type Director struct {
	cfg      Config
	sessions *session.Store
	turns    TurnAdvancer
	cast     turns.Broadcaster
	presence Presence

	mu    sync.Mutex
	loops map[string]context.CancelFunc
	rnd   *rand.Rand
}

func NewDirector(cfg Config, sessions *session.Store, advancer TurnAdvancer, cast turns.Broadcaster, presence Presence) *Director {
	if cfg.AmbientMin <= 0 || cfg.AmbientMax < cfg.AmbientMin {
		cfg.AmbientMin = DefaultConfig().AmbientMin
		cfg.AmbientMax = DefaultConfig().AmbientMax
	}
	if cfg.AdvanceMin <= 0 || cfg.AdvanceMax < cfg.AdvanceMin {
		cfg.AdvanceMin = DefaultConfig().AdvanceMin
		cfg.AdvanceMax = DefaultConfig().AdvanceMax
	}
	return &Director{
		cfg:      cfg,
		sessions: sessions,
		turns:    advancer,
		cast:     cast,
		presence: presence,
		loops:    map[string]context.CancelFunc{},
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Reconcile starts or stops the session's supervisor to match its current
// membership. Called after every create/join/leave and by the evict hook.
// Idempotent.
func (d *Director) Reconcile(sessionID string) {
	wantLoop := false
	err := d.sessions.View(sessionID, func(s *session.Session) error {
		wantLoop = s.HasBots()
		return nil
	})
	if err != nil {
		wantLoop = false
	}

	d.mu.Lock()
	cancel, running := d.loops[sessionID]
	if wantLoop == running {
		d.mu.Unlock()
		return
	}
	if !wantLoop {
		delete(d.loops, sessionID)
		d.mu.Unlock()
		cancel()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.loops[sessionID] = cancel
	d.mu.Unlock()

	log.Debug().Str("session_id", sessionID).Msg("bot_loop_started")
	go d.run(ctx, sessionID)
}

// Stop tears down one session's supervisor if it is running.
func (d *Director) Stop(sessionID string) {
	d.mu.Lock()
	cancel, ok := d.loops[sessionID]
	if ok {
		delete(d.loops, sessionID)
	}
	d.mu.Unlock()
	if ok {
		cancel()
		log.Debug().Str("session_id", sessionID).Msg("bot_loop_stopped")
	}
}

// Close stops every supervisor. Used on server shutdown.
func (d *Director) Close() {
	d.mu.Lock()
	cancels := make([]context.CancelFunc, 0, len(d.loops))
	for id, cancel := range d.loops {
		cancels = append(cancels, cancel)
		delete(d.loops, id)
	}
	d.mu.Unlock()
	for _, cancel := range cancels {
		cancel()
	}
}

// Running reports whether a supervisor is live for the session.
func (d *Director) Running(sessionID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.loops[sessionID]
	return ok
}

func (d *Director) run(ctx context.Context, sessionID string) {
	ambient := time.NewTimer(d.jitter(d.cfg.AmbientMin, d.cfg.AmbientMax))
	advance := time.NewTimer(d.jitter(d.cfg.AdvanceMin, d.cfg.AdvanceMax))
	defer ambient.Stop()
	defer advance.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ambient.C:
			if !d.emitAmbient(sessionID) {
				d.Stop(sessionID)
				return
			}
			ambient.Reset(d.jitter(d.cfg.AmbientMin, d.cfg.AmbientMax))
		case <-advance.C:
			if !d.maybeAdvance(sessionID) {
				d.Stop(sessionID)
				return
			}
			advance.Reset(d.jitter(d.cfg.AdvanceMin, d.cfg.AdvanceMax))
		}
	}
}

// emitAmbient sends one weighted ambient message from a random bot. Returns
// false when the session is gone and the loop should die.
func (d *Director) emitAmbient(sessionID string) bool {
	var bots []string
	var names map[string]string
	err := d.sessions.View(sessionID, func(s *session.Session) error {
		bots = s.BotIDs()
		names = map[string]string{}
		for id, p := range s.Participants {
			names[id] = p.DisplayName
		}
		return nil
	})
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
		return false
	}
	if err != nil || len(bots) == 0 {
		return err == nil
	}

	humans := d.presence.ConnectedHumanIDs(sessionID)
	if len(humans) == 0 {
		// Nobody is watching; skip the beat rather than talk to an empty room.
		return true
	}

	d.mu.Lock()
	bot := bots[d.rnd.Intn(len(bots))]
	target := humans[d.rnd.Intn(len(humans))]
	roll := d.rnd.Intn(100)
	d.mu.Unlock()

	now := time.Now().UnixMilli()
	targetName := names[target]
	if targetName == "" {
		targetName = "friend"
	}
	switch {
	case roll < 74:
		d.cast.Broadcast(sessionID, PlayerNotification{
			Type:        "player_notification",
			SessionID:   sessionID,
			PlayerID:    bot,
			DisplayName: names[bot],
			Message:     d.pickLine(chatLines, targetName),
			Timestamp:   now,
			Source:      "bot",
		})
	case roll < 96:
		d.cast.Broadcast(sessionID, GameUpdate{
			Type:      "game_update",
			SessionID: sessionID,
			PlayerID:  bot,
			Title:     names[bot] + " says",
			Content:   d.pickLine(announcementLines, targetName),
			Timestamp: now,
			Source:    "bot",
		})
	default:
		d.mu.Lock()
		effect := chaosEffects[d.rnd.Intn(len(chaosEffects))]
		d.mu.Unlock()
		d.cast.Broadcast(sessionID, ChaosAttack{
			Type:           "chaos_attack",
			SessionID:      sessionID,
			PlayerID:       bot,
			Effect:         effect,
			TargetPlayerID: target,
			DurationMs:     3000,
			Timestamp:      now,
			Source:         "bot",
		})
	}
	return true
}

// maybeAdvance plays the active bot's turn when at least one human holds a
// socket. Returns false when the session is gone.
func (d *Director) maybeAdvance(sessionID string) bool {
	err := d.sessions.View(sessionID, func(*session.Session) error { return nil })
	if errors.Is(err, session.ErrSessionNotFound) || errors.Is(err, session.ErrSessionExpired) {
		return false
	}
	botID, ok := d.turns.ActiveBot(sessionID)
	if !ok {
		return true
	}
	if d.presence.HumansConnected(sessionID) == 0 {
		return true
	}
	if err := d.turns.AdvanceBotTurn(sessionID, botID, d.randomDice()); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Str("bot_id", botID).Msg("bot_turn_failed")
	}
	return true
}

var dieSides = []int{4, 6, 8, 10, 12, 20}

func (d *Director) randomDice() []game.Die {
	d.mu.Lock()
	defer d.mu.Unlock()
	count := 1 + d.rnd.Intn(5)
	dice := make([]game.Die, count)
	for i := range dice {
		sides := dieSides[d.rnd.Intn(len(dieSides))]
		dice[i] = game.Die{
			DieID: "bd_" + string(rune('a'+i)),
			Sides: sides,
			Value: 1 + d.rnd.Intn(sides),
		}
	}
	return dice
}

func (d *Director) jitter(min, max time.Duration) time.Duration {
	if max <= min {
		return min
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return min + time.Duration(d.rnd.Int63n(int64(max-min)))
}

func (d *Director) pickLine(pool []string, targetName string) string {
	d.mu.Lock()
	line := pool[d.rnd.Intn(len(pool))]
	d.mu.Unlock()
	return expandLine(line, targetName)
}
