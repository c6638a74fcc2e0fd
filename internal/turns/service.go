package turns

import (
	"time"

	"github.com/rs/zerolog/log"

	"dice-parlor/internal/game"
	"dice-parlor/internal/session"
	"dice-parlor/internal/store"
)

// Broadcaster delivers a payload to every live socket in a session.
type Broadcaster interface {
	Broadcast(sessionID string, payload any)
}

// Service applies turn actions against the session store and pushes the
// resulting turn messages out. It is the single write path for turn state,
// shared by the gateway (human actions) and the bot director.
type Service struct {
	sessions *session.Store
	cast     Broadcaster

	// persist fires after a completed turn; failures are the persister's
	// problem, never the caller's.
	persist func()
}

func NewService(sessions *session.Store, cast Broadcaster, persist func()) *Service {
	if persist == nil {
		persist = func() {}
	}
	return &Service{sessions: sessions, cast: cast, persist: persist}
}

// Roll applies a roll action and broadcasts the accepted snapshot.
func (s *Service) Roll(sessionID, playerID string, dice []game.Die, source string) (*TurnAction, error) {
	var msg *TurnAction
	err := s.sessions.Update(sessionID, func(sess *session.Session) error {
		now := time.Now()
		sess.Turn.Reconcile(sess.SeatedIDs(), now)
		snap, err := sess.Turn.ApplyRoll(playerID, dice, "roll_"+store.NewID(), now)
		if err != nil {
			return err
		}
		msg = &TurnAction{
			Type:       "turn_action",
			SessionID:  sessionID,
			PlayerID:   playerID,
			Round:      sess.Turn.Round,
			TurnNumber: sess.Turn.TurnNumber,
			Roll:       snap,
			Phase:      sess.Turn.Phase,
			Timestamp:  now.UnixMilli(),
			Source:     source,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cast.Broadcast(sessionID, msg)
	return msg, nil
}

// Score validates a score claim and broadcasts the accepted summary.
func (s *Service) Score(sessionID, playerID string, claim game.ScoreClaim, source string) (*TurnAction, error) {
	var msg *TurnAction
	err := s.sessions.Update(sessionID, func(sess *session.Session) error {
		now := time.Now()
		sess.Turn.Reconcile(sess.SeatedIDs(), now)
		summary, err := sess.Turn.ApplyScore(playerID, claim, now)
		if err != nil {
			return err
		}
		msg = &TurnAction{
			Type:       "turn_action",
			SessionID:  sessionID,
			PlayerID:   playerID,
			Round:      sess.Turn.Round,
			TurnNumber: sess.Turn.TurnNumber,
			Score:      summary,
			Phase:      sess.Turn.Phase,
			Timestamp:  now.UnixMilli(),
			Source:     source,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.cast.Broadcast(sessionID, msg)
	return msg, nil
}

// EndTurn advances the seat and broadcasts the turn_end/turn_start pair.
func (s *Service) EndTurn(sessionID, playerID, source string) error {
	var endMsg TurnEnd
	var startMsg TurnStart
	err := s.sessions.Update(sessionID, func(sess *session.Session) error {
		now := time.Now()
		sess.Turn.Reconcile(sess.SeatedIDs(), now)
		endedRound := sess.Turn.Round
		endedTurn := sess.Turn.TurnNumber
		if err := sess.Turn.ApplyEndTurn(playerID, now); err != nil {
			return err
		}
		endMsg = TurnEnd{
			Type:       "turn_end",
			SessionID:  sessionID,
			PlayerID:   playerID,
			Round:      endedRound,
			TurnNumber: endedTurn,
			Timestamp:  now.UnixMilli(),
			Source:     source,
		}
		startMsg = s.startMessage(sess, now, source)
		return nil
	})
	if err != nil {
		return err
	}
	s.cast.Broadcast(sessionID, endMsg)
	s.cast.Broadcast(sessionID, startMsg)
	s.persist()
	return nil
}

// SyncFor snapshots the authoritative turn state for one client.
func (s *Service) SyncFor(sessionID string) (*TurnSync, error) {
	var msg *TurnSync
	err := s.sessions.View(sessionID, func(sess *session.Session) error {
		now := time.Now()
		sess.Turn.Reconcile(sess.SeatedIDs(), now)
		msg = &TurnSync{
			Type:               "turn_sync",
			SessionID:          sessionID,
			ActiveTurnPlayerID: sess.Turn.ActivePlayerID,
			Round:              sess.Turn.Round,
			TurnNumber:         sess.Turn.TurnNumber,
			Phase:              sess.Turn.Phase,
			Order:              append([]string(nil), sess.Turn.Order...),
			Roll:               sess.Turn.LastRoll,
			Score:              sess.Turn.LastScore,
			Timestamp:          now.UnixMilli(),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// HandleLeave emits a synthetic turn_start when a departure moved the turn
// to a new player.
func (s *Service) HandleLeave(sessionID string, res session.LeaveResult) {
	if res.Destroyed || !res.ActiveChanged {
		return
	}
	var startMsg TurnStart
	err := s.sessions.View(sessionID, func(sess *session.Session) error {
		startMsg = s.startMessage(sess, time.Now(), "system")
		return nil
	})
	if err != nil {
		log.Debug().Err(err).Str("session_id", sessionID).Msg("leave_sync_skipped")
		return
	}
	s.cast.Broadcast(sessionID, startMsg)
}

// ActiveBot reports the active player's id when that player is a bot.
func (s *Service) ActiveBot(sessionID string) (string, bool) {
	botID := ""
	err := s.sessions.View(sessionID, func(sess *session.Session) error {
		active := sess.Turn.ActivePlayerID
		if p, ok := sess.Participants[active]; ok && p.IsBot {
			botID = active
		}
		return nil
	})
	if err != nil || botID == "" {
		return "", false
	}
	return botID, true
}

// AdvanceBotTurn walks a bot's turn through the same transitions a human
// would drive: roll, score the full selection, end.
func (s *Service) AdvanceBotTurn(sessionID, botID string, dice []game.Die) error {
	rollMsg, err := s.Roll(sessionID, botID, dice, "bot")
	if err != nil {
		return err
	}
	points := 0
	selected := make([]string, 0, len(dice))
	for _, d := range rollMsg.Roll.Dice {
		points += d.Sides - d.Value
		selected = append(selected, d.DieID)
	}
	claim := game.ScoreClaim{
		RollServerID:    rollMsg.Roll.ServerRollID,
		SelectedDiceIDs: selected,
		Points:          points,
	}
	if _, err := s.Score(sessionID, botID, claim, "bot"); err != nil {
		return err
	}
	return s.EndTurn(sessionID, botID, "bot")
}

func (s *Service) startMessage(sess *session.Session, now time.Time, source string) TurnStart {
	return TurnStart{
		Type:               "turn_start",
		SessionID:          sess.ID,
		PlayerID:           sess.Turn.ActivePlayerID,
		Round:              sess.Turn.Round,
		TurnNumber:         sess.Turn.TurnNumber,
		Phase:              sess.Turn.Phase,
		ActiveRollServerID: sess.Turn.ActiveRollID(),
		Timestamp:          now.UnixMilli(),
		Order:              append([]string(nil), sess.Turn.Order...),
		Source:             source,
	}
}
