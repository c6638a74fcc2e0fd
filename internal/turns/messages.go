package turns

import "dice-parlor/internal/game"

// Outbound turn messages. Timestamps are unix milliseconds. Source names who
// drove the transition: "player", "bot", or "system".

type TurnStart struct {
	Type               string     `json:"type"`
	SessionID          string     `json:"sessionId"`
	PlayerID           string     `json:"playerId"`
	Round              int        `json:"round"`
	TurnNumber         int        `json:"turnNumber"`
	Phase              game.Phase `json:"phase"`
	ActiveRollServerID string     `json:"activeRollServerId,omitempty"`
	Timestamp          int64      `json:"timestamp"`
	Order              []string   `json:"order"`
	Source             string     `json:"source"`
}

type TurnEnd struct {
	Type       string `json:"type"`
	SessionID  string `json:"sessionId"`
	PlayerID   string `json:"playerId"`
	Round      int    `json:"round"`
	TurnNumber int    `json:"turnNumber"`
	Timestamp  int64  `json:"timestamp"`
	Source     string `json:"source"`
}

type TurnAction struct {
	Type       string             `json:"type"`
	SessionID  string             `json:"sessionId"`
	PlayerID   string             `json:"playerId"`
	Round      int                `json:"round"`
	TurnNumber int                `json:"turnNumber"`
	Roll       *game.RollSnapshot `json:"roll,omitempty"`
	Score      *game.ScoreSummary `json:"score,omitempty"`
	Phase      game.Phase         `json:"phase"`
	Timestamp  int64              `json:"timestamp"`
	Source     string             `json:"source"`
}

// TurnSync carries the full authoritative turn state back to one client
// whose view has diverged.
type TurnSync struct {
	Type               string             `json:"type"`
	SessionID          string             `json:"sessionId"`
	ActiveTurnPlayerID string             `json:"activeTurnPlayerId"`
	Round              int                `json:"round"`
	TurnNumber         int                `json:"turnNumber"`
	Phase              game.Phase         `json:"phase"`
	Order              []string           `json:"order"`
	Roll               *game.RollSnapshot `json:"roll,omitempty"`
	Score              *game.ScoreSummary `json:"score,omitempty"`
	Timestamp          int64              `json:"timestamp"`
}
