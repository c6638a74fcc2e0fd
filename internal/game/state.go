package game

import "time"

type Phase string

const (
	PhaseAwaitRoll  Phase = "awaitRoll"
	PhaseAwaitScore Phase = "awaitScore"
	PhaseReadyToEnd Phase = "readyToEnd"
)

// Limits on client-submitted rolls.
const (
	MaxDicePerRoll = 16
	MinSides       = 2
	MaxSides       = 1000
)

type Die struct {
	DieID string `json:"dieId"`
	Sides int    `json:"sides"`
	Value int    `json:"value"`
}

// RollSnapshot is the server's authoritative record of the most recent roll.
// Score claims are validated against it, never against client state.
type RollSnapshot struct {
	RollIndex    int       `json:"rollIndex"`
	Dice         []Die     `json:"dice"`
	ServerRollID string    `json:"serverRollId"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

type ScoreSummary struct {
	SelectedDiceIDs     []string  `json:"selectedDiceIds"`
	Points              int       `json:"points"`
	ExpectedPoints      int       `json:"expectedPoints"`
	RollServerID        string    `json:"rollServerId"`
	ProjectedTotalScore int       `json:"projectedTotalScore"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// TurnState is the per-session machine enforcing roll -> score -> end
// ordering. Order is reconciled against the seated participants before every
// action.
type TurnState struct {
	Order          []string      `json:"order"`
	ActivePlayerID string        `json:"activeTurnPlayerId"`
	Round          int           `json:"round"`
	TurnNumber     int           `json:"turnNumber"`
	Phase          Phase         `json:"phase"`
	LastRoll       *RollSnapshot `json:"lastRollSnapshot,omitempty"`
	LastScore      *ScoreSummary `json:"lastScoreSummary,omitempty"`
	UpdatedAt      time.Time     `json:"updatedAt"`
}

func NewTurnState(seated []string, now time.Time) *TurnState {
	t := &TurnState{
		Order:      append([]string(nil), seated...),
		Round:      1,
		TurnNumber: 1,
		Phase:      PhaseAwaitRoll,
		UpdatedAt:  now,
	}
	if len(t.Order) > 0 {
		t.ActivePlayerID = t.Order[0]
	}
	return t
}

// ActiveRollID reports the current server roll id, empty when no roll is
// outstanding.
func (t *TurnState) ActiveRollID() string {
	if t.LastRoll == nil {
		return ""
	}
	return t.LastRoll.ServerRollID
}
