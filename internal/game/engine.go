package game

import "time"

// Reconcile recomputes Order from the seated participants, preserving the
// prior relative order and appending newcomers. When the active player is no
// longer seated the turn falls back to Order[0] and the phase resets to
// awaitRoll, discarding any stale roll or score. Reports whether the active
// player changed.
func (t *TurnState) Reconcile(seated []string, now time.Time) bool {
	seatedSet := make(map[string]bool, len(seated))
	for _, id := range seated {
		seatedSet[id] = true
	}
	kept := make([]string, 0, len(seated))
	inOrder := make(map[string]bool, len(t.Order))
	for _, id := range t.Order {
		if seatedSet[id] {
			kept = append(kept, id)
			inOrder[id] = true
		}
	}
	for _, id := range seated {
		if !inOrder[id] {
			kept = append(kept, id)
		}
	}
	t.Order = kept

	if seatedSet[t.ActivePlayerID] {
		return false
	}
	prev := t.ActivePlayerID
	if len(t.Order) > 0 {
		t.ActivePlayerID = t.Order[0]
	} else {
		t.ActivePlayerID = ""
	}
	t.Phase = PhaseAwaitRoll
	t.LastRoll = nil
	t.LastScore = nil
	t.UpdatedAt = now
	return prev != t.ActivePlayerID
}

// ApplyRoll accepts a roll action from the active player during awaitRoll.
// The snapshot gets a fresh server-generated roll id; any prior score is
// cleared. No state changes on rejection.
func (t *TurnState) ApplyRoll(playerID string, dice []Die, serverRollID string, now time.Time) (*RollSnapshot, error) {
	if t.ActivePlayerID == "" {
		return nil, ErrNoActivePlayer
	}
	if playerID != t.ActivePlayerID {
		return nil, ErrNotYourTurn
	}
	if t.Phase != PhaseAwaitRoll {
		return nil, ErrWrongPhase
	}
	if err := ValidateRoll(dice); err != nil {
		return nil, err
	}
	index := 1
	if t.LastRoll != nil {
		index = t.LastRoll.RollIndex + 1
	}
	snap := &RollSnapshot{
		RollIndex:    index,
		Dice:         append([]Die(nil), dice...),
		ServerRollID: serverRollID,
		UpdatedAt:    now,
	}
	t.LastRoll = snap
	t.LastScore = nil
	t.Phase = PhaseAwaitScore
	t.UpdatedAt = now
	return snap, nil
}

// ScoreClaim is the client's score submission for the current roll.
type ScoreClaim struct {
	RollServerID        string   `json:"rollServerId"`
	SelectedDiceIDs     []string `json:"selectedDiceIds"`
	Points              int      `json:"points"`
	ProjectedTotalScore int      `json:"projectedTotalScore"`
}

// ApplyScore validates a score claim against the held roll snapshot. The
// referenced roll id must match exactly and the claimed points must equal the
// recomputed sum; a mismatch is rejected, never silently corrected.
func (t *TurnState) ApplyScore(playerID string, claim ScoreClaim, now time.Time) (*ScoreSummary, error) {
	if playerID != t.ActivePlayerID {
		return nil, ErrNotYourTurn
	}
	if t.Phase != PhaseAwaitScore {
		return nil, ErrWrongPhase
	}
	if t.LastRoll == nil || claim.RollServerID != t.LastRoll.ServerRollID {
		return nil, ErrRollMismatch
	}
	expected, err := ExpectedPoints(t.LastRoll, claim.SelectedDiceIDs)
	if err != nil {
		return nil, err
	}
	if claim.Points != expected {
		return nil, ErrPointsMismatch
	}
	summary := &ScoreSummary{
		SelectedDiceIDs:     append([]string(nil), claim.SelectedDiceIDs...),
		Points:              claim.Points,
		ExpectedPoints:      expected,
		RollServerID:        claim.RollServerID,
		ProjectedTotalScore: claim.ProjectedTotalScore,
		UpdatedAt:           now,
	}
	t.LastScore = summary
	t.Phase = PhaseReadyToEnd
	t.UpdatedAt = now
	return summary, nil
}

// ApplyEndTurn advances the active seat. Wrapping past the end of the order
// increments the round; the turn number always increments. The phase resets
// to awaitRoll and both snapshots are cleared.
func (t *TurnState) ApplyEndTurn(playerID string, now time.Time) error {
	if playerID != t.ActivePlayerID {
		return ErrNotYourTurn
	}
	if t.Phase != PhaseReadyToEnd {
		return ErrWrongPhase
	}
	idx := -1
	for i, id := range t.Order {
		if id == t.ActivePlayerID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNoActivePlayer
	}
	next := (idx + 1) % len(t.Order)
	if next == 0 {
		t.Round++
	}
	t.TurnNumber++
	t.ActivePlayerID = t.Order[next]
	t.Phase = PhaseAwaitRoll
	t.LastRoll = nil
	t.LastScore = nil
	t.UpdatedAt = now
	return nil
}
