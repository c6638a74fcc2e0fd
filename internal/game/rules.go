package game

import "errors"

var ErrNotYourTurn = errors.New("not_your_turn")
var ErrWrongPhase = errors.New("wrong_phase")
var ErrNoDice = errors.New("no_dice")
var ErrTooManyDice = errors.New("too_many_dice")
var ErrDuplicateDie = errors.New("duplicate_die_id")
var ErrBadSides = errors.New("invalid_die_sides")
var ErrBadValue = errors.New("invalid_die_value")
var ErrNoSelection = errors.New("no_dice_selected")
var ErrUnknownDie = errors.New("unknown_die_id")
var ErrRollMismatch = errors.New("roll_id_mismatch")
var ErrPointsMismatch = errors.New("points_mismatch")
var ErrNoActivePlayer = errors.New("no_active_player")

// ValidateRoll checks the shape of a client roll payload without touching
// state: 1..MaxDicePerRoll dice, unique ids, sane sides and values.
func ValidateRoll(dice []Die) error {
	if len(dice) == 0 {
		return ErrNoDice
	}
	if len(dice) > MaxDicePerRoll {
		return ErrTooManyDice
	}
	seen := make(map[string]bool, len(dice))
	for _, d := range dice {
		if d.DieID == "" || seen[d.DieID] {
			return ErrDuplicateDie
		}
		seen[d.DieID] = true
		if d.Sides < MinSides || d.Sides > MaxSides {
			return ErrBadSides
		}
		if d.Value < 1 || d.Value > d.Sides {
			return ErrBadValue
		}
	}
	return nil
}

// ExpectedPoints recomputes the score for a selection of previously rolled
// dice: the sum of (sides - value) over the selection. The client's claimed
// points are never trusted.
func ExpectedPoints(snap *RollSnapshot, selected []string) (int, error) {
	if snap == nil {
		return 0, ErrRollMismatch
	}
	if len(selected) == 0 {
		return 0, ErrNoSelection
	}
	byID := make(map[string]Die, len(snap.Dice))
	for _, d := range snap.Dice {
		byID[d.DieID] = d
	}
	total := 0
	seen := make(map[string]bool, len(selected))
	for _, id := range selected {
		if seen[id] {
			return 0, ErrDuplicateDie
		}
		seen[id] = true
		d, ok := byID[id]
		if !ok {
			return 0, ErrUnknownDie
		}
		total += d.Sides - d.Value
	}
	return total, nil
}
