package effects

import (
	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// DurationKind says when a floating effect ends.
type DurationKind string

const (
	// DurationEndOfTurn - Effect expires during cleanup
	DurationEndOfTurn DurationKind = "EndOfTurn"

	// DurationUntilYourNextTurn - Effect expires when its player's next turn begins
	DurationUntilYourNextTurn DurationKind = "UntilYourNextTurn"

	// DurationEndOfCombat - Effect expires at end of combat
	DurationEndOfCombat DurationKind = "EndOfCombat"

	// DurationPermanent - Effect lasts indefinitely
	DurationPermanent DurationKind = "Permanent"

	// DurationWhileOnBattlefield - Effect lasts while source is on battlefield
	DurationWhileOnBattlefield DurationKind = "WhileOnBattlefield"

	// DurationWhileTapped - Effect lasts while source remains tapped
	DurationWhileTapped DurationKind = "WhileTapped"

	// DurationUntilCondition - Effect lasts until its condition holds
	DurationUntilCondition DurationKind = "UntilCondition"

	// DurationUntilStep - Effect expires when the given step begins
	DurationUntilStep DurationKind = "UntilStep"
)

// Condition is checked against the store at every expiry moment.
type Condition func(store *ecs.Store) bool

// Duration is how long a floating effect lasts.
type Duration struct {
	Kind DurationKind
	// Player for UntilYourNextTurn (defaults to the effect's controller)
	// and, when set, the active player UntilStep waits for.
	Player    ecs.PlayerID
	Step      ecs.Step
	Condition Condition
}

// EndOfTurn lasts until the cleanup step.
func EndOfTurn() Duration { return Duration{Kind: DurationEndOfTurn} }

// EndOfCombat lasts until combat ends.
func EndOfCombat() Duration { return Duration{Kind: DurationEndOfCombat} }

// Forever never expires.
func Forever() Duration { return Duration{Kind: DurationPermanent} }

// WhileOnBattlefield lasts while the source stays on the battlefield.
func WhileOnBattlefield() Duration { return Duration{Kind: DurationWhileOnBattlefield} }

// WhileTapped lasts while the source stays tapped.
func WhileTapped() Duration { return Duration{Kind: DurationWhileTapped} }

// UntilYourNextTurn lasts until player's next turn begins.
func UntilYourNextTurn(player ecs.PlayerID) Duration {
	return Duration{Kind: DurationUntilYourNextTurn, Player: player}
}

// UntilCondition lasts until cond reports true.
func UntilCondition(cond Condition) Duration {
	return Duration{Kind: DurationUntilCondition, Condition: cond}
}

// UntilStep lasts until step begins, on player's turn when player is set.
func UntilStep(step ecs.Step, player ecs.PlayerID) Duration {
	return Duration{Kind: DurationUntilStep, Step: step, Player: player}
}

// MomentKind identifies the point in the turn at which expiry is checked.
type MomentKind string

const (
	MomentCheck       MomentKind = "Check"
	MomentEndOfCombat MomentKind = "EndOfCombat"
	MomentCleanup     MomentKind = "Cleanup"
	MomentTurnStart   MomentKind = "TurnStart"
	MomentStepStart   MomentKind = "StepStart"
)

// Moment is a point at which durations are checked. Source-dependent
// durations and conditions are checked at every moment.
type Moment struct {
	Kind   MomentKind
	Player ecs.PlayerID // active player for TurnStart and StepStart
	Step   ecs.Step     // for StepStart
}

// Ended reports whether effect has reached the end of its duration at m.
func (e FloatingEffect) Ended(m Moment, store *ecs.Store) bool {
	d := e.Duration
	switch d.Kind {
	case DurationEndOfTurn:
		return m.Kind == MomentCleanup
	case DurationEndOfCombat:
		return m.Kind == MomentEndOfCombat || m.Kind == MomentCleanup
	case DurationUntilYourNextTurn:
		player := d.Player
		if player == "" {
			player = e.Controller
		}
		return m.Kind == MomentTurnStart && m.Player == player
	case DurationPermanent:
		return false
	case DurationWhileOnBattlefield:
		return !e.sourceStillOnBattlefield(store)
	case DurationWhileTapped:
		if !e.sourceStillOnBattlefield(store) {
			return true
		}
		obj, _ := store.Object(e.Source)
		return !obj.Tapped
	case DurationUntilCondition:
		return d.Condition == nil || d.Condition(store)
	case DurationUntilStep:
		if m.Kind != MomentStepStart || m.Step != d.Step {
			return false
		}
		return d.Player == "" || d.Player == m.Player
	default:
		panic("effects: unknown duration " + string(d.Kind))
	}
}

// sourceStillOnBattlefield is false once the source has left, including when
// it came back as a new object after the effect was created.
func (e FloatingEffect) sourceStillOnBattlefield(store *ecs.Store) bool {
	obj, ok := store.Object(e.Source)
	if !ok || obj.Zone != ecs.ZoneBattlefield {
		return false
	}
	return obj.ZoneSince <= e.Timestamp
}
