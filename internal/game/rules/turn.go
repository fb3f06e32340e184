package rules

import (
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// Phase represents the broad phases of a turn.
type Phase int

const (
	PhaseBeginning Phase = iota
	PhasePrecombatMain
	PhaseCombat
	PhasePostcombatMain
	PhaseEnding
)

var phaseNames = map[Phase]string{
	PhaseBeginning:      "BEGINNING",
	PhasePrecombatMain:  "PRECOMBAT_MAIN",
	PhaseCombat:         "COMBAT",
	PhasePostcombatMain: "POSTCOMBAT_MAIN",
	PhaseEnding:         "ENDING",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("PHASE_%d", int(p))
}

type turnEntry struct {
	phase Phase
	step  ecs.Step
	event EventType
}

var baseTurnSequence = []turnEntry{
	{PhaseBeginning, ecs.StepUntap, ""},
	{PhaseBeginning, ecs.StepUpkeep, EventUpkeepStepPre},
	{PhaseBeginning, ecs.StepDraw, ""},
	{PhasePrecombatMain, ecs.StepPrecombatMain, ""},
	{PhaseCombat, ecs.StepBeginCombat, EventBeginCombatStepPre},
	{PhaseCombat, ecs.StepDeclareAttackers, EventDeclareAttackersStep},
	{PhaseCombat, ecs.StepDeclareBlockers, EventDeclareBlockersStep},
	{PhaseCombat, ecs.StepFirstStrikeDamage, EventCombatDamageStepPre},
	{PhaseCombat, ecs.StepCombatDamage, EventCombatDamageStepPre},
	{PhaseCombat, ecs.StepEndCombat, EventEndCombatStepPre},
	{PhasePostcombatMain, ecs.StepPostcombatMain, ""},
	{PhaseEnding, ecs.StepEnd, EventEndTurnStepPre},
	{PhaseEnding, ecs.StepCleanup, EventCleanupStepPre},
}

// TurnSequence returns the steps of a turn. The first strike damage step is
// only part of the turn when a creature in combat has first or double strike.
func TurnSequence(hasFirstStrike bool) []ecs.Step {
	out := make([]ecs.Step, 0, len(baseTurnSequence))
	for _, entry := range baseTurnSequence {
		if entry.step == ecs.StepFirstStrikeDamage && !hasFirstStrike {
			continue
		}
		out = append(out, entry.step)
	}
	return out
}

// NextStep returns the step after current. wrapped is true when current is
// the last step of the turn and the next turn starts.
func NextStep(current ecs.Step, hasFirstStrike bool) (next ecs.Step, wrapped bool) {
	sequence := TurnSequence(hasFirstStrike)
	for i, step := range sequence {
		if step != current {
			continue
		}
		if i+1 == len(sequence) {
			return sequence[0], true
		}
		return sequence[i+1], false
	}
	// A step outside the sequence (first strike without strikers) continues
	// with regular damage.
	if current == ecs.StepFirstStrikeDamage {
		return ecs.StepCombatDamage, false
	}
	return sequence[0], true
}

// PhaseOf returns the phase a step belongs to.
func PhaseOf(step ecs.Step) Phase {
	for _, entry := range baseTurnSequence {
		if entry.step == step {
			return entry.phase
		}
	}
	return PhaseBeginning
}

// StepEvent returns the event announcing the start of step, if it has one.
func StepEvent(step ecs.Step) (EventType, bool) {
	for _, entry := range baseTurnSequence {
		if entry.step == step && entry.event != "" {
			return entry.event, true
		}
	}
	return "", false
}
