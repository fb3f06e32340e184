package rules

import (
	"testing"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

func TestTurnSequence(t *testing.T) {
	without := TurnSequence(false)
	with := TurnSequence(true)

	if len(with) != len(without)+1 {
		t.Fatalf("expected first strike to add one step, got %d and %d", len(with), len(without))
	}
	for _, step := range without {
		if step == ecs.StepFirstStrikeDamage {
			t.Fatal("first strike damage step should be skipped")
		}
	}
	if without[0] != ecs.StepUntap || without[len(without)-1] != ecs.StepCleanup {
		t.Fatalf("unexpected turn bounds %s..%s", without[0], without[len(without)-1])
	}
}

func TestNextStep(t *testing.T) {
	tests := []struct {
		current     ecs.Step
		firstStrike bool
		want        ecs.Step
		wrapped     bool
	}{
		{ecs.StepUntap, false, ecs.StepUpkeep, false},
		{ecs.StepDeclareBlockers, false, ecs.StepCombatDamage, false},
		{ecs.StepDeclareBlockers, true, ecs.StepFirstStrikeDamage, false},
		{ecs.StepFirstStrikeDamage, true, ecs.StepCombatDamage, false},
		{ecs.StepFirstStrikeDamage, false, ecs.StepCombatDamage, false},
		{ecs.StepCleanup, false, ecs.StepUntap, true},
	}
	for _, tt := range tests {
		got, wrapped := NextStep(tt.current, tt.firstStrike)
		if got != tt.want || wrapped != tt.wrapped {
			t.Fatalf("NextStep(%s, %v) = %s, %v; want %s, %v", tt.current, tt.firstStrike, got, wrapped, tt.want, tt.wrapped)
		}
	}
}

func TestPhaseAndStepEvents(t *testing.T) {
	if PhaseOf(ecs.StepFirstStrikeDamage) != PhaseCombat {
		t.Fatalf("expected combat phase, got %s", PhaseOf(ecs.StepFirstStrikeDamage))
	}
	if PhaseOf(ecs.StepCleanup).String() != "ENDING" {
		t.Fatalf("unexpected phase name %s", PhaseOf(ecs.StepCleanup))
	}
	if ev, ok := StepEvent(ecs.StepUpkeep); !ok || ev != EventUpkeepStepPre {
		t.Fatalf("expected upkeep event, got %q", ev)
	}
	if _, ok := StepEvent(ecs.StepDraw); ok {
		t.Fatal("draw step has no event")
	}
}
