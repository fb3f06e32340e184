package engine

import (
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-rules-go/internal/game/combat"
	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/mana"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// CombatTestHarness drives a two player game through combat.
type CombatTestHarness struct {
	t      *testing.T
	engine *Engine
}

// NewCombatTestHarness creates an engine with alice (active) and bob at 20 life.
func NewCombatTestHarness(t *testing.T, opts Options) *CombatTestHarness {
	t.Helper()
	engine := New(zaptest.NewLogger(t), opts)
	for _, p := range []ecs.PlayerID{"alice", "bob"} {
		if err := engine.AddPlayer(p, 20); err != nil {
			t.Fatalf("failed to add player %s: %v", p, err)
		}
	}
	return &CombatTestHarness{t: t, engine: engine}
}

// CreatureSpec defines the properties of a test creature.
type CreatureSpec struct {
	Name       string
	Controller ecs.PlayerID
	Power      int
	Toughness  int
	Keywords   []ecs.Keyword
	Colors     ecs.ColorSet
	Triggers   []rules.TriggerDeclaration
	Tapped     bool
}

// CreateCreature puts a creature onto the battlefield.
func (h *CombatTestHarness) CreateCreature(spec CreatureSpec) ecs.Entity {
	h.t.Helper()
	e, err := h.engine.CreatePermanent(PermanentSpec{
		Name:  spec.Name,
		Owner: spec.Controller,
		Zone:  ecs.ZoneBattlefield,
		Characteristics: ecs.Characteristics{
			Types:     []ecs.CardType{ecs.TypeCreature},
			Colors:    spec.Colors,
			Power:     spec.Power,
			Toughness: spec.Toughness,
			HasPT:     true,
			Keywords:  ecs.Keywords(spec.Keywords...),
		},
		Tapped:   spec.Tapped,
		Triggers: spec.Triggers,
	})
	if err != nil {
		h.t.Fatalf("failed to create %s: %v", spec.Name, err)
	}
	return e
}

// CreateAttacker creates a vanilla creature for alice.
func (h *CombatTestHarness) CreateAttacker(name string, power, toughness int, keywords ...ecs.Keyword) ecs.Entity {
	return h.CreateCreature(CreatureSpec{Name: name, Controller: "alice", Power: power, Toughness: toughness, Keywords: keywords})
}

// CreateBlocker creates a vanilla creature for bob.
func (h *CombatTestHarness) CreateBlocker(name string, power, toughness int, keywords ...ecs.Keyword) ecs.Entity {
	return h.CreateCreature(CreatureSpec{Name: name, Controller: "bob", Power: power, Toughness: toughness, Keywords: keywords})
}

// CreatePlaneswalker puts a planeswalker with loyalty counters onto the
// battlefield.
func (h *CombatTestHarness) CreatePlaneswalker(name string, controller ecs.PlayerID, loyalty int) ecs.Entity {
	h.t.Helper()
	e, err := h.engine.CreatePermanent(PermanentSpec{
		Name:            name,
		Owner:           controller,
		Zone:            ecs.ZoneBattlefield,
		Characteristics: ecs.Characteristics{Types: []ecs.CardType{ecs.TypePlaneswalker}},
		Counters:        counters.Counters{counters.Loyalty: loyalty},
	})
	if err != nil {
		h.t.Fatalf("failed to create %s: %v", name, err)
	}
	return e
}

// SetupCombat begins combat for the active player.
func (h *CombatTestHarness) SetupCombat() {
	h.t.Helper()
	if err := h.engine.BeginCombat(); err != nil {
		h.t.Fatalf("failed to begin combat: %v", err)
	}
}

// DeclareAttackers declares every attacker against bob and finishes the step.
func (h *CombatTestHarness) DeclareAttackers(attackers ...ecs.Entity) {
	h.t.Helper()
	for _, a := range attackers {
		h.Attack(a, combat.AttackPlayer("bob"))
	}
	if err := h.engine.FinishAttackers(); err != nil {
		h.t.Fatalf("failed to finish attackers: %v", err)
	}
}

// Attack declares a single attacker for alice.
func (h *CombatTestHarness) Attack(attacker ecs.Entity, defender combat.Defender) {
	h.t.Helper()
	res, err := h.engine.DeclareAttacker(attacker, "alice", defender, mana.Cost{})
	if err != nil {
		h.t.Fatalf("failed to declare attacker: %v", err)
	}
	if !res.OK() {
		h.t.Fatalf("attacker refused: %s %s", res.Verdict, res.Reason)
	}
}

// Block declares blocker as blocking attacker for bob.
func (h *CombatTestHarness) Block(blocker, attacker ecs.Entity) {
	h.t.Helper()
	res, err := h.engine.DeclareBlocker(blocker, attacker, "bob", mana.Cost{})
	if err != nil {
		h.t.Fatalf("failed to declare blocker: %v", err)
	}
	if !res.OK() {
		h.t.Fatalf("blocker refused: %s %s", res.Verdict, res.Reason)
	}
}

// FinishBlockers ends the declare blockers step and fails the test when a
// requirement is violated.
func (h *CombatTestHarness) FinishBlockers() {
	h.t.Helper()
	if _, err := h.engine.FinishBlockers(); err != nil {
		h.t.Fatalf("failed to finish blockers: %v", err)
	}
}

// ResolveCombatDamage runs both damage steps.
func (h *CombatTestHarness) ResolveCombatDamage() (first, regular StepResult) {
	h.t.Helper()
	var err error
	if first, err = h.engine.RunDamageStep(combat.FirstStrikeStep); err != nil {
		h.t.Fatalf("first strike damage failed: %v", err)
	}
	if regular, err = h.engine.RunDamageStep(combat.RegularStep); err != nil {
		h.t.Fatalf("regular damage failed: %v", err)
	}
	return first, regular
}

// Life returns a player's life total.
func (h *CombatTestHarness) Life(p ecs.PlayerID) int {
	h.t.Helper()
	player, ok := h.engine.Store().Player(p)
	if !ok {
		h.t.Fatalf("unknown player %s", p)
	}
	return player.Life
}

// Zone returns the zone of e.
func (h *CombatTestHarness) Zone(e ecs.Entity) ecs.ZoneKind {
	h.t.Helper()
	zone, ok := h.engine.Store().Zone(e)
	if !ok {
		h.t.Fatalf("unknown object %d", e)
	}
	return zone
}

// AssertLife fails the test unless p is at want life.
func (h *CombatTestHarness) AssertLife(p ecs.PlayerID, want int) {
	h.t.Helper()
	if got := h.Life(p); got != want {
		h.t.Fatalf("expected %s at %d life, got %d", p, want, got)
	}
}

// AssertZone fails the test unless e is in want.
func (h *CombatTestHarness) AssertZone(e ecs.Entity, want ecs.ZoneKind) {
	h.t.Helper()
	if got := h.Zone(e); got != want {
		h.t.Fatalf("expected object %d in %s, got %s", e, want, got)
	}
}
