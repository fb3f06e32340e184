package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/damage"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/mana"
)

func amountTo(events []damage.Event, source ecs.Entity, target damage.Target) int {
	total := 0
	for _, ev := range events {
		if ev.Source == source && ev.Target == target {
			total += ev.Amount
		}
	}
	return total
}

func TestDeathtouchAssignsOneToEachBlockerBeforeTheLast(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Assassin", 5, 5, ecs.KeywordDeathtouch)
	a := f.creature("bob", "A", 3, 3)
	b := f.creature("bob", "B", 3, 3)
	f.attack(t, attacker)
	f.block(t, attacker, a, b)

	batch := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 1, amountTo(batch.Events, attacker, damage.ToCreature(a)))
	assert.Equal(t, 4, amountTo(batch.Events, attacker, damage.ToCreature(b)))
	assert.Zero(t, amountTo(batch.Events, attacker, damage.ToPlayer("bob")))
	assert.Equal(t, 3, amountTo(batch.Events, a, damage.ToCreature(attacker)))
	assert.Equal(t, 3, amountTo(batch.Events, b, damage.ToCreature(attacker)))
	assert.ElementsMatch(t, []ecs.Entity{attacker, a, b}, batch.Dealt)
	for _, ev := range batch.Events {
		assert.True(t, ev.Combat)
	}
}

func TestTrampleOverflowsToDefender(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Wurm", 6, 6, ecs.KeywordTrample)
	blocker := f.creature("bob", "Bear", 2, 2)
	f.attack(t, attacker)
	f.block(t, attacker, blocker)

	batch := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 2, amountTo(batch.Events, attacker, damage.ToCreature(blocker)))
	assert.Equal(t, 4, amountTo(batch.Events, attacker, damage.ToPlayer("bob")))
}

func TestDeathtouchTrample(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Hydra", 5, 5, ecs.KeywordTrample, ecs.KeywordDeathtouch)
	blocker := f.creature("bob", "Giant", 3, 3)
	f.attack(t, attacker)
	f.block(t, attacker, blocker)

	batch := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 1, amountTo(batch.Events, attacker, damage.ToCreature(blocker)))
	assert.Equal(t, 4, amountTo(batch.Events, attacker, damage.ToPlayer("bob")))
}

func TestLethalAccountsForMarkedDamage(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Wurm", 4, 4, ecs.KeywordTrample)
	blocker := f.creature("bob", "Giant", 3, 3)
	f.store.MarkDamage(blocker, 2, false)
	f.attack(t, attacker)
	f.block(t, attacker, blocker)

	batch := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 1, amountTo(batch.Events, attacker, damage.ToCreature(blocker)))
	assert.Equal(t, 3, amountTo(batch.Events, attacker, damage.ToPlayer("bob")))
}

func TestWithoutTrampleTheLastBlockerTakesTheRest(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Giant", 7, 7)
	a := f.creature("bob", "A", 2, 2)
	b := f.creature("bob", "B", 2, 2)
	f.attack(t, attacker)
	f.block(t, attacker, a, b)

	batch := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 2, amountTo(batch.Events, attacker, damage.ToCreature(a)))
	assert.Equal(t, 5, amountTo(batch.Events, attacker, damage.ToCreature(b)))
}

func TestInsufficientPowerStopsAtFirstBlocker(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	a := f.creature("bob", "A", 3, 3)
	b := f.creature("bob", "B", 1, 1)
	f.attack(t, attacker)
	f.block(t, attacker, a, b)

	batch := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 2, amountTo(batch.Events, attacker, damage.ToCreature(a)))
	assert.Zero(t, amountTo(batch.Events, attacker, damage.ToCreature(b)))
}

func TestFirstStrikeUnblockedDealsDamageOnce(t *testing.T) {
	f := newFixture(t)
	striker := f.creature("alice", "Knight", 4, 2, ecs.KeywordFirstStrike)
	f.attack(t, striker)
	require.True(t, f.calculator.HasFirstStrikeStep())

	first := f.calculator.CalculateFirstStrikeDamage()
	require.Len(t, first.Events, 1)
	assert.Equal(t, damage.Event{Source: striker, Amount: 4, Target: damage.ToPlayer("bob"), Combat: true}, first.Events[0])
	assert.Equal(t, []ecs.Entity{striker}, first.Dealt)
	f.state.MarkFirstStrikeDamage(first.Dealt...)

	regular := f.calculator.CalculateRegularDamage()
	assert.Zero(t, amountTo(regular.Events, striker, damage.ToPlayer("bob")))
	assert.Empty(t, regular.Dealt)
}

func TestDoubleStrikeDealsDamageInBothSteps(t *testing.T) {
	f := newFixture(t)
	striker := f.creature("alice", "Champion", 3, 3, ecs.KeywordDoubleStrike)
	bear := f.creature("alice", "Bear", 2, 2)
	f.attack(t, striker, bear)

	first := f.calculator.CalculateFirstStrikeDamage()
	assert.Equal(t, []ecs.Entity{striker}, first.Dealt)
	f.state.MarkFirstStrikeDamage(first.Dealt...)

	regular := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 3, amountTo(regular.Events, striker, damage.ToPlayer("bob")))
	assert.Equal(t, 2, amountTo(regular.Events, bear, damage.ToPlayer("bob")))
}

func TestFirstStrikeBlocker(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	blocker := f.creature("bob", "Guard", 2, 2, ecs.KeywordFirstStrike)
	f.attack(t, attacker)
	f.block(t, attacker, blocker)
	require.True(t, f.calculator.HasFirstStrikeStep())

	first := f.calculator.CalculateFirstStrikeDamage()
	require.Len(t, first.Events, 1)
	assert.Equal(t, blocker, first.Events[0].Source)
	f.state.MarkFirstStrikeDamage(first.Dealt...)

	regular := f.calculator.CalculateRegularDamage()
	require.Len(t, regular.Events, 1)
	assert.Equal(t, attacker, regular.Events[0].Source)
}

func TestNoFirstStrikeStepWithoutStrikers(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	f.attack(t, attacker)
	assert.False(t, f.calculator.HasFirstStrikeStep())
	assert.Empty(t, f.calculator.CalculateFirstStrikeDamage().Events)
}

func TestZeroPowerDealsNoDamage(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	f.catalog.Add(effects.NewEffectBuilder(ecs.NoEntity, "test", "alice").Targeting(attacker).Boost(-3, 0))
	wall := f.creature("bob", "Wall", 0, 4)
	f.attack(t, attacker)
	f.block(t, attacker, wall)

	batch := f.calculator.CalculateRegularDamage()
	assert.Empty(t, batch.Events)
	assert.Empty(t, batch.Dealt)
}

func TestBlockedWithoutOrderDealsNoDamage(t *testing.T) {
	f := newFixture(t, WithAutoOrderBlockers(false))
	attacker := f.creature("alice", "Giant", 5, 5, ecs.KeywordTrample)
	blocker := f.creature("bob", "Bear", 2, 2)
	f.attack(t, attacker)
	f.block(t, attacker, blocker)

	batch := f.calculator.CalculateRegularDamage()
	assert.Zero(t, amountTo(batch.Events, attacker, damage.ToCreature(blocker)))
	assert.Zero(t, amountTo(batch.Events, attacker, damage.ToPlayer("bob")))
	assert.Equal(t, 2, amountTo(batch.Events, blocker, damage.ToCreature(attacker)))

	require.NoError(t, f.state.SetDamageAssignmentOrder(attacker, []ecs.Entity{blocker}))
	batch = f.calculator.CalculateRegularDamage()
	assert.Equal(t, 2, amountTo(batch.Events, attacker, damage.ToCreature(blocker)))
	assert.Equal(t, 3, amountTo(batch.Events, attacker, damage.ToPlayer("bob")))
}

func TestAllBlockersRemoved(t *testing.T) {
	f := newFixture(t)
	trampler := f.creature("alice", "Wurm", 5, 5, ecs.KeywordTrample)
	plain := f.creature("alice", "Giant", 4, 4)
	a := f.creature("bob", "A", 2, 2)
	b := f.creature("bob", "B", 2, 2)
	f.attack(t, trampler, plain)
	f.block(t, trampler, a)
	f.block(t, plain, b)
	f.state.RemoveFromCombat(a)
	f.store.MoveTo(b, ecs.ZoneGraveyard)

	batch := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 5, amountTo(batch.Events, trampler, damage.ToPlayer("bob")))
	assert.Zero(t, amountTo(batch.Events, plain, damage.ToPlayer("bob")))
	assert.Equal(t, []ecs.Entity{trampler}, batch.Dealt)
}

func TestAttackingPlaneswalker(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	walker := f.create("bob", "Jace", ecs.Characteristics{Types: []ecs.CardType{ecs.TypePlaneswalker}})
	f.store.AddCounters(walker, counters.Loyalty, 3)

	f.state.Begin("alice")
	require.True(t, f.state.DeclareAttacker(attacker, "alice", AttackPermanent(walker), mana.Cost{}).OK())
	require.NoError(t, f.state.FinishAttackers())

	batch := f.calculator.CalculateRegularDamage()
	assert.Equal(t, 2, amountTo(batch.Events, attacker, damage.ToPermanent(walker)))

	f.store.MoveTo(walker, ecs.ZoneGraveyard)
	assert.Empty(t, f.calculator.CalculateRegularDamage().Events)
}

func TestValidateAssignment(t *testing.T) {
	f := newFixture(t)
	trampler := f.creature("alice", "Wurm", 6, 6, ecs.KeywordTrample)
	plain := f.creature("alice", "Giant", 5, 5)
	a := f.creature("bob", "A", 2, 2)
	b := f.creature("bob", "B", 3, 3)
	c := f.creature("bob", "C", 2, 2)
	f.attack(t, trampler, plain)
	f.block(t, trampler, a, b)
	f.block(t, plain, c)

	assert.NoError(t, f.calculator.ValidateAssignment(trampler, map[ecs.Entity]int{a: 2, b: 3}, 1))
	assert.NoError(t, f.calculator.ValidateAssignment(trampler, map[ecs.Entity]int{a: 6}, 0))
	assert.NoError(t, f.calculator.ValidateAssignment(trampler, map[ecs.Entity]int{a: 3, b: 3}, 0))
	assert.ErrorIs(t, f.calculator.ValidateAssignment(trampler, map[ecs.Entity]int{a: 1, b: 5}, 0), ErrInvalidAssignment)
	assert.ErrorIs(t, f.calculator.ValidateAssignment(trampler, map[ecs.Entity]int{a: 2, b: 2}, 2), ErrInvalidAssignment)
	assert.ErrorIs(t, f.calculator.ValidateAssignment(trampler, map[ecs.Entity]int{a: 2, b: 3}, 0), ErrInvalidAssignment)
	assert.ErrorIs(t, f.calculator.ValidateAssignment(trampler, map[ecs.Entity]int{c: 6}, 0), ErrInvalidAssignment)

	assert.ErrorIs(t, f.calculator.ValidateAssignment(plain, map[ecs.Entity]int{c: 2}, 3), ErrInvalidAssignment)
	assert.NoError(t, f.calculator.ValidateAssignment(plain, map[ecs.Entity]int{c: 5}, 0))
	assert.ErrorIs(t, f.calculator.ValidateAssignment(a, map[ecs.Entity]int{}, 0), ErrNotInCombat)
}

func TestLethal(t *testing.T) {
	f := newFixture(t)
	giant := f.creature("bob", "Giant", 3, 3)
	f.store.MarkDamage(giant, 1, false)
	v, ok := f.projector.Project(giant)
	require.True(t, ok)
	assert.Equal(t, 2, Lethal(v, false))
	assert.Equal(t, 1, Lethal(v, true))

	f.store.MarkDamage(giant, 5, false)
	v, _ = f.projector.Project(giant)
	assert.Zero(t, Lethal(v, true))
}
