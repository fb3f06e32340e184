package effects

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

func newTestGame(t *testing.T) (*ecs.Store, *Catalog) {
	t.Helper()
	store := ecs.NewStore(zaptest.NewLogger(t))
	require.NoError(t, store.AddPlayer("alice", 20))
	require.NoError(t, store.AddPlayer("bob", 20))
	return store, NewCatalog(store, zaptest.NewLogger(t))
}

func creature(store *ecs.Store, owner ecs.PlayerID, name string, power, toughness int) ecs.Entity {
	return store.Create(ecs.ObjectSpec{
		Name:  name,
		Owner: owner,
		Zone:  ecs.ZoneBattlefield,
		Characteristics: ecs.Characteristics{
			Types:     []ecs.CardType{ecs.TypeCreature},
			Power:     power,
			Toughness: toughness,
			HasPT:     true,
		},
	})
}

func TestCatalogAddAssignsIDAndTimestamp(t *testing.T) {
	store, catalog := newTestGame(t)
	bear := creature(store, "alice", "Grizzly Bears", 2, 2)

	id := catalog.Add(NewEffectBuilder(bear, "Giant Growth", "alice").Targeting(bear).Boost(3, 3))
	require.NotEmpty(t, id)

	effect, ok := catalog.Get(id)
	require.True(t, ok)
	assert.NotZero(t, effect.Timestamp)
	assert.Equal(t, LayerPowerToughness, effect.Layer())
	assert.Equal(t, DurationEndOfTurn, effect.Duration.Kind)
	assert.Equal(t, 1, catalog.Len())
}

func TestCatalogKeepsTimestampOrder(t *testing.T) {
	store, catalog := newTestGame(t)
	bear := creature(store, "alice", "Grizzly Bears", 2, 2)
	b := NewEffectBuilder(bear, "source", "alice").Targeting(bear)

	late := b.Boost(1, 1)
	late.Timestamp = 50
	early := b.BasePT(0, 1)
	early.Timestamp = 40

	lateID := catalog.Add(late)
	earlyID := catalog.Add(early)

	active := catalog.Active()
	require.Len(t, active, 2)
	assert.Equal(t, earlyID, active[0].ID)
	assert.Equal(t, lateID, active[1].ID)
}

func TestCatalogRejectsUnlockedFilter(t *testing.T) {
	_, catalog := newTestGame(t)
	effect := NewEffectBuilder(ecs.NoEntity, "Overrun", "alice").
		Matching(CreaturesYouControl()).
		Boost(3, 3)

	assert.Panics(t, func() { catalog.Add(effect) })
	assert.Panics(t, func() { catalog.Add(FloatingEffect{}) })
}

func TestCatalogSeparatesPreventions(t *testing.T) {
	store, catalog := newTestGame(t)
	bear := creature(store, "alice", "Grizzly Bears", 2, 2)
	b := NewEffectBuilder(bear, "source", "alice").Targeting(bear)

	catalog.Add(b.GrantAbility(ecs.KeywordFlying))
	shieldID := catalog.Add(b.PreventNext(3, Recipient{Player: "alice"}))

	assert.Len(t, catalog.Layered(), 1)
	preventions := catalog.Preventions()
	require.Len(t, preventions, 1)
	assert.Equal(t, shieldID, preventions[0].ID)
	assert.True(t, UsesShield(preventions[0].Modification))
}

func TestCatalogExpire(t *testing.T) {
	store, catalog := newTestGame(t)
	bear := creature(store, "alice", "Grizzly Bears", 2, 2)
	icy := creature(store, "bob", "Icy Manipulator", 0, 0)
	b := NewEffectBuilder(bear, "source", "alice").Targeting(bear)

	eot := catalog.Add(b.UntilEndOfTurn().Boost(1, 1))
	eoc := catalog.Add(b.UntilEndOfCombat().Boost(1, 1))
	nextTurn := catalog.Add(b.UntilYourNextTurn().CantAttack())
	forever := catalog.Add(b.Permanent().GrantAbility(ecs.KeywordFlying))
	onField := catalog.Add(b.WhileOnBattlefield().CantBlock())
	untilUpkeep := catalog.Add(b.UntilStep(ecs.StepUpkeep, "bob").MustAttack())

	store.SetTapped(icy, true)
	tapped := catalog.Add(NewEffectBuilder(icy, "Icy Manipulator", "bob").
		Targeting(bear).ForAsLongAsTapped().CantAttack())

	flag := false
	conditional := catalog.Add(b.Until(func(*ecs.Store) bool { return flag }).Boost(0, 1))

	assert.Empty(t, catalog.Expire(Moment{Kind: MomentCheck}, store))
	assert.Equal(t, []string{eoc}, catalog.Expire(Moment{Kind: MomentEndOfCombat}, store))

	store.SetTapped(icy, false)
	flag = true
	assert.ElementsMatch(t, []string{tapped, conditional}, catalog.Expire(Moment{Kind: MomentCheck}, store))

	assert.Equal(t, []string{eot}, catalog.Expire(Moment{Kind: MomentCleanup}, store))
	assert.Empty(t, catalog.Expire(Moment{Kind: MomentTurnStart, Player: "bob"}, store))
	assert.Empty(t, catalog.Expire(Moment{Kind: MomentStepStart, Player: "alice", Step: ecs.StepUpkeep}, store))
	assert.Equal(t, []string{untilUpkeep}, catalog.Expire(Moment{Kind: MomentStepStart, Player: "bob", Step: ecs.StepUpkeep}, store))
	assert.Equal(t, []string{nextTurn}, catalog.Expire(Moment{Kind: MomentTurnStart, Player: "alice"}, store))

	store.MoveTo(bear, ecs.ZoneGraveyard)
	store.MoveTo(bear, ecs.ZoneBattlefield)
	assert.Equal(t, []string{onField}, catalog.Expire(Moment{Kind: MomentCheck}, store))

	_, ok := catalog.Get(forever)
	assert.True(t, ok)
}

func TestCatalogRemoveFromSource(t *testing.T) {
	store, catalog := newTestGame(t)
	bear := creature(store, "alice", "Grizzly Bears", 2, 2)
	elf := creature(store, "alice", "Llanowar Elves", 1, 1)

	fromBear := catalog.Add(NewEffectBuilder(bear, "bear", "alice").Targeting(elf).Boost(1, 1))
	catalog.Add(NewEffectBuilder(elf, "elf", "alice").Targeting(bear).Boost(1, 1))

	assert.Equal(t, []string{fromBear}, catalog.RemoveFromSource(bear))
	assert.Equal(t, 1, catalog.Len())
	assert.False(t, catalog.Remove(fromBear))
}
