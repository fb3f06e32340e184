package combat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/layers"
	"github.com/magefree/mage-rules-go/internal/game/mana"
)

type fixture struct {
	store      *ecs.Store
	catalog    *effects.Catalog
	projector  *layers.Projector
	state      *State
	calculator *Calculator
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	store := ecs.NewStore(logger)
	require.NoError(t, store.AddPlayer("alice", 20))
	require.NoError(t, store.AddPlayer("bob", 20))
	catalog := effects.NewCatalog(store, logger)
	projector := layers.NewProjector(store, catalog, logger)
	if len(opts) == 0 {
		opts = []Option{WithAutoOrderBlockers(true)}
	}
	state := NewState(store, projector, logger, opts...)
	return &fixture{
		store:      store,
		catalog:    catalog,
		projector:  projector,
		state:      state,
		calculator: NewCalculator(state, projector, logger),
	}
}

func (f *fixture) create(owner ecs.PlayerID, name string, c ecs.Characteristics) ecs.Entity {
	return f.store.Create(ecs.ObjectSpec{Name: name, Owner: owner, Characteristics: c})
}

func (f *fixture) creature(owner ecs.PlayerID, name string, power, toughness int, keywords ...ecs.Keyword) ecs.Entity {
	return f.create(owner, name, ecs.Characteristics{
		Types:     []ecs.CardType{ecs.TypeCreature},
		Colors:    ecs.Colors(ecs.Green),
		Power:     power,
		Toughness: toughness,
		HasPT:     true,
		Keywords:  ecs.Keywords(keywords...),
	})
}

func (f *fixture) apply(target ecs.Entity, m effects.Modification) {
	f.catalog.Add(effects.NewEffectBuilder(ecs.NoEntity, "test", "alice").Targeting(target).Build(m))
}

// attack begins combat for alice and declares every attacker at bob.
func (f *fixture) attack(t *testing.T, attackers ...ecs.Entity) {
	t.Helper()
	f.state.Begin("alice")
	for _, a := range attackers {
		res := f.state.DeclareAttacker(a, "alice", AttackPlayer("bob"), mana.Cost{})
		require.True(t, res.OK(), "attacker %d: %s", a, res.Reason)
	}
	require.NoError(t, f.state.FinishAttackers())
}

func (f *fixture) block(t *testing.T, attacker ecs.Entity, blockers ...ecs.Entity) {
	t.Helper()
	for _, b := range blockers {
		res := f.state.DeclareBlocker(b, attacker, "bob", mana.Cost{})
		require.True(t, res.OK(), "blocker %d: %s", b, res.Reason)
	}
}

func TestStepMachine(t *testing.T) {
	f := newFixture(t)
	bear := f.creature("alice", "Bear", 2, 2)
	wall := f.creature("bob", "Wall", 0, 4)

	assert.ErrorIs(t, f.state.FinishAttackers(), ErrWrongStep)
	assert.Equal(t, ReasonWrongStep, f.state.CanDeclareAttacker(bear, "alice").Reason)

	f.state.Begin("alice")
	assert.True(t, f.state.Active())
	assert.Equal(t, StepDeclareAttackers, f.state.Step())
	assert.Equal(t, []ecs.PlayerID{"bob"}, f.state.DefendingPlayers())
	assert.Equal(t, ReasonWrongStep, f.state.CanDeclareBlocker(wall, bear, "bob").Reason)
	require.True(t, f.state.DeclareAttacker(bear, "alice", AttackPlayer("bob"), mana.Cost{}).OK())

	require.NoError(t, f.state.FinishAttackers())
	assert.Equal(t, StepDeclareBlockers, f.state.Step())
	assert.ErrorIs(t, f.state.FinishAttackers(), ErrWrongStep)
	assert.Equal(t, ReasonWrongStep, f.state.CanDeclareAttacker(bear, "alice").Reason)
	assert.True(t, f.state.CanDeclareBlocker(wall, bear, "bob").OK())

	f.state.End()
	assert.False(t, f.state.Active())
	assert.Equal(t, StepDeclareAttackers, f.state.Step())
	assert.Empty(t, f.state.Attackers())
}

func TestCanDeclareAttacker(t *testing.T) {
	f := newFixture(t)
	bear := f.creature("alice", "Bear", 2, 2)
	land := f.create("alice", "Forest", ecs.Characteristics{Types: []ecs.CardType{ecs.TypeLand}})
	theirs := f.creature("bob", "Elf", 1, 1)
	pacified := f.creature("alice", "Pacified", 2, 2)
	f.apply(pacified, effects.CantAttack{})
	tapped := f.store.Create(ecs.ObjectSpec{Name: "Tapped", Owner: "alice", Tapped: true,
		Characteristics: ecs.Characteristics{Types: []ecs.CardType{ecs.TypeCreature}, HasPT: true, Power: 1, Toughness: 1}})
	sick := f.store.Create(ecs.ObjectSpec{Name: "Sick", Owner: "alice", SummoningSick: true,
		Characteristics: ecs.Characteristics{Types: []ecs.CardType{ecs.TypeCreature}, HasPT: true, Power: 1, Toughness: 1}})
	hasty := f.store.Create(ecs.ObjectSpec{Name: "Hasty", Owner: "alice", SummoningSick: true,
		Characteristics: ecs.Characteristics{Types: []ecs.CardType{ecs.TypeCreature}, HasPT: true, Power: 1, Toughness: 1,
			Keywords: ecs.Keywords(ecs.KeywordHaste)}})
	wall := f.creature("alice", "Wall", 0, 4, ecs.KeywordDefender)
	dead := f.creature("alice", "Dead", 2, 2)
	f.store.MoveTo(dead, ecs.ZoneGraveyard)

	f.state.Begin("alice")
	require.True(t, f.state.DeclareAttacker(bear, "alice", AttackPlayer("bob"), mana.Cost{}).OK())

	tests := []struct {
		name   string
		entity ecs.Entity
		player ecs.PlayerID
		want   Reason
	}{
		{"not active player", hasty, "bob", ReasonNotActivePlayer},
		{"unknown", dead, "alice", ReasonUnknownEntity},
		{"not a creature", land, "alice", ReasonNotCreature},
		{"not controller", theirs, "alice", ReasonNotController},
		{"cant attack", pacified, "alice", ReasonCantAttack},
		{"tapped", tapped, "alice", ReasonTapped},
		{"summoning sick", sick, "alice", ReasonSummoningSick},
		{"defender", wall, "alice", ReasonDefender},
		{"already attacking", bear, "alice", ReasonAlreadyAttacking},
		{"haste", hasty, "alice", ReasonNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.state.CanDeclareAttacker(tt.entity, tt.player)
			assert.Equal(t, tt.want, res.Reason)
			if tt.want == ReasonNone {
				assert.Equal(t, Valid, res.Verdict)
			} else {
				assert.Equal(t, Invalid, res.Verdict)
			}
		})
	}
}

func TestAttackTaxRequiresCost(t *testing.T) {
	f := newFixture(t)
	bear := f.creature("alice", "Bear", 2, 2)
	f.apply(bear, effects.AttackTax{Cost: mana.MustParse("{2}")})

	f.state.Begin("alice")
	res := f.state.CanDeclareAttacker(bear, "alice")
	assert.Equal(t, RequiresCost, res.Verdict)
	assert.Equal(t, mana.MustParse("{2}"), res.Costs)

	res = f.state.DeclareAttacker(bear, "alice", AttackPlayer("bob"), mana.MustParse("{1}"))
	assert.Equal(t, RequiresCost, res.Verdict)
	assert.False(t, f.state.IsAttacking(bear))

	res = f.state.DeclareAttacker(bear, "alice", AttackPlayer("bob"), mana.MustParse("{G}{G}"))
	assert.True(t, res.OK())
	g, ok := f.state.Group(bear)
	require.True(t, ok)
	assert.Equal(t, mana.MustParse("{2}"), g.Paid)
}

func TestAttackDefenders(t *testing.T) {
	f := newFixture(t)
	a := f.creature("alice", "A", 2, 2)
	b := f.creature("alice", "B", 2, 2)
	c := f.creature("alice", "C", 2, 2)
	walker := f.create("bob", "Jace", ecs.Characteristics{Types: []ecs.CardType{ecs.TypePlaneswalker}})
	f.store.AddCounters(walker, counters.Loyalty, 3)
	elf := f.creature("bob", "Elf", 1, 1)

	f.state.Begin("alice")
	assert.Equal(t, ReasonInvalidDefender, f.state.DeclareAttacker(a, "alice", AttackPlayer("alice"), mana.Cost{}).Reason)
	assert.Equal(t, ReasonInvalidDefender, f.state.DeclareAttacker(a, "alice", AttackPermanent(elf), mana.Cost{}).Reason)
	assert.False(t, f.state.IsAttacking(a))

	require.True(t, f.state.DeclareAttacker(a, "alice", AttackPermanent(walker), mana.Cost{}).OK())
	require.True(t, f.state.DeclareAttacker(b, "alice", AttackPlayer("bob"), mana.Cost{}).OK())
	require.True(t, f.state.DeclareAttacker(c, "alice", AttackPlayer("bob"), mana.Cost{}).OK())

	g, ok := f.state.Group(a)
	require.True(t, ok)
	assert.Equal(t, ecs.PlayerID("bob"), g.DefendingPlayer)
	assert.True(t, g.Defender.IsPermanent())
	assert.Equal(t, []ecs.Entity{a, b, c}, f.state.Attackers())
}

func TestBlockEvasion(t *testing.T) {
	creature := func(colors ecs.ColorSet, keywords ...ecs.Keyword) ecs.Characteristics {
		return ecs.Characteristics{
			Types: []ecs.CardType{ecs.TypeCreature}, Colors: colors,
			Power: 2, Toughness: 2, HasPT: true, Keywords: ecs.Keywords(keywords...),
		}
	}
	artifact := creature(0)
	artifact.Types = []ecs.CardType{ecs.TypeArtifact, ecs.TypeCreature}
	green, black, red := ecs.Colors(ecs.Green), ecs.Colors(ecs.Black), ecs.Colors(ecs.Red)

	tests := []struct {
		name     string
		attacker ecs.Characteristics
		blocker  ecs.Characteristics
		want     Reason
	}{
		{"ground blocks ground", creature(green), creature(green), ReasonNone},
		{"ground cannot block flying", creature(green, ecs.KeywordFlying), creature(green), ReasonFlying},
		{"flying blocks flying", creature(green, ecs.KeywordFlying), creature(green, ecs.KeywordFlying), ReasonNone},
		{"reach blocks flying", creature(green, ecs.KeywordFlying), creature(green, ecs.KeywordReach), ReasonNone},
		{"shadow needs shadow", creature(green, ecs.KeywordShadow), creature(green), ReasonShadow},
		{"shadow cannot block normal", creature(green), creature(green, ecs.KeywordShadow), ReasonShadow},
		{"shadow blocks shadow", creature(green, ecs.KeywordShadow), creature(green, ecs.KeywordShadow), ReasonNone},
		{"fear stops green", creature(black, ecs.KeywordFear), creature(green), ReasonFear},
		{"fear allows black", creature(black, ecs.KeywordFear), creature(black), ReasonNone},
		{"fear allows artifacts", creature(black, ecs.KeywordFear), artifact, ReasonNone},
		{"intimidate stops other colors", creature(red, ecs.KeywordIntimidate), creature(green), ReasonIntimidate},
		{"intimidate allows shared color", creature(red, ecs.KeywordIntimidate), creature(red), ReasonNone},
		{"intimidate allows artifacts", creature(red, ecs.KeywordIntimidate), artifact, ReasonNone},
		{"horsemanship needs horsemanship", creature(green, ecs.KeywordHorsemanship), creature(green), ReasonHorsemanship},
		{"horsemanship blocks horsemanship", creature(green, ecs.KeywordHorsemanship), creature(green, ecs.KeywordHorsemanship), ReasonNone},
		{"flying and fear both checked", creature(black, ecs.KeywordFlying, ecs.KeywordFear), creature(green, ecs.KeywordReach), ReasonFear},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			attacker := f.create("alice", "Attacker", tt.attacker)
			blocker := f.create("bob", "Blocker", tt.blocker)
			f.attack(t, attacker)
			assert.Equal(t, tt.want, f.state.CanDeclareBlocker(blocker, attacker, "bob").Reason)
		})
	}
}

func TestBlockRestrictionsFromEffects(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Knight", 2, 2)
	other := f.creature("alice", "Squire", 1, 1)
	greenBlocker := f.creature("bob", "Elf", 1, 1)
	f.apply(attacker, effects.GrantProtection{Protection: effects.Protection{Colors: ecs.Colors(ecs.Green)}})
	f.apply(other, effects.CantBeBlockedExceptBy{Colors: ecs.Colors(ecs.Black)})
	f.attack(t, attacker, other)

	assert.Equal(t, ReasonProtection, f.state.CanDeclareBlocker(greenBlocker, attacker, "bob").Reason)
	assert.Equal(t, ReasonBlockerColor, f.state.CanDeclareBlocker(greenBlocker, other, "bob").Reason)

	f.apply(other, effects.CantBeBlocked{})
	assert.Equal(t, ReasonUnblockable, f.state.CanDeclareBlocker(greenBlocker, other, "bob").Reason)
}

func TestCanDeclareBlocker(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	idle := f.creature("alice", "Idle", 2, 2)
	wall := f.creature("bob", "Wall", 0, 4)
	second := f.creature("alice", "Second", 2, 2)
	tapped := f.store.Create(ecs.ObjectSpec{Name: "Tapped", Owner: "bob", Tapped: true,
		Characteristics: ecs.Characteristics{Types: []ecs.CardType{ecs.TypeCreature}, HasPT: true, Power: 1, Toughness: 1}})
	coward := f.creature("bob", "Coward", 1, 1)
	f.apply(coward, effects.CantBlock{})
	taxed := f.creature("bob", "Taxed", 1, 1)
	f.apply(taxed, effects.BlockTax{Cost: mana.MustParse("{1}")})
	flicker := f.creature("bob", "Flicker", 1, 1)
	f.attack(t, attacker, second)

	late := f.creature("bob", "Late", 3, 3)
	f.store.MoveTo(flicker, ecs.ZoneExile)
	f.store.MoveTo(flicker, ecs.ZoneBattlefield)

	f.block(t, attacker, wall)

	tests := []struct {
		name     string
		blocker  ecs.Entity
		attacker ecs.Entity
		player   ecs.PlayerID
		want     Reason
	}{
		{"attacking player cannot block", idle, attacker, "alice", ReasonNotDefendingPlayer},
		{"not controller", idle, attacker, "bob", ReasonNotController},
		{"entered after the step began", late, attacker, "bob", ReasonNotEligible},
		{"new object after zone change", flicker, attacker, "bob", ReasonNotEligible},
		{"tapped", tapped, attacker, "bob", ReasonTapped},
		{"cant block", coward, attacker, "bob", ReasonCantBlock},
		{"already blocking that attacker", wall, attacker, "bob", ReasonAlreadyBlocking},
		{"blocking another attacker", wall, second, "bob", ReasonBlockingAnother},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := f.state.CanDeclareBlocker(tt.blocker, tt.attacker, tt.player)
			assert.Equal(t, Invalid, res.Verdict)
			assert.Equal(t, tt.want, res.Reason)
		})
	}

	res := f.state.CanDeclareBlocker(taxed, attacker, "bob")
	assert.Equal(t, RequiresCost, res.Verdict)
	assert.Equal(t, mana.MustParse("{1}"), res.Costs)
	assert.Equal(t, RequiresCost, f.state.DeclareBlocker(taxed, attacker, "bob", mana.Cost{}).Verdict)
	assert.True(t, f.state.DeclareBlocker(taxed, attacker, "bob", mana.MustParse("{U}")).OK())
	assert.Equal(t, []ecs.Entity{wall, taxed}, f.state.Blockers(attacker))
}

func TestBlockNotAttackingCreature(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	idle := f.creature("alice", "Idle", 2, 2)
	elf := f.creature("bob", "Elf", 1, 1)
	f.attack(t, attacker)
	assert.Equal(t, ReasonNotAttacking, f.state.CanDeclareBlocker(elf, idle, "bob").Reason)
}

func TestMenaceValidation(t *testing.T) {
	for _, blockers := range []int{0, 1, 2} {
		f := newFixture(t)
		attacker := f.creature("alice", "Goblin", 3, 3, ecs.KeywordMenace)
		available := []ecs.Entity{f.creature("bob", "A", 1, 1), f.creature("bob", "B", 1, 1)}
		f.attack(t, attacker)
		f.block(t, attacker, available[:blockers]...)
		report := f.state.ValidateDeclarations()
		if blockers == 1 {
			assert.Equal(t, []ecs.Entity{attacker}, report.MenaceViolations, "blockers=%d", blockers)
			assert.False(t, report.Valid())
		} else {
			assert.Empty(t, report.MenaceViolations, "blockers=%d", blockers)
		}
	}
}

func TestMustAttackValidation(t *testing.T) {
	f := newFixture(t)
	berserker := f.creature("alice", "Berserker", 3, 3)
	tired := f.store.Create(ecs.ObjectSpec{Name: "Tired", Owner: "alice", Tapped: true,
		Characteristics: ecs.Characteristics{Types: []ecs.CardType{ecs.TypeCreature}, HasPT: true, Power: 1, Toughness: 1}})
	f.apply(berserker, effects.MustAttack{})
	f.apply(tired, effects.MustAttack{})

	f.state.Begin("alice")
	report := f.state.ValidateDeclarations()
	assert.Equal(t, []ecs.Entity{berserker}, report.MustAttackViolations)

	require.True(t, f.state.DeclareAttacker(berserker, "alice", AttackPlayer("bob"), mana.Cost{}).OK())
	assert.True(t, f.state.ValidateDeclarations().Valid())
}

func TestMustBlockValidation(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	flier := f.creature("alice", "Bird", 1, 1, ecs.KeywordFlying)
	guard := f.creature("bob", "Guard", 2, 2)
	f.apply(guard, effects.MustBlock{})
	f.attack(t, attacker, flier)

	report := f.state.ValidateDeclarations()
	assert.Equal(t, []ecs.Entity{guard}, report.MustBlockViolations)

	f.block(t, attacker, guard)
	assert.Empty(t, f.state.ValidateDeclarations().MustBlockViolations)
}

func TestMustBlockSpecificAttacker(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Bear", 2, 2)
	taunter := f.creature("alice", "Taunter", 1, 1)
	guard := f.creature("bob", "Guard", 2, 2)
	f.apply(guard, effects.MustBlock{Attacker: taunter})
	f.attack(t, attacker, taunter)

	f.block(t, attacker, guard)
	assert.Equal(t, []ecs.Entity{guard}, f.state.ValidateDeclarations().MustBlockViolations)
}

func TestMustBeBlockedValidation(t *testing.T) {
	f := newFixture(t)
	lure := f.creature("alice", "Lure", 2, 2)
	f.apply(lure, effects.MustBeBlockedByAll{})
	elf := f.creature("bob", "Elf", 1, 1)
	f.attack(t, lure)

	assert.Equal(t, []ecs.Entity{lure}, f.state.ValidateDeclarations().MustBeBlockedViolations)
	f.block(t, lure, elf)
	assert.Empty(t, f.state.ValidateDeclarations().MustBeBlockedViolations)
}

func TestMustBeBlockedWithoutLegalBlockers(t *testing.T) {
	f := newFixture(t)
	lure := f.creature("alice", "Lure", 2, 2, ecs.KeywordFlying)
	f.apply(lure, effects.MustBeBlockedByAll{})
	f.creature("bob", "Elf", 1, 1)
	f.attack(t, lure)

	assert.True(t, f.state.ValidateDeclarations().Valid())
}

func TestDamageAssignmentOrder(t *testing.T) {
	f := newFixture(t, WithAutoOrderBlockers(false))
	attacker := f.creature("alice", "Giant", 5, 5)
	a := f.creature("bob", "A", 2, 2)
	b := f.creature("bob", "B", 2, 2)
	f.attack(t, attacker)
	f.block(t, attacker, a, b)

	_, ok := f.state.DamageOrder(attacker)
	assert.False(t, ok)
	assert.ErrorIs(t, f.state.SetDamageAssignmentOrder(attacker, []ecs.Entity{a}), ErrInvalidOrder)
	assert.ErrorIs(t, f.state.SetDamageAssignmentOrder(attacker, []ecs.Entity{a, a}), ErrInvalidOrder)
	assert.ErrorIs(t, f.state.SetDamageAssignmentOrder(b, []ecs.Entity{a}), ErrNotInCombat)

	require.NoError(t, f.state.SetDamageAssignmentOrder(attacker, []ecs.Entity{b, a}))
	order, ok := f.state.DamageOrder(attacker)
	require.True(t, ok)
	assert.Equal(t, []ecs.Entity{b, a}, order)
}

func TestRemoveFromCombat(t *testing.T) {
	f := newFixture(t)
	attacker := f.creature("alice", "Giant", 5, 5)
	other := f.creature("alice", "Bear", 2, 2)
	a := f.creature("bob", "A", 2, 2)
	b := f.creature("bob", "B", 2, 2)
	f.attack(t, attacker, other)
	f.block(t, attacker, a, b)

	assert.True(t, f.state.RemoveFromCombat(a))
	assert.True(t, f.state.IsBlocked(attacker))
	assert.Equal(t, []ecs.Entity{b}, f.state.Blockers(attacker))
	order, _ := f.state.DamageOrder(attacker)
	assert.Equal(t, []ecs.Entity{b}, order)
	_, blocking := f.state.Blocking(a)
	assert.False(t, blocking)

	assert.True(t, f.state.RemoveFromCombat(other))
	assert.False(t, f.state.IsAttacking(other))
	assert.Equal(t, []ecs.Entity{attacker}, f.state.Attackers())
	assert.False(t, f.state.RemoveFromCombat(other))
}
