package effects

import (
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/mana"
)

// EffectBuilder provides a fluent API for creating floating effects
// This simplifies effect creation for resolving spells and abilities
type EffectBuilder struct {
	source     ecs.Entity
	sourceName string
	controller ecs.PlayerID
	affected   Affected
	duration   Duration
}

// NewEffectBuilder creates a new effect builder. Effects last until end of
// turn unless told otherwise.
func NewEffectBuilder(source ecs.Entity, sourceName string, controller ecs.PlayerID) *EffectBuilder {
	return &EffectBuilder{
		source:     source,
		sourceName: sourceName,
		controller: controller,
		duration:   EndOfTurn(),
	}
}

// Targeting sets the affected objects
func (b *EffectBuilder) Targeting(targets ...ecs.Entity) *EffectBuilder {
	b.affected = AffectEntities(targets...)
	return b
}

// Matching affects the objects matching f when the effect is added
func (b *EffectBuilder) Matching(f *Filter) *EffectBuilder {
	b.affected = AffectMatching(f)
	return b
}

// ContinuouslyMatching affects whatever matches f at each projection
func (b *EffectBuilder) ContinuouslyMatching(f *Filter) *EffectBuilder {
	b.affected = AffectContinuously(f)
	return b
}

// UntilEndOfTurn sets the duration to end of turn
func (b *EffectBuilder) UntilEndOfTurn() *EffectBuilder {
	b.duration = EndOfTurn()
	return b
}

// UntilEndOfCombat sets the duration to end of combat
func (b *EffectBuilder) UntilEndOfCombat() *EffectBuilder {
	b.duration = EndOfCombat()
	return b
}

// UntilYourNextTurn lasts until the controller's next turn
func (b *EffectBuilder) UntilYourNextTurn() *EffectBuilder {
	b.duration = UntilYourNextTurn(b.controller)
	return b
}

// WhileOnBattlefield sets the duration to while source is on battlefield
func (b *EffectBuilder) WhileOnBattlefield() *EffectBuilder {
	b.duration = WhileOnBattlefield()
	return b
}

// ForAsLongAsTapped lasts while the source remains tapped
func (b *EffectBuilder) ForAsLongAsTapped() *EffectBuilder {
	b.duration = WhileTapped()
	return b
}

// Until lasts until cond holds
func (b *EffectBuilder) Until(cond Condition) *EffectBuilder {
	b.duration = UntilCondition(cond)
	return b
}

// UntilStep lasts until step begins (in player's turn, when player is set)
func (b *EffectBuilder) UntilStep(step ecs.Step, player ecs.PlayerID) *EffectBuilder {
	b.duration = UntilStep(step, player)
	return b
}

// Permanent sets the duration to permanent
func (b *EffectBuilder) Permanent() *EffectBuilder {
	b.duration = Forever()
	return b
}

// Build wraps m into a floating effect. Id and timestamp are assigned by the catalog.
func (b *EffectBuilder) Build(m Modification) FloatingEffect {
	return FloatingEffect{
		Modification: m,
		Affected:     b.affected,
		Duration:     b.duration,
		Source:       b.source,
		SourceName:   b.sourceName,
		Controller:   b.controller,
	}
}

// GrantAbility creates a keyword-granting effect
func (b *EffectBuilder) GrantAbility(keywords ...ecs.Keyword) FloatingEffect {
	return b.Build(GrantKeywords{Keywords: ecs.Keywords(keywords...)})
}

// CantAttack creates a can't attack effect
func (b *EffectBuilder) CantAttack() FloatingEffect {
	return b.Build(CantAttack{})
}

// CantBlock creates a can't block effect
func (b *EffectBuilder) CantBlock() FloatingEffect {
	return b.Build(CantBlock{})
}

// MustAttack creates an attacks-each-combat effect
func (b *EffectBuilder) MustAttack() FloatingEffect {
	return b.Build(MustAttack{})
}

// Boost creates a +power/+toughness effect
func (b *EffectBuilder) Boost(power, toughness int) FloatingEffect {
	return b.Build(ModifyPT{Power: power, Toughness: toughness})
}

// BasePT creates a set power/toughness effect
func (b *EffectBuilder) BasePT(power, toughness int) FloatingEffect {
	return b.Build(SetBoth(power, toughness))
}

// AttackTax creates a "can't attack unless its controller pays" effect
func (b *EffectBuilder) AttackTax(cost mana.Cost) FloatingEffect {
	return b.Build(AttackTax{Cost: cost})
}

// PreventNext creates a shield preventing the next amount damage to the recipient
func (b *EffectBuilder) PreventNext(amount int, to Recipient) FloatingEffect {
	return b.Build(PreventNextDamage{Amount: amount, To: to})
}
