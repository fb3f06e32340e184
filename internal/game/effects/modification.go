package effects

import (
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/mana"
)

// Modification is what a continuous effect does. The set of variants is
// closed; the projectors switch over it and panic on anything else.
type Modification interface {
	Layer() Layer
	SubLayer() SubLayer
	modification()
}

type layered struct{}

func (layered) SubLayer() SubLayer { return SubLayerNone }
func (layered) modification()      {}

// Layer 1

// CopyCharacteristics makes the affected object a copy of From's printed values.
type CopyCharacteristics struct {
	layered
	From ecs.Entity
}

func (CopyCharacteristics) Layer() Layer { return LayerCopy }

// Layer 2

// ChangeController gives control of the affected object to To.
// An empty To means the effect's controller.
type ChangeController struct {
	layered
	To ecs.PlayerID
}

func (ChangeController) Layer() Layer { return LayerControl }

// Layer 3

// ReplaceSubtypeText rewrites a subtype word in the object's text.
type ReplaceSubtypeText struct {
	layered
	From string
	To   string
}

func (ReplaceSubtypeText) Layer() Layer { return LayerText }

// Layer 4

// AddCardTypes adds card types and subtypes.
type AddCardTypes struct {
	layered
	Types    []ecs.CardType
	Subtypes []string
}

func (AddCardTypes) Layer() Layer { return LayerType }

// SetCardTypes overwrites card types and subtypes.
type SetCardTypes struct {
	layered
	Types    []ecs.CardType
	Subtypes []string
}

func (SetCardTypes) Layer() Layer { return LayerType }

// Layer 5

// SetColors overwrites the object's colors.
type SetColors struct {
	layered
	Colors ecs.ColorSet
}

func (SetColors) Layer() Layer { return LayerColor }

// AddColors adds colors.
type AddColors struct {
	layered
	Colors ecs.ColorSet
}

func (AddColors) Layer() Layer { return LayerColor }

// Layer 6

// GrantKeywords adds keyword abilities.
type GrantKeywords struct {
	layered
	Keywords ecs.KeywordSet
}

func (GrantKeywords) Layer() Layer { return LayerAbility }

// RemoveKeywords removes keyword abilities.
type RemoveKeywords struct {
	layered
	Keywords ecs.KeywordSet
}

func (RemoveKeywords) Layer() Layer { return LayerAbility }

// RemoveAllAbilities strips keywords and protections, printed or granted
// earlier in layer 6.
type RemoveAllAbilities struct{ layered }

func (RemoveAllAbilities) Layer() Layer { return LayerAbility }

// CantAttack is "can't attack".
type CantAttack struct{ layered }

func (CantAttack) Layer() Layer { return LayerAbility }

// CantBlock is "can't block".
type CantBlock struct{ layered }

func (CantBlock) Layer() Layer { return LayerAbility }

// CantBeBlocked is "can't be blocked".
type CantBeBlocked struct{ layered }

func (CantBeBlocked) Layer() Layer { return LayerAbility }

// CantBeBlockedExceptBy is "can't be blocked except by <color> creatures".
type CantBeBlockedExceptBy struct {
	layered
	Colors ecs.ColorSet
}

func (CantBeBlockedExceptBy) Layer() Layer { return LayerAbility }

// MustAttack is "attacks each combat if able".
type MustAttack struct{ layered }

func (MustAttack) Layer() Layer { return LayerAbility }

// MustBlock is "blocks each combat if able". A non-zero Attacker narrows it
// to "blocks that creature if able".
type MustBlock struct {
	layered
	Attacker ecs.Entity
}

func (MustBlock) Layer() Layer { return LayerAbility }

// MustBeBlockedByAll is "all creatures able to block it do so".
type MustBeBlockedByAll struct{ layered }

func (MustBeBlockedByAll) Layer() Layer { return LayerAbility }

// GrantProtection adds "protection from <quality>".
type GrantProtection struct {
	layered
	Protection Protection
}

func (GrantProtection) Layer() Layer { return LayerAbility }

// AttackTax is "can't attack unless its controller pays <cost>".
type AttackTax struct {
	layered
	Cost mana.Cost
}

func (AttackTax) Layer() Layer { return LayerAbility }

// BlockTax is "can't block unless its controller pays <cost>".
type BlockTax struct {
	layered
	Cost mana.Cost
}

func (BlockTax) Layer() Layer { return LayerAbility }

// Layer 7

// DefinePT is a characteristic-defining power/toughness (7a). A nil formula
// leaves that value alone.
type DefinePT struct {
	Power     Formula
	Toughness Formula
}

func (DefinePT) Layer() Layer       { return LayerPowerToughness }
func (DefinePT) SubLayer() SubLayer { return SubLayerDefine }
func (DefinePT) modification()      {}

// SetPT sets power and toughness (7b). Nil leaves that value alone.
type SetPT struct {
	Power     *int
	Toughness *int
}

// SetBoth is SetPT for both values.
func SetBoth(power, toughness int) SetPT {
	return SetPT{Power: &power, Toughness: &toughness}
}

func (SetPT) Layer() Layer       { return LayerPowerToughness }
func (SetPT) SubLayer() SubLayer { return SubLayerSet }
func (SetPT) modification()      {}

// ModifyPT adds a delta (7c).
type ModifyPT struct {
	Power     int
	Toughness int
}

func (ModifyPT) Layer() Layer       { return LayerPowerToughness }
func (ModifyPT) SubLayer() SubLayer { return SubLayerModify }
func (ModifyPT) modification()      {}

// SwitchPT switches power and toughness (7e).
type SwitchPT struct{}

func (SwitchPT) Layer() Layer       { return LayerPowerToughness }
func (SwitchPT) SubLayer() SubLayer { return SubLayerSwitch }
func (SwitchPT) modification()      {}

// Event-time effects

// Recipient narrows a prevention effect to damage dealt to one player or one
// permanent. The zero value matches any recipient.
type Recipient struct {
	Player ecs.PlayerID
	Entity ecs.Entity
}

// Any reports whether the recipient is unrestricted.
func (r Recipient) Any() bool {
	return r.Player == "" && r.Entity == ecs.NoEntity
}

// DamageFilter holds the applicability checks shared by every prevention effect.
type DamageFilter struct {
	CombatOnly bool
	Source     *Filter
	Target     *Filter
}

type prevention struct{}

func (prevention) Layer() Layer       { return LayerNone }
func (prevention) SubLayer() SubLayer { return SubLayerNone }
func (prevention) modification()      {}
func (prevention) isPrevention()      {}

// Prevention is implemented by every event-time variant.
type Prevention interface {
	Modification
	Filters() DamageFilter
	isPrevention()
}

// PreventAllDamage prevents all damage that passes the filter.
type PreventAllDamage struct {
	prevention
	DamageFilter
}

// PreventDamageToPlayer prevents damage dealt to Player.
type PreventDamageToPlayer struct {
	prevention
	DamageFilter
	Player ecs.PlayerID
}

// PreventDamageToCreatures prevents damage dealt to creatures.
type PreventDamageToCreatures struct {
	prevention
	DamageFilter
}

// PreventNextDamage is a shield: it prevents the next Amount damage that
// would be dealt to To.
type PreventNextDamage struct {
	prevention
	DamageFilter
	Amount int
	To     Recipient
}

// ReduceDamage prevents up to Amount of each damage event dealt to To.
type ReduceDamage struct {
	prevention
	DamageFilter
	Amount int
	To     Recipient
}

// PreventDamageFromSource prevents damage dealt by From.
type PreventDamageFromSource struct {
	prevention
	DamageFilter
	From ecs.Entity
}

// PreventDamageToTarget prevents damage dealt to To.
type PreventDamageToTarget struct {
	prevention
	DamageFilter
	To Recipient
}

// RedirectNextDamage makes the next damage event dealt to From be dealt to
// To instead. It is used up by the first event it redirects.
type RedirectNextDamage struct {
	prevention
	DamageFilter
	From Recipient
	To   Recipient
}

// ReflectCombatDamage prevents combat damage dealt to From and deals the
// same amount to To. An unrestricted To reflects it to the controller of
// the damage source.
type ReflectCombatDamage struct {
	prevention
	DamageFilter
	From Recipient
	To   Recipient
}

func (m PreventAllDamage) Filters() DamageFilter         { return m.DamageFilter }
func (m PreventDamageToPlayer) Filters() DamageFilter    { return m.DamageFilter }
func (m PreventDamageToCreatures) Filters() DamageFilter { return m.DamageFilter }
func (m PreventNextDamage) Filters() DamageFilter        { return m.DamageFilter }
func (m ReduceDamage) Filters() DamageFilter             { return m.DamageFilter }
func (m PreventDamageFromSource) Filters() DamageFilter  { return m.DamageFilter }
func (m PreventDamageToTarget) Filters() DamageFilter    { return m.DamageFilter }
func (m RedirectNextDamage) Filters() DamageFilter       { return m.DamageFilter }

// Filters always includes CombatOnly for reflection.
func (m ReflectCombatDamage) Filters() DamageFilter {
	f := m.DamageFilter
	f.CombatOnly = true
	return f
}

// UsesShield reports whether the modification consumes from the shield map.
func UsesShield(m Modification) bool {
	switch m.(type) {
	case PreventNextDamage, RedirectNextDamage:
		return true
	}
	return false
}
