package effects

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/yohamta/donburi"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// Scope selects what a static ability modifies.
type Scope int

const (
	// ScopeSelf modifies the permanent that has the ability.
	ScopeSelf Scope = iota
	// ScopeAttached modifies the permanent the source is attached to
	// ("equipped creature gets +2/+2").
	ScopeAttached
	// ScopeFilter modifies every permanent matching the filter
	// ("other creatures you control have vigilance").
	ScopeFilter
)

// StaticAbility is a continuous effect printed on a permanent.
type StaticAbility struct {
	Name         string
	Modification Modification
	Scope        Scope
	Filter       *Filter
}

// StaticAbilities is the component holding a permanent's static abilities.
type StaticAbilities []StaticAbility

var StaticAbilitiesComponent = donburi.NewComponentType[StaticAbilities]()

// SetStaticAbilities attaches static abilities to e, replacing any it had.
func SetStaticAbilities(store *ecs.Store, e ecs.Entity, abilities ...StaticAbility) bool {
	entry, ok := store.Entry(e)
	if !ok {
		return false
	}
	if !entry.HasComponent(StaticAbilitiesComponent) {
		entry.AddComponent(StaticAbilitiesComponent)
	}
	StaticAbilitiesComponent.SetValue(entry, append(StaticAbilities(nil), abilities...))
	return true
}

// StaticAbilitiesOf returns the static abilities printed on e.
func StaticAbilitiesOf(store *ecs.Store, e ecs.Entity) StaticAbilities {
	entry, ok := store.Entry(e)
	if !ok || !entry.HasComponent(StaticAbilitiesComponent) {
		return nil
	}
	return append(StaticAbilities(nil), StaticAbilitiesComponent.GetValue(entry)...)
}

// Placement is one static ability of one permanent currently on the
// battlefield. Placements are derived from the battlefield on every call
// and never stored.
type Placement struct {
	ID         string
	Ability    StaticAbility
	Source     ecs.Entity
	SourceName string
	AttachedTo ecs.Entity
	// Timestamp is the time the source entered the battlefield.
	Timestamp int64
	// Order breaks ties between abilities of the same source.
	Order int
}

// Placements lists the static abilities of every permanent on the battlefield,
// in source creation order.
func Placements(store *ecs.Store) []Placement {
	var out []Placement
	for _, e := range store.Battlefield() {
		abilities := StaticAbilitiesOf(store, e)
		if len(abilities) == 0 {
			continue
		}
		obj, _ := store.Object(e)
		for i, ability := range abilities {
			seed := fmt.Sprintf("%d|%d|%d|%d", obj.Seq, obj.ZoneSince, i, obj.Entity)
			out = append(out, Placement{
				ID:         uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String(),
				Ability:    ability,
				Source:     e,
				SourceName: obj.Name,
				AttachedTo: obj.AttachedTo,
				Timestamp:  obj.ZoneSince,
				Order:      i,
			})
		}
	}
	return out
}

// AsEffect converts a placement into a floating effect with a permanent
// duration, for consumers that only deal in floating effects.
func (p Placement) AsEffect(controller ecs.PlayerID) FloatingEffect {
	affected := Affected{}
	switch p.Ability.Scope {
	case ScopeSelf:
		affected = AffectEntities(p.Source)
	case ScopeAttached:
		if p.AttachedTo != ecs.NoEntity {
			affected = AffectEntities(p.AttachedTo)
		}
	case ScopeFilter:
		affected = AffectContinuously(p.Ability.Filter)
	}
	return FloatingEffect{
		ID:           p.ID,
		Modification: p.Ability.Modification,
		Affected:     affected,
		Duration:     WhileOnBattlefield(),
		Source:       p.Source,
		SourceName:   p.SourceName,
		Controller:   controller,
		Timestamp:    p.Timestamp,
	}
}
