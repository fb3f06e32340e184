package layers

import (
	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/mana"
)

// View is the computed, read-only state of one object after every
// applicable continuous effect. Views are values: changing one never
// affects the store or another view.
type View struct {
	Entity     ecs.Entity
	Name       string
	Owner      ecs.PlayerID
	Controller ecs.PlayerID
	Zone       ecs.ZoneKind
	ZoneSince  int64
	AttachedTo ecs.Entity

	Types     []ecs.CardType
	Subtypes  []string
	Colors    ecs.ColorSet
	Keywords  ecs.KeywordSet
	Power     int
	Toughness int
	HasPT     bool

	Counters         counters.Counters
	Loyalty          int
	Defense          int
	Damage           int
	DeathtouchDamage bool
	Tapped           bool
	SummoningSick    bool

	CantAttack         bool
	CantBlock          bool
	CantBeBlocked      bool
	BlockableOnlyBy    ecs.ColorSet
	MustAttack         bool
	MustBlock          bool
	MustBlockAttackers []ecs.Entity
	MustBeBlockedByAll bool
	Protections        []effects.Protection
	AttackCost         mana.Cost
	BlockCost          mana.Cost

	// Applied lists the ids of the effects that modified the object, in
	// application order.
	Applied []string
}

// Viewer is anything that can hand out views: the projector itself or a
// snapshot taken from it.
type Viewer interface {
	Project(e ecs.Entity) (View, bool)
}

// Traits returns the filterable characteristics of the view.
func (v View) Traits() effects.Traits {
	return effects.Traits{
		Entity:     v.Entity,
		Controller: v.Controller,
		Types:      v.Types,
		Subtypes:   v.Subtypes,
		Colors:     v.Colors,
		Keywords:   v.Keywords,
		Tapped:     v.Tapped,
	}
}

// Has reports whether the view has keyword k.
func (v View) Has(k ecs.Keyword) bool {
	return v.Keywords.Has(k)
}

// HasType reports whether the view has card type t.
func (v View) HasType(t ecs.CardType) bool {
	return ecs.HasType(v.Types, t)
}

// IsCreature reports whether the object is a creature.
func (v View) IsCreature() bool {
	return v.HasType(ecs.TypeCreature)
}

// OnBattlefield reports whether the object is a permanent.
func (v View) OnBattlefield() bool {
	return v.Zone == ecs.ZoneBattlefield
}

// RemainingToughness is toughness minus marked damage, never below zero.
func (v View) RemainingToughness() int {
	if rest := v.Toughness - v.Damage; rest > 0 {
		return rest
	}
	return 0
}

// ProtectedFrom reports whether the view has protection from source.
func (v View) ProtectedFrom(source View) bool {
	return effects.ProtectedFrom(v.Protections, source.Traits())
}

func (v View) clone() View {
	v.Types = append([]ecs.CardType(nil), v.Types...)
	v.Subtypes = append([]string(nil), v.Subtypes...)
	v.Counters = v.Counters.Copy()
	v.MustBlockAttackers = append([]ecs.Entity(nil), v.MustBlockAttackers...)
	v.Protections = append([]effects.Protection(nil), v.Protections...)
	v.Applied = append([]string(nil), v.Applied...)
	return v
}

// Snapshot holds the views of every permanent at one instant.
type Snapshot struct {
	views map[ecs.Entity]View
	order []ecs.Entity
}

// Project returns the snapshotted view of e. Objects that were not on the
// battlefield when the snapshot was taken have no view.
func (s *Snapshot) Project(e ecs.Entity) (View, bool) {
	v, ok := s.views[e]
	if !ok {
		return View{}, false
	}
	return v.clone(), true
}

// All returns every view in creation order.
func (s *Snapshot) All() []View {
	out := make([]View, 0, len(s.order))
	for _, e := range s.order {
		out = append(out, s.views[e].clone())
	}
	return out
}

// Len returns the number of views.
func (s *Snapshot) Len() int {
	return len(s.order)
}
