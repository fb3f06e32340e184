package effects

import (
	"strings"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// Traits are the characteristics a filter looks at. The projector fills
// them from a partially computed view, so filters see the result of every
// layer applied so far.
type Traits struct {
	Entity     ecs.Entity
	Controller ecs.PlayerID
	Types      []ecs.CardType
	Subtypes   []string
	Colors     ecs.ColorSet
	Keywords   ecs.KeywordSet
	Tapped     bool
}

// HasSubtype reports whether the traits include subtype, ignoring case.
func (t Traits) HasSubtype(subtype string) bool {
	for _, s := range t.Subtypes {
		if strings.EqualFold(s, subtype) {
			return true
		}
	}
	return false
}

// Relation restricts a filter by who controls the object.
type Relation int

const (
	AnyController Relation = iota
	YouControl
	OpponentControls
)

// TapState restricts a filter by tapped status.
type TapState int

const (
	AnyTapState TapState = iota
	OnlyTapped
	OnlyUntapped
)

// Filter selects objects, e.g. "other creatures you control" or
// "nonblack creatures". The zero Filter matches everything.
type Filter struct {
	Controller Relation
	// Other excludes the source of the effect.
	Other bool
	// Types matches objects with at least one of these card types.
	Types []ecs.CardType
	// Subtypes matches objects with at least one of these subtypes.
	Subtypes []string
	// Colors matches objects sharing at least one of these colors.
	Colors ecs.ColorSet
	// NotColors rejects objects sharing any of these colors.
	NotColors ecs.ColorSet
	// Keywords requires every keyword in the set.
	Keywords ecs.KeywordSet
	Tapped   TapState
}

// Creatures is the filter for any creature.
func Creatures() *Filter {
	return &Filter{Types: []ecs.CardType{ecs.TypeCreature}}
}

// CreaturesYouControl is the filter for creatures controlled by the effect's controller.
func CreaturesYouControl() *Filter {
	return &Filter{Controller: YouControl, Types: []ecs.CardType{ecs.TypeCreature}}
}

// Matches reports whether t passes the filter when evaluated for an effect
// with the given source and controller. A nil filter matches everything.
func (f *Filter) Matches(t Traits, source ecs.Entity, you ecs.PlayerID) bool {
	if f == nil {
		return true
	}
	switch f.Controller {
	case YouControl:
		if t.Controller != you {
			return false
		}
	case OpponentControls:
		if t.Controller == you || t.Controller == "" {
			return false
		}
	}
	if f.Other && t.Entity == source {
		return false
	}
	if len(f.Types) > 0 {
		found := false
		for _, typ := range f.Types {
			if ecs.HasType(t.Types, typ) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if len(f.Subtypes) > 0 {
		found := false
		for _, sub := range f.Subtypes {
			if t.HasSubtype(sub) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Colors != 0 && !t.Colors.Shares(f.Colors) {
		return false
	}
	if f.NotColors != 0 && t.Colors.Shares(f.NotColors) {
		return false
	}
	if f.Keywords != 0 && t.Keywords&f.Keywords != f.Keywords {
		return false
	}
	switch f.Tapped {
	case OnlyTapped:
		return t.Tapped
	case OnlyUntapped:
		return !t.Tapped
	}
	return true
}

// Protection is "protection from <quality>".
type Protection struct {
	Everything bool
	Colors     ecs.ColorSet
	Types      []ecs.CardType
}

// From reports whether a source with the given traits has the protected quality.
func (p Protection) From(source Traits) bool {
	if p.Everything {
		return true
	}
	if p.Colors != 0 && source.Colors.Shares(p.Colors) {
		return true
	}
	for _, typ := range p.Types {
		if ecs.HasType(source.Types, typ) {
			return true
		}
	}
	return false
}

// ProtectedFrom reports whether any protection in list covers source.
func ProtectedFrom(list []Protection, source Traits) bool {
	for _, p := range list {
		if p.From(source) {
			return true
		}
	}
	return false
}
