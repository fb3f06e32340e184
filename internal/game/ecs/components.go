package ecs

import (
	"github.com/yohamta/donburi"

	"github.com/magefree/mage-rules-go/internal/game/counters"
)

// Entity is a generational handle into the store.
type Entity = donburi.Entity

// NoEntity is the null handle.
var NoEntity = donburi.Null

// Identity is set once at creation and survives zone changes.
type Identity struct {
	Seq   uint64
	Name  string
	Owner PlayerID
}

// Characteristics are the printed (copiable) values of an object.
type Characteristics struct {
	Types     []CardType
	Subtypes  []string
	Colors    ColorSet
	Power     int
	Toughness int
	HasPT     bool
	Keywords  KeywordSet
}

// Clone returns a copy that shares no slices with c.
func (c Characteristics) Clone() Characteristics {
	c.Types = append([]CardType(nil), c.Types...)
	c.Subtypes = append([]string(nil), c.Subtypes...)
	return c
}

// Control is the base controller before layer 2 effects.
type Control struct {
	Player PlayerID
}

// Location is the zone an object is in and the timestamp it arrived.
type Location struct {
	Zone  ZoneKind
	Since int64
}

// MarkedDamage is damage marked on a creature this turn.
type MarkedDamage struct {
	Amount     int
	Deathtouch bool
}

// Attachment points an aura or equipment at the permanent it is attached to.
type Attachment struct {
	To Entity
}

var (
	IdentityComponent        = donburi.NewComponentType[Identity]()
	CharacteristicsComponent = donburi.NewComponentType[Characteristics]()
	ControlComponent         = donburi.NewComponentType[Control]()
	LocationComponent        = donburi.NewComponentType[Location]()
	CountersComponent        = donburi.NewComponentType[counters.Counters]()
	DamageComponent          = donburi.NewComponentType[MarkedDamage]()
	AttachmentComponent      = donburi.NewComponentType[Attachment]()

	// Tags
	TappedTag        = donburi.NewComponentType[struct{}]()
	SummoningSickTag = donburi.NewComponentType[struct{}]()
)

// Object is a read-only copy of an entity's components.
type Object struct {
	Entity          Entity
	Seq             uint64
	Name            string
	Owner           PlayerID
	Controller      PlayerID
	Zone            ZoneKind
	ZoneSince       int64
	Characteristics Characteristics
	Tapped          bool
	SummoningSick   bool
	Counters        counters.Counters
	Damage          MarkedDamage
	AttachedTo      Entity
}

// IsCreature reports whether the printed types include Creature.
func (o Object) IsCreature() bool {
	return HasType(o.Characteristics.Types, TypeCreature)
}

// ObjectSpec describes an object to create.
type ObjectSpec struct {
	Name            string
	Owner           PlayerID
	Controller      PlayerID // defaults to Owner
	Zone            ZoneKind
	Characteristics Characteristics
	Tapped          bool
	SummoningSick   bool
	Counters        counters.Counters
}
