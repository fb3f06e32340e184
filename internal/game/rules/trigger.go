package rules

import (
	"slices"
	"strings"

	"github.com/yohamta/donburi"
	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
)

// Category is the coarse classification of events used by the trigger index.
type Category string

const (
	CategoryEntersBattlefield Category = "enters_battlefield"
	CategoryLeavesBattlefield Category = "leaves_battlefield"
	CategoryDies              Category = "dies"
	CategoryAttacks           Category = "attacks"
	CategoryBlocks            Category = "blocks"
	CategoryBecomesBlocked    Category = "becomes_blocked"
	CategoryCombatDamage      Category = "deals_combat_damage"
	CategoryDamaged           Category = "is_dealt_damage"
	CategoryUpkeep            Category = "upkeep"
	CategoryBeginCombat       Category = "begin_combat"
	CategoryEndStep           Category = "end_step"
	CategorySpellCast         Category = "spell_cast"
	CategoryLifeGained        Category = "life_gained"
)

// LooksBack reports whether abilities of this category trigger from objects
// that left the battlefield in the same event.
func (c Category) LooksBack() bool {
	return c == CategoryLeavesBattlefield || c == CategoryDies
}

// AllCategories lists every category in a fixed order.
var AllCategories = []Category{
	CategoryEntersBattlefield,
	CategoryLeavesBattlefield,
	CategoryDies,
	CategoryAttacks,
	CategoryBlocks,
	CategoryBecomesBlocked,
	CategoryCombatDamage,
	CategoryDamaged,
	CategoryUpkeep,
	CategoryBeginCombat,
	CategoryEndStep,
	CategorySpellCast,
	CategoryLifeGained,
}

// ParseCategory looks a category up by name.
func ParseCategory(name string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(name)))
	return c, slices.Contains(AllCategories, c)
}

// CategoriesOf lists the categories an event belongs to. Most events have one;
// a creature going to the graveyard both leaves the battlefield and dies.
func CategoriesOf(ev Event) []Category {
	switch ev.Type {
	case EventZoneChange:
		var out []Category
		if ev.To == ecs.ZoneBattlefield && ev.From != ecs.ZoneBattlefield {
			out = append(out, CategoryEntersBattlefield)
		}
		if ev.LeftBattlefield() {
			out = append(out, CategoryLeavesBattlefield)
			if ev.To == ecs.ZoneGraveyard {
				out = append(out, CategoryDies)
			}
		}
		return out
	case EventEntersTheBattlefield:
		return []Category{CategoryEntersBattlefield}
	case EventAttackerDeclared:
		return []Category{CategoryAttacks}
	case EventBlockerDeclared:
		return []Category{CategoryBlocks}
	case EventCreatureBlocked:
		return []Category{CategoryBecomesBlocked}
	case EventDamagedPlayer:
		if ev.Flag {
			return []Category{CategoryCombatDamage}
		}
	case EventDamagedPermanent:
		if ev.Flag {
			return []Category{CategoryDamaged, CategoryCombatDamage}
		}
		return []Category{CategoryDamaged}
	case EventUpkeepStepPre:
		return []Category{CategoryUpkeep}
	case EventBeginCombatStepPre:
		return []Category{CategoryBeginCombat}
	case EventEndTurnStepPre:
		return []Category{CategoryEndStep}
	case EventSpellCast:
		return []Category{CategorySpellCast}
	case EventGainedLife:
		return []Category{CategoryLifeGained}
	}
	return nil
}

// subject is the object an event of category c is about.
func subject(ev Event, c Category) ecs.Entity {
	switch c {
	case CategoryAttacks, CategoryBlocks, CategoryCombatDamage, CategorySpellCast:
		return ev.Source
	case CategoryEntersBattlefield, CategoryLeavesBattlefield, CategoryDies, CategoryBecomesBlocked, CategoryDamaged:
		return ev.Target
	}
	return ecs.NoEntity
}

// TriggerScope narrows which events of a category fire a trigger.
type TriggerScope int

const (
	// TriggerSelf fires for events about the source itself ("when this creature dies").
	TriggerSelf TriggerScope = iota
	// TriggerOther fires for other objects matching the filter
	// ("whenever another creature you control enters").
	TriggerOther
	// TriggerAny fires for any object matching the filter, the source included.
	TriggerAny
	// TriggerYou fires for events about the source's controller ("at the beginning of your upkeep").
	TriggerYou
	// TriggerOpponent fires for events about an opponent of the source's controller.
	TriggerOpponent
	// TriggerEachPlayer fires for events about any player ("at the beginning of each upkeep").
	TriggerEachPlayer
)

var scopeNames = map[string]TriggerScope{
	"self":        TriggerSelf,
	"other":       TriggerOther,
	"any":         TriggerAny,
	"you":         TriggerYou,
	"opponent":    TriggerOpponent,
	"each_player": TriggerEachPlayer,
}

// ParseScope looks a scope up by its lower-case name.
func ParseScope(name string) (TriggerScope, bool) {
	scope, ok := scopeNames[strings.ToLower(strings.TrimSpace(name))]
	return scope, ok
}

// TriggerDeclaration is a triggered ability printed on a permanent.
type TriggerDeclaration struct {
	Name     string
	Category Category
	Scope    TriggerScope
	// Filter is evaluated against the event's object for TriggerOther and
	// TriggerAny, relative to the source and its controller.
	Filter *effects.Filter
	// Condition is an optional intervening check on the event itself.
	Condition func(Event) bool
}

// Triggers is the component holding a permanent's triggered abilities.
type Triggers []TriggerDeclaration

var TriggersComponent = donburi.NewComponentType[Triggers]()

// SetTriggers attaches triggered abilities to e, replacing any it had.
func SetTriggers(store *ecs.Store, e ecs.Entity, decls ...TriggerDeclaration) bool {
	entry, ok := store.Entry(e)
	if !ok {
		return false
	}
	if !entry.HasComponent(TriggersComponent) {
		entry.AddComponent(TriggersComponent)
	}
	TriggersComponent.SetValue(entry, append(Triggers(nil), decls...))
	return true
}

// TriggersOf returns the triggered abilities printed on e.
func TriggersOf(store *ecs.Store, e ecs.Entity) Triggers {
	entry, ok := store.Entry(e)
	if !ok || !entry.HasComponent(TriggersComponent) {
		return nil
	}
	return append(Triggers(nil), TriggersComponent.GetValue(entry)...)
}

// Index maps event categories to the permanents with abilities that care
// about them. The owner keeps it in step with the battlefield: register on
// entering, unregister on leaving once look-back detection is done. It is
// not safe for concurrent use.
type Index struct {
	logger     *zap.Logger
	byCategory map[Category]map[ecs.Entity]struct{}
	entities   map[ecs.Entity][]Category
}

// NewIndex creates an empty index.
func NewIndex(logger *zap.Logger) *Index {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Index{
		logger:     logger,
		byCategory: make(map[Category]map[ecs.Entity]struct{}),
		entities:   make(map[ecs.Entity][]Category),
	}
}

// ForState builds an index from every permanent on the battlefield.
func ForState(store *ecs.Store, logger *zap.Logger) *Index {
	ix := NewIndex(logger)
	for _, e := range store.Battlefield() {
		ix.RegisterEntity(e, TriggersOf(store, e))
	}
	ix.logger.Debug("trigger index rebuilt", zap.Int("entities", ix.EntityCount()))
	return ix
}

// RegisterEntity records the categories e's abilities listen to, replacing
// any previous registration. An entity without triggered abilities is not
// registered.
func (ix *Index) RegisterEntity(e ecs.Entity, decls []TriggerDeclaration) {
	ix.UnregisterEntity(e)
	var cats []Category
	for _, d := range decls {
		if !slices.Contains(cats, d.Category) {
			cats = append(cats, d.Category)
		}
	}
	if len(cats) == 0 {
		return
	}
	for _, c := range cats {
		set, ok := ix.byCategory[c]
		if !ok {
			set = make(map[ecs.Entity]struct{})
			ix.byCategory[c] = set
		}
		set[e] = struct{}{}
	}
	ix.entities[e] = cats
	ix.logger.Debug("trigger source registered", zap.Uint64("entity", uint64(e)), zap.Int("categories", len(cats)))
}

// UnregisterEntity drops e. It reports whether e was registered.
func (ix *Index) UnregisterEntity(e ecs.Entity) bool {
	cats, ok := ix.entities[e]
	if !ok {
		return false
	}
	for _, c := range cats {
		set := ix.byCategory[c]
		delete(set, e)
		if len(set) == 0 {
			delete(ix.byCategory, c)
		}
	}
	delete(ix.entities, e)
	ix.logger.Debug("trigger source unregistered", zap.Uint64("entity", uint64(e)))
	return true
}

// EntitiesForCategory returns the entities listening to c.
func (ix *Index) EntitiesForCategory(c Category) []ecs.Entity {
	set := ix.byCategory[c]
	out := make([]ecs.Entity, 0, len(set))
	for e := range set {
		out = append(out, e)
	}
	slices.Sort(out)
	return out
}

// EntitiesForEvent returns the entities listening to any category of ev.
func (ix *Index) EntitiesForEvent(ev Event) []ecs.Entity {
	var out []ecs.Entity
	for _, c := range CategoriesOf(ev) {
		for e := range ix.byCategory[c] {
			if !slices.Contains(out, e) {
				out = append(out, e)
			}
		}
	}
	slices.Sort(out)
	return out
}

// EntityCount returns the number of registered entities.
func (ix *Index) EntityCount() int {
	return len(ix.entities)
}

// IsRegistered reports whether e is registered.
func (ix *Index) IsRegistered(e ecs.Entity) bool {
	_, ok := ix.entities[e]
	return ok
}

// Drift compares the index with the battlefield. Missing are permanents with
// triggered abilities that are not registered; stale are registrations of
// objects no longer on the battlefield.
func (ix *Index) Drift(store *ecs.Store) (missing, stale []ecs.Entity) {
	for _, e := range store.Battlefield() {
		if len(TriggersOf(store, e)) > 0 && !ix.IsRegistered(e) {
			missing = append(missing, e)
		}
	}
	for e := range ix.entities {
		if zone, ok := store.Zone(e); !ok || zone != ecs.ZoneBattlefield {
			stale = append(stale, e)
		}
	}
	slices.Sort(stale)
	return missing, stale
}
