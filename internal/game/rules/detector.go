package rules

import (
	"fmt"
	"slices"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/layers"
)

// Activation is one triggered ability waiting to be put on the stack.
type Activation struct {
	ID         string
	Source     ecs.Entity
	SourceName string
	Controller ecs.PlayerID
	Trigger    string
	// Ability is the position of the declaration on its source.
	Ability  int
	Category Category
	Event    Event
}

// Detector finds the triggered abilities that fire for a batch of events.
type Detector struct {
	store  *ecs.Store
	viewer layers.Viewer
	logger *zap.Logger
}

// NewDetector creates a detector. viewer supplies the current
// characteristics of sources and event objects.
func NewDetector(store *ecs.Store, viewer layers.Viewer, logger *zap.Logger) *Detector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Detector{store: store, viewer: viewer, logger: logger}
}

// Detect returns the activations for events using index to find candidate
// sources. lastKnown holds the views from before the events, used for
// objects that left the battlefield; nil falls back to their current state.
func (d *Detector) Detect(events []Event, index *Index, lastKnown layers.Viewer) []Activation {
	return d.detect(events, lastKnown, func(ev Event, _ map[ecs.Entity]Event) []ecs.Entity {
		return index.EntitiesForEvent(ev)
	})
}

// DetectWithoutIndex scans every permanent on the battlefield, plus the
// objects that left it in events. The result is identical to Detect with an
// index kept in step with the battlefield.
func (d *Detector) DetectWithoutIndex(events []Event, lastKnown layers.Viewer) []Activation {
	return d.detect(events, lastKnown, func(_ Event, left map[ecs.Entity]Event) []ecs.Entity {
		candidates := d.store.Battlefield()
		for e := range left {
			if !slices.Contains(candidates, e) {
				candidates = append(candidates, e)
			}
		}
		return candidates
	})
}

type candidateFunc func(ev Event, left map[ecs.Entity]Event) []ecs.Entity

type source struct {
	view layers.View
	seq  uint64
	left bool
}

func (d *Detector) detect(events []Event, lastKnown layers.Viewer, candidates candidateFunc) []Activation {
	left := make(map[ecs.Entity]Event)
	for _, ev := range events {
		if ev.LeftBattlefield() {
			left[ev.Target] = ev
		}
	}

	var out []Activation
	for _, ev := range events {
		cats := CategoriesOf(ev)
		if len(cats) == 0 {
			continue
		}
		var sources []source
		for _, e := range candidates(ev, left) {
			if src, ok := d.source(e, left, lastKnown); ok {
				sources = append(sources, src)
			}
		}
		sort.Slice(sources, func(i, j int) bool { return sources[i].seq < sources[j].seq })

		for _, src := range sources {
			for i, decl := range TriggersOf(d.store, src.view.Entity) {
				if !slices.Contains(cats, decl.Category) || !d.matches(decl, src, ev, left, lastKnown) {
					continue
				}
				out = append(out, Activation{
					ID:         activationID(ev, src, i),
					Source:     src.view.Entity,
					SourceName: src.view.Name,
					Controller: src.view.Controller,
					Trigger:    decl.Name,
					Ability:    i,
					Category:   decl.Category,
					Event:      ev,
				})
			}
		}
	}

	d.order(out)
	if len(out) > 0 {
		d.logger.Debug("triggers detected", zap.Int("events", len(events)), zap.Int("activations", len(out)))
	}
	return out
}

// order puts activations in APNAP order: the active player's first, then each
// other player's in turn order. Within a player the detection order is kept.
func (d *Detector) order(activations []Activation) {
	rank := make(map[ecs.PlayerID]int)
	for i, p := range d.store.TurnOrderFrom(d.store.Turn().Active) {
		rank[p] = i
	}
	position := func(p ecs.PlayerID) int {
		if r, ok := rank[p]; ok {
			return r
		}
		return len(rank)
	}
	sort.SliceStable(activations, func(i, j int) bool {
		return position(activations[i].Controller) < position(activations[j].Controller)
	})
}

// source resolves a candidate. Permanents use their current view; objects
// that left the battlefield in this batch use their last known view. Anything
// else cannot trigger.
func (d *Detector) source(e ecs.Entity, left map[ecs.Entity]Event, lastKnown layers.Viewer) (source, bool) {
	obj, ok := d.store.Object(e)
	if !ok {
		return source{}, false
	}
	if obj.Zone == ecs.ZoneBattlefield {
		v, ok := d.viewer.Project(e)
		return source{view: v, seq: obj.Seq}, ok
	}
	ev, ok := left[e]
	if !ok {
		return source{}, false
	}
	v, ok := d.lastKnownView(e, ev, lastKnown)
	return source{view: v, seq: obj.Seq, left: true}, ok
}

func (d *Detector) lastKnownView(e ecs.Entity, leave Event, lastKnown layers.Viewer) (layers.View, bool) {
	if lastKnown != nil {
		if v, ok := lastKnown.Project(e); ok {
			return v, true
		}
	}
	v, ok := d.viewer.Project(e)
	if ok && leave.Controller != "" {
		v.Controller = leave.Controller
	}
	return v, ok
}

// object returns the view of the object an event is about.
func (d *Detector) object(e ecs.Entity, left map[ecs.Entity]Event, lastKnown layers.Viewer) (layers.View, bool) {
	if leave, ok := left[e]; ok {
		if zone, _ := d.store.Zone(e); zone != ecs.ZoneBattlefield {
			return d.lastKnownView(e, leave, lastKnown)
		}
	}
	return d.viewer.Project(e)
}

func (d *Detector) matches(decl TriggerDeclaration, src source, ev Event, left map[ecs.Entity]Event, lastKnown layers.Viewer) bool {
	if src.left && !decl.Category.LooksBack() {
		return false
	}
	you := src.view.Controller
	about := subject(ev, decl.Category)

	switch decl.Scope {
	case TriggerYou:
		if ev.Player != you {
			return false
		}
	case TriggerOpponent:
		if ev.Player == "" || ev.Player == you {
			return false
		}
	case TriggerEachPlayer:
		if ev.Player == "" {
			return false
		}
	case TriggerSelf:
		if about != src.view.Entity {
			return false
		}
	case TriggerOther, TriggerAny:
		if about == ecs.NoEntity || (decl.Scope == TriggerOther && about == src.view.Entity) {
			return false
		}
		v, ok := d.object(about, left, lastKnown)
		if !ok || !decl.Filter.Matches(v.Traits(), src.view.Entity, you) {
			return false
		}
	default:
		panic(fmt.Sprintf("rules: unknown trigger scope %d", decl.Scope))
	}

	if decl.Category == CategoryDies {
		v, ok := d.object(about, left, lastKnown)
		if !ok || !v.IsCreature() {
			return false
		}
	}
	return decl.Condition == nil || decl.Condition(ev)
}

func activationID(ev Event, src source, ability int) string {
	seed := fmt.Sprintf("%s|%d|%d|%d", ev.ID, src.seq, src.view.ZoneSince, ability)
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(seed)).String()
}
