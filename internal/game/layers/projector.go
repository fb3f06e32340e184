package layers

import (
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
)

// ModifierProvider contributes effects that are not modelled as floating
// effects or static abilities, e.g. keyword grants derived by another
// subsystem. It is consulted on every projection.
type ModifierProvider interface {
	Modifiers(store *ecs.Store) []effects.FloatingEffect
}

// ModifierFunc adapts a function to ModifierProvider.
type ModifierFunc func(store *ecs.Store) []effects.FloatingEffect

// Modifiers implements ModifierProvider.
func (f ModifierFunc) Modifiers(store *ecs.Store) []effects.FloatingEffect {
	return f(store)
}

// Option configures a Projector.
type Option func(*Projector)

// WithModifierProvider adds an external modifier provider.
func WithModifierProvider(provider ModifierProvider) Option {
	return func(p *Projector) {
		if provider != nil {
			p.providers = append(p.providers, provider)
		}
	}
}

// Projector computes views by applying static abilities and floating
// effects layer by layer.
//
// Within a layer (and within each sublayer of layer 7) effects apply in
// timestamp order. Dependencies between effects are not detected: an effect
// whose applicability is changed by another effect of the same layer still
// applies in timestamp order.
//
// The projector keeps no state between calls. Every Project call starts a
// fresh pass over the store and catalog, so the result is a pure function
// of their contents.
type Projector struct {
	store     *ecs.Store
	catalog   *effects.Catalog
	providers []ModifierProvider
	logger    *zap.Logger
}

// NewProjector creates a projector reading store and catalog.
func NewProjector(store *ecs.Store, catalog *effects.Catalog, logger *zap.Logger, opts ...Option) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Projector{store: store, catalog: catalog, logger: logger}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Project returns the view of e. Unknown entities have no view.
func (p *Projector) Project(e ecs.Entity) (View, bool) {
	return p.newPass().project(e, effects.LayerPowerToughness)
}

// ProjectAll returns the views of every permanent in creation order.
func (p *Projector) ProjectAll() []View {
	return p.Snapshot().All()
}

// Snapshot projects every permanent in a single pass.
func (p *Projector) Snapshot() *Snapshot {
	ps := p.newPass()
	battlefield := p.store.Battlefield()
	snap := &Snapshot{views: make(map[ecs.Entity]View, len(battlefield))}
	for _, e := range battlefield {
		if v, ok := ps.project(e, effects.LayerPowerToughness); ok {
			snap.views[e] = v
			snap.order = append(snap.order, e)
		}
	}
	p.logger.Debug("battlefield projected",
		zap.Int("permanents", snap.Len()),
		zap.Int("candidate_effects", ps.candidateCount()),
	)
	return snap
}

// candidate is one effect that may apply during a pass.
type candidate struct {
	effect     effects.FloatingEffect
	static     bool
	scope      effects.Scope
	filter     *effects.Filter
	attachedTo ecs.Entity
}

type viewKey struct {
	entity ecs.Entity
	upTo   effects.Layer
}

// pass holds the caches of a single projection. It is discarded afterwards.
type pass struct {
	p           *Projector
	byLayer     map[effects.Layer][]candidate
	views       map[viewKey]View
	controllers map[ecs.Entity]ecs.PlayerID
	resolving   map[ecs.Entity]bool
}

func (p *Projector) newPass() *pass {
	var all []candidate
	for _, placement := range effects.Placements(p.store) {
		if placement.Ability.Modification.Layer() == effects.LayerNone {
			continue
		}
		all = append(all, candidate{
			effect:     placement.AsEffect(""),
			static:     true,
			scope:      placement.Ability.Scope,
			filter:     placement.Ability.Filter,
			attachedTo: placement.AttachedTo,
		})
	}
	if p.catalog != nil {
		for _, effect := range p.catalog.Layered() {
			all = append(all, candidate{effect: effect})
		}
	}
	for _, provider := range p.providers {
		for _, effect := range provider.Modifiers(p.store) {
			if effect.Modification == nil || effect.Layer() == effects.LayerNone {
				continue
			}
			// Provider output is re-derived every pass, so filters are always live.
			if effect.Affected.NeedsLock() {
				effect.Affected.Continuous = true
			}
			all = append(all, candidate{effect: effect})
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].effect.Timestamp < all[j].effect.Timestamp
	})

	ps := &pass{
		p:           p,
		byLayer:     make(map[effects.Layer][]candidate),
		views:       make(map[viewKey]View),
		controllers: make(map[ecs.Entity]ecs.PlayerID),
		resolving:   make(map[ecs.Entity]bool),
	}
	for _, c := range all {
		layer := c.effect.Layer()
		ps.byLayer[layer] = append(ps.byLayer[layer], c)
	}
	return ps
}

func (ps *pass) candidateCount() int {
	n := 0
	for _, list := range ps.byLayer {
		n += len(list)
	}
	return n
}

// project computes the view of e through layer upTo.
func (ps *pass) project(e ecs.Entity, upTo effects.Layer) (View, bool) {
	key := viewKey{entity: e, upTo: upTo}
	if v, ok := ps.views[key]; ok {
		return v.clone(), true
	}
	obj, ok := ps.p.store.Object(e)
	if !ok {
		return View{}, false
	}
	v := baseView(obj)

	if obj.Zone != ecs.ZoneBattlefield {
		// Only characteristic-defining abilities work outside the battlefield.
		if upTo >= effects.LayerPowerToughness {
			ps.applyOwnDefinitions(&v)
		}
		finishView(&v)
		ps.views[key] = v
		return v.clone(), true
	}

	for _, layer := range effects.LayerOrder {
		if layer > upTo {
			break
		}
		if layer == effects.LayerPowerToughness {
			ps.applyPowerToughness(&v)
			continue
		}
		for _, c := range ps.byLayer[layer] {
			if ps.applies(c, v) {
				ps.apply(c, &v)
			}
		}
	}
	finishView(&v)
	ps.views[key] = v
	return v.clone(), true
}

func baseView(obj ecs.Object) View {
	ch := obj.Characteristics
	return View{
		Entity:           obj.Entity,
		Name:             obj.Name,
		Owner:            obj.Owner,
		Controller:       obj.Controller,
		Zone:             obj.Zone,
		ZoneSince:        obj.ZoneSince,
		AttachedTo:       obj.AttachedTo,
		Types:            ch.Types,
		Subtypes:         ch.Subtypes,
		Colors:           ch.Colors,
		Keywords:         ch.Keywords,
		Power:            ch.Power,
		Toughness:        ch.Toughness,
		HasPT:            ch.HasPT,
		Counters:         obj.Counters,
		Damage:           obj.Damage.Amount,
		DeathtouchDamage: obj.Damage.Deathtouch,
		Tapped:           obj.Tapped,
		SummoningSick:    obj.SummoningSick,
	}
}

func finishView(v *View) {
	v.Loyalty = v.Counters.Count(counters.Loyalty)
	v.Defense = v.Counters.Count(counters.Defense)
}

func (ps *pass) applyPowerToughness(v *View) {
	// A creature without printed power and toughness is 0/0.
	if v.IsCreature() {
		v.HasPT = true
	}
	for _, sub := range effects.SubLayerOrder {
		if sub == effects.SubLayerCounters {
			if v.HasPT {
				power, toughness := v.Counters.BoostTotals()
				v.Power += power
				v.Toughness += toughness
			}
			continue
		}
		for _, c := range ps.byLayer[effects.LayerPowerToughness] {
			if c.effect.Modification.SubLayer() == sub && ps.applies(c, *v) {
				ps.apply(c, v)
			}
		}
	}
}

// applyOwnDefinitions applies the object's own characteristic-defining
// abilities when it is not on the battlefield.
func (ps *pass) applyOwnDefinitions(v *View) {
	for _, ability := range effects.StaticAbilitiesOf(ps.p.store, v.Entity) {
		def, ok := ability.Modification.(effects.DefinePT)
		if !ok || ability.Scope != effects.ScopeSelf {
			continue
		}
		ps.applyDefinition(def, v, v.Entity, v.Owner)
	}
}

func (ps *pass) applies(c candidate, v View) bool {
	if c.static {
		switch c.scope {
		case effects.ScopeSelf:
			return v.Entity == c.effect.Source
		case effects.ScopeAttached:
			return c.attachedTo != ecs.NoEntity && v.Entity == c.attachedTo
		case effects.ScopeFilter:
			return c.filter.Matches(v.Traits(), c.effect.Source, ps.controllerOf(c))
		default:
			panic(fmt.Sprintf("layers: unknown static scope %d", c.scope))
		}
	}
	affected := c.effect.Affected
	if affected.Continuous {
		return affected.Filter.Matches(v.Traits(), c.effect.Source, c.effect.Controller)
	}
	// An object that changed zones after the effect was created is a new
	// object the effect never knew about.
	return affected.Contains(v.Entity) && v.ZoneSince <= c.effect.Timestamp
}

// controllerOf is the controller of the effect: the creator of a floating
// effect, or the current controller of a static ability's source.
func (ps *pass) controllerOf(c candidate) ecs.PlayerID {
	if !c.static {
		return c.effect.Controller
	}
	return ps.controllerOfEntity(c.effect.Source)
}

func (ps *pass) controllerOfEntity(e ecs.Entity) ecs.PlayerID {
	if controller, ok := ps.controllers[e]; ok {
		return controller
	}
	obj, ok := ps.p.store.Object(e)
	if !ok {
		return ""
	}
	if ps.resolving[e] {
		// Control of e depends on itself; fall back to the base controller.
		return obj.Controller
	}
	ps.resolving[e] = true
	v, _ := ps.project(e, effects.LayerControl)
	delete(ps.resolving, e)
	ps.controllers[e] = v.Controller
	return v.Controller
}

func (ps *pass) apply(c candidate, v *View) {
	switch m := c.effect.Modification.(type) {
	case effects.CopyCharacteristics:
		from, ok := ps.p.store.Object(m.From)
		if !ok {
			return
		}
		ch := from.Characteristics
		v.Name = from.Name
		v.Types = ch.Types
		v.Subtypes = ch.Subtypes
		v.Colors = ch.Colors
		v.Keywords = ch.Keywords
		v.Power = ch.Power
		v.Toughness = ch.Toughness
		v.HasPT = ch.HasPT
	case effects.ChangeController:
		to := m.To
		if to == "" {
			to = ps.controllerOf(c)
		}
		if to != "" {
			v.Controller = to
		}
	case effects.ReplaceSubtypeText:
		subtypes := append([]string(nil), v.Subtypes...)
		for i, s := range subtypes {
			if strings.EqualFold(s, m.From) {
				subtypes[i] = m.To
			}
		}
		v.Subtypes = subtypes
	case effects.AddCardTypes:
		types := append([]ecs.CardType(nil), v.Types...)
		for _, t := range m.Types {
			if !ecs.HasType(types, t) {
				types = append(types, t)
			}
		}
		v.Types = types
		v.Subtypes = addSubtypes(v.Subtypes, m.Subtypes)
	case effects.SetCardTypes:
		v.Types = append([]ecs.CardType(nil), m.Types...)
		v.Subtypes = append([]string(nil), m.Subtypes...)
	case effects.SetColors:
		v.Colors = m.Colors
	case effects.AddColors:
		v.Colors |= m.Colors
	case effects.GrantKeywords:
		v.Keywords = v.Keywords.Union(m.Keywords)
	case effects.RemoveKeywords:
		v.Keywords = v.Keywords.Minus(m.Keywords)
	case effects.RemoveAllAbilities:
		v.Keywords = 0
		v.Protections = nil
	case effects.CantAttack:
		v.CantAttack = true
	case effects.CantBlock:
		v.CantBlock = true
	case effects.CantBeBlocked:
		v.CantBeBlocked = true
	case effects.CantBeBlockedExceptBy:
		if v.BlockableOnlyBy == 0 {
			v.BlockableOnlyBy = m.Colors
		} else {
			v.BlockableOnlyBy &= m.Colors
			if v.BlockableOnlyBy == 0 {
				// Two incompatible restrictions leave no legal blocker.
				v.CantBeBlocked = true
			}
		}
	case effects.MustAttack:
		v.MustAttack = true
	case effects.MustBlock:
		if m.Attacker == ecs.NoEntity {
			v.MustBlock = true
		} else if !containsEntity(v.MustBlockAttackers, m.Attacker) {
			v.MustBlockAttackers = append(append([]ecs.Entity(nil), v.MustBlockAttackers...), m.Attacker)
		}
	case effects.MustBeBlockedByAll:
		v.MustBeBlockedByAll = true
	case effects.GrantProtection:
		v.Protections = append(append([]effects.Protection(nil), v.Protections...), m.Protection)
	case effects.AttackTax:
		v.AttackCost = v.AttackCost.Add(m.Cost)
	case effects.BlockTax:
		v.BlockCost = v.BlockCost.Add(m.Cost)
	case effects.DefinePT:
		ps.applyDefinition(m, v, c.effect.Source, ps.controllerOf(c))
	case effects.SetPT:
		if m.Power != nil {
			v.Power = *m.Power
		}
		if m.Toughness != nil {
			v.Toughness = *m.Toughness
		}
		v.HasPT = true
	case effects.ModifyPT:
		if !v.HasPT {
			return
		}
		v.Power += m.Power
		v.Toughness += m.Toughness
	case effects.SwitchPT:
		if !v.HasPT {
			return
		}
		v.Power, v.Toughness = v.Toughness, v.Power
	default:
		panic(fmt.Sprintf("layers: unhandled modification %T", m))
	}
	v.Applied = append(v.Applied, c.effect.ID)
}

func (ps *pass) applyDefinition(def effects.DefinePT, v *View, source ecs.Entity, you ecs.PlayerID) {
	if def.Power != nil {
		v.Power = effects.Evaluate(def.Power, ps, source, you)
	}
	if def.Toughness != nil {
		v.Toughness = effects.Evaluate(def.Toughness, ps, source, you)
	}
	v.HasPT = true
}

// CountMatching implements effects.FormulaContext. Objects are compared
// through layer 6 only, so no formula ever sees power or toughness.
func (ps *pass) CountMatching(f *effects.Filter, zone ecs.ZoneKind, source ecs.Entity, you ecs.PlayerID) int {
	count := 0
	for _, e := range ps.p.store.InZone(zone) {
		v, ok := ps.project(e, effects.LayerAbility)
		if ok && f.Matches(v.Traits(), source, you) {
			count++
		}
	}
	return count
}

// CardTypesInGraveyards implements effects.FormulaContext.
func (ps *pass) CardTypesInGraveyards() int {
	seen := make(map[ecs.CardType]bool)
	for _, e := range ps.p.store.InZone(ecs.ZoneGraveyard) {
		v, ok := ps.project(e, effects.LayerAbility)
		if !ok {
			continue
		}
		for _, t := range ecs.AllCardTypes {
			if v.HasType(t) {
				seen[t] = true
			}
		}
	}
	return len(seen)
}

// CardsInHand implements effects.FormulaContext.
func (ps *pass) CardsInHand(player ecs.PlayerID) int {
	count := 0
	for _, e := range ps.p.store.InZone(ecs.ZoneHand) {
		if obj, ok := ps.p.store.Object(e); ok && obj.Owner == player {
			count++
		}
	}
	return count
}

func addSubtypes(have, add []string) []string {
	out := append([]string(nil), have...)
	for _, s := range add {
		found := false
		for _, h := range out {
			if strings.EqualFold(h, s) {
				found = true
				break
			}
		}
		if !found {
			out = append(out, s)
		}
	}
	return out
}

func containsEntity(list []ecs.Entity, e ecs.Entity) bool {
	for _, candidate := range list {
		if candidate == e {
			return true
		}
	}
	return false
}
