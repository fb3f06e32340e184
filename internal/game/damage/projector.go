package damage

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/layers"
)

// DefaultMaxIterations bounds redirections and reflections per batch.
const DefaultMaxIterations = 100

// Shields maps a shield effect id to the damage it has already absorbed.
// Redirection effects store 1 once used.
type Shields map[string]int

// Copy returns an independent copy.
func (s Shields) Copy() Shields {
	out := make(Shields, len(s))
	for id, used := range s {
		out[id] = used
	}
	return out
}

// Forget drops the entries of the given effect ids.
func (s Shields) Forget(ids ...string) {
	for _, id := range ids {
		delete(s, id)
	}
}

// Cause says what stopped or moved a piece of damage.
type Cause string

const (
	CauseEffect     Cause = "effect"
	CauseProtection Cause = "protection"
	CauseRedirect   Cause = "redirect"
	CauseReflect    Cause = "reflect"
)

// Record is one entry of the prevention log.
type Record struct {
	// Event is the event as it stood before the effect applied.
	Event     Event
	EffectID  string
	Cause     Cause
	Prevented int
	// Full is set when nothing of the event remained afterwards.
	Full         bool
	RedirectedTo *Target
}

// Result is the outcome of one batch.
type Result struct {
	Final     []Event
	Prevented []Record
	Shields   Shields
}

// TotalPrevented sums the prevented amounts of the log.
func (r Result) TotalPrevented() int {
	total := 0
	for _, rec := range r.Prevented {
		total += rec.Prevented
	}
	return total
}

// Option configures a Projector.
type Option func(*Projector)

// WithMaxIterations overrides DefaultMaxIterations.
func WithMaxIterations(n int) Option {
	return func(p *Projector) {
		if n > 0 {
			p.maxIterations = n
		}
	}
}

// Projector runs pending damage through prevention, redirection and
// protection. It reads views and never mutates the store or the catalog.
type Projector struct {
	viewer        layers.Viewer
	logger        *zap.Logger
	maxIterations int
}

// NewProjector creates a damage projector reading characteristics from viewer.
func NewProjector(viewer layers.Viewer, logger *zap.Logger, opts ...Option) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Projector{
		viewer:        viewer,
		logger:        logger,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

type pending struct {
	event   Event
	applied map[string]bool
}

// Project processes events in order against active, which must be in
// registration order. Effects that are not preventions are ignored. The
// shields argument is not modified; the updated consumption is returned.
//
// It panics when an event has no resolvable target form.
func (p *Projector) Project(events []Event, active []effects.FloatingEffect, shields Shields) Result {
	result := Result{Shields: shields.Copy()}

	queue := make([]pending, 0, len(events))
	for _, ev := range events {
		queue = append(queue, pending{event: ev, applied: map[string]bool{}})
	}

	iterations := 0
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if err := item.event.Target.Validate(); err != nil {
			panic(fmt.Sprintf("damage: %v", err))
		}

		spawned, final, ok := p.process(item, active, &result, &iterations)
		queue = append(queue, spawned...)
		if ok {
			result.Final = append(result.Final, final)
		}
	}

	p.logger.Debug("damage projected",
		zap.Int("events", len(events)),
		zap.Int("final", len(result.Final)),
		zap.Int("prevented", result.TotalPrevented()))
	return result
}

func (p *Projector) process(item pending, active []effects.FloatingEffect, result *Result, iterations *int) ([]pending, Event, bool) {
	ev := item.event
	var spawned []pending

restart:
	for ev.Amount > 0 {
		if !p.exists(ev.Target) {
			p.logger.Debug("damage target gone",
				zap.Stringer("target", ev.Target))
			return spawned, Event{}, false
		}

		for _, effect := range active {
			if item.applied[effect.ID] {
				continue
			}
			prev, ok := effect.Modification.(effects.Prevention)
			if !ok || !p.applicable(prev, effect, ev) {
				continue
			}

			before := ev
			switch m := prev.(type) {
			case effects.PreventAllDamage, effects.PreventDamageToPlayer,
				effects.PreventDamageToCreatures, effects.PreventDamageFromSource,
				effects.PreventDamageToTarget:
				ev.Amount = 0
				p.record(result, before, effect.ID, CauseEffect, before.Amount, nil)

			case effects.PreventNextDamage:
				left := m.Amount - result.Shields[effect.ID]
				if left <= 0 {
					continue
				}
				n := min(left, ev.Amount)
				result.Shields[effect.ID] += n
				ev.Amount -= n
				p.record(result, before, effect.ID, CauseEffect, n, nil)

			case effects.ReduceDamage:
				n := min(m.Amount, ev.Amount)
				if n <= 0 {
					continue
				}
				ev.Amount -= n
				p.record(result, before, effect.ID, CauseEffect, n, nil)

			case effects.RedirectNextDamage:
				if result.Shields[effect.ID] > 0 {
					continue
				}
				to, ok := p.resolve(m.To, ev)
				if !ok {
					continue
				}
				if *iterations >= p.maxIterations {
					p.logger.Error("damage redirection exceeded maximum iterations",
						zap.Int("max_iterations", p.maxIterations))
					break restart
				}
				*iterations++
				result.Shields[effect.ID] = 1
				item.applied[effect.ID] = true
				ev.Target = to
				p.record(result, before, effect.ID, CauseRedirect, 0, &to)
				continue restart

			case effects.ReflectCombatDamage:
				to, ok := p.resolve(m.To, ev)
				if !ok {
					continue
				}
				if *iterations >= p.maxIterations {
					p.logger.Error("damage reflection exceeded maximum iterations",
						zap.Int("max_iterations", p.maxIterations))
					continue
				}
				*iterations++
				ev.Amount = 0
				p.record(result, before, effect.ID, CauseReflect, before.Amount, &to)
				applied := map[string]bool{effect.ID: true}
				spawned = append(spawned, pending{
					event:   Event{Source: effect.Source, Amount: before.Amount, Target: to},
					applied: applied,
				})

			default:
				panic(fmt.Sprintf("damage: unhandled prevention %T", m))
			}

			item.applied[effect.ID] = true
			if ev.Amount == 0 {
				break restart
			}
		}
		break
	}

	if ev.Amount <= 0 {
		return spawned, Event{}, false
	}
	if p.protected(ev) {
		p.record(result, ev, "", CauseProtection, ev.Amount, nil)
		return spawned, Event{}, false
	}
	return spawned, ev, true
}

func (p *Projector) record(result *Result, before Event, id string, cause Cause, prevented int, to *Target) {
	rec := Record{
		Event:        before,
		EffectID:     id,
		Cause:        cause,
		Prevented:    prevented,
		Full:         prevented >= before.Amount,
		RedirectedTo: to,
	}
	result.Prevented = append(result.Prevented, rec)
	p.logger.Debug("damage intercepted",
		zap.String("effect_id", id),
		zap.String("cause", string(cause)),
		zap.Int("amount", before.Amount),
		zap.Int("prevented", prevented),
		zap.Stringer("target", before.Target))
}

func (p *Projector) exists(t Target) bool {
	if t.IsPlayer() {
		return true
	}
	v, ok := p.viewer.Project(t.Entity)
	return ok && v.OnBattlefield()
}

// applicable checks the shared filters and the recipient of each variant.
func (p *Projector) applicable(prev effects.Prevention, effect effects.FloatingEffect, ev Event) bool {
	f := prev.Filters()
	if f.CombatOnly && !ev.Combat {
		return false
	}
	if f.Source != nil {
		source, ok := p.viewer.Project(ev.Source)
		if !ok || !f.Source.Matches(source.Traits(), effect.Source, effect.Controller) {
			return false
		}
	}
	if f.Target != nil {
		if ev.Target.IsPlayer() {
			return false
		}
		target, ok := p.viewer.Project(ev.Target.Entity)
		if !ok || !f.Target.Matches(target.Traits(), effect.Source, effect.Controller) {
			return false
		}
	}

	switch m := prev.(type) {
	case effects.PreventAllDamage:
		return true
	case effects.PreventDamageToPlayer:
		return ev.Target.IsPlayer() && ev.Target.Player == m.Player
	case effects.PreventDamageToCreatures:
		return ev.Target.Kind == TargetCreature
	case effects.PreventNextDamage:
		return receives(m.To, ev.Target)
	case effects.ReduceDamage:
		return receives(m.To, ev.Target)
	case effects.PreventDamageFromSource:
		return ev.Source == m.From
	case effects.PreventDamageToTarget:
		return receives(m.To, ev.Target)
	case effects.RedirectNextDamage:
		return receives(m.From, ev.Target)
	case effects.ReflectCombatDamage:
		return receives(m.From, ev.Target)
	default:
		panic(fmt.Sprintf("damage: unhandled prevention %T", m))
	}
}

func receives(r effects.Recipient, t Target) bool {
	switch {
	case r.Any():
		return true
	case r.Player != "":
		return t.IsPlayer() && t.Player == r.Player
	default:
		return !t.IsPlayer() && t.Entity == r.Entity
	}
}

// resolve turns a recipient into a target. An unrestricted recipient means
// the controller of the damage source. Recipients that left the battlefield
// resolve to nothing.
func (p *Projector) resolve(r effects.Recipient, ev Event) (Target, bool) {
	switch {
	case r.Player != "":
		return ToPlayer(r.Player), true
	case r.Entity != ecs.NoEntity:
		v, ok := p.viewer.Project(r.Entity)
		if !ok || !v.OnBattlefield() {
			return Target{}, false
		}
		if v.IsCreature() {
			return ToCreature(r.Entity), true
		}
		if v.HasType(ecs.TypePlaneswalker) || v.HasType(ecs.TypeBattle) {
			return ToPermanent(r.Entity), true
		}
		return Target{}, false
	default:
		source, ok := p.viewer.Project(ev.Source)
		if !ok || source.Controller == "" {
			return Target{}, false
		}
		return ToPlayer(source.Controller), true
	}
}

func (p *Projector) protected(ev Event) bool {
	if ev.Target.IsPlayer() {
		return false
	}
	target, ok := p.viewer.Project(ev.Target.Entity)
	if !ok || len(target.Protections) == 0 {
		return false
	}
	source, ok := p.viewer.Project(ev.Source)
	if !ok {
		return false
	}
	return target.ProtectedFrom(source)
}
