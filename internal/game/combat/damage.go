package combat

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/damage"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/layers"
)

// DamageStep selects one of the two combat damage steps.
type DamageStep int

const (
	FirstStrikeStep DamageStep = iota
	RegularStep
)

func (s DamageStep) String() string {
	if s == FirstStrikeStep {
		return "first_strike"
	}
	return "regular"
}

// Batch is the damage of one step before prevention.
type Batch struct {
	Events []damage.Event
	// Dealt lists the creatures that assigned damage in this step.
	Dealt []ecs.Entity
}

// Calculator assigns combat damage for the recorded declarations.
type Calculator struct {
	state  *State
	viewer layers.Viewer
	logger *zap.Logger
}

// NewCalculator creates a calculator over state.
func NewCalculator(state *State, viewer layers.Viewer, logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{state: state, viewer: viewer, logger: logger}
}

// HasFirstStrikeStep reports whether any creature in combat has first strike
// or double strike.
func (c *Calculator) HasFirstStrikeStep() bool {
	for _, e := range c.state.Combatants() {
		v, ok := c.combatant(e)
		if ok && (v.Has(ecs.KeywordFirstStrike) || v.Has(ecs.KeywordDoubleStrike)) {
			return true
		}
	}
	return false
}

// CalculateFirstStrikeDamage is Calculate(FirstStrikeStep).
func (c *Calculator) CalculateFirstStrikeDamage() Batch {
	return c.Calculate(FirstStrikeStep)
}

// CalculateRegularDamage is Calculate(RegularStep).
func (c *Calculator) CalculateRegularDamage() Batch {
	return c.Calculate(RegularStep)
}

// Calculate returns the pending damage of the given step. Nothing is marked;
// the caller applies the events and records Dealt with MarkFirstStrikeDamage.
func (c *Calculator) Calculate(step DamageStep) Batch {
	var batch Batch
	dealt := make(map[ecs.Entity]bool)
	emit := func(ev damage.Event) {
		if ev.Amount <= 0 {
			return
		}
		batch.Events = append(batch.Events, ev)
		if !dealt[ev.Source] {
			dealt[ev.Source] = true
			batch.Dealt = append(batch.Dealt, ev.Source)
		}
	}

	for _, g := range c.state.groups {
		av, ok := c.combatant(g.Attacker)
		if !ok || !c.dealsDamage(av, step) || av.Power <= 0 {
			continue
		}
		for _, ev := range c.assign(g, av) {
			emit(ev)
		}
	}

	for _, g := range c.state.groups {
		if _, ok := c.combatant(g.Attacker); !ok {
			continue
		}
		for _, b := range g.Blockers {
			bv, ok := c.combatant(b)
			if !ok || !c.dealsDamage(bv, step) || bv.Power <= 0 {
				continue
			}
			emit(damage.Event{Source: b, Amount: bv.Power, Target: damage.ToCreature(g.Attacker), Combat: true})
		}
	}

	c.logger.Debug("combat damage calculated",
		zap.String("step", step.String()),
		zap.Int("events", len(batch.Events)),
		zap.Int("dealt", len(batch.Dealt)))
	return batch
}

func (c *Calculator) combatant(e ecs.Entity) (layers.View, bool) {
	v, ok := c.viewer.Project(e)
	if !ok || !v.OnBattlefield() || !v.IsCreature() {
		return layers.View{}, false
	}
	return v, true
}

// dealsDamage decides step eligibility. A creature that had first strike in
// the first step does not deal regular damage unless it has double strike.
func (c *Calculator) dealsDamage(v layers.View, step DamageStep) bool {
	double := v.Has(ecs.KeywordDoubleStrike)
	if step == FirstStrikeStep {
		return double || v.Has(ecs.KeywordFirstStrike)
	}
	return double || !c.state.DealtFirstStrikeDamage(v.Entity)
}

func (c *Calculator) assign(g *Group, av layers.View) []damage.Event {
	power := av.Power
	if !g.Blocked {
		if target, ok := c.defenderTarget(g); ok {
			return []damage.Event{{Source: g.Attacker, Amount: power, Target: target, Combat: true}}
		}
		return nil
	}

	order, ok := c.state.DamageOrder(g.Attacker)
	if !ok {
		return nil
	}
	trample := av.Has(ecs.KeywordTrample)
	var blockers []layers.View
	for _, b := range order {
		if bv, ok := c.combatant(b); ok {
			blockers = append(blockers, bv)
		}
	}
	if len(blockers) == 0 {
		if !trample {
			return nil
		}
		if target, ok := c.defenderTarget(g); ok {
			return []damage.Event{{Source: g.Attacker, Amount: power, Target: target, Combat: true}}
		}
		return nil
	}

	var events []damage.Event
	remaining := power
	deathtouch := av.Has(ecs.KeywordDeathtouch)
	for i, bv := range blockers {
		amount := min(Lethal(bv, deathtouch), remaining)
		if i == len(blockers)-1 && !trample {
			amount = remaining
		}
		if amount > 0 {
			events = append(events, damage.Event{Source: g.Attacker, Amount: amount, Target: damage.ToCreature(bv.Entity), Combat: true})
		}
		remaining -= amount
		if remaining == 0 {
			return events
		}
	}

	target, ok := c.defenderTarget(g)
	if !ok {
		// Nothing left to trample over to; the last blocker takes the rest.
		last := blockers[len(blockers)-1].Entity
		for i := range events {
			if events[i].Target.Entity == last {
				events[i].Amount += remaining
				return events
			}
		}
		return append(events, damage.Event{Source: g.Attacker, Amount: remaining, Target: damage.ToCreature(last), Combat: true})
	}
	return append(events, damage.Event{Source: g.Attacker, Amount: remaining, Target: target, Combat: true})
}

func (c *Calculator) defenderTarget(g *Group) (damage.Target, bool) {
	if !g.Defender.IsPermanent() {
		return damage.ToPlayer(g.Defender.Player), true
	}
	v, ok := c.viewer.Project(g.Defender.Permanent)
	if !ok || !v.OnBattlefield() {
		return damage.Target{}, false
	}
	if !v.HasType(ecs.TypePlaneswalker) && !v.HasType(ecs.TypeBattle) {
		return damage.Target{}, false
	}
	return damage.ToPermanent(g.Defender.Permanent), true
}

// Lethal is the damage that must be assigned to a blocker before the next
// one: its remaining toughness, or 1 from a deathtouch source.
func Lethal(blocker layers.View, deathtouch bool) int {
	rest := blocker.RemainingToughness()
	if deathtouch && rest > 0 {
		return 1
	}
	return rest
}

// ValidateAssignment checks a manual division of attacker's damage: perBlocker
// maps blockers to amounts and toDefender is what goes past them. Every
// blocker must receive lethal damage before a later one or the defender gets
// any, and only trample lets damage reach the defender.
func (c *Calculator) ValidateAssignment(attacker ecs.Entity, perBlocker map[ecs.Entity]int, toDefender int) error {
	av, ok := c.combatant(attacker)
	if !ok || !c.state.IsAttacking(attacker) {
		return fmt.Errorf("%w: attacker %d", ErrNotInCombat, attacker)
	}
	order, ok := c.state.DamageOrder(attacker)
	if !ok {
		return fmt.Errorf("%w: no damage assignment order for %d", ErrInvalidAssignment, attacker)
	}

	total := toDefender
	for b, amount := range perBlocker {
		if amount < 0 || !slices.Contains(order, b) {
			return fmt.Errorf("%w: %d damage to %d", ErrInvalidAssignment, amount, b)
		}
		total += amount
	}
	if toDefender < 0 || total != av.Power {
		return fmt.Errorf("%w: assigned %d of %d power", ErrInvalidAssignment, total, av.Power)
	}
	if toDefender > 0 && !av.Has(ecs.KeywordTrample) {
		return fmt.Errorf("%w: only trample assigns damage past blockers", ErrInvalidAssignment)
	}

	deathtouch := av.Has(ecs.KeywordDeathtouch)
	for i, b := range order {
		bv, ok := c.combatant(b)
		if !ok {
			continue
		}
		later := toDefender
		for _, next := range order[i+1:] {
			later += perBlocker[next]
		}
		if later > 0 && perBlocker[b] < Lethal(bv, deathtouch) {
			return fmt.Errorf("%w: blocker %d needs lethal damage first", ErrInvalidAssignment, b)
		}
	}
	return nil
}
