package engine

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/combat"
	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/damage"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/layers"
	"github.com/magefree/mage-rules-go/internal/game/mana"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// StepResult is what one combat damage step did.
type StepResult struct {
	Step combat.DamageStep
	// Skipped is set for a first strike step no creature takes part in.
	Skipped   bool
	Dealt     []damage.Event
	Prevented []damage.Record
	Died      []ecs.Entity
	Losers    []ecs.PlayerID
	Triggers  []rules.Activation
}

// TotalDealt sums the damage that was dealt by every source, blockers
// included.
func (r StepResult) TotalDealt() int {
	total := 0
	for _, ev := range r.Dealt {
		total += ev.Amount
	}
	return total
}

// DealtBy sums the damage source dealt in the step.
func (r StepResult) DealtBy(source ecs.Entity) int {
	total := 0
	for _, ev := range r.Dealt {
		if ev.Source == source {
			total += ev.Amount
		}
	}
	return total
}

// BeginCombat starts the combat phase of the active player and moves to the
// declare attackers step.
func (e *Engine) BeginCombat() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	active := e.store.Turn().Active
	if err := e.requirePlayer(active); err != nil {
		return err
	}
	e.enterStep(ecs.StepBeginCombat)
	e.combat.Begin(active)
	e.enterStep(ecs.StepDeclareAttackers)
	return nil
}

// DeclareAttacker declares attacker for player. A refused declaration is
// reported through the result, not as an error. Attacking taps the creature
// unless it has vigilance.
func (e *Engine) DeclareAttacker(attacker ecs.Entity, player ecs.PlayerID, defender combat.Defender, paid mana.Cost) (combat.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.combat.Active() {
		return combat.Result{}, ErrNoCombat
	}
	view, _ := e.projector.Project(attacker)
	res := e.combat.DeclareAttacker(attacker, player, defender, paid)
	if !res.OK() {
		return res, nil
	}

	var events []rules.Event
	if !view.Has(ecs.KeywordVigilance) {
		e.store.SetTapped(attacker, true)
		events = append(events, rules.NewEvent(rules.EventTapped, attacker, ecs.NoEntity, view.Controller))
	}
	declared := rules.NewEvent(rules.EventAttackerDeclared, defender.Permanent, attacker, view.Controller)
	if g, ok := e.combat.Group(attacker); ok {
		declared.Player = g.DefendingPlayer
	}
	events = append(events, declared)
	e.emit(events...)
	return res, nil
}

// FinishAttackers ends the declare attackers step. It fails while a creature
// that must attack is not attacking.
func (e *Engine) FinishAttackers() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.combat.Active() {
		return ErrNoCombat
	}
	if report := e.combat.ValidateDeclarations(); len(report.MustAttackViolations) > 0 {
		return fmt.Errorf("%w: %d creatures must attack", ErrRequirementsNotMet, len(report.MustAttackViolations))
	}
	if err := e.combat.FinishAttackers(); err != nil {
		return err
	}
	e.emit(rules.NewPlayerEvent(rules.EventDeclaredAttackers, e.combat.AttackingPlayer()))
	e.enterStep(ecs.StepDeclareBlockers)
	return nil
}

// DeclareBlocker declares blocker as blocking attacker for player.
func (e *Engine) DeclareBlocker(blocker, attacker ecs.Entity, player ecs.PlayerID, paid mana.Cost) (combat.Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.combat.Active() {
		return combat.Result{}, ErrNoCombat
	}
	res := e.combat.DeclareBlocker(blocker, attacker, player, paid)
	if !res.OK() {
		return res, nil
	}
	e.emit(rules.NewEvent(rules.EventBlockerDeclared, attacker, blocker, player))
	return res, nil
}

// SetDamageAssignmentOrder records the order in which attacker assigns its
// combat damage among its blockers.
func (e *Engine) SetDamageAssignmentOrder(attacker ecs.Entity, order []ecs.Entity) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.combat.SetDamageAssignmentOrder(attacker, order)
}

// FinishBlockers checks the requirements that depend on every block and, if
// they hold, announces which attackers are blocked. The report is returned
// either way.
func (e *Engine) FinishBlockers() (combat.Report, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.combat.Active() {
		return combat.Report{}, ErrNoCombat
	}
	if e.combat.Step() != combat.StepDeclareBlockers {
		return combat.Report{}, fmt.Errorf("%w: blockers finished during %s", combat.ErrWrongStep, e.combat.Step())
	}
	report := e.combat.ValidateDeclarations()
	if !report.Valid() {
		e.logger.Debug("blocks refused",
			zap.Int("menace", len(report.MenaceViolations)),
			zap.Int("must_block", len(report.MustBlockViolations)),
			zap.Int("must_be_blocked", len(report.MustBeBlockedViolations)))
		return report, ErrRequirementsNotMet
	}

	attacking := e.combat.AttackingPlayer()
	var events []rules.Event
	for _, g := range e.combat.Groups() {
		kind := rules.EventUnblockedAttacker
		if g.Blocked {
			kind = rules.EventCreatureBlocked
		}
		ev := rules.NewEvent(kind, g.Attacker, ecs.NoEntity, attacking)
		ev.Player = g.DefendingPlayer
		events = append(events, ev)
	}
	events = append(events, rules.NewPlayerEvent(rules.EventDeclaredBlockers, attacking))
	e.emit(events...)
	return report, nil
}

// RemoveFromCombat takes obj out of combat without moving it.
func (e *Engine) RemoveFromCombat(obj ecs.Entity) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.combat.RemoveFromCombat(obj) {
		return false
	}
	controller := ecs.PlayerID("")
	if v, ok := e.projector.Project(obj); ok {
		controller = v.Controller
	}
	e.emit(rules.NewEvent(rules.EventRemovedFromCombat, obj, ecs.NoEntity, controller))
	return true
}

// RunDamageStep deals the combat damage of step: it assigns damage, applies
// prevention and redirection, marks damage and changes life totals, then
// performs state-based actions until none apply.
func (e *Engine) RunDamageStep(step combat.DamageStep) (StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	result := StepResult{Step: step}
	if !e.combat.Active() {
		return result, ErrNoCombat
	}
	if e.combat.Step() != combat.StepDeclareBlockers {
		return result, fmt.Errorf("%w: damage during %s", combat.ErrWrongStep, e.combat.Step())
	}
	if step == combat.FirstStrikeStep && !e.calculator.HasFirstStrikeStep() {
		result.Skipped = true
		return result, nil
	}
	mark := len(e.pending)

	if step == combat.FirstStrikeStep {
		e.enterStep(ecs.StepFirstStrikeDamage)
	} else {
		e.enterStep(ecs.StepCombatDamage)
	}

	batch := e.calculator.Calculate(step)
	projected := e.damage.Project(batch.Events, e.catalog.Preventions(), e.shields)
	e.shields = projected.Shields
	result.Prevented = projected.Prevented

	sources := e.projector.Snapshot()
	events := e.preventedEvents(projected.Prevented, sources)
	for _, ev := range projected.Final {
		applied, ok := e.applyDamage(ev, sources)
		if !ok {
			continue
		}
		result.Dealt = append(result.Dealt, ev)
		events = append(events, applied...)
	}
	if step == combat.FirstStrikeStep {
		e.combat.MarkFirstStrikeDamage(batch.Dealt...)
	}
	if len(result.Dealt) > 0 {
		dealt := rules.NewEventWithAmount(rules.EventCombatDamageDealt, ecs.NoEntity, ecs.NoEntity, e.combat.AttackingPlayer(), result.TotalDealt())
		dealt.Flag = true
		events = append(events, dealt)
	}
	e.settle(events, sources)
	result.Died, result.Losers = e.checkStateLocked()
	result.Triggers = slices.Clone(e.pending[mark:])
	e.logger.Debug("combat damage dealt",
		zap.String("step", step.String()),
		zap.Int("events", len(result.Dealt)),
		zap.Int("amount", result.TotalDealt()),
		zap.Int("prevented", projected.TotalPrevented()),
		zap.Int("died", len(result.Died)))
	return result, nil
}

// applyDamage changes the game for one damage event and returns the events
// describing it. Damage to a player reduces life; damage to a creature is
// marked; damage to a planeswalker or battle removes loyalty or defense
// counters.
func (e *Engine) applyDamage(ev damage.Event, sources layers.Viewer) ([]rules.Event, bool) {
	if ev.Amount <= 0 {
		return nil, false
	}
	src, _ := sources.Project(ev.Source)
	var out []rules.Event

	switch ev.Target.Kind {
	case damage.TargetPlayer:
		if _, err := e.store.AdjustLife(ev.Target.Player, -ev.Amount); err != nil {
			e.logger.Warn("damage to unknown player", zap.String("player", string(ev.Target.Player)))
			return nil, false
		}
		dealt := rules.NewEventWithAmount(rules.EventDamagedPlayer, ecs.NoEntity, ev.Source, src.Controller, ev.Amount)
		dealt.Player = ev.Target.Player
		dealt.Flag = ev.Combat
		out = append(out, dealt)
	case damage.TargetCreature, damage.TargetPermanent:
		target, ok := e.projector.Project(ev.Target.Entity)
		if !ok || !target.OnBattlefield() {
			return nil, false
		}
		if target.IsCreature() {
			e.store.MarkDamage(ev.Target.Entity, ev.Amount, src.Has(ecs.KeywordDeathtouch))
		}
		if target.HasType(ecs.TypePlaneswalker) {
			e.removeCounters(ev.Target.Entity, counters.Loyalty, ev.Amount, target.Controller, &out)
		}
		if target.HasType(ecs.TypeBattle) {
			e.removeCounters(ev.Target.Entity, counters.Defense, ev.Amount, target.Controller, &out)
		}
		dealt := rules.NewEventWithAmount(rules.EventDamagedPermanent, ev.Target.Entity, ev.Source, src.Controller, ev.Amount)
		dealt.Player = target.Controller
		dealt.Flag = ev.Combat
		out = append(out, dealt)
	default:
		return nil, false
	}

	if src.Has(ecs.KeywordLifelink) && src.Controller != "" {
		if _, err := e.store.AdjustLife(src.Controller, ev.Amount); err == nil {
			out = append(out, rules.NewEventWithAmount(rules.EventGainedLife, ecs.NoEntity, ev.Source, src.Controller, ev.Amount))
		}
	}
	return out, true
}

func (e *Engine) removeCounters(obj ecs.Entity, name string, amount int, controller ecs.PlayerID, out *[]rules.Event) {
	if removed := e.store.RemoveCounters(obj, name, amount); removed > 0 {
		*out = append(*out, rules.NewEventWithAmount(rules.EventCountersRemoved, obj, ecs.NoEntity, controller, removed))
	}
}

func (e *Engine) preventedEvents(records []damage.Record, sources layers.Viewer) []rules.Event {
	var out []rules.Event
	for _, rec := range records {
		if rec.Prevented <= 0 {
			continue
		}
		src, _ := sources.Project(rec.Event.Source)
		ev := rules.NewEventWithAmount(rules.EventPreventedDamage, rec.Event.Target.Entity, rec.Event.Source, src.Controller, rec.Prevented)
		ev.Player = rec.Event.Target.Player
		ev.Flag = rec.Event.Combat
		out = append(out, ev)
	}
	return out
}

// EndCombat runs the end of combat step and closes the combat.
func (e *Engine) EndCombat() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.combat.Active() {
		return ErrNoCombat
	}
	e.enterStep(ecs.StepEndCombat)
	e.combat.End()
	e.expire(effects.Moment{Kind: effects.MomentEndOfCombat})
	e.checkStateLocked()
	e.enterStep(ecs.StepPostcombatMain)
	return nil
}
