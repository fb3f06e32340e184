package engine

import (
	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/layers"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// BeginTurn starts the next turn with player active: effects lasting until
// that player's next turn end, that player's permanents untap and lose
// summoning sickness, and the upkeep begins.
func (e *Engine) BeginTurn(player ecs.PlayerID) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.requirePlayer(player); err != nil {
		return err
	}
	if e.combat.Active() {
		e.combat.End()
	}
	turn := e.store.Turn()
	e.store.SetTurn(ecs.Turn{Number: turn.Number + 1, Active: player, Step: ecs.StepUntap})
	e.expire(effects.Moment{Kind: effects.MomentTurnStart, Player: player})

	events := []rules.Event{rules.NewPlayerEvent(rules.EventBeginTurn, player)}
	for _, v := range e.projector.ProjectAll() {
		if v.Controller != player {
			continue
		}
		e.store.SetSummoningSick(v.Entity, false)
		if v.Tapped {
			e.store.SetTapped(v.Entity, false)
			events = append(events, rules.NewEvent(rules.EventUntapped, v.Entity, ecs.NoEntity, player))
		}
	}
	e.emit(events...)
	e.logger.Debug("turn started", zap.Int("turn", turn.Number+1), zap.String("player", string(player)))

	e.enterStep(ecs.StepUpkeep)
	e.checkStateLocked()
	return nil
}

// EndTurn runs the end step and the cleanup step: marked damage is removed
// and effects lasting until end of turn end.
func (e *Engine) EndTurn() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.combat.Active() {
		e.combat.End()
		e.expire(effects.Moment{Kind: effects.MomentEndOfCombat})
	}
	e.enterStep(ecs.StepEnd)
	e.enterStep(ecs.StepCleanup)
	e.store.ClearDamage()
	e.expire(effects.Moment{Kind: effects.MomentCleanup})
	e.watchers.ResetWatchers()
	e.checkStateLocked()
	return nil
}

// CheckState performs state-based actions until none apply and returns the
// permanents put into graveyards and the players who lost.
func (e *Engine) CheckState() ([]ecs.Entity, []ecs.PlayerID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.checkStateLocked()
}

// enterStep moves the turn to step, ends effects waiting for it and announces
// it.
func (e *Engine) enterStep(step ecs.Step) {
	e.store.SetStep(step)
	active := e.store.Turn().Active
	e.expire(effects.Moment{Kind: effects.MomentStepStart, Player: active, Step: step})
	if ev, ok := rules.StepEvent(step); ok {
		stepEvent := rules.NewPlayerEvent(ev, active)
		stepEvent.Step = step
		e.emit(stepEvent)
	}
}

func (e *Engine) checkStateLocked() (died []ecs.Entity, losers []ecs.PlayerID) {
	for {
		for _, p := range e.store.Players() {
			if p.Life > 0 || e.lost[p.ID] {
				continue
			}
			e.lost[p.ID] = true
			losers = append(losers, p.ID)
			e.logger.Info("player lost due to life",
				zap.String("player_id", string(p.ID)),
				zap.Int("life", p.Life))
		}

		lastKnown := e.projector.Snapshot()
		var events []rules.Event
		for _, v := range lastKnown.All() {
			if !doomed(v) {
				continue
			}
			if ev, ok := e.move(v.Entity, ecs.ZoneGraveyard); ok {
				events = append(events, ev)
				died = append(died, v.Entity)
				e.logger.Debug("state-based action",
					zap.String("name", v.Name),
					zap.Int("toughness", v.Toughness),
					zap.Int("damage", v.Damage))
			}
		}
		if len(events) == 0 {
			return died, losers
		}
		e.settle(events, lastKnown)
	}
}

// doomed reports whether a state-based action puts v into its owner's
// graveyard.
func doomed(v layers.View) bool {
	if v.IsCreature() {
		if v.Toughness <= 0 {
			return true
		}
		if !v.Has(ecs.KeywordIndestructible) && (v.Damage >= v.Toughness || (v.DeathtouchDamage && v.Damage > 0)) {
			return true
		}
	}
	if v.HasType(ecs.TypePlaneswalker) && v.Loyalty <= 0 {
		return true
	}
	if v.HasType(ecs.TypeBattle) && v.Defense <= 0 {
		return true
	}
	return false
}
