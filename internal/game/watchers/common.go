package watchers

import (
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

// AttackedThisTurnWatcher tracks the creatures that attacked this turn.
type AttackedThisTurnWatcher struct {
	*rules.BaseWatcher
	attackers map[ecs.PlayerID][]ecs.Entity
}

// NewAttackedThisTurnWatcher creates a new attacked-this-turn watcher.
func NewAttackedThisTurnWatcher() *AttackedThisTurnWatcher {
	return &AttackedThisTurnWatcher{
		BaseWatcher: rules.NewBaseWatcher("AttackedThisTurnWatcher"),
		attackers:   make(map[ecs.PlayerID][]ecs.Entity),
	}
}

// Watch implements the Watcher interface.
func (w *AttackedThisTurnWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventAttackerDeclared || event.Source == ecs.NoEntity {
		return
	}
	w.attackers[event.Controller] = append(w.attackers[event.Controller], event.Source)
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *AttackedThisTurnWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.attackers = make(map[ecs.PlayerID][]ecs.Entity)
}

// Attacked reports whether e attacked this turn.
func (w *AttackedThisTurnWatcher) Attacked(e ecs.Entity) bool {
	for _, list := range w.attackers {
		for _, a := range list {
			if a == e {
				return true
			}
		}
	}
	return false
}

// AttackersOf returns the creatures player attacked with this turn.
func (w *AttackedThisTurnWatcher) AttackersOf(player ecs.PlayerID) []ecs.Entity {
	return append([]ecs.Entity(nil), w.attackers[player]...)
}

// PermanentsDiedWatcher tracks permanents put into a graveyard from the
// battlefield, by the player who controlled them.
type PermanentsDiedWatcher struct {
	*rules.BaseWatcher
	byController map[ecs.PlayerID]int
}

// NewPermanentsDiedWatcher creates a new permanents died watcher.
func NewPermanentsDiedWatcher() *PermanentsDiedWatcher {
	return &PermanentsDiedWatcher{
		BaseWatcher:  rules.NewBaseWatcher("PermanentsDiedWatcher"),
		byController: make(map[ecs.PlayerID]int),
	}
}

// Watch implements the Watcher interface.
func (w *PermanentsDiedWatcher) Watch(event rules.Event) {
	if !event.LeftBattlefield() || event.To != ecs.ZoneGraveyard {
		return
	}
	w.byController[event.Controller]++
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *PermanentsDiedWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.byController = make(map[ecs.PlayerID]int)
}

// GetAmountByController returns how many of controller's permanents died.
func (w *PermanentsDiedWatcher) GetAmountByController(controller ecs.PlayerID) int {
	return w.byController[controller]
}

// GetTotalAmount returns the total number of permanents that died.
func (w *PermanentsDiedWatcher) GetTotalAmount() int {
	total := 0
	for _, count := range w.byController {
		total += count
	}
	return total
}

// CombatDamageToPlayerWatcher tracks combat damage dealt to players.
type CombatDamageToPlayerWatcher struct {
	*rules.BaseWatcher
	byPlayer map[ecs.PlayerID]int
	sources  map[ecs.Entity]bool
}

// NewCombatDamageToPlayerWatcher creates a new combat damage watcher.
func NewCombatDamageToPlayerWatcher() *CombatDamageToPlayerWatcher {
	return &CombatDamageToPlayerWatcher{
		BaseWatcher: rules.NewBaseWatcher("CombatDamageToPlayerWatcher"),
		byPlayer:    make(map[ecs.PlayerID]int),
		sources:     make(map[ecs.Entity]bool),
	}
}

// Watch implements the Watcher interface.
func (w *CombatDamageToPlayerWatcher) Watch(event rules.Event) {
	if event.Type != rules.EventDamagedPlayer || !event.Flag || event.Amount <= 0 {
		return
	}
	w.byPlayer[event.Player] += event.Amount
	w.sources[event.Source] = true
	w.SetCondition(true)
}

// Reset clears the watcher's state.
func (w *CombatDamageToPlayerWatcher) Reset() {
	w.BaseWatcher.Reset()
	w.byPlayer = make(map[ecs.PlayerID]int)
	w.sources = make(map[ecs.Entity]bool)
}

// DamageTo returns the combat damage player was dealt this turn.
func (w *CombatDamageToPlayerWatcher) DamageTo(player ecs.PlayerID) int {
	return w.byPlayer[player]
}

// Dealt reports whether source dealt combat damage to a player this turn.
func (w *CombatDamageToPlayerWatcher) Dealt(source ecs.Entity) bool {
	return w.sources[source]
}

// Register adds the standard combat watchers to registry.
func Register(registry *rules.WatcherRegistry) {
	registry.AddWatcher(NewAttackedThisTurnWatcher())
	registry.AddWatcher(NewPermanentsDiedWatcher())
	registry.AddWatcher(NewCombatDamageToPlayerWatcher())
}
