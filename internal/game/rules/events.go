package rules

import (
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// EventType identifies what happened in the game.
type EventType string

const (
	// Turn structure
	EventBeginTurn            EventType = "BEGIN_TURN"
	EventUpkeepStepPre        EventType = "UPKEEP_STEP_PRE"
	EventBeginCombatStepPre   EventType = "BEGIN_COMBAT_STEP_PRE"
	EventDeclareAttackersStep EventType = "DECLARE_ATTACKERS_STEP_PRE"
	EventDeclareBlockersStep  EventType = "DECLARE_BLOCKERS_STEP_PRE"
	EventCombatDamageStepPre  EventType = "COMBAT_DAMAGE_STEP_PRE"
	EventEndCombatStepPre     EventType = "END_COMBAT_STEP_PRE"
	EventEndTurnStepPre       EventType = "END_TURN_STEP_PRE"
	EventCleanupStepPre       EventType = "CLEANUP_STEP_PRE"

	// Zones
	EventZoneChange           EventType = "ZONE_CHANGE"
	EventEntersTheBattlefield EventType = "ENTERS_THE_BATTLEFIELD"

	// Combat
	EventAttackerDeclared  EventType = "ATTACKER_DECLARED"
	EventDeclaredAttackers EventType = "DECLARED_ATTACKERS"
	EventBlockerDeclared   EventType = "BLOCKER_DECLARED"
	EventCreatureBlocked   EventType = "CREATURE_BLOCKED"
	EventUnblockedAttacker EventType = "UNBLOCKED_ATTACKER"
	EventDeclaredBlockers  EventType = "DECLARED_BLOCKERS"
	EventRemovedFromCombat EventType = "REMOVED_FROM_COMBAT"
	EventCombatDamageDealt EventType = "COMBAT_DAMAGE_STEP_DEALT"

	// Damage and life
	EventDamagedPlayer    EventType = "DAMAGED_PLAYER"
	EventDamagedPermanent EventType = "DAMAGED_PERMANENT"
	EventPreventedDamage  EventType = "PREVENTED_DAMAGE"
	EventGainedLife       EventType = "GAINED_LIFE"
	EventLostLife         EventType = "LOST_LIFE"

	// Permanents
	EventTapped          EventType = "TAPPED"
	EventUntapped        EventType = "UNTAPPED"
	EventCountersRemoved EventType = "COUNTERS_REMOVED"

	// Spells
	EventSpellCast EventType = "SPELL_CAST"
)

// Event is one thing that happened. Which fields are meaningful depends on
// the type:
//
//   - zone changes: Target moved From -> To, Controller controlled it before
//   - attacker declared: Source attacks, Player is the defending player and
//     Target the attacked permanent if any
//   - blocker declared: Source blocks Target
//   - damage: Source dealt Amount to Target or to Player, Flag marks combat damage
//   - life and step events: Player
type Event struct {
	Type       EventType
	ID         string
	Target     ecs.Entity
	Source     ecs.Entity
	Controller ecs.PlayerID
	Player     ecs.PlayerID
	Amount     int
	Flag       bool
	From       ecs.ZoneKind
	To         ecs.ZoneKind
	Step       ecs.Step
}

// NewEvent creates an event with a fresh id.
func NewEvent(eventType EventType, target, source ecs.Entity, controller ecs.PlayerID) Event {
	return Event{
		Type:       eventType,
		ID:         uuid.NewString(),
		Target:     target,
		Source:     source,
		Controller: controller,
		Player:     controller,
	}
}

// NewEventWithAmount creates an event carrying an amount.
func NewEventWithAmount(eventType EventType, target, source ecs.Entity, controller ecs.PlayerID, amount int) Event {
	evt := NewEvent(eventType, target, source, controller)
	evt.Amount = amount
	return evt
}

// NewZoneChangeEvent records target moving between zones while controlled by controller.
func NewZoneChangeEvent(target ecs.Entity, controller ecs.PlayerID, from, to ecs.ZoneKind) Event {
	evt := NewEvent(EventZoneChange, target, ecs.NoEntity, controller)
	evt.From = from
	evt.To = to
	return evt
}

// NewPlayerEvent creates an event about a player, such as a step starting.
func NewPlayerEvent(eventType EventType, player ecs.PlayerID) Event {
	return NewEvent(eventType, ecs.NoEntity, ecs.NoEntity, player)
}

// LeftBattlefield reports whether the event moved an object off the battlefield.
func (e Event) LeftBattlefield() bool {
	return e.Type == EventZoneChange && e.From == ecs.ZoneBattlefield && e.To != ecs.ZoneBattlefield
}

// Listener defines a callback that reacts to incoming events.
type Listener func(Event)

type subscription struct {
	handle    int
	eventType EventType // empty for every type
	callback  Listener
}

// EventBus provides a synchronous publish/subscribe implementation with type
// filtering. Listeners run in subscription order.
type EventBus struct {
	mu         sync.RWMutex
	subs       []subscription
	nextHandle int
}

// NewEventBus constructs a fresh event bus instance.
func NewEventBus() *EventBus {
	return &EventBus{}
}

// Subscribe registers a listener for all events and returns a handle.
func (bus *EventBus) Subscribe(listener Listener) int {
	return bus.add("", listener)
}

// SubscribeTyped registers a listener for a specific event type.
func (bus *EventBus) SubscribeTyped(eventType EventType, listener Listener) int {
	if eventType == "" {
		return -1
	}
	return bus.add(eventType, listener)
}

func (bus *EventBus) add(eventType EventType, listener Listener) int {
	if listener == nil {
		return -1
	}
	bus.mu.Lock()
	defer bus.mu.Unlock()
	handle := bus.nextHandle
	bus.nextHandle++
	bus.subs = append(bus.subs, subscription{handle: handle, eventType: eventType, callback: listener})
	return handle
}

// Unsubscribe removes the listener identified by the provided handle.
func (bus *EventBus) Unsubscribe(handle int) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.subs = slices.DeleteFunc(bus.subs, func(s subscription) bool { return s.handle == handle })
}

// Publish delivers the event to all matching listeners synchronously.
func (bus *EventBus) Publish(event Event) {
	bus.mu.RLock()
	subs := slices.Clone(bus.subs)
	bus.mu.RUnlock()

	for _, s := range subs {
		if s.eventType == "" || s.eventType == event.Type {
			s.callback(event)
		}
	}
}

// PublishBatch publishes events in order.
func (bus *EventBus) PublishBatch(events []Event) {
	for _, event := range events {
		bus.Publish(event)
	}
}
