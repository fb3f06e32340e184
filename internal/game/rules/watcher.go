package rules

import (
	"slices"
	"strconv"
	"sync"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// WatcherScope defines the scope of a watcher's tracking.
type WatcherScope int

const (
	// WatcherScopeGame tracks events for the entire game.
	WatcherScopeGame WatcherScope = iota
	// WatcherScopePlayer tracks events for a specific player.
	WatcherScopePlayer
	// WatcherScopeCard tracks events for a specific permanent.
	WatcherScopeCard
)

// String returns the string representation of the watcher scope.
func (ws WatcherScope) String() string {
	switch ws {
	case WatcherScopeGame:
		return "GAME"
	case WatcherScopePlayer:
		return "PLAYER"
	case WatcherScopeCard:
		return "CARD"
	default:
		return "UNKNOWN"
	}
}

// Watcher records what happened during a turn so that abilities can ask
// about it later ("if a creature died this turn").
type Watcher interface {
	// Watch is called for every event.
	Watch(event Event)
	// Reset clears the recorded state, at the end of each turn.
	Reset()
	// ConditionMet reports whether the tracked condition happened.
	ConditionMet() bool
	Scope() WatcherScope
	// Key identifies the watcher in a registry. Player and card scoped
	// watchers include their player or entity.
	Key() string
}

// BaseWatcher carries the bookkeeping shared by all watchers.
type BaseWatcher struct {
	scope     WatcherScope
	name      string
	player    ecs.PlayerID
	source    ecs.Entity
	condition bool
}

// NewBaseWatcher creates a game scoped base watcher called name.
func NewBaseWatcher(name string) *BaseWatcher {
	return &BaseWatcher{scope: WatcherScopeGame, name: name}
}

// NewPlayerWatcher creates a base watcher scoped to player.
func NewPlayerWatcher(name string, player ecs.PlayerID) *BaseWatcher {
	return &BaseWatcher{scope: WatcherScopePlayer, name: name, player: player}
}

// NewCardWatcher creates a base watcher scoped to one permanent.
func NewCardWatcher(name string, source ecs.Entity) *BaseWatcher {
	return &BaseWatcher{scope: WatcherScopeCard, name: name, source: source}
}

func (bw *BaseWatcher) Scope() WatcherScope {
	return bw.scope
}

// Player returns the player of a player scoped watcher.
func (bw *BaseWatcher) Player() ecs.PlayerID {
	return bw.player
}

// Source returns the permanent of a card scoped watcher.
func (bw *BaseWatcher) Source() ecs.Entity {
	return bw.source
}

func (bw *BaseWatcher) ConditionMet() bool {
	return bw.condition
}

// SetCondition sets the condition flag.
func (bw *BaseWatcher) SetCondition(condition bool) {
	bw.condition = condition
}

// Reset clears the condition.
func (bw *BaseWatcher) Reset() {
	bw.condition = false
}

func (bw *BaseWatcher) Key() string {
	switch bw.scope {
	case WatcherScopePlayer:
		return string(bw.player) + "_" + bw.name
	case WatcherScopeCard:
		return strconv.FormatUint(uint64(bw.source), 10) + "_" + bw.name
	default:
		return bw.name
	}
}

// WatcherRegistry manages the watchers of a game.
type WatcherRegistry struct {
	mu       sync.RWMutex
	watchers []Watcher
}

// NewWatcherRegistry creates a new watcher registry.
func NewWatcherRegistry() *WatcherRegistry {
	return &WatcherRegistry{}
}

// AddWatcher adds a watcher, replacing one with the same key.
func (wr *WatcherRegistry) AddWatcher(watcher Watcher) {
	if watcher == nil {
		return
	}
	wr.mu.Lock()
	defer wr.mu.Unlock()
	key := watcher.Key()
	if i := slices.IndexFunc(wr.watchers, func(w Watcher) bool { return w.Key() == key }); i >= 0 {
		wr.watchers[i] = watcher
		return
	}
	wr.watchers = append(wr.watchers, watcher)
}

// RemoveWatcher removes a watcher from the registry.
func (wr *WatcherRegistry) RemoveWatcher(key string) {
	wr.mu.Lock()
	defer wr.mu.Unlock()
	wr.watchers = slices.DeleteFunc(wr.watchers, func(w Watcher) bool { return w.Key() == key })
}

// GetWatcher retrieves a watcher by key.
func (wr *WatcherRegistry) GetWatcher(key string) Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, w := range wr.watchers {
		if w.Key() == key {
			return w
		}
	}
	return nil
}

// GetWatchersByScope returns all watchers for a given scope.
func (wr *WatcherRegistry) GetWatchersByScope(scope WatcherScope) []Watcher {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	var result []Watcher
	for _, w := range wr.watchers {
		if w.Scope() == scope {
			result = append(result, w)
		}
	}
	return result
}

// ResetWatchers resets all watchers.
func (wr *WatcherRegistry) ResetWatchers() {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, w := range wr.watchers {
		w.Reset()
	}
}

// NotifyWatchers hands the event to every watcher in registration order.
func (wr *WatcherRegistry) NotifyWatchers(event Event) {
	wr.mu.RLock()
	defer wr.mu.RUnlock()
	for _, w := range wr.watchers {
		w.Watch(event)
	}
}

// Attach subscribes the registry to bus and returns the subscription handle.
func (wr *WatcherRegistry) Attach(bus *EventBus) int {
	return bus.Subscribe(wr.NotifyWatchers)
}
