// Package engine is the single writer of a game: it applies the decisions of
// the analysis components back to the store and keeps the trigger index in
// step with the battlefield.
package engine

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/combat"
	"github.com/magefree/mage-rules-go/internal/game/counters"
	"github.com/magefree/mage-rules-go/internal/game/damage"
	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/effects"
	"github.com/magefree/mage-rules-go/internal/game/layers"
	"github.com/magefree/mage-rules-go/internal/game/rules"
	"github.com/magefree/mage-rules-go/internal/game/targeting"
	"github.com/magefree/mage-rules-go/internal/game/watchers"
)

var (
	ErrUnknownPlayer       = errors.New("unknown player")
	ErrUnknownObject       = errors.New("unknown object")
	ErrNoCombat            = errors.New("no combat in progress")
	ErrRequirementsNotMet  = errors.New("combat requirements not met")
	ErrInvalidStartingLife = errors.New("starting life must be positive")
)

// Options tune an engine.
type Options struct {
	// UseTriggerIndex selects indexed trigger detection over a full scan.
	UseTriggerIndex bool
	// VerifyTriggerIndex runs both detection paths and reports divergence.
	VerifyTriggerIndex bool
	// MaxReplacementIterations bounds redirections per damage batch.
	MaxReplacementIterations int
	// AutoOrderBlockers orders blockers by declaration.
	AutoOrderBlockers bool
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		UseTriggerIndex:          true,
		MaxReplacementIterations: damage.DefaultMaxIterations,
		AutoOrderBlockers:        true,
	}
}

// PermanentSpec describes a permanent put onto the battlefield during setup
// or a card created in another zone.
type PermanentSpec struct {
	Name            string
	Owner           ecs.PlayerID
	Controller      ecs.PlayerID
	Zone            ecs.ZoneKind
	Characteristics ecs.Characteristics
	Tapped          bool
	SummoningSick   bool
	Counters        counters.Counters
	Statics         []effects.StaticAbility
	Triggers        []rules.TriggerDeclaration
}

// Engine runs one game. Methods are safe to call from several goroutines but
// a game only makes sense driven by one; event listeners run while the engine
// is locked and must not call back into it.
type Engine struct {
	mu     sync.Mutex
	logger *zap.Logger
	opts   Options

	store      *ecs.Store
	catalog    *effects.Catalog
	projector  *layers.Projector
	combat     *combat.State
	calculator *combat.Calculator
	damage     *damage.Projector
	shields    damage.Shields
	index      *rules.Index
	detector   *rules.Detector
	bus        *rules.EventBus
	watchers   *rules.WatcherRegistry

	pending []rules.Activation
	lost    map[ecs.PlayerID]bool
}

// New creates an engine with an empty store.
func New(logger *zap.Logger, opts Options) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxReplacementIterations <= 0 {
		opts.MaxReplacementIterations = damage.DefaultMaxIterations
	}
	store := ecs.NewStore(logger.Named("store"))
	catalog := effects.NewCatalog(store, logger.Named("effects"))
	projector := layers.NewProjector(store, catalog, logger.Named("layers"))
	state := combat.NewState(store, projector, logger.Named("combat"), combat.WithAutoOrderBlockers(opts.AutoOrderBlockers))

	e := &Engine{
		logger:     logger,
		opts:       opts,
		store:      store,
		catalog:    catalog,
		projector:  projector,
		combat:     state,
		calculator: combat.NewCalculator(state, projector, logger.Named("combat")),
		damage:     damage.NewProjector(projector, logger.Named("damage"), damage.WithMaxIterations(opts.MaxReplacementIterations)),
		shields:    damage.Shields{},
		index:      rules.NewIndex(logger.Named("triggers")),
		detector:   rules.NewDetector(store, projector, logger.Named("triggers")),
		bus:        rules.NewEventBus(),
		watchers:   rules.NewWatcherRegistry(),
		lost:       make(map[ecs.PlayerID]bool),
	}
	watchers.Register(e.watchers)
	e.watchers.Attach(e.bus)
	return e
}

// Store exposes the store for reading.
func (e *Engine) Store() *ecs.Store {
	return e.store
}

// Catalog exposes the floating effect catalog for reading.
func (e *Engine) Catalog() *effects.Catalog {
	return e.catalog
}

// Events returns the bus every game event is published on.
func (e *Engine) Events() *rules.EventBus {
	return e.bus
}

// Watchers returns the registry of turn watchers.
func (e *Engine) Watchers() *rules.WatcherRegistry {
	return e.watchers
}

// Combat returns the combat state for reading.
func (e *Engine) Combat() *combat.State {
	return e.combat
}

// TriggerIndex returns the trigger index.
func (e *Engine) TriggerIndex() *rules.Index {
	return e.index
}

// View returns the projected view of obj.
func (e *Engine) View(obj ecs.Entity) (layers.View, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.projector.Project(obj)
}

// Battlefield returns the views of every permanent.
func (e *Engine) Battlefield() []layers.View {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.projector.ProjectAll()
}

// Shields returns a copy of the shield consumption state.
func (e *Engine) Shields() damage.Shields {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.shields.Copy()
}

// Lost reports whether player has lost the game.
func (e *Engine) Lost(player ecs.PlayerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lost[player]
}

// TakeTriggers returns the triggered abilities detected since the last call,
// in the order they go on the stack, and forgets them.
func (e *Engine) TakeTriggers() []rules.Activation {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := e.pending
	e.pending = nil
	return out
}

// AddPlayer adds a player in turn order. The first player added is active
// on turn one.
func (e *Engine) AddPlayer(id ecs.PlayerID, life int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if life <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStartingLife, life)
	}
	if err := e.store.AddPlayer(id, life); err != nil {
		return err
	}
	if e.store.Turn().Active == "" {
		e.store.SetTurn(ecs.Turn{Number: 1, Active: id, Step: ecs.StepPrecombatMain})
	}
	e.logger.Debug("player added", zap.String("player", string(id)), zap.Int("life", life))
	return nil
}

// CreatePermanent creates an object without any zone change event. Objects
// created on the battlefield are registered with the trigger index at once.
func (e *Engine) CreatePermanent(spec PermanentSpec) (ecs.Entity, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.store.Player(spec.Owner); !ok {
		return ecs.NoEntity, fmt.Errorf("%w: owner %q", ErrUnknownPlayer, spec.Owner)
	}
	if spec.Controller != "" {
		if _, ok := e.store.Player(spec.Controller); !ok {
			return ecs.NoEntity, fmt.Errorf("%w: controller %q", ErrUnknownPlayer, spec.Controller)
		}
	}
	obj := e.store.Create(ecs.ObjectSpec{
		Name:            spec.Name,
		Owner:           spec.Owner,
		Controller:      spec.Controller,
		Zone:            spec.Zone,
		Characteristics: spec.Characteristics,
		Tapped:          spec.Tapped,
		SummoningSick:   spec.SummoningSick,
		Counters:        spec.Counters,
	})
	if len(spec.Statics) > 0 {
		effects.SetStaticAbilities(e.store, obj, spec.Statics...)
	}
	if len(spec.Triggers) > 0 {
		rules.SetTriggers(e.store, obj, spec.Triggers...)
	}
	if spec.Zone == ecs.ZoneBattlefield {
		e.index.RegisterEntity(obj, spec.Triggers)
	}
	return obj, nil
}

// AddEffect appends a floating effect to the catalog and returns its id.
func (e *Engine) AddEffect(effect effects.FloatingEffect) string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.catalog.Add(effect)
}

// AddTargetedEffect checks the objects effect affects against requirement,
// as targets chosen by the effect's source, and adds the effect if they are
// legal.
func (e *Engine) AddTargetedEffect(effect effects.FloatingEffect, requirement targeting.TargetRequirement) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	selection := &targeting.TargetSelection{Requirement: requirement}
	for _, obj := range effect.Affected.Entities {
		selection.Targets = append(selection.Targets, targeting.ObjectTarget(obj))
	}
	source, _ := e.projector.Project(effect.Source)
	validator := targeting.NewTargetValidator(e.store, e.projector)
	if err := validator.ValidateTargetSelection(source, selection); err != nil {
		e.logger.Debug("effect targets refused",
			zap.String("source", effect.SourceName),
			zap.Error(err))
		return "", err
	}
	return e.catalog.Add(effect), nil
}

// MoveToZone moves obj and settles the consequences: triggers, effects that
// depended on it, combat membership and the trigger index.
func (e *Engine) MoveToZone(obj ecs.Entity, zone ecs.ZoneKind) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.store.Exists(obj) {
		return fmt.Errorf("%w: %d", ErrUnknownObject, obj)
	}
	lastKnown := e.projector.Snapshot()
	ev, _ := e.move(obj, zone)
	e.settle([]rules.Event{ev}, lastKnown)
	e.checkStateLocked()
	return nil
}

// move changes the zone of obj and returns the zone change event.
func (e *Engine) move(obj ecs.Entity, zone ecs.ZoneKind) (rules.Event, bool) {
	before, ok := e.store.Object(obj)
	if !ok {
		return rules.Event{}, false
	}
	controller := before.Controller
	if v, ok := e.projector.Project(obj); ok {
		controller = v.Controller
	}
	if before.Zone == ecs.ZoneBattlefield && zone != ecs.ZoneBattlefield {
		e.combat.RemoveFromCombat(obj)
	}
	from, _ := e.store.MoveTo(obj, zone)
	e.logger.Debug("zone change",
		zap.String("name", before.Name),
		zap.String("from_zone", from.String()),
		zap.String("to_zone", zone.String()))
	return rules.NewZoneChangeEvent(obj, controller, from, zone), true
}

// settle publishes events, keeps the trigger index in step with the zone
// changes among them and queues the triggered abilities. Entering permanents
// are registered before detection and leaving ones unregistered after it,
// so that both can see the event.
func (e *Engine) settle(events []rules.Event, lastKnown layers.Viewer) {
	if len(events) == 0 {
		return
	}
	for _, ev := range events {
		if ev.Type == rules.EventZoneChange && ev.To == ecs.ZoneBattlefield {
			e.index.RegisterEntity(ev.Target, rules.TriggersOf(e.store, ev.Target))
		}
	}

	found := e.detect(events, lastKnown)

	for _, ev := range events {
		if ev.LeftBattlefield() {
			e.index.UnregisterEntity(ev.Target)
		}
	}
	e.expire(effects.Moment{Kind: effects.MomentCheck})
	e.verifyIndex()

	e.bus.PublishBatch(events)
	e.pending = append(e.pending, found...)
}

func (e *Engine) detect(events []rules.Event, lastKnown layers.Viewer) []rules.Activation {
	var found, other []rules.Activation
	if e.opts.UseTriggerIndex {
		found = e.detector.Detect(events, e.index, lastKnown)
		if e.opts.VerifyTriggerIndex {
			other = e.detector.DetectWithoutIndex(events, lastKnown)
		}
	} else {
		found = e.detector.DetectWithoutIndex(events, lastKnown)
		if e.opts.VerifyTriggerIndex {
			other = e.detector.Detect(events, e.index, lastKnown)
		}
	}
	if e.opts.VerifyTriggerIndex && !slices.Equal(found, other) {
		e.logger.Error("trigger detection diverged",
			zap.Bool("indexed", e.opts.UseTriggerIndex),
			zap.Int("activations", len(found)),
			zap.Int("other_path", len(other)))
	}
	return found
}

func (e *Engine) verifyIndex() {
	if !e.opts.VerifyTriggerIndex {
		return
	}
	missing, stale := e.index.Drift(e.store)
	if len(missing) > 0 || len(stale) > 0 {
		e.logger.Error("trigger index drifted",
			zap.Int("missing", len(missing)),
			zap.Int("stale", len(stale)),
			zap.Int("registered", e.index.EntityCount()))
	}
}

// expire removes ended effects together with their shield state.
func (e *Engine) expire(m effects.Moment) []string {
	removed := e.catalog.Expire(m, e.store)
	e.shields.Forget(removed...)
	return removed
}

// emit publishes events that cannot change zones and queues their triggers.
func (e *Engine) emit(events ...rules.Event) {
	e.settle(events, nil)
}

func (e *Engine) requirePlayer(id ecs.PlayerID) error {
	if _, ok := e.store.Player(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, id)
	}
	return nil
}
