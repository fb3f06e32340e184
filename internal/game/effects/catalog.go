package effects

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// Affected is the set of objects a floating effect applies to.
//
// Entities is resolved once when the effect is created. When Continuous is
// set, Filter is re-evaluated every projection instead ("creatures you
// control have flying for as long as ..."). A Filter without Continuous must
// be locked into Entities before the effect is added to the catalog.
type Affected struct {
	Entities   []ecs.Entity
	Filter     *Filter
	Continuous bool
}

// AffectEntities targets a fixed set of objects.
func AffectEntities(entities ...ecs.Entity) Affected {
	return Affected{Entities: append([]ecs.Entity(nil), entities...)}
}

// AffectMatching selects objects by filter once, at creation.
func AffectMatching(f *Filter) Affected {
	return Affected{Filter: f}
}

// AffectContinuously re-evaluates f every projection.
func AffectContinuously(f *Filter) Affected {
	return Affected{Filter: f, Continuous: true}
}

// NeedsLock reports whether the filter still has to be resolved into entities.
func (a Affected) NeedsLock() bool {
	return a.Filter != nil && !a.Continuous
}

// Contains reports whether e is one of the fixed entities.
func (a Affected) Contains(e ecs.Entity) bool {
	for _, candidate := range a.Entities {
		if candidate == e {
			return true
		}
	}
	return false
}

// FloatingEffect is a temporary continuous effect created by a resolved
// spell or ability. It is never mutated once in the catalog.
type FloatingEffect struct {
	ID           string
	Modification Modification
	Affected     Affected
	Duration     Duration
	Source       ecs.Entity
	SourceName   string
	Controller   ecs.PlayerID
	Timestamp    int64
}

// Layer is the layer of the effect's modification.
func (e FloatingEffect) Layer() Layer {
	return e.Modification.Layer()
}

// Catalog holds the active floating effects in timestamp order.
type Catalog struct {
	mu      sync.RWMutex
	effects []FloatingEffect
	clock   ecs.Clock
	logger  *zap.Logger
}

// NewCatalog creates an empty catalog that stamps effects with clock.
func NewCatalog(clock ecs.Clock, logger *zap.Logger) *Catalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Catalog{clock: clock, logger: logger}
}

// Add registers a floating effect and returns its identifier. A missing id
// or timestamp is assigned here.
func (c *Catalog) Add(effect FloatingEffect) string {
	if effect.Modification == nil {
		panic("effects: floating effect without modification")
	}
	if effect.Affected.NeedsLock() {
		panic(fmt.Sprintf("effects: affected filter of %T was not locked in", effect.Modification))
	}
	if effect.ID == "" {
		effect.ID = uuid.NewString()
	}
	if effect.Timestamp == 0 {
		effect.Timestamp = c.clock.NextTimestamp()
	}
	effect.Affected.Entities = append([]ecs.Entity(nil), effect.Affected.Entities...)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.effects = append(c.effects, effect)
	sort.SliceStable(c.effects, func(i, j int) bool {
		return c.effects[i].Timestamp < c.effects[j].Timestamp
	})

	c.logger.Debug("floating effect added",
		zap.String("effect_id", effect.ID),
		zap.String("modification", fmt.Sprintf("%T", effect.Modification)),
		zap.String("layer", effect.Layer().String()),
		zap.String("duration", string(effect.Duration.Kind)),
		zap.String("source", effect.SourceName),
		zap.Int64("timestamp", effect.Timestamp),
	)
	return effect.ID
}

// Remove removes an effect by ID.
func (c *Catalog) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, e := range c.effects {
		if e.ID == id {
			c.effects = append(c.effects[:i], c.effects[i+1:]...)
			return true
		}
	}
	return false
}

// Get returns the effect with the given id.
func (c *Catalog) Get(id string) (FloatingEffect, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, e := range c.effects {
		if e.ID == id {
			return e, true
		}
	}
	return FloatingEffect{}, false
}

// Len returns the number of active effects.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.effects)
}

// Active returns a snapshot of every effect in timestamp order.
func (c *Catalog) Active() []FloatingEffect {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]FloatingEffect(nil), c.effects...)
}

// Layered returns the effects that take part in projection.
func (c *Catalog) Layered() []FloatingEffect {
	var out []FloatingEffect
	for _, e := range c.Active() {
		if e.Layer() != LayerNone {
			out = append(out, e)
		}
	}
	return out
}

// Preventions returns the event-time effects in registration order.
func (c *Catalog) Preventions() []FloatingEffect {
	var out []FloatingEffect
	for _, e := range c.Active() {
		if _, ok := e.Modification.(Prevention); ok {
			out = append(out, e)
		}
	}
	return out
}

// RemoveFromSource removes every effect created by source and returns their ids.
func (c *Catalog) RemoveFromSource(source ecs.Entity) []string {
	return c.removeWhere(func(e FloatingEffect) bool { return e.Source == source })
}

// Expire removes every effect whose duration has ended at moment m and
// returns the removed ids in timestamp order.
func (c *Catalog) Expire(m Moment, store *ecs.Store) []string {
	removed := c.removeWhere(func(e FloatingEffect) bool { return e.Ended(m, store) })
	if len(removed) > 0 {
		c.logger.Debug("floating effects expired",
			zap.String("moment", string(m.Kind)),
			zap.Strings("effect_ids", removed),
		)
	}
	return removed
}

func (c *Catalog) removeWhere(pred func(FloatingEffect) bool) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var removed []string
	kept := c.effects[:0]
	for _, e := range c.effects {
		if pred(e) {
			removed = append(removed, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	c.effects = kept
	return removed
}
