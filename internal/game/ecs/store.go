package ecs

import (
	"errors"
	"fmt"
	"sort"

	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/filter"
	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/counters"
)

var (
	// ErrDuplicatePlayer is returned when a player id is registered twice.
	ErrDuplicatePlayer = errors.New("player already exists")
	// ErrUnknownPlayer is returned for player ids the store does not know.
	ErrUnknownPlayer = errors.New("unknown player")
)

// Clock hands out strictly increasing timestamps. Zone entry and the effect
// catalog share one clock so static and floating effects order together.
type Clock interface {
	NextTimestamp() int64
}

// Store holds every game object as an entity with typed components, plus the
// player records and turn position.
type Store struct {
	world   donburi.World
	objects *donburi.Query
	logger  *zap.Logger

	players []Player
	turn    Turn
	clock   int64
	seq     uint64
}

// NewStore creates an empty store.
func NewStore(logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		world:   donburi.NewWorld(),
		objects: donburi.NewQuery(filter.Contains(IdentityComponent, LocationComponent)),
		logger:  logger,
	}
}

// NextTimestamp implements Clock.
func (s *Store) NextTimestamp() int64 {
	s.clock++
	return s.clock
}

// AddPlayer registers a player. Turn order is registration order.
func (s *Store) AddPlayer(id PlayerID, life int) error {
	if _, ok := s.Player(id); ok {
		return fmt.Errorf("add player %s: %w", id, ErrDuplicatePlayer)
	}
	s.players = append(s.players, Player{ID: id, Life: life})
	return nil
}

// Players returns the players in turn order.
func (s *Store) Players() []Player {
	return append([]Player(nil), s.players...)
}

// Player returns the record for id.
func (s *Store) Player(id PlayerID) (Player, bool) {
	for _, p := range s.players {
		if p.ID == id {
			return p, true
		}
	}
	return Player{}, false
}

// AdjustLife changes a player's life total by delta and returns the new total.
func (s *Store) AdjustLife(id PlayerID, delta int) (int, error) {
	for i := range s.players {
		if s.players[i].ID == id {
			s.players[i].Life += delta
			return s.players[i].Life, nil
		}
	}
	return 0, fmt.Errorf("adjust life of %s: %w", id, ErrUnknownPlayer)
}

// TurnOrderFrom returns every player starting with first and continuing in
// turn order. An unknown first player yields plain turn order.
func (s *Store) TurnOrderFrom(first PlayerID) []PlayerID {
	start := 0
	for i, p := range s.players {
		if p.ID == first {
			start = i
			break
		}
	}
	out := make([]PlayerID, 0, len(s.players))
	for i := range s.players {
		out = append(out, s.players[(start+i)%len(s.players)].ID)
	}
	return out
}

// Opponents returns every other player in turn order.
func (s *Store) Opponents(id PlayerID) []PlayerID {
	var out []PlayerID
	for _, p := range s.TurnOrderFrom(id) {
		if p != id {
			out = append(out, p)
		}
	}
	return out
}

// Turn returns the current turn position.
func (s *Store) Turn() Turn {
	return s.turn
}

// SetTurn replaces the turn position.
func (s *Store) SetTurn(turn Turn) {
	s.turn = turn
}

// SetStep moves to another step of the current turn.
func (s *Store) SetStep(step Step) {
	s.turn.Step = step
}

// Create adds a new object and returns its entity.
func (s *Store) Create(spec ObjectSpec) Entity {
	s.seq++
	e := s.world.Create(
		IdentityComponent,
		CharacteristicsComponent,
		ControlComponent,
		LocationComponent,
		CountersComponent,
		DamageComponent,
	)
	entry := s.world.Entry(e)
	controller := spec.Controller
	if controller == "" {
		controller = spec.Owner
	}
	IdentityComponent.SetValue(entry, Identity{Seq: s.seq, Name: spec.Name, Owner: spec.Owner})
	CharacteristicsComponent.SetValue(entry, spec.Characteristics.Clone())
	ControlComponent.SetValue(entry, Control{Player: controller})
	LocationComponent.SetValue(entry, Location{Zone: spec.Zone, Since: s.NextTimestamp()})
	CountersComponent.SetValue(entry, spec.Counters.Copy())
	if spec.Tapped {
		entry.AddComponent(TappedTag)
	}
	if spec.SummoningSick {
		entry.AddComponent(SummoningSickTag)
	}

	s.logger.Debug("object created",
		zap.Uint64("entity", uint64(e)),
		zap.String("name", spec.Name),
		zap.String("zone", spec.Zone.String()),
		zap.String("controller", string(controller)),
	)
	return e
}

// Exists reports whether e still refers to a live object.
func (s *Store) Exists(e Entity) bool {
	return e != NoEntity && s.world.Valid(e)
}

// Entry exposes the raw entry so other packages can attach their own
// component types. Returns false for dead entities.
func (s *Store) Entry(e Entity) (*donburi.Entry, bool) {
	if !s.Exists(e) {
		return nil, false
	}
	return s.world.Entry(e), true
}

// Object returns a copy of the object's components.
func (s *Store) Object(e Entity) (Object, bool) {
	entry, ok := s.Entry(e)
	if !ok {
		return Object{}, false
	}
	id := IdentityComponent.GetValue(entry)
	loc := LocationComponent.GetValue(entry)
	obj := Object{
		Entity:          e,
		Seq:             id.Seq,
		Name:            id.Name,
		Owner:           id.Owner,
		Controller:      ControlComponent.GetValue(entry).Player,
		Zone:            loc.Zone,
		ZoneSince:       loc.Since,
		Characteristics: CharacteristicsComponent.GetValue(entry).Clone(),
		Tapped:          entry.HasComponent(TappedTag),
		SummoningSick:   entry.HasComponent(SummoningSickTag),
		Counters:        CountersComponent.GetValue(entry).Copy(),
		Damage:          DamageComponent.GetValue(entry),
		AttachedTo:      NoEntity,
	}
	if entry.HasComponent(AttachmentComponent) {
		obj.AttachedTo = AttachmentComponent.GetValue(entry).To
	}
	return obj, true
}

// Zone returns the zone e is in.
func (s *Store) Zone(e Entity) (ZoneKind, bool) {
	entry, ok := s.Entry(e)
	if !ok {
		return 0, false
	}
	return LocationComponent.GetValue(entry).Zone, true
}

// InZone returns the entities in zone ordered by creation sequence.
func (s *Store) InZone(zone ZoneKind) []Entity {
	type seqEntity struct {
		seq uint64
		e   Entity
	}
	var found []seqEntity
	s.objects.Each(s.world, func(entry *donburi.Entry) {
		if LocationComponent.GetValue(entry).Zone == zone {
			found = append(found, seqEntity{seq: IdentityComponent.GetValue(entry).Seq, e: entry.Entity()})
		}
	})
	sort.Slice(found, func(i, j int) bool { return found[i].seq < found[j].seq })
	out := make([]Entity, len(found))
	for i, f := range found {
		out[i] = f.e
	}
	return out
}

// Battlefield returns the permanents on the battlefield in creation order.
func (s *Store) Battlefield() []Entity {
	return s.InZone(ZoneBattlefield)
}

// SetTapped taps or untaps a permanent. Returns false if nothing changed.
func (s *Store) SetTapped(e Entity, tapped bool) bool {
	return s.setTag(e, TappedTag, tapped)
}

// SetSummoningSick sets or clears summoning sickness.
func (s *Store) SetSummoningSick(e Entity, sick bool) bool {
	return s.setTag(e, SummoningSickTag, sick)
}

func (s *Store) setTag(e Entity, tag donburi.IComponentType, on bool) bool {
	entry, ok := s.Entry(e)
	if !ok || entry.HasComponent(tag) == on {
		return false
	}
	if on {
		entry.AddComponent(tag)
	} else {
		entry.RemoveComponent(tag)
	}
	return true
}

// SetController changes the base controller.
func (s *Store) SetController(e Entity, player PlayerID) bool {
	entry, ok := s.Entry(e)
	if !ok {
		return false
	}
	ControlComponent.SetValue(entry, Control{Player: player})
	return true
}

// AddCounters puts amount counters named name on e.
func (s *Store) AddCounters(e Entity, name string, amount int) bool {
	entry, ok := s.Entry(e)
	if !ok || amount <= 0 {
		return false
	}
	cs := CountersComponent.GetValue(entry).Copy()
	CountersComponent.SetValue(entry, cs.Add(name, amount))
	return true
}

// RemoveCounters removes up to amount counters and returns how many were removed.
func (s *Store) RemoveCounters(e Entity, name string, amount int) int {
	entry, ok := s.Entry(e)
	if !ok {
		return 0
	}
	cs := CountersComponent.GetValue(entry).Copy()
	removed := cs.Remove(name, amount)
	CountersComponent.SetValue(entry, cs)
	return removed
}

// MarkDamage adds marked damage. Deathtouch sticks once any deathtouch
// source has dealt damage.
func (s *Store) MarkDamage(e Entity, amount int, deathtouch bool) bool {
	entry, ok := s.Entry(e)
	if !ok || amount <= 0 {
		return false
	}
	d := DamageComponent.GetValue(entry)
	d.Amount += amount
	d.Deathtouch = d.Deathtouch || deathtouch
	DamageComponent.SetValue(entry, d)
	return true
}

// ClearDamage removes all marked damage from every object.
func (s *Store) ClearDamage() {
	var marked []Entity
	s.objects.Each(s.world, func(entry *donburi.Entry) {
		if DamageComponent.GetValue(entry) != (MarkedDamage{}) {
			marked = append(marked, entry.Entity())
		}
	})
	for _, e := range marked {
		DamageComponent.SetValue(s.world.Entry(e), MarkedDamage{})
	}
}

// Attach attaches e to target. Passing NoEntity detaches.
func (s *Store) Attach(e, target Entity) bool {
	entry, ok := s.Entry(e)
	if !ok {
		return false
	}
	if target == NoEntity {
		if entry.HasComponent(AttachmentComponent) {
			entry.RemoveComponent(AttachmentComponent)
		}
		return true
	}
	if !s.Exists(target) {
		return false
	}
	if !entry.HasComponent(AttachmentComponent) {
		entry.AddComponent(AttachmentComponent)
	}
	AttachmentComponent.SetValue(entry, Attachment{To: target})
	return true
}

// MoveTo moves e to zone. The object becomes a new object: it loses tap
// state, counters, damage and attachment, control reverts to its owner, and
// it gets a fresh zone timestamp. Anything attached to it is unattached.
// Returns the zone it came from.
func (s *Store) MoveTo(e Entity, zone ZoneKind) (ZoneKind, bool) {
	entry, ok := s.Entry(e)
	if !ok {
		return 0, false
	}
	from := LocationComponent.GetValue(entry).Zone
	owner := IdentityComponent.GetValue(entry).Owner

	LocationComponent.SetValue(entry, Location{Zone: zone, Since: s.NextTimestamp()})
	ControlComponent.SetValue(entry, Control{Player: owner})
	CountersComponent.SetValue(entry, counters.Counters(nil))
	DamageComponent.SetValue(entry, MarkedDamage{})
	s.setTag(e, TappedTag, false)
	s.setTag(e, SummoningSickTag, zone == ZoneBattlefield)
	s.Attach(e, NoEntity)

	if from == ZoneBattlefield {
		for _, other := range s.attachedTo(e) {
			s.Attach(other, NoEntity)
		}
	}

	s.logger.Debug("object moved",
		zap.Uint64("entity", uint64(e)),
		zap.String("from_zone", from.String()),
		zap.String("to_zone", zone.String()),
	)
	return from, true
}

func (s *Store) attachedTo(target Entity) []Entity {
	var out []Entity
	donburi.NewQuery(filter.Contains(AttachmentComponent)).Each(s.world, func(entry *donburi.Entry) {
		if AttachmentComponent.GetValue(entry).To == target {
			out = append(out, entry.Entity())
		}
	})
	return out
}

// Remove deletes the object entirely (tokens that left the battlefield).
func (s *Store) Remove(e Entity) bool {
	if !s.Exists(e) {
		return false
	}
	s.world.Remove(e)
	return true
}
