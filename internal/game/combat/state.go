package combat

import (
	"context"
	"fmt"
	"slices"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/layers"
	"github.com/magefree/mage-rules-go/internal/game/mana"
)

const (
	StepDeclareAttackers = "declare_attackers"
	StepDeclareBlockers  = "declare_blockers"

	eventFinishAttackers = "finish_attackers"
)

// Defender is what an attacking creature attacks: a player, or a
// planeswalker or battle.
type Defender struct {
	Player    ecs.PlayerID
	Permanent ecs.Entity
}

// AttackPlayer attacks a player.
func AttackPlayer(p ecs.PlayerID) Defender {
	return Defender{Player: p}
}

// AttackPermanent attacks a planeswalker or a battle.
func AttackPermanent(e ecs.Entity) Defender {
	return Defender{Permanent: e}
}

// IsPermanent reports whether a permanent is being attacked.
func (d Defender) IsPermanent() bool {
	return d.Player == "" && d.Permanent != ecs.NoEntity
}

// Group is one attacking creature with what it attacks and what blocks it.
type Group struct {
	Attacker        ecs.Entity
	Defender        Defender
	DefendingPlayer ecs.PlayerID
	Blockers        []ecs.Entity
	// Blocked stays set once a blocker was declared, even if every blocker
	// is later removed from combat.
	Blocked bool
	// Order is the damage assignment order; Ordered tells whether one has
	// been recorded at all.
	Order   []ecs.Entity
	Ordered bool
	Paid    mana.Cost
}

func (g *Group) clone() Group {
	out := *g
	out.Blockers = slices.Clone(g.Blockers)
	out.Order = slices.Clone(g.Order)
	return out
}

// Option configures a State.
type Option func(*State)

// WithAutoOrderBlockers records blockers in declaration order as the damage
// assignment order, so no explicit SetDamageAssignmentOrder call is needed.
func WithAutoOrderBlockers(enabled bool) Option {
	return func(s *State) {
		s.autoOrder = enabled
	}
}

// State validates and records the declarations of one combat. Its step
// machine only knows two states: declare attackers, then declare blockers.
type State struct {
	store     *ecs.Store
	viewer    layers.Viewer
	logger    *zap.Logger
	machine   *fsm.FSM
	autoOrder bool

	active          bool
	attackingPlayer ecs.PlayerID
	defenders       []ecs.PlayerID
	groups          []*Group
	byAttacker      map[ecs.Entity]*Group
	blocking        map[ecs.Entity]ecs.Entity
	blockPaid       map[ecs.Entity]mana.Cost
	eligible        map[ecs.Entity]int64
	firstStrikers   map[ecs.Entity]bool
	removed         map[ecs.Entity]bool
}

// NewState creates an idle combat state. The store is only read.
func NewState(store *ecs.Store, viewer layers.Viewer, logger *zap.Logger, opts ...Option) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &State{
		store:  store,
		viewer: viewer,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.machine = fsm.NewFSM(
		StepDeclareAttackers,
		fsm.Events{
			{Name: eventFinishAttackers, Src: []string{StepDeclareAttackers}, Dst: StepDeclareBlockers},
		},
		fsm.Callbacks{
			"enter_" + StepDeclareBlockers: func(_ context.Context, _ *fsm.Event) {
				s.snapshotEligibleBlockers()
			},
		},
	)
	s.reset()
	return s
}

func (s *State) reset() {
	s.active = false
	s.attackingPlayer = ""
	s.defenders = nil
	s.groups = nil
	s.byAttacker = make(map[ecs.Entity]*Group)
	s.blocking = make(map[ecs.Entity]ecs.Entity)
	s.blockPaid = make(map[ecs.Entity]mana.Cost)
	s.eligible = make(map[ecs.Entity]int64)
	s.firstStrikers = make(map[ecs.Entity]bool)
	s.removed = make(map[ecs.Entity]bool)
	s.machine.SetState(StepDeclareAttackers)
}

// Begin starts a combat with attacker as the attacking player. Any previous
// combat is discarded.
func (s *State) Begin(attacker ecs.PlayerID) {
	s.reset()
	s.active = true
	s.attackingPlayer = attacker
	s.defenders = s.store.Opponents(attacker)
	s.logger.Debug("combat started",
		zap.String("attacking_player", string(attacker)),
		zap.Int("defenders", len(s.defenders)))
}

// End closes the combat and forgets every declaration.
func (s *State) End() {
	if s.active {
		s.logger.Debug("combat ended", zap.Int("attackers", len(s.groups)))
	}
	s.reset()
}

// Active reports whether a combat is in progress.
func (s *State) Active() bool {
	return s.active
}

// Step returns the current declaration step.
func (s *State) Step() string {
	return s.machine.Current()
}

// AttackingPlayer returns the attacking player of the current combat.
func (s *State) AttackingPlayer() ecs.PlayerID {
	return s.attackingPlayer
}

// DefendingPlayers returns the opponents of the attacking player.
func (s *State) DefendingPlayers() []ecs.PlayerID {
	return slices.Clone(s.defenders)
}

// FinishAttackers moves to the declare blockers step and takes the snapshot
// of creatures that may block in this combat.
func (s *State) FinishAttackers() error {
	if !s.active {
		return fmt.Errorf("%w: no combat in progress", ErrWrongStep)
	}
	if err := s.machine.Event(context.Background(), eventFinishAttackers); err != nil {
		return fmt.Errorf("%w: %v", ErrWrongStep, err)
	}
	s.logger.Debug("attackers declared",
		zap.Int("attackers", len(s.groups)),
		zap.Int("eligible_blockers", len(s.eligible)))
	return nil
}

func (s *State) snapshotEligibleBlockers() {
	s.eligible = make(map[ecs.Entity]int64)
	for _, e := range s.store.Battlefield() {
		if obj, ok := s.store.Object(e); ok {
			s.eligible[e] = obj.ZoneSince
		}
	}
}

// CanDeclareAttacker checks whether player may declare e as an attacker.
func (s *State) CanDeclareAttacker(e ecs.Entity, player ecs.PlayerID) Result {
	if !s.active || s.machine.Current() != StepDeclareAttackers {
		return invalid(ReasonWrongStep)
	}
	if player != s.attackingPlayer {
		return invalid(ReasonNotActivePlayer)
	}
	v, ok := s.viewer.Project(e)
	if !ok || !v.OnBattlefield() {
		return invalid(ReasonUnknownEntity)
	}
	return s.attackRestrictions(v, player)
}

func (s *State) attackRestrictions(v layers.View, player ecs.PlayerID) Result {
	switch {
	case !v.IsCreature():
		return invalid(ReasonNotCreature)
	case v.Controller != player:
		return invalid(ReasonNotController)
	case v.CantAttack:
		return invalid(ReasonCantAttack)
	case v.Tapped:
		return invalid(ReasonTapped)
	case v.SummoningSick && !v.Has(ecs.KeywordHaste):
		return invalid(ReasonSummoningSick)
	case v.Has(ecs.KeywordDefender):
		return invalid(ReasonDefender)
	}
	if _, attacking := s.byAttacker[v.Entity]; attacking || s.removed[v.Entity] {
		return invalid(ReasonAlreadyAttacking)
	}
	return costOrValid(v.AttackCost)
}

// DeclareAttacker records e as attacking defender. When the check asks for a
// cost, the declaration only goes through if paid covers it; otherwise the
// RequiresCost result is returned unchanged and nothing is recorded.
func (s *State) DeclareAttacker(e ecs.Entity, player ecs.PlayerID, defender Defender, paid mana.Cost) Result {
	res := s.CanDeclareAttacker(e, player)
	if res.Verdict == Invalid || (res.Verdict == RequiresCost && !paid.Covers(res.Costs)) {
		s.logger.Debug("attacker refused",
			zap.Uint64("entity", uint64(e)),
			zap.String("verdict", res.Verdict.String()),
			zap.String("reason", string(res.Reason)))
		return res
	}
	defending, ok := s.defendingPlayer(defender)
	if !ok {
		return invalid(ReasonInvalidDefender)
	}

	g := &Group{
		Attacker:        e,
		Defender:        defender,
		DefendingPlayer: defending,
	}
	if res.Verdict == RequiresCost {
		g.Paid = res.Costs
	}
	s.groups = append(s.groups, g)
	s.byAttacker[e] = g
	s.logger.Debug("attacker declared",
		zap.Uint64("entity", uint64(e)),
		zap.String("defending_player", string(defending)),
		zap.Bool("permanent", defender.IsPermanent()))
	return valid()
}

// defendingPlayer resolves who defends against an attack on d. Battles are
// defended by their controller.
func (s *State) defendingPlayer(d Defender) (ecs.PlayerID, bool) {
	if !d.IsPermanent() {
		return d.Player, s.isDefending(d.Player)
	}
	v, ok := s.viewer.Project(d.Permanent)
	if !ok || !v.OnBattlefield() {
		return "", false
	}
	if !v.HasType(ecs.TypePlaneswalker) && !v.HasType(ecs.TypeBattle) {
		return "", false
	}
	return v.Controller, s.isDefending(v.Controller)
}

func (s *State) isDefending(p ecs.PlayerID) bool {
	return slices.Contains(s.defenders, p)
}

// CanDeclareBlocker checks whether player may declare blocker as blocking
// attacker.
func (s *State) CanDeclareBlocker(blocker, attacker ecs.Entity, player ecs.PlayerID) Result {
	if !s.active || s.machine.Current() != StepDeclareBlockers {
		return invalid(ReasonWrongStep)
	}
	if !s.isDefending(player) {
		return invalid(ReasonNotDefendingPlayer)
	}
	bv, ok := s.viewer.Project(blocker)
	if !ok || !bv.OnBattlefield() {
		return invalid(ReasonUnknownEntity)
	}
	g, attacking := s.byAttacker[attacker]
	if !attacking {
		return s.blockRestrictions(bv, layers.View{}, nil, player, false)
	}
	av, ok := s.viewer.Project(attacker)
	if !ok {
		return s.blockRestrictions(bv, layers.View{}, nil, player, false)
	}
	return s.blockRestrictions(bv, av, g, player, false)
}

// blockRestrictions runs every blocker check after the step checks. A nil
// group means the attacker is not attacking. With ignoreCurrent the
// blocker's existing block is disregarded, which is how requirements ask
// whether a creature could have blocked.
func (s *State) blockRestrictions(bv, av layers.View, g *Group, player ecs.PlayerID, ignoreCurrent bool) Result {
	switch {
	case !bv.IsCreature():
		return invalid(ReasonNotCreature)
	case bv.Controller != player:
		return invalid(ReasonNotController)
	}
	if since, ok := s.eligible[bv.Entity]; !ok || since != bv.ZoneSince {
		return invalid(ReasonNotEligible)
	}
	switch {
	case bv.Tapped:
		return invalid(ReasonTapped)
	case bv.CantBlock:
		return invalid(ReasonCantBlock)
	case g == nil:
		return invalid(ReasonNotAttacking)
	case g.DefendingPlayer != player:
		return invalid(ReasonNotAttackingYou)
	case av.CantBeBlocked:
		return invalid(ReasonUnblockable)
	}
	if reason := evasion(av, bv); reason != ReasonNone {
		return invalid(reason)
	}
	if !ignoreCurrent {
		if current, ok := s.blocking[bv.Entity]; ok {
			if current == av.Entity {
				return invalid(ReasonAlreadyBlocking)
			}
			return invalid(ReasonBlockingAnother)
		}
	}
	return costOrValid(bv.BlockCost)
}

// evasion checks each evasion ability of the attacker on its own; the first
// one the blocker fails decides the reason.
func evasion(attacker, blocker layers.View) Reason {
	artifact := blocker.HasType(ecs.TypeArtifact)
	switch {
	case attacker.Has(ecs.KeywordFlying) && !blocker.Has(ecs.KeywordFlying) && !blocker.Has(ecs.KeywordReach):
		return ReasonFlying
	case attacker.Has(ecs.KeywordShadow) != blocker.Has(ecs.KeywordShadow):
		return ReasonShadow
	case attacker.Has(ecs.KeywordFear) && !artifact && !blocker.Colors.Has(ecs.Black):
		return ReasonFear
	case attacker.Has(ecs.KeywordIntimidate) && !artifact && !blocker.Colors.Shares(attacker.Colors):
		return ReasonIntimidate
	case attacker.Has(ecs.KeywordHorsemanship) && !blocker.Has(ecs.KeywordHorsemanship):
		return ReasonHorsemanship
	case !attacker.BlockableOnlyBy.Colorless() && !blocker.Colors.Shares(attacker.BlockableOnlyBy):
		return ReasonBlockerColor
	case attacker.ProtectedFrom(blocker):
		return ReasonProtection
	}
	return ReasonNone
}

// DeclareBlocker records blocker as blocking attacker, with the same cost
// handling as DeclareAttacker.
func (s *State) DeclareBlocker(blocker, attacker ecs.Entity, player ecs.PlayerID, paid mana.Cost) Result {
	res := s.CanDeclareBlocker(blocker, attacker, player)
	if res.Verdict == Invalid || (res.Verdict == RequiresCost && !paid.Covers(res.Costs)) {
		s.logger.Debug("blocker refused",
			zap.Uint64("blocker", uint64(blocker)),
			zap.Uint64("attacker", uint64(attacker)),
			zap.String("verdict", res.Verdict.String()),
			zap.String("reason", string(res.Reason)))
		return res
	}

	g := s.byAttacker[attacker]
	g.Blockers = append(g.Blockers, blocker)
	g.Blocked = true
	if s.autoOrder {
		g.Order = append(g.Order, blocker)
		g.Ordered = true
	}
	s.blocking[blocker] = attacker
	if res.Verdict == RequiresCost {
		s.blockPaid[blocker] = res.Costs
	}
	s.logger.Debug("blocker declared",
		zap.Uint64("blocker", uint64(blocker)),
		zap.Uint64("attacker", uint64(attacker)),
		zap.String("player", string(player)))
	return valid()
}

// SetDamageAssignmentOrder records the order in which attacker assigns its
// damage among its blockers. order must be a permutation of the blockers.
func (s *State) SetDamageAssignmentOrder(attacker ecs.Entity, order []ecs.Entity) error {
	g, ok := s.byAttacker[attacker]
	if !ok {
		return fmt.Errorf("%w: attacker %d", ErrNotInCombat, attacker)
	}
	if len(order) != len(g.Blockers) {
		return fmt.Errorf("%w: %d entries for %d blockers", ErrInvalidOrder, len(order), len(g.Blockers))
	}
	seen := make(map[ecs.Entity]bool, len(order))
	for _, b := range order {
		if seen[b] || !slices.Contains(g.Blockers, b) {
			return fmt.Errorf("%w: unexpected blocker %d", ErrInvalidOrder, b)
		}
		seen[b] = true
	}
	g.Order = slices.Clone(order)
	g.Ordered = true
	s.logger.Debug("damage assignment order set",
		zap.Uint64("attacker", uint64(attacker)),
		zap.Int("blockers", len(order)))
	return nil
}

// RemoveFromCombat takes e out of combat. An attacker it blocked stays
// blocked. It reports whether e was in combat.
func (s *State) RemoveFromCombat(e ecs.Entity) bool {
	if g, ok := s.byAttacker[e]; ok {
		delete(s.byAttacker, e)
		s.groups = slices.DeleteFunc(s.groups, func(other *Group) bool { return other == g })
		s.removed[e] = true
		s.logger.Debug("attacker removed from combat", zap.Uint64("entity", uint64(e)))
		return true
	}
	attacker, ok := s.blocking[e]
	if !ok {
		return false
	}
	delete(s.blocking, e)
	if g, ok := s.byAttacker[attacker]; ok {
		g.Blockers = slices.DeleteFunc(g.Blockers, func(b ecs.Entity) bool { return b == e })
		g.Order = slices.DeleteFunc(g.Order, func(b ecs.Entity) bool { return b == e })
	}
	s.removed[e] = true
	s.logger.Debug("blocker removed from combat", zap.Uint64("entity", uint64(e)))
	return true
}

// MarkFirstStrikeDamage remembers the creatures that dealt damage in the
// first strike damage step.
func (s *State) MarkFirstStrikeDamage(entities ...ecs.Entity) {
	for _, e := range entities {
		s.firstStrikers[e] = true
	}
}

// DealtFirstStrikeDamage reports whether e dealt first strike damage.
func (s *State) DealtFirstStrikeDamage(e ecs.Entity) bool {
	return s.firstStrikers[e]
}

// Groups returns copies of the combat groups in declaration order.
func (s *State) Groups() []Group {
	out := make([]Group, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g.clone())
	}
	return out
}

// Group returns a copy of the group of attacker.
func (s *State) Group(attacker ecs.Entity) (Group, bool) {
	g, ok := s.byAttacker[attacker]
	if !ok {
		return Group{}, false
	}
	return g.clone(), true
}

// Attackers returns the attacking creatures in declaration order.
func (s *State) Attackers() []ecs.Entity {
	out := make([]ecs.Entity, 0, len(s.groups))
	for _, g := range s.groups {
		out = append(out, g.Attacker)
	}
	return out
}

// IsAttacking reports whether e is an attacking creature.
func (s *State) IsAttacking(e ecs.Entity) bool {
	_, ok := s.byAttacker[e]
	return ok
}

// Blocking returns the attacker e is blocking.
func (s *State) Blocking(e ecs.Entity) (ecs.Entity, bool) {
	attacker, ok := s.blocking[e]
	return attacker, ok
}

// Blockers returns the creatures blocking attacker in declaration order.
func (s *State) Blockers(attacker ecs.Entity) []ecs.Entity {
	if g, ok := s.byAttacker[attacker]; ok {
		return slices.Clone(g.Blockers)
	}
	return nil
}

// IsBlocked reports whether attacker was blocked.
func (s *State) IsBlocked(attacker ecs.Entity) bool {
	g, ok := s.byAttacker[attacker]
	return ok && g.Blocked
}

// DamageOrder returns the damage assignment order of attacker and whether
// one was recorded.
func (s *State) DamageOrder(attacker ecs.Entity) ([]ecs.Entity, bool) {
	g, ok := s.byAttacker[attacker]
	if !ok || !g.Ordered {
		return nil, false
	}
	return slices.Clone(g.Order), true
}

// Combatants returns every attacking and blocking creature.
func (s *State) Combatants() []ecs.Entity {
	out := s.Attackers()
	for _, g := range s.groups {
		out = append(out, g.Blockers...)
	}
	return out
}
