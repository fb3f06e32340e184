package combat

import (
	"slices"

	"go.uber.org/zap"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/layers"
)

// ValidateDeclarations checks the declarations made so far against menace and
// the must-attack, must-block and must-be-blocked requirements. Requirements
// only count for creatures that could have met them: paying a cost is never
// required. Blocking requirements are only checked once blockers are being
// declared.
func (s *State) ValidateDeclarations() Report {
	var report Report
	if !s.active {
		return report
	}

	for _, g := range s.groups {
		av, ok := s.viewer.Project(g.Attacker)
		if ok && av.Has(ecs.KeywordMenace) && len(g.Blockers) == 1 {
			report.MenaceViolations = append(report.MenaceViolations, g.Attacker)
		}
	}

	for _, e := range s.store.Battlefield() {
		v, ok := s.viewer.Project(e)
		if !ok || !v.MustAttack || s.IsAttacking(e) || v.Controller != s.attackingPlayer {
			continue
		}
		if len(s.defenders) > 0 && s.attackRestrictions(v, s.attackingPlayer).Verdict == Valid {
			report.MustAttackViolations = append(report.MustAttackViolations, e)
		}
	}

	if s.machine.Current() == StepDeclareBlockers {
		candidates := s.eligibleViews()
		report.MustBlockViolations = s.mustBlockViolations(candidates)
		report.MustBeBlockedViolations = s.mustBeBlockedViolations(candidates)
	}

	if !report.Valid() {
		s.logger.Debug("combat requirements violated",
			zap.Int("menace", len(report.MenaceViolations)),
			zap.Int("must_attack", len(report.MustAttackViolations)),
			zap.Int("must_block", len(report.MustBlockViolations)),
			zap.Int("must_be_blocked", len(report.MustBeBlockedViolations)))
	}
	return report
}

// eligibleViews projects the creatures of the blocker snapshot that are
// still the same objects, in battlefield order.
func (s *State) eligibleViews() []layers.View {
	var out []layers.View
	for _, e := range s.store.Battlefield() {
		since, ok := s.eligible[e]
		if !ok {
			continue
		}
		v, ok := s.viewer.Project(e)
		if !ok || v.ZoneSince != since || !v.IsCreature() || !s.isDefending(v.Controller) {
			continue
		}
		out = append(out, v)
	}
	return out
}

// couldBlock reports whether the blocker could legally block attacker
// without paying anything, ignoring what it currently blocks.
func (s *State) couldBlock(bv layers.View, attacker ecs.Entity) bool {
	g, ok := s.byAttacker[attacker]
	if !ok {
		return false
	}
	av, ok := s.viewer.Project(attacker)
	if !ok {
		return false
	}
	return s.blockRestrictions(bv, av, g, bv.Controller, true).Verdict == Valid
}

func (s *State) mustBlockViolations(candidates []layers.View) []ecs.Entity {
	var out []ecs.Entity
	for _, bv := range candidates {
		if s.violatesMustBlock(bv) {
			out = append(out, bv.Entity)
		}
	}
	return out
}

func (s *State) violatesMustBlock(bv layers.View) bool {
	current, blocking := s.blocking[bv.Entity]
	if len(bv.MustBlockAttackers) > 0 && !(blocking && slices.Contains(bv.MustBlockAttackers, current)) {
		for _, required := range bv.MustBlockAttackers {
			if s.couldBlock(bv, required) {
				return true
			}
		}
	}
	if bv.MustBlock && !blocking {
		for _, g := range s.groups {
			if s.couldBlock(bv, g.Attacker) {
				return true
			}
		}
	}
	return false
}

func (s *State) mustBeBlockedViolations(candidates []layers.View) []ecs.Entity {
	var out []ecs.Entity
	for _, g := range s.groups {
		if g.Blocked {
			continue
		}
		av, ok := s.viewer.Project(g.Attacker)
		if !ok || !av.MustBeBlockedByAll {
			continue
		}
		for _, bv := range candidates {
			if s.couldBlock(bv, g.Attacker) {
				out = append(out, g.Attacker)
				break
			}
		}
	}
	return out
}
