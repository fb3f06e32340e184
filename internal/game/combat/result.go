package combat

import (
	"errors"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/mana"
)

var (
	// ErrWrongStep is returned when a step transition is requested out of order.
	ErrWrongStep = errors.New("wrong combat step")
	// ErrNotInCombat is returned for operations on creatures that are not
	// attacking or blocking.
	ErrNotInCombat = errors.New("creature is not in combat")
	// ErrInvalidOrder is returned when a damage assignment order is not a
	// permutation of the attacker's blockers.
	ErrInvalidOrder = errors.New("invalid damage assignment order")
	// ErrInvalidAssignment is returned by ValidateAssignment.
	ErrInvalidAssignment = errors.New("invalid damage assignment")
)

// Verdict is the outcome class of a declaration check.
type Verdict int

const (
	Valid Verdict = iota
	Invalid
	RequiresCost
)

func (v Verdict) String() string {
	switch v {
	case Valid:
		return "valid"
	case Invalid:
		return "invalid"
	case RequiresCost:
		return "requires_cost"
	default:
		return "unknown"
	}
}

// Reason tells the caller why a declaration was refused.
type Reason string

const (
	ReasonNone               Reason = ""
	ReasonWrongStep          Reason = "wrong_step"
	ReasonNotActivePlayer    Reason = "not_active_player"
	ReasonNotDefendingPlayer Reason = "not_defending_player"
	ReasonUnknownEntity      Reason = "unknown_entity"
	ReasonNotCreature        Reason = "not_creature"
	ReasonNotController      Reason = "not_controller"
	ReasonCantAttack         Reason = "cant_attack"
	ReasonTapped             Reason = "tapped"
	ReasonSummoningSick      Reason = "summoning_sick"
	ReasonDefender           Reason = "defender"
	ReasonAlreadyAttacking   Reason = "already_attacking"
	ReasonInvalidDefender    Reason = "invalid_defender"
	ReasonNotEligible        Reason = "not_eligible_blocker"
	ReasonCantBlock          Reason = "cant_block"
	ReasonNotAttacking       Reason = "not_attacking"
	ReasonNotAttackingYou    Reason = "not_attacking_you"
	ReasonUnblockable        Reason = "unblockable"
	ReasonFlying             Reason = "flying"
	ReasonShadow             Reason = "shadow"
	ReasonFear               Reason = "fear"
	ReasonIntimidate         Reason = "intimidate"
	ReasonHorsemanship       Reason = "horsemanship"
	ReasonBlockerColor       Reason = "blocker_color"
	ReasonProtection         Reason = "protection"
	ReasonAlreadyBlocking    Reason = "already_blocking"
	ReasonBlockingAnother    Reason = "blocking_another"
	ReasonCostNotPaid        Reason = "cost_not_paid"
)

// Result is the answer to CanDeclareAttacker and CanDeclareBlocker.
type Result struct {
	Verdict Verdict
	Reason  Reason
	// Costs is what must be paid before the declaration is legal. It is only
	// set when Verdict is RequiresCost.
	Costs mana.Cost
}

// OK reports whether the declaration is legal as is.
func (r Result) OK() bool {
	return r.Verdict == Valid
}

func valid() Result {
	return Result{Verdict: Valid}
}

func invalid(reason Reason) Result {
	return Result{Verdict: Invalid, Reason: reason}
}

func costOrValid(cost mana.Cost) Result {
	if cost.IsZero() {
		return valid()
	}
	return Result{Verdict: RequiresCost, Costs: cost}
}

// Report collects the violations of requirements that only make sense once
// every declaration of a step is known.
type Report struct {
	MenaceViolations        []ecs.Entity
	MustAttackViolations    []ecs.Entity
	MustBlockViolations     []ecs.Entity
	MustBeBlockedViolations []ecs.Entity
}

// Valid reports whether the report is free of violations.
func (r Report) Valid() bool {
	return len(r.MenaceViolations) == 0 &&
		len(r.MustAttackViolations) == 0 &&
		len(r.MustBlockViolations) == 0 &&
		len(r.MustBeBlockedViolations) == 0
}
