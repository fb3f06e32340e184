package targeting

import (
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// TargetType represents the type of target an effect can have.
type TargetType string

const (
	TargetTypeCreature     TargetType = "CREATURE"
	TargetTypePlayer       TargetType = "PLAYER"
	TargetTypePermanent    TargetType = "PERMANENT"
	TargetTypeArtifact     TargetType = "ARTIFACT"
	TargetTypeEnchantment  TargetType = "ENCHANTMENT"
	TargetTypeLand         TargetType = "LAND"
	TargetTypePlaneswalker TargetType = "PLANESWALKER"
	TargetTypeBattle       TargetType = "BATTLE"
)

// cardTypes maps permanent target types to the card type they require.
var cardTypes = map[TargetType]ecs.CardType{
	TargetTypeCreature:     ecs.TypeCreature,
	TargetTypeArtifact:     ecs.TypeArtifact,
	TargetTypeEnchantment:  ecs.TypeEnchantment,
	TargetTypeLand:         ecs.TypeLand,
	TargetTypePlaneswalker: ecs.TypePlaneswalker,
	TargetTypeBattle:       ecs.TypeBattle,
}

// TargetRequirement defines what targets an effect requires.
type TargetRequirement struct {
	Type       TargetType
	MinTargets int
	MaxTargets int
	// Optional marks "up to N" requirements.
	Optional    bool
	Description string
}

// Single is the common "target <type>" requirement.
func Single(t TargetType) TargetRequirement {
	return TargetRequirement{Type: t, MinTargets: 1, MaxTargets: 1, Description: "target " + string(t)}
}

// UpTo is an "up to n target <type>" requirement.
func UpTo(n int, t TargetType) TargetRequirement {
	return TargetRequirement{Type: t, MaxTargets: n, Optional: true, Description: fmt.Sprintf("up to %d target %s", n, t)}
}

// Target is a player or an object.
type Target struct {
	Player ecs.PlayerID
	Entity ecs.Entity
}

// PlayerTarget targets a player.
func PlayerTarget(p ecs.PlayerID) Target {
	return Target{Player: p}
}

// ObjectTarget targets an object.
func ObjectTarget(e ecs.Entity) Target {
	return Target{Entity: e}
}

// IsPlayer reports whether t is a player.
func (t Target) IsPlayer() bool {
	return t.Player != ""
}

func (t Target) String() string {
	if t.IsPlayer() {
		return "player " + string(t.Player)
	}
	return fmt.Sprintf("object %d", t.Entity)
}

// TargetSelection represents the targets chosen for one requirement.
type TargetSelection struct {
	Targets     []Target
	Requirement TargetRequirement
}

// IsComplete checks if the target selection meets the requirement.
func (ts *TargetSelection) IsComplete() bool {
	if ts == nil {
		return false
	}
	count := len(ts.Targets)
	return count >= ts.Requirement.MinTargets && count <= ts.Requirement.MaxTargets
}

// Validate checks the number of targets.
func (ts *TargetSelection) Validate() error {
	if ts == nil {
		return fmt.Errorf("%w: target selection is nil", ErrIllegalTarget)
	}
	count := len(ts.Targets)
	if count < ts.Requirement.MinTargets {
		return fmt.Errorf("%w: not enough targets: need at least %d, got %d", ErrIllegalTarget, ts.Requirement.MinTargets, count)
	}
	if count > ts.Requirement.MaxTargets {
		return fmt.Errorf("%w: too many targets: need at most %d, got %d", ErrIllegalTarget, ts.Requirement.MaxTargets, count)
	}
	return nil
}
