// Package targeting checks that the targets chosen for an effect are legal
// against the projected battlefield.
package targeting

import (
	"errors"
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/layers"
)

var (
	// ErrIllegalTarget is wrapped by every validation failure.
	ErrIllegalTarget = errors.New("illegal target")
	// ErrProtected is returned for targets with protection from the source.
	ErrProtected = fmt.Errorf("%w: protected from source", ErrIllegalTarget)
)

// Players looks players up by id.
type Players interface {
	Player(id ecs.PlayerID) (ecs.Player, bool)
}

// TargetValidator validates that selected targets are legal.
type TargetValidator struct {
	players Players
	viewer  layers.Viewer
}

// NewTargetValidator creates a new target validator.
func NewTargetValidator(players Players, viewer layers.Viewer) *TargetValidator {
	return &TargetValidator{players: players, viewer: viewer}
}

// ValidateTarget checks if a single target is valid for the given
// requirement when chosen by source. A zero source view stands for an effect
// without a source object.
func (tv *TargetValidator) ValidateTarget(source layers.View, target Target, requirement TargetRequirement) error {
	if target.IsPlayer() {
		if requirement.Type != TargetTypePlayer {
			return fmt.Errorf("%w: %s is a player but requirement is %s", ErrIllegalTarget, target, requirement.Type)
		}
		if _, ok := tv.players.Player(target.Player); !ok {
			return fmt.Errorf("%w: %s not found", ErrIllegalTarget, target)
		}
		return nil
	}
	if requirement.Type == TargetTypePlayer {
		return fmt.Errorf("%w: %s is an object but requirement is player", ErrIllegalTarget, target)
	}

	view, ok := tv.viewer.Project(target.Entity)
	if !ok || !view.OnBattlefield() {
		return fmt.Errorf("%w: %s is not a permanent", ErrIllegalTarget, target)
	}
	if t, ok := cardTypes[requirement.Type]; ok && !view.HasType(t) {
		return fmt.Errorf("%w: %s is not a %s", ErrIllegalTarget, view.Name, t)
	}
	if source.Entity != ecs.NoEntity && view.ProtectedFrom(source) {
		return fmt.Errorf("%w: %s", ErrProtected, view.Name)
	}
	return nil
}

// ValidateTargetSelection validates an entire target selection against its
// requirement.
func (tv *TargetValidator) ValidateTargetSelection(source layers.View, selection *TargetSelection) error {
	if err := selection.Validate(); err != nil {
		return err
	}
	seen := make(map[Target]bool, len(selection.Targets))
	for _, target := range selection.Targets {
		if seen[target] {
			return fmt.Errorf("%w: duplicate target %s", ErrIllegalTarget, target)
		}
		seen[target] = true
		if err := tv.ValidateTarget(source, target, selection.Requirement); err != nil {
			return err
		}
	}
	return nil
}
