package damage

import (
	"errors"
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// ErrNoTarget is the panic value wrapped when an event has no resolvable
// target form.
var ErrNoTarget = errors.New("damage event has no target")

// TargetKind distinguishes the three target forms of a damage event.
type TargetKind int

const (
	targetInvalid TargetKind = iota
	// TargetPlayer is damage dealt to a player.
	TargetPlayer
	// TargetPermanent is damage dealt to a planeswalker or a battle.
	TargetPermanent
	// TargetCreature is damage dealt to a creature.
	TargetCreature
)

func (k TargetKind) String() string {
	switch k {
	case TargetPlayer:
		return "player"
	case TargetPermanent:
		return "permanent"
	case TargetCreature:
		return "creature"
	default:
		return "invalid"
	}
}

// Target is who or what receives damage.
type Target struct {
	Kind   TargetKind
	Player ecs.PlayerID
	Entity ecs.Entity
}

// ToPlayer targets a player.
func ToPlayer(p ecs.PlayerID) Target {
	return Target{Kind: TargetPlayer, Player: p}
}

// ToPermanent targets a planeswalker or a battle.
func ToPermanent(e ecs.Entity) Target {
	return Target{Kind: TargetPermanent, Entity: e}
}

// ToCreature targets a creature.
func ToCreature(e ecs.Entity) Target {
	return Target{Kind: TargetCreature, Entity: e}
}

// IsPlayer reports whether the target is a player.
func (t Target) IsPlayer() bool {
	return t.Kind == TargetPlayer
}

// Validate returns an error wrapping ErrNoTarget when the target cannot be
// resolved to a player or an entity.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetPlayer:
		if t.Player == "" {
			return fmt.Errorf("%w: player target without player", ErrNoTarget)
		}
	case TargetPermanent, TargetCreature:
		if t.Entity == ecs.NoEntity {
			return fmt.Errorf("%w: %s target without entity", ErrNoTarget, t.Kind)
		}
	default:
		return fmt.Errorf("%w: kind %d", ErrNoTarget, int(t.Kind))
	}
	return nil
}

func (t Target) String() string {
	if t.Kind == TargetPlayer {
		return "player:" + string(t.Player)
	}
	return fmt.Sprintf("%s:%d", t.Kind, t.Entity)
}

// Event is damage about to be dealt.
type Event struct {
	Source ecs.Entity
	Amount int
	Target Target
	Combat bool
}
