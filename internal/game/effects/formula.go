package effects

import (
	"fmt"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

// Formula computes a characteristic-defining value from the game state.
type Formula interface {
	formula()
}

// FormulaContext answers the counting questions formulas ask. The projector
// implements it with a pass that skips layer 7, so a formula can never read
// the power or toughness it is contributing to.
type FormulaContext interface {
	CountMatching(f *Filter, zone ecs.ZoneKind, source ecs.Entity, you ecs.PlayerID) int
	CardTypesInGraveyards() int
	CardsInHand(player ecs.PlayerID) int
}

// Constant is a fixed value.
type Constant struct{ Value int }

// CountMatching counts objects in Zone that pass Filter, plus Offset.
type CountMatching struct {
	Filter *Filter
	Zone   ecs.ZoneKind
	Offset int
}

// CardTypesInGraveyards counts the distinct card types among cards in all
// graveyards, plus Offset.
type CardTypesInGraveyards struct{ Offset int }

// CardsInHand counts the cards in the effect controller's hand.
type CardsInHand struct{}

func (Constant) formula()              {}
func (CountMatching) formula()         {}
func (CardTypesInGraveyards) formula() {}
func (CardsInHand) formula()           {}

// Evaluate computes f for an effect with the given source and controller.
func Evaluate(f Formula, ctx FormulaContext, source ecs.Entity, you ecs.PlayerID) int {
	switch f := f.(type) {
	case Constant:
		return f.Value
	case CountMatching:
		return ctx.CountMatching(f.Filter, f.Zone, source, you) + f.Offset
	case CardTypesInGraveyards:
		return ctx.CardTypesInGraveyards() + f.Offset
	case CardsInHand:
		return ctx.CardsInHand(you)
	default:
		panic(fmt.Sprintf("effects: unknown formula %T", f))
	}
}
