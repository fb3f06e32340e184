package effects

import "fmt"

// Layer corresponds to the comprehensive rules layers for continuous effects.
// LayerNone marks event-time effects (prevention, redirection) that never
// take part in projection.
type Layer int

const (
	LayerNone Layer = iota
	LayerCopy
	LayerControl
	LayerText
	LayerType
	LayerColor
	LayerAbility
	LayerPowerToughness
)

// LayerOrder is the order the projector walks the layers in.
var LayerOrder = []Layer{
	LayerCopy,
	LayerControl,
	LayerText,
	LayerType,
	LayerColor,
	LayerAbility,
	LayerPowerToughness,
}

func (l Layer) String() string {
	switch l {
	case LayerNone:
		return "none"
	case LayerCopy:
		return "1-copy"
	case LayerControl:
		return "2-control"
	case LayerText:
		return "3-text"
	case LayerType:
		return "4-type"
	case LayerColor:
		return "5-color"
	case LayerAbility:
		return "6-ability"
	case LayerPowerToughness:
		return "7-power-toughness"
	default:
		return fmt.Sprintf("layer(%d)", int(l))
	}
}

// SubLayer splits layer 7. Every other layer uses SubLayerNone.
type SubLayer int

const (
	SubLayerNone SubLayer = iota
	// SubLayerDefine is 7a: characteristic-defining abilities.
	SubLayerDefine
	// SubLayerSet is 7b: set power and/or toughness to a value.
	SubLayerSet
	// SubLayerModify is 7c: +N/+N style changes.
	SubLayerModify
	// SubLayerCounters is 7d: counters. Applied by the projector, no effect uses it.
	SubLayerCounters
	// SubLayerSwitch is 7e: switch power and toughness.
	SubLayerSwitch
)

// SubLayerOrder is the order of layer 7 sublayers.
var SubLayerOrder = []SubLayer{
	SubLayerDefine,
	SubLayerSet,
	SubLayerModify,
	SubLayerCounters,
	SubLayerSwitch,
}

func (s SubLayer) String() string {
	switch s {
	case SubLayerNone:
		return ""
	case SubLayerDefine:
		return "7a"
	case SubLayerSet:
		return "7b"
	case SubLayerModify:
		return "7c"
	case SubLayerCounters:
		return "7d"
	case SubLayerSwitch:
		return "7e"
	default:
		return fmt.Sprintf("sublayer(%d)", int(s))
	}
}
