package mana

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var symbolPattern = regexp.MustCompile(`\{([^}]+)\}`)

// Cost represents a parsed mana cost. Attack and block taxes are
// expressed as Costs so the caller can prompt for payment.
type Cost struct {
	Generic   int
	White     int
	Blue      int
	Black     int
	Red       int
	Green     int
	Colorless int
}

// ParseCost parses a mana cost string (e.g., "{1}", "{2}{W}", "{C}").
// Generic symbols are summed; X and hybrid symbols are not valid in a tax.
func ParseCost(costStr string) (Cost, error) {
	var cost Cost
	if strings.TrimSpace(costStr) == "" {
		return cost, nil
	}

	matches := symbolPattern.FindAllStringSubmatch(costStr, -1)
	if len(matches) == 0 {
		return Cost{}, fmt.Errorf("malformed mana cost: %q", costStr)
	}
	for _, match := range matches {
		symbol := strings.ToUpper(strings.TrimSpace(match[1]))
		switch symbol {
		case "W":
			cost.White++
		case "U":
			cost.Blue++
		case "B":
			cost.Black++
		case "R":
			cost.Red++
		case "G":
			cost.Green++
		case "C":
			cost.Colorless++
		default:
			num, err := strconv.Atoi(symbol)
			if err != nil || num < 0 {
				return Cost{}, fmt.Errorf("unknown mana symbol: {%s}", symbol)
			}
			cost.Generic += num
		}
	}
	return cost, nil
}

// MustParse is ParseCost for literals known to be well formed.
func MustParse(costStr string) Cost {
	cost, err := ParseCost(costStr)
	if err != nil {
		panic(err)
	}
	return cost
}

// Add returns the sum of two costs. Multiple taxes on one creature stack.
func (c Cost) Add(other Cost) Cost {
	return Cost{
		Generic:   c.Generic + other.Generic,
		White:     c.White + other.White,
		Blue:      c.Blue + other.Blue,
		Black:     c.Black + other.Black,
		Red:       c.Red + other.Red,
		Green:     c.Green + other.Green,
		Colorless: c.Colorless + other.Colorless,
	}
}

// Value returns the total amount of mana the cost requires.
func (c Cost) Value() int {
	return c.Generic + c.White + c.Blue + c.Black + c.Red + c.Green + c.Colorless
}

// IsZero reports whether nothing needs to be paid.
func (c Cost) IsZero() bool {
	return c.Value() == 0
}

// String returns the symbol form, generic first ("{2}{W}"). The empty cost is "{0}".
func (c Cost) String() string {
	var b strings.Builder
	if c.Generic > 0 {
		fmt.Fprintf(&b, "{%d}", c.Generic)
	}
	for _, part := range []struct {
		count  int
		symbol string
	}{
		{c.White, "{W}"},
		{c.Blue, "{U}"},
		{c.Black, "{B}"},
		{c.Red, "{R}"},
		{c.Green, "{G}"},
		{c.Colorless, "{C}"},
	} {
		b.WriteString(strings.Repeat(part.symbol, part.count))
	}
	if b.Len() == 0 {
		return "{0}"
	}
	return b.String()
}

// Covers reports whether c, read as mana already paid, satisfies required.
// Colored and {C} symbols need their own mana; any leftover pays generic.
func (c Cost) Covers(required Cost) bool {
	pairs := [][2]int{
		{c.White, required.White},
		{c.Blue, required.Blue},
		{c.Black, required.Black},
		{c.Red, required.Red},
		{c.Green, required.Green},
		{c.Colorless, required.Colorless},
	}
	surplus := c.Generic
	for _, p := range pairs {
		if p[0] < p[1] {
			return false
		}
		surplus += p[0] - p[1]
	}
	return surplus >= required.Generic
}
