package counters

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Counter names the game cares about. Boost counters follow the "+X/+Y" form.
const (
	P1P1    = "+1/+1"
	M1M1    = "-1/-1"
	Loyalty = "loyalty"
	Defense = "defense"
	Shield  = "shield"
	Stun    = "stun"
)

// Counter is a named quantity of counters on an object.
type Counter struct {
	Name  string
	Count int
}

// Counters is a collection of counters keyed by name.
// A nil collection reads as empty; Add returns the (possibly new) map.
type Counters map[string]int

// New creates an empty collection.
func New() Counters {
	return make(Counters)
}

// Add adds amount counters named name. Non-positive amounts are ignored.
func (cs Counters) Add(name string, amount int) Counters {
	if amount <= 0 {
		return cs
	}
	if cs == nil {
		cs = make(Counters)
	}
	cs[name] += amount
	return cs
}

// Remove removes up to amount counters named name and returns how many were removed.
// Will not allow a count to go below 0.
func (cs Counters) Remove(name string, amount int) int {
	if amount <= 0 {
		return 0
	}
	current, ok := cs[name]
	if !ok {
		return 0
	}
	if amount > current {
		amount = current
	}
	if current-amount == 0 {
		delete(cs, name)
	} else {
		cs[name] = current - amount
	}
	return amount
}

// Count returns the number of counters named name.
func (cs Counters) Count(name string) int {
	return cs[name]
}

// Has returns true if there is at least one counter named name.
func (cs Counters) Has(name string) bool {
	return cs[name] > 0
}

// Copy creates a deep copy of the collection.
func (cs Counters) Copy() Counters {
	if cs == nil {
		return nil
	}
	out := make(Counters, len(cs))
	for name, count := range cs {
		out[name] = count
	}
	return out
}

// List returns the counters sorted by name.
func (cs Counters) List() []Counter {
	out := make([]Counter, 0, len(cs))
	for name, count := range cs {
		out = append(out, Counter{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// BoostCounter is a power/toughness boost counter (e.g., +1/+1, -1/-1).
type BoostCounter struct {
	Counter
	Power     int
	Toughness int
}

// BoostName generates a name for a boost counter (e.g., "+1/+1", "-1/-1").
func BoostName(power, toughness int) string {
	return fmt.Sprintf("%+d/%+d", power, toughness)
}

// ParseBoost parses a boost counter name into power/toughness deltas.
func ParseBoost(name string) (power, toughness int, ok bool) {
	p, t, found := strings.Cut(name, "/")
	if !found || !strings.ContainsAny(p[:min(1, len(p))], "+-") {
		return 0, 0, false
	}
	power, err := strconv.Atoi(p)
	if err != nil {
		return 0, 0, false
	}
	toughness, err = strconv.Atoi(t)
	if err != nil {
		return 0, 0, false
	}
	return power, toughness, true
}

// Boosts returns all boost counters in name order.
func (cs Counters) Boosts() []BoostCounter {
	var out []BoostCounter
	for _, c := range cs.List() {
		if power, toughness, ok := ParseBoost(c.Name); ok {
			out = append(out, BoostCounter{Counter: c, Power: power, Toughness: toughness})
		}
	}
	return out
}

// BoostTotals sums the power/toughness change of every boost counter.
// A +1/+1 and a -1/-1 counter cancel out here even before state-based
// actions remove them.
func (cs Counters) BoostTotals() (power, toughness int) {
	for _, b := range cs.Boosts() {
		power += b.Power * b.Count
		toughness += b.Toughness * b.Count
	}
	return power, toughness
}
