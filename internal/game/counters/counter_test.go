package counters

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAddRemove(t *testing.T) {
	var cs Counters
	cs = cs.Add(P1P1, 2)
	cs = cs.Add(P1P1, 1)
	cs = cs.Add(Loyalty, 0)

	assert.Equal(t, 3, cs.Count(P1P1))
	assert.False(t, cs.Has(Loyalty))

	assert.Equal(t, 2, cs.Remove(P1P1, 2))
	assert.Equal(t, 1, cs.Remove(P1P1, 5))
	assert.False(t, cs.Has(P1P1))
	assert.Equal(t, 0, cs.Remove(P1P1, 1))
}

func TestCountersCopyIsIndependent(t *testing.T) {
	cs := New().Add(Loyalty, 4)
	cp := cs.Copy()
	cp.Remove(Loyalty, 4)

	assert.Equal(t, 4, cs.Count(Loyalty))
	assert.Equal(t, 0, cp.Count(Loyalty))
}

func TestParseBoost(t *testing.T) {
	tests := []struct {
		name      string
		power     int
		toughness int
		ok        bool
	}{
		{"+1/+1", 1, 1, true},
		{"-1/-1", -1, -1, true},
		{"+2/+0", 2, 0, true},
		{"-0/-2", 0, -2, true},
		{"loyalty", 0, 0, false},
		{"1/1", 0, 0, false},
		{"+1/x", 0, 0, false},
		{"", 0, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			power, toughness, ok := ParseBoost(tt.name)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.power, power)
			assert.Equal(t, tt.toughness, toughness)
		})
	}
}

func TestBoostTotals(t *testing.T) {
	cs := New().
		Add(P1P1, 3).
		Add(M1M1, 1).
		Add(BoostName(2, 0), 1).
		Add(Stun, 2)

	require.Len(t, cs.Boosts(), 3)
	power, toughness := cs.BoostTotals()
	assert.Equal(t, 4, power)
	assert.Equal(t, 2, toughness)
	assert.Equal(t, "+2/+0", BoostName(2, 0))
}
