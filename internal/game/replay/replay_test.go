package replay

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

func recorded(t *testing.T) *Journal {
	t.Helper()
	bus := rules.NewEventBus()
	j := NewJournal("Trample over a chump blocker")
	j.Attach(bus)

	bus.PublishBatch([]rules.Event{
		{Type: rules.EventAttackerDeclared, Source: 1, Player: "bob"},
		{Type: rules.EventBlockerDeclared, Source: 2, Target: 1, Player: "bob"},
		{Type: rules.EventDamagedPermanent, Source: 1, Target: 2, Amount: 2, Flag: true},
		{Type: rules.EventDamagedPlayer, Source: 1, Player: "bob", Amount: 2, Flag: true},
		{Type: rules.EventZoneChange, Target: 2, From: ecs.ZoneBattlefield, To: ecs.ZoneGraveyard},
	})
	return j
}

func TestJournalPlayback(t *testing.T) {
	j := recorded(t)
	require.Equal(t, 5, j.Size())

	e, ok := j.Next()
	require.True(t, ok)
	assert.Equal(t, rules.EventAttackerDeclared, e.Type)

	e, ok = j.Skip(10)
	require.True(t, ok)
	assert.Equal(t, rules.EventZoneChange, e.Type)
	assert.Equal(t, 4, j.CurrentIndex)

	e, ok = j.Previous()
	require.True(t, ok)
	assert.Equal(t, rules.EventDamagedPlayer, e.Type)

	j.Start()
	_, ok = j.Previous()
	assert.False(t, ok)

	_, ok = j.EventAt(5)
	assert.False(t, ok)
	assert.Len(t, j.Filter(rules.EventDamagedPlayer), 1)
}

func TestEmptyJournal(t *testing.T) {
	j := NewJournal("empty")
	_, ok := j.Next()
	assert.False(t, ok)
	_, ok = j.Skip(3)
	assert.False(t, ok)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "trample_over_a_chump_blocker.replay", FileName("Trample over a chump blocker"))
	assert.Equal(t, "first-strike_2.replay", FileName("first-strike/2"))
}

func TestRecorderRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecorder(zaptest.NewLogger(t), dir)
	j := recorded(t)

	require.NoError(t, rec.Save(j))
	assert.Equal(t, filepath.Join(dir, "trample_over_a_chump_blocker.replay"), rec.Saved()[j.Name])

	loaded, err := rec.Load(j.Name)
	require.NoError(t, err)
	assert.Equal(t, j.Name, loaded.Name)
	assert.Equal(t, j.Events, loaded.Events)
	assert.Zero(t, loaded.CurrentIndex)
}

func TestLoadMissingFile(t *testing.T) {
	rec := NewRecorder(nil, t.TempDir())
	_, err := rec.Load("nothing here")
	assert.Error(t, err)
}
