package watchers

import (
	"testing"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
	"github.com/magefree/mage-rules-go/internal/game/rules"
)

func TestAttackedThisTurnWatcher(t *testing.T) {
	watcher := NewAttackedThisTurnWatcher()
	attacker := ecs.Entity(7)

	if watcher.ConditionMet() {
		t.Fatal("watcher should not have condition met initially")
	}

	watcher.Watch(rules.NewEvent(rules.EventAttackerDeclared, ecs.NoEntity, attacker, "alice"))

	if !watcher.ConditionMet() {
		t.Fatal("watcher should have condition met after an attack")
	}
	if !watcher.Attacked(attacker) {
		t.Fatal("expected attacker to be recorded")
	}
	if got := watcher.AttackersOf("alice"); len(got) != 1 || got[0] != attacker {
		t.Fatalf("unexpected attackers %v", got)
	}
	if got := watcher.AttackersOf("bob"); len(got) != 0 {
		t.Fatalf("expected no attackers for bob, got %v", got)
	}

	watcher.Reset()
	if watcher.ConditionMet() || watcher.Attacked(attacker) {
		t.Fatal("watcher should be cleared after reset")
	}
}

func TestPermanentsDiedWatcher(t *testing.T) {
	watcher := NewPermanentsDiedWatcher()

	watcher.Watch(rules.NewZoneChangeEvent(ecs.Entity(1), "alice", ecs.ZoneBattlefield, ecs.ZoneGraveyard))
	watcher.Watch(rules.NewZoneChangeEvent(ecs.Entity(2), "bob", ecs.ZoneBattlefield, ecs.ZoneGraveyard))
	watcher.Watch(rules.NewZoneChangeEvent(ecs.Entity(3), "bob", ecs.ZoneBattlefield, ecs.ZoneGraveyard))
	// Exile and discard are not deaths.
	watcher.Watch(rules.NewZoneChangeEvent(ecs.Entity(4), "bob", ecs.ZoneBattlefield, ecs.ZoneExile))
	watcher.Watch(rules.NewZoneChangeEvent(ecs.Entity(5), "bob", ecs.ZoneHand, ecs.ZoneGraveyard))

	if got := watcher.GetAmountByController("alice"); got != 1 {
		t.Fatalf("expected 1 for alice, got %d", got)
	}
	if got := watcher.GetAmountByController("bob"); got != 2 {
		t.Fatalf("expected 2 for bob, got %d", got)
	}
	if got := watcher.GetTotalAmount(); got != 3 {
		t.Fatalf("expected 3 total, got %d", got)
	}

	watcher.Reset()
	if watcher.GetTotalAmount() != 0 || watcher.ConditionMet() {
		t.Fatal("watcher should be cleared after reset")
	}
}

func TestCombatDamageToPlayerWatcher(t *testing.T) {
	watcher := NewCombatDamageToPlayerWatcher()
	source := ecs.Entity(9)

	combat := rules.NewEventWithAmount(rules.EventDamagedPlayer, ecs.NoEntity, source, "alice", 3)
	combat.Player = "bob"
	combat.Flag = true
	burn := rules.NewEventWithAmount(rules.EventDamagedPlayer, ecs.NoEntity, ecs.Entity(10), "alice", 2)
	burn.Player = "bob"

	watcher.Watch(combat)
	watcher.Watch(burn)

	if got := watcher.DamageTo("bob"); got != 3 {
		t.Fatalf("expected 3 combat damage to bob, got %d", got)
	}
	if !watcher.Dealt(source) {
		t.Fatal("expected source to be recorded")
	}
	if watcher.Dealt(ecs.Entity(10)) {
		t.Fatal("noncombat damage should not be recorded")
	}
}

func TestRegister(t *testing.T) {
	registry := rules.NewWatcherRegistry()
	Register(registry)

	for _, key := range []string{"AttackedThisTurnWatcher", "PermanentsDiedWatcher", "CombatDamageToPlayerWatcher"} {
		if registry.GetWatcher(key) == nil {
			t.Fatalf("expected %s to be registered", key)
		}
	}
}
