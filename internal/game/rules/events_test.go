package rules

import (
	"testing"

	"github.com/magefree/mage-rules-go/internal/game/ecs"
)

func TestEventBusSubscribeTyped(t *testing.T) {
	bus := NewEventBus()

	attackCount := 0
	lifeGainCount := 0

	handle1 := bus.SubscribeTyped(EventAttackerDeclared, func(e Event) {
		attackCount++
	})
	bus.SubscribeTyped(EventGainedLife, func(e Event) {
		lifeGainCount++
	})

	bus.Publish(NewEvent(EventAttackerDeclared, ecs.NoEntity, ecs.NoEntity, "alice"))
	if attackCount != 1 {
		t.Fatalf("expected attack count 1, got %d", attackCount)
	}
	if lifeGainCount != 0 {
		t.Fatalf("expected life gain count 0, got %d", lifeGainCount)
	}

	bus.Publish(NewEventWithAmount(EventGainedLife, ecs.NoEntity, ecs.NoEntity, "alice", 5))
	if lifeGainCount != 1 {
		t.Fatalf("expected life gain count 1, got %d", lifeGainCount)
	}

	bus.Unsubscribe(handle1)
	bus.Publish(NewEvent(EventAttackerDeclared, ecs.NoEntity, ecs.NoEntity, "alice"))
	if attackCount != 1 {
		t.Fatalf("expected attack count to stay 1 after unsubscribe, got %d", attackCount)
	}
}

func TestEventBusSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var seen []EventType
	bus.Subscribe(func(e Event) {
		seen = append(seen, e.Type)
	})

	bus.Publish(NewPlayerEvent(EventUpkeepStepPre, "alice"))
	bus.Publish(NewPlayerEvent(EventBeginCombatStepPre, "alice"))

	if len(seen) != 2 || seen[0] != EventUpkeepStepPre || seen[1] != EventBeginCombatStepPre {
		t.Fatalf("unexpected events %v", seen)
	}
}

func TestEventBusListenersRunInSubscriptionOrder(t *testing.T) {
	bus := NewEventBus()

	var order []string
	bus.SubscribeTyped(EventZoneChange, func(Event) { order = append(order, "typed") })
	bus.Subscribe(func(Event) { order = append(order, "all") })

	bus.Publish(NewZoneChangeEvent(ecs.NoEntity, "alice", ecs.ZoneHand, ecs.ZoneBattlefield))

	if len(order) != 2 || order[0] != "typed" || order[1] != "all" {
		t.Fatalf("unexpected listener order %v", order)
	}
}

func TestEventBusRejectsNilListener(t *testing.T) {
	bus := NewEventBus()
	if handle := bus.Subscribe(nil); handle != -1 {
		t.Fatalf("expected -1 for nil listener, got %d", handle)
	}
	if handle := bus.SubscribeTyped("", func(Event) {}); handle != -1 {
		t.Fatalf("expected -1 for empty event type, got %d", handle)
	}
}

func TestEventBusPublishBatch(t *testing.T) {
	bus := NewEventBus()

	total := 0
	bus.SubscribeTyped(EventDamagedPlayer, func(e Event) {
		total += e.Amount
	})

	bus.PublishBatch([]Event{
		NewEventWithAmount(EventDamagedPlayer, ecs.NoEntity, ecs.NoEntity, "bob", 2),
		NewEventWithAmount(EventDamagedPlayer, ecs.NoEntity, ecs.NoEntity, "bob", 3),
	})

	if total != 5 {
		t.Fatalf("expected 5 total damage, got %d", total)
	}
}

func TestZoneChangeEvent(t *testing.T) {
	dies := NewZoneChangeEvent(ecs.NoEntity, "alice", ecs.ZoneBattlefield, ecs.ZoneGraveyard)
	if !dies.LeftBattlefield() {
		t.Fatal("expected battlefield to graveyard to leave the battlefield")
	}
	if dies.ID == "" {
		t.Fatal("expected event id to be set")
	}

	enters := NewZoneChangeEvent(ecs.NoEntity, "alice", ecs.ZoneHand, ecs.ZoneBattlefield)
	if enters.LeftBattlefield() {
		t.Fatal("expected hand to battlefield not to leave the battlefield")
	}
	if enters.ID == dies.ID {
		t.Fatal("expected distinct event ids")
	}
}
