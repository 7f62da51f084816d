package events

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"agency_portal_backend/platform/logger"
)

type testEvent struct {
	BaseEvent
	name string
}

func (e testEvent) EventName() string { return e.name }

func TestInMemoryBus_PublishSyncJoinsErrors(t *testing.T) {
	bus := NewInMemoryBus(logger.NewNop())
	var calls int32

	bus.Subscribe("a", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return errors.New("first failed")
	}))
	bus.Subscribe("a", HandlerFunc(func(context.Context, Event) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}))
	bus.Subscribe("b", HandlerFunc(func(context.Context, Event) error {
		t.Fatalf("handler for another event must not run")
		return nil
	}))

	err := bus.PublishSync(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "a"})
	if err == nil {
		t.Fatalf("expected joined error")
	}
	if calls != 2 {
		t.Fatalf("expected both handlers to run, got %d", calls)
	}
}

func TestInMemoryBus_PublishRecoversPanics(t *testing.T) {
	bus := NewInMemoryBus(logger.NewNop())
	var ran atomic.Bool

	bus.Subscribe("a", HandlerFunc(func(context.Context, Event) error {
		panic("boom")
	}))
	bus.Subscribe("a", HandlerFunc(func(context.Context, Event) error {
		ran.Store(true)
		return nil
	}))

	bus.Publish(context.Background(), testEvent{BaseEvent: NewBaseEvent(), name: "a"})
	bus.Wait()

	if !ran.Load() {
		t.Fatalf("expected second handler to run despite panic in first")
	}
}

func TestNewBaseEvent_StampsDistinctIDs(t *testing.T) {
	a, b := NewBaseEvent(), NewBaseEvent()
	if a.ID == b.ID {
		t.Fatalf("expected distinct ids, got %s twice", a.ID)
	}
	if got := eventID(testEvent{BaseEvent: a, name: "x"}); got != a.ID.String() {
		t.Fatalf("expected %s, got %s", a.ID, got)
	}
	if a.OccurredAt().Location().String() != "UTC" {
		t.Fatalf("expected UTC timestamp, got %s", a.OccurredAt().Location())
	}
}
