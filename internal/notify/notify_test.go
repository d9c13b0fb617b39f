package notify

import (
	"testing"
	"time"
)

func TestBusPublish(t *testing.T) {
	bus := NewBus()
	a := bus.Subscribe()
	b := bus.Subscribe()

	bus.Publish(Change{Key: "k", Value: []byte("v")}, a)

	select {
	case c := <-b.Changes():
		if c.Key != "k" || string(c.Value) != "v" || c.Origin != OriginLocal {
			t.Errorf("unexpected change: %+v", c)
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive change")
	}

	select {
	case c := <-a.Changes():
		t.Errorf("publisher received its own change: %+v", c)
	default:
	}
}

func TestBusClose(t *testing.T) {
	bus := NewBus()
	s := bus.Subscribe()
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, ok := <-s.Changes(); ok {
		t.Error("expected closed channel")
	}
	// Closing twice, and closing the bus afterwards, must not panic.
	s.Close()
	other := bus.Subscribe()
	bus.Close()
	if _, ok := <-other.Changes(); ok {
		t.Error("expected closed channel after bus close")
	}
	late := bus.Subscribe()
	if _, ok := <-late.Changes(); ok {
		t.Error("expected subscription on closed bus to be closed")
	}
}

func TestBusDropsWhenFull(t *testing.T) {
	bus := NewBus()
	s := bus.Subscribe()
	for i := 0; i < 200; i++ {
		bus.Publish(Change{Key: "k"}, nil)
	}
	if got := len(s.Changes()); got != cap(s.ch) {
		t.Errorf("expected full buffer, got %d", got)
	}
}
