package events

import (
	"sync"
	"testing"
	"time"
)

// TestSubscribeAndPublish delivers events to type subscribers
func TestSubscribeAndPublish(t *testing.T) {
	bus := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(1)
	var received Event
	bus.Subscribe(EventAnalysisCompleted, func(e Event) {
		received = e
		wg.Done()
	})

	bus.PublishAnalysisCompleted("run-1", "AAPL", "BUY", "STRONG", 187.5)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("subscriber did not receive the event")
	}

	if received.Type != EventAnalysisCompleted {
		t.Errorf("event type = %s, want %s", received.Type, EventAnalysisCompleted)
	}
	if received.Data["ticker"] != "AAPL" {
		t.Errorf("ticker = %v, want AAPL", received.Data["ticker"])
	}
	if received.Timestamp.IsZero() {
		t.Error("expected a stamped timestamp")
	}
}

// TestSubscribeAll receives every event type
func TestSubscribeAll(t *testing.T) {
	bus := NewEventBus()

	var wg sync.WaitGroup
	wg.Add(2)
	bus.SubscribeAll(func(e Event) { wg.Done() })

	bus.PublishTimeframeSkipped("AAPL", "1h", nil)
	bus.PublishError("facade", "boom", nil)

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("catch-all subscriber missed events")
	}
}
