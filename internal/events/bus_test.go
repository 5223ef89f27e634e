package events

import (
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestBus_PublishSubscribe(t *testing.T) {
	bus := New()
	received := make(chan RegionChangedEvent, 1)

	unsub := bus.Subscribe(func(e RegionChangedEvent) {
		received <- e
	})
	defer unsub()

	event := RegionChangedEvent{
		DeviceID:  "Fake_1",
		Width:     128,
		Height:    128,
		Payload:   16384,
		Timestamp: "2025-01-27T10:30:00Z",
	}
	bus.Publish(event)

	got := <-received
	if got.DeviceID != event.DeviceID {
		t.Errorf("Expected device_id %s, got %s", event.DeviceID, got.DeviceID)
	}
	if got.Payload != 16384 {
		t.Errorf("Expected payload 16384, got %d", got.Payload)
	}
}

func TestBus_MultipleSubscribers(_ *testing.T) {
	bus := New()
	received1 := make(chan StreamCreatedEvent, 1)
	received2 := make(chan StreamCreatedEvent, 1)

	unsub1 := bus.Subscribe(func(e StreamCreatedEvent) {
		received1 <- e
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(e StreamCreatedEvent) {
		received2 <- e
	})
	defer unsub2()

	bus.Publish(StreamCreatedEvent{DeviceID: "Fake_1", Payload: 16384, Buffers: 10})

	<-received1
	<-received2
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := New()
	received := make(chan AcquisitionStateChangedEvent, 1)

	unsub := bus.Subscribe(func(e AcquisitionStateChangedEvent) {
		received <- e
	})

	bus.Publish(AcquisitionStateChangedEvent{DeviceID: "Fake_1", State: "acquiring"})
	<-received

	unsub()

	bus.Publish(AcquisitionStateChangedEvent{DeviceID: "Fake_1", State: "idle"})
	select {
	case <-received:
		t.Fatal("Should not have received event after unsubscribe")
	case <-time.After(10 * time.Millisecond):
		// Expected - no event
	}
}

func TestBus_TypeSafety(t *testing.T) {
	bus := New()

	regionReceived := make(chan bool, 1)
	formatReceived := make(chan bool, 1)

	unsub1 := bus.Subscribe(func(_ RegionChangedEvent) {
		regionReceived <- true
	})
	defer unsub1()

	unsub2 := bus.Subscribe(func(_ PixelFormatChangedEvent) {
		formatReceived <- true
	})
	defer unsub2()

	bus.Publish(RegionChangedEvent{DeviceID: "Fake_1"})
	<-regionReceived

	select {
	case <-formatReceived:
		t.Fatal("Pixel format subscriber should NOT have received RegionChangedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}

	bus.Publish(PixelFormatChangedEvent{DeviceID: "Fake_1", PixelFormat: "Mono16"})
	<-formatReceived

	select {
	case <-regionReceived:
		t.Fatal("Region subscriber should NOT have received PixelFormatChangedEvent")
	case <-time.After(10 * time.Millisecond):
		// Expected
	}
}

func TestBus_UnknownHandler(t *testing.T) {
	bus := New()
	unsub := bus.Subscribe(func(string) {})
	if unsub == nil {
		t.Fatal("Expected a no-op unsubscribe for unsupported handlers")
	}
	unsub()
}

func TestBus_ThreadSafety(_ *testing.T) {
	bus := New()
	var wg sync.WaitGroup
	numGoroutines := 10
	eventsPerGoroutine := 100
	expected := numGoroutines * eventsPerGoroutine

	receivedCh := make(chan bool, expected)

	unsub := bus.Subscribe(func(_ BufferCompletedEvent) {
		receivedCh <- true
	})
	defer unsub()

	for range numGoroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range eventsPerGoroutine {
				bus.Publish(BufferCompletedEvent{
					DeviceID:  "Fake_1",
					FrameID:   uint64(i),
					Status:    "filled",
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}()
	}

	wg.Wait()

	for range expected {
		<-receivedCh
	}
}

func TestBus_AllEventTypes(t *testing.T) {
	bus := New()

	tests := []struct {
		name  string
		event Event
	}{
		{"AcquisitionStateChanged", AcquisitionStateChangedEvent{State: "acquiring"}},
		{"RegionChanged", RegionChangedEvent{Width: 64}},
		{"PixelFormatChanged", PixelFormatChangedEvent{PixelFormat: "Mono8"}},
		{"FrameRateChanged", FrameRateChangedEvent{FrameRate: 10}},
		{"FeatureChanged", FeatureChangedEvent{Name: "Gain", Value: "2"}},
		{"StreamCreated", StreamCreatedEvent{Buffers: 4}},
		{"BufferCompleted", BufferCompletedEvent{FrameID: 1}},
		{"DeviceDiscovery", DeviceDiscoveryEvent{Action: "added"}},
		{"ConfigReloaded", ConfigReloadedEvent{Applied: true}},
		{"LogEntry", LogEntryEvent{Message: "hello"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(_ *testing.T) {
			received := make(chan Event, 1)

			var unsub func()
			switch tt.event.(type) {
			case AcquisitionStateChangedEvent:
				unsub = bus.Subscribe(func(e AcquisitionStateChangedEvent) { received <- e })
			case RegionChangedEvent:
				unsub = bus.Subscribe(func(e RegionChangedEvent) { received <- e })
			case PixelFormatChangedEvent:
				unsub = bus.Subscribe(func(e PixelFormatChangedEvent) { received <- e })
			case FrameRateChangedEvent:
				unsub = bus.Subscribe(func(e FrameRateChangedEvent) { received <- e })
			case FeatureChangedEvent:
				unsub = bus.Subscribe(func(e FeatureChangedEvent) { received <- e })
			case StreamCreatedEvent:
				unsub = bus.Subscribe(func(e StreamCreatedEvent) { received <- e })
			case BufferCompletedEvent:
				unsub = bus.Subscribe(func(e BufferCompletedEvent) { received <- e })
			case DeviceDiscoveryEvent:
				unsub = bus.Subscribe(func(e DeviceDiscoveryEvent) { received <- e })
			case ConfigReloadedEvent:
				unsub = bus.Subscribe(func(e ConfigReloadedEvent) { received <- e })
			case LogEntryEvent:
				unsub = bus.Subscribe(func(e LogEntryEvent) { received <- e })
			}
			defer unsub()

			bus.Publish(tt.event)
			<-received
		})
	}
}

func TestEventJSONSerialization(t *testing.T) {
	data, err := json.Marshal(RegionChangedEvent{
		DeviceID:  "Fake_1",
		X:         4,
		Width:     128,
		Height:    128,
		Payload:   16384,
		Timestamp: "2025-01-27T10:30:00Z",
	})
	if err != nil {
		t.Fatalf("Failed to marshal: %v", err)
	}

	var result map[string]any
	if unmarshalErr := json.Unmarshal(data, &result); unmarshalErr != nil {
		t.Fatalf("Failed to unmarshal: %v", unmarshalErr)
	}
	if result["device_id"] != "Fake_1" {
		t.Errorf("Expected device_id Fake_1, got %v", result["device_id"])
	}
	if result["payload"] != float64(16384) {
		t.Errorf("Expected payload 16384, got %v", result["payload"])
	}
}

func TestSubscribeToChannel(t *testing.T) {
	bus := New()
	ch := make(chan any, 10)

	unsub := SubscribeToChannel[FrameRateChangedEvent](bus, ch)
	defer unsub()

	bus.Publish(FrameRateChangedEvent{DeviceID: "Fake_1", FrameRate: 25})

	received := <-ch
	ev, ok := received.(FrameRateChangedEvent)
	if !ok {
		t.Fatalf("Expected FrameRateChangedEvent, got %T", received)
	}
	if ev.FrameRate != 25 {
		t.Errorf("Expected frame_rate 25, got %v", ev.FrameRate)
	}
}

func TestSubscribeToChannel_NonBlocking(_ *testing.T) {
	bus := New()
	ch := make(chan any) // No buffer

	unsub := SubscribeToChannel[StreamCreatedEvent](bus, ch)
	defer unsub()

	done := make(chan bool, 1)
	go func() {
		bus.Publish(StreamCreatedEvent{DeviceID: "Fake_1"})
		done <- true
	}()

	<-done
}
