package events

import (
	"github.com/kelindar/event"
)

// Bus wraps a kelindar/event dispatcher for camera event broadcasting.
type Bus struct {
	dispatcher *event.Dispatcher
}

// New creates a new event bus.
func New() *Bus {
	return &Bus{
		dispatcher: event.NewDispatcher(),
	}
}

// Publish publishes an event to all subscribers of its concrete type.
// Usage: bus.Publish(RegionChangedEvent{...})
func (b *Bus) Publish(ev Event) {
	switch e := ev.(type) {
	case AcquisitionStateChangedEvent:
		event.Publish(b.dispatcher, e)
	case RegionChangedEvent:
		event.Publish(b.dispatcher, e)
	case PixelFormatChangedEvent:
		event.Publish(b.dispatcher, e)
	case FrameRateChangedEvent:
		event.Publish(b.dispatcher, e)
	case FeatureChangedEvent:
		event.Publish(b.dispatcher, e)
	case StreamCreatedEvent:
		event.Publish(b.dispatcher, e)
	case BufferCompletedEvent:
		event.Publish(b.dispatcher, e)
	case DeviceDiscoveryEvent:
		event.Publish(b.dispatcher, e)
	case ConfigReloadedEvent:
		event.Publish(b.dispatcher, e)
	case LogEntryEvent:
		event.Publish(b.dispatcher, e)
	}
}

// Subscribe registers a typed handler and returns its unsubscribe function.
// The handler's parameter type selects the events it receives.
// Usage: unsub := bus.Subscribe(func(e RegionChangedEvent) { ... })
func (b *Bus) Subscribe(handler any) func() {
	switch h := handler.(type) {
	case func(AcquisitionStateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(RegionChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(PixelFormatChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FrameRateChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(FeatureChangedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(StreamCreatedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(BufferCompletedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(DeviceDiscoveryEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(ConfigReloadedEvent):
		return event.Subscribe(b.dispatcher, h)
	case func(LogEntryEvent):
		return event.Subscribe(b.dispatcher, h)
	default:
		return func() {}
	}
}
