package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/sse"
	"github.com/smazurov/camnode/internal/events"
)

// ConnectedEvent is sent first on every event stream.
type ConnectedEvent struct {
	Message   string `json:"message" example:"SSE connection established" doc:"Greeting"`
	DeviceID  string `json:"device_id" example:"Fake_1" doc:"Camera served by this node"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

// registerSSERoutes registers the native Huma SSE endpoint.
func (s *Server) registerSSERoutes() {
	sse.Register(s.api, huma.Operation{
		OperationID: "events-stream",
		Method:      http.MethodGet,
		Path:        "/api/events",
		Summary:     "Server-Sent Events Stream",
		Description: "Real-time camera, stream, device and configuration events",
		Tags:        []string{"events"},
		Security:    withAuth(),
		Errors:      []int{401},
	}, map[string]any{
		"connected":         ConnectedEvent{},
		"acquisition-state": events.AcquisitionStateChangedEvent{},
		"region-changed":    events.RegionChangedEvent{},
		"pixel-format":      events.PixelFormatChangedEvent{},
		"frame-rate":        events.FrameRateChangedEvent{},
		"feature-changed":   events.FeatureChangedEvent{},
		"stream-created":    events.StreamCreatedEvent{},
		"buffer-completed":  events.BufferCompletedEvent{},
		"device-discovery":  events.DeviceDiscoveryEvent{},
		"config-reloaded":   events.ConfigReloadedEvent{},
	}, func(ctx context.Context, _ *struct{}, send sse.Sender) {
		eventCh := make(chan any, 32)

		unsubscribers := []func(){
			events.SubscribeToChannel[events.AcquisitionStateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.RegionChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.PixelFormatChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FrameRateChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.FeatureChangedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.StreamCreatedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.BufferCompletedEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.DeviceDiscoveryEvent](s.eventBus, eventCh),
			events.SubscribeToChannel[events.ConfigReloadedEvent](s.eventBus, eventCh),
		}
		defer func() {
			for _, unsub := range unsubscribers {
				unsub()
			}
		}()

		if err := send.Data(ConnectedEvent{
			Message:   "SSE connection established",
			DeviceID:  s.camera.DeviceID(),
			Timestamp: time.Now().Format(time.RFC3339),
		}); err != nil {
			return
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event := <-eventCh:
				if err := send.Data(event); err != nil {
					return
				}
			}
		}
	})
}
