package nats

import (
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/stream"
)

// DefaultStatsInterval is how often EventBridge publishes stream statistics.
const DefaultStatsInterval = 5 * time.Second

// StatsSource is the camera whose stream statistics are published.
type StatsSource interface {
	DeviceID() string
	Stream() *stream.Stream
}

// EventBridge forwards acquisition state events from the event bus to NATS
// and publishes stream statistics on a fixed interval.
type EventBridge struct {
	client   *Client
	eventBus *events.Bus
	source   StatsSource
	interval time.Duration
	logger   *slog.Logger

	mu    sync.Mutex
	unsub func()
	stop  chan struct{}
	done  chan struct{}
}

// NewEventBridge creates a bus-to-NATS bridge for source.
func NewEventBridge(client *Client, eventBus *events.Bus, source StatsSource, interval time.Duration, logger *slog.Logger) *EventBridge {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultStatsInterval
	}

	return &EventBridge{
		client:   client,
		eventBus: eventBus,
		source:   source,
		interval: interval,
		logger:   logger.With("component", "nats-bridge"),
	}
}

// Start subscribes to the bus and starts the statistics ticker.
func (b *EventBridge) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stop != nil {
		return
	}

	id := b.source.DeviceID()
	b.unsub = b.eventBus.Subscribe(func(e events.AcquisitionStateChangedEvent) {
		if e.DeviceID != id {
			return
		}
		b.client.PublishState(StateMessage{
			DeviceID:  e.DeviceID,
			State:     e.State,
			Reason:    e.Reason,
			Timestamp: e.Timestamp,
		})
		b.logger.Debug("Forwarded state event", "state", e.State)
	})

	b.stop = make(chan struct{})
	b.done = make(chan struct{})
	go b.statsLoop(b.stop, b.done)

	b.logger.Info("NATS bridge started", "interval", b.interval)
}

func (b *EventBridge) statsLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s := b.source.Stream()
			if s == nil {
				continue
			}
			b.client.PublishStats(StatsMessage{
				DeviceID:  b.source.DeviceID(),
				Timestamp: time.Now().Format(time.RFC3339),
				Stats:     s.Statistics(),
			})
		}
	}
}

// Stop unsubscribes from the bus and stops the ticker.
func (b *EventBridge) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stop == nil {
		return
	}
	b.unsub()
	close(b.stop)
	<-b.done
	b.stop, b.done, b.unsub = nil, nil, nil
	b.logger.Info("NATS bridge stopped")
}
