// Package telemetry publishes camera state and stream statistics to an MQTT broker.
package telemetry

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/stream"
)

// ErrDisabled is returned by New when no broker is configured.
var ErrDisabled = errors.New("telemetry disabled: no broker configured")

const (
	DefaultTopicPrefix   = "camnode"
	DefaultStatsInterval = 5 * time.Second
	connectTimeout       = 5 * time.Second
)

// Config selects the broker and publishing cadence.
type Config struct {
	Broker        string
	ClientID      string
	Username      string
	Password      string
	TopicPrefix   string
	QoS           byte
	StatsInterval time.Duration
}

// Source is the camera the publisher reports on.
type Source interface {
	DeviceID() string
	State() camera.State
	Stream() *stream.Stream
}

// client is the part of mqtt.Client the publisher uses.
type client interface {
	Connect() mqtt.Token
	Disconnect(quiesce uint)
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// StateMessage is published, retained, on every acquisition state change.
type StateMessage struct {
	DeviceID  string `json:"device_id"`
	State     string `json:"state"`
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// StatsMessage is published every StatsInterval while a stream exists.
type StatsMessage struct {
	DeviceID  string            `json:"device_id"`
	Timestamp string            `json:"timestamp"`
	Stats     stream.Statistics `json:"stats"`
}

// Publisher forwards acquisition events and stream statistics to MQTT.
type Publisher struct {
	cfg    Config
	source Source
	client client
	logger *slog.Logger

	mu    sync.Mutex
	unsub func()
	stop  chan struct{}
	done  chan struct{}
}

// New builds a publisher backed by a paho client. It returns ErrDisabled
// when cfg.Broker is empty.
func New(cfg Config, source Source, logger *slog.Logger) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, ErrDisabled
	}
	cfg = withDefaults(cfg, source.DeviceID())

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetKeepAlive(30 * time.Second).
		SetPingTimeout(5 * time.Second).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectTimeout(connectTimeout)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	// Last will marks the device offline if the process dies.
	will, _ := json.Marshal(StateMessage{DeviceID: source.DeviceID(), State: "offline"})
	opts.SetWill(stateTopic(cfg.TopicPrefix, source.DeviceID()), string(will), cfg.QoS, true)

	return newPublisher(cfg, source, mqtt.NewClient(opts), logger), nil
}

func newPublisher(cfg Config, source Source, c client, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		cfg:    withDefaults(cfg, source.DeviceID()),
		source: source,
		client: c,
		logger: logger,
	}
}

func withDefaults(cfg Config, deviceID string) Config {
	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = DefaultTopicPrefix
	}
	cfg.TopicPrefix = strings.TrimSuffix(cfg.TopicPrefix, "/")
	if cfg.StatsInterval <= 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	if cfg.ClientID == "" {
		cfg.ClientID = "camnode-" + deviceID
	}
	if cfg.QoS > 2 {
		cfg.QoS = 1
	}
	return cfg
}

func stateTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/state", prefix, deviceID)
}

func statsTopic(prefix, deviceID string) string {
	return fmt.Sprintf("%s/%s/stats", prefix, deviceID)
}

// StateTopic returns the topic state messages are published on.
func (p *Publisher) StateTopic() string { return stateTopic(p.cfg.TopicPrefix, p.source.DeviceID()) }

// StatsTopic returns the topic statistics are published on.
func (p *Publisher) StatsTopic() string { return statsTopic(p.cfg.TopicPrefix, p.source.DeviceID()) }

// Start connects to the broker, publishes the current state and begins
// forwarding bus events and periodic statistics.
func (p *Publisher) Start(bus *events.Bus) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop != nil {
		return nil
	}

	token := p.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		// Connect retry keeps trying in the background.
		p.logger.Warn("MQTT broker not reachable yet, retrying in background", "broker", p.cfg.Broker)
	} else if err := token.Error(); err != nil {
		return fmt.Errorf("connect to %s: %w", p.cfg.Broker, err)
	}

	p.stop = make(chan struct{})
	p.done = make(chan struct{})

	if bus != nil {
		p.unsub = bus.Subscribe(func(e events.AcquisitionStateChangedEvent) {
			if e.DeviceID != p.source.DeviceID() {
				return
			}
			p.PublishState(StateMessage{
				DeviceID:  e.DeviceID,
				State:     e.State,
				Reason:    e.Reason,
				Timestamp: e.Timestamp,
			})
		})
	}

	p.PublishState(StateMessage{
		DeviceID:  p.source.DeviceID(),
		State:     p.source.State().String(),
		Reason:    "startup",
		Timestamp: time.Now().Format(time.RFC3339),
	})

	go p.statsLoop(p.stop, p.done)

	p.logger.Info("MQTT telemetry started", "broker", p.cfg.Broker, "topic", p.StateTopic())
	return nil
}

func (p *Publisher) statsLoop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.cfg.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p.PublishStats()
		}
	}
}

// PublishState sends a retained state message.
func (p *Publisher) PublishState(m StateMessage) {
	p.publish(p.StateTopic(), true, m)
}

// PublishStats sends the current stream statistics. Nothing is sent when the
// camera has no stream.
func (p *Publisher) PublishStats() {
	s := p.source.Stream()
	if s == nil {
		return
	}
	p.publish(p.StatsTopic(), false, StatsMessage{
		DeviceID:  p.source.DeviceID(),
		Timestamp: time.Now().Format(time.RFC3339),
		Stats:     s.Statistics(),
	})
}

func (p *Publisher) publish(topic string, retained bool, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		p.logger.Warn("Failed to marshal telemetry", "topic", topic, "error", err)
		return
	}
	token := p.client.Publish(topic, p.cfg.QoS, retained, data)
	go func() {
		if token.WaitTimeout(connectTimeout) && token.Error() != nil {
			p.logger.Warn("Failed to publish telemetry", "topic", topic, "error", token.Error())
		}
	}()
}

// Stop publishes an offline state, stops the stats loop and disconnects.
func (p *Publisher) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stop == nil {
		return
	}
	if p.unsub != nil {
		p.unsub()
		p.unsub = nil
	}
	close(p.stop)
	<-p.done
	p.stop, p.done = nil, nil

	p.PublishState(StateMessage{
		DeviceID:  p.source.DeviceID(),
		State:     "offline",
		Reason:    "shutdown",
		Timestamp: time.Now().Format(time.RFC3339),
	})
	p.client.Disconnect(250)
	p.logger.Info("MQTT telemetry stopped")
}
