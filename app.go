package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/smazurov/camnode/internal/api"
	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/device"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/metrics"
	"github.com/smazurov/camnode/internal/nats"
	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/internal/systemd"
	"github.com/smazurov/camnode/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// app owns every long-lived component of the server.
type app struct {
	opts   *Options
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc

	bus      *events.Bus
	cam      *camera.Camera
	server   *api.Server
	notifier *systemd.Notifier
	manager  *systemd.Manager
	watcher  *config.Watcher[camera.Profile]

	publisher  *telemetry.Publisher
	natsServer *nats.Server
	natsClient *nats.Client
	bridge     *nats.EventBridge

	unsubs   []func()
	stopOnce sync.Once
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func parseInterval(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func newApp(opts *Options) (*app, error) {
	ctx, cancel := context.WithCancel(context.Background())
	a := &app{
		opts:     opts,
		logger:   logging.GetLogger("main"),
		ctx:      ctx,
		cancel:   cancel,
		bus:      events.New(),
		notifier: systemd.NewNotifier(logging.GetLogger("systemd")),
	}

	// Mirror log entries onto the bus for /api/logs/stream
	logging.SetLogCallback(func(e logging.LogEntry) {
		a.bus.Publish(events.LogEntryEvent{
			Seq:        e.Seq,
			Timestamp:  e.Timestamp.Format(time.RFC3339Nano),
			Level:      e.Level,
			Module:     e.Module,
			Message:    e.Message,
			Attributes: e.Attributes,
		})
	})

	var fakeOpts []device.FakeOption
	if opts.FakeDescription != "" {
		fakeOpts = append(fakeOpts, device.WithFakeDescriptionFile(opts.FakeDescription))
	}
	registry, err := device.DefaultRegistry(splitList(opts.DeviceBackends), fakeOpts...)
	if err != nil {
		cancel()
		return nil, err
	}

	profile, err := camera.LoadProfile(opts.Config)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		a.logger.Warn("Failed to load camera profile", "error", err)
	}
	deviceID := opts.DeviceID
	if deviceID == "" {
		deviceID = profile.DeviceID
	}

	a.cam, err = camera.Open(registry, deviceID, camera.WithEventBus(a.bus))
	if err != nil {
		cancel()
		return nil, err
	}
	a.logger.Info("Camera opened",
		"device_id", a.cam.DeviceID(),
		"vendor", a.cam.VendorName(),
		"model", a.cam.ModelName())

	if !profile.Empty() {
		if err := profile.Apply(a.cam); err != nil {
			a.logger.Warn("Camera profile partially applied", "error", err)
		}
	}
	if profile.Buffers > 0 {
		if err := a.prepareStream(profile.Buffers); err != nil {
			a.logger.Warn("Failed to create stream", "error", err)
		}
	}

	a.unsubs = append(a.unsubs, a.bus.Subscribe(func(e events.AcquisitionStateChangedEvent) {
		if e.State == camera.StateAcquiring.String() {
			metrics.IncAcquisitionStarts(e.DeviceID)
		}
	}))

	apiOpts := &api.Options{
		AuthUsername: opts.AuthUsername,
		AuthPassword: opts.AuthPassword,
		Camera:       a.cam,
		Registry:     registry,
		EventBus:     a.bus,
	}
	if opts.MetricsEnabled {
		if err := prometheus.Register(metrics.NewCameraCollector(a.cam)); err != nil {
			a.logger.Warn("Failed to register camera collector", "error", err)
		}
		apiOpts.PrometheusHandler = metrics.Handler()
	}
	if m, err := systemd.NewManager(ctx, opts.SystemdUnit, opts.SystemdUserBus); err != nil {
		a.logger.Debug("Service manager unavailable", "error", err)
	} else {
		a.manager = m
		apiOpts.ServiceManager = m
	}
	a.server = api.NewServer(apiOpts)

	if opts.WatchConfig && opts.Config != "" {
		a.watcher = config.NewConfigWatcher(opts.Config, camera.LoadProfile, logging.GetLogger("config"))
		a.watcher.OnReload(a.reloadProfile)
	}

	return a, nil
}

// prepareStream creates the stream and queues n buffers for the current payload.
func (a *app) prepareStream(n int) error {
	payload, err := a.cam.Payload()
	if err != nil {
		return err
	}
	st, err := a.cam.CreateStream(n)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if err := st.PushBuffer(stream.NewBuffer(payload)); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) reloadProfile(p camera.Profile) {
	ev := events.ConfigReloadedEvent{
		Path:      a.opts.Config,
		Timestamp: time.Now().Format(time.RFC3339),
	}

	if a.cam.State() == camera.StateAcquiring {
		ev.Reason = "acquisition in progress"
		a.logger.Warn("Skipping camera profile reload while acquiring")
	} else if err := p.Apply(a.cam); err != nil {
		ev.Reason = err.Error()
		a.logger.Warn("Camera profile reload failed", "error", err)
	} else {
		ev.Applied = true
		a.logger.Info("Camera profile reloaded")
	}
	a.bus.Publish(ev)
}

func (a *app) startTelemetry() {
	if a.opts.TelemetryMQTTBroker == "" {
		return
	}
	qos := a.opts.TelemetryQoS
	if qos < 0 {
		qos = 0
	}
	p, err := telemetry.New(telemetry.Config{
		Broker:        a.opts.TelemetryMQTTBroker,
		ClientID:      a.opts.TelemetryMQTTClientID,
		Username:      a.opts.TelemetryMQTTUsername,
		Password:      a.opts.TelemetryMQTTPassword,
		TopicPrefix:   a.opts.TelemetryTopicPrefix,
		QoS:           byte(qos),
		StatsInterval: parseInterval(a.opts.TelemetryInterval, telemetry.DefaultStatsInterval),
	}, a.cam, logging.GetLogger("telemetry"))
	if err != nil {
		a.logger.Warn("Telemetry disabled", "error", err)
		return
	}
	if err := p.Start(a.bus); err != nil {
		a.logger.Warn("Failed to start MQTT telemetry", "error", err)
		return
	}
	a.publisher = p
}

func (a *app) startNATS() {
	logger := logging.GetLogger("nats")
	url := a.opts.NATSURL

	if a.opts.NATSEmbedded {
		a.natsServer = nats.NewServer(nats.ServerOptions{Port: a.opts.NATSPort, Logger: logger})
		if err := a.natsServer.Start(); err != nil {
			logger.Warn("Failed to start embedded NATS server", "error", err)
			a.natsServer = nil
		} else if url == "" {
			url = a.natsServer.ClientURL()
		}
	}
	if url == "" {
		return
	}

	a.natsClient = nats.NewClient(url, a.cam.DeviceID(), logger)
	if err := a.natsClient.Connect(); err != nil {
		return
	}
	if err := a.natsClient.Serve(a.cam); err != nil {
		logger.Warn("Failed to serve control requests", "error", err)
	}
	a.bridge = nats.NewEventBridge(a.natsClient, a.bus, a.cam,
		parseInterval(a.opts.NATSInterval, nats.DefaultStatsInterval), logger)
	a.bridge.Start()
}

// run starts the optional components and blocks serving HTTP.
func (a *app) run() error {
	if a.watcher != nil {
		if err := a.watcher.Start(); err != nil {
			a.logger.Warn("Config watching disabled", "error", err)
			a.watcher = nil
		}
	}
	a.startTelemetry()
	a.startNATS()
	if a.opts.Hotplug {
		startHotplug(a.ctx, a.bus, logging.GetLogger("device"))
	}

	a.notifier.Ready()
	a.notifier.StartWatchdog(a.ctx)
	a.notifier.Status("Listening on " + a.opts.Port)

	return a.server.Start(a.opts.Port)
}

func (a *app) shutdown() {
	a.stopOnce.Do(func() {
		a.logger.Info("Shutting down camnode")
		a.notifier.Stopping()

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := a.server.Stop(ctx); err != nil {
			a.logger.Error("Error stopping HTTP server", "error", err)
		}

		if err := a.cam.StopAcquisition(); err != nil {
			a.logger.Warn("Failed to stop acquisition", "error", err)
		}

		if a.bridge != nil {
			a.bridge.Stop()
		}
		if a.natsClient != nil {
			a.natsClient.Close()
		}
		if a.natsServer != nil {
			a.natsServer.Stop()
		}
		if a.publisher != nil {
			a.publisher.Stop()
		}
		if a.watcher != nil {
			if err := a.watcher.Stop(); err != nil {
				a.logger.Warn("Failed to stop config watcher", "error", err)
			}
		}
		for _, unsub := range a.unsubs {
			unsub()
		}
		logging.SetLogCallback(nil)

		a.cancel()
		if a.manager != nil {
			a.manager.Close()
		}
		a.cam.Close()
	})
}
