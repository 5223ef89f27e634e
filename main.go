package main

import (
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/camnode/cmd"
	"github.com/smazurov/camnode/internal/config"
	"github.com/smazurov/camnode/internal/logging"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"config.toml"`

	// Server settings
	Port string `help:"Port to listen on" short:"p" default:":8090" toml:"server.port" env:"SERVER_PORT"`

	// Auth settings
	AuthUsername string `help:"Basic auth username, empty disables auth" default:"admin" toml:"auth.username" env:"AUTH_USERNAME"`
	AuthPassword string `help:"Basic auth password" default:"password" toml:"auth.password" env:"AUTH_PASSWORD"`

	// Device settings
	DeviceID        string `help:"Camera to open, empty opens the first one found" toml:"camera.device_id" env:"CAMERA_DEVICE_ID"`
	DeviceBackends  string `help:"Comma separated device backends in order (v4l2, fake)" toml:"devices.backends" env:"DEVICES_BACKENDS"`
	FakeDescription string `help:"TOML feature description for the fake camera" toml:"devices.fake_description" env:"DEVICES_FAKE_DESCRIPTION"`
	Hotplug         bool   `help:"Report video4linux hotplug events" default:"true" toml:"devices.hotplug" env:"DEVICES_HOTPLUG"`
	WatchConfig     bool   `help:"Reapply the [camera] profile when the config file changes" default:"true" toml:"camera.watch" env:"CAMERA_WATCH"`

	// Metrics settings
	MetricsEnabled bool `help:"Serve Prometheus metrics on /metrics" default:"true" toml:"metrics.enabled" env:"METRICS_ENABLED"`

	// Telemetry settings
	TelemetryMQTTBroker   string `help:"MQTT broker URL, empty disables telemetry" toml:"telemetry.mqtt_broker" env:"TELEMETRY_MQTT_BROKER"`
	TelemetryMQTTClientID string `help:"MQTT client ID" toml:"telemetry.client_id" env:"TELEMETRY_CLIENT_ID"`
	TelemetryMQTTUsername string `help:"MQTT username" toml:"telemetry.username" env:"TELEMETRY_USERNAME"`
	TelemetryMQTTPassword string `help:"MQTT password" toml:"telemetry.password" env:"TELEMETRY_PASSWORD"`
	TelemetryTopicPrefix  string `help:"MQTT topic prefix" default:"camnode" toml:"telemetry.topic_prefix" env:"TELEMETRY_TOPIC_PREFIX"`
	TelemetryQoS          int    `help:"MQTT QoS (0, 1, 2)" default:"0" toml:"telemetry.qos" env:"TELEMETRY_QOS"`
	TelemetryInterval     string `help:"Statistics publishing interval" default:"5s" toml:"telemetry.stats_interval" env:"TELEMETRY_STATS_INTERVAL"`

	// NATS settings
	NATSURL      string `help:"NATS server URL, empty disables NATS unless embedded" toml:"nats.url" env:"NATS_URL"`
	NATSEmbedded bool   `help:"Run an embedded NATS server" default:"false" toml:"nats.embedded" env:"NATS_EMBEDDED"`
	NATSPort     int    `help:"Embedded NATS server port" default:"4222" toml:"nats.port" env:"NATS_PORT"`
	NATSInterval string `help:"Statistics publishing interval" default:"5s" toml:"nats.stats_interval" env:"NATS_STATS_INTERVAL"`

	// Systemd settings
	SystemdUnit    string `help:"Unit reported and restarted by the service API" default:"camnode.service" toml:"systemd.unit" env:"SYSTEMD_UNIT"`
	SystemdUserBus bool   `help:"Use the user D-Bus instead of the system bus" default:"false" toml:"systemd.user" env:"SYSTEMD_USER"`

	// Logging settings
	LoggingLevel     string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat    string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingCamera    string `help:"Camera logging level" default:"info" toml:"logging.camera" env:"LOGGING_CAMERA"`
	LoggingStream    string `help:"Stream logging level" default:"info" toml:"logging.stream" env:"LOGGING_STREAM"`
	LoggingDevice    string `help:"Device logging level" default:"info" toml:"logging.device" env:"LOGGING_DEVICE"`
	LoggingAPI       string `help:"API logging level" default:"info" toml:"logging.api" env:"LOGGING_API"`
	LoggingConfig    string `help:"Config logging level" default:"info" toml:"logging.config" env:"LOGGING_CONFIG"`
	LoggingTelemetry string `help:"Telemetry logging level" default:"info" toml:"logging.telemetry" env:"LOGGING_TELEMETRY"`
	LoggingNATS      string `help:"NATS logging level" default:"info" toml:"logging.nats" env:"LOGGING_NATS"`
}

func main() {
	var cli humacli.CLI
	var running atomic.Pointer[app]

	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		// Load configuration automatically
		if loadErr := config.LoadConfig(opts, cli.Root()); loadErr != nil {
			slog.Warn("Failed to load config", "error", loadErr)
		}

		logging.Initialize(logging.Config{
			Level:  opts.LoggingLevel,
			Format: opts.LoggingFormat,
			Modules: map[string]string{
				"camera":    opts.LoggingCamera,
				"stream":    opts.LoggingStream,
				"device":    opts.LoggingDevice,
				"api":       opts.LoggingAPI,
				"config":    opts.LoggingConfig,
				"telemetry": opts.LoggingTelemetry,
				"nats":      opts.LoggingNATS,
			},
		})
		logger := logging.GetLogger("main")

		hooks.OnStart(func() {
			a, err := newApp(opts)
			if err != nil {
				logger.Error("Failed to start camnode", "error", err)
				os.Exit(1)
			}
			running.Store(a)

			if err := a.run(); err != nil {
				logger.Error("Failed to start HTTP server", "error", err)
				a.shutdown()
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			if a := running.Load(); a != nil {
				a.shutdown()
			}
		})
	})

	root := cli.Root()
	root.Use = "camnode"
	root.Short = "Camera control and acquisition service"
	root.AddCommand(
		cmd.CreateAcquireCmd(),
		cmd.CreateEvalCmd(),
		cmd.CreateFeaturesCmd(),
		cmd.CreateDevicesCmd(),
		cmd.CreateControlCmd(),
	)

	// Run the CLI
	cli.Run()
}
