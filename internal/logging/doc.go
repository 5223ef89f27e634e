// Package logging provides slog-based structured logging with per-module
// levels for camnode.
//
// Every logger returned by [GetLogger] writes to stdout (text or json), to
// the systemd journal when journald is reachable, and to an in-memory
// [RingBuffer] that backs GET /api/logs and the log SSE feed.
//
// # Usage
//
//	logging.Initialize(logging.Config{
//		Level:  "info",
//		Format: "text",
//		Modules: map[string]string{
//			"stream": "debug",
//			"api":    "warn",
//		},
//	})
//
//	logger := logging.GetLogger("camera").With("device_id", id)
//	logger.Info("Acquisition started", "payload", payload)
//
// Loggers obtained before Initialize are cached and pick up the configured
// level afterwards. [SetLevel] changes a module level at runtime.
//
// Modules used by camnode: camera, stream, device, api, config, telemetry,
// nats, systemd, main.
//
// # Journal
//
// Entries carry SYSLOG_IDENTIFIER=camnode and every attribute as an upper
// case field:
//
//	journalctl -t camnode -f
//	journalctl -t camnode MODULE=stream -p warning
//
// # Configuration
//
//	[logging]
//	level = "info"
//	format = "json"
//
//	[logging.modules]
//	camera = "debug"
package logging
