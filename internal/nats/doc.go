// Package nats publishes camera telemetry over NATS and accepts remote
// acquisition control.
//
// # Components
//
//   - Server: optional embedded NATS server (nats.embedded = true)
//   - Client: per-camera connection that publishes state and statistics and
//     answers control requests
//   - EventBridge: forwards event bus state changes and periodic stream
//     statistics to a Client
//   - Requester: sends control requests, used by "camnode control"
//
// # Subject Hierarchy
//
//	camnode.cameras.{device_id}.state    # acquisition state changes
//	camnode.cameras.{device_id}.stats    # stream statistics snapshots
//	camnode.control.{device_id}.start    # request/reply: start acquisition
//	camnode.control.{device_id}.stop     # request/reply: stop acquisition
//
// Publishing is fire-and-forget core NATS. Control subjects use request/reply
// and answer with a ControlReply.
//
// # Debugging with nats CLI
//
// Monitor everything a camera publishes:
//
//	nats sub "camnode.cameras.>"
//
// Start and stop acquisition:
//
//	nats req "camnode.control.Fake_1.start" '{"reason":"manual"}'
//	nats req "camnode.control.Fake_1.stop" ''
//
// # Message Formats
//
// StateMessage (camnode.cameras.{id}.state):
//
//	{
//	  "device_id": "Fake_1",
//	  "state": "acquiring",
//	  "reason": "api",
//	  "timestamp": "2024-01-01T12:00:00Z"
//	}
//
// StatsMessage (camnode.cameras.{id}.stats):
//
//	{
//	  "device_id": "Fake_1",
//	  "timestamp": "2024-01-01T12:00:00Z",
//	  "stats": {"completed": 120, "failures": 0, "underruns": 3, "aborted": 0, "input": 4, "output": 0}
//	}
//
// ControlReply:
//
//	{"ok": false, "error": "INVALID_STATE: no stream"}
package nats
