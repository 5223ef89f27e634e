package nats

import (
	"encoding/json"
	"fmt"

	"github.com/smazurov/camnode/internal/stream"
)

// Subject prefixes for NATS topics.
const (
	SubjectCamerasPrefix = "camnode.cameras"
	SubjectControlPrefix = "camnode.control"
)

// Control actions.
const (
	ActionStart = "start"
	ActionStop  = "stop"
)

// SubjectCameraState returns the subject acquisition state changes are published on.
func SubjectCameraState(deviceID string) string {
	return fmt.Sprintf("%s.%s.state", SubjectCamerasPrefix, deviceID)
}

// SubjectCameraStats returns the subject stream statistics are published on.
func SubjectCameraStats(deviceID string) string {
	return fmt.Sprintf("%s.%s.stats", SubjectCamerasPrefix, deviceID)
}

// SubjectControl returns the request subject for a control action.
func SubjectControl(deviceID, action string) string {
	return fmt.Sprintf("%s.%s.%s", SubjectControlPrefix, deviceID, action)
}

// StateMessage mirrors events.AcquisitionStateChangedEvent on the wire.
type StateMessage struct {
	DeviceID  string `json:"device_id"`
	State     string `json:"state"` // idle, acquiring
	Reason    string `json:"reason,omitempty"`
	Timestamp string `json:"timestamp"`
}

// Marshal serializes the message to JSON.
func (m StateMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// StatsMessage carries a stream statistics snapshot.
type StatsMessage struct {
	DeviceID  string            `json:"device_id"`
	Timestamp string            `json:"timestamp"`
	Stats     stream.Statistics `json:"stats"`
}

// Marshal serializes the message to JSON.
func (m StatsMessage) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ControlRequest is the optional body of a control request.
type ControlRequest struct {
	Reason string `json:"reason,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlRequest) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// ControlReply answers a control request.
type ControlReply struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Marshal serializes the message to JSON.
func (m ControlReply) Marshal() ([]byte, error) {
	return json.Marshal(m)
}

// UnmarshalState deserializes a StateMessage from JSON.
func UnmarshalState(data []byte) (StateMessage, error) {
	var m StateMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalStats deserializes a StatsMessage from JSON.
func UnmarshalStats(data []byte) (StatsMessage, error) {
	var m StatsMessage
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalControlRequest deserializes a ControlRequest. An empty body is valid.
func UnmarshalControlRequest(data []byte) (ControlRequest, error) {
	var m ControlRequest
	if len(data) == 0 {
		return m, nil
	}
	err := json.Unmarshal(data, &m)
	return m, err
}

// UnmarshalControlReply deserializes a ControlReply from JSON.
func UnmarshalControlReply(data []byte) (ControlReply, error) {
	var m ControlReply
	err := json.Unmarshal(data, &m)
	return m, err
}
