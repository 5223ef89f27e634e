package events

// Event type constants for kelindar/event.
const (
	TypeAcquisitionStateChanged uint32 = iota + 1
	TypeRegionChanged
	TypePixelFormatChanged
	TypeFrameRateChanged
	TypeFeatureChanged
	TypeStreamCreated
	TypeBufferCompleted
	TypeDeviceDiscovery
	TypeConfigReloaded
	TypeLogEntry
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// AcquisitionStateChangedEvent is published when a camera starts or stops acquiring.
type AcquisitionStateChangedEvent struct {
	DeviceID  string `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	State     string `json:"state" example:"acquiring" doc:"New state: idle or acquiring"`
	Reason    string `json:"reason,omitempty" example:"api" doc:"What triggered the change"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e AcquisitionStateChangedEvent) Type() uint32 { return TypeAcquisitionStateChanged }

// RegionChangedEvent carries the committed region after snapping.
type RegionChangedEvent struct {
	DeviceID  string `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	X         int    `json:"x" example:"0" doc:"Horizontal offset"`
	Y         int    `json:"y" example:"0" doc:"Vertical offset"`
	Width     int    `json:"width" example:"128" doc:"Region width"`
	Height    int    `json:"height" example:"128" doc:"Region height"`
	Payload   int    `json:"payload" example:"16384" doc:"Frame payload in bytes"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e RegionChangedEvent) Type() uint32 { return TypeRegionChanged }

type PixelFormatChangedEvent struct {
	DeviceID    string `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	PixelFormat string `json:"pixel_format" example:"Mono8" doc:"New pixel format"`
	Payload     int    `json:"payload" example:"16384" doc:"Frame payload in bytes"`
	Timestamp   string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e PixelFormatChangedEvent) Type() uint32 { return TypePixelFormatChanged }

type FrameRateChangedEvent struct {
	DeviceID  string  `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	FrameRate float64 `json:"frame_rate" example:"10" doc:"Frames per second"`
	Timestamp string  `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e FrameRateChangedEvent) Type() uint32 { return TypeFrameRateChanged }

// FeatureChangedEvent is published for generic feature writes.
type FeatureChangedEvent struct {
	DeviceID  string `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	Name      string `json:"name" example:"Gain" doc:"Feature name"`
	Value     string `json:"value" example:"2.5" doc:"New value as text"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e FeatureChangedEvent) Type() uint32 { return TypeFeatureChanged }

type StreamCreatedEvent struct {
	DeviceID  string `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	Payload   int    `json:"payload" example:"16384" doc:"Buffer size in bytes"`
	Buffers   int    `json:"buffers" example:"10" doc:"Buffers queued at creation"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e StreamCreatedEvent) Type() uint32 { return TypeStreamCreated }

// BufferCompletedEvent is published by the fill goroutine for every returned buffer.
type BufferCompletedEvent struct {
	DeviceID  string `json:"device_id" example:"Fake_1" doc:"Camera identifier"`
	FrameID   uint64 `json:"frame_id" example:"42" doc:"Frame counter"`
	Status    string `json:"status" example:"filled" doc:"Buffer status"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e BufferCompletedEvent) Type() uint32 { return TypeBufferCompleted }

// DeviceDiscoveryEvent represents device hotplug events.
type DeviceDiscoveryEvent struct {
	Action    string `json:"action" example:"added" doc:"Action type: added, removed"`
	Interface string `json:"interface" example:"v4l2" doc:"Device interface"`
	DevName   string `json:"dev_name" example:"video0" doc:"Kernel device name"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e DeviceDiscoveryEvent) Type() uint32 { return TypeDeviceDiscovery }

// ConfigReloadedEvent reports a camera profile reload from disk.
type ConfigReloadedEvent struct {
	Path      string `json:"path" example:"/etc/camnode/config.toml" doc:"Config file path"`
	Applied   bool   `json:"applied" example:"true" doc:"Whether the profile was applied"`
	Reason    string `json:"reason,omitempty" example:"acquisition in progress" doc:"Why it was skipped"`
	Timestamp string `json:"timestamp" example:"2025-01-27T10:30:00Z" doc:"Event timestamp"`
}

func (e ConfigReloadedEvent) Type() uint32 { return TypeConfigReloaded }

// LogEntryEvent represents a log entry for SSE streaming.
type LogEntryEvent struct {
	Seq        uint64         `json:"seq" example:"42" doc:"Monotonic sequence number for deduplication"`
	Timestamp  string         `json:"timestamp" example:"2025-01-09T10:30:00.123Z" doc:"Log timestamp"`
	Level      string         `json:"level" example:"info" doc:"Log level"`
	Module     string         `json:"module" example:"camera" doc:"Source module"`
	Message    string         `json:"message" doc:"Log message"`
	Attributes map[string]any `json:"attributes,omitempty" doc:"Structured log attributes"`
}

func (e LogEntryEvent) Type() uint32 { return TypeLogEntry }
