//go:build linux

package v4l2

import "errors"

// ErrTimeout is returned by ReadFrame when no frame arrives in time.
var ErrTimeout = errors.New("v4l2: timed out waiting for frame")

// ErrNoReadIO is returned by OpenCapture for devices without read() support.
var ErrNoReadIO = errors.New("v4l2: device does not support read i/o")

// DeviceInfo contains information about a V4L2 device.
type DeviceInfo struct {
	DevicePath string
	DeviceName string
	DeviceID   string // Stable identifier (from /dev/v4l/by-id/ or synthetic)
	Driver     string
	BusInfo    string
	Caps       uint32
}

// CanRead reports whether the device supports read() I/O.
func (d DeviceInfo) CanRead() bool {
	return d.Caps&v4l2CapReadWrite != 0
}

// FormatInfo contains information about a supported pixel format.
type FormatInfo struct {
	PixelFormat uint32
	FormatName  string
	Emulated    bool
}

// Resolution represents a supported video resolution.
type Resolution struct {
	Width  uint32
	Height uint32
}

// Framerate represents a frame interval as a fraction of a second.
type Framerate struct {
	Numerator   uint32
	Denominator uint32
}

// FPS returns the framerate as frames per second.
func (f Framerate) FPS() float64 {
	if f.Numerator == 0 {
		return 0
	}
	return float64(f.Denominator) / float64(f.Numerator)
}

// Format is the negotiated single-planar capture format.
type Format struct {
	Width        uint32
	Height       uint32
	PixelFormat  uint32
	BytesPerLine uint32
	SizeImage    uint32
}

// Capability flags.
const (
	v4l2CapVideoCapture = 0x00000001
	v4l2CapReadWrite    = 0x01000000
	v4l2CapStreaming    = 0x04000000
	v4l2CapDeviceCaps   = 0x80000000
)

// Streaming parameter capability flags.
const (
	v4l2CapTimePerFrame = 0x1000
)

// Format flags.
const (
	v4l2FmtFlagEmulated = 0x0002
)

const v4l2FieldNone = 1

// Frame size types.
const (
	v4l2FrmsizeTypeDiscrete   = 1
	v4l2FrmsizeTypeContinuous = 2
	v4l2FrmsizeTypeStepwise   = 3
)

// Frame interval types.
const (
	v4l2FrmivalTypeDiscrete   = 1
	v4l2FrmivalTypeContinuous = 2
	v4l2FrmivalTypeStepwise   = 3
)

const v4l2BufTypeVideoCapture = 1
