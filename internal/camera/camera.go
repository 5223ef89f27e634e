// Package camera is the control facade over one opened device. It keeps the
// device feature nodes consistent while the region, pixel format and frame
// rate change, and runs the acquisition state machine that binds a device
// filler to an acquisition stream.
package camera

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/smazurov/camnode/internal/device"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/internal/types"
	"github.com/smazurov/camnode/pkg/genicam"
)

// State is the acquisition state of a camera.
type State int

const (
	StateIdle State = iota
	StateAcquiring
)

func (s State) String() string {
	if s == StateAcquiring {
		return "acquiring"
	}
	return "idle"
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Feature node names the facade drives.
const (
	featureWidth          = "Width"
	featureHeight         = "Height"
	featureOffsetX        = "OffsetX"
	featureOffsetY        = "OffsetY"
	featureSensorWidth    = "SensorWidth"
	featureSensorHeight   = "SensorHeight"
	featurePixelFormat    = "PixelFormat"
	featurePayloadSize    = "PayloadSize"
	featureFrameRate      = "AcquisitionFrameRate"
	featureFrameRateMax   = "AcquisitionFrameRateMax"
	featureExposureTime   = "ExposureTime"
	featureGain           = "Gain"
	featureVendorName     = "DeviceVendorName"
	featureModelName      = "DeviceModelName"
	featureSerialNumber   = "DeviceSerialNumber"
	featureAcquisitionRun = "AcquisitionStart"
	featureAcquisitionEnd = "AcquisitionStop"
)

// defaultFrameRate is used for devices without an AcquisitionFrameRate node.
const defaultFrameRate = 25.0

// Option configures a Camera.
type Option func(*Camera)

// WithEventBus publishes state and configuration changes on bus.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Camera) {
		c.bus = bus
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Camera) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Camera controls one device. Operations are serialised; buffers are popped
// from the stream directly and never take the camera lock.
type Camera struct {
	mu       sync.Mutex
	dev      device.Device
	features *genicam.Dictionary
	bus      *events.Bus
	logger   *slog.Logger

	state   State
	stream  *stream.Stream
	payload int // cached; 0 when invalidated by a feature write

	cancel context.CancelFunc
	done   chan struct{}
	closed bool
}

// Open opens a device from registry and wraps it. An empty id opens the first
// device the registry finds.
func Open(registry *device.Registry, id string, opts ...Option) (*Camera, error) {
	dev, err := registry.Open(id)
	if err != nil {
		return nil, err
	}
	return New(dev, opts...), nil
}

// New wraps an opened device. The camera owns dev from now on.
func New(dev device.Device, opts ...Option) *Camera {
	c := &Camera{
		dev:      dev,
		features: dev.Features(),
		logger:   logging.GetLogger("camera"),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("device", dev.Info().ID)
	// Feature writes are only issued with mu held.
	c.features.OnChange(func(string) { c.payload = 0 })
	return c
}

func (c *Camera) publish(ev events.Event) {
	if c.bus != nil && ev != nil {
		c.bus.Publish(ev)
	}
}

func now() string {
	return time.Now().Format(time.RFC3339)
}

// requireIdle fails with ErrInvalidState while acquiring or after Close.
// Callers hold mu.
func (c *Camera) requireIdle(op string) error {
	if c.closed {
		return invalidState("camera is closed")
	}
	if c.state == StateAcquiring {
		return invalidState("%s is not allowed while acquiring", op)
	}
	return nil
}

// featureError classifies a dictionary error.
func featureError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, genicam.ErrOutOfRange), errors.Is(err, genicam.ErrTypeMismatch),
		errors.Is(err, genicam.ErrAccessDenied):
		return NewError(ErrCodeInvalidArgument, "", err)
	default:
		return NewError(ErrCodeDevice, "", err)
	}
}

func (c *Camera) intFeature(name string, fallback int64) (int64, error) {
	if !c.features.Has(name) {
		return fallback, nil
	}
	v, err := c.features.IntegerValue(name)
	if err != nil {
		return 0, featureError(err)
	}
	return v, nil
}

func (c *Camera) stringFeature(name, fallback string) string {
	if !c.features.Has(name) {
		return fallback
	}
	v, err := c.features.StringValue(name)
	if err != nil || v == "" {
		return fallback
	}
	return v
}

// DeviceID returns the identifier the device was opened with.
func (c *Camera) DeviceID() string { return c.dev.Info().ID }

// Info returns the device identification.
func (c *Camera) Info() device.Info { return c.dev.Info() }

func (c *Camera) VendorName() string {
	return c.stringFeature(featureVendorName, c.dev.Info().Vendor)
}

func (c *Camera) ModelName() string {
	return c.stringFeature(featureModelName, c.dev.Info().Model)
}

func (c *Camera) SerialNumber() string {
	return c.stringFeature(featureSerialNumber, c.dev.Info().Serial)
}

// State returns the acquisition state.
func (c *Camera) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SensorSize returns the full sensor size. Devices without sensor nodes
// report the largest allowed width and height.
func (c *Camera) SensorSize() (int, int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sensorSize()
}

func (c *Camera) sensorSize() (int, int, error) {
	size := func(sensor, fallback string) (int, error) {
		if c.features.Has(sensor) {
			v, err := c.features.IntegerValue(sensor)
			return int(v), featureError(err)
		}
		_, maximum, _, err := c.features.IntegerBounds(fallback)
		if err != nil {
			return 0, featureError(err)
		}
		return int(maximum), nil
	}
	w, err := size(featureSensorWidth, featureWidth)
	if err != nil {
		return 0, 0, err
	}
	h, err := size(featureSensorHeight, featureHeight)
	if err != nil {
		return 0, 0, err
	}
	return w, h, nil
}

// Region returns the committed region of interest.
func (c *Camera) Region() (types.Region, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.region()
}

func (c *Camera) region() (types.Region, error) {
	var r types.Region
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{featureOffsetX, &r.X},
		{featureOffsetY, &r.Y},
		{featureWidth, &r.Width},
		{featureHeight, &r.Height},
	} {
		v, err := c.intFeature(f.name, 0)
		if err != nil {
			return types.Region{}, err
		}
		*f.dst = int(v)
	}
	return r, nil
}

// snap rounds v down onto the increment grid of an integer node and raises
// it to the node minimum. Missing nodes only accept zero.
func (c *Camera) snap(name string, v int) (int, error) {
	if !c.features.Has(name) {
		if v != 0 {
			return 0, invalidArgument("device has no %s feature", name)
		}
		return 0, nil
	}
	minimum, _, inc, err := c.features.IntegerBounds(name)
	if err != nil {
		return 0, featureError(err)
	}
	if minimum < 0 {
		minimum = 0
	}
	s := int64(v)
	if inc > 1 && s > minimum {
		s = minimum + ((s-minimum)/inc)*inc
	}
	if s < minimum {
		s = minimum
	}
	return int(s), nil
}

// SetRegion sets the region of interest. Offsets and sizes are snapped to
// the feature increments, so the committed region may be smaller than
// requested by up to one increment minus one on each axis. Nothing changes
// when the request is rejected.
func (c *Camera) SetRegion(x, y, width, height int) error {
	c.mu.Lock()
	ev, err := c.setRegion(x, y, width, height)
	var clamped events.Event
	if err == nil {
		clamped = c.clampFrameRate()
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.publish(ev)
	c.publish(clamped)
	return nil
}

func (c *Camera) setRegion(x, y, width, height int) (events.Event, error) {
	if err := c.requireIdle("SetRegion"); err != nil {
		return nil, err
	}
	if width <= 0 || height <= 0 || x < 0 || y < 0 {
		return nil, invalidArgument("invalid region %dx%d+%d+%d", width, height, x, y)
	}

	sensorW, sensorH, err := c.sensorSize()
	if err != nil {
		return nil, err
	}
	requested := types.Region{X: x, Y: y, Width: width, Height: height}
	if !requested.Within(sensorW, sensorH) {
		return nil, invalidArgument("region %s exceeds sensor %dx%d", requested, sensorW, sensorH)
	}

	var target types.Region
	for _, f := range []struct {
		name string
		in   int
		out  *int
	}{
		{featureOffsetX, x, &target.X},
		{featureOffsetY, y, &target.Y},
		{featureWidth, width, &target.Width},
		{featureHeight, height, &target.Height},
	} {
		if *f.out, err = c.snap(f.name, f.in); err != nil {
			return nil, err
		}
	}
	if !target.Within(sensorW, sensorH) {
		return nil, invalidArgument("region %s exceeds sensor %dx%d after snapping", target, sensorW, sensorH)
	}

	previous, err := c.region()
	if err != nil {
		return nil, err
	}
	if err := c.checkWritable(previous, target); err != nil {
		return nil, err
	}

	if err := c.writeRegion(target); err != nil {
		if restoreErr := c.writeRegion(previous); restoreErr != nil {
			c.logger.Error("Failed to restore region", "region", previous.String(), "error", restoreErr)
		}
		return nil, err
	}

	committed, err := c.region()
	if err != nil {
		return nil, err
	}
	if committed != requested {
		c.logger.Debug("Region snapped", "requested", requested.String(), "committed", committed.String())
	}
	payload, _ := c.currentPayload()

	return events.RegionChangedEvent{
		DeviceID:  c.DeviceID(),
		X:         committed.X,
		Y:         committed.Y,
		Width:     committed.Width,
		Height:    committed.Height,
		Payload:   payload,
		Timestamp: now(),
	}, nil
}

// checkWritable rejects changes to nodes the device exposes read-only.
func (c *Camera) checkWritable(from, to types.Region) error {
	for _, f := range []struct {
		name     string
		from, to int
	}{
		{featureOffsetX, from.X, to.X},
		{featureOffsetY, from.Y, to.Y},
		{featureWidth, from.Width, to.Width},
		{featureHeight, from.Height, to.Height},
	} {
		if f.from == f.to || !c.features.Has(f.name) {
			continue
		}
		info, err := c.features.Node(f.name)
		if err != nil {
			return featureError(err)
		}
		if info.Access != genicam.AccessRW {
			return invalidArgument("%s is read-only on this device", f.name)
		}
	}
	return nil
}

// writeRegion zeroes the offsets, writes the size, then the offsets, so that
// every intermediate state stays inside the sensor.
func (c *Camera) writeRegion(r types.Region) error {
	steps := []struct {
		name  string
		value int
	}{
		{featureOffsetX, 0},
		{featureOffsetY, 0},
		{featureWidth, r.Width},
		{featureHeight, r.Height},
		{featureOffsetX, r.X},
		{featureOffsetY, r.Y},
	}
	for _, s := range steps {
		if err := c.writeInt(s.name, int64(s.value)); err != nil {
			return err
		}
	}
	return nil
}

// writeInt writes an integer node, skipping nodes that already hold v.
func (c *Camera) writeInt(name string, v int64) error {
	if !c.features.Has(name) {
		if v != 0 {
			return invalidArgument("device has no %s feature", name)
		}
		return nil
	}
	current, err := c.features.IntegerValue(name)
	if err != nil {
		return featureError(err)
	}
	if current == v {
		return nil
	}
	return featureError(c.features.SetIntegerValue(name, v))
}

// SetPixelFormat selects the pixel format. Formats the device does not list
// fail with ErrUnsupportedFormat.
func (c *Camera) SetPixelFormat(pf types.PixelFormat) error {
	c.mu.Lock()
	ev, err := c.setPixelFormat(pf)
	var clamped events.Event
	if err == nil {
		clamped = c.clampFrameRate()
	}
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.publish(ev)
	c.publish(clamped)
	return nil
}

func (c *Camera) setPixelFormat(pf types.PixelFormat) (events.Event, error) {
	if err := c.requireIdle("SetPixelFormat"); err != nil {
		return nil, err
	}
	if !c.supports(pf) {
		return nil, NewError(ErrCodeUnsupportedFormat, fmt.Sprintf("device does not support %s", pf), nil)
	}
	if err := c.features.SetIntegerValue(featurePixelFormat, int64(pf)); err != nil {
		return nil, featureError(err)
	}
	payload, _ := c.currentPayload()

	return events.PixelFormatChangedEvent{
		DeviceID:    c.DeviceID(),
		PixelFormat: pf.String(),
		Payload:     payload,
		Timestamp:   now(),
	}, nil
}

func (c *Camera) supports(pf types.PixelFormat) bool {
	for _, f := range c.availablePixelFormats() {
		if f == pf {
			return true
		}
	}
	return false
}

// PixelFormat returns the selected pixel format.
func (c *Camera) PixelFormat() (types.PixelFormat, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pixelFormat()
}

func (c *Camera) pixelFormat() (types.PixelFormat, error) {
	v, err := c.features.EnumIntValue(featurePixelFormat)
	if err != nil {
		return 0, featureError(err)
	}
	return types.PixelFormat(v), nil
}

// PixelFormatString returns the pixel format name as the device lists it.
func (c *Camera) PixelFormatString() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	name, err := c.features.EnumValue(featurePixelFormat)
	if err != nil {
		return ""
	}
	return name
}

// AvailablePixelFormats lists the formats the device offers.
func (c *Camera) AvailablePixelFormats() []types.PixelFormat {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.availablePixelFormats()
}

func (c *Camera) availablePixelFormats() []types.PixelFormat {
	info, err := c.features.Node(featurePixelFormat)
	if err != nil {
		return nil
	}
	out := make([]types.PixelFormat, 0, len(info.Entries))
	for _, e := range info.Entries {
		out = append(out, types.PixelFormat(e.Value))
	}
	return out
}

// SetFrameRate sets the acquisition frame rate in Hz. The upper bound is the
// device's maximum rate for the current region and exposure.
func (c *Camera) SetFrameRate(fps float64) error {
	c.mu.Lock()
	ev, err := c.setFrameRate(fps)
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.publish(ev)
	return nil
}

func (c *Camera) setFrameRate(fps float64) (events.Event, error) {
	if err := c.requireIdle("SetFrameRate"); err != nil {
		return nil, err
	}
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return nil, invalidArgument("invalid frame rate %g", fps)
	}
	minimum, maximum, err := c.frameRateBounds()
	if err != nil {
		return nil, err
	}
	if fps < minimum || fps > maximum {
		return nil, invalidArgument("frame rate %g not in [%g, %g]", fps, minimum, maximum)
	}
	if err := c.features.SetFloatValue(featureFrameRate, fps); err != nil {
		return nil, featureError(err)
	}

	return events.FrameRateChangedEvent{
		DeviceID:  c.DeviceID(),
		FrameRate: fps,
		Timestamp: now(),
	}, nil
}

// FrameRate returns the configured frame rate.
func (c *Camera) FrameRate() (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameRate()
}

func (c *Camera) frameRate() (float64, error) {
	if !c.features.Has(featureFrameRate) {
		return defaultFrameRate, nil
	}
	v, err := c.features.FloatValue(featureFrameRate)
	return v, featureError(err)
}

// FrameRateBounds returns the allowed frame rate range for the current
// configuration.
func (c *Camera) FrameRateBounds() (float64, float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frameRateBounds()
}

func (c *Camera) frameRateBounds() (float64, float64, error) {
	if !c.features.Has(featureFrameRate) {
		return 0, 0, NewError(ErrCodeInvalidArgument, "device has no frame rate control", nil)
	}
	minimum, maximum, err := c.features.FloatBounds(featureFrameRate)
	if err != nil {
		return 0, 0, featureError(err)
	}
	if c.features.Has(featureFrameRateMax) {
		limit, err := c.features.FloatValue(featureFrameRateMax)
		if err != nil {
			return 0, 0, featureError(err)
		}
		maximum = math.Min(maximum, limit)
	}
	return minimum, maximum, nil
}

// clampFrameRate lowers the committed frame rate to the maximum of the
// current configuration. It returns nil when the rate was already in bounds.
// Callers hold mu.
func (c *Camera) clampFrameRate() events.Event {
	if !c.features.Has(featureFrameRate) {
		return nil
	}
	_, maximum, err := c.frameRateBounds()
	if err != nil {
		c.logger.Warn("Failed to read frame rate bounds", "error", err)
		return nil
	}
	fps, err := c.frameRate()
	if err != nil || fps <= maximum {
		return nil
	}
	if err := c.features.SetFloatValue(featureFrameRate, maximum); err != nil {
		c.logger.Warn("Failed to clamp frame rate", "frame_rate", fps, "max", maximum, "error", err)
		return nil
	}
	c.logger.Info("Frame rate clamped", "requested", fps, "frame_rate", maximum)
	return events.FrameRateChangedEvent{
		DeviceID:  c.DeviceID(),
		FrameRate: maximum,
		Timestamp: now(),
	}
}

// SetExposureTime sets the exposure time in microseconds.
func (c *Camera) SetExposureTime(us float64) error {
	return c.setFloat("SetExposureTime", featureExposureTime, us)
}

// ExposureTime returns the exposure time in microseconds.
func (c *Camera) ExposureTime() (float64, error) {
	return c.getFloat(featureExposureTime)
}

// SetGain sets the analog gain in dB.
func (c *Camera) SetGain(db float64) error {
	return c.setFloat("SetGain", featureGain, db)
}

func (c *Camera) Gain() (float64, error) {
	return c.getFloat(featureGain)
}

func (c *Camera) setFloat(op, name string, v float64) error {
	c.mu.Lock()
	if err := c.requireIdle(op); err != nil {
		c.mu.Unlock()
		return err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		c.mu.Unlock()
		return invalidArgument("invalid %s %g", name, v)
	}
	err := c.features.SetFloatValue(name, v)
	var clamped events.Event
	if err == nil {
		clamped = c.clampFrameRate()
	}
	c.mu.Unlock()
	if err != nil {
		return featureError(err)
	}
	c.publish(events.FeatureChangedEvent{
		DeviceID:  c.DeviceID(),
		Name:      name,
		Value:     genicam.FloatValue(v).String(),
		Timestamp: now(),
	})
	c.publish(clamped)
	return nil
}

func (c *Camera) getFloat(name string) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, err := c.features.FloatValue(name)
	return v, featureError(err)
}

// Payload returns the size in bytes of one frame for the current
// configuration.
func (c *Camera) Payload() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentPayload()
}

func (c *Camera) currentPayload() (int, error) {
	if c.payload > 0 {
		return c.payload, nil
	}

	var payload int
	if c.features.Has(featurePayloadSize) {
		v, err := c.features.IntegerValue(featurePayloadSize)
		if err != nil {
			return 0, featureError(err)
		}
		payload = int(v)
	} else {
		r, err := c.region()
		if err != nil {
			return 0, err
		}
		pf, err := c.pixelFormat()
		if err != nil {
			return 0, err
		}
		payload = pf.PayloadSize(r.Width, r.Height)
	}
	if payload < 0 {
		return 0, NewError(ErrCodeDevice, fmt.Sprintf("negative payload %d", payload), nil)
	}
	c.payload = payload
	return payload, nil
}

// Feature reads a feature node.
func (c *Camera) Feature(name string) (genicam.Value, error) {
	return c.features.Value(name)
}

// FeatureInfo returns a snapshot of a feature node.
func (c *Camera) FeatureInfo(name string) (genicam.Info, error) {
	return c.features.Node(name)
}

// Features returns every feature node sorted by name.
func (c *Camera) Features() []genicam.Info {
	names := c.features.Names()
	sort.Strings(names)
	out := make([]genicam.Info, 0, len(names))
	for _, name := range names {
		if info, err := c.features.Node(name); err == nil {
			out = append(out, info)
		}
	}
	return out
}

// SetFeature writes a feature node. Writes are only accepted while idle.
func (c *Camera) SetFeature(name string, v genicam.Value) error {
	return c.writeFeature(name, func() error { return c.features.SetValue(name, v) })
}

// SetFeatureString parses s according to the node kind and writes it.
func (c *Camera) SetFeatureString(name, s string) error {
	return c.writeFeature(name, func() error { return c.features.SetFromString(name, s) })
}

func (c *Camera) writeFeature(name string, write func() error) error {
	c.mu.Lock()
	if err := c.requireIdle("SetFeature"); err != nil {
		c.mu.Unlock()
		return err
	}
	if err := write(); err != nil {
		c.mu.Unlock()
		if errors.Is(err, genicam.ErrFeatureNotFound) {
			return err
		}
		return featureError(err)
	}
	clamped := c.clampFrameRate()
	c.mu.Unlock()

	value := ""
	if v, err := c.features.Value(name); err == nil {
		value = v.String()
	}
	c.publish(events.FeatureChangedEvent{
		DeviceID:  c.DeviceID(),
		Name:      name,
		Value:     value,
		Timestamp: now(),
	})
	c.publish(clamped)
	return nil
}

// Stream returns the bound acquisition stream, or nil.
func (c *Camera) Stream() *stream.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stream
}

// CreateStream creates the acquisition stream for the current payload and
// binds it to the camera, closing any previous stream. capacityHint only
// pre-sizes the queues.
func (c *Camera) CreateStream(capacityHint int, opts ...stream.Option) (*stream.Stream, error) {
	c.mu.Lock()
	s, ev, err := c.createStream(capacityHint, opts)
	c.mu.Unlock()
	if err != nil {
		return nil, err
	}
	c.publish(ev)
	return s, nil
}

func (c *Camera) createStream(capacityHint int, opts []stream.Option) (*stream.Stream, events.Event, error) {
	if c.closed {
		return nil, nil, invalidState("camera is closed")
	}
	if c.state == StateAcquiring {
		return nil, nil, NewError(ErrCodeAcquisitionInProgress, "cannot create a stream while acquiring", nil)
	}
	payload, err := c.currentPayload()
	if err != nil {
		return nil, nil, err
	}

	if c.stream != nil {
		dropped := c.stream.Close()
		c.logger.Debug("Replacing stream", "released_buffers", len(dropped))
	}

	deviceID := c.DeviceID()
	base := []stream.Option{
		stream.WithCapacity(capacityHint),
		stream.WithLogger(logging.GetLogger("stream").With("device", deviceID)),
		stream.WithCallback(c.bufferCallback(deviceID)),
	}
	c.stream = stream.New(payload, append(base, opts...)...)

	c.logger.Info("Stream created", "payload", payload, "capacity", capacityHint)
	return c.stream, events.StreamCreatedEvent{
		DeviceID:  deviceID,
		Payload:   payload,
		Buffers:   capacityHint,
		Timestamp: now(),
	}, nil
}

// bufferCallback publishes completed buffers on the event bus.
func (c *Camera) bufferCallback(deviceID string) stream.Callback {
	return func(t stream.CallbackType, b *stream.Buffer) {
		if t != stream.CallbackBufferDone || b == nil || c.bus == nil {
			return
		}
		c.bus.Publish(events.BufferCompletedEvent{
			DeviceID:  deviceID,
			FrameID:   b.FrameID,
			Status:    b.Status.String(),
			Timestamp: b.Timestamp.Format(time.RFC3339Nano),
		})
	}
}

// StartAcquisition starts filling the bound stream.
func (c *Camera) StartAcquisition() error {
	c.mu.Lock()
	err := c.startAcquisition()
	c.mu.Unlock()
	if err != nil {
		return err
	}
	c.publish(events.AcquisitionStateChangedEvent{
		DeviceID:  c.DeviceID(),
		State:     StateAcquiring.String(),
		Timestamp: now(),
	})
	return nil
}

func (c *Camera) startAcquisition() error {
	if c.state == StateAcquiring {
		return invalidState("acquisition already running")
	}
	if c.stream == nil || c.stream.Closed() {
		return invalidState("no stream bound")
	}

	payload, err := c.currentPayload()
	if err != nil {
		return err
	}
	if payload == 0 {
		return invalidState("payload is zero")
	}
	if c.stream.Payload() != payload {
		c.logger.Warn("Stream payload is stale, resizing", "stream_payload", c.stream.Payload(), "payload", payload)
		c.stream.SetPayload(payload)
	}

	cfg, err := c.frameConfig(payload)
	if err != nil {
		return err
	}
	filler, err := c.dev.NewFiller(cfg)
	if err != nil {
		if errors.Is(err, device.ErrUnsupported) {
			return NewError(ErrCodeUnsupportedFormat, "device rejected frame configuration", err)
		}
		return NewError(ErrCodeDevice, "failed to prepare acquisition", err)
	}
	if c.features.Has(featureAcquisitionRun) {
		if err := c.features.Execute(featureAcquisitionRun); err != nil {
			c.logger.Warn("AcquisitionStart command failed", "error", err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s := c.stream
	go func() {
		defer close(done)
		if err := filler.Run(ctx, s); err != nil {
			c.logger.Error("Frame filler stopped", "error", err)
		}
	}()

	c.cancel = cancel
	c.done = done
	c.state = StateAcquiring
	c.logger.Info("Acquisition started",
		"region", cfg.Region.String(),
		"pixel_format", cfg.PixelFormat.String(),
		"payload", cfg.Payload,
		"frame_rate", cfg.FrameRate)
	return nil
}

func (c *Camera) frameConfig(payload int) (device.FrameConfig, error) {
	r, err := c.region()
	if err != nil {
		return device.FrameConfig{}, err
	}
	pf, err := c.pixelFormat()
	if err != nil {
		return device.FrameConfig{}, err
	}
	fps, err := c.frameRate()
	if err != nil {
		return device.FrameConfig{}, err
	}
	cfg := device.FrameConfig{Region: r, PixelFormat: pf, Payload: payload, FrameRate: fps}
	if c.features.Has(featureExposureTime) {
		cfg.ExposureTime, _ = c.features.FloatValue(featureExposureTime)
	}
	if c.features.Has(featureGain) {
		cfg.Gain, _ = c.features.FloatValue(featureGain)
	}
	return cfg, nil
}

// StopAcquisition stops the filler, then aborts every buffer it still held
// and wakes all blocked pops. Stopping an idle camera does nothing.
func (c *Camera) StopAcquisition() error {
	c.mu.Lock()
	stopped := c.stopAcquisition()
	c.mu.Unlock()
	if stopped {
		c.publish(events.AcquisitionStateChangedEvent{
			DeviceID:  c.DeviceID(),
			State:     StateIdle.String(),
			Reason:    "stopped",
			Timestamp: now(),
		})
	}
	return nil
}

func (c *Camera) stopAcquisition() bool {
	if c.state != StateAcquiring {
		return false
	}

	c.cancel()
	<-c.done
	c.cancel, c.done = nil, nil

	if c.stream != nil {
		c.stream.Abort()
	}
	if c.features.Has(featureAcquisitionEnd) {
		if err := c.features.Execute(featureAcquisitionEnd); err != nil {
			c.logger.Warn("AcquisitionStop command failed", "error", err)
		}
	}
	c.state = StateIdle

	if c.stream != nil {
		st := c.stream.Statistics()
		c.logger.Info("Acquisition stopped",
			"completed", st.Completed,
			"failures", st.Failures,
			"underruns", st.Underruns,
			"aborted", st.Aborted)
	}
	return true
}

// Close stops acquisition, closes the stream and the device, and returns
// every buffer the stream still owned. Later calls return nil.
func (c *Camera) Close() []*stream.Buffer {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	stopped := c.stopAcquisition()
	c.closed = true

	var released []*stream.Buffer
	if c.stream != nil {
		released = c.stream.Close()
	}
	if err := c.dev.Close(); err != nil {
		c.logger.Warn("Failed to close device", "error", err)
	}
	c.mu.Unlock()

	if stopped {
		c.publish(events.AcquisitionStateChangedEvent{
			DeviceID:  c.DeviceID(),
			State:     StateIdle.String(),
			Reason:    "closed",
			Timestamp: now(),
		})
	}
	return released
}
