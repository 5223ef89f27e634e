package device

import (
	"context"
	_ "embed"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/internal/types"
	"github.com/smazurov/camnode/pkg/genicam"
)

// FakeInterfaceName is the backend name of the built-in test camera.
const FakeInterfaceName = "fake"

//go:embed fake.toml
var fakeDescription []byte

// FakeOption configures the fake backend.
type FakeOption func(*FakeInterface)

// WithFakeDescription replaces the built-in feature description.
func WithFakeDescription(data []byte) FakeOption {
	return func(f *FakeInterface) {
		if len(data) > 0 {
			f.description = data
		}
	}
}

// WithFakeDescriptionFile loads the feature description from path at Open.
func WithFakeDescriptionFile(path string) FakeOption {
	return func(f *FakeInterface) {
		f.descriptionPath = path
	}
}

// WithFakeSerial sets the serial number, and with it the device ID.
func WithFakeSerial(serial string) FakeOption {
	return func(f *FakeInterface) {
		if serial != "" {
			f.serial = serial
		}
	}
}

// FakeInterface provides a single simulated camera that renders a moving
// ramp pattern.
type FakeInterface struct {
	description     []byte
	descriptionPath string
	serial          string
}

func NewFakeInterface(opts ...FakeOption) *FakeInterface {
	f := &FakeInterface{description: fakeDescription, serial: "1"}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *FakeInterface) Name() string { return FakeInterfaceName }

func (f *FakeInterface) info() Info {
	return Info{
		ID:        "Fake_" + f.serial,
		Vendor:    "camnode",
		Model:     "Fake",
		Serial:    f.serial,
		Interface: FakeInterfaceName,
	}
}

func (f *FakeInterface) Discover() ([]Info, error) {
	return []Info{f.info()}, nil
}

func (f *FakeInterface) Open(id string) (Device, error) {
	info := f.info()
	if id != "" && id != info.ID {
		return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
	}

	var (
		features *genicam.Dictionary
		err      error
	)
	if f.descriptionPath != "" {
		features, err = genicam.Load(f.descriptionPath)
	} else {
		features, err = genicam.Parse(f.description)
	}
	if err != nil {
		return nil, err
	}
	if features.Has("DeviceSerialNumber") {
		if err := features.Update("DeviceSerialNumber", genicam.StringValue(f.serial)); err != nil {
			return nil, err
		}
	}

	return &fakeDevice{
		info:     info,
		features: features,
		logger:   logging.GetLogger("device").With("device", info.ID),
	}, nil
}

type fakeDevice struct {
	info     Info
	features *genicam.Dictionary
	logger   *slog.Logger
}

func (d *fakeDevice) Info() Info                    { return d.info }
func (d *fakeDevice) Features() *genicam.Dictionary { return d.features }
func (d *fakeDevice) Close() error                  { return nil }

func (d *fakeDevice) NewFiller(cfg FrameConfig) (Filler, error) {
	if cfg.Region.Empty() {
		return nil, fmt.Errorf("%w: empty region %s", ErrUnsupported, cfg.Region)
	}
	if cfg.PixelFormat.BitsPerPixel()%8 != 0 {
		return nil, fmt.Errorf("%w: packed format %s", ErrUnsupported, cfg.PixelFormat)
	}
	if cfg.FrameRate <= 0 {
		return nil, fmt.Errorf("%w: frame rate %g", ErrUnsupported, cfg.FrameRate)
	}
	return &fakeFiller{cfg: cfg, logger: d.logger}, nil
}

type fakeFiller struct {
	cfg    FrameConfig
	logger *slog.Logger
	frame  uint64
}

// Run produces one frame per frame period until ctx is done. A tick with no
// input buffer queued is counted by the stream as an underrun.
func (f *fakeFiller) Run(ctx context.Context, s *stream.Stream) error {
	s.Notify(stream.CallbackInit)
	defer s.Notify(stream.CallbackExit)

	period := time.Duration(float64(time.Second) / f.cfg.FrameRate)
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	f.logger.Debug("Fake filler started", "region", f.cfg.Region.String(), "pixel_format", f.cfg.PixelFormat.String(), "period", period)

	for {
		select {
		case <-ctx.Done():
			f.logger.Debug("Fake filler stopped", "frames", f.frame)
			return nil
		case now := <-ticker.C:
			b := s.PopInputBuffer()
			if b == nil {
				continue
			}
			f.fill(b, now)
			s.PushOutputBuffer(b)
		}
	}
}

func (f *fakeFiller) fill(b *stream.Buffer, now time.Time) {
	f.frame++
	b.FrameID = f.frame
	b.Timestamp = now
	b.Region = f.cfg.Region
	b.PixelFormat = f.cfg.PixelFormat

	if b.Size() != f.cfg.Payload {
		b.Status = stream.StatusFailed
		return
	}
	renderRamp(b.Data, f.cfg.Region, f.cfg.PixelFormat, f.frame, f.cfg.Gain)
	b.Status = stream.StatusFilled
}

// renderRamp draws a diagonal ramp shifted by frame and amplified by gain in dB.
func renderRamp(data []byte, r types.Region, pf types.PixelFormat, frame uint64, gain float64) {
	scale := math.Pow(10, gain/20)
	bytesPerPixel := pf.BitsPerPixel() / 8
	wide := pf == types.PixelFormatMono16

	for y := 0; y < r.Height; y++ {
		row := y * r.Width * bytesPerPixel
		for x := 0; x < r.Width; x++ {
			v := math.Min(float64((r.X+x+r.Y+y+int(frame))%256)*scale, 255)
			off := row + x*bytesPerPixel
			if off+bytesPerPixel > len(data) {
				return
			}
			if wide {
				binary.LittleEndian.PutUint16(data[off:], uint16(v)<<8)
				continue
			}
			for c := 0; c < bytesPerPixel; c++ {
				data[off+c] = byte(v)
			}
		}
	}
}
