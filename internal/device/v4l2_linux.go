//go:build linux && (amd64 || arm64)

package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/camnode/internal/logging"
	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/pkg/genicam"
	"github.com/smazurov/camnode/pkg/linuxav/v4l2"
)

// V4L2InterfaceName is the backend name of video4linux capture devices.
const V4L2InterfaceName = "v4l2"

const (
	v4l2ReadTimeout      = 500 * time.Millisecond
	v4l2DefaultFrameRate = 30.0
)

func platformInterfaces() []Interface {
	return []Interface{NewV4L2Interface()}
}

// V4L2Interface exposes video4linux devices that support read() capture.
type V4L2Interface struct {
	logger *slog.Logger
}

func NewV4L2Interface() *V4L2Interface {
	return &V4L2Interface{logger: logging.GetLogger("v4l2")}
}

func (v *V4L2Interface) Name() string { return V4L2InterfaceName }

func (v *V4L2Interface) Discover() ([]Info, error) {
	devices, err := v4l2.FindDevices()
	if err != nil {
		return nil, err
	}

	var infos []Info
	for _, d := range devices {
		if !d.CanRead() {
			v.logger.Debug("Skipping device without read i/o", "path", d.DevicePath, "name", d.DeviceName)
			continue
		}
		infos = append(infos, Info{
			ID:        d.DeviceID,
			Vendor:    d.Driver,
			Model:     d.DeviceName,
			Serial:    d.BusInfo,
			Interface: V4L2InterfaceName,
			Path:      d.DevicePath,
		})
	}
	return infos, nil
}

func (v *V4L2Interface) Open(id string) (Device, error) {
	devices, err := v.Discover()
	if err != nil {
		return nil, err
	}
	var info Info
	for _, d := range devices {
		if d.ID == id || d.Path == id {
			info = d
			break
		}
	}
	if info.ID == "" {
		path, err := v4l2.GetDevicePathByID(id)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
		}
		info = Info{ID: id, Interface: V4L2InterfaceName, Path: path}
	}

	capture, err := v4l2.OpenCapture(info.Path)
	if err != nil {
		return nil, err
	}

	features, err := v4l2Features(info)
	if err != nil {
		capture.Close()
		return nil, err
	}

	return &v4l2Device{
		info:     info,
		features: features,
		capture:  capture,
		logger:   v.logger.With("device", info.ID),
	}, nil
}

// v4l2Features builds the feature nodes of a device from its format,
// size and frame interval enumeration. The sensor size is the largest frame
// size of the first mapped format.
func v4l2Features(info Info) (*genicam.Dictionary, error) {
	formats, err := v4l2.GetFormats(info.Path)
	if err != nil {
		return nil, err
	}

	var (
		entries []genicam.EnumEntry
		fourccs []uint32
	)
	for _, f := range formats {
		pf, ok := PixelFormatFromFourCC(v4l2.FormatFourCC(f.PixelFormat))
		if !ok {
			continue
		}
		entries = append(entries, genicam.EnumEntry{Name: pf.String(), Value: int64(pf)})
		fourccs = append(fourccs, f.PixelFormat)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("%w: %s offers no supported pixel format", ErrUnsupported, info.Path)
	}

	resolutions, err := v4l2.GetResolutions(info.Path, fourccs[0])
	if err != nil {
		return nil, err
	}
	var maxW, maxH int64 = 640, 480
	minW, minH := maxW, maxH
	for i, r := range resolutions {
		w, h := int64(r.Width), int64(r.Height)
		if i == 0 || w*h > maxW*maxH {
			maxW, maxH = w, h
		}
		if i == 0 || w*h < minW*minH {
			minW, minH = w, h
		}
	}

	maxFPS := v4l2DefaultFrameRate
	if rates, err := v4l2.GetFramerates(info.Path, fourccs[0], uint32(maxW), uint32(maxH)); err == nil {
		for _, r := range rates {
			maxFPS = max(maxFPS, r.FPS())
		}
	}

	d := genicam.NewDictionary()
	nodes := []genicam.Node{
		{Name: "DeviceVendorName", Kind: genicam.KindString, Str: info.Vendor},
		{Name: "DeviceModelName", Kind: genicam.KindString, Str: info.Model},
		{Name: "DeviceSerialNumber", Kind: genicam.KindString, Str: info.Serial},
		{Name: "SensorWidth", Kind: genicam.KindInteger, Unit: "px", Int: maxW},
		{Name: "SensorHeight", Kind: genicam.KindInteger, Unit: "px", Int: maxH},
		{Name: "Width", Kind: genicam.KindInteger, Access: genicam.AccessRW, Unit: "px", Int: maxW, Min: minW, HasMin: true, MaxNode: "SensorWidth"},
		{Name: "Height", Kind: genicam.KindInteger, Access: genicam.AccessRW, Unit: "px", Int: maxH, Min: minH, HasMin: true, MaxNode: "SensorHeight"},
		{Name: "OffsetX", Kind: genicam.KindInteger, Unit: "px"},
		{Name: "OffsetY", Kind: genicam.KindInteger, Unit: "px"},
		{Name: "PixelFormat", Kind: genicam.KindEnumeration, Access: genicam.AccessRW, Int: entries[0].Value, Entries: entries},
		{
			Name:      "PayloadSize",
			Kind:      genicam.KindInteger,
			Unit:      "B",
			Formula:   "W * H * ((PF >> 16) & 0xFF) / 8",
			Variables: map[string]string{"W": "Width", "H": "Height", "PF": "PixelFormat"},
		},
		{Name: "AcquisitionFrameRate", Kind: genicam.KindFloat, Access: genicam.AccessRW, Unit: "Hz", Float: min(v4l2DefaultFrameRate, maxFPS), FloatMin: 1, FloatMax: maxFPS, HasMin: true, HasMax: true},
		{Name: "AcquisitionStart", Kind: genicam.KindCommand, Access: genicam.AccessRW},
		{Name: "AcquisitionStop", Kind: genicam.KindCommand, Access: genicam.AccessRW},
	}
	for _, n := range nodes {
		if err := d.Add(n); err != nil {
			return nil, err
		}
	}
	return d, nil
}

type v4l2Device struct {
	info     Info
	features *genicam.Dictionary
	capture  *v4l2.Capture
	logger   *slog.Logger
	mu       sync.Mutex
}

func (d *v4l2Device) Info() Info                    { return d.info }
func (d *v4l2Device) Features() *genicam.Dictionary { return d.features }
func (d *v4l2Device) Close() error                  { return d.capture.Close() }

// NewFiller negotiates the frame format with the driver. A driver that
// adjusts the size or reports a different image size is rejected.
func (d *v4l2Device) NewFiller(cfg FrameConfig) (Filler, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if cfg.Region.X != 0 || cfg.Region.Y != 0 {
		return nil, fmt.Errorf("%w: offsets are not supported", ErrUnsupported)
	}
	code, ok := FourCCFromPixelFormat(cfg.PixelFormat)
	if !ok {
		return nil, fmt.Errorf("%w: pixel format %s", ErrUnsupported, cfg.PixelFormat)
	}

	f, err := d.capture.SetFormat(uint32(cfg.Region.Width), uint32(cfg.Region.Height), v4l2.FourCC(code))
	if err != nil {
		return nil, err
	}
	if int(f.Width) != cfg.Region.Width || int(f.Height) != cfg.Region.Height {
		return nil, fmt.Errorf("%w: driver adjusted %s to %dx%d", ErrUnsupported, cfg.Region, f.Width, f.Height)
	}
	if int(f.SizeImage) != cfg.Payload {
		return nil, fmt.Errorf("%w: driver image size %d, expected %d", ErrUnsupported, f.SizeImage, cfg.Payload)
	}

	if cfg.FrameRate > 0 {
		rate, err := d.capture.SetFrameRate(cfg.FrameRate)
		if err != nil {
			d.logger.Warn("Failed to set frame rate", "fps", cfg.FrameRate, "error", err)
		} else {
			d.logger.Debug("Frame rate set", "requested", cfg.FrameRate, "actual", rate.FPS())
		}
	}

	return &v4l2Filler{cfg: cfg, capture: d.capture, logger: d.logger}, nil
}

type v4l2Filler struct {
	cfg     FrameConfig
	capture *v4l2.Capture
	logger  *slog.Logger
	frame   uint64
}

// Run reads frames into stream buffers until ctx is done. A buffer whose read
// times out is kept for the next attempt.
func (f *v4l2Filler) Run(ctx context.Context, s *stream.Stream) error {
	s.Notify(stream.CallbackInit)
	defer s.Notify(stream.CallbackExit)

	idle := time.Second / 100
	var held *stream.Buffer
	defer func() {
		if held != nil {
			held.Status = stream.StatusAborted
			s.PushOutputBuffer(held)
		}
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		if held == nil {
			held = s.PopInputBuffer()
			if held == nil {
				select {
				case <-ctx.Done():
					return nil
				case <-time.After(idle):
				}
				continue
			}
		}

		n, err := f.capture.ReadFrame(held.Data, v4l2ReadTimeout)
		if errors.Is(err, v4l2.ErrTimeout) {
			continue
		}

		b := held
		held = nil
		f.frame++
		b.FrameID = f.frame
		b.Timestamp = time.Now()
		b.Region = f.cfg.Region
		b.PixelFormat = f.cfg.PixelFormat

		switch {
		case err != nil:
			b.Status = stream.StatusFailed
			s.PushOutputBuffer(b)
			return fmt.Errorf("read %s: %w", f.capture.Path(), err)
		case n != f.cfg.Payload:
			f.logger.Debug("Short frame", "frame_id", b.FrameID, "bytes", n, "expected", f.cfg.Payload)
			b.Status = stream.StatusFailed
		default:
			b.Status = stream.StatusFilled
		}
		s.PushOutputBuffer(b)
	}
}
