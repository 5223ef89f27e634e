// Package device defines the camera backends camnode can drive and the
// registry that discovers and opens them.
//
// A backend exposes its feature nodes as a genicam.Dictionary and produces
// frames through a Filler that moves buffers from a stream's input queue to
// its output queue.
package device

import (
	"context"
	"errors"

	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/internal/types"
	"github.com/smazurov/camnode/pkg/genicam"
)

var (
	ErrDeviceNotFound = errors.New("device not found")
	ErrNoDevices      = errors.New("no devices available")
	ErrUnknownBackend = errors.New("unknown device interface")
	ErrUnsupported    = errors.New("unsupported frame configuration")
)

// Info identifies a discovered device.
type Info struct {
	ID        string `json:"id" example:"Fake_1" doc:"Device identifier"`
	Vendor    string `json:"vendor" example:"camnode" doc:"Vendor name"`
	Model     string `json:"model" example:"Fake" doc:"Model name"`
	Serial    string `json:"serial" example:"1" doc:"Serial number"`
	Interface string `json:"interface" example:"fake" doc:"Backend that provides the device"`
	Path      string `json:"path,omitempty" example:"/dev/video0" doc:"Device node, when there is one"`
}

// FrameConfig is the frame layout a filler produces, captured when
// acquisition starts.
type FrameConfig struct {
	Region       types.Region
	PixelFormat  types.PixelFormat
	Payload      int
	FrameRate    float64
	ExposureTime float64
	Gain         float64
}

// Device is an opened camera.
type Device interface {
	Info() Info
	Features() *genicam.Dictionary
	NewFiller(cfg FrameConfig) (Filler, error)
	Close() error
}

// Filler fills stream buffers until ctx is done. It takes buffers with
// PopInputBuffer and returns every one it took with PushOutputBuffer.
type Filler interface {
	Run(ctx context.Context, s *stream.Stream) error
}

// Interface is a device backend.
type Interface interface {
	Name() string
	Discover() ([]Info, error)
	Open(id string) (Device, error)
}
