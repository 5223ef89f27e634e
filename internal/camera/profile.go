package camera

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/camnode/internal/types"
)

// Profile is the camera configuration kept in the [camera] section of the
// config file. Zero fields leave the device setting unchanged.
type Profile struct {
	DeviceID     string        `toml:"device_id" json:"device_id,omitempty"`
	Region       *types.Region `toml:"region" json:"region,omitempty"`
	PixelFormat  string        `toml:"pixel_format" json:"pixel_format,omitempty"`
	FrameRate    float64       `toml:"frame_rate" json:"frame_rate,omitempty"`
	ExposureTime float64       `toml:"exposure_time" json:"exposure_time,omitempty"`
	Gain         *float64      `toml:"gain" json:"gain,omitempty"`
	Buffers      int           `toml:"buffers" json:"buffers,omitempty"`
}

// LoadProfile reads the [camera] section of a TOML file. A file without the
// section yields an empty profile.
func LoadProfile(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read profile: %w", err)
	}

	var file struct {
		Camera Profile `toml:"camera"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return Profile{}, fmt.Errorf("failed to parse profile: %w", err)
	}
	return file.Camera, nil
}

// Empty reports whether the profile changes nothing.
func (p Profile) Empty() bool {
	return p.Region == nil && p.PixelFormat == "" && p.FrameRate == 0 &&
		p.ExposureTime == 0 && p.Gain == nil
}

// Apply writes the profile to cam. The pixel format and region go first
// because they bound the frame rate. Every setting is attempted; the
// returned error joins the failures.
func (p Profile) Apply(cam *Camera) error {
	if cam.State() == StateAcquiring {
		return invalidState("profile cannot be applied while acquiring")
	}

	var errs []error
	if p.PixelFormat != "" {
		pf, err := types.ParsePixelFormat(p.PixelFormat)
		if err != nil {
			errs = append(errs, NewError(ErrCodeUnsupportedFormat, "", err))
		} else if err := cam.SetPixelFormat(pf); err != nil {
			errs = append(errs, fmt.Errorf("pixel_format: %w", err))
		}
	}
	if p.Region != nil {
		r := *p.Region
		if err := cam.SetRegion(r.X, r.Y, r.Width, r.Height); err != nil {
			errs = append(errs, fmt.Errorf("region: %w", err))
		}
	}
	if p.ExposureTime != 0 {
		if err := cam.SetExposureTime(p.ExposureTime); err != nil {
			errs = append(errs, fmt.Errorf("exposure_time: %w", err))
		}
	}
	if p.FrameRate != 0 {
		if err := cam.SetFrameRate(p.FrameRate); err != nil {
			errs = append(errs, fmt.Errorf("frame_rate: %w", err))
		}
	}
	if p.Gain != nil {
		if err := cam.SetGain(*p.Gain); err != nil {
			errs = append(errs, fmt.Errorf("gain: %w", err))
		}
	}
	return errors.Join(errs...)
}
