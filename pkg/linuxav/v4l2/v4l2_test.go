//go:build linux

package v4l2

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestFourCCRoundTrip(t *testing.T) {
	tests := []struct {
		code string
		want uint32
	}{
		{"YUYV", 0x56595559},
		{"MJPG", 0x47504A4D},
		{"GREY", 0x59455247},
		{"RGB3", 0x33424752},
		{"Y16", 0x20363159},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			got := FourCC(tt.code)
			if got != tt.want {
				t.Errorf("Expected 0x%08X for %q, got 0x%08X", tt.want, tt.code, got)
			}
			back := FormatFourCC(got)
			if len(tt.code) == 4 && back != tt.code {
				t.Errorf("Expected %q back, got %q", tt.code, back)
			}
		})
	}

	if got := FormatFourCC(0x01020304); got != "\x04\x03\x02\x01" {
		t.Errorf("Expected little-endian byte order, got %q", got)
	}
}

func TestFramerateFPS(t *testing.T) {
	tests := []struct {
		name      string
		framerate Framerate
		want      float64
	}{
		{"60 fps", Framerate{Numerator: 1, Denominator: 60}, 60},
		{"29.97 fps", Framerate{Numerator: 1001, Denominator: 30000}, 30000.0 / 1001.0},
		{"millis", Framerate{Numerator: 1000, Denominator: 12500}, 12.5},
		{"zero numerator", Framerate{Numerator: 0, Denominator: 60}, 0},
		{"zero denominator", Framerate{Numerator: 1, Denominator: 0}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.framerate.FPS(); math.Abs(got-tt.want) > 0.001 {
				t.Errorf("Expected %f fps, got %f", tt.want, got)
			}
		})
	}
}

func TestStepwiseResolutions(t *testing.T) {
	s := &v4l2FrmsizeStepwise{
		minWidth: 16, maxWidth: 1920, stepWidth: 2,
		minHeight: 16, maxHeight: 1080, stepHeight: 2,
	}

	got := stepwiseResolutions(s)
	last := got[len(got)-1]
	if last.Width != 1920 || last.Height != 1080 {
		t.Errorf("Expected maximum size last, got %dx%d", last.Width, last.Height)
	}
	for _, r := range got[:len(got)-1] {
		if r.Width >= 1920 || r.Height >= 1080 {
			t.Errorf("Expected common sizes below the maximum, got %dx%d", r.Width, r.Height)
		}
	}
}

func TestFrmsizeStepwiseUnion(t *testing.T) {
	f := v4l2Frmsizeenum{}
	s := f.stepwise()
	s.minWidth, s.maxWidth = 8, 640

	if f.discrete.width != 8 || f.discrete.height != 640 {
		t.Errorf("Expected stepwise to overlay discrete, got %+v", f.discrete)
	}
}

func TestCapabilityEffectiveCaps(t *testing.T) {
	c := v4l2Capability{capabilities: v4l2CapVideoCapture | v4l2CapStreaming}
	if c.effectiveCaps() != v4l2CapVideoCapture|v4l2CapStreaming {
		t.Errorf("Expected physical caps without DEVICE_CAPS, got 0x%x", c.effectiveCaps())
	}

	c = v4l2Capability{
		capabilities: v4l2CapDeviceCaps | v4l2CapVideoCapture | v4l2CapReadWrite,
		deviceCaps:   v4l2CapVideoCapture,
	}
	if got := c.effectiveCaps(); got != v4l2CapVideoCapture {
		t.Errorf("Expected device caps 0x1, got 0x%x", got)
	}
	if (DeviceInfo{Caps: c.effectiveCaps()}).CanRead() {
		t.Error("Expected node without READWRITE to report CanRead false")
	}
}

func TestCstr(t *testing.T) {
	if got := cstr([]byte{'u', 'v', 'c', 0, 'x'}); got != "uvc" {
		t.Errorf("Expected uvc, got %q", got)
	}
	if got := cstr([]byte("full")); got != "full" {
		t.Errorf("Expected full, got %q", got)
	}
}

func TestStableIDFallback(t *testing.T) {
	dir := t.TempDir()
	old := byIDDir
	byIDDir = dir
	defer func() { byIDDir = old }()

	if got := stableID("video0", "usb-0000:00:14.0-1", 0); got != "usb-0000:00:14.0-1-video-index0" {
		t.Errorf("Expected usb synthetic ID, got %s", got)
	}
	if got := stableID("video2", "platform:fe800000.csi", 1); got != "platform-platform:fe800000.csi-video-index1" {
		t.Errorf("Expected platform synthetic ID, got %s", got)
	}

	link := filepath.Join(dir, "usb-Acme_Cam_123-video-index0")
	if err := os.Symlink("../../video0", link); err != nil {
		t.Fatalf("Symlink failed: %v", err)
	}
	if got := stableID("video0", "usb-0000:00:14.0-1", 0); got != "usb-Acme_Cam_123-video-index0" {
		t.Errorf("Expected by-id symlink name, got %s", got)
	}
}

func TestFindDevicesMissingSysfs(t *testing.T) {
	old := sysfsRoot
	sysfsRoot = filepath.Join(t.TempDir(), "missing")
	defer func() { sysfsRoot = old }()

	devices, err := FindDevices()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(devices) != 0 {
		t.Errorf("Expected no devices, got %d", len(devices))
	}
}
