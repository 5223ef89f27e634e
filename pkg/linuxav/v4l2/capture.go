//go:build linux

package v4l2

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Capture is an open capture device using read() I/O.
type Capture struct {
	mu     sync.Mutex
	fd     int
	path   string
	format Format
}

// OpenCapture opens devicePath for read() capture.
func OpenCapture(devicePath string) (*Capture, error) {
	fd, err := open(devicePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open device: %w", err)
	}

	c, err := queryCapability(fd)
	if err != nil {
		closeFd(fd)
		return nil, fmt.Errorf("failed to query capabilities: %w", err)
	}
	caps := c.effectiveCaps()
	if caps&v4l2CapVideoCapture == 0 {
		closeFd(fd)
		return nil, fmt.Errorf("%s is not a capture device", devicePath)
	}
	if caps&v4l2CapReadWrite == 0 {
		closeFd(fd)
		return nil, fmt.Errorf("%s: %w", devicePath, ErrNoReadIO)
	}

	return &Capture{fd: fd, path: devicePath}, nil
}

// SetFormat negotiates a progressive capture format. The driver may adjust
// the size; the returned Format is what it accepted.
func (c *Capture) SetFormat(width, height, pixelFormat uint32) (Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := v4l2Format{typ: v4l2BufTypeVideoCapture}
	f.pix = v4l2PixFormat{
		width:       width,
		height:      height,
		pixelformat: pixelFormat,
		field:       v4l2FieldNone,
	}
	if err := ioctl(c.fd, vidiocSFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, fmt.Errorf("VIDIOC_S_FMT %dx%d %s: %w", width, height, FormatFourCC(pixelFormat), err)
	}

	c.format = Format{
		Width:        f.pix.width,
		Height:       f.pix.height,
		PixelFormat:  f.pix.pixelformat,
		BytesPerLine: f.pix.bytesperline,
		SizeImage:    f.pix.sizeimage,
	}
	return c.format, nil
}

// Format reads the current format from the driver.
func (c *Capture) Format() (Format, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f := v4l2Format{typ: v4l2BufTypeVideoCapture}
	if err := ioctl(c.fd, vidiocGFmt, unsafe.Pointer(&f)); err != nil {
		return Format{}, fmt.Errorf("VIDIOC_G_FMT: %w", err)
	}
	return Format{
		Width:        f.pix.width,
		Height:       f.pix.height,
		PixelFormat:  f.pix.pixelformat,
		BytesPerLine: f.pix.bytesperline,
		SizeImage:    f.pix.sizeimage,
	}, nil
}

// SetFrameRate requests a frame interval of 1/fps. Drivers without
// time-per-frame support are left untouched.
func (c *Capture) SetFrameRate(fps float64) (Framerate, error) {
	if fps <= 0 || math.IsNaN(fps) || math.IsInf(fps, 0) {
		return Framerate{}, fmt.Errorf("invalid frame rate %v", fps)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	parm := v4l2StreamParm{typ: v4l2BufTypeVideoCapture}
	if err := ioctl(c.fd, vidiocGParm, unsafe.Pointer(&parm)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_G_PARM: %w", err)
	}
	if parm.capture.capability&v4l2CapTimePerFrame == 0 {
		tpf := parm.capture.timeperframe
		return Framerate{Numerator: tpf.numerator, Denominator: tpf.denominator}, nil
	}

	parm.capture.timeperframe = v4l2Fract{numerator: 1000, denominator: uint32(math.Round(fps * 1000))}
	if err := ioctl(c.fd, vidiocSParm, unsafe.Pointer(&parm)); err != nil {
		return Framerate{}, fmt.Errorf("VIDIOC_S_PARM: %w", err)
	}
	tpf := parm.capture.timeperframe
	return Framerate{Numerator: tpf.numerator, Denominator: tpf.denominator}, nil
}

// ReadFrame reads one frame into buf, waiting up to timeout for the device
// to become readable. It returns the number of bytes read.
func (c *Capture) ReadFrame(buf []byte, timeout time.Duration) (int, error) {
	deadline := time.Now().Add(timeout)
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return 0, ErrTimeout
		}

		var readFds unix.FdSet
		readFds.Set(c.fd)
		tv := unix.NsecToTimeval(remaining.Nanoseconds())
		n, err := unix.Select(c.fd+1, &readFds, nil, nil, &tv)
		if err != nil {
			if errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("select: %w", err)
		}
		if n == 0 {
			return 0, ErrTimeout
		}

		read, err := unix.Read(c.fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return 0, fmt.Errorf("read: %w", err)
		}
		return read, nil
	}
}

// Path returns the device node this capture was opened from.
func (c *Capture) Path() string { return c.path }

func (c *Capture) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fd < 0 {
		return nil
	}
	err := closeFd(c.fd)
	c.fd = -1
	return err
}
