//go:build linux

// Package v4l2 provides pure Go bindings to the Video4Linux2 (V4L2) API for
// capture device enumeration, format negotiation and read() frame capture.
//
// This package does not use cgo. Struct layouts target 64-bit kernels
// (amd64, arm64).
//
// # Device Enumeration
//
//	devices, err := v4l2.FindDevices()
//	for _, dev := range devices {
//	    fmt.Printf("%s: %s\n", dev.DevicePath, dev.DeviceName)
//	}
//
// # Format Queries
//
//	formats, _ := v4l2.GetFormats("/dev/video0")
//	for _, f := range formats {
//	    resolutions, _ := v4l2.GetResolutions("/dev/video0", f.PixelFormat)
//	    _ = resolutions
//	}
//
// # Capture
//
//	c, err := v4l2.OpenCapture("/dev/video0")
//	format, err := c.SetFormat(640, 480, v4l2.FourCC("GREY"))
//	buf := make([]byte, format.SizeImage)
//	n, err := c.ReadFrame(buf, time.Second)
package v4l2
