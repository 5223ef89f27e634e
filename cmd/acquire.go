package cmd

import (
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/capture"
	"github.com/smazurov/camnode/internal/stream"
	"github.com/smazurov/camnode/internal/types"
	"github.com/spf13/cobra"
)

type acquireOptions struct {
	offsetX, offsetY int
	width, height    int
	pixelFormat      string
	frameRate        float64
	exposure         float64
	gain             float64
	buffers          int
	frames           int
	timeout          time.Duration
	saveDir          string
}

func (o acquireOptions) configure(cmd *cobra.Command, cam *camera.Camera) error {
	if o.pixelFormat != "" {
		pf, err := types.ParsePixelFormat(o.pixelFormat)
		if err != nil {
			return err
		}
		if err := cam.SetPixelFormat(pf); err != nil {
			return err
		}
	}

	if o.width > 0 || o.height > 0 || cmd.Flags().Changed("offset-x") || cmd.Flags().Changed("offset-y") {
		r, err := cam.Region()
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("offset-x") {
			r.X = o.offsetX
		}
		if cmd.Flags().Changed("offset-y") {
			r.Y = o.offsetY
		}
		if o.width > 0 {
			r.Width = o.width
		}
		if o.height > 0 {
			r.Height = o.height
		}
		if err := cam.SetRegion(r.X, r.Y, r.Width, r.Height); err != nil {
			return err
		}
	}

	if o.exposure > 0 {
		if err := cam.SetExposureTime(o.exposure); err != nil {
			return err
		}
	}
	if cmd.Flags().Changed("gain") {
		if err := cam.SetGain(o.gain); err != nil {
			return err
		}
	}
	if o.frameRate > 0 {
		if err := cam.SetFrameRate(o.frameRate); err != nil {
			return err
		}
	}
	return nil
}

func printCameraInfo(out io.Writer, cam *camera.Camera) error {
	r, err := cam.Region()
	if err != nil {
		return err
	}
	payload, err := cam.Payload()
	if err != nil {
		return err
	}
	fps, err := cam.FrameRate()
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Device:       %s\n", cam.DeviceID())
	fmt.Fprintf(out, "Vendor:       %s\n", cam.VendorName())
	fmt.Fprintf(out, "Model:        %s\n", cam.ModelName())
	fmt.Fprintf(out, "Serial:       %s\n", cam.SerialNumber())
	fmt.Fprintf(out, "Region:       %s\n", r)
	fmt.Fprintf(out, "Pixel format: %s\n", cam.PixelFormatString())
	fmt.Fprintf(out, "Payload:      %d bytes\n", payload)
	fmt.Fprintf(out, "Frame rate:   %g Hz\n", fps)
	return nil
}

func runAcquire(cmd *cobra.Command, cam *camera.Camera, o acquireOptions) error {
	out := cmd.OutOrStdout()
	if err := o.configure(cmd, cam); err != nil {
		return err
	}
	if err := printCameraInfo(out, cam); err != nil {
		return err
	}

	payload, err := cam.Payload()
	if err != nil {
		return err
	}
	st, err := cam.CreateStream(o.buffers)
	if err != nil {
		return err
	}
	for i := 0; i < o.buffers; i++ {
		if err := st.PushBuffer(stream.NewBuffer(payload)); err != nil {
			return err
		}
	}

	if err := cam.StartAcquisition(); err != nil {
		return err
	}
	defer func() { _ = cam.StopAcquisition() }()

	started := time.Now()
	filled := 0
	for i := 0; i < o.frames; i++ {
		b := st.PopBuffer(o.timeout)
		if b == nil {
			fmt.Fprintf(out, "Frame %d: timeout after %s\n", i, o.timeout)
			continue
		}
		fmt.Fprintf(out, "Frame %d: id=%d status=%s size=%d\n", i, b.FrameID, b.Status, b.Size())

		if b.Status == stream.StatusFilled {
			filled++
			if o.saveDir != "" {
				path := filepath.Join(o.saveDir, capture.FrameFileName(cam.DeviceID(), b.FrameID))
				if err := capture.SaveFrame(b, path); err != nil {
					fmt.Fprintf(out, "  save failed: %v\n", err)
				} else {
					fmt.Fprintf(out, "  saved %s\n", path)
				}
			}
		}
		if err := st.PushBuffer(b); err != nil {
			return err
		}
	}

	if err := cam.StopAcquisition(); err != nil {
		return err
	}

	elapsed := time.Since(started)
	stats := st.Statistics()
	fmt.Fprintf(out, "\nFilled %d of %d frames in %s\n", filled, o.frames, elapsed.Round(time.Millisecond))
	fmt.Fprintf(out, "Completed: %d  Failures: %d  Underruns: %d  Aborted: %d\n",
		stats.Completed, stats.Failures, stats.Underruns, stats.Aborted)
	fmt.Fprintf(out, "Queued: %d input, %d output\n", stats.Input, stats.Output)
	return nil
}

// CreateAcquireCmd creates the acquire command.
func CreateAcquireCmd() *cobra.Command {
	var flags deviceFlags
	var opts acquireOptions
	var verbose bool

	cmd := &cobra.Command{
		Use:   "acquire [device-id]",
		Short: "Acquire frames from a camera",
		Long: `Opens a camera, applies the region, pixel format and rate flags, then acquires
--frames buffers and prints their metadata and the stream statistics. With --save each
filled frame is also written as PNG.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			initLogging(verbose)
			if opts.buffers <= 0 {
				return fmt.Errorf("--buffers must be positive")
			}

			cam, err := flags.open(optionalArg(args, 0))
			if err != nil {
				return err
			}
			defer cam.Close()

			return runAcquire(cmd, cam, opts)
		},
	}

	flags.register(cmd)
	f := cmd.Flags()
	f.IntVar(&opts.offsetX, "offset-x", 0, "Region horizontal offset")
	f.IntVar(&opts.offsetY, "offset-y", 0, "Region vertical offset")
	f.IntVar(&opts.width, "width", 0, "Region width")
	f.IntVar(&opts.height, "height", 0, "Region height")
	f.StringVarP(&opts.pixelFormat, "pixel-format", "p", "", "Pixel format, e.g. Mono8 or Mono16")
	f.Float64VarP(&opts.frameRate, "frame-rate", "r", 0, "Frame rate in Hz")
	f.Float64Var(&opts.exposure, "exposure", 0, "Exposure time in microseconds")
	f.Float64Var(&opts.gain, "gain", 0, "Gain in dB")
	f.IntVar(&opts.buffers, "buffers", 10, "Buffers to queue")
	f.IntVarP(&opts.frames, "frames", "n", 10, "Buffers to pop")
	f.DurationVarP(&opts.timeout, "timeout", "t", time.Second, "Wait per buffer")
	f.StringVar(&opts.saveDir, "save", "", "Directory to save filled frames as PNG")
	f.BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	return cmd
}
