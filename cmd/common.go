// Package cmd holds the camnode subcommands that run without the HTTP server.
package cmd

import (
	"fmt"
	"strings"

	"github.com/smazurov/camnode/internal/camera"
	"github.com/smazurov/camnode/internal/device"
	"github.com/smazurov/camnode/internal/logging"
	"github.com/spf13/cobra"
)

// deviceFlags are shared by the commands that open a camera.
type deviceFlags struct {
	backends []string
	fakeFile string
}

func (f *deviceFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringSliceVarP(&f.backends, "backend", "b", nil, "Device backends to enable, in order (v4l2, fake)")
	cmd.Flags().StringVar(&f.fakeFile, "fake-description", "", "TOML feature description for the fake camera")
}

func (f *deviceFlags) registry() (*device.Registry, error) {
	var opts []device.FakeOption
	if f.fakeFile != "" {
		opts = append(opts, device.WithFakeDescriptionFile(f.fakeFile))
	}
	return device.DefaultRegistry(f.backends, opts...)
}

func (f *deviceFlags) open(deviceID string) (*camera.Camera, error) {
	registry, err := f.registry()
	if err != nil {
		return nil, err
	}
	cam, err := camera.Open(registry, deviceID)
	if err != nil {
		return nil, fmt.Errorf("failed to open camera: %w", err)
	}
	return cam, nil
}

// initLogging keeps command output readable: warnings only unless verbose.
func initLogging(verbose bool) {
	level := "warn"
	if verbose {
		level = "debug"
	}
	logging.Initialize(logging.Config{Level: level, Format: "text"})
}

func optionalArg(args []string, i int) string {
	if len(args) > i {
		return strings.TrimSpace(args[i])
	}
	return ""
}
