//go:build linux

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/smazurov/camnode/internal/device"
	"github.com/smazurov/camnode/internal/events"
	"github.com/smazurov/camnode/pkg/linuxav/hotplug"
)

// startHotplug publishes video4linux add and remove uevents until ctx is done.
func startHotplug(ctx context.Context, bus *events.Bus, logger *slog.Logger) {
	mon, err := hotplug.NewMonitor()
	if err != nil {
		logger.Warn("Hotplug monitoring unavailable", "error", err)
		return
	}
	mon.AddSubsystemFilter(hotplug.SubsystemVideo4Linux)

	ch := make(chan hotplug.Event, 16)
	go func() {
		defer mon.Close()
		if err := mon.Run(ctx, ch); err != nil && ctx.Err() == nil {
			logger.Warn("Hotplug monitor stopped", "error", err)
		}
	}()

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if !e.IsVideoNode() {
					continue
				}
				var action string
				switch e.Action {
				case "add":
					action = "added"
				case "remove":
					action = "removed"
				default:
					continue
				}
				logger.Info("Video device "+action, "dev", e.DeviceFile())
				bus.Publish(events.DeviceDiscoveryEvent{
					Action:    action,
					Interface: device.V4L2InterfaceName,
					DevName:   e.DevName,
					Timestamp: time.Now().Format(time.RFC3339),
				})
			}
		}
	}()
}
