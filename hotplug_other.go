//go:build !linux

package main

import (
	"context"
	"log/slog"

	"github.com/smazurov/camnode/internal/events"
)

func startHotplug(_ context.Context, _ *events.Bus, logger *slog.Logger) {
	logger.Debug("Hotplug monitoring is only available on linux")
}
