// Package systemd integrates camnode with the service manager: readiness and
// watchdog notifications, and unit control over D-Bus.
package systemd

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
)

// Notifier sends sd_notify messages. Every call is a no-op when the process
// was not started by systemd.
type Notifier struct {
	logger *slog.Logger

	mu   sync.Mutex
	stop context.CancelFunc
	done chan struct{}
}

func NewNotifier(logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{logger: logger}
}

func (n *Notifier) notify(state string) bool {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		n.logger.Warn("sd_notify failed", "state", state, "error", err)
		return false
	}
	return sent
}

// Ready reports service startup complete.
func (n *Notifier) Ready() bool {
	sent := n.notify(daemon.SdNotifyReady)
	if sent {
		n.logger.Debug("Notified systemd: ready")
	}
	return sent
}

// Status sets the free-form status line shown by systemctl status.
func (n *Notifier) Status(msg string) bool {
	return n.notify("STATUS=" + msg)
}

// Stopping reports shutdown has begun and stops the watchdog loop.
func (n *Notifier) Stopping() bool {
	n.StopWatchdog()
	return n.notify(daemon.SdNotifyStopping)
}

// StartWatchdog pings the watchdog at half the configured WatchdogSec. It
// returns false when no watchdog is configured for this process.
func (n *Notifier) StartWatchdog(ctx context.Context) bool {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		n.logger.Warn("Invalid watchdog configuration", "error", err)
		return false
	}
	if interval == 0 {
		return false
	}
	interval /= 2

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return true
	}

	ctx, cancel := context.WithCancel(ctx)
	n.stop = cancel
	n.done = make(chan struct{})

	go func(done chan struct{}) {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n.notify(daemon.SdNotifyWatchdog)
			}
		}
	}(n.done)

	n.logger.Info("systemd watchdog enabled", "interval", interval)
	return true
}

// StopWatchdog stops the watchdog loop if it is running.
func (n *Notifier) StopWatchdog() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop == nil {
		return
	}
	n.stop()
	<-n.done
	n.stop, n.done = nil, nil
}
