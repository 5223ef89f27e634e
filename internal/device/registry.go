package device

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/camnode/internal/logging"
)

// InterfaceStatus reports whether a backend takes part in discovery.
type InterfaceStatus struct {
	Name    string `json:"name" example:"fake" doc:"Interface name"`
	Enabled bool   `json:"enabled" example:"true" doc:"Whether discovery uses it"`
}

type registered struct {
	iface   Interface
	enabled bool
}

// Registry holds backends in priority order.
type Registry struct {
	mu         sync.RWMutex
	interfaces []registered
	logger     *slog.Logger
}

// NewRegistry returns a registry with every given interface enabled.
func NewRegistry(ifaces ...Interface) *Registry {
	r := &Registry{logger: logging.GetLogger("device")}
	for _, i := range ifaces {
		r.Register(i)
	}
	return r
}

// DefaultRegistry registers the platform backends followed by the fake
// camera. names, when not empty, selects and orders the enabled backends.
func DefaultRegistry(names []string, fakeOpts ...FakeOption) (*Registry, error) {
	all := append(platformInterfaces(), NewFakeInterface(fakeOpts...))
	if len(names) == 0 {
		return NewRegistry(all...), nil
	}

	byName := make(map[string]Interface, len(all))
	for _, i := range all {
		byName[i.Name()] = i
	}

	r := NewRegistry()
	for _, name := range names {
		i, ok := byName[name]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, name)
		}
		r.Register(i)
		delete(byName, name)
	}
	for _, i := range all {
		if _, left := byName[i.Name()]; left {
			r.Register(i)
			_ = r.Disable(i.Name())
		}
	}
	return r, nil
}

// Register appends an enabled interface.
func (r *Registry) Register(i Interface) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interfaces = append(r.interfaces, registered{iface: i, enabled: true})
}

func (r *Registry) Enable(name string) error  { return r.setEnabled(name, true) }
func (r *Registry) Disable(name string) error { return r.setEnabled(name, false) }

func (r *Registry) setEnabled(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.interfaces {
		if r.interfaces[i].iface.Name() == name {
			r.interfaces[i].enabled = enabled
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownBackend, name)
}

// Interfaces lists the registered backends in priority order.
func (r *Registry) Interfaces() []InterfaceStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]InterfaceStatus, len(r.interfaces))
	for i, reg := range r.interfaces {
		out[i] = InterfaceStatus{Name: reg.iface.Name(), Enabled: reg.enabled}
	}
	return out
}

func (r *Registry) enabled() []Interface {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Interface
	for _, reg := range r.interfaces {
		if reg.enabled {
			out = append(out, reg.iface)
		}
	}
	return out
}

// Discover lists the devices of every enabled backend. A failing backend is
// logged and skipped; an error is returned only when all of them fail.
func (r *Registry) Discover() ([]Info, error) {
	ifaces := r.enabled()
	var (
		infos []Info
		errs  []error
	)
	for _, i := range ifaces {
		found, err := i.Discover()
		if err != nil {
			r.logger.Warn("Device discovery failed", "interface", i.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", i.Name(), err))
			continue
		}
		infos = append(infos, found...)
	}
	if len(ifaces) > 0 && len(errs) == len(ifaces) {
		return nil, errors.Join(errs...)
	}
	return infos, nil
}

// Open opens the device with the given ID. An empty ID opens the first
// device discovery reports.
func (r *Registry) Open(id string) (Device, error) {
	for _, i := range r.enabled() {
		found, err := i.Discover()
		if err != nil {
			r.logger.Debug("Skipping interface", "interface", i.Name(), "error", err)
			continue
		}
		for _, info := range found {
			if id != "" && info.ID != id && info.Path != id {
				continue
			}
			dev, err := i.Open(info.ID)
			if err != nil {
				return nil, fmt.Errorf("open %s: %w", info.ID, err)
			}
			r.logger.Info("Opened device", "id", info.ID, "interface", i.Name())
			return dev, nil
		}
	}

	if id == "" {
		return nil, ErrNoDevices
	}
	return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, id)
}
