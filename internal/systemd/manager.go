package systemd

import (
	"context"
	"fmt"

	"github.com/coreos/go-systemd/v22/dbus"
)

// DefaultUnit is the unit camnode is installed as.
const DefaultUnit = "camnode.service"

// ServiceStatus is a snapshot of the unit's state properties.
type ServiceStatus struct {
	Unit        string `json:"unit" example:"camnode.service" doc:"Unit name"`
	LoadState   string `json:"load_state" example:"loaded" doc:"Whether the unit file was loaded"`
	ActiveState string `json:"active_state" example:"active" doc:"High-level unit state"`
	SubState    string `json:"sub_state" example:"running" doc:"Low-level unit state"`
}

// Manager handles systemd service lifecycle operations via D-Bus.
type Manager struct {
	conn *dbus.Conn
	unit string
}

// NewManager connects to the system bus, or to the user bus when user is set.
func NewManager(ctx context.Context, unit string, user bool) (*Manager, error) {
	if unit == "" {
		unit = DefaultUnit
	}

	var (
		conn *dbus.Conn
		err  error
	)
	if user {
		conn, err = dbus.NewUserConnectionContext(ctx)
	} else {
		conn, err = dbus.NewSystemConnectionContext(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("connect to systemd: %w", err)
	}
	return &Manager{conn: conn, unit: unit}, nil
}

// Unit returns the managed unit name.
func (m *Manager) Unit() string { return m.unit }

// Status reads the load, active and sub state of the unit.
func (m *Manager) Status(ctx context.Context) (ServiceStatus, error) {
	status := ServiceStatus{Unit: m.unit}
	for name, dst := range map[string]*string{
		"LoadState":   &status.LoadState,
		"ActiveState": &status.ActiveState,
		"SubState":    &status.SubState,
	} {
		prop, err := m.conn.GetUnitPropertyContext(ctx, m.unit, name)
		if err != nil {
			return ServiceStatus{}, fmt.Errorf("read %s: %w", name, err)
		}
		if s, ok := prop.Value.Value().(string); ok {
			*dst = s
		}
	}
	return status, nil
}

// Restart restarts the unit using the replace mode. The job result is not
// awaited since restarting camnode terminates the caller.
func (m *Manager) Restart(ctx context.Context) error {
	_, err := m.conn.RestartUnitContext(ctx, m.unit, "replace", nil)
	return err
}

// Close cleanly closes the D-Bus connection.
func (m *Manager) Close() {
	if m.conn != nil {
		m.conn.Close()
	}
}
