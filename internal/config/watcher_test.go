package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"
)

type testConfig struct {
	Name  string `toml:"name"`
	Value int    `toml:"value"`
}

func loadTestConfig(path string) (testConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return testConfig{}, err
	}
	var cfg testConfig
	err = toml.Unmarshal(data, &cfg)
	return cfg, err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func startWatcher(t *testing.T, path string, opts ...WatcherOption[testConfig]) *Watcher[testConfig] {
	t.Helper()
	opts = append([]WatcherOption[testConfig]{WithDebounce[testConfig](50 * time.Millisecond)}, opts...)
	w := NewConfigWatcher(path, loadTestConfig, newTestLogger(), opts...)
	return w
}

func run(t *testing.T, w *Watcher[testConfig]) {
	t.Helper()
	if err := w.Start(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		if err := w.Stop(); err != nil {
			t.Errorf("watcher.Stop failed: %v", err)
		}
	})
	time.Sleep(100 * time.Millisecond)
}

func newConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camnode.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestConfigWatcher_BasicReload(t *testing.T) {
	path := newConfigFile(t, "name = \"initial\"\nvalue = 1\n")
	received := make(chan testConfig, 4)

	w := startWatcher(t, path)
	w.OnReload(func(cfg testConfig) { received <- cfg })
	run(t, w)

	if err := os.WriteFile(path, []byte("name = \"updated\"\nvalue = 42\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Name != "updated" || cfg.Value != 42 {
			t.Errorf("Expected name=updated value=42, got %+v", cfg)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for config reload")
	}
}

func TestConfigWatcher_AtomicReplace(t *testing.T) {
	path := newConfigFile(t, "value = 1\n")
	received := make(chan testConfig, 4)

	w := startWatcher(t, path)
	w.OnReload(func(cfg testConfig) { received <- cfg })
	run(t, w)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte("value = 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Rename(tmp, path); err != nil {
		t.Fatal(err)
	}

	select {
	case cfg := <-received:
		if cfg.Value != 7 {
			t.Errorf("Expected value=7, got %d", cfg.Value)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for reload after rename")
	}
}

func TestConfigWatcher_IgnoresSiblingFiles(t *testing.T) {
	path := newConfigFile(t, "value = 1\n")
	var count atomic.Int32

	w := startWatcher(t, path)
	w.OnReload(func(testConfig) { count.Add(1) })
	run(t, w)

	other := filepath.Join(filepath.Dir(path), "other.toml")
	if err := os.WriteFile(other, []byte("value = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(200 * time.Millisecond)

	if got := count.Load(); got != 0 {
		t.Errorf("Expected no reloads for sibling file, got %d", got)
	}
}

func TestConfigWatcher_Debounce(t *testing.T) {
	path := newConfigFile(t, "value = 0\n")
	var count atomic.Int32
	var last atomic.Int32

	w := startWatcher(t, path, WithDebounce[testConfig](150*time.Millisecond))
	w.OnReload(func(cfg testConfig) {
		count.Add(1)
		last.Store(int32(cfg.Value))
	})
	run(t, w)

	for i := 1; i <= 5; i++ {
		if err := os.WriteFile(path, []byte("value = "+string(rune('0'+i))+"\n"), 0o644); err != nil {
			t.Fatal(err)
		}
		time.Sleep(20 * time.Millisecond)
	}
	time.Sleep(400 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Errorf("Expected 1 debounced reload, got %d", got)
	}
	if got := last.Load(); got != 5 {
		t.Errorf("Expected last value 5, got %d", got)
	}
}

func TestConfigWatcher_Unsubscribe(t *testing.T) {
	path := newConfigFile(t, "value = 1\n")
	var kept, removed atomic.Int32
	received := make(chan struct{}, 4)

	w := startWatcher(t, path)
	w.OnReload(func(testConfig) {
		kept.Add(1)
		received <- struct{}{}
	})
	unsub := w.OnReload(func(testConfig) { removed.Add(1) })
	unsub()
	run(t, w)

	if err := os.WriteFile(path, []byte("value = 2\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	select {
	case <-received:
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for reload")
	}

	if kept.Load() != 1 || removed.Load() != 0 {
		t.Errorf("Expected kept=1 removed=0, got kept=%d removed=%d", kept.Load(), removed.Load())
	}
}

func TestConfigWatcher_ErrorHandler(t *testing.T) {
	path := newConfigFile(t, "value = 1\n")
	errs := make(chan error, 4)
	var handled atomic.Int32

	w := startWatcher(t, path, WithErrorHandler[testConfig](func(err error) { errs <- err }))
	w.OnReload(func(testConfig) { handled.Add(1) })
	run(t, w)

	if err := os.WriteFile(path, []byte("value = [broken\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case err := <-errs:
		var decodeErr *toml.DecodeError
		if !errors.As(err, &decodeErr) {
			t.Errorf("Expected a TOML decode error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for error handler")
	}
	if handled.Load() != 0 {
		t.Error("Expected handlers not to run for a broken file")
	}
}

func TestConfigWatcher_StartMissingDirectory(t *testing.T) {
	w := NewConfigWatcher(filepath.Join(t.TempDir(), "missing", "camnode.toml"), loadTestConfig, newTestLogger())
	if err := w.Start(); err == nil {
		w.Stop()
		t.Error("Expected error for missing directory")
	}
}

func TestConfigWatcher_StopWithoutStart(t *testing.T) {
	w := NewConfigWatcher("camnode.toml", loadTestConfig, newTestLogger())
	if err := w.Stop(); err != nil {
		t.Errorf("Expected nil from Stop without Start, got %v", err)
	}
}
