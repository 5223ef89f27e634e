package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func resetState() {
	mutex.Lock()
	moduleLoggers = make(map[string]*slog.Logger)
	moduleLevelVars = make(map[string]*slog.LevelVar)
	isInitialized = false
	globalConfig = Config{}
	logBuffer = nil
	logCallback = nil
	mutex.Unlock()
}

func TestModuleLevelOverride(t *testing.T) {
	resetState()

	Initialize(Config{
		Level:  "info",
		Format: "text",
		Modules: map[string]string{
			"stream": "debug",
			"api":    "warn",
		},
	})

	tests := []struct {
		module    string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"stream", true, true, true},
		{"api", false, false, true},
		{"camera", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.module, func(t *testing.T) {
			handler := GetLogger(tt.module).Handler()
			ctx := context.Background()

			if got := handler.Enabled(ctx, slog.LevelDebug); got != tt.wantDebug {
				t.Errorf("Expected debug enabled %v for %s, got %v", tt.wantDebug, tt.module, got)
			}
			if got := handler.Enabled(ctx, slog.LevelInfo); got != tt.wantInfo {
				t.Errorf("Expected info enabled %v for %s, got %v", tt.wantInfo, tt.module, got)
			}
			if got := handler.Enabled(ctx, slog.LevelWarn); got != tt.wantWarn {
				t.Errorf("Expected warn enabled %v for %s, got %v", tt.wantWarn, tt.module, got)
			}
		})
	}
}

func TestGetLoggerBeforeInitialize(t *testing.T) {
	resetState()

	before := GetLogger("device")
	handlerBefore := before.Handler()
	if handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Logger created before Initialize should NOT have debug enabled")
	}

	Initialize(Config{
		Level:   "info",
		Format:  "text",
		Modules: map[string]string{"device": "debug"},
	})

	if after := GetLogger("device"); after == before {
		t.Error("Expected Initialize to rebuild the cached logger's handler")
	}
	if !handlerBefore.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected the shared LevelVar to enable debug on the old handler")
	}
}

func TestSetLevel(t *testing.T) {
	resetState()
	Initialize(Config{Level: "info", Format: "text", Modules: map[string]string{"api": "error"}})

	camera := GetLogger("camera").Handler()
	api := GetLogger("api").Handler()

	if err := SetLevel("", "debug"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	if !camera.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("Expected camera to follow the global level")
	}
	if api.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Expected api to keep its own override")
	}

	if err := SetLevel("api", "warn"); err != nil {
		t.Fatalf("SetLevel failed: %v", err)
	}
	if !api.Enabled(context.Background(), slog.LevelWarn) {
		t.Error("Expected api warn to be enabled after SetLevel")
	}

	if err := SetLevel("api", "verbose"); err == nil {
		t.Error("Expected error for invalid level")
	}

	levels := Levels()
	if levels["api"] != "warn" || levels["camera"] != "debug" {
		t.Errorf("Unexpected levels %v", levels)
	}
}

func TestBufferHandlerCapturesEntries(t *testing.T) {
	resetState()
	Initialize(Config{Level: "debug", Format: "text"})

	var got []LogEntry
	SetLogCallback(func(e LogEntry) { got = append(got, e) })

	logger := GetLogger("stream")
	logger.WithGroup("buffer").Info("Buffer completed", "frame_id", 7, "elapsed", 3*time.Millisecond, "error", errors.New("late"))

	entries := GetBuffer().ReadAll()
	if len(entries) != 1 {
		t.Fatalf("Expected 1 buffered entry, got %d", len(entries))
	}
	e := entries[0]
	if e.Module != "stream" {
		t.Errorf("Expected module stream, got %s", e.Module)
	}
	if e.Level != "info" {
		t.Errorf("Expected level info, got %s", e.Level)
	}
	if e.Attributes["buffer.frame_id"] != int64(7) {
		t.Errorf("Expected buffer.frame_id 7, got %v", e.Attributes["buffer.frame_id"])
	}
	if e.Attributes["buffer.elapsed"] != "3ms" {
		t.Errorf("Expected buffer.elapsed 3ms, got %v", e.Attributes["buffer.elapsed"])
	}
	if e.Attributes["buffer.error"] != "late" {
		t.Errorf("Expected buffer.error late, got %v", e.Attributes["buffer.error"])
	}
	if len(got) != 1 || got[0].Seq != e.Seq {
		t.Errorf("Expected callback with seq %d, got %v", e.Seq, got)
	}
}

func TestRingBufferWrapsAndSequences(t *testing.T) {
	rb := NewRingBuffer(3)
	for _, msg := range []string{"a", "b", "c", "d", "e"} {
		rb.Write(LogEntry{Message: msg})
	}

	all := rb.ReadAll()
	if len(all) != 3 {
		t.Fatalf("Expected 3 entries, got %d", len(all))
	}
	if all[0].Message != "c" || all[2].Message != "e" {
		t.Errorf("Expected c..e, got %s..%s", all[0].Message, all[2].Message)
	}
	if all[0].Seq != 3 || all[2].Seq != 5 {
		t.Errorf("Expected seq 3..5, got %d..%d", all[0].Seq, all[2].Seq)
	}

	since := rb.ReadSince(4)
	if len(since) != 1 || since[0].Message != "e" {
		t.Errorf("Expected only e after seq 4, got %v", since)
	}

	tail := rb.Tail(2)
	if len(tail) != 2 || tail[0].Message != "d" {
		t.Errorf("Expected tail d,e, got %v", tail)
	}
}

func TestMultiHandlerDebugOutput(t *testing.T) {
	var buf bytes.Buffer

	debugHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	infoHandler := slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo})

	logger := slog.New(NewMultiHandler(debugHandler, nil, infoHandler)).With("module", "test")
	logger.Debug("debug only message")

	output := buf.String()
	if count := strings.Count(output, "debug only message"); count != 1 {
		t.Errorf("Expected 1 debug message, got %d. Output: %s", count, output)
	}
}

func TestFormatLogLine(t *testing.T) {
	line := FormatLogLine(LogEntry{
		Timestamp:  time.Date(2025, 1, 9, 10, 30, 0, 0, time.UTC),
		Level:      "warn",
		Module:     "camera",
		Message:    "Region snapped",
		Attributes: map[string]any{"width": 128, "height": 64},
	})

	want := "2025-01-09T10:30:00Z [WARN] [camera] Region snapped height=64 width=128"
	if line != want {
		t.Errorf("Expected %q, got %q", want, line)
	}
}

func TestParseLevelValues(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
		isNil bool
	}{
		{"debug", slog.LevelDebug, false},
		{"DEBUG", slog.LevelDebug, false},
		{"info", slog.LevelInfo, false},
		{"warn", slog.LevelWarn, false},
		{"warning", slog.LevelWarn, false},
		{"error", slog.LevelError, false},
		{"invalid", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseLevel(tt.input)
			switch {
			case tt.isNil && got != nil:
				t.Errorf("Expected nil for %q, got %v", tt.input, *got)
			case !tt.isNil && got == nil:
				t.Errorf("Expected %v for %q, got nil", tt.want, tt.input)
			case !tt.isNil && *got != tt.want:
				t.Errorf("Expected %v for %q, got %v", tt.want, tt.input, *got)
			}
		})
	}
}
