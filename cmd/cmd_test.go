package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestParseBinding(t *testing.T) {
	tests := []struct {
		in        string
		name      string
		value     string
		expectErr bool
	}{
		{"W=640", "W", "640", false},
		{" VAR = 1.5 ", "VAR", "1.5", false},
		{"X=", "X", "", false},
		{"X", "", "", true},
		{"=5", "", "", true},
	}

	for _, tt := range tests {
		name, value, err := parseBinding(tt.in)
		if (err != nil) != tt.expectErr {
			t.Errorf("%q: expected error %v, got %v", tt.in, tt.expectErr, err)
			continue
		}
		if name != tt.name || value != tt.value {
			t.Errorf("%q: expected %s=%s, got %s=%s", tt.in, tt.name, tt.value, name, value)
		}
	}
}

func TestEvalCmd(t *testing.T) {
	out, err := execute(t, CreateEvalCmd(), "W * H", "-i", "W=640", "-i", "H=480")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "int64:  307200") {
		t.Errorf("Expected int64 307200, got %q", out)
	}

	out, err = execute(t, CreateEvalCmd(), "VAR + 10", "-d", "VAR=1.5")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "double: 11.5") {
		t.Errorf("Expected double 11.5, got %q", out)
	}
}

func TestEvalCmdErrors(t *testing.T) {
	tests := [][]string{
		{"1 +"},
		{"X + 1"},
		{"X + 1", "-i", "X"},
		{"X + 1", "-i", "X=abc"},
		{"X + 1", "-d", "X=abc"},
	}

	for _, args := range tests {
		if _, err := execute(t, CreateEvalCmd(), args...); err == nil {
			t.Errorf("%v: expected error", args)
		}
	}
}

func TestDevicesCmd(t *testing.T) {
	out, err := execute(t, CreateDevicesCmd(), "--backend", "fake")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Fake_1") {
		t.Errorf("Expected Fake_1 in output, got %q", out)
	}
	if !strings.Contains(out, "backend fake: enabled") {
		t.Errorf("Expected fake backend enabled, got %q", out)
	}

	if _, err := execute(t, CreateDevicesCmd(), "--backend", "gige"); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestFeaturesCmd(t *testing.T) {
	out, err := execute(t, CreateFeaturesCmd(), "--backend", "fake")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, name := range []string{"Width", "PixelFormat", "PayloadSize"} {
		if !strings.Contains(out, name) {
			t.Errorf("Expected %s in listing", name)
		}
	}

	out, err = execute(t, CreateFeaturesCmd(), "--backend", "fake", "Fake_1", "Width")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if !strings.Contains(out, "Value:  512 px") {
		t.Errorf("Expected width 512 px, got %q", out)
	}
	if !strings.Contains(out, "Range:  4..2048 step 4") {
		t.Errorf("Expected width range, got %q", out)
	}

	if _, err := execute(t, CreateFeaturesCmd(), "--backend", "fake", "Fake_1", "Missing"); err == nil {
		t.Error("Expected error for missing feature")
	}
}

func TestAcquireCmd(t *testing.T) {
	dir := t.TempDir()

	out, err := execute(t, CreateAcquireCmd(),
		"--backend", "fake",
		"--width", "64", "--height", "64",
		"--frame-rate", "100",
		"--buffers", "4", "--frames", "3",
		"--timeout", "2s",
		"--save", dir,
	)
	if err != nil {
		t.Fatalf("Unexpected error: %v\n%s", err, out)
	}

	if !strings.Contains(out, "Payload:      4096 bytes") {
		t.Errorf("Expected payload 4096, got %q", out)
	}
	if !strings.Contains(out, "Filled 3 of 3 frames") {
		t.Errorf("Expected 3 filled frames, got %q", out)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.png"))
	if err != nil {
		t.Fatal(err)
	}
	if len(files) != 3 {
		t.Errorf("Expected 3 saved frames, got %d", len(files))
	}
	for _, f := range files {
		if info, err := os.Stat(f); err != nil || info.Size() == 0 {
			t.Errorf("Expected non-empty %s", f)
		}
	}
}

func TestAcquireCmdInvalidFormat(t *testing.T) {
	if _, err := execute(t, CreateAcquireCmd(), "--backend", "fake", "--pixel-format", "YUV422_8"); err == nil {
		t.Error("Expected error for unsupported pixel format")
	}
	if _, err := execute(t, CreateAcquireCmd(), "--backend", "fake", "--buffers", "0"); err == nil {
		t.Error("Expected error for zero buffers")
	}
}
