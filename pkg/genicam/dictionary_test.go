package genicam

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testDescription = `
[[feature]]
name = "SensorWidth"
type = "Integer"
value = 2048

[[feature]]
name = "SensorHeight"
type = "Integer"
value = 2048

[[feature]]
name = "OffsetX"
type = "Integer"
access = "RW"
value = 0
min = 0
max_node = "OffsetXMax"
inc = 4

[[feature]]
name = "OffsetXMax"
type = "Integer"
formula = "SENSOR - WIDTH"
variables = { SENSOR = "SensorWidth", WIDTH = "Width" }

[[feature]]
name = "Width"
type = "Integer"
access = "RW"
value = 512
min = 4
max_node = "WidthMax"
inc = 4

[[feature]]
name = "WidthMax"
type = "Integer"
formula = "SENSOR - OFFSET"
variables = { SENSOR = "SensorWidth", OFFSET = "OffsetX" }

[[feature]]
name = "Height"
type = "Integer"
access = "RW"
value = 512
min = 1
max = 2048

[[feature]]
name = "PixelFormat"
type = "Enumeration"
access = "RW"
value = "Mono8"

  [[feature.entry]]
  name = "Mono8"
  value = 0x01080001

  [[feature.entry]]
  name = "Mono16"
  value = 0x01100007

[[feature]]
name = "PayloadSize"
type = "Integer"
formula = "W * H * ((PF >> 16) & 0xFF) / 8"
variables = { W = "Width", H = "Height", PF = "PixelFormat" }

[[feature]]
name = "ExposureTime"
type = "Float"
access = "RW"
unit = "us"
value = 10000.0
min = 10.0
max = 1000000.0

[[feature]]
name = "FrameRateMax"
type = "Float"
formula = "1000000 / EXPOSURE"
variables = { EXPOSURE = "ExposureTime" }

[[feature]]
name = "ReverseX"
type = "Boolean"
access = "RW"
value = false

[[feature]]
name = "DeviceVendorName"
type = "String"
value = "camnode"

[[feature]]
name = "AcquisitionStart"
type = "Command"
access = "RW"
`

func newTestDictionary(t *testing.T) *Dictionary {
	t.Helper()
	d, err := Parse([]byte(testDescription))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return d
}

func TestParseDescription(t *testing.T) {
	d := newTestDictionary(t)

	names := d.Names()
	if len(names) != 14 {
		t.Fatalf("Expected 14 features, got %d: %v", len(names), names)
	}
	if names[0] != "SensorWidth" {
		t.Errorf("Expected declaration order, got %v", names)
	}

	vendor, err := d.StringValue("DeviceVendorName")
	if err != nil || vendor != "camnode" {
		t.Errorf("Expected vendor camnode, got %q, %v", vendor, err)
	}

	format, err := d.EnumValue("PixelFormat")
	if err != nil || format != "Mono8" {
		t.Errorf("Expected PixelFormat Mono8, got %q, %v", format, err)
	}
}

func TestFormulaNodes(t *testing.T) {
	d := newTestDictionary(t)

	payload, err := d.IntegerValue("PayloadSize")
	if err != nil {
		t.Fatalf("IntegerValue(PayloadSize) failed: %v", err)
	}
	if payload != 512*512 {
		t.Errorf("Expected payload %d, got %d", 512*512, payload)
	}

	if err := d.SetEnumValue("PixelFormat", "Mono16"); err != nil {
		t.Fatalf("SetEnumValue failed: %v", err)
	}
	if err := d.SetIntegerValue("Width", 128); err != nil {
		t.Fatalf("SetIntegerValue(Width) failed: %v", err)
	}
	if err := d.SetIntegerValue("Height", 128); err != nil {
		t.Fatalf("SetIntegerValue(Height) failed: %v", err)
	}

	payload, err = d.IntegerValue("PayloadSize")
	if err != nil {
		t.Fatalf("IntegerValue(PayloadSize) failed: %v", err)
	}
	if payload != 128*128*2 {
		t.Errorf("Expected payload %d after update, got %d", 128*128*2, payload)
	}

	rate, err := d.FloatValue("FrameRateMax")
	if err != nil {
		t.Fatalf("FloatValue(FrameRateMax) failed: %v", err)
	}
	if rate != 100 {
		t.Errorf("Expected FrameRateMax 100, got %v", rate)
	}
}

func TestFormulaNodesAreReadOnly(t *testing.T) {
	d := newTestDictionary(t)

	if err := d.SetIntegerValue("PayloadSize", 1); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied, got %v", err)
	}
	if err := d.SetIntegerValue("SensorWidth", 1); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied for RO node, got %v", err)
	}
}

func TestIntegerBoundsFollowReferencedNodes(t *testing.T) {
	d := newTestDictionary(t)

	if err := d.SetIntegerValue("OffsetX", 1024); err != nil {
		t.Fatalf("SetIntegerValue(OffsetX) failed: %v", err)
	}

	minimum, maximum, inc, err := d.IntegerBounds("Width")
	if err != nil {
		t.Fatalf("IntegerBounds failed: %v", err)
	}
	if minimum != 4 || maximum != 1024 || inc != 4 {
		t.Errorf("Expected bounds [4, 1024] inc 4, got [%d, %d] inc %d", minimum, maximum, inc)
	}

	if err := d.SetIntegerValue("Width", 1028); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange above max, got %v", err)
	}
	if err := d.SetIntegerValue("Width", 130); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange off the increment grid, got %v", err)
	}
	if err := d.SetIntegerValue("Width", 1024); err != nil {
		t.Errorf("Expected Width 1024 to be accepted, got %v", err)
	}
}

func TestExplicitZeroBounds(t *testing.T) {
	d, err := Parse([]byte(`
[[feature]]
name = "Reserved"
type = "Integer"
access = "RW"
min = 0
max = 0

[[feature]]
name = "Offset"
type = "Float"
access = "RW"
min = 0.0
max = 0.0

[[feature]]
name = "Binning"
type = "Integer"
access = "RW"
value = 4
min = 4
`))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if err := d.SetIntegerValue("Reserved", 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange for [0, 0] integer, got %v", err)
	}
	if err := d.SetIntegerValue("Reserved", 0); err != nil {
		t.Errorf("Expected 0 to be accepted, got %v", err)
	}
	if err := d.SetFloatValue("Offset", 0.5); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange for [0, 0] float, got %v", err)
	}

	if err := d.SetIntegerValue("Binning", 3); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange below min, got %v", err)
	}
	if err := d.SetIntegerValue("Binning", 1<<40); err != nil {
		t.Errorf("Expected open max to accept large values, got %v", err)
	}

	open := NewDictionary()
	if err := open.Add(Node{Name: "Counter", Kind: KindInteger, Access: AccessRW}); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if err := open.SetIntegerValue("Counter", -5); err != nil {
		t.Errorf("Expected node without bounds to be open, got %v", err)
	}
}

func TestTypeErrors(t *testing.T) {
	d := newTestDictionary(t)

	if _, err := d.FloatValue("Width"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch, got %v", err)
	}
	if err := d.SetStringValue("Width", "x"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch, got %v", err)
	}
	if _, err := d.IntegerValue("Missing"); !errors.Is(err, ErrFeatureNotFound) {
		t.Errorf("Expected ErrFeatureNotFound, got %v", err)
	}
	if err := d.SetEnumValue("PixelFormat", "RGB8"); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange for unknown entry, got %v", err)
	}
	if err := d.SetFloatValue("ExposureTime", 1); !errors.Is(err, ErrOutOfRange) {
		t.Errorf("Expected ErrOutOfRange below float min, got %v", err)
	}
}

func TestEnumerationAsInteger(t *testing.T) {
	d := newTestDictionary(t)

	v, err := d.IntegerValue("PixelFormat")
	if err != nil {
		t.Fatalf("IntegerValue(PixelFormat) failed: %v", err)
	}
	if v != 0x01080001 {
		t.Errorf("Expected 0x01080001, got 0x%x", v)
	}

	if err := d.SetIntegerValue("PixelFormat", 0x01100007); err != nil {
		t.Fatalf("SetIntegerValue(PixelFormat) failed: %v", err)
	}
	name, _ := d.EnumValue("PixelFormat")
	if name != "Mono16" {
		t.Errorf("Expected Mono16, got %s", name)
	}
}

func TestSetFromStringAndValue(t *testing.T) {
	d := newTestDictionary(t)

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"Width", "256", "256"},
		{"ExposureTime", "2500.5", "2500.5"},
		{"ReverseX", "true", "true"},
		{"PixelFormat", "Mono16", "Mono16"},
	}

	for _, tt := range tests {
		if err := d.SetFromString(tt.name, tt.input); err != nil {
			t.Fatalf("SetFromString(%s, %s) failed: %v", tt.name, tt.input, err)
		}
		v, err := d.Value(tt.name)
		if err != nil {
			t.Fatalf("Value(%s) failed: %v", tt.name, err)
		}
		if v.String() != tt.want {
			t.Errorf("Expected %s to be %s, got %s", tt.name, tt.want, v.String())
		}
	}
}

func TestExecuteAndOnChange(t *testing.T) {
	d := newTestDictionary(t)

	var changed []string
	d.OnChange(func(name string) { changed = append(changed, name) })

	if err := d.Execute("AcquisitionStart"); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if err := d.SetIntegerValue("Height", 64); err != nil {
		t.Fatalf("SetIntegerValue failed: %v", err)
	}
	if err := d.SetIntegerValue("Height", 0); err == nil {
		t.Fatal("Expected out of range write to fail")
	}

	if len(changed) != 2 || changed[0] != "AcquisitionStart" || changed[1] != "Height" {
		t.Errorf("Expected change hooks for AcquisitionStart and Height, got %v", changed)
	}

	if err := d.Execute("Width"); !errors.Is(err, ErrTypeMismatch) {
		t.Errorf("Expected ErrTypeMismatch executing an Integer, got %v", err)
	}
}

func TestUpdateBypassesAccess(t *testing.T) {
	d := newTestDictionary(t)

	if err := d.Update("SensorWidth", IntValue(1024)); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	v, _ := d.IntegerValue("SensorWidth")
	if v != 1024 {
		t.Errorf("Expected 1024, got %d", v)
	}

	if err := d.Update("PayloadSize", IntValue(1)); !errors.Is(err, ErrAccessDenied) {
		t.Errorf("Expected ErrAccessDenied updating a formula node, got %v", err)
	}
}

func TestFormulaRecursion(t *testing.T) {
	desc := `
[[feature]]
name = "A"
type = "Integer"
formula = "B + 1"
variables = { B = "B" }

[[feature]]
name = "B"
type = "Integer"
formula = "A + 1"
variables = { A = "A" }
`
	d, err := Parse([]byte(desc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if _, err := d.IntegerValue("A"); !errors.Is(err, ErrRecursion) {
		t.Errorf("Expected ErrRecursion, got %v", err)
	}

	info, err := d.Node("B")
	if err != nil {
		t.Fatalf("Node failed: %v", err)
	}
	if !errors.Is(info.ValueErr, ErrRecursion) {
		t.Errorf("Expected snapshot to carry ErrRecursion, got %v", info.ValueErr)
	}
}

func TestParseRejectsBrokenDescriptions(t *testing.T) {
	tests := map[string]string{
		"unknown type": `
[[feature]]
name = "X"
type = "Register"
`,
		"dangling reference": `
[[feature]]
name = "X"
type = "Integer"
max_node = "Nope"
`,
		"unmapped variable": `
[[feature]]
name = "X"
type = "Integer"
formula = "Y * 2"
`,
		"bad formula": `
[[feature]]
name = "X"
type = "Integer"
formula = "1 +"
`,
		"duplicate": `
[[feature]]
name = "X"
type = "Integer"

[[feature]]
name = "X"
type = "Integer"
`,
	}

	for name, desc := range tests {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(desc)); err == nil {
				t.Error("Expected Parse to fail")
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.toml")
	if err := os.WriteFile(path, []byte(testDescription), 0o644); err != nil {
		t.Fatalf("Failed to write description: %v", err)
	}

	d, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !d.Has("PayloadSize") {
		t.Error("Expected PayloadSize to be loaded")
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
