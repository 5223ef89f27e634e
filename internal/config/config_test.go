package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/cobra"
)

// TestConfig represents a test configuration structure.
type TestConfig struct {
	Config string `help:"Config file path"`

	StringField   string        `toml:"test.string_field" env:"STRING_FIELD"`
	BoolField     bool          `toml:"test.bool_field" env:"BOOL_FIELD"`
	IntField      int           `toml:"test.int_field" env:"INT_FIELD"`
	FloatField    float64       `toml:"test.float_field" env:"FLOAT_FIELD"`
	DurationField time.Duration `toml:"test.duration_field" env:"DURATION_FIELD"`
	SliceField    []string      `toml:"test.slice_field" env:"SLICE_FIELD"`

	NestedString string `toml:"nested.value" env:"NESTED_VALUE"`
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "camnode.toml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestLoadConfigFromTOML(t *testing.T) {
	config := &TestConfig{Config: writeConfig(t, `
[test]
string_field = "hello world"
bool_field = true
int_field = 42
float_field = 29.97
duration_field = "250ms"
slice_field = ["fake", "v4l2"]

[nested]
value = "nested value"
`)}

	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "hello world" {
		t.Errorf("Expected StringField to be 'hello world', got '%s'", config.StringField)
	}
	if !config.BoolField {
		t.Errorf("Expected BoolField to be true, got %v", config.BoolField)
	}
	if config.IntField != 42 {
		t.Errorf("Expected IntField to be 42, got %d", config.IntField)
	}
	if config.FloatField != 29.97 {
		t.Errorf("Expected FloatField to be 29.97, got %g", config.FloatField)
	}
	if config.DurationField != 250*time.Millisecond {
		t.Errorf("Expected DurationField to be 250ms, got %s", config.DurationField)
	}
	if want := []string{"fake", "v4l2"}; !reflect.DeepEqual(config.SliceField, want) {
		t.Errorf("Expected SliceField to be %v, got %v", want, config.SliceField)
	}
	if config.NestedString != "nested value" {
		t.Errorf("Expected NestedString to be 'nested value', got '%s'", config.NestedString)
	}
}

func TestLoadConfigIntegerIntoFloat(t *testing.T) {
	config := &TestConfig{Config: writeConfig(t, "[test]\nfloat_field = 30\n")}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.FloatField != 30 {
		t.Errorf("Expected FloatField to be 30, got %g", config.FloatField)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	t.Setenv("CAMNODE_STRING_FIELD", "env string")
	t.Setenv("CAMNODE_BOOL_FIELD", "false")
	t.Setenv("CAMNODE_INT_FIELD", "123")
	t.Setenv("CAMNODE_FLOAT_FIELD", "12.5")
	t.Setenv("CAMNODE_DURATION_FIELD", "2s")
	t.Setenv("CAMNODE_SLICE_FIELD", " a , b ,c")
	t.Setenv("CAMNODE_NESTED_VALUE", "env nested")

	config := &TestConfig{}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env string" {
		t.Errorf("Expected StringField to be 'env string', got '%s'", config.StringField)
	}
	if config.BoolField {
		t.Errorf("Expected BoolField to be false, got %v", config.BoolField)
	}
	if config.IntField != 123 {
		t.Errorf("Expected IntField to be 123, got %d", config.IntField)
	}
	if config.FloatField != 12.5 {
		t.Errorf("Expected FloatField to be 12.5, got %g", config.FloatField)
	}
	if config.DurationField != 2*time.Second {
		t.Errorf("Expected DurationField to be 2s, got %s", config.DurationField)
	}
	if want := []string{"a", "b", "c"}; !reflect.DeepEqual(config.SliceField, want) {
		t.Errorf("Expected SliceField to be %v, got %v", want, config.SliceField)
	}
	if config.NestedString != "env nested" {
		t.Errorf("Expected NestedString to be 'env nested', got '%s'", config.NestedString)
	}
}

func TestLoadConfigInvalidEnvValue(t *testing.T) {
	t.Setenv("CAMNODE_FLOAT_FIELD", "fast")
	if err := LoadConfig(&TestConfig{}, nil); err == nil {
		t.Error("Expected error for non-numeric float env var")
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	config := &TestConfig{Config: writeConfig(t, `
[test]
string_field = "toml value"
bool_field = true
int_field = 100
`)}
	t.Setenv("CAMNODE_STRING_FIELD", "env override")
	t.Setenv("CAMNODE_BOOL_FIELD", "false")

	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.StringField != "env override" {
		t.Errorf("Expected StringField to be 'env override', got '%s'", config.StringField)
	}
	if config.BoolField {
		t.Errorf("Expected BoolField to be false (env override), got %v", config.BoolField)
	}
	if config.IntField != 100 {
		t.Errorf("Expected IntField to be 100 (from TOML), got %d", config.IntField)
	}
}

func TestLoadConfigFlagsWin(t *testing.T) {
	config := &TestConfig{Config: writeConfig(t, "[test]\nint_field = 100\n")}
	t.Setenv("CAMNODE_INT_FIELD", "200")

	cmd := &cobra.Command{Use: "test"}
	cmd.Flags().IntVar(&config.IntField, "int-field", 0, "")
	if err := cmd.Flags().Set("int-field", "300"); err != nil {
		t.Fatal(err)
	}

	if err := LoadConfig(config, cmd); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}
	if config.IntField != 300 {
		t.Errorf("Expected IntField to be 300 (from flag), got %d", config.IntField)
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"level1": map[string]any{
			"level2": map[string]any{
				"value": "nested_value",
			},
			"simple": "simple_value",
		},
		"root": "root_value",
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"root", "root_value"},
		{"level1.simple", "simple_value"},
		{"level1.level2.value", "nested_value"},
		{"nonexistent", nil},
		{"level1.nonexistent", nil},
		{"root.child", nil},
	}

	for _, test := range tests {
		if result := getNestedValue(data, test.path); result != test.expected {
			t.Errorf("getNestedValue(%q) = %v, expected %v", test.path, result, test.expected)
		}
	}
}

func TestSetFieldValueTypeMismatch(t *testing.T) {
	s := &TestConfig{}
	v := reflect.ValueOf(s).Elem()

	if err := setFieldValue(v.FieldByName("IntField"), "forty-two"); err == nil {
		t.Error("Expected error assigning string to int field")
	}
	if err := setFieldValue(v.FieldByName("DurationField"), int64(5)); err == nil {
		t.Error("Expected error assigning integer to duration field")
	}
	if err := setFieldValue(v.FieldByName("StringField"), "ok"); err != nil || s.StringField != "ok" {
		t.Errorf("Expected StringField 'ok', got %q (%v)", s.StringField, err)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	config := &TestConfig{Config: filepath.Join(t.TempDir(), "nonexistent.toml")}
	if err := LoadConfig(config, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	config := &TestConfig{Config: writeConfig(t, "[test\ninvalid toml syntax\n")}
	if err := LoadConfig(config, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestLoadLoggingConfig(t *testing.T) {
	path := writeConfig(t, `
[logging]
level = "warn"
format = "json"
camera = "debug"
stream = "error"
`)

	cfg := LoadLoggingConfig(path)
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("Expected warn/json, got %s/%s", cfg.Level, cfg.Format)
	}
	if cfg.Modules["camera"] != "debug" || cfg.Modules["stream"] != "error" {
		t.Errorf("Unexpected module levels %v", cfg.Modules)
	}

	defaults := LoadLoggingConfig("")
	if defaults.Level != "info" || defaults.Format != "text" {
		t.Errorf("Expected info/text defaults, got %s/%s", defaults.Level, defaults.Format)
	}
}
