package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "paperframe.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoad_Valid(t *testing.T) {
	path := writeConfig(t, `
update_time: "07:15"
timezone: UTC
listen: ":9000"
display:
  driver: mock
  width: 600
  height: 448
  rotation: 90
cache:
  max_mb: 16
  retention_days: 3
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.At.Hour != 7 || cfg.At.Minute != 15 {
		t.Errorf("At = %v", cfg.At)
	}
	if cfg.Display.Width != 600 || cfg.Display.Rotation != 90 {
		t.Errorf("Display = %+v", cfg.Display)
	}
	if cfg.Location == nil || cfg.Location.String() != "UTC" {
		t.Errorf("Location = %v", cfg.Location)
	}
	if cfg.Cache.RetentionDays != 3 {
		t.Errorf("RetentionDays = %d", cfg.Cache.RetentionDays)
	}
}

func TestLoad_DefaultsApply(t *testing.T) {
	cfg, err := Load(writeConfig(t, "timezone: UTC\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.UpdateTime != "06:00" {
		t.Errorf("UpdateTime = %q, want default 06:00", cfg.UpdateTime)
	}
	if cfg.Display.Driver != "acep7" || cfg.Display.Width != 800 {
		t.Errorf("Display = %+v, want defaults", cfg.Display)
	}
	if cfg.DataDir == "" {
		t.Error("DataDir not defaulted")
	}
	if cfg.Display.Method != "nearest" {
		t.Errorf("Method = %q, want default nearest", cfg.Display.Method)
	}
}

func TestLoad_LegacyMethod(t *testing.T) {
	cfg, err := Load(writeConfig(t, "timezone: UTC\ndisplay:\n  method: legacy\n"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Display.Method != "legacy" {
		t.Errorf("Method = %q, want legacy", cfg.Display.Method)
	}
}

func TestLoad_Rejects(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"bad update time", "update_time: \"25:00\"\ntimezone: UTC\n"},
		{"bad timezone", "timezone: Mars/Olympus\n"},
		{"bad driver", "timezone: UTC\ndisplay:\n  driver: vga\n"},
		{"bad rotation", "timezone: UTC\ndisplay:\n  rotation: 45\n"},
		{"bad geometry", "timezone: UTC\ndisplay:\n  width: 0\n"},
		{"negative retention", "timezone: UTC\ncache:\n  retention_days: -1\n"},
		{"bad method", "timezone: UTC\ndisplay:\n  method: dither\n"},
		{"legacy with calibration", "timezone: UTC\ndisplay:\n  method: legacy\n  calibration: acep7\n"},
	}
	for _, tc := range cases {
		if _, err := Load(writeConfig(t, tc.body)); !errors.Is(err, ErrInvalid) {
			t.Errorf("%s: err = %v, want ErrInvalid", tc.name, err)
		}
	}
}

func TestLoad_MissingExplicitFileFails(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}
