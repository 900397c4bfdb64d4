package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.VoltageColumn != "voltage_28v_dc1_cal" || cfg.Analysis.Workers != 4 {
		t.Fatalf("analysis defaults %+v", cfg.Analysis)
	}
	if cfg.Analysis.FixedThresholds["variance"] != 1.5 || cfg.Analysis.FixedThresholds["iqr"] != 1.0 {
		t.Fatalf("fixed thresholds %+v", cfg.Analysis.FixedThresholds)
	}
	if cfg.Flips.ThresholdMS != 100 || len(cfg.Flips.ActiveTokens) != 4 {
		t.Fatalf("flips defaults %+v", cfg.Flips)
	}
	if len(cfg.Scan.FlaggedSaves) != 3 || cfg.Scan.FlaggedSaves[2] != 17 {
		t.Fatalf("flagged saves %v", cfg.Scan.FlaggedSaves)
	}
	if cfg.Alerting.Telegram.Timeout != 10*time.Second {
		t.Fatalf("telegram timeout %v", cfg.Alerting.Telegram.Timeout)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "busmon.yaml")
	content := strings.Join([]string{
		"analysis:",
		"  voltage_column: voltage_28v_dc2_cal",
		"  workers: 2",
		"flips:",
		"  threshold_ms: 50",
		"output:",
		"  dir: results",
	}, "\n")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BUSMON_ANALYSIS_WORKERS", "6")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Analysis.VoltageColumn != "voltage_28v_dc2_cal" {
		t.Fatalf("voltage column %q", cfg.Analysis.VoltageColumn)
	}
	if cfg.Analysis.Workers != 6 {
		t.Fatalf("env should override file, workers = %d", cfg.Analysis.Workers)
	}
	if cfg.Flips.ThresholdMS != 50 || cfg.ResolveOutputDir("") != "results" || cfg.ResolveOutputDir("x") != "x" {
		t.Fatalf("unexpected config %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	t.Chdir(t.TempDir())
	base, err := Load("")
	if err != nil {
		t.Fatal(err)
	}

	cases := map[string]func(c *Config){
		"workers":          func(c *Config) { c.Analysis.Workers = 0 },
		"baseline samples": func(c *Config) { c.Analysis.MinBaselineSamples = 2 },
		"spread":           func(c *Config) { c.Analysis.SpreadFactor = 0 },
		"negative fixed":   func(c *Config) { c.Analysis.FixedThresholds = map[string]float64{"std": -1} },
		"flip window":      func(c *Config) { c.Flips.ThresholdMS = 0 },
		"telegram token":   func(c *Config) { c.Alerting.Telegram.Enabled = true },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := *base
			mutate(&c)
			if err := c.Validate(); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("defaults should validate: %v", err)
	}
}
