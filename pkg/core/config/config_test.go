package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()

	if cfg.Company.Ticker != "UMG.AS" {
		t.Errorf("default ticker = %q, want UMG.AS", cfg.Company.Ticker)
	}
	if cfg.DCF.ForecastYears != 5 {
		t.Errorf("forecast years = %d, want 5", cfg.DCF.ForecastYears)
	}
	if cfg.DCF.TerminalGrowth != 0.025 {
		t.Errorf("terminal growth = %v, want 0.025", cfg.DCF.TerminalGrowth)
	}
	if cfg.DCF.PerpetuityWeight != 0.7 || cfg.DCF.ExitWeight != 0.3 {
		t.Errorf("terminal weights = %v/%v, want 0.7/0.3", cfg.DCF.PerpetuityWeight, cfg.DCF.ExitWeight)
	}
	if cfg.Thresholds.WACCMin != 0.06 || cfg.Thresholds.WACCMax != 0.15 {
		t.Errorf("WACC band = [%v, %v], want [0.06, 0.15]", cfg.Thresholds.WACCMin, cfg.Thresholds.WACCMax)
	}
	if len(cfg.Peers) != 3 {
		t.Fatalf("peer count = %d, want 3", len(cfg.Peers))
	}
	if cfg.Peers[0].Ticker != "SONY" {
		t.Errorf("first peer = %q, want SONY", cfg.Peers[0].Ticker)
	}
	if len(cfg.Sensitivity.WACCDeltas) != 4 {
		t.Errorf("WACC delta count = %d, want 4", len(cfg.Sensitivity.WACCDeltas))
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config must validate: %v", err)
	}
}

func TestLoadFileOverlay(t *testing.T) {
	body := `
company:
  ticker: WMG
dcf:
  forecast_years: 7
`
	path := filepath.Join(t.TempDir(), "dcf.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.Company.Ticker != "WMG" {
		t.Errorf("ticker = %q, want WMG", cfg.Company.Ticker)
	}
	if cfg.DCF.ForecastYears != 7 {
		t.Errorf("forecast years = %d, want 7", cfg.DCF.ForecastYears)
	}
	// Untouched fields keep their defaults.
	if cfg.DCF.TerminalGrowth != 0.025 {
		t.Errorf("terminal growth = %v, want default 0.025", cfg.DCF.TerminalGrowth)
	}
	if cfg.Excel.HeaderColor != "366092" {
		t.Errorf("header color = %q, want default 366092", cfg.Excel.HeaderColor)
	}
}

func TestLoadFileMissing(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("DCF_TICKER", "SPOT")
	t.Setenv("DCF_WORKBOOK", "outputs/spot.xlsx")

	cfg := Default()
	cfg.ApplyEnv()

	if cfg.Company.Ticker != "SPOT" {
		t.Errorf("ticker = %q, want SPOT", cfg.Company.Ticker)
	}
	if cfg.Excel.WorkbookPath != "outputs/spot.xlsx" {
		t.Errorf("workbook = %q, want outputs/spot.xlsx", cfg.Excel.WorkbookPath)
	}
}

func TestValidateRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty ticker", func(c *Config) { c.Company.Ticker = "" }},
		{"zero forecast years", func(c *Config) { c.DCF.ForecastYears = 0 }},
		{"terminal growth above ceiling", func(c *Config) { c.DCF.TerminalGrowth = 0.05 }},
		{"weights not summing to one", func(c *Config) { c.DCF.ExitWeight = 0.5 }},
		{"inverted WACC band", func(c *Config) { c.Thresholds.WACCMin = 0.20 }},
		{"zero identity tolerance", func(c *Config) { c.Thresholds.IdentityTolerance = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error, got nil")
			}
		})
	}
}
