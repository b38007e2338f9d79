// Package config holds the immutable run configuration. A Config is built
// once in main (defaults, optional YAML overlay, env overrides) and passed
// into each component, so tests can run with their own thresholds.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Company     CompanyConfig     `yaml:"company"`
	Data        DataConfig        `yaml:"data"`
	DCF         DCFConfig         `yaml:"dcf"`
	Sensitivity SensitivityConfig `yaml:"sensitivity"`
	Thresholds  ThresholdConfig   `yaml:"thresholds"`
	Peers       []PeerConfig      `yaml:"peers"`
	Paths       PathsConfig       `yaml:"paths"`
	Excel       ExcelConfig       `yaml:"excel"`
	Narrative   NarrativeConfig   `yaml:"narrative"`
}

type CompanyConfig struct {
	Ticker   string   `yaml:"ticker"`
	Name     string   `yaml:"name"`
	Exchange string   `yaml:"exchange"`
	Sector   string   `yaml:"sector"`
	Industry string   `yaml:"industry"`
	IRPages  []string `yaml:"ir_pages"`
}

type DataConfig struct {
	YearsOfHistory int `yaml:"years_of_history"`
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`
}

type DCFConfig struct {
	ForecastYears     int     `yaml:"forecast_years"`
	TerminalGrowth    float64 `yaml:"terminal_growth"`
	TerminalGrowthMin float64 `yaml:"terminal_growth_min"`
	TerminalGrowthMax float64 `yaml:"terminal_growth_max"`
	RiskFreeRate      float64 `yaml:"risk_free_rate"`
	EquityRiskPremium float64 `yaml:"equity_risk_premium"`
	PerpetuityWeight  float64 `yaml:"perpetuity_weight"`
	ExitWeight        float64 `yaml:"exit_weight"`
}

// SensitivityConfig lists the additive deltas applied per driver. Each
// delta point re-runs the downstream pipeline once.
type SensitivityConfig struct {
	WACCDeltas           []float64 `yaml:"wacc_deltas"`
	TerminalGrowthDeltas []float64 `yaml:"terminal_growth_deltas"`
	RevenueGrowthDeltas  []float64 `yaml:"revenue_growth_deltas"`
	EBITMarginDeltas     []float64 `yaml:"ebit_margin_deltas"`
}

// ThresholdConfig sets the reasonableness bounds the WACC calculator and
// the audit battery check against.
type ThresholdConfig struct {
	WACCMin             float64 `yaml:"wacc_min"`
	WACCMax             float64 `yaml:"wacc_max"`
	MaxTerminalGrowth   float64 `yaml:"max_terminal_growth"`
	MaxTVShare          float64 `yaml:"max_tv_share"`
	MinROIC             float64 `yaml:"min_roic"`
	IdentityTolerance   float64 `yaml:"identity_tolerance"`
	MaxSingleYearGrowth float64 `yaml:"max_single_year_growth"`
	MaxAverageGrowth    float64 `yaml:"max_average_growth"`
}

type PeerConfig struct {
	Ticker   string `yaml:"ticker"`
	Name     string `yaml:"name"`
	Exchange string `yaml:"exchange"`
}

type PathsConfig struct {
	DataDir      string `yaml:"data_dir"`
	RawDir       string `yaml:"raw_dir"`
	ProcessedDir string `yaml:"processed_dir"`
	IRDocsDir    string `yaml:"ir_docs_dir"`
	OutputDir    string `yaml:"output_dir"`
}

type ExcelConfig struct {
	WorkbookPath   string  `yaml:"workbook_path"`
	HeaderColor    string  `yaml:"header_color"`
	InputColor     string  `yaml:"input_color"`
	CalcColor      string  `yaml:"calc_color"`
	FormulaColor   string  `yaml:"formula_color"`
	FontName       string  `yaml:"font_name"`
	FontSize       float64 `yaml:"font_size"`
	SmallFontSize  float64 `yaml:"small_font_size"`
	NumberFormat   string  `yaml:"number_format"`
	PercentFormat  string  `yaml:"percent_format"`
	CurrencyFormat string  `yaml:"currency_format"`
}

type NarrativeConfig struct {
	Model string `yaml:"model"`
}

// Default returns the configuration for the Universal Music Group model.
func Default() *Config {
	return &Config{
		Company: CompanyConfig{
			Ticker:   "UMG.AS",
			Name:     "Universal Music Group",
			Exchange: "Euronext Amsterdam",
			Sector:   "Entertainment",
			Industry: "Music & Media",
			IRPages: []string{
				"https://www.universalmusic.com/investors/",
				"https://www.universalmusic.com/investor-relations/",
			},
		},
		Data: DataConfig{
			YearsOfHistory: 5,
			TimeoutSeconds: 30,
			MaxRetries:     3,
		},
		DCF: DCFConfig{
			ForecastYears:     5,
			TerminalGrowth:    0.025,
			TerminalGrowthMin: 0.015,
			TerminalGrowthMax: 0.03,
			RiskFreeRate:      0.025,
			EquityRiskPremium: 0.05,
			PerpetuityWeight:  0.7,
			ExitWeight:        0.3,
		},
		Sensitivity: SensitivityConfig{
			WACCDeltas:           []float64{-0.02, -0.01, 0.01, 0.02},
			TerminalGrowthDeltas: []float64{-0.01, -0.005, 0.005, 0.01},
			RevenueGrowthDeltas:  []float64{-0.05, -0.02, 0.02, 0.05},
			EBITMarginDeltas:     []float64{-0.02, -0.01, 0.01, 0.02},
		},
		Thresholds: ThresholdConfig{
			WACCMin:             0.06,
			WACCMax:             0.15,
			MaxTerminalGrowth:   0.03,
			MaxTVShare:          0.70,
			MinROIC:             0.08,
			IdentityTolerance:   0.001,
			MaxSingleYearGrowth: 0.50,
			MaxAverageGrowth:    0.20,
		},
		Peers: []PeerConfig{
			{Ticker: "SONY", Name: "Sony Group Corporation", Exchange: "NYSE"},
			{Ticker: "WMG", Name: "Warner Music Group", Exchange: "NASDAQ"},
			{Ticker: "SPOT", Name: "Spotify Technology", Exchange: "NYSE"},
		},
		Paths: PathsConfig{
			DataDir:      "data",
			RawDir:       "data/raw",
			ProcessedDir: "data/processed",
			IRDocsDir:    "data/raw/ir_documents",
			OutputDir:    "outputs",
		},
		Excel: ExcelConfig{
			WorkbookPath:   "outputs/UMG_DCF_Model.xlsx",
			HeaderColor:    "366092",
			InputColor:     "DCE6F1",
			CalcColor:      "FFFFFF",
			FormulaColor:   "F2F2F2",
			FontName:       "Calibri",
			FontSize:       11,
			SmallFontSize:  10,
			NumberFormat:   "#,##0",
			PercentFormat:  "0.00%",
			CurrencyFormat: "€#,##0.00",
		},
		Narrative: NarrativeConfig{
			Model: "gemini-2.0-flash-exp",
		},
	}
}

// LoadFile overlays a YAML file onto the defaults. Fields absent from the
// file keep their default values.
func LoadFile(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides on top of file and default values.
func (c *Config) ApplyEnv() {
	if v := os.Getenv("DCF_TICKER"); v != "" {
		c.Company.Ticker = v
	}
	if v := os.Getenv("DCF_WORKBOOK"); v != "" {
		c.Excel.WorkbookPath = v
	}
	if v := os.Getenv("GEMINI_MODEL"); v != "" {
		c.Narrative.Model = v
	}
}

func (c *Config) Validate() error {
	if c.Company.Ticker == "" {
		return fmt.Errorf("config: company ticker is required")
	}
	if c.DCF.ForecastYears < 1 {
		return fmt.Errorf("config: forecast_years must be at least 1, got %d", c.DCF.ForecastYears)
	}
	if c.DCF.TerminalGrowth < c.DCF.TerminalGrowthMin || c.DCF.TerminalGrowth > c.DCF.TerminalGrowthMax {
		return fmt.Errorf("config: terminal_growth %.4f outside [%.4f, %.4f]",
			c.DCF.TerminalGrowth, c.DCF.TerminalGrowthMin, c.DCF.TerminalGrowthMax)
	}
	if sum := c.DCF.PerpetuityWeight + c.DCF.ExitWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("config: terminal value weights must sum to 1, got %.4f", sum)
	}
	if c.Thresholds.WACCMin >= c.Thresholds.WACCMax {
		return fmt.Errorf("config: wacc_min %.4f must be below wacc_max %.4f",
			c.Thresholds.WACCMin, c.Thresholds.WACCMax)
	}
	if c.Thresholds.MaxTVShare <= 0 || c.Thresholds.MaxTVShare > 1 {
		return fmt.Errorf("config: max_tv_share must be in (0, 1], got %.4f", c.Thresholds.MaxTVShare)
	}
	if c.Thresholds.IdentityTolerance <= 0 {
		return fmt.Errorf("config: identity_tolerance must be positive, got %.6f", c.Thresholds.IdentityTolerance)
	}
	return nil
}
