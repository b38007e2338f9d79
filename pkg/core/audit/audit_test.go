package audit

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"dcf_engine/pkg/core/assumption"
	"dcf_engine/pkg/core/config"
	"dcf_engine/pkg/core/projection"
	"dcf_engine/pkg/core/valuation"
	"dcf_engine/pkg/models"
)

func cleanStatements() *models.Statements {
	s := models.NewStatements()
	dates := []string{"2021-12-31", "2022-12-31", "2023-12-31"}
	set := func(tbl *models.Table, name string, vals []float64) {
		for i, d := range dates {
			tbl.SetCell(d, name, vals[i])
		}
	}

	set(s.Income, models.ColRevenue, []float64{1000, 1100, 1200})
	set(s.Income, models.ColGrossProfit, []float64{400, 440, 480})
	set(s.Income, models.ColEBIT, []float64{200, 220, 240})

	set(s.Balance, models.ColTotalAssets, []float64{2000, 2200, 2400})
	set(s.Balance, models.ColTotalLiabilities, []float64{1200, 1300, 1400})
	set(s.Balance, models.ColTotalEquity, []float64{800, 900, 1000})

	set(s.CashFlow, models.ColOperatingCashFlow, []float64{180, 198, 216})
	set(s.CashFlow, models.ColCapEx, []float64{-50, -55, -60})
	return s
}

func cleanRunInput(s *models.Statements) valuation.RunInput {
	return valuation.RunInput{
		Statements: s,
		Assumptions: assumption.DCFAssumptions{
			RevenueGrowth:     assumption.NewScalar(0.05),
			GrossMargin:       assumption.NewScalar(0.40),
			EBITMargin:        assumption.NewScalar(0.20),
			DepreciationPct:   assumption.NewScalar(0.03),
			TaxRate:           assumption.NewScalar(0.25),
			WorkingCapitalPct: assumption.NewScalar(0.10),
			CapexPct:          assumption.NewScalar(0.05),
			TerminalGrowth:    0.025,
			ForecastYears:     5,
		},
		Market: &models.MarketData{
			Beta:         models.Ptr(1.0),
			MarketCap:    models.Ptr(1000.0),
			CurrentPrice: models.Ptr(10.0),
		},
		Macro: &models.MacroData{
			RiskFreeRate:      models.Ptr(0.025),
			EquityRiskPremium: models.Ptr(0.05),
		},
		Config: config.Default(),
	}
}

func hasCheck(findings []Finding, check string) bool {
	for _, f := range findings {
		if f.Check == check {
			return true
		}
	}
	return false
}

func TestAuditCleanRunPasses(t *testing.T) {
	s := cleanStatements()
	base, err := valuation.Run(cleanRunInput(s))
	if err != nil {
		t.Fatalf("valuation run failed: %v", err)
	}
	scenarios, err := valuation.RunScenarios(cleanRunInput(s))
	if err != nil {
		t.Fatalf("scenarios failed: %v", err)
	}

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Statements: s, Base: base, Scenarios: scenarios})

	if !r.Passed || r.ErrorCount != 0 {
		t.Fatalf("clean run should pass, got errors: %+v", r.Errors())
	}
	// the fixture is terminal-value heavy, so the share warning is expected
	if !hasCheck(r.Warnings(), "terminal_value_share") {
		t.Errorf("expected terminal value share warning, got %+v", r.Warnings())
	}
	for _, f := range r.Warnings() {
		if f.Check != "terminal_value_share" {
			t.Errorf("unexpected warning: %+v", f)
		}
	}
}

func TestAuditBalanceIdentityViolation(t *testing.T) {
	s := cleanStatements()
	// tip the latest year: 2400 != 1400 + 900
	s.Balance.SetCell("2023-12-31", models.ColTotalEquity, 900)

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Statements: s})

	if r.Passed {
		t.Fatal("identity violation must fail the audit")
	}
	errs := r.Errors()
	if len(errs) != 1 || errs[0].Check != "balance_identity" {
		t.Fatalf("errors = %+v, want one balance_identity", errs)
	}
	if !strings.Contains(errs[0].Message, "2023-12-31") {
		t.Errorf("message should name the period: %s", errs[0].Message)
	}
	if errs[0].Category != CategoryFinancial {
		t.Errorf("category = %s, want financial", errs[0].Category)
	}
}

func TestAuditCashFlowIdentityViolation(t *testing.T) {
	s := cleanStatements()
	dates := []string{"2021-12-31", "2022-12-31", "2023-12-31"}
	for i, d := range dates {
		// consistent in the first two years, 94 off in the third
		s.CashFlow.SetCell(d, models.ColInvestingCashFlow, -60)
		s.CashFlow.SetCell(d, models.ColFinancingCashFlow, -50)
		net := s.CashFlow.Value(models.ColOperatingCashFlow, i) - 110
		if d == "2023-12-31" {
			net = 200
		}
		s.CashFlow.SetCell(d, models.ColNetChangeInCash, net)
	}

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Statements: s})

	errs := r.Errors()
	if len(errs) != 1 || errs[0].Check != "cash_flow_identity" {
		t.Fatalf("errors = %+v, want one cash_flow_identity", errs)
	}
	if !strings.Contains(errs[0].Message, "2023-12-31") {
		t.Errorf("message should name the period: %s", errs[0].Message)
	}
}

func TestAuditNegativeRevenue(t *testing.T) {
	s := cleanStatements()
	s.Income.SetCell("2022-12-31", models.ColRevenue, -1100)

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Statements: s})

	if !hasCheck(r.Errors(), "historical_revenue") {
		t.Fatalf("expected historical_revenue error, got %+v", r.Errors())
	}
	// -1100 revenue also flips the margin negative
	if !hasCheck(r.Warnings(), "gross_margin") {
		t.Errorf("expected gross_margin warning, got %+v", r.Warnings())
	}
}

func TestAuditGrossMarginAboveOne(t *testing.T) {
	s := cleanStatements()
	s.Income.SetCell("2023-12-31", models.ColGrossProfit, 1800)

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Statements: s})

	if !r.Passed {
		t.Fatalf("margin defects warn but never block: %+v", r.Errors())
	}
	if !hasCheck(r.Warnings(), "gross_margin") {
		t.Errorf("expected gross_margin warning, got %+v", r.Warnings())
	}
}

func TestAuditLowROIC(t *testing.T) {
	s := cleanStatements()
	// EBIT 60 * 0.75 / 1000 = 4.5%, under the 8% floor
	s.Income.SetCell("2023-12-31", models.ColEBIT, 60)

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Statements: s})

	if !hasCheck(r.Warnings(), "roic") {
		t.Errorf("expected roic warning, got %+v", r.Warnings())
	}
	if !r.Passed {
		t.Errorf("ROIC floor is a warning only: %+v", r.Errors())
	}
}

func TestAuditWACCBand(t *testing.T) {
	projSet := &projection.ProjectionSet{
		BaseRevenue: 1000,
		Years:       []projection.YearProjection{{Year: 1, Revenue: 1050, FCFF: 100}},
	}

	tests := []struct {
		name    string
		wacc    float64
		message string
	}{
		{"below", 0.05, "below minimum reasonable value"},
		{"above", 0.20, "above maximum reasonable value"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &valuation.RunOutput{
				WACC:        valuation.WACCResult{WACC: tt.wacc},
				Projections: projSet,
				Valuation:   valuation.ValuationResult{TerminalValuePct: 0.5},
			}
			a := New(config.Default().Thresholds)
			r := a.Audit(Input{Base: out})

			errs := r.Errors()
			if len(errs) != 1 || errs[0].Check != "wacc_band" {
				t.Fatalf("errors = %+v, want one wacc_band", errs)
			}
			if !strings.Contains(errs[0].Message, tt.message) {
				t.Errorf("message = %s, want %s", errs[0].Message, tt.message)
			}
		})
	}
}

func TestAuditTerminalGrowthCeiling(t *testing.T) {
	out := &valuation.RunOutput{
		WACC: valuation.WACCResult{WACC: 0.08},
		Projections: &projection.ProjectionSet{
			BaseRevenue: 1000,
			Years:       []projection.YearProjection{{Year: 1, Revenue: 1050, FCFF: 100}},
		},
		Valuation: valuation.ValuationResult{
			Terminal:         valuation.TerminalValueResult{GrowthRate: 0.04},
			TerminalValuePct: 0.5,
		},
	}

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Base: out})

	if !r.Passed {
		t.Fatalf("growth ceiling warns but never blocks: %+v", r.Errors())
	}
	warns := r.Warnings()
	if len(warns) != 1 || warns[0].Check != "terminal_growth" {
		t.Fatalf("warnings = %+v, want one terminal_growth", warns)
	}
	if !strings.Contains(warns[0].Message, "4.00%") {
		t.Errorf("message should carry the growth rate: %s", warns[0].Message)
	}
}

func TestAuditProjectionDefects(t *testing.T) {
	out := &valuation.RunOutput{
		WACC: valuation.WACCResult{WACC: 0.08},
		Projections: &projection.ProjectionSet{
			BaseRevenue: 1000,
			Years: []projection.YearProjection{
				// 60% jump in year 1, then revenue collapses negative while
				// FCFF drops 60% and ends below zero
				{Year: 1, Revenue: 1600, FCFF: 100},
				{Year: 2, Revenue: -100, FCFF: 40},
				{Year: 3, Revenue: 500, FCFF: -10},
			},
		},
		Valuation: valuation.ValuationResult{TerminalValuePct: 0.5},
	}

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Base: out})

	for _, check := range []string{"final_fcff", "projected_revenue"} {
		if !hasCheck(r.Errors(), check) {
			t.Errorf("expected %s error, got %+v", check, r.Errors())
		}
	}
	for _, check := range []string{"fcff_trajectory", "revenue_growth"} {
		if !hasCheck(r.Warnings(), check) {
			t.Errorf("expected %s warning, got %+v", check, r.Warnings())
		}
	}
	if r.Passed {
		t.Error("defective projections must fail the audit")
	}
}

func TestAuditScenarioValue(t *testing.T) {
	scenarios := map[string]valuation.Scenario{
		"base": {Name: "base", ValuePerShare: 35},
		"bull": {Name: "bull", ValuePerShare: 50},
		"bear": {Name: "bear", ValuePerShare: -2},
	}

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{Scenarios: scenarios})

	errs := r.Errors()
	if len(errs) != 1 || errs[0].Check != "scenario_value" {
		t.Fatalf("errors = %+v, want one scenario_value", errs)
	}
	if !strings.Contains(errs[0].Message, "bear") {
		t.Errorf("message should name the scenario: %s", errs[0].Message)
	}
}

func TestAuditWorkbookSheets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.xlsx")
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", "Executive Summary"); err != nil {
		t.Fatalf("rename sheet: %v", err)
	}
	if _, err := f.NewSheet("DCF Valuation"); err != nil {
		t.Fatalf("new sheet: %v", err)
	}
	if err := f.SaveAs(path); err != nil {
		t.Fatalf("save workbook: %v", err)
	}

	a := New(config.Default().Thresholds)
	r := a.Audit(Input{
		WorkbookPath:   path,
		RequiredSheets: []string{"Executive Summary", "DCF Valuation", "Audit Report"},
	})

	if len(r.Errors()) != 0 {
		t.Fatalf("errors = %+v, a missing sheet should not block", r.Errors())
	}
	warns := r.Warnings()
	if len(warns) != 1 {
		t.Fatalf("warnings = %+v, want exactly the missing sheet", warns)
	}
	if warns[0].Check != "required_sheets" || warns[0].Category != CategoryExcel {
		t.Errorf("finding = %+v, want excel required_sheets", warns[0])
	}
	if !strings.Contains(warns[0].Message, "Audit Report") {
		t.Errorf("message should name the sheet: %s", warns[0].Message)
	}
}

func TestAuditWorkbookUnreadable(t *testing.T) {
	a := New(config.Default().Thresholds)
	r := a.Audit(Input{
		WorkbookPath:   filepath.Join(t.TempDir(), "absent.xlsx"),
		RequiredSheets: []string{"Executive Summary"},
	})

	errs := r.Errors()
	if len(errs) != 1 || errs[0].Category != CategoryTechnical {
		t.Fatalf("errors = %+v, want one technical workbook error", errs)
	}
}

func TestResultsCounts(t *testing.T) {
	r := newResults()
	if !r.Passed {
		t.Fatal("fresh results must start passed")
	}
	r.add(SeverityWarning, CategoryFinancial, "w", "warn")
	if !r.Passed || r.WarningCount != 1 {
		t.Errorf("after warning: passed=%v warnings=%d", r.Passed, r.WarningCount)
	}
	r.add(SeverityError, CategoryFinancial, "e", "err")
	if r.Passed || r.ErrorCount != 1 {
		t.Errorf("after error: passed=%v errors=%d", r.Passed, r.ErrorCount)
	}
	if len(r.Errors()) != 1 || len(r.Warnings()) != 1 {
		t.Errorf("filters returned %d/%d, want 1/1", len(r.Errors()), len(r.Warnings()))
	}
	if len(r.Findings) != 2 {
		t.Errorf("findings = %d, want 2", len(r.Findings))
	}
}

func TestAuditConfigSanity(t *testing.T) {
	cfg := config.Default()
	cfg.DCF.ForecastYears = 0

	a := New(cfg.Thresholds)
	r := a.Audit(Input{Config: cfg})

	errs := r.Errors()
	if len(errs) != 1 || errs[0].Check != "config" || errs[0].Category != CategoryTechnical {
		t.Fatalf("errors = %+v, want one technical config finding", errs)
	}
	if !strings.Contains(errs[0].Message, "forecast_years") {
		t.Errorf("message should name the bad field: %s", errs[0].Message)
	}
}

func TestAuditEmptyDeltaLists(t *testing.T) {
	cfg := config.Default()
	cfg.Sensitivity = config.SensitivityConfig{}

	a := New(cfg.Thresholds)
	r := a.Audit(Input{Config: cfg})

	if r.ErrorCount != 0 {
		t.Fatalf("empty deltas must not be an error: %+v", r.Errors())
	}
	if !hasCheck(r.Warnings(), "sensitivity_deltas") {
		t.Errorf("expected sensitivity_deltas warning, got %+v", r.Warnings())
	}
}
