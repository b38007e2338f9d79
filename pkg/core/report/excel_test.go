package report

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"dcf_engine/pkg/core/assumption"
	"dcf_engine/pkg/core/audit"
	"dcf_engine/pkg/core/config"
	"dcf_engine/pkg/core/projection"
	"dcf_engine/pkg/core/ratios"
	"dcf_engine/pkg/core/valuation"
	"dcf_engine/pkg/models"
)

// reportInput assembles a small internally consistent run. Equity value
// 3570 over 100 shares is 35.70 per share; against a 25.50 price that is
// +40% upside, so the rating lands on Strong Buy.
func reportInput(t *testing.T, dir string) *Input {
	t.Helper()

	cfg := config.Default()
	cfg.Company.Ticker = "UMG.AS"
	cfg.Company.Name = "Universal Music Group"
	cfg.Excel.WorkbookPath = filepath.Join(dir, "UMG_DCF_Model.xlsx")

	st := models.NewStatements()
	for _, c := range []struct {
		col string
		y22 float64
		y23 float64
	}{
		{models.ColRevenue, 950, 1000},
		{models.ColCostOfRevenue, 570, 600},
		{models.ColGrossProfit, 380, 400},
		{models.ColEBIT, 190, 200},
		{models.ColNetIncome, 142.5, 150},
	} {
		st.Income.SetCell("2022-12-31", c.col, c.y22)
		st.Income.SetCell("2023-12-31", c.col, c.y23)
	}
	st.Balance.SetCell("2023-12-31", models.ColTotalAssets, 2000)
	st.Balance.SetCell("2023-12-31", models.ColTotalEquity, 1200)
	st.Balance.SetCell("2023-12-31", models.ColCash, 100)
	st.CashFlow.SetCell("2023-12-31", models.ColOperatingCashFlow, 240)
	st.CashFlow.SetCell("2023-12-31", models.ColCapEx, -50)

	a := assumption.DCFAssumptions{
		RevenueGrowth:     assumption.NewScalar(0.05),
		GrossMargin:       assumption.NewScalar(0.40),
		EBITMargin:        assumption.NewScalar(0.20),
		DepreciationPct:   assumption.NewScalar(0.05),
		TaxRate:           assumption.NewScalar(0.25),
		WorkingCapitalPct: assumption.NewScalar(0.10),
		CapexPct:          assumption.NewScalar(0.05),
		TerminalGrowth:    0.02,
		ForecastYears:     3,
	}

	proj := &projection.ProjectionSet{
		BaseRevenue: 1000,
		Years: []projection.YearProjection{
			{Year: 1, Revenue: 1050, CostOfRevenue: 630, GrossProfit: 420, OperatingExpenses: 210,
				EBIT: 210, Depreciation: 52.5, EBITDA: 262.5, IncomeBeforeTax: 210, TaxExpense: 52.5,
				NetIncome: 157.5, WorkingCapital: 105, ChangeInWC: 5, OperatingCashFlow: 205,
				CapitalExpenditures: -52.5, FreeCashFlow: 152.5, FCFF: 152.5},
			{Year: 2, Revenue: 1102.5, CostOfRevenue: 661.5, GrossProfit: 441, OperatingExpenses: 220.5,
				EBIT: 220.5, Depreciation: 55.13, EBITDA: 275.63, IncomeBeforeTax: 220.5, TaxExpense: 55.13,
				NetIncome: 165.38, WorkingCapital: 110.25, ChangeInWC: 5.25, OperatingCashFlow: 215.38,
				CapitalExpenditures: -55.13, FreeCashFlow: 160.13, FCFF: 160.13},
			{Year: 3, Revenue: 1157.63, CostOfRevenue: 694.58, GrossProfit: 463.05, OperatingExpenses: 231.53,
				EBIT: 231.53, Depreciation: 57.88, EBITDA: 289.41, IncomeBeforeTax: 231.53, TaxExpense: 57.88,
				NetIncome: 173.64, WorkingCapital: 115.76, ChangeInWC: 5.51, OperatingCashFlow: 226.01,
				CapitalExpenditures: -57.88, FreeCashFlow: 168.13, FCFF: 168.13},
		},
	}

	base := &valuation.RunOutput{
		Projections: proj,
		WACC: valuation.WACCResult{
			WACC: 0.075, CostOfEquity: 0.075, WeightEquity: 1, BetaUsed: 1.0,
			EquityBasis: valuation.EquityBasisMarketCap,
		},
		Valuation: valuation.ValuationResult{
			WACC: 0.075,
			Terminal: valuation.TerminalValueResult{
				Perpetuity: 3118.5, Blended: 3118.5, GrowthRate: 0.02,
			},
			PVByYear:          []float64{141.86, 138.55, 135.30},
			PVFCFF:            415.71,
			PVTerminalValue:   3154.29,
			EnterpriseValue:   3570,
			NetDebt:           0,
			EquityValue:       3570,
			SharesOutstanding: 100,
			ValuePerShare:     35.70,
			TerminalValuePct:  0.8835,
			Warnings:          []string{"terminal value represents 88.4% of enterprise value"},
		},
	}

	relVPS := 32.10
	evebitda := 11.0
	rec := valuation.Recommendation{
		CurrentPrice: 25.50,
		DCFValue:     35.70,
		TargetPrice:  35.70,
		UpsidePct:    40.0,
		Label:        valuation.RecStrongBuy,
	}

	auditRes := &audit.Results{
		Findings: []audit.Finding{
			{Severity: audit.SeverityWarning, Category: audit.CategoryFinancial,
				Check: "terminal_value_share", Message: "terminal value represents 88.4% of enterprise value"},
		},
		WarningCount: 1,
		Passed:       true,
	}

	px := 25.50
	mc := 2550.0
	beta := 1.0
	shares := 100.0
	return &Input{
		RunID:       "run-7f3a",
		GeneratedAt: time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC),
		Cfg:         cfg,
		Statements:  st,
		Ratios:      ratios.Compute(st),
		Market: &models.MarketData{
			Ticker: "UMG.AS", Name: "Universal Music Group", Currency: "EUR",
			CurrentPrice: &px, MarketCap: &mc, Beta: &beta, SharesOutstanding: &shares,
		},
		Macro:       &models.MacroData{},
		Assumptions: a,
		Base:        base,
		Sensitivity: []valuation.TableResult{
			{Parameter: valuation.ParamWACC, Points: []valuation.Point{
				{Delta: -0.01, Value: 0.065, ValuePerShare: 42.10, UpsidePct: 65.1},
				{Delta: 0.01, Value: 0.085, ValuePerShare: 30.90, UpsidePct: 21.2},
			}},
			{Parameter: valuation.ParamTerminalGrowth, Points: []valuation.Point{
				{Delta: -0.005, Value: 0.015, ValuePerShare: 33.20, UpsidePct: 30.2},
				{Delta: 0.005, Value: 0.025, ValuePerShare: 38.70, UpsidePct: 51.8},
			}},
		},
		Scenarios: map[string]valuation.Scenario{
			valuation.ScenarioBase: {Name: valuation.ScenarioBase, Assumptions: a, WACC: 0.075,
				ValuePerShare: 35.70, EquityValue: 3570, EnterpriseValue: 3570,
				CurrentPrice: 25.50, UpsidePct: 40.0, Recommendation: valuation.RecStrongBuy},
			valuation.ScenarioBull: {Name: valuation.ScenarioBull, Assumptions: a, WACC: 0.075,
				ValuePerShare: 41.20, EquityValue: 4120, EnterpriseValue: 4120,
				CurrentPrice: 25.50, UpsidePct: 61.6, Recommendation: valuation.RecStrongBuy},
			valuation.ScenarioBear: {Name: valuation.ScenarioBear, Assumptions: a, WACC: 0.075,
				ValuePerShare: 28.10, EquityValue: 2810, EnterpriseValue: 2810,
				CurrentPrice: 25.50, UpsidePct: 10.2, Recommendation: valuation.RecBuy},
		},
		Relative: valuation.RelativeResult{
			MedianEVEBITDA:        &evebitda,
			EVEBITDAValuePerShare: &relVPS,
			PeersUsedEVEBITDA:     2,
		},
		Rec:   rec,
		Audit: auditRes,
		Peers: []models.PeerRecord{
			{Ticker: "SONY", Name: "Sony Group"},
			{Ticker: "WMG", Name: "Warner Music", Err: "quoteSummary returned status 500"},
		},
	}
}

func TestBuildWorkbook(t *testing.T) {
	dir := t.TempDir()
	in := reportInput(t, dir)

	path, err := BuildWorkbook(in)
	if err != nil {
		t.Fatalf("BuildWorkbook failed: %v", err)
	}
	if path != in.Cfg.Excel.WorkbookPath {
		t.Errorf("returned path = %s, want %s", path, in.Cfg.Excel.WorkbookPath)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	got := f.GetSheetList()
	if len(got) != len(SheetNames) {
		t.Fatalf("workbook has %d sheets, want %d: %v", len(got), len(SheetNames), got)
	}
	for i, name := range SheetNames {
		if got[i] != name {
			t.Errorf("sheet %d = %q, want %q", i, got[i], name)
		}
	}
}

func TestBuildWorkbookExecutiveSummary(t *testing.T) {
	dir := t.TempDir()
	in := reportInput(t, dir)

	path, err := BuildWorkbook(in)
	if err != nil {
		t.Fatalf("BuildWorkbook failed: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	title, err := f.GetCellValue(SheetExecutiveSummary, "A1")
	if err != nil {
		t.Fatalf("GetCellValue failed: %v", err)
	}
	if title != "Universal Music Group (UMG.AS)" {
		t.Errorf("title = %q", title)
	}

	// Recommendation block starts at row 6; the rating sits at B7.
	rating, _ := f.GetCellValue(SheetExecutiveSummary, "B7")
	if rating != valuation.RecStrongBuy {
		t.Errorf("rating cell = %q, want %q", rating, valuation.RecStrongBuy)
	}

	hits, err := f.SearchSheet(SheetExecutiveSummary, "Value per Share")
	if err != nil {
		t.Fatalf("SearchSheet failed: %v", err)
	}
	if len(hits) == 0 {
		t.Error("Value per Share label missing from executive summary")
	}
}

func TestBuildWorkbookAuditSheet(t *testing.T) {
	dir := t.TempDir()
	in := reportInput(t, dir)

	path, err := BuildWorkbook(in)
	if err != nil {
		t.Fatalf("BuildWorkbook failed: %v", err)
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("failed to reopen workbook: %v", err)
	}
	defer f.Close()

	hits, err := f.SearchSheet(SheetAudit, "terminal_value_share")
	if err != nil {
		t.Fatalf("SearchSheet failed: %v", err)
	}
	if len(hits) == 0 {
		t.Error("audit sheet does not list the terminal value warning")
	}
}

func TestRatioIsPercent(t *testing.T) {
	cases := []struct {
		name string
		want bool
	}{
		{ratios.GrossMargin, true},
		{ratios.RevenueGrowthYoY, true},
		{ratios.RevenueCAGR, true},
		{ratios.EffectiveTaxRate, true},
		{ratios.CapexPctRev, true},
		{ratios.ReturnOnEquity, true},
		{ratios.CurrentRatio, false},
		{ratios.DebtToEquity, false},
		{ratios.AssetTurnover, false},
	}
	for _, tc := range cases {
		if got := ratioIsPercent(tc.name); got != tc.want {
			t.Errorf("ratioIsPercent(%s) = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestSensitivityRange(t *testing.T) {
	points := []valuation.Point{
		{ValuePerShare: 42.10},
		{ValuePerShare: math.NaN()},
		{ValuePerShare: 30.90},
	}
	low, high := sensitivityRange(points)
	if math.Abs(low-30.90) > 1e-9 || math.Abs(high-42.10) > 1e-9 {
		t.Errorf("range = [%v, %v], want [30.90, 42.10]", low, high)
	}
}
