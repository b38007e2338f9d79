// Package audit runs the pre-publication checks: accounting identities on
// the historical statements, reasonableness of the valuation outputs, and
// completeness of the rendered workbook. A run passes only with zero
// error-severity findings; warnings inform but never block.
package audit

import (
	"fmt"
	"math"

	"dcf_engine/pkg/core/config"
	"dcf_engine/pkg/core/projection"
	"dcf_engine/pkg/core/valuation"
	"dcf_engine/pkg/models"
)

// Finding severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Finding categories.
const (
	CategoryFinancial = "financial"
	CategoryExcel     = "excel"
	CategoryTechnical = "technical"
)

const roicTaxRate = 0.25

// Finding is one audit observation.
type Finding struct {
	Severity string `json:"severity"`
	Category string `json:"category"`
	Check    string `json:"check"`
	Message  string `json:"message"`
}

// Results aggregates findings across all audit batteries.
type Results struct {
	Findings     []Finding `json:"findings"`
	ErrorCount   int       `json:"error_count"`
	WarningCount int       `json:"warning_count"`
	Passed       bool      `json:"passed"`
}

func newResults() *Results {
	return &Results{Passed: true}
}

func (r *Results) add(severity, category, check, message string) {
	r.Findings = append(r.Findings, Finding{
		Severity: severity,
		Category: category,
		Check:    check,
		Message:  message,
	})
	switch severity {
	case SeverityError:
		r.ErrorCount++
		r.Passed = false
	case SeverityWarning:
		r.WarningCount++
	}
}

// Errors returns only the error-severity findings.
func (r *Results) Errors() []Finding {
	return r.filter(SeverityError)
}

// Warnings returns only the warning-severity findings.
func (r *Results) Warnings() []Finding {
	return r.filter(SeverityWarning)
}

func (r *Results) filter(severity string) []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Severity == severity {
			out = append(out, f)
		}
	}
	return out
}

// Input bundles everything one audit pass inspects. WorkbookPath is
// optional; when empty the workbook battery is skipped.
type Input struct {
	Config         *config.Config
	Statements     *models.Statements
	Base           *valuation.RunOutput
	Scenarios      map[string]valuation.Scenario
	WorkbookPath   string
	RequiredSheets []string
}

// Auditor applies the configured thresholds.
type Auditor struct {
	thresholds config.ThresholdConfig
}

func New(thresholds config.ThresholdConfig) *Auditor {
	return &Auditor{thresholds: thresholds}
}

// Audit runs every battery applicable to the input and aggregates the
// findings.
func (a *Auditor) Audit(in Input) *Results {
	r := newResults()
	a.auditConfig(in.Config, r)
	a.auditStatements(in.Statements, r)
	a.auditValuation(in.Base, r)
	a.auditScenarios(in.Scenarios, r)
	if in.WorkbookPath != "" {
		a.auditWorkbook(in.WorkbookPath, in.RequiredSheets, r)
	}
	return r
}

// auditConfig reruns the configuration sanity checks so a run that was
// started with a hand-edited config still surfaces the problem in the
// report.
func (a *Auditor) auditConfig(cfg *config.Config, r *Results) {
	if cfg == nil {
		return
	}
	if err := cfg.Validate(); err != nil {
		r.add(SeverityError, CategoryTechnical, "config", err.Error())
	}
	if len(cfg.Sensitivity.WACCDeltas) == 0 && len(cfg.Sensitivity.TerminalGrowthDeltas) == 0 &&
		len(cfg.Sensitivity.RevenueGrowthDeltas) == 0 && len(cfg.Sensitivity.EBITMarginDeltas) == 0 {
		r.add(SeverityWarning, CategoryTechnical, "sensitivity_deltas",
			"all sensitivity delta lists are empty, no tables will be produced")
	}
}

// ==================== Historical Statements ====================

func (a *Auditor) auditStatements(s *models.Statements, r *Results) {
	if s == nil {
		return
	}
	a.checkBalanceIdentity(s.Balance, r)
	a.checkCashFlowIdentity(s.CashFlow, r)
	a.checkHistoricalRevenue(s.Income, r)
	a.checkGrossMargins(s.Income, r)
	a.checkROIC(s, r)
}

// checkBalanceIdentity verifies Assets = Liabilities + Equity per period,
// relative to the asset base.
func (a *Auditor) checkBalanceIdentity(balance *models.Table, r *Results) {
	if balance.IsEmpty() {
		return
	}
	for _, col := range []string{models.ColTotalAssets, models.ColTotalLiabilities, models.ColTotalEquity} {
		if !balance.HasColumn(col) {
			return
		}
	}
	for i, date := range balance.Dates {
		assets := balance.Value(models.ColTotalAssets, i)
		other := balance.Value(models.ColTotalLiabilities, i) + balance.Value(models.ColTotalEquity, i)
		if math.IsNaN(assets) || math.IsNaN(other) {
			continue
		}
		denom := math.Max(math.Abs(assets), 1)
		if math.Abs(assets-other)/denom > a.thresholds.IdentityTolerance {
			r.add(SeverityError, CategoryFinancial, "balance_identity", fmt.Sprintf(
				"accounting identity violated at %s: assets %.2f vs liabilities+equity %.2f",
				date, assets, other))
		}
	}
}

// checkCashFlowIdentity verifies CFO + CFI + CFF = Net Change in Cash per
// period, when all four lines are reported.
func (a *Auditor) checkCashFlowIdentity(cf *models.Table, r *Results) {
	if cf.IsEmpty() {
		return
	}
	cols := []string{
		models.ColOperatingCashFlow,
		models.ColInvestingCashFlow,
		models.ColFinancingCashFlow,
		models.ColNetChangeInCash,
	}
	for _, col := range cols {
		if !cf.HasColumn(col) {
			return
		}
	}
	for i, date := range cf.Dates {
		sum := cf.Value(cols[0], i) + cf.Value(cols[1], i) + cf.Value(cols[2], i)
		reported := cf.Value(cols[3], i)
		if math.IsNaN(sum) || math.IsNaN(reported) {
			continue
		}
		denom := math.Max(math.Abs(reported), 1)
		if math.Abs(sum-reported)/denom > a.thresholds.IdentityTolerance {
			r.add(SeverityError, CategoryFinancial, "cash_flow_identity", fmt.Sprintf(
				"cash flow identity violated at %s: components sum to %.2f vs reported net change %.2f",
				date, sum, reported))
		}
	}
}

func (a *Auditor) checkHistoricalRevenue(income *models.Table, r *Results) {
	if income.IsEmpty() || !income.HasColumn(models.ColRevenue) {
		return
	}
	for i, date := range income.Dates {
		rev := income.Value(models.ColRevenue, i)
		if !math.IsNaN(rev) && rev < 0 {
			r.add(SeverityError, CategoryFinancial, "historical_revenue", fmt.Sprintf(
				"historical revenue is negative at %s: %.2f", date, rev))
		}
	}
}

// checkGrossMargins flags margins outside [0, 1], a classic sign of a
// scaling or extraction defect rather than a business reality.
func (a *Auditor) checkGrossMargins(income *models.Table, r *Results) {
	if income.IsEmpty() || !income.HasColumn(models.ColRevenue) || !income.HasColumn(models.ColGrossProfit) {
		return
	}
	for i, date := range income.Dates {
		rev := income.Value(models.ColRevenue, i)
		gp := income.Value(models.ColGrossProfit, i)
		if math.IsNaN(rev) || math.IsNaN(gp) || rev == 0 {
			continue
		}
		margin := gp / rev
		if margin < 0 || margin > 1 {
			r.add(SeverityWarning, CategoryFinancial, "gross_margin", fmt.Sprintf(
				"gross margin %.1f%% at %s is outside the 0%%-100%% range", margin*100, date))
		}
	}
}

// checkROIC approximates after-tax return on invested capital for the
// latest year and warns below the configured floor.
func (a *Auditor) checkROIC(s *models.Statements, r *Results) {
	if a.thresholds.MinROIC <= 0 {
		return
	}
	ebit := s.Income.Latest(models.ColEBIT)
	equity := s.Balance.Latest(models.ColTotalEquity)
	debt := s.Balance.Latest(models.ColTotalDebt)
	if math.IsNaN(debt) {
		debt = 0
	}
	invested := equity + debt
	if math.IsNaN(ebit) || math.IsNaN(invested) || invested <= 0 {
		return
	}
	roic := ebit * (1 - roicTaxRate) / invested
	if roic < a.thresholds.MinROIC {
		r.add(SeverityWarning, CategoryFinancial, "roic", fmt.Sprintf(
			"latest ROIC of %.1f%% is below the %.1f%% floor", roic*100, a.thresholds.MinROIC*100))
	}
}

// ==================== Valuation Outputs ====================

func (a *Auditor) auditValuation(out *valuation.RunOutput, r *Results) {
	if out == nil {
		return
	}

	// 1. Discount rate inside the reasonable band. The WACC calculator
	// already warned; past this point it blocks publication.
	wacc := out.WACC.WACC
	if wacc < a.thresholds.WACCMin {
		r.add(SeverityError, CategoryFinancial, "wacc_band", fmt.Sprintf(
			"WACC (%.2f%%) is below minimum reasonable value (%.2f%%)", wacc*100, a.thresholds.WACCMin*100))
	} else if wacc > a.thresholds.WACCMax {
		r.add(SeverityError, CategoryFinancial, "wacc_band", fmt.Sprintf(
			"WACC (%.2f%%) is above maximum reasonable value (%.2f%%)", wacc*100, a.thresholds.WACCMax*100))
	}

	// 2. Terminal growth ceiling. Derived or hand-corrected assumptions
	// can carry a growth the config validation never saw.
	if g := out.Valuation.Terminal.GrowthRate; g > a.thresholds.MaxTerminalGrowth {
		r.add(SeverityWarning, CategoryFinancial, "terminal_growth", fmt.Sprintf(
			"terminal growth of %.2f%% exceeds the %.2f%% ceiling",
			g*100, a.thresholds.MaxTerminalGrowth*100))
	}

	if out.Projections == nil || len(out.Projections.Years) == 0 {
		r.add(SeverityError, CategoryTechnical, "projections", "no projected years to audit")
		return
	}
	years := out.Projections.Years

	// 3. Final-year FCFF must be positive or the terminal value is
	// meaningless.
	if final, ok := out.Projections.Final(); ok && final.FCFF < 0 {
		r.add(SeverityError, CategoryFinancial, "final_fcff", fmt.Sprintf(
			"final year FCFF is negative: %.2f", final.FCFF))
	}

	// 4. Projected revenue stays positive.
	for _, y := range years {
		if y.Revenue <= 0 {
			r.add(SeverityError, CategoryFinancial, "projected_revenue", fmt.Sprintf(
				"projected revenue is not positive in year %d: %.2f", y.Year, y.Revenue))
		}
	}

	// 5. Terminal value share of EV.
	if tvPct := out.Valuation.TerminalValuePct; tvPct > a.thresholds.MaxTVShare {
		r.add(SeverityWarning, CategoryFinancial, "terminal_value_share", fmt.Sprintf(
			"terminal value represents %.1f%% of enterprise value", tvPct*100))
	}

	// 6. FCFF trajectory: a drop past 50% between adjacent years points at
	// an assumption error.
	for i := 1; i < len(years); i++ {
		prior := years[i-1].FCFF
		if prior <= 0 {
			continue
		}
		growth := years[i].FCFF/prior - 1
		if growth < -0.50 {
			r.add(SeverityWarning, CategoryFinancial, "fcff_trajectory", fmt.Sprintf(
				"FCFF drops %.1f%% in year %d", -growth*100, years[i].Year))
		}
	}

	// 7. Revenue growth reasonableness, per year and on average.
	growths := revenueGrowths(out.Projections)
	for i, g := range growths {
		if g > a.thresholds.MaxSingleYearGrowth {
			r.add(SeverityWarning, CategoryFinancial, "revenue_growth", fmt.Sprintf(
				"projected revenue growth of %.1f%% in year %d exceeds %.1f%%",
				g*100, i+1, a.thresholds.MaxSingleYearGrowth*100))
		}
	}
	if avg, ok := mean(growths); ok && avg > a.thresholds.MaxAverageGrowth {
		r.add(SeverityWarning, CategoryFinancial, "revenue_growth", fmt.Sprintf(
			"average projected revenue growth of %.1f%% exceeds %.1f%%",
			avg*100, a.thresholds.MaxAverageGrowth*100))
	}
}

// ==================== Scenarios ====================

func (a *Auditor) auditScenarios(scenarios map[string]valuation.Scenario, r *Results) {
	for _, name := range valuation.ScenarioOrder {
		s, ok := scenarios[name]
		if !ok {
			continue
		}
		if s.ValuePerShare <= 0 || math.IsNaN(s.ValuePerShare) {
			r.add(SeverityError, CategoryFinancial, "scenario_value", fmt.Sprintf(
				"%s scenario produced non-positive value per share: %.2f", name, s.ValuePerShare))
		}
	}
}

// ==================== Helpers ====================

// revenueGrowths derives the implied year-over-year growth series from the
// projected revenue line, anchored on the last historical year.
func revenueGrowths(p *projection.ProjectionSet) []float64 {
	if p == nil || len(p.Years) == 0 {
		return nil
	}
	out := make([]float64, 0, len(p.Years))
	prior := p.BaseRevenue
	for _, y := range p.Years {
		if prior > 0 {
			out = append(out, y.Revenue/prior-1)
		}
		prior = y.Revenue
	}
	return out
}

func mean(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), true
}
