package report

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/xuri/excelize/v2"

	"dcf_engine/pkg/core/assumption"
	"dcf_engine/pkg/core/projection"
	"dcf_engine/pkg/core/ratios"
	"dcf_engine/pkg/core/valuation"
	"dcf_engine/pkg/models"
)

// ==================== Workbook ====================

// BuildWorkbook renders the full model workbook to the configured path and
// returns that path. Sheets are created in SheetNames order.
func BuildWorkbook(in *Input) (string, error) {
	b := &workbookBuilder{f: excelize.NewFile(), in: in}
	defer b.f.Close()

	if err := b.initStyles(); err != nil {
		return "", fmt.Errorf("failed to build styles: %w", err)
	}

	// The file comes with Sheet1; renaming it keeps the tab order aligned
	// with SheetNames.
	if err := b.f.SetSheetName("Sheet1", SheetNames[0]); err != nil {
		return "", err
	}
	for _, name := range SheetNames[1:] {
		if _, err := b.f.NewSheet(name); err != nil {
			return "", fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	b.writeExecutiveSummary()
	b.writeHistorical()
	b.writeAssumptions()
	b.writeIncomeProjections()
	b.writeFCFF()
	b.writeWACC()
	b.writeTerminalValue()
	b.writeDCFValuation()
	b.writeSensitivity()
	b.writeScenarios()
	b.writeRelative()
	b.writeAudit()
	if b.err != nil {
		return "", fmt.Errorf("failed to render workbook: %w", b.err)
	}

	b.f.SetActiveSheet(0)

	path := in.Cfg.Excel.WorkbookPath
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("failed to create output dir: %w", err)
		}
	}
	if err := b.f.SaveAs(path); err != nil {
		return "", fmt.Errorf("failed to save workbook: %w", err)
	}
	return path, nil
}

// workbookBuilder carries the open file and the shared styles. The first
// write error sticks and short-circuits everything after it.
type workbookBuilder struct {
	f   *excelize.File
	in  *Input
	err error

	titleStyle    int
	headerStyle   int
	labelStyle    int
	textStyle     int
	numberStyle   int
	currencyStyle int
	percentStyle  int
	inputPctStyle int
	inputNumStyle int
	totalStyle    int
	decimalStyle  int
}

func (b *workbookBuilder) initStyles() error {
	cfg := b.in.Cfg.Excel
	var err error
	newStyle := func(s *excelize.Style) int {
		if err != nil {
			return 0
		}
		var id int
		id, err = b.f.NewStyle(s)
		return id
	}
	font := func(bold bool, size float64, color string) *excelize.Font {
		return &excelize.Font{Family: cfg.FontName, Size: size, Bold: bold, Color: color}
	}
	fill := func(color string) excelize.Fill {
		return excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{color}}
	}

	b.titleStyle = newStyle(&excelize.Style{Font: font(true, cfg.FontSize+4, "")})
	b.headerStyle = newStyle(&excelize.Style{
		Font: font(true, cfg.FontSize, "FFFFFF"),
		Fill: fill(cfg.HeaderColor),
	})
	b.labelStyle = newStyle(&excelize.Style{Font: font(true, cfg.FontSize, "")})
	b.textStyle = newStyle(&excelize.Style{
		Font:      font(false, cfg.SmallFontSize, ""),
		Alignment: &excelize.Alignment{WrapText: true, Vertical: "top"},
	})
	b.numberStyle = newStyle(&excelize.Style{
		Font: font(false, cfg.FontSize, ""), CustomNumFmt: &cfg.NumberFormat, Fill: fill(cfg.CalcColor),
	})
	b.currencyStyle = newStyle(&excelize.Style{
		Font: font(false, cfg.FontSize, ""), CustomNumFmt: &cfg.CurrencyFormat, Fill: fill(cfg.CalcColor),
	})
	b.percentStyle = newStyle(&excelize.Style{
		Font: font(false, cfg.FontSize, ""), CustomNumFmt: &cfg.PercentFormat, Fill: fill(cfg.CalcColor),
	})
	// Assumption inputs get the input fill so hand-tuned cells stand out.
	b.inputPctStyle = newStyle(&excelize.Style{
		Font: font(false, cfg.FontSize, ""), CustomNumFmt: &cfg.PercentFormat, Fill: fill(cfg.InputColor),
	})
	b.inputNumStyle = newStyle(&excelize.Style{
		Font: font(false, cfg.FontSize, ""), CustomNumFmt: &cfg.NumberFormat, Fill: fill(cfg.InputColor),
	})
	b.totalStyle = newStyle(&excelize.Style{
		Font: font(true, cfg.FontSize, ""), CustomNumFmt: &cfg.NumberFormat, Fill: fill(cfg.FormulaColor),
	})
	decimal := "0.00"
	b.decimalStyle = newStyle(&excelize.Style{
		Font: font(false, cfg.FontSize, ""), CustomNumFmt: &decimal, Fill: fill(cfg.CalcColor),
	})
	return err
}

// ==================== Cell Helpers ====================

func cellRef(col, row int) string {
	ref, _ := excelize.CoordinatesToCellName(col, row)
	return ref
}

func (b *workbookBuilder) set(sheet string, col, row int, v interface{}, style int) {
	if b.err != nil {
		return
	}
	ref := cellRef(col, row)
	if err := b.f.SetCellValue(sheet, ref, v); err != nil {
		b.err = err
		return
	}
	if style != 0 {
		b.err = b.f.SetCellStyle(sheet, ref, ref, style)
	}
}

// sheetTitle writes the A1 title and sets the label and data column widths.
func (b *workbookBuilder) sheetTitle(sheet, title string, dataCols int) {
	b.set(sheet, 1, 1, title, b.titleStyle)
	if b.err == nil {
		b.err = b.f.SetColWidth(sheet, "A", "A", 32)
	}
	if b.err == nil && dataCols > 0 {
		end, _ := excelize.ColumnNumberToName(1 + dataCols)
		b.err = b.f.SetColWidth(sheet, "B", end, 14)
	}
}

// sectionHeader paints a header band across the label column plus span
// data columns.
func (b *workbookBuilder) sectionHeader(sheet string, row int, title string, span int) {
	b.set(sheet, 1, row, title, b.headerStyle)
	for col := 2; col <= 1+span; col++ {
		b.set(sheet, col, row, "", b.headerStyle)
	}
}

func (b *workbookBuilder) labeled(sheet string, row int, label string, v interface{}, style int) {
	b.set(sheet, 1, row, label, b.labelStyle)
	b.set(sheet, 2, row, v, style)
}

// ==================== Sheets ====================

func (b *workbookBuilder) writeExecutiveSummary() {
	in, s := b.in, SheetExecutiveSummary
	company := in.Cfg.Company
	b.sheetTitle(s, fmt.Sprintf("%s (%s)", company.Name, company.Ticker), 2)

	b.set(s, 1, 2, "Discounted Cash Flow Valuation", b.labelStyle)
	b.labeled(s, 3, "Generated", in.GeneratedAt.Format("2006-01-02 15:04"), 0)
	b.labeled(s, 4, "Run", in.RunID, 0)

	row := 6
	b.sectionHeader(s, row, "Recommendation", 1)
	row++
	b.labeled(s, row, "Rating", in.Rec.Label, b.labelStyle)
	row++
	b.labeled(s, row, "Current Price", in.Rec.CurrentPrice, b.currencyStyle)
	row++
	b.labeled(s, row, "Target Price", in.Rec.TargetPrice, b.currencyStyle)
	row++
	b.labeled(s, row, "Upside", in.Rec.UpsidePct/100, b.percentStyle)
	row++
	b.labeled(s, row, "DCF Value per Share", in.Rec.DCFValue, b.currencyStyle)
	row++
	if in.Rec.RelativeValue != nil {
		b.labeled(s, row, "Relative Value per Share", *in.Rec.RelativeValue, b.currencyStyle)
		row++
	}

	row++
	b.sectionHeader(s, row, "Valuation Snapshot", 1)
	row++
	v := in.Base.Valuation
	b.labeled(s, row, "WACC", v.WACC, b.percentStyle)
	row++
	b.labeled(s, row, "Enterprise Value", v.EnterpriseValue, b.numberStyle)
	row++
	b.labeled(s, row, "Net Debt", v.NetDebt, b.numberStyle)
	row++
	b.labeled(s, row, "Equity Value", v.EquityValue, b.numberStyle)
	row++
	b.labeled(s, row, "Value per Share", v.ValuePerShare, b.currencyStyle)
	row++
	b.labeled(s, row, "Terminal Value Share of EV", v.TerminalValuePct, b.percentStyle)
	row++

	if in.Audit != nil {
		row++
		b.sectionHeader(s, row, "Audit", 1)
		row++
		status := "PASSED"
		if !in.Audit.Passed {
			status = "FAILED"
		}
		b.labeled(s, row, "Status", status, b.labelStyle)
		row++
		b.labeled(s, row, "Errors", len(in.Audit.Errors()), 0)
		row++
		b.labeled(s, row, "Warnings", len(in.Audit.Warnings()), 0)
		row++
	}

	if in.Narrative != "" {
		row++
		b.sectionHeader(s, row, "Analyst Narrative", 1)
		row++
		start := cellRef(1, row)
		b.set(s, 1, row, in.Narrative, b.textStyle)
		if b.err == nil {
			b.err = b.f.MergeCell(s, start, cellRef(6, row+14))
		}
	}
}

func (b *workbookBuilder) writeHistorical() {
	in, s := b.in, SheetHistorical
	b.sheetTitle(s, "Historical Financials", maxPeriods(in.Statements))

	row := 3
	row = b.historicalBlock(s, row, "Income Statement", in.Statements.Income)
	row = b.historicalBlock(s, row+1, "Balance Sheet", in.Statements.Balance)
	row = b.historicalBlock(s, row+1, "Cash Flow Statement", in.Statements.CashFlow)
	if in.Ratios != nil && len(in.Ratios.Values) > 0 {
		b.ratioBlock(s, row+1, in.Ratios)
	}
}

// ratioBlock lists the computed ratios under the statements. Series are
// aligned to the income statement periods; scalars sit in the first
// data column.
func (b *workbookBuilder) ratioBlock(sheet string, row int, rs *ratios.Set) {
	var dates []string
	if b.in.Statements != nil && b.in.Statements.Income != nil {
		dates = b.in.Statements.Income.Dates
	}
	names := make([]string, 0, len(rs.Values))
	for name := range rs.Values {
		names = append(names, name)
	}
	sort.Strings(names)

	span := len(dates)
	if span == 0 {
		span = 1
	}
	b.sectionHeader(sheet, row, "Key Ratios", span)
	for i, d := range dates {
		b.set(sheet, 2+i, row, d, b.headerStyle)
	}
	row++
	for _, name := range names {
		v := rs.Values[name]
		style := b.decimalStyle
		if ratioIsPercent(name) {
			style = b.percentStyle
		}
		b.set(sheet, 1, row, strings.ReplaceAll(name, "_", " "), b.labelStyle)
		if v.Kind == ratios.KindScalar {
			if !math.IsNaN(v.Scalar) {
				b.set(sheet, 2, row, v.Scalar, style)
			}
		} else {
			for i, sv := range v.Series {
				if !math.IsNaN(sv) {
					b.set(sheet, 2+i, row, sv, style)
				}
			}
		}
		row++
	}
}

// ratioIsPercent decides display format from the ratio name. Margins,
// growth rates and revenue percentages render as percents; turnover and
// coverage style ratios stay plain numbers.
func ratioIsPercent(name string) bool {
	switch {
	case strings.HasSuffix(name, "_margin"),
		strings.Contains(name, "growth"),
		strings.HasSuffix(name, "_rate"),
		strings.HasSuffix(name, "_cagr"),
		strings.HasSuffix(name, "_pct_revenue"),
		strings.HasPrefix(name, "return_on_"):
		return true
	}
	return false
}

// historicalBlock writes one statement table: period dates across, line
// items down. Returns the row after the block.
func (b *workbookBuilder) historicalBlock(sheet string, row int, title string, t *models.Table) int {
	if t.IsEmpty() {
		return row
	}
	b.sectionHeader(sheet, row, title, len(t.Dates))
	for i, d := range t.Dates {
		b.set(sheet, 2+i, row, d, b.headerStyle)
	}
	row++
	for _, name := range t.Columns {
		b.set(sheet, 1, row, name, b.labelStyle)
		for i := range t.Dates {
			if v := t.Value(name, i); !math.IsNaN(v) {
				b.set(sheet, 2+i, row, v, b.numberStyle)
			}
		}
		row++
	}
	return row
}

func (b *workbookBuilder) writeAssumptions() {
	in, s := b.in, SheetAssumptions
	a := in.Assumptions
	years := a.ForecastYears
	b.sheetTitle(s, "DCF Assumptions", years)

	row := 3
	b.set(s, 1, row, "Driver", b.headerStyle)
	for y := 1; y <= years; y++ {
		b.set(s, 1+y, row, fmt.Sprintf("Year %d", y), b.headerStyle)
	}
	row++

	drivers := []struct {
		label string
		d     assumption.Driver
		style int
	}{
		{"Revenue Growth", a.RevenueGrowth, b.inputPctStyle},
		{"Gross Margin", a.GrossMargin, b.inputPctStyle},
		{"EBIT Margin", a.EBITMargin, b.inputPctStyle},
		{"Depreciation % of Revenue", a.DepreciationPct, b.inputPctStyle},
		{"Tax Rate", a.TaxRate, b.inputPctStyle},
		{"Working Capital % of Revenue", a.WorkingCapitalPct, b.inputPctStyle},
		{"CapEx % of Revenue", a.CapexPct, b.inputPctStyle},
		{"Interest Expense", a.InterestExpense, b.inputNumStyle},
	}
	for _, dr := range drivers {
		if !dr.d.IsSet() {
			continue
		}
		b.set(s, 1, row, dr.label, b.labelStyle)
		for y := 1; y <= years; y++ {
			if v, err := dr.d.Resolve(y); err == nil {
				b.set(s, 1+y, row, v, dr.style)
			}
		}
		row++
	}

	row++
	b.labeled(s, row, "Terminal Growth Rate", a.TerminalGrowth, b.inputPctStyle)
	row++
	b.labeled(s, row, "Forecast Years", a.ForecastYears, 0)
	row++
	if a.ExitMultiple != nil {
		b.labeled(s, row, "Exit Multiple",
			fmt.Sprintf("%.1fx %s", a.ExitMultiple.Multiple, a.ExitMultiple.Metric), 0)
	}
}

func (b *workbookBuilder) writeIncomeProjections() {
	in, s := b.in, SheetIncomeProjection
	years := in.Base.Projections.Years
	b.sheetTitle(s, "Income Statement Projections", len(years))

	row := 3
	b.set(s, 1, row, "Line Item", b.headerStyle)
	for i, y := range years {
		b.set(s, 2+i, row, fmt.Sprintf("Year %d", y.Year), b.headerStyle)
	}
	row++

	lines := []struct {
		label string
		pick  func(p projection.YearProjection) float64
	}{
		{"Revenue", func(p projection.YearProjection) float64 { return p.Revenue }},
		{"Cost of Revenue", func(p projection.YearProjection) float64 { return p.CostOfRevenue }},
		{"Gross Profit", func(p projection.YearProjection) float64 { return p.GrossProfit }},
		{"Operating Expenses", func(p projection.YearProjection) float64 { return p.OperatingExpenses }},
		{"EBIT", func(p projection.YearProjection) float64 { return p.EBIT }},
		{"Depreciation", func(p projection.YearProjection) float64 { return p.Depreciation }},
		{"EBITDA", func(p projection.YearProjection) float64 { return p.EBITDA }},
		{"Interest Expense", func(p projection.YearProjection) float64 { return p.InterestExpense }},
		{"Income Before Tax", func(p projection.YearProjection) float64 { return p.IncomeBeforeTax }},
		{"Tax Expense", func(p projection.YearProjection) float64 { return p.TaxExpense }},
		{"Net Income", func(p projection.YearProjection) float64 { return p.NetIncome }},
	}
	for _, line := range lines {
		b.set(s, 1, row, line.label, b.labelStyle)
		for i, y := range years {
			b.set(s, 2+i, row, line.pick(y), b.numberStyle)
		}
		row++
	}
}

func (b *workbookBuilder) writeFCFF() {
	in, s := b.in, SheetFCFF
	years := in.Base.Projections.Years
	b.sheetTitle(s, "FCFF Calculation", len(years))

	row := 3
	b.set(s, 1, row, "", b.headerStyle)
	for i, y := range years {
		b.set(s, 2+i, row, fmt.Sprintf("Year %d", y.Year), b.headerStyle)
	}
	row++

	// NOPAT backs out of the stored series so the sheet always reconciles:
	// FCFF = NOPAT + D&A + CapEx - change in WC, CapEx already negative.
	nopat := func(p projection.YearProjection) float64 {
		return p.FCFF - p.Depreciation - p.CapitalExpenditures + p.ChangeInWC
	}
	lines := []struct {
		label string
		pick  func(p projection.YearProjection) float64
		style int
	}{
		{"EBIT", func(p projection.YearProjection) float64 { return p.EBIT }, b.numberStyle},
		{"Less: Tax on EBIT", func(p projection.YearProjection) float64 { return nopat(p) - p.EBIT }, b.numberStyle},
		{"NOPAT", nopat, b.numberStyle},
		{"Plus: Depreciation", func(p projection.YearProjection) float64 { return p.Depreciation }, b.numberStyle},
		{"Plus: Capital Expenditures", func(p projection.YearProjection) float64 { return p.CapitalExpenditures }, b.numberStyle},
		{"Less: Change in Working Capital", func(p projection.YearProjection) float64 { return p.ChangeInWC }, b.numberStyle},
		{"Free Cash Flow to Firm", func(p projection.YearProjection) float64 { return p.FCFF }, b.totalStyle},
	}
	for _, line := range lines {
		b.set(s, 1, row, line.label, b.labelStyle)
		for i, y := range years {
			b.set(s, 2+i, row, line.pick(y), line.style)
		}
		row++
	}
}

func (b *workbookBuilder) writeWACC() {
	in, s := b.in, SheetWACC
	w := in.Base.WACC
	b.sheetTitle(s, "WACC Calculation", 1)

	row := 3
	b.sectionHeader(s, row, "Cost of Equity (CAPM)", 1)
	row++
	b.labeled(s, row, "Risk-Free Rate", in.riskFree(), b.percentStyle)
	row++
	b.labeled(s, row, "Equity Risk Premium", in.riskPremium(), b.percentStyle)
	row++
	b.labeled(s, row, "Beta", w.BetaUsed, 0)
	row++
	b.labeled(s, row, "Cost of Equity", w.CostOfEquity, b.percentStyle)
	row++

	row++
	b.sectionHeader(s, row, "Cost of Debt", 1)
	row++
	b.labeled(s, row, "Pre-Tax Cost of Debt", w.CostOfDebt, b.percentStyle)
	row++
	b.labeled(s, row, "Tax Rate", scalarOr(in.Assumptions.TaxRate, 0.25), b.percentStyle)
	row++

	row++
	b.sectionHeader(s, row, "Capital Structure", 1)
	row++
	b.labeled(s, row, "Weight of Equity", w.WeightEquity, b.percentStyle)
	row++
	b.labeled(s, row, "Weight of Debt", w.WeightDebt, b.percentStyle)
	row++
	b.labeled(s, row, "Equity Basis", w.EquityBasis, 0)
	row++

	row++
	b.labeled(s, row, "WACC", w.WACC, b.percentStyle)
	row++
	b.warningRows(s, row+1, w.Warnings)
}

func (b *workbookBuilder) writeTerminalValue() {
	in, s := b.in, SheetTerminalValue
	tv := in.Base.Valuation.Terminal
	b.sheetTitle(s, "Terminal Value", 1)

	row := 3
	final, _ := in.Base.Projections.Final()
	b.sectionHeader(s, row, "Gordon Growth", 1)
	row++
	b.labeled(s, row, "Final Year FCFF", final.FCFF, b.numberStyle)
	row++
	b.labeled(s, row, "Terminal Growth Rate", tv.GrowthRate, b.percentStyle)
	row++
	b.labeled(s, row, "WACC", in.Base.Valuation.WACC, b.percentStyle)
	row++
	b.labeled(s, row, "Perpetuity Value", tv.Perpetuity, b.numberStyle)
	row++

	if tv.Exit != nil {
		row++
		b.sectionHeader(s, row, "Exit Multiple", 1)
		row++
		b.labeled(s, row, "Metric", tv.Metric, 0)
		row++
		b.labeled(s, row, "Multiple", tv.Multiple, 0)
		row++
		b.labeled(s, row, "Exit Value", *tv.Exit, b.numberStyle)
		row++
		b.labeled(s, row, "Perpetuity Weight", in.Cfg.DCF.PerpetuityWeight, b.percentStyle)
		row++
		b.labeled(s, row, "Exit Weight", in.Cfg.DCF.ExitWeight, b.percentStyle)
		row++
	}

	row++
	b.set(s, 1, row, "Blended Terminal Value", b.labelStyle)
	b.set(s, 2, row, tv.Blended, b.totalStyle)
}

func (b *workbookBuilder) writeDCFValuation() {
	in, s := b.in, SheetDCFValuation
	v := in.Base.Valuation
	years := in.Base.Projections.Years
	b.sheetTitle(s, "DCF Valuation", 2)

	row := 3
	b.set(s, 1, row, "Year", b.headerStyle)
	b.set(s, 2, row, "FCFF", b.headerStyle)
	b.set(s, 3, row, "Present Value", b.headerStyle)
	row++
	for i, y := range years {
		b.set(s, 1, row, fmt.Sprintf("Year %d", y.Year), b.labelStyle)
		b.set(s, 2, row, y.FCFF, b.numberStyle)
		if i < len(v.PVByYear) {
			b.set(s, 3, row, v.PVByYear[i], b.numberStyle)
		}
		row++
	}

	row++
	b.labeled(s, row, "PV of Forecast FCFF", v.PVFCFF, b.numberStyle)
	row++
	b.labeled(s, row, "PV of Terminal Value", v.PVTerminalValue, b.numberStyle)
	row++
	b.set(s, 1, row, "Enterprise Value", b.labelStyle)
	b.set(s, 2, row, v.EnterpriseValue, b.totalStyle)
	row++
	b.labeled(s, row, "Less: Net Debt", v.NetDebt, b.numberStyle)
	row++
	b.set(s, 1, row, "Equity Value", b.labelStyle)
	b.set(s, 2, row, v.EquityValue, b.totalStyle)
	row++
	b.labeled(s, row, "Shares Outstanding", v.SharesOutstanding, b.numberStyle)
	row++
	b.labeled(s, row, "Value per Share", v.ValuePerShare, b.currencyStyle)
	row++
	if in.Market != nil && in.Market.CurrentPrice != nil {
		px := *in.Market.CurrentPrice
		b.labeled(s, row, "Current Price", px, b.currencyStyle)
		row++
		b.labeled(s, row, "Upside", valuation.UpsidePercent(v.ValuePerShare, px)/100, b.percentStyle)
		row++
	}
	b.labeled(s, row, "Terminal Value Share of EV", v.TerminalValuePct, b.percentStyle)
	row++
	b.warningRows(s, row+1, v.Warnings)
}

func (b *workbookBuilder) writeSensitivity() {
	in, s := b.in, SheetSensitivity
	b.sheetTitle(s, "Sensitivity Analysis", 3)

	row := 3
	b.labeled(s, row, "Base Value per Share", in.Base.Valuation.ValuePerShare, b.currencyStyle)
	row += 2

	for _, table := range in.Sensitivity {
		b.sectionHeader(s, row, sensitivityLabel(table.Parameter), 3)
		row++
		b.set(s, 1, row, "Delta", b.labelStyle)
		b.set(s, 2, row, "Level", b.labelStyle)
		b.set(s, 3, row, "Value per Share", b.labelStyle)
		b.set(s, 4, row, "Upside", b.labelStyle)
		row++
		for _, p := range table.Points {
			b.set(s, 1, row, p.Delta, b.percentStyle)
			b.set(s, 2, row, p.Value, b.percentStyle)
			b.set(s, 3, row, p.ValuePerShare, b.currencyStyle)
			b.set(s, 4, row, p.UpsidePct/100, b.percentStyle)
			row++
		}
		row++
	}
}

func (b *workbookBuilder) writeScenarios() {
	in, s := b.in, SheetScenarios
	b.sheetTitle(s, "Scenario Analysis", len(valuation.ScenarioOrder))

	row := 3
	b.set(s, 1, row, "Metric", b.headerStyle)
	for i, name := range valuation.ScenarioOrder {
		b.set(s, 2+i, row, scenarioLabel(name), b.headerStyle)
	}
	row++

	each := func(label string, style int, pick func(sc valuation.Scenario) (float64, bool)) {
		b.set(s, 1, row, label, b.labelStyle)
		for i, name := range valuation.ScenarioOrder {
			sc, ok := in.Scenarios[name]
			if !ok {
				continue
			}
			if v, set := pick(sc); set {
				b.set(s, 2+i, row, v, style)
			}
		}
		row++
	}

	each("Revenue Growth (Year 1)", b.inputPctStyle, func(sc valuation.Scenario) (float64, bool) {
		v, err := sc.Assumptions.RevenueGrowth.Resolve(1)
		return v, err == nil
	})
	each("EBIT Margin (Year 1)", b.inputPctStyle, func(sc valuation.Scenario) (float64, bool) {
		v, err := sc.Assumptions.EBITMargin.Resolve(1)
		return v, err == nil
	})
	each("WACC", b.percentStyle, func(sc valuation.Scenario) (float64, bool) { return sc.WACC, true })
	each("Value per Share", b.currencyStyle, func(sc valuation.Scenario) (float64, bool) { return sc.ValuePerShare, true })
	each("Equity Value", b.numberStyle, func(sc valuation.Scenario) (float64, bool) { return sc.EquityValue, true })
	each("Upside", b.percentStyle, func(sc valuation.Scenario) (float64, bool) { return sc.UpsidePct / 100, true })

	b.set(s, 1, row, "Recommendation", b.labelStyle)
	for i, name := range valuation.ScenarioOrder {
		if sc, ok := in.Scenarios[name]; ok {
			b.set(s, 2+i, row, sc.Recommendation, 0)
		}
	}
}

func (b *workbookBuilder) writeRelative() {
	in, s := b.in, SheetRelative
	b.sheetTitle(s, "Relative Valuation", 5)

	row := 3
	b.sectionHeader(s, row, "Peer Multiples", 5)
	row++
	headers := []string{"Ticker", "Name", "EV/EBITDA", "P/E", "P/B", "Status"}
	for i, h := range headers {
		b.set(s, 1+i, row, h, b.labelStyle)
	}
	row++
	for _, p := range in.Peers {
		b.set(s, 1, row, p.Ticker, 0)
		b.set(s, 2, row, p.Name, 0)
		if p.EVEBITDA != nil {
			b.set(s, 3, row, *p.EVEBITDA, 0)
		}
		if p.PERatio != nil {
			b.set(s, 4, row, *p.PERatio, 0)
		}
		if p.PBRatio != nil {
			b.set(s, 5, row, *p.PBRatio, 0)
		}
		status := "ok"
		if p.Err != "" {
			status = p.Err
		}
		b.set(s, 6, row, status, 0)
		row++
	}

	row++
	rel := in.Relative
	b.labeled(s, row, "Median EV/EBITDA", rel.MedianEVEBITDA, 0)
	row++
	b.labeled(s, row, "Median P/E", rel.MedianPE, 0)
	row++
	if rel.EVEBITDAValuePerShare != nil {
		b.labeled(s, row, "Implied Value per Share (EV/EBITDA)", *rel.EVEBITDAValuePerShare, b.currencyStyle)
		row++
	}
	if rel.PEValuePerShare != nil {
		b.labeled(s, row, "Implied Value per Share (P/E)", *rel.PEValuePerShare, b.currencyStyle)
		row++
	}
	b.labeled(s, row, "DCF Value per Share", in.Base.Valuation.ValuePerShare, b.currencyStyle)
}

func (b *workbookBuilder) writeAudit() {
	in, s := b.in, SheetAudit
	b.sheetTitle(s, "Audit Report", 3)
	if b.err == nil {
		b.err = b.f.SetColWidth(s, "D", "D", 72)
	}

	row := 3
	if in.Audit == nil {
		b.set(s, 1, row, "Audit not run", b.labelStyle)
		return
	}

	status := "PASSED"
	if !in.Audit.Passed {
		status = "FAILED"
	}
	b.labeled(s, row, "Status", status, b.labelStyle)
	row++
	b.labeled(s, row, "Errors", in.Audit.ErrorCount, 0)
	row++
	b.labeled(s, row, "Warnings", in.Audit.WarningCount, 0)
	row += 2

	headers := []string{"Severity", "Category", "Check", "Message"}
	for i, h := range headers {
		b.set(s, 1+i, row, h, b.headerStyle)
	}
	row++
	for _, f := range in.Audit.Findings {
		b.set(s, 1, row, f.Severity, b.labelStyle)
		b.set(s, 2, row, f.Category, 0)
		b.set(s, 3, row, f.Check, 0)
		b.set(s, 4, row, f.Message, b.textStyle)
		row++
	}
}

// warningRows writes one warning per row, returns the next free row.
func (b *workbookBuilder) warningRows(sheet string, row int, warnings []string) int {
	for _, w := range warnings {
		b.set(sheet, 1, row, "Warning: "+w, b.textStyle)
		row++
	}
	return row
}

// ==================== Labels ====================

func sensitivityLabel(param string) string {
	switch param {
	case valuation.ParamWACC:
		return "WACC"
	case valuation.ParamTerminalGrowth:
		return "Terminal Growth"
	case valuation.ParamRevenueGrowth:
		return "Revenue Growth"
	case valuation.ParamEBITMargin:
		return "EBIT Margin"
	}
	return param
}

func scenarioLabel(name string) string {
	switch name {
	case valuation.ScenarioBase:
		return "Base"
	case valuation.ScenarioBull:
		return "Bull"
	case valuation.ScenarioBear:
		return "Bear"
	}
	return name
}

func maxPeriods(s *models.Statements) int {
	n := s.Income.NumPeriods()
	if m := s.Balance.NumPeriods(); m > n {
		n = m
	}
	if m := s.CashFlow.NumPeriods(); m > n {
		n = m
	}
	return n
}
