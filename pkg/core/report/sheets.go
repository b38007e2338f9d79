// Package report renders the outputs of a valuation run: the Excel model
// workbook, the markdown summary with its HTML rendering, and an optional
// model-written narrative.
package report

// Workbook sheet names, in tab order.
const (
	SheetExecutiveSummary = "Executive Summary"
	SheetHistorical       = "Historical Financials"
	SheetAssumptions      = "DCF Assumptions"
	SheetIncomeProjection = "Income Statement Projections"
	SheetFCFF             = "FCFF Calculation"
	SheetWACC             = "WACC Calculation"
	SheetTerminalValue    = "Terminal Value"
	SheetDCFValuation     = "DCF Valuation"
	SheetSensitivity      = "Sensitivity Analysis"
	SheetScenarios        = "Scenario Analysis"
	SheetRelative         = "Relative Valuation"
	SheetAudit            = "Audit Report"
)

// SheetNames lists every sheet a complete workbook carries, in order.
// The audit's workbook battery verifies the saved file against this list.
var SheetNames = []string{
	SheetExecutiveSummary,
	SheetHistorical,
	SheetAssumptions,
	SheetIncomeProjection,
	SheetFCFF,
	SheetWACC,
	SheetTerminalValue,
	SheetDCFValuation,
	SheetSensitivity,
	SheetScenarios,
	SheetRelative,
	SheetAudit,
}
