package valuation

import (
	"fmt"
)

// ==================== Sensitivity Analysis ====================

// Parameter names for sensitivity tables.
const (
	ParamWACC           = "wacc"
	ParamTerminalGrowth = "terminal_growth"
	ParamRevenueGrowth  = "revenue_growth"
	ParamEBITMargin     = "ebit_margin"
)

// Point is one perturbed valuation run.
type Point struct {
	Delta         float64 `json:"delta"`
	Value         float64 `json:"value"`
	ValuePerShare float64 `json:"value_per_share"`
	EquityValue   float64 `json:"equity_value"`
	UpsidePct     float64 `json:"upside_pct"`
}

// TableResult holds the points for one parameter, ordered as configured.
type TableResult struct {
	Parameter string  `json:"parameter"`
	Points    []Point `json:"points"`
}

// RunSensitivity perturbs one driver at a time around the base case and
// re-runs the full valuation for every point. The base input is never
// mutated: every point gets a deep copy of the assumption set.
func RunSensitivity(base RunInput, baseOut *RunOutput) ([]TableResult, error) {
	if base.Config == nil {
		return nil, fmt.Errorf("run config is required")
	}
	price := CurrentPriceOr1(base.Market)
	deltas := base.Config.Sensitivity

	tables := make([]TableResult, 0, 4)

	// 1. WACC: shift the discount rate itself via the override hook so the
	// perturbed rate flows into both discounting and the terminal value.
	waccTable := TableResult{Parameter: ParamWACC}
	for _, d := range deltas.WACCDeltas {
		rate := baseOut.WACC.WACC + d
		in := base
		in.Assumptions = base.Assumptions.Copy()
		in.WACCOverride = &rate
		out, err := Run(in)
		if err != nil {
			return nil, fmt.Errorf("wacc sensitivity at %+.2f%%: %w", d*100, err)
		}
		waccTable.Points = append(waccTable.Points, newPoint(d, rate, out, price))
	}
	tables = append(tables, waccTable)

	// 2. Terminal growth
	tgTable := TableResult{Parameter: ParamTerminalGrowth}
	for _, d := range deltas.TerminalGrowthDeltas {
		in := base
		in.Assumptions = base.Assumptions.Copy()
		in.Assumptions.TerminalGrowth += d
		out, err := Run(in)
		if err != nil {
			return nil, fmt.Errorf("terminal growth sensitivity at %+.2f%%: %w", d*100, err)
		}
		tgTable.Points = append(tgTable.Points, newPoint(d, in.Assumptions.TerminalGrowth, out, price))
	}
	tables = append(tables, tgTable)

	// 3. Revenue growth: additive shift on every forecast year.
	revTable := TableResult{Parameter: ParamRevenueGrowth}
	for _, d := range deltas.RevenueGrowthDeltas {
		in := base
		in.Assumptions = base.Assumptions.Copy()
		in.Assumptions.RevenueGrowth = in.Assumptions.RevenueGrowth.Shift(d)
		out, err := Run(in)
		if err != nil {
			return nil, fmt.Errorf("revenue growth sensitivity at %+.2f%%: %w", d*100, err)
		}
		year1, _ := in.Assumptions.RevenueGrowth.Resolve(1)
		revTable.Points = append(revTable.Points, newPoint(d, year1, out, price))
	}
	tables = append(tables, revTable)

	// 4. EBIT margin
	marginTable := TableResult{Parameter: ParamEBITMargin}
	for _, d := range deltas.EBITMarginDeltas {
		in := base
		in.Assumptions = base.Assumptions.Copy()
		in.Assumptions.EBITMargin = in.Assumptions.EBITMargin.Shift(d)
		out, err := Run(in)
		if err != nil {
			return nil, fmt.Errorf("ebit margin sensitivity at %+.2f%%: %w", d*100, err)
		}
		year1, _ := in.Assumptions.EBITMargin.Resolve(1)
		marginTable.Points = append(marginTable.Points, newPoint(d, year1, out, price))
	}
	tables = append(tables, marginTable)

	return tables, nil
}

func newPoint(delta, value float64, out *RunOutput, price float64) Point {
	return Point{
		Delta:         delta,
		Value:         value,
		ValuePerShare: out.Valuation.ValuePerShare,
		EquityValue:   out.Valuation.EquityValue,
		UpsidePct:     UpsidePercent(out.Valuation.ValuePerShare, price),
	}
}
