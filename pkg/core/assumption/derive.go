package assumption

import (
	"math"

	"dcf_engine/pkg/core/ratios"
)

// Defaults and clamps applied when seeding assumptions from history.
const (
	MinDerivedGrowth       = 0.02
	MaxDerivedGrowth       = 0.10
	DefaultGrowth          = 0.05
	DefaultGrossMargin     = 0.40
	DefaultEBITMargin      = 0.15
	DefaultDepreciationPct = 0.03
)

// Derive seeds a base-case assumption set from the historical ratio set.
// Revenue growth is the clamped average of observed year-over-year growth,
// margins carry the latest observation forward, and the percentage drivers
// come from the ratio reducers with their fixed fallbacks.
func Derive(rs *ratios.Set, forecastYears int, terminalGrowth float64) DCFAssumptions {
	growth := DefaultGrowth
	if avg, ok := rs.AverageRevenueGrowth(); ok {
		growth = clamp(avg, MinDerivedGrowth, MaxDerivedGrowth)
	}
	perYear := make([]float64, forecastYears)
	for i := range perYear {
		perYear[i] = growth
	}

	return DCFAssumptions{
		RevenueGrowth:     NewPerYear(perYear),
		GrossMargin:       NewScalar(latestOr(rs.Margin(ratios.GrossMargin), DefaultGrossMargin)),
		EBITMargin:        NewScalar(latestOr(rs.Margin(ratios.EBITMargin), DefaultEBITMargin)),
		DepreciationPct:   NewScalar(DefaultDepreciationPct),
		TaxRate:           NewScalar(rs.TaxRate()),
		WorkingCapitalPct: NewScalar(rs.WorkingCapitalPct()),
		CapexPct:          NewScalar(rs.CapexPct()),
		TerminalGrowth:    terminalGrowth,
		ForecastYears:     forecastYears,
	}
}

func latestOr(m ratios.MarginSummary, fallback float64) float64 {
	if math.IsNaN(m.Latest) || math.IsInf(m.Latest, 0) {
		return fallback
	}
	return m.Latest
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
