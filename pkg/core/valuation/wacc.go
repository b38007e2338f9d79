// Package valuation computes WACC, terminal value and the discounted cash
// flow bridge from enterprise value to value per share, plus the
// sensitivity, scenario and peer-multiple layers on top.
package valuation

import (
	"fmt"
	"math"
)

// Capital structure fallbacks when neither market cap nor book equity is
// usable.
const (
	fallbackEquityBase   = 1000.0
	fallbackEquityWeight = 0.70
	fallbackDebtWeight   = 0.30
	defaultCreditSpread  = 0.02
	defaultBeta          = 1.0
)

// Equity bases reported in WACCResult.
const (
	EquityBasisMarketCap  = "market_cap"
	EquityBasisBookEquity = "book_equity"
	EquityBasisFallback   = "fallback"
)

type WACCInput struct {
	Beta              float64 // NaN or zero falls back to 1.0
	RiskFreeRate      float64
	EquityRiskPremium float64
	CostOfDebt        float64 // NaN derives risk-free + credit spread
	TaxRate           float64
	MarketCap         float64 // NaN or zero falls back to book equity
	TotalDebt         float64 // NaN treated as zero
	BookEquity        float64 // NaN falls back to the fixed equity base
	BandMin           float64 // reasonableness band, warning only
	BandMax           float64
}

type WACCResult struct {
	WACC         float64  `json:"wacc"`
	CostOfEquity float64  `json:"cost_of_equity"`
	CostOfDebt   float64  `json:"cost_of_debt"`
	WeightEquity float64  `json:"weight_equity"`
	WeightDebt   float64  `json:"weight_debt"`
	BetaUsed     float64  `json:"beta_used"`
	EquityBasis  string   `json:"equity_basis"`
	Warnings     []string `json:"warnings,omitempty"`
}

// CalculateWACC blends CAPM cost of equity with after-tax cost of debt.
// Every missing input degrades to a fallback rather than failing; the only
// signal is the warning list.
func CalculateWACC(in WACCInput) WACCResult {
	out := WACCResult{}

	// 1. Cost of Equity (CAPM): ke = rf + beta * ERP
	out.BetaUsed = in.Beta
	if math.IsNaN(in.Beta) || in.Beta == 0 {
		out.BetaUsed = defaultBeta
		out.Warnings = append(out.Warnings, "beta unavailable, using 1.0")
	}
	out.CostOfEquity = in.RiskFreeRate + out.BetaUsed*in.EquityRiskPremium

	// 2. Cost of Debt: explicit override, else risk-free + 200bps spread
	out.CostOfDebt = in.CostOfDebt
	if math.IsNaN(in.CostOfDebt) {
		out.CostOfDebt = in.RiskFreeRate + defaultCreditSpread
	}

	// 3. Capital structure weights
	debt := in.TotalDebt
	if math.IsNaN(debt) {
		debt = 0
	}
	var equity float64
	switch {
	case !math.IsNaN(in.MarketCap) && in.MarketCap > 0:
		equity = in.MarketCap
		out.EquityBasis = EquityBasisMarketCap
	case !math.IsNaN(in.BookEquity):
		equity = in.BookEquity
		out.EquityBasis = EquityBasisBookEquity
	default:
		equity = fallbackEquityBase
		out.EquityBasis = EquityBasisFallback
	}

	total := equity + debt
	if total == 0 {
		out.WeightEquity = fallbackEquityWeight
		out.WeightDebt = fallbackDebtWeight
	} else {
		out.WeightEquity = equity / total
		out.WeightDebt = debt / total
	}

	// 4. WACC = we*ke + wd*kd*(1-t)
	out.WACC = out.WeightEquity*out.CostOfEquity + out.WeightDebt*out.CostOfDebt*(1-in.TaxRate)

	// 5. Reasonableness band, warning only. The audit stage escalates this
	// to an error.
	if in.BandMax > in.BandMin {
		if out.WACC < in.BandMin {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"WACC (%.2f%%) is below minimum reasonable value (%.2f%%)", out.WACC*100, in.BandMin*100))
		} else if out.WACC > in.BandMax {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"WACC (%.2f%%) is above maximum reasonable value (%.2f%%)", out.WACC*100, in.BandMax*100))
		}
	}
	return out
}
