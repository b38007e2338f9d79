package valuation

import (
	"errors"
	"fmt"
	"math"

	"dcf_engine/pkg/core/projection"
	"dcf_engine/pkg/models"
)

// ErrSharesUnavailable means neither reported shares nor the market-cap /
// price fallback can produce a share count. Per-share value cannot be
// synthesized from nothing, so the run aborts.
var ErrSharesUnavailable = errors.New("shares outstanding not available")

type ValuationInput struct {
	Projections *projection.ProjectionSet
	WACC        float64
	Terminal    TerminalValueResult
	Balance     *models.Table // latest balance sheet for the net debt bridge
	Market      *models.MarketData
	MaxTVShare  float64 // warning ceiling for PV(TV) / EV
}

type ValuationResult struct {
	WACC              float64             `json:"wacc"`
	Terminal          TerminalValueResult `json:"terminal_value"`
	PVByYear          []float64           `json:"pv_by_year"`
	PVFCFF            float64             `json:"pv_fcff"`
	PVTerminalValue   float64             `json:"pv_terminal_value"`
	EnterpriseValue   float64             `json:"enterprise_value"`
	NetDebt           float64             `json:"net_debt"`
	EquityValue       float64             `json:"equity_value"`
	SharesOutstanding float64             `json:"shares_outstanding"`
	ValuePerShare     float64             `json:"value_per_share"`
	TerminalValuePct  float64             `json:"terminal_value_pct"`
	Warnings          []string            `json:"warnings,omitempty"`
}

// CalculateDCF discounts the projected FCFF series and terminal value to
// present value and bridges enterprise value down to value per share.
// Discounting uses the mid-year convention: year t's cash flow arrives on
// average at t - 0.5, and the terminal value sits at the end of the final
// forecast year.
func CalculateDCF(in ValuationInput) (ValuationResult, error) {
	if in.Projections == nil || len(in.Projections.Years) == 0 {
		return ValuationResult{}, fmt.Errorf("no projected years to discount")
	}

	out := ValuationResult{WACC: in.WACC, Terminal: in.Terminal}

	// 1. PV of explicit forecast
	for i, y := range in.Projections.Years {
		t := float64(i + 1)
		pv := y.FCFF / math.Pow(1+in.WACC, t-0.5)
		out.PVByYear = append(out.PVByYear, pv)
		out.PVFCFF += pv
	}

	// 2. PV of terminal value
	n := float64(len(in.Projections.Years))
	out.PVTerminalValue = in.Terminal.Blended / math.Pow(1+in.WACC, n-0.5)

	// 3. Enterprise value and the equity bridge. Non-operating assets and
	// minority interest are unmodeled and enter as zero.
	out.EnterpriseValue = out.PVFCFF + out.PVTerminalValue
	out.NetDebt = resolveNetDebt(in.Balance)
	out.EquityValue = out.EnterpriseValue - out.NetDebt

	if out.EnterpriseValue > 0 {
		out.TerminalValuePct = out.PVTerminalValue / out.EnterpriseValue
		if in.MaxTVShare > 0 && out.TerminalValuePct > in.MaxTVShare {
			out.Warnings = append(out.Warnings, fmt.Sprintf(
				"terminal value represents %.1f%% of enterprise value", out.TerminalValuePct*100))
		}
	}

	// 4. Per-share value
	shares, err := ResolveShares(in.Market)
	if err != nil {
		return ValuationResult{}, err
	}
	out.SharesOutstanding = shares
	out.ValuePerShare = out.EquityValue / shares
	return out, nil
}

// resolveNetDebt prefers the reported Net Debt line, then rebuilds it from
// Total Debt minus Cash, then gives up at zero.
func resolveNetDebt(balance *models.Table) float64 {
	if nd := balance.Latest(models.ColNetDebt); !math.IsNaN(nd) {
		return nd
	}
	if td := balance.Latest(models.ColTotalDebt); !math.IsNaN(td) {
		cash := balance.Latest(models.ColCash)
		if math.IsNaN(cash) {
			cash = 0
		}
		return td - cash
	}
	return 0
}

// ResolveShares returns the share count used for per-share values:
// reported shares outstanding, else market cap over current price.
func ResolveShares(market *models.MarketData) (float64, error) {
	if market != nil {
		if s := models.Val(market.SharesOutstanding); !math.IsNaN(s) && s > 0 {
			return s, nil
		}
		mc := models.Val(market.MarketCap)
		px := models.Val(market.CurrentPrice)
		if !math.IsNaN(mc) && !math.IsNaN(px) && px > 0 {
			return mc / px, nil
		}
	}
	return 0, fmt.Errorf("cannot calculate value per share: %w", ErrSharesUnavailable)
}
