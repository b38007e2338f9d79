package valuation

import (
	"fmt"
	"math"

	"dcf_engine/pkg/core/assumption"
	"dcf_engine/pkg/core/config"
	"dcf_engine/pkg/core/projection"
	"dcf_engine/pkg/models"
)

const waccFallbackTaxRate = 0.25

// RunInput carries everything one valuation run reads. Runs never share
// state: sensitivity and scenario points each build their own input with a
// copied assumption set.
type RunInput struct {
	Statements  *models.Statements
	Assumptions assumption.DCFAssumptions
	Market      *models.MarketData
	Macro       *models.MacroData
	Config      *config.Config
	// WACCOverride replaces the computed discount rate, for WACC
	// sensitivity points.
	WACCOverride *float64
}

// RunOutput is one complete, independent valuation result.
type RunOutput struct {
	Projections *projection.ProjectionSet `json:"projections"`
	WACC        WACCResult                `json:"wacc"`
	Valuation   ValuationResult           `json:"valuation"`
}

// Run executes projection, WACC, terminal value and the DCF bridge as a
// pure function of its input.
func Run(in RunInput) (*RunOutput, error) {
	if in.Config == nil {
		return nil, fmt.Errorf("run config is required")
	}
	market := in.Market
	if market == nil {
		market = &models.MarketData{}
	}
	macro := in.Macro
	if macro == nil {
		macro = &models.MacroData{}
	}

	// 1. Projections
	proj, err := projection.Project(in.Statements, in.Assumptions)
	if err != nil {
		return nil, fmt.Errorf("projection failed: %w", err)
	}

	// 2. WACC
	rf := models.Val(macro.RiskFreeRate)
	if math.IsNaN(rf) {
		rf = in.Config.DCF.RiskFreeRate
	}
	erp := models.Val(macro.EquityRiskPremium)
	if math.IsNaN(erp) {
		erp = in.Config.DCF.EquityRiskPremium
	}
	var balance *models.Table
	if in.Statements != nil {
		balance = in.Statements.Balance
	}
	wacc := CalculateWACC(WACCInput{
		Beta:              models.Val(market.Beta),
		RiskFreeRate:      rf,
		EquityRiskPremium: erp,
		CostOfDebt:        models.Val(market.CostOfDebt),
		TaxRate:           scalarTaxRate(in.Assumptions),
		MarketCap:         models.Val(market.MarketCap),
		TotalDebt:         balance.Latest(models.ColTotalDebt),
		BookEquity:        balance.Latest(models.ColTotalEquity),
		BandMin:           in.Config.Thresholds.WACCMin,
		BandMax:           in.Config.Thresholds.WACCMax,
	})
	if in.WACCOverride != nil {
		wacc.WACC = *in.WACCOverride
	}

	// 3. Terminal value off the final forecast year
	final, _ := proj.Final()
	terminal, err := CalculateTerminalValue(TerminalValueInput{
		FinalFCFF:        final.FCFF,
		WACC:             wacc.WACC,
		Growth:           in.Assumptions.TerminalGrowth,
		PerpetuityWeight: in.Config.DCF.PerpetuityWeight,
		ExitWeight:       in.Config.DCF.ExitWeight,
		Exit:             in.Assumptions.ExitMultiple,
		FinalEBITDA:      final.EBITDA,
		FinalEBIT:        final.EBIT,
		FinalRevenue:     final.Revenue,
	})
	if err != nil {
		return nil, fmt.Errorf("terminal value failed: %w", err)
	}

	// 4. Discount and bridge to per-share value
	valuation, err := CalculateDCF(ValuationInput{
		Projections: proj,
		WACC:        wacc.WACC,
		Terminal:    terminal,
		Balance:     balance,
		Market:      market,
		MaxTVShare:  in.Config.Thresholds.MaxTVShare,
	})
	if err != nil {
		return nil, fmt.Errorf("valuation failed: %w", err)
	}

	return &RunOutput{Projections: proj, WACC: wacc, Valuation: valuation}, nil
}

// scalarTaxRate flattens the tax driver for the after-tax cost of debt.
func scalarTaxRate(a assumption.DCFAssumptions) float64 {
	if v, err := a.TaxRate.Resolve(1); err == nil {
		return v
	}
	return waccFallbackTaxRate
}
