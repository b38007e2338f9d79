package projection

import (
	"errors"
	"fmt"
	"math"

	"dcf_engine/pkg/core/assumption"
	"dcf_engine/pkg/models"
)

// ErrNoSeedRevenue means the latest historical income statement carries no
// revenue to grow from. Projections cannot start and the run aborts.
var ErrNoSeedRevenue = errors.New("no historical revenue available to seed projections")

// Fallbacks for unset drivers. These mirror the assumption derivation
// defaults so a partially specified set still projects.
const (
	fallbackGrowth       = 0.05
	fallbackGrossMargin  = 0.40
	fallbackEBITMargin   = 0.15
	fallbackDepreciation = 0.03
	fallbackTaxRate      = 0.25
	fallbackWCPct        = 0.10
	fallbackCapexPct     = 0.05
	interestRevenueShare = 0.01
)

// Project rolls the income statement, working capital and cash flow forward
// year by year. Year t's revenue compounds on year t-1, so the loop is
// strictly sequential.
func Project(stmts *models.Statements, a assumption.DCFAssumptions) (*ProjectionSet, error) {
	if a.ForecastYears < 1 {
		return nil, fmt.Errorf("forecast years must be positive, got %d", a.ForecastYears)
	}
	seed := math.NaN()
	if stmts != nil {
		seed = stmts.Income.Latest(models.ColRevenue)
	}
	if math.IsNaN(seed) || math.IsInf(seed, 0) {
		return nil, ErrNoSeedRevenue
	}

	out := &ProjectionSet{
		BaseRevenue: seed,
		Years:       make([]YearProjection, 0, a.ForecastYears),
	}
	prevRevenue := seed
	prevWC := 0.0

	for year := 1; year <= a.ForecastYears; year++ {
		growth, err := resolveOr(a.RevenueGrowth, year, fallbackGrowth)
		if err != nil {
			return nil, fmt.Errorf("year %d revenue growth: %w", year, err)
		}
		grossMargin, err := resolveOr(a.GrossMargin, year, fallbackGrossMargin)
		if err != nil {
			return nil, fmt.Errorf("year %d gross margin: %w", year, err)
		}
		ebitMargin, err := resolveOr(a.EBITMargin, year, fallbackEBITMargin)
		if err != nil {
			return nil, fmt.Errorf("year %d ebit margin: %w", year, err)
		}
		depPct, err := resolveOr(a.DepreciationPct, year, fallbackDepreciation)
		if err != nil {
			return nil, fmt.Errorf("year %d depreciation pct: %w", year, err)
		}
		taxRate, err := resolveOr(a.TaxRate, year, fallbackTaxRate)
		if err != nil {
			return nil, fmt.Errorf("year %d tax rate: %w", year, err)
		}
		wcPct, err := resolveOr(a.WorkingCapitalPct, year, fallbackWCPct)
		if err != nil {
			return nil, fmt.Errorf("year %d working capital pct: %w", year, err)
		}
		capexPct, err := resolveOr(a.CapexPct, year, fallbackCapexPct)
		if err != nil {
			return nil, fmt.Errorf("year %d capex pct: %w", year, err)
		}

		p := YearProjection{Year: year}
		p.Revenue = prevRevenue * (1 + growth)

		// Income statement. Operating expenses are the plug between gross
		// profit and EBIT and may go negative; that is accepted as-is.
		p.GrossProfit = p.Revenue * grossMargin
		p.CostOfRevenue = p.Revenue - p.GrossProfit
		p.EBIT = p.Revenue * ebitMargin
		p.OperatingExpenses = p.GrossProfit - p.EBIT
		p.Depreciation = p.Revenue * depPct
		p.EBITDA = p.EBIT + p.Depreciation

		// InterestExpense is an absolute amount when supplied, otherwise a
		// fixed share of revenue.
		if a.InterestExpense.IsSet() {
			p.InterestExpense, err = a.InterestExpense.Resolve(year)
			if err != nil {
				return nil, fmt.Errorf("year %d interest expense: %w", year, err)
			}
		} else {
			p.InterestExpense = p.Revenue * interestRevenueShare
		}
		p.IncomeBeforeTax = p.EBIT - p.InterestExpense
		p.TaxExpense = p.IncomeBeforeTax * taxRate
		p.NetIncome = p.IncomeBeforeTax - p.TaxExpense

		// Working capital builds off revenue; the first forecast year has
		// no prior projected balance, so its change is zero.
		p.WorkingCapital = p.Revenue * wcPct
		if year > 1 {
			p.ChangeInWC = p.WorkingCapital - prevWC
		}

		// Cash flow. CapEx is stored negative.
		p.OperatingCashFlow = p.NetIncome + p.Depreciation - p.ChangeInWC
		p.CapitalExpenditures = -p.Revenue * capexPct
		p.FreeCashFlow = p.OperatingCashFlow + p.CapitalExpenditures

		// FCFF = EBIT(1-t) + D&A - CapEx - dWC with CapEx already negative.
		p.FCFF = p.EBIT*(1-taxRate) + p.Depreciation + p.CapitalExpenditures - p.ChangeInWC

		out.Years = append(out.Years, p)
		prevRevenue = p.Revenue
		prevWC = p.WorkingCapital
	}
	return out, nil
}

func resolveOr(d assumption.Driver, year int, fallback float64) (float64, error) {
	v, err := d.Resolve(year)
	if err == nil {
		return v, nil
	}
	if errors.Is(err, assumption.ErrUnset) {
		return fallback, nil
	}
	return 0, err
}
