package assumption

// Exit multiple metrics recognized by the terminal value calculation.
const (
	MetricEBITDA  = "EBITDA"
	MetricEBIT    = "EBIT"
	MetricRevenue = "Revenue"
)

// ExitMultiple selects the exit-multiple leg of the terminal value.
type ExitMultiple struct {
	Multiple float64 `json:"multiple"`
	Metric   string  `json:"metric"`
}

// DCFAssumptions is the full assumption set for one valuation run. Margin
// and percentage drivers resolve per forecast year; InterestExpense is an
// absolute amount and defaults to 1% of revenue when unset.
type DCFAssumptions struct {
	RevenueGrowth     Driver        `json:"revenue_growth"`
	GrossMargin       Driver        `json:"gross_margin"`
	EBITMargin        Driver        `json:"ebit_margin"`
	DepreciationPct   Driver        `json:"depreciation_pct"`
	TaxRate           Driver        `json:"tax_rate"`
	WorkingCapitalPct Driver        `json:"working_capital_pct"`
	CapexPct          Driver        `json:"capex_pct"`
	InterestExpense   Driver        `json:"interest_expense"`
	TerminalGrowth    float64       `json:"terminal_growth_rate"`
	ForecastYears     int           `json:"forecast_years"`
	ExitMultiple      *ExitMultiple `json:"exit_multiple,omitempty"`
}

// Copy returns a deep copy. Sensitivity and scenario runs mutate copies so
// no two iterations share driver state.
func (a DCFAssumptions) Copy() DCFAssumptions {
	out := a
	out.RevenueGrowth = a.RevenueGrowth.clone()
	out.GrossMargin = a.GrossMargin.clone()
	out.EBITMargin = a.EBITMargin.clone()
	out.DepreciationPct = a.DepreciationPct.clone()
	out.TaxRate = a.TaxRate.clone()
	out.WorkingCapitalPct = a.WorkingCapitalPct.clone()
	out.CapexPct = a.CapexPct.clone()
	out.InterestExpense = a.InterestExpense.clone()
	if a.ExitMultiple != nil {
		em := *a.ExitMultiple
		out.ExitMultiple = &em
	}
	return out
}
