// Package projection builds the forward statement projections and the
// unlevered free cash flow series the valuation discounts.
package projection

// YearProjection carries every projected line for one forecast year.
// Sign conventions follow the statements: CapitalExpenditures is negative,
// so Free Cash Flow and FCFF add it rather than subtract.
type YearProjection struct {
	Year                int     `json:"year"`
	Revenue             float64 `json:"revenue"`
	CostOfRevenue       float64 `json:"cost_of_revenue"`
	GrossProfit         float64 `json:"gross_profit"`
	OperatingExpenses   float64 `json:"operating_expenses"`
	EBIT                float64 `json:"ebit"`
	Depreciation        float64 `json:"depreciation"`
	EBITDA              float64 `json:"ebitda"`
	InterestExpense     float64 `json:"interest_expense"`
	IncomeBeforeTax     float64 `json:"income_before_tax"`
	TaxExpense          float64 `json:"tax_expense"`
	NetIncome           float64 `json:"net_income"`
	WorkingCapital      float64 `json:"working_capital"`
	ChangeInWC          float64 `json:"change_in_working_capital"`
	OperatingCashFlow   float64 `json:"operating_cash_flow"`
	CapitalExpenditures float64 `json:"capital_expenditures"`
	FreeCashFlow        float64 `json:"free_cash_flow"`
	FCFF                float64 `json:"fcff"`
}

// ProjectionSet is the complete forecast for one assumption set. It is
// rebuilt wholesale on every run; nothing mutates it in place.
type ProjectionSet struct {
	BaseRevenue float64          `json:"base_revenue"`
	Years       []YearProjection `json:"years"`
}

// FCFF returns the free cash flow to firm series in forecast order.
func (p *ProjectionSet) FCFF() []float64 {
	out := make([]float64, len(p.Years))
	for i, y := range p.Years {
		out[i] = y.FCFF
	}
	return out
}

// Final returns the last forecast year.
func (p *ProjectionSet) Final() (YearProjection, bool) {
	if p == nil || len(p.Years) == 0 {
		return YearProjection{}, false
	}
	return p.Years[len(p.Years)-1], true
}
