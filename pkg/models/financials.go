package models

import "math"

// Canonical line item names. Ingestion maps vendor labels onto these once;
// every downstream formula addresses columns through them.
const (
	ColRevenue            = "Revenue"
	ColCostOfRevenue      = "Cost of Revenue"
	ColGrossProfit        = "Gross Profit"
	ColOperatingIncome    = "Operating Income"
	ColOperatingExpenses  = "Operating Expenses"
	ColEBIT               = "EBIT"
	ColEBITDA             = "EBITDA"
	ColDepreciation       = "Depreciation"
	ColInterestExpense    = "Interest Expense"
	ColIncomeBeforeTax    = "Income Before Tax"
	ColIncomeTaxExpense   = "Income Tax Expense"
	ColNetIncome          = "Net Income"
	ColTotalAssets        = "Total Assets"
	ColCurrentAssets      = "Current Assets"
	ColCurrentLiabilities = "Current Liabilities"
	ColTotalLiabilities   = "Total Liabilities"
	ColTotalEquity        = "Total Equity"
	ColTotalDebt          = "Total Debt"
	ColCash               = "Cash and Cash Equivalents"
	ColInventory          = "Inventory"
	ColNetReceivables     = "Net Receivables"
	ColWorkingCapital     = "Working Capital"
	ColNetDebt            = "Net Debt"
	ColOperatingCashFlow  = "Operating Cash Flow"
	ColInvestingCashFlow  = "Investing Cash Flow"
	ColFinancingCashFlow  = "Financing Cash Flow"
	ColNetChangeInCash    = "Net Change in Cash"
	ColCapEx              = "Capital Expenditures"
	ColFreeCashFlow       = "Free Cash Flow"
)

// Statements bundles the three historical statement tables for one company.
type Statements struct {
	Income   *Table `json:"income_statement"`
	Balance  *Table `json:"balance_sheet"`
	CashFlow *Table `json:"cash_flow"`
}

func NewStatements() *Statements {
	return &Statements{Income: NewTable(), Balance: NewTable(), CashFlow: NewTable()}
}

func (s *Statements) Clone() *Statements {
	if s == nil {
		return nil
	}
	return &Statements{
		Income:   s.Income.Clone(),
		Balance:  s.Balance.Clone(),
		CashFlow: s.CashFlow.Clone(),
	}
}

// MarketData holds the per-company market snapshot. Optional figures are
// pointers so an absent value is distinguishable from a literal zero.
type MarketData struct {
	Ticker            string   `json:"ticker"`
	Name              string   `json:"name,omitempty"`
	Currency          string   `json:"currency,omitempty"`
	Beta              *float64 `json:"beta,omitempty"`
	MarketCap         *float64 `json:"market_cap,omitempty"`
	CurrentPrice      *float64 `json:"current_price,omitempty"`
	SharesOutstanding *float64 `json:"shares_outstanding,omitempty"`
	CostOfDebt        *float64 `json:"cost_of_debt,omitempty"`
	FiftyTwoWeekHigh  *float64 `json:"fifty_two_week_high,omitempty"`
	FiftyTwoWeekLow   *float64 `json:"fifty_two_week_low,omitempty"`
	DividendYield     *float64 `json:"dividend_yield,omitempty"`
}

// MacroData carries the macroeconomic inputs for CAPM and terminal growth.
type MacroData struct {
	RiskFreeRate      *float64 `json:"risk_free_rate,omitempty"`
	EquityRiskPremium *float64 `json:"equity_risk_premium,omitempty"`
	InflationRate     *float64 `json:"inflation_rate,omitempty"`
	LongTermGDPGrowth *float64 `json:"long_term_gdp_growth,omitempty"`
}

// PeerRecord is one comparable company for relative valuation. A non-empty
// Err marks a failed fetch; such peers are excluded from multiple medians.
type PeerRecord struct {
	Ticker       string   `json:"ticker"`
	Name         string   `json:"name,omitempty"`
	MarketCap    *float64 `json:"market_cap,omitempty"`
	Beta         *float64 `json:"beta,omitempty"`
	CurrentPrice *float64 `json:"current_price,omitempty"`
	EVEBITDA     *float64 `json:"ev_ebitda,omitempty"`
	PERatio      *float64 `json:"pe_ratio,omitempty"`
	PBRatio      *float64 `json:"pb_ratio,omitempty"`
	Revenue      *float64 `json:"revenue,omitempty"`
	EBITDA       *float64 `json:"ebitda,omitempty"`
	Err          string   `json:"error,omitempty"`
}

// Ptr boxes a float for the optional fields above.
func Ptr(v float64) *float64 {
	return &v
}

// Val unboxes an optional float, NaN when unset.
func Val(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
