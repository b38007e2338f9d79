// Package ratios computes the historical ratio battery that seeds the
// forecast assumptions. Every ratio declares the statement columns it
// needs; a missing column skips that ratio, never the whole batch.
package ratios

import (
	"encoding/json"
	"math"

	"dcf_engine/pkg/models"
)

// Statement selectors used in ratio requirements.
const (
	StmtIncome   = "income"
	StmtBalance  = "balance"
	StmtCashFlow = "cash_flow"
)

// Ratio names. Sequence-valued unless noted.
const (
	RevenueGrowthYoY     = "revenue_growth_yoy"
	RevenueCAGR          = "revenue_cagr" // scalar
	GrossMargin          = "gross_margin"
	EBITMargin           = "ebit_margin"
	EBITDAMargin         = "ebitda_margin"
	NetMargin            = "net_margin"
	NetIncomeGrowthYoY   = "net_income_growth_yoy"
	EffectiveTaxRate     = "effective_tax_rate"
	CurrentRatio         = "current_ratio"
	DebtToEquity         = "debt_to_equity"
	DebtToAssets         = "debt_to_assets"
	DebtToEBITDA         = "debt_to_ebitda"
	OperatingCFGrowth    = "operating_cash_flow_growth"
	FreeCashFlowGrowth   = "free_cash_flow_growth"
	WorkingCapitalPctRev = "working_capital_pct_revenue"
	CapexPctRev          = "capex_pct_revenue"
	AssetTurnover        = "asset_turnover"
	InventoryTurnover    = "inventory_turnover"
	ReceivablesTurnover  = "receivables_turnover"
	ReturnOnEquity       = "return_on_equity"
	ReturnOnAssets       = "return_on_assets"
)

type Requirement struct {
	Statement string
	Column    string
}

type Kind int

const (
	KindSeries Kind = iota
	KindScalar
)

// Value is either a per-period series or a single historical summary.
type Value struct {
	Kind   Kind
	Scalar float64
	Series []float64
}

func seriesValue(vals []float64) Value {
	return Value{Kind: KindSeries, Series: vals}
}

func scalarValue(v float64) Value {
	return Value{Kind: KindScalar, Scalar: v}
}

// MarshalJSON writes a scalar as a number and a series as an array,
// translating non-finite entries to null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindScalar {
		return json.Marshal(finiteOrNil(v.Scalar))
	}
	out := make([]*float64, len(v.Series))
	for i, s := range v.Series {
		out[i] = finiteOrNil(s)
	}
	return json.Marshal(out)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var arr []*float64
	if err := json.Unmarshal(data, &arr); err == nil {
		v.Kind = KindSeries
		v.Series = make([]float64, len(arr))
		for i, p := range arr {
			if p == nil {
				v.Series[i] = math.NaN()
			} else {
				v.Series[i] = *p
			}
		}
		return nil
	}
	var f *float64
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	v.Kind = KindScalar
	if f == nil {
		v.Scalar = math.NaN()
	} else {
		v.Scalar = *f
	}
	return nil
}

func finiteOrNil(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

type Definition struct {
	Name     string
	Requires []Requirement
	Compute  func(s *models.Statements) Value
}

// ==================== REGISTRY ====================

// Registry returns the standard ratio battery.
func Registry() []Definition {
	inc := func(col string) Requirement { return Requirement{StmtIncome, col} }
	bal := func(col string) Requirement { return Requirement{StmtBalance, col} }
	cf := func(col string) Requirement { return Requirement{StmtCashFlow, col} }

	return []Definition{
		{
			Name:     RevenueGrowthYoY,
			Requires: []Requirement{inc(models.ColRevenue)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(YoY(s.Income.Column(models.ColRevenue)))
			},
		},
		{
			Name:     RevenueCAGR,
			Requires: []Requirement{inc(models.ColRevenue)},
			Compute: func(s *models.Statements) Value {
				rev := s.Income.Column(models.ColRevenue)
				return scalarValue(CAGR(rev[len(rev)-1], rev[0], float64(len(rev))))
			},
		},
		marginDef(GrossMargin, models.ColGrossProfit),
		marginDef(EBITMargin, models.ColEBIT),
		marginDef(EBITDAMargin, models.ColEBITDA),
		marginDef(NetMargin, models.ColNetIncome),
		{
			Name:     NetIncomeGrowthYoY,
			Requires: []Requirement{inc(models.ColNetIncome)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(YoY(s.Income.Column(models.ColNetIncome)))
			},
		},
		{
			Name:     EffectiveTaxRate,
			Requires: []Requirement{inc(models.ColIncomeTaxExpense), inc(models.ColIncomeBeforeTax)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Income.Column(models.ColIncomeTaxExpense),
					s.Income.Column(models.ColIncomeBeforeTax)))
			},
		},
		{
			Name:     CurrentRatio,
			Requires: []Requirement{bal(models.ColCurrentAssets), bal(models.ColCurrentLiabilities)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Balance.Column(models.ColCurrentAssets),
					s.Balance.Column(models.ColCurrentLiabilities)))
			},
		},
		{
			Name:     DebtToEquity,
			Requires: []Requirement{bal(models.ColTotalDebt), bal(models.ColTotalEquity)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Balance.Column(models.ColTotalDebt),
					s.Balance.Column(models.ColTotalEquity)))
			},
		},
		{
			Name:     DebtToAssets,
			Requires: []Requirement{bal(models.ColTotalDebt), bal(models.ColTotalAssets)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Balance.Column(models.ColTotalDebt),
					s.Balance.Column(models.ColTotalAssets)))
			},
		},
		{
			Name:     DebtToEBITDA,
			Requires: []Requirement{bal(models.ColTotalDebt), inc(models.ColEBITDA)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Balance.Column(models.ColTotalDebt),
					s.Income.Column(models.ColEBITDA)))
			},
		},
		{
			Name:     OperatingCFGrowth,
			Requires: []Requirement{cf(models.ColOperatingCashFlow)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(YoY(s.CashFlow.Column(models.ColOperatingCashFlow)))
			},
		},
		{
			Name:     FreeCashFlowGrowth,
			Requires: []Requirement{cf(models.ColFreeCashFlow)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(YoY(s.CashFlow.Column(models.ColFreeCashFlow)))
			},
		},
		{
			Name:     WorkingCapitalPctRev,
			Requires: []Requirement{bal(models.ColWorkingCapital), inc(models.ColRevenue)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Balance.Column(models.ColWorkingCapital),
					s.Income.Column(models.ColRevenue)))
			},
		},
		{
			Name:     CapexPctRev,
			Requires: []Requirement{cf(models.ColCapEx), inc(models.ColRevenue)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					absSeries(s.CashFlow.Column(models.ColCapEx)),
					s.Income.Column(models.ColRevenue)))
			},
		},
		{
			Name:     AssetTurnover,
			Requires: []Requirement{inc(models.ColRevenue), bal(models.ColTotalAssets)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Income.Column(models.ColRevenue),
					Rolling2(s.Balance.Column(models.ColTotalAssets))))
			},
		},
		{
			Name:     InventoryTurnover,
			Requires: []Requirement{inc(models.ColCostOfRevenue), bal(models.ColInventory)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Income.Column(models.ColCostOfRevenue),
					Rolling2(s.Balance.Column(models.ColInventory))))
			},
		},
		{
			Name:     ReceivablesTurnover,
			Requires: []Requirement{inc(models.ColRevenue), bal(models.ColNetReceivables)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Income.Column(models.ColRevenue),
					Rolling2(s.Balance.Column(models.ColNetReceivables))))
			},
		},
		{
			Name:     ReturnOnEquity,
			Requires: []Requirement{inc(models.ColNetIncome), bal(models.ColTotalEquity)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Income.Column(models.ColNetIncome),
					s.Balance.Column(models.ColTotalEquity)))
			},
		},
		{
			Name:     ReturnOnAssets,
			Requires: []Requirement{inc(models.ColNetIncome), bal(models.ColTotalAssets)},
			Compute: func(s *models.Statements) Value {
				return seriesValue(divSeries(
					s.Income.Column(models.ColNetIncome),
					s.Balance.Column(models.ColTotalAssets)))
			},
		},
	}
}

func marginDef(name, numerator string) Definition {
	return Definition{
		Name:     name,
		Requires: []Requirement{{StmtIncome, numerator}, {StmtIncome, models.ColRevenue}},
		Compute: func(s *models.Statements) Value {
			return seriesValue(divSeries(
				s.Income.Column(numerator),
				s.Income.Column(models.ColRevenue)))
		},
	}
}

// ==================== COMPUTATION ====================

// Set holds the computed ratio values plus the names skipped for missing
// columns.
type Set struct {
	Values  map[string]Value `json:"values"`
	Skipped []string         `json:"skipped,omitempty"`
}

// Compute runs the standard registry against normalized statements.
func Compute(s *models.Statements) *Set {
	return ComputeWith(s, Registry())
}

func ComputeWith(s *models.Statements, defs []Definition) *Set {
	set := &Set{Values: make(map[string]Value, len(defs))}
	for _, d := range defs {
		if !requirementsMet(s, d.Requires) {
			set.Skipped = append(set.Skipped, d.Name)
			continue
		}
		set.Values[d.Name] = d.Compute(s)
	}
	return set
}

func statementTable(s *models.Statements, which string) *models.Table {
	if s == nil {
		return nil
	}
	switch which {
	case StmtIncome:
		return s.Income
	case StmtBalance:
		return s.Balance
	case StmtCashFlow:
		return s.CashFlow
	}
	return nil
}

// requirementsMet checks that every required column exists and, when a
// ratio spans statements, that the statements cover the same periods.
func requirementsMet(s *models.Statements, reqs []Requirement) bool {
	periods := -1
	for _, r := range reqs {
		tbl := statementTable(s, r.Statement)
		if tbl.IsEmpty() || !tbl.HasColumn(r.Column) {
			return false
		}
		if periods == -1 {
			periods = tbl.NumPeriods()
		} else if tbl.NumPeriods() != periods {
			return false
		}
	}
	return periods > 0
}

// ==================== ACCESS ====================

func (s *Set) Has(name string) bool {
	_, ok := s.Values[name]
	return ok
}

// Series returns the per-period values for a sequence ratio, nil when the
// ratio was skipped or is scalar-valued.
func (s *Set) Series(name string) []float64 {
	v, ok := s.Values[name]
	if !ok || v.Kind != KindSeries {
		return nil
	}
	return v.Series
}

// Scalar returns a summary ratio and whether it was computed.
func (s *Set) Scalar(name string) (float64, bool) {
	v, ok := s.Values[name]
	if !ok || v.Kind != KindScalar {
		return 0, false
	}
	return v.Scalar, true
}

// MarginSummary condenses a margin series for reporting and assumption
// seeding. Latest is the raw final observation and may be NaN.
type MarginSummary struct {
	Historical []float64
	Average    float64
	Latest     float64
}

func (s *Set) Margin(name string) MarginSummary {
	series := s.Series(name)
	out := MarginSummary{
		Historical: series,
		Average:    math.NaN(),
		Latest:     math.NaN(),
	}
	if avg, ok := meanFinite(series); ok {
		out.Average = avg
	}
	if len(series) > 0 {
		out.Latest = series[len(series)-1]
	}
	return out
}

// ==================== ASSUMPTION REDUCERS ====================

// Defaults used when no valid historical observation exists.
const (
	DefaultTaxRate           = 0.25
	DefaultWorkingCapitalPct = 0.10
	DefaultCapexPct          = 0.05
)

// TaxRate averages the effective tax rates that land in [0, 1], falling
// back to the statutory-style default.
func (s *Set) TaxRate() float64 {
	if avg, ok := meanFiniteWithin(s.Series(EffectiveTaxRate), 0, 1); ok {
		return avg
	}
	return DefaultTaxRate
}

// WorkingCapitalPct averages historical working capital as a share of
// revenue.
func (s *Set) WorkingCapitalPct() float64 {
	if avg, ok := meanFinite(s.Series(WorkingCapitalPctRev)); ok {
		return avg
	}
	return DefaultWorkingCapitalPct
}

// CapexPct averages historical capex as a share of revenue.
func (s *Set) CapexPct() float64 {
	if avg, ok := meanFinite(s.Series(CapexPctRev)); ok {
		return avg
	}
	return DefaultCapexPct
}

// AverageRevenueGrowth averages the finite year-over-year growth entries.
// The second return is false when no usable history exists.
func (s *Set) AverageRevenueGrowth() (float64, bool) {
	return meanFinite(s.Series(RevenueGrowthYoY))
}
