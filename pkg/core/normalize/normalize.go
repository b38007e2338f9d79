package normalize

import (
	"fmt"
	"math"

	"dcf_engine/pkg/models"
)

// Statements canonicalizes vendor labels, sorts and de-duplicates periods,
// fills missing derived line items on a copy of the input and checks the
// accounting identity on the balance sheet. Existing fields are never
// overwritten, so normalizing twice equals normalizing once. Empty tables
// pass through untouched. Identity violations come back as warnings, never
// as errors.
func Statements(s *models.Statements, identityTol float64) (*models.Statements, []string) {
	if s == nil {
		return nil, nil
	}
	out := &models.Statements{
		Income:   AliasColumns(s.Income),
		Balance:  AliasColumns(s.Balance),
		CashFlow: AliasColumns(s.CashFlow),
	}
	fillIncome(out.Income)
	fillBalance(out.Balance)
	fillCashFlow(out.CashFlow)
	return out, identityWarnings(out.Balance, identityTol)
}

func fillIncome(t *models.Table) {
	if t.IsEmpty() {
		return
	}
	// Gross Profit = Revenue - Cost of Revenue
	if !t.HasColumn(models.ColGrossProfit) && t.HasColumn(models.ColRevenue) && t.HasColumn(models.ColCostOfRevenue) {
		t.SetColumn(models.ColGrossProfit, subColumns(t.Column(models.ColRevenue), t.Column(models.ColCostOfRevenue)))
	}
	// EBIT and Operating Income are treated as synonyms, filled in either
	// direction.
	if !t.HasColumn(models.ColEBIT) && t.HasColumn(models.ColOperatingIncome) {
		t.SetColumn(models.ColEBIT, t.Column(models.ColOperatingIncome))
	}
	if !t.HasColumn(models.ColOperatingIncome) && t.HasColumn(models.ColEBIT) {
		t.SetColumn(models.ColOperatingIncome, t.Column(models.ColEBIT))
	}
	// EBITDA = EBIT + Depreciation, with Operating Income as a proxy when
	// depreciation is not reported.
	if !t.HasColumn(models.ColEBITDA) {
		switch {
		case t.HasColumn(models.ColEBIT) && t.HasColumn(models.ColDepreciation):
			t.SetColumn(models.ColEBITDA, addColumns(t.Column(models.ColEBIT), t.Column(models.ColDepreciation)))
		case t.HasColumn(models.ColOperatingIncome):
			t.SetColumn(models.ColEBITDA, t.Column(models.ColOperatingIncome))
		}
	}
}

func fillBalance(t *models.Table) {
	if t.IsEmpty() {
		return
	}
	// Working Capital = Current Assets - Current Liabilities
	if !t.HasColumn(models.ColWorkingCapital) && t.HasColumn(models.ColCurrentAssets) && t.HasColumn(models.ColCurrentLiabilities) {
		t.SetColumn(models.ColWorkingCapital, subColumns(t.Column(models.ColCurrentAssets), t.Column(models.ColCurrentLiabilities)))
	}
	// Net Debt = Total Debt - Cash
	if !t.HasColumn(models.ColNetDebt) && t.HasColumn(models.ColTotalDebt) && t.HasColumn(models.ColCash) {
		t.SetColumn(models.ColNetDebt, subColumns(t.Column(models.ColTotalDebt), t.Column(models.ColCash)))
	}
}

func fillCashFlow(t *models.Table) {
	if t.IsEmpty() {
		return
	}
	// Free Cash Flow = Operating Cash Flow + CapEx. CapEx is stored
	// negative, so this is an addition.
	if !t.HasColumn(models.ColFreeCashFlow) && t.HasColumn(models.ColOperatingCashFlow) && t.HasColumn(models.ColCapEx) {
		t.SetColumn(models.ColFreeCashFlow, addColumns(t.Column(models.ColOperatingCashFlow), t.Column(models.ColCapEx)))
	}
}

// identityWarnings checks Assets = Liabilities + Equity per period. The
// check is skipped when any of the three columns is missing.
func identityWarnings(balance *models.Table, tol float64) []string {
	if balance.IsEmpty() ||
		!balance.HasColumn(models.ColTotalAssets) ||
		!balance.HasColumn(models.ColTotalLiabilities) ||
		!balance.HasColumn(models.ColTotalEquity) {
		return nil
	}
	var warnings []string
	for i, date := range balance.Dates {
		assets := balance.Value(models.ColTotalAssets, i)
		liabEq := balance.Value(models.ColTotalLiabilities, i) + balance.Value(models.ColTotalEquity, i)
		if math.IsNaN(assets) || math.IsNaN(liabEq) {
			continue
		}
		denom := math.Abs(assets)
		if denom < 1 {
			denom = 1
		}
		if math.Abs(assets-liabEq)/denom > tol {
			warnings = append(warnings, fmt.Sprintf(
				"accounting identity violated at %s: assets %.2f vs liabilities+equity %.2f",
				date, assets, liabEq))
		}
	}
	return warnings
}

func addColumns(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] + b[i]
	}
	return out
}

func subColumns(a, b []float64) []float64 {
	out := make([]float64, len(a))
	for i := range a {
		out[i] = a[i] - b[i]
	}
	return out
}
