// Package normalize canonicalizes raw statement tables and fills the
// derived line items downstream formulas expect.
package normalize

import (
	"strings"

	"dcf_engine/pkg/models"
)

// columnAliases maps vendor statement labels onto canonical line items.
var columnAliases = map[string]string{
	"Total Revenue":                             models.ColRevenue,
	"Cost Of Revenue":                           models.ColCostOfRevenue,
	"Total Current Assets":                      models.ColCurrentAssets,
	"Total Current Liabilities":                 models.ColCurrentLiabilities,
	"Total Stockholder Equity":                  models.ColTotalEquity,
	"Cash And Cash Equivalents":                 models.ColCash,
	"Total Cash From Operating Activities":      models.ColOperatingCashFlow,
	"Total Cashflows From Investing Activities": models.ColInvestingCashFlow,
	"Total Cash From Financing Activities":      models.ColFinancingCashFlow,
	"Net Change In Cash":                        models.ColNetChangeInCash,
}

// CanonicalName maps a raw label to its canonical line item name, returning
// the trimmed label itself when no alias applies.
func CanonicalName(raw string) string {
	name := strings.TrimSpace(raw)
	if canon, ok := columnAliases[name]; ok {
		return canon
	}
	return name
}

// AliasColumns returns a copy of the table with vendor labels renamed to
// canonical ones and periods sorted ascending. When both the alias and the
// canonical column are present the canonical one wins.
func AliasColumns(t *models.Table) *models.Table {
	if t.IsEmpty() {
		return t.Clone()
	}
	out := models.NewTable()
	out.Dates = append([]string(nil), t.Dates...)
	// Columns already carrying canonical names take priority.
	for _, c := range t.Columns {
		if CanonicalName(c) == strings.TrimSpace(c) {
			out.SetColumn(strings.TrimSpace(c), t.Cells[c])
		}
	}
	for _, c := range t.Columns {
		canon := CanonicalName(c)
		if out.HasColumn(canon) {
			continue
		}
		out.SetColumn(canon, t.Cells[c])
	}
	out.SortByDate()
	return out
}
