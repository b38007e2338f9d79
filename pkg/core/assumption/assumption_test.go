package assumption

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"dcf_engine/pkg/core/ratios"
	"dcf_engine/pkg/models"
)

func TestScalarResolvesEveryYear(t *testing.T) {
	d := NewScalar(0.25)
	for year := 1; year <= 10; year++ {
		v, err := d.Resolve(year)
		if err != nil {
			t.Fatalf("Resolve(%d): %v", year, err)
		}
		if v != 0.25 {
			t.Errorf("Resolve(%d) = %v, want 0.25", year, v)
		}
	}
}

func TestPerYearResolvesByIndex(t *testing.T) {
	d := NewPerYear([]float64{0.05, 0.04, 0.03})

	v, err := d.Resolve(2)
	if err != nil {
		t.Fatalf("Resolve(2): %v", err)
	}
	if v != 0.04 {
		t.Errorf("Resolve(2) = %v, want 0.04", v)
	}
}

func TestPerYearTooShortErrors(t *testing.T) {
	d := NewPerYear([]float64{0.05, 0.04})
	if _, err := d.Resolve(3); err == nil {
		t.Fatal("expected error resolving year 3 from 2 values")
	}
}

func TestUnsetResolveReturnsErrUnset(t *testing.T) {
	var d Driver
	_, err := d.Resolve(1)
	if !errors.Is(err, ErrUnset) {
		t.Fatalf("err = %v, want ErrUnset", err)
	}
	if d.IsSet() {
		t.Error("zero driver should report unset")
	}
}

func TestResolveRejectsZeroYear(t *testing.T) {
	if _, err := NewScalar(1).Resolve(0); err == nil {
		t.Fatal("expected error for year 0")
	}
}

func TestScaleAndShiftArePure(t *testing.T) {
	d := NewPerYear([]float64{0.10, 0.20})

	scaled := d.Scale(1.5)
	shifted := d.Shift(0.02)

	if v, _ := scaled.Resolve(1); math.Abs(v-0.15) > 1e-9 {
		t.Errorf("scaled year 1 = %v, want 0.15", v)
	}
	if v, _ := shifted.Resolve(2); math.Abs(v-0.22) > 1e-9 {
		t.Errorf("shifted year 2 = %v, want 0.22", v)
	}
	// The original driver must be untouched.
	if v, _ := d.Resolve(1); v != 0.10 {
		t.Errorf("original mutated: year 1 = %v, want 0.10", v)
	}

	var unset Driver
	if unset.Scale(2).IsSet() || unset.Shift(0.1).IsSet() {
		t.Error("scaling an unset driver must keep it unset")
	}
}

func TestDriverJSONRoundTrip(t *testing.T) {
	type wrapper struct {
		Growth Driver `json:"revenue_growth"`
		Margin Driver `json:"ebit_margin"`
		Unused Driver `json:"interest_expense"`
	}
	in := wrapper{
		Growth: NewPerYear([]float64{0.05, 0.05}),
		Margin: NewScalar(0.20),
	}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var out wrapper
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if out.Growth.Kind() != PerYear {
		t.Errorf("growth kind = %v, want PerYear", out.Growth.Kind())
	}
	if v, _ := out.Margin.Resolve(3); v != 0.20 {
		t.Errorf("margin = %v, want 0.20", v)
	}
	if out.Unused.IsSet() {
		t.Error("null should decode to unset")
	}
}

func TestCopyIsolatesDrivers(t *testing.T) {
	base := DCFAssumptions{
		RevenueGrowth: NewPerYear([]float64{0.05, 0.05}),
		EBITMargin:    NewScalar(0.20),
		ExitMultiple:  &ExitMultiple{Multiple: 12, Metric: MetricEBITDA},
		ForecastYears: 5,
	}

	cp := base.Copy()
	cp.ExitMultiple.Multiple = 15
	cp.RevenueGrowth = cp.RevenueGrowth.Scale(1.5)

	if base.ExitMultiple.Multiple != 12 {
		t.Errorf("exit multiple leaked: %v, want 12", base.ExitMultiple.Multiple)
	}
	if v, _ := base.RevenueGrowth.Resolve(1); v != 0.05 {
		t.Errorf("growth leaked: %v, want 0.05", v)
	}
}

// deriveFixture yields 10% then ~9.1% observed growth, a 0.40 gross margin
// and a 0.20 EBIT margin in the latest year.
func deriveFixture() *ratios.Set {
	s := models.NewStatements()
	for i, date := range []string{"2021-12-31", "2022-12-31", "2023-12-31"} {
		f := float64(i)
		s.Income.SetCell(date, models.ColRevenue, 1000+100*f)
		s.Income.SetCell(date, models.ColGrossProfit, 400+40*f)
		s.Income.SetCell(date, models.ColEBIT, 200+20*f)
		s.Income.SetCell(date, models.ColIncomeBeforeTax, 200+20*f)
		s.Income.SetCell(date, models.ColIncomeTaxExpense, 50+5*f)
	}
	return ratios.Compute(s)
}

func TestDeriveSeedsFromHistory(t *testing.T) {
	a := Derive(deriveFixture(), 5, 0.025)

	// Average of 0.10 and 0.0909 is 0.0955, inside the clamp band.
	g, err := a.RevenueGrowth.Resolve(1)
	if err != nil {
		t.Fatalf("growth: %v", err)
	}
	if math.Abs(g-0.0955) > 0.001 {
		t.Errorf("derived growth = %v, want 0.0955", g)
	}
	if a.RevenueGrowth.Kind() != PerYear || len(a.RevenueGrowth.Values()) != 5 {
		t.Error("growth should repeat per forecast year")
	}
	if gm, _ := a.GrossMargin.Resolve(1); math.Abs(gm-0.40) > 1e-9 {
		t.Errorf("gross margin = %v, want latest 0.40", gm)
	}
	if em, _ := a.EBITMargin.Resolve(1); math.Abs(em-0.20) > 1e-9 {
		t.Errorf("ebit margin = %v, want latest 0.20", em)
	}
	if tax, _ := a.TaxRate.Resolve(1); math.Abs(tax-0.25) > 1e-9 {
		t.Errorf("tax rate = %v, want 0.25", tax)
	}
	if a.TerminalGrowth != 0.025 || a.ForecastYears != 5 {
		t.Errorf("config passthrough wrong: growth %v, years %d", a.TerminalGrowth, a.ForecastYears)
	}
	if a.InterestExpense.IsSet() {
		t.Error("interest expense should stay unset for the revenue-share default")
	}
}

func TestDeriveClampsGrowth(t *testing.T) {
	// 50% observed growth clamps down to the 10% ceiling.
	s := models.NewStatements()
	s.Income.SetCell("2022-12-31", models.ColRevenue, 1000)
	s.Income.SetCell("2023-12-31", models.ColRevenue, 1500)
	a := Derive(ratios.Compute(s), 5, 0.025)
	if g, _ := a.RevenueGrowth.Resolve(1); math.Abs(g-MaxDerivedGrowth) > 1e-9 {
		t.Errorf("growth = %v, want clamped %v", g, MaxDerivedGrowth)
	}

	// A shrinking top line clamps up to the 2% floor.
	s = models.NewStatements()
	s.Income.SetCell("2022-12-31", models.ColRevenue, 1000)
	s.Income.SetCell("2023-12-31", models.ColRevenue, 800)
	a = Derive(ratios.Compute(s), 5, 0.025)
	if g, _ := a.RevenueGrowth.Resolve(1); math.Abs(g-MinDerivedGrowth) > 1e-9 {
		t.Errorf("growth = %v, want clamped %v", g, MinDerivedGrowth)
	}
}

func TestDeriveDefaultsWithoutHistory(t *testing.T) {
	a := Derive(ratios.Compute(models.NewStatements()), 5, 0.025)

	if g, _ := a.RevenueGrowth.Resolve(1); g != DefaultGrowth {
		t.Errorf("growth = %v, want default %v", g, DefaultGrowth)
	}
	if gm, _ := a.GrossMargin.Resolve(1); gm != DefaultGrossMargin {
		t.Errorf("gross margin = %v, want default %v", gm, DefaultGrossMargin)
	}
	if em, _ := a.EBITMargin.Resolve(1); em != DefaultEBITMargin {
		t.Errorf("ebit margin = %v, want default %v", em, DefaultEBITMargin)
	}
	if tax, _ := a.TaxRate.Resolve(1); tax != ratios.DefaultTaxRate {
		t.Errorf("tax = %v, want default %v", tax, ratios.DefaultTaxRate)
	}
}
