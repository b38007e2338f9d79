package valuation

import (
	"fmt"

	"dcf_engine/pkg/core/assumption"
)

// ==================== Scenario Analysis ====================

const (
	ScenarioBase = "base"
	ScenarioBull = "bull"
	ScenarioBear = "bear"

	bullGrowthFactor = 1.5
	bullMarginFactor = 1.2
	bearGrowthFactor = 0.7
	bearMarginFactor = 0.8
)

// ScenarioOrder fixes the presentation order of the scenario map.
var ScenarioOrder = []string{ScenarioBase, ScenarioBull, ScenarioBear}

// Scenario is one full valuation under a named assumption set.
type Scenario struct {
	Name            string                    `json:"name"`
	Assumptions     assumption.DCFAssumptions `json:"assumptions"`
	WACC            float64                   `json:"wacc"`
	ValuePerShare   float64                   `json:"value_per_share"`
	EquityValue     float64                   `json:"equity_value"`
	EnterpriseValue float64                   `json:"enterprise_value"`
	CurrentPrice    float64                   `json:"current_price"`
	UpsidePct       float64                   `json:"upside_pct"`
	Recommendation  string                    `json:"recommendation"`
}

// RunScenarios values the company under base, bull and bear assumption
// sets. Bull and bear scale growth and EBIT margin only; the discount
// rate stays at the base inputs for all three.
func RunScenarios(base RunInput) (map[string]Scenario, error) {
	results := make(map[string]Scenario, 3)
	price := CurrentPriceOr1(base.Market)

	for _, name := range ScenarioOrder {
		in := base
		in.Assumptions = scenarioAssumptions(name, base.Assumptions)
		out, err := Run(in)
		if err != nil {
			return nil, fmt.Errorf("%s scenario failed: %w", name, err)
		}
		vps := out.Valuation.ValuePerShare
		upside := UpsidePercent(vps, price)
		results[name] = Scenario{
			Name:            name,
			Assumptions:     in.Assumptions,
			WACC:            out.WACC.WACC,
			ValuePerShare:   vps,
			EquityValue:     out.Valuation.EquityValue,
			EnterpriseValue: out.Valuation.EnterpriseValue,
			CurrentPrice:    price,
			UpsidePct:       upside,
			Recommendation:  Recommend(upside),
		}
	}
	return results, nil
}

func scenarioAssumptions(name string, base assumption.DCFAssumptions) assumption.DCFAssumptions {
	a := base.Copy()
	switch name {
	case ScenarioBull:
		a.RevenueGrowth = a.RevenueGrowth.Scale(bullGrowthFactor)
		a.EBITMargin = a.EBITMargin.Scale(bullMarginFactor)
	case ScenarioBear:
		a.RevenueGrowth = a.RevenueGrowth.Scale(bearGrowthFactor)
		a.EBITMargin = a.EBITMargin.Scale(bearMarginFactor)
	}
	return a
}
