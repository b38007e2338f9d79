package report

import (
	"math"
	"time"

	"dcf_engine/pkg/core/assumption"
	"dcf_engine/pkg/core/audit"
	"dcf_engine/pkg/core/config"
	"dcf_engine/pkg/core/ratios"
	"dcf_engine/pkg/core/valuation"
	"dcf_engine/pkg/models"
)

// Input aggregates everything the renderers need. The pipeline fills it
// once per run; the workbook, the markdown summary and the narrative all
// read the same snapshot.
type Input struct {
	RunID       string
	GeneratedAt time.Time
	Cfg         *config.Config

	Statements *models.Statements
	Ratios     *ratios.Set
	Market     *models.MarketData
	Macro      *models.MacroData
	Peers      []models.PeerRecord

	Assumptions assumption.DCFAssumptions
	Base        *valuation.RunOutput
	Sensitivity []valuation.TableResult
	Scenarios   map[string]valuation.Scenario
	Relative    valuation.RelativeResult
	Rec         valuation.Recommendation

	Audit     *audit.Results
	Narrative string
}

// riskFree and riskPremium resolve the CAPM inputs the way the valuation
// did: the macro snapshot when present, the configured default otherwise.
func (in *Input) riskFree() float64 {
	if in.Macro != nil && in.Macro.RiskFreeRate != nil {
		return *in.Macro.RiskFreeRate
	}
	return in.Cfg.DCF.RiskFreeRate
}

func (in *Input) riskPremium() float64 {
	if in.Macro != nil && in.Macro.EquityRiskPremium != nil {
		return *in.Macro.EquityRiskPremium
	}
	return in.Cfg.DCF.EquityRiskPremium
}

// scalarOr resolves a driver's first-year value, fallback when unset.
func scalarOr(d assumption.Driver, fallback float64) float64 {
	v, err := d.Resolve(1)
	if err != nil || math.IsNaN(v) {
		return fallback
	}
	return v
}
