package valuation

import (
	"errors"
	"fmt"

	"dcf_engine/pkg/core/assumption"
)

// ErrGrowthExceedsWACC marks the fatal perpetuity precondition: the Gordon
// denominator must stay positive.
var ErrGrowthExceedsWACC = errors.New("terminal growth must stay below WACC")

// ErrUnknownExitMetric marks an exit multiple pointing at a metric the
// projections do not carry.
var ErrUnknownExitMetric = errors.New("unknown exit multiple metric")

type TerminalValueInput struct {
	FinalFCFF        float64
	WACC             float64
	Growth           float64
	PerpetuityWeight float64
	ExitWeight       float64
	Exit             *assumption.ExitMultiple
	// Final-year metrics the exit multiple can attach to.
	FinalEBITDA  float64
	FinalEBIT    float64
	FinalRevenue float64
}

type TerminalValueResult struct {
	Perpetuity float64  `json:"perpetuity"`
	Exit       *float64 `json:"exit,omitempty"`
	Blended    float64  `json:"blended"`
	GrowthRate float64  `json:"growth_rate"`
	Multiple   float64  `json:"exit_multiple,omitempty"`
	Metric     string   `json:"exit_metric,omitempty"`
}

// CalculateTerminalValue computes the Gordon perpetuity and, when an exit
// multiple is supplied, blends it in at the configured weights.
//
//	TV_perp = FinalFCFF * (1 + g) / (WACC - g)
func CalculateTerminalValue(in TerminalValueInput) (TerminalValueResult, error) {
	if in.WACC <= in.Growth {
		return TerminalValueResult{}, fmt.Errorf(
			"WACC (%.2f%%) must exceed terminal growth (%.2f%%): %w",
			in.WACC*100, in.Growth*100, ErrGrowthExceedsWACC)
	}

	out := TerminalValueResult{GrowthRate: in.Growth}
	out.Perpetuity = in.FinalFCFF * (1 + in.Growth) / (in.WACC - in.Growth)
	out.Blended = out.Perpetuity

	if in.Exit == nil {
		return out, nil
	}

	var metric float64
	switch in.Exit.Metric {
	case assumption.MetricEBITDA:
		metric = in.FinalEBITDA
	case assumption.MetricEBIT:
		metric = in.FinalEBIT
	case assumption.MetricRevenue:
		metric = in.FinalRevenue
	default:
		return TerminalValueResult{}, fmt.Errorf("%w: %q", ErrUnknownExitMetric, in.Exit.Metric)
	}

	exit := metric * in.Exit.Multiple
	out.Exit = &exit
	out.Multiple = in.Exit.Multiple
	out.Metric = in.Exit.Metric
	out.Blended = in.PerpetuityWeight*out.Perpetuity + in.ExitWeight*exit
	return out, nil
}
