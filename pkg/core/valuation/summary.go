package valuation

import (
	"math"

	"dcf_engine/pkg/models"
)

// ==================== Recommendation ====================

// Recommendation labels.
const (
	RecStrongBuy  = "Strong Buy"
	RecBuy        = "Buy"
	RecHold       = "Hold"
	RecSell       = "Sell"
	RecStrongSell = "Strong Sell"
)

// Target price blend weights when relative estimates exist.
const (
	dcfWeight      = 0.7
	relativeWeight = 0.3
)

// Recommendation is the final call: a blended target price against the
// current market price.
type Recommendation struct {
	CurrentPrice  float64  `json:"current_price"`
	DCFValue      float64  `json:"dcf_value"`
	RelativeValue *float64 `json:"relative_value,omitempty"`
	TargetPrice   float64  `json:"target_price"`
	UpsidePct     float64  `json:"upside_pct"`
	Label         string   `json:"recommendation"`
}

// Recommend maps an upside percentage onto the rating ladder. All
// boundaries are exclusive, so exactly +20% is still a Buy.
func Recommend(upsidePct float64) string {
	switch {
	case upsidePct > 20:
		return RecStrongBuy
	case upsidePct > 10:
		return RecBuy
	case upsidePct > -10:
		return RecHold
	case upsidePct > -20:
		return RecSell
	default:
		return RecStrongSell
	}
}

// BuildRecommendation blends the DCF value per share with the average of
// the relative estimates at 70/30. With no relative estimates the target
// is the DCF value alone.
func BuildRecommendation(dcfValue float64, relativeValues []float64, currentPrice float64) Recommendation {
	rec := Recommendation{
		CurrentPrice: currentPrice,
		DCFValue:     dcfValue,
		TargetPrice:  dcfValue,
	}
	if len(relativeValues) > 0 {
		sum := 0.0
		for _, v := range relativeValues {
			sum += v
		}
		avg := sum / float64(len(relativeValues))
		rec.RelativeValue = models.Ptr(avg)
		rec.TargetPrice = dcfWeight*dcfValue + relativeWeight*avg
	}
	rec.UpsidePct = UpsidePercent(rec.TargetPrice, currentPrice)
	rec.Label = Recommend(rec.UpsidePct)
	return rec
}

// UpsidePercent returns the percentage gap between a value estimate and
// the current price.
func UpsidePercent(value, currentPrice float64) float64 {
	if currentPrice == 0 || math.IsNaN(currentPrice) {
		currentPrice = 1
	}
	return (value/currentPrice - 1) * 100
}

// CurrentPriceOr1 resolves the traded price, defaulting to 1 so upside
// stays computable when the quote is missing.
func CurrentPriceOr1(m *models.MarketData) float64 {
	if m == nil {
		return 1
	}
	v := models.Val(m.CurrentPrice)
	if math.IsNaN(v) || v <= 0 {
		return 1
	}
	return v
}
