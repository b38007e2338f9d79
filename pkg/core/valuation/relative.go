package valuation

import (
	"math"
	"sort"

	"dcf_engine/pkg/models"
)

// ==================== Relative Valuation ====================

// RelativeResult cross-checks the DCF against peer trading multiples
// applied to the final forecast year. Fields stay nil when no usable
// peer data exists for that multiple.
type RelativeResult struct {
	MedianEVEBITDA        *float64 `json:"median_ev_ebitda,omitempty"`
	MedianPE              *float64 `json:"median_pe,omitempty"`
	EVEBITDAValuePerShare *float64 `json:"ev_ebitda_value_per_share,omitempty"`
	PEValuePerShare       *float64 `json:"pe_value_per_share,omitempty"`
	PeersUsedEVEBITDA     int      `json:"peers_used_ev_ebitda"`
	PeersUsedPE           int      `json:"peers_used_pe"`
}

// RunRelative applies median peer multiples to the base-case final
// forecast year. Peers that failed to load are skipped. Net debt for the
// EV/EBITDA bridge is backed out of the base DCF so both approaches
// share one capital structure.
func RunRelative(peers []models.PeerRecord, base *RunOutput) RelativeResult {
	var res RelativeResult
	if base == nil || base.Projections == nil {
		return res
	}
	final, ok := base.Projections.Final()
	if !ok {
		return res
	}
	shares := base.Valuation.SharesOutstanding
	netDebt := base.Valuation.EnterpriseValue - base.Valuation.EquityValue

	evMultiples := peerMultiples(peers, func(p models.PeerRecord) *float64 { return p.EVEBITDA })
	res.PeersUsedEVEBITDA = len(evMultiples)
	if med, ok := median(evMultiples); ok {
		res.MedianEVEBITDA = models.Ptr(med)
		if shares > 0 {
			impliedEV := final.EBITDA * med
			res.EVEBITDAValuePerShare = models.Ptr((impliedEV - netDebt) / shares)
		}
	}

	peMultiples := peerMultiples(peers, func(p models.PeerRecord) *float64 { return p.PERatio })
	res.PeersUsedPE = len(peMultiples)
	if med, ok := median(peMultiples); ok {
		res.MedianPE = models.Ptr(med)
		if shares > 0 {
			impliedEquity := final.NetIncome * med
			res.PEValuePerShare = models.Ptr(impliedEquity / shares)
		}
	}

	return res
}

// Values returns the finite positive per-share estimates, for blending
// into the target price.
func (r RelativeResult) Values() []float64 {
	var out []float64
	for _, p := range []*float64{r.EVEBITDAValuePerShare, r.PEValuePerShare} {
		if p == nil {
			continue
		}
		if v := *p; !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0 {
			out = append(out, v)
		}
	}
	return out
}

func peerMultiples(peers []models.PeerRecord, pick func(models.PeerRecord) *float64) []float64 {
	var out []float64
	for _, p := range peers {
		if p.Err != "" {
			continue
		}
		v := models.Val(pick(p))
		if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
			continue
		}
		out = append(out, v)
	}
	return out
}

func median(values []float64) (float64, bool) {
	if len(values) == 0 {
		return 0, false
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid], true
	}
	return (sorted[mid-1] + sorted[mid]) / 2, true
}
