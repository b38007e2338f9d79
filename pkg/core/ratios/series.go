package ratios

import "math"

// YoY returns year-over-year growth, one entry per period after the first.
// Division by zero and missing inputs flow through as Inf/NaN and are
// excluded later by the finite-only reducers.
func YoY(vals []float64) []float64 {
	if len(vals) < 2 {
		return nil
	}
	out := make([]float64, len(vals)-1)
	for i := 1; i < len(vals); i++ {
		out[i-1] = (vals[i] - vals[i-1]) / vals[i-1]
	}
	return out
}

// CAGR returns the compound annual growth rate between two values.
// Returns 0 when the beginning value or period count makes the formula
// meaningless, never an error.
func CAGR(end, begin, periods float64) float64 {
	if begin <= 0 || periods <= 0 {
		return 0
	}
	return math.Pow(end/begin, 1/periods) - 1
}

// Rolling2 returns the trailing two-period average of a balance series.
// The first period has no predecessor and averages with itself.
func Rolling2(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		if i == 0 {
			out[i] = v
			continue
		}
		out[i] = (v + vals[i-1]) / 2
	}
	return out
}

func divSeries(num, den []float64) []float64 {
	n := len(num)
	if len(den) < n {
		n = len(den)
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = num[i] / den[i]
	}
	return out
}

func absSeries(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = math.Abs(v)
	}
	return out
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func meanFinite(vals []float64) (float64, bool) {
	sum, n := 0.0, 0
	for _, v := range vals {
		if isFinite(v) {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

func meanFiniteWithin(vals []float64, lo, hi float64) (float64, bool) {
	sum, n := 0.0, 0
	for _, v := range vals {
		if isFinite(v) && v >= lo && v <= hi {
			sum += v
			n++
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}
