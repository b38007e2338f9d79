// Package assumption defines the forecast assumption set fed into the
// projection engine, with each field resolvable per forecast year.
package assumption

import (
	"encoding/json"
	"errors"
	"fmt"
)

// Kind tags how a driver resolves across forecast years.
type Kind int

const (
	Unset Kind = iota
	Scalar
	PerYear
)

// ErrUnset is returned by Resolve when no value was supplied. Callers with
// a sensible default check for it with errors.Is.
var ErrUnset = errors.New("assumption driver is unset")

// Driver is an assumption value that is either a single scalar applied to
// every forecast year or an explicit per-year sequence.
type Driver struct {
	kind    Kind
	scalar  float64
	perYear []float64
}

func NewScalar(v float64) Driver {
	return Driver{kind: Scalar, scalar: v}
}

func NewPerYear(vals []float64) Driver {
	return Driver{kind: PerYear, perYear: append([]float64(nil), vals...)}
}

func (d Driver) Kind() Kind {
	return d.kind
}

func (d Driver) IsSet() bool {
	return d.kind != Unset
}

// Resolve returns the value for a 1-based forecast year. A per-year driver
// that does not cover the requested year is an error, not a silent
// truncation of the forecast.
func (d Driver) Resolve(year int) (float64, error) {
	if year < 1 {
		return 0, fmt.Errorf("forecast year must be 1-based, got %d", year)
	}
	switch d.kind {
	case Scalar:
		return d.scalar, nil
	case PerYear:
		if year > len(d.perYear) {
			return 0, fmt.Errorf("driver holds %d values, cannot resolve year %d", len(d.perYear), year)
		}
		return d.perYear[year-1], nil
	default:
		return 0, ErrUnset
	}
}

// Values returns a copy of the per-year sequence, nil for scalar or unset
// drivers.
func (d Driver) Values() []float64 {
	if d.kind != PerYear {
		return nil
	}
	return append([]float64(nil), d.perYear...)
}

// Scale returns a driver with every value multiplied by factor. Unset stays
// unset, so scenario multipliers only touch supplied assumptions.
func (d Driver) Scale(factor float64) Driver {
	switch d.kind {
	case Scalar:
		return NewScalar(d.scalar * factor)
	case PerYear:
		out := make([]float64, len(d.perYear))
		for i, v := range d.perYear {
			out[i] = v * factor
		}
		return Driver{kind: PerYear, perYear: out}
	default:
		return d
	}
}

// Shift returns a driver with delta added to every value. Unset stays unset.
func (d Driver) Shift(delta float64) Driver {
	switch d.kind {
	case Scalar:
		return NewScalar(d.scalar + delta)
	case PerYear:
		out := make([]float64, len(d.perYear))
		for i, v := range d.perYear {
			out[i] = v + delta
		}
		return Driver{kind: PerYear, perYear: out}
	default:
		return d
	}
}

func (d Driver) clone() Driver {
	if d.kind == PerYear {
		return NewPerYear(d.perYear)
	}
	return d
}

// MarshalJSON writes a scalar as a number, a per-year driver as an array
// and an unset driver as null.
func (d Driver) MarshalJSON() ([]byte, error) {
	switch d.kind {
	case Scalar:
		return json.Marshal(d.scalar)
	case PerYear:
		return json.Marshal(d.perYear)
	default:
		return []byte("null"), nil
	}
}

func (d *Driver) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Driver{}
		return nil
	}
	var vals []float64
	if err := json.Unmarshal(data, &vals); err == nil {
		*d = NewPerYear(vals)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("driver must be a number or an array: %w", err)
	}
	*d = NewScalar(v)
	return nil
}
