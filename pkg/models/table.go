// Package models defines the statement tables and company data records
// shared by every stage of the valuation pipeline.
package models

import (
	"encoding/json"
	"math"
	"sort"
)

// Table is a time-ordered financial statement: one row per fiscal period,
// one column per line item. Missing cells are NaN so that column arithmetic
// propagates gaps instead of inventing zeros.
type Table struct {
	Dates   []string
	Columns []string
	Cells   map[string][]float64
}

func NewTable() *Table {
	return &Table{Cells: make(map[string][]float64)}
}

func (t *Table) IsEmpty() bool {
	return t == nil || len(t.Dates) == 0
}

func (t *Table) NumPeriods() int {
	if t == nil {
		return 0
	}
	return len(t.Dates)
}

func (t *Table) HasColumn(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.Cells[name]
	return ok
}

// Column returns the full series for a line item, or nil if absent.
func (t *Table) Column(name string) []float64 {
	if t == nil {
		return nil
	}
	return t.Cells[name]
}

// Value returns the cell at period i, NaN when the column or row is missing.
func (t *Table) Value(name string, i int) float64 {
	col := t.Column(name)
	if i < 0 || i >= len(col) {
		return math.NaN()
	}
	return col[i]
}

// Latest returns the most recent period's value for a line item, NaN when absent.
func (t *Table) Latest(name string) float64 {
	return t.Value(name, t.NumPeriods()-1)
}

// DateIndex returns the row index for a period end date, -1 when absent.
func (t *Table) DateIndex(date string) int {
	if t == nil {
		return -1
	}
	for i, d := range t.Dates {
		if d == date {
			return i
		}
	}
	return -1
}

func nanSlice(n int) []float64 {
	s := make([]float64, n)
	for i := range s {
		s[i] = math.NaN()
	}
	return s
}

func (t *Table) ensureColumn(name string) {
	if t.Cells == nil {
		t.Cells = make(map[string][]float64)
	}
	if _, ok := t.Cells[name]; ok {
		return
	}
	t.Columns = append(t.Columns, name)
	t.Cells[name] = nanSlice(len(t.Dates))
}

// SetCell writes one value, appending the period row and NaN-padding every
// other column if the date has not been seen before.
func (t *Table) SetCell(date, name string, v float64) {
	idx := t.DateIndex(date)
	if idx == -1 {
		t.Dates = append(t.Dates, date)
		for _, c := range t.Columns {
			t.Cells[c] = append(t.Cells[c], math.NaN())
		}
		idx = len(t.Dates) - 1
	}
	t.ensureColumn(name)
	t.Cells[name][idx] = v
}

// SetColumn replaces a full series. Shorter input is NaN-padded, longer
// input is truncated to the current period count.
func (t *Table) SetColumn(name string, vals []float64) {
	t.ensureColumn(name)
	col := nanSlice(len(t.Dates))
	copy(col, vals)
	t.Cells[name] = col
}

// SortByDate orders periods ascending by date string (ISO dates sort
// correctly) and drops duplicate dates, keeping the most recently added
// observation for each.
func (t *Table) SortByDate() {
	if t.IsEmpty() {
		return
	}
	keep := make(map[string]int, len(t.Dates))
	for i, d := range t.Dates {
		keep[d] = i
	}
	dates := make([]string, 0, len(keep))
	for d := range keep {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	cells := make(map[string][]float64, len(t.Cells))
	for _, c := range t.Columns {
		col := make([]float64, len(dates))
		for i, d := range dates {
			col[i] = t.Cells[c][keep[d]]
		}
		cells[c] = col
	}
	t.Dates = dates
	t.Cells = cells
}

func (t *Table) Clone() *Table {
	if t == nil {
		return nil
	}
	out := &Table{
		Dates:   append([]string(nil), t.Dates...),
		Columns: append([]string(nil), t.Columns...),
		Cells:   make(map[string][]float64, len(t.Cells)),
	}
	for c, vals := range t.Cells {
		out.Cells[c] = append([]float64(nil), vals...)
	}
	return out
}

type tableJSON struct {
	Dates   []string              `json:"dates"`
	Columns []string              `json:"columns"`
	Cells   map[string][]*float64 `json:"cells"`
}

// MarshalJSON encodes missing cells as null. encoding/json rejects NaN and
// Inf outright, so the translation is required for persistence.
func (t Table) MarshalJSON() ([]byte, error) {
	enc := tableJSON{
		Dates:   t.Dates,
		Columns: t.Columns,
		Cells:   make(map[string][]*float64, len(t.Cells)),
	}
	for c, vals := range t.Cells {
		col := make([]*float64, len(vals))
		for i, v := range vals {
			if !math.IsNaN(v) && !math.IsInf(v, 0) {
				vv := v
				col[i] = &vv
			}
		}
		enc.Cells[c] = col
	}
	return json.Marshal(enc)
}

func (t *Table) UnmarshalJSON(data []byte) error {
	var dec tableJSON
	if err := json.Unmarshal(data, &dec); err != nil {
		return err
	}
	t.Dates = dec.Dates
	t.Columns = dec.Columns
	t.Cells = make(map[string][]float64, len(dec.Cells))
	for c, vals := range dec.Cells {
		col := make([]float64, len(vals))
		for i, v := range vals {
			if v == nil {
				col[i] = math.NaN()
			} else {
				col[i] = *v
			}
		}
		t.Cells[c] = col
	}
	return nil
}
