package features

import (
	"fmt"
	"time"

	"StockCast/internal/domain/models"
)

// Raw column names present on every table built from bars.
const (
	ColOpen   = "Open"
	ColHigh   = "High"
	ColLow    = "Low"
	ColClose  = "Close"
	ColVolume = "Volume"
)

// Table is a time-indexed column store. Raw bar fields and computed
// feature columns share one index. Tables are append-only snapshots:
// WithColumn returns a new table and never mutates existing columns,
// which keeps repeated calculation runs order-independent.
type Table struct {
	times []time.Time
	order []string
	cols  map[string][]float64
}

// NewTable builds a table from ordered bars. Bars failing OHLC sanity are
// kept (the caller logs them); only the count is reported back.
func NewTable(bars []models.Bar) (*Table, int) {
	n := len(bars)
	open := make([]float64, n)
	high := make([]float64, n)
	low := make([]float64, n)
	cls := make([]float64, n)
	vol := make([]float64, n)
	times := make([]time.Time, n)

	inconsistent := 0
	for i, b := range bars {
		if !b.Consistent() {
			inconsistent++
		}
		times[i] = b.Timestamp
		open[i] = b.Open
		high[i] = b.High
		low[i] = b.Low
		cls[i] = b.Close
		vol[i] = b.Volume
	}

	return &Table{
		times: times,
		order: []string{ColOpen, ColHigh, ColLow, ColClose, ColVolume},
		cols: map[string][]float64{
			ColOpen:   open,
			ColHigh:   high,
			ColLow:    low,
			ColClose:  cls,
			ColVolume: vol,
		},
	}, inconsistent
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.times) }

// Times returns the time index.
func (t *Table) Times() []time.Time { return t.times }

// LastTime returns the timestamp of the final row.
func (t *Table) LastTime() time.Time {
	if len(t.times) == 0 {
		return time.Time{}
	}
	return t.times[len(t.times)-1]
}

// Has reports whether a column exists.
func (t *Table) Has(name string) bool {
	_, ok := t.cols[name]
	return ok
}

// Column returns a column by name. The slice must not be mutated.
func (t *Table) Column(name string) ([]float64, bool) {
	c, ok := t.cols[name]
	return c, ok
}

// ColumnNames returns column names in insertion order.
func (t *Table) ColumnNames() []string {
	out := make([]string, len(t.order))
	copy(out, t.order)
	return out
}

// WithColumn returns a new table with an extra column appended. Existing
// columns are shared, not copied; they are never written to again.
func (t *Table) WithColumn(name string, vals []float64) (*Table, error) {
	if len(vals) != len(t.times) {
		return nil, fmt.Errorf("column %s: length %d does not match index %d", name, len(vals), len(t.times))
	}
	cols := make(map[string][]float64, len(t.cols)+1)
	for k, v := range t.cols {
		cols[k] = v
	}
	order := make([]string, len(t.order), len(t.order)+1)
	copy(order, t.order)
	if _, exists := cols[name]; !exists {
		order = append(order, name)
	}
	cols[name] = vals
	return &Table{times: t.times, order: order, cols: cols}, nil
}

// Rows assembles a row-major matrix for the named columns.
func (t *Table) Rows(names []string) ([][]float64, error) {
	cols := make([][]float64, len(names))
	for i, name := range names {
		c, ok := t.cols[name]
		if !ok {
			return nil, fmt.Errorf("column %s not present", name)
		}
		cols[i] = c
	}
	rows := make([][]float64, t.Len())
	for r := range rows {
		row := make([]float64, len(names))
		for c := range names {
			row[c] = cols[c][r]
		}
		rows[r] = row
	}
	return rows, nil
}
