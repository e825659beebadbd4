package forecast

import (
	"fmt"
	"math"
	"sort"
)

// RobustScaler centers each feature on its median and scales by the
// interquartile range, which keeps indicator outliers from dominating.
// Fit must only ever see the training partition.
type RobustScaler struct {
	Center []float64 `json:"center"`
	Scale  []float64 `json:"scale"`
	Fitted bool      `json:"fitted"`
}

// Fit computes per-column median and IQR from row-major data.
func (s *RobustScaler) Fit(rows [][]float64) error {
	if len(rows) == 0 {
		return fmt.Errorf("robust scaler: no rows")
	}
	nf := len(rows[0])
	s.Center = make([]float64, nf)
	s.Scale = make([]float64, nf)

	col := make([]float64, len(rows))
	for f := 0; f < nf; f++ {
		for r := range rows {
			col[r] = rows[r][f]
		}
		sorted := append([]float64(nil), col...)
		sort.Float64s(sorted)
		s.Center[f] = quantile(sorted, 0.5)
		iqr := quantile(sorted, 0.75) - quantile(sorted, 0.25)
		if iqr < 1e-10 {
			iqr = 1
		}
		s.Scale[f] = iqr
	}
	s.Fitted = true
	return nil
}

// Transform scales a single row.
func (s *RobustScaler) Transform(row []float64) ([]float64, error) {
	if !s.Fitted {
		return nil, fmt.Errorf("robust scaler: not fitted")
	}
	if len(row) != len(s.Center) {
		return nil, fmt.Errorf("robust scaler: got %d features, fitted on %d", len(row), len(s.Center))
	}
	out := make([]float64, len(row))
	for i, v := range row {
		out[i] = (v - s.Center[i]) / s.Scale[i]
	}
	return out, nil
}

// TransformAll scales row-major data.
func (s *RobustScaler) TransformAll(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		t, err := s.Transform(row)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

// quantile interpolates linearly over a sorted slice.
func quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// MinMaxScaler maps the target series onto [0,1] and back. Fit must only
// ever see the training partition.
type MinMaxScaler struct {
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	Fitted bool    `json:"fitted"`
}

// Fit records the observed range.
func (s *MinMaxScaler) Fit(vals []float64) error {
	if len(vals) == 0 {
		return fmt.Errorf("minmax scaler: no values")
	}
	s.Min, s.Max = vals[0], vals[0]
	for _, v := range vals[1:] {
		if v < s.Min {
			s.Min = v
		}
		if v > s.Max {
			s.Max = v
		}
	}
	if s.Max-s.Min < 1e-10 {
		s.Max = s.Min + 1
	}
	s.Fitted = true
	return nil
}

// Transform maps a value into the fitted range.
func (s *MinMaxScaler) Transform(v float64) float64 {
	return (v - s.Min) / (s.Max - s.Min)
}

// TransformAll maps a slice into the fitted range.
func (s *MinMaxScaler) TransformAll(vals []float64) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = s.Transform(v)
	}
	return out
}

// Inverse maps a scaled value back to price units.
func (s *MinMaxScaler) Inverse(v float64) float64 {
	return v*(s.Max-s.Min) + s.Min
}
