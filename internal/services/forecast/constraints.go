package forecast

import (
	"math"
	"time"

	"StockCast/internal/domain/models"
)

// maxSigmas is the per-step plausibility bound: a first-step move may not
// exceed this many historical daily standard deviations; later steps
// scale by the square root of the step index, consistent with a random
// walk diffusion.
const maxSigmas = 3.0

// HistoricalVolatility is the sample standard deviation of simple daily
// returns over the close series.
func HistoricalVolatility(closes []float64) float64 {
	if len(closes) < 3 {
		return 0
	}
	rets := make([]float64, 0, len(closes)-1)
	for i := 1; i < len(closes); i++ {
		if closes[i-1] != 0 {
			rets = append(rets, (closes[i]-closes[i-1])/closes[i-1])
		}
	}
	if len(rets) < 2 {
		return 0
	}
	mean := 0.0
	for _, r := range rets {
		mean += r
	}
	mean /= float64(len(rets))
	ss := 0.0
	for _, r := range rets {
		d := r - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(rets)-1))
}

// ConstrainPath clamps each predicted price so its percentage change from
// its reference (the previous constrained prediction, or currentPrice for
// the first step) stays within the volatility bound. Clamping is
// step-by-step and cumulative: a clamped step becomes the next step's
// reference and the rest of the path is kept. Returns the constrained
// path and the number of clamped steps.
func ConstrainPath(preds []float64, currentPrice, sigma float64) ([]float64, int) {
	if sigma <= 0 || currentPrice <= 0 {
		return preds, 0
	}
	out := make([]float64, len(preds))
	clamped := 0
	ref := currentPrice
	for i, p := range preds {
		bound := maxSigmas * sigma * math.Sqrt(float64(i+1))
		change := (p - ref) / ref
		if math.Abs(change) > bound {
			sign := 1.0
			if change < 0 {
				sign = -1
			}
			p = ref * (1 + sign*bound)
			clamped++
		}
		out[i] = p
		ref = p
	}
	return out, clamped
}

// BuildPoints attaches per-step confidence intervals and scores to a
// constrained path. Interval width grows with sigma and the square root
// of the step index; the lower bound is kept strictly positive. Step
// confidence decays linearly and never drops below the floor, so it is
// non-increasing across one prediction.
func BuildPoints(path []float64, sigma float64, dates []time.Time) []models.PredictionPoint {
	points := make([]models.PredictionPoint, len(path))
	for i, p := range path {
		tf := math.Sqrt(float64(i + 1))
		width := p * sigma * tf * 1.96
		lower := p - width
		if lower <= 0 {
			lower = p * 0.01
		}
		conf := 0.8 - 0.1*float64(i)
		if conf < 0.2 {
			conf = 0.2
		}
		points[i] = models.PredictionPoint{
			Date:       dates[i],
			Price:      p,
			Confidence: conf,
			Lower:      lower,
			Upper:      p + width,
		}
	}
	return points
}

// OverallConfidence folds validation metrics into one bounded score:
// explained variance, directional agreement, and inverse percentage
// error, clamped to [0.2, 0.9] so the score never reads as certainty or
// worthlessness.
func OverallConfidence(m models.ValidationMetrics) float64 {
	r2 := m.R2
	if r2 < 0 {
		r2 = 0
	}
	if r2 > 1 {
		r2 = 1
	}
	errScore := 1 - m.PercentageError/100
	if errScore < 0 {
		errScore = 0
	}
	conf := 0.4*r2 + 0.4*m.DirectionalAccuracy + 0.2*errScore
	if conf < 0.2 {
		conf = 0.2
	}
	if conf > 0.9 {
		conf = 0.9
	}
	return conf
}
