package forecast

import (
	"math"
	"math/rand"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/pkg/logger"
)

// Degradation tiers reported alongside each result. Callers use the
// tier to label metrics and to decide whether a response is servable.
const (
	TierModel = "model"
	TierTrend = "trend"
	TierWalk  = "random_walk"
)

const (
	trendWindow     = 10
	trendConfidence = 0.30
	walkConfidence  = 0.20
)

// Fallback produces degraded forecasts when the trained model path is
// unavailable. Tier two extrapolates the recent close trend, tier three
// is a bounded random walk around the last close. Both honor the same
// volatility constraint as the model path so degraded output can never
// be wilder than trained output.
type Fallback struct {
	log *logger.Logger
}

// NewFallback creates the degradation ladder helper.
func NewFallback(log *logger.Logger) *Fallback {
	return &Fallback{log: log}
}

// TrendForecast extrapolates the mean close-to-close drift over the
// trailing window. Requires at least two closes.
func (f *Fallback) TrendForecast(symbol string, closes []float64, lastTime time.Time, horizon int) (*models.PredictionResult, error) {
	if len(closes) < 2 {
		return nil, &InsufficientDataError{Have: len(closes), Need: 2}
	}
	current := closes[len(closes)-1]
	sigma := HistoricalVolatility(closes)

	window := trendWindow
	if window > len(closes)-1 {
		window = len(closes) - 1
	}
	drift := 0.0
	for i := len(closes) - window; i < len(closes); i++ {
		drift += closes[i] - closes[i-1]
	}
	drift /= float64(window)

	raw := make([]float64, horizon)
	price := current
	for i := range raw {
		price += drift
		raw[i] = price
	}
	path, _ := ConstrainPath(raw, current, sigma)

	f.log.Warn("serving trend fallback forecast",
		logger.String("symbol", symbol),
		logger.Int("horizon", horizon),
	)
	return f.result(symbol, path, current, sigma, lastTime, horizon, trendConfidence), nil
}

// WalkForecast produces a seeded bounded random walk from the last
// close. The seed is derived from the symbol and the last bar time so
// repeated calls over the same data return the same path.
func (f *Fallback) WalkForecast(symbol string, closes []float64, lastTime time.Time, horizon int) (*models.PredictionResult, error) {
	if len(closes) == 0 {
		return nil, &InsufficientDataError{Have: 0, Need: 1}
	}
	current := closes[len(closes)-1]
	sigma := HistoricalVolatility(closes)
	if sigma == 0 {
		sigma = 0.01
	}

	rng := rand.New(rand.NewSource(walkSeed(symbol, lastTime)))
	raw := make([]float64, horizon)
	price := current
	for i := range raw {
		price *= 1 + rng.NormFloat64()*sigma
		raw[i] = price
	}
	path, _ := ConstrainPath(raw, current, sigma)

	f.log.Warn("serving random walk fallback forecast",
		logger.String("symbol", symbol),
		logger.Int("horizon", horizon),
	)
	return f.result(symbol, path, current, sigma, lastTime, horizon, walkConfidence), nil
}

func (f *Fallback) result(symbol string, path []float64, current, sigma float64, lastTime time.Time, horizon int, conf float64) *models.PredictionResult {
	step := 24 * time.Hour
	dates := make([]time.Time, horizon)
	for i := range dates {
		dates[i] = lastTime.Add(time.Duration(i+1) * step)
	}
	points := BuildPoints(path, sigma, dates)
	for i := range points {
		points[i].Confidence = math.Min(points[i].Confidence, conf)
	}
	return &models.PredictionResult{
		Symbol:            symbol,
		Points:            points,
		ModelVersion:      "fallback",
		ModelType:         "degraded estimate",
		OverallConfidence: conf,
		CurrentPrice:      current,
	}
}

func walkSeed(symbol string, t time.Time) int64 {
	seed := t.Unix()
	for _, r := range symbol {
		seed = seed*31 + int64(r)
	}
	return seed
}
