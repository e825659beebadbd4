package forecast

import (
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/repository"
	"StockCast/internal/services/features"
	"StockCast/pkg/logger"
)

// missingFeatureBudget is the fraction of trained features that may be
// substituted at inference time before the predictor refuses to run.
// Silent zero-fill is disallowed outright.
const missingFeatureBudget = 0.2

// Predictor runs constrained inference against a loaded artifact.
type Predictor struct {
	engine  *features.Engine
	metrics repository.Metrics
	log     *logger.Logger
}

// NewPredictor creates a predictor over the given feature engine.
func NewPredictor(engine *features.Engine, metrics repository.Metrics, log *logger.Logger) *Predictor {
	return &Predictor{engine: engine, metrics: metrics, log: log}
}

// Predict produces a constrained multi-step forecast. The path is built
// recursively: each step's predicted close is appended as a synthetic
// bar, features are recomputed over the extended series, and the next
// step predicts from the rolled window. Every point is therefore
// conditioned on the path so far.
func (p *Predictor) Predict(table *features.Table, symbol string, horizon int, artifact *Artifact) (*models.PredictionResult, error) {
	if table.Len() < artifact.Meta.SequenceLength {
		return nil, &InsufficientDataError{Have: table.Len(), Need: artifact.Meta.SequenceLength}
	}

	missing, err := p.checkFeatures(table, symbol, artifact)
	if err != nil {
		return nil, err
	}
	if len(missing) > 0 {
		p.log.Warn("features substituted by forward-fill",
			logger.String("symbol", symbol),
			logger.Strings("features", missing),
		)
	}

	bars := rawBars(table)
	currentPrice := bars[len(bars)-1].Close
	closeHist := make([]float64, len(bars))
	for i, b := range bars {
		closeHist[i] = b.Close
	}
	sigma := HistoricalVolatility(closeHist)

	builder := SequenceBuilder{SequenceLength: artifact.Meta.SequenceLength, Horizon: artifact.Meta.Horizon}
	step := 24 * time.Hour

	raw := make([]float64, 0, horizon)
	for s := 0; s < horizon; s++ {
		scaled, err := p.scaledRows(bars, artifact, missing)
		if err != nil {
			return nil, err
		}
		window, err := builder.Inference(scaled)
		if err != nil {
			return nil, err
		}
		out, err := artifact.Net.Forward(Flatten(window))
		if err != nil {
			return nil, err
		}
		price := artifact.TargetScaler.Inverse(out)
		raw = append(raw, price)

		last := bars[len(bars)-1]
		bars = append(bars, models.Bar{
			Timestamp: last.Timestamp.Add(step),
			Open:      price,
			High:      price,
			Low:       price,
			Close:     price,
			Volume:    last.Volume,
		})
	}

	path, clamped := ConstrainPath(raw, currentPrice, sigma)
	if clamped > 0 {
		p.metrics.RecordClampedSteps(symbol, clamped)
		p.log.Info("predictions clamped to volatility bound",
			logger.String("symbol", symbol),
			logger.Int("steps", clamped),
		)
	}

	dates := make([]time.Time, horizon)
	last := table.LastTime()
	for i := range dates {
		dates[i] = last.Add(time.Duration(i+1) * step)
	}

	return &models.PredictionResult{
		Symbol:            symbol,
		Points:            BuildPoints(path, sigma, dates),
		ModelVersion:      artifact.Meta.ModelVersion,
		ModelType:         modelType,
		OverallConfidence: OverallConfidence(artifact.Meta.Metrics),
		CurrentPrice:      currentPrice,
	}, nil
}

// checkFeatures recomputes the artifact's feature set over the live
// table and enforces the mismatch policy: more than the budget missing
// fails with FeatureMismatchError; a small shortfall is substituted
// later from the scaler's fitted center, logged, never zero-filled.
func (p *Predictor) checkFeatures(table *features.Table, symbol string, artifact *Artifact) ([]string, error) {
	enriched, err := p.engine.Calculate(table, artifact.Meta.Features)
	if err != nil {
		return nil, err
	}
	var missing []string
	for _, f := range artifact.Meta.Features {
		if !enriched.Has(f) {
			missing = append(missing, f)
		}
	}
	total := len(artifact.Meta.Features)
	if total > 0 && float64(len(missing))/float64(total) > missingFeatureBudget {
		return nil, &FeatureMismatchError{Symbol: symbol, Missing: missing, Total: total}
	}
	return missing, nil
}

// scaledRows rebuilds the feature matrix from raw bars, substitutes any
// known-missing columns, and applies the fitted feature scaler.
func (p *Predictor) scaledRows(bars []models.Bar, artifact *Artifact, missing []string) ([][]float64, error) {
	table, _ := features.NewTable(bars)
	enriched, err := p.engine.Calculate(table, artifact.Meta.Features)
	if err != nil {
		return nil, err
	}
	for _, f := range missing {
		if enriched.Has(f) {
			continue
		}
		idx := indexOf(artifact.Meta.Features, f)
		fill := 0.0
		if idx >= 0 && idx < len(artifact.FeatureScaler.Center) {
			fill = artifact.FeatureScaler.Center[idx]
		}
		col := make([]float64, enriched.Len())
		for i := range col {
			col[i] = fill
		}
		enriched, err = enriched.WithColumn(f, col)
		if err != nil {
			return nil, err
		}
	}
	rows, err := enriched.Rows(artifact.Meta.Features)
	if err != nil {
		return nil, err
	}
	return artifact.FeatureScaler.TransformAll(rows)
}

// rawBars reconstructs the bar slice from a table's raw columns.
func rawBars(t *features.Table) []models.Bar {
	times := t.Times()
	open, _ := t.Column(features.ColOpen)
	high, _ := t.Column(features.ColHigh)
	low, _ := t.Column(features.ColLow)
	cls, _ := t.Column(features.ColClose)
	vol, _ := t.Column(features.ColVolume)
	bars := make([]models.Bar, t.Len())
	for i := range bars {
		bars[i] = models.Bar{
			Timestamp: times[i],
			Open:      open[i],
			High:      high[i],
			Low:       low[i],
			Close:     cls[i],
			Volume:    vol[i],
		}
	}
	return bars
}

func indexOf(xs []string, s string) int {
	for i, x := range xs {
		if x == s {
			return i
		}
	}
	return -1
}
