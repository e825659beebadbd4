package forecast

import (
	"context"
	"fmt"
	"math"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/services/features"
	"StockCast/pkg/logger"
)

// EssentialFeatures is the canonical model input set. The feature set
// recorded in an artifact is always the subset of these that the engine
// actually produced for the training table.
var EssentialFeatures = []string{
	"Close", "Volume", "Returns", "Log_Returns",
	"SMA_10", "SMA_20", "EMA_12", "EMA_26",
	"RSI", "MACD", "MACD_Signal",
	"BB_Upper", "BB_Lower", "BB_Width",
	"Volume_SMA_10", "Price_Volume_Ratio", "ATR", "ADX",
}

// trainSafetyMargin is added on top of the window arithmetic when
// checking minimum row counts, so a model never trains on a handful of
// sequences.
const trainSafetyMargin = 50

const modelType = "sequence regression network"

// MinTrainingRows is the smallest history that can produce at least one
// training sequence plus the safety margin.
func MinTrainingRows(sequenceLength, horizon int) int {
	return sequenceLength + horizon + trainSafetyMargin
}

// TrainConfig parameterizes one training run.
type TrainConfig struct {
	Epochs          int
	BatchSize       int
	ValidationSplit float64
	Patience        int
	HiddenSize      int
	Seed            int64
}

func (c *TrainConfig) applyDefaults() {
	if c.Epochs <= 0 {
		c.Epochs = 50
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	if c.ValidationSplit <= 0 || c.ValidationSplit >= 1 {
		c.ValidationSplit = 0.2
	}
	if c.Patience <= 0 {
		c.Patience = 10
	}
	if c.HiddenSize <= 0 {
		c.HiddenSize = 32
	}
	if c.Seed == 0 {
		c.Seed = 42
	}
}

// Trainer runs the training pipeline for one symbol at a time: feature
// preparation, leakage-safe scaling, sequence building, the epoch loop
// with early stopping and learning-rate decay, validation metrics, and
// artifact persistence.
type Trainer struct {
	engine  *features.Engine
	store   *ArtifactStore
	log     *logger.Logger
	builder SequenceBuilder
}

// NewTrainer creates a trainer for the given window geometry.
func NewTrainer(engine *features.Engine, store *ArtifactStore, log *logger.Logger, sequenceLength, horizon int) *Trainer {
	return &Trainer{
		engine:  engine,
		store:   store,
		log:     log,
		builder: SequenceBuilder{SequenceLength: sequenceLength, Horizon: horizon},
	}
}

// Train runs a full training cycle and persists a new artifact on
// success. Failures leave any previously persisted artifact untouched.
// ctx is checked between epochs for cooperative cancellation.
func (tr *Trainer) Train(ctx context.Context, table *features.Table, symbol string, cfg TrainConfig) (*models.TrainingSummary, *Artifact, error) {
	cfg.applyDefaults()
	l, h := tr.builder.SequenceLength, tr.builder.Horizon

	minRows := MinTrainingRows(l, h)
	if table.Len() < minRows {
		return nil, nil, &InsufficientDataError{Have: table.Len(), Need: minRows}
	}

	enriched, err := tr.engine.Calculate(table, EssentialFeatures)
	if err != nil {
		return nil, nil, err
	}
	trained := make([]string, 0, len(EssentialFeatures))
	for _, f := range EssentialFeatures {
		if enriched.Has(f) {
			trained = append(trained, f)
		}
	}
	if len(trained) < len(EssentialFeatures)/2 {
		return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: fmt.Sprintf("only %d of %d essential features derivable", len(trained), len(EssentialFeatures))}
	}

	rows, err := enriched.Rows(trained)
	if err != nil {
		return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: err.Error()}
	}
	closes, _ := enriched.Column(features.ColClose)

	// Scalers see only rows that feed training sequences; the validation
	// tail stays unseen to avoid leakage.
	numSeq := len(rows) - l - h + 1
	trainSeqCount := int(float64(numSeq) * (1 - cfg.ValidationSplit))
	if trainSeqCount < 1 {
		trainSeqCount = 1
	}
	fitRows := trainSeqCount + l - 1

	featScaler := &RobustScaler{}
	if err := featScaler.Fit(rows[:fitRows]); err != nil {
		return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: err.Error()}
	}
	targetScaler := &MinMaxScaler{}
	if err := targetScaler.Fit(closes[:fitRows]); err != nil {
		return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: err.Error()}
	}

	scaledRows, err := featScaler.TransformAll(rows)
	if err != nil {
		return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: err.Error()}
	}
	scaledTargets := targetScaler.TransformAll(closes)

	seqs := tr.builder.Training(scaledRows, scaledTargets)
	if len(seqs) == 0 {
		return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: "no training sequences"}
	}
	if trainSeqCount >= len(seqs) {
		trainSeqCount = len(seqs) - 1
	}
	trainSeqs, valSeqs := seqs[:trainSeqCount], seqs[trainSeqCount:]

	tr.log.Info("training started",
		logger.String("symbol", symbol),
		logger.Int("train_sequences", len(trainSeqs)),
		logger.Int("val_sequences", len(valSeqs)),
		logger.Int("features", len(trained)),
	)

	net := NewNetwork(l*len(trained), cfg.HiddenSize, cfg.Seed)
	summary, best, err := tr.fit(ctx, net, trainSeqs, valSeqs, cfg, symbol)
	if err != nil {
		return nil, nil, err
	}

	metrics := tr.validate(best, valSeqs, targetScaler)
	summary.Metrics = metrics
	summary.Features = trained
	summary.Symbol = symbol
	summary.TrainedAt = time.Now().UTC()

	artifact := &Artifact{
		Net:           best,
		FeatureScaler: featScaler,
		TargetScaler:  targetScaler,
		Meta: Metadata{
			Symbol:         symbol,
			ModelVersion:   fmt.Sprintf("v%d", summary.TrainedAt.Unix()),
			TrainedAt:      summary.TrainedAt,
			SequenceLength: l,
			Horizon:        h,
			Features:       trained,
			Metrics:        metrics,
		},
	}
	if err := tr.store.Save(artifact); err != nil {
		return nil, nil, err
	}
	if err := tr.store.SaveFeatureConfig(&FeatureConfig{
		Symbol:      symbol,
		Features:    trained,
		Definitions: tr.engine.Registry().Snapshot(trained),
		CreatedAt:   summary.TrainedAt,
	}); err != nil {
		return nil, nil, err
	}

	tr.log.Info("training completed",
		logger.String("symbol", symbol),
		logger.Int("epochs", summary.Epochs),
		logger.Float64("val_loss", summary.ValidationLoss[len(summary.ValidationLoss)-1]),
		logger.Float64("directional_accuracy", metrics.DirectionalAccuracy),
	)
	return summary, artifact, nil
}

// fit runs the epoch loop: SGD over batches in time order, early stopping
// on validation loss, halving the learning rate when the loss plateaus.
// Returns the summary and the best-epoch weights.
func (tr *Trainer) fit(ctx context.Context, net *Network, trainSeqs, valSeqs []Sequence, cfg TrainConfig, symbol string) (*models.TrainingSummary, *Network, error) {
	const (
		lrDecayPatience = 5
		lrFactor        = 0.5
		minLR           = 1e-7
	)

	summary := &models.TrainingSummary{}
	best := net.Clone()
	bestVal := math.Inf(1)
	patience := 0
	plateau := 0

	for epoch := 0; epoch < cfg.Epochs; epoch++ {
		select {
		case <-ctx.Done():
			return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: "cancelled: " + ctx.Err().Error()}
		default:
		}

		totalLoss := 0.0
		for start := 0; start < len(trainSeqs); start += cfg.BatchSize {
			end := start + cfg.BatchSize
			if end > len(trainSeqs) {
				end = len(trainSeqs)
			}
			for _, seq := range trainSeqs[start:end] {
				loss, err := net.TrainStep(Flatten(seq.Input), seq.Target)
				if err != nil {
					return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: err.Error()}
				}
				totalLoss += loss
			}
		}
		trainLoss := totalLoss / float64(len(trainSeqs))
		valLoss := tr.loss(net, valSeqs)
		summary.TrainLoss = append(summary.TrainLoss, trainLoss)
		summary.ValidationLoss = append(summary.ValidationLoss, valLoss)
		summary.Epochs = epoch + 1

		if math.IsNaN(trainLoss) || math.IsNaN(valLoss) {
			return nil, nil, &TrainingFailedError{Symbol: symbol, Reason: "loss became NaN"}
		}

		if valLoss < bestVal {
			bestVal = valLoss
			best = net.Clone()
			patience = 0
			plateau = 0
		} else {
			patience++
			plateau++
			if plateau >= lrDecayPatience && net.LearningRate > minLR {
				net.LearningRate *= lrFactor
				if net.LearningRate < minLR {
					net.LearningRate = minLR
				}
				plateau = 0
				tr.log.Debug("learning rate decayed",
					logger.String("symbol", symbol),
					logger.Float64("lr", net.LearningRate),
				)
			}
			if patience >= cfg.Patience {
				tr.log.Info("early stopping",
					logger.String("symbol", symbol),
					logger.Int("epoch", epoch),
					logger.Float64("best_val_loss", bestVal),
				)
				break
			}
		}
	}
	return summary, best, nil
}

func (tr *Trainer) loss(net *Network, seqs []Sequence) float64 {
	if len(seqs) == 0 {
		return 0
	}
	total := 0.0
	for _, seq := range seqs {
		pred, err := net.Forward(Flatten(seq.Input))
		if err != nil {
			return math.NaN()
		}
		d := pred - seq.Target
		total += d * d
	}
	return total / float64(len(seqs))
}

// validate computes held-out metrics: error magnitudes in scaled space,
// R², directional agreement on consecutive diffs, and mean absolute
// percentage error in price units.
func (tr *Trainer) validate(net *Network, valSeqs []Sequence, targetScaler *MinMaxScaler) models.ValidationMetrics {
	var m models.ValidationMetrics
	if len(valSeqs) == 0 {
		return m
	}

	preds := make([]float64, len(valSeqs))
	actual := make([]float64, len(valSeqs))
	for i, seq := range valSeqs {
		p, err := net.Forward(Flatten(seq.Input))
		if err != nil {
			return m
		}
		preds[i] = p
		actual[i] = seq.Target
	}

	var sse, sae, mean float64
	for i := range preds {
		d := preds[i] - actual[i]
		sse += d * d
		sae += math.Abs(d)
		mean += actual[i]
	}
	n := float64(len(preds))
	mean /= n
	m.MSE = sse / n
	m.MAE = sae / n
	m.RMSE = math.Sqrt(m.MSE)

	var sst float64
	for _, a := range actual {
		d := a - mean
		sst += d * d
	}
	if sst > 0 {
		m.R2 = 1 - sse/sst
	}

	if len(preds) > 1 {
		agree := 0
		for i := 1; i < len(preds); i++ {
			da := actual[i] - actual[i-1]
			dp := preds[i] - preds[i-1]
			if (da >= 0) == (dp >= 0) {
				agree++
			}
		}
		m.DirectionalAccuracy = float64(agree) / float64(len(preds)-1)
	}

	var pctSum float64
	pctN := 0
	for i := range preds {
		real := targetScaler.Inverse(actual[i])
		pred := targetScaler.Inverse(preds[i])
		if real != 0 {
			pctSum += math.Abs((real - pred) / real)
			pctN++
		}
	}
	if pctN > 0 {
		m.PercentageError = pctSum / float64(pctN) * 100
	}
	return m
}
