package forecast

import (
	"context"
	"errors"
	"sync"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/domain/repository"
	"StockCast/internal/services/features"
	"StockCast/pkg/logger"
	"StockCast/pkg/queue"
)

// ErrTrainingInProgress is returned when a training run is requested
// for a symbol that is already training.
var ErrTrainingInProgress = errors.New("training already in progress")

type modelState int

const (
	stateUntrained modelState = iota
	stateTraining
	stateTrained
	stateStale
)

func (s modelState) String() string {
	switch s {
	case stateTraining:
		return "training"
	case stateTrained:
		return "trained"
	case stateStale:
		return "stale"
	default:
		return "untrained"
	}
}

// symbolEntry holds the per-symbol model lifecycle. The mutex guards
// state transitions only; long training runs happen outside the lock so
// predictions keep serving the previous artifact.
type symbolEntry struct {
	mu       sync.Mutex
	state    modelState
	artifact *Artifact
}

// Manager owns the model lifecycle for every symbol: lazy artifact
// loading, serialized training, staleness tracking, and the degradation
// ladder when the model path cannot serve.
type Manager struct {
	trainer   *Trainer
	predictor *Predictor
	fallback  *Fallback
	store     *ArtifactStore
	pool      *queue.Pool
	metrics   repository.Metrics
	log       *logger.Logger

	maxModelAge    time.Duration
	sequenceLength int
	horizon        int

	mu      sync.RWMutex
	symbols map[string]*symbolEntry
}

// NewManager wires the lifecycle manager.
func NewManager(
	trainer *Trainer,
	predictor *Predictor,
	fallback *Fallback,
	store *ArtifactStore,
	pool *queue.Pool,
	metrics repository.Metrics,
	log *logger.Logger,
	maxModelAge time.Duration,
	sequenceLength, horizon int,
) *Manager {
	return &Manager{
		trainer:        trainer,
		predictor:      predictor,
		fallback:       fallback,
		store:          store,
		pool:           pool,
		metrics:        metrics,
		log:            log,
		maxModelAge:    maxModelAge,
		sequenceLength: sequenceLength,
		horizon:        horizon,
		symbols:        make(map[string]*symbolEntry),
	}
}

func (m *Manager) entry(symbol string) *symbolEntry {
	m.mu.RLock()
	e, ok := m.symbols[symbol]
	m.mu.RUnlock()
	if ok {
		return e
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok = m.symbols[symbol]; ok {
		return e
	}
	e = &symbolEntry{}
	m.symbols[symbol] = e
	return e
}

// loadArtifact returns the cached artifact for the symbol, reading it
// from disk on first use. A missing artifact maps to
// ModelNotTrainedError.
func (m *Manager) loadArtifact(symbol string) (*Artifact, error) {
	e := m.entry(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.artifact != nil {
		return e.artifact, nil
	}
	a, err := m.store.Load(symbol)
	if err != nil {
		if errors.Is(err, ErrArtifactMissing) {
			return nil, &ModelNotTrainedError{Symbol: symbol}
		}
		return nil, err
	}
	e.artifact = a
	if e.state == stateUntrained {
		e.state = stateTrained
	}
	if time.Since(a.Meta.TrainedAt) > m.maxModelAge {
		e.state = stateStale
	}
	return a, nil
}

// Predict serves a forecast from the trained model, degrading through
// the fallback ladder only on unexpected internal failures. Explicit
// conditions the caller can act on, a missing model, mismatched
// features, or too little history, propagate as typed errors.
func (m *Manager) Predict(ctx context.Context, table *features.Table, symbol string, horizon int) (*models.PredictionResult, error) {
	artifact, err := m.loadArtifact(symbol)
	if err == nil {
		res, perr := queue.Await(ctx, m.pool, func() (*models.PredictionResult, error) {
			return m.predictor.Predict(table, symbol, horizon, artifact)
		})
		if perr == nil {
			m.metrics.RecordPrediction(symbol, TierModel)
			m.metrics.RecordConfidence(symbol, res.OverallConfidence)
			return res, nil
		}
		if isExplicit(perr) || errors.Is(perr, context.Canceled) || errors.Is(perr, context.DeadlineExceeded) {
			return nil, perr
		}
		m.log.Error("model prediction failed, degrading",
			logger.String("symbol", symbol),
			logger.Error(perr),
		)
		err = perr
	} else if isExplicit(err) {
		return nil, err
	}

	return m.degrade(symbol, table, horizon, err)
}

func (m *Manager) degrade(symbol string, table *features.Table, horizon int, cause error) (*models.PredictionResult, error) {
	closes, ok := table.Column(features.ColClose)
	if !ok || len(closes) == 0 {
		return nil, &InsufficientDataError{Have: len(closes), Need: 1}
	}
	last := table.LastTime()

	if res, err := m.fallback.TrendForecast(symbol, closes, last, horizon); err == nil {
		m.metrics.RecordPrediction(symbol, TierTrend)
		m.metrics.RecordConfidence(symbol, res.OverallConfidence)
		return res, nil
	}
	res, err := m.fallback.WalkForecast(symbol, closes, last, horizon)
	if err != nil {
		if cause != nil {
			return nil, cause
		}
		return nil, err
	}
	m.metrics.RecordPrediction(symbol, TierWalk)
	m.metrics.RecordConfidence(symbol, res.OverallConfidence)
	return res, nil
}

// isExplicit reports whether the error is a typed condition that should
// reach the caller instead of triggering degraded output. Artifact I/O
// failures and dependency cycles are not recoverable locally; serving a
// fallback would mask a corrupt model or a broken registry.
func isExplicit(err error) bool {
	var (
		insufficient *InsufficientDataError
		notTrained   *ModelNotTrainedError
		mismatch     *FeatureMismatchError
		artifactIO   *ArtifactIOError
		circular     *features.CircularDependencyError
	)
	return errors.As(err, &insufficient) ||
		errors.As(err, &notTrained) ||
		errors.As(err, &mismatch) ||
		errors.As(err, &artifactIO) ||
		errors.As(err, &circular)
}

// Train runs a training cycle on the worker pool. Concurrent requests
// for the same symbol are rejected; predictions keep serving the
// previous artifact until the new one is persisted and swapped in.
func (m *Manager) Train(ctx context.Context, table *features.Table, symbol string, cfg TrainConfig) (*models.TrainingSummary, error) {
	e := m.entry(symbol)

	e.mu.Lock()
	if e.state == stateTraining {
		e.mu.Unlock()
		return nil, ErrTrainingInProgress
	}
	prev := e.state
	e.state = stateTraining
	e.mu.Unlock()

	start := time.Now()
	type trained struct {
		summary  *models.TrainingSummary
		artifact *Artifact
	}
	out, err := queue.Await(ctx, m.pool, func() (trained, error) {
		summary, artifact, terr := m.trainer.Train(ctx, table, symbol, cfg)
		return trained{summary: summary, artifact: artifact}, terr
	})

	e.mu.Lock()
	defer e.mu.Unlock()
	if err != nil {
		e.state = prev
		m.metrics.RecordTraining(symbol, "failure", time.Since(start).Seconds())
		return nil, err
	}
	e.artifact = out.artifact
	e.state = stateTrained
	m.metrics.RecordTraining(symbol, "success", time.Since(start).Seconds())
	return out.summary, nil
}

// RetrainIfNeeded reports whether a retrain should run for the symbol.
// A missing artifact always requests one. An existing artifact requests
// one only when it is older than the configured maximum and the
// available history is long enough to train on.
func (m *Manager) RetrainIfNeeded(symbol string, dataPoints int) bool {
	meta, err := m.store.LoadMetadata(symbol)
	if err != nil {
		if !errors.Is(err, ErrArtifactMissing) {
			m.log.Error("reading model metadata",
				logger.String("symbol", symbol),
				logger.Error(err),
			)
			return false
		}
		return true
	}
	if dataPoints < MinTrainingRows(m.sequenceLength, m.horizon) {
		return false
	}
	if time.Since(meta.TrainedAt) > m.maxModelAge {
		m.markStale(symbol)
		return true
	}
	return false
}

func (m *Manager) markStale(symbol string) {
	e := m.entry(symbol)
	e.mu.Lock()
	if e.state == stateTrained {
		e.state = stateStale
	}
	e.mu.Unlock()
}

// ModelInfo returns the persisted metadata for the symbol's model.
func (m *Manager) ModelInfo(symbol string) (*models.ArtifactInfo, error) {
	meta, err := m.store.LoadMetadata(symbol)
	if err != nil {
		if errors.Is(err, ErrArtifactMissing) {
			return nil, &ModelNotTrainedError{Symbol: symbol}
		}
		return nil, err
	}
	return &models.ArtifactInfo{
		Symbol:         meta.Symbol,
		ModelVersion:   meta.ModelVersion,
		TrainedAt:      meta.TrainedAt,
		SequenceLength: meta.SequenceLength,
		Horizon:        meta.Horizon,
		Features:       meta.Features,
		Metrics:        meta.Metrics,
	}, nil
}

// State reports the lifecycle state for diagnostics.
func (m *Manager) State(symbol string) string {
	e := m.entry(symbol)
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.String()
}
