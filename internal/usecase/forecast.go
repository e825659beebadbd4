package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	domservice "StockCast/internal/domain/service"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forecast"
	"StockCast/pkg/cache"
	pkgkafka "StockCast/pkg/kafka"
	applogger "StockCast/pkg/logger"
	"StockCast/pkg/util"
)

// historyLimit caps the number of daily bars pulled for a single
// training or inference run.
const historyLimit = 5000

// ForecastUseCase orchestrates the forecast flow: cached result lookup,
// bar retrieval, model lifecycle calls, and result publication.
type ForecastUseCase struct {
	bars    domrepo.BarStore
	manager *forecast.Manager
	cache   cache.Service
	metrics domrepo.Metrics
	log     *applogger.Logger

	producer         *pkgkafka.Producer
	predictionsTopic string
	cacheTTL         time.Duration
	symbols          []string
	trainDefaults    forecast.TrainConfig
}

// ForecastOption configures optional collaborators.
type ForecastOption func(*ForecastUseCase)

// WithCache enables prediction result caching.
func WithCache(c cache.Service, ttl time.Duration) ForecastOption {
	return func(uc *ForecastUseCase) {
		uc.cache = c
		uc.cacheTTL = ttl
	}
}

// WithPublisher enables publishing served forecasts to Kafka.
func WithPublisher(p *pkgkafka.Producer, topic string) ForecastOption {
	return func(uc *ForecastUseCase) {
		uc.producer = p
		uc.predictionsTopic = topic
	}
}

// WithSymbols sets the symbol universe the retrain sweep walks.
func WithSymbols(symbols []string) ForecastOption {
	return func(uc *ForecastUseCase) {
		uc.symbols = symbols
	}
}

// WithTrainingDefaults sets the hyperparameters used when a request
// does not specify its own and by the retrain sweep.
func WithTrainingDefaults(cfg forecast.TrainConfig) ForecastOption {
	return func(uc *ForecastUseCase) {
		uc.trainDefaults = cfg
	}
}

func NewForecastUseCase(
	bars domrepo.BarStore,
	manager *forecast.Manager,
	metrics domrepo.Metrics,
	log *applogger.Logger,
	opts ...ForecastOption,
) *ForecastUseCase {
	uc := &ForecastUseCase{
		bars:     bars,
		manager:  manager,
		metrics:  metrics,
		log:      log,
		cacheTTL: 6 * time.Hour,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

func predictionKey(symbol string, horizon int) string {
	return cache.GenerateKeyWithParams("prediction", symbol, horizon)
}

// Forecast returns a constrained prediction path for symbol. Unless
// refresh is set, a previously cached result within its TTL is served
// without touching the model.
func (uc *ForecastUseCase) Forecast(ctx context.Context, symbol string, horizon int, refresh bool) (*models.PredictionResult, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}

	key := predictionKey(symbol, horizon)
	if uc.cache != nil && !refresh {
		var cached models.PredictionResult
		err := uc.cache.Get(ctx, key, &cached)
		if err == nil {
			uc.metrics.RecordCache("hit")
			return &cached, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			uc.log.Warn("prediction cache read failed",
				applogger.String("key", key),
				applogger.Error(err),
			)
		}
		uc.metrics.RecordCache("miss")
	}

	table, err := uc.loadTable(ctx, symbol)
	if err != nil {
		return nil, err
	}

	result, err := uc.manager.Predict(ctx, table, symbol, horizon)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, key, result, uc.cacheTTL); err != nil {
			uc.log.Warn("prediction cache write failed",
				applogger.String("key", key),
				applogger.Error(err),
			)
		}
	}
	uc.publish(ctx, result)
	return result, nil
}

// Train runs a training cycle for symbol with the requested
// hyperparameters and invalidates any cached prediction on success.
func (uc *ForecastUseCase) Train(ctx context.Context, symbol string, req *models.TrainRequest) (*models.TrainingSummary, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}

	table, err := uc.loadTable(ctx, symbol)
	if err != nil {
		return nil, err
	}

	cfg := uc.trainDefaults
	if req != nil {
		if req.Epochs > 0 {
			cfg.Epochs = req.Epochs
		}
		if req.BatchSize > 0 {
			cfg.BatchSize = req.BatchSize
		}
		if req.ValidationSplit > 0 {
			cfg.ValidationSplit = req.ValidationSplit
		}
		if req.Patience > 0 {
			cfg.Patience = req.Patience
		}
	}

	summary, err := uc.manager.Train(ctx, table, symbol, cfg)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.DeleteByPattern(ctx, cache.BuildPattern("prediction:"+symbol+":")); err != nil {
			uc.log.Warn("prediction cache invalidation failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}
	return summary, nil
}

// ModelInfo reports persisted artifact metadata for symbol.
func (uc *ForecastUseCase) ModelInfo(ctx context.Context, symbol string) (*models.ArtifactInfo, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	return uc.manager.ModelInfo(symbol)
}

// History returns stored bars for symbol. When from and to are both
// zero the latest bars up to limit are served; otherwise the range is
// aligned to bar boundaries before the query.
func (uc *ForecastUseCase) History(ctx context.Context, symbol string, from, to time.Time, timeframe string, limit int) (*models.HistoryResult, error) {
	symbol = normalizeSymbol(symbol)
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if limit <= 0 || limit > historyLimit {
		limit = 500
	}
	tf := domrepo.NormalizeTimeframe(timeframe)

	var (
		bars []models.Bar
		err  error
	)
	if from.IsZero() && to.IsZero() {
		bars, err = uc.bars.GetLatestNBars(ctx, symbol, limit, tf)
	} else {
		if to.IsZero() {
			to = time.Now().UTC()
		}
		from, to = util.AlignFromTo(from, to, string(tf))
		bars, err = uc.bars.GetBars(ctx, symbol, from, to, tf)
	}
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return &models.HistoryResult{
		Symbol:    symbol,
		Timeframe: string(tf),
		Count:     len(bars),
		Bars:      bars,
	}, nil
}

// RetrainSweep walks the configured symbol universe once, retraining
// every model that is missing or stale and has enough history.
func (uc *ForecastUseCase) RetrainSweep(ctx context.Context) {
	for _, symbol := range uc.symbols {
		if ctx.Err() != nil {
			return
		}
		table, err := uc.loadTable(ctx, symbol)
		if err != nil {
			uc.log.Warn("retrain sweep skipping symbol",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
			continue
		}
		if !uc.manager.RetrainIfNeeded(symbol, table.Len()) {
			continue
		}
		uc.log.Info("retrain sweep training symbol", applogger.String("symbol", symbol))
		if _, err := uc.manager.Train(ctx, table, symbol, uc.trainDefaults); err != nil {
			uc.log.Error("retrain sweep training failed",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
	}
}

// StartRetrainLoop runs RetrainSweep on the given interval until ctx is
// cancelled. It performs one sweep immediately on start.
func (uc *ForecastUseCase) StartRetrainLoop(ctx context.Context, interval time.Duration) {
	if interval <= 0 || len(uc.symbols) == 0 {
		return
	}
	go func() {
		uc.RetrainSweep(ctx)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				uc.RetrainSweep(ctx)
			}
		}
	}()
}

func (uc *ForecastUseCase) loadTable(ctx context.Context, symbol string) (*features.Table, error) {
	bars, err := uc.bars.GetLatestNBars(ctx, symbol, historyLimit, domrepo.TF1d)
	if err != nil {
		return nil, fmt.Errorf("load bars: %w", err)
	}
	if !models.SortedByTime(bars) {
		uc.log.Warn("bars out of order, re-sorting",
			applogger.String("symbol", symbol),
		)
		sort.Slice(bars, func(i, j int) bool {
			return bars[i].Timestamp.Before(bars[j].Timestamp)
		})
	}
	table, inconsistent := features.NewTable(bars)
	if inconsistent > 0 {
		uc.log.Warn("inconsistent bars detected",
			applogger.String("symbol", symbol),
			applogger.Int("count", inconsistent),
		)
	}
	return table, nil
}

func (uc *ForecastUseCase) publish(ctx context.Context, result *models.PredictionResult) {
	if uc.producer == nil || uc.predictionsTopic == "" {
		return
	}
	if err := uc.producer.Publish(ctx, uc.predictionsTopic, []byte(result.Symbol), result); err != nil {
		uc.log.Warn("prediction publish failed",
			applogger.String("symbol", result.Symbol),
			applogger.Error(err),
		)
	}
}

func normalizeSymbol(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

var _ domservice.Forecaster = (*ForecastUseCase)(nil)
