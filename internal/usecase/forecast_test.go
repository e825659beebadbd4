package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	domrepo "StockCast/internal/domain/repository"
	"StockCast/internal/services/features"
	"StockCast/internal/services/forecast"
	"StockCast/pkg/cache"
	"StockCast/pkg/logger"
	"StockCast/pkg/queue"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// memoryBarStore serves canned bars per symbol.
type memoryBarStore struct {
	mu   sync.Mutex
	bars map[string][]models.Bar
}

func newMemoryBarStore() *memoryBarStore {
	return &memoryBarStore{bars: make(map[string][]models.Bar)}
}

func (s *memoryBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time, tf domrepo.Timeframe) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Bar
	for _, b := range s.bars[symbol] {
		if !b.Timestamp.Before(from) && !b.Timestamp.After(to) {
			out = append(out, b)
		}
	}
	return out, nil
}

func (s *memoryBarStore) GetLatestNBars(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Bar, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bars := s.bars[symbol]
	if len(bars) > n {
		bars = bars[len(bars)-n:]
	}
	return append([]models.Bar(nil), bars...), nil
}

func (s *memoryBarStore) InsertBars(ctx context.Context, symbol string, tf domrepo.Timeframe, bars []models.Bar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bars[symbol] = append(s.bars[symbol], bars...)
	return nil
}

type countingMetrics struct {
	mu    sync.Mutex
	cache map[string]int
}

func (c *countingMetrics) RecordPrediction(symbol, tier string)                 {}
func (c *countingMetrics) RecordTraining(symbol, status string, seconds float64) {}
func (c *countingMetrics) RecordClampedSteps(symbol string, n int)              {}
func (c *countingMetrics) RecordConfidence(symbol string, score float64)        {}

func (c *countingMetrics) RecordCache(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cache == nil {
		c.cache = make(map[string]int)
	}
	c.cache[result]++
}

func (c *countingMetrics) cacheCount(result string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache[result]
}

func seedBars(t *testing.T, store *memoryBarStore, symbol string, n int) {
	t.Helper()
	bars := make([]models.Bar, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	price := 100.0
	for i := range bars {
		price += 0.08 + math.Sin(float64(i)/7)*1.5
		bars[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, i),
			Open:      price - 0.4,
			High:      price + 1.1,
			Low:       price - 1.2,
			Close:     price,
			Volume:    2000 + float64(i%50)*17,
		}
	}
	if err := store.InsertBars(context.Background(), symbol, domrepo.TF1d, bars); err != nil {
		t.Fatalf("seed bars: %v", err)
	}
}

func testUseCase(t *testing.T, store *memoryBarStore, metrics *countingMetrics, opts ...ForecastOption) *ForecastUseCase {
	t.Helper()
	log := testLogger(t)
	artifacts, err := forecast.NewArtifactStore(t.TempDir(), log)
	if err != nil {
		t.Fatalf("artifact store: %v", err)
	}
	engine := features.NewEngine(features.NewRegistry(), log)
	pool := queue.NewPool(1, 2, log)
	t.Cleanup(pool.Stop)

	manager := forecast.NewManager(
		forecast.NewTrainer(engine, artifacts, log, 20, 3),
		forecast.NewPredictor(engine, metrics, log),
		forecast.NewFallback(log),
		artifacts,
		pool,
		metrics,
		log,
		7*24*time.Hour,
		20, 3,
	)
	return NewForecastUseCase(store, manager, metrics, log, opts...)
}

func trainRequest() *models.TrainRequest {
	return &models.TrainRequest{Epochs: 5, BatchSize: 16, ValidationSplit: 0.2, Patience: 3}
}

func TestForecastRoundTripWithCache(t *testing.T) {
	store := newMemoryBarStore()
	seedBars(t, store, "AAPL", 200)
	metrics := &countingMetrics{}
	uc := testUseCase(t, store, metrics,
		WithCache(cache.NewMemoryCache(), time.Hour),
	)
	ctx := context.Background()

	if _, err := uc.Train(ctx, "aapl", trainRequest()); err != nil {
		t.Fatalf("Train: %v", err)
	}

	first, err := uc.Forecast(ctx, "aapl", 5, false)
	if err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if first.Symbol != "AAPL" || len(first.Points) != 5 {
		t.Fatalf("result = %+v", first)
	}
	if metrics.cacheCount("miss") != 1 {
		t.Fatalf("miss count = %d, want 1", metrics.cacheCount("miss"))
	}

	second, err := uc.Forecast(ctx, "AAPL", 5, false)
	if err != nil {
		t.Fatalf("cached Forecast: %v", err)
	}
	if metrics.cacheCount("hit") != 1 {
		t.Fatalf("hit count = %d, want 1", metrics.cacheCount("hit"))
	}
	if second.ModelVersion != first.ModelVersion {
		t.Fatalf("cached result differs: %q vs %q", second.ModelVersion, first.ModelVersion)
	}

	// refresh bypasses the cache.
	if _, err := uc.Forecast(ctx, "AAPL", 5, true); err != nil {
		t.Fatalf("refresh Forecast: %v", err)
	}
	if metrics.cacheCount("hit") != 1 {
		t.Fatalf("refresh served from cache")
	}
}

func TestTrainInvalidatesCachedPrediction(t *testing.T) {
	store := newMemoryBarStore()
	seedBars(t, store, "AAPL", 200)
	metrics := &countingMetrics{}
	uc := testUseCase(t, store, metrics,
		WithCache(cache.NewMemoryCache(), time.Hour),
	)
	ctx := context.Background()

	if _, err := uc.Train(ctx, "AAPL", trainRequest()); err != nil {
		t.Fatalf("Train: %v", err)
	}
	if _, err := uc.Forecast(ctx, "AAPL", 5, false); err != nil {
		t.Fatalf("Forecast: %v", err)
	}
	if _, err := uc.Train(ctx, "AAPL", trainRequest()); err != nil {
		t.Fatalf("second Train: %v", err)
	}
	if _, err := uc.Forecast(ctx, "AAPL", 5, false); err != nil {
		t.Fatalf("Forecast after retrain: %v", err)
	}
	if metrics.cacheCount("hit") != 0 {
		t.Fatalf("stale prediction served after retrain")
	}
}

func TestForecastUntrainedSymbol(t *testing.T) {
	store := newMemoryBarStore()
	seedBars(t, store, "MSFT", 120)
	uc := testUseCase(t, store, &countingMetrics{})

	_, err := uc.Forecast(context.Background(), "MSFT", 3, false)
	var notTrained *forecast.ModelNotTrainedError
	if !errors.As(err, &notTrained) {
		t.Fatalf("err = %v, want ModelNotTrainedError", err)
	}
}

func TestForecastRequiresSymbol(t *testing.T) {
	uc := testUseCase(t, newMemoryBarStore(), &countingMetrics{})
	if _, err := uc.Forecast(context.Background(), "  ", 3, false); err == nil {
		t.Fatalf("expected error for blank symbol")
	}
	if _, err := uc.Train(context.Background(), "", trainRequest()); err == nil {
		t.Fatalf("expected error for blank symbol")
	}
}

func TestRetrainSweepTrainsMissingModels(t *testing.T) {
	store := newMemoryBarStore()
	seedBars(t, store, "AAPL", 200)
	metrics := &countingMetrics{}
	uc := testUseCase(t, store, metrics,
		WithSymbols([]string{"AAPL"}),
		WithTrainingDefaults(forecast.TrainConfig{Epochs: 5, BatchSize: 16, Patience: 3}),
	)
	ctx := context.Background()

	uc.RetrainSweep(ctx)

	info, err := uc.ModelInfo(ctx, "AAPL")
	if err != nil {
		t.Fatalf("ModelInfo after sweep: %v", err)
	}
	if info.Symbol != "AAPL" {
		t.Fatalf("info = %+v", info)
	}
}

func TestModelInfoUntrained(t *testing.T) {
	uc := testUseCase(t, newMemoryBarStore(), &countingMetrics{})
	_, err := uc.ModelInfo(context.Background(), "GOOG")
	var notTrained *forecast.ModelNotTrainedError
	if !errors.As(err, &notTrained) {
		t.Fatalf("err = %v, want ModelNotTrainedError", err)
	}
}

func TestHistoryLatestBars(t *testing.T) {
	store := newMemoryBarStore()
	seedBars(t, store, "AAPL", 30)
	uc := testUseCase(t, store, &countingMetrics{})

	res, err := uc.History(context.Background(), "aapl", time.Time{}, time.Time{}, "1d", 10)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if res.Symbol != "AAPL" || res.Timeframe != "1d" {
		t.Fatalf("result = %+v", res)
	}
	if res.Count != 10 || len(res.Bars) != 10 {
		t.Fatalf("count = %d, bars = %d, want 10", res.Count, len(res.Bars))
	}
	last := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	if !res.Bars[len(res.Bars)-1].Timestamp.Equal(last) {
		t.Fatalf("last bar = %v, want %v", res.Bars[len(res.Bars)-1].Timestamp, last)
	}
}

func TestHistoryRangeAligned(t *testing.T) {
	store := newMemoryBarStore()
	seedBars(t, store, "AAPL", 30)
	uc := testUseCase(t, store, &countingMetrics{})

	from := time.Date(2024, 1, 5, 12, 30, 0, 0, time.UTC)
	to := time.Date(2024, 1, 10, 8, 0, 0, 0, time.UTC)
	res, err := uc.History(context.Background(), "AAPL", from, to, "1d", 500)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if res.Count != 6 {
		t.Fatalf("count = %d, want 6 bars for Jan 5 through Jan 10", res.Count)
	}
	first := time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)
	if !res.Bars[0].Timestamp.Equal(first) {
		t.Fatalf("first bar = %v, want %v", res.Bars[0].Timestamp, first)
	}
}

func TestHistoryRequiresSymbol(t *testing.T) {
	uc := testUseCase(t, newMemoryBarStore(), &countingMetrics{})
	if _, err := uc.History(context.Background(), "  ", time.Time{}, time.Time{}, "1d", 10); err == nil {
		t.Fatalf("expected error for blank symbol")
	}
}

func TestLoadTableSortsOutOfOrderBars(t *testing.T) {
	store := newMemoryBarStore()
	metrics := &countingMetrics{}
	uc := testUseCase(t, store, metrics)

	// Insert a small series with the middle bars swapped, the way a
	// backfill landing after live ingestion would leave them.
	start := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	days := []int{0, 1, 4, 2, 3, 5}
	bars := make([]models.Bar, len(days))
	for i, d := range days {
		p := 100.0 + float64(d)
		bars[i] = models.Bar{
			Timestamp: start.AddDate(0, 0, d),
			Open:      p - 0.2,
			High:      p + 0.5,
			Low:       p - 0.5,
			Close:     p,
			Volume:    1000,
		}
	}
	if err := store.InsertBars(context.Background(), "AAPL", domrepo.TF1d, bars); err != nil {
		t.Fatalf("insert: %v", err)
	}

	table, err := uc.loadTable(context.Background(), "AAPL")
	if err != nil {
		t.Fatalf("loadTable: %v", err)
	}
	times := table.Times()
	if len(times) != len(days) {
		t.Fatalf("rows = %d, want %d", len(times), len(days))
	}
	for i := 1; i < len(times); i++ {
		if !times[i].After(times[i-1]) {
			t.Fatalf("times not ascending at %d: %v then %v", i, times[i-1], times[i])
		}
	}
}
