package forecast

import (
	"math"
	"sync"
	"testing"
	"time"

	"StockCast/internal/domain/models"
	"StockCast/internal/services/features"
	"StockCast/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	l, err := logger.New(&logger.Config{Level: "error", Format: "json", Output: "stderr"})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return l
}

// marketBars builds a deterministic daily series with a mild upward
// drift and a sine wiggle, enough structure for indicators and training
// to produce finite values.
func marketBars(n int) []models.Bar {
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
	return bars
}

func marketTable(t *testing.T, n int) *features.Table {
	t.Helper()
	table, bad := features.NewTable(marketBars(n))
	if bad != 0 {
		t.Fatalf("unexpected inconsistent bars: %d", bad)
	}
	return table
}

// stubMetrics records calls so tests can assert which tier served.
type stubMetrics struct {
	mu          sync.Mutex
	predictions map[string]int
	trainings   map[string]int
	clamped     int
	cache       map[string]int
	confidences []float64
}

func newStubMetrics() *stubMetrics {
	return &stubMetrics{
		predictions: make(map[string]int),
		trainings:   make(map[string]int),
		cache:       make(map[string]int),
	}
}

func (s *stubMetrics) RecordPrediction(symbol, tier string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.predictions[tier]++
}

func (s *stubMetrics) RecordTraining(symbol, status string, seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trainings[status]++
}

func (s *stubMetrics) RecordClampedSteps(symbol string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clamped += n
}

func (s *stubMetrics) RecordCache(result string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache[result]++
}

func (s *stubMetrics) RecordConfidence(symbol string, score float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confidences = append(s.confidences, score)
}

func (s *stubMetrics) tierCount(tier string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.predictions[tier]
}
