package repository

import (
	"context"
	"time"

	"StockCast/internal/domain/models"
)

// Timeframe represents bar resolution buckets.
type Timeframe string

const (
	TF1m Timeframe = "1m"
	TF1h Timeframe = "1h"
	TF1d Timeframe = "1d"
)

// NormalizeTimeframe maps arbitrary input to a supported timeframe,
// defaulting to daily bars.
func NormalizeTimeframe(s string) Timeframe {
	switch Timeframe(s) {
	case TF1m, TF1h, TF1d:
		return Timeframe(s)
	default:
		return TF1d
	}
}

// BarStore provides access to historical bars. Reads are used by the
// forecast core; writes are used only by the ingestion collaborator.
type BarStore interface {
	GetBars(ctx context.Context, symbol string, from, to time.Time, tf Timeframe) ([]models.Bar, error)
	GetLatestNBars(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Bar, error)
	InsertBars(ctx context.Context, symbol string, tf Timeframe, bars []models.Bar) error
}

// Metrics abstracts operational metric recording so use cases do not
// depend on a concrete backend.
type Metrics interface {
	RecordPrediction(symbol, tier string)
	RecordTraining(symbol, status string, seconds float64)
	RecordClampedSteps(symbol string, n int)
	RecordCache(result string)
	RecordConfidence(symbol string, score float64)
}
